package cli

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/tinyorch/tinyorch/internal/config"
	"github.com/tinyorch/tinyorch/internal/docker"
	"github.com/tinyorch/tinyorch/internal/logging"
	"github.com/tinyorch/tinyorch/internal/metrics"
	"github.com/tinyorch/tinyorch/internal/model"
	"github.com/tinyorch/tinyorch/internal/notify"
	"github.com/tinyorch/tinyorch/internal/podman"
)

// app carries what every command needs: the resolved configuration, a
// logger on stderr and the metrics recorder. Commands build it first and
// defer close.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Recorder

	// command names the metrics textfile written on close.
	command string

	closers []func() error
}

// newApp loads configuration for the named command.
func newApp(command string) (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, model.WrapCLIError(model.ExitGeneralError, "failed to load configuration", err)
	}
	logger := logging.New(os.Stderr, logging.Options{Verbose: verbose, Quiet: quiet, JSON: jsonOutput})
	logger.Debug("configuration loaded", "file", cfg.File, "home", cfg.Home)

	return &app{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics.New(),
		command: strings.ReplaceAll(command, "-", "_"),
	}, nil
}

// podman returns a client for the configured podman binary.
func (a *app) podman() *podman.Client {
	runner := podman.NewExecRunner(a.logger)
	runner.Binary = a.cfg.PodmanBinary
	runner.Trace = traceWriter(os.Stderr)
	return podman.NewClient(runner)
}

// traceWriter returns f for "+ podman ..." echoes when it is a terminal,
// or nil when the output is piped, quieted or JSON.
func traceWriter(f *os.File) io.Writer {
	if quiet || jsonOutput {
		return nil
	}
	fd := f.Fd()
	if !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd) {
		return nil
	}
	return f
}

// notifier returns a notifier for title and the comma-separated urls,
// falling back to $JOB and $NOTIFY. A Docker client is only opened when
// there is somewhere to deliver to.
func (a *app) notifier(title, urls string) *notify.Notifier {
	if title == "" {
		title = a.cfg.Job
	}
	if urls == "" {
		urls = a.cfg.NotifyURLs
	}
	list := notify.ParseURLs(urls)

	var runner notify.ContainerRunner
	if len(list) > 0 {
		c, err := docker.NewClient("")
		if err != nil {
			a.logger.Warn("notifications disabled, no container engine", "error", err)
		} else {
			a.logger.Debug("notifications enabled", "engine", c.Host(), "urls", len(list))
			runner = c
			a.closers = append(a.closers, c.Close)
		}
	}

	n := notify.New(runner, title, list, a.logger)
	n.Image = a.cfg.AppriseImage
	n.Metrics = a.metrics
	return n
}

// close flushes metrics and releases clients.
func (a *app) close() {
	if err := a.metrics.WriteTextfile(a.cfg.MetricsDir, a.command); err != nil {
		a.logger.Warn("metrics export failed", "error", err)
	}
	for _, c := range a.closers {
		_ = c()
	}
}
