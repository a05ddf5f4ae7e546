// Package notify delivers fire-and-forget notifications through apprise,
// run as a throwaway container.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tinyorch/tinyorch/internal/docker"
	"github.com/tinyorch/tinyorch/internal/metrics"
)

// DefaultImage is the apprise image used when none is configured.
const DefaultImage = "caronc/apprise:latest"

// DefaultTitle is used when neither a title nor $JOB is set.
const DefaultTitle = "job"

// ContainerRunner runs a container to completion.
// *docker.Client satisfies it.
type ContainerRunner interface {
	RunEphemeral(ctx context.Context, opts docker.RunOptions) (docker.RunResult, error)
}

// Notifier sends messages to a fixed set of apprise URLs.
type Notifier struct {
	// Runner runs the apprise container. A nil Runner disables delivery.
	Runner ContainerRunner

	// Image is the apprise image reference.
	Image string

	// Title is the default notification title.
	Title string

	// URLs are apprise service URLs. An empty list disables delivery.
	URLs []string

	Metrics *metrics.Recorder
	Logger  *slog.Logger
}

// New returns a Notifier with the default image.
func New(runner ContainerRunner, title string, urls []string, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	if title == "" {
		title = DefaultTitle
	}
	return &Notifier{Runner: runner, Image: DefaultImage, Title: title, URLs: urls, Logger: logger}
}

// ParseURLs splits a comma-separated URL list, dropping blanks.
func ParseURLs(s string) []string {
	var urls []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			urls = append(urls, part)
		}
	}
	return urls
}

// Enabled reports whether Notify would attempt delivery.
func (n *Notifier) Enabled() bool {
	return n != nil && n.Runner != nil && len(n.URLs) > 0
}

// Notify sends message with the default title. Failures are logged and
// swallowed.
func (n *Notifier) Notify(ctx context.Context, message string) {
	if n == nil {
		return
	}
	if err := n.Send(ctx, n.Title, message); err != nil {
		n.Logger.Warn("notification failed", "error", err)
	}
}

// Send delivers one notification and reports the failure, if any.
// It is a no-op when no URLs or runner are configured.
func (n *Notifier) Send(ctx context.Context, title, message string) error {
	if !n.Enabled() {
		n.Logger.Debug("notification skipped, no URLs configured", "message", message)
		return nil
	}
	if title == "" {
		title = DefaultTitle
	}

	image := n.Image
	if image == "" {
		image = DefaultImage
	}

	cmd := append([]string{"apprise", "-t", title, "-b", message}, n.URLs...)
	res, err := n.Runner.RunEphemeral(ctx, docker.RunOptions{
		Image:   image,
		Cmd:     cmd,
		Purpose: "notify",
	})
	if err == nil && res.ExitCode != 0 {
		err = fmt.Errorf("apprise exited with status %d: %s", res.ExitCode, res.Output)
	}
	n.Metrics.Notification(err)
	if err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	n.Logger.Debug("notification sent", "title", title, "urls", len(n.URLs))
	return nil
}
