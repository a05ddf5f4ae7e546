// Package cli: ensure.go implements the "tinyorch ensure-docker-host"
// command.
//
// The command makes a Docker-compatible podman socket available to the
// given process and prints the connection environment, by default as
// shell exports meant for eval:
//
//	eval "$(tinyorch ensure-docker-host $$)"
//
// Teardown is handed to a detached "tinyorch watch" process, so the
// command itself returns as soon as the socket is ready.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tinyorch/tinyorch/internal/docker"
	"github.com/tinyorch/tinyorch/internal/dockerhost"
	"github.com/tinyorch/tinyorch/internal/model"
	"github.com/tinyorch/tinyorch/internal/podman"
	"github.com/tinyorch/tinyorch/internal/refcount"
	"github.com/tinyorch/tinyorch/internal/sizing"
)

// Output formats accepted by --format.
const (
	formatExport = "export"
	formatEnv    = "env"
	formatJSON   = "json"
	formatYAML   = "yaml"
)

// ensureFlags holds the flag values for the ensure-docker-host command.
type ensureFlags struct {
	// format selects how the environment is printed.
	format string

	// verify pings the Docker API on the new socket before printing.
	verify bool
}

// NewEnsureDockerHostCommand creates the "ensure-docker-host" cobra command.
func NewEnsureDockerHostCommand() *cobra.Command {
	flags := &ensureFlags{}

	cmd := &cobra.Command{
		Use:   "ensure-docker-host <pid>",
		Short: "Provide a Docker-compatible socket for a process",
		Long: `Ensure a Docker-compatible podman socket exists for the given PID and
print DOCKER_HOST and DOCKER_SOCKET.

On macOS a shared podman machine is started and reference-counted; it
is stopped when its last dependent exits. On Linux a podman system
service is started for this PID alone and stopped when the PID exits.

Examples:
  eval "$(tinyorch ensure-docker-host $$)"
  tinyorch ensure-docker-host 4242 --format json
  tinyorch ensure-docker-host $$ --verify --format env`,

		Args: cobra.ExactArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := parsePID(args[0])
			if err != nil {
				return err
			}
			return runEnsureDockerHost(cmd.Context(), cmd.OutOrStdout(), pid, flags)
		},
	}

	cmd.Flags().StringVar(&flags.format, "format", formatExport,
		"Output format: export, env, json, yaml")
	cmd.Flags().BoolVar(&flags.verify, "verify", false,
		"Ping the Docker API on the new socket before printing")

	return cmd
}

// runEnsureDockerHost is the main logic function for ensure-docker-host.
func runEnsureDockerHost(ctx context.Context, out io.Writer, pid int, flags *ensureFlags) error {
	// Step 1: Validate the output format before doing any work.
	format := flags.format
	if jsonOutput {
		format = formatJSON
	}
	if !isEnvFormat(format) {
		return model.NewCLIError(model.ExitInvalidArgument,
			fmt.Sprintf("invalid format %q: valid values are export, env, json, yaml", flags.format))
	}

	a, err := newApp("ensure-docker-host")
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.cfg.EnsureDirs(); err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "failed to create tinyorch directories", err)
	}

	// Step 2: Wire the provisioner from configuration.
	p, err := newProvisioner(a)
	if err != nil {
		return wrapError("failed to set up provisioning", err)
	}

	// Step 3: Provision.
	env, err := p.Ensure(ctx, pid)
	if err != nil {
		return wrapError("failed to ensure docker host", err)
	}

	// Step 4: Optionally prove the socket serves the Docker API.
	if flags.verify {
		if err := verifyDockerHost(ctx, env.DockerHost); err != nil {
			return model.WrapCLIError(model.ExitProvisionFailed, "docker host did not answer", err)
		}
		a.logger.Debug("docker host verified", "DOCKER_HOST", env.DockerHost)
	}

	// Step 5: Print the environment.
	return writeEnv(out, env, format)
}

// newProvisioner builds a Provisioner whose watchers re-run this binary
// with the same configuration.
func newProvisioner(a *app) (*dockerhost.Provisioner, error) {
	var backend model.BackendKind
	if a.cfg.Backend != "" {
		b, err := model.ParseBackendKind(a.cfg.Backend)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrInvalidArgument, err)
		}
		backend = b
	}

	var extra []string
	if cfgFile != "" {
		extra = append(extra, "--config", cfgFile)
	}
	if verbose {
		extra = append(extra, "--verbose")
	}
	launcher, err := dockerhost.NewProcessLauncher(a.cfg.LogDir, extra...)
	if err != nil {
		return nil, err
	}

	binary := a.cfg.PodmanBinary
	return dockerhost.New(dockerhost.Config{
		Backend:  backend,
		Machine:  a.cfg.Machine,
		StateDir: a.cfg.StateDir,
		RunDir:   a.cfg.SocketDir,
		Volumes:  a.cfg.Volumes,
		ServiceArgv: func(socket string) []string {
			return podman.ServiceArgv(binary, socket)
		},
		ReadyAttempts: a.cfg.ReadyAttempts,
		ReadyInterval: a.cfg.ReadyInterval,
		Podman:        a.podman(),
		Store:         refcount.New(),
		Prober:        sizing.NewHostProbe(a.logger),
		Launcher:      launcher,
		Notifier:      a.notifier("", ""),
		Metrics:       a.metrics,
		Logger:        a.logger,
	})
}

func verifyDockerHost(ctx context.Context, host string) error {
	c, err := docker.NewClient(host)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()
	return c.Ping(ctx)
}

// parsePID converts a positional PID argument.
func parsePID(arg string) (int, error) {
	pid, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil || pid <= 0 {
		return 0, model.WrapCLIError(model.ExitInvalidArgument,
			fmt.Sprintf("invalid pid %q: must be a positive integer", arg), model.ErrInvalidArgument)
	}
	return pid, nil
}

func isEnvFormat(format string) bool {
	switch format {
	case formatExport, formatEnv, formatJSON, formatYAML:
		return true
	default:
		return false
	}
}

// writeEnv prints env in the given format. Variables appear in the
// order given by env.Keys.
func writeEnv(w io.Writer, env model.Env, format string) error {
	switch format {
	case formatJSON:
		data, err := json.Marshal(env)
		if err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case formatYAML:
		enc := yaml.NewEncoder(w)
		if err := enc.Encode(env); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	}

	values := env.Map()
	for _, k := range env.Keys() {
		var err error
		if format == formatEnv {
			_, err = fmt.Fprintf(w, "%s=%s\n", k, values[k])
		} else {
			_, err = fmt.Fprintf(w, "export %s=%s\n", k, shellQuote(values[k]))
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// unsafeShellChars matches anything a POSIX shell would interpret.
var unsafeShellChars = regexp.MustCompile(`[^\w@%+=:,./-]`)

// shellQuote returns s quoted for a POSIX shell. Strings made only of
// safe characters are returned unchanged.
func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	if !unsafeShellChars.MatchString(s) {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

// shellJoin quotes and joins args into one shell command line.
func shellJoin(args []string) string {
	quoted := make([]string, 0, len(args))
	for _, arg := range args {
		quoted = append(quoted, shellQuote(arg))
	}
	return strings.Join(quoted, " ")
}
