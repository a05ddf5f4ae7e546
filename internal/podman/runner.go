package podman

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
)

// Runner executes podman with the given arguments and returns its
// standard output. Implementations must return a non-nil error for a
// non-zero exit status.
//
// The interface exists so the provisioner and watchers can be tested
// against a scripted fake instead of a real podman installation.
type Runner interface {
	Run(ctx context.Context, args ...string) (string, error)
}

// CommandError describes a podman invocation that failed.
type CommandError struct {
	// Args are the arguments passed to podman.
	Args []string

	// Stderr is the trimmed standard error output, if any.
	Stderr string

	// Err is the underlying exec error (usually *exec.ExitError).
	Err error
}

// Error satisfies the error interface.
func (e *CommandError) Error() string {
	msg := fmt.Sprintf("podman %s failed", strings.Join(e.Args, " "))
	if e.Stderr != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Stderr)
	}
	return fmt.Sprintf("%s: %v", msg, e.Err)
}

// Unwrap returns the underlying exec error.
func (e *CommandError) Unwrap() error {
	return e.Err
}

// ExecRunner runs the real podman binary.
type ExecRunner struct {
	// Binary is the podman executable name or path.
	Binary string

	// Trace, when non-nil, receives a "+ podman ..." line before each
	// invocation, like `set -x` in a shell script.
	Trace io.Writer

	Logger *slog.Logger
}

// NewExecRunner returns a runner for the podman found on PATH.
func NewExecRunner(logger *slog.Logger) *ExecRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExecRunner{Binary: "podman", Logger: logger}
}

// Run implements Runner.
//
// Stdout and stderr are captured separately so stderr can be included
// in the error while stdout is returned on success.
func (r *ExecRunner) Run(ctx context.Context, args ...string) (string, error) {
	if r.Trace != nil {
		fmt.Fprintf(r.Trace, "+ %s %s\n", r.Binary, strings.Join(args, " "))
	}
	r.Logger.Debug("exec", "cmd", r.Binary, "args", args)

	// #nosec G204 -- args are constructed internally, not from user input
	cmd := exec.CommandContext(ctx, r.Binary, args...)

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return stdout.String(), &CommandError{
			Args:   args,
			Stderr: strings.TrimSpace(stderr.String()),
			Err:    err,
		}
	}
	return stdout.String(), nil
}
