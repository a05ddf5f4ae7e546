package proc

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"
)

// Process is a handle to a detached child started by StartDetached.
//
// The launching process reaps the child in the background, so a child
// that exits while its launcher is still running does not linger as a
// zombie (which kill(pid, 0) would still report as alive).
type Process struct {
	// Pid is the operating system process ID of the child.
	Pid int

	done chan struct{}
}

// Done returns a channel that is closed once the child has exited and
// been reaped by this process.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// startOptions collects the optional settings of StartDetached.
type startOptions struct {
	output io.Writer
}

// StartOption configures StartDetached.
type StartOption func(*startOptions)

// WithOutput sends the child's stdout and stderr to w.
// Without it both are discarded.
func WithOutput(w io.Writer) StartOption {
	return func(o *startOptions) {
		o.output = w
	}
}

// StartDetached launches argv in a new session with stdin closed.
// The child is not tied to any context: it keeps running after the
// caller returns or exits.
func StartDetached(argv []string, opts ...StartOption) (*Process, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("start detached: empty command")
	}

	o := &startOptions{}
	for _, opt := range opts {
		opt(o)
	}

	// #nosec G204 -- argv is built by this program, not taken from a shell
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdin = nil
	cmd.Stdout = o.output
	cmd.Stderr = o.output
	cmd.SysProcAttr = detachAttr()

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", argv[0], err)
	}

	p := &Process{Pid: cmd.Process.Pid, done: make(chan struct{})}
	go func() {
		_ = cmd.Wait()
		close(p.done)
	}()
	return p, nil
}

// WaitExit blocks until pid is no longer alive, checking every interval.
// It returns ctx.Err() if the context ends first. A nil alive uses
// IsAlive.
func WaitExit(ctx context.Context, pid int, interval time.Duration, alive func(int) bool) error {
	if alive == nil {
		alive = IsAlive
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for alive(pid) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// TerminateOptions controls the escalation performed by Terminate.
type TerminateOptions struct {
	// Signals are sent in order, each followed by a wait of Grace,
	// stopping as soon as the process is gone.
	Signals []syscall.Signal

	// Grace is how long to wait after each polite signal.
	Grace time.Duration

	// PollInterval is how often liveness is checked while waiting.
	PollInterval time.Duration
}

// DefaultTerminateOptions sends SIGTERM then SIGINT, one second apart.
func DefaultTerminateOptions() TerminateOptions {
	return TerminateOptions{
		Signals:      []syscall.Signal{syscall.SIGTERM, syscall.SIGINT},
		Grace:        time.Second,
		PollInterval: 50 * time.Millisecond,
	}
}

// Terminate stops pid politely and escalates to SIGKILL only if it is
// still alive after every polite signal. Signal failures are swallowed:
// a process that is already gone is the desired outcome.
//
// It reports whether the process is gone on return.
func Terminate(pid int, opts TerminateOptions) bool {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 50 * time.Millisecond
	}

	for _, sig := range opts.Signals {
		if err := Signal(pid, sig); err != nil {
			// Nothing left to signal.
			break
		}
		if waitGone(pid, opts.Grace, opts.PollInterval) {
			return true
		}
	}

	if IsAlive(pid) {
		_ = Signal(pid, syscall.SIGKILL)
		return waitGone(pid, opts.Grace, opts.PollInterval)
	}
	return true
}

// waitGone polls until pid disappears or d elapses.
func waitGone(pid int, d, interval time.Duration) bool {
	deadline := time.Now().Add(d)
	for {
		if !IsAlive(pid) {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(interval)
	}
}

// Executable returns the path of the running binary, used to re-launch
// this program as a detached watcher.
func Executable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("locate own executable: %w", err)
	}
	return exe, nil
}
