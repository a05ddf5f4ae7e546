package dockerhost

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/tinyorch/tinyorch/internal/proc"
)

// VMWatch identifies the teardown of one dependent of the shared VM.
type VMWatch struct {
	Machine   string
	ParentPID int
	StateFile string
}

// Args returns the `tinyorch` arguments that run this watch.
func (w VMWatch) Args() []string {
	return []string{"watch", "vm", w.Machine, strconv.Itoa(w.ParentPID), w.StateFile}
}

// ServiceWatch identifies the teardown of one per-dependent service.
type ServiceWatch struct {
	ParentPID  int
	ServicePID int
	Socket     string
}

// Args returns the `tinyorch` arguments that run this watch.
func (w ServiceWatch) Args() []string {
	return []string{"watch", "service", strconv.Itoa(w.ParentPID), strconv.Itoa(w.ServicePID), w.Socket}
}

// Launcher starts the watcher for a freshly registered dependent.
// The watcher must outlive the provisioning process.
type Launcher interface {
	LaunchVM(w VMWatch) error
	LaunchService(w ServiceWatch) error
}

// ProcessLauncher re-executes the tinyorch binary as a detached
// `tinyorch watch ...` process.
type ProcessLauncher struct {
	// Executable is the tinyorch binary to run.
	Executable string

	// ExtraArgs are appended after the watch arguments, e.g. a
	// --config flag so the watcher sees the same configuration.
	ExtraArgs []string

	// LogDir receives one "watch-<parent pid>.log" per watcher.
	// Empty discards watcher output.
	LogDir string
}

// NewProcessLauncher returns a launcher for the running binary.
func NewProcessLauncher(logDir string, extraArgs ...string) (*ProcessLauncher, error) {
	exe, err := proc.Executable()
	if err != nil {
		return nil, err
	}
	return &ProcessLauncher{Executable: exe, ExtraArgs: extraArgs, LogDir: logDir}, nil
}

// LaunchVM implements Launcher.
func (l *ProcessLauncher) LaunchVM(w VMWatch) error {
	return l.launch(w.ParentPID, w.Args())
}

// LaunchService implements Launcher.
func (l *ProcessLauncher) LaunchService(w ServiceWatch) error {
	return l.launch(w.ParentPID, w.Args())
}

func (l *ProcessLauncher) launch(parentPID int, args []string) error {
	argv := append([]string{l.Executable}, args...)
	argv = append(argv, l.ExtraArgs...)

	var opts []proc.StartOption
	if l.LogDir != "" {
		if err := os.MkdirAll(l.LogDir, 0o755); err != nil {
			return fmt.Errorf("create watcher log dir: %w", err)
		}
		logPath := filepath.Join(l.LogDir, fmt.Sprintf("watch-%d.log", parentPID))
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open watcher log: %w", err)
		}
		// The child holds its own descriptor once started.
		defer func() { _ = f.Close() }()
		opts = append(opts, proc.WithOutput(f))
	}

	if _, err := proc.StartDetached(argv, opts...); err != nil {
		return fmt.Errorf("spawn watcher: %w", err)
	}
	return nil
}
