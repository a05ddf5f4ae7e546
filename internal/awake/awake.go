// Package awake keeps the host from sleeping while a process runs, by
// launching the platform's sleep inhibitor bound to that process.
package awake

import (
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
	"strconv"
	"sync"

	"github.com/tinyorch/tinyorch/internal/proc"
)

// powershellLoop re-asserts ES_CONTINUOUS|ES_SYSTEM_REQUIRED every 30s
// until the target process is gone.
const powershellLoop = `param($p)
Add-Type @"
using System;
using System.Runtime.InteropServices;
public static class A {
    [DllImport("kernel32.dll")]
    public static extern uint SetThreadExecutionState(uint e);
}
"@
$f=0x80000002
while(Get-Process -Id $p -ErrorAction SilentlyContinue){
    [A]::SetThreadExecutionState($f)|Out-Null
    Start-Sleep 30
}`

// Command returns the inhibitor command line for pid on goos, using
// lookPath to check which tools are installed. It returns false when no
// inhibitor is available.
//
// Every variant exits on its own once pid is gone.
func Command(goos string, pid int, lookPath func(string) (string, error)) ([]string, bool) {
	has := func(name string) bool {
		_, err := lookPath(name)
		return err == nil
	}
	p := strconv.Itoa(pid)

	switch {
	case has("caffeinate"):
		return []string{"caffeinate", "-i", "-w", p}, true
	case goos == "linux" && has("systemd-inhibit"):
		return []string{
			"systemd-inhibit", "--what=sleep", "--mode=block",
			"--who=tinyorch", "--why=job running",
			"tail", "--pid=" + p, "-f", "/dev/null",
		}, true
	case has("powershell.exe"):
		return []string{"powershell.exe", "-WindowStyle", "Hidden", "-Command", powershellLoop, "--", p}, true
	default:
		return nil, false
	}
}

// Handle owns at most one inhibitor process. It replaces a process-wide
// "current inhibitor" variable: each caller keeps its own Handle.
type Handle struct {
	mu     sync.Mutex
	child  *proc.Process
	target int

	logger   *slog.Logger
	goos     string
	lookPath func(string) (string, error)
	command  func(goos string, pid int, lookPath func(string) (string, error)) ([]string, bool)
}

// New returns an idle Handle for the current platform.
func New(logger *slog.Logger) *Handle {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handle{logger: logger, goos: runtime.GOOS, lookPath: exec.LookPath, command: Command}
}

// Start launches an inhibitor bound to target. It is a no-op while a
// previously started inhibitor is still running. When no inhibitor
// exists on this host Start logs and returns nil.
func (h *Handle) Start(target int) error {
	if target <= 0 {
		return fmt.Errorf("keep awake: pid %d must be positive", target)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.activeLocked() {
		return nil
	}

	argv, ok := h.command(h.goos, target, h.lookPath)
	if !ok {
		h.logger.Warn("no sleep inhibitor available", "os", h.goos)
		return nil
	}

	h.logger.Debug("starting sleep inhibitor", "argv", argv[0], "pid", target)
	child, err := proc.StartDetached(argv)
	if err != nil {
		return fmt.Errorf("keep awake: %w", err)
	}
	h.child, h.target = child, target
	return nil
}

func (h *Handle) activeLocked() bool {
	if h.child == nil {
		return false
	}
	select {
	case <-h.child.Done():
		return false
	default:
		return true
	}
}

// Active reports whether the inhibitor is running.
func (h *Handle) Active() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.activeLocked()
}

// Pid returns the inhibitor's PID, or 0 when idle.
func (h *Handle) Pid() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.activeLocked() {
		return 0
	}
	return h.child.Pid
}

// Target returns the PID the inhibitor is bound to.
func (h *Handle) Target() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.target
}

// Release stops the inhibitor, if any.
func (h *Handle) Release() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.activeLocked() {
		h.child = nil
		return
	}
	proc.Terminate(h.child.Pid, proc.DefaultTerminateOptions())
	<-h.child.Done()
	h.child = nil
}
