//go:build unix

package proc

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// IsAlive reports whether a process with the given PID exists.
// A pid <= 0 is never alive; kill(2) would address a process group.
func IsAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	return unix.Kill(pid, 0) == nil
}

// Signal sends sig to pid. An already-exited process yields an error
// that callers performing best-effort cleanup are expected to ignore.
func Signal(pid int, sig syscall.Signal) error {
	if pid <= 0 {
		return unix.ESRCH
	}
	return unix.Kill(pid, sig)
}

// detachAttr places the child in a new session so it outlives the
// launching process and does not receive its terminal's signals.
func detachAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setsid: true}
}
