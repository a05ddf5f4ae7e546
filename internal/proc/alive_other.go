//go:build !unix

package proc

import (
	"errors"
	"syscall"
)

var errUnsupported = errors.New("process signals are not supported on this platform")

// IsAlive always reports false on platforms without kill(2).
func IsAlive(pid int) bool {
	return false
}

// Signal is not supported on this platform.
func Signal(pid int, sig syscall.Signal) error {
	return errUnsupported
}

func detachAttr() *syscall.SysProcAttr {
	return nil
}
