// Package proc provides the process primitives the Docker-host subsystem
// is built on: PID liveness checks, detached process launch, polling for
// process exit, and graceful-then-forceful termination.
//
// Liveness is determined with a zero signal (kill(pid, 0)). Any failure,
// including EPERM for a process owned by another user, is reported as
// "not alive".
package proc
