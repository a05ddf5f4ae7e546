// Package model defines the domain types for the tinyorch CLI.
//
// All entities in this package are transient representations: the
// backend resource state is queried from podman at runtime, and the
// only file-backed state is the dependent PID list kept by the refcount
// package.
package model

import (
	"errors"
	"fmt"
	"strings"
)

// BackendKind identifies how the Docker-compatible socket is provided.
// The kind is normally derived from the host OS:
//
//	darwin → BackendVM      (podman machine)
//	linux  → BackendService (podman system service)
type BackendKind string

const (
	// BackendVM provisions a shared podman machine. Dependents are tracked
	// in a reference-count file and the machine is stopped when the last
	// one exits.
	BackendVM BackendKind = "vm"

	// BackendService launches one `podman system service` per parent
	// process, bound to a socket path derived from the parent's PID.
	BackendService BackendKind = "service"
)

// String returns the string representation of BackendKind.
func (k BackendKind) String() string {
	return string(k)
}

// IsValid checks whether the BackendKind value is one of the
// predefined backends.
func (k BackendKind) IsValid() bool {
	switch k {
	case BackendVM, BackendService:
		return true
	default:
		return false
	}
}

// ParseBackendKind converts a string to a BackendKind.
// Returns an error if the string does not match any valid backend.
func ParseBackendKind(s string) (BackendKind, error) {
	kind := BackendKind(strings.ToLower(strings.TrimSpace(s)))
	if !kind.IsValid() {
		return "", fmt.Errorf("invalid backend: %q (valid: vm, service)", s)
	}
	return kind, nil
}

// BackendForOS maps a GOOS value to the backend that serves it.
// Returns ErrUnsupportedPlatform for any OS without a defined variant.
func BackendForOS(goos string) (BackendKind, error) {
	switch goos {
	case "darwin":
		return BackendVM, nil
	case "linux":
		return BackendService, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedPlatform, goos)
	}
}

// MachineState is the state string reported by
// `podman machine inspect --format {{.State}}`.
type MachineState string

const (
	// MachineRunning is the only state in which the provisioner skips
	// `podman machine start`.
	MachineRunning MachineState = "running"

	// MachineStopped is assumed for a machine that was just created.
	MachineStopped MachineState = "stopped"

	// MachineStarting is reported while the VM boots.
	MachineStarting MachineState = "starting"

	// MachineUnknown is used when the state query fails or prints nothing.
	MachineUnknown MachineState = ""
)

// String returns the string representation of MachineState.
func (s MachineState) String() string {
	if s == MachineUnknown {
		return "unknown"
	}
	return string(s)
}

// IsRunning reports whether the machine needs no start command.
func (s MachineState) IsRunning() bool {
	return s == MachineRunning
}

// Env is the connection environment handed back to a dependent process.
type Env struct {
	// DockerHost is the URI local Docker clients connect to
	// (always "unix://" + host-side socket path).
	DockerHost string `json:"DOCKER_HOST" yaml:"DOCKER_HOST"`

	// DockerSocket is the socket path used for bind-mounting or for
	// issuing commands inside the VM. For the service backend it equals
	// the host-side socket path.
	DockerSocket string `json:"DOCKER_SOCKET" yaml:"DOCKER_SOCKET"`
}

// Map returns the environment as variable name → value.
func (e Env) Map() map[string]string {
	return map[string]string{
		"DOCKER_HOST":   e.DockerHost,
		"DOCKER_SOCKET": e.DockerSocket,
	}
}

// Keys returns the variable names in their stable output order.
func (e Env) Keys() []string {
	return []string{"DOCKER_HOST", "DOCKER_SOCKET"}
}

// Sizing holds the resources requested for a new podman machine.
type Sizing struct {
	// CPUs is the number of virtual CPUs (at least 1).
	CPUs int `json:"cpus"`

	// MemoryMB is the VM memory in MiB (at least 512).
	MemoryMB int64 `json:"memoryMb"`

	// DiskGB is the VM disk size in GiB (at least 10).
	DiskGB int64 `json:"diskGb"`
}

// String returns a compact human-readable representation.
func (s Sizing) String() string {
	return fmt.Sprintf("%d cpus, %d MB memory, %d GB disk", s.CPUs, s.MemoryMB, s.DiskGB)
}

// Sentinel errors classify the hard failures of the Docker-host subsystem.
// They are wrapped with detail via fmt.Errorf("%w") and matched with
// errors.Is at the CLI boundary.
var (
	// ErrInvalidArgument reports a non-positive PID passed to provisioning
	// or to a watcher entry point.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUnsupportedPlatform reports provisioning on an OS with no
	// backend variant.
	ErrUnsupportedPlatform = errors.New("unsupported platform")

	// ErrProvision reports that a required discovery value could not be
	// obtained or that the socket never became ready.
	ErrProvision = errors.New("provisioning failed")

	// ErrStageFailed reports a stage that failed on every attempt.
	ErrStageFailed = errors.New("stage failed")
)

// ExitCode defines standard CLI exit codes.
// These codes allow calling scripts to distinguish why a helper failed.
type ExitCode int

const (
	// ExitSuccess indicates the command completed successfully.
	ExitSuccess ExitCode = 0

	// ExitGeneralError indicates an unspecified error occurred.
	ExitGeneralError ExitCode = 1

	// ExitInvalidArgument indicates a bad PID or flag value.
	ExitInvalidArgument ExitCode = 2

	// ExitUnsupportedPlatform indicates no backend exists for this OS.
	ExitUnsupportedPlatform ExitCode = 3

	// ExitProvisionFailed indicates the Docker host could not be provided.
	ExitProvisionFailed ExitCode = 4

	// ExitStageFailed indicates a `run` stage exhausted its attempts.
	ExitStageFailed ExitCode = 5
)

// ExitCodeFor maps an error to the exit code the CLI should use,
// following the sentinel errors above.
func ExitCodeFor(err error) ExitCode {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, ErrInvalidArgument):
		return ExitInvalidArgument
	case errors.Is(err, ErrUnsupportedPlatform):
		return ExitUnsupportedPlatform
	case errors.Is(err, ErrProvision):
		return ExitProvisionFailed
	case errors.Is(err, ErrStageFailed):
		return ExitStageFailed
	default:
		return ExitGeneralError
	}
}

// CLIError is a custom error type that carries an exit code.
// This allows the CLI layer to translate domain errors into
// appropriate process exit codes.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error satisfies the error interface. It returns the human-readable
// error message, optionally including the underlying error.
func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a new CLIError with the given exit code and message.
func NewCLIError(code ExitCode, message string) *CLIError {
	return &CLIError{Code: code, Message: message}
}

// WrapCLIError creates a new CLIError that wraps an existing error.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}
