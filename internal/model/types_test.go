package model

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestBackendKind_IsValid checks that only defined backends pass validation.
func TestBackendKind_IsValid(t *testing.T) {
	assert.True(t, BackendVM.IsValid())
	assert.True(t, BackendService.IsValid())
	assert.False(t, BackendKind("lima").IsValid())
	assert.False(t, BackendKind("").IsValid())
}

// TestParseBackendKind verifies string-to-backend conversion,
// including case normalization and error cases.
func TestParseBackendKind(t *testing.T) {
	tests := []struct {
		input    string
		expected BackendKind
		hasError bool
	}{
		{"vm", BackendVM, false},
		{"service", BackendService, false},
		{"VM", BackendVM, false},             // case insensitive
		{" service ", BackendService, false}, // surrounding blanks
		{"wsl", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result, err := ParseBackendKind(tt.input)
			if tt.hasError {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expected, result)
			}
		})
	}
}

// TestBackendForOS verifies the OS → backend mapping and that any other
// OS is reported as unsupported.
func TestBackendForOS(t *testing.T) {
	kind, err := BackendForOS("darwin")
	require.NoError(t, err)
	assert.Equal(t, BackendVM, kind)

	kind, err = BackendForOS("linux")
	require.NoError(t, err)
	assert.Equal(t, BackendService, kind)

	for _, goos := range []string{"windows", "freebsd", ""} {
		_, err := BackendForOS(goos)
		assert.ErrorIs(t, err, ErrUnsupportedPlatform, "GOOS %q", goos)
	}
}

// TestMachineState verifies the running check and the display string of
// an unknown state.
func TestMachineState(t *testing.T) {
	assert.True(t, MachineRunning.IsRunning())
	assert.False(t, MachineStopped.IsRunning())
	assert.False(t, MachineUnknown.IsRunning())
	assert.Equal(t, "unknown", MachineUnknown.String())
	assert.Equal(t, "stopped", MachineStopped.String())
}

// TestEnv_Map verifies the variable names handed back to dependents.
func TestEnv_Map(t *testing.T) {
	env := Env{DockerHost: "unix:///tmp/a.sock", DockerSocket: "/tmp/a.sock"}
	assert.Equal(t, map[string]string{
		"DOCKER_HOST":   "unix:///tmp/a.sock",
		"DOCKER_SOCKET": "/tmp/a.sock",
	}, env.Map())
	assert.Equal(t, []string{"DOCKER_HOST", "DOCKER_SOCKET"}, env.Keys())
}

// TestExitCodeFor verifies that wrapped sentinel errors map to their
// dedicated exit codes.
func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ExitCode
	}{
		{"nil", nil, ExitSuccess},
		{"invalid argument", fmt.Errorf("pid -1: %w", ErrInvalidArgument), ExitInvalidArgument},
		{"unsupported", fmt.Errorf("%w: plan9", ErrUnsupportedPlatform), ExitUnsupportedPlatform},
		{"provision", fmt.Errorf("%w: no socket", ErrProvision), ExitProvisionFailed},
		{"stage", fmt.Errorf("%w: build", ErrStageFailed), ExitStageFailed},
		{"other", errors.New("boom"), ExitGeneralError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCodeFor(tt.err))
		})
	}
}

// TestCLIError verifies the custom error type used for exit code mapping.
func TestCLIError(t *testing.T) {
	t.Run("simple error", func(t *testing.T) {
		err := NewCLIError(ExitProvisionFailed, "socket not created")
		assert.Equal(t, ExitProvisionFailed, err.Code)
		assert.Equal(t, "socket not created", err.Error())
		assert.Nil(t, err.Unwrap())
	})

	t.Run("wrapped error", func(t *testing.T) {
		inner := errors.New("connection refused")
		err := WrapCLIError(ExitProvisionFailed, "socket not created", inner)
		assert.Equal(t, ExitProvisionFailed, err.Code)
		assert.Contains(t, err.Error(), "connection refused")
		assert.Equal(t, inner, err.Unwrap())
	})

	t.Run("errors.Is chain", func(t *testing.T) {
		err := WrapCLIError(ExitProvisionFailed, "ensure failed", fmt.Errorf("x: %w", ErrProvision))
		assert.True(t, errors.Is(err, ErrProvision))
	})
}
