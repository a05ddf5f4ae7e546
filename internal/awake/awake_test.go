//go:build unix

package awake

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// installed builds a lookPath that only finds the named tools.
func installed(names ...string) func(string) (string, error) {
	return func(name string) (string, error) {
		for _, n := range names {
			if n == name {
				return "/usr/bin/" + name, nil
			}
		}
		return "", errors.New("not found")
	}
}

// TestCommand verifies inhibitor selection per platform.
func TestCommand(t *testing.T) {
	t.Run("caffeinate", func(t *testing.T) {
		argv, ok := Command("darwin", 42, installed("caffeinate"))
		require.True(t, ok)
		assert.Equal(t, []string{"caffeinate", "-i", "-w", "42"}, argv)
	})

	t.Run("systemd-inhibit on linux", func(t *testing.T) {
		argv, ok := Command("linux", 42, installed("systemd-inhibit"))
		require.True(t, ok)
		assert.Equal(t, "systemd-inhibit", argv[0])
		assert.Contains(t, argv, "--pid=42")
	})

	t.Run("systemd-inhibit ignored elsewhere", func(t *testing.T) {
		_, ok := Command("freebsd", 42, installed("systemd-inhibit"))
		assert.False(t, ok)
	})

	t.Run("powershell", func(t *testing.T) {
		argv, ok := Command("windows", 42, installed("powershell.exe"))
		require.True(t, ok)
		assert.Equal(t, "42", argv[len(argv)-1])
	})

	t.Run("nothing installed", func(t *testing.T) {
		_, ok := Command("linux", 42, installed())
		assert.False(t, ok)
	})
}

// newSleepHandle returns a Handle whose inhibitor is a plain sleep.
func newSleepHandle() *Handle {
	h := New(nil)
	h.command = func(string, int, func(string) (string, error)) ([]string, bool) {
		return []string{"sleep", "30"}, true
	}
	return h
}

// TestHandle_Lifecycle verifies idempotent Start and Release.
func TestHandle_Lifecycle(t *testing.T) {
	h := newSleepHandle()
	t.Cleanup(h.Release)

	assert.False(t, h.Active())
	require.NoError(t, h.Start(os.Getpid()))
	require.True(t, h.Active())

	first := h.Pid()
	require.NoError(t, h.Start(os.Getpid()))
	assert.Equal(t, first, h.Pid(), "a live inhibitor is reused")
	assert.Equal(t, os.Getpid(), h.Target())

	h.Release()
	assert.False(t, h.Active())
	assert.Zero(t, h.Pid())

	// Releasing twice is harmless.
	h.Release()
}

// TestHandle_Independent verifies that two handles do not share state.
func TestHandle_Independent(t *testing.T) {
	a, b := newSleepHandle(), newSleepHandle()
	t.Cleanup(a.Release)
	t.Cleanup(b.Release)

	require.NoError(t, a.Start(os.Getpid()))
	assert.True(t, a.Active())
	assert.False(t, b.Active())
}

// TestHandle_NoInhibitor verifies the quiet no-op.
func TestHandle_NoInhibitor(t *testing.T) {
	h := New(nil)
	h.lookPath = installed()

	require.NoError(t, h.Start(os.Getpid()))
	assert.False(t, h.Active())
	assert.Error(t, h.Start(0))
}
