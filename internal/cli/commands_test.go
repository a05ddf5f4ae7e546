//go:build unix

package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinyorch/tinyorch/internal/model"
)

// cliEnv points tinyorch at a fresh home and marker dir with
// notifications disabled, and returns the marker dir.
func cliEnv(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	markers := t.TempDir()
	t.Setenv("TINYORCH_HOME", home)
	t.Setenv("RUN_DIR", markers)
	t.Setenv("NOTIFY", "")
	t.Setenv("TINYORCH_BACKEND", "")
	t.Setenv("TINYORCH_METRICS_DIR", "")
	return markers
}

// execute runs the root command with args and returns stdout and the
// exit code reportError would use.
func execute(t *testing.T, args ...string) (string, model.ExitCode) {
	t.Helper()
	return executeContext(t, context.Background(), args...)
}

// executeContext is execute with an explicit command context.
func executeContext(t *testing.T, ctx context.Context, args ...string) (string, model.ExitCode) {
	t.Helper()
	root := NewRootCommand()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return out.String(), model.ExitSuccess
	}
	return out.String(), reportError(&errOut, err)
}

// TestRun_WritesMarkerAndSkips verifies that a successful stage writes
// its marker and that a second run of the same stage does nothing.
func TestRun_WritesMarkerAndSkips(t *testing.T) {
	markers := cliEnv(t)
	flag := filepath.Join(t.TempDir(), "ran")

	_, code := execute(t, "run", "build", "--", "touch", flag)
	require.Equal(t, model.ExitSuccess, code)
	assert.FileExists(t, filepath.Join(markers, ".build.done"))
	assert.FileExists(t, flag)

	require.NoError(t, os.Remove(flag))
	_, code = execute(t, "run", "build", "--", "touch", flag)
	require.Equal(t, model.ExitSuccess, code)
	assert.NoFileExists(t, flag, "a completed stage must not run again")

	_, code = execute(t, "run", "build", "--force", "--", "touch", flag)
	require.Equal(t, model.ExitSuccess, code)
	assert.FileExists(t, flag, "--force reruns a completed stage")
}

// TestRun_Failure verifies retries and the stage-failed exit code.
func TestRun_Failure(t *testing.T) {
	markers := cliEnv(t)
	counter := filepath.Join(t.TempDir(), "attempts")

	_, code := execute(t, "run", "flaky", "--retries", "2", "--",
		"sh", "-c", "echo x >> "+counter+"; exit 1")
	assert.Equal(t, model.ExitStageFailed, code)
	assert.NoFileExists(t, filepath.Join(markers, ".flaky.done"))

	data, err := os.ReadFile(counter)
	require.NoError(t, err)
	assert.Equal(t, "x\nx\nx\n", string(data))
}

// TestRun_InvalidArguments verifies argument validation.
func TestRun_InvalidArguments(t *testing.T) {
	cliEnv(t)

	_, code := execute(t, "run", "build", "--retries", "-1", "--", "true")
	assert.Equal(t, model.ExitInvalidArgument, code)

	_, code = execute(t, "run", "build")
	assert.Equal(t, model.ExitGeneralError, code, "missing command is a usage error")
}

// TestRunParallel verifies that all commands run and a failure is
// reported after the others finish.
func TestRunParallel(t *testing.T) {
	cliEnv(t)
	dir := t.TempDir()
	a, b := filepath.Join(dir, "a"), filepath.Join(dir, "b")

	_, code := execute(t, "run-parallel", "-c", "touch "+a, "touch "+b)
	require.Equal(t, model.ExitSuccess, code)
	assert.FileExists(t, a)
	assert.FileExists(t, b)

	c := filepath.Join(dir, "c")
	_, code = execute(t, "run-parallel", "-c", "exit 3", "-c", "sleep 0.2; touch "+c)
	assert.Equal(t, model.ExitGeneralError, code)
	assert.FileExists(t, c, "a failing command must not cancel the others")

	_, code = execute(t, "run-parallel", "-c", "  ")
	assert.Equal(t, model.ExitInvalidArgument, code)
}

// TestNotify_NoURLs verifies that notify without destinations succeeds.
func TestNotify_NoURLs(t *testing.T) {
	cliEnv(t)

	_, code := execute(t, "notify", "hello", "--title", "job")
	assert.Equal(t, model.ExitSuccess, code)
}

// TestStatus_Empty verifies status on a fresh home in both formats.
func TestStatus_Empty(t *testing.T) {
	cliEnv(t)

	out, code := execute(t, "status")
	require.Equal(t, model.ExitSuccess, code)
	assert.Equal(t, "No docker hosts are being tracked.\n", out)

	out, code = execute(t, "status", "--json")
	require.Equal(t, model.ExitSuccess, code)
	assert.JSONEq(t, `[]`, out)
}

// TestEnsureDockerHost_InvalidInput verifies that bad input is rejected
// before anything is provisioned.
func TestEnsureDockerHost_InvalidInput(t *testing.T) {
	cliEnv(t)

	_, code := execute(t, "ensure-docker-host", "0")
	assert.Equal(t, model.ExitInvalidArgument, code)

	_, code = execute(t, "ensure-docker-host", "4242", "--format", "xml")
	assert.Equal(t, model.ExitInvalidArgument, code)
}

// TestWatch_InvalidPID verifies the hidden watcher entry points.
func TestWatch_InvalidPID(t *testing.T) {
	cliEnv(t)

	_, code := execute(t, "watch", "vm", "tinyorch", "0", "/tmp/state")
	assert.Equal(t, model.ExitInvalidArgument, code)

	_, code = execute(t, "watch", "service", "4242", "x", "/tmp/s.sock")
	assert.Equal(t, model.ExitInvalidArgument, code)
}

// TestWatchVM_IgnoresCommandCancel verifies that a cancelled command
// context does not skip the teardown once the dependent is gone.
func TestWatchVM_IgnoresCommandCancel(t *testing.T) {
	cliEnv(t)
	dir := t.TempDir()
	calls := filepath.Join(dir, "calls")
	script := filepath.Join(dir, "podman")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\necho \"$@\" >> "+calls+"\n"), 0o755))
	t.Setenv("TINYORCH_PODMAN", script)

	dead := exec.Command("true")
	require.NoError(t, dead.Run())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, code := executeContext(t, ctx, "watch", "vm", "tinyorch",
		strconv.Itoa(dead.Process.Pid), filepath.Join(dir, "tinyorch"))
	require.Equal(t, model.ExitSuccess, code)

	data, err := os.ReadFile(calls)
	require.NoError(t, err)
	assert.Contains(t, string(data), "machine stop tinyorch")
}

// TestWaitFor verifies that wait-for returns once the files exist and
// fails when its context ends first.
func TestWaitFor(t *testing.T) {
	markers := cliEnv(t)
	ready := filepath.Join(markers, ".fetch.done")
	require.NoError(t, os.WriteFile(ready, nil, 0o644))

	_, code := execute(t, "wait-for", "--interval", "10ms", ready)
	assert.Equal(t, model.ExitSuccess, code)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, code = executeContext(t, ctx, "wait-for", "--interval", "10ms", filepath.Join(markers, ".never.done"))
	assert.Equal(t, model.ExitGeneralError, code)

	_, code = execute(t, "wait-for")
	assert.Equal(t, model.ExitGeneralError, code)
}

// TestBurnISO_Missing verifies that a missing image is an error.
func TestBurnISO_Missing(t *testing.T) {
	cliEnv(t)

	_, code := execute(t, "burn-iso", filepath.Join(t.TempDir(), "missing.iso"))
	assert.Equal(t, model.ExitGeneralError, code)
}

// TestConfig_Invalid verifies that a broken config file fails cleanly.
func TestConfig_Invalid(t *testing.T) {
	cliEnv(t)
	file := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(file, []byte("backend: docker\n"), 0o644))

	root := NewRootCommand()
	root.SetArgs([]string{"--config", file, "status"})
	root.SetOut(&bytes.Buffer{})
	err := root.ExecuteContext(ctx)
	require.Error(t, err)

	var cliErr *model.CLIError
	require.True(t, errors.As(err, &cliErr))
	assert.Equal(t, "failed to load configuration", cliErr.Message)
}
