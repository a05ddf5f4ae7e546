//go:build unix

package podman_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinyorch/tinyorch/internal/podman"
)

// TestExecRunner_Trace verifies the "+ podman ..." echo and that stdout
// is returned.
func TestExecRunner_Trace(t *testing.T) {
	var trace bytes.Buffer
	r := podman.NewExecRunner(nil)
	r.Binary = "echo"
	r.Trace = &trace

	out, err := r.Run(context.Background(), "machine", "list")
	require.NoError(t, err)
	assert.Equal(t, "machine list\n", out)
	assert.Equal(t, "+ echo machine list\n", trace.String())
}

// TestExecRunner_Failure verifies that a failing command carries its
// stderr.
func TestExecRunner_Failure(t *testing.T) {
	r := podman.NewExecRunner(nil)
	r.Binary = "sh"

	_, err := r.Run(context.Background(), "-c", "echo 'no such machine' >&2; exit 125")
	require.Error(t, err)

	var cmdErr *podman.CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, "no such machine", cmdErr.Stderr)
}
