package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLevel verifies the level selection.
func TestLevel(t *testing.T) {
	assert.Equal(t, slog.LevelInfo, Options{}.Level())
	assert.Equal(t, slog.LevelDebug, Options{Verbose: true}.Level())
	assert.Equal(t, slog.LevelWarn, Options{Quiet: true}.Level())
	assert.Equal(t, slog.LevelDebug, Options{Verbose: true, Quiet: true}.Level())
}

// TestNew_Text verifies that debug lines only appear when verbose.
func TestNew_Text(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, Options{}).Debug("hidden")
	assert.Empty(t, buf.String())

	New(&buf, Options{Verbose: true}).Debug("shown", "pid", 1001)
	assert.Contains(t, buf.String(), "msg=shown pid=1001")
}

// TestNew_JSON verifies the JSON handler output.
func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, Options{JSON: true}).Info("docker host ready", "backend", "service")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "docker host ready", line["msg"])
	assert.Equal(t, "service", line["backend"])
}

// TestDiscard verifies that nothing is emitted.
func TestDiscard(t *testing.T) {
	assert.False(t, Discard().Enabled(context.Background(), slog.LevelError))
}
