package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinyorch/tinyorch/internal/docker"
)

type fakeRunner struct {
	runs   []docker.RunOptions
	result docker.RunResult
	err    error
}

func (f *fakeRunner) RunEphemeral(_ context.Context, opts docker.RunOptions) (docker.RunResult, error) {
	f.runs = append(f.runs, opts)
	return f.result, f.err
}

// TestParseURLs verifies comma splitting with blanks dropped.
func TestParseURLs(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{in: "", want: nil},
		{in: " , ,", want: nil},
		{in: "tgram://a/b", want: []string{"tgram://a/b"}},
		{in: "mailto://x@y, ,slack://t/u ", want: []string{"mailto://x@y", "slack://t/u"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseURLs(tt.in))
		})
	}
}

// TestSend_Command verifies the apprise command line.
func TestSend_Command(t *testing.T) {
	runner := &fakeRunner{}
	n := New(runner, "", []string{"tgram://bot/chat", "json://localhost"}, nil)

	require.NoError(t, n.Send(context.Background(), "", "backup done"))

	require.Len(t, runner.runs, 1)
	run := runner.runs[0]
	assert.Equal(t, DefaultImage, run.Image)
	assert.Equal(t, "notify", run.Purpose)
	assert.Equal(t, []string{"apprise", "-t", "job", "-b", "backup done", "tgram://bot/chat", "json://localhost"}, run.Cmd)
}

// TestSend_NoURLs verifies that delivery is skipped without URLs.
func TestSend_NoURLs(t *testing.T) {
	runner := &fakeRunner{}
	n := New(runner, "nightly", nil, nil)

	assert.False(t, n.Enabled())
	require.NoError(t, n.Send(context.Background(), "", "ignored"))
	assert.Empty(t, runner.runs)
}

// TestSend_Failures verifies that runner errors and non-zero exits are
// reported by Send but swallowed by Notify.
func TestSend_Failures(t *testing.T) {
	t.Run("runner error", func(t *testing.T) {
		n := New(&fakeRunner{err: errors.New("daemon down")}, "job", []string{"json://x"}, nil)
		assert.ErrorContains(t, n.Send(context.Background(), "", "m"), "daemon down")
		assert.NotPanics(t, func() { n.Notify(context.Background(), "m") })
	})

	t.Run("non-zero exit", func(t *testing.T) {
		n := New(&fakeRunner{result: docker.RunResult{ExitCode: 1, Output: "bad url"}}, "job", []string{"bad://"}, nil)
		err := n.Send(context.Background(), "", "m")
		assert.ErrorContains(t, err, "status 1: bad url")
	})
}

// TestNotify_Nil verifies that a nil notifier is usable.
func TestNotify_Nil(t *testing.T) {
	var n *Notifier
	assert.NotPanics(t, func() { n.Notify(context.Background(), "m") })
	assert.False(t, n.Enabled())
}
