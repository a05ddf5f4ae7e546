package stage

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinyorch/tinyorch/internal/model"
)

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *recordingNotifier) Notify(_ context.Context, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
}

// scriptedConfirmer answers from a fixed list, then says no.
type scriptedConfirmer struct {
	answers   []bool
	questions []string
}

func (c *scriptedConfirmer) Confirm(question string) bool {
	c.questions = append(c.questions, question)
	if len(c.answers) == 0 {
		return false
	}
	a := c.answers[0]
	c.answers = c.answers[1:]
	return a
}

// failTimes returns a Func that fails n times and then succeeds,
// counting calls.
func failTimes(n int, calls *int) Func {
	return func(context.Context) error {
		*calls++
		if *calls <= n {
			return errors.New("exit status 1")
		}
		return nil
	}
}

func newTestRunner(t *testing.T, confirmer Confirmer) (*Runner, *recordingNotifier, *[]time.Duration) {
	t.Helper()
	notifier := &recordingNotifier{}
	r := NewRunner(t.TempDir(), notifier, confirmer, nil)
	var slept []time.Duration
	r.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return r, notifier, &slept
}

// TestRun_SuccessWritesMarker verifies the marker and success message,
// and that a second run is skipped.
func TestRun_SuccessWritesMarker(t *testing.T) {
	r, notifier, _ := newTestRunner(t, nil)
	calls := 0

	err := r.Run(context.Background(), "build", failTimes(0, &calls), Options{SuccessMsg: "build ok"})
	require.NoError(t, err)
	assert.FileExists(t, r.MarkerPath("build"))
	assert.Equal(t, []string{"build ok"}, notifier.messages)

	require.NoError(t, r.Run(context.Background(), "build", failTimes(0, &calls), Options{}))
	assert.Equal(t, 1, calls, "a completed stage is skipped")
}

// TestRun_Retries verifies bounded retries with notifications and delay.
func TestRun_Retries(t *testing.T) {
	t.Run("succeeds on last attempt", func(t *testing.T) {
		r, notifier, slept := newTestRunner(t, nil)
		calls := 0

		err := r.Run(context.Background(), "fetch", failTimes(2, &calls), Options{Retries: 2, Delay: time.Second})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
		assert.Equal(t, []string{
			"fetch failed (1/3): exit status 1",
			"fetch failed (2/3): exit status 1",
		}, notifier.messages)
		assert.Equal(t, []time.Duration{time.Second, time.Second}, *slept)
	})

	t.Run("exhausted", func(t *testing.T) {
		r, _, slept := newTestRunner(t, nil)
		calls := 0

		err := r.Run(context.Background(), "fetch", failTimes(5, &calls), Options{Retries: 1, Delay: time.Second})
		require.ErrorIs(t, err, model.ErrStageFailed)
		assert.Contains(t, err.Error(), "exit status 1")
		assert.Equal(t, 2, calls)
		assert.Len(t, *slept, 1, "no delay after the final attempt")
		assert.NoFileExists(t, r.MarkerPath("fetch"))
	})
}

// TestRun_Interactive verifies operator-driven retries.
func TestRun_Interactive(t *testing.T) {
	t.Run("retry then succeed", func(t *testing.T) {
		confirmer := &scriptedConfirmer{answers: []bool{true}}
		r, notifier, _ := newTestRunner(t, confirmer)
		calls := 0

		err := r.Run(context.Background(), "burn", failTimes(1, &calls), Options{Interactive: true})
		require.NoError(t, err)
		assert.Equal(t, 2, calls)
		assert.Equal(t, []string{"burn failed (attempt 1): exit status 1"}, notifier.messages)
		assert.Equal(t, []string{"[burn] failed (attempt 1). Retry stage 'burn'?"}, confirmer.questions)
	})

	t.Run("declined", func(t *testing.T) {
		r, _, _ := newTestRunner(t, &scriptedConfirmer{})
		calls := 0

		err := r.Run(context.Background(), "burn", failTimes(10, &calls), Options{Interactive: true})
		assert.ErrorIs(t, err, model.ErrStageFailed)
		assert.Equal(t, 1, calls)
	})

	t.Run("no confirmer", func(t *testing.T) {
		r, _, _ := newTestRunner(t, nil)
		calls := 0

		err := r.Run(context.Background(), "burn", failTimes(10, &calls), Options{Interactive: true, Retries: -1})
		assert.ErrorIs(t, err, model.ErrStageFailed)
		assert.Equal(t, 1, calls)
	})
}

// TestRun_InvalidOptions verifies argument checks.
func TestRun_InvalidOptions(t *testing.T) {
	r, _, _ := newTestRunner(t, nil)
	calls := 0

	assert.ErrorIs(t, r.Run(context.Background(), "x", failTimes(0, &calls), Options{Retries: -1}), model.ErrInvalidArgument)
	assert.ErrorIs(t, r.Run(context.Background(), "", failTimes(0, &calls), Options{}), model.ErrInvalidArgument)
	assert.Zero(t, calls)
}

// TestReset verifies that removing a marker re-enables the stage.
func TestReset(t *testing.T) {
	r, _, _ := newTestRunner(t, nil)
	calls := 0

	require.NoError(t, r.Run(context.Background(), "s", failTimes(0, &calls), Options{}))
	require.NoError(t, r.Reset("s"))
	require.NoError(t, r.Reset("s"))
	assert.False(t, r.Done("s"))

	require.NoError(t, r.Run(context.Background(), "s", failTimes(0, &calls), Options{}))
	assert.Equal(t, 2, calls)
}

// TestShell verifies that shell commands stream output and report exit
// status.
func TestShell(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, Shell("echo hello", &out, &out)(context.Background()))
	assert.Equal(t, "hello\n", out.String())

	err := Shell("exit 3", &out, &out)(context.Background())
	assert.ErrorContains(t, err, "exit status 3")

	assert.Error(t, Exec(nil, &out, &out)(context.Background()))
}

// TestRunParallel verifies that all jobs run concurrently and the
// first error is returned only after every job finished.
func TestRunParallel(t *testing.T) {
	t.Run("all run concurrently", func(t *testing.T) {
		var running, peak atomic.Int32
		job := func(context.Context) error {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(50 * time.Millisecond)
			running.Add(-1)
			return nil
		}

		require.NoError(t, RunParallel(context.Background(), []Func{job, nil, job, job}))
		assert.Equal(t, int32(3), peak.Load())
	})

	t.Run("error after all finish", func(t *testing.T) {
		var finished atomic.Int32
		slow := func(context.Context) error {
			time.Sleep(50 * time.Millisecond)
			finished.Add(1)
			return nil
		}
		failing := func(context.Context) error { return errors.New("boom") }

		err := RunParallel(context.Background(), []Func{failing, slow, slow})
		assert.EqualError(t, err, "boom")
		assert.Equal(t, int32(2), finished.Load())
	})

	t.Run("empty", func(t *testing.T) {
		assert.NoError(t, RunParallel(context.Background(), nil))
		assert.Empty(t, ShellAll([]string{"", "  "}, nil, nil))
	})
}

// TestWaitForFiles verifies that the wait ends once every path exists
// and honours cancellation.
func TestWaitForFiles(t *testing.T) {
	t.Run("all present", func(t *testing.T) {
		dir := t.TempDir()
		a := filepath.Join(dir, "a.done")
		require.NoError(t, os.WriteFile(a, nil, 0o644))

		assert.NoError(t, WaitForFiles(context.Background(), []string{a, dir}, time.Hour))
		assert.NoError(t, WaitForFiles(context.Background(), nil, time.Hour))
	})

	t.Run("appears later", func(t *testing.T) {
		dir := t.TempDir()
		a := filepath.Join(dir, "a.done")
		b := filepath.Join(dir, "b.done")
		require.NoError(t, os.WriteFile(a, nil, 0o644))

		go func() {
			time.Sleep(50 * time.Millisecond)
			_ = os.WriteFile(b, nil, 0o644)
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, WaitForFiles(ctx, []string{a, b}, 10*time.Millisecond))
	})

	t.Run("context cancelled", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
		defer cancel()
		err := WaitForFiles(ctx, []string{filepath.Join(t.TempDir(), "never")}, 10*time.Millisecond)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}
