// Package stage runs shell steps with retries and a completion marker,
// and fans independent steps out in parallel.
//
// A stage named "build" that succeeds leaves "<marker dir>/.build.done"
// behind; every later run of the same stage is skipped until the marker
// is removed, which makes multi-stage scripts resumable.
package stage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/tinyorch/tinyorch/internal/metrics"
	"github.com/tinyorch/tinyorch/internal/model"
)

// Func is one unit of work.
type Func func(ctx context.Context) error

// Notifier receives failure and success messages.
type Notifier interface {
	Notify(ctx context.Context, message string)
}

// Confirmer asks the operator whether to retry.
type Confirmer interface {
	Confirm(question string) bool
}

// Options controls a single Run.
type Options struct {
	// Retries is the number of extra attempts after the first failure.
	// Ignored when Interactive is set.
	Retries int

	// Interactive retries until the operator declines. Without a
	// terminal the first failure is final.
	Interactive bool

	// Delay is the pause between attempts.
	Delay time.Duration

	// SuccessMsg, when set, is notified after the stage succeeds.
	SuccessMsg string
}

// Runner executes stages.
type Runner struct {
	// MarkerDir holds the ".<stage>.done" files.
	MarkerDir string

	Notifier  Notifier
	Confirmer Confirmer
	Metrics   *metrics.Recorder
	Logger    *slog.Logger

	// sleep waits between attempts; tests replace it.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRunner returns a Runner writing markers to markerDir.
func NewRunner(markerDir string, notifier Notifier, confirmer Confirmer, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		MarkerDir: markerDir,
		Notifier:  notifier,
		Confirmer: confirmer,
		Logger:    logger,
		sleep:     sleepCtx,
	}
}

// MarkerPath returns the completion marker of stage.
func (r *Runner) MarkerPath(stage string) string {
	return filepath.Join(r.MarkerDir, "."+stage+".done")
}

// Done reports whether stage has already completed.
func (r *Runner) Done(stage string) bool {
	_, err := os.Stat(r.MarkerPath(stage))
	return err == nil
}

// Run executes fn for stage unless its marker exists. On failure it
// retries per opts, notifying each failed attempt; on success it writes
// the marker. When every attempt fails the last error is returned,
// wrapped with model.ErrStageFailed.
func (r *Runner) Run(ctx context.Context, stage string, fn Func, opts Options) error {
	if stage == "" {
		return fmt.Errorf("%w: empty stage name", model.ErrInvalidArgument)
	}
	if !opts.Interactive && opts.Retries < 0 {
		return fmt.Errorf("%w: retries must be >= 0, got %d", model.ErrInvalidArgument, opts.Retries)
	}

	marker := r.MarkerPath(stage)
	if r.Done(stage) {
		r.Logger.Info("stage already done, skipping", "stage", stage, "marker", marker)
		return nil
	}

	maxAttempts := opts.Retries + 1
	var lastErr error

	for attempt := 1; opts.Interactive || attempt <= maxAttempts; attempt++ {
		r.Logger.Debug("running stage", "stage", stage, "attempt", attempt)
		err := fn(ctx)
		r.Metrics.StageAttempt(stage, err)

		if err == nil {
			if err := touch(marker); err != nil {
				return fmt.Errorf("write marker for stage %q: %w", stage, err)
			}
			r.Logger.Info("stage done", "stage", stage, "attempt", attempt)
			if opts.SuccessMsg != "" {
				r.notify(ctx, opts.SuccessMsg)
			}
			return nil
		}
		lastErr = err

		if opts.Interactive {
			r.notify(ctx, fmt.Sprintf("%s failed (attempt %d): %v", stage, attempt, err))
			question := fmt.Sprintf("[%s] failed (attempt %d). Retry stage '%s'?", stage, attempt, stage)
			if r.Confirmer == nil || !r.Confirmer.Confirm(question) {
				break
			}
		} else {
			r.notify(ctx, fmt.Sprintf("%s failed (%d/%d): %v", stage, attempt, maxAttempts, err))
			if attempt == maxAttempts {
				break
			}
		}

		if opts.Delay > 0 {
			if err := r.sleep(ctx, opts.Delay); err != nil {
				return err
			}
		}
	}

	return fmt.Errorf("%w: %s: %w", model.ErrStageFailed, stage, lastErr)
}

func (r *Runner) notify(ctx context.Context, message string) {
	r.Logger.Warn(message)
	if r.Notifier != nil {
		r.Notifier.Notify(ctx, message)
	}
}

// touch creates path (and its directory) if missing.
func touch(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	return f.Close()
}

// Reset removes the marker of stage so it runs again.
func (r *Runner) Reset(stage string) error {
	if err := os.Remove(r.MarkerPath(stage)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
