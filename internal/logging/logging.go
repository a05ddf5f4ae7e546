// Package logging builds the slog loggers used by tinyorch commands.
//
// Diagnostics always go to stderr so that stdout stays reserved for
// command output such as `eval "$(tinyorch ensure-docker-host $$)"`.
package logging

import (
	"io"
	"log/slog"
)

// Options select the handler and level.
type Options struct {
	// Verbose lowers the level to DEBUG.
	Verbose bool

	// JSON selects the JSON handler instead of text.
	JSON bool

	// Quiet raises the level to WARN. Verbose wins if both are set.
	Quiet bool
}

// Level returns the minimum level for opts.
func (o Options) Level() slog.Level {
	switch {
	case o.Verbose:
		return slog.LevelDebug
	case o.Quiet:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// New returns a logger writing to w.
func New(w io.Writer, opts Options) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{Level: opts.Level()}
	if opts.JSON {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}
