package dockerhost

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// isSocket reports whether path exists and is a unix socket node.
func isSocket(path string) bool {
	fi, err := os.Lstat(path)
	return err == nil && fi.Mode()&fs.ModeSocket != 0
}

// removeIfExists deletes path, treating a missing file as success.
func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// waitForSocket polls every interval until path is a socket node, for at
// most attempts × interval. Filesystem events in the socket's directory
// trigger an extra check between ticks; if the directory cannot be
// watched the plain poll still applies.
func waitForSocket(ctx context.Context, path string, attempts int, interval time.Duration, logger *slog.Logger) bool {
	if isSocket(path) {
		return true
	}

	var (
		events <-chan fsnotify.Event
		errs   <-chan error
	)
	if w, err := fsnotify.NewWatcher(); err == nil {
		defer func() { _ = w.Close() }()
		if err := w.Add(filepath.Dir(path)); err == nil {
			events, errs = w.Events, w.Errors
		} else {
			logger.Debug("socket dir not watchable, polling only", "dir", filepath.Dir(path), "error", err)
		}
	}

	deadline := time.NewTimer(time.Duration(attempts) * interval)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			return isSocket(path)
		case <-ticker.C:
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if filepath.Clean(ev.Name) != filepath.Clean(path) {
				continue
			}
		case _, ok := <-errs:
			if !ok {
				errs = nil
			}
			continue
		}
		if isSocket(path) {
			return true
		}
	}
}
