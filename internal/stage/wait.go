package stage

import (
	"context"
	"os"
	"time"
)

// DefaultWaitInterval is the polling interval of WaitForFiles.
const DefaultWaitInterval = 5 * time.Second

// WaitForFiles blocks until every path exists, checking every interval.
// It returns ctx.Err() if the context ends first. An empty path list
// returns immediately.
func WaitForFiles(ctx context.Context, paths []string, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultWaitInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for !allExist(paths) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

func allExist(paths []string) bool {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			return false
		}
	}
	return true
}
