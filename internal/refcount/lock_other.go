//go:build !unix

package refcount

// fileLock is a no-op where flock is unavailable; the store falls back
// to last-writer-wins.
type fileLock struct{}

func acquireLock(path string) (*fileLock, error) {
	return &fileLock{}, nil
}

func (l *fileLock) release() {}
