package refcount

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/tinyorch/tinyorch/internal/proc"
)

// PIDSet is an unordered set of process IDs.
type PIDSet map[int]struct{}

// NewPIDSet returns a set holding pids.
func NewPIDSet(pids ...int) PIDSet {
	s := make(PIDSet, len(pids))
	for _, pid := range pids {
		s[pid] = struct{}{}
	}
	return s
}

// Has reports whether pid is in the set.
func (s PIDSet) Has(pid int) bool {
	_, ok := s[pid]
	return ok
}

// Sorted returns the members in ascending order.
func (s PIDSet) Sorted() []int {
	out := make([]int, 0, len(s))
	for pid := range s {
		out = append(out, pid)
	}
	sort.Ints(out)
	return out
}

// Store reads and writes reference-count files.
type Store struct {
	// alive decides which PIDs survive a read.
	alive func(int) bool
}

// Option configures a Store.
type Option func(*Store)

// WithLiveness replaces the liveness check used to prune PIDs on read.
// Tests use it to register synthetic PIDs.
func WithLiveness(alive func(int) bool) Option {
	return func(s *Store) {
		s.alive = alive
	}
}

// New creates a Store that prunes with proc.IsAlive unless overridden.
func New(opts ...Option) *Store {
	s := &Store{alive: proc.IsAlive}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Read returns the live PIDs recorded at path. A missing file is an
// empty set. Lines that are not positive integers are skipped, and so
// are PIDs that are no longer alive.
func (s *Store) Read(path string) (PIDSet, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return PIDSet{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read dependents %s: %w", path, err)
	}

	pids := PIDSet{}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		pid, ok := parsePID(scanner.Text())
		if !ok || !s.alive(pid) {
			continue
		}
		pids[pid] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("parse dependents %s: %w", path, err)
	}
	return pids, nil
}

// parsePID accepts a decimal string of digits only, surrounded by
// optional whitespace, with a value greater than zero.
func parsePID(line string) (int, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return 0, false
	}
	for _, r := range line {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	pid, err := strconv.Atoi(line)
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}

// Write replaces the contents of path with the deduplicated, sorted,
// positive members of pids. When nothing remains the file is removed;
// a file that is already missing is not an error.
func (s *Store) Write(path string, pids []int) error {
	set := PIDSet{}
	for _, pid := range pids {
		if pid > 0 {
			set[pid] = struct{}{}
		}
	}

	if len(set) == 0 {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove dependents %s: %w", path, err)
		}
		return nil
	}

	var buf bytes.Buffer
	for _, pid := range set.Sorted() {
		buf.WriteString(strconv.Itoa(pid))
		buf.WriteByte('\n')
	}
	return writeFileAtomic(path, buf.Bytes())
}

// writeFileAtomic writes data to a temp file in the same directory and
// renames it over path, so readers see either the old or the new list.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

// LockPath returns the sidecar file used to serialize updates of path.
func LockPath(path string) string {
	return filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+".lock")
}

// Update runs read → fn → write under the advisory lock for path and
// returns the set that was persisted.
func (s *Store) Update(path string, fn func(PIDSet) PIDSet) (PIDSet, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}

	lock, err := acquireLock(LockPath(path))
	if err != nil {
		return nil, err
	}
	defer lock.release()

	current, err := s.Read(path)
	if err != nil {
		return nil, err
	}

	next := fn(current)
	if err := s.Write(path, next.Sorted()); err != nil {
		return nil, err
	}
	return next, nil
}

// Add registers pid as a dependent, keeping every other live dependent.
func (s *Store) Add(path string, pid int) (PIDSet, error) {
	if pid <= 0 {
		return nil, fmt.Errorf("add dependent: pid %d is not positive", pid)
	}
	return s.Update(path, func(pids PIDSet) PIDSet {
		pids[pid] = struct{}{}
		return pids
	})
}

// Remove deregisters pid and returns the dependents that remain.
// Removing a PID that is not recorded is a no-op; removing the last one
// deletes the file.
func (s *Store) Remove(path string, pid int) (PIDSet, error) {
	return s.Update(path, func(pids PIDSet) PIDSet {
		delete(pids, pid)
		return pids
	})
}
