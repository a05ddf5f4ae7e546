// Package podmantest provides a scripted podman.Runner for tests.
package podmantest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrNotScripted is returned for any invocation without a response,
// standing in for a podman command that exits non-zero.
var ErrNotScripted = errors.New("podmantest: no scripted response")

// Response is the canned result of one podman command line.
type Response struct {
	Out string
	Err error
}

// Fake records every invocation and answers from a table keyed by the
// space-joined argument list.
type Fake struct {
	mu        sync.Mutex
	responses map[string]Response
	calls     [][]string

	// Hook, when set, runs after each invocation is recorded and before
	// the response is looked up. Tests use it to change scripted state,
	// e.g. flip the machine state to "running" after `machine start`.
	Hook func(f *Fake, args []string)
}

// New returns an empty Fake.
func New() *Fake {
	return &Fake{responses: make(map[string]Response)}
}

// Set scripts the output and error for one exact command line.
func (f *Fake) Set(out string, err error, args ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[strings.Join(args, " ")] = Response{Out: out, Err: err}
}

// OK scripts a successful command with the given output.
func (f *Fake) OK(out string, args ...string) {
	f.Set(out, nil, args...)
}

// Fail scripts a failing command.
func (f *Fake) Fail(args ...string) {
	f.Set("", fmt.Errorf("exit status 125"), args...)
}

// Run implements podman.Runner.
func (f *Fake) Run(_ context.Context, args ...string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string(nil), args...))
	hook := f.Hook
	f.mu.Unlock()

	if hook != nil {
		hook(f, args)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	resp, ok := f.responses[strings.Join(args, " ")]
	if !ok {
		return "", ErrNotScripted
	}
	return resp.Out, resp.Err
}

// Calls returns a copy of every recorded invocation, in order.
func (f *Fake) Calls() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]string, len(f.calls))
	copy(out, f.calls)
	return out
}

// Count returns how many invocations started with prefix.
func (f *Fake) Count(prefix ...string) int {
	n := 0
	for _, call := range f.Calls() {
		if hasPrefix(call, prefix) {
			n++
		}
	}
	return n
}

// Find returns the first invocation starting with prefix.
func (f *Fake) Find(prefix ...string) ([]string, bool) {
	for _, call := range f.Calls() {
		if hasPrefix(call, prefix) {
			return call, true
		}
	}
	return nil, false
}

func hasPrefix(call, prefix []string) bool {
	if len(call) < len(prefix) {
		return false
	}
	for i := range prefix {
		if call[i] != prefix[i] {
			return false
		}
	}
	return true
}
