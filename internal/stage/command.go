package stage

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Shell returns a Func that runs cmdline with `sh -c`, streaming output
// to stdout and stderr (os.Stdout and os.Stderr when nil).
func Shell(cmdline string, stdout, stderr io.Writer) Func {
	return Exec([]string{"sh", "-c", cmdline}, stdout, stderr)
}

// Exec returns a Func that runs argv directly.
func Exec(argv []string, stdout, stderr io.Writer) Func {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	return func(ctx context.Context) error {
		if len(argv) == 0 {
			return fmt.Errorf("empty command")
		}
		// #nosec G204 -- running operator-supplied commands is the point
		cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
		cmd.Stdin = os.Stdin
		cmd.Stdout = stdout
		cmd.Stderr = stderr
		if err := cmd.Run(); err != nil {
			return fmt.Errorf("%s: %w", strings.Join(argv, " "), err)
		}
		return nil
	}
}

// RunParallel runs every non-nil fn concurrently, one goroutine per job,
// and waits for all of them. It returns the first error that occurred;
// a failing job does not cancel the others.
func RunParallel(ctx context.Context, fns []Func) error {
	var jobs []Func
	for _, fn := range fns {
		if fn != nil {
			jobs = append(jobs, fn)
		}
	}
	if len(jobs) == 0 {
		return nil
	}

	var g errgroup.Group
	g.SetLimit(len(jobs))
	for _, fn := range jobs {
		g.Go(func() error {
			return fn(ctx)
		})
	}
	return g.Wait()
}

// ShellAll turns non-blank command lines into Shell funcs.
func ShellAll(cmdlines []string, stdout, stderr io.Writer) []Func {
	var fns []Func
	for _, line := range cmdlines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		fns = append(fns, Shell(line, stdout, stderr))
	}
	return fns
}
