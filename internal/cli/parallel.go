// Package cli: parallel.go implements the "tinyorch run-parallel" command.
//
// Every command runs concurrently through "sh -c" and the command waits
// for all of them. A failing command does not stop the others; the
// first failure decides the exit status.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/tinyorch/tinyorch/internal/model"
	"github.com/tinyorch/tinyorch/internal/stage"
)

// NewRunParallelCommand creates the "run-parallel" cobra command.
func NewRunParallelCommand() *cobra.Command {
	var cmds []string

	cmd := &cobra.Command{
		Use:   "run-parallel [-c <command>]... [<command>...]",
		Short: "Run shell commands in parallel",
		Long: `Run several shell commands at the same time and wait for all of them.

Commands may be given with -c/--cmd (repeatable) or as positional
arguments, one command per argument.

Examples:
  tinyorch run-parallel -c 'make lint' -c 'make test'
  tinyorch run-parallel 'echo 1' 'echo 2'`,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runParallel(cmd.Context(), append(cmds, dropSeparators(args)...))
		},
	}

	cmd.Flags().StringArrayVarP(&cmds, "cmd", "c", nil, "Command to run (repeatable)")

	return cmd
}

func runParallel(ctx context.Context, cmdlines []string) error {
	jobs := stage.ShellAll(cmdlines, nil, nil)
	if len(jobs) == 0 {
		return model.NewCLIError(model.ExitInvalidArgument,
			"no commands provided (use -c/--cmd or positional commands)")
	}

	a, err := newApp("run-parallel")
	if err != nil {
		return err
	}
	defer a.close()

	a.logger.Debug("running commands in parallel", "count", len(jobs))
	if err := stage.RunParallel(ctx, jobs); err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "parallel command failed", err)
	}
	return nil
}
