// Package cli: run.go implements the "tinyorch run" command.
//
// A stage is a named shell command that runs at most once to completion:
// on success a ".<stage>.done" marker is written to $RUN_DIR (or the
// current directory), and later runs of the same stage are skipped. A
// failing stage is retried a fixed number of times, or interactively
// until the operator declines, and every failure is notified.
package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/tinyorch/tinyorch/internal/console"
	"github.com/tinyorch/tinyorch/internal/model"
	"github.com/tinyorch/tinyorch/internal/stage"
)

// runFlags holds the flag values for the run command.
type runFlags struct {
	// retries is the number of extra attempts after the first failure.
	retries int

	// interactive asks before every retry, without an upper bound.
	interactive bool

	// delay is the pause between attempts.
	delay time.Duration

	// successMsg is notified when the stage completes.
	successMsg string

	// force removes the completion marker before running.
	force bool
}

// NewRunCommand creates the "run" cobra command.
func NewRunCommand() *cobra.Command {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run <stage> [flags] -- <command>...",
		Short: "Run a named stage once, with retries",
		Long: `Run a command as a named stage.

The command tokens are quoted and joined into one shell command line.
When the stage succeeds the marker .<stage>.done is written to $RUN_DIR
(default: the current directory); a stage whose marker exists is
skipped. Use -- before the command when it has flags of its own.

Examples:
  tinyorch run fetch --retries 3 --delay 10s -- curl -fO https://example.com/data.tar
  tinyorch run build --interactive -- make -j4
  tinyorch run publish --success-msg "published" -- ./publish.sh`,

		Args: cobra.MinimumNArgs(2),

		RunE: func(cmd *cobra.Command, args []string) error {
			return runStage(cmd.Context(), args[0], args[1:], flags)
		},
	}

	cmd.Flags().IntVar(&flags.retries, "retries", 0,
		"Number of retries after the first failure (0 = none)")
	cmd.Flags().BoolVar(&flags.interactive, "interactive", false,
		"Ask before every retry, without limit (needs a terminal)")
	cmd.Flags().DurationVar(&flags.delay, "delay", 0,
		"Delay between attempts (e.g. 5s, 1m)")
	cmd.Flags().StringVar(&flags.successMsg, "success-msg", "",
		"Notification sent when the stage succeeds")
	cmd.Flags().BoolVar(&flags.force, "force", false,
		"Run the stage even if it already completed")
	cmd.MarkFlagsMutuallyExclusive("retries", "interactive")

	return cmd
}

func runStage(ctx context.Context, name string, argv []string, flags *runFlags) error {
	// Step 1: Validate before touching anything.
	if !flags.interactive && flags.retries < 0 {
		return model.NewCLIError(model.ExitInvalidArgument, "--retries must be >= 0 (or use --interactive)")
	}
	cmdline := shellJoin(dropSeparators(argv))
	if cmdline == "" {
		return model.NewCLIError(model.ExitInvalidArgument, "you must provide a command to run")
	}

	a, err := newApp("run")
	if err != nil {
		return err
	}
	defer a.close()

	// Step 2: Run the stage.
	runner := stage.NewRunner(a.cfg.MarkerDir, a.notifier("", ""), console.New(), a.logger)
	runner.Metrics = a.metrics

	if flags.force {
		if err := runner.Reset(name); err != nil {
			return model.WrapCLIError(model.ExitGeneralError, "failed to reset stage "+name, err)
		}
	}

	err = runner.Run(ctx, name, stage.Shell(cmdline, nil, nil), stage.Options{
		Retries:     flags.retries,
		Interactive: flags.interactive,
		Delay:       flags.delay,
		SuccessMsg:  flags.successMsg,
	})
	return wrapError("stage "+name+" failed", err)
}

// dropSeparators removes "--" tokens left in the command.
func dropSeparators(args []string) []string {
	out := make([]string, 0, len(args))
	for _, arg := range args {
		if arg != "--" {
			out = append(out, arg)
		}
	}
	return out
}
