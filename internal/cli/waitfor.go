// Package cli: waitfor.go implements the "tinyorch wait-for" command,
// which blocks until a set of files exists. Stages of one job that run
// in different shells use it to wait for each other's markers.
package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/tinyorch/tinyorch/internal/stage"
)

// NewWaitForCommand creates the "wait-for" cobra command.
func NewWaitForCommand() *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "wait-for <path>...",
		Short: "Wait until every given file exists",
		Long: `Block until all paths exist, checking every --interval.

Examples:
  tinyorch wait-for .fetch.done .build.done
  tinyorch wait-for --interval 1s /mnt/backup/ready`,

		Args: cobra.MinimumNArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			return runWaitFor(cmd.Context(), args, interval)
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", stage.DefaultWaitInterval, "Time between checks")

	return cmd
}

func runWaitFor(ctx context.Context, paths []string, interval time.Duration) error {
	a, err := newApp("wait-for")
	if err != nil {
		return err
	}
	defer a.close()

	a.logger.Debug("waiting for files", "paths", paths, "interval", interval)
	if err := stage.WaitForFiles(ctx, paths, interval); err != nil {
		return wrapError("wait interrupted", err)
	}
	return nil
}
