// Package cli: notify.go implements the "tinyorch notify" command.
//
// The message is delivered through apprise running in a throwaway
// container. Delivery is best-effort: a missing URL list makes the
// command a no-op and a failed delivery is logged, never fatal, so
// scripts can call notify unconditionally.
package cli

import (
	"context"
	"strings"

	"github.com/spf13/cobra"
)

// notifyFlags holds the flag values for the notify command.
type notifyFlags struct {
	// title defaults to $JOB, then "job".
	title string

	// url is one apprise URL or a comma-separated list; defaults to $NOTIFY.
	url string
}

// NewNotifyCommand creates the "notify" cobra command.
func NewNotifyCommand() *cobra.Command {
	flags := &notifyFlags{}

	cmd := &cobra.Command{
		Use:   "notify <message>",
		Short: "Send a notification through apprise",
		Long: `Send a notification through apprise, run as a container.

The title defaults to $JOB (or "job") and the destination to the
comma-separated URL list in $NOTIFY. Without any URL nothing is sent.

Examples:
  tinyorch notify "backup finished"
  tinyorch notify --title nightly --url 'ntfy://ntfy.sh/mytopic' "done"`,

		Args: cobra.MinimumNArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			return runNotify(cmd.Context(), strings.Join(args, " "), flags)
		},
	}

	cmd.Flags().StringVar(&flags.title, "title", "", "Notification title (default: $JOB or \"job\")")
	cmd.Flags().StringVar(&flags.url, "url", "", "Apprise URL or comma-separated list (default: $NOTIFY)")

	return cmd
}

func runNotify(ctx context.Context, message string, flags *notifyFlags) error {
	a, err := newApp("notify")
	if err != nil {
		return err
	}
	defer a.close()

	a.notifier(flags.title, flags.url).Notify(ctx, message)
	return nil
}
