// Package cli: awake.go implements the "tinyorch keep-awake",
// "tinyorch prompt-enter" and "tinyorch burn-iso" commands: small host
// helpers for jobs that run unattended for a long time.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tinyorch/tinyorch/internal/awake"
	"github.com/tinyorch/tinyorch/internal/console"
	"github.com/tinyorch/tinyorch/internal/media"
)

// NewKeepAwakeCommand creates the "keep-awake" cobra command.
func NewKeepAwakeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "keep-awake <pid>",
		Short: "Keep the system awake while a process runs",
		Long: `Start the platform's sleep inhibitor (caffeinate, systemd-inhibit or a
PowerShell loop) bound to the given PID. The inhibitor runs detached and
exits on its own when the PID exits.

Examples:
  tinyorch keep-awake $$`,

		Args: cobra.ExactArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := parsePID(args[0])
			if err != nil {
				return err
			}
			return runKeepAwake(cmd.OutOrStdout(), pid)
		},
	}
}

func runKeepAwake(out io.Writer, pid int) error {
	a, err := newApp("keep-awake")
	if err != nil {
		return err
	}
	defer a.close()

	h := awake.New(a.logger)
	if err := h.Start(pid); err != nil {
		return wrapError("failed to keep the system awake", err)
	}

	if jsonOutput {
		return writeJSON(out, map[string]interface{}{
			"pid":       pid,
			"inhibitor": h.Pid(),
			"active":    h.Active(),
		})
	}
	if h.Active() {
		a.logger.Info("sleep inhibited", "pid", pid, "inhibitor", h.Pid())
	}
	return nil
}

// NewPromptEnterCommand creates the "prompt-enter" cobra command.
func NewPromptEnterCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "prompt-enter [message]",
		Short: "Wait for the operator to press Enter",
		Long: `Print a message and wait for Enter. Without a terminal on stdin the
command returns immediately.

Examples:
  tinyorch prompt-enter "Insert a blank disc and press Enter... "`,

		Args: cobra.MaximumNArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			var message string
			if len(args) == 1 {
				message = args[0]
			}
			console.New().WaitEnter(message)
			return nil
		},
	}
}

// NewBurnISOCommand creates the "burn-iso" cobra command.
func NewBurnISOCommand() *cobra.Command {
	var device string

	cmd := &cobra.Command{
		Use:   "burn-iso <iso>",
		Short: "Burn an ISO image to an optical disc",
		Long: `Burn an ISO image with drutil (macOS) or growisofs, wodim or cdrecord
(Linux). The device defaults to $BURN_DEV, then the first of /dev/dvd,
/dev/sr0 and /dev/cdrom. When no automatic path exists a hint to burn
manually is printed and the command succeeds.

Examples:
  tinyorch burn-iso backup.iso
  tinyorch burn-iso backup.iso --device /dev/sr1`,

		Args: cobra.ExactArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			return runBurnISO(cmd.Context(), args[0], device)
		},
	}

	cmd.Flags().StringVar(&device, "device", "", "Device to burn to (default: $BURN_DEV or autodetect)")

	return cmd
}

func runBurnISO(ctx context.Context, iso, device string) error {
	a, err := newApp("burn-iso")
	if err != nil {
		return err
	}
	defer a.close()

	if err := media.NewBurner(a.cfg.BurnDevice, a.logger).Burn(ctx, iso, device); err != nil {
		return wrapError(fmt.Sprintf("failed to burn %s", iso), err)
	}
	return nil
}
