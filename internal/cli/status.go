// Package cli: status.go implements the "tinyorch status" command.
//
// The status command lists the Docker hosts tinyorch is tracking on this
// machine: shared podman machines with their live dependents, and
// per-process service sockets. It only reads; no state file is
// rewritten and nothing is torn down.
package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/tinyorch/tinyorch/internal/dockerhost"
	"github.com/tinyorch/tinyorch/internal/refcount"
)

// NewStatusCommand creates the "status" cobra command.
func NewStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show tracked Docker hosts and their dependents",
		Long: `Show the podman machines and podman services tinyorch is tracking.

Examples:
  tinyorch status
  tinyorch status --json`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context(), cmd.OutOrStdout())
		},
	}
}

func runStatus(ctx context.Context, out io.Writer) error {
	a, err := newApp("status")
	if err != nil {
		return err
	}
	defer a.close()

	inv := &dockerhost.Inventory{
		Podman:   a.podman(),
		Store:    refcount.New(),
		StateDir: a.cfg.StateDir,
		RunDir:   a.cfg.SocketDir,
	}
	resources, err := inv.List(ctx)
	if err != nil {
		return wrapError("failed to read tinyorch state", err)
	}

	if jsonOutput {
		return printStatusJSON(out, resources)
	}
	return printStatusTable(out, resources)
}

// printStatusJSON prints resources as a JSON array (never null).
func printStatusJSON(w io.Writer, resources []dockerhost.Resource) error {
	if resources == nil {
		resources = []dockerhost.Resource{}
	}
	return writeJSON(w, resources)
}

// printStatusTable prints resources as a table, or a short notice when
// nothing is tracked.
func printStatusTable(w io.Writer, resources []dockerhost.Resource) error {
	if len(resources) == 0 {
		_, err := fmt.Fprintln(w, "No docker hosts are being tracked.")
		return err
	}

	table := tablewriter.NewWriter(w)
	table.Header("Backend", "Name", "State", "Dependents", "Path")
	for _, r := range resources {
		if err := table.Append(
			r.Backend.String(),
			r.Name,
			r.State,
			formatPIDs(r.Dependents),
			r.Path,
		); err != nil {
			return err
		}
	}
	return table.Render()
}

// formatPIDs joins pids with commas, or returns "-" for none.
func formatPIDs(pids []int) string {
	if len(pids) == 0 {
		return "-"
	}
	parts := make([]string, len(pids))
	for i, pid := range pids {
		parts[i] = strconv.Itoa(pid)
	}
	return strings.Join(parts, ",")
}
