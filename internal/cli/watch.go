// Package cli: watch.go implements the hidden "tinyorch watch" commands.
//
// ensure-docker-host re-executes the tinyorch binary as a detached
// "tinyorch watch vm ..." or "tinyorch watch service ..." process. The
// watcher outlives the provisioning call, waits for the dependent PID to
// exit and then tears down what the dependent was holding. Its stderr is
// redirected to <home>/log/watch-<pid>.log by the launcher.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tinyorch/tinyorch/internal/dockerhost"
	"github.com/tinyorch/tinyorch/internal/model"
	"github.com/tinyorch/tinyorch/internal/refcount"
)

// NewWatchCommand creates the hidden "watch" parent command.
//
// A watcher ends only when its dependent exits. It does not use the
// signal-cancelled command context; SIGINT and SIGTERM get their default
// action back, so signalling a watcher kills it without a teardown.
func NewWatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:    "watch",
		Short:  "Tear down a Docker host when its dependent exits (internal)",
		Hidden: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			signal.Reset(os.Interrupt, syscall.SIGTERM)
		},
	}
	cmd.AddCommand(newWatchVMCommand())
	cmd.AddCommand(newWatchServiceCommand())
	return cmd
}

func newWatchVMCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "vm <machine> <parent-pid> <state-file>",
		Short: "Deregister a dependent and stop the machine when none remain",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := parsePID(args[1])
			if err != nil {
				return err
			}
			return runWatchVM(context.Background(), args[0], pid, args[2])
		},
	}
}

func newWatchServiceCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "service <parent-pid> <service-pid> <socket>",
		Short: "Stop a podman service and remove its socket when the dependent exits",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := parsePID(args[0])
			if err != nil {
				return err
			}
			svcPid, err := parsePID(args[1])
			if err != nil {
				return err
			}
			return runWatchService(context.Background(), pid, svcPid, args[2])
		},
	}
}

// newWatcher builds a Watcher with the configured timings.
func newWatcher(a *app) *dockerhost.Watcher {
	w := dockerhost.NewWatcher(a.podman(), refcount.New(), a.logger)
	w.Interval = a.cfg.WatchInterval
	w.PruneRetention = a.cfg.PruneRetention
	w.Metrics = a.metrics
	return w
}

func runWatchVM(ctx context.Context, machine string, pid int, stateFile string) error {
	a, err := newApp("watch-vm")
	if err != nil {
		return err
	}
	defer a.close()

	if err := newWatcher(a).WatchVM(ctx, machine, pid, stateFile); err != nil {
		return model.WrapCLIError(model.ExitCodeFor(err), "watch vm failed", err)
	}
	return nil
}

func runWatchService(ctx context.Context, pid, svcPid int, socket string) error {
	a, err := newApp("watch-service")
	if err != nil {
		return err
	}
	defer a.close()

	if err := newWatcher(a).WatchService(ctx, pid, svcPid, socket); err != nil {
		return model.WrapCLIError(model.ExitCodeFor(err), "watch service failed", err)
	}
	return nil
}
