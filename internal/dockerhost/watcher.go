package dockerhost

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tinyorch/tinyorch/internal/metrics"
	"github.com/tinyorch/tinyorch/internal/model"
	"github.com/tinyorch/tinyorch/internal/podman"
	"github.com/tinyorch/tinyorch/internal/proc"
	"github.com/tinyorch/tinyorch/internal/refcount"
)

const (
	// DefaultWatchInterval is how often a watcher checks its parent.
	DefaultWatchInterval = 2 * time.Second

	// DefaultPruneRetention keeps images and volumes used in the last
	// 30 days when the VM is torn down.
	DefaultPruneRetention = "720h"
)

// Watcher blocks until a dependent exits and then tears down what it
// was holding.
type Watcher struct {
	// Podman is required by WatchVM only.
	Podman *podman.Client

	Store *refcount.Store

	// Interval between parent liveness checks.
	Interval time.Duration

	// PruneRetention is passed to `podman system prune --filter until=`.
	PruneRetention string

	// Terminate controls how a service is stopped.
	Terminate proc.TerminateOptions

	Metrics *metrics.Recorder
	Logger  *slog.Logger

	// alive checks the parent PID. Tests substitute synthetic PIDs.
	alive func(int) bool
}

// NewWatcher returns a Watcher with default timings.
func NewWatcher(pm *podman.Client, store *refcount.Store, logger *slog.Logger) *Watcher {
	if store == nil {
		store = refcount.New()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		Podman:         pm,
		Store:          store,
		Interval:       DefaultWatchInterval,
		PruneRetention: DefaultPruneRetention,
		Terminate:      proc.DefaultTerminateOptions(),
		Logger:         logger,
		alive:          proc.IsAlive,
	}
}

// waitParent polls until pid is no longer alive or ctx ends.
func (w *Watcher) waitParent(ctx context.Context, pid int) error {
	interval := w.Interval
	if interval <= 0 {
		interval = DefaultWatchInterval
	}
	return proc.WaitExit(ctx, pid, interval, w.alive)
}

// WatchVM waits for parentPID to exit, then deregisters it from
// stateFile. When no dependents remain the machine is pruned and
// stopped, and the state file is removed.
func (w *Watcher) WatchVM(ctx context.Context, machine string, parentPID int, stateFile string) error {
	if parentPID <= 0 {
		return fmt.Errorf("%w: parent pid %d must be positive", model.ErrInvalidArgument, parentPID)
	}
	if w.Podman == nil {
		return fmt.Errorf("watch vm: no podman client configured")
	}

	w.Logger.Info("watching dependent", "machine", machine, "pid", parentPID, "state", stateFile)
	if err := w.waitParent(ctx, parentPID); err != nil {
		return err
	}
	w.Logger.Info("dependent exited", "machine", machine, "pid", parentPID)

	// Step 1: Deregister. Dead dependents are pruned by the read.
	remaining, err := w.Store.Remove(stateFile, parentPID)
	if err != nil {
		return fmt.Errorf("deregister pid %d: %w", parentPID, err)
	}
	if len(remaining) > 0 {
		w.Logger.Info("machine still in use", "machine", machine, "dependents", remaining.Sorted())
		w.Metrics.Teardown(model.BackendVM.String(), metrics.TeardownDeregistered)
		return nil
	}

	// Step 2: Last dependent gone. Prune and stop, best-effort.
	if err := w.Podman.PruneInMachine(ctx, machine, w.PruneRetention); err != nil {
		w.Logger.Warn("prune failed", "machine", machine, "error", err)
	}
	if err := w.Podman.MachineStop(ctx, machine); err != nil {
		w.Logger.Warn("podman machine stop failed", "machine", machine, "error", err)
	}

	// Step 3: The file is normally gone already; make sure.
	if err := removeIfExists(stateFile); err != nil {
		w.Logger.Warn("failed to remove state file", "path", stateFile, "error", err)
	}

	w.Metrics.Teardown(model.BackendVM.String(), metrics.TeardownStopped)
	w.Logger.Info("machine stopped", "machine", machine)
	return nil
}

// WatchService waits for parentPID to exit, then terminates the service
// process and removes its socket. Every teardown step is best-effort.
func (w *Watcher) WatchService(ctx context.Context, parentPID, servicePID int, socket string) error {
	if parentPID <= 0 {
		return fmt.Errorf("%w: parent pid %d must be positive", model.ErrInvalidArgument, parentPID)
	}

	w.Logger.Info("watching dependent", "pid", parentPID, "service", servicePID, "socket", socket)
	if err := w.waitParent(ctx, parentPID); err != nil {
		return err
	}
	w.Logger.Info("dependent exited, stopping service", "pid", parentPID, "service", servicePID)

	if !proc.Terminate(servicePID, w.Terminate) {
		w.Logger.Warn("service still alive after SIGKILL", "service", servicePID)
	}
	if err := removeIfExists(socket); err != nil {
		w.Logger.Warn("failed to remove socket", "path", socket, "error", err)
	}

	w.Metrics.Teardown(model.BackendService.String(), metrics.TeardownStopped)
	return nil
}
