package dockerhost

import (
	"context"
	"fmt"

	"github.com/tinyorch/tinyorch/internal/model"
	"github.com/tinyorch/tinyorch/internal/podman"
	"github.com/tinyorch/tinyorch/internal/sizing"
)

// ensureVM provisions the shared podman machine for parentPID.
func (p *Provisioner) ensureVM(ctx context.Context, parentPID int) (model.Env, error) {
	name := p.cfg.Machine
	stateFile := p.StateFile()
	pm := p.cfg.Podman

	// Step 1: Load the dependents that are still alive.
	dependents, err := p.cfg.Store.Read(stateFile)
	if err != nil {
		return model.Env{}, fmt.Errorf("%w: %v", model.ErrProvision, err)
	}
	p.logger.Debug("loaded dependents", "machine", name, "pids", dependents.Sorted())

	// Step 2: Create the machine if needed, otherwise query its state.
	state := model.MachineUnknown
	if pm.MachineExists(ctx, name) {
		state = pm.MachineState(ctx, name)
	} else {
		size := sizing.ForHost(ctx, p.cfg.Prober)
		p.logger.Info("creating podman machine", "machine", name, "sizing", size.String())
		if err := pm.MachineInit(ctx, name, podman.InitOptions{Sizing: size, Volumes: p.cfg.Volumes}); err != nil {
			// A failed init surfaces below as a missing socket path.
			p.logger.Warn("podman machine init failed", "machine", name, "error", err)
		}
		state = model.MachineStopped
	}

	// Step 3: Start it unless it is already running. Best-effort.
	if !state.IsRunning() {
		p.logger.Info("starting podman machine", "machine", name, "state", state.String())
		if err := pm.MachineStart(ctx, name); err != nil {
			p.logger.Warn("podman machine start failed", "machine", name, "error", err)
			p.cfg.Notifier.Notify(ctx, fmt.Sprintf("podman machine %s failed to start: %v", name, err))
		}
	}

	// Step 4: Register the parent. This must happen before the watcher
	// is spawned so the watcher always finds its own PID.
	reregistered := dependents.Has(parentPID)
	registered, err := p.cfg.Store.Add(stateFile, parentPID)
	if err != nil {
		return model.Env{}, fmt.Errorf("%w: register dependent: %v", model.ErrProvision, err)
	}
	p.logger.Debug("registered dependent", "machine", name, "pid", parentPID, "pids", registered.Sorted())

	// Steps 5-7 roll the registration back on failure. A parent that was
	// already registered keeps its entry; its earlier watcher owns it.
	env, err := p.discoverAndWatch(ctx, parentPID, stateFile)
	if err != nil {
		if !reregistered {
			if _, rerr := p.cfg.Store.Remove(stateFile, parentPID); rerr != nil {
				p.logger.Warn("failed to roll back registration", "pid", parentPID, "error", rerr)
			}
		}
		return model.Env{}, err
	}
	return env, nil
}

// discoverAndWatch resolves both socket paths and spawns the watcher.
func (p *Provisioner) discoverAndWatch(ctx context.Context, parentPID int, stateFile string) (model.Env, error) {
	name := p.cfg.Machine

	// Step 5: Host-side socket.
	hostSocket := p.cfg.Podman.HostSocketPath(ctx, name)
	if hostSocket == "" {
		return model.Env{}, fmt.Errorf("%w: podman machine %s reports no host socket path", model.ErrProvision, name)
	}

	// Step 6: VM-internal socket.
	vmSocket := p.vmSocketPath(ctx)

	// Step 7: Watcher.
	if err := p.cfg.Launcher.LaunchVM(VMWatch{Machine: name, ParentPID: parentPID, StateFile: stateFile}); err != nil {
		return model.Env{}, fmt.Errorf("%w: %v", model.ErrProvision, err)
	}

	return model.Env{DockerHost: "unix://" + hostSocket, DockerSocket: vmSocket}, nil
}

// vmSocketPath derives the podman socket path inside the VM. A rootless
// machine always uses the per-user path; otherwise the machine's URI is
// parsed, then the default connection's URI, then the per-user path.
func (p *Provisioner) vmSocketPath(ctx context.Context) string {
	pm := p.cfg.Podman
	name := p.cfg.Machine
	rootless := podman.RootlessSocketPath(p.cfg.UID)

	path := podman.SocketPathFromURI(pm.SocketURI(ctx, name))
	if !pm.Rootful(ctx, name) {
		path = rootless
	}
	if path == "" {
		path = podman.SocketPathFromURI(pm.DefaultConnectionURI(ctx))
	}
	if path == "" {
		path = rootless
	}
	return path
}
