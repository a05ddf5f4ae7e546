package dockerhost

import (
	"context"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/tinyorch/tinyorch/internal/model"
	"github.com/tinyorch/tinyorch/internal/proc"
)

// ensureService starts a podman API service dedicated to parentPID.
func (p *Provisioner) ensureService(ctx context.Context, parentPID int) (model.Env, error) {
	// Step 1: Fresh socket path, with any stale node removed.
	if err := os.MkdirAll(p.cfg.RunDir, 0o755); err != nil {
		return model.Env{}, fmt.Errorf("%w: create run dir: %v", model.ErrProvision, err)
	}
	socket := SocketPath(p.cfg.RunDir, parentPID)
	if err := removeIfExists(socket); err != nil {
		return model.Env{}, fmt.Errorf("%w: remove stale socket: %v", model.ErrProvision, err)
	}

	// Step 2: Launch the service detached, with no idle timeout.
	argv := p.cfg.ServiceArgv(socket)
	p.logger.Debug("starting podman service", "argv", argv)
	svc, err := proc.StartDetached(argv)
	if err != nil {
		return model.Env{}, fmt.Errorf("%w: %v", model.ErrProvision, err)
	}

	// Step 3: Wait for the socket node.
	if !waitForSocket(ctx, socket, p.cfg.ReadyAttempts, p.cfg.ReadyInterval, p.logger) {
		_ = proc.Signal(svc.Pid, syscall.SIGTERM)
		return model.Env{}, fmt.Errorf("%w: socket %s not ready after %s",
			model.ErrProvision, socket, time.Duration(p.cfg.ReadyAttempts)*p.cfg.ReadyInterval)
	}

	// Step 4: Watcher.
	w := ServiceWatch{ParentPID: parentPID, ServicePID: svc.Pid, Socket: socket}
	if err := p.cfg.Launcher.LaunchService(w); err != nil {
		_ = proc.Signal(svc.Pid, syscall.SIGTERM)
		_ = removeIfExists(socket)
		return model.Env{}, fmt.Errorf("%w: %v", model.ErrProvision, err)
	}

	return model.Env{DockerHost: "unix://" + socket, DockerSocket: socket}, nil
}
