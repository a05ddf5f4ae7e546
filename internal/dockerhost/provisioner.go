package dockerhost

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/tinyorch/tinyorch/internal/metrics"
	"github.com/tinyorch/tinyorch/internal/model"
	"github.com/tinyorch/tinyorch/internal/podman"
	"github.com/tinyorch/tinyorch/internal/refcount"
	"github.com/tinyorch/tinyorch/internal/sizing"
)

// Defaults used when the corresponding Config field is zero.
const (
	// DefaultMachine is the name of the shared podman machine.
	DefaultMachine = "tinyorch"

	// DefaultReadyAttempts × DefaultReadyInterval bounds the wait for a
	// service socket to appear (5 seconds).
	DefaultReadyAttempts = 50
	DefaultReadyInterval = 100 * time.Millisecond
)

// DefaultVolumes are the host directories mounted into a new machine.
var DefaultVolumes = []string{"/Users:/Users", "/Volumes:/Volumes"}

// Notifier receives best-effort failure messages. Implementations must
// not block for long and must swallow their own errors.
type Notifier interface {
	Notify(ctx context.Context, message string)
}

// Config wires a Provisioner. Zero-valued fields take defaults; Podman,
// StateDir and RunDir are required.
type Config struct {
	// Backend overrides the backend chosen from runtime.GOOS.
	Backend model.BackendKind

	// Machine is the podman machine name (VM backend).
	Machine string

	// StateDir holds one reference-count file per machine.
	StateDir string

	// RunDir holds the per-dependent service sockets.
	RunDir string

	// Volumes are passed to `podman machine init`.
	Volumes []string

	// ServiceArgv builds the service command for a socket path.
	// Defaults to podman.ServiceArgv("podman", socket).
	ServiceArgv func(socket string) []string

	ReadyAttempts int
	ReadyInterval time.Duration

	// UID selects the rootless socket path inside the VM.
	// Defaults to os.Getuid().
	UID int

	Podman   *podman.Client
	Store    *refcount.Store
	Prober   sizing.Prober
	Launcher Launcher
	Notifier Notifier
	Metrics  *metrics.Recorder
	Logger   *slog.Logger
}

// Provisioner brings a Docker-compatible socket into existence for a
// dependent process and hands its teardown to a watcher.
type Provisioner struct {
	cfg     Config
	backend model.BackendKind
	logger  *slog.Logger
}

// New validates cfg, fills in defaults and selects the backend.
// It returns model.ErrUnsupportedPlatform when no backend is configured
// and the host OS has none.
func New(cfg Config) (*Provisioner, error) {
	backend := cfg.Backend
	if backend == "" {
		b, err := model.BackendForOS(runtime.GOOS)
		if err != nil {
			return nil, err
		}
		backend = b
	}
	if !backend.IsValid() {
		return nil, fmt.Errorf("%w: backend %q", model.ErrUnsupportedPlatform, backend)
	}

	if cfg.Machine == "" {
		cfg.Machine = DefaultMachine
	}
	if cfg.Volumes == nil {
		cfg.Volumes = DefaultVolumes
	}
	if cfg.ServiceArgv == nil {
		cfg.ServiceArgv = func(socket string) []string {
			return podman.ServiceArgv("podman", socket)
		}
	}
	if cfg.ReadyAttempts <= 0 {
		cfg.ReadyAttempts = DefaultReadyAttempts
	}
	if cfg.ReadyInterval <= 0 {
		cfg.ReadyInterval = DefaultReadyInterval
	}
	if cfg.UID == 0 {
		cfg.UID = os.Getuid()
	}
	if cfg.Store == nil {
		cfg.Store = refcount.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Prober == nil {
		cfg.Prober = sizing.NewHostProbe(cfg.Logger)
	}
	if cfg.Notifier == nil {
		cfg.Notifier = nopNotifier{}
	}
	if cfg.Launcher == nil {
		return nil, fmt.Errorf("dockerhost: no watcher launcher configured")
	}
	if backend == model.BackendVM && cfg.Podman == nil {
		return nil, fmt.Errorf("dockerhost: VM backend requires a podman client")
	}

	return &Provisioner{cfg: cfg, backend: backend, logger: cfg.Logger}, nil
}

// Backend returns the backend this provisioner uses.
func (p *Provisioner) Backend() model.BackendKind {
	return p.backend
}

// StateFile returns the reference-count file of the shared machine.
func (p *Provisioner) StateFile() string {
	return StateFile(p.cfg.StateDir, p.cfg.Machine)
}

// StateFile returns the reference-count file for machine under stateDir.
func StateFile(stateDir, machine string) string {
	return filepath.Join(stateDir, machine)
}

// SocketPath returns the per-dependent service socket under runDir.
func SocketPath(runDir string, parentPID int) string {
	return filepath.Join(runDir, fmt.Sprintf("podman-docker-%d.sock", parentPID))
}

// Ensure provisions the backend for parentPID and returns the
// connection environment. Hard failures wrap model.ErrInvalidArgument
// or model.ErrProvision.
func (p *Provisioner) Ensure(ctx context.Context, parentPID int) (model.Env, error) {
	if parentPID <= 0 {
		return model.Env{}, fmt.Errorf("%w: parent pid %d must be positive", model.ErrInvalidArgument, parentPID)
	}

	var (
		env model.Env
		err error
	)
	switch p.backend {
	case model.BackendVM:
		env, err = p.ensureVM(ctx, parentPID)
	default:
		env, err = p.ensureService(ctx, parentPID)
	}

	p.cfg.Metrics.Provision(p.backend.String(), err)
	if err != nil {
		p.logger.Error("provisioning failed", "backend", p.backend, "pid", parentPID, "error", err)
		return model.Env{}, err
	}
	p.logger.Info("docker host ready", "backend", p.backend, "pid", parentPID, "DOCKER_HOST", env.DockerHost)
	return env, nil
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, string) {}
