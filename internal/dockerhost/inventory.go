package dockerhost

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/tinyorch/tinyorch/internal/model"
	"github.com/tinyorch/tinyorch/internal/podman"
	"github.com/tinyorch/tinyorch/internal/proc"
	"github.com/tinyorch/tinyorch/internal/refcount"
)

const (
	socketPrefix = "podman-docker-"
	socketSuffix = ".sock"
)

// Resource is one Docker host tracked on this machine.
type Resource struct {
	Backend model.BackendKind `json:"backend" yaml:"backend"`

	// Name is the machine name (VM) or socket file name (service).
	Name string `json:"name" yaml:"name"`

	// State is the machine state, or "listening"/"stale" for a socket.
	State string `json:"state" yaml:"state"`

	// Dependents are the live PIDs holding the resource.
	Dependents []int `json:"dependents" yaml:"dependents"`

	// Path is the state file or socket path.
	Path string `json:"path" yaml:"path"`
}

// ParseSocketPID extracts the dependent PID from a service socket file
// name such as "podman-docker-4242.sock".
func ParseSocketPID(name string) (int, bool) {
	rest, ok := strings.CutPrefix(name, socketPrefix)
	if !ok {
		return 0, false
	}
	rest, ok = strings.CutSuffix(rest, socketSuffix)
	if !ok {
		return 0, false
	}
	pid, err := strconv.Atoi(rest)
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}

// Inventory lists the VM reference files under StateDir and the service
// sockets under RunDir. Reading never rewrites a state file.
type Inventory struct {
	// Podman answers machine state queries. Nil reports every machine
	// as unknown.
	Podman *podman.Client

	Store    *refcount.Store
	StateDir string
	RunDir   string

	alive func(int) bool
}

// List returns VM resources first, then service sockets, each sorted by
// name. Missing directories yield no entries.
func (inv *Inventory) List(ctx context.Context) ([]Resource, error) {
	vms, err := inv.machines(ctx)
	if err != nil {
		return nil, err
	}
	sockets, err := inv.sockets()
	if err != nil {
		return nil, err
	}
	return append(vms, sockets...), nil
}

func (inv *Inventory) machines(ctx context.Context) ([]Resource, error) {
	entries, err := readDir(inv.StateDir)
	if err != nil {
		return nil, err
	}
	store := inv.Store
	if store == nil {
		store = refcount.New()
	}

	var out []Resource
	for _, e := range entries {
		// Skip lock sidecars and anything that is not a plain file.
		if strings.HasPrefix(e.Name(), ".") || !e.Type().IsRegular() {
			continue
		}
		path := filepath.Join(inv.StateDir, e.Name())
		pids, err := store.Read(path)
		if err != nil {
			return nil, err
		}
		state := model.MachineUnknown
		if inv.Podman != nil {
			state = inv.Podman.MachineState(ctx, e.Name())
		}
		out = append(out, Resource{
			Backend:    model.BackendVM,
			Name:       e.Name(),
			State:      state.String(),
			Dependents: pids.Sorted(),
			Path:       path,
		})
	}
	return out, nil
}

func (inv *Inventory) sockets() ([]Resource, error) {
	entries, err := readDir(inv.RunDir)
	if err != nil {
		return nil, err
	}
	alive := inv.alive
	if alive == nil {
		alive = proc.IsAlive
	}

	var out []Resource
	for _, e := range entries {
		pid, ok := ParseSocketPID(e.Name())
		if !ok {
			continue
		}
		path := filepath.Join(inv.RunDir, e.Name())
		r := Resource{
			Backend:    model.BackendService,
			Name:       e.Name(),
			State:      "stale",
			Dependents: []int{},
			Path:       path,
		}
		if isSocket(path) {
			r.State = "listening"
		}
		if alive(pid) {
			r.Dependents = []int{pid}
		}
		out = append(out, r)
	}
	return out, nil
}

func readDir(dir string) ([]os.DirEntry, error) {
	if dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	return entries, nil
}
