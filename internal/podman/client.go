package podman

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/tinyorch/tinyorch/internal/model"
)

// Inspect format templates understood by `podman machine inspect`.
const (
	formatState      = "{{.State}}"
	formatSocketPath = "{{.ConnectionInfo.PodmanSocket.Path}}"
	formatSocketURI  = "{{.ConnectionInfo.PodmanSocket.URI}}"
	formatRootful    = "{{.Rootful}}"

	// formatConnections lists connections as "<default> <uri>" lines.
	formatConnections = "{{.Default}} {{.URI}}"
)

// Client issues podman commands through a Runner.
type Client struct {
	runner Runner
}

// NewClient creates a Client backed by runner.
func NewClient(runner Runner) *Client {
	return &Client{runner: runner}
}

// query runs a query command and returns its trimmed output, or "" if
// the command failed.
func (c *Client) query(ctx context.Context, args ...string) string {
	out, err := c.runner.Run(ctx, args...)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(out)
}

// inspect runs `podman machine inspect <name> --format <format>`.
func (c *Client) inspect(ctx context.Context, name, format string) string {
	return c.query(ctx, "machine", "inspect", name, "--format", format)
}

// MachineExists reports whether `podman machine inspect <name>` succeeds.
func (c *Client) MachineExists(ctx context.Context, name string) bool {
	_, err := c.runner.Run(ctx, "machine", "inspect", name)
	return err == nil
}

// MachineState returns the machine's state string, or MachineUnknown.
func (c *Client) MachineState(ctx context.Context, name string) model.MachineState {
	return model.MachineState(strings.ToLower(c.inspect(ctx, name, formatState)))
}

// HostSocketPath returns the host-side path of the machine's API socket.
func (c *Client) HostSocketPath(ctx context.Context, name string) string {
	return c.inspect(ctx, name, formatSocketPath)
}

// SocketURI returns the machine's podman connection URI.
func (c *Client) SocketURI(ctx context.Context, name string) string {
	return c.inspect(ctx, name, formatSocketURI)
}

// Rootful reports whether the machine runs podman as root. An empty or
// failed query counts as rootful; only an explicit "false" does not.
func (c *Client) Rootful(ctx context.Context, name string) bool {
	out := c.inspect(ctx, name, formatRootful)
	if out == "" {
		return true
	}
	return !strings.EqualFold(out, "false")
}

// DefaultConnectionURI returns the URI of the default system connection,
// or "" if there is none.
func (c *Client) DefaultConnectionURI(ctx context.Context) string {
	out := c.query(ctx, "system", "connection", "ls", "--format", formatConnections)
	return parseDefaultConnection(out)
}

// parseDefaultConnection picks the URI from the first "true <uri>" line.
func parseDefaultConnection(out string) string {
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 2 && fields[0] == "true" {
			return fields[1]
		}
	}
	return ""
}

// SocketPathFromURI strips the scheme and host from a connection URI and
// keeps everything from the first "/" of the remainder:
//
//	unix:///run/user/1000/podman/podman.sock     → /run/user/1000/podman/podman.sock
//	ssh://core@127.0.0.1:52000/run/podman/podman.sock → /run/podman/podman.sock
//
// It returns "" when the URI has no scheme or no path.
func SocketPathFromURI(uri string) string {
	_, rest, ok := strings.Cut(uri, "://")
	if !ok {
		return ""
	}
	i := strings.Index(rest, "/")
	if i < 0 {
		return ""
	}
	return rest[i:]
}

// RootlessSocketPath is the canonical podman socket inside a VM for a
// rootless user with the given uid.
func RootlessSocketPath(uid int) string {
	return "/run/user/" + strconv.Itoa(uid) + "/podman/podman.sock"
}

// InitOptions describe a new machine.
type InitOptions struct {
	Sizing model.Sizing

	// Volumes are "host:guest" mounts.
	Volumes []string
}

// MachineInit creates a machine with the given sizing and mounts.
func (c *Client) MachineInit(ctx context.Context, name string, opts InitOptions) error {
	args := []string{
		"machine", "init", name,
		"--cpus", strconv.Itoa(opts.Sizing.CPUs),
		"--memory", strconv.FormatInt(opts.Sizing.MemoryMB, 10),
		"--disk-size", strconv.FormatInt(opts.Sizing.DiskGB, 10),
	}
	for _, v := range opts.Volumes {
		args = append(args, "--volume", v)
	}
	_, err := c.runner.Run(ctx, args...)
	return err
}

// MachineStart boots the machine.
func (c *Client) MachineStart(ctx context.Context, name string) error {
	_, err := c.runner.Run(ctx, "machine", "start", name)
	return err
}

// MachineStop shuts the machine down.
func (c *Client) MachineStop(ctx context.Context, name string) error {
	_, err := c.runner.Run(ctx, "machine", "stop", name)
	return err
}

// PruneInMachine removes all unused images, containers and volumes older
// than retention, by running `podman system prune` inside the machine.
func (c *Client) PruneInMachine(ctx context.Context, name string, retention string) error {
	_, err := c.runner.Run(ctx,
		"machine", "ssh", name, "--",
		"podman", "system", "prune", "-a", "--volumes", "--force",
		"--filter", "until="+retention,
	)
	return err
}

// ServiceArgv returns the command line of a podman API service that
// listens on socketPath and never exits on idle.
func ServiceArgv(binary, socketPath string) []string {
	if binary == "" {
		binary = "podman"
	}
	return []string{binary, "system", "service", "--time=0", fmt.Sprintf("unix://%s", socketPath)}
}
