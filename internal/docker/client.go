package docker

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// defaultPingTimeout is the maximum duration to wait for an API response
// during a Ping operation. A podman machine that has just booted can be
// slow to answer its first request, so the budget is generous.
const defaultPingTimeout = 5 * time.Second

// engineAPI is the subset of the Docker SDK client used by this package.
// *client.Client satisfies it; tests substitute a fake so container runs
// can be verified without a daemon.
type engineAPI interface {
	Ping(ctx context.Context) (types.Ping, error)
	ImagePull(ctx context.Context, ref string, options image.PullOptions) (io.ReadCloser, error)
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig,
		networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerWait(ctx context.Context, containerID string, condition container.WaitCondition) (<-chan container.WaitResponse, <-chan error)
	ContainerLogs(ctx context.Context, containerID string, options container.LogsOptions) (io.ReadCloser, error)
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
	Close() error
}

// Client wraps the Docker Engine SDK client.
//
// Usage:
//
//	c, err := docker.NewClient(env.DockerHost)
//	if err != nil { /* handle */ }
//	defer c.Close()  // Always close to release resources
//	if err := c.Ping(ctx); err != nil { /* socket not serving */ }
type Client struct {
	// host is the connection string the client was created for.
	host string

	// api is the underlying SDK client (or a fake in tests).
	api engineAPI
}

// NewClient creates a Docker client for host.
//
// When host is empty the detection strategy follows this priority order:
//  1. DOCKER_HOST environment variable (if set, used as-is)
//  2. /var/run/docker.sock
//  3. ~/.docker/run/docker.sock (Docker Desktop without the symlink)
//  4. /run/user/<uid>/podman/podman.sock (rootless podman)
func NewClient(host string) (*Client, error) {
	// Step 1: An explicit host always wins.
	if host == "" {
		host = os.Getenv("DOCKER_HOST")
	}

	// Step 2: Probe the well-known socket paths.
	if host == "" {
		detected, err := detectDockerHost()
		if err != nil {
			return nil, err
		}
		host = detected
	}

	// client.WithAPIVersionNegotiation lets the SDK settle on the highest
	// API version both sides support; podman lags behind Docker here.
	c, err := client.NewClientWithOpts(
		client.WithHost(host),
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Docker client for host %q: %w", host, err)
	}

	return &Client{host: host, api: c}, nil
}

// newClientWithAPI wraps an existing engineAPI. Used by tests.
func newClientWithAPI(host string, api engineAPI) *Client {
	return &Client{host: host, api: api}
}

// candidateSockets lists the socket paths probed by detectDockerHost,
// most-preferred first.
func candidateSockets() []string {
	paths := []string{"/var/run/docker.sock"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".docker", "run", "docker.sock"))
	}
	paths = append(paths, filepath.Join("/run/user", strconv.Itoa(os.Getuid()), "podman", "podman.sock"))
	return paths
}

// detectDockerHost returns the Docker host URI of the first candidate
// socket that exists.
//
// Existence is checked rather than connectivity, because existence
// checks are fast and don't require a running daemon. Ping handles
// connectivity verification.
func detectDockerHost() (string, error) {
	return detectUnixSocket(candidateSockets())
}

// detectUnixSocket probes paths in order and returns "unix://" + the
// first one that exists on the filesystem.
func detectUnixSocket(paths []string) (string, error) {
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			return "unix://" + path, nil
		}
	}
	return "", fmt.Errorf("Docker socket not found at any of: %v", paths)
}

// Host returns the connection string the client uses.
func (c *Client) Host() string {
	return c.host
}

// Ping verifies that the API behind the socket is reachable and
// responsive, waiting up to defaultPingTimeout for a response.
func (c *Client) Ping(ctx context.Context) error {
	// A child context prevents hanging indefinitely if the VM is
	// paused or the service is wedged.
	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	if _, err := c.api.Ping(pingCtx); err != nil {
		return fmt.Errorf("Docker API at %s is not responding: %w", c.host, err)
	}
	return nil
}

// Close releases all resources held by the Docker client.
// Close is safe to call multiple times.
func (c *Client) Close() error {
	if c.api != nil {
		return c.api.Close()
	}
	return nil
}
