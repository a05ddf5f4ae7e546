package podman_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinyorch/tinyorch/internal/model"
	"github.com/tinyorch/tinyorch/internal/podman"
	"github.com/tinyorch/tinyorch/internal/podman/podmantest"
)

const machine = "tinyorch"

func inspectArgs(format string) []string {
	return []string{"machine", "inspect", machine, "--format", format}
}

// TestSocketPathFromURI verifies URI-to-path extraction for the forms
// podman reports.
func TestSocketPathFromURI(t *testing.T) {
	tests := []struct {
		name string
		uri  string
		want string
	}{
		{name: "unix", uri: "unix:///run/user/501/podman/podman.sock", want: "/run/user/501/podman/podman.sock"},
		{name: "ssh with host and port", uri: "ssh://core@127.0.0.1:52000/run/podman/podman.sock", want: "/run/podman/podman.sock"},
		{name: "no scheme", uri: "/run/podman/podman.sock", want: ""},
		{name: "no path", uri: "ssh://core@127.0.0.1:52000", want: ""},
		{name: "empty", uri: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, podman.SocketPathFromURI(tt.uri))
		})
	}
}

// TestRootlessSocketPath verifies the canonical per-user socket path.
func TestRootlessSocketPath(t *testing.T) {
	assert.Equal(t, "/run/user/501/podman/podman.sock", podman.RootlessSocketPath(501))
}

// TestMachineQueries verifies that machine queries parse podman output
// and treat a failed query as an unknown value.
func TestMachineQueries(t *testing.T) {
	ctx := context.Background()

	t.Run("existing machine", func(t *testing.T) {
		fake := podmantest.New()
		fake.OK("[{}]", "machine", "inspect", machine)
		fake.OK("Running\n", inspectArgs("{{.State}}")...)
		fake.OK("/tmp/podman/tinyorch-api.sock\n", inspectArgs("{{.ConnectionInfo.PodmanSocket.Path}}")...)
		fake.OK("ssh://core@localhost:50123/run/podman/podman.sock", inspectArgs("{{.ConnectionInfo.PodmanSocket.URI}}")...)

		c := podman.NewClient(fake)
		assert.True(t, c.MachineExists(ctx, machine))
		assert.Equal(t, model.MachineRunning, c.MachineState(ctx, machine))
		assert.Equal(t, "/tmp/podman/tinyorch-api.sock", c.HostSocketPath(ctx, machine))
		assert.Equal(t, "ssh://core@localhost:50123/run/podman/podman.sock", c.SocketURI(ctx, machine))
	})

	t.Run("missing machine", func(t *testing.T) {
		c := podman.NewClient(podmantest.New())
		assert.False(t, c.MachineExists(ctx, machine))
		assert.Equal(t, model.MachineUnknown, c.MachineState(ctx, machine))
		assert.Empty(t, c.HostSocketPath(ctx, machine))
	})
}

// TestRootful verifies that only an explicit "false" means rootless.
func TestRootful(t *testing.T) {
	tests := []struct {
		name   string
		output string
		fail   bool
		want   bool
	}{
		{name: "true", output: "true\n", want: true},
		{name: "false", output: "false\n", want: false},
		{name: "upper-case false", output: "False", want: false},
		{name: "empty output", output: "", want: true},
		{name: "query failed", fail: true, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := podmantest.New()
			if tt.fail {
				fake.Fail(inspectArgs("{{.Rootful}}")...)
			} else {
				fake.OK(tt.output, inspectArgs("{{.Rootful}}")...)
			}
			assert.Equal(t, tt.want, podman.NewClient(fake).Rootful(context.Background(), machine))
		})
	}
}

// TestDefaultConnectionURI verifies that the default connection line is
// picked from the connection listing.
func TestDefaultConnectionURI(t *testing.T) {
	fake := podmantest.New()
	fake.OK("false ssh://core@localhost:50123/run/user/501/podman/podman.sock\n"+
		"true ssh://root@localhost:50123/run/podman/podman.sock\n",
		"system", "connection", "ls", "--format", "{{.Default}} {{.URI}}")

	uri := podman.NewClient(fake).DefaultConnectionURI(context.Background())
	assert.Equal(t, "ssh://root@localhost:50123/run/podman/podman.sock", uri)

	assert.Empty(t, podman.NewClient(podmantest.New()).DefaultConnectionURI(context.Background()))
}

// TestMachineInit verifies the flags passed to `podman machine init`.
func TestMachineInit(t *testing.T) {
	fake := podmantest.New()
	c := podman.NewClient(fake)

	err := c.MachineInit(context.Background(), machine, podman.InitOptions{
		Sizing:  model.Sizing{CPUs: 4, MemoryMB: 13107, DiskGB: 80},
		Volumes: []string{"/Users:/Users", "/Volumes:/Volumes"},
	})
	// Unscripted commands fail; the arguments are what matters here.
	require.ErrorIs(t, err, podmantest.ErrNotScripted)

	call, ok := fake.Find("machine", "init")
	require.True(t, ok)
	assert.Equal(t, []string{
		"machine", "init", machine,
		"--cpus", "4",
		"--memory", "13107",
		"--disk-size", "80",
		"--volume", "/Users:/Users",
		"--volume", "/Volumes:/Volumes",
	}, call)
}

// TestPruneInMachine verifies the prune command issued through ssh.
func TestPruneInMachine(t *testing.T) {
	fake := podmantest.New()
	_ = podman.NewClient(fake).PruneInMachine(context.Background(), machine, "720h")

	call, ok := fake.Find("machine", "ssh")
	require.True(t, ok)
	assert.Equal(t, []string{
		"machine", "ssh", machine, "--",
		"podman", "system", "prune", "-a", "--volumes", "--force", "--filter", "until=720h",
	}, call)
}

// TestServiceArgv verifies the service command line.
func TestServiceArgv(t *testing.T) {
	assert.Equal(t,
		[]string{"podman", "system", "service", "--time=0", "unix:///tmp/run/podman-docker-1001.sock"},
		podman.ServiceArgv("", "/tmp/run/podman-docker-1001.sock"))
}

// TestCommandError verifies the error message carries stderr.
func TestCommandError(t *testing.T) {
	err := &podman.CommandError{
		Args:   []string{"machine", "start", machine},
		Stderr: "VM already running",
		Err:    assert.AnError,
	}
	assert.Contains(t, err.Error(), "podman machine start tinyorch failed: VM already running")
	assert.ErrorIs(t, err, assert.AnError)
}
