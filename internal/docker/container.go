package docker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/pkg/stdcopy"
)

// Seams for tests.
var (
	osGetpid = os.Getpid
	timeNow  = time.Now
)

// RunOptions describes a short-lived container.
type RunOptions struct {
	// Image is the image reference, e.g. "caronc/apprise:latest".
	Image string

	// Cmd overrides the image's default command.
	Cmd []string

	// Env entries are "KEY=value".
	Env []string

	// Purpose is stored in the LabelPurpose label.
	Purpose string
}

// RunResult is the outcome of a container run.
type RunResult struct {
	// ExitCode is the container's exit status.
	ExitCode int64

	// Output holds the combined stdout and stderr of the container.
	Output string
}

// RunEphemeral runs a container to completion and removes it, the SDK
// equivalent of `docker run --rm`.
//
// The image is pulled only when creation reports it missing, which is
// what the docker CLI does for `docker run`. The container is removed
// even when waiting fails. A non-zero exit status is not an error; the
// caller inspects RunResult.ExitCode.
func (c *Client) RunEphemeral(ctx context.Context, opts RunOptions) (RunResult, error) {
	config := &container.Config{
		Image:  opts.Image,
		Cmd:    opts.Cmd,
		Env:    opts.Env,
		Labels: BuildLabels(opts.Purpose, nil),
	}

	// Step 1: Create, pulling the image on first use.
	created, err := c.api.ContainerCreate(ctx, config, &container.HostConfig{}, nil, nil, "")
	if cerrdefs.IsNotFound(err) {
		if perr := c.pull(ctx, opts.Image); perr != nil {
			return RunResult{}, perr
		}
		created, err = c.api.ContainerCreate(ctx, config, &container.HostConfig{}, nil, nil, "")
	}
	if err != nil {
		return RunResult{}, fmt.Errorf("create container from %s: %w", opts.Image, err)
	}

	// Step 2: Always remove, using a fresh context so cancellation of
	// ctx does not leak the container.
	defer func() {
		rmCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = c.api.ContainerRemove(rmCtx, created.ID, container.RemoveOptions{Force: true})
	}()

	// Step 3: Register the wait before starting so a fast exit is not
	// missed.
	statusCh, errCh := c.api.ContainerWait(ctx, created.ID, container.WaitConditionNextExit)

	if err := c.api.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		return RunResult{}, fmt.Errorf("start container %s: %w", shortID(created.ID), err)
	}

	// Step 4: Wait for exit.
	var result RunResult
	select {
	case status := <-statusCh:
		result.ExitCode = status.StatusCode
		if status.Error != nil && status.Error.Message != "" {
			return result, fmt.Errorf("wait for container %s: %s", shortID(created.ID), status.Error.Message)
		}
	case err := <-errCh:
		return result, fmt.Errorf("wait for container %s: %w", shortID(created.ID), err)
	case <-ctx.Done():
		return result, ctx.Err()
	}

	// Step 5: Collect output. Logs are diagnostic, so failures are ignored.
	result.Output = c.logs(ctx, created.ID)
	return result, nil
}

// pull downloads ref and drains the progress stream, which the daemon
// requires before the pull is complete.
func (c *Client) pull(ctx context.Context, ref string) error {
	rc, err := c.api.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("pull %s: %w", ref, err)
	}
	defer rc.Close()

	if _, err := io.Copy(io.Discard, rc); err != nil {
		return fmt.Errorf("pull %s: %w", ref, err)
	}
	return nil
}

// logs returns the demultiplexed stdout and stderr of a container.
func (c *Client) logs(ctx context.Context, id string) string {
	rc, err := c.api.ContainerLogs(ctx, id, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return ""
	}
	defer rc.Close()

	// A truncated stream still yields whatever was copied.
	var out bytes.Buffer
	_, _ = stdcopy.StdCopy(&out, &out, rc)
	return strings.TrimSpace(out.String())
}

// shortID truncates a container ID to the 12 characters docker prints.
func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
