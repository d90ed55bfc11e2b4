package docker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"
)

// ContainerInfo captures minimal runtime details about a started container.
type ContainerInfo struct {
	ID          string
	PortBinding nat.PortMap
}

// RunContainer creates and starts a container exposing the provided port
// mappings. Validation containers are one-shot: no restart policy is set, a
// runtime that dies stays dead so the failure is observable.
func (c *Client) RunContainer(ctx context.Context, name, image string, cmd []string, env []string, ports nat.PortMap) (ContainerInfo, error) {
	if strings.TrimSpace(name) == "" {
		return ContainerInfo{}, fmt.Errorf("container name cannot be empty")
	}
	if strings.TrimSpace(image) == "" {
		return ContainerInfo{}, fmt.Errorf("image name cannot be empty")
	}

	config := &container.Config{
		Image:        image,
		Cmd:          cmd,
		Env:          env,
		ExposedPorts: map[nat.Port]struct{}{},
	}
	for p := range ports {
		config.ExposedPorts[p] = struct{}{}
	}

	hostCfg := &container.HostConfig{
		PortBindings: ports,
	}

	r, err := c.inner.ContainerCreate(ctx, config, hostCfg, nil, nil, name)
	if err != nil {
		return ContainerInfo{}, fmt.Errorf("container create: %w", err)
	}

	if err := c.inner.ContainerStart(ctx, r.ID, container.StartOptions{}); err != nil {
		return ContainerInfo{}, fmt.Errorf("container start: %w", err)
	}

	var inspect types.ContainerJSON
	for attempt := 0; attempt < 10; attempt++ {
		inspect, err = c.inner.ContainerInspect(ctx, r.ID)
		if err != nil {
			return ContainerInfo{}, fmt.Errorf("container inspect: %w", err)
		}
		if hasHostPort(inspect.NetworkSettings) {
			break
		}
		if attempt == 9 {
			break
		}
		select {
		case <-ctx.Done():
			return ContainerInfo{}, fmt.Errorf("wait for host port: %w", ctx.Err())
		case <-time.After(200 * time.Millisecond):
		}
	}

	portsBinding := nat.PortMap{}
	if inspect.NetworkSettings != nil && inspect.NetworkSettings.Ports != nil {
		portsBinding = inspect.NetworkSettings.Ports
	}

	return ContainerInfo{ID: r.ID, PortBinding: portsBinding}, nil
}

func hasHostPort(settings *types.NetworkSettings) bool {
	if settings == nil || settings.Ports == nil {
		return false
	}
	for _, bindings := range settings.Ports {
		for _, binding := range bindings {
			if strings.TrimSpace(binding.HostPort) != "" {
				return true
			}
		}
	}
	return false
}

// RemoveContainer removes an existing container if it exists.
func (c *Client) RemoveContainer(ctx context.Context, name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("container name cannot be empty")
	}
	if err := c.inner.ContainerRemove(ctx, name, container.RemoveOptions{Force: true, RemoveVolumes: true}); err != nil {
		if client.IsErrNotFound(err) {
			return nil
		}
		return fmt.Errorf("remove container: %w", err)
	}
	return nil
}

// ContainerLogs returns the tail of a container's combined stdout/stderr,
// demultiplexed into plain text. Used for failure diagnosis only.
func (c *Client) ContainerLogs(ctx context.Context, containerID string, tail int) (string, error) {
	if strings.TrimSpace(containerID) == "" {
		return "", fmt.Errorf("container id cannot be empty")
	}
	opts := container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	}
	if tail > 0 {
		opts.Tail = fmt.Sprintf("%d", tail)
	}
	rc, err := c.inner.ContainerLogs(ctx, containerID, opts)
	if err != nil {
		if client.IsErrNotFound(err) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("container logs: %w", err)
	}
	defer rc.Close()

	var out bytes.Buffer
	if _, err := stdcopy.StdCopy(&out, &out, rc); err != nil {
		return "", fmt.Errorf("demux container logs: %w", err)
	}
	return out.String(), nil
}

// CopyFromContainer streams a tar archive of the given in-container path.
// The caller owns the returned reader.
func (c *Client) CopyFromContainer(ctx context.Context, containerID, path string) (io.ReadCloser, error) {
	if strings.TrimSpace(containerID) == "" {
		return nil, fmt.Errorf("container id cannot be empty")
	}
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("copy path cannot be empty")
	}
	rc, _, err := c.inner.CopyFromContainer(ctx, containerID, path)
	if err != nil {
		if client.IsErrNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("copy from container: %w", err)
	}
	return rc, nil
}
