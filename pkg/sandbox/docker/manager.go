// Package docker implements sandbox.Manager with one Docker container
// per task. The container runs a small HTTP execution server; code is
// posted to it and the captured stdout/stderr come back as JSON.
package docker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"

	"ooda/pkg/sandbox"
)

const (
	// DefaultImage is the sandbox image; it must be built beforehand.
	DefaultImage = "ooda-sandbox:latest"
	// serverPort is the execution server's port inside the container.
	serverPort = "8000"
	// healthTimeout bounds sandbox startup; first boot can be slow.
	healthTimeout = 60 * time.Second
)

// Manager implements sandbox.Manager using Docker containers.
type Manager struct {
	cli   *client.Client
	image string
}

var _ sandbox.Manager = (*Manager)(nil)

// New creates a Manager from the environment's Docker configuration.
// An empty image selects DefaultImage.
func New(image string) (*Manager, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	if image == "" {
		image = DefaultImage
	}
	return &Manager{cli: cli, image: image}, nil
}

func (m *Manager) Close() error {
	return m.cli.Close()
}

func (m *Manager) containerName(taskID string) string {
	return fmt.Sprintf("ooda-task-%s", taskID)
}

// RunCode posts the code to the task's execution server, starting the
// sandbox first when needed.
func (m *Manager) RunCode(ctx context.Context, taskID, code string) (*sandbox.Result, error) {
	hostPort, err := m.ensureRunning(ctx, taskID)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("http://127.0.0.1:%s/execute", hostPort)

	reqBody := map[string]any{
		"code":         code,
		"split_output": true,
	}
	jsonBody, _ := json.Marshal(reqBody)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("sandbox error %d: %s", resp.StatusCode, string(body))
	}

	var res struct {
		Stdout string `json:"stdout"`
		Stderr string `json:"stderr"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, err
	}

	return &sandbox.Result{Stdout: res.Stdout, Stderr: res.Stderr}, nil
}

// Stop force-removes the task's container.
func (m *Manager) Stop(ctx context.Context, taskID string) error {
	return m.cli.ContainerRemove(ctx, m.containerName(taskID), types.ContainerRemoveOptions{
		Force: true,
	})
}

// ensureRunning checks if the container is running, starts it if not,
// and returns the mapped host port.
func (m *Manager) ensureRunning(ctx context.Context, taskID string) (string, error) {
	name := m.containerName(taskID)

	c, err := m.cli.ContainerInspect(ctx, name)
	if err != nil {
		if client.IsErrNotFound(err) {
			return m.createAndStart(ctx, taskID)
		}
		return "", fmt.Errorf("failed to inspect container: %w", err)
	}

	if c.State.Running {
		port, err := m.getPort(c)
		if err != nil {
			return "", err
		}
		if err := m.waitForHealth(ctx, port); err != nil {
			return "", err
		}
		return port, nil
	}

	// Exists but stopped; start it again.
	if err := m.cli.ContainerStart(ctx, name, types.ContainerStartOptions{}); err != nil {
		return "", fmt.Errorf("failed to start container: %w", err)
	}

	c, err = m.cli.ContainerInspect(ctx, name)
	if err != nil {
		return "", err
	}
	port, err := m.getPort(c)
	if err != nil {
		return "", err
	}
	if err := m.waitForHealth(ctx, port); err != nil {
		return "", err
	}
	return port, nil
}

func (m *Manager) createAndStart(ctx context.Context, taskID string) (string, error) {
	if _, _, err := m.cli.ImageInspectWithRaw(ctx, m.image); err != nil {
		return "", fmt.Errorf("sandbox image %q not found, build it first: %w", m.image, err)
	}

	cfg := &container.Config{
		Image: m.image,
		ExposedPorts: nat.PortSet{
			nat.Port(serverPort + "/tcp"): {},
		},
	}

	hostCfg := &container.HostConfig{
		PortBindings: nat.PortMap{
			nat.Port(serverPort + "/tcp"): []nat.PortBinding{
				{
					HostIP:   "127.0.0.1",
					HostPort: "0",
				},
			},
		},
	}

	name := m.containerName(taskID)
	resp, err := m.cli.ContainerCreate(ctx, cfg, hostCfg, nil, nil, name)
	if err != nil {
		return "", fmt.Errorf("failed to create container: %w", err)
	}
	slog.Info("created sandbox container", "task", taskID, "container", name)

	if err := m.cli.ContainerStart(ctx, resp.ID, types.ContainerStartOptions{}); err != nil {
		return "", fmt.Errorf("failed to start container: %w", err)
	}

	c, err := m.cli.ContainerInspect(ctx, resp.ID)
	if err != nil {
		return "", err
	}
	port, err := m.getPort(c)
	if err != nil {
		return "", err
	}
	if err := m.waitForHealth(ctx, port); err != nil {
		return "", err
	}
	return port, nil
}

func (m *Manager) getPort(c types.ContainerJSON) (string, error) {
	ports := c.NetworkSettings.Ports[nat.Port(serverPort+"/tcp")]
	if len(ports) > 0 {
		return ports[0].HostPort, nil
	}
	return "", fmt.Errorf("container running but port not mapped")
}

func (m *Manager) waitForHealth(ctx context.Context, port string) error {
	url := fmt.Sprintf("http://127.0.0.1:%s/healthz", port)
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	timeoutCtx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	for {
		select {
		case <-timeoutCtx.Done():
			return fmt.Errorf("timeout waiting for sandbox health")
		case <-ticker.C:
			resp, err := http.Get(url)
			if err == nil && resp.StatusCode == http.StatusOK {
				resp.Body.Close()
				return nil
			}
		}
	}
}
