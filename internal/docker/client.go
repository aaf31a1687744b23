// Package docker wraps the Docker SDK behind a mode-agnostic workload
// listing.
//
// Swarm services and standalone containers both surface as Workload values,
// so the reconciler never needs to know which flavor of Docker it is
// talking to. The mode is auto-detected by default and can be forced:
//
//	client, err := docker.NewClient(ctx, docker.WithHost("unix:///var/run/docker.sock"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	workloads, err := client.ListWorkloads(ctx)
package docker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/swarm"
	"github.com/docker/docker/client"
)

// Mode selects how the client treats the daemon's Swarm state.
type Mode string

const (
	// ModeAuto follows whatever the daemon reports (default).
	ModeAuto Mode = "auto"
	// ModeSwarm requires an active Swarm with this node as a manager.
	ModeSwarm Mode = "swarm"
	// ModeStandalone ignores Swarm entirely and lists containers.
	ModeStandalone Mode = "standalone"
)

func (m Mode) String() string {
	return string(m)
}

var (
	// ErrNotSwarmMode is returned for Swarm-only operations in standalone mode.
	ErrNotSwarmMode = errors.New("operation requires Docker Swarm mode")
	// ErrNotStandaloneMode is returned for container operations in Swarm mode.
	ErrNotStandaloneMode = errors.New("operation requires Docker standalone mode")
	// ErrNotManager is returned when the Swarm node cannot see service state.
	ErrNotManager = errors.New("swarm mode detected but this node is not a manager")
	// ErrSwarmNotActive is returned when ModeSwarm is forced without a swarm.
	ErrSwarmNotActive = errors.New("swarm mode forced but swarm is not active")
)

// Client is the engine's view of one Docker daemon.
type Client struct {
	docker        *client.Client
	mode          Mode
	detectedMode  Mode
	logger        *slog.Logger
	host          string
	cleanupOnStop bool // true: stopped containers count as gone
}

// NewClient connects to the daemon and resolves the operating mode. With no
// options it honors DOCKER_HOST (or the default socket), auto-detects the
// mode, and logs via slog.Default().
func NewClient(ctx context.Context, opts ...Option) (*Client, error) {
	c := &Client{
		mode:          ModeAuto,
		logger:        slog.Default(),
		cleanupOnStop: true,
	}
	for _, opt := range opts {
		opt(c)
	}

	dockerOpts := []client.Opt{
		client.FromEnv,
		client.WithAPIVersionNegotiation(),
	}
	if c.host != "" {
		dockerOpts = append(dockerOpts, client.WithHost(c.host))
	}

	dockerClient, err := client.NewClientWithOpts(dockerOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating docker client: %w", err)
	}
	c.docker = dockerClient

	if err := c.resolveMode(ctx); err != nil {
		dockerClient.Close()
		return nil, err
	}

	c.logger.Info("docker client initialized",
		slog.String("mode", c.detectedMode.String()),
		slog.String("configured_mode", c.mode.String()),
	)
	return c, nil
}

// resolveMode queries the daemon and reconciles its Swarm state with the
// configured mode.
func (c *Client) resolveMode(ctx context.Context) error {
	info, err := c.docker.Info(ctx)
	if err != nil {
		return fmt.Errorf("getting docker info: %w", err)
	}

	isSwarmActive := info.Swarm.LocalNodeState == swarm.LocalNodeStateActive
	isManager := info.Swarm.ControlAvailable

	c.logger.Debug("docker info retrieved",
		slog.String("swarm_state", string(info.Swarm.LocalNodeState)),
		slog.Bool("control_available", isManager),
		slog.String("node_id", info.Swarm.NodeID),
	)

	switch c.mode {
	case ModeAuto:
		if !isSwarmActive {
			c.detectedMode = ModeStandalone
			return nil
		}
		if !isManager {
			return ErrNotManager
		}
		c.detectedMode = ModeSwarm

	case ModeSwarm:
		if !isSwarmActive {
			return ErrSwarmNotActive
		}
		if !isManager {
			return ErrNotManager
		}
		c.detectedMode = ModeSwarm

	case ModeStandalone:
		c.detectedMode = ModeStandalone
	}
	return nil
}

// Mode returns the resolved operating mode.
func (c *Client) Mode() Mode {
	return c.detectedMode
}

// IsSwarm reports whether the client operates on Swarm services.
func (c *Client) IsSwarm() bool {
	return c.detectedMode == ModeSwarm
}

// Close releases the SDK client.
func (c *Client) Close() error {
	if c.docker != nil {
		return c.docker.Close()
	}
	return nil
}

// Ping verifies daemon connectivity.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.docker.Ping(ctx); err != nil {
		return fmt.Errorf("pinging docker: %w", err)
	}
	return nil
}

// RawClient exposes the SDK client for operations the wrapper does not
// cover, such as the event stream.
func (c *Client) RawClient() *client.Client {
	return c.docker
}

// Service is a Swarm service reduced to what DNS management needs.
type Service struct {
	ID     string
	Name   string
	Labels map[string]string
}

// Container is a container reduced to what DNS management needs.
type Container struct {
	ID     string
	Name   string
	Labels map[string]string
}

// ListServices lists Swarm services with their labels. Swarm mode only.
func (c *Client) ListServices(ctx context.Context) ([]Service, error) {
	if c.detectedMode != ModeSwarm {
		return nil, ErrNotSwarmMode
	}

	services, err := c.docker.ServiceList(ctx, swarm.ServiceListOptions{})
	if err != nil {
		return nil, fmt.Errorf("listing services: %w", err)
	}

	result := make([]Service, 0, len(services))
	for _, svc := range services {
		result = append(result, Service{
			ID:     svc.ID,
			Name:   svc.Spec.Name,
			Labels: svc.Spec.Labels,
		})
	}

	c.logger.Debug("listed swarm services", slog.Int("count", len(result)))
	return result, nil
}

// ListContainers lists containers with their labels. Standalone mode only.
// With cleanupOnStop (the default) only running containers appear, so a
// stopped container's records become orphans; without it, stopped and
// created containers stay visible and records survive restarts.
func (c *Client) ListContainers(ctx context.Context) ([]Container, error) {
	if c.detectedMode != ModeStandalone {
		return nil, ErrNotStandaloneMode
	}

	listOpts := container.ListOptions{}
	if c.cleanupOnStop {
		listOpts.Filters = filters.NewArgs(filters.Arg("status", "running"))
	} else {
		listOpts.All = true
		listOpts.Filters = filters.NewArgs(
			filters.Arg("status", "running"),
			filters.Arg("status", "paused"),
			filters.Arg("status", "exited"),
			filters.Arg("status", "created"),
		)
	}

	containers, err := c.docker.ContainerList(ctx, listOpts)
	if err != nil {
		return nil, fmt.Errorf("listing containers: %w", err)
	}

	result := make([]Container, 0, len(containers))
	for _, ctr := range containers {
		result = append(result, Container{
			ID:     ctr.ID,
			Name:   normalizeContainerName(ctr.Names),
			Labels: ctr.Labels,
		})
	}

	c.logger.Debug("listed containers",
		slog.Int("count", len(result)),
		slog.Bool("include_stopped", !c.cleanupOnStop),
	)
	return result, nil
}

// normalizeContainerName picks the first of Docker's name aliases and
// strips its leading slash.
func normalizeContainerName(names []string) string {
	if len(names) == 0 {
		return ""
	}
	return strings.TrimPrefix(names[0], "/")
}

// GetServiceLabels inspects one Swarm service's labels by ID.
func (c *Client) GetServiceLabels(ctx context.Context, serviceID string) (map[string]string, error) {
	if c.detectedMode != ModeSwarm {
		return nil, ErrNotSwarmMode
	}

	svc, _, err := c.docker.ServiceInspectWithRaw(ctx, serviceID, swarm.ServiceInspectOptions{})
	if err != nil {
		return nil, fmt.Errorf("inspecting service %s: %w", serviceID, err)
	}
	return svc.Spec.Labels, nil
}

// GetContainerLabels inspects one container's labels by ID.
func (c *Client) GetContainerLabels(ctx context.Context, containerID string) (map[string]string, error) {
	if c.detectedMode != ModeStandalone {
		return nil, ErrNotStandaloneMode
	}

	ctr, err := c.docker.ContainerInspect(ctx, containerID)
	if err != nil {
		return nil, fmt.Errorf("inspecting container %s: %w", containerID, err)
	}
	return ctr.Config.Labels, nil
}

// ListWorkloads lists services or containers, depending on mode, as the
// unified Workload type.
func (c *Client) ListWorkloads(ctx context.Context) ([]Workload, error) {
	if c.detectedMode == ModeSwarm {
		services, err := c.ListServices(ctx)
		if err != nil {
			return nil, err
		}
		workloads := make([]Workload, 0, len(services))
		for _, svc := range services {
			workloads = append(workloads, Workload{
				ID:     svc.ID,
				Name:   svc.Name,
				Labels: svc.Labels,
				Type:   WorkloadTypeService,
			})
		}
		return workloads, nil
	}

	containers, err := c.ListContainers(ctx)
	if err != nil {
		return nil, err
	}
	workloads := make([]Workload, 0, len(containers))
	for _, ctr := range containers {
		workloads = append(workloads, Workload{
			ID:     ctr.ID,
			Name:   ctr.Name,
			Labels: ctr.Labels,
			Type:   WorkloadTypeContainer,
		})
	}
	return workloads, nil
}

// GetWorkloadLabels inspects one workload's labels, routing by mode.
func (c *Client) GetWorkloadLabels(ctx context.Context, workloadID string) (map[string]string, error) {
	if c.detectedMode == ModeSwarm {
		return c.GetServiceLabels(ctx, workloadID)
	}
	return c.GetContainerLabels(ctx, workloadID)
}
