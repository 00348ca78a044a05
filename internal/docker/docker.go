// Package docker manages the containerized data services of the local
// development topology through the Docker API.
package docker

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/docker/distribution/reference"
	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	specs "github.com/opencontainers/image-spec/specs-go/v1"
	log "github.com/sirupsen/logrus"

	"github.com/adhunik-labs/adhunik/internal/compose"
)

var defaultStopTimeout = 10 * time.Second

// Container states reported by Status.
const (
	StateRunning = "running"
	StateStopped = "stopped"
	StateAbsent  = "absent"
)

// ServiceStatus describes the observed state of one data service.
type ServiceStatus struct {
	Service     string
	ContainerID string
	State       string
	Ports       []string
}

// containerAPI is the slice of the Docker API the topology needs.
type containerAPI interface {
	ContainerList(ctx context.Context, options types.ContainerListOptions) ([]types.Container, error)
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *specs.Platform, containerName string) (container.ContainerCreateCreatedBody, error)
	ContainerStart(ctx context.Context, containerID string, options types.ContainerStartOptions) error
	ContainerStop(ctx context.Context, containerID string, timeout *time.Duration) error
	ContainerRemove(ctx context.Context, containerID string, options types.ContainerRemoveOptions) error
	ContainerLogs(ctx context.Context, containerID string, options types.ContainerLogsOptions) (io.ReadCloser, error)
	ImagePull(ctx context.Context, refStr string, options types.ImagePullOptions) (io.ReadCloser, error)
}

// Client wraps the Docker API client with service-level operations.
type Client struct {
	docker containerAPI
	logger *log.Logger
	// prefix namespaces the containers managed by this client.
	prefix string
}

// NewClient returns a docker client configured from the environment.
func NewClient(logger *log.Logger) (*Client, error) {
	cli, err := client.NewEnvClient()
	if err != nil {
		return nil, fmt.Errorf("unable to create docker client: %w", err)
	}
	if logger == nil {
		logger = log.New()
	}
	return &Client{docker: cli, logger: logger, prefix: "adhunik"}, nil
}

func (c *Client) containerName(service string) string {
	return fmt.Sprintf("%s_%s", c.prefix, service)
}

// Up brings up the given services in detached mode. Services whose
// containers are already running are left untouched and reported as already
// up, so reissuing Up against a running topology is a no-op.
func (c *Client) Up(ctx context.Context, services []*compose.Service) error {
	for _, svc := range services {
		if err := c.upService(ctx, svc); err != nil {
			return fmt.Errorf("service '%s': %w", svc.Name, err)
		}
	}
	return nil
}

func (c *Client) upService(ctx context.Context, svc *compose.Service) error {
	existing, err := c.findContainer(ctx, svc.Name)
	if err != nil {
		return err
	}

	if existing != nil {
		if existing.State == "running" {
			c.logger.WithField("service", svc.Name).Info("already up")
			return nil
		}

		c.logger.WithField("service", svc.Name).Info("starting existing container")
		if err := c.docker.ContainerStart(ctx, existing.ID, types.ContainerStartOptions{}); err != nil {
			return fmt.Errorf("unable to start the container: %w", err)
		}
		return nil
	}

	id, err := c.runContainer(ctx, svc)
	if err != nil {
		return err
	}

	c.logger.WithFields(log.Fields{
		"service":   svc.Name,
		"container": shortID(id),
	}).Info("started")
	return nil
}

// Down stops and removes the containers of the given services. Services with
// no container are skipped.
func (c *Client) Down(ctx context.Context, services []*compose.Service) error {
	for _, svc := range services {
		existing, err := c.findContainer(ctx, svc.Name)
		if err != nil {
			return fmt.Errorf("service '%s': %w", svc.Name, err)
		}
		if existing == nil {
			c.logger.WithField("service", svc.Name).Info("not running")
			continue
		}

		if err := c.removeContainer(ctx, existing.ID); err != nil {
			return fmt.Errorf("service '%s': %w", svc.Name, err)
		}
		c.logger.WithField("service", svc.Name).Info("stopped")
	}
	return nil
}

// Status reports the container state for each of the given services.
func (c *Client) Status(ctx context.Context, services []*compose.Service) ([]*ServiceStatus, error) {
	statuses := make([]*ServiceStatus, 0, len(services))
	for _, svc := range services {
		existing, err := c.findContainer(ctx, svc.Name)
		if err != nil {
			return nil, fmt.Errorf("service '%s': %w", svc.Name, err)
		}

		status := &ServiceStatus{Service: svc.Name, State: StateAbsent}
		if existing != nil {
			status.ContainerID = shortID(existing.ID)
			if existing.State == "running" {
				status.State = StateRunning
			} else {
				status.State = StateStopped
			}
			for _, p := range existing.Ports {
				if p.PublicPort != 0 {
					status.Ports = append(status.Ports,
						fmt.Sprintf("%d->%d/%s", p.PublicPort, p.PrivatePort, p.Type))
				}
			}
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func (c *Client) findContainer(ctx context.Context, service string) (*types.Container, error) {
	name := c.containerName(service)
	containers, err := c.docker.ContainerList(ctx, types.ContainerListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("name", "^/"+name+"$")),
	})
	if err != nil {
		return nil, fmt.Errorf("unable to list containers: %w", err)
	}
	if len(containers) == 0 {
		return nil, nil
	}
	return &containers[0], nil
}

func (c *Client) runContainer(ctx context.Context, svc *compose.Service) (string, error) {
	imageName, err := reference.ParseNormalizedNamed(svc.Image)
	if err != nil {
		return "", fmt.Errorf("unable to normalize image name: %w", err)
	}
	fullName := imageName.String()

	out, err := c.docker.ImagePull(ctx, fullName, types.ImagePullOptions{})
	if err != nil {
		return "", fmt.Errorf("unable to pull image: %w", err)
	}
	// drain to completion; the pull is async until EOF
	io.Copy(io.Discard, out)
	out.Close()

	created, err := c.createContainer(ctx, fullName, svc)
	if err != nil {
		return "", fmt.Errorf("unable to create container: %w", err)
	}

	err = c.docker.ContainerStart(ctx, created.ID, types.ContainerStartOptions{})
	if err != nil {
		return "", fmt.Errorf("unable to start the container: %w", err)
	}
	return created.ID, nil
}

func (c *Client) createContainer(ctx context.Context, image string, svc *compose.Service) (*container.ContainerCreateCreatedBody, error) {
	portBinding := nat.PortMap{}
	exposed := nat.PortSet{}
	for _, portmap := range svc.Ports {
		proto := portmap.Proto
		if proto == "" {
			proto = "tcp"
		}
		containerPort, err := nat.NewPort(proto, portmap.ContainerPort)
		if err != nil {
			return nil, fmt.Errorf("unable to get the port: %w", err)
		}
		exposed[containerPort] = struct{}{}
		portBinding[containerPort] = []nat.PortBinding{{
			HostIP:   "0.0.0.0",
			HostPort: portmap.HostPort,
		}}
	}

	containerConfig := &container.Config{
		Image:        image,
		Env:          svc.Env,
		ExposedPorts: exposed,
	}
	if len(svc.Command) > 0 {
		containerConfig.Cmd = svc.Command
	}

	hostConfig := &container.HostConfig{
		PortBindings: portBinding,
	}
	networkingConfig := &network.NetworkingConfig{}

	cont, err := c.docker.ContainerCreate(ctx, containerConfig, hostConfig, networkingConfig, nil, c.containerName(svc.Name))
	if err != nil {
		return nil, err
	}
	return &cont, nil
}

func (c *Client) removeContainer(ctx context.Context, id string) error {
	err := c.docker.ContainerStop(ctx, id, &defaultStopTimeout)
	if err != nil {
		return fmt.Errorf("failed stopping container: %w", err)
	}

	err = c.docker.ContainerRemove(ctx, id, types.ContainerRemoveOptions{
		RemoveVolumes: true,
		Force:         false,
	})
	if err != nil {
		return fmt.Errorf("failed removing container: %w", err)
	}
	return nil
}

// Logs streams a container's logs to the given writer.
func (c *Client) Logs(ctx context.Context, service string, w io.Writer) error {
	existing, err := c.findContainer(ctx, service)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("service '%s' has no container", service)
	}

	out, err := c.docker.ContainerLogs(ctx, existing.ID, types.ContainerLogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Timestamps: true,
	})
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(w, out)
	return err
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
