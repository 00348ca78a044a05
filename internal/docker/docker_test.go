package docker

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	specs "github.com/opencontainers/image-spec/specs-go/v1"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adhunik-labs/adhunik/internal/compose"
)

type fakeAPI struct {
	containers []types.Container

	pulled  []string
	created []string
	started []string
	stopped []string
	removed []string
}

func (f *fakeAPI) ContainerList(_ context.Context, options types.ContainerListOptions) ([]types.Container, error) {
	name := options.Filters.Get("name")[0]
	name = strings.TrimSuffix(strings.TrimPrefix(name, "^/"), "$")

	var matches []types.Container
	for _, c := range f.containers {
		for _, n := range c.Names {
			if n == "/"+name {
				matches = append(matches, c)
			}
		}
	}
	return matches, nil
}

func (f *fakeAPI) ContainerCreate(_ context.Context, config *container.Config, _ *container.HostConfig, _ *network.NetworkingConfig, _ *specs.Platform, containerName string) (container.ContainerCreateCreatedBody, error) {
	f.created = append(f.created, containerName)
	return container.ContainerCreateCreatedBody{ID: "new-" + containerName}, nil
}

func (f *fakeAPI) ContainerStart(_ context.Context, containerID string, _ types.ContainerStartOptions) error {
	f.started = append(f.started, containerID)
	return nil
}

func (f *fakeAPI) ContainerStop(_ context.Context, containerID string, _ *time.Duration) error {
	f.stopped = append(f.stopped, containerID)
	return nil
}

func (f *fakeAPI) ContainerRemove(_ context.Context, containerID string, _ types.ContainerRemoveOptions) error {
	f.removed = append(f.removed, containerID)
	return nil
}

func (f *fakeAPI) ContainerLogs(_ context.Context, _ string, _ types.ContainerLogsOptions) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("log line\n")), nil
}

func (f *fakeAPI) ImagePull(_ context.Context, refStr string, _ types.ImagePullOptions) (io.ReadCloser, error) {
	f.pulled = append(f.pulled, refStr)
	return io.NopCloser(strings.NewReader("")), nil
}

func newTestClient(api *fakeAPI) *Client {
	logger := log.New()
	logger.SetOutput(io.Discard)
	return &Client{docker: api, logger: logger, prefix: "adhunik"}
}

func testServices() []*compose.Service {
	return []*compose.Service{
		{
			Name:  "db",
			Image: "postgres:16-alpine",
			Env:   []string{"POSTGRES_DB=adhunik"},
			Ports: []*compose.PortMapping{{HostPort: "5432", ContainerPort: "5432", Proto: "tcp"}},
		},
		{
			Name:  "cache",
			Image: "redis:7-alpine",
			Ports: []*compose.PortMapping{{HostPort: "6379", ContainerPort: "6379", Proto: "tcp"}},
		},
	}
}

func TestUpCreatesMissingContainers(t *testing.T) {
	api := &fakeAPI{}
	c := newTestClient(api)

	err := c.Up(context.Background(), testServices())
	require.NoError(t, err)

	assert.Equal(t, []string{"adhunik_db", "adhunik_cache"}, api.created)
	assert.Equal(t, []string{"new-adhunik_db", "new-adhunik_cache"}, api.started)
	assert.Len(t, api.pulled, 2)
}

func TestUpIsIdempotent(t *testing.T) {
	api := &fakeAPI{
		containers: []types.Container{
			{ID: "db-id", Names: []string{"/adhunik_db"}, State: "running"},
			{ID: "cache-id", Names: []string{"/adhunik_cache"}, State: "running"},
		},
	}
	c := newTestClient(api)

	// reissuing up against running services is a no-op
	err := c.Up(context.Background(), testServices())
	require.NoError(t, err)

	assert.Empty(t, api.pulled)
	assert.Empty(t, api.created)
	assert.Empty(t, api.started)
}

func TestUpRestartsStoppedContainer(t *testing.T) {
	api := &fakeAPI{
		containers: []types.Container{
			{ID: "db-id", Names: []string{"/adhunik_db"}, State: "exited"},
		},
	}
	c := newTestClient(api)

	err := c.Up(context.Background(), testServices()[:1])
	require.NoError(t, err)

	assert.Empty(t, api.created)
	assert.Equal(t, []string{"db-id"}, api.started)
}

func TestDown(t *testing.T) {
	api := &fakeAPI{
		containers: []types.Container{
			{ID: "db-id", Names: []string{"/adhunik_db"}, State: "running"},
		},
	}
	c := newTestClient(api)

	err := c.Down(context.Background(), testServices())
	require.NoError(t, err)

	assert.Equal(t, []string{"db-id"}, api.stopped)
	assert.Equal(t, []string{"db-id"}, api.removed)
}

func TestStatus(t *testing.T) {
	api := &fakeAPI{
		containers: []types.Container{
			{
				ID:    "db-container-id-0123456789",
				Names: []string{"/adhunik_db"},
				State: "running",
				Ports: []types.Port{{PrivatePort: 5432, PublicPort: 5432, Type: "tcp"}},
			},
			{ID: "cache-id", Names: []string{"/adhunik_cache"}, State: "exited"},
		},
	}
	c := newTestClient(api)

	statuses, err := c.Status(context.Background(), testServices())
	require.NoError(t, err)
	require.Len(t, statuses, 2)

	assert.Equal(t, StateRunning, statuses[0].State)
	assert.Equal(t, "db-container", statuses[0].ContainerID)
	assert.Equal(t, []string{"5432->5432/tcp"}, statuses[0].Ports)

	assert.Equal(t, StateStopped, statuses[1].State)
}
