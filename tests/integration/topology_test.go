package integration

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adhunik-labs/adhunik/internal/compose"
	"github.com/adhunik-labs/adhunik/internal/docker"
	"github.com/adhunik-labs/adhunik/internal/doctor"
)

func TestDevUpIsIdempotent(t *testing.T) {
	ctx := context.Background()

	svc, hostPort := cacheService(t)
	client := startService(t, ctx, svc)

	statuses, err := client.Status(ctx, []*compose.Service{svc})
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.Equal(t, docker.StateRunning, statuses[0].State)
	firstID := statuses[0].ContainerID

	// reissuing Up against a running service is a no-op
	err = client.Up(ctx, []*compose.Service{svc})
	require.NoError(t, err)

	statuses, err = client.Status(ctx, []*compose.Service{svc})
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.Equal(t, docker.StateRunning, statuses[0].State)
	assert.Equal(t, firstID, statuses[0].ContainerID, "container should not have been recreated")

	// the cache should answer a ping on its published port once it is up
	d := doctor.New(nil)
	addr := fmt.Sprintf("127.0.0.1:%d", hostPort)
	require.Eventually(t, func() bool {
		return d.CheckCache(addr).Status == doctor.StatusOK
	}, 30*time.Second, time.Second)
}
