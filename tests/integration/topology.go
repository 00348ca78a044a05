package integration

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/jackc/pgx"

	"github.com/adhunik-labs/adhunik/internal/compose"
	"github.com/adhunik-labs/adhunik/internal/docker"
)

var (
	dbUser     = "test"
	dbPassword = "test"
	dbName     = "test"
)

func getFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()

	return l.Addr().(*net.TCPAddr).Port, nil
}

func waitForPostgresReady(config *pgx.ConnConfig) bool {
	connected := false
	for count := 0; count < 30; count++ {
		conn, err := pgx.Connect(*config)
		if err == nil {
			connected = true
			conn.Close()
			break
		}
		time.Sleep(2 * time.Second)
	}
	return connected
}

// startService brings up a single service through the topology client and
// registers teardown. It returns the client so tests can reissue Up and
// inspect Status.
func startService(t *testing.T, ctx context.Context, svc *compose.Service) *docker.Client {
	t.Helper()

	client, err := docker.NewClient(nil)
	if err != nil {
		t.Fatalf("could not create docker client: %v", err)
	}

	if err := client.Up(ctx, []*compose.Service{svc}); err != nil {
		t.Fatalf("could not bring up service %s: %v", svc.Name, err)
	}

	t.Cleanup(func() {
		if err := client.Down(ctx, []*compose.Service{svc}); err != nil {
			t.Errorf("could not tear down service %s: %v", svc.Name, err)
		}
	})

	return client
}

// postgresService builds a throwaway database service definition bound to a
// free host port. The service name is unique per test to keep container
// names from colliding.
func postgresService(t *testing.T) (*compose.Service, int) {
	t.Helper()

	hostPort, err := getFreePort()
	if err != nil {
		t.Fatal("could not determine a free port")
	}

	svc := &compose.Service{
		Name:  fmt.Sprintf("itest-db-%d", time.Now().UnixNano()),
		Image: "postgres:15-alpine",
		Env: []string{
			fmt.Sprintf("POSTGRES_DB=%s", dbName),
			fmt.Sprintf("POSTGRES_USER=%s", dbUser),
			fmt.Sprintf("POSTGRES_PASSWORD=%s", dbPassword),
		},
		Ports: []*compose.PortMapping{
			{HostPort: fmt.Sprintf("%d", hostPort), ContainerPort: "5432", Proto: "tcp"},
		},
	}
	return svc, hostPort
}

func cacheService(t *testing.T) (*compose.Service, int) {
	t.Helper()

	hostPort, err := getFreePort()
	if err != nil {
		t.Fatal("could not determine a free port")
	}

	svc := &compose.Service{
		Name:  fmt.Sprintf("itest-cache-%d", time.Now().UnixNano()),
		Image: "redis:7-alpine",
		Ports: []*compose.PortMapping{
			{HostPort: fmt.Sprintf("%d", hostPort), ContainerPort: "6379", Proto: "tcp"},
		},
	}
	return svc, hostPort
}
