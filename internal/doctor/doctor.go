// Package doctor probes the development topology and explains what is
// broken. Its main job is catching the classic env file mistake: a
// DATABASE_URL pointing at the compose service name when the process runs
// on the host, or at localhost when it runs inside a container.
package doctor

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx"
	log "github.com/sirupsen/logrus"

	"github.com/adhunik-labs/adhunik/internal/envfile"
)

const probeTimeout = 3 * time.Second

// CheckStatus is the outcome of a single probe.
type CheckStatus string

const (
	StatusOK   = CheckStatus("ok")
	StatusFail = CheckStatus("fail")
	StatusSkip = CheckStatus("skip")
)

// Check is the result of probing one component.
type Check struct {
	Name   string
	Status CheckStatus
	Detail string
	Advice string
}

// Doctor runs connectivity probes against the local topology.
type Doctor struct {
	logger *log.Logger
}

// New initializes a new Doctor.
func New(logger *log.Logger) *Doctor {
	if logger == nil {
		logger = log.New()
	}
	return &Doctor{logger: logger}
}

// CheckPostgres attempts a connection and ping against the database URL.
func (d *Doctor) CheckPostgres(databaseURL string) Check {
	check := Check{Name: "database"}
	if databaseURL == "" {
		check.Status = StatusSkip
		check.Detail = "no database URL configured"
		return check
	}

	cfg, err := pgx.ParseURI(databaseURL)
	if err != nil {
		check.Status = StatusFail
		check.Detail = fmt.Sprintf("invalid database URL: %v", err)
		return check
	}

	conn, err := pgx.Connect(cfg)
	if err != nil {
		check.Status = StatusFail
		check.Detail = err.Error()
		check.Advice = Diagnose(databaseURL, err)
		return check
	}
	defer conn.Close()

	if err := conn.Ping(context.Background()); err != nil {
		check.Status = StatusFail
		check.Detail = err.Error()
		return check
	}

	check.Status = StatusOK
	check.Detail = fmt.Sprintf("connected to %s:%d", cfg.Host, cfg.Port)
	return check
}

// CheckCache dials the cache and issues a PING. The probe speaks just
// enough of the wire protocol to avoid a client dependency.
func (d *Doctor) CheckCache(addr string) Check {
	check := Check{Name: "cache"}
	if addr == "" {
		check.Status = StatusSkip
		check.Detail = "no cache address configured"
		return check
	}

	conn, err := net.DialTimeout("tcp", addr, probeTimeout)
	if err != nil {
		check.Status = StatusFail
		check.Detail = err.Error()
		check.Advice = diagnoseDial(addr, err)
		return check
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(probeTimeout))
	if _, err := conn.Write([]byte("PING\r\n")); err != nil {
		check.Status = StatusFail
		check.Detail = fmt.Sprintf("unable to send ping: %v", err)
		return check
	}

	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		check.Status = StatusFail
		check.Detail = fmt.Sprintf("no ping response: %v", err)
		return check
	}
	if !strings.HasPrefix(line, "+PONG") {
		check.Status = StatusFail
		check.Detail = fmt.Sprintf("unexpected ping response: %s", strings.TrimSpace(line))
		return check
	}

	check.Status = StatusOK
	check.Detail = fmt.Sprintf("cache responding at %s", addr)
	return check
}

// CheckAPI issues a GET against the API health endpoint.
func (d *Doctor) CheckAPI(baseURL string) Check {
	check := Check{Name: "api"}
	if baseURL == "" {
		check.Status = StatusSkip
		check.Detail = "no API base URL configured"
		return check
	}

	client := &http.Client{Timeout: probeTimeout}
	resp, err := client.Get(strings.TrimRight(baseURL, "/") + "/healthz")
	if err != nil {
		check.Status = StatusFail
		check.Detail = err.Error()
		check.Advice = "start the API with 'adhunik serve'"
		return check
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		check.Status = StatusFail
		check.Detail = fmt.Sprintf("health endpoint returned %d", resp.StatusCode)
		return check
	}

	check.Status = StatusOK
	check.Detail = "API healthy"
	return check
}

// Diagnose inspects a database connection failure and, when the host in
// the URL explains it, suggests the env file fix.
func Diagnose(databaseURL string, connErr error) string {
	host, err := envfile.HostOf(databaseURL)
	if err != nil || host == "" {
		return ""
	}
	return diagnoseHost(host, connErr)
}

func diagnoseDial(addr string, connErr error) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	return diagnoseHost(host, connErr)
}

func diagnoseHost(host string, connErr error) string {
	if envfile.IsLoopback(host) {
		if isConnRefused(connErr) {
			return "nothing is listening on localhost; run 'adhunik dev up' to start the data services, " +
				"or if this process runs inside a container, point the env file at the compose service name"
		}
		return ""
	}

	// a compose service name only resolves on the compose network
	if _, err := net.LookupHost(host); err != nil {
		return fmt.Sprintf("'%s' looks like a compose service name, which does not resolve from the host machine; "+
			"switch the env file host to localhost with 'adhunik dev up' running", host)
	}
	return ""
}

func isConnRefused(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "connection refused")
}
