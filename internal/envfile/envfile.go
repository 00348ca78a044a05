// Package envfile reads and patches the env files that configure the two
// application tiers: the backend file carrying the database connection
// string and the frontend file carrying the API base URL.
package envfile

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Conventional keys in the two env files.
const (
	KeyDatabaseURL = "DATABASE_URL"
	KeyAPIBaseURL  = "VITE_API_URL"
)

// Read loads an env file into a map. A missing file yields an empty map, so
// a fresh checkout without env files still works.
func Read(path string) (map[string]string, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return map[string]string{}, nil
	}

	env, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read env file '%s': %w", path, err)
	}
	return env, nil
}

// Patch sets the given keys in the env file, preserving all other keys, and
// writes the result back.
func Patch(path string, updates map[string]string) error {
	env, err := Read(path)
	if err != nil {
		return err
	}
	for k, v := range updates {
		env[k] = v
	}

	if err := godotenv.Write(env, path); err != nil {
		return fmt.Errorf("unable to write env file '%s': %w", path, err)
	}
	return nil
}

// SwitchHost rewrites only the host segment of a database URL, leaving
// credentials, port, database name, and query parameters untouched. It is
// the remediation for the container-network vs host-local addressing
// mismatch: `localhost` when the consuming process runs on the host machine,
// the compose service name when it runs inside the container network.
func SwitchHost(rawURL, host string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("unable to parse database url: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("'%s' has no host segment", rawURL)
	}

	if port := u.Port(); port != "" {
		u.Host = net.JoinHostPort(host, port)
	} else {
		u.Host = host
	}
	return u.String(), nil
}

// HostOf returns the host segment of a database URL.
func HostOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("unable to parse database url: %w", err)
	}
	return u.Hostname(), nil
}

// IsLoopback reports whether the host names the loopback interface.
func IsLoopback(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return false
}
