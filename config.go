package adhunik

import (
	"errors"
	"fmt"

	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
)

// DBConfig is a struct that stores database connection settings.
//
// Host must resolve to the loopback interface when the database container's
// port is published to the host, and to the compose service name when the
// consuming process runs inside the container network.
type DBConfig struct {
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     int    `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER" default:"adhunik"`
	Password string `envconfig:"DB_PASS"`
	Database string `envconfig:"DB_NAME" default:"adhunik"`
}

// DSN returns the lib/pq style connection string for the database.
func (c DBConfig) DSN() string {
	return fmt.Sprintf("user=%s password=%s dbname=%s host=%s port=%d sslmode=%s",
		c.User,
		c.Password,
		c.Database,
		c.Host,
		c.Port,
		"disable",
	)
}

// URL returns the database connection string in URL form, as written to the
// backend env file.
func (c DBConfig) URL() string {
	return fmt.Sprintf("postgresql://%s:%s@%s:%d/%s?sslmode=disable", c.User, c.Password, c.Host, c.Port, c.Database)
}

// CacheConfig stores the cache service connection settings.
type CacheConfig struct {
	Host string `envconfig:"CACHE_HOST" default:"localhost"`
	Port int    `envconfig:"CACHE_PORT" default:"6379"`
}

// Addr returns the host:port address of the cache service.
func (c CacheConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Config is a struct that stores adhunik configuration settings.
type Config struct {
	// Database configuration settings.
	Database DBConfig
	// Cache configuration settings.
	Cache CacheConfig
	// APIPort is the fixed local port the API process binds to.
	APIPort int `envconfig:"API_PORT" default:"8000"`
	// ClientPort is the fixed local port the client dev server binds to.
	// Must be distinct from APIPort.
	ClientPort int `envconfig:"CLIENT_PORT" default:"5173"`
	// APIBaseURL is the base URL the client build uses to locate the API.
	APIBaseURL string `envconfig:"API_BASE_URL" default:"http://localhost:8000"`
	// Logging level
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// NewConfigFromEnv returns a new Config initialized with values read from the environment.
func NewConfigFromEnv() (*Config, error) {
	var c Config
	err := envconfig.Process("adhunik", &c)
	if err != nil {
		return nil, errors.New("unable to parse configuration from environment")
	}
	return &c, nil
}

// Validate checks the configuration for the port conflicts the development
// topology cannot tolerate.
func (c *Config) Validate() error {
	if c.APIPort == c.ClientPort {
		return fmt.Errorf("api port and client port must be distinct (both set to %d)", c.APIPort)
	}
	if c.APIPort <= 0 || c.APIPort > 65535 {
		return fmt.Errorf("'%d' is not a valid api port", c.APIPort)
	}
	if c.ClientPort <= 0 || c.ClientPort > 65535 {
		return fmt.Errorf("'%d' is not a valid client port", c.ClientPort)
	}
	return nil
}

func ParseLogLevel(level string) (logrus.Level, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return 0, fmt.Errorf("Error: '%s' is not a valid log level. Must be one of: 'trace', 'debug', 'info', 'warn', 'error', 'fatal'", level)
	}
	return lvl, err
}
