package database

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// Config holds database connection settings shared across bots.
type Config struct {
	Driver         string `yaml:"driver" envconfig:"DB_DRIVER"`
	Path           string `yaml:"path" envconfig:"DB_PATH"`
	Host           string `yaml:"host" envconfig:"DB_HOST"`
	Port           string `yaml:"port" envconfig:"DB_PORT"`
	User           string `yaml:"user" envconfig:"DB_USER"`
	Password       string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name           string `yaml:"name" envconfig:"DB_NAME"`
	SSLMode        string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	MaxConnections int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS"`
	// ConnectTimeoutSeconds bounds how long Connect waits for the server to accept pings.
	ConnectTimeoutSeconds int `yaml:"connect_timeout_seconds" envconfig:"DB_CONNECT_TIMEOUT"`
}

// Normalize fills defaults and validates driver specific fields.
func (c *Config) Normalize() error {
	c.Driver = strings.ToLower(strings.TrimSpace(c.Driver))
	switch c.Driver {
	case "", "postgresql", DriverPostgres:
		c.Driver = DriverPostgres
		if c.Host == "" {
			return fmt.Errorf("database: host is required for postgres")
		}
		if c.Port == "" {
			c.Port = "5432"
		}
		if c.Name == "" {
			return fmt.Errorf("database: name is required for postgres")
		}
		if c.SSLMode == "" {
			c.SSLMode = "disable"
		}
	case "sqlite", DriverSQLite:
		c.Driver = DriverSQLite
		if strings.TrimSpace(c.Path) == "" {
			return fmt.Errorf("database: path is required for sqlite3")
		}
	default:
		return fmt.Errorf("database: unsupported driver %q", c.Driver)
	}
	if c.MaxConnections <= 0 {
		c.MaxConnections = 10
	}
	if c.ConnectTimeoutSeconds <= 0 {
		c.ConnectTimeoutSeconds = 30
	}
	return nil
}

// ConnectTimeout returns the connect window as a duration.
func (c Config) ConnectTimeout() time.Duration {
	if c.ConnectTimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.ConnectTimeoutSeconds) * time.Second
}

// DSN renders the driver specific data source name.
func (c Config) DSN() string {
	if c.Driver == DriverSQLite {
		path := c.Path
		if path == ":memory:" {
			path = "file::memory:"
		}
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		return path + sep + "_foreign_keys=on&_busy_timeout=5000"
	}
	return fmt.Sprintf(
		"user=%s password=%s host=%s port=%s dbname=%s sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode,
	)
}

// Target describes the database for logs without credentials.
func (c Config) Target() string {
	if c.Driver == DriverSQLite {
		return c.Path
	}
	u := url.URL{Scheme: "postgres", Host: c.Host + ":" + c.Port, Path: "/" + c.Name}
	return u.String()
}

// InMemory reports whether the sqlite database lives only in process memory.
func (c Config) InMemory() bool {
	return c.Driver == DriverSQLite && strings.Contains(c.Path, ":memory:")
}
