/*
config.go - Server configuration

PURPOSE:
  Loads server configuration from a TOML file, layered over built-in
  defaults. A missing file is not an error: the server runs fine on
  defaults, which keeps local development to a single command.

FORMAT:
  [server]
  host = "127.0.0.1"
  port = 8080

  [database]
  path = "budget.db"

  [jobs]
  interval = "1m"
  tick_timeout = "50s"

SEE ALSO:
  - cmd/server/main.go: Flag overrides on top of the file
*/
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds all server configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Jobs     JobsConfig     `toml:"jobs"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// DatabaseConfig configures the SQLite store.
type DatabaseConfig struct {
	Path string `toml:"path"`
}

// JobsConfig configures the background scheduler. Durations are Go
// duration strings ("1m", "90s").
type JobsConfig struct {
	Interval    string `toml:"interval"`
	TickTimeout string `toml:"tick_timeout"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() Config {
	return Config{
		Server:   ServerConfig{Host: "127.0.0.1", Port: 8080},
		Database: DatabaseConfig{Path: "budget.db"},
		Jobs:     JobsConfig{Interval: "1m", TickTimeout: "50s"},
	}
}

// Load reads the TOML file at path over the defaults. A missing file
// returns the defaults; a malformed file is an error.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks that every field parses to something usable.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if _, err := c.JobInterval(); err != nil {
		return err
	}
	if _, err := c.TickTimeout(); err != nil {
		return err
	}
	return nil
}

// Addr returns the listen address in host:port form.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// JobInterval returns the parsed scheduler interval.
func (c Config) JobInterval() (time.Duration, error) {
	d, err := time.ParseDuration(c.Jobs.Interval)
	if err != nil {
		return 0, fmt.Errorf("invalid jobs interval %q: %w", c.Jobs.Interval, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("jobs interval must be positive, got %q", c.Jobs.Interval)
	}
	return d, nil
}

// TickTimeout returns the parsed per-tick timeout.
func (c Config) TickTimeout() (time.Duration, error) {
	d, err := time.ParseDuration(c.Jobs.TickTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid tick timeout %q: %w", c.Jobs.TickTimeout, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("tick timeout must be positive, got %q", c.Jobs.TickTimeout)
	}
	return d, nil
}
