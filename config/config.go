// Package config loads and validates the application configuration for the
// httpsink binary.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/c360/httpsink/errors"
	"github.com/c360/httpsink/natsclient"
	"github.com/c360/httpsink/output/httpsink"
)

// NATSConfig is the YAML-facing NATS section. Durations are whole seconds.
type NATSConfig struct {
	URL               string `yaml:"url"`
	Name              string `yaml:"name"`
	MaxReconnects     int    `yaml:"max_reconnects"`
	ReconnectWaitSec  int    `yaml:"reconnect_wait_sec"`
	ConnectTimeoutSec int    `yaml:"connect_timeout_sec"`
}

// ClientConfig converts the section into natsclient settings.
func (n NATSConfig) ClientConfig() natsclient.Config {
	cfg := natsclient.DefaultConfig()
	if n.URL != "" {
		cfg.URL = n.URL
	}
	if n.Name != "" {
		cfg.Name = n.Name
	}
	if n.MaxReconnects != 0 {
		cfg.MaxReconnects = n.MaxReconnects
	}
	if n.ReconnectWaitSec > 0 {
		cfg.ReconnectWait = time.Duration(n.ReconnectWaitSec) * time.Second
	}
	if n.ConnectTimeoutSec > 0 {
		cfg.ConnectTimeout = time.Duration(n.ConnectTimeoutSec) * time.Second
	}
	return cfg
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig controls logging for the binary.
type LogConfig struct {
	Level string `yaml:"level"`
}

// SlogLevel parses the configured level, defaulting to info.
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Config is the complete application configuration.
type Config struct {
	Log     LogConfig       `yaml:"log"`
	Metrics MetricsConfig   `yaml:"metrics"`
	NATS    NATSConfig      `yaml:"nats"`
	Output  httpsink.Config `yaml:"output"`
}

// Load reads and validates a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Config", "Load", "read config file")
	}
	return Parse(data)
}

// Parse decodes and validates YAML configuration bytes.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.WrapInvalid(err, "Config", "Parse", "decode yaml")
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9090"
	}
	if c.NATS.URL == "" {
		c.NATS.URL = natsclient.DefaultConfig().URL
	}
}

// Validate checks the whole configuration, delegating the output section to
// the component's own validation.
func (c *Config) Validate() error {
	if err := c.Output.Validate(); err != nil {
		return err
	}
	if c.Metrics.Addr == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "Config", "Validate",
			"metrics.addr cannot be empty")
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			fmt.Sprintf("unsupported log level %q", c.Log.Level))
	}
	return nil
}
