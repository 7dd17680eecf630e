// Package config defines the Loom application configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level Loom configuration.
type Config struct {
	Server   ServerConfig  `json:"server" yaml:"server"`
	Storage  StorageConfig `json:"storage" yaml:"storage"`
	LogLevel string        `json:"log_level" yaml:"log_level"`
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr"` // listen address, e.g., ":8080"
}

// StorageConfig selects and configures the task store backend.
type StorageConfig struct {
	Driver string `json:"driver" yaml:"driver"`        // "sqlite" or "postgres"
	Path   string `json:"path,omitempty" yaml:"path"`  // sqlite database file
	DSN    string `json:"dsn,omitempty" yaml:"dsn"`    // postgres connection string
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: ":8080",
		},
		Storage: StorageConfig{
			Driver: "sqlite",
			Path:   "./loom.db",
		},
		LogLevel: "info",
	}
}

// Load reads a YAML config file and returns the parsed configuration.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// SlogLevel maps the configured log level to a slog.Level, defaulting to
// info for unknown values.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
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
