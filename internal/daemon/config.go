// Package daemon manages the dfcache daemon lifecycle and configuration.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config holds all daemon configuration.
type Config struct {
	Registry  RegistryConfig  `toml:"registry"`
	API       APIConfig       `toml:"api"`
	Snapshot  SnapshotConfig  `toml:"snapshot"`
	Telemetry TelemetryConfig `toml:"telemetry"`
	Logging   LoggingConfig   `toml:"logging"`
}

// RegistryConfig bounds the in-memory Dataset Registry (C2).
type RegistryConfig struct {
	MaxMemoryMB       int    `toml:"max_memory_mb"`
	MaxDatasets       int    `toml:"max_datasets"`
	CleanupIntervalS  int    `toml:"cleanup_interval_seconds"`
	DefaultTTLSeconds int64  `toml:"default_ttl_seconds"`
}

// APIConfig controls the HTTP API server (C8).
type APIConfig struct {
	Host          string   `toml:"host"`
	Port          int      `toml:"port"`
	CORSOrigins   []string `toml:"cors_origins"`
	MaxConcurrent int      `toml:"max_concurrent"`
}

// SnapshotConfig controls the crash-only snapshot store (C11).
type SnapshotConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level     string `toml:"level"`
	File      string `toml:"file"`
	MaxSizeMB int    `toml:"max_size_mb"`
	MaxFiles  int    `toml:"max_files"`
}

// TelemetryConfig controls observability (C12).
type TelemetryConfig struct {
	Enabled        bool `toml:"enabled"`
	Prometheus     bool `toml:"prometheus"`
	PrometheusPort int  `toml:"prometheus_port"`
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	homeDir := dfcacheHome()
	return Config{
		Registry: RegistryConfig{
			MaxMemoryMB:       512,
			MaxDatasets:       100,
			CleanupIntervalS:  60,
			DefaultTTLSeconds: 3600,
		},
		API: APIConfig{
			Host:          "127.0.0.1",
			Port:          8420,
			CORSOrigins:   []string{"*"},
			MaxConcurrent: 16,
		},
		Snapshot: SnapshotConfig{
			Enabled: true,
			Path:    filepath.Join(homeDir, "snapshots.db"),
		},
		Logging: LoggingConfig{
			Level:     "info",
			File:      filepath.Join(homeDir, "dfcache.log"),
			MaxSizeMB: 50,
			MaxFiles:  5,
		},
		Telemetry: TelemetryConfig{
			Enabled:        true,
			Prometheus:     false, // Opt-in: expose /metrics
			PrometheusPort: 9464,
		},
	}
}

// LoadConfig reads config from ~/.dfcache/config.toml, falling back to
// defaults.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	path := filepath.Join(dfcacheHome(), "config.toml")

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil // No config file yet — use defaults
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	return cfg, nil
}

// SaveConfig writes the config to ~/.dfcache/config.toml.
func SaveConfig(cfg Config) error {
	path := filepath.Join(dfcacheHome(), "config.toml")
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(cfg)
}

// dfcacheHome returns the dfcache data directory.
func dfcacheHome() string {
	if env := os.Getenv("DFCACHE_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".dfcache")
}

// DfcacheHome is exported for use by other packages.
func DfcacheHome() string {
	return dfcacheHome()
}
