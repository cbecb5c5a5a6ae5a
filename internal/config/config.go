// Package config handles configuration loading from YAML files and environment variables.
// Configuration precedence: CLI flags > environment variables > config file > defaults.
// The environment variable names match the invocation contract of the CI
// orchestrator: TELEMETRY_DATA_FILE, TELEMETRY_INTERVAL, TELEMETRY_LOG_LEVEL.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a wrapper around time.Duration that supports YAML unmarshaling
// from human-readable strings like "2s", "500ms", "1m".
type Duration struct {
	time.Duration
}

// UnmarshalYAML implements the yaml.Unmarshaler interface for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		parsed, err := time.ParseDuration(value.Value)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", value.Value, err)
		}
		d.Duration = parsed
		return nil
	default:
		return fmt.Errorf("unsupported duration format: %v", value.Kind)
	}
}

// MarshalYAML implements the yaml.Marshaler interface for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

// Config holds all collector configuration.
type Config struct {
	DataFile   string           `yaml:"data_file"`
	Collection CollectionConfig `yaml:"collection"`
	Logging    LoggingConfig    `yaml:"logging"`
	Inspect    InspectConfig    `yaml:"inspect"`
}

// CollectionConfig holds sampling settings.
type CollectionConfig struct {
	Interval        Duration `yaml:"interval"`
	SnapshotSamples int      `yaml:"snapshot_samples"`
	TopProcesses    int      `yaml:"top_processes"`
	Workspace       string   `yaml:"workspace"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// InspectConfig holds live-inspection HTTP server settings.
type InspectConfig struct {
	Addr string `yaml:"addr"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		DataFile: filepath.Join(os.TempDir(), "telemetry_data.json"),
		Collection: CollectionConfig{
			Interval:        Duration{2 * time.Second},
			SnapshotSamples: 6,
			TopProcesses:    10,
			Workspace:       "/github/workspace",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Inspect: InspectConfig{
			Addr: "localhost:8080",
		},
	}
}

// CLIOverrides holds values from command-line flags. Zero values are treated
// as "not set" and skipped.
type CLIOverrides struct {
	DataFile string
	Interval time.Duration
}

// Locate searches standard config file paths and returns the first one found.
// Returns empty string if no config file exists.
func Locate() string {
	for _, p := range configSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Load reads configuration with the full precedence chain:
// CLI flags > env vars > YAML file > defaults. An empty path means
// auto-discover via Locate(); a missing file is not an error.
func Load(path string, cli CLIOverrides) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = Locate()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config file %s: %w", path, err)
			}
		}
	}

	applyEnvOverrides(cfg)

	if cli.DataFile != "" {
		cfg.DataFile = cli.DataFile
	}
	if cli.Interval > 0 {
		cfg.Collection.Interval = Duration{cli.Interval}
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// TELEMETRY_INTERVAL accepts plain seconds ("2", "0.5") as the orchestrator
// contract specifies, or a Go duration string ("500ms").
func applyEnvOverrides(cfg *Config) {
	if path := os.Getenv("TELEMETRY_DATA_FILE"); path != "" {
		cfg.DataFile = path
	}
	if raw := os.Getenv("TELEMETRY_INTERVAL"); raw != "" {
		if secs, err := strconv.ParseFloat(raw, 64); err == nil && secs > 0 {
			cfg.Collection.Interval = Duration{time.Duration(secs * float64(time.Second))}
		} else if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			cfg.Collection.Interval = Duration{d}
		}
	}
	if level := os.Getenv("TELEMETRY_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if ws := os.Getenv("GITHUB_WORKSPACE"); ws != "" {
		cfg.Collection.Workspace = ws
	}
}
