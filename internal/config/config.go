// Package config loads application configuration from the environment and
// an optional YAML file.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	API       APIConfig       `koanf:"api"`
	Chat      ChatConfig      `koanf:"chat"`
	Jobs      JobsConfig      `koanf:"jobs"`
	Storage   StorageConfig   `koanf:"storage"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

type APIConfig struct {
	URL   string `koanf:"url"`
	Token string `koanf:"token"`
}

type ChatConfig struct {
	Model string `koanf:"model"`
	// Budget caps the estimated prompt token count per turn. 0 disables
	// the check.
	Budget int `koanf:"budget"`
}

type JobsConfig struct {
	// Interval is the fixed delay between job status polls, e.g. "2s".
	Interval string `koanf:"interval"`
}

// PollInterval parses the configured interval, defaulting to 2s.
func (j JobsConfig) PollInterval() time.Duration {
	d, err := time.ParseDuration(j.Interval)
	if err != nil || d <= 0 {
		return 2 * time.Second
	}
	return d
}

type StorageConfig struct {
	Type string `koanf:"type"` // sqlite, memory, none
	Path string `koanf:"path"` // sqlite database path
}

type TelemetryConfig struct {
	Enabled bool `koanf:"enabled"`
}

// Load reads configuration: an optional YAML file (LESSONLOOP_CONFIG or
// ./lessonloop.yaml when present), overridden by LESSONLOOP_* environment
// variables.
func Load() (*Config, error) {
	k := koanf.New(".")

	path := os.Getenv("LESSONLOOP_CONFIG")
	if path == "" {
		if _, err := os.Stat("lessonloop.yaml"); err == nil {
			path = "lessonloop.yaml"
		}
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("LESSONLOOP_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "LESSONLOOP_")), "_", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	// Default values
	if !k.Exists("api.url") {
		k.Set("api.url", "http://localhost:8787")
	}
	if !k.Exists("jobs.interval") {
		k.Set("jobs.interval", "2s")
	}
	if !k.Exists("storage.type") {
		k.Set("storage.type", "memory")
	}
	if !k.Exists("storage.path") {
		k.Set("storage.path", "lessonloop.db")
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
