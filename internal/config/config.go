// Package config loads benchline settings from defaults, an optional YAML
// file, BENCHLINE_* environment variables and runtime overrides, in
// increasing order of precedence.
package config

import (
	"time"

	"github.com/3leaps/benchline/pkg/status"
)

// Config is the complete runtime configuration.
type Config struct {
	Store     StoreConfig     `mapstructure:"store"`
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Backend   BackendConfig   `mapstructure:"backend"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Stats     StatsConfig     `mapstructure:"stats"`
	Artifacts ArtifactsConfig `mapstructure:"artifacts"`
}

type StoreConfig struct {
	Path      string `mapstructure:"path"`
	URL       string `mapstructure:"url"`
	AuthToken string `mapstructure:"auth_token"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Profile string `mapstructure:"profile"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// BackendConfig configures the local process backend.
type BackendConfig struct {
	Root string `mapstructure:"root"`
	// Slots maps queue names to concurrent executions.
	Slots     map[string]int `mapstructure:"slots"`
	KillRate  float64        `mapstructure:"kill_rate"`
	KillBurst int            `mapstructure:"kill_burst"`
}

// SchedulerConfig controls background tasks. A zero interval disables a task.
type SchedulerConfig struct {
	ReconcileInterval time.Duration `mapstructure:"reconcile_interval"`
	RerunInterval     time.Duration `mapstructure:"rerun_interval"`
	RerunCodes        []status.Code `mapstructure:"rerun_codes"`
	MaxReruns         int           `mapstructure:"max_reruns"`
}

type StatsConfig struct {
	IncludeUnknown bool `mapstructure:"include_unknown"`
}

// ArtifactsConfig selects where stage outputs are stored. An empty provider
// disables artifact checks.
type ArtifactsConfig struct {
	Provider       string `mapstructure:"provider"`
	Root           string `mapstructure:"root"`
	Bucket         string `mapstructure:"bucket"`
	Prefix         string `mapstructure:"prefix"`
	Region         string `mapstructure:"region"`
	Endpoint       string `mapstructure:"endpoint"`
	Profile        string `mapstructure:"profile"`
	ForcePathStyle bool   `mapstructure:"force_path_style"`
	DetectRegion   bool   `mapstructure:"detect_region"`
}
