// Package config resolves the observability core's configuration from an
// optional YAML file and the environment. Environment variables win over
// file values; the variable names follow the deployment interface the core
// replaces, so existing manifests keep working.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

// Environment selects sink behavior.
type Environment string

const (
	Development Environment = "development"
	Production  Environment = "production"
)

// Environment variable names.
const (
	EnvRuntimeMode      = "NODE_ENV"
	EnvLoggingEndpoint  = "LOGGING_ENDPOINT"
	EnvMetricsEndpoint  = "METRICS_ENDPOINT"
	EnvErrorTrackingDSN = "ERROR_TRACKING_DSN"
	EnvMaxLogs          = "OBSCORE_MAX_LOGS"
	EnvMaxMetrics       = "OBSCORE_MAX_METRICS"
)

// Defaults for values the environment does not set.
const (
	DefaultMaxLogs        = 1000
	DefaultMaxMetrics     = 5000
	DefaultProbeTimeout   = 5 * time.Second
	DefaultHealthInterval = 30 * time.Second
	DefaultMemoryInterval = 60 * time.Second
)

// Config holds everything the core needs at construction time. Buffer
// capacities and intervals are fixed once loaded, not runtime-mutable.
type Config struct {
	Environment      Environment
	LoggingEndpoint  string
	MetricsEndpoint  string
	ErrorTrackingDSN string
	MaxLogs          int
	MaxMetrics       int
	ProbeTimeout     time.Duration
	HealthInterval   time.Duration
	MemoryInterval   time.Duration
}

// fileConfig is the YAML schema. Durations are written as Go duration
// strings ("2s", "1m30s").
type fileConfig struct {
	Environment      string `yaml:"environment"`
	LoggingEndpoint  string `yaml:"logging_endpoint"`
	MetricsEndpoint  string `yaml:"metrics_endpoint"`
	ErrorTrackingDSN string `yaml:"error_tracking_dsn"`
	MaxLogs          int    `yaml:"max_logs"`
	MaxMetrics       int    `yaml:"max_metrics"`
	ProbeTimeout     string `yaml:"probe_timeout"`
	HealthInterval   string `yaml:"health_interval"`
	MemoryInterval   string `yaml:"memory_interval"`
}

// Default returns the development-mode configuration.
func Default() Config {
	return Config{
		Environment:    Development,
		MaxLogs:        DefaultMaxLogs,
		MaxMetrics:     DefaultMaxMetrics,
		ProbeTimeout:   DefaultProbeTimeout,
		HealthInterval: DefaultHealthInterval,
		MemoryInterval: DefaultMemoryInterval,
	}
}

// FromEnv resolves configuration from the environment on top of the
// defaults.
func FromEnv() Config {
	cfg := Default()
	cfg.applyEnv()
	return cfg
}

// Load reads a YAML file and applies environment overrides on top.
func Load(path string) (Config, error) {
	cfg := Default()

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}

	if fc.Environment != "" {
		cfg.Environment = Environment(fc.Environment)
	}
	if fc.LoggingEndpoint != "" {
		cfg.LoggingEndpoint = fc.LoggingEndpoint
	}
	if fc.MetricsEndpoint != "" {
		cfg.MetricsEndpoint = fc.MetricsEndpoint
	}
	if fc.ErrorTrackingDSN != "" {
		cfg.ErrorTrackingDSN = fc.ErrorTrackingDSN
	}
	if fc.MaxLogs > 0 {
		cfg.MaxLogs = fc.MaxLogs
	}
	if fc.MaxMetrics > 0 {
		cfg.MaxMetrics = fc.MaxMetrics
	}
	if err := parseDuration(fc.ProbeTimeout, &cfg.ProbeTimeout); err != nil {
		return cfg, fmt.Errorf("invalid probe_timeout: %w", err)
	}
	if err := parseDuration(fc.HealthInterval, &cfg.HealthInterval); err != nil {
		return cfg, fmt.Errorf("invalid health_interval: %w", err)
	}
	if err := parseDuration(fc.MemoryInterval, &cfg.MemoryInterval); err != nil {
		return cfg, fmt.Errorf("invalid memory_interval: %w", err)
	}

	cfg.applyEnv()
	cfg.normalize()
	return cfg, nil
}

// parseDuration overwrites dst when s is non-empty.
func parseDuration(s string, dst *time.Duration) error {
	if s == "" {
		return nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvRuntimeMode); v != "" {
		if v == string(Production) {
			c.Environment = Production
		} else {
			c.Environment = Development
		}
	}
	if v := os.Getenv(EnvLoggingEndpoint); v != "" {
		c.LoggingEndpoint = v
	}
	if v := os.Getenv(EnvMetricsEndpoint); v != "" {
		c.MetricsEndpoint = v
	}
	if v := os.Getenv(EnvErrorTrackingDSN); v != "" {
		c.ErrorTrackingDSN = v
	}
	if v := os.Getenv(EnvMaxLogs); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.MaxLogs = n
		}
	}
	if v := os.Getenv(EnvMaxMetrics); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.MaxMetrics = n
		}
	}
}

func (c *Config) normalize() {
	if c.Environment != Production {
		c.Environment = Development
	}
	if c.MaxLogs < 1 {
		c.MaxLogs = DefaultMaxLogs
	}
	if c.MaxMetrics < 1 {
		c.MaxMetrics = DefaultMaxMetrics
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = DefaultProbeTimeout
	}
	if c.HealthInterval <= 0 {
		c.HealthInterval = DefaultHealthInterval
	}
	if c.MemoryInterval <= 0 {
		c.MemoryInterval = DefaultMemoryInterval
	}
}

// IsProduction reports whether external sinks should be active.
func (c Config) IsProduction() bool {
	return c.Environment == Production
}
