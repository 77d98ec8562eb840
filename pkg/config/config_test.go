package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, Development, cfg.Environment)
	assert.Equal(t, DefaultMaxLogs, cfg.MaxLogs)
	assert.Equal(t, DefaultMaxMetrics, cfg.MaxMetrics)
	assert.Equal(t, DefaultHealthInterval, cfg.HealthInterval)
	assert.False(t, cfg.IsProduction())
}

func TestFromEnv(t *testing.T) {
	t.Setenv(EnvRuntimeMode, "production")
	t.Setenv(EnvLoggingEndpoint, "https://logs.example.com/ingest")
	t.Setenv(EnvMetricsEndpoint, "https://metrics.example.com/ingest")
	t.Setenv(EnvErrorTrackingDSN, "https://key@errors.example.com/7")
	t.Setenv(EnvMaxLogs, "250")

	cfg := FromEnv()

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "https://logs.example.com/ingest", cfg.LoggingEndpoint)
	assert.Equal(t, "https://metrics.example.com/ingest", cfg.MetricsEndpoint)
	assert.Equal(t, "https://key@errors.example.com/7", cfg.ErrorTrackingDSN)
	assert.Equal(t, 250, cfg.MaxLogs)
	assert.Equal(t, DefaultMaxMetrics, cfg.MaxMetrics)
}

func TestFromEnvUnknownModeIsDevelopment(t *testing.T) {
	t.Setenv(EnvRuntimeMode, "staging")

	cfg := FromEnv()

	assert.Equal(t, Development, cfg.Environment)
}

func TestFromEnvBadCapacityIgnored(t *testing.T) {
	t.Setenv(EnvMaxLogs, "not-a-number")
	t.Setenv(EnvMaxMetrics, "-5")

	cfg := FromEnv()

	assert.Equal(t, DefaultMaxLogs, cfg.MaxLogs)
	assert.Equal(t, DefaultMaxMetrics, cfg.MaxMetrics)
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "obscore.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeConfigFile(t, `
environment: production
logging_endpoint: https://logs.internal/ingest
max_logs: 500
probe_timeout: 2s
health_interval: 10s
`)

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "https://logs.internal/ingest", cfg.LoggingEndpoint)
	assert.Equal(t, 500, cfg.MaxLogs)
	assert.Equal(t, 2*time.Second, cfg.ProbeTimeout)
	assert.Equal(t, 10*time.Second, cfg.HealthInterval)
	assert.Equal(t, DefaultMemoryInterval, cfg.MemoryInterval)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `
environment: production
logging_endpoint: https://from-file/ingest
`)
	t.Setenv(EnvRuntimeMode, "development")
	t.Setenv(EnvLoggingEndpoint, "https://from-env/ingest")

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, Development, cfg.Environment)
	assert.Equal(t, "https://from-env/ingest", cfg.LoggingEndpoint)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadBadDuration(t *testing.T) {
	path := writeConfigFile(t, "probe_timeout: quickly")
	_, err := Load(path)
	assert.ErrorContains(t, err, "probe_timeout")
}

func TestLoadMalformedFile(t *testing.T) {
	path := writeConfigFile(t, "environment: [not, a, scalar")
	_, err := Load(path)
	assert.Error(t, err)
}
