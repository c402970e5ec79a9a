package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("", EmbeddedConfig(""))
	require.NoError(t, err)

	assert.Equal(t, "INFO", cfg.Streamsync.System.Logging.Level)
	assert.Equal(t, "UTC", cfg.Streamsync.System.Timezone)
	assert.Equal(t, "primary", cfg.Streamsync.Database.Default)
	assert.Equal(t, "https://waterservices.usgs.gov/nwis/iv/", cfg.Streamsync.Source.BaseURL)
	assert.Equal(t, "00060", cfg.Streamsync.Source.ParameterCd)
	assert.Equal(t, 2, cfg.Streamsync.Sync.BackfillYears)
	assert.Equal(t, 60, cfg.Streamsync.Sync.RunTimeoutMinutes)

	require.Len(t, cfg.Streamsync.Sync.Jobs, 2)
	assert.Equal(t, "realtime-sync", cfg.Streamsync.Sync.Jobs[0].Name)
	assert.Equal(t, "realtime", cfg.Streamsync.Sync.Jobs[0].Type)
	assert.Equal(t, 30, cfg.Streamsync.Sync.Jobs[0].RetentionDays)
	assert.Equal(t, "daily-sync", cfg.Streamsync.Sync.Jobs[1].Name)
	assert.True(t, cfg.Streamsync.Sync.Jobs[1].Enabled)
}

func TestLoadConfigMergesYAML(t *testing.T) {
	yamlContent := `
streamsync:
  system:
    logging:
      level: DEBUG
  database:
    default: primary
    connections:
      primary:
        type: sqlite
        database: /var/lib/streamsync/streamsync.db
  source:
    parameter_cd: "00065"
  sync:
    backfill_years: 1
    max_sites: 10
    jobs:
      - name: realtime-sync
        type: realtime
        interval_minutes: 15
        retention_days: 7
        enabled: true
  metrics:
    enabled: true
    backend: noop
`
	cfg, err := LoadConfig("", EmbeddedConfig(yamlContent))
	require.NoError(t, err)

	assert.Equal(t, "DEBUG", cfg.Streamsync.System.Logging.Level)
	assert.Equal(t, "00065", cfg.Streamsync.Source.ParameterCd)
	assert.Equal(t, 1, cfg.Streamsync.Sync.BackfillYears)
	assert.Equal(t, 10, cfg.Streamsync.Sync.MaxSites)

	// Values the YAML does not mention keep their defaults.
	assert.Equal(t, 60, cfg.Streamsync.Sync.RunTimeoutMinutes)
	assert.Equal(t, 30, cfg.Streamsync.Sync.PollIntervalSeconds)
	assert.Equal(t, "https://waterservices.usgs.gov/nwis/iv/", cfg.Streamsync.Source.BaseURL)

	// A jobs list in the YAML replaces the default list wholesale.
	require.Len(t, cfg.Streamsync.Sync.Jobs, 1)
	assert.Equal(t, 15, cfg.Streamsync.Sync.Jobs[0].IntervalMinutes)

	conn, ok := cfg.Streamsync.Database.Connections["primary"]
	require.True(t, ok)
	assert.Equal(t, "sqlite", conn.Type)
	assert.Equal(t, "/var/lib/streamsync/streamsync.db", conn.Database)

	assert.True(t, cfg.Streamsync.Metrics.Enabled)
	assert.Equal(t, "noop", cfg.Streamsync.Metrics.Backend)
}

func TestLoadConfigEnvOverridesYAML(t *testing.T) {
	t.Setenv("STREAMSYNC_SYNC_MAX_SITES", "5")
	t.Setenv("STREAMSYNC_SOURCE_USER_AGENT", "streamsync-test")
	t.Setenv("STREAMSYNC_DATABASE_CONNECTIONS_PRIMARY_DATABASE", "/tmp/override.db")

	yamlContent := `
streamsync:
  database:
    connections:
      primary:
        type: sqlite
        database: /var/lib/streamsync/streamsync.db
  sync:
    max_sites: 10
`
	cfg, err := LoadConfig("", EmbeddedConfig(yamlContent))
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Streamsync.Sync.MaxSites)
	assert.Equal(t, "streamsync-test", cfg.Streamsync.Source.UserAgent)

	conn, ok := cfg.Streamsync.Database.Connections["primary"]
	require.True(t, ok)
	assert.Equal(t, "/tmp/override.db", conn.Database)
	assert.Equal(t, "sqlite", conn.Type)
}

func TestLoadConfigExpandsPlaceholders(t *testing.T) {
	t.Setenv("TEST_DB_PASSWORD", "hunter2")

	yamlContent := `
streamsync:
  database:
    connections:
      warehouse:
        type: postgres
        host: localhost
        password: ${TEST_DB_PASSWORD}
`
	cfg, err := LoadConfig("", EmbeddedConfig(yamlContent))
	require.NoError(t, err)

	conn, ok := cfg.Streamsync.Database.Connections["warehouse"]
	require.True(t, ok)
	assert.Equal(t, "hunter2", conn.Password)
}

func TestValidateConfigRejectsUnknownJobType(t *testing.T) {
	cfg := NewConfig()
	cfg.Streamsync.Sync.Jobs = []JobConfig{
		{Name: "bad-job", Type: "hourly", IntervalMinutes: 60},
	}

	err := validateConfig(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown type")
}

func TestValidateConfigRejectsDuplicateJobNames(t *testing.T) {
	cfg := NewConfig()
	cfg.Streamsync.Sync.Jobs = []JobConfig{
		{Name: "realtime-sync", Type: "realtime", IntervalMinutes: 60},
		{Name: "realtime-sync", Type: "daily", IntervalMinutes: 1440},
	}

	err := validateConfig(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestValidateConfigRejectsUnknownMetricsBackend(t *testing.T) {
	cfg := NewConfig()
	cfg.Streamsync.Metrics.Backend = "statsd"

	err := validateConfig(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "metrics backend")
}

func TestValidateConfigAcceptsDefaults(t *testing.T) {
	require.NoError(t, validateConfig(NewConfig()))
}
