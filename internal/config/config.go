// Package config provides structures and utilities for managing the
// streamsync application configuration.
package config

import (
	dbconfig "github.com/cascadiahydro/streamsync/internal/adapter/database/config"
	storageconfig "github.com/cascadiahydro/streamsync/internal/adapter/storage/config"
)

// EmbeddedConfig holds the content of the configuration file, typically
// passed from main.go when the configuration is compiled into the binary.
type EmbeddedConfig []byte

// LogLevel defines the logging level for the application.
type LogLevel string

const (
	LogLevelTrace  LogLevel = "TRACE"
	LogLevelDebug  LogLevel = "DEBUG"
	LogLevelInfo   LogLevel = "INFO"
	LogLevelWarn   LogLevel = "WARN"
	LogLevelError  LogLevel = "ERROR"
	LogLevelFatal  LogLevel = "FATAL"
	LogLevelSilent LogLevel = "SILENT"
)

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the logging level (e.g., "INFO", "DEBUG").
	Level string `yaml:"level"`
}

// SystemConfig holds system-wide settings.
type SystemConfig struct {
	// Timezone is the application timezone. Sync windows are computed in UTC
	// regardless; this only affects log rendering.
	Timezone string `yaml:"timezone"`
	// Logging is the logging configuration.
	Logging LoggingConfig `yaml:"logging"`
}

// DatabasesConfig holds the default connection name and the named database
// connections.
type DatabasesConfig struct {
	// Default is the name of the connection used for sync state and observations.
	Default string `yaml:"default"`
	// Connections maps connection names to their settings.
	Connections dbconfig.ConnectionsConfig `yaml:"connections"`
}

// StoragesConfig holds the named object storage connections.
type StoragesConfig struct {
	// Connections maps connection names to their settings.
	Connections storageconfig.ConnectionsConfig `yaml:"connections"`
}

// SourceConfig holds settings for the upstream observation service.
type SourceConfig struct {
	// BaseURL is the instantaneous-values endpoint of the upstream service.
	BaseURL string `yaml:"base_url"`
	// ParameterCd selects the measured parameter (00060 is discharge in cfs).
	ParameterCd string `yaml:"parameter_cd"`
	// TimeoutSeconds bounds a single fetch request.
	TimeoutSeconds int `yaml:"timeout_seconds"`
	// UserAgent identifies this client to the upstream service.
	UserAgent string `yaml:"user_agent"`
}

// JobConfig describes one sync job definition seeded into the database.
type JobConfig struct {
	// Name uniquely identifies the job (e.g., "realtime-sync").
	Name string `yaml:"name"`
	// Type selects the job behavior: "realtime" or "daily".
	Type string `yaml:"type"`
	// IntervalMinutes is the scheduling interval.
	IntervalMinutes int `yaml:"interval_minutes"`
	// RetentionDays bounds the observation age for realtime jobs; zero
	// disables the retention purge.
	RetentionDays int `yaml:"retention_days"`
	// Enabled controls whether the scheduler considers the job at all.
	Enabled bool `yaml:"enabled"`
}

// SyncConfig holds settings shared by all sync jobs.
type SyncConfig struct {
	// BackfillYears is how far a daily job reaches back when a site has no
	// watermark yet.
	BackfillYears int `yaml:"backfill_years"`
	// RunTimeoutMinutes bounds a whole scheduler run.
	RunTimeoutMinutes int `yaml:"run_timeout_minutes"`
	// PollIntervalSeconds is the scheduler's due-check cadence in daemon mode.
	PollIntervalSeconds int `yaml:"poll_interval_seconds"`
	// MaxSites caps the number of sites processed per run; zero means no cap.
	MaxSites int `yaml:"max_sites"`
	// Jobs are the job definitions seeded at startup.
	Jobs []JobConfig `yaml:"jobs"`
}

// ExportConfig holds settings for the observation archive export.
type ExportConfig struct {
	// Enabled controls whether the export command may run.
	Enabled bool `yaml:"enabled"`
	// Connection names the storage connection receiving archives.
	Connection string `yaml:"connection"`
	// Prefix is prepended to every archive object name.
	Prefix string `yaml:"prefix"`
	// Format selects the archive encoding; "parquet" is the only supported value.
	Format string `yaml:"format"`
	// Options carries format-specific settings, bound by the exporter.
	Options map[string]interface{} `yaml:"options"`
}

// OTelConfig holds OTLP exporter settings.
type OTelConfig struct {
	// Endpoint is the OTLP collector address (host:port).
	Endpoint string `yaml:"endpoint"`
	// Protocol selects the OTLP transport: "grpc" or "http".
	Protocol string `yaml:"protocol"`
	// Insecure disables TLS on the exporter connection.
	Insecure bool `yaml:"insecure"`
	// ServiceName is reported as the service.name resource attribute.
	ServiceName string `yaml:"service_name"`
}

// MetricsConfig holds metrics settings.
type MetricsConfig struct {
	// Enabled controls whether metrics are recorded at all.
	Enabled bool `yaml:"enabled"`
	// Backend selects the recorder: "prometheus", "otel" or "noop".
	Backend string `yaml:"backend"`
	// ListenAddr is the scrape endpoint address for the prometheus backend.
	ListenAddr string `yaml:"listen_addr"`
	// OTel configures the OTLP metric exporter for the otel backend.
	OTel OTelConfig `yaml:"otel"`
}

// TracingConfig holds distributed tracing settings.
type TracingConfig struct {
	// Enabled controls whether spans are exported.
	Enabled bool `yaml:"enabled"`
	// OTel configures the OTLP trace exporter.
	OTel OTelConfig `yaml:"otel"`
}

// NotifierConfig holds run-outcome notification settings.
type NotifierConfig struct {
	// Enabled controls whether notifications are sent.
	Enabled bool `yaml:"enabled"`
	// WebhookURL receives a JSON summary after each finalized run.
	WebhookURL string `yaml:"webhook_url"`
	// TimeoutSeconds bounds a single notification request.
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// StreamsyncConfig holds all configuration under the "streamsync" top-level key.
type StreamsyncConfig struct {
	// System contains system-wide configurations.
	System SystemConfig `yaml:"system"`
	// Database contains the named database connections.
	Database DatabasesConfig `yaml:"database"`
	// Storage contains the named object storage connections.
	Storage StoragesConfig `yaml:"storage"`
	// Source configures the upstream observation service client.
	Source SourceConfig `yaml:"source"`
	// Sync configures job scheduling and windowing.
	Sync SyncConfig `yaml:"sync"`
	// Export configures the observation archive export.
	Export ExportConfig `yaml:"export"`
	// Metrics configures metric recording.
	Metrics MetricsConfig `yaml:"metrics"`
	// Tracing configures span export.
	Tracing TracingConfig `yaml:"tracing"`
	// Notifier configures run-outcome notifications.
	Notifier NotifierConfig `yaml:"notifier"`
}

// Config is the root structure for the entire application configuration.
type Config struct {
	// Streamsync contains the top-level configuration for the application.
	Streamsync StreamsyncConfig `yaml:"streamsync"`
}

// NewConfig returns a new Config populated with default values. Values from
// the embedded YAML and from environment variables overwrite these defaults.
func NewConfig() *Config {
	cfg := &Config{
		Streamsync: StreamsyncConfig{
			System: SystemConfig{
				Timezone: "UTC",
				Logging:  LoggingConfig{Level: "INFO"},
			},
			Database: DatabasesConfig{
				Default:     "primary",
				Connections: dbconfig.ConnectionsConfig{},
			},
			Storage: StoragesConfig{
				Connections: storageconfig.ConnectionsConfig{},
			},
			Source: SourceConfig{
				BaseURL:        "https://waterservices.usgs.gov/nwis/iv/",
				ParameterCd:    "00060",
				TimeoutSeconds: 30,
				UserAgent:      "streamsync",
			},
			Sync: SyncConfig{
				BackfillYears:       2,
				RunTimeoutMinutes:   60,
				PollIntervalSeconds: 30,
				Jobs: []JobConfig{
					{Name: "realtime-sync", Type: "realtime", IntervalMinutes: 60, RetentionDays: 30, Enabled: true},
					{Name: "daily-sync", Type: "daily", IntervalMinutes: 1440, Enabled: true},
				},
			},
			Export: ExportConfig{
				Connection: "archive",
				Prefix:     "observations",
				Format:     "parquet",
			},
			Metrics: MetricsConfig{
				Backend:    "prometheus",
				ListenAddr: ":9090",
				OTel: OTelConfig{
					Protocol:    "grpc",
					ServiceName: "streamsync",
				},
			},
			Tracing: TracingConfig{
				OTel: OTelConfig{
					Protocol:    "grpc",
					ServiceName: "streamsync",
				},
			},
			Notifier: NotifierConfig{
				TimeoutSeconds: 10,
			},
		},
	}
	return cfg
}
