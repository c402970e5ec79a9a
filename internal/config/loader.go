package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/cascadiahydro/streamsync/internal/support/exception"
	"github.com/cascadiahydro/streamsync/internal/support/logger"
)

const moduleName = "config"

// loadConfig loads configuration in layers: package defaults, then the
// embedded YAML (with ${VAR} placeholders expanded), then environment
// variable overrides. It is intended to be called once during startup.
func loadConfig(envFilePath string, embeddedConfig EmbeddedConfig, expander EnvironmentExpander) (*Config, error) {
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			logger.Warnf(".env file (%s) not found or could not be loaded: %v", envFilePath, err)
		}
	} else {
		if err := godotenv.Load(); err != nil {
			logger.Debugf(".env file not found or could not be loaded: %v", err)
		}
	}

	cfg := NewConfig()

	expanded, err := expander.Expand(embeddedConfig)
	if err != nil {
		return nil, exception.NewSyncError(moduleName, "failed to expand environment placeholders in embedded config", err, false, false)
	}

	var yamlConfig Config
	if err := yaml.Unmarshal(expanded, &yamlConfig); err != nil {
		return nil, exception.NewSyncError(moduleName, "failed to unmarshal embedded config", err, false, false)
	}

	mergeConfig(cfg, &yamlConfig)

	if err := loadStructFromEnv(reflect.ValueOf(cfg).Elem(), ""); err != nil {
		return nil, exception.NewSyncError(moduleName, "failed to load config from environment variables", err, false, false)
	}
	return cfg, nil
}

// LoadConfig loads configuration from the embedded YAML and environment
// variables without going through Fx, then validates it. It is expected to be
// called only once during application startup.
func LoadConfig(envFilePath string, embeddedConfig EmbeddedConfig) (*Config, error) {
	cfg, err := loadConfig(envFilePath, embeddedConfig, NewOsEnvironmentExpander())
	if err != nil {
		return nil, err
	}

	logger.SetLogLevel(cfg.Streamsync.System.Logging.Level)
	logger.Infof("Log level set to: %s", cfg.Streamsync.System.Logging.Level)

	if err := validateConfig(cfg); err != nil {
		return nil, exception.NewSyncError(moduleName, "configuration validation failed", err, false, false)
	}

	return cfg, nil
}

// validateConfig rejects settings the rest of the application cannot act on.
func validateConfig(cfg *Config) error {
	seen := make(map[string]bool)
	for _, job := range cfg.Streamsync.Sync.Jobs {
		if job.Name == "" {
			return fmt.Errorf("sync.jobs entries require a name")
		}
		if seen[job.Name] {
			return fmt.Errorf("duplicate sync job name: '%s'", job.Name)
		}
		seen[job.Name] = true

		switch job.Type {
		case "realtime", "daily":
		default:
			return fmt.Errorf("sync job '%s' has unknown type '%s' (expected \"realtime\" or \"daily\")", job.Name, job.Type)
		}
		if job.IntervalMinutes <= 0 {
			return fmt.Errorf("sync job '%s' requires a positive interval_minutes", job.Name)
		}
	}

	switch cfg.Streamsync.Metrics.Backend {
	case "", "noop", "prometheus", "otel":
	default:
		return fmt.Errorf("unknown metrics backend '%s' (expected \"noop\", \"prometheus\" or \"otel\")", cfg.Streamsync.Metrics.Backend)
	}

	if cfg.Streamsync.Export.Enabled && cfg.Streamsync.Export.Format != "parquet" {
		return fmt.Errorf("unknown export format '%s' (only \"parquet\" is supported)", cfg.Streamsync.Export.Format)
	}

	return nil
}

// mergeConfig performs a deep merge from sourceConfig into destConfig.
// Non-zero values in sourceConfig overwrite the corresponding values in
// destConfig.
func mergeConfig(destConfig, sourceConfig *Config) {
	mergeStreamsyncConfig(&destConfig.Streamsync, &sourceConfig.Streamsync)
}

func mergeStreamsyncConfig(dest, source *StreamsyncConfig) {
	mergeSystemConfig(&dest.System, &source.System)
	mergeDatabasesConfig(&dest.Database, &source.Database)
	mergeStoragesConfig(&dest.Storage, &source.Storage)
	mergeSourceConfig(&dest.Source, &source.Source)
	mergeSyncConfig(&dest.Sync, &source.Sync)
	mergeExportConfig(&dest.Export, &source.Export)
	mergeMetricsConfig(&dest.Metrics, &source.Metrics)
	mergeTracingConfig(&dest.Tracing, &source.Tracing)
	mergeNotifierConfig(&dest.Notifier, &source.Notifier)
}

func mergeSystemConfig(dest, source *SystemConfig) {
	if source.Timezone != "" {
		dest.Timezone = source.Timezone
	}
	if source.Logging.Level != "" {
		dest.Logging.Level = source.Logging.Level
	}
}

func mergeDatabasesConfig(dest, source *DatabasesConfig) {
	if source.Default != "" {
		dest.Default = source.Default
	}
	for name, conn := range source.Connections {
		dest.Connections[name] = conn
	}
}

func mergeStoragesConfig(dest, source *StoragesConfig) {
	for name, conn := range source.Connections {
		dest.Connections[name] = conn
	}
}

func mergeSourceConfig(dest, source *SourceConfig) {
	if source.BaseURL != "" {
		dest.BaseURL = source.BaseURL
	}
	if source.ParameterCd != "" {
		dest.ParameterCd = source.ParameterCd
	}
	if source.TimeoutSeconds != 0 {
		dest.TimeoutSeconds = source.TimeoutSeconds
	}
	if source.UserAgent != "" {
		dest.UserAgent = source.UserAgent
	}
}

func mergeSyncConfig(dest, source *SyncConfig) {
	if source.BackfillYears != 0 {
		dest.BackfillYears = source.BackfillYears
	}
	if source.RunTimeoutMinutes != 0 {
		dest.RunTimeoutMinutes = source.RunTimeoutMinutes
	}
	if source.PollIntervalSeconds != 0 {
		dest.PollIntervalSeconds = source.PollIntervalSeconds
	}
	if source.MaxSites != 0 {
		dest.MaxSites = source.MaxSites
	}
	if source.Jobs != nil {
		dest.Jobs = source.Jobs
	}
}

func mergeExportConfig(dest, source *ExportConfig) {
	if source.Enabled {
		dest.Enabled = true
	}
	if source.Connection != "" {
		dest.Connection = source.Connection
	}
	if source.Prefix != "" {
		dest.Prefix = source.Prefix
	}
	if source.Format != "" {
		dest.Format = source.Format
	}
	if source.Options != nil {
		dest.Options = source.Options
	}
}

func mergeOTelConfig(dest, source *OTelConfig) {
	if source.Endpoint != "" {
		dest.Endpoint = source.Endpoint
	}
	if source.Protocol != "" {
		dest.Protocol = source.Protocol
	}
	if source.Insecure {
		dest.Insecure = true
	}
	if source.ServiceName != "" {
		dest.ServiceName = source.ServiceName
	}
}

func mergeMetricsConfig(dest, source *MetricsConfig) {
	if source.Enabled {
		dest.Enabled = true
	}
	if source.Backend != "" {
		dest.Backend = source.Backend
	}
	if source.ListenAddr != "" {
		dest.ListenAddr = source.ListenAddr
	}
	mergeOTelConfig(&dest.OTel, &source.OTel)
}

func mergeTracingConfig(dest, source *TracingConfig) {
	if source.Enabled {
		dest.Enabled = true
	}
	mergeOTelConfig(&dest.OTel, &source.OTel)
}

func mergeNotifierConfig(dest, source *NotifierConfig) {
	if source.Enabled {
		dest.Enabled = true
	}
	if source.WebhookURL != "" {
		dest.WebhookURL = source.WebhookURL
	}
	if source.TimeoutSeconds != 0 {
		dest.TimeoutSeconds = source.TimeoutSeconds
	}
}

// loadStructFromEnv recursively loads configuration values into a struct from
// environment variables, using the "yaml" tag to derive the variable name
// (e.g., streamsync.system.logging.level becomes STREAMSYNC_SYSTEM_LOGGING_LEVEL).
func loadStructFromEnv(val reflect.Value, prefix string) error {
	typ := val.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)
		yamlTag := fieldType.Tag.Get("yaml")
		if yamlTag == "" || yamlTag == "-" {
			continue
		}
		if idx := strings.Index(yamlTag, ","); idx >= 0 {
			yamlTag = yamlTag[:idx]
		}
		envVarName := strings.ToUpper(prefix + yamlTag)

		if field.Kind() == reflect.Struct {
			if err := loadStructFromEnv(field, envVarName+"_"); err != nil {
				return err
			}
			continue
		}

		envValue, exists := os.LookupEnv(envVarName)
		if !exists && field.Kind() != reflect.Map {
			continue
		}

		if field.Kind() == reflect.Map && field.Type().Key().Kind() == reflect.String && field.Type().Elem().Kind() == reflect.Struct {
			// Named connection maps accept entries such as
			// STREAMSYNC_DATABASE_CONNECTIONS_PRIMARY_HOST.
			if err := loadMapOfStructsFromEnv(field, envVarName+"_"); err != nil {
				return err
			}
			continue
		}

		if err := setField(field, envValue); err != nil {
			return fmt.Errorf("failed to set field '%s' from env var '%s': %w", fieldType.Name, envVarName, err)
		}
	}
	return nil
}

// loadMapOfStructsFromEnv loads map[string]struct fields from environment
// variables, inferring the map key and struct field from the variable name.
// STREAMSYNC_DATABASE_CONNECTIONS_PRIMARY_HOST=localhost sets the Host field
// of the connection named "primary".
func loadMapOfStructsFromEnv(mapField reflect.Value, prefix string) error {
	if mapField.IsNil() {
		mapField.Set(reflect.MakeMap(mapField.Type()))
	}

	elemType := mapField.Type().Elem()

	for _, env := range os.Environ() {
		if !strings.HasPrefix(env, prefix) {
			continue
		}

		keyPartWithValue := strings.TrimPrefix(env, prefix)
		parts := strings.SplitN(keyPartWithValue, "=", 2)
		if len(parts) != 2 {
			continue
		}
		keyAndField := parts[0]
		envValue := parts[1]

		keyAndFieldParts := strings.Split(keyAndField, "_")
		if len(keyAndFieldParts) < 2 {
			continue
		}
		mapKey := strings.ToLower(keyAndFieldParts[0])
		structFieldName := strings.Join(keyAndFieldParts[1:], "_")

		structVal := mapField.MapIndex(reflect.ValueOf(mapKey))
		if !structVal.IsValid() {
			structVal = reflect.New(elemType).Elem()
		} else {
			// Map values are not addressable; copy before mutating.
			clone := reflect.New(elemType).Elem()
			clone.Set(structVal)
			structVal = clone
		}

		if err := setStructFieldFromEnv(structVal, structFieldName, envValue); err != nil {
			return err
		}
		mapField.SetMapIndex(reflect.ValueOf(mapKey), structVal)
	}
	return nil
}

// setStructFieldFromEnv sets the struct field whose yaml tag matches
// fieldName (case-insensitively). Unknown field names are ignored.
func setStructFieldFromEnv(structVal reflect.Value, fieldName string, value string) error {
	typ := structVal.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := structVal.Field(i)
		fieldType := typ.Field(i)
		yamlTag := fieldType.Tag.Get("yaml")
		if yamlTag == "" || yamlTag == "-" {
			continue
		}
		if idx := strings.Index(yamlTag, ","); idx >= 0 {
			yamlTag = yamlTag[:idx]
		}

		if strings.EqualFold(yamlTag, fieldName) {
			return setField(field, value)
		}
	}
	return nil
}

// setField converts and assigns a string value according to the field's kind.
func setField(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(intValue)
	case reflect.Float64, reflect.Float32:
		floatValue, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(floatValue)
	case reflect.Bool:
		boolValue, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(boolValue)
	}
	return nil
}
