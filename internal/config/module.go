// Package config provides core configuration structures and utilities.
// This file defines the Fx providers for configuration components.
package config

import "go.uber.org/fx"

// NewLoggingConfigProvider extracts and provides *LoggingConfig from *Config,
// so components can depend on the logging configuration alone.
func NewLoggingConfigProvider(cfg *Config) *LoggingConfig {
	return &cfg.Streamsync.System.Logging
}

// Module provides configuration-related components to Fx. The *Config itself
// is loaded before the container starts and supplied as a value, so command
// line overrides apply before any provider sees it.
var Module = fx.Options(
	fx.Provide(NewLoggingConfigProvider),
	fx.Provide(func() EnvironmentExpander {
		return NewOsEnvironmentExpander()
	}),
)
