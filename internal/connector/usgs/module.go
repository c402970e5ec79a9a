package usgs

import (
	"go.uber.org/fx"

	"github.com/cascadiahydro/streamsync/internal/config"
	"github.com/cascadiahydro/streamsync/internal/connector"
)

// NewSourceConnector builds the connector.SourceConnector from the application
// configuration. Intended to be registered through fx.Provide.
func NewSourceConnector(cfg *config.Config) connector.SourceConnector {
	return NewClient(cfg.Streamsync.Source)
}

// Module provides the USGS-backed SourceConnector.
var Module = fx.Options(
	fx.Provide(NewSourceConnector),
)
