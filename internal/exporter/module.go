package exporter

import (
	"go.uber.org/fx"
)

// NewExporter provides the configured Exporter implementation.
func NewExporter(parquetExporter *ParquetExporter) Exporter {
	return parquetExporter
}

// Module provides the observation archive exporter.
var Module = fx.Options(
	fx.Provide(
		NewParquetExporter,
		NewExporter,
	),
)
