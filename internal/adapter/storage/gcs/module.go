package gcs

import (
	"go.uber.org/fx"

	storageAdapter "github.com/cascadiahydro/streamsync/internal/adapter/storage"
)

// Module exports the GCS StorageProvider for dependency injection.
var Module = fx.Options(
	fx.Provide(
		fx.Annotate(
			NewGCSProvider,
			fx.ResultTags(`group:"`+storageAdapter.StorageProviderGroup+`"`),
		),
	),
)
