package local

import (
	"go.uber.org/fx"

	storageAdapter "github.com/cascadiahydro/streamsync/internal/adapter/storage"
)

// Module exports the local StorageProvider for dependency injection.
var Module = fx.Options(
	fx.Provide(
		fx.Annotate(
			NewLocalProvider,
			fx.ResultTags(`group:"`+storageAdapter.StorageProviderGroup+`"`),
		),
	),
)
