package gorm

import (
	"go.uber.org/fx"

	"github.com/cascadiahydro/streamsync/internal/adapter"
	"github.com/cascadiahydro/streamsync/internal/adapter/database"
)

// Module exports the driver-independent components of the gorm adapter for
// dependency injection. Concrete DBProviders live in the driver subpackages.
var Module = fx.Options(
	fx.Provide(NewGormTransactionManagerFactory),
	fx.Provide(fx.Annotate(
		NewGormDBConnectionResolver,
		fx.As(new(database.DBConnectionResolver)),
		fx.As(new(adapter.ResourceConnectionResolver)),
	)),
)
