package sql

import (
	"go.uber.org/fx"
)

// Module provides the SQL-backed SyncRepository to the application graph.
var Module = fx.Options(
	fx.Provide(NewSyncRepository),
)
