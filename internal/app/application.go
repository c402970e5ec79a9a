// Package app assembles the application's dependency graph. Every CLI
// command boots the same graph and contributes its own fx.Invoke options on
// top of it.
package app

import (
	"context"
	"strings"

	"github.com/jonboulle/clockwork"
	"go.uber.org/fx"

	"github.com/cascadiahydro/streamsync/internal/adapter/database"
	gormadapter "github.com/cascadiahydro/streamsync/internal/adapter/database/gorm"
	"github.com/cascadiahydro/streamsync/internal/adapter/database/gorm/mysql"
	"github.com/cascadiahydro/streamsync/internal/adapter/database/gorm/postgres"
	"github.com/cascadiahydro/streamsync/internal/adapter/database/gorm/sqlite"
	storage "github.com/cascadiahydro/streamsync/internal/adapter/storage"
	"github.com/cascadiahydro/streamsync/internal/adapter/storage/gcs"
	"github.com/cascadiahydro/streamsync/internal/adapter/storage/local"
	"github.com/cascadiahydro/streamsync/internal/config"
	"github.com/cascadiahydro/streamsync/internal/connector/usgs"
	"github.com/cascadiahydro/streamsync/internal/exporter"
	sqlrepo "github.com/cascadiahydro/streamsync/internal/infrastructure/repository/sql"
	"github.com/cascadiahydro/streamsync/internal/job"
	"github.com/cascadiahydro/streamsync/internal/metrics"
	"github.com/cascadiahydro/streamsync/internal/migration"
	"github.com/cascadiahydro/streamsync/internal/notifier"
	"github.com/cascadiahydro/streamsync/internal/scheduler"
	"github.com/cascadiahydro/streamsync/internal/support/logger"
	"github.com/cascadiahydro/streamsync/internal/tx"
)

// DBProviderMap maps connection types to their provider constructors so the
// CLI can register only the backends an installation needs.
var DBProviderMap = map[string]func(cfg *config.Config) database.DBProvider{
	"postgres": postgres.NewProvider,
	"redshift": postgres.NewProvider,
	"mysql":    mysql.NewProvider,
	"sqlite":   sqlite.NewProvider,
}

// DBProviderOptions selects the database providers to register from a comma
// separated list, defaulting to all supported backends.
func DBProviderOptions(adapters string) []fx.Option {
	if adapters == "" {
		adapters = "postgres,mysql,sqlite"
	}

	options := make([]fx.Option, 0)
	for _, name := range strings.Split(adapters, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		provider, ok := DBProviderMap[name]
		if !ok {
			logger.Warnf("DB provider '%s' is configured but not supported, skipping.", name)
			continue
		}
		options = append(options, fx.Provide(fx.Annotate(
			provider,
			fx.ResultTags(`group:"`+database.DBProviderGroup+`"`),
		)))
		logger.Debugf("DB provider '%s' registered.", name)
	}
	return options
}

// primaryConnectionName returns the configured default connection name.
func primaryConnectionName(cfg *config.Config) string {
	if name := cfg.Streamsync.Database.Default; name != "" {
		return name
	}
	return "primary"
}

// NewPrimaryDBConnection resolves the default database connection once, for
// components bound to a single connection.
func NewPrimaryDBConnection(cfg *config.Config, resolver database.DBConnectionResolver) (database.DBConnection, error) {
	return resolver.ResolveDBConnection(context.Background(), primaryConnectionName(cfg))
}

// NewPrimaryTxManager builds the TransactionManager for the default
// connection.
func NewPrimaryTxManager(conn database.DBConnection, factory tx.TransactionManagerFactory) tx.TransactionManager {
	return factory.NewTransactionManager(conn)
}

// NewMigrator builds the schema migrator over the default connection's pool.
func NewMigrator(conn database.DBConnection, source migration.Source) (*migration.Migrator, error) {
	return migration.NewMigrator(conn, source)
}

// Module provides the application-level glue: the wall clock, the default
// connection and its transaction manager, and the schema migrator.
var Module = fx.Options(
	fx.Provide(func() clockwork.Clock { return clockwork.NewRealClock() }),
	fx.Provide(NewPrimaryDBConnection),
	fx.Provide(NewPrimaryTxManager),
	fx.Provide(NewMigrator),
)

// New assembles the fx application. The configuration and the migration
// source are loaded by the caller so command line overrides apply before any
// provider runs; dbProviderOptions and extraOptions contribute the storage
// backends and the command's work.
func New(cfg *config.Config, migrations migration.Source, dbProviderOptions []fx.Option, extraOptions ...fx.Option) *fx.App {
	options := []fx.Option{
		fx.Supply(cfg, migrations),

		fx.Options(dbProviderOptions...),
		gormadapter.Module,

		local.Module,
		gcs.Module,
		storage.Module,

		config.Module,
		sqlrepo.Module,
		usgs.Module,
		metrics.Module,
		exporter.Module,
		notifier.Module,
		job.Module,
		scheduler.Module,
		Module,
	}
	options = append(options, extraOptions...)
	return fx.New(options...)
}
