// Package cli implements the streamsync command tree. Every command loads
// the same layered configuration, boots the same fx application graph, and
// differs only in the work it invokes against it.
package cli

import (
	"context"
	"embed"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/cascadiahydro/streamsync/internal/app"
	"github.com/cascadiahydro/streamsync/internal/config"
	"github.com/cascadiahydro/streamsync/internal/migration"
	"github.com/cascadiahydro/streamsync/internal/support/logger"
)

// startStopTimeout bounds the fx container's Start and Stop phases.
const startStopTimeout = 30 * time.Second

// Assets carries the resources compiled into the binary: the embedded
// configuration file and the schema migration sources.
type Assets struct {
	EmbeddedConfig config.EmbeddedConfig
	MigrationsFS   embed.FS
	MigrationsPath string
}

// rootOptions holds the persistent flags shared by every command.
type rootOptions struct {
	envFile    string
	dbPath     string
	dbAdapters string
}

// Execute runs the command tree and returns the process exit code. Any
// command error, including a partial sync result, exits non-zero.
func Execute(ctx context.Context, assets Assets) int {
	root := NewRootCommand(assets)
	if err := root.ExecuteContext(ctx); err != nil {
		logger.Errorf("%v", err)
		return 1
	}
	return 0
}

// NewRootCommand builds the streamsync command tree.
func NewRootCommand(assets Assets) *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "streamsync",
		Short: "Incremental synchronization of USGS streamflow observations",
		Long: `streamsync keeps a relational store of streamflow observations current
against the USGS instantaneous-values service. It tracks a per-site,
per-job-type watermark, fetches only the window past it, and records every
run in an execution log.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "path to a .env file loaded before configuration")
	root.PersistentFlags().StringVar(&opts.dbPath, "db-path", "", "override the default connection with a sqlite database at this path")
	root.PersistentFlags().StringVar(&opts.dbAdapters, "db-adapters", "", `comma separated database backends to register (default "postgres,mysql,sqlite")`)

	root.AddCommand(
		newRunCommand(assets, opts),
		newScheduleCommand(assets, opts),
		newMigrateCommand(assets, opts),
		newSitesCommand(assets, opts),
		newExportCommand(assets, opts),
		newVersionCommand(),
	)
	return root
}

// loadConfig loads the layered configuration and applies the command line
// overrides that must be in place before any fx provider runs.
func (o *rootOptions) loadConfig(assets Assets) (*config.Config, error) {
	cfg, err := config.LoadConfig(o.envFile, assets.EmbeddedConfig)
	if err != nil {
		return nil, err
	}

	if o.dbPath != "" {
		name := cfg.Streamsync.Database.Default
		if name == "" {
			name = "primary"
		}
		conn := cfg.Streamsync.Database.Connections[name]
		conn.Type = "sqlite"
		conn.Database = o.dbPath
		cfg.Streamsync.Database.Connections[name] = conn
		logger.Infof("Default connection '%s' overridden to sqlite database '%s'.", name, o.dbPath)
	}
	return cfg, nil
}

// withApp boots the application graph, populates the command's dependencies,
// runs the command's work and tears the graph down again. The work's error
// is returned after the container has stopped so connections always close.
func (o *rootOptions) withApp(ctx context.Context, assets Assets, targets []interface{}, work func(ctx context.Context) error) error {
	cfg, err := o.loadConfig(assets)
	if err != nil {
		return err
	}

	source := migration.Source{FS: assets.MigrationsFS, Path: assets.MigrationsPath}
	application := app.New(cfg, source,
		app.DBProviderOptions(o.dbAdapters),
		fx.NopLogger,
		fx.Populate(targets...),
	)

	startCtx, cancelStart := context.WithTimeout(ctx, startStopTimeout)
	defer cancelStart()
	if err := application.Start(startCtx); err != nil {
		return err
	}

	workErr := work(ctx)

	stopCtx, cancelStop := context.WithTimeout(context.Background(), startStopTimeout)
	defer cancelStop()
	if err := application.Stop(stopCtx); err != nil {
		logger.Warnf("Application shutdown reported an error: %v", err)
	}
	return workErr
}
