package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cascadiahydro/streamsync/internal/migration"
)

func newMigrateCommand(assets Assets, opts *rootOptions) *cobra.Command {
	var steps int

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations to the configured database",
		Long: `migrate brings the database schema to the latest embedded migration
version. With --steps it moves a fixed number of versions instead: positive
values migrate forward, negative values roll back.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var migrator *migration.Migrator
			return opts.withApp(cmd.Context(), assets, []interface{}{&migrator}, func(ctx context.Context) error {
				if steps != 0 {
					return migrator.Steps(steps)
				}
				return migrator.Up()
			})
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 0, "apply exactly this many migration steps (negative rolls back)")

	cmd.AddCommand(newMigrateStatusCommand(assets, opts))
	return cmd
}

func newMigrateStatusCommand(assets Assets, opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var migrator *migration.Migrator
			return opts.withApp(cmd.Context(), assets, []interface{}{&migrator}, func(ctx context.Context) error {
				version, dirty, err := migrator.Version()
				if err != nil {
					return err
				}
				if dirty {
					fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty: a migration did not finish cleanly)\n", version)
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", version)
				return nil
			})
		},
	}
}
