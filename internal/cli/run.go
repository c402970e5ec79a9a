package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cascadiahydro/streamsync/internal/config"
	"github.com/cascadiahydro/streamsync/internal/job"
	"github.com/cascadiahydro/streamsync/internal/migration"
	"github.com/cascadiahydro/streamsync/internal/scheduler"
	"github.com/cascadiahydro/streamsync/internal/support/logger"
)

// errRunNotFullySuccessful turns a partial or failed pass into a non-zero
// exit without double-logging the per-site details already on the record.
var errRunNotFullySuccessful = errors.New("one or more sync jobs did not fully succeed")

func newRunCommand(assets Assets, opts *rootOptions) *cobra.Command {
	var jobName string
	var dryRun bool
	var maxSites int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one scheduling pass over due sync jobs",
		Long: `run applies pending schema migrations, seeds the configured job
definitions, and performs a single scheduling pass: every due job syncs its
active sites and records the outcome in the execution log. With --job the
named definition runs regardless of its schedule.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				cfg      *config.Config
				migrator *migration.Migrator
				sched    *scheduler.Scheduler
			)
			targets := []interface{}{&cfg, &migrator, &sched}

			return opts.withApp(cmd.Context(), assets, targets, func(ctx context.Context) error {
				if err := migrator.Up(); err != nil {
					return err
				}

				if dryRun {
					logger.Infof("[dry-run] Job definitions are not seeded; an unseeded database reports nothing due.")
				} else if err := sched.SeedJobDefinitions(ctx); err != nil {
					return err
				}

				options := job.Options{DryRun: dryRun, MaxSites: maxSites}
				if options.MaxSites == 0 {
					options.MaxSites = cfg.Streamsync.Sync.MaxSites
				}

				result, err := sched.RunOnce(ctx, jobName, options)
				if err != nil {
					return err
				}

				printPassSummary(cmd, result)
				if !result.FullySucceeded() {
					return errRunNotFullySuccessful
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&jobName, "job", "", "force this job definition to run regardless of its schedule")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "fetch and report without mutating the store")
	cmd.Flags().IntVar(&maxSites, "max-sites", 0, "cap the number of sites synced per job (0 = configured default)")
	return cmd
}

// printPassSummary writes one line per finished execution plus the skipped
// jobs to the command's output.
func printPassSummary(cmd *cobra.Command, result *scheduler.Result) {
	for _, execution := range result.Executions {
		duration := ""
		if execution.EndTime != nil {
			duration = execution.EndTime.Sub(execution.StartTime).Round(time.Millisecond).String()
		}
		fmt.Fprintf(cmd.OutOrStdout(), "job %-20s status=%-8s sites=%d/%d upserted=%d purged=%d duration=%s\n",
			execution.JobName, execution.Status,
			execution.SucceededCount, execution.SitesAttempted,
			execution.ObservationsUpserted, execution.ObservationsPurged, duration)
	}
	for _, name := range result.Skipped {
		fmt.Fprintf(cmd.OutOrStdout(), "job %-20s skipped (an earlier execution is still open)\n", name)
	}
	if len(result.Executions) == 0 && len(result.Skipped) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no jobs due")
	}
}
