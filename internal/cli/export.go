package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/cascadiahydro/streamsync/internal/config"
	"github.com/cascadiahydro/streamsync/internal/exporter"
	"github.com/cascadiahydro/streamsync/internal/migration"
)

// defaultExportDays is the export window when neither --start nor --days is
// given.
const defaultExportDays = 30

func newExportCommand(assets Assets, opts *rootOptions) *cobra.Command {
	var startRaw, endRaw string
	var days int

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Archive stored observations to Parquet files",
		Long: `export writes every observation in the selected window to Parquet
objects on the configured storage connection, partitioned by observation day.
The window is [--start, --end) when given, otherwise the last --days days.
Timestamps accept RFC 3339 or a plain YYYY-MM-DD date.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				cfg      *config.Config
				migrator *migration.Migrator
				exp      exporter.Exporter
				clock    clockwork.Clock
			)
			targets := []interface{}{&cfg, &migrator, &exp, &clock}

			return opts.withApp(cmd.Context(), assets, targets, func(ctx context.Context) error {
				if !cfg.Streamsync.Export.Enabled {
					return errors.New("export is disabled in the configuration (streamsync.export.enabled)")
				}
				if err := migrator.Up(); err != nil {
					return err
				}

				start, end, err := exportWindow(clock.Now().UTC(), startRaw, endRaw, days)
				if err != nil {
					return err
				}

				result, err := exp.Export(ctx, start, end)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "exported %d observations into %d objects\n",
					result.RecordsExported, len(result.ObjectsWritten))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&startRaw, "start", "", "window start (inclusive)")
	cmd.Flags().StringVar(&endRaw, "end", "", "window end (exclusive, default now)")
	cmd.Flags().IntVar(&days, "days", 0, fmt.Sprintf("export the last N days instead of an explicit window (default %d)", defaultExportDays))
	return cmd
}

// exportWindow resolves the half-open export window from the flags. An
// explicit --start wins over --days; --end defaults to now.
func exportWindow(now time.Time, startRaw, endRaw string, days int) (time.Time, time.Time, error) {
	end := now
	if endRaw != "" {
		parsed, err := parseTimeFlag(endRaw)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --end: %w", err)
		}
		end = parsed
	}

	var start time.Time
	switch {
	case startRaw != "":
		parsed, err := parseTimeFlag(startRaw)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --start: %w", err)
		}
		start = parsed
	case days > 0:
		start = end.AddDate(0, 0, -days)
	default:
		start = end.AddDate(0, 0, -defaultExportDays)
	}

	if !start.Before(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("export window start %s is not before end %s",
			start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return start, end, nil
}

// parseTimeFlag accepts RFC 3339 timestamps and plain dates, both in UTC.
func parseTimeFlag(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("'%s' is neither an RFC 3339 timestamp nor a YYYY-MM-DD date", raw)
	}
	return t.UTC(), nil
}
