package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/cascadiahydro/streamsync/internal/config"
	"github.com/cascadiahydro/streamsync/internal/job"
	"github.com/cascadiahydro/streamsync/internal/metrics"
	"github.com/cascadiahydro/streamsync/internal/migration"
	"github.com/cascadiahydro/streamsync/internal/scheduler"
	"github.com/cascadiahydro/streamsync/internal/support/logger"
)

func newScheduleCommand(assets Assets, opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the scheduler as a long-lived daemon",
		Long: `schedule applies pending schema migrations, seeds the configured job
definitions, and then polls the definitions at the configured interval,
running every due job until the process receives SIGINT or SIGTERM. With the
prometheus metrics backend a /metrics scrape endpoint is served.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				cfg      *config.Config
				migrator *migration.Migrator
				sched    *scheduler.Scheduler
				recorder metrics.MetricRecorder
			)
			targets := []interface{}{&cfg, &migrator, &sched, &recorder}

			return opts.withApp(cmd.Context(), assets, targets, func(ctx context.Context) error {
				if err := migrator.Up(); err != nil {
					return err
				}
				if err := sched.SeedJobDefinitions(ctx); err != nil {
					return err
				}

				stopMetrics := serveMetrics(cfg, recorder)
				defer stopMetrics()

				options := job.Options{MaxSites: cfg.Streamsync.Sync.MaxSites}
				return sched.RunLoop(ctx, options)
			})
		},
	}
	return cmd
}

// serveMetrics starts the prometheus scrape endpoint when the configuration
// selects that backend, and returns the function that shuts it down. Other
// backends export on their own, so the returned function is a no-op.
func serveMetrics(cfg *config.Config, recorder metrics.MetricRecorder) func() {
	metricsCfg := cfg.Streamsync.Metrics
	if !metricsCfg.Enabled || metricsCfg.ListenAddr == "" {
		return func() {}
	}
	promRecorder, ok := recorder.(*metrics.PrometheusMetricRecorder)
	if !ok {
		return func() {}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promRecorder.Handler())
	server := &http.Server{Addr: metricsCfg.ListenAddr, Handler: mux}

	go func() {
		logger.Infof("Serving prometheus metrics on %s/metrics.", metricsCfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("Metrics endpoint failed: %v", err)
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warnf("Metrics endpoint shutdown failed: %v", err)
		}
	}
}
