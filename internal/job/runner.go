package job

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/cascadiahydro/streamsync/internal/config"
	"github.com/cascadiahydro/streamsync/internal/connector"
	"github.com/cascadiahydro/streamsync/internal/domain/model"
	"github.com/cascadiahydro/streamsync/internal/domain/repository"
	"github.com/cascadiahydro/streamsync/internal/metrics"
	"github.com/cascadiahydro/streamsync/internal/support/exception"
	"github.com/cascadiahydro/streamsync/internal/support/logger"
	"github.com/cascadiahydro/streamsync/internal/tx"
)

const moduleName = "SyncJob"

// defaultBackfillYears bounds the first daily sync of a site when the
// configuration does not say otherwise.
const defaultBackfillYears = 2

// Runner is the SourceConnector-to-repository sync engine for one job
// definition. It is built per run by the Factory and is not reused.
type Runner struct {
	definition *model.JobDefinition
	options    Options
	syncCfg    config.SyncConfig
	source     connector.SourceConnector
	repo       repository.SyncRepository
	txManager  tx.TransactionManager
	recorder   metrics.MetricRecorder
	tracer     metrics.Tracer
	clock      clockwork.Clock
}

// Name returns the job definition's name.
func (r *Runner) Name() string {
	return r.definition.JobName
}

// Run executes one sync pass. The window end is fixed to a single "now" so
// every site of the pass syncs against the same boundary. Failures of
// individual sites are recorded on the execution and skipped; Run returns an
// error only for run-level failures (purge failure, site listing failure,
// run deadline exceeded).
func (r *Runner) Run(ctx context.Context, execution *model.JobExecution) error {
	ctx, endRun := r.tracer.StartRunSpan(ctx, execution)
	defer endRun()
	r.recorder.RecordRunStart(ctx, execution)

	now := r.clock.Now().UTC()
	logger.Infof("Job '%s' starting sync pass at %s.", r.definition.JobName, now.Format(time.RFC3339))

	if r.definition.JobType == model.JobTypeRealtime && r.definition.RetentionDays > 0 {
		purged, err := r.purgeExpired(ctx, now)
		if err != nil {
			r.tracer.RecordError(ctx, moduleName, err)
			return err
		}
		execution.ObservationsPurged = purged
		if purged > 0 {
			r.recorder.RecordObservationsPurged(ctx, r.definition.JobName, purged)
		}
	}

	sites, err := r.repo.FindActiveSites(ctx, r.options.MaxSites)
	if err != nil {
		wrapped := exception.NewSyncError(moduleName, fmt.Sprintf("failed to list active sites for job '%s'", r.definition.JobName), err, false, true)
		r.tracer.RecordError(ctx, moduleName, wrapped)
		return wrapped
	}
	execution.SitesAttempted = len(sites)
	if len(sites) == 0 {
		logger.Warnf("Job '%s' has no active sites to sync.", r.definition.JobName)
		return nil
	}

	for _, site := range sites {
		if err := ctx.Err(); err != nil {
			return r.runDeadlineError(execution, err)
		}

		upserted, err := r.syncSite(ctx, site.SiteID, now)
		if err != nil {
			// A deadline on the run context surfaces through whatever the
			// site was doing; that is a run timeout, not a site failure.
			if ctx.Err() != nil {
				return r.runDeadlineError(execution, err)
			}
			execution.FailedCount++
			execution.AddFailureException(fmt.Errorf("site %s: %s", site.SiteID, exception.ExtractErrorMessage(err)))
			r.recorder.RecordSiteFailed(ctx, r.definition.JobName, site.SiteID, failureReason(err))
			r.tracer.RecordError(ctx, moduleName, err)
			logger.Errorf("Job '%s': site %s failed: %v", r.definition.JobName, site.SiteID, err)
			continue
		}

		execution.SucceededCount++
		execution.ObservationsUpserted += upserted
		r.recorder.RecordSiteSynced(ctx, r.definition.JobName, site.SiteID, upserted)
	}

	logger.Infof("Job '%s' finished: %d/%d sites succeeded, %d observations upserted, %d purged.",
		r.definition.JobName, execution.SucceededCount, execution.SitesAttempted,
		execution.ObservationsUpserted, execution.ObservationsPurged)
	return nil
}

// runDeadlineError wraps a run-context deadline into the run timeout error.
func (r *Runner) runDeadlineError(execution *model.JobExecution, cause error) error {
	return exception.NewTimeoutError(moduleName,
		fmt.Sprintf("job '%s' exceeded its run deadline after %d of %d sites",
			r.definition.JobName, execution.SucceededCount+execution.FailedCount, execution.SitesAttempted),
		cause)
}

// purgeExpired deletes realtime observations older than the retention window
// in a single transaction. It runs before any site sync so expired rows never
// survive a pass that also ingests new data.
func (r *Runner) purgeExpired(ctx context.Context, now time.Time) (int64, error) {
	cutoff := now.Add(-r.definition.Retention())

	if r.options.DryRun {
		logger.Infof("[dry-run] Job '%s': would purge observations older than %s.",
			r.definition.JobName, cutoff.Format(time.RFC3339))
		return 0, nil
	}

	txn, err := r.txManager.Begin(ctx)
	if err != nil {
		return 0, exception.NewStoreCommitError(moduleName, "failed to begin purge transaction", err)
	}
	ctxWithTx := context.WithValue(ctx, "tx", txn)

	purged, err := r.repo.PurgeObservationsBefore(ctxWithTx, cutoff)
	if err != nil {
		r.rollback(txn)
		return 0, exception.NewStoreCommitError(moduleName,
			fmt.Sprintf("failed to purge observations older than %s", cutoff.Format(time.RFC3339)), err)
	}
	if err := r.txManager.Commit(txn); err != nil {
		r.rollback(txn)
		return 0, exception.NewStoreCommitError(moduleName, "failed to commit purge transaction", err)
	}

	if purged > 0 {
		logger.Infof("Job '%s' purged %d observations older than %s.",
			r.definition.JobName, purged, cutoff.Format(time.RFC3339))
	}
	return purged, nil
}

// syncSite fetches and commits one site's window and returns the number of
// rows upserted. The watermark advances to the newest fetched timestamp in
// the same transaction as the observations; an empty window leaves it alone.
func (r *Runner) syncSite(ctx context.Context, siteID string, now time.Time) (int64, error) {
	ctx, endSpan := r.tracer.StartSiteSpan(ctx, r.definition.JobName, siteID)
	defer endSpan()

	start, err := r.windowStart(ctx, siteID, now)
	if err != nil {
		return 0, err
	}
	if !start.Before(now) {
		logger.Debugf("Job '%s': site %s is already current (watermark %s).",
			r.definition.JobName, siteID, start.Format(time.RFC3339))
		return 0, nil
	}

	fetchStarted := r.clock.Now()
	observations, err := r.source.FetchObservations(ctx, siteID, start, now)
	if err != nil {
		r.recorder.RecordFetchDuration(ctx, r.definition.JobName, r.clock.Since(fetchStarted), "error")
		return 0, err
	}
	r.recorder.RecordFetchDuration(ctx, r.definition.JobName, r.clock.Since(fetchStarted), "success")

	if len(observations) == 0 {
		logger.Debugf("Job '%s': site %s has no observations in [%s, %s).",
			r.definition.JobName, siteID, start.Format(time.RFC3339), now.Format(time.RFC3339))
		return 0, nil
	}

	latest, ok := model.LatestTimestamp(observations)
	if !ok {
		return 0, exception.NewMalformedResponseError(moduleName,
			fmt.Sprintf("site %s returned observations without timestamps", siteID), nil)
	}

	ingestedAt := r.clock.Now().UTC()
	for i := range observations {
		observations[i].SiteID = siteID
		observations[i].IngestedAt = ingestedAt
	}

	if r.options.DryRun {
		logger.Infof("[dry-run] Job '%s': site %s would upsert %d observations and advance the watermark to %s.",
			r.definition.JobName, siteID, len(observations), latest.Format(time.RFC3339))
		return int64(len(observations)), nil
	}

	return r.commitSite(ctx, siteID, observations, latest, ingestedAt)
}

// windowStart returns the site's sync window start: the stored watermark, or
// the backfill boundary when the site has never synced for this job type.
func (r *Runner) windowStart(ctx context.Context, siteID string, now time.Time) (time.Time, error) {
	watermark, err := r.repo.FindWatermark(ctx, siteID, r.definition.JobType)
	if err == nil {
		return watermark.LastTimestamp.UTC(), nil
	}
	if !errors.Is(err, repository.ErrWatermarkNotFound) {
		return time.Time{}, exception.NewStoreCommitError(moduleName,
			fmt.Sprintf("failed to read watermark for site %s", siteID), err)
	}
	return r.backfillStart(now), nil
}

// backfillStart bounds a site's first sync. Realtime jobs reach back one
// retention window since older rows would only be purged again; daily jobs
// reach back the configured number of years.
func (r *Runner) backfillStart(now time.Time) time.Time {
	if r.definition.JobType == model.JobTypeRealtime && r.definition.RetentionDays > 0 {
		return now.Add(-r.definition.Retention())
	}
	years := r.syncCfg.BackfillYears
	if years <= 0 {
		years = defaultBackfillYears
	}
	return now.AddDate(-years, 0, 0)
}

// commitSite upserts the observations and advances the watermark atomically.
func (r *Runner) commitSite(ctx context.Context, siteID string, observations []model.Observation, latest, ingestedAt time.Time) (int64, error) {
	txn, err := r.txManager.Begin(ctx)
	if err != nil {
		return 0, exception.NewStoreCommitError(moduleName,
			fmt.Sprintf("failed to begin transaction for site %s", siteID), err)
	}
	ctxWithTx := context.WithValue(ctx, "tx", txn)

	upserted, err := r.repo.UpsertObservations(ctxWithTx, observations)
	if err != nil {
		r.rollback(txn)
		return 0, exception.NewStoreCommitError(moduleName,
			fmt.Sprintf("failed to upsert %d observations for site %s", len(observations), siteID), err)
	}

	watermark := &model.Watermark{
		SiteID:        siteID,
		JobType:       r.definition.JobType,
		LastTimestamp: latest,
		UpdatedAt:     ingestedAt,
	}
	if err := r.repo.SaveWatermark(ctxWithTx, watermark); err != nil {
		r.rollback(txn)
		return 0, exception.NewStoreCommitError(moduleName,
			fmt.Sprintf("failed to save watermark for site %s", siteID), err)
	}

	if err := r.txManager.Commit(txn); err != nil {
		r.rollback(txn)
		return 0, exception.NewStoreCommitError(moduleName,
			fmt.Sprintf("failed to commit observations for site %s", siteID), err)
	}

	logger.Debugf("Job '%s': site %s upserted %d observations, watermark now %s.",
		r.definition.JobName, siteID, upserted, latest.Format(time.RFC3339))
	return upserted, nil
}

func (r *Runner) rollback(txn tx.Tx) {
	if err := r.txManager.Rollback(txn); err != nil {
		logger.Warnf("Job '%s': transaction rollback failed: %v", r.definition.JobName, err)
	}
}
