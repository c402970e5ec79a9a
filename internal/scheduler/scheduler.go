// Package scheduler decides which sync jobs run and owns their execution
// records. One pass loads the definitions, rejects overlapping runs, appends
// a running record to the execution log, hands the job to the sync engine
// under the run timeout, and finalizes both the record and the schedule
// regardless of how the run ended.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/jonboulle/clockwork"
	"go.uber.org/fx"

	"github.com/cascadiahydro/streamsync/internal/config"
	"github.com/cascadiahydro/streamsync/internal/domain/model"
	"github.com/cascadiahydro/streamsync/internal/domain/repository"
	"github.com/cascadiahydro/streamsync/internal/job"
	"github.com/cascadiahydro/streamsync/internal/metrics"
	"github.com/cascadiahydro/streamsync/internal/notifier"
	"github.com/cascadiahydro/streamsync/internal/support/exception"
	"github.com/cascadiahydro/streamsync/internal/support/logger"
)

const moduleName = "Scheduler"

const (
	defaultRunTimeout   = time.Hour
	defaultPollInterval = time.Minute
)

// ErrJobAlreadyRunning rejects a run whose previous execution is still open
// and within the run timeout.
var ErrJobAlreadyRunning = errors.New("job already running")

// Result is the outcome of one scheduling pass.
type Result struct {
	// Executions holds the finalized execution of every job that ran.
	Executions []*model.JobExecution
	// Skipped lists jobs rejected because an earlier execution is still open.
	Skipped []string
}

// FullySucceeded reports whether every job of the pass finished with status
// success. A pass with nothing to do is successful.
func (r *Result) FullySucceeded() bool {
	for _, execution := range r.Executions {
		if execution.Status != model.ExecutionStatusSuccess {
			return false
		}
	}
	return true
}

// Scheduler turns due job definitions into tracked sync runs.
type Scheduler struct {
	cfg      *config.Config
	repo     repository.SyncRepository
	factory  *job.Factory
	recorder metrics.MetricRecorder
	notifier notifier.Notifier
	clock    clockwork.Clock
}

// SchedulerParams collects the Scheduler's dependencies.
type SchedulerParams struct {
	fx.In

	Cfg      *config.Config
	Repo     repository.SyncRepository
	Factory  *job.Factory
	Recorder metrics.MetricRecorder
	Notifier notifier.Notifier
	Clock    clockwork.Clock
}

// NewScheduler creates a Scheduler.
func NewScheduler(p SchedulerParams) *Scheduler {
	return &Scheduler{
		cfg:      p.Cfg,
		repo:     p.Repo,
		factory:  p.Factory,
		recorder: p.Recorder,
		notifier: p.Notifier,
		clock:    p.Clock,
	}
}

func (s *Scheduler) runTimeout() time.Duration {
	if s.cfg.Streamsync.Sync.RunTimeoutMinutes > 0 {
		return time.Duration(s.cfg.Streamsync.Sync.RunTimeoutMinutes) * time.Minute
	}
	return defaultRunTimeout
}

func (s *Scheduler) pollInterval() time.Duration {
	if s.cfg.Streamsync.Sync.PollIntervalSeconds > 0 {
		return time.Duration(s.cfg.Streamsync.Sync.PollIntervalSeconds) * time.Second
	}
	return defaultPollInterval
}

// SeedJobDefinitions inserts the configured job definitions that do not exist
// yet. Rows already present keep their schedule and tuning; operators own
// them once seeded.
func (s *Scheduler) SeedJobDefinitions(ctx context.Context) error {
	now := s.clock.Now().UTC()
	for _, jobCfg := range s.cfg.Streamsync.Sync.Jobs {
		jobType := model.JobType(jobCfg.Type)
		if !jobType.IsValid() {
			logger.Warnf("Scheduler: skipping job '%s' with unknown type '%s'.", jobCfg.Name, jobCfg.Type)
			continue
		}
		definition := &model.JobDefinition{
			JobName:         jobCfg.Name,
			JobType:         jobType,
			IntervalMinutes: jobCfg.IntervalMinutes,
			RetentionDays:   jobCfg.RetentionDays,
			Enabled:         jobCfg.Enabled,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := s.repo.SeedJobDefinition(ctx, definition); err != nil {
			return exception.NewSyncError(moduleName,
				fmt.Sprintf("failed to seed job definition '%s'", jobCfg.Name), err, false, true)
		}
	}
	return nil
}

// RunOnce performs one scheduling pass. With a job name it forces that single
// job regardless of its schedule; otherwise every due definition runs. Job
// outcomes live on the returned executions, the error covers scheduling
// failures only.
func (s *Scheduler) RunOnce(ctx context.Context, jobName string, options job.Options) (*Result, error) {
	now := s.clock.Now().UTC()
	result := &Result{}

	definitions, err := s.definitionsToRun(ctx, jobName, now)
	if err != nil {
		return result, err
	}
	if len(definitions) == 0 {
		logger.Infof("Scheduler: no jobs due at %s.", now.Format(time.RFC3339))
		return result, nil
	}

	var errs *multierror.Error
	for _, definition := range definitions {
		execution, err := s.runJob(ctx, definition, options)
		if errors.Is(err, ErrJobAlreadyRunning) {
			result.Skipped = append(result.Skipped, definition.JobName)
			if jobName != "" {
				errs = multierror.Append(errs, fmt.Errorf("job '%s': %w", definition.JobName, err))
			}
			continue
		}
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		result.Executions = append(result.Executions, execution)
	}
	return result, errs.ErrorOrNil()
}

// definitionsToRun resolves the pass's work list: the named definition when
// forced, or every due one.
func (s *Scheduler) definitionsToRun(ctx context.Context, jobName string, now time.Time) ([]*model.JobDefinition, error) {
	if jobName != "" {
		definition, err := s.repo.FindJobDefinitionByName(ctx, jobName)
		if err != nil {
			return nil, err
		}
		if !definition.Enabled {
			logger.Warnf("Scheduler: job '%s' is disabled, running it anyway because it was forced.", jobName)
		}
		return []*model.JobDefinition{definition}, nil
	}

	all, err := s.repo.FindAllJobDefinitions(ctx)
	if err != nil {
		return nil, err
	}
	due := make([]*model.JobDefinition, 0, len(all))
	for _, definition := range all {
		if definition.IsDue(now) {
			due = append(due, definition)
		}
	}
	return due, nil
}

// runJob runs one definition end to end. The returned error covers
// bookkeeping failures; the sync outcome itself lives on the execution.
func (s *Scheduler) runJob(ctx context.Context, definition *model.JobDefinition, options job.Options) (*model.JobExecution, error) {
	now := s.clock.Now().UTC()

	if err := s.rejectOverlap(ctx, definition.JobName, now, options); err != nil {
		return nil, err
	}

	execution := model.NewJobExecution(definition.JobName, now)
	if !options.DryRun {
		if err := s.repo.SaveJobExecution(ctx, execution); err != nil {
			return nil, exception.NewSyncError(moduleName,
				fmt.Sprintf("failed to record execution start for job '%s'", definition.JobName), err, false, true)
		}
	}

	syncJob, err := s.factory.ForDefinition(definition, options)
	if err != nil {
		s.finalize(ctx, definition, execution, err, options)
		return nil, err
	}

	logger.Infof("Scheduler: starting job '%s' (execution %s).", definition.JobName, execution.ID)
	runCtx, cancel := context.WithTimeout(ctx, s.runTimeout())
	runErr := syncJob.Run(runCtx, execution)
	cancel()

	s.finalize(ctx, definition, execution, runErr, options)
	return execution, nil
}

// rejectOverlap enforces one open execution per job. An open record younger
// than the run timeout blocks the job; an older one is an abandoned run that
// is finalized as timed out before the new run proceeds.
func (s *Scheduler) rejectOverlap(ctx context.Context, jobName string, now time.Time, options job.Options) error {
	open, err := s.repo.FindOpenJobExecution(ctx, jobName)
	if errors.Is(err, repository.ErrJobExecutionNotFound) {
		return nil
	}
	if err != nil {
		return exception.NewSyncError(moduleName,
			fmt.Sprintf("failed to check for open executions of job '%s'", jobName), err, false, true)
	}

	age := now.Sub(open.StartTime)
	if age < s.runTimeout() {
		logger.Infof("Scheduler: job '%s' execution %s is still running (started %s ago), skipping.",
			jobName, open.ID, age.Round(time.Second))
		return ErrJobAlreadyRunning
	}

	logger.Warnf("Scheduler: job '%s' left execution %s open since %s, finalizing it as timed out.",
		jobName, open.ID, open.StartTime.Format(time.RFC3339))
	if options.DryRun {
		return nil
	}
	open.MarkAsTimedOut(exception.NewTimeoutError(moduleName,
		fmt.Sprintf("execution abandoned after the %s run timeout", s.runTimeout()), nil))
	if err := s.repo.UpdateJobExecution(ctx, open); err != nil {
		return exception.NewSyncError(moduleName,
			fmt.Sprintf("failed to finalize abandoned execution %s of job '%s'", open.ID, jobName), err, false, true)
	}
	return nil
}

// finalize closes the execution record and advances the schedule. Both happen
// regardless of the run's outcome so a failing job keeps its cadence instead
// of being retried in a tight loop.
func (s *Scheduler) finalize(ctx context.Context, definition *model.JobDefinition, execution *model.JobExecution, runErr error, options job.Options) {
	job.Finalize(execution, runErr)
	s.recorder.RecordRunEnd(ctx, execution)

	logger.Infof("Scheduler: job '%s' execution %s finished with status '%s' (%d/%d sites, %d observations upserted, %d purged).",
		definition.JobName, execution.ID, execution.Status,
		execution.SucceededCount, execution.SitesAttempted,
		execution.ObservationsUpserted, execution.ObservationsPurged)

	if options.DryRun {
		logger.Infof("[dry-run] Scheduler: job '%s' execution record and schedule were not persisted.", definition.JobName)
		return
	}

	if err := s.repo.UpdateJobExecution(ctx, execution); err != nil {
		// The record stays open; the next pass finalizes it as abandoned.
		logger.Errorf("Scheduler: failed to finalize execution %s of job '%s': %v", execution.ID, definition.JobName, err)
	}

	definition.Reschedule(s.clock.Now().UTC())
	if err := s.repo.UpdateJobDefinition(ctx, definition); err != nil {
		logger.Errorf("Scheduler: failed to reschedule job '%s': %v", definition.JobName, err)
	}

	s.notifier.NotifyRunCompletion(ctx, execution)
}

// RunLoop runs scheduling passes until the context is canceled. The first
// pass starts immediately; later passes follow the poll interval.
func (s *Scheduler) RunLoop(ctx context.Context, options job.Options) error {
	interval := s.pollInterval()
	logger.Infof("Scheduler: polling every %s with a %s run timeout.", interval, s.runTimeout())

	s.pass(ctx, options)

	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Infof("Scheduler: shutting down.")
			return nil
		case <-ticker.Chan():
			s.pass(ctx, options)
		}
	}
}

func (s *Scheduler) pass(ctx context.Context, options job.Options) {
	if _, err := s.RunOnce(ctx, "", options); err != nil {
		logger.Errorf("Scheduler: pass failed: %v", err)
	}
}
