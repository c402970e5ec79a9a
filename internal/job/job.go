// Package job implements the incremental sync engine. A Job runs one pass
// for a job definition: it purges expired realtime observations, walks the
// active sites, fetches each site's window [watermark, now), and commits the
// new observations together with the advanced watermark in a single
// transaction per site. Site failures are isolated; only a run-level timeout
// aborts the pass.
package job

import (
	"context"

	"github.com/cascadiahydro/streamsync/internal/domain/model"
	"github.com/cascadiahydro/streamsync/internal/support/exception"
)

// Job runs a single sync pass and records its progress onto the execution.
// Run mutates the execution's counters and failure list but never persists
// it; the scheduler owns the execution record's lifecycle.
type Job interface {
	Name() string
	Run(ctx context.Context, execution *model.JobExecution) error
}

// Options adjust a single run without touching the job definition.
type Options struct {
	// DryRun fetches and reports but performs no store mutation: no purge,
	// no upsert, no watermark advance.
	DryRun bool
	// MaxSites caps the number of active sites synced this run. Zero means
	// all of them.
	MaxSites int
}

// Finalize transitions a finished execution to its terminal status. A run
// error takes precedence: a timeout finalizes as timed out, anything else as
// failed. Otherwise the per-site counters decide between success, partial
// and failed.
func Finalize(execution *model.JobExecution, runErr error) {
	switch {
	case runErr != nil && exception.IsRunTimeout(runErr):
		execution.MarkAsTimedOut(runErr)
	case runErr != nil:
		execution.MarkAsFailed(runErr)
	case execution.FailedCount == 0:
		execution.MarkAsSuccess()
	case execution.SucceededCount > 0:
		execution.MarkAsPartial()
	default:
		execution.MarkAsFailed(nil)
	}
}

// failureReason maps a site failure to the label used on failure metrics.
func failureReason(err error) string {
	switch {
	case exception.IsTransientFetch(err):
		return "transient"
	case exception.IsMalformedResponse(err):
		return "malformed"
	case exception.IsNotFound(err):
		return "not_found"
	case exception.IsStoreCommit(err):
		return "store_commit"
	default:
		return "unknown"
	}
}
