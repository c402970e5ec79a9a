// Package metrics defines the abstractions for recording sync run metrics and
// traces, together with their Prometheus, OpenTelemetry and no-op backends.
package metrics

import (
	"context"
	"time"

	model "github.com/cascadiahydro/streamsync/internal/domain/model"
)

// MetricRecorder is an abstract interface for recording metrics related to
// sync execution.
//
// This interface provides a standardized way to record run, per-site, and
// observation-level events, which facilitates integration with different
// metrics backends (Prometheus, OpenTelemetry Metrics).
type MetricRecorder interface {
	// RecordRunStart records the start of a sync run.
	//
	// ctx: The context for the operation.
	// execution: Details of the started run.
	RecordRunStart(ctx context.Context, execution *model.JobExecution)

	// RecordRunEnd records the end of a sync run, including its duration and
	// terminal status.
	//
	// ctx: The context for the operation.
	// execution: Details of the finalized run.
	RecordRunEnd(ctx context.Context, execution *model.JobExecution)

	// RecordSiteSynced records one site committed successfully, with the
	// number of observations upserted for it.
	RecordSiteSynced(ctx context.Context, jobName, siteID string, observations int64)

	// RecordSiteFailed records one site skipped or aborted.
	//
	// reason: A string indicating the failure class (e.g., "transient",
	// "malformed", "store_commit").
	RecordSiteFailed(ctx context.Context, jobName, siteID string, reason string)

	// RecordFetchDuration records the wall-clock time of one source fetch.
	//
	// status: "success" or "error".
	RecordFetchDuration(ctx context.Context, jobName string, duration time.Duration, status string)

	// RecordObservationsPurged records rows removed by a retention purge.
	RecordObservationsPurged(ctx context.Context, jobName string, count int64)
}
