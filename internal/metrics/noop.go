package metrics

import (
	"context"
	"time"

	model "github.com/cascadiahydro/streamsync/internal/domain/model"
)

// NoOpMetricRecorder is a MetricRecorder that discards every measurement.
// It is used when metrics are disabled.
type NoOpMetricRecorder struct{}

// NewNoOpMetricRecorder creates a new NoOpMetricRecorder.
func NewNoOpMetricRecorder() *NoOpMetricRecorder {
	return &NoOpMetricRecorder{}
}

func (r *NoOpMetricRecorder) RecordRunStart(ctx context.Context, execution *model.JobExecution) {}

func (r *NoOpMetricRecorder) RecordRunEnd(ctx context.Context, execution *model.JobExecution) {}

func (r *NoOpMetricRecorder) RecordSiteSynced(ctx context.Context, jobName, siteID string, observations int64) {
}

func (r *NoOpMetricRecorder) RecordSiteFailed(ctx context.Context, jobName, siteID string, reason string) {
}

func (r *NoOpMetricRecorder) RecordFetchDuration(ctx context.Context, jobName string, duration time.Duration, status string) {
}

func (r *NoOpMetricRecorder) RecordObservationsPurged(ctx context.Context, jobName string, count int64) {
}

var _ MetricRecorder = (*NoOpMetricRecorder)(nil)

// NoOpTracer is a Tracer that records nothing. It is used when tracing is
// disabled.
type NoOpTracer struct{}

// NewNoOpTracer creates a new NoOpTracer.
func NewNoOpTracer() *NoOpTracer {
	return &NoOpTracer{}
}

func (t *NoOpTracer) StartRunSpan(ctx context.Context, execution *model.JobExecution) (context.Context, func()) {
	return ctx, func() {}
}

func (t *NoOpTracer) StartSiteSpan(ctx context.Context, jobName, siteID string) (context.Context, func()) {
	return ctx, func() {}
}

func (t *NoOpTracer) RecordError(ctx context.Context, module string, err error) {}

func (t *NoOpTracer) RecordEvent(ctx context.Context, name string, attributes map[string]interface{}) {
}

var _ Tracer = (*NoOpTracer)(nil)
