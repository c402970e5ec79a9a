package metrics

import (
	"context"
	"testing"
	"time"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/fx/fxtest"

	"github.com/cascadiahydro/streamsync/internal/config"
	model "github.com/cascadiahydro/streamsync/internal/domain/model"
)

func TestPrometheusMetricRecorderRecordsRunOutcome(t *testing.T) {
	recorder := NewPrometheusMetricRecorder()
	ctx := context.Background()

	// 1. Record a run that started in the past and finished successfully.
	execution := model.NewJobExecution("realtime-sync", time.Now().Add(-90*time.Second))
	recorder.RecordRunStart(ctx, execution)
	execution.MarkAsSuccess()
	recorder.RecordRunEnd(ctx, execution)

	// 2. Verify the status counter and the duration histogram.
	assert.Equal(t, float64(1), promtestutil.ToFloat64(recorder.runStatus.WithLabelValues("realtime-sync", "success")))
	count, err := promtestutil.GatherAndCount(recorder.registry, "streamsync_run_duration_seconds")
	assert.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestPrometheusMetricRecorderRecordsSiteOutcomes(t *testing.T) {
	recorder := NewPrometheusMetricRecorder()
	ctx := context.Background()

	// 1. Record two successful sites, one failed site and a purge.
	recorder.RecordSiteSynced(ctx, "daily-sync", "14211720", 96)
	recorder.RecordSiteSynced(ctx, "daily-sync", "14144700", 4)
	recorder.RecordSiteFailed(ctx, "daily-sync", "14105700", "transient")
	recorder.RecordObservationsPurged(ctx, "daily-sync", 40)
	recorder.RecordFetchDuration(ctx, "daily-sync", 250*time.Millisecond, "success")

	// 2. Verify the counters accumulated per label set.
	assert.Equal(t, float64(2), promtestutil.ToFloat64(recorder.siteSyncs.WithLabelValues("daily-sync", "success")))
	assert.Equal(t, float64(1), promtestutil.ToFloat64(recorder.siteSyncs.WithLabelValues("daily-sync", "failed")))
	assert.Equal(t, float64(1), promtestutil.ToFloat64(recorder.siteFailures.WithLabelValues("daily-sync", "transient")))
	assert.Equal(t, float64(100), promtestutil.ToFloat64(recorder.observationsUpsert.WithLabelValues("daily-sync")))
	assert.Equal(t, float64(40), promtestutil.ToFloat64(recorder.observationsPurged.WithLabelValues("daily-sync")))

	count, err := promtestutil.GatherAndCount(recorder.registry, "streamsync_fetch_duration_seconds")
	assert.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestNewMetricRecorderSelectsBackend(t *testing.T) {
	lc := fxtest.NewLifecycle(t)

	// 1. Disabled metrics fall back to the no-op recorder.
	cfg := config.NewConfig()
	cfg.Streamsync.Metrics.Enabled = false
	recorder, err := NewMetricRecorder(lc, cfg)
	assert.NoError(t, err)
	assert.IsType(t, &NoOpMetricRecorder{}, recorder)

	// 2. The prometheus backend is the default when enabled.
	cfg = config.NewConfig()
	cfg.Streamsync.Metrics.Enabled = true
	cfg.Streamsync.Metrics.Backend = ""
	recorder, err = NewMetricRecorder(lc, cfg)
	assert.NoError(t, err)
	assert.IsType(t, &PrometheusMetricRecorder{}, recorder)

	// 3. An unknown backend is a configuration error.
	cfg = config.NewConfig()
	cfg.Streamsync.Metrics.Enabled = true
	cfg.Streamsync.Metrics.Backend = "statsd"
	_, err = NewMetricRecorder(lc, cfg)
	assert.Error(t, err)

	// 4. The otel backend refuses to start without an endpoint.
	cfg = config.NewConfig()
	cfg.Streamsync.Metrics.Enabled = true
	cfg.Streamsync.Metrics.Backend = "otel"
	cfg.Streamsync.Metrics.OTel.Endpoint = ""
	_, err = NewMetricRecorder(lc, cfg)
	assert.Error(t, err)
}

func TestNewTracerDisabledReturnsNoOp(t *testing.T) {
	lc := fxtest.NewLifecycle(t)

	cfg := config.NewConfig()
	cfg.Streamsync.Tracing.Enabled = false
	tracer, err := NewTracer(lc, cfg)
	assert.NoError(t, err)
	assert.IsType(t, &NoOpTracer{}, tracer)

	// A no-op span closure must be callable without side effects.
	ctx, end := tracer.StartRunSpan(context.Background(), model.NewJobExecution("daily-sync", time.Now()))
	assert.NotNil(t, ctx)
	end()
}
