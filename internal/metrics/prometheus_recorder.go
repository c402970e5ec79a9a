package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	model "github.com/cascadiahydro/streamsync/internal/domain/model"
)

// PrometheusMetricRecorder is a MetricRecorder backed by a dedicated
// Prometheus registry. The registry is exposed over HTTP by the scheduler
// daemon via Handler.
type PrometheusMetricRecorder struct {
	registry *prometheus.Registry

	runDuration         *prometheus.HistogramVec
	runStatus           *prometheus.CounterVec
	siteSyncs           *prometheus.CounterVec
	siteFailures        *prometheus.CounterVec
	observationsUpsert  *prometheus.CounterVec
	observationsPurged  *prometheus.CounterVec
	fetchDuration       *prometheus.HistogramVec
}

// NewPrometheusMetricRecorder creates a recorder with its own registry,
// pre-registered with Go runtime and process collectors.
func NewPrometheusMetricRecorder() *PrometheusMetricRecorder {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &PrometheusMetricRecorder{
		registry: registry,
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "streamsync_run_duration_seconds",
				Help:    "Wall-clock duration of sync job runs.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"job_name", "status"},
		),
		runStatus: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "streamsync_run_status_total",
				Help: "Completed sync job runs by terminal status.",
			},
			[]string{"job_name", "status"},
		),
		siteSyncs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "streamsync_site_sync_total",
				Help: "Per-site sync outcomes within runs.",
			},
			[]string{"job_name", "result"},
		),
		siteFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "streamsync_site_failures_total",
				Help: "Per-site sync failures by failure class.",
			},
			[]string{"job_name", "reason"},
		),
		observationsUpsert: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "streamsync_observations_upserted_total",
				Help: "Observation rows written by sync runs.",
			},
			[]string{"job_name"},
		),
		observationsPurged: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "streamsync_observations_purged_total",
				Help: "Observation rows removed by retention purges.",
			},
			[]string{"job_name"},
		),
		fetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "streamsync_fetch_duration_seconds",
				Help:    "Duration of source fetch requests.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"job_name", "status"},
		),
	}

	registry.MustRegister(
		r.runDuration,
		r.runStatus,
		r.siteSyncs,
		r.siteFailures,
		r.observationsUpsert,
		r.observationsPurged,
		r.fetchDuration,
	)
	return r
}

func (r *PrometheusMetricRecorder) RecordRunStart(ctx context.Context, execution *model.JobExecution) {
}

func (r *PrometheusMetricRecorder) RecordRunEnd(ctx context.Context, execution *model.JobExecution) {
	duration := time.Since(execution.StartTime)
	if execution.EndTime != nil {
		duration = execution.EndTime.Sub(execution.StartTime)
	}
	status := execution.Status.String()
	r.runDuration.WithLabelValues(execution.JobName, status).Observe(duration.Seconds())
	r.runStatus.WithLabelValues(execution.JobName, status).Inc()
}

func (r *PrometheusMetricRecorder) RecordSiteSynced(ctx context.Context, jobName, siteID string, observations int64) {
	r.siteSyncs.WithLabelValues(jobName, "success").Inc()
	r.observationsUpsert.WithLabelValues(jobName).Add(float64(observations))
}

func (r *PrometheusMetricRecorder) RecordSiteFailed(ctx context.Context, jobName, siteID string, reason string) {
	r.siteSyncs.WithLabelValues(jobName, "failed").Inc()
	r.siteFailures.WithLabelValues(jobName, reason).Inc()
}

func (r *PrometheusMetricRecorder) RecordFetchDuration(ctx context.Context, jobName string, duration time.Duration, status string) {
	r.fetchDuration.WithLabelValues(jobName, status).Observe(duration.Seconds())
}

func (r *PrometheusMetricRecorder) RecordObservationsPurged(ctx context.Context, jobName string, count int64) {
	r.observationsPurged.WithLabelValues(jobName).Add(float64(count))
}

// GetRegistry returns the underlying registry, mainly for tests.
func (r *PrometheusMetricRecorder) GetRegistry() *prometheus.Registry {
	return r.registry
}

// Handler returns an HTTP handler serving the recorder's registry in the
// Prometheus exposition format.
func (r *PrometheusMetricRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

var _ MetricRecorder = (*PrometheusMetricRecorder)(nil)
