package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	otelmetric "go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"

	"github.com/cascadiahydro/streamsync/internal/config"
	model "github.com/cascadiahydro/streamsync/internal/domain/model"
)

// instrumentationName identifies this module as the instrumentation scope of
// the meters and tracers it creates.
const instrumentationName = "github.com/cascadiahydro/streamsync/internal/metrics"

func newOTelResource(cfg config.OTelConfig) *resource.Resource {
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "streamsync"
	}
	return resource.NewSchemaless(attribute.String("service.name", serviceName))
}

func newMetricExporter(ctx context.Context, cfg config.OTelConfig) (sdkmetric.Exporter, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("otel metrics backend requires an endpoint")
	}
	switch cfg.Protocol {
	case "http":
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		return otlpmetrichttp.New(ctx, opts...)
	case "grpc", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		return otlpmetricgrpc.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol: %s", cfg.Protocol)
	}
}

// OTelMetricRecorder is a MetricRecorder that exports measurements over OTLP
// through a periodic reader.
type OTelMetricRecorder struct {
	provider *sdkmetric.MeterProvider

	runDuration        otelmetric.Float64Histogram
	runStatus          otelmetric.Int64Counter
	siteSyncs          otelmetric.Int64Counter
	observationsUpsert otelmetric.Int64Counter
	observationsPurged otelmetric.Int64Counter
	fetchDuration      otelmetric.Float64Histogram
}

// NewOTelMetricRecorder creates a recorder exporting to the configured OTLP
// collector. The caller owns the returned recorder's lifecycle and must call
// Shutdown to flush pending exports.
func NewOTelMetricRecorder(ctx context.Context, cfg config.OTelConfig) (*OTelMetricRecorder, error) {
	exporter, err := newMetricExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP metric exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(newOTelResource(cfg)),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
	)
	meter := provider.Meter(instrumentationName)

	r := &OTelMetricRecorder{provider: provider}
	if r.runDuration, err = meter.Float64Histogram(
		"streamsync.run.duration",
		otelmetric.WithDescription("Wall-clock duration of sync job runs."),
		otelmetric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if r.runStatus, err = meter.Int64Counter(
		"streamsync.runs",
		otelmetric.WithDescription("Completed sync job runs by terminal status."),
	); err != nil {
		return nil, err
	}
	if r.siteSyncs, err = meter.Int64Counter(
		"streamsync.site.syncs",
		otelmetric.WithDescription("Per-site sync outcomes within runs."),
	); err != nil {
		return nil, err
	}
	if r.observationsUpsert, err = meter.Int64Counter(
		"streamsync.observations.upserted",
		otelmetric.WithDescription("Observation rows written by sync runs."),
	); err != nil {
		return nil, err
	}
	if r.observationsPurged, err = meter.Int64Counter(
		"streamsync.observations.purged",
		otelmetric.WithDescription("Observation rows removed by retention purges."),
	); err != nil {
		return nil, err
	}
	if r.fetchDuration, err = meter.Float64Histogram(
		"streamsync.fetch.duration",
		otelmetric.WithDescription("Duration of source fetch requests."),
		otelmetric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *OTelMetricRecorder) RecordRunStart(ctx context.Context, execution *model.JobExecution) {
}

func (r *OTelMetricRecorder) RecordRunEnd(ctx context.Context, execution *model.JobExecution) {
	duration := time.Since(execution.StartTime)
	if execution.EndTime != nil {
		duration = execution.EndTime.Sub(execution.StartTime)
	}
	attrs := otelmetric.WithAttributes(
		attribute.String("job.name", execution.JobName),
		attribute.String("status", execution.Status.String()),
	)
	r.runDuration.Record(ctx, duration.Seconds(), attrs)
	r.runStatus.Add(ctx, 1, attrs)
}

func (r *OTelMetricRecorder) RecordSiteSynced(ctx context.Context, jobName, siteID string, observations int64) {
	r.siteSyncs.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("job.name", jobName),
		attribute.String("site.id", siteID),
		attribute.String("result", "success"),
	))
	r.observationsUpsert.Add(ctx, observations, otelmetric.WithAttributes(
		attribute.String("job.name", jobName),
	))
}

func (r *OTelMetricRecorder) RecordSiteFailed(ctx context.Context, jobName, siteID string, reason string) {
	r.siteSyncs.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("job.name", jobName),
		attribute.String("site.id", siteID),
		attribute.String("result", "failed"),
		attribute.String("reason", reason),
	))
}

func (r *OTelMetricRecorder) RecordFetchDuration(ctx context.Context, jobName string, duration time.Duration, status string) {
	r.fetchDuration.Record(ctx, duration.Seconds(), otelmetric.WithAttributes(
		attribute.String("job.name", jobName),
		attribute.String("status", status),
	))
}

func (r *OTelMetricRecorder) RecordObservationsPurged(ctx context.Context, jobName string, count int64) {
	r.observationsPurged.Add(ctx, count, otelmetric.WithAttributes(
		attribute.String("job.name", jobName),
	))
}

// Shutdown flushes pending exports and releases the exporter connection.
func (r *OTelMetricRecorder) Shutdown(ctx context.Context) error {
	return r.provider.Shutdown(ctx)
}

var _ MetricRecorder = (*OTelMetricRecorder)(nil)
