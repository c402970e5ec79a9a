package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/cascadiahydro/streamsync/internal/config"
	model "github.com/cascadiahydro/streamsync/internal/domain/model"
	"github.com/cascadiahydro/streamsync/internal/support/exception"
)

func newTraceExporter(ctx context.Context, cfg config.OTelConfig) (sdktrace.SpanExporter, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("tracing requires an OTLP endpoint")
	}
	switch cfg.Protocol {
	case "http":
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return otlptracehttp.New(ctx, opts...)
	case "grpc", "":
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		return otlptracegrpc.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol: %s", cfg.Protocol)
	}
}

// OTelTracer is a Tracer exporting spans over OTLP with batching.
type OTelTracer struct {
	provider *sdktrace.TracerProvider
	tracer   oteltrace.Tracer
}

// NewOTelTracer creates a tracer exporting to the configured OTLP collector.
// The caller owns the returned tracer's lifecycle and must call Shutdown to
// flush pending spans.
func NewOTelTracer(ctx context.Context, cfg config.OTelConfig) (*OTelTracer, error) {
	exporter, err := newTraceExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(newOTelResource(cfg)),
	)
	return &OTelTracer{
		provider: provider,
		tracer:   provider.Tracer(instrumentationName),
	}, nil
}

func (t *OTelTracer) StartRunSpan(ctx context.Context, execution *model.JobExecution) (context.Context, func()) {
	spanCtx, span := t.tracer.Start(ctx, "sync.run", oteltrace.WithAttributes(
		attribute.String("job.name", execution.JobName),
		attribute.String("execution.id", execution.ID),
	))
	return spanCtx, func() {
		if execution.Status.IsFinished() {
			span.SetAttributes(attribute.String("run.status", execution.Status.String()))
		}
		span.End()
	}
}

func (t *OTelTracer) StartSiteSpan(ctx context.Context, jobName, siteID string) (context.Context, func()) {
	spanCtx, span := t.tracer.Start(ctx, "sync.site", oteltrace.WithAttributes(
		attribute.String("job.name", jobName),
		attribute.String("site.id", siteID),
	))
	return spanCtx, func() { span.End() }
}

func (t *OTelTracer) RecordError(ctx context.Context, module string, err error) {
	if err == nil {
		return
	}
	span := oteltrace.SpanFromContext(ctx)
	span.RecordError(err, oteltrace.WithAttributes(attribute.String("module", module)))
	span.SetStatus(codes.Error, exception.ExtractErrorMessage(err))
}

func (t *OTelTracer) RecordEvent(ctx context.Context, name string, attributes map[string]interface{}) {
	span := oteltrace.SpanFromContext(ctx)
	span.AddEvent(name, oteltrace.WithAttributes(toAttributes(attributes)...))
}

// Shutdown flushes pending spans and releases the exporter connection.
func (t *OTelTracer) Shutdown(ctx context.Context) error {
	return t.provider.Shutdown(ctx)
}

func toAttributes(attributes map[string]interface{}) []attribute.KeyValue {
	kvs := make([]attribute.KeyValue, 0, len(attributes))
	for key, value := range attributes {
		switch v := value.(type) {
		case string:
			kvs = append(kvs, attribute.String(key, v))
		case bool:
			kvs = append(kvs, attribute.Bool(key, v))
		case int:
			kvs = append(kvs, attribute.Int(key, v))
		case int64:
			kvs = append(kvs, attribute.Int64(key, v))
		case float64:
			kvs = append(kvs, attribute.Float64(key, v))
		default:
			kvs = append(kvs, attribute.String(key, fmt.Sprintf("%v", v)))
		}
	}
	return kvs
}

var _ Tracer = (*OTelTracer)(nil)
