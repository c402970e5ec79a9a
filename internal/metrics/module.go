package metrics

import (
	"context"
	"fmt"

	"go.uber.org/fx"

	"github.com/cascadiahydro/streamsync/internal/config"
	"github.com/cascadiahydro/streamsync/internal/support/logger"
)

// NewMetricRecorder selects the recorder backend from configuration.
// OTLP-backed recorders are shut down through the fx lifecycle so pending
// exports are flushed on exit.
func NewMetricRecorder(lc fx.Lifecycle, cfg *config.Config) (MetricRecorder, error) {
	metricsCfg := cfg.Streamsync.Metrics
	if !metricsCfg.Enabled {
		return NewNoOpMetricRecorder(), nil
	}
	switch metricsCfg.Backend {
	case "prometheus", "":
		logger.Infof("Metrics enabled with prometheus backend.")
		return NewPrometheusMetricRecorder(), nil
	case "otel":
		recorder, err := NewOTelMetricRecorder(context.Background(), metricsCfg.OTel)
		if err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{OnStop: recorder.Shutdown})
		logger.Infof("Metrics enabled with OTLP backend (endpoint: %s).", metricsCfg.OTel.Endpoint)
		return recorder, nil
	case "noop":
		return NewNoOpMetricRecorder(), nil
	default:
		return nil, fmt.Errorf("unknown metrics backend: %s", metricsCfg.Backend)
	}
}

// NewTracer returns the OTLP tracer when tracing is enabled, otherwise a
// no-op tracer.
func NewTracer(lc fx.Lifecycle, cfg *config.Config) (Tracer, error) {
	tracingCfg := cfg.Streamsync.Tracing
	if !tracingCfg.Enabled {
		return NewNoOpTracer(), nil
	}
	tracer, err := NewOTelTracer(context.Background(), tracingCfg.OTel)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{OnStop: tracer.Shutdown})
	logger.Infof("Tracing enabled (endpoint: %s).", tracingCfg.OTel.Endpoint)
	return tracer, nil
}

// Module provides the metric recorder and tracer selected by configuration.
var Module = fx.Options(
	fx.Provide(
		NewMetricRecorder,
		NewTracer,
	),
)
