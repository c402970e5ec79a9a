package metrics

import (
	"context"

	model "github.com/cascadiahydro/streamsync/internal/domain/model"
)

// Tracer is an abstract interface for recording distributed traces of sync
// execution.
//
// Spans are ended by calling the returned closure, which lets callers defer
// span completion without holding a backend-specific span type.
type Tracer interface {
	// StartRunSpan starts a span covering one whole sync run and returns the
	// derived context together with a function that ends the span.
	StartRunSpan(ctx context.Context, execution *model.JobExecution) (context.Context, func())

	// StartSiteSpan starts a span covering the sync of a single site within a
	// run span.
	StartSiteSpan(ctx context.Context, jobName, siteID string) (context.Context, func())

	// RecordError records an error against the span in ctx, if any.
	//
	// module: The name of the component reporting the error.
	RecordError(ctx context.Context, module string, err error)

	// RecordEvent records a point-in-time event with attributes against the
	// span in ctx, if any.
	RecordEvent(ctx context.Context, name string, attributes map[string]interface{})
}
