// Package connector defines the port through which sync jobs fetch
// observations from an upstream time-series service.
package connector

import (
	"context"
	"time"

	model "github.com/cascadiahydro/streamsync/internal/domain/model"
)

// SourceConnector fetches a site's observations within the half-open window
// [start, end). Implementations return records strictly inside the window and
// classify failures with the exception fetch taxonomy: transient failures may
// heal by the next scheduled run, malformed responses and unknown sites are
// skipped. An empty result set is not an error.
type SourceConnector interface {
	FetchObservations(ctx context.Context, siteID string, start, end time.Time) ([]model.Observation, error)
}
