package repository

import (
	"context"
	"time"

	model "github.com/cascadiahydro/streamsync/internal/domain/model"
)

type Observation interface {
	// UpsertObservations writes a batch of observations keyed by
	// (site_id, timestamp). Re-ingesting an existing reading updates its
	// value and quality in place, so the operation is idempotent.
	UpsertObservations(ctx context.Context, observations []model.Observation) (int64, error)

	// PurgeObservationsBefore deletes every observation strictly older than
	// the cutoff and returns the number of rows removed.
	PurgeObservationsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// FindObservationsBySite returns a site's observations within the
	// half-open window [start, end), ordered by timestamp ascending.
	FindObservationsBySite(ctx context.Context, siteID string, start, end time.Time) ([]model.Observation, error)

	// FindObservationsInRange returns all observations within [start, end)
	// across sites, ordered by site_id then timestamp.
	FindObservationsInRange(ctx context.Context, start, end time.Time) ([]model.Observation, error)

	// CountObservations counts the stored observations for a site.
	CountObservations(ctx context.Context, siteID string) (int64, error)
}
