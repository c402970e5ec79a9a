package repository

import (
	"context"
	"errors"

	model "github.com/cascadiahydro/streamsync/internal/domain/model"
	"github.com/cascadiahydro/streamsync/internal/support/exception"
)

// ErrWatermarkNotFound is the error returned when no watermark exists for a
// (site, job type) pair. A missing watermark means the site has never been
// synced by that job type and a bounded backfill window applies.
var ErrWatermarkNotFound = errors.New("watermark not found")

func init() {
	// Register the error type in the registry upon startup
	exception.RegisterErrorType("ErrWatermarkNotFound", ErrWatermarkNotFound)
}

type Watermark interface {
	// FindWatermark retrieves the watermark for a (site, job type) pair
	FindWatermark(ctx context.Context, siteID string, jobType model.JobType) (*model.Watermark, error)

	// SaveWatermark inserts or advances a watermark. Callers are expected to
	// invoke this inside the same transaction that commits the observations
	// the watermark covers.
	SaveWatermark(ctx context.Context, watermark *model.Watermark) error
}
