package repository

import (
	"context"
	"errors"

	model "github.com/cascadiahydro/streamsync/internal/domain/model"
	"github.com/cascadiahydro/streamsync/internal/support/exception"
)

// ErrSiteNotFound is the error returned when a Site is not found.
var ErrSiteNotFound = errors.New("site not found")

func init() {
	// Register the error type in the registry upon startup
	exception.RegisterErrorType("ErrSiteNotFound", ErrSiteNotFound)
}

type Site interface {
	// SaveSite inserts or updates a site registration keyed by site_id
	SaveSite(ctx context.Context, site *model.Site) error

	// FindSiteByID finds a Site by its identifier
	FindSiteByID(ctx context.Context, siteID string) (*model.Site, error)

	// FindActiveSites returns the active sites ordered by site_id.
	// A limit of zero returns all of them.
	FindActiveSites(ctx context.Context, limit int) ([]*model.Site, error)

	// FindAllSites returns every registered site ordered by site_id
	FindAllSites(ctx context.Context) ([]*model.Site, error)
}
