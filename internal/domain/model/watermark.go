package model

import "time"

// Watermark records the newest observation timestamp successfully committed
// for a (site, job type) pair. It only moves forward, and only in the same
// transaction that commits the observations it covers.
type Watermark struct {
	SiteID        string
	JobType       JobType
	LastTimestamp time.Time
	UpdatedAt     time.Time
}
