package model

import "time"

// Observation is a single measured value reported by a site at a point in time.
// Rows are keyed by (SiteID, Timestamp), so re-ingesting the same reading is an
// update, not a duplicate.
type Observation struct {
	SiteID     string
	Timestamp  time.Time
	Value      float64
	Quality    string
	IngestedAt time.Time
}

// LatestTimestamp returns the maximum timestamp among the given observations.
// The second return value is false when the slice is empty.
func LatestTimestamp(observations []Observation) (time.Time, bool) {
	if len(observations) == 0 {
		return time.Time{}, false
	}
	latest := observations[0].Timestamp
	for _, o := range observations[1:] {
		if o.Timestamp.After(latest) {
			latest = o.Timestamp
		}
	}
	return latest, true
}
