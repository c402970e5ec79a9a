package testutil

import (
	"time"

	model "github.com/cascadiahydro/streamsync/internal/domain/model"
)

// NewTestSite creates an active Site for testing.
func NewTestSite(siteID string) *model.Site {
	now := time.Now().UTC()
	return &model.Site{
		SiteID:    siteID,
		Name:      "WILLAMETTE RIVER AT PORTLAND, OR",
		StateCode: "OR",
		HUCCode:   "17090012",
		Latitude:  45.5175,
		Longitude: -122.6691,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewTestObservation creates a single approved Observation for testing.
func NewTestObservation(siteID string, timestamp time.Time, value float64) model.Observation {
	return model.Observation{
		SiteID:     siteID,
		Timestamp:  timestamp.UTC(),
		Value:      value,
		Quality:    "A",
		IngestedAt: time.Now().UTC(),
	}
}

// NewTestObservations creates count observations spaced step apart, starting
// at start. Values increase monotonically so tests can tell rows apart.
func NewTestObservations(siteID string, start time.Time, count int, step time.Duration) []model.Observation {
	observations := make([]model.Observation, 0, count)
	for i := 0; i < count; i++ {
		observations = append(observations, NewTestObservation(siteID, start.Add(time.Duration(i)*step), 100.0+float64(i)))
	}
	return observations
}

// NewTestJobDefinition creates an enabled JobDefinition for testing.
// Realtime definitions get a seven day retention window; daily definitions
// keep observations indefinitely.
func NewTestJobDefinition(jobName string, jobType model.JobType, intervalMinutes int) *model.JobDefinition {
	now := time.Now().UTC()
	retentionDays := 0
	if jobType == model.JobTypeRealtime {
		retentionDays = 7
	}
	return &model.JobDefinition{
		JobName:         jobName,
		JobType:         jobType,
		IntervalMinutes: intervalMinutes,
		RetentionDays:   retentionDays,
		Enabled:         true,
		Version:         0,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// NewTestJobExecution creates a running JobExecution for testing.
func NewTestJobExecution(jobName string, startTime time.Time) *model.JobExecution {
	return model.NewJobExecution(jobName, startTime)
}

// NewTimePtr returns a pointer to time.Time.
func NewTimePtr(t time.Time) *time.Time {
	return &t
}
