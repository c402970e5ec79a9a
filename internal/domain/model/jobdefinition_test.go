package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobDefinitionIsDue(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	next := t0.Add(time.Hour)

	jd := &JobDefinition{JobName: "realtime-sync", JobType: JobTypeRealtime, IntervalMinutes: 60, Enabled: true}

	// Never scheduled: due immediately.
	assert.True(t, jd.IsDue(t0))

	jd.NextRun = &next
	assert.False(t, jd.IsDue(next.Add(-time.Millisecond)))
	assert.True(t, jd.IsDue(next))
	assert.True(t, jd.IsDue(next.Add(time.Minute)))
}

func TestJobDefinitionDisabledNeverDue(t *testing.T) {
	jd := &JobDefinition{JobName: "daily-sync", JobType: JobTypeDaily, IntervalMinutes: 1440, Enabled: false}

	assert.False(t, jd.IsDue(time.Now()))
}

func TestRescheduleAdvancesNextRunByInterval(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	jd := &JobDefinition{JobName: "realtime-sync", JobType: JobTypeRealtime, IntervalMinutes: 60, Enabled: true}

	jd.Reschedule(now)

	require.NotNil(t, jd.LastRun)
	require.NotNil(t, jd.NextRun)
	assert.Equal(t, now, *jd.LastRun)
	assert.Equal(t, now.Add(time.Hour), *jd.NextRun)
	assert.False(t, jd.IsDue(now.Add(59*time.Minute)))
	assert.True(t, jd.IsDue(now.Add(time.Hour)))
}

func TestJobTypeIsValid(t *testing.T) {
	assert.True(t, JobTypeRealtime.IsValid())
	assert.True(t, JobTypeDaily.IsValid())
	assert.False(t, JobType("hourly").IsValid())
}

func TestRetentionDuration(t *testing.T) {
	jd := &JobDefinition{RetentionDays: 30}
	assert.Equal(t, 30*24*time.Hour, jd.Retention())

	unbounded := &JobDefinition{}
	assert.Equal(t, time.Duration(0), unbounded.Retention())
}
