package model

import "time"

// JobType distinguishes the sync strategies a job definition can run.
type JobType string

const (
	JobTypeRealtime JobType = "realtime"
	JobTypeDaily    JobType = "daily"
)

// String returns the string representation of the JobType.
func (t JobType) String() string {
	return string(t)
}

// IsValid checks if the JobType is one of the known strategies.
func (t JobType) IsValid() bool {
	return t == JobTypeRealtime || t == JobTypeDaily
}

// JobDefinition is the persisted schedule and retention policy for one sync job.
type JobDefinition struct {
	JobName         string
	JobType         JobType
	IntervalMinutes int
	RetentionDays   int
	Enabled         bool
	LastRun         *time.Time
	NextRun         *time.Time
	Version         int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Interval returns the scheduling interval as a duration.
func (jd *JobDefinition) Interval() time.Duration {
	return time.Duration(jd.IntervalMinutes) * time.Minute
}

// Retention returns the observation retention window as a duration.
// Zero means the job keeps observations indefinitely.
func (jd *JobDefinition) Retention() time.Duration {
	return time.Duration(jd.RetentionDays) * 24 * time.Hour
}

// IsDue checks if the definition should run at the given instant. A definition
// is due when it is enabled and has either never been scheduled or has reached
// its next run time.
func (jd *JobDefinition) IsDue(now time.Time) bool {
	if !jd.Enabled {
		return false
	}
	if jd.NextRun == nil {
		return true
	}
	return !now.Before(*jd.NextRun)
}

// Reschedule records a completed run and computes the following one. It is
// applied after every run, partial and failed runs included.
func (jd *JobDefinition) Reschedule(now time.Time) {
	next := now.Add(jd.Interval())
	jd.LastRun = &now
	jd.NextRun = &next
	jd.UpdatedAt = now
}
