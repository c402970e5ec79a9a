package sql

import (
	"time"

	model "github.com/cascadiahydro/streamsync/internal/domain/model"
)

// SiteEntity is a schema model used for persistence.
type SiteEntity struct {
	SiteID    string
	Name      string
	StateCode string
	HUCCode   string
	Latitude  float64
	Longitude float64
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (SiteEntity) TableName() string {
	return "sites"
}

// ObservationEntity is a schema model used for persistence.
type ObservationEntity struct {
	SiteID     string
	Timestamp  time.Time
	Value      float64
	Quality    string
	IngestedAt time.Time
}

func (ObservationEntity) TableName() string {
	return "observations"
}

// WatermarkEntity is a schema model used for persistence.
type WatermarkEntity struct {
	SiteID        string
	JobType       model.JobType
	LastTimestamp time.Time
	UpdatedAt     time.Time
}

func (WatermarkEntity) TableName() string {
	return "watermarks"
}

// JobDefinitionEntity is a schema model used for persistence.
type JobDefinitionEntity struct {
	JobName         string
	JobType         model.JobType
	IntervalMinutes int
	RetentionDays   int
	Enabled         bool
	LastRun         *time.Time
	NextRun         *time.Time
	Version         int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (JobDefinitionEntity) TableName() string {
	return "job_definitions"
}

// JobExecutionEntity is a schema model used for persistence.
type JobExecutionEntity struct {
	ID                   string
	JobName              string
	StartTime            time.Time
	EndTime              *time.Time
	Status               model.ExecutionStatus
	SitesAttempted       int
	SucceededCount       int
	FailedCount          int
	ObservationsUpserted int64
	ObservationsPurged   int64
	ErrorText            string
	Failures             model.FailureList
	Version              int
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

func (JobExecutionEntity) TableName() string {
	return "execution_log"
}
