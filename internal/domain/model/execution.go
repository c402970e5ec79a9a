package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cascadiahydro/streamsync/internal/support/exception"
	logger "github.com/cascadiahydro/streamsync/internal/support/logger"
)

// ExecutionStatus represents the state of a sync job run.
type ExecutionStatus string

const (
	ExecutionStatusRunning ExecutionStatus = "running"
	ExecutionStatusSuccess ExecutionStatus = "success"
	ExecutionStatusPartial ExecutionStatus = "partial"
	ExecutionStatusFailed  ExecutionStatus = "failed"
	ExecutionStatusTimeout ExecutionStatus = "timeout"
)

// String returns the string representation of the ExecutionStatus.
func (s ExecutionStatus) String() string {
	return string(s)
}

// IsFinished checks if the ExecutionStatus represents a finished state.
func (s ExecutionStatus) IsFinished() bool {
	switch s {
	case ExecutionStatusSuccess, ExecutionStatusPartial, ExecutionStatusFailed, ExecutionStatusTimeout:
		return true
	default:
		return false
	}
}

// ExitCode maps the ExecutionStatus to the process exit code. Only a fully
// successful run exits zero.
func (s ExecutionStatus) ExitCode() int {
	if s == ExecutionStatusSuccess {
		return 0
	}
	return 1
}

// FailureList holds a list of error messages.
type FailureList []string

// Value implements the `driver.Valuer` interface, converting FailureList to a JSON string.
func (fl FailureList) Value() (driver.Value, error) {
	if fl == nil {
		return "[]", nil
	}
	data, err := json.Marshal(fl)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements the `sql.Scanner` interface, converting a JSON string to FailureList.
func (fl *FailureList) Scan(value interface{}) error {
	if value == nil {
		*fl = make(FailureList, 0)
		return nil
	}
	var b []byte
	switch v := value.(type) {
	case []byte: // Handle byte slice from database
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("unsupported Scan type for FailureList: %T", value)
	}

	if len(b) == 0 {
		*fl = make(FailureList, 0)
		return nil // Return empty list if the byte slice is empty
	}

	// JSON decode
	if err := json.Unmarshal(b, fl); err != nil {
		return fmt.Errorf("failed to unmarshal FailureList JSON: %w", err)
	}
	return nil
}

// JobExecution is a structure representing a single run of a sync job. One
// row is appended to the execution log when the run starts and finalized in
// place when it ends.
type JobExecution struct {
	ID                   string
	JobName              string
	StartTime            time.Time
	EndTime              *time.Time
	Status               ExecutionStatus
	SitesAttempted       int
	SucceededCount       int
	FailedCount          int
	ObservationsUpserted int64
	ObservationsPurged   int64
	ErrorText            string
	Failures             FailureList
	Version              int
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// NewID generates a new UUID string.
func NewID() string {
	return uuid.New().String()
}

// NewJobExecution creates a new instance of JobExecution in the running state.
func NewJobExecution(jobName string, startTime time.Time) *JobExecution {
	return &JobExecution{
		ID:        NewID(),
		JobName:   jobName,
		StartTime: startTime,
		Status:    ExecutionStatusRunning,
		Failures:  make(FailureList, 0),
		Version:   0,
		CreatedAt: startTime,
		UpdatedAt: startTime,
	}
}

// IsOpen checks if the run has not been finalized yet.
func (je *JobExecution) IsOpen() bool {
	return je.EndTime == nil
}

// isValidExecutionTransition checks if the state transition for JobExecution is valid.
func isValidExecutionTransition(current, next ExecutionStatus) bool {
	switch current {
	case ExecutionStatusRunning:
		// RUNNING can transition to any terminal state.
		return next == ExecutionStatusSuccess || next == ExecutionStatusPartial || next == ExecutionStatusFailed || next == ExecutionStatusTimeout
	default:
		return false // Cannot transition out of terminal states
	}
}

// TransitionTo safely transitions the state of JobExecution. Note: Fields other than Status must be set separately by the caller.
func (je *JobExecution) TransitionTo(newStatus ExecutionStatus) error {
	if !isValidExecutionTransition(je.Status, newStatus) {
		return fmt.Errorf("JobExecution (ID: %s): Invalid state transition: %s -> %s", je.ID, je.Status, newStatus)
	}
	je.Status = newStatus
	return nil
}

// MarkAsSuccess updates the JobExecution status to success.
func (je *JobExecution) MarkAsSuccess() {
	if err := je.TransitionTo(ExecutionStatusSuccess); err != nil {
		logger.Warnf("Could not update JobExecution (ID: %s) status to success: %v", je.ID, err)
		je.Status = ExecutionStatusSuccess
	}
	now := time.Now()
	je.EndTime = &now
	je.UpdatedAt = now
}

// MarkAsPartial updates the JobExecution status to partial and records the
// accumulated failure summary.
func (je *JobExecution) MarkAsPartial() {
	if err := je.TransitionTo(ExecutionStatusPartial); err != nil {
		logger.Warnf("Could not update JobExecution (ID: %s) status to partial: %v", je.ID, err)
		je.Status = ExecutionStatusPartial
	}
	now := time.Now()
	je.EndTime = &now
	je.UpdatedAt = now
	je.ErrorText = strings.Join(je.Failures, "; ")
}

// MarkAsFailed updates the JobExecution status to failed and adds error information.
func (je *JobExecution) MarkAsFailed(err error) {
	if terr := je.TransitionTo(ExecutionStatusFailed); terr != nil {
		logger.Warnf("Could not update JobExecution (ID: %s) status to failed: %v", je.ID, terr)
		je.Status = ExecutionStatusFailed
	}
	now := time.Now()
	je.EndTime = &now
	je.UpdatedAt = now
	if err != nil {
		je.AddFailureException(err)
	}
	je.ErrorText = strings.Join(je.Failures, "; ")
}

// MarkAsTimedOut updates the JobExecution status to timeout and adds error information.
func (je *JobExecution) MarkAsTimedOut(err error) {
	if terr := je.TransitionTo(ExecutionStatusTimeout); terr != nil {
		logger.Warnf("Could not update JobExecution (ID: %s) status to timeout: %v", je.ID, terr)
		je.Status = ExecutionStatusTimeout
	}
	now := time.Now()
	je.EndTime = &now
	je.UpdatedAt = now
	if err != nil {
		je.AddFailureException(err)
	}
	je.ErrorText = strings.Join(je.Failures, "; ")
}

// AddFailureException adds error information to JobExecution. It avoids adding duplicate errors.
func (je *JobExecution) AddFailureException(err error) {
	if err == nil {
		return
	}
	errMsg := exception.ExtractErrorMessage(err)

	for _, existingErr := range je.Failures {
		if existingErr == errMsg { // Check for duplicate error messages
			logger.Debugf("Skipped adding duplicate error '%s' to JobExecution (ID: %s).", errMsg, je.ID)
			return
		}
	}

	je.Failures = append(je.Failures, errMsg)
	je.UpdatedAt = time.Now()
}
