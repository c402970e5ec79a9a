package repository

import (
	"context"
	"errors"

	model "github.com/cascadiahydro/streamsync/internal/domain/model"
	"github.com/cascadiahydro/streamsync/internal/support/exception"
)

// ErrJobExecutionNotFound is the error returned when a JobExecution is not found.
var ErrJobExecutionNotFound = errors.New("job execution not found")

func init() {
	// Register the error type in the registry upon startup
	exception.RegisterErrorType("ErrJobExecutionNotFound", ErrJobExecutionNotFound)
}

type JobExecution interface {
	// SaveJobExecution appends a new execution log record
	SaveJobExecution(ctx context.Context, execution *model.JobExecution) error

	// UpdateJobExecution finalizes an execution log record in place using
	// optimistic locking on its version column.
	UpdateJobExecution(ctx context.Context, execution *model.JobExecution) error

	// FindJobExecutionByID finds a JobExecution by its ID
	FindJobExecutionByID(ctx context.Context, executionID string) (*model.JobExecution, error)

	// FindOpenJobExecution returns the most recent unfinished record
	// (end_time IS NULL) for a job name, or ErrJobExecutionNotFound
	FindOpenJobExecution(ctx context.Context, jobName string) (*model.JobExecution, error)

	// FindRecentJobExecutions returns the latest records for a job name,
	// newest first
	FindRecentJobExecutions(ctx context.Context, jobName string, limit int) ([]*model.JobExecution, error)
}
