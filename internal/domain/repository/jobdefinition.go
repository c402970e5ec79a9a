package repository

import (
	"context"
	"errors"

	model "github.com/cascadiahydro/streamsync/internal/domain/model"
	"github.com/cascadiahydro/streamsync/internal/support/exception"
)

// ErrJobDefinitionNotFound is the error returned when a JobDefinition is not found.
var ErrJobDefinitionNotFound = errors.New("job definition not found")

func init() {
	// Register the error type in the registry upon startup
	exception.RegisterErrorType("ErrJobDefinitionNotFound", ErrJobDefinitionNotFound)
}

type JobDefinition interface {
	// SeedJobDefinition inserts a definition if no row with its job name
	// exists yet. Existing rows are left untouched so operator edits survive
	// restarts.
	SeedJobDefinition(ctx context.Context, definition *model.JobDefinition) error

	// UpdateJobDefinition updates an existing definition using optimistic
	// locking on its version column.
	UpdateJobDefinition(ctx context.Context, definition *model.JobDefinition) error

	// FindJobDefinitionByName finds a JobDefinition by its job name
	FindJobDefinitionByName(ctx context.Context, jobName string) (*model.JobDefinition, error)

	// FindAllJobDefinitions returns every definition ordered by job name
	FindAllJobDefinitions(ctx context.Context) ([]*model.JobDefinition, error)
}
