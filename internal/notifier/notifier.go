// Package notifier reports finalized sync runs to external systems.
package notifier

import (
	"context"

	model "github.com/cascadiahydro/streamsync/internal/domain/model"
)

// Notifier is an abstract interface for notifying external systems about sync
// run results.
type Notifier interface {
	// NotifyRunCompletion notifies about run completion (success, partial,
	// failed or timeout). Notification failures are logged, never returned;
	// a run's outcome must not depend on the notification channel.
	NotifyRunCompletion(ctx context.Context, execution *model.JobExecution)
}
