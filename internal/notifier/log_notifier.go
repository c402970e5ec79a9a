package notifier

import (
	"context"
	"fmt"
	"time"

	model "github.com/cascadiahydro/streamsync/internal/domain/model"
	"github.com/cascadiahydro/streamsync/internal/support/logger"
)

// LogNotifier is a Notifier that only logs run outcomes. It is the fallback
// when no webhook is configured.
type LogNotifier struct{}

// NewLogNotifier creates a new LogNotifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

// NotifyRunCompletion logs the run outcome.
func (n *LogNotifier) NotifyRunCompletion(ctx context.Context, execution *model.JobExecution) {
	duration := time.Duration(0)
	if execution.EndTime != nil {
		duration = execution.EndTime.Sub(execution.StartTime)
	}

	message := fmt.Sprintf(
		"Run Notification: Job '%s' (ID: %s) finished with Status: %s. Duration: %s, Sites: %d/%d succeeded, Observations: %d upserted, %d purged, Failures: %d",
		execution.JobName,
		execution.ID,
		execution.Status,
		duration,
		execution.SucceededCount,
		execution.SitesAttempted,
		execution.ObservationsUpserted,
		execution.ObservationsPurged,
		len(execution.Failures),
	)

	if execution.Status == model.ExecutionStatusSuccess {
		logger.Infof(message)
	} else {
		logger.Warnf(message)
	}
}

var _ Notifier = (*LogNotifier)(nil)
