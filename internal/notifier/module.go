package notifier

import (
	"go.uber.org/fx"

	"github.com/cascadiahydro/streamsync/internal/config"
	"github.com/cascadiahydro/streamsync/internal/support/logger"
)

// NewNotifier selects the webhook notifier when one is configured, falling
// back to log-only notifications.
func NewNotifier(cfg *config.Config) Notifier {
	notifierCfg := cfg.Streamsync.Notifier
	if notifierCfg.Enabled && notifierCfg.WebhookURL != "" {
		logger.Infof("Run notifications will be posted to the configured webhook.")
		return NewWebhookNotifier(notifierCfg)
	}
	return NewLogNotifier()
}

// Module provides the run-outcome notifier.
var Module = fx.Options(
	fx.Provide(NewNotifier),
)
