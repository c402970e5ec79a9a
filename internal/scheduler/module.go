package scheduler

import (
	"go.uber.org/fx"
)

// Module provides the Scheduler to the application graph.
var Module = fx.Options(
	fx.Provide(NewScheduler),
)
