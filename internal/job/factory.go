package job

import (
	"fmt"

	"github.com/jonboulle/clockwork"
	"go.uber.org/fx"

	"github.com/cascadiahydro/streamsync/internal/config"
	"github.com/cascadiahydro/streamsync/internal/connector"
	"github.com/cascadiahydro/streamsync/internal/domain/model"
	"github.com/cascadiahydro/streamsync/internal/domain/repository"
	"github.com/cascadiahydro/streamsync/internal/metrics"
	"github.com/cascadiahydro/streamsync/internal/tx"
)

// Factory builds a Job for a job definition. The scheduler uses it to turn
// due definitions into runnable sync passes.
type Factory struct {
	cfg       *config.Config
	source    connector.SourceConnector
	repo      repository.SyncRepository
	txManager tx.TransactionManager
	recorder  metrics.MetricRecorder
	tracer    metrics.Tracer
	clock     clockwork.Clock
}

// FactoryParams collects the Factory's dependencies.
type FactoryParams struct {
	fx.In

	Cfg       *config.Config
	Source    connector.SourceConnector
	Repo      repository.SyncRepository
	TxManager tx.TransactionManager
	Recorder  metrics.MetricRecorder
	Tracer    metrics.Tracer
	Clock     clockwork.Clock
}

// NewFactory creates a Factory.
func NewFactory(p FactoryParams) *Factory {
	return &Factory{
		cfg:       p.Cfg,
		source:    p.Source,
		repo:      p.Repo,
		txManager: p.TxManager,
		recorder:  p.Recorder,
		tracer:    p.Tracer,
		clock:     p.Clock,
	}
}

// ForDefinition builds the sync job for one definition and run options.
func (f *Factory) ForDefinition(definition *model.JobDefinition, options Options) (Job, error) {
	if definition == nil {
		return nil, fmt.Errorf("job factory: definition is nil")
	}
	if !definition.JobType.IsValid() {
		return nil, fmt.Errorf("job factory: definition '%s' has unknown job type '%s'", definition.JobName, definition.JobType)
	}

	return &Runner{
		definition: definition,
		options:    options,
		syncCfg:    f.cfg.Streamsync.Sync,
		source:     f.source,
		repo:       f.repo,
		txManager:  f.txManager,
		recorder:   f.recorder,
		tracer:     f.tracer,
		clock:      f.clock,
	}, nil
}

// Module provides the job Factory to the application graph.
var Module = fx.Options(
	fx.Provide(NewFactory),
)
