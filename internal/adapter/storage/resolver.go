package storage

import (
	"context"
	"fmt"

	"go.uber.org/fx"

	"github.com/cascadiahydro/streamsync/internal/adapter"
	"github.com/cascadiahydro/streamsync/internal/config"
)

// ConnectionResolver is the standard StorageConnectionResolver. It dispatches
// to the StorageProvider matching the configured type of a named connection.
type ConnectionResolver struct {
	providers map[string]StorageProvider
	cfg       *config.Config
}

// ConnectionResolverParams collects the resolver's dependencies.
type ConnectionResolverParams struct {
	fx.In

	Providers []StorageProvider `group:"storage_providers"`
	Cfg       *config.Config
}

// NewConnectionResolver creates a ConnectionResolver from all registered
// StorageProviders.
func NewConnectionResolver(p ConnectionResolverParams) *ConnectionResolver {
	providerMap := make(map[string]StorageProvider)
	for _, provider := range p.Providers {
		providerMap[provider.Type()] = provider
	}

	return &ConnectionResolver{
		providers: providerMap,
		cfg:       p.Cfg,
	}
}

// ResolveStorageConnection resolves the storage connection with the given name.
func (r *ConnectionResolver) ResolveStorageConnection(ctx context.Context, name string) (StorageConnection, error) {
	storageCfg, ok := r.cfg.Streamsync.Storage.Connections[name]
	if !ok {
		return nil, fmt.Errorf("storage connection '%s' not found under storage.connections", name)
	}

	provider, ok := r.providers[storageCfg.Type]
	if !ok {
		return nil, fmt.Errorf("no storage provider found for type '%s' (connection '%s')", storageCfg.Type, name)
	}

	conn, err := provider.GetConnection(name)
	if err != nil {
		return nil, fmt.Errorf("failed to get storage connection '%s' from provider '%s': %w", name, storageCfg.Type, err)
	}
	return conn, nil
}

// ResolveConnection implements adapter.ResourceConnectionResolver.
func (r *ConnectionResolver) ResolveConnection(ctx context.Context, name string) (adapter.ResourceConnection, error) {
	return r.ResolveStorageConnection(ctx, name)
}

// Module exports the backend-independent storage components for dependency
// injection. Concrete StorageProviders live in the backend subpackages.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		NewConnectionResolver,
		fx.As(new(StorageConnectionResolver)),
	)),
)
