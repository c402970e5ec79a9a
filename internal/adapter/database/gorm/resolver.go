package gorm

import (
	"context"
	"fmt"

	"go.uber.org/fx"

	"github.com/cascadiahydro/streamsync/internal/adapter"
	"github.com/cascadiahydro/streamsync/internal/adapter/database"
	"github.com/cascadiahydro/streamsync/internal/config"
	"github.com/cascadiahydro/streamsync/internal/support/logger"
)

// GormDBConnectionResolver is the GORM implementation of
// database.DBConnectionResolver. It dispatches to the DBProvider matching the
// configured type of a named connection and verifies the connection is
// healthy before handing it out.
type GormDBConnectionResolver struct {
	dbProviders map[string]database.DBProvider
	cfg         *config.Config
}

// GormDBConnectionResolverParams collects the resolver's dependencies.
type GormDBConnectionResolverParams struct {
	fx.In

	DBProviders []database.DBProvider `group:"db_providers"`
	Cfg         *config.Config
}

// NewGormDBConnectionResolver creates a new GormDBConnectionResolver from all
// registered DBProviders.
func NewGormDBConnectionResolver(p GormDBConnectionResolverParams) *GormDBConnectionResolver {
	providerMap := make(map[string]database.DBProvider)
	for _, provider := range p.DBProviders {
		providerMap[provider.Type()] = provider
	}

	return &GormDBConnectionResolver{
		dbProviders: providerMap,
		cfg:         p.Cfg,
	}
}

// ResolveDBConnection resolves the database connection with the given name,
// reconnecting when the cached connection no longer responds to a ping.
func (r *GormDBConnectionResolver) ResolveDBConnection(ctx context.Context, name string) (database.DBConnection, error) {
	dbCfg, ok := r.cfg.Streamsync.Database.Connections[name]
	if !ok {
		return nil, fmt.Errorf("DBConnectionResolver: database configuration '%s' not found under database.connections", name)
	}

	provider, ok := r.dbProviders[dbCfg.Type]
	if !ok {
		// Redshift connections are served by the postgres provider.
		if dbCfg.Type == "redshift" {
			provider, ok = r.dbProviders["postgres"]
		}
		if !ok {
			return nil, fmt.Errorf("DBConnectionResolver: DBProvider for type '%s' not found for connection '%s'", dbCfg.Type, name)
		}
	}

	conn, err := provider.GetConnection(name)
	if err != nil {
		return nil, fmt.Errorf("DBConnectionResolver: failed to get connection '%s': %w", name, err)
	}

	sqlDB, getDBErr := conn.GetSQLDB()
	if getDBErr != nil {
		logger.Debugf("DBConnectionResolver: failed to get underlying *sql.DB for connection '%s': %v", name, getDBErr)
		return conn, nil
	}

	if pingErr := sqlDB.PingContext(ctx); pingErr != nil {
		logger.Warnf("DBConnectionResolver: connection '%s' is invalid (%v). Attempting to reconnect.", name, pingErr)
		reconnectedConn, reconnectErr := provider.ForceReconnect(name)
		if reconnectErr != nil {
			return nil, fmt.Errorf("DBConnectionResolver: failed to reconnect connection '%s': %w", name, reconnectErr)
		}
		logger.Infof("DBConnectionResolver: successfully reconnected connection '%s'.", name)
		return reconnectedConn, nil
	}

	return conn, nil
}

// ResolveConnection implements adapter.ResourceConnectionResolver.
func (r *GormDBConnectionResolver) ResolveConnection(ctx context.Context, name string) (adapter.ResourceConnection, error) {
	return r.ResolveDBConnection(ctx, name)
}
