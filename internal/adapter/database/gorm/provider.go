package gorm

import (
	"fmt"
	"sync"
	"time"

	multierror "github.com/hashicorp/go-multierror"
	"gorm.io/gorm"

	"github.com/cascadiahydro/streamsync/internal/adapter/database"
	dbconfig "github.com/cascadiahydro/streamsync/internal/adapter/database/config"
	"github.com/cascadiahydro/streamsync/internal/config"
	"github.com/cascadiahydro/streamsync/internal/support/logger"
)

// DialectorFactory creates a gorm.Dialector from a dbconfig.DatabaseConfig.
type DialectorFactory func(cfg dbconfig.DatabaseConfig) (gorm.Dialector, error)

var (
	dialectorRegistry = make(map[string]DialectorFactory)
	dialectorMutex    sync.RWMutex
)

// RegisterDialector registers a DialectorFactory for the given database type.
// Driver subpackages call this from their init functions.
func RegisterDialector(dbType string, factory DialectorFactory) {
	dialectorMutex.Lock()
	defer dialectorMutex.Unlock()
	if _, exists := dialectorRegistry[dbType]; exists {
		logger.Warnf("Dialector for type '%s' already registered. Overwriting.", dbType)
	}
	dialectorRegistry[dbType] = factory
}

// GetDialectorFactory retrieves the DialectorFactory for the given database type.
func GetDialectorFactory(dbType string) (DialectorFactory, error) {
	dialectorMutex.RLock()
	defer dialectorMutex.RUnlock()
	factory, ok := dialectorRegistry[dbType]
	if !ok {
		return nil, fmt.Errorf("no dialector registered for database type: %s", dbType)
	}
	return factory, nil
}

// BaseProvider provides the common connection management shared by all
// DBProvider implementations: a named connection cache with lazy
// establishment and pool configuration.
type BaseProvider struct {
	cfg         *config.Config
	dbType      string
	connections map[string]database.DBConnection
	mu          sync.RWMutex
}

// NewBaseProvider creates a new BaseProvider for the given database type.
func NewBaseProvider(cfg *config.Config, dbType string) *BaseProvider {
	return &BaseProvider{
		cfg:         cfg,
		dbType:      dbType,
		connections: make(map[string]database.DBConnection),
	}
}

// Type returns the database type this provider handles.
func (p *BaseProvider) Type() string {
	return p.dbType
}

// GetConnection retrieves an existing connection or establishes a new one.
func (p *BaseProvider) GetConnection(name string) (database.DBConnection, error) {
	p.mu.RLock()
	conn, ok := p.connections[name]
	p.mu.RUnlock()

	if ok {
		return conn, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// Double check under the write lock.
	conn, ok = p.connections[name]
	if ok {
		return conn, nil
	}

	return p.createAndStoreConnection(name)
}

// createAndStoreConnection establishes a new connection and caches it.
// Callers must hold the write lock.
func (p *BaseProvider) createAndStoreConnection(name string) (database.DBConnection, error) {
	dbCfg, ok := p.cfg.Streamsync.Database.Connections[name]
	if !ok {
		return nil, fmt.Errorf("database configuration '%s' not found under database.connections", name)
	}

	// Redshift speaks the PostgreSQL protocol and is served by the postgres provider.
	if dbCfg.Type != p.dbType && !(p.dbType == "postgres" && dbCfg.Type == "redshift") {
		return nil, fmt.Errorf("provider type mismatch: expected '%s', got '%s' for connection '%s'", p.dbType, dbCfg.Type, name)
	}

	gormDB, err := p.connect(dbCfg)
	if err != nil {
		return nil, err
	}

	conn := NewGormDBAdapter(gormDB, dbCfg, name)
	p.connections[name] = conn
	logger.Infof("Established new DB connection: %s (%s)", name, p.dbType)

	return conn, nil
}

// ForceReconnect closes an existing connection, if any, and reopens it.
func (p *BaseProvider) ForceReconnect(name string) (database.DBConnection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if existingConn, ok := p.connections[name]; ok {
		if err := existingConn.Close(); err != nil {
			logger.Warnf("Failed to close existing connection '%s' before reconnect: %v", name, err)
		}
	}

	conn, err := p.createAndStoreConnection(name)
	if err != nil {
		return nil, err
	}

	logger.Infof("Re-established DB connection: %s (%s)", name, p.dbType)

	return conn, nil
}

// connect opens a GORM connection for the given configuration and applies
// pool settings.
func (p *BaseProvider) connect(dbCfg dbconfig.DatabaseConfig) (*gorm.DB, error) {
	dialectorFactory, err := GetDialectorFactory(dbCfg.Type)
	if err != nil {
		return nil, fmt.Errorf("failed to get dialector factory for %s: %w", dbCfg.Type, err)
	}
	dialector, err := dialectorFactory(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create dialector for %s: %w", dbCfg.Type, err)
	}

	// GORM's own statement logging stays silent; SQL tracing is the
	// application logger's job.
	gormConfig := &gorm.Config{
		Logger: NewGormLogger(string(config.LogLevelSilent)),
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to open GORM connection: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(dbCfg.Pool.MaxOpenConns)
	sqlDB.SetMaxIdleConns(dbCfg.Pool.MaxIdleConns)
	if dbCfg.Pool.ConnMaxLifetimeMinutes > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(dbCfg.Pool.ConnMaxLifetimeMinutes) * time.Minute)
	}

	return db, nil
}

// CloseAll closes all connections managed by this provider.
func (p *BaseProvider) CloseAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var result *multierror.Error
	for name, conn := range p.connections {
		if err := conn.Close(); err != nil {
			logger.Errorf("Failed to close connection '%s': %v", name, err)
			result = multierror.Append(result, err)
		}
		delete(p.connections, name)
	}
	return result.ErrorOrNil()
}

// GetDialectorForTest builds a dialector directly from a DatabaseConfig.
// Intended for test setups that bypass the provider cache.
func GetDialectorForTest(cfg dbconfig.DatabaseConfig) (gorm.Dialector, error) {
	dialectorFactory, err := GetDialectorFactory(cfg.Type)
	if err != nil {
		return nil, err
	}
	return dialectorFactory(cfg)
}
