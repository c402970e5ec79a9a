// Package sqlite provides a GORM DBProvider implementation for SQLite databases.
package sqlite

import (
	"errors"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/cascadiahydro/streamsync/internal/adapter/database"
	dbconfig "github.com/cascadiahydro/streamsync/internal/adapter/database/config"
	gormadapter "github.com/cascadiahydro/streamsync/internal/adapter/database/gorm"
	"github.com/cascadiahydro/streamsync/internal/config"
)

// init registers the SQLite dialector factory with the gorm adapter, so the
// adapter can open SQLite connections from a dbconfig.DatabaseConfig.
func init() {
	gormadapter.RegisterDialector("sqlite", func(cfg dbconfig.DatabaseConfig) (gorm.Dialector, error) {
		if cfg.Database == "" {
			return nil, errors.New("sqlite database path cannot be empty")
		}
		p := &SQLiteDBProvider{}
		return sqlite.Open(p.ConnectionString(cfg)), nil
	})
}

// SQLiteDBProvider implements database.DBProvider for SQLite connections.
type SQLiteDBProvider struct {
	*gormadapter.BaseProvider
}

// ConnectionString generates the DSN for SQLite connections.
func (p *SQLiteDBProvider) ConnectionString(c dbconfig.DatabaseConfig) string {
	// The GORM SQLite dialector expects the file path (or :memory:) directly.
	return c.Database
}

// NewProvider creates the SQLite database.DBProvider.
// Intended to be registered through fx.Provide.
func NewProvider(cfg *config.Config) database.DBProvider {
	return &SQLiteDBProvider{BaseProvider: gormadapter.NewBaseProvider(cfg, "sqlite")}
}
