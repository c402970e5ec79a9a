// Package postgres provides a GORM DBProvider implementation for PostgreSQL
// and Redshift databases.
package postgres

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/cascadiahydro/streamsync/internal/adapter/database"
	dbconfig "github.com/cascadiahydro/streamsync/internal/adapter/database/config"
	gormadapter "github.com/cascadiahydro/streamsync/internal/adapter/database/gorm"
	"github.com/cascadiahydro/streamsync/internal/config"
)

// init registers the PostgreSQL dialector factory with the gorm adapter.
func init() {
	gormadapter.RegisterDialector("postgres", func(cfg dbconfig.DatabaseConfig) (gorm.Dialector, error) {
		p := &PostgresDBProvider{}
		return postgres.Open(p.ConnectionString(cfg)), nil
	})
}

// PostgresDBProvider implements database.DBProvider for PostgreSQL and
// Redshift connections.
type PostgresDBProvider struct {
	*gormadapter.BaseProvider
}

// ConnectionString generates the DSN for PostgreSQL connections.
func (p *PostgresDBProvider) ConnectionString(c dbconfig.DatabaseConfig) string {
	// DSN format expected by gorm.io/driver/postgres.
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.Sslmode)
}

// NewProvider creates the PostgreSQL database.DBProvider.
// Intended to be registered through fx.Provide.
func NewProvider(cfg *config.Config) database.DBProvider {
	return &PostgresDBProvider{BaseProvider: gormadapter.NewBaseProvider(cfg, "postgres")}
}
