// Package migration applies versioned SQL schema migrations over an existing
// database connection.
package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	migratepostgres "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/cascadiahydro/streamsync/internal/adapter/database"
	"github.com/cascadiahydro/streamsync/internal/support/logger"
)

// Source locates migration files inside a file system, typically an embed.FS
// carried by the main package.
type Source struct {
	FS   fs.FS
	Path string
}

// Migrator applies schema migrations to the database behind a resolved
// connection. It reuses the connection's pool, so the caller must not close
// the migrator separately; the pool's owner manages the lifecycle.
type Migrator struct {
	migrate *migrate.Migrate
	dbName  string
}

// NewMigrator creates a Migrator for the given connection. The database
// driver is selected from the connection's configured type.
func NewMigrator(conn database.DBConnection, source Source) (*Migrator, error) {
	sqlDB, err := conn.GetSQLDB()
	if err != nil {
		return nil, fmt.Errorf("failed to obtain sql.DB for migration: %w", err)
	}

	sourceDriver, err := iofs.New(source.FS, source.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open migration source '%s': %w", source.Path, err)
	}

	dbType := conn.Config().Type
	dbDriver, err := newDatabaseDriver(dbType, sqlDB)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize migration driver for '%s': %w", dbType, err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, dbType, dbDriver)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize migrator: %w", err)
	}
	return &Migrator{migrate: m, dbName: dbType}, nil
}

func newDatabaseDriver(dbType string, db *sql.DB) (migratedb.Driver, error) {
	switch dbType {
	case "sqlite":
		return migratesqlite.WithInstance(db, &migratesqlite.Config{})
	case "postgres":
		return migratepostgres.WithInstance(db, &migratepostgres.Config{})
	case "mysql":
		return migratemysql.WithInstance(db, &migratemysql.Config{})
	default:
		return nil, fmt.Errorf("unsupported database type for migration: %s", dbType)
	}
}

// Up applies all pending migrations. An already current schema is not an
// error.
func (m *Migrator) Up() error {
	err := m.migrate.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		logger.Debugf("Database schema (%s) is already up to date.", m.dbName)
		return nil
	}
	if err != nil {
		return fmt.Errorf("migration up failed: %w", err)
	}
	logger.Infof("Database schema (%s) migrated to the latest version.", m.dbName)
	return nil
}

// Steps applies n migrations forward when n is positive, or rolls back -n
// migrations when negative.
func (m *Migrator) Steps(n int) error {
	err := m.migrate.Steps(n)
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("migration steps(%d) failed: %w", n, err)
	}
	return nil
}

// Version reports the current schema version and whether it is dirty.
// A database with no applied migrations reports version 0.
func (m *Migrator) Version() (uint, bool, error) {
	version, dirty, err := m.migrate.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}
