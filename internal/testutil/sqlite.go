// Package testutil provides shared helpers for integration-style tests: an
// in-memory SQLite bootstrap with the sync schema, a resolver that always
// returns a fixed connection, and domain model factories.
package testutil

import (
	"log"
	"os"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/cascadiahydro/streamsync/internal/adapter/database"
	dbconfig "github.com/cascadiahydro/streamsync/internal/adapter/database/config"
	gormadapter "github.com/cascadiahydro/streamsync/internal/adapter/database/gorm"
	"github.com/cascadiahydro/streamsync/internal/tx"

	// Import the SQLite GORM provider so its init() function is executed.
	// This calls gormadapter.RegisterDialector to register the "sqlite" dialector factory.
	_ "github.com/cascadiahydro/streamsync/internal/adapter/database/gorm/sqlite"
)

// SQLiteTestDB bundles everything a persistence-level test suite needs: the
// raw GORM handle for DDL and cleanup, the wrapped connection, a resolver
// that always returns it, and a transaction manager bound to it.
type SQLiteTestDB struct {
	GormDB    *gorm.DB
	Conn      database.DBConnection
	Resolver  database.DBConnectionResolver
	TxManager tx.TransactionManager
}

// OpenSQLiteTestDB opens an in-memory SQLite database and creates the sync
// schema. The pool is capped at a single connection so every session in the
// suite sees the same in-memory database.
func OpenSQLiteTestDB(name string) (*SQLiteTestDB, error) {
	testDB, err := OpenBareSQLiteTestDB(name)
	if err != nil {
		return nil, err
	}
	if err := CreateSyncTables(testDB.GormDB); err != nil {
		return nil, err
	}
	return testDB, nil
}

// Close closes the underlying connection pool. In-memory databases vanish
// with it.
func (db *SQLiteTestDB) Close() error {
	sqlDB, err := db.GormDB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// OpenBareSQLiteTestDB opens an in-memory SQLite database without creating
// any tables, for suites that manage the schema themselves.
func OpenBareSQLiteTestDB(name string) (*SQLiteTestDB, error) {
	cfg := dbconfig.DatabaseConfig{
		Type:     "sqlite",
		Database: ":memory:",
		Pool: dbconfig.PoolConfig{
			MaxOpenConns: 1,
			MaxIdleConns: 1,
		},
	}

	dialector, err := gormadapter.GetDialectorForTest(cfg)
	if err != nil {
		return nil, err
	}

	// Keep GORM quiet during tests.
	gormLogger := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold: time.Second,
			LogLevel:      gormlogger.Silent,
			Colorful:      false,
		},
	)

	gormDB, err := gorm.Open(dialector, &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, err
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.Pool.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.Pool.MaxIdleConns)

	conn := gormadapter.NewGormDBAdapter(gormDB, cfg, name)
	resolver := NewTestSingleConnectionResolver(conn)
	txFactory := gormadapter.NewGormTransactionManagerFactory(resolver)

	return &SQLiteTestDB{
		GormDB:    gormDB,
		Conn:      conn,
		Resolver:  resolver,
		TxManager: txFactory.NewTransactionManager(conn),
	}, nil
}

// CreateSyncTables manually creates the tables required for SQLite tests.
// This keeps schema entities free of GORM tags while eliminating the
// dependency on AutoMigrate; the DDL mirrors resources/migrations.
func CreateSyncTables(db *gorm.DB) error {
	// NOTE: For SQLite, JSON types are treated as TEXT.

	// sites
	if err := db.Exec(`
		CREATE TABLE sites (
			site_id VARCHAR(32) PRIMARY KEY,
			name VARCHAR(255) NOT NULL DEFAULT '',
			state_code VARCHAR(8) NOT NULL DEFAULT '',
			huc_code VARCHAR(16) NOT NULL DEFAULT '',
			latitude REAL NOT NULL DEFAULT 0,
			longitude REAL NOT NULL DEFAULT 0,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);
	`).Error; err != nil {
		return err
	}

	// observations
	if err := db.Exec(`
		CREATE TABLE observations (
			site_id VARCHAR(32) NOT NULL,
			timestamp DATETIME NOT NULL,
			value REAL NOT NULL,
			quality VARCHAR(16) NOT NULL DEFAULT '',
			ingested_at DATETIME NOT NULL,
			PRIMARY KEY (site_id, timestamp)
		);
	`).Error; err != nil {
		return err
	}
	if err := db.Exec(`
		CREATE INDEX idx_observations_timestamp ON observations (timestamp);
	`).Error; err != nil {
		return err
	}

	// watermarks
	if err := db.Exec(`
		CREATE TABLE watermarks (
			site_id VARCHAR(32) NOT NULL,
			job_type VARCHAR(16) NOT NULL,
			last_timestamp DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			PRIMARY KEY (site_id, job_type)
		);
	`).Error; err != nil {
		return err
	}

	// job_definitions
	if err := db.Exec(`
		CREATE TABLE job_definitions (
			job_name VARCHAR(255) PRIMARY KEY,
			job_type VARCHAR(16) NOT NULL,
			interval_minutes INTEGER NOT NULL,
			retention_days INTEGER NOT NULL DEFAULT 0,
			enabled BOOLEAN NOT NULL DEFAULT TRUE,
			last_run DATETIME,
			next_run DATETIME,
			version INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);
	`).Error; err != nil {
		return err
	}

	// execution_log
	if err := db.Exec(`
		CREATE TABLE execution_log (
			id VARCHAR(36) PRIMARY KEY,
			job_name VARCHAR(255) NOT NULL,
			start_time DATETIME NOT NULL,
			end_time DATETIME,
			status VARCHAR(20) NOT NULL,
			sites_attempted INTEGER NOT NULL DEFAULT 0,
			succeeded_count INTEGER NOT NULL DEFAULT 0,
			failed_count INTEGER NOT NULL DEFAULT 0,
			observations_upserted INTEGER NOT NULL DEFAULT 0,
			observations_purged INTEGER NOT NULL DEFAULT 0,
			error_text TEXT NOT NULL DEFAULT '',
			failures TEXT,
			version INTEGER NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);
	`).Error; err != nil {
		return err
	}
	if err := db.Exec(`
		CREATE INDEX idx_execution_log_job_name_start_time ON execution_log (job_name, start_time);
	`).Error; err != nil {
		return err
	}

	return nil
}
