package database

import (
	"context"
	"database/sql"

	"github.com/cascadiahydro/streamsync/internal/adapter"
	dbconfig "github.com/cascadiahydro/streamsync/internal/adapter/database/config"
)

// DBExecutor defines common write and read operations for a database.
// It is intended to be embedded in both DBConnection and Tx (transaction).
type DBExecutor interface {
	// ExecuteUpdate performs write operations (INSERT, UPDATE, DELETE) on the
	// specified model. operation is one of "CREATE", "UPDATE", "DELETE";
	// query is an equality map whose entries are combined with AND.
	ExecuteUpdate(ctx context.Context, model interface{}, operation string, tableName string, query map[string]interface{}) (rowsAffected int64, err error)

	// ExecuteUpsert performs an UPSERT operation (INSERT ... ON CONFLICT).
	// conflictColumns identify the uniqueness key; updateColumns are assigned
	// on conflict, and an empty updateColumns list means DO NOTHING.
	ExecuteUpsert(ctx context.Context, model interface{}, tableName string, conflictColumns []string, updateColumns []string) (rowsAffected int64, err error)

	// ExecuteDelete removes rows matching a free-form SQL condition with
	// placeholder arguments, for conditions an equality map cannot express
	// (range deletes in particular).
	ExecuteDelete(ctx context.Context, model interface{}, tableName string, condition string, args ...interface{}) (rowsAffected int64, err error)

	// ExecuteQuery executes a read operation (SELECT) scanning matching rows
	// into target. The table is resolved from target's TableName() method.
	ExecuteQuery(ctx context.Context, target interface{}, query map[string]interface{}) error

	// ExecuteQueryAdvanced executes a read operation with optional sorting and
	// limiting. An empty orderBy or non-positive limit disables the clause.
	ExecuteQueryAdvanced(ctx context.Context, target interface{}, query map[string]interface{}, orderBy string, limit int) error

	// ExecuteQueryWhere executes a read operation matching a free-form SQL
	// condition with placeholder arguments, for conditions an equality map
	// cannot express (time windows in particular).
	ExecuteQueryWhere(ctx context.Context, target interface{}, condition string, args []interface{}, orderBy string, limit int) error

	// Count counts the number of records matching the query.
	Count(ctx context.Context, model interface{}, query map[string]interface{}) (int64, error)

	// Pluck retrieves the distinct values of a single column.
	Pluck(ctx context.Context, model interface{}, column string, target interface{}, query map[string]interface{}) error
}

// DBConnection represents an abstraction of a database connection.
// It embeds adapter.ResourceConnection for generic connection management
// and DBExecutor for database-specific operations.
type DBConnection interface {
	adapter.ResourceConnection
	DBExecutor

	// IsTableNotExistError checks if the given error indicates that a table does not exist.
	IsTableNotExistError(err error) bool
	// RefreshConnection forces the re-establishment of the database connection.
	RefreshConnection(ctx context.Context) error
	// Config returns the database configuration associated with this connection.
	Config() dbconfig.DatabaseConfig
	// GetSQLDB returns the underlying *sql.DB connection.
	GetSQLDB() (*sql.DB, error)
}

// DBConnectionResolver resolves the required database connection instance by
// name across all registered providers.
type DBConnectionResolver interface {
	adapter.ResourceConnectionResolver

	// ResolveDBConnection resolves a database connection instance by name.
	// The returned connection is valid, re-established if necessary.
	ResolveDBConnection(ctx context.Context, name string) (DBConnection, error)
}

// DBProvider is responsible for providing database connections based on configuration.
type DBProvider interface {
	// GetConnection retrieves a database connection with the specified name.
	GetConnection(name string) (DBConnection, error)
	// CloseAll closes all connections managed by this provider.
	CloseAll() error
	// Type returns the database type handled by this provider (e.g., "sqlite").
	Type() string
	// ForceReconnect closes and re-establishes the named connection.
	ForceReconnect(name string) (DBConnection, error)
}

// DBProviderGroup is the Fx group name under which all DBProvider
// implementations are collected.
const DBProviderGroup = "db_providers"
