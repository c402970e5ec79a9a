// Package tx provides the transaction abstraction used by streamsync's
// persistence layer. Each site's observation batch commits together with its
// watermark on one Tx, and the realtime retention purge runs as a single
// transaction, regardless of the database backend in use.
package tx

import (
	"context"
	"database/sql"

	"github.com/cascadiahydro/streamsync/internal/adapter/database"
)

// TxExecutor defines the write operations executable within a transaction.
// It is embedded in both DBConnection and Tx so repositories can perform data
// operations the same way with or without an explicit transaction.
type TxExecutor interface {
	// ExecuteUpdate performs write operations (INSERT, UPDATE, DELETE) on the
	// specified model. operation is one of "CREATE", "UPDATE", "DELETE";
	// query is an equality map combined with AND.
	ExecuteUpdate(ctx context.Context, model interface{}, operation string, tableName string, query map[string]interface{}) (rowsAffected int64, err error)

	// ExecuteUpsert performs an INSERT ... ON CONFLICT operation. conflictColumns
	// identify the uniqueness key; updateColumns are assigned on conflict, and an
	// empty updateColumns list means DO NOTHING.
	ExecuteUpsert(ctx context.Context, model interface{}, tableName string, conflictColumns []string, updateColumns []string) (rowsAffected int64, err error)

	// ExecuteDelete removes rows matching an arbitrary SQL condition, which the
	// equality-map form of ExecuteUpdate cannot express (e.g. range purges).
	ExecuteDelete(ctx context.Context, model interface{}, tableName string, condition string, args ...interface{}) (rowsAffected int64, err error)

	// IsTableNotExistError checks if the given error indicates a missing table,
	// so repositories can treat access before migrations as a soft condition.
	IsTableNotExistError(err error) bool
}

// Tx represents an ongoing database transaction.
type Tx interface {
	TxExecutor

	// Savepoint creates a named savepoint within the current transaction.
	Savepoint(name string) error

	// RollbackToSavepoint rolls back to the named savepoint, preserving
	// changes made before it.
	RollbackToSavepoint(name string) error
}

// TransactionManager manages the lifecycle of database transactions.
type TransactionManager interface {
	// Begin starts a new database transaction with optional sql.TxOptions.
	Begin(ctx context.Context, opts ...*sql.TxOptions) (Tx, error)
	// Commit commits the given transaction.
	Commit(tx Tx) error
	// Rollback rolls back the given transaction.
	Rollback(tx Tx) error
}

// TransactionManagerFactory creates TransactionManager instances bound to a
// specific database connection.
type TransactionManagerFactory interface {
	NewTransactionManager(dbConn database.DBConnection) TransactionManager
}
