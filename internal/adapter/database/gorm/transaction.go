package gorm

import (
	"context"
	"database/sql"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cascadiahydro/streamsync/internal/adapter/database"
	"github.com/cascadiahydro/streamsync/internal/tx"
)

// GormTxAdapter implements tx.Tx on top of a GORM transaction handle.
type GormTxAdapter struct {
	db     *gorm.DB
	dbType string
}

// ExecuteUpdate implements tx.TxExecutor. Same semantics as
// GormDBAdapter.ExecuteUpdate, but operating on the transaction's *gorm.DB.
func (t *GormTxAdapter) ExecuteUpdate(ctx context.Context, model interface{}, operation string, tableName string, query map[string]interface{}) (rowsAffected int64, err error) {
	db := t.db.WithContext(ctx)

	var result *gorm.DB

	if tableName != "" {
		db = db.Table(tableName)
	}

	switch operation {
	case "CREATE":
		result = db.Create(model)

	case "UPDATE":
		result = db.Model(model).Where(query).Updates(model)

	case "DELETE":
		if query != nil {
			db = db.Where(query)
		}
		result = db.Delete(model)

	default:
		return 0, fmt.Errorf("unsupported update operation: %s", operation)
	}

	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// ExecuteUpsert implements tx.TxExecutor.
func (t *GormTxAdapter) ExecuteUpsert(ctx context.Context, model interface{}, tableName string, conflictColumns []string, updateColumns []string) (rowsAffected int64, err error) {
	db := t.db.WithContext(ctx)

	if tableName != "" {
		db = db.Table(tableName)
	}

	var columns []clause.Column
	for _, col := range conflictColumns {
		columns = append(columns, clause.Column{Name: col})
	}

	onConflict := clause.OnConflict{
		Columns: columns,
	}

	if len(updateColumns) > 0 {
		onConflict.DoUpdates = clause.AssignmentColumns(updateColumns)
	} else {
		onConflict.DoNothing = true
	}

	result := db.Clauses(onConflict).Create(model)

	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// ExecuteDelete implements tx.TxExecutor.
func (t *GormTxAdapter) ExecuteDelete(ctx context.Context, model interface{}, tableName string, condition string, args ...interface{}) (rowsAffected int64, err error) {
	db := t.db.WithContext(ctx)

	if tableName != "" {
		db = db.Table(tableName)
	}

	result := db.Where(condition, args...).Delete(model)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// IsTableNotExistError implements tx.TxExecutor.
func (t *GormTxAdapter) IsTableNotExistError(err error) bool {
	return isTableNotExistError(t.dbType, err)
}

// Savepoint implements tx.Tx.
func (t *GormTxAdapter) Savepoint(name string) error {
	return t.db.SavePoint(name).Error
}

// RollbackToSavepoint implements tx.Tx.
func (t *GormTxAdapter) RollbackToSavepoint(name string) error {
	return t.db.RollbackTo(name).Error
}

// GormTransactionManager implements tx.TransactionManager. It resolves the
// connection through the resolver on every Begin so a transaction never
// starts on a stale handle.
type GormTransactionManager struct {
	dbResolver database.DBConnectionResolver
	dbName     string
}

func (m *GormTransactionManager) Begin(ctx context.Context, opts ...*sql.TxOptions) (tx.Tx, error) {
	conn, err := m.dbResolver.ResolveDBConnection(ctx, m.dbName)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve DB connection '%s' for transaction: %w", m.dbName, err)
	}

	// Reaching into the concrete adapter is acceptable within the gorm
	// adapter layer only.
	adapter, ok := conn.(*GormDBAdapter)
	if !ok {
		return nil, fmt.Errorf("internal error: DBConnection implementation is not *GormDBAdapter")
	}
	gormDB := adapter.GetGormDB().WithContext(ctx)

	var txOpts *sql.TxOptions
	if len(opts) > 0 && opts[0] != nil {
		txOpts = opts[0]
	}

	gormTx := gormDB.Begin(txOpts)
	if gormTx.Error != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", gormTx.Error)
	}

	return &GormTxAdapter{db: gormTx, dbType: conn.Type()}, nil
}

func (m *GormTransactionManager) Commit(t tx.Tx) error {
	gormTxAdapter, ok := t.(*GormTxAdapter)
	if !ok {
		return fmt.Errorf("invalid transaction type: expected *GormTxAdapter")
	}
	return gormTxAdapter.db.Commit().Error
}

func (m *GormTransactionManager) Rollback(t tx.Tx) error {
	gormTxAdapter, ok := t.(*GormTxAdapter)
	if !ok {
		return fmt.Errorf("invalid transaction type: expected *GormTxAdapter")
	}
	return gormTxAdapter.db.Rollback().Error
}

// GormTransactionManagerFactory is the GORM implementation of
// tx.TransactionManagerFactory.
type GormTransactionManagerFactory struct {
	dbResolver database.DBConnectionResolver
}

// NewGormTransactionManagerFactory creates a GormTransactionManagerFactory.
func NewGormTransactionManagerFactory(dbResolver database.DBConnectionResolver) tx.TransactionManagerFactory {
	return &GormTransactionManagerFactory{dbResolver: dbResolver}
}

// NewTransactionManager creates a TransactionManager bound to the
// connection's name.
func (f *GormTransactionManagerFactory) NewTransactionManager(dbConn database.DBConnection) tx.TransactionManager {
	return &GormTransactionManager{
		dbResolver: f.dbResolver,
		dbName:     dbConn.Name(),
	}
}
