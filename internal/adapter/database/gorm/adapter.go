package gorm

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gorm_logger "gorm.io/gorm/logger"

	"github.com/cascadiahydro/streamsync/internal/adapter/database"
	dbconfig "github.com/cascadiahydro/streamsync/internal/adapter/database/config"
	"github.com/cascadiahydro/streamsync/internal/config"
	"github.com/cascadiahydro/streamsync/internal/support/logger"
)

// TableNamer represents a struct that has a TableName() string method.
type TableNamer interface {
	TableName() string
}

// applyTableName applies the table name to the GORM session when the model,
// or the element type of a model slice, implements TableNamer.
func applyTableName(db *gorm.DB, model interface{}) *gorm.DB {
	val := reflect.ValueOf(model)

	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}

	// Single entity implementing TableNamer.
	if namer, ok := model.(TableNamer); ok {
		return db.Table(namer.TableName())
	}

	// For slices, resolve the table name from the element type. TableName()
	// is implemented with a value receiver, so probe via a fresh instance.
	if val.Kind() == reflect.Slice || val.Kind() == reflect.Array {
		elemType := val.Type().Elem()

		if elemType.Kind() == reflect.Ptr {
			elemType = elemType.Elem()
		}

		if reflect.New(elemType).Type().Implements(reflect.TypeOf((*TableNamer)(nil)).Elem()) {
			if namer, ok := reflect.New(elemType).Interface().(TableNamer); ok {
				return db.Table(namer.TableName())
			}
		}
	}

	// Otherwise let GORM infer the table name from the model.
	return db.Model(model)
}

// NewGormLogger creates a gorm logger.Interface based on the configured log level.
func NewGormLogger(level string) gorm_logger.Interface {
	var gormLevel gorm_logger.LogLevel
	switch config.LogLevel(level) {
	case config.LogLevelSilent:
		gormLevel = gorm_logger.Silent
	case config.LogLevelError:
		gormLevel = gorm_logger.Error
	case config.LogLevelWarn:
		gormLevel = gorm_logger.Warn
	case config.LogLevelInfo:
		gormLevel = gorm_logger.Info
	default:
		gormLevel = gorm_logger.Silent
	}

	return gorm_logger.New(
		NewGormWriter(),
		gorm_logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormLevel,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}

// GormWriter redirects GORM log output to the application logger.
type GormWriter struct{}

// NewGormWriter creates a new GormWriter.
func NewGormWriter() *GormWriter {
	return &GormWriter{}
}

// Write implements io.Writer.
func (w *GormWriter) Write(p []byte) (n int, err error) {
	w.Printf("%s", string(p))
	return len(p), nil
}

// Printf implements the gorm logger.Writer interface. SQL trace lines are
// demoted to DEBUG; everything else (connection info, warnings) passes
// through as INFO.
func (w *GormWriter) Printf(format string, v ...interface{}) {
	msg := strings.TrimSpace(fmt.Sprintf(format, v...))
	if strings.Contains(msg, "[") && strings.Contains(msg, "]") &&
		(strings.Contains(msg, "SELECT") || strings.Contains(msg, "INSERT") || strings.Contains(msg, "UPDATE") || strings.Contains(msg, "DELETE")) {
		logger.Debugf("[GORM] %s", msg)
	} else {
		logger.Infof("[GORM] %s", msg)
	}
}

// GormDBAdapter implements database.DBConnection on top of a *gorm.DB.
type GormDBAdapter struct {
	db     *gorm.DB
	sqlDB  *sql.DB
	cfg    dbconfig.DatabaseConfig
	dbType string
	name   string
}

// NewGormDBAdapter wraps an established GORM connection as a database.DBConnection.
func NewGormDBAdapter(db *gorm.DB, cfg dbconfig.DatabaseConfig, name string) database.DBConnection {
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatalf("Failed to get underlying *sql.DB: %v", err)
	}

	return &GormDBAdapter{
		db:     db,
		sqlDB:  sqlDB,
		cfg:    cfg,
		dbType: cfg.Type,
		name:   name,
	}
}

// GetGormDB returns the underlying *gorm.DB instance.
// Intended for use within the gorm adapter package only.
func (a *GormDBAdapter) GetGormDB() *gorm.DB {
	return a.db
}

func (a *GormDBAdapter) Close() error {
	if a.sqlDB != nil {
		logger.Infof("Closing database connection '%s'...", a.name)
		return a.sqlDB.Close()
	}
	return nil
}

func (a *GormDBAdapter) Type() string {
	return a.dbType
}

func (a *GormDBAdapter) Name() string {
	return a.name
}

// isTableNotExistError classifies a driver error as "table does not exist"
// based on the database type. Shared by the connection and transaction adapters.
func isTableNotExistError(dbType string, err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	switch dbType {
	case "postgres", "redshift":
		return strings.Contains(msg, "relation \"") && strings.Contains(msg, "\" does not exist")
	case "mysql":
		return strings.Contains(msg, "Error 1146") && strings.Contains(msg, "doesn't exist")
	case "sqlite":
		return strings.Contains(msg, "no such table:")
	}
	return strings.Contains(msg, "does not exist") || strings.Contains(msg, "no such table:")
}

// IsTableNotExistError implements database.DBConnection.
func (a *GormDBAdapter) IsTableNotExistError(err error) bool {
	return isTableNotExistError(a.dbType, err)
}

// RefreshConnection implements database.DBConnection.
func (a *GormDBAdapter) RefreshConnection(ctx context.Context) error {
	if a.sqlDB == nil {
		return fmt.Errorf("database connection is not initialized")
	}
	return a.sqlDB.PingContext(ctx)
}

// Config implements database.DBConnection.
func (a *GormDBAdapter) Config() dbconfig.DatabaseConfig {
	return a.cfg
}

// GetSQLDB implements database.DBConnection.
func (a *GormDBAdapter) GetSQLDB() (*sql.DB, error) {
	if a.sqlDB == nil {
		return nil, fmt.Errorf("underlying sql.DB is nil")
	}
	return a.sqlDB, nil
}

// ExecuteQuery implements database.DBExecutor using GORM's Find.
func (a *GormDBAdapter) ExecuteQuery(ctx context.Context, target interface{}, query map[string]interface{}) error {
	db := applyTableName(a.db.WithContext(ctx), target)

	// Find does not return ErrRecordNotFound for slices; an empty result
	// set is left for the caller to interpret.
	return db.Where(query).Find(target).Error
}

// ExecuteQueryAdvanced implements database.DBExecutor.
func (a *GormDBAdapter) ExecuteQueryAdvanced(ctx context.Context, target interface{}, query map[string]interface{}, orderBy string, limit int) error {
	db := applyTableName(a.db.WithContext(ctx), target)

	if query != nil {
		db = db.Where(query)
	}
	if orderBy != "" {
		db = db.Order(orderBy)
	}
	if limit > 0 {
		db = db.Limit(limit)
	}

	return db.Find(target).Error
}

// ExecuteQueryWhere implements database.DBExecutor.
func (a *GormDBAdapter) ExecuteQueryWhere(ctx context.Context, target interface{}, condition string, args []interface{}, orderBy string, limit int) error {
	db := applyTableName(a.db.WithContext(ctx), target)

	if condition != "" {
		db = db.Where(condition, args...)
	}
	if orderBy != "" {
		db = db.Order(orderBy)
	}
	if limit > 0 {
		db = db.Limit(limit)
	}

	return db.Find(target).Error
}

// Count implements database.DBExecutor.
func (a *GormDBAdapter) Count(ctx context.Context, model interface{}, query map[string]interface{}) (int64, error) {
	db := applyTableName(a.db.WithContext(ctx), model)

	if query != nil {
		db = db.Where(query)
	}
	var count int64
	if err := db.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Pluck implements database.DBExecutor.
func (a *GormDBAdapter) Pluck(ctx context.Context, model interface{}, column string, target interface{}, query map[string]interface{}) error {
	db := applyTableName(a.db.WithContext(ctx), model)

	if query != nil {
		db = db.Where(query)
	}

	return db.Distinct().Pluck(column, target).Error
}

// ExecuteUpdate implements database.DBExecutor. It executes a write operation
// (CREATE, UPDATE, DELETE) outside of a managed transaction.
func (a *GormDBAdapter) ExecuteUpdate(ctx context.Context, model interface{}, operation string, tableName string, query map[string]interface{}) (rowsAffected int64, err error) {
	db := a.db.WithContext(ctx)

	// Skip GORM's implicit per-statement transaction; callers that need
	// atomicity use the tx package instead.
	db = db.Session(&gorm.Session{SkipDefaultTransaction: true})

	var result *gorm.DB

	// The repository layer's table name takes precedence over inference.
	if tableName != "" {
		db = db.Table(tableName)
	}

	switch operation {
	case "CREATE":
		// model must be a pointer to an entity or a slice of entities.
		result = db.Create(model)

	case "UPDATE":
		// db.Model(model) applies the model's primary key as a condition;
		// query narrows it further.
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

// ExecuteUpsert implements database.DBExecutor.
func (a *GormDBAdapter) ExecuteUpsert(ctx context.Context, model interface{}, tableName string, conflictColumns []string, updateColumns []string) (rowsAffected int64, err error) {
	db := a.db.WithContext(ctx)

	db = db.Session(&gorm.Session{SkipDefaultTransaction: true})

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

// ExecuteDelete implements database.DBExecutor. It removes rows matching a
// free-form condition, which the equality-map form of ExecuteUpdate cannot
// express.
func (a *GormDBAdapter) ExecuteDelete(ctx context.Context, model interface{}, tableName string, condition string, args ...interface{}) (rowsAffected int64, err error) {
	db := a.db.WithContext(ctx)

	db = db.Session(&gorm.Session{SkipDefaultTransaction: true})

	if tableName != "" {
		db = db.Table(tableName)
	}

	result := db.Where(condition, args...).Delete(model)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
