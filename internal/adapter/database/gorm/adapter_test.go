package gorm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	dbconfig "github.com/cascadiahydro/streamsync/internal/adapter/database/config"
)

// readingEntity is a minimal TableNamer entity for exercising the adapter's
// SQL generation against sqlmock.
type readingEntity struct {
	SiteID    string
	Timestamp time.Time
	Value     float64
}

func (readingEntity) TableName() string {
	return "readings"
}

// setupMockAdapter wires a GormDBAdapter over a sqlmock-backed MySQL
// dialector so the adapter's generated SQL can be asserted without a real
// database.
func setupMockAdapter(t *testing.T) (*GormDBAdapter, sqlmock.Sqlmock, func()) {
	sqlDB, mock, err := sqlmock.New()
	assert.NoError(t, err)

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	assert.NoError(t, err)

	cfg := dbconfig.DatabaseConfig{Type: "mysql"}
	adapter := NewGormDBAdapter(gormDB, cfg, "mock_db").(*GormDBAdapter)

	cleanup := func() {
		mock.ExpectClose()
		sqlDB.Close()
	}
	return adapter, mock, cleanup
}

func TestGormDBAdapter_ExecuteQueryWhere(t *testing.T) {
	adapter, mock, cleanup := setupMockAdapter(t)
	defer cleanup()

	ts := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT \\* FROM `readings` WHERE site_id = \\? AND timestamp >= \\? AND timestamp < \\? ORDER BY timestamp asc").
		WithArgs("14211720", ts, ts.Add(time.Hour)).
		WillReturnRows(sqlmock.NewRows([]string{"site_id", "timestamp", "value"}).
			AddRow("14211720", ts, 1180.0).
			AddRow("14211720", ts.Add(15*time.Minute), 1210.0))

	var readings []readingEntity
	err := adapter.ExecuteQueryWhere(context.Background(), &readings,
		"site_id = ? AND timestamp >= ? AND timestamp < ?",
		[]interface{}{"14211720", ts, ts.Add(time.Hour)},
		"timestamp asc", 0)

	assert.NoError(t, err)
	assert.Len(t, readings, 2)
	assert.Equal(t, 1180.0, readings[0].Value)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormDBAdapter_Count(t *testing.T) {
	adapter, mock, cleanup := setupMockAdapter(t)
	defer cleanup()

	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `readings` WHERE `site_id` = \\?").
		WithArgs("14211720").
		WillReturnRows(sqlmock.NewRows([]string{"count(*)"}).AddRow(42))

	count, err := adapter.Count(context.Background(), &readingEntity{}, map[string]interface{}{"site_id": "14211720"})

	assert.NoError(t, err)
	assert.Equal(t, int64(42), count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormDBAdapter_ExecuteUpsert(t *testing.T) {
	adapter, mock, cleanup := setupMockAdapter(t)
	defer cleanup()

	// MySQL renders OnConflict as ON DUPLICATE KEY UPDATE.
	mock.ExpectExec("INSERT INTO `readings` .*ON DUPLICATE KEY UPDATE").
		WillReturnResult(sqlmock.NewResult(0, 1))

	reading := readingEntity{SiteID: "14211720", Timestamp: time.Now().UTC(), Value: 1180.0}
	affected, err := adapter.ExecuteUpsert(context.Background(), &reading, "readings",
		[]string{"site_id", "timestamp"}, []string{"value"})

	assert.NoError(t, err)
	assert.Equal(t, int64(1), affected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormDBAdapter_ExecuteDelete(t *testing.T) {
	adapter, mock, cleanup := setupMockAdapter(t)
	defer cleanup()

	cutoff := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec("DELETE FROM `readings` WHERE timestamp < \\?").
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 7))

	affected, err := adapter.ExecuteDelete(context.Background(), &readingEntity{}, "readings", "timestamp < ?", cutoff)

	assert.NoError(t, err)
	assert.Equal(t, int64(7), affected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormDBAdapter_ExecuteUpdateRejectsUnknownOperation(t *testing.T) {
	adapter, _, cleanup := setupMockAdapter(t)
	defer cleanup()

	_, err := adapter.ExecuteUpdate(context.Background(), &readingEntity{}, "TRUNCATE", "readings", nil)
	assert.Error(t, err)
}

func TestIsTableNotExistError(t *testing.T) {
	cases := []struct {
		dbType string
		err    error
		want   bool
	}{
		{"sqlite", errors.New("no such table: observations"), true},
		{"postgres", errors.New(`ERROR: relation "observations" does not exist (SQLSTATE 42P01)`), true},
		{"mysql", errors.New("Error 1146 (42S02): Table 'streamsync.observations' doesn't exist"), true},
		{"sqlite", errors.New("UNIQUE constraint failed: observations.site_id"), false},
		{"mysql", nil, false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, isTableNotExistError(tc.dbType, tc.err), "dbType=%s err=%v", tc.dbType, tc.err)
	}
}
