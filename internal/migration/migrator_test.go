package migration

import (
	"embed"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cascadiahydro/streamsync/internal/testutil"
)

//go:embed testdata/migrations
var testMigrations embed.FS

func newTestMigrator(t *testing.T) (*testutil.SQLiteTestDB, *Migrator) {
	testDB, err := testutil.OpenBareSQLiteTestDB("migration_test")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	migrator, err := NewMigrator(testDB.Conn, Source{FS: testMigrations, Path: "testdata/migrations"})
	if err != nil {
		t.Fatalf("failed to create migrator: %v", err)
	}
	return testDB, migrator
}

func TestMigratorUpAndSteps(t *testing.T) {
	testDB, migrator := newTestMigrator(t)

	// 1. Up applies both migrations.
	assert.NoError(t, migrator.Up())
	version, dirty, err := migrator.Version()
	assert.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, uint(2), version)

	// 2. The migrated table accepts rows.
	assert.NoError(t, testDB.GormDB.Exec(`INSERT INTO notes (id, body) VALUES (1, 'first')`).Error)

	// 3. Up on a current schema is a no-op, not an error.
	assert.NoError(t, migrator.Up())

	// 4. Steps(-1) rolls back only the index migration.
	assert.NoError(t, migrator.Steps(-1))
	version, dirty, err = migrator.Version()
	assert.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, uint(1), version)
}

func TestMigratorVersionOnEmptyDatabase(t *testing.T) {
	_, migrator := newTestMigrator(t)

	version, dirty, err := migrator.Version()
	assert.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, uint(0), version)
}

func TestNewDatabaseDriverRejectsUnknownType(t *testing.T) {
	_, err := newDatabaseDriver("oracle", nil)
	assert.Error(t, err)
}
