package exporter_test

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	storageconfig "github.com/cascadiahydro/streamsync/internal/adapter/storage/config"
	"github.com/cascadiahydro/streamsync/internal/adapter/storage/local"
	"github.com/cascadiahydro/streamsync/internal/config"
	model "github.com/cascadiahydro/streamsync/internal/domain/model"
	"github.com/cascadiahydro/streamsync/internal/domain/repository"
	"github.com/cascadiahydro/streamsync/internal/exporter"
	sqlrepo "github.com/cascadiahydro/streamsync/internal/infrastructure/repository/sql"
	"github.com/cascadiahydro/streamsync/internal/testutil"
)

// setupExporterTest builds an exporter over a fresh in-memory database and a
// local storage directory scoped to the test.
func setupExporterTest(t *testing.T) (repository.SyncRepository, *testutil.SQLiteTestDB, exporter.Exporter, string) {
	testDB, err := testutil.OpenSQLiteTestDB("export_test")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	repo := sqlrepo.NewSQLSyncRepository(testDB.Resolver, "export_test")

	baseDir := t.TempDir()
	storageConn, err := local.NewLocalAdapter(storageconfig.StorageConfig{Type: "local", BaseDir: baseDir}, "archive")
	if err != nil {
		t.Fatalf("failed to create local storage adapter: %v", err)
	}

	cfg := config.NewConfig()
	cfg.Streamsync.Export.Connection = "archive"
	cfg.Streamsync.Export.Prefix = "observations"
	cfg.Streamsync.Export.Format = "parquet"

	exp, err := exporter.NewParquetExporter(cfg, repo, testutil.NewTestSingleStorageResolver(storageConn))
	if err != nil {
		t.Fatalf("failed to create exporter: %v", err)
	}
	return repo, testDB, exp, baseDir
}

// seedObservations writes observations through the repository in a committed
// transaction so the exporter's reads see them.
func seedObservations(t *testing.T, testDB *testutil.SQLiteTestDB, repo repository.SyncRepository, observations []struct {
	siteID string
	ts     time.Time
	value  float64
}) {
	ctx := context.Background()
	batch := make([]model.Observation, 0, len(observations))
	for _, o := range observations {
		batch = append(batch, testutil.NewTestObservation(o.siteID, o.ts, o.value))
	}

	txn, err := testDB.TxManager.Begin(ctx)
	if err != nil {
		t.Fatalf("failed to begin transaction: %v", err)
	}
	ctxWithTx := context.WithValue(ctx, "tx", txn)
	if _, err := repo.UpsertObservations(ctxWithTx, batch); err != nil {
		t.Fatalf("failed to seed observations: %v", err)
	}
	if err := testDB.TxManager.Commit(txn); err != nil {
		t.Fatalf("failed to commit seed transaction: %v", err)
	}
}

func listFiles(t *testing.T, baseDir string) []string {
	var files []string
	err := filepath.WalkDir(baseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	assert.NoError(t, err)
	return files
}

func TestParquetExporterPartitionsByObservationDay(t *testing.T) {
	repo, testDB, exp, baseDir := setupExporterTest(t)
	ctx := context.Background()

	day1 := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	day2 := time.Date(2025, 3, 11, 8, 0, 0, 0, time.UTC)

	seedObservations(t, testDB, repo, []struct {
		siteID string
		ts     time.Time
		value  float64
	}{
		{"14211720", day1, 13800},
		{"14211720", day1.Add(15 * time.Minute), 13900},
		{"14211720", day1.Add(30 * time.Minute), 14000},
		{"14211720", day2, 15100},
		{"14144700", day2.Add(15 * time.Minute), 220},
	})

	// 1. Export the whole range; two observation days yield two objects.
	result, err := exp.Export(ctx, day1.Add(-time.Hour), day2.Add(time.Hour))
	assert.NoError(t, err)
	assert.Equal(t, int64(5), result.RecordsExported)
	assert.Len(t, result.ObjectsWritten, 2)

	// 2. The objects land under Hive-style day partitions.
	files := listFiles(t, baseDir)
	assert.Len(t, files, 2)
	partitionDirs := make(map[string]bool)
	for _, f := range files {
		assert.True(t, filepath.Ext(f) == ".parquet")
		partitionDirs[filepath.Base(filepath.Dir(f))] = true
	}
	assert.True(t, partitionDirs["dt=2025-03-10"])
	assert.True(t, partitionDirs["dt=2025-03-11"])

	// 3. Every object carries the Parquet magic bytes at both ends.
	for _, f := range files {
		data, err := os.ReadFile(f)
		assert.NoError(t, err)
		if assert.True(t, len(data) > 8) {
			assert.Equal(t, "PAR1", string(data[:4]))
			assert.Equal(t, "PAR1", string(data[len(data)-4:]))
		}
	}
}

func TestParquetExporterHonorsWindowBounds(t *testing.T) {
	repo, testDB, exp, baseDir := setupExporterTest(t)
	ctx := context.Background()

	day1 := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)

	seedObservations(t, testDB, repo, []struct {
		siteID string
		ts     time.Time
		value  float64
	}{
		{"14211720", day1.Add(6 * time.Hour), 13800},
		{"14211720", day1.Add(12 * time.Hour), 13900},
		{"14211720", day1.Add(18 * time.Hour), 14000},
		{"14211720", day2, 15100},
	})

	// The half-open window [day1, day2) excludes the observation at day2.
	result, err := exp.Export(ctx, day1, day2)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), result.RecordsExported)
	assert.Len(t, result.ObjectsWritten, 1)

	files := listFiles(t, baseDir)
	assert.Len(t, files, 1)
	assert.Equal(t, "dt=2025-03-10", filepath.Base(filepath.Dir(files[0])))
}

func TestParquetExporterEmptyWindowWritesNothing(t *testing.T) {
	_, _, exp, baseDir := setupExporterTest(t)
	ctx := context.Background()

	result, err := exp.Export(ctx, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC))
	assert.NoError(t, err)
	assert.Equal(t, int64(0), result.RecordsExported)
	assert.Empty(t, result.ObjectsWritten)
	assert.Empty(t, listFiles(t, baseDir))
}

func TestNewParquetExporterRejectsUnknownFormat(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Streamsync.Export.Connection = "archive"
	cfg.Streamsync.Export.Format = "avro"

	_, err := exporter.NewParquetExporter(cfg, nil, nil)
	assert.Error(t, err)
}
