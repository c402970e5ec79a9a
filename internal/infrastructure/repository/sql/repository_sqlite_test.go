package sql_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	model "github.com/cascadiahydro/streamsync/internal/domain/model"
	"github.com/cascadiahydro/streamsync/internal/domain/repository"
	sqlrepo "github.com/cascadiahydro/streamsync/internal/infrastructure/repository/sql"
	"github.com/cascadiahydro/streamsync/internal/support/exception"
	"github.com/cascadiahydro/streamsync/internal/testutil"
	tx "github.com/cascadiahydro/streamsync/internal/tx"
)

var (
	testDB *testutil.SQLiteTestDB
	once   sync.Once
)

// setupSQLiteTestDB sets up the SQLite test environment. It shares a single
// in-memory DB connection across the entire test suite, so reads must only
// happen after the enclosing transaction has been committed.
func setupSQLiteTestDB(t *testing.T) (repository.SyncRepository, tx.TransactionManager) {
	once.Do(func() {
		db, err := testutil.OpenSQLiteTestDB("test_sqlite")
		assert.NoError(t, err)
		testDB = db
	})

	repo := sqlrepo.NewSQLSyncRepository(testDB.Resolver, "test_sqlite")
	return repo, testDB.TxManager
}

// TestSQLiteSyncRepository_SiteLifecycle tests saving, updating and querying sites.
func TestSQLiteSyncRepository_SiteLifecycle(t *testing.T) {
	repo, txManager := setupSQLiteTestDB(t)

	ctx := context.Background()

	var txAdapter tx.Tx
	var txCtx context.Context
	var err error

	// 1. Save and Find Site
	site := testutil.NewTestSite("14211720")
	txAdapter, err = txManager.Begin(ctx)
	assert.NoError(t, err)
	txCtx = context.WithValue(ctx, "tx", txAdapter)

	err = repo.SaveSite(txCtx, site)
	assert.NoError(t, err)
	err = txManager.Commit(txAdapter)
	assert.NoError(t, err)

	found, err := repo.FindSiteByID(ctx, site.SiteID)
	assert.NoError(t, err)
	assert.NotNil(t, found)
	assert.Equal(t, site.Name, found.Name)
	assert.Equal(t, "OR", found.StateCode)
	assert.True(t, found.IsActive)

	// 2. Saving the same site again updates it in place
	site.Name = "WILLAMETTE RIVER AT MORRISON BRIDGE"
	site.IsActive = false
	txAdapter, err = txManager.Begin(ctx)
	assert.NoError(t, err)
	txCtx = context.WithValue(ctx, "tx", txAdapter)
	err = repo.SaveSite(txCtx, site)
	assert.NoError(t, err)
	err = txManager.Commit(txAdapter)
	assert.NoError(t, err)

	found, err = repo.FindSiteByID(ctx, site.SiteID)
	assert.NoError(t, err)
	assert.Equal(t, "WILLAMETTE RIVER AT MORRISON BRIDGE", found.Name)
	assert.False(t, found.IsActive)

	// 3. Unknown site IDs report ErrSiteNotFound
	_, err = repo.FindSiteByID(ctx, "00000000")
	assert.ErrorIs(t, err, repository.ErrSiteNotFound)

	// 4. FindActiveSites filters inactive sites and orders by site ID
	active1 := testutil.NewTestSite("12301933")
	active2 := testutil.NewTestSite("13351000")
	txAdapter, err = txManager.Begin(ctx)
	assert.NoError(t, err)
	txCtx = context.WithValue(ctx, "tx", txAdapter)
	assert.NoError(t, repo.SaveSite(txCtx, active1))
	assert.NoError(t, repo.SaveSite(txCtx, active2))
	assert.NoError(t, txManager.Commit(txAdapter))

	actives, err := repo.FindActiveSites(ctx, 0)
	assert.NoError(t, err)
	assert.Len(t, actives, 2)
	assert.Equal(t, "12301933", actives[0].SiteID)
	assert.Equal(t, "13351000", actives[1].SiteID)

	limited, err := repo.FindActiveSites(ctx, 1)
	assert.NoError(t, err)
	assert.Len(t, limited, 1)
	assert.Equal(t, "12301933", limited[0].SiteID)

	all, err := repo.FindAllSites(ctx)
	assert.NoError(t, err)
	assert.Len(t, all, 3)

	// 5. Cleanup
	testDB.GormDB.Exec("DELETE FROM sites")
}

// TestSQLiteSyncRepository_ObservationUpsert tests that re-ingesting the same
// readings is idempotent and that window queries are half-open.
func TestSQLiteSyncRepository_ObservationUpsert(t *testing.T) {
	repo, txManager := setupSQLiteTestDB(t)

	ctx := context.Background()
	siteID := "14174000"
	base := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

	// 1. First ingest inserts five readings
	observations := testutil.NewTestObservations(siteID, base, 5, 15*time.Minute)
	txAdapter, err := txManager.Begin(ctx)
	assert.NoError(t, err)
	txCtx := context.WithValue(ctx, "tx", txAdapter)

	upserted, err := repo.UpsertObservations(txCtx, observations)
	assert.NoError(t, err)
	assert.EqualValues(t, 5, upserted)
	assert.NoError(t, txManager.Commit(txAdapter))

	count, err := repo.CountObservations(ctx, siteID)
	assert.NoError(t, err)
	assert.EqualValues(t, 5, count)

	// 2. Re-ingesting the same timestamps updates values in place
	revised := make([]model.Observation, 0, len(observations))
	for i, obs := range observations {
		revised = append(revised, testutil.NewTestObservation(siteID, obs.Timestamp, 200.0+float64(i)))
	}
	txAdapter, err = txManager.Begin(ctx)
	assert.NoError(t, err)
	txCtx = context.WithValue(ctx, "tx", txAdapter)
	_, err = repo.UpsertObservations(txCtx, revised)
	assert.NoError(t, err)
	assert.NoError(t, txManager.Commit(txAdapter))

	count, err = repo.CountObservations(ctx, siteID)
	assert.NoError(t, err)
	assert.EqualValues(t, 5, count)

	// 3. Window queries include the start and exclude the end
	window, err := repo.FindObservationsBySite(ctx, siteID, base.Add(15*time.Minute), base.Add(60*time.Minute))
	assert.NoError(t, err)
	assert.Len(t, window, 3)
	assert.Equal(t, 201.0, window[0].Value)
	assert.Equal(t, 202.0, window[1].Value)
	assert.Equal(t, 203.0, window[2].Value)

	// 4. An empty batch is a no-op
	txAdapter, err = txManager.Begin(ctx)
	assert.NoError(t, err)
	txCtx = context.WithValue(ctx, "tx", txAdapter)
	upserted, err = repo.UpsertObservations(txCtx, nil)
	assert.NoError(t, err)
	assert.EqualValues(t, 0, upserted)
	assert.NoError(t, txManager.Commit(txAdapter))

	// 5. Cleanup
	testDB.GormDB.Exec("DELETE FROM observations")
}

// TestSQLiteSyncRepository_PurgeObservations tests deleting readings older
// than a retention cutoff.
func TestSQLiteSyncRepository_PurgeObservations(t *testing.T) {
	repo, txManager := setupSQLiteTestDB(t)

	ctx := context.Background()
	siteID := "12358500"
	base := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	observations := testutil.NewTestObservations(siteID, base, 6, 12*time.Hour)
	txAdapter, err := txManager.Begin(ctx)
	assert.NoError(t, err)
	txCtx := context.WithValue(ctx, "tx", txAdapter)
	_, err = repo.UpsertObservations(txCtx, observations)
	assert.NoError(t, err)

	// Purge inside the same transaction, the way a retention pass runs.
	purged, err := repo.PurgeObservationsBefore(txCtx, base.Add(30*time.Hour))
	assert.NoError(t, err)
	assert.EqualValues(t, 3, purged)
	assert.NoError(t, txManager.Commit(txAdapter))

	count, err := repo.CountObservations(ctx, siteID)
	assert.NoError(t, err)
	assert.EqualValues(t, 3, count)

	remaining, err := repo.FindObservationsBySite(ctx, siteID, base, base.Add(96*time.Hour))
	assert.NoError(t, err)
	assert.Len(t, remaining, 3)
	assert.True(t, remaining[0].Timestamp.Equal(base.Add(36*time.Hour)))

	// Cleanup
	testDB.GormDB.Exec("DELETE FROM observations")
}

// TestSQLiteSyncRepository_WatermarkLifecycle tests that watermarks are absent
// until first set, advance with saves, and stay independent per job type.
func TestSQLiteSyncRepository_WatermarkLifecycle(t *testing.T) {
	repo, txManager := setupSQLiteTestDB(t)

	ctx := context.Background()
	siteID := "14191000"
	base := time.Date(2025, 3, 11, 6, 0, 0, 0, time.UTC)

	// 1. No watermark exists before the first successful sync
	_, err := repo.FindWatermark(ctx, siteID, model.JobTypeRealtime)
	assert.ErrorIs(t, err, repository.ErrWatermarkNotFound)

	// 2. Observations and their watermark commit in one transaction
	observations := testutil.NewTestObservations(siteID, base, 4, 15*time.Minute)
	latest, ok := model.LatestTimestamp(observations)
	assert.True(t, ok)

	txAdapter, err := txManager.Begin(ctx)
	assert.NoError(t, err)
	txCtx := context.WithValue(ctx, "tx", txAdapter)
	_, err = repo.UpsertObservations(txCtx, observations)
	assert.NoError(t, err)
	err = repo.SaveWatermark(txCtx, &model.Watermark{
		SiteID:        siteID,
		JobType:       model.JobTypeRealtime,
		LastTimestamp: latest,
	})
	assert.NoError(t, err)
	assert.NoError(t, txManager.Commit(txAdapter))

	wm, err := repo.FindWatermark(ctx, siteID, model.JobTypeRealtime)
	assert.NoError(t, err)
	assert.True(t, wm.LastTimestamp.Equal(latest))

	// 3. Saving again advances the watermark in place
	advanced := latest.Add(15 * time.Minute)
	txAdapter, err = txManager.Begin(ctx)
	assert.NoError(t, err)
	txCtx = context.WithValue(ctx, "tx", txAdapter)
	err = repo.SaveWatermark(txCtx, &model.Watermark{
		SiteID:        siteID,
		JobType:       model.JobTypeRealtime,
		LastTimestamp: advanced,
	})
	assert.NoError(t, err)
	assert.NoError(t, txManager.Commit(txAdapter))

	wm, err = repo.FindWatermark(ctx, siteID, model.JobTypeRealtime)
	assert.NoError(t, err)
	assert.True(t, wm.LastTimestamp.Equal(advanced))

	// 4. The daily watermark for the same site is tracked separately
	_, err = repo.FindWatermark(ctx, siteID, model.JobTypeDaily)
	assert.ErrorIs(t, err, repository.ErrWatermarkNotFound)

	// Cleanup
	testDB.GormDB.Exec("DELETE FROM watermarks")
	testDB.GormDB.Exec("DELETE FROM observations")
}

// TestSQLiteSyncRepository_JobDefinitionSeedAndUpdate tests that seeding never
// overwrites operator edits and that updates use optimistic locking.
func TestSQLiteSyncRepository_JobDefinitionSeedAndUpdate(t *testing.T) {
	repo, txManager := setupSQLiteTestDB(t)

	ctx := context.Background()

	// 1. Seed a definition
	def := testutil.NewTestJobDefinition("realtime_sync", model.JobTypeRealtime, 60)
	txAdapter, err := txManager.Begin(ctx)
	assert.NoError(t, err)
	txCtx := context.WithValue(ctx, "tx", txAdapter)
	assert.NoError(t, repo.SeedJobDefinition(txCtx, def))
	assert.NoError(t, txManager.Commit(txAdapter))

	found, err := repo.FindJobDefinitionByName(ctx, "realtime_sync")
	assert.NoError(t, err)
	assert.Equal(t, model.JobTypeRealtime, found.JobType)
	assert.Equal(t, 60, found.IntervalMinutes)
	assert.Equal(t, 0, found.Version)

	// 2. Re-seeding with different values leaves the existing row untouched
	reseed := testutil.NewTestJobDefinition("realtime_sync", model.JobTypeRealtime, 15)
	txAdapter, err = txManager.Begin(ctx)
	assert.NoError(t, err)
	txCtx = context.WithValue(ctx, "tx", txAdapter)
	assert.NoError(t, repo.SeedJobDefinition(txCtx, reseed))
	assert.NoError(t, txManager.Commit(txAdapter))

	found, err = repo.FindJobDefinitionByName(ctx, "realtime_sync")
	assert.NoError(t, err)
	assert.Equal(t, 60, found.IntervalMinutes)

	// 3. Rescheduling updates through optimistic locking
	now := time.Date(2025, 3, 12, 9, 0, 0, 0, time.UTC)
	found.Reschedule(now)
	txAdapter, err = txManager.Begin(ctx)
	assert.NoError(t, err)
	txCtx = context.WithValue(ctx, "tx", txAdapter)
	err = repo.UpdateJobDefinition(txCtx, found)
	assert.NoError(t, err)
	assert.NoError(t, txManager.Commit(txAdapter))
	assert.Equal(t, 1, found.Version)

	reloaded, err := repo.FindJobDefinitionByName(ctx, "realtime_sync")
	assert.NoError(t, err)
	assert.NotNil(t, reloaded.NextRun)
	assert.True(t, reloaded.NextRun.Equal(now.Add(time.Hour)))
	assert.NotNil(t, reloaded.LastRun)

	// 4. A stale copy fails its update with an optimistic locking error
	stale := *def // still carries version 0
	stale.Reschedule(now.Add(time.Minute))
	txAdapter, err = txManager.Begin(ctx)
	assert.NoError(t, err)
	txCtx = context.WithValue(ctx, "tx", txAdapter)
	err = repo.UpdateJobDefinition(txCtx, &stale)
	assert.Error(t, err)
	assert.True(t, exception.IsOptimisticLockingFailure(err))
	txManager.Rollback(txAdapter)

	// 5. Unknown names report ErrJobDefinitionNotFound
	_, err = repo.FindJobDefinitionByName(ctx, "no_such_job")
	assert.ErrorIs(t, err, repository.ErrJobDefinitionNotFound)

	// Cleanup
	testDB.GormDB.Exec("DELETE FROM job_definitions")
}

// TestSQLiteSyncRepository_ExecutionLogLifecycle tests appending a running
// record, finding it while open, and finalizing it in place.
func TestSQLiteSyncRepository_ExecutionLogLifecycle(t *testing.T) {
	repo, txManager := setupSQLiteTestDB(t)

	ctx := context.Background()
	start := time.Date(2025, 3, 12, 6, 0, 0, 0, time.UTC)

	var txAdapter tx.Tx
	var txCtx context.Context
	var err error

	// 1. Append a running record
	execution := testutil.NewTestJobExecution("daily_sync", start)
	txAdapter, err = txManager.Begin(ctx)
	assert.NoError(t, err)
	txCtx = context.WithValue(ctx, "tx", txAdapter)
	assert.NoError(t, repo.SaveJobExecution(txCtx, execution))
	assert.NoError(t, txManager.Commit(txAdapter))

	open, err := repo.FindOpenJobExecution(ctx, "daily_sync")
	assert.NoError(t, err)
	assert.Equal(t, execution.ID, open.ID)
	assert.Equal(t, model.ExecutionStatusRunning, open.Status)
	assert.True(t, open.IsOpen())

	// 2. Finalize the record in place
	execution.SitesAttempted = 3
	execution.SucceededCount = 2
	execution.FailedCount = 1
	execution.ObservationsUpserted = 120
	execution.ObservationsPurged = 40
	execution.AddFailureException(errors.New("site 14211720: fetch timed out"))
	execution.MarkAsPartial()

	txAdapter, err = txManager.Begin(ctx)
	assert.NoError(t, err)
	txCtx = context.WithValue(ctx, "tx", txAdapter)
	assert.NoError(t, repo.UpdateJobExecution(txCtx, execution))
	assert.NoError(t, txManager.Commit(txAdapter))
	assert.Equal(t, 1, execution.Version)

	found, err := repo.FindJobExecutionByID(ctx, execution.ID)
	assert.NoError(t, err)
	assert.Equal(t, model.ExecutionStatusPartial, found.Status)
	assert.NotNil(t, found.EndTime)
	assert.Equal(t, 3, found.SitesAttempted)
	assert.Equal(t, 2, found.SucceededCount)
	assert.Equal(t, 1, found.FailedCount)
	assert.EqualValues(t, 120, found.ObservationsUpserted)
	assert.EqualValues(t, 40, found.ObservationsPurged)
	assert.Equal(t, model.FailureList{"site 14211720: fetch timed out"}, found.Failures)
	assert.Equal(t, "site 14211720: fetch timed out", found.ErrorText)

	// 3. No open record remains once the run is finalized
	_, err = repo.FindOpenJobExecution(ctx, "daily_sync")
	assert.ErrorIs(t, err, repository.ErrJobExecutionNotFound)

	// 4. FindRecentJobExecutions returns newest first
	second := testutil.NewTestJobExecution("daily_sync", start.Add(time.Hour))
	txAdapter, err = txManager.Begin(ctx)
	assert.NoError(t, err)
	txCtx = context.WithValue(ctx, "tx", txAdapter)
	assert.NoError(t, repo.SaveJobExecution(txCtx, second))
	assert.NoError(t, txManager.Commit(txAdapter))

	recent, err := repo.FindRecentJobExecutions(ctx, "daily_sync", 10)
	assert.NoError(t, err)
	assert.Len(t, recent, 2)
	assert.Equal(t, second.ID, recent[0].ID)
	assert.Equal(t, execution.ID, recent[1].ID)

	open, err = repo.FindOpenJobExecution(ctx, "daily_sync")
	assert.NoError(t, err)
	assert.Equal(t, second.ID, open.ID)

	// 5. Cleanup
	testDB.GormDB.Exec("DELETE FROM execution_log")
}

// TestSQLiteSyncRepository_ExecutionLogOptimisticLocking tests if optimistic
// locking works for concurrent finalizations of the same record.
func TestSQLiteSyncRepository_ExecutionLogOptimisticLocking(t *testing.T) {
	repo, txManager := setupSQLiteTestDB(t)

	ctx := context.Background()
	start := time.Date(2025, 3, 12, 7, 0, 0, 0, time.UTC)

	execution := testutil.NewTestJobExecution("lock_test_sync", start)
	txAdapter, err := txManager.Begin(ctx)
	assert.NoError(t, err)
	txCtx := context.WithValue(ctx, "tx", txAdapter)
	repo.SaveJobExecution(txCtx, execution)
	txManager.Commit(txAdapter)

	stale, err := repo.FindJobExecutionByID(ctx, execution.ID) // Version 0
	assert.NoError(t, err)

	// Update with the original (version 0) -> Success
	execution.MarkAsSuccess()
	txAdapter, err = txManager.Begin(ctx)
	assert.NoError(t, err)
	txCtx = context.WithValue(ctx, "tx", txAdapter)
	err = repo.UpdateJobExecution(txCtx, execution) // Version 0 -> 1
	assert.NoError(t, err)
	txManager.Commit(txAdapter)
	assert.Equal(t, 1, execution.Version)

	// Update with the stale copy (version 0) -> Should fail
	stale.MarkAsFailed(errors.New("late finalization"))
	txAdapter, err = txManager.Begin(ctx)
	assert.NoError(t, err)
	txCtx = context.WithValue(ctx, "tx", txAdapter)
	err = repo.UpdateJobExecution(txCtx, stale)
	assert.Error(t, err)
	assert.True(t, exception.IsOptimisticLockingFailure(err))
	assert.Equal(t, 0, stale.Version)
	txManager.Rollback(txAdapter)

	// Cleanup
	testDB.GormDB.Exec("DELETE FROM execution_log")
}
