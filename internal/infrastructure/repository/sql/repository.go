package sql

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/fx"

	coreAdapter "github.com/cascadiahydro/streamsync/internal/adapter"
	"github.com/cascadiahydro/streamsync/internal/adapter/database"
	"github.com/cascadiahydro/streamsync/internal/config"
	model "github.com/cascadiahydro/streamsync/internal/domain/model"
	repository "github.com/cascadiahydro/streamsync/internal/domain/repository"
	tx "github.com/cascadiahydro/streamsync/internal/tx"
	"github.com/cascadiahydro/streamsync/internal/support/exception"
)

// upsertBatchSize caps the rows per multi-row INSERT so large backfills stay
// within the bind-variable limits of the sqlite driver.
const upsertBatchSize = 500

// SQLSyncRepository implements the repository.SyncRepository interface.
type SQLSyncRepository struct {
	dbResolver coreAdapter.ResourceConnectionResolver // dbResolver is used to resolve database connections. It is expected to resolve to a database.DBConnectionResolver.
	// dbName is the name of the database connection used by this repository (e.g., "primary").
	dbName string
}

// NewSQLSyncRepository creates a new instance of SQLSyncRepository.
func NewSQLSyncRepository(dbResolver coreAdapter.ResourceConnectionResolver, dbName string) repository.SyncRepository {
	return &SQLSyncRepository{
		dbResolver: dbResolver,
		dbName:     dbName,
	}
}

// getDBConnection is a helper function to get the DBConnection used by the repository.
// This is used for operations that do not require an active transaction (e.g., ExecuteQuery, Count).
func (r *SQLSyncRepository) getDBConnection(ctx context.Context) (database.DBConnection, error) {
	// Use ResourceConnectionResolver to always get the latest ResourceConnection.
	connAsResource, err := r.dbResolver.ResolveConnection(ctx, r.dbName)
	if err != nil {
		return nil, exception.NewSyncError("SQLSyncRepository", fmt.Sprintf("Failed to resolve DB connection '%s'", r.dbName), err, false, true)
	}
	conn, ok := connAsResource.(database.DBConnection)
	if !ok {
		return nil, exception.NewSyncError("SQLSyncRepository", fmt.Sprintf("Resolved connection '%s' is not a database.DBConnection", r.dbName), nil, false, false)
	}
	return conn, nil
}

// getTxExecutor checks if a Tx exists in the context.
// If a transaction is found in the context, it returns the Tx (which implements TxExecutor); otherwise, it returns the DBConnection (which also implements TxExecutor).
// This is used for write operations (ExecuteUpdate, ExecuteUpsert, ExecuteDelete).
func (r *SQLSyncRepository) getTxExecutor(ctx context.Context) (tx.TxExecutor, error) {
	// Get Tx from context.
	if t, ok := ctx.Value("tx").(tx.Tx); ok {
		return t, nil // If a transaction exists in the context, use it.
	}
	// If no transaction is found in the context, use the direct DBConnection.
	return r.getDBConnection(ctx)
}

// --- Site implementation ---

func (r *SQLSyncRepository) SaveSite(ctx context.Context, site *model.Site) error {
	const op = "SQLSyncRepository.SaveSite"
	entity := fromDomainSite(site)

	executor, err := r.getTxExecutor(ctx)
	if err != nil {
		return err
	}

	conflictCols := []string{"site_id"}
	updateCols := []string{"name", "state_code", "huc_code", "latitude", "longitude", "is_active", "updated_at"}

	_, err = executor.ExecuteUpsert(ctx, entity, entity.TableName(), conflictCols, updateCols)

	if err != nil {
		return exception.NewStoreCommitError(op, fmt.Sprintf("failed to save site (ID: %s)", site.SiteID), err)
	}
	return nil
}

func (r *SQLSyncRepository) FindSiteByID(ctx context.Context, siteID string) (*model.Site, error) {
	const op = "SQLSyncRepository.FindSiteByID"
	var entity SiteEntity

	conn, err := r.getDBConnection(ctx)
	if err != nil {
		return nil, err
	}

	err = conn.ExecuteQueryAdvanced(ctx, &entity, map[string]interface{}{"site_id": siteID}, "", 1)

	if err != nil {
		if conn.IsTableNotExistError(err) { // If the table does not exist, treat it as not found.
			return nil, repository.ErrSiteNotFound
		}
		return nil, exception.NewSyncError(op, fmt.Sprintf("failed to find site by ID: %s", siteID), err, true, true)
	}

	if entity.SiteID == "" {
		return nil, repository.ErrSiteNotFound
	}

	return toDomainSite(&entity), nil
}

func (r *SQLSyncRepository) FindActiveSites(ctx context.Context, limit int) ([]*model.Site, error) {
	const op = "SQLSyncRepository.FindActiveSites"
	var entities []SiteEntity

	conn, err := r.getDBConnection(ctx)
	if err != nil {
		return nil, err
	}

	err = conn.ExecuteQueryAdvanced(ctx, &entities, map[string]interface{}{"is_active": true}, "site_id asc", limit)

	if err != nil {
		if conn.IsTableNotExistError(err) { // If the table does not exist, return an empty slice.
			return []*model.Site{}, nil
		}
		return nil, exception.NewSyncError(op, "failed to find active sites", err, true, true)
	}

	sites := make([]*model.Site, len(entities))
	for i := range entities {
		sites[i] = toDomainSite(&entities[i])
	}
	return sites, nil
}

func (r *SQLSyncRepository) FindAllSites(ctx context.Context) ([]*model.Site, error) {
	const op = "SQLSyncRepository.FindAllSites"
	var entities []SiteEntity

	conn, err := r.getDBConnection(ctx)
	if err != nil {
		return nil, err
	}

	err = conn.ExecuteQueryAdvanced(ctx, &entities, nil, "site_id asc", 0)

	if err != nil {
		if conn.IsTableNotExistError(err) {
			return []*model.Site{}, nil
		}
		return nil, exception.NewSyncError(op, "failed to find sites", err, true, true)
	}

	sites := make([]*model.Site, len(entities))
	for i := range entities {
		sites[i] = toDomainSite(&entities[i])
	}
	return sites, nil
}

// --- Observation implementation ---

func (r *SQLSyncRepository) UpsertObservations(ctx context.Context, observations []model.Observation) (int64, error) {
	const op = "SQLSyncRepository.UpsertObservations"
	if len(observations) == 0 {
		return 0, nil
	}

	executor, err := r.getTxExecutor(ctx)
	if err != nil {
		return 0, err
	}

	conflictCols := []string{"site_id", "timestamp"}
	updateCols := []string{"value", "quality", "ingested_at"}
	tableName := ObservationEntity{}.TableName()

	var total int64
	for offset := 0; offset < len(observations); offset += upsertBatchSize {
		end := offset + upsertBatchSize
		if end > len(observations) {
			end = len(observations)
		}

		entities := make([]ObservationEntity, 0, end-offset)
		for _, o := range observations[offset:end] {
			entities = append(entities, fromDomainObservation(o))
		}

		rowsAffected, err := executor.ExecuteUpsert(ctx, &entities, tableName, conflictCols, updateCols)
		if err != nil {
			return total, exception.NewStoreCommitError(op, fmt.Sprintf("failed to upsert %d observations", len(entities)), err)
		}
		total += rowsAffected
	}
	return total, nil
}

func (r *SQLSyncRepository) PurgeObservationsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	const op = "SQLSyncRepository.PurgeObservationsBefore"

	executor, err := r.getTxExecutor(ctx)
	if err != nil {
		return 0, err
	}

	rowsAffected, err := executor.ExecuteDelete(ctx, &ObservationEntity{}, ObservationEntity{}.TableName(), "timestamp < ?", cutoff)
	if err != nil {
		if executor.IsTableNotExistError(err) {
			return 0, nil
		}
		return 0, exception.NewStoreCommitError(op, fmt.Sprintf("failed to purge observations older than %s", cutoff.Format(time.RFC3339)), err)
	}
	return rowsAffected, nil
}

func (r *SQLSyncRepository) FindObservationsBySite(ctx context.Context, siteID string, start, end time.Time) ([]model.Observation, error) {
	const op = "SQLSyncRepository.FindObservationsBySite"
	var entities []ObservationEntity

	conn, err := r.getDBConnection(ctx)
	if err != nil {
		return nil, err
	}

	err = conn.ExecuteQueryWhere(ctx, &entities,
		"site_id = ? AND timestamp >= ? AND timestamp < ?",
		[]interface{}{siteID, start, end},
		"timestamp asc", 0)

	if err != nil {
		if conn.IsTableNotExistError(err) {
			return []model.Observation{}, nil
		}
		return nil, exception.NewSyncError(op, fmt.Sprintf("failed to find observations for site %s", siteID), err, true, true)
	}

	observations := make([]model.Observation, len(entities))
	for i, entity := range entities {
		observations[i] = toDomainObservation(entity)
	}
	return observations, nil
}

func (r *SQLSyncRepository) FindObservationsInRange(ctx context.Context, start, end time.Time) ([]model.Observation, error) {
	const op = "SQLSyncRepository.FindObservationsInRange"
	var entities []ObservationEntity

	conn, err := r.getDBConnection(ctx)
	if err != nil {
		return nil, err
	}

	err = conn.ExecuteQueryWhere(ctx, &entities,
		"timestamp >= ? AND timestamp < ?",
		[]interface{}{start, end},
		"site_id asc, timestamp asc", 0)

	if err != nil {
		if conn.IsTableNotExistError(err) {
			return []model.Observation{}, nil
		}
		return nil, exception.NewSyncError(op, "failed to find observations in range", err, true, true)
	}

	observations := make([]model.Observation, len(entities))
	for i, entity := range entities {
		observations[i] = toDomainObservation(entity)
	}
	return observations, nil
}

func (r *SQLSyncRepository) CountObservations(ctx context.Context, siteID string) (int64, error) {
	const op = "SQLSyncRepository.CountObservations"

	conn, err := r.getDBConnection(ctx)
	if err != nil {
		return 0, err
	}

	count, err := conn.Count(ctx, &ObservationEntity{}, map[string]interface{}{"site_id": siteID})
	if err != nil {
		if conn.IsTableNotExistError(err) {
			return 0, nil
		}
		return 0, exception.NewSyncError(op, fmt.Sprintf("failed to count observations for site %s", siteID), err, true, true)
	}
	return count, nil
}

// --- Watermark implementation ---

func (r *SQLSyncRepository) FindWatermark(ctx context.Context, siteID string, jobType model.JobType) (*model.Watermark, error) {
	const op = "SQLSyncRepository.FindWatermark"
	var entity WatermarkEntity

	conn, err := r.getDBConnection(ctx)
	if err != nil {
		return nil, err
	}

	err = conn.ExecuteQueryAdvanced(ctx, &entity, map[string]interface{}{"site_id": siteID, "job_type": string(jobType)}, "", 1)

	if err != nil {
		if conn.IsTableNotExistError(err) { // If the table does not exist, treat it as not found.
			return nil, repository.ErrWatermarkNotFound
		}
		return nil, exception.NewSyncError(op, fmt.Sprintf("failed to find watermark for site %s (%s)", siteID, jobType), err, true, true)
	}

	if entity.SiteID == "" {
		return nil, repository.ErrWatermarkNotFound
	}

	return toDomainWatermark(&entity), nil
}

func (r *SQLSyncRepository) SaveWatermark(ctx context.Context, watermark *model.Watermark) error {
	const op = "SQLSyncRepository.SaveWatermark"

	if watermark.UpdatedAt.IsZero() {
		watermark.UpdatedAt = time.Now()
	}
	entity := fromDomainWatermark(watermark)

	executor, err := r.getTxExecutor(ctx)
	if err != nil {
		return err
	}

	conflictCols := []string{"site_id", "job_type"}
	updateCols := []string{"last_timestamp", "updated_at"}

	_, err = executor.ExecuteUpsert(ctx, entity, entity.TableName(), conflictCols, updateCols)

	if err != nil {
		return exception.NewStoreCommitError(op, fmt.Sprintf("failed to save watermark for site %s (%s)", watermark.SiteID, watermark.JobType), err)
	}
	return nil
}

// --- JobDefinition implementation ---

func (r *SQLSyncRepository) SeedJobDefinition(ctx context.Context, definition *model.JobDefinition) error {
	const op = "SQLSyncRepository.SeedJobDefinition"
	entity := fromDomainJobDefinition(definition)

	executor, err := r.getTxExecutor(ctx)
	if err != nil {
		return err
	}

	// Empty update column list makes the conflict a DO NOTHING, so rows edited
	// by operators keep their values.
	_, err = executor.ExecuteUpsert(ctx, entity, entity.TableName(), []string{"job_name"}, nil)

	if err != nil {
		return exception.NewStoreCommitError(op, fmt.Sprintf("failed to seed job definition '%s'", definition.JobName), err)
	}
	return nil
}

func (r *SQLSyncRepository) UpdateJobDefinition(ctx context.Context, definition *model.JobDefinition) error {
	const op = "SQLSyncRepository.UpdateJobDefinition"

	originalVersion := definition.Version
	definition.Version++
	definition.UpdatedAt = time.Now()
	entity := fromDomainJobDefinition(definition)

	tableName := entity.TableName()
	executor, err := r.getTxExecutor(ctx)
	if err != nil {
		return err
	}

	// job_definitions has no surrogate ID column, so the job name is part of
	// the optimistic locking condition.
	rowsAffected, err := executor.ExecuteUpdate(
		ctx,
		entity,
		"UPDATE",
		tableName,
		map[string]interface{}{"job_name": definition.JobName, "version": originalVersion},
	)
	if err != nil {
		definition.Version = originalVersion // Rollback version
		return exception.NewStoreCommitError(op, fmt.Sprintf("failed to update job definition '%s'", definition.JobName), err)
	}
	if rowsAffected == 0 {
		definition.Version = originalVersion // Rollback version
		return exception.NewOptimisticLockingFailureException("repository", fmt.Sprintf("JobDefinition '%s' with version %d not found for update", definition.JobName, originalVersion), nil)
	}
	return nil
}

func (r *SQLSyncRepository) FindJobDefinitionByName(ctx context.Context, jobName string) (*model.JobDefinition, error) {
	const op = "SQLSyncRepository.FindJobDefinitionByName"
	var entity JobDefinitionEntity

	conn, err := r.getDBConnection(ctx)
	if err != nil {
		return nil, err
	}

	err = conn.ExecuteQueryAdvanced(ctx, &entity, map[string]interface{}{"job_name": jobName}, "", 1)

	if err != nil {
		if conn.IsTableNotExistError(err) { // If the table does not exist, treat it as not found.
			return nil, repository.ErrJobDefinitionNotFound
		}
		return nil, exception.NewSyncError(op, fmt.Sprintf("failed to find job definition by name: %s", jobName), err, true, true)
	}

	if entity.JobName == "" {
		return nil, repository.ErrJobDefinitionNotFound
	}

	return toDomainJobDefinition(&entity), nil
}

func (r *SQLSyncRepository) FindAllJobDefinitions(ctx context.Context) ([]*model.JobDefinition, error) {
	const op = "SQLSyncRepository.FindAllJobDefinitions"
	var entities []JobDefinitionEntity

	conn, err := r.getDBConnection(ctx)
	if err != nil {
		return nil, err
	}

	err = conn.ExecuteQueryAdvanced(ctx, &entities, nil, "job_name asc", 0)

	if err != nil {
		if conn.IsTableNotExistError(err) { // If the table does not exist, return an empty slice.
			return []*model.JobDefinition{}, nil
		}
		return nil, exception.NewSyncError(op, "failed to find job definitions", err, true, true)
	}

	definitions := make([]*model.JobDefinition, len(entities))
	for i := range entities {
		definitions[i] = toDomainJobDefinition(&entities[i])
	}
	return definitions, nil
}

// --- JobExecution implementation ---

func (r *SQLSyncRepository) SaveJobExecution(ctx context.Context, execution *model.JobExecution) error {
	const op = "SQLSyncRepository.SaveJobExecution"
	entity := fromDomainJobExecution(execution)

	executor, err := r.getTxExecutor(ctx)
	if err != nil {
		return err
	}

	_, err = executor.ExecuteUpdate(ctx, entity, "CREATE", entity.TableName(), nil)

	if err != nil {
		return exception.NewStoreCommitError(op, fmt.Sprintf("failed to save JobExecution (ID: %s)", execution.ID), err)
	}
	return nil
}

func (r *SQLSyncRepository) UpdateJobExecution(ctx context.Context, execution *model.JobExecution) error {
	const op = "SQLSyncRepository.UpdateJobExecution"

	originalVersion := execution.Version
	execution.Version++
	execution.UpdatedAt = time.Now()
	entity := fromDomainJobExecution(execution)

	tableName := entity.TableName()
	executor, err := r.getTxExecutor(ctx)
	if err != nil {
		return err
	}

	rowsAffected, err := executor.ExecuteUpdate(
		ctx,
		entity,
		"UPDATE",
		tableName,
		map[string]interface{}{"version": originalVersion},
	)
	if err != nil {
		execution.Version = originalVersion // Rollback version
		return exception.NewStoreCommitError(op, fmt.Sprintf("failed to update JobExecution (ID: %s)", execution.ID), err)
	}
	if rowsAffected == 0 {
		execution.Version = originalVersion // Rollback version
		return exception.NewOptimisticLockingFailureException("repository", fmt.Sprintf("JobExecution (ID: %s) with version %d not found for update", execution.ID, originalVersion), nil)
	}
	return nil
}

func (r *SQLSyncRepository) FindJobExecutionByID(ctx context.Context, executionID string) (*model.JobExecution, error) {
	const op = "SQLSyncRepository.FindJobExecutionByID"
	var entity JobExecutionEntity

	conn, err := r.getDBConnection(ctx)
	if err != nil {
		return nil, err
	}

	err = conn.ExecuteQueryAdvanced(ctx, &entity, map[string]interface{}{"id": executionID}, "", 1)

	if err != nil {
		if conn.IsTableNotExistError(err) { // If the table does not exist, treat it as not found.
			return nil, repository.ErrJobExecutionNotFound
		}
		return nil, exception.NewSyncError(op, fmt.Sprintf("failed to find JobExecution by ID: %s", executionID), err, true, true)
	}

	if entity.ID == "" {
		return nil, repository.ErrJobExecutionNotFound
	}

	return toDomainJobExecution(&entity), nil
}

func (r *SQLSyncRepository) FindOpenJobExecution(ctx context.Context, jobName string) (*model.JobExecution, error) {
	const op = "SQLSyncRepository.FindOpenJobExecution"
	var entities []JobExecutionEntity

	conn, err := r.getDBConnection(ctx)
	if err != nil {
		return nil, err
	}

	err = conn.ExecuteQueryWhere(ctx, &entities,
		"job_name = ? AND end_time IS NULL",
		[]interface{}{jobName},
		"start_time desc", 1)

	if err != nil {
		if conn.IsTableNotExistError(err) { // If the table does not exist, treat it as not found.
			return nil, repository.ErrJobExecutionNotFound
		}
		return nil, exception.NewSyncError(op, fmt.Sprintf("failed to find open JobExecution for job '%s'", jobName), err, true, true)
	}

	if len(entities) == 0 {
		return nil, repository.ErrJobExecutionNotFound
	}

	return toDomainJobExecution(&entities[0]), nil
}

func (r *SQLSyncRepository) FindRecentJobExecutions(ctx context.Context, jobName string, limit int) ([]*model.JobExecution, error) {
	const op = "SQLSyncRepository.FindRecentJobExecutions"
	var entities []JobExecutionEntity

	conn, err := r.getDBConnection(ctx)
	if err != nil {
		return nil, err
	}

	err = conn.ExecuteQueryAdvanced(ctx, &entities, map[string]interface{}{"job_name": jobName}, "start_time desc", limit)

	if err != nil {
		if conn.IsTableNotExistError(err) { // If the table does not exist, return an empty slice.
			return []*model.JobExecution{}, nil
		}
		return nil, exception.NewSyncError(op, fmt.Sprintf("failed to find recent JobExecutions for job '%s'", jobName), err, true, true)
	}

	executions := make([]*model.JobExecution, len(entities))
	for i := range entities {
		executions[i] = toDomainJobExecution(&entities[i])
	}
	return executions, nil
}

// Close implements repository.SyncRepository.
func (r *SQLSyncRepository) Close() error {
	// The underlying DBConnection is managed by the DBProvider and its lifecycle,
	// so it is not closed directly by the repository.
	return nil
}

// Verify that SQLSyncRepository implements all embedded interfaces of repository.SyncRepository.
var _ repository.SyncRepository = (*SQLSyncRepository)(nil)

// SyncRepositoryParams defines the dependencies required to create a NewSyncRepository.
type SyncRepositoryParams struct {
	fx.In
	// DBResolver is used to resolve database connections.
	DBResolver coreAdapter.ResourceConnectionResolver
	// Cfg is the application configuration.
	Cfg *config.Config
}

// NewSyncRepository creates and returns a SyncRepository instance.
// This function is intended to be used as an Fx provider.
func NewSyncRepository(p SyncRepositoryParams) repository.SyncRepository {
	// Determine the database connection name for the repository. It defaults
	// to "primary" if not explicitly configured.
	dbName := p.Cfg.Streamsync.Database.Default
	if dbName == "" {
		dbName = "primary"
	}

	return NewSQLSyncRepository(p.DBResolver, dbName)
}
