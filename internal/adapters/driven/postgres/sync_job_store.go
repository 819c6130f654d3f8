package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/storekit-labs/storekit-core/internal/core/domain"
	"github.com/storekit-labs/storekit-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.SyncJobStore = (*SyncJobStore)(nil)

// SyncJobStore implements driven.SyncJobStore using PostgreSQL
type SyncJobStore struct {
	db *DB
}

// NewSyncJobStore creates a new SyncJobStore
func NewSyncJobStore(db *DB) *SyncJobStore {
	return &SyncJobStore{db: db}
}

// Save creates or updates a sync job
func (s *SyncJobStore) Save(ctx context.Context, job *domain.SyncJob) error {
	targetsJSON, err := json.Marshal(job.TargetStoreIDs)
	if err != nil {
		return fmt.Errorf("marshal targets: %w", err)
	}
	configJSON, err := json.Marshal(job.Config)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	resultsJSON, err := json.Marshal(job.Results)
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}

	query := `
		INSERT INTO sync_jobs (
			id, source_store_id, target_store_ids, config, status,
			started_at, completed_at, results, error, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			started_at = EXCLUDED.started_at,
			completed_at = EXCLUDED.completed_at,
			results = EXCLUDED.results,
			error = EXCLUDED.error,
			updated_at = EXCLUDED.updated_at
	`

	_, err = s.db.ExecContext(ctx, query,
		job.ID,
		job.SourceStoreID,
		targetsJSON,
		configJSON,
		string(job.Status),
		nullTime(job.Started),
		nullTime(job.Completed),
		resultsJSON,
		job.Error,
		job.CreatedAt,
		job.UpdatedAt,
	)
	return err
}

// Get retrieves a sync job by id
func (s *SyncJobStore) Get(ctx context.Context, id string) (*domain.SyncJob, error) {
	query := selectSyncJob + ` WHERE id = $1`

	job, err := scanSyncJob(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

// List retrieves sync jobs, most recent first
func (s *SyncJobStore) List(ctx context.Context, limit int) ([]*domain.SyncJob, error) {
	query := selectSyncJob + ` ORDER BY created_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*domain.SyncJob
	for rows.Next() {
		job, err := scanSyncJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

const selectSyncJob = `
	SELECT id, source_store_id, target_store_ids, config, status,
	       started_at, completed_at, results, error, created_at, updated_at
	FROM sync_jobs
`

func scanSyncJob(row rowScanner) (*domain.SyncJob, error) {
	var job domain.SyncJob
	var started, completed sql.NullTime
	var targetsJSON, configJSON, resultsJSON []byte

	err := row.Scan(
		&job.ID,
		&job.SourceStoreID,
		&targetsJSON,
		&configJSON,
		&job.Status,
		&started,
		&completed,
		&resultsJSON,
		&job.Error,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if started.Valid {
		job.Started = &started.Time
	}
	if completed.Valid {
		job.Completed = &completed.Time
	}
	if err := json.Unmarshal(targetsJSON, &job.TargetStoreIDs); err != nil {
		return nil, fmt.Errorf("unmarshal targets: %w", err)
	}
	if err := json.Unmarshal(configJSON, &job.Config); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if len(resultsJSON) > 0 {
		if err := json.Unmarshal(resultsJSON, &job.Results); err != nil {
			return nil, fmt.Errorf("unmarshal results: %w", err)
		}
	}
	return &job, nil
}
