package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/storekit-labs/storekit-core/internal/core/domain"
	"github.com/storekit-labs/storekit-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.OperationStore = (*OperationStore)(nil)

// OperationStore implements driven.OperationStore using PostgreSQL.
// Save is an upsert; the executor calls it on every batch to flush
// progress counters.
type OperationStore struct {
	db *DB
}

// NewOperationStore creates a new OperationStore
func NewOperationStore(db *DB) *OperationStore {
	return &OperationStore{db: db}
}

// Save creates or updates an operation
func (s *OperationStore) Save(ctx context.Context, op *domain.Operation) error {
	errorsJSON, err := json.Marshal(op.Errors)
	if err != nil {
		return fmt.Errorf("marshal errors: %w", err)
	}
	previewJSON, err := json.Marshal(op.PreviewData)
	if err != nil {
		return fmt.Errorf("marshal preview data: %w", err)
	}

	query := `
		INSERT INTO operations (
			id, status, started_at, completed_at,
			total_items, processed_items, successful_items, failed_items,
			errors, preview_data, backup_id, cancel_requested, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			started_at = EXCLUDED.started_at,
			completed_at = EXCLUDED.completed_at,
			processed_items = EXCLUDED.processed_items,
			successful_items = EXCLUDED.successful_items,
			failed_items = EXCLUDED.failed_items,
			errors = EXCLUDED.errors,
			backup_id = EXCLUDED.backup_id,
			cancel_requested = EXCLUDED.cancel_requested,
			updated_at = EXCLUDED.updated_at
	`

	_, err = s.db.ExecContext(ctx, query,
		op.ID,
		string(op.Status),
		nullTime(op.Started),
		nullTime(op.Completed),
		op.TotalItems,
		op.ProcessedItems,
		op.SuccessfulItems,
		op.FailedItems,
		errorsJSON,
		previewJSON,
		op.BackupID,
		op.CancelRequested,
		op.CreatedAt,
		op.UpdatedAt,
	)
	return err
}

// Get retrieves an operation by id
func (s *OperationStore) Get(ctx context.Context, id string) (*domain.Operation, error) {
	query := selectOperation + ` WHERE id = $1`

	op, err := scanOperation(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return op, nil
}

// List retrieves operations, most recent first
func (s *OperationStore) List(ctx context.Context, limit int) ([]*domain.Operation, error) {
	query := selectOperation + ` ORDER BY created_at DESC`
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

	var ops []*domain.Operation
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, rows.Err()
}

// Delete removes an operation record
func (s *OperationStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM operations WHERE id = $1`, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

const selectOperation = `
	SELECT id, status, started_at, completed_at,
	       total_items, processed_items, successful_items, failed_items,
	       errors, preview_data, backup_id, cancel_requested, created_at, updated_at
	FROM operations
`

func scanOperation(row rowScanner) (*domain.Operation, error) {
	var op domain.Operation
	var started, completed sql.NullTime
	var errorsJSON, previewJSON []byte

	err := row.Scan(
		&op.ID,
		&op.Status,
		&started,
		&completed,
		&op.TotalItems,
		&op.ProcessedItems,
		&op.SuccessfulItems,
		&op.FailedItems,
		&errorsJSON,
		&previewJSON,
		&op.BackupID,
		&op.CancelRequested,
		&op.CreatedAt,
		&op.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if started.Valid {
		op.Started = &started.Time
	}
	if completed.Valid {
		op.Completed = &completed.Time
	}
	if len(errorsJSON) > 0 {
		if err := json.Unmarshal(errorsJSON, &op.Errors); err != nil {
			return nil, fmt.Errorf("unmarshal errors: %w", err)
		}
	}
	if len(previewJSON) > 0 {
		if err := json.Unmarshal(previewJSON, &op.PreviewData); err != nil {
			return nil, fmt.Errorf("unmarshal preview data: %w", err)
		}
	}
	return &op, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
