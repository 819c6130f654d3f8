package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/storekit-labs/storekit-core/internal/core/domain"
	"github.com/storekit-labs/storekit-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.BackupStore = (*BackupStore)(nil)

// BackupStore implements driven.BackupStore using PostgreSQL.
// Backup ids are write-once: a plain INSERT guarantees an existing
// snapshot is never overwritten.
type BackupStore struct {
	db *DB
}

// NewBackupStore creates a new BackupStore
func NewBackupStore(db *DB) *BackupStore {
	return &BackupStore{db: db}
}

// Save stores a backup snapshot. Fails with domain.ErrAlreadyExists if
// the id is taken.
func (s *BackupStore) Save(ctx context.Context, backup *domain.Backup) error {
	itemsJSON, err := json.Marshal(backup.Items)
	if err != nil {
		return fmt.Errorf("marshal snapshot items: %w", err)
	}

	query := `
		INSERT INTO backups (id, operation_id, store_id, items, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err = s.db.ExecContext(ctx, query,
		backup.ID,
		backup.OperationID,
		backup.StoreID,
		itemsJSON,
		backup.CreatedAt,
	)
	if isUniqueViolation(err) {
		return domain.ErrAlreadyExists
	}
	return err
}

// Get retrieves a backup by id
func (s *BackupStore) Get(ctx context.Context, id string) (*domain.Backup, error) {
	query := `
		SELECT id, operation_id, store_id, items, created_at
		FROM backups
		WHERE id = $1
	`

	var backup domain.Backup
	var itemsJSON []byte

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&backup.ID,
		&backup.OperationID,
		&backup.StoreID,
		&itemsJSON,
		&backup.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrBackupNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(itemsJSON, &backup.Items); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot items: %w", err)
	}
	return &backup, nil
}

// Delete removes a backup
func (s *BackupStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM backups WHERE id = $1`, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrBackupNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	pqErr, ok := err.(*pq.Error)
	return ok && pqErr.Code == "23505"
}
