package driven

import (
	"context"

	"github.com/storekit-labs/storekit-core/internal/core/domain"
)

// OperationStore handles operation persistence.
// The registry flushes progress counters through Save mid-run, so a
// caller polling Get observes incremental progress.
type OperationStore interface {
	// Save creates or updates an operation
	Save(ctx context.Context, op *domain.Operation) error

	// Get retrieves an operation by id
	Get(ctx context.Context, id string) (*domain.Operation, error)

	// List retrieves operations, most recent first, up to limit
	List(ctx context.Context, limit int) ([]*domain.Operation, error)

	// Delete removes an operation record
	Delete(ctx context.Context, id string) error
}

// BackupStore handles backup snapshot persistence.
// Backup ids are never overwritten.
type BackupStore interface {
	// Save stores a backup; fails with domain.ErrAlreadyExists if the id is taken
	Save(ctx context.Context, backup *domain.Backup) error

	// Get retrieves a backup; fails with domain.ErrBackupNotFound if absent
	Get(ctx context.Context, id string) (*domain.Backup, error)

	// Delete removes a backup
	Delete(ctx context.Context, id string) error
}

// SyncJobStore handles sync job persistence.
type SyncJobStore interface {
	// Save creates or updates a sync job
	Save(ctx context.Context, job *domain.SyncJob) error

	// Get retrieves a sync job by id
	Get(ctx context.Context, id string) (*domain.SyncJob, error)

	// List retrieves sync jobs, most recent first, up to limit
	List(ctx context.Context, limit int) ([]*domain.SyncJob, error)
}

// StoreConfigStore handles registered store persistence.
type StoreConfigStore interface {
	// Save creates or updates a store
	Save(ctx context.Context, store *domain.Store) error

	// Get retrieves a store; fails with domain.ErrStoreNotFound if absent
	Get(ctx context.Context, id string) (*domain.Store, error)

	// List retrieves all registered stores
	List(ctx context.Context) ([]*domain.Store, error)

	// Delete removes a store registration
	Delete(ctx context.Context, id string) error
}
