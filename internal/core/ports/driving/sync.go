package driving

import (
	"context"

	"github.com/storekit-labs/storekit-core/internal/core/domain"
)

// ConflictDecision chooses a winner for one conflict recorded by a
// manual-resolution sync job.
type ConflictDecision struct {
	TargetStoreID string `json:"target_store_id"`
	Key           string `json:"key"`
	KeepSource    bool   `json:"keep_source"`
}

// SyncService drives multi-store synchronization.
type SyncService interface {
	// SyncStores runs a synchronization from one source store to the given
	// targets. A failure syncing one target does not abort the others.
	SyncStores(ctx context.Context, sourceID string, targetIDs []string, cfg domain.SyncConfig) (*domain.SyncJob, error)

	// GetSyncJob retrieves a sync job with per-target results.
	GetSyncJob(ctx context.Context, id string) (*domain.SyncJob, error)

	// ListSyncJobs retrieves recent sync jobs, most recent first.
	ListSyncJobs(ctx context.Context, limit int) ([]*domain.SyncJob, error)

	// ResolveConflicts applies decisions for conflicts recorded by a
	// finished sync job. Keeping the source writes the source version to
	// the target store; keeping the target leaves it untouched. Returns
	// the number of decisions applied.
	ResolveConflicts(ctx context.Context, jobID string, decisions []ConflictDecision) (int, error)
}

// StoreService manages the store registry.
type StoreService interface {
	// RegisterStore validates and saves a store configuration.
	RegisterStore(ctx context.Context, store *domain.Store) error

	// GetStore retrieves a registered store.
	GetStore(ctx context.Context, id string) (*domain.Store, error)

	// ListStores retrieves all registered stores.
	ListStores(ctx context.Context) ([]*domain.Store, error)

	// RemoveStore deletes a store registration.
	RemoveStore(ctx context.Context, id string) error
}
