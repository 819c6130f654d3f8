package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/storekit-labs/storekit-core/internal/core/domain"
	"github.com/storekit-labs/storekit-core/internal/core/ports/driven"
	"github.com/storekit-labs/storekit-core/internal/core/ports/driving"
)

// OperationManager implements the staged mutation pipeline: every
// execution starts from a registered preview, runs under a safety config,
// and can be rolled back from its backup.
type OperationManager struct {
	registry *OperationRegistry
	preview  *PreviewService
	executor *BatchExecutor
	backups  *BackupService
	stores   driven.StoreConfigStore
	clients  driven.StoreClientFactory
	logger   *slog.Logger
}

// OperationManagerConfig holds dependencies for OperationManager.
type OperationManagerConfig struct {
	Registry *OperationRegistry
	Preview  *PreviewService
	Executor *BatchExecutor
	Backups  *BackupService
	Stores   driven.StoreConfigStore
	Clients  driven.StoreClientFactory
	Logger   *slog.Logger
}

// NewOperationManager creates a new operation manager.
func NewOperationManager(cfg OperationManagerConfig) *OperationManager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &OperationManager{
		registry: cfg.Registry,
		preview:  cfg.Preview,
		executor: cfg.Executor,
		backups:  cfg.Backups,
		stores:   cfg.Stores,
		clients:  cfg.Clients,
		logger:   logger,
	}
}

var _ driving.OperationService = (*OperationManager)(nil)

// Preview computes a non-mutating forecast and registers the operation in
// preview state.
func (m *OperationManager) Preview(ctx context.Context, req driving.PreviewRequest) (*domain.Preview, error) {
	if req.StoreID == "" {
		return nil, fmt.Errorf("%w: store_id is required", domain.ErrInvalidInput)
	}
	client, err := m.storeClient(ctx, req.StoreID)
	if err != nil {
		return nil, err
	}
	return m.preview.Generate(ctx, client, domain.PreviewData{
		Kind:    req.Kind,
		StoreID: req.StoreID,
		Targets: req.Targets,
		Changes: req.Changes,
	})
}

// Execute runs a previewed operation. Live runs with the confirmation
// flag still set are rejected before any state changes.
func (m *OperationManager) Execute(ctx context.Context, operationID string, cfg domain.SafetyConfig) (*driving.ExecuteResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !cfg.DryRun && cfg.ConfirmationRequired {
		return nil, domain.ErrConfirmationRequired
	}
	op, runCtx, err := m.registry.Begin(ctx, operationID)
	if err != nil {
		return nil, err
	}
	if !op.PreviewData.Kind.Valid() {
		return nil, m.failSetup(ctx, op, fmt.Errorf("%w: unknown operation kind %q", domain.ErrInvalidInput, op.PreviewData.Kind))
	}

	client, err := m.storeClient(ctx, op.PreviewData.StoreID)
	if err != nil {
		return nil, m.failSetup(ctx, op, err)
	}

	if cfg.BackupBefore && !cfg.DryRun {
		backup, err := m.backups.Create(ctx, client, op)
		if err != nil {
			return nil, m.failSetup(ctx, op, fmt.Errorf("backup: %w", err))
		}
		op.BackupID = backup.ID
	}

	report, err := m.executor.Run(runCtx, op, client, cfg)
	if err != nil {
		return nil, m.failSetup(ctx, op, err)
	}

	// Per-item failures under the max_failures ceiling leave the run
	// completed, with counters and errors intact; failed is reserved for
	// runs the executor aborted.
	status := domain.OperationStatusCompleted
	switch {
	case report.Cancelled:
		status = domain.OperationStatusCancelled
	case report.Aborted:
		status = domain.OperationStatusFailed
	}

	if err := m.registry.Finish(ctx, op, status); err != nil {
		return nil, err
	}

	result := &driving.ExecuteResult{
		OperationID:  op.ID,
		Status:       op.Status,
		Mode:         executionMode(cfg),
		Successful:   report.Successful,
		Failed:       report.Failed,
		NotProcessed: report.NotProcessed,
		Errors:       report.Errors,
	}

	if status == domain.OperationStatusFailed && cfg.RollbackOnError && !cfg.DryRun && op.BackupID != "" {
		restore, restoreErr := m.backups.Restore(ctx, client, op.BackupID)
		result.Rollback = restore
		if restoreErr != nil {
			m.logger.Error("automatic rollback failed", "operation_id", op.ID, "backup_id", op.BackupID, "error", restoreErr)
		} else if err := m.registry.MarkRolledBack(ctx, op); err != nil {
			m.logger.Error("failed to record rollback", "operation_id", op.ID, "error", err)
		} else {
			result.Status = op.Status
		}
	}

	if report.Aborted {
		return result, fmt.Errorf("%w: stopped after %d failures", domain.ErrPartialFailure, report.Failed)
	}
	return result, nil
}

// failSetup marks an already-running operation failed after a setup error
// so its execution lock is released.
func (m *OperationManager) failSetup(ctx context.Context, op *domain.Operation, cause error) error {
	op.RecordError(cause.Error())
	if err := m.registry.Finish(ctx, op, domain.OperationStatusFailed); err != nil {
		m.logger.Error("failed to mark operation failed", "operation_id", op.ID, "error", err)
	}
	return cause
}

// Rollback restores the operation's backup and records the rollback on
// the operation. Valid only for completed or failed operations that took
// a backup.
func (m *OperationManager) Rollback(ctx context.Context, operationID string) (*domain.RestoreResult, error) {
	op, err := m.registry.Get(ctx, operationID)
	if err != nil {
		return nil, err
	}
	switch op.Status {
	case domain.OperationStatusCompleted, domain.OperationStatusFailed:
	default:
		return nil, fmt.Errorf("%w: cannot roll back operation in %s state", domain.ErrInvalidState, op.Status)
	}
	if op.BackupID == "" {
		return nil, fmt.Errorf("%w: operation %s has no backup", domain.ErrBackupNotFound, operationID)
	}

	client, err := m.storeClient(ctx, op.PreviewData.StoreID)
	if err != nil {
		return nil, err
	}

	result, err := m.backups.Restore(ctx, client, op.BackupID)
	if err != nil {
		return result, err
	}
	if err := m.registry.MarkRolledBack(ctx, op); err != nil {
		return result, err
	}
	return result, nil
}

// Cancel stops a running operation.
func (m *OperationManager) Cancel(ctx context.Context, operationID string) error {
	return m.registry.Cancel(ctx, operationID)
}

// GetOperation retrieves an operation with live progress counters.
func (m *OperationManager) GetOperation(ctx context.Context, operationID string) (*domain.Operation, error) {
	return m.registry.Get(ctx, operationID)
}

// ListOperations retrieves recent operations, most recent first.
func (m *OperationManager) ListOperations(ctx context.Context, limit int) ([]*domain.Operation, error) {
	return m.registry.List(ctx, limit)
}

func (m *OperationManager) storeClient(ctx context.Context, storeID string) (driven.StoreClient, error) {
	store, err := m.stores.Get(ctx, storeID)
	if err != nil {
		return nil, err
	}
	if !store.Enabled {
		return nil, fmt.Errorf("%w: %s", domain.ErrStoreDisabled, storeID)
	}
	return m.clients.Client(store)
}

func executionMode(cfg domain.SafetyConfig) string {
	if cfg.DryRun {
		return "dry_run"
	}
	return "live"
}
