package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/storekit-labs/storekit-core/internal/core/domain"
	"github.com/storekit-labs/storekit-core/internal/core/ports/driven"
)

// executionLockTTL bounds how long a crashed worker can hold an
// operation's distributed lock before another instance may retry.
const executionLockTTL = 30 * time.Minute

// OperationRegistry is the authoritative record of operation lifecycle
// state. A single mutex owns every transition; an operation is "active"
// exactly when its persisted status is running, so the activity set can
// never drift from the status column. Across instances the same guarantee
// is upheld by a distributed lock per operation id.
type OperationRegistry struct {
	store  driven.OperationStore
	lock   driven.DistributedLock
	logger *slog.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// OperationRegistryConfig holds dependencies for OperationRegistry.
type OperationRegistryConfig struct {
	Store  driven.OperationStore
	Lock   driven.DistributedLock
	Logger *slog.Logger
}

// NewOperationRegistry creates a new operation registry.
func NewOperationRegistry(cfg OperationRegistryConfig) *OperationRegistry {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &OperationRegistry{
		store:   cfg.Store,
		lock:    cfg.Lock,
		logger:  logger,
		cancels: make(map[string]context.CancelFunc),
	}
}

// Register persists a freshly previewed operation.
func (r *OperationRegistry) Register(ctx context.Context, op *domain.Operation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store.Save(ctx, op)
}

// Begin moves an operation from preview to running and returns a derived
// context that Cancel can interrupt. Exactly one concurrent Begin per
// operation id can succeed; the loser fails with ErrAlreadyRunning rather
// than blocking or queuing.
func (r *OperationRegistry) Begin(ctx context.Context, id string) (*domain.Operation, context.Context, error) {
	acquired, err := r.lock.Acquire(ctx, "operation:"+id, executionLockTTL)
	if err != nil {
		return nil, nil, fmt.Errorf("acquire execution lock: %w", err)
	}
	if !acquired {
		return nil, nil, domain.ErrAlreadyRunning
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	op, err := r.store.Get(ctx, id)
	if err != nil {
		r.releaseLock(ctx, id)
		return nil, nil, err
	}

	switch op.Status {
	case domain.OperationStatusPreview:
		// proceed
	case domain.OperationStatusRunning:
		r.releaseLock(ctx, id)
		return nil, nil, domain.ErrAlreadyRunning
	default:
		r.releaseLock(ctx, id)
		return nil, nil, fmt.Errorf("%w: operation is %s, not preview", domain.ErrInvalidState, op.Status)
	}

	if err := op.Transition(domain.OperationStatusRunning); err != nil {
		r.releaseLock(ctx, id)
		return nil, nil, err
	}
	if err := r.store.Save(ctx, op); err != nil {
		r.releaseLock(ctx, id)
		return nil, nil, fmt.Errorf("persist running state: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	r.cancels[id] = cancel

	r.logger.Info("operation started", "operation_id", id, "kind", op.PreviewData.Kind, "total_items", op.TotalItems)
	return op, runCtx, nil
}

// Finish moves a running operation to its terminal status and releases
// the execution lock.
func (r *OperationRegistry) Finish(ctx context.Context, op *domain.Operation, to domain.OperationStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cancel, ok := r.cancels[op.ID]; ok {
		cancel()
		delete(r.cancels, op.ID)
	}
	r.releaseLock(ctx, op.ID)

	if err := op.Transition(to); err != nil {
		return err
	}
	if err := r.store.Save(ctx, op); err != nil {
		return fmt.Errorf("persist terminal state: %w", err)
	}

	r.logger.Info("operation finished",
		"operation_id", op.ID,
		"status", op.Status,
		"successful", op.SuccessfulItems,
		"failed", op.FailedItems,
	)
	return nil
}

// MarkRolledBack transitions a terminal operation after a successful restore.
func (r *OperationRegistry) MarkRolledBack(ctx context.Context, op *domain.Operation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var to domain.OperationStatus
	switch op.Status {
	case domain.OperationStatusCompleted:
		to = domain.OperationStatusRolledBack
	case domain.OperationStatusFailed:
		to = domain.OperationStatusFailedAndRolledBack
	default:
		return fmt.Errorf("%w: cannot roll back operation in %s state", domain.ErrInvalidState, op.Status)
	}

	if err := op.Transition(to); err != nil {
		return err
	}
	return r.store.Save(ctx, op)
}

// Cancel interrupts a running operation. Advisory: writes already
// dispatched are not retracted. The request is persisted on the
// operation record, so it reaches an executor running in another
// process at its next batch boundary.
func (r *OperationRegistry) Cancel(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	op, err := r.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if op.Status != domain.OperationStatusRunning {
		return fmt.Errorf("%w: cannot cancel operation in %s state", domain.ErrInvalidState, op.Status)
	}

	op.CancelRequested = true
	if err := r.store.Save(ctx, op); err != nil {
		return fmt.Errorf("persist cancel request: %w", err)
	}
	if cancel, ok := r.cancels[id]; ok {
		cancel()
	}
	r.logger.Info("operation cancel requested", "operation_id", id)
	return nil
}

// Get retrieves an operation with its live progress counters.
func (r *OperationRegistry) Get(ctx context.Context, id string) (*domain.Operation, error) {
	return r.store.Get(ctx, id)
}

// List retrieves recent operations, most recent first.
func (r *OperationRegistry) List(ctx context.Context, limit int) ([]*domain.Operation, error) {
	return r.store.List(ctx, limit)
}

func (r *OperationRegistry) releaseLock(ctx context.Context, id string) {
	if err := r.lock.Release(ctx, "operation:"+id); err != nil {
		r.logger.Warn("failed to release execution lock", "operation_id", id, "error", err)
	}
}
