package services

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/storekit-labs/storekit-core/internal/core/domain"
	"github.com/storekit-labs/storekit-core/internal/core/ports/driven"
)

// ExecutionReport summarizes one batch run. Counters here mirror the
// operation's own counters at the moment the run stopped.
type ExecutionReport struct {
	Successful   int
	Failed       int
	NotProcessed int
	Errors       []string
	// Aborted is set when the failure ceiling was exceeded and the
	// remaining targets were left untouched.
	Aborted bool
	// Cancelled is set when the run context was cancelled mid-run.
	Cancelled bool
}

// BatchExecutor processes an operation's target list in batches,
// flushing progress counters to the operation store after every batch so
// a poller observes incremental progress.
type BatchExecutor struct {
	store  driven.OperationStore
	logger *slog.Logger
}

// NewBatchExecutor creates a new batch executor.
func NewBatchExecutor(store driven.OperationStore, logger *slog.Logger) *BatchExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchExecutor{store: store, logger: logger}
}

// Run executes the operation's mutation over its full target list.
// In dry-run mode every read and transformation happens but no write is
// dispatched. Failures past cfg.MaxFailures abort the run; targets after
// the abort point are counted as not processed.
func (e *BatchExecutor) Run(
	ctx context.Context,
	op *domain.Operation,
	client driven.StoreClient,
	cfg domain.SafetyConfig,
) (*ExecutionReport, error) {
	mutate, err := mutatorFor(op.PreviewData.Kind)
	if err != nil {
		return nil, err
	}

	// Burst 1 means the first batch starts immediately and each later
	// batch waits out the configured delay.
	var limiter *rate.Limiter
	if cfg.DelayBetweenBatches > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.DelayBetweenBatches), 1)
	}

	report := &ExecutionReport{}
	targets := op.PreviewData.Targets
	changes := op.PreviewData.Changes

batches:
	for start := 0; start < len(targets); start += cfg.BatchSize {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				report.Cancelled = true
				break
			}
		}

		end := start + cfg.BatchSize
		if end > len(targets) {
			end = len(targets)
		}

		for _, target := range targets[start:end] {
			if ctx.Err() != nil {
				report.Cancelled = true
				break batches
			}

			if err := mutate(ctx, client, target, changes, cfg.DryRun); err != nil {
				op.FailedItems++
				op.ProcessedItems++
				msg := fmt.Sprintf("%s: %v", target, err)
				op.RecordError(msg)
				report.Errors = append(report.Errors, msg)

				if op.FailedItems > cfg.MaxFailures {
					op.RecordError(fmt.Sprintf("aborted: failure count exceeded max_failures=%d", cfg.MaxFailures))
					report.Aborted = true
					break batches
				}
				continue
			}
			op.SuccessfulItems++
			op.ProcessedItems++
		}

		// A cancel from another process lands on the stored record;
		// pick it up before the flush so the flag survives it.
		if stored, err := e.store.Get(ctx, op.ID); err == nil && stored.CancelRequested {
			op.CancelRequested = true
		}

		if err := e.store.Save(ctx, op); err != nil {
			e.logger.Warn("failed to flush operation progress", "operation_id", op.ID, "error", err)
		}

		e.logger.Debug("batch processed",
			"operation_id", op.ID,
			"processed", op.ProcessedItems,
			"successful", op.SuccessfulItems,
			"failed", op.FailedItems,
		)

		if op.CancelRequested {
			report.Cancelled = true
			break
		}
	}

	report.Successful = op.SuccessfulItems
	report.Failed = op.FailedItems
	report.NotProcessed = op.TotalItems - op.ProcessedItems

	if err := e.store.Save(ctx, op); err != nil {
		e.logger.Warn("failed to flush operation progress", "operation_id", op.ID, "error", err)
	}
	return report, nil
}

// itemMutator applies one operation kind to one target. When dry is set
// it performs every read and transformation but dispatches no write.
type itemMutator func(ctx context.Context, client driven.StoreClient, target string, changes map[string]any, dry bool) error

func mutatorFor(kind domain.OperationKind) (itemMutator, error) {
	switch kind {
	case domain.OperationKindUpdateProducts, domain.OperationKindUpdatePrices:
		return updateMutator(domain.ContentClassProducts), nil
	case domain.OperationKindUpdateCategories:
		return updateMutator(domain.ContentClassCategories), nil
	case domain.OperationKindBulkDelete:
		return deleteMutator, nil
	case domain.OperationKindCreateProducts:
		return createMutator, nil
	default:
		return nil, fmt.Errorf("%w: unknown operation kind %q", domain.ErrInvalidInput, kind)
	}
}

func updateMutator(class domain.ContentClass) itemMutator {
	return func(ctx context.Context, client driven.StoreClient, target string, changes map[string]any, dry bool) error {
		current, err := client.GetItem(ctx, class, target)
		if err != nil {
			return err
		}
		updated := current.ApplyChanges(changes)
		if dry {
			return nil
		}
		_, err = client.UpdateItem(ctx, class, target, updated)
		return err
	}
}

func deleteMutator(ctx context.Context, client driven.StoreClient, target string, changes map[string]any, dry bool) error {
	class := deleteClass(changes)
	if _, err := client.GetItem(ctx, class, target); err != nil {
		return err
	}
	if dry {
		return nil
	}
	return client.DeleteItem(ctx, class, target)
}

// createMutator treats the target as the new item's SKU.
func createMutator(ctx context.Context, client driven.StoreClient, target string, changes map[string]any, dry bool) error {
	item := &domain.Item{SKU: target}
	for field, value := range changes {
		item.SetField(field, value)
	}
	if dry {
		return nil
	}
	_, err := client.CreateItem(ctx, domain.ContentClassProducts, item)
	return err
}
