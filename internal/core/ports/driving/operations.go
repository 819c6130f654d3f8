package driving

import (
	"context"

	"github.com/storekit-labs/storekit-core/internal/core/domain"
)

// PreviewRequest describes a requested bulk mutation.
type PreviewRequest struct {
	StoreID string               `json:"store_id"`
	Kind    domain.OperationKind `json:"operation"`
	Targets []string             `json:"targets"`
	Changes map[string]any       `json:"changes"`
}

// ExecuteResult is returned from a completed (or failed) execution.
// It carries the full counters and error list so a caller can distinguish
// "partially succeeded" from "fully failed" without re-querying remote state.
type ExecuteResult struct {
	OperationID  string                 `json:"operation_id"`
	Status       domain.OperationStatus `json:"status"`
	Mode         string                 `json:"mode"`
	Successful   int                    `json:"successful"`
	Failed       int                    `json:"failed"`
	NotProcessed int                    `json:"not_processed"`
	Errors       []string               `json:"errors,omitempty"`
	Rollback     *domain.RestoreResult  `json:"rollback,omitempty"`
}

// OperationService drives the staged mutation pipeline:
// preview, execute, rollback, cancel, inspect.
type OperationService interface {
	// Preview computes a non-mutating forecast and registers the operation
	// in preview state. It never issues a mutating call.
	Preview(ctx context.Context, req PreviewRequest) (*domain.Preview, error)

	// Execute runs a previewed operation under the given safety config.
	// Valid only from preview state; a second Execute on a running
	// operation fails with domain.ErrAlreadyRunning.
	Execute(ctx context.Context, operationID string, cfg domain.SafetyConfig) (*ExecuteResult, error)

	// Rollback restores the operation's backup. Rollback of a completed
	// operation must be requested explicitly; rollback after failure is
	// automatic when the safety config asks for it.
	Rollback(ctx context.Context, operationID string) (*domain.RestoreResult, error)

	// Cancel stops a running operation. Advisory: in-flight writes are not
	// retracted, only unattempted targets are skipped.
	Cancel(ctx context.Context, operationID string) error

	// GetOperation retrieves an operation with live progress counters.
	GetOperation(ctx context.Context, operationID string) (*domain.Operation, error)

	// ListOperations retrieves recent operations, most recent first.
	ListOperations(ctx context.Context, limit int) ([]*domain.Operation, error)
}
