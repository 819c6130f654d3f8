package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OperationStatus represents the lifecycle state of a bulk operation
type OperationStatus string

const (
	OperationStatusPreview             OperationStatus = "preview"
	OperationStatusRunning             OperationStatus = "running"
	OperationStatusCompleted           OperationStatus = "completed"
	OperationStatusFailed              OperationStatus = "failed"
	OperationStatusRolledBack          OperationStatus = "rolled_back"
	OperationStatusFailedAndRolledBack OperationStatus = "failed_and_rolled_back"
	OperationStatusCancelled           OperationStatus = "cancelled"
)

// operationTransitions is the authoritative transition table.
// Entities never transition backward.
var operationTransitions = map[OperationStatus][]OperationStatus{
	OperationStatusPreview: {OperationStatusRunning},
	OperationStatusRunning: {
		OperationStatusCompleted,
		OperationStatusFailed,
		OperationStatusCancelled,
	},
	OperationStatusCompleted: {OperationStatusRolledBack},
	OperationStatusFailed:    {OperationStatusFailedAndRolledBack},
}

// CanTransition reports whether the status change from -> to is permitted.
func CanTransition(from, to OperationStatus) bool {
	for _, allowed := range operationTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status admits no further transitions
// other than an explicit rollback of a completed or failed run.
func (s OperationStatus) IsTerminal() bool {
	switch s {
	case OperationStatusCompleted,
		OperationStatusFailed,
		OperationStatusRolledBack,
		OperationStatusFailedAndRolledBack,
		OperationStatusCancelled:
		return true
	}
	return false
}

// OperationKind identifies the kind of bulk mutation to perform
type OperationKind string

const (
	OperationKindUpdateProducts   OperationKind = "update_products"
	OperationKindUpdatePrices     OperationKind = "update_prices"
	OperationKindUpdateCategories OperationKind = "update_categories"
	OperationKindBulkDelete       OperationKind = "bulk_delete"
	OperationKindCreateProducts   OperationKind = "create_products"
)

// secondsPerItem is the per-kind processing rate used for time estimates.
var secondsPerItem = map[OperationKind]float64{
	OperationKindUpdateProducts:   0.5,
	OperationKindUpdatePrices:     0.2,
	OperationKindUpdateCategories: 0.3,
	OperationKindBulkDelete:       0.3,
	OperationKindCreateProducts:   1.0,
}

// Valid reports whether the kind is a known operation kind.
func (k OperationKind) Valid() bool {
	_, ok := secondsPerItem[k]
	return ok
}

// EstimateDuration returns the forecast processing time for itemCount items.
// Unknown kinds fall back to the update_products rate.
func (k OperationKind) EstimateDuration(itemCount int) time.Duration {
	rate, ok := secondsPerItem[k]
	if !ok {
		rate = 0.5
	}
	return time.Duration(rate * float64(itemCount) * float64(time.Second))
}

// HumanizeDuration formats a duration estimate the way operators read it.
func HumanizeDuration(d time.Duration) string {
	total := int(d.Seconds())
	switch {
	case total < 60:
		return fmt.Sprintf("%d seconds", total)
	case total < 3600:
		return fmt.Sprintf("%d minutes", total/60)
	default:
		return fmt.Sprintf("%d hours %d minutes", total/3600, (total%3600)/60)
	}
}

// PreviewData captures what Execute will do, frozen at preview time.
// Mutating it after preview would break the preview-reflects-execute contract,
// so it is only ever written once.
type PreviewData struct {
	Kind    OperationKind  `json:"kind"`
	StoreID string         `json:"store_id"`
	Targets []string       `json:"targets"`
	Changes map[string]any `json:"changes"`
}

// Operation is one requested mutation run against a store.
type Operation struct {
	ID              string          `json:"id"`
	Status          OperationStatus `json:"status"`
	Started         *time.Time      `json:"started,omitempty"`
	Completed       *time.Time      `json:"completed,omitempty"`
	TotalItems      int             `json:"total_items"`
	ProcessedItems  int             `json:"processed_items"`
	SuccessfulItems int             `json:"successful_items"`
	FailedItems     int             `json:"failed_items"`
	Errors          []string        `json:"errors,omitempty"`
	PreviewData     PreviewData     `json:"preview_data"`
	BackupID        string          `json:"backup_id,omitempty"`

	// CancelRequested is persisted so an executor in another process
	// observes a cancel request at its next batch boundary.
	CancelRequested bool `json:"cancel_requested,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewOperation creates an operation in preview state with the full
// (unsampled) target list attached.
func NewOperation(data PreviewData) *Operation {
	now := time.Now()
	return &Operation{
		ID:          uuid.NewString(),
		Status:      OperationStatusPreview,
		TotalItems:  len(data.Targets),
		PreviewData: data,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Transition moves the operation to the next status, rejecting
// transitions not in the table.
func (o *Operation) Transition(to OperationStatus) error {
	if !CanTransition(o.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidState, o.Status, to)
	}
	now := time.Now()
	o.Status = to
	o.UpdatedAt = now
	switch to {
	case OperationStatusRunning:
		o.Started = &now
	case OperationStatusCompleted, OperationStatusFailed,
		OperationStatusRolledBack, OperationStatusFailedAndRolledBack,
		OperationStatusCancelled:
		o.Completed = &now
	}
	return nil
}

// RecordError appends an error message to the operation's append-only log.
func (o *Operation) RecordError(msg string) {
	o.Errors = append(o.Errors, msg)
	o.UpdatedAt = time.Now()
}

// CountersValid reports whether the progress counters satisfy
// successful+failed <= processed <= total.
func (o *Operation) CountersValid() bool {
	if o.ProcessedItems < 0 || o.TotalItems < 0 || o.SuccessfulItems < 0 || o.FailedItems < 0 {
		return false
	}
	if o.ProcessedItems > o.TotalItems {
		return false
	}
	return o.SuccessfulItems+o.FailedItems <= o.ProcessedItems
}
