package domain

// PreviewSampleSize is how many targets a preview fetches and diffs.
// The full target list is still recorded on the operation.
const PreviewSampleSize = 5

// FieldChange is a single field-level diff shown in a preview.
type FieldChange struct {
	From any `json:"from"`
	To   any `json:"to"`
}

// ItemPreview is the forecast effect of the operation on one sampled target.
type ItemPreview struct {
	Target   string                 `json:"target"`
	Name     string                 `json:"name,omitempty"`
	SKU      string                 `json:"sku,omitempty"`
	Action   string                 `json:"action,omitempty"`
	Changes  map[string]FieldChange `json:"changes,omitempty"`
	Warnings []string               `json:"warnings,omitempty"`
	Error    string                 `json:"error,omitempty"`
}

// Preview is a non-mutating forecast of a bulk operation.
type Preview struct {
	OperationID   string        `json:"operation_id"`
	Kind          OperationKind `json:"operation"`
	TotalTargets  int           `json:"total_targets"`
	EstimatedTime string        `json:"estimated_time"`
	Items         []ItemPreview `json:"changes_preview"`
	Conflicts     []string      `json:"potential_conflicts,omitempty"`
	Warnings      []string      `json:"warnings,omitempty"`
}

// WarnLargePriceDecrease is attached to a sampled item when the requested
// price is at or below half of the current one.
const WarnLargePriceDecrease = "Large price decrease detected"
