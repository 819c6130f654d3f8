package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/storekit-labs/storekit-core/internal/core/domain"
	"github.com/storekit-labs/storekit-core/internal/core/ports/driven"
)

// Previewer computes the forecast effect of one operation kind on a
// single target. New operation kinds register a Previewer instead of
// growing a central dispatch branch.
type Previewer interface {
	PreviewItem(ctx context.Context, client driven.StoreClient, target string, changes map[string]any) domain.ItemPreview
}

// PreviewService computes non-mutating forecasts and registers operations
// in preview state. It never calls a mutating endpoint.
type PreviewService struct {
	registry   *OperationRegistry
	previewers map[domain.OperationKind]Previewer
	logger     *slog.Logger
}

// NewPreviewService creates a preview service with the default previewer
// per operation kind.
func NewPreviewService(registry *OperationRegistry, logger *slog.Logger) *PreviewService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PreviewService{
		registry: registry,
		previewers: map[domain.OperationKind]Previewer{
			domain.OperationKindUpdateProducts:   &updatePreviewer{class: domain.ContentClassProducts},
			domain.OperationKindUpdatePrices:     &updatePreviewer{class: domain.ContentClassProducts},
			domain.OperationKindUpdateCategories: &updatePreviewer{class: domain.ContentClassCategories},
			domain.OperationKindBulkDelete:       &deletePreviewer{},
			domain.OperationKindCreateProducts:   &createPreviewer{},
		},
		logger: logger,
	}
}

// Generate samples the first min(5, n) targets, diffs each against its
// current remote state, and registers an Operation holding the full
// target list as immutable preview data.
func (s *PreviewService) Generate(
	ctx context.Context,
	client driven.StoreClient,
	data domain.PreviewData,
) (*domain.Preview, error) {
	if len(data.Targets) == 0 {
		return nil, fmt.Errorf("%w: no targets", domain.ErrInvalidInput)
	}

	op := domain.NewOperation(data)

	preview := &domain.Preview{
		OperationID:   op.ID,
		Kind:          data.Kind,
		TotalTargets:  len(data.Targets),
		EstimatedTime: domain.HumanizeDuration(data.Kind.EstimateDuration(len(data.Targets))),
	}

	previewer, known := s.previewers[data.Kind]
	sample := len(data.Targets)
	if sample > domain.PreviewSampleSize {
		sample = domain.PreviewSampleSize
	}

	for _, target := range data.Targets[:sample] {
		if !known {
			// Unknown kind is a per-item error, not a hard failure.
			preview.Items = append(preview.Items, domain.ItemPreview{
				Target: target,
				Error:  fmt.Sprintf("unknown operation kind %q", data.Kind),
			})
			continue
		}
		item := previewer.PreviewItem(ctx, client, target, data.Changes)
		preview.Items = append(preview.Items, item)
		preview.Warnings = append(preview.Warnings, item.Warnings...)
	}

	if err := s.registry.Register(ctx, op); err != nil {
		return nil, fmt.Errorf("register preview: %w", err)
	}

	s.logger.Info("preview generated",
		"operation_id", op.ID,
		"kind", data.Kind,
		"total_targets", len(data.Targets),
		"sampled", sample,
	)
	return preview, nil
}

// updatePreviewer diffs requested changes against the target's current state.
type updatePreviewer struct {
	class domain.ContentClass
}

func (p *updatePreviewer) PreviewItem(ctx context.Context, client driven.StoreClient, target string, changes map[string]any) domain.ItemPreview {
	current, err := client.GetItem(ctx, p.class, target)
	if err != nil {
		return domain.ItemPreview{Target: target, Error: err.Error()}
	}

	preview := domain.ItemPreview{
		Target:  target,
		Name:    current.Name,
		SKU:     current.SKU,
		Changes: make(map[string]domain.FieldChange),
	}

	for field, newValue := range changes {
		oldValue, _ := current.Field(field)
		if oldValue != newValue {
			preview.Changes[field] = domain.FieldChange{From: oldValue, To: newValue}
		}
	}

	if newPrice, ok := changes["regular_price"]; ok {
		if warn := priceDecreaseWarning(current.RegularPrice, newPrice); warn != "" {
			preview.Warnings = append(preview.Warnings, warn)
		}
	}

	return preview
}

// priceDecreaseWarning flags a requested price at or below half the current one.
func priceDecreaseWarning(current string, requested any) string {
	oldPrice, err := strconv.ParseFloat(current, 64)
	if err != nil || oldPrice <= 0 {
		return ""
	}
	reqStr, ok := requested.(string)
	if !ok {
		return ""
	}
	newPrice, err := strconv.ParseFloat(reqStr, 64)
	if err != nil {
		return ""
	}
	if newPrice <= oldPrice*0.5 {
		return domain.WarnLargePriceDecrease
	}
	return ""
}

// deletePreviewer shows what would be permanently removed.
type deletePreviewer struct{}

func (p *deletePreviewer) PreviewItem(ctx context.Context, client driven.StoreClient, target string, changes map[string]any) domain.ItemPreview {
	class := deleteClass(changes)
	current, err := client.GetItem(ctx, class, target)
	if err != nil {
		return domain.ItemPreview{Target: target, Error: err.Error()}
	}
	return domain.ItemPreview{
		Target:   target,
		Name:     current.Name,
		SKU:      current.SKU,
		Action:   "DELETE",
		Warnings: []string{"This item will be permanently deleted"},
	}
}

// deleteClass resolves the content class a bulk delete applies to.
// Defaults to products.
func deleteClass(changes map[string]any) domain.ContentClass {
	if t, ok := changes["type"].(string); ok && t == "category" {
		return domain.ContentClassCategories
	}
	return domain.ContentClassProducts
}

// createPreviewer forecasts item creation; there is no current state to diff.
type createPreviewer struct{}

func (p *createPreviewer) PreviewItem(ctx context.Context, client driven.StoreClient, target string, changes map[string]any) domain.ItemPreview {
	preview := domain.ItemPreview{
		Target:  target,
		Action:  "CREATE",
		Changes: make(map[string]domain.FieldChange),
	}
	for field, value := range changes {
		preview.Changes[field] = domain.FieldChange{From: nil, To: value}
	}
	return preview
}
