package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/storekit-labs/storekit-core/internal/core/domain"
	"github.com/storekit-labs/storekit-core/internal/core/ports/driven"
	"github.com/storekit-labs/storekit-core/internal/core/ports/driving"
)

// syncTargetConcurrency bounds how many target stores are synced at once.
const syncTargetConcurrency = 4

// SyncOrchestrator copies content classes from one source store to a set
// of target stores. Items are matched by natural key (SKU for products,
// slug for everything else) so re-running a sync is idempotent. A failure
// on one target never aborts the others.
type SyncOrchestrator struct {
	stores  driven.StoreConfigStore
	jobs    driven.SyncJobStore
	clients driven.StoreClientFactory
	logger  *slog.Logger

	mu     sync.Mutex
	active map[string]bool
}

// SyncOrchestratorConfig holds dependencies for SyncOrchestrator.
type SyncOrchestratorConfig struct {
	Stores  driven.StoreConfigStore
	Jobs    driven.SyncJobStore
	Clients driven.StoreClientFactory
	Logger  *slog.Logger
}

// NewSyncOrchestrator creates a new sync orchestrator.
func NewSyncOrchestrator(cfg SyncOrchestratorConfig) *SyncOrchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncOrchestrator{
		stores:  cfg.Stores,
		jobs:    cfg.Jobs,
		clients: cfg.Clients,
		logger:  logger,
		active:  make(map[string]bool),
	}
}

var _ driving.SyncService = (*SyncOrchestrator)(nil)

// SyncStores runs a one-way synchronization from sourceID to targetIDs.
// One sync per source store runs at a time; a second request fails with
// ErrSyncInProgress instead of queuing.
func (s *SyncOrchestrator) SyncStores(ctx context.Context, sourceID string, targetIDs []string, cfg domain.SyncConfig) (*domain.SyncJob, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(targetIDs) == 0 {
		return nil, fmt.Errorf("%w: no target stores", domain.ErrInvalidInput)
	}

	source, err := s.enabledStore(ctx, sourceID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.active[sourceID] {
		s.mu.Unlock()
		return nil, domain.ErrSyncInProgress
	}
	s.active[sourceID] = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.active, sourceID)
		s.mu.Unlock()
	}()

	job := domain.NewSyncJob(sourceID, targetIDs, cfg)
	if err := s.jobs.Save(ctx, job); err != nil {
		return nil, fmt.Errorf("persist sync job: %w", err)
	}

	sourceClient, err := s.clients.Client(source)
	if err != nil {
		job.Error = err.Error()
		job.Finish()
		job.Status = domain.SyncStatusFailed
		_ = s.jobs.Save(ctx, job)
		return nil, fmt.Errorf("source client: %w", err)
	}

	// Source content is listed once and shared across targets.
	sourceItems := make(map[domain.ContentClass][]*domain.Item)
	for _, class := range cfg.Classes() {
		items, err := sourceClient.ListItems(ctx, class, nil)
		if err != nil {
			job.Error = fmt.Sprintf("list source %s: %v", class, err)
			job.Finish()
			job.Status = domain.SyncStatusFailed
			_ = s.jobs.Save(ctx, job)
			return nil, fmt.Errorf("list source %s: %w", class, err)
		}
		sourceItems[class] = items
	}

	var resultsMu sync.Mutex
	var group errgroup.Group
	group.SetLimit(syncTargetConcurrency)

	for _, targetID := range targetIDs {
		group.Go(func() error {
			result := s.syncTarget(ctx, source, targetID, cfg, sourceItems)
			resultsMu.Lock()
			job.Results[targetID] = result
			resultsMu.Unlock()
			return nil
		})
	}
	_ = group.Wait()

	job.Finish()
	if err := s.jobs.Save(ctx, job); err != nil {
		return job, fmt.Errorf("persist sync job: %w", err)
	}

	s.logger.Info("sync finished",
		"sync_job_id", job.ID,
		"source", sourceID,
		"targets", len(targetIDs),
		"status", job.Status,
	)
	return job, nil
}

// syncTarget syncs every enabled content class to one target store.
// Errors are captured in the result rather than returned so the caller's
// other targets continue.
func (s *SyncOrchestrator) syncTarget(
	ctx context.Context,
	source *domain.Store,
	targetID string,
	cfg domain.SyncConfig,
	sourceItems map[domain.ContentClass][]*domain.Item,
) *domain.TargetResult {
	result := &domain.TargetResult{
		StoreID: targetID,
		Classes: make(map[domain.ContentClass]*domain.ClassResult),
	}

	target, err := s.enabledStore(ctx, targetID)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	targetClient, err := s.clients.Client(target)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	pipeline := NewTransformPipeline(cfg, source, target)

	for _, class := range cfg.Classes() {
		result.Classes[class] = s.syncClass(ctx, targetClient, pipeline, class, cfg.ConflictResolution, sourceItems[class])
	}

	s.logger.Info("target synced",
		"source", source.ID,
		"target", targetID,
		"synced", result.Synced(),
		"failed", result.Failed(),
		"conflicts", len(result.Conflicts()),
	)
	return result
}

func (s *SyncOrchestrator) syncClass(
	ctx context.Context,
	client driven.StoreClient,
	pipeline *TransformPipeline,
	class domain.ContentClass,
	resolution domain.ConflictResolution,
	items []*domain.Item,
) *domain.ClassResult {
	result := &domain.ClassResult{}

	for _, sourceItem := range items {
		key := naturalKey(class, sourceItem)
		if key == "" {
			result.Skipped++
			continue
		}

		existing, err := findByNaturalKey(ctx, client, class, key)
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", key, err))
			continue
		}

		incoming := pipeline.Apply(sourceItem)

		if existing == nil {
			incoming.ID = ""
			if _, err := client.CreateItem(ctx, class, incoming); err != nil {
				result.Failed++
				result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", key, err))
				continue
			}
			result.Synced++
			continue
		}

		if itemsEquivalent(incoming, existing) {
			result.Skipped++
			continue
		}

		switch resolution {
		case domain.ResolutionSourceWins:
			incoming.ID = existing.ID
			if _, err := client.UpdateItem(ctx, class, existing.ID, incoming); err != nil {
				result.Failed++
				result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", key, err))
				continue
			}
			result.Synced++
		case domain.ResolutionManual:
			result.Skipped++
			result.Conflicts = append(result.Conflicts, domain.Conflict{
				Type:       class,
				Key:        key,
				Resolution: string(domain.ResolutionManual),
				Source:     sourceItem.Clone(),
				Target:     existing,
			})
		case domain.ResolutionMerge:
			// Merge has no field-level semantics yet; record and move on.
			result.Skipped++
			result.Conflicts = append(result.Conflicts, domain.Conflict{
				Type:       class,
				Key:        key,
				Resolution: "merge-unsupported",
				Source:     sourceItem.Clone(),
				Target:     existing,
			})
		}
	}

	return result
}

func (s *SyncOrchestrator) enabledStore(ctx context.Context, id string) (*domain.Store, error) {
	store, err := s.stores.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !store.Enabled {
		return nil, fmt.Errorf("%w: %s", domain.ErrStoreDisabled, id)
	}
	return store, nil
}

// GetSyncJob retrieves a sync job with per-target results.
func (s *SyncOrchestrator) GetSyncJob(ctx context.Context, id string) (*domain.SyncJob, error) {
	return s.jobs.Get(ctx, id)
}

// ListSyncJobs retrieves recent sync jobs, most recent first.
func (s *SyncOrchestrator) ListSyncJobs(ctx context.Context, limit int) ([]*domain.SyncJob, error) {
	return s.jobs.List(ctx, limit)
}

// ResolveConflicts applies operator decisions for conflicts a finished
// sync job recorded under manual resolution. Keeping the source writes the
// (transformed) source version over the target item; keeping the target
// just marks the conflict resolved. Decisions for unknown targets or keys
// are reported as errors without blocking the rest.
func (s *SyncOrchestrator) ResolveConflicts(ctx context.Context, jobID string, decisions []driving.ConflictDecision) (int, error) {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return 0, err
	}
	if job.Status == domain.SyncStatusRunning {
		return 0, fmt.Errorf("%w: sync job %s is still running", domain.ErrInvalidState, jobID)
	}

	source, err := s.stores.Get(ctx, job.SourceStoreID)
	if err != nil {
		return 0, err
	}

	applied := 0
	var failures []string
	for _, decision := range decisions {
		if err := s.applyDecision(ctx, job, source, decision); err != nil {
			failures = append(failures, fmt.Sprintf("%s/%s: %v", decision.TargetStoreID, decision.Key, err))
			continue
		}
		applied++
	}

	if applied > 0 {
		if err := s.jobs.Save(ctx, job); err != nil {
			return applied, fmt.Errorf("persist sync job: %w", err)
		}
	}
	if len(failures) > 0 {
		return applied, fmt.Errorf("%w: %s", domain.ErrInvalidInput, strings.Join(failures, "; "))
	}

	s.logger.Info("conflicts resolved",
		"sync_job_id", jobID,
		"applied", applied,
	)
	return applied, nil
}

func (s *SyncOrchestrator) applyDecision(ctx context.Context, job *domain.SyncJob, source *domain.Store, decision driving.ConflictDecision) error {
	result, ok := job.Results[decision.TargetStoreID]
	if !ok {
		return fmt.Errorf("no such target in job")
	}

	conflict := findConflict(result, decision.Key)
	if conflict == nil {
		return fmt.Errorf("no unresolved conflict for key")
	}

	if !decision.KeepSource {
		conflict.Resolution = "target-kept"
		return nil
	}

	target, err := s.enabledStore(ctx, decision.TargetStoreID)
	if err != nil {
		return err
	}
	client, err := s.clients.Client(target)
	if err != nil {
		return err
	}

	incoming := NewTransformPipeline(job.Config, source, target).Apply(conflict.Source)
	incoming.ID = conflict.Target.ID
	if _, err := client.UpdateItem(ctx, conflict.Type, conflict.Target.ID, incoming); err != nil {
		return err
	}
	conflict.Resolution = "source-applied"
	return nil
}

// findConflict returns the first unresolved conflict with the given key.
func findConflict(result *domain.TargetResult, key string) *domain.Conflict {
	for _, class := range result.Classes {
		for i := range class.Conflicts {
			c := &class.Conflicts[i]
			if c.Key != key {
				continue
			}
			switch c.Resolution {
			case "source-applied", "target-kept":
				continue
			}
			return c
		}
	}
	return nil
}

// naturalKey returns the cross-store identity of an item: SKU for
// products, slug for everything else. Remote ids differ between stores
// and are never used for matching.
func naturalKey(class domain.ContentClass, item *domain.Item) string {
	if class == domain.ContentClassProducts {
		return item.SKU
	}
	return item.Slug
}

func findByNaturalKey(ctx context.Context, client driven.StoreClient, class domain.ContentClass, key string) (*domain.Item, error) {
	if class == domain.ContentClassProducts {
		return client.FindBySKU(ctx, key)
	}
	return client.FindBySlug(ctx, key)
}

// itemsEquivalent reports whether a write would change anything, ignoring
// the store-local id.
func itemsEquivalent(a, b *domain.Item) bool {
	return a.SKU == b.SKU &&
		a.Slug == b.Slug &&
		a.Name == b.Name &&
		a.Description == b.Description &&
		a.RegularPrice == b.RegularPrice &&
		a.SalePrice == b.SalePrice &&
		a.Status == b.Status
}
