package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/storekit-labs/storekit-core/internal/core/domain"
	"github.com/storekit-labs/storekit-core/internal/core/ports/driven"
	"github.com/storekit-labs/storekit-core/internal/core/ports/driving"
)

// StoreRegistry manages registered store configurations.
type StoreRegistry struct {
	stores  driven.StoreConfigStore
	clients driven.StoreClientFactory
	logger  *slog.Logger
}

// NewStoreRegistry creates a new store registry.
func NewStoreRegistry(stores driven.StoreConfigStore, clients driven.StoreClientFactory, logger *slog.Logger) *StoreRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &StoreRegistry{stores: stores, clients: clients, logger: logger}
}

var _ driving.StoreService = (*StoreRegistry)(nil)

// RegisterStore validates a store configuration, checks connectivity and
// saves it.
func (r *StoreRegistry) RegisterStore(ctx context.Context, store *domain.Store) error {
	if err := store.Validate(); err != nil {
		return fmt.Errorf("%w: store configuration incomplete", domain.ErrInvalidInput)
	}

	client, err := r.clients.Client(store)
	if err != nil {
		return err
	}
	if err := client.Ping(ctx); err != nil {
		return fmt.Errorf("store %s unreachable: %w", store.ID, err)
	}

	now := time.Now()
	if store.CreatedAt.IsZero() {
		store.CreatedAt = now
	}
	store.UpdatedAt = now

	if err := r.stores.Save(ctx, store); err != nil {
		return err
	}
	r.logger.Info("store registered", "store_id", store.ID, "base_url", store.BaseURL, "currency", store.Currency)
	return nil
}

// GetStore retrieves a registered store.
func (r *StoreRegistry) GetStore(ctx context.Context, id string) (*domain.Store, error) {
	return r.stores.Get(ctx, id)
}

// ListStores retrieves all registered stores.
func (r *StoreRegistry) ListStores(ctx context.Context) ([]*domain.Store, error) {
	return r.stores.List(ctx)
}

// RemoveStore deletes a store registration.
func (r *StoreRegistry) RemoveStore(ctx context.Context, id string) error {
	if err := r.stores.Delete(ctx, id); err != nil {
		return err
	}
	r.logger.Info("store removed", "store_id", id)
	return nil
}
