package woocommerce

import (
	"fmt"
	"sync"

	"github.com/storekit-labs/storekit-core/internal/core/domain"
	"github.com/storekit-labs/storekit-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.StoreClientFactory = (*Factory)(nil)

// Factory builds StoreClients from store configurations, caching one
// client per store ID so connection pools are shared across operations.
type Factory struct {
	mu      sync.Mutex
	clients map[string]*Client
}

// NewFactory creates a client factory.
func NewFactory() *Factory {
	return &Factory{clients: make(map[string]*Client)}
}

// Client returns a client for the given store, creating one on first use.
// A store whose credentials changed gets a fresh client.
func (f *Factory) Client(store *domain.Store) (driven.StoreClient, error) {
	if err := store.Validate(); err != nil {
		return nil, fmt.Errorf("store %s: %w", store.ID, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if existing, ok := f.clients[store.ID]; ok {
		if existing.store.BaseURL == store.BaseURL &&
			existing.store.ConsumerKey == store.ConsumerKey &&
			existing.store.ConsumerSecret == store.ConsumerSecret {
			return existing, nil
		}
	}

	client := NewClient(store)
	f.clients[store.ID] = client
	return client, nil
}
