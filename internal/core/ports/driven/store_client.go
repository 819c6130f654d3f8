package driven

import (
	"context"

	"github.com/storekit-labs/storekit-core/internal/core/domain"
)

// ListSafetyCap bounds how many items a paginated listing may accumulate.
// Protects worst-case memory and request count against runaway stores.
const ListSafetyCap = 10000

// StoreClient performs reads and writes against one remote store.
// Implementations handle pagination internally: ListItems loops the page
// parameter until an empty page is returned, capped at ListSafetyCap items.
// Non-2xx responses surface as *domain.RemoteError.
type StoreClient interface {
	// GetItem fetches a single item by identifier.
	GetItem(ctx context.Context, class domain.ContentClass, id string) (*domain.Item, error)

	// ListItems fetches all items of a class, paginating with the given filters.
	ListItems(ctx context.Context, class domain.ContentClass, filters map[string]string) ([]*domain.Item, error)

	// CreateItem creates an item and returns the created representation.
	CreateItem(ctx context.Context, class domain.ContentClass, item *domain.Item) (*domain.Item, error)

	// UpdateItem overwrites an existing item.
	UpdateItem(ctx context.Context, class domain.ContentClass, id string, item *domain.Item) (*domain.Item, error)

	// DeleteItem permanently deletes an item.
	DeleteItem(ctx context.Context, class domain.ContentClass, id string) error

	// FindBySKU looks up a product by its SKU natural key.
	// Returns (nil, nil) when no item matches.
	FindBySKU(ctx context.Context, sku string) (*domain.Item, error)

	// FindBySlug looks up a category by its slug natural key.
	// Returns (nil, nil) when no item matches.
	FindBySlug(ctx context.Context, slug string) (*domain.Item, error)

	// Ping checks connectivity to the remote store.
	Ping(ctx context.Context) error
}

// StoreClientFactory creates clients for registered stores.
type StoreClientFactory interface {
	// Client returns a client for the given store configuration.
	Client(store *domain.Store) (StoreClient, error)
}
