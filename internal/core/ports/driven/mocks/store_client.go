package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/storekit-labs/storekit-core/internal/core/domain"
	"github.com/storekit-labs/storekit-core/internal/core/ports/driven"
)

// Verify interface compliance
var (
	_ driven.StoreClient        = (*MockStoreClient)(nil)
	_ driven.StoreClientFactory = (*MockStoreClientFactory)(nil)
)

// WriteCall records one mutating call made against the mock client.
type WriteCall struct {
	Method string
	Class  domain.ContentClass
	ID     string
	Item   *domain.Item
}

// MockStoreClient is a scriptable in-memory StoreClient for testing.
// Every mutating call is recorded so tests can assert write counts
// (e.g. that preview performs zero writes).
type MockStoreClient struct {
	mu sync.RWMutex

	items map[domain.ContentClass]map[string]*domain.Item

	// FailIDs makes writes against these item ids fail with a RemoteError.
	FailIDs map[string]bool

	// GetErr, ListErr, PingErr force the corresponding reads to fail.
	GetErr  error
	ListErr error
	PingErr error

	writes    []WriteCall
	readCalls int
	nextID    int
}

// NewMockStoreClient creates an empty mock client.
func NewMockStoreClient() *MockStoreClient {
	return &MockStoreClient{
		items:   make(map[domain.ContentClass]map[string]*domain.Item),
		FailIDs: make(map[string]bool),
	}
}

// Seed inserts an item directly, bypassing the write recorder.
func (m *MockStoreClient) Seed(class domain.ContentClass, item *domain.Item) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.items[class] == nil {
		m.items[class] = make(map[string]*domain.Item)
	}
	m.items[class][item.ID] = item.Clone()
}

func (m *MockStoreClient) GetItem(ctx context.Context, class domain.ContentClass, id string) (*domain.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readCalls++
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	item, ok := m.items[class][id]
	if !ok {
		return nil, &domain.RemoteError{StatusCode: 404, Body: "not found"}
	}
	return item.Clone(), nil
}

func (m *MockStoreClient) ListItems(ctx context.Context, class domain.ContentClass, filters map[string]string) ([]*domain.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readCalls++
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	var out []*domain.Item
	for _, item := range m.items[class] {
		out = append(out, item.Clone())
	}
	// Deterministic order for batch tests
	sortItemsByID(out)
	return out, nil
}

func (m *MockStoreClient) CreateItem(ctx context.Context, class domain.ContentClass, item *domain.Item) (*domain.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes = append(m.writes, WriteCall{Method: "create", Class: class, Item: item.Clone()})
	if m.FailIDs[item.ID] || m.FailIDs[item.SKU] {
		return nil, &domain.RemoteError{StatusCode: 500, Body: "write rejected"}
	}
	created := item.Clone()
	if created.ID == "" {
		m.nextID++
		created.ID = fmt.Sprintf("gen-%d", m.nextID)
	}
	if m.items[class] == nil {
		m.items[class] = make(map[string]*domain.Item)
	}
	m.items[class][created.ID] = created.Clone()
	return created, nil
}

func (m *MockStoreClient) UpdateItem(ctx context.Context, class domain.ContentClass, id string, item *domain.Item) (*domain.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes = append(m.writes, WriteCall{Method: "update", Class: class, ID: id, Item: item.Clone()})
	if m.FailIDs[id] {
		return nil, &domain.RemoteError{StatusCode: 500, Body: "write rejected"}
	}
	if m.items[class] == nil {
		m.items[class] = make(map[string]*domain.Item)
	}
	updated := item.Clone()
	updated.ID = id
	m.items[class][id] = updated.Clone()
	return updated, nil
}

func (m *MockStoreClient) DeleteItem(ctx context.Context, class domain.ContentClass, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes = append(m.writes, WriteCall{Method: "delete", Class: class, ID: id})
	if m.FailIDs[id] {
		return &domain.RemoteError{StatusCode: 500, Body: "write rejected"}
	}
	delete(m.items[class], id)
	return nil
}

func (m *MockStoreClient) FindBySKU(ctx context.Context, sku string) (*domain.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readCalls++
	if sku == "" {
		return nil, nil
	}
	for _, item := range m.items[domain.ContentClassProducts] {
		if item.SKU == sku {
			return item.Clone(), nil
		}
	}
	return nil, nil
}

func (m *MockStoreClient) FindBySlug(ctx context.Context, slug string) (*domain.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readCalls++
	if slug == "" {
		return nil, nil
	}
	for _, item := range m.items[domain.ContentClassCategories] {
		if item.Slug == slug {
			return item.Clone(), nil
		}
	}
	return nil, nil
}

func (m *MockStoreClient) Ping(ctx context.Context) error {
	return m.PingErr
}

// Helper methods for testing

// Writes returns every mutating call recorded so far.
func (m *MockStoreClient) Writes() []WriteCall {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]WriteCall, len(m.writes))
	copy(out, m.writes)
	return out
}

// WriteCount returns the number of mutating calls recorded.
func (m *MockStoreClient) WriteCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.writes)
}

// ReadCount returns the number of read calls recorded.
func (m *MockStoreClient) ReadCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.readCalls
}

// Reset clears items and recorded calls.
func (m *MockStoreClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = make(map[domain.ContentClass]map[string]*domain.Item)
	m.writes = nil
	m.readCalls = 0
}

func sortItemsByID(items []*domain.Item) {
	for i := 1; i < len(items); i++ {
		for j := i; j > 0 && items[j-1].ID > items[j].ID; j-- {
			items[j-1], items[j] = items[j], items[j-1]
		}
	}
}

// MockStoreClientFactory returns a fixed client per store id.
type MockStoreClientFactory struct {
	mu      sync.RWMutex
	clients map[string]*MockStoreClient
	Err     error
}

// NewMockStoreClientFactory creates an empty factory.
func NewMockStoreClientFactory() *MockStoreClientFactory {
	return &MockStoreClientFactory{clients: make(map[string]*MockStoreClient)}
}

// Register associates a mock client with a store id.
func (f *MockStoreClientFactory) Register(storeID string, client *MockStoreClient) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clients[storeID] = client
}

func (f *MockStoreClientFactory) Client(store *domain.Store) (driven.StoreClient, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.Err != nil {
		return nil, f.Err
	}
	client, ok := f.clients[store.ID]
	if !ok {
		return nil, domain.ErrStoreNotFound
	}
	return client, nil
}
