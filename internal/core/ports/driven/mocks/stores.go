package mocks

import (
	"context"
	"sort"
	"sync"

	"github.com/storekit-labs/storekit-core/internal/core/domain"
	"github.com/storekit-labs/storekit-core/internal/core/ports/driven"
)

// Verify interface compliance
var (
	_ driven.OperationStore   = (*MockOperationStore)(nil)
	_ driven.BackupStore      = (*MockBackupStore)(nil)
	_ driven.SyncJobStore     = (*MockSyncJobStore)(nil)
	_ driven.StoreConfigStore = (*MockStoreConfigStore)(nil)
)

// MockOperationStore is an in-memory OperationStore for testing.
// It snapshots every Save so tests can assert invariants held at each
// observation point mid-run.
type MockOperationStore struct {
	mu        sync.RWMutex
	ops       map[string]*domain.Operation
	snapshots []domain.Operation
	SaveErr   error
}

// NewMockOperationStore creates a new MockOperationStore
func NewMockOperationStore() *MockOperationStore {
	return &MockOperationStore{ops: make(map[string]*domain.Operation)}
}

func cloneOperation(op *domain.Operation) *domain.Operation {
	out := *op
	out.Errors = append([]string(nil), op.Errors...)
	out.PreviewData.Targets = append([]string(nil), op.PreviewData.Targets...)
	return &out
}

func (m *MockOperationStore) Save(ctx context.Context, op *domain.Operation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.ops[op.ID] = cloneOperation(op)
	m.snapshots = append(m.snapshots, *cloneOperation(op))
	return nil
}

func (m *MockOperationStore) Get(ctx context.Context, id string) (*domain.Operation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	op, ok := m.ops[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneOperation(op), nil
}

func (m *MockOperationStore) List(ctx context.Context, limit int) ([]*domain.Operation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Operation
	for _, op := range m.ops {
		out = append(out, cloneOperation(op))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockOperationStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.ops, id)
	return nil
}

// Snapshots returns a copy of every operation state ever saved, in order.
func (m *MockOperationStore) Snapshots() []domain.Operation {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Operation, len(m.snapshots))
	copy(out, m.snapshots)
	return out
}

// MockBackupStore is an in-memory BackupStore for testing
type MockBackupStore struct {
	mu      sync.RWMutex
	backups map[string]*domain.Backup
	SaveErr error
}

// NewMockBackupStore creates a new MockBackupStore
func NewMockBackupStore() *MockBackupStore {
	return &MockBackupStore{backups: make(map[string]*domain.Backup)}
}

func (m *MockBackupStore) Save(ctx context.Context, backup *domain.Backup) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	if _, ok := m.backups[backup.ID]; ok {
		return domain.ErrAlreadyExists
	}
	m.backups[backup.ID] = backup
	return nil
}

func (m *MockBackupStore) Get(ctx context.Context, id string) (*domain.Backup, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	backup, ok := m.backups[id]
	if !ok {
		return nil, domain.ErrBackupNotFound
	}
	return backup, nil
}

func (m *MockBackupStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.backups, id)
	return nil
}

// Count returns the number of stored backups.
func (m *MockBackupStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.backups)
}

// MockSyncJobStore is an in-memory SyncJobStore for testing
type MockSyncJobStore struct {
	mu   sync.RWMutex
	jobs map[string]*domain.SyncJob
}

// NewMockSyncJobStore creates a new MockSyncJobStore
func NewMockSyncJobStore() *MockSyncJobStore {
	return &MockSyncJobStore{jobs: make(map[string]*domain.SyncJob)}
}

func (m *MockSyncJobStore) Save(ctx context.Context, job *domain.SyncJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = job
	return nil
}

func (m *MockSyncJobStore) Get(ctx context.Context, id string) (*domain.SyncJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return job, nil
}

func (m *MockSyncJobStore) List(ctx context.Context, limit int) ([]*domain.SyncJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.SyncJob
	for _, job := range m.jobs {
		out = append(out, job)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// MockStoreConfigStore is an in-memory StoreConfigStore for testing
type MockStoreConfigStore struct {
	mu     sync.RWMutex
	stores map[string]*domain.Store
}

// NewMockStoreConfigStore creates a new MockStoreConfigStore
func NewMockStoreConfigStore() *MockStoreConfigStore {
	return &MockStoreConfigStore{stores: make(map[string]*domain.Store)}
}

func (m *MockStoreConfigStore) Save(ctx context.Context, store *domain.Store) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stores[store.ID] = store
	return nil
}

func (m *MockStoreConfigStore) Get(ctx context.Context, id string) (*domain.Store, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	store, ok := m.stores[id]
	if !ok {
		return nil, domain.ErrStoreNotFound
	}
	return store, nil
}

func (m *MockStoreConfigStore) List(ctx context.Context) ([]*domain.Store, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Store
	for _, store := range m.stores {
		out = append(out, store)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MockStoreConfigStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.stores, id)
	return nil
}
