package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/storekit-labs/storekit-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DistributedLock = (*MockLock)(nil)

// MockLock is an in-memory DistributedLock for testing.
// TTLs are recorded but never expire.
type MockLock struct {
	mu   sync.Mutex
	held map[string]bool
	// AcquireErr forces Acquire to fail.
	AcquireErr error
}

// NewMockLock creates a new MockLock
func NewMockLock() *MockLock {
	return &MockLock{held: make(map[string]bool)}
}

func (m *MockLock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AcquireErr != nil {
		return false, m.AcquireErr
	}
	if m.held[name] {
		return false, nil
	}
	m.held[name] = true
	return true, nil
}

func (m *MockLock) Release(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.held, name)
	return nil
}

func (m *MockLock) Extend(ctx context.Context, name string, ttl time.Duration) error {
	return nil
}

func (m *MockLock) Ping(ctx context.Context) error {
	return nil
}

// Held reports whether the named lock is currently held.
func (m *MockLock) Held(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.held[name]
}
