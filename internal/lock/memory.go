package lock

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryLock is a process-local Locker.
type MemoryLock struct {
	mu      sync.Mutex
	expires map[string]time.Time
	now     func() time.Time
}

// NewMemoryLock creates an empty in-memory lock table.
func NewMemoryLock() *MemoryLock {
	return &MemoryLock{
		expires: make(map[string]time.Time),
		now:     time.Now,
	}
}

func (m *MemoryLock) Acquire(_ context.Context, name string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if exp, held := m.expires[name]; held && now.Before(exp) {
		return false, nil
	}
	m.expires[name] = now.Add(ttl)
	return true, nil
}

func (m *MemoryLock) Release(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.expires, name)
	return nil
}

func (m *MemoryLock) Extend(_ context.Context, name string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	exp, held := m.expires[name]
	if !held || !now.Before(exp) {
		return fmt.Errorf("extend lock %s: %w", name, ErrNotHeld)
	}
	m.expires[name] = now.Add(ttl)
	return nil
}

func (m *MemoryLock) Ping(context.Context) error { return nil }
