package verification

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	code      string
	expiresAt time.Time
	timer     *time.Timer
}

// MemoryStore keeps codes in process memory. Every entry owns its timer; a
// timer only evicts the exact entry it was armed for, so a replaced code's
// timer can never remove its successor. Reads also honour expiresAt, which
// keeps results exact even if a timer fires late.
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]*entry
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]*entry), now: time.Now}
}

func (m *MemoryStore) Set(_ context.Context, destination, code string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if old, ok := m.items[destination]; ok {
		old.timer.Stop()
	}
	e := &entry{code: code, expiresAt: m.now().Add(ttl)}
	e.timer = time.AfterFunc(ttl, func() { m.evict(destination, e) })
	m.items[destination] = e
	return nil
}

func (m *MemoryStore) Get(_ context.Context, destination string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.items[destination]
	if !ok || !m.now().Before(e.expiresAt) {
		return "", false, nil
	}
	return e.code, true, nil
}

func (m *MemoryStore) Shorten(_ context.Context, destination, code string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.items[destination]
	if !ok || e.code != code {
		return nil
	}
	deadline := m.now().Add(ttl)
	if !deadline.Before(e.expiresAt) {
		return nil
	}
	e.timer.Stop()
	e.expiresAt = deadline
	e.timer = time.AfterFunc(ttl, func() { m.evict(destination, e) })
	return nil
}

// Len counts entries not yet evicted, expired or not.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

func (m *MemoryStore) evict(destination string, e *entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.items[destination]; ok && cur == e {
		delete(m.items, destination)
	}
}
