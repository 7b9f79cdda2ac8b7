package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

type memoryEntry struct {
	value    []byte
	storedAt time.Time
}

// MemoryStore is an in-process Store. Values are copied on the way in and out.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	hits    atomic.Int64
	misses  atomic.Int64
}

var (
	_ Store      = (*MemoryStore)(nil)
	_ Maintainer = (*MemoryStore)(nil)
)

// NewMemoryStore creates an empty store. A zero ttl keeps entries forever.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
	}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok || (m.ttl > 0 && time.Since(e.storedAt) > m.ttl) {
		m.misses.Add(1)
		return nil, false, nil
	}

	m.hits.Add(1)
	return append([]byte(nil), e.value...), true, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	e := memoryEntry{
		value:    append([]byte(nil), value...),
		storedAt: time.Now(),
	}

	m.mu.Lock()
	m.entries[key] = e
	m.mu.Unlock()
	return nil
}

// Stats returns the entry count and lookup counters.
func (m *MemoryStore) Stats(_ context.Context) (Stats, error) {
	m.mu.RLock()
	n := len(m.entries)
	m.mu.RUnlock()

	return Stats{
		Entries: int64(n),
		Hits:    m.hits.Load(),
		Misses:  m.misses.Load(),
	}, nil
}

// Clear removes entries, or only expired ones when expiredOnly is set.
func (m *MemoryStore) Clear(_ context.Context, expiredOnly bool) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var removed int64
	for k, e := range m.entries {
		if expiredOnly && (m.ttl == 0 || time.Since(e.storedAt) <= m.ttl) {
			continue
		}
		delete(m.entries, k)
		removed++
	}
	return removed, nil
}
