package cache

import (
	"sync"
	"time"

	"github.com/pario-ai/askgate/pkg/models"
)

// Memory is an in-process Cache guarded by a mutex.
type Memory struct {
	mu        sync.Mutex
	entries   map[string]models.CacheEntry
	ttl       time.Duration
	now       func() time.Time
	hits      int64
	misses    int64
	evictions int64
}

// NewMemory creates an empty in-memory cache.
func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{
		entries: make(map[string]models.CacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// SetClock replaces the time source. Intended for tests.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// Get returns a fresh entry. An expired entry is evicted and reported as a miss.
func (m *Memory) Get(key string) (models.Answer, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok || e.Evicted {
		m.misses++
		return models.Answer{}, false
	}
	if e.Expired(m.now(), m.ttl) {
		e.Evicted = true
		m.entries[key] = e
		m.evictions++
		m.misses++
		return models.Answer{}, false
	}
	m.hits++
	return e.Answer, true
}

// Set stores answer under key, replacing any previous entry.
func (m *Memory) Set(key string, answer models.Answer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = models.CacheEntry{Answer: answer, CachedAt: m.now()}
	return nil
}

// Fallback returns whatever entry is stored under key, ignoring its age
// and eviction.
func (m *Memory) Fallback(key string) (models.Answer, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	return e.Answer, ok
}

// Stats returns cache performance metrics. Entries counts servable entries.
func (m *Memory) Stats() (models.CacheStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var live int64
	for _, e := range m.entries {
		if !e.Evicted {
			live++
		}
	}
	return models.CacheStats{
		Entries:   live,
		Hits:      m.hits,
		Misses:    m.misses,
		Evictions: m.evictions,
	}, nil
}

// Clear removes entries. If expiredOnly is true, only expired entries are removed.
func (m *Memory) Clear(expiredOnly bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !expiredOnly {
		clear(m.entries)
		return nil
	}
	now := m.now()
	for k, e := range m.entries {
		if e.Evicted || e.Expired(now, m.ttl) {
			delete(m.entries, k)
		}
	}
	return nil
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }
