// Package sqlite is a persistent answer cache backed by SQLite.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pario-ai/askgate/pkg/models"
)

// Cache stores answers keyed by normalized query text.
type Cache struct {
	db        *sql.DB
	ttl       time.Duration
	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64

	mu  sync.RWMutex
	now func() time.Time
}

const createCacheTable = `
CREATE TABLE IF NOT EXISTS answer_cache (
	query_key TEXT PRIMARY KEY,
	answer BLOB NOT NULL,
	cached_at INTEGER NOT NULL,
	evicted INTEGER NOT NULL DEFAULT 0
);
`

// New opens (or creates) the cache database at dbPath.
func New(dbPath string, ttl time.Duration) (*Cache, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}

	if _, err := db.Exec(createCacheTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate cache db: %w", err)
	}

	return &Cache{db: db, ttl: ttl, now: time.Now}, nil
}

// SetClock replaces the time source. Intended for tests.
func (c *Cache) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

func (c *Cache) clock() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now()
}

func (c *Cache) load(key string) (models.CacheEntry, bool) {
	var blob []byte
	var cachedAt int64
	var evicted bool
	err := c.db.QueryRow(
		`SELECT answer, cached_at, evicted FROM answer_cache WHERE query_key = ?`, key,
	).Scan(&blob, &cachedAt, &evicted)
	if err != nil {
		return models.CacheEntry{}, false
	}

	var a models.Answer
	if err := json.Unmarshal(blob, &a); err != nil {
		return models.CacheEntry{}, false
	}
	return models.CacheEntry{Answer: a, CachedAt: time.Unix(0, cachedAt), Evicted: evicted}, true
}

// Get returns a fresh entry. Expired rows are marked evicted and reported
// as a miss; they stay readable through Fallback.
func (c *Cache) Get(key string) (models.Answer, bool) {
	e, ok := c.load(key)
	if !ok || e.Evicted {
		c.misses.Add(1)
		return models.Answer{}, false
	}
	if e.Expired(c.clock(), c.ttl) {
		if _, err := c.db.Exec(`UPDATE answer_cache SET evicted = 1 WHERE query_key = ?`, key); err == nil {
			c.evictions.Add(1)
		}
		c.misses.Add(1)
		return models.Answer{}, false
	}
	c.hits.Add(1)
	return e.Answer, true
}

// Set stores answer under key, replacing any previous row.
func (c *Cache) Set(key string, answer models.Answer) error {
	blob, err := json.Marshal(answer)
	if err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	_, err = c.db.Exec(
		`INSERT OR REPLACE INTO answer_cache (query_key, answer, cached_at, evicted) VALUES (?, ?, ?, 0)`,
		key, blob, c.clock().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Fallback returns whatever row is stored under key, ignoring its age and
// eviction.
func (c *Cache) Fallback(key string) (models.Answer, bool) {
	e, ok := c.load(key)
	return e.Answer, ok
}

// Stats returns cache performance metrics. Entries counts servable rows.
func (c *Cache) Stats() (models.CacheStats, error) {
	var count int64
	err := c.db.QueryRow(`SELECT COUNT(*) FROM answer_cache WHERE evicted = 0`).Scan(&count)
	if err != nil {
		return models.CacheStats{}, fmt.Errorf("cache stats: %w", err)
	}
	return models.CacheStats{
		Entries:   count,
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}, nil
}

// Clear removes cache entries. If expiredOnly is true, only expired entries are removed.
func (c *Cache) Clear(expiredOnly bool) error {
	var err error
	if expiredOnly {
		cutoff := c.clock().Add(-c.ttl).UnixNano()
		_, err = c.db.Exec(`DELETE FROM answer_cache WHERE evicted = 1 OR cached_at < ?`, cutoff)
	} else {
		_, err = c.db.Exec(`DELETE FROM answer_cache`)
	}
	if err != nil {
		return fmt.Errorf("cache clear: %w", err)
	}
	return nil
}

// Close releases the database connection.
func (c *Cache) Close() error {
	return c.db.Close()
}
