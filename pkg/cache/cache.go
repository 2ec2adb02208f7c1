// Package cache stores validated answers by normalized query key.
package cache

import (
	"fmt"
	"time"

	"github.com/pario-ai/askgate/pkg/cache/sqlite"
	"github.com/pario-ai/askgate/pkg/models"
)

// DefaultTTL is how long an entry is served by Get.
const DefaultTTL = 300 * time.Second

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// Cache is a TTL answer cache. Get treats expired entries as absent and
// evicts them from the hit path; Fallback returns any stored entry,
// evicted or not, regardless of age.
type Cache interface {
	Get(key string) (models.Answer, bool)
	Set(key string, answer models.Answer) error
	Fallback(key string) (models.Answer, bool)
	Stats() (models.CacheStats, error)
	Clear(expiredOnly bool) error
	Close() error
}

// Open creates a cache for the named backend. dbPath is only used by the
// sqlite backend.
func Open(backend, dbPath string, ttl time.Duration) (Cache, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	switch backend {
	case "", BackendMemory:
		return NewMemory(ttl), nil
	case BackendSQLite:
		c, err := sqlite.New(dbPath, ttl)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", backend)
	}
}
