package models

import "time"

// CacheEntry stores an answer together with the time it was cached.
// Evicted entries are no longer served as hits but remain available as a
// last-resort fallback until overwritten or cleared.
type CacheEntry struct {
	Answer   Answer    `json:"answer"`
	CachedAt time.Time `json:"cached_at"`
	Evicted  bool      `json:"evicted,omitempty"`
}

// Expired reports whether the entry is older than ttl at now.
func (e CacheEntry) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.CachedAt) > ttl
}

// CacheStats reports cache performance metrics.
type CacheStats struct {
	Entries   int64 `json:"entries"`
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
}
