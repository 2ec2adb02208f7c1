// Package metrics aggregates per-gateway request outcomes.
package metrics

import (
	"sync"
	"time"

	"github.com/pario-ai/askgate/pkg/models"
)

// Collector accumulates request counts, failures and latency for one
// gateway. It is safe for concurrent use.
type Collector struct {
	mu         sync.Mutex
	requests   int64
	failures   int64
	avgLatency float64
	lastUpdate time.Time
	reasons    map[string]int64
	now        func() time.Time
}

// New creates an empty Collector.
func New() *Collector {
	return &Collector{
		reasons: make(map[string]int64),
		now:     time.Now,
	}
}

// SetClock replaces the time source. Intended for tests.
func (c *Collector) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Record counts one request. reason is ignored for successes.
func (c *Collector) Record(success bool, latency time.Duration, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.requests++
	n := float64(c.requests)
	ms := float64(latency) / float64(time.Millisecond)
	c.avgLatency = c.avgLatency*(n-1)/n + ms/n

	if !success {
		c.failures++
		if reason == "" {
			reason = "unknown"
		}
		c.reasons[reason]++
	}
	c.lastUpdate = c.now()
}

// Snapshot returns a consistent copy of the current counters.
func (c *Collector) Snapshot() models.MetricsSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := models.MetricsSnapshot{
		Requests:       c.requests,
		Failures:       c.failures,
		AvgLatencyMs:   c.avgLatency,
		LastUpdate:     c.lastUpdate,
		FailureReasons: make(map[string]int64, len(c.reasons)),
	}
	for k, v := range c.reasons {
		snap.FailureReasons[k] = v
	}
	if c.requests > 0 {
		snap.SuccessRate = float64(c.requests-c.failures) / float64(c.requests)
	}
	if !c.lastUpdate.IsZero() {
		snap.UptimeMs = c.now().Sub(c.lastUpdate).Milliseconds()
	}
	return snap
}
