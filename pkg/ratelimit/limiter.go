// Package ratelimit enforces a fixed-window request quota per gateway route.
package ratelimit

import (
	"sync"
	"time"

	"github.com/pario-ai/askgate/pkg/apierr"
	"github.com/pario-ai/askgate/pkg/models"
)

// DefaultWindow is the length of one counting window.
const DefaultWindow = 60 * time.Second

// Policy is the quota for one route.
type Policy struct {
	Route    string        `yaml:"route"`
	Capacity int           `yaml:"capacity"`
	Window   time.Duration `yaml:"window"`
}

type window struct {
	start time.Time
	count int
}

// Limiter counts requests per route. It is safe for concurrent use.
type Limiter struct {
	mu       sync.Mutex
	policies map[string]Policy
	windows  map[string]*window
	now      func() time.Time
}

// New creates a Limiter with the given policies.
func New(policies ...Policy) *Limiter {
	l := &Limiter{
		policies: make(map[string]Policy, len(policies)),
		windows:  make(map[string]*window),
		now:      time.Now,
	}
	for _, p := range policies {
		if p.Window <= 0 {
			p.Window = DefaultWindow
		}
		l.policies[p.Route] = p
	}
	return l
}

// SetClock replaces the time source. Intended for tests.
func (l *Limiter) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

// Allow consumes one slot for route or returns a RateLimited error.
// Routes without a policy are unlimited.
func (l *Limiter) Allow(route string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, ok := l.policies[route]
	if !ok || p.Capacity <= 0 {
		return nil
	}
	w := l.current(route, p)
	if w.count >= p.Capacity {
		return apierr.RateLimited(route, p.Capacity)
	}
	w.count++
	return nil
}

// Status reports the current window for route without consuming a slot.
func (l *Limiter) Status(route string) (models.RateLimitStatus, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, ok := l.policies[route]
	if !ok {
		return models.RateLimitStatus{}, false
	}
	w := l.current(route, p)
	remaining := p.Capacity - w.count
	if remaining < 0 {
		remaining = 0
	}
	return models.RateLimitStatus{
		Route:       route,
		Capacity:    p.Capacity,
		Used:        w.count,
		Remaining:   remaining,
		WindowStart: w.start,
		ResetsAt:    w.start.Add(p.Window),
	}, true
}

// current returns the live window for route, starting a new one once the
// previous has elapsed. Callers hold l.mu.
func (l *Limiter) current(route string, p Policy) *window {
	now := l.now()
	w, ok := l.windows[route]
	if !ok || now.Sub(w.start) >= p.Window {
		w = &window{start: now}
		l.windows[route] = w
	}
	return w
}
