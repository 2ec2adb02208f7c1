// Package router turns a gateway's configured endpoints into an ordered
// attempt plan.
package router

import (
	"fmt"

	"github.com/pario-ai/askgate/pkg/provider"
)

// Router resolves the endpoint to use for each attempt.
type Router struct {
	endpoints []provider.Endpoint
	attempts  int
}

// New creates a Router over endpoints in priority order. attempts is the
// total number of provider calls per request; zero means one per endpoint.
func New(endpoints []provider.Endpoint, attempts int) *Router {
	return &Router{endpoints: endpoints, attempts: attempts}
}

// Attempts returns the bounded number of attempts in a plan.
func (r *Router) Attempts() int {
	if r.attempts <= 0 {
		return len(r.endpoints)
	}
	return r.attempts
}

// Plan returns one endpoint per attempt: primary first, then fallbacks.
// When there are more attempts than endpoints the last fallback is reused.
func (r *Router) Plan() ([]provider.Endpoint, error) {
	if len(r.endpoints) == 0 {
		return nil, fmt.Errorf("no endpoints configured")
	}
	n := r.Attempts()
	plan := make([]provider.Endpoint, n)
	for i := range n {
		plan[i] = r.endpoints[min(i, len(r.endpoints)-1)]
	}
	return plan, nil
}
