// Package gateway runs the per-request pipeline of one provider route:
// input checks, rate limiting, cache lookup, retried provider attempts and
// the stale-cache fallback.
package gateway

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pario-ai/askgate/pkg/apierr"
	"github.com/pario-ai/askgate/pkg/cache"
	"github.com/pario-ai/askgate/pkg/input"
	"github.com/pario-ai/askgate/pkg/metrics"
	"github.com/pario-ai/askgate/pkg/models"
	"github.com/pario-ai/askgate/pkg/ratelimit"
	"github.com/pario-ai/askgate/pkg/retry"
)

// StaleWarning is attached to answers served from cache after every
// provider attempt failed.
const StaleWarning = "This answer may not be up to date."

// Pipeline states, logged on every transition.
const (
	StateReceived      = "RECEIVED"
	StateRateCheck     = "RATE_CHECK"
	StateCacheCheck    = "CACHE_CHECK"
	StateAttempting    = "ATTEMPTING"
	StateCacheFallback = "CACHE_FALLBACK"
	StateSucceeded     = "SUCCEEDED"
	StateFailed        = "FAILED"
)

// UsageLogger persists completed requests. Implementations must be safe
// for concurrent use; calls are made from background goroutines.
type UsageLogger interface {
	Record(ctx context.Context, rec models.UsageRecord) error
}

// Answerer is anything that turns raw input into an Answer.
type Answerer interface {
	Answer(ctx context.Context, raw any) (models.Answer, error)
}

// Options wires a Gateway. Cache, Limiter and Usage are optional.
type Options struct {
	Route     string
	Input     input.Rules
	Limiter   *ratelimit.Limiter
	Cache     cache.Cache
	Scheduler *retry.Scheduler
	Metrics   *metrics.Collector
	Usage     UsageLogger
	Logger    logrus.FieldLogger
}

// Gateway is one provider route.
type Gateway struct {
	route     string
	input     input.Rules
	limiter   *ratelimit.Limiter
	cache     cache.Cache
	scheduler *retry.Scheduler
	metrics   *metrics.Collector
	usage     UsageLogger
	log       logrus.FieldLogger
	now       func() time.Time
}

// New creates a Gateway from opts.
func New(opts Options) *Gateway {
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	return &Gateway{
		route:     opts.Route,
		input:     opts.Input,
		limiter:   opts.Limiter,
		cache:     opts.Cache,
		scheduler: opts.Scheduler,
		metrics:   opts.Metrics,
		usage:     opts.Usage,
		log:       opts.Logger,
		now:       time.Now,
	}
}

// Route returns the route name.
func (g *Gateway) Route() string { return g.route }

// Metrics returns a snapshot of this route's counters.
func (g *Gateway) Metrics() models.MetricsSnapshot { return g.metrics.Snapshot() }

// RateLimit reports the current limiter window, if the route is limited.
func (g *Gateway) RateLimit() (models.RateLimitStatus, bool) {
	if g.limiter == nil {
		return models.RateLimitStatus{}, false
	}
	return g.limiter.Status(g.route)
}

// request tracks one pass through the pipeline.
type request struct {
	g     *Gateway
	log   logrus.FieldLogger
	start time.Time
	rec   models.UsageRecord
}

func (r *request) to(state string) {
	r.log.WithField("state", state).Debug("gateway transition")
}

// Answer runs raw through the pipeline and returns exactly one Answer or
// a classified error.
func (g *Gateway) Answer(ctx context.Context, raw any) (models.Answer, error) {
	reqID := RequestID(ctx)
	r := &request{
		g:     g,
		log:   g.log.WithFields(logrus.Fields{"request_id": reqID, "route": g.route}),
		start: g.now(),
		rec:   models.UsageRecord{RequestID: reqID, Route: g.route},
	}
	r.to(StateReceived)

	q, err := input.Validate(raw, g.input)
	if err != nil {
		return r.fail(err, true)
	}
	r.rec.QueryKey = q.Key

	r.to(StateRateCheck)
	if g.limiter != nil {
		if err := g.limiter.Allow(g.route); err != nil {
			return r.fail(err, true)
		}
	}

	cacheKey := g.route + ":" + q.Key
	r.to(StateCacheCheck)
	if g.cache != nil {
		if hit, ok := g.cache.Get(cacheKey); ok {
			g.metrics.Record(true, g.now().Sub(r.start), "")
			return r.succeed(hit.WithCached())
		}
	}

	r.to(StateAttempting)
	answer, records, err := g.scheduler.Attempt(ctx, q)
	r.rec.Attempts = len(records)
	if err == nil {
		if g.cache != nil {
			if cerr := g.cache.Set(cacheKey, answer); cerr != nil {
				r.log.WithError(cerr).Warn("cache write failed")
			}
		}
		return r.succeed(answer)
	}
	if apierr.KindOf(err) != apierr.KindAllAttemptsFailed {
		return r.fail(err, false)
	}

	r.to(StateCacheFallback)
	if g.cache != nil {
		if stale, ok := g.cache.Fallback(cacheKey); ok {
			r.log.WithField("reason", apierr.ReasonOf(err)).Info("serving cached answer after upstream failure")
			return r.succeed(stale.WithCached().WithWarning(StaleWarning))
		}
	}
	return r.fail(err, false)
}

func (r *request) succeed(a models.Answer) (models.Answer, error) {
	r.to(StateSucceeded)
	r.rec.Success = true
	r.rec.Cached = a.Cached
	r.rec.Warning = a.Warning
	r.rec.Source = a.Source
	r.finish()
	return a, nil
}

// fail ends the request with err. countMetric is false when the retry
// scheduler already recorded per-attempt samples.
func (r *request) fail(err error, countMetric bool) (models.Answer, error) {
	r.to(StateFailed)
	if countMetric {
		r.g.metrics.Record(false, r.g.now().Sub(r.start), string(apierr.KindOf(err)))
	}
	r.rec.FailureKind = string(apierr.KindOf(err))
	r.rec.FailureReason = apierr.ReasonOf(err)
	r.log.WithFields(logrus.Fields{
		"kind":   r.rec.FailureKind,
		"reason": r.rec.FailureReason,
	}).Info(err.Error())
	r.finish()
	return models.Answer{}, err
}

func (r *request) finish() {
	r.rec.LatencyMs = r.g.now().Sub(r.start).Milliseconds()
	r.rec.CreatedAt = r.g.now().UTC()
	if r.g.usage == nil {
		return
	}
	rec := r.rec
	go func() {
		if err := r.g.usage.Record(context.Background(), rec); err != nil {
			r.log.WithError(err).Warn("usage log write failed")
		}
	}()
}
