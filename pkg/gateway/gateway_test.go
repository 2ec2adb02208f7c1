package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/pario-ai/askgate/pkg/apierr"
	"github.com/pario-ai/askgate/pkg/cache"
	"github.com/pario-ai/askgate/pkg/input"
	"github.com/pario-ai/askgate/pkg/metrics"
	"github.com/pario-ai/askgate/pkg/models"
	"github.com/pario-ai/askgate/pkg/provider"
	"github.com/pario-ai/askgate/pkg/quality"
	"github.com/pario-ai/askgate/pkg/ratelimit"
	"github.com/pario-ai/askgate/pkg/retry"
	"github.com/pario-ai/askgate/pkg/router"
)

const longAnswer = "The capital of France is Paris."

// upstream is a fake chat provider whose reply can be swapped mid-test.
type upstream struct {
	srv   *httptest.Server
	calls atomic.Int32
	reply atomic.Value // string body; "" means 503
}

func newUpstream(t *testing.T, body string) *upstream {
	t.Helper()
	u := &upstream{}
	u.reply.Store(body)
	u.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.calls.Add(1)
		b := u.reply.Load().(string)
		if b == "" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(b))
	}))
	t.Cleanup(u.srv.Close)
	return u
}

func chatReply(text string) string {
	return `{"choices":[{"message":{"role":"assistant","content":"` + text + `"}}]}`
}

type fixture struct {
	gw      *Gateway
	up      *upstream
	cache   *cache.Memory
	now     *time.Time
	metrics *metrics.Collector
	hook    *test.Hook
}

type fixtureOpts struct {
	capacity int
	usage    UsageLogger
}

func newFixture(t *testing.T, body string, fo fixtureOpts) *fixture {
	t.Helper()
	up := newUpstream(t, body)
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := cache.NewMemory(300 * time.Second)
	c.SetClock(func() time.Time { return now })

	m := metrics.New()
	client := provider.NewClient(provider.KindChat, provider.Options{}, nil, logger)
	endpoints := []provider.Endpoint{
		{Name: "primary", URL: up.srv.URL},
		{Name: "fallback", URL: up.srv.URL},
	}
	sched := retry.New(client, quality.New(quality.DefaultRules()), router.New(endpoints, 2),
		[]time.Duration{time.Millisecond}, m, logger)

	opts := Options{
		Route:     "chat",
		Input:     input.Rules{MinLength: 3},
		Cache:     c,
		Scheduler: sched,
		Metrics:   m,
		Usage:     fo.usage,
		Logger:    logger,
	}
	if fo.capacity > 0 {
		opts.Limiter = ratelimit.New(ratelimit.Policy{Route: "chat", Capacity: fo.capacity})
	}
	return &fixture{gw: New(opts), up: up, cache: c, now: &now, metrics: m, hook: hook}
}

func TestAnswerSuccessWritesCache(t *testing.T) {
	f := newFixture(t, chatReply(longAnswer), fixtureOpts{})

	a, err := f.gw.Answer(context.Background(), "What is the capital of France?")
	if err != nil {
		t.Fatal(err)
	}
	if a.Text != longAnswer || a.Cached {
		t.Errorf("unexpected answer %+v", a)
	}
	if _, ok := f.cache.Fallback("chat:what is the capital of france?"); !ok {
		t.Error("expected answer to be written through to cache")
	}
}

func TestCacheHitShortCircuits(t *testing.T) {
	f := newFixture(t, chatReply(longAnswer), fixtureOpts{})
	ctx := context.Background()

	if _, err := f.gw.Answer(ctx, "What is the capital of France?"); err != nil {
		t.Fatal(err)
	}
	a, err := f.gw.Answer(ctx, "  what is the   CAPITAL of france?  ")
	if err != nil {
		t.Fatal(err)
	}
	if !a.Cached {
		t.Error("expected cached answer on second request")
	}
	if a.Warning != "" {
		t.Errorf("fresh cache hit should carry no warning, got %q", a.Warning)
	}
	if got := f.up.calls.Load(); got != 1 {
		t.Errorf("expected provider called once, got %d", got)
	}
}

func TestInvalidInputNeverReachesProvider(t *testing.T) {
	f := newFixture(t, chatReply(longAnswer), fixtureOpts{})

	for _, raw := range []any{"", "hi", 42, nil} {
		_, err := f.gw.Answer(context.Background(), raw)
		if !errors.Is(err, apierr.ErrInvalidInput) {
			t.Errorf("input %v: expected InvalidInput, got %v", raw, err)
		}
	}
	if f.up.calls.Load() != 0 {
		t.Error("provider should not be contacted for invalid input")
	}
}

func TestRateLimitBeforeProvider(t *testing.T) {
	f := newFixture(t, chatReply(longAnswer), fixtureOpts{capacity: 2})
	ctx := context.Background()

	for i, q := range []string{"first question", "second question"} {
		if _, err := f.gw.Answer(ctx, q); err != nil {
			t.Fatalf("request %d: %v", i+1, err)
		}
	}
	_, err := f.gw.Answer(ctx, "third question")
	if !errors.Is(err, apierr.ErrRateLimited) {
		t.Fatalf("expected RateLimited, got %v", err)
	}
	if got := f.up.calls.Load(); got != 2 {
		t.Errorf("expected 2 provider calls, got %d", got)
	}
	if got := f.metrics.Snapshot().FailureReasons["rate_limited"]; got != 1 {
		t.Errorf("expected rate_limited failure recorded, got %d", got)
	}

	st, ok := f.gw.RateLimit()
	if !ok || st.Remaining != 0 {
		t.Errorf("expected exhausted window, got %+v (ok=%v)", st, ok)
	}
}

func TestCacheFallbackAfterFailure(t *testing.T) {
	f := newFixture(t, chatReply(longAnswer), fixtureOpts{})
	ctx := context.Background()

	if _, err := f.gw.Answer(ctx, "What is the capital of France?"); err != nil {
		t.Fatal(err)
	}

	*f.now = f.now.Add(10 * time.Minute)
	f.up.reply.Store("")

	a, err := f.gw.Answer(ctx, "What is the capital of France?")
	if err != nil {
		t.Fatalf("expected stale fallback, got %v", err)
	}
	if !a.Cached || a.Warning != StaleWarning {
		t.Errorf("expected cached answer with warning, got %+v", a)
	}
	if a.Text != longAnswer {
		t.Errorf("unexpected fallback text %q", a.Text)
	}
	if got := f.up.calls.Load(); got != 3 {
		t.Errorf("expected 1 + 2 provider calls, got %d", got)
	}
}

func TestAllAttemptsFailedWithoutCache(t *testing.T) {
	f := newFixture(t, chatReply("2+2 equals 4."), fixtureOpts{})

	_, err := f.gw.Answer(context.Background(), "What is 2+2?")
	if !errors.Is(err, apierr.ErrAllAttemptsFailed) {
		t.Fatalf("expected AllAttemptsFailed, got %v", err)
	}
	if err.Error() != "Answer too short: 13 chars" {
		t.Errorf("unexpected error message %q", err.Error())
	}
	if apierr.HTTPStatus(err) != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", apierr.HTTPStatus(err))
	}
	if got := f.up.calls.Load(); got != 2 {
		t.Errorf("expected primary and fallback attempts, got %d", got)
	}

	snap := f.metrics.Snapshot()
	if snap.Requests != 2 || snap.Failures != 2 {
		t.Errorf("expected 2 failed attempts in metrics, got %d/%d", snap.Requests, snap.Failures)
	}
}

func TestTransitionsLogged(t *testing.T) {
	f := newFixture(t, chatReply(longAnswer), fixtureOpts{})
	ctx := WithRequestID(context.Background(), "req_test1234")

	if _, err := f.gw.Answer(ctx, "What is the capital of France?"); err != nil {
		t.Fatal(err)
	}

	var states []string
	for _, e := range f.hook.AllEntries() {
		if s, ok := e.Data["state"].(string); ok {
			if e.Data["request_id"] != "req_test1234" || e.Data["route"] != "chat" {
				t.Errorf("transition missing request fields: %v", e.Data)
			}
			states = append(states, s)
		}
	}
	want := []string{StateReceived, StateRateCheck, StateCacheCheck, StateAttempting, StateSucceeded}
	if len(states) != len(want) {
		t.Fatalf("expected states %v, got %v", want, states)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Errorf("state %d: expected %s, got %s", i, want[i], states[i])
		}
	}
}

type chanUsage chan models.UsageRecord

func (c chanUsage) Record(_ context.Context, rec models.UsageRecord) error {
	c <- rec
	return nil
}

func TestUsageRecorded(t *testing.T) {
	usage := make(chanUsage, 1)
	f := newFixture(t, chatReply(longAnswer), fixtureOpts{usage: usage})
	ctx := WithRequestID(context.Background(), "req_abc")

	if _, err := f.gw.Answer(ctx, "What is the capital of France?"); err != nil {
		t.Fatal(err)
	}

	select {
	case rec := <-usage:
		if rec.RequestID != "req_abc" || rec.Route != "chat" || !rec.Success || rec.Attempts != 1 {
			t.Errorf("unexpected usage record %+v", rec)
		}
		if rec.QueryKey != "what is the capital of france?" {
			t.Errorf("unexpected query key %q", rec.QueryKey)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("usage record not delivered")
	}
}
