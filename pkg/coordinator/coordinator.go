// Package coordinator chains gateways on the client side: it falls back
// from one gateway to the next, collapses identical overlapping questions
// into one flight and lets the newest distinct question supersede older
// ones.
package coordinator

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/pario-ai/askgate/pkg/apierr"
	"github.com/pario-ai/askgate/pkg/models"
)

// DefaultTimeout is the client-side deadline for one Generate call.
const DefaultTimeout = 15 * time.Second

// Placeholder texts returned when no gateway produced an answer.
const (
	FallbackText    = "I couldn't find a reliable answer right now. Please try again in a moment."
	FallbackWarning = "All answer providers are currently unavailable."
	TimeoutText     = "This is taking longer than expected. Please try again."
	TimeoutWarning  = "The request timed out before an answer arrived."
)

// Answerer is one link in the chain: an in-process gateway or a
// RemoteGateway.
type Answerer interface {
	Answer(ctx context.Context, raw any) (models.Answer, error)
}

// Link names an Answerer for logging.
type Link struct {
	Name     string
	Answerer Answerer
}

// Options configure a Coordinator.
type Options struct {
	Timeout time.Duration
	Logger  logrus.FieldLogger
}

// Coordinator runs questions through its chain. It is safe for concurrent
// use; the most recent distinct question wins.
type Coordinator struct {
	chain   []Link
	timeout time.Duration
	log     logrus.FieldLogger
	now     func() time.Time
	group   singleflight.Group

	mu         sync.Mutex
	generation uint64
	seq        uint64
	current    *flight
}

// flight is one shared upstream run. Fields other than id, key and gen are
// guarded by Coordinator.mu.
type flight struct {
	id      string
	key     string
	gen     uint64
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
	// done is set once the run has returned.
	done bool
	// discarded is set when a distinct question or Cancel supersedes the
	// flight before it finished.
	discarded bool
	// abandoned is set when every waiter left before the run finished.
	abandoned bool
}

// New creates a Coordinator trying links in order.
func New(opts Options, chain ...Link) *Coordinator {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	return &Coordinator{
		chain:   chain,
		timeout: opts.Timeout,
		log:     opts.Logger,
		now:     time.Now,
	}
}

// Generate answers text. Identical overlapping calls share one flight.
// When every link fails it returns a low-confidence placeholder and a nil
// error. A call superseded by a newer distinct question, or cut short by
// Cancel, returns Cancelled. On deadline, either the coordinator's or the
// caller's, it returns a placeholder together with a Timeout error. A
// waiter giving up never aborts a flight other callers still wait on.
func (c *Coordinator) Generate(ctx context.Context, text string) (models.Answer, error) {
	f := c.join(models.NormalizeKey(text))
	defer c.leave(f)
	log := c.log.WithFields(logrus.Fields{"generation": f.gen, "key": f.key})

	ch := c.group.DoChan(f.id, func() (any, error) {
		defer c.complete(f)
		return c.run(f.ctx, text)
	})

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		if c.discarded(f) {
			log.Debug("discarding superseded result")
			return models.Answer{}, apierr.Cancelled(nil)
		}
		if res.Err != nil {
			return models.Answer{}, res.Err
		}
		return res.Val.(models.Answer), nil
	case <-timer.C:
		log.WithField("timeout", c.timeout).Warn("generate timed out")
		return c.timedOut("Request timed out after %s", c.timeout)
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			log.Warn("generate hit caller deadline")
			return c.timedOut("Request timed out: %v", ctx.Err())
		}
		return models.Answer{}, apierr.Cancelled(ctx.Err())
	}
}

func (c *Coordinator) timedOut(format string, args ...any) (models.Answer, error) {
	return models.Placeholder(TimeoutText, models.SourceTimeout, TimeoutWarning, c.now()),
		apierr.Timeout(format, args...)
}

// Cancel discards the in-flight question and aborts its upstream calls.
func (c *Coordinator) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.discardLocked()
}

// Generation returns the current generation token. It advances on every
// distinct question and on Cancel.
func (c *Coordinator) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// join attaches to the running flight for key or starts a new one. A new
// flight for a distinct key supersedes whatever was in flight; restarting
// the same key keeps the generation.
func (c *Coordinator) join(key string) *flight {
	c.mu.Lock()
	defer c.mu.Unlock()
	if f := c.current; f != nil && f.key == key && !f.done && !f.abandoned {
		f.waiters++
		return f
	}
	if c.current == nil || c.current.key != key {
		c.discardLocked()
		c.generation++
	}
	c.seq++
	ctx, cancel := context.WithCancel(context.Background())
	f := &flight{
		id:      key + "#" + strconv.FormatUint(c.seq, 10),
		key:     key,
		gen:     c.generation,
		ctx:     ctx,
		cancel:  cancel,
		waiters: 1,
	}
	c.current = f
	return f
}

// leave drops one waiter; the last waiter to leave an unfinished flight
// aborts it.
func (c *Coordinator) leave(f *flight) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f.waiters--
	if f.waiters == 0 && !f.done {
		f.abandoned = true
		f.cancel()
	}
}

// complete marks f finished and releases its context.
func (c *Coordinator) complete(f *flight) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f.done = true
	f.cancel()
}

func (c *Coordinator) discarded(f *flight) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return f.discarded
}

// discardLocked supersedes the current flight if it is still running.
// Callers hold c.mu.
func (c *Coordinator) discardLocked() {
	if f := c.current; f != nil && !f.done {
		f.discarded = true
		f.cancel()
	}
	c.current = nil
}

func (c *Coordinator) run(ctx context.Context, text string) (models.Answer, error) {
	for _, link := range c.chain {
		answer, err := link.Answerer.Answer(ctx, text)
		if err == nil {
			return answer, nil
		}
		if ctx.Err() != nil || apierr.KindOf(err) == apierr.KindCancelled {
			return models.Answer{}, apierr.Cancelled(ctx.Err())
		}
		c.log.WithFields(logrus.Fields{
			"gateway": link.Name,
			"kind":    apierr.KindOf(err),
		}).Warnf("gateway failed, trying next: %v", err)
	}
	return models.Placeholder(FallbackText, models.SourceFallback, FallbackWarning, c.now()), nil
}
