package retry

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// DefaultDelays is the wait before the 2nd, 3rd and 4th attempts.
var DefaultDelays = []time.Duration{500 * time.Millisecond, time.Second, 2 * time.Second}

// tableBackOff returns delays from a fixed table, repeating the last entry
// once the table is exhausted.
type tableBackOff struct {
	delays []time.Duration
	next   int
}

func (b *tableBackOff) NextBackOff() time.Duration {
	d := b.delays[min(b.next, len(b.delays)-1)]
	b.next++
	return d
}

func (b *tableBackOff) Reset() { b.next = 0 }

// newBackOff builds the delay policy for one request. An empty table falls
// back to an exponential policy starting at the first default delay.
func newBackOff(delays []time.Duration) backoff.BackOff {
	if len(delays) > 0 {
		return &tableBackOff{delays: delays}
	}
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = DefaultDelays[0]
	expo.Multiplier = 2
	expo.MaxInterval = DefaultDelays[len(DefaultDelays)-1]
	expo.RandomizationFactor = 0
	expo.MaxElapsedTime = 0
	expo.Reset()
	return expo
}
