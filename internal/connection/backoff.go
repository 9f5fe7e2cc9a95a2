package connection

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// retryDelays yields min(base*2^n, max) for n = 0, 1, 2, ...
type retryDelays struct {
	b *backoff.ExponentialBackOff
}

func newRetryDelays(base, max time.Duration) *retryDelays {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = base
	b.MaxInterval = max
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	return &retryDelays{b: b}
}

// Next returns the delay for the next retry and advances the schedule.
func (r *retryDelays) Next() time.Duration {
	d := r.b.NextBackOff()
	if d == backoff.Stop || d > r.b.MaxInterval {
		return r.b.MaxInterval
	}
	return d
}

// Reset restarts the schedule at the base delay.
func (r *retryDelays) Reset() {
	r.b.Reset()
}
