// Package retry builds the delay policies used when a queue drain or a
// schedule hook has to try again later.
package retry

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Doubling returns a backoff that starts at initial, doubles on every
// NextBackOff and stays at ceiling once it gets there. initial is clamped to
// ceiling. It never gives up and has no jitter. Not safe for concurrent use.
func Doubling(initial, ceiling time.Duration) *backoff.ExponentialBackOff {
	if initial <= 0 {
		initial = time.Second
	}
	if ceiling <= 0 {
		ceiling = initial
	}
	if initial > ceiling {
		initial = ceiling
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = ceiling
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}
