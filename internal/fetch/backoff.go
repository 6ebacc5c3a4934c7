package fetch

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Schedule returns the delays that precede attempts 2..attempts.
// The delay before attempt n is min(base*2^(n-1), max), with no jitter.
func Schedule(attempts int, base, max time.Duration) []time.Duration {
	if attempts < 2 {
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 2 * base
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = max
	b.MaxElapsedTime = 0
	b.Reset()

	delays := make([]time.Duration, 0, attempts-1)
	for n := 2; n <= attempts; n++ {
		d := b.NextBackOff()
		if d > max {
			d = max
		}
		delays = append(delays, d)
	}
	return delays
}
