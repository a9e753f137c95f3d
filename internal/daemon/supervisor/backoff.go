package supervisor

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Backoff is the restart delay policy: Initial·Multiplier^n capped at Max.
type Backoff struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
}

// DefaultBackoff returns 1s doubling up to 30s.
func DefaultBackoff() Backoff {
	return Backoff{Initial: time.Second, Max: 30 * time.Second, Multiplier: 2}
}

// Delay returns the wait before restart attempt number n (0-based).
func (b Backoff) Delay(n uint) time.Duration {
	if b.Initial <= 0 {
		return 0
	}
	if b.Max <= 0 {
		b.Max = DefaultBackoff().Max
	}
	if b.Initial >= b.Max {
		return b.Max
	}
	if b.Multiplier <= 1 {
		return b.Initial
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = b.Initial
	eb.RandomizationFactor = 0
	eb.Multiplier = b.Multiplier
	eb.MaxInterval = b.Max
	eb.MaxElapsedTime = 0
	eb.Reset()

	d := eb.NextBackOff()
	for i := uint(0); i < n && d < b.Max; i++ {
		d = eb.NextBackOff()
	}
	if d > b.Max {
		d = b.Max
	}
	return d
}
