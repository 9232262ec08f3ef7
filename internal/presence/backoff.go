package presence

import (
	"math/rand/v2"
	"time"
)

// Backoff is exponential reconnect backoff with proportional jitter.
type Backoff struct {
	Min    time.Duration
	Max    time.Duration
	Jitter float64 // 0..1, share of the delay randomised either way

	rand func() float64
}

// DefaultBackoff waits 1s, 2s, 4s then 5s between attempts, ±50%.
func DefaultBackoff() Backoff {
	return Backoff{Min: time.Second, Max: 5 * time.Second, Jitter: 0.5}
}

// Delay returns the wait before reconnect attempt n (0-based).
func (b Backoff) Delay(attempt int) time.Duration {
	if b.Min <= 0 {
		return 0
	}
	d := b.Min
	for i := 0; i < attempt && d < b.Max; i++ {
		d *= 2
	}
	if b.Jitter > 0 {
		r := rand.Float64
		if b.rand != nil {
			r = b.rand
		}
		d += time.Duration((r()*2 - 1) * b.Jitter * float64(d))
	}
	if b.Max > 0 && d > b.Max {
		d = b.Max
	}
	return d
}
