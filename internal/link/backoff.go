package link

import (
	"math/rand"
	"time"
)

// DefaultRetryDelay is the fixed wait between attempts.
const DefaultRetryDelay = 5 * time.Second

// Backoff computes the wait before retry attempt n (0-based). It never gives
// up; Delay is defined for every n.
type Backoff struct {
	Base time.Duration

	// Max caps exponential growth. Max <= Base means a fixed delay.
	Max time.Duration

	// Jitter in [0,1] spreads each delay over [d*(1-Jitter), d].
	Jitter float64

	rand func() float64
}

// FixedBackoff waits d between every attempt.
func FixedBackoff(d time.Duration) Backoff {
	return Backoff{Base: d, Max: d}
}

// ExponentialBackoff doubles from base up to max.
func ExponentialBackoff(base, max time.Duration, jitter float64) Backoff {
	return Backoff{Base: base, Max: max, Jitter: jitter}
}

func (b Backoff) Delay(attempt int) time.Duration {
	if b.Base <= 0 {
		return 0
	}
	if attempt < 0 {
		attempt = 0
	}

	d := b.Base
	if b.Max > b.Base {
		for i := 0; i < attempt && d < b.Max; i++ {
			d *= 2
		}
		if d > b.Max {
			d = b.Max
		}
	}

	if b.Jitter > 0 {
		j := b.Jitter
		if j > 1 {
			j = 1
		}
		r := rand.Float64
		if b.rand != nil {
			r = b.rand
		}
		d = time.Duration(float64(d) * (1 - j*r()))
	}
	return d
}
