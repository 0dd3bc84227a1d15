package resilience

import (
	"time"

	"github.com/cenkalti/backoff/v5"
)

// NewBackoffSource returns a DelaySource factory backed by the
// cenkalti/backoff exponential implementation, which applies its own
// randomization to every interval. It covers the exponential strategy;
// the native source handles the rest. Pass the factory as
// RetryConfig.Source to select it at construction time.
func NewBackoffSource(base, max time.Duration, multiplier float64) func() DelaySource {
	return func() DelaySource {
		b := backoff.NewExponentialBackOff()
		if base > 0 {
			b.InitialInterval = base
		}
		if max > 0 {
			b.MaxInterval = max
		}
		if multiplier > 0 {
			b.Multiplier = multiplier
		}
		return &backoffSource{b: b}
	}
}

type backoffSource struct {
	b *backoff.ExponentialBackOff
}

func (s *backoffSource) Next(attempt int) time.Duration {
	d := s.b.NextBackOff()
	if d < 0 {
		return 0
	}
	return d
}
