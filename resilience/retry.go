package resilience

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// BackoffStrategy defines how delays grow between retries.
type BackoffStrategy int

const (
	// BackoffExponential multiplies the delay by Multiplier each attempt.
	BackoffExponential BackoffStrategy = iota
	// BackoffLinear increases delay linearly with the attempt number.
	BackoffLinear
	// BackoffConstant uses the base delay for every retry.
	BackoffConstant
	// BackoffFibonacci scales the base delay by the Fibonacci sequence.
	BackoffFibonacci
)

// JitterKind defines how randomness perturbs a computed delay to avoid
// synchronized retry storms across many callers.
type JitterKind int

const (
	// JitterNone applies the computed delay as-is.
	JitterNone JitterKind = iota
	// JitterUniform replaces the delay with a uniform sample of [0, delay].
	JitterUniform
	// JitterExponential scales the delay by an Exp(1)-distributed factor.
	JitterExponential
	// JitterDecorrelated draws from [base, prev*3], carrying the previous
	// delay across attempts (capped at MaxDelay).
	JitterDecorrelated
)

// DelaySource produces the wait before each retry attempt. A source
// serves one logical call; Execute obtains a fresh source per call so
// stateful sequences (decorrelated jitter, external backoff state) never
// leak across concurrent callers.
type DelaySource interface {
	// Next returns the delay before the attempt following `attempt`
	// (1-based count of attempts already made).
	Next(attempt int) time.Duration
}

// RetryConfig configures the retry behavior.
type RetryConfig struct {
	// Name identifies the retry gate in metrics.
	Name string

	// MaxAttempts is the maximum number of attempts (including initial).
	// A value of 1 means no retry. Default: 3
	MaxAttempts int

	// BaseDelay is the starting delay between attempts.
	// Default: 100ms
	BaseDelay time.Duration

	// MaxDelay caps every computed delay.
	// Default: 30s
	MaxDelay time.Duration

	// Multiplier is the growth factor for exponential backoff.
	// Default: 2.0
	Multiplier float64

	// Strategy is the backoff strategy.
	// Default: BackoffExponential
	Strategy BackoffStrategy

	// Jitter perturbs computed delays.
	// Default: JitterNone
	Jitter JitterKind

	// RetryIf determines if a failure should trigger a retry.
	// Default: DefaultRetryIf
	RetryIf func(err error) bool

	// OnRetry is called before each retry attempt.
	OnRetry func(attempt int, err error, delay time.Duration)

	// Source overrides delay computation entirely. When set, Strategy,
	// Jitter, and Multiplier are ignored; the factory is invoked once per
	// Execute call. See NewBackoffSource for an alternative implementation.
	Source func() DelaySource

	// Sink, if set, receives per-attempt telemetry.
	Sink Sink
}

// Retry re-invokes a failed operation according to a backoff/jitter
// strategy, up to a maximum attempt count. Instances hold no per-call
// state and are safe for concurrent use.
type Retry struct {
	config RetryConfig
}

// DefaultRetryIf retries any failure except context cancellation and
// validation errors, which retrying cannot fix.
func DefaultRetryIf(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return Classify(err) != KindValidation
}

// NewRetry creates a new retry handler.
func NewRetry(config RetryConfig) *Retry {
	// Apply defaults
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.BaseDelay <= 0 {
		config.BaseDelay = 100 * time.Millisecond
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 30 * time.Second
	}
	if config.Multiplier <= 0 {
		config.Multiplier = 2.0
	}
	if config.RetryIf == nil {
		config.RetryIf = DefaultRetryIf
	}
	if config.Source == nil {
		cfg := config
		config.Source = func() DelaySource {
			return &strategySource{
				strategy:   cfg.Strategy,
				jitter:     cfg.Jitter,
				base:       cfg.BaseDelay,
				max:        cfg.MaxDelay,
				multiplier: cfg.Multiplier,
			}
		}
	}

	return &Retry{config: config}
}

// Execute runs the operation, retrying per the configured policy. A
// non-retryable failure is returned unchanged after exactly one more
// invocation than the attempts already made; exhaustion returns an
// ExhaustedError wrapping the final failure.
func (r *Retry) Execute(ctx context.Context, op func(context.Context) error) error {
	src := r.config.Source()

	var lastErr error
	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !r.config.RetryIf(err) {
			return err
		}
		if attempt >= r.config.MaxAttempts {
			break
		}

		delay := src.Next(attempt)
		if delay < 0 {
			delay = 0
		}

		if r.config.OnRetry != nil {
			r.config.OnRetry(attempt, err, delay)
		}
		if r.config.Sink != nil {
			r.config.Sink.RecordRetry(ctx, r.config.Name, attempt, delay)
		}

		if delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}
	}

	return &ExhaustedError{Attempts: r.config.MaxAttempts, Err: lastErr}
}

// Go runs Execute on its own goroutine. The returned channel is buffered
// and delivers exactly one result.
func (r *Retry) Go(ctx context.Context, op func(context.Context) error) <-chan error {
	done := make(chan error, 1)
	go func() {
		done <- r.Execute(ctx, op)
	}()
	return done
}

// Config returns the retry configuration.
func (r *Retry) Config() RetryConfig {
	return r.config
}

// strategySource is the native DelaySource, computing delays from the
// configured strategy and jitter. One instance per logical call.
type strategySource struct {
	strategy   BackoffStrategy
	jitter     JitterKind
	base       time.Duration
	max        time.Duration
	multiplier float64
	prev       time.Duration
}

func (s *strategySource) Next(attempt int) time.Duration {
	var delay time.Duration

	switch s.strategy {
	case BackoffConstant:
		delay = s.base

	case BackoffLinear:
		delay = s.base * time.Duration(attempt)

	case BackoffFibonacci:
		delay = s.base * time.Duration(fibonacci(attempt))

	default: // BackoffExponential
		delay = time.Duration(float64(s.base) * math.Pow(s.multiplier, float64(attempt-1)))
	}

	if delay > s.max {
		delay = s.max
	}

	// #nosec G404 -- jitter is non-cryptographic timing variance.
	switch s.jitter {
	case JitterUniform:
		if delay > 0 {
			delay = time.Duration(rand.Int64N(int64(delay) + 1))
		}

	case JitterExponential:
		if delay > 0 {
			delay = time.Duration(float64(delay) * rand.ExpFloat64())
			if delay > s.max {
				delay = s.max
			}
		}

	case JitterDecorrelated:
		prev := s.prev
		if prev <= 0 {
			prev = s.base
		}
		delay = s.base
		if span := int64(prev*3 - s.base); span > 0 {
			delay = s.base + time.Duration(rand.Int64N(span+1))
		}
		if delay > s.max {
			delay = s.max
		}
	}

	if delay < 0 {
		delay = 0
	}
	s.prev = delay
	return delay
}

// fibonacci returns the nth Fibonacci number (fib(1) = fib(2) = 1).
func fibonacci(n int) int64 {
	a, b := int64(0), int64(1)
	for i := 0; i < n; i++ {
		a, b = b, a+b
	}
	return a
}
