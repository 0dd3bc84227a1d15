package resilience

import (
	"context"
	"sync"
	"time"
)

// RateLimiterConfig configures the rate limiter.
type RateLimiterConfig struct {
	// Name identifies the limiter in metrics and registries.
	Name string

	// Rate is the number of operations allowed per second.
	// Default: 100
	Rate float64

	// Burst is the maximum burst size.
	// Default: 10
	Burst int

	// WaitOnLimit waits for a token instead of returning an error.
	// Default: false
	WaitOnLimit bool

	// MaxWait is the maximum time to wait for a token.
	// Default: 1 second
	MaxWait time.Duration

	// Sink, if set, receives rejection telemetry.
	Sink Sink
}

// RateLimiter implements a token bucket rate limiter. Dependencies that
// signal throttling (KindRateLimit failures) are usually fronted by one
// of these in addition to a breaker.
type RateLimiter struct {
	config RateLimiterConfig

	mu          sync.Mutex
	tokens      float64
	lastRefresh time.Time
	allowed     int64
	limited     int64
}

// NewRateLimiter creates a new rate limiter.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	// Apply defaults
	if config.Rate <= 0 {
		config.Rate = 100
	}
	if config.Burst <= 0 {
		config.Burst = 10
	}
	if config.MaxWait <= 0 {
		config.MaxWait = time.Second
	}

	return &RateLimiter{
		config:      config,
		tokens:      float64(config.Burst),
		lastRefresh: time.Now(),
	}
}

// Name returns the limiter's configured name.
func (rl *RateLimiter) Name() string {
	return rl.config.Name
}

// Allow checks if a request is allowed under the rate limit.
func (rl *RateLimiter) Allow() bool {
	return rl.AllowN(1)
}

// AllowN checks if n requests are allowed.
func (rl *RateLimiter) AllowN(n int) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refillLocked()

	if rl.tokens >= float64(n) {
		rl.tokens -= float64(n)
		rl.allowed += int64(n)
		return true
	}

	rl.limited++
	return false
}

// Wait blocks until a token is available or the context is done.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	return rl.WaitN(ctx, 1)
}

// WaitN blocks until n tokens are available, up to MaxWait.
func (rl *RateLimiter) WaitN(ctx context.Context, n int) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if rl.AllowN(n) {
		return nil
	}

	rl.mu.Lock()
	tokensNeeded := float64(n) - rl.tokens
	waitTime := time.Duration(tokensNeeded / rl.config.Rate * float64(time.Second))
	rl.mu.Unlock()

	if waitTime > rl.config.MaxWait {
		waitTime = rl.config.MaxWait
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(waitTime):
		if rl.AllowN(n) {
			return nil
		}
		return ErrRateLimitExceeded
	}
}

// Execute runs the operation if allowed by the rate limit; otherwise the
// operation is never invoked.
func (rl *RateLimiter) Execute(ctx context.Context, op func(context.Context) error) error {
	if rl.config.WaitOnLimit {
		if err := rl.Wait(ctx); err != nil {
			rl.reject(ctx)
			return err
		}
	} else if !rl.Allow() {
		rl.reject(ctx)
		return ErrRateLimitExceeded
	}

	return op(ctx)
}

func (rl *RateLimiter) reject(ctx context.Context) {
	if rl.config.Sink != nil {
		rl.config.Sink.RecordRejection(ctx, rl.config.Name, "rate_limited")
	}
}

func (rl *RateLimiter) refillLocked() {
	now := time.Now()
	elapsed := now.Sub(rl.lastRefresh)
	rl.lastRefresh = now

	rl.tokens += elapsed.Seconds() * rl.config.Rate
	if rl.tokens > float64(rl.config.Burst) {
		rl.tokens = float64(rl.config.Burst)
	}
}

// Tokens returns the current number of available tokens.
func (rl *RateLimiter) Tokens() float64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refillLocked()
	return rl.tokens
}

// Metrics returns allow/limit counters.
func (rl *RateLimiter) Metrics() RateLimiterMetrics {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return RateLimiterMetrics{
		Name:    rl.config.Name,
		Allowed: rl.allowed,
		Limited: rl.limited,
	}
}

// RateLimiterMetrics contains rate limiter statistics.
type RateLimiterMetrics struct {
	Name    string
	Allowed int64
	Limited int64
}

// Reset refills the bucket to full capacity.
func (rl *RateLimiter) Reset() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.tokens = float64(rl.config.Burst)
	rl.lastRefresh = time.Now()
}
