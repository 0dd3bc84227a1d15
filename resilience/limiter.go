package resilience

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/semaphore"
)

// errWaitExpired signals that a limiter's wait budget ran out. It is
// internal; callers see ErrBulkheadTimeout.
var errWaitExpired = errors.New("resilience: wait budget expired")

// limiter bounds concurrent execution. Implementations differ only in how
// slots are represented; the bulkhead contract is identical across them.
type limiter interface {
	// tryAcquire takes a slot without blocking.
	tryAcquire() bool

	// acquire blocks for a slot until the wait budget expires (wait > 0)
	// or ctx is done. Returns errWaitExpired when the budget ran out.
	acquire(ctx context.Context, wait time.Duration) error

	// release frees a slot taken by tryAcquire or acquire.
	release()
}

// chanLimiter is a buffered-channel semaphore (the channel strategy).
type chanLimiter struct {
	sem chan struct{}
}

func newChanLimiter(n int) *chanLimiter {
	return &chanLimiter{sem: make(chan struct{}, n)}
}

func (l *chanLimiter) tryAcquire() bool {
	select {
	case l.sem <- struct{}{}:
		return true
	default:
		return false
	}
}

func (l *chanLimiter) acquire(ctx context.Context, wait time.Duration) error {
	if wait <= 0 {
		select {
		case l.sem <- struct{}{}:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case l.sem <- struct{}{}:
		return nil
	case <-timer.C:
		return errWaitExpired
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *chanLimiter) release() {
	select {
	case <-l.sem:
	default:
		// Unbalanced release; nothing to free.
	}
}

// semLimiter wraps golang.org/x/sync's weighted semaphore (the semaphore
// strategy). Waiters are served FIFO.
type semLimiter struct {
	sem *semaphore.Weighted
}

func newSemLimiter(n int) *semLimiter {
	return &semLimiter{sem: semaphore.NewWeighted(int64(n))}
}

func (l *semLimiter) tryAcquire() bool {
	return l.sem.TryAcquire(1)
}

func (l *semLimiter) acquire(ctx context.Context, wait time.Duration) error {
	if wait <= 0 {
		return l.sem.Acquire(ctx, 1)
	}

	waitCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	if err := l.sem.Acquire(waitCtx, 1); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errWaitExpired
	}
	return nil
}

func (l *semLimiter) release() {
	l.sem.Release(1)
}
