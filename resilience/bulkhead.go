package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// IsolationStrategy selects how the bulkhead bounds concurrency. The
// external contract is identical across strategies.
type IsolationStrategy int

const (
	// IsolationChannel bounds concurrency with a buffered-channel
	// semaphore; the operation runs on the caller's goroutine.
	IsolationChannel IsolationStrategy = iota
	// IsolationSemaphore uses a weighted semaphore with context-aware
	// acquisition; the operation runs on the caller's goroutine.
	IsolationSemaphore
	// IsolationPool hands the operation to a fixed set of worker
	// goroutines consuming a bounded queue; the caller only waits.
	IsolationPool
)

// String returns the string representation of the strategy.
func (s IsolationStrategy) String() string {
	switch s {
	case IsolationChannel:
		return "channel"
	case IsolationSemaphore:
		return "semaphore"
	case IsolationPool:
		return "pool"
	default:
		return "unknown"
	}
}

// BulkheadConfig configures the bulkhead.
type BulkheadConfig struct {
	// Name identifies the bulkhead in logs, metrics, and registries.
	Name string

	// MaxConcurrent is the maximum number of concurrent operations.
	// Default: 10
	MaxConcurrent int

	// MaxWait bounds how long a queued caller waits for a slot.
	// Zero means a queued caller waits until its context is done.
	MaxWait time.Duration

	// MaxQueue is the number of callers allowed to wait for a slot.
	// Default: 0 (no queuing; overflow is rejected immediately)
	MaxQueue int

	// Strategy selects the isolation mechanism.
	// Default: IsolationChannel
	Strategy IsolationStrategy

	// Sink, if set, receives rejection and timeout telemetry.
	Sink Sink
}

// Bulkhead bounds concurrent invocations of an operation class so that
// saturation of one dependency cannot starve unrelated call-sites in the
// same process. In-flight count never exceeds MaxConcurrent; every
// acquired slot is released exactly once on every exit path.
type Bulkhead struct {
	config BulkheadConfig
	lim    limiter
	pool   *workerPool

	mu        sync.Mutex
	active    int
	maxActive int
	queued    int
	executed  int64
	rejected  int64
	timedOut  int64

	closeOnce sync.Once
}

// NewBulkhead creates a new bulkhead.
func NewBulkhead(config BulkheadConfig) *Bulkhead {
	// Apply defaults
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 10
	}
	if config.MaxQueue < 0 {
		config.MaxQueue = 0
	}

	b := &Bulkhead{config: config}

	switch config.Strategy {
	case IsolationSemaphore:
		b.lim = newSemLimiter(config.MaxConcurrent)
	case IsolationPool:
		b.pool = newWorkerPool(b, config.MaxConcurrent, config.MaxQueue)
	default:
		b.lim = newChanLimiter(config.MaxConcurrent)
	}
	return b
}

// Name returns the bulkhead's configured name.
func (b *Bulkhead) Name() string {
	return b.config.Name
}

// Execute runs the operation within the bulkhead. With no free slot the
// caller is queued (FIFO, up to MaxQueue waiters, bounded by MaxWait) or
// rejected with ErrBulkheadRejected; a queued caller that exhausts its
// wait gets ErrBulkheadTimeout. In all gating-failure cases the operation
// was never invoked.
func (b *Bulkhead) Execute(ctx context.Context, op func(context.Context) error) error {
	if b.pool != nil {
		return b.pool.run(ctx, op)
	}

	if err := b.acquire(ctx); err != nil {
		return err
	}
	defer b.releaseSlot()

	return op(ctx)
}

// Go runs Execute on its own goroutine. The returned channel is buffered
// and delivers exactly one result.
func (b *Bulkhead) Go(ctx context.Context, op func(context.Context) error) <-chan error {
	done := make(chan error, 1)
	go func() {
		done <- b.Execute(ctx, op)
	}()
	return done
}

// Close releases background resources. Only the pool strategy holds any;
// for the other strategies Close is a no-op. Idempotent.
func (b *Bulkhead) Close() {
	b.closeOnce.Do(func() {
		if b.pool != nil {
			b.pool.close()
		}
	})
}

func (b *Bulkhead) acquire(ctx context.Context) error {
	// Fast path: free slot.
	if b.lim.tryAcquire() {
		b.markActive()
		return nil
	}

	if b.config.MaxQueue <= 0 {
		b.recordRejection(ctx)
		return ErrBulkheadRejected
	}

	b.mu.Lock()
	if b.queued >= b.config.MaxQueue {
		b.mu.Unlock()
		b.recordRejection(ctx)
		return ErrBulkheadRejected
	}
	b.queued++
	b.mu.Unlock()

	err := b.lim.acquire(ctx, b.config.MaxWait)

	b.mu.Lock()
	b.queued--
	b.mu.Unlock()

	switch {
	case err == nil:
		b.markActive()
		return nil
	case errors.Is(err, errWaitExpired):
		b.recordTimeout(ctx)
		return ErrBulkheadTimeout
	default:
		return err
	}
}

func (b *Bulkhead) releaseSlot() {
	b.lim.release()
	b.mu.Lock()
	b.active--
	b.mu.Unlock()
}

func (b *Bulkhead) markActive() {
	b.mu.Lock()
	b.active++
	if b.active > b.maxActive {
		b.maxActive = b.active
	}
	b.executed++
	b.mu.Unlock()
}

func (b *Bulkhead) unmarkActive() {
	b.mu.Lock()
	b.active--
	b.mu.Unlock()
}

func (b *Bulkhead) addQueued(delta int) {
	b.mu.Lock()
	b.queued += delta
	b.mu.Unlock()
}

func (b *Bulkhead) queuedCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.queued
}

func (b *Bulkhead) recordRejection(ctx context.Context) {
	b.mu.Lock()
	b.rejected++
	b.mu.Unlock()
	if b.config.Sink != nil {
		b.config.Sink.RecordRejection(ctx, b.config.Name, "bulkhead_full")
	}
}

func (b *Bulkhead) recordTimeout(ctx context.Context) {
	b.mu.Lock()
	b.timedOut++
	b.mu.Unlock()
	if b.config.Sink != nil {
		b.config.Sink.RecordRejection(ctx, b.config.Name, "bulkhead_timeout")
	}
}

// Metrics returns current bulkhead metrics.
func (b *Bulkhead) Metrics() BulkheadMetrics {
	b.mu.Lock()
	defer b.mu.Unlock()

	queued := b.queued
	if b.pool != nil {
		queued += b.pool.buffered()
	}

	return BulkheadMetrics{
		Name:          b.config.Name,
		Active:        b.active,
		Queued:        queued,
		MaxActive:     b.maxActive,
		Available:     b.config.MaxConcurrent - b.active,
		MaxConcurrent: b.config.MaxConcurrent,
		Executed:      b.executed,
		Rejected:      b.rejected,
		TimedOut:      b.timedOut,
	}
}

// BulkheadMetrics contains bulkhead statistics.
type BulkheadMetrics struct {
	Name          string
	Active        int
	Queued        int
	MaxActive     int
	Available     int
	MaxConcurrent int
	Executed      int64
	Rejected      int64
	TimedOut      int64
}
