package resilience

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// workerPool implements the pool isolation strategy: a fixed set of
// worker goroutines consumes a bounded task queue, so the protected
// operation never runs on the caller's goroutine. The queue capacity is
// the bulkhead's MaxQueue; with no queue, submission is a direct handoff
// that only succeeds when a worker is idle.
type workerPool struct {
	b     *Bulkhead
	tasks chan *poolTask
	stop  chan struct{}
	wg    sync.WaitGroup
}

type poolTask struct {
	ctx  context.Context
	op   func(context.Context) error
	done chan error

	// claimed is set by whichever side settles the task first: a worker
	// starting it, or the caller abandoning it while still queued.
	claimed atomic.Bool
}

func newWorkerPool(b *Bulkhead, workers, queue int) *workerPool {
	p := &workerPool{
		b:     b,
		tasks: make(chan *poolTask, queue),
		stop:  make(chan struct{}),
	}
	p.wg.Add(workers)
	for range workers {
		go p.worker()
	}
	return p
}

func (p *workerPool) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.stop:
			return
		case task := <-p.tasks:
			if !task.claimed.CompareAndSwap(false, true) {
				continue // abandoned while queued
			}
			p.b.markActive()
			err := task.op(task.ctx)
			p.b.unmarkActive()
			task.done <- err
		}
	}
}

// run submits the operation and waits for its result. The wait budget
// covers slot acquisition only: once a worker has started the operation,
// run waits for it to finish regardless of the budget.
func (p *workerPool) run(ctx context.Context, op func(context.Context) error) error {
	task := &poolTask{ctx: ctx, op: op, done: make(chan error, 1)}

	var timeout <-chan time.Time
	if p.b.config.MaxWait > 0 {
		timer := time.NewTimer(p.b.config.MaxWait)
		defer timer.Stop()
		timeout = timer.C
	}

	// Fast path: idle worker or queue space.
	select {
	case p.tasks <- task:
	default:
		if p.b.config.MaxQueue <= 0 {
			p.b.recordRejection(ctx)
			return ErrBulkheadRejected
		}

		// Queue full: wait for space within the budget.
		p.b.addQueued(1)
		err := p.enqueue(ctx, task, timeout)
		p.b.addQueued(-1)
		if err != nil {
			return err
		}
	}

	// Enqueued; wait for completion, or abandon while still queued.
	select {
	case err := <-task.done:
		return err

	case <-timeout:
		if task.claimed.CompareAndSwap(false, true) {
			p.b.recordTimeout(ctx)
			return ErrBulkheadTimeout
		}
		return <-task.done // already running; see it through

	case <-ctx.Done():
		if task.claimed.CompareAndSwap(false, true) {
			return ctx.Err()
		}
		return <-task.done
	}
}

func (p *workerPool) enqueue(ctx context.Context, task *poolTask, timeout <-chan time.Time) error {
	select {
	case p.tasks <- task:
		return nil
	case <-timeout:
		p.b.recordTimeout(ctx)
		return ErrBulkheadTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

// buffered reports tasks sitting in the queue, not yet claimed.
func (p *workerPool) buffered() int {
	return len(p.tasks)
}

// close stops the workers and settles any tasks left in the queue.
func (p *workerPool) close() {
	close(p.stop)
	p.wg.Wait()

	for {
		select {
		case task := <-p.tasks:
			if task.claimed.CompareAndSwap(false, true) {
				task.done <- ErrBulkheadRejected
			}
		default:
			return
		}
	}
}
