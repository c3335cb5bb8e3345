// Package executor provides the bounded worker pools that decouple query
// execution from result dispatch, and the per-server repository that keeps
// one pair of pools (query pool, result pool) per managed server.
package executor

import (
	"context"
	"io"
	"log/slog"
	"sync"
)

// PoolOptions configures a BoundedPool.
type PoolOptions struct {
	// Workers is the number of goroutines draining the task queue (default 4).
	Workers int

	// QueueSize is the task channel's buffer (default 32). A full queue
	// causes TrySubmit to reject rather than block.
	QueueSize int
}

func (o *PoolOptions) defaults() {
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 32
	}
}

// BoundedPool fans tasks out to a fixed set of worker goroutines. Submission
// never blocks the caller past the queue's buffer: when the queue is full,
// TrySubmit rejects immediately rather than applying backpressure upstream.
// This is the sole admission-control mechanism in the agent — there is no
// retry or buffering beyond the queue itself.
type BoundedPool struct {
	opts   PoolOptions
	logger *slog.Logger

	tasks chan func(context.Context)
	wg    sync.WaitGroup

	mu      sync.Mutex
	started bool
	closed  bool
	active  int

	rejected  uint64
	submitted uint64
}

// NewBoundedPool creates a pool. Start must be called before TrySubmit.
func NewBoundedPool(opts PoolOptions, logger *slog.Logger) *BoundedPool {
	opts.defaults()
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &BoundedPool{
		opts:   opts,
		logger: logger,
		tasks:  make(chan func(context.Context), opts.QueueSize),
	}
}

// Start launches the worker goroutines. Safe to call once.
func (p *BoundedPool) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	for i := 0; i < p.opts.Workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
}

// TrySubmit enqueues task without blocking. Returns false if the queue is
// full or the pool has been stopped, in which case the caller must treat
// this tick as rejected (logged, not retried). The closed check and the
// send share p.mu with Stop so a submission can never race a close of
// p.tasks.
func (p *BoundedPool) TrySubmit(task func(context.Context)) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		p.rejected++
		return false
	}

	select {
	case p.tasks <- task:
		p.submitted++
		return true
	default:
		p.rejected++
		return false
	}
}

// Stop closes the task queue and waits (up to ctx's deadline, if any) for
// in-flight and already-queued tasks to drain. Queued-but-unstarted tasks
// still run; Stop does not discard them, since a worker goroutine only
// exits after observing the closed channel. Safe to call more than once.
func (p *BoundedPool) Stop() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()

	p.wg.Wait()
}

// Stats reports the pool's current observability facade: active workers and
// cumulative submitted/rejected counts.
type Stats struct {
	Active    int
	Submitted uint64
	Rejected  uint64
}

func (p *BoundedPool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{Active: p.active, Submitted: p.submitted, Rejected: p.rejected}
}

func (p *BoundedPool) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case task, ok := <-p.tasks:
			if !ok {
				return
			}
			p.mu.Lock()
			p.active++
			p.mu.Unlock()

			task(ctx)

			p.mu.Lock()
			p.active--
			p.mu.Unlock()
		case <-ctx.Done():
			return
		}
	}
}
