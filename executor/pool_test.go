package executor_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vpbank/beanpoller/executor"
)

func TestBoundedPoolRunsSubmittedTasks(t *testing.T) {
	pool := executor.NewBoundedPool(executor.PoolOptions{Workers: 2, QueueSize: 4}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)
	defer cancel()

	var ran atomic.Int32
	var wg sync.WaitGroup
	wg.Add(3)
	for i := 0; i < 3; i++ {
		ok := pool.TrySubmit(func(context.Context) {
			ran.Add(1)
			wg.Done()
		})
		if !ok {
			t.Fatal("TrySubmit rejected with room in the queue")
		}
	}
	wg.Wait()
	pool.Stop()

	if ran.Load() != 3 {
		t.Fatalf("ran = %d, want 3", ran.Load())
	}
}

func TestBoundedPoolRejectsWhenQueueFull(t *testing.T) {
	pool := executor.NewBoundedPool(executor.PoolOptions{Workers: 1, QueueSize: 1}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)

	block := make(chan struct{})
	// Occupy the one worker so the queue backs up.
	if !pool.TrySubmit(func(context.Context) { <-block }) {
		t.Fatal("first submit unexpectedly rejected")
	}
	if !pool.TrySubmit(func(context.Context) {}) {
		t.Fatal("second submit unexpectedly rejected")
	}

	rejected := false
	for i := 0; i < 8; i++ {
		if !pool.TrySubmit(func(context.Context) {}) {
			rejected = true
			break
		}
	}
	close(block)
	if !rejected {
		t.Fatal("expected a rejection once the queue filled up")
	}

	stats := pool.Stats()
	if stats.Rejected == 0 {
		t.Fatalf("Stats().Rejected = %d, want > 0", stats.Rejected)
	}
}

func TestBoundedPoolTrySubmitAfterStopRejectsWithoutPanic(t *testing.T) {
	pool := executor.NewBoundedPool(executor.PoolOptions{Workers: 2, QueueSize: 4}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)
	pool.Stop()

	if pool.TrySubmit(func(context.Context) {}) {
		t.Fatal("TrySubmit on a stopped pool returned true, want false")
	}
}

func TestBoundedPoolStopIsIdempotent(t *testing.T) {
	pool := executor.NewBoundedPool(executor.PoolOptions{Workers: 1, QueueSize: 1}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)

	pool.Stop()
	pool.Stop() // must not panic on a double close of the task channel
}

func TestBoundedPoolConcurrentSubmitAndStopNeverPanics(t *testing.T) {
	pool := executor.NewBoundedPool(executor.PoolOptions{Workers: 4, QueueSize: 8}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			pool.TrySubmit(func(context.Context) {})
		}
	}()
	pool.Stop()
	wg.Wait()
}

func TestBoundedPoolStopDrainsQueuedTasks(t *testing.T) {
	pool := executor.NewBoundedPool(executor.PoolOptions{Workers: 1, QueueSize: 4}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)

	var ran atomic.Int32
	for i := 0; i < 3; i++ {
		pool.TrySubmit(func(context.Context) {
			time.Sleep(5 * time.Millisecond)
			ran.Add(1)
		})
	}
	pool.Stop()

	if ran.Load() != 3 {
		t.Fatalf("ran = %d after Stop, want 3 (queued tasks must drain)", ran.Load())
	}
}
