package executor_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vpbank/beanpoller/executor"
	"github.com/vpbank/beanpoller/models"
)

type fakeClient struct {
	results []models.Result
	err     error
	calls   atomic.Int32
}

func (c *fakeClient) Query(ctx context.Context, server models.Server, query models.Query) ([]models.Result, error) {
	c.calls.Add(1)
	return c.results, c.err
}

type fakeWriter struct {
	mu      sync.Mutex
	written []models.Result
	writeErr error
}

func (w *fakeWriter) Start(ctx context.Context) error                      { return nil }
func (w *fakeWriter) ValidateSetup(server models.Server, query models.Query) error { return nil }
func (w *fakeWriter) Close() error                                          { return nil }
func (w *fakeWriter) Write(ctx context.Context, server models.Server, query models.Query, results []models.Result) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.written = append(w.written, results...)
	return w.writeErr
}
func (w *fakeWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.written)
}

func TestServerJobDispatchWritesResults(t *testing.T) {
	client := &fakeClient{results: []models.Result{{ObjectName: "1.2.3", Attribute: "x", Value: int64(7)}}}
	writer := &fakeWriter{}
	server := models.Server{Host: "h", Port: 161, Queries: []models.Query{
		{Pattern: "1.2.3", Writers: []models.OutputWriter{writer}},
	}}

	repo := executor.NewRepository(executor.PoolOptions{Workers: 1, QueueSize: 4}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	repo.Ensure(ctx, server.Key())

	job := executor.NewServerJob(repo, client, nil)
	job.Dispatch(server)

	deadline := time.Now().Add(time.Second)
	for writer.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if writer.count() != 1 {
		t.Fatalf("writer received %d results, want 1", writer.count())
	}
	if client.calls.Load() != 1 {
		t.Fatalf("client.Query called %d times, want 1", client.calls.Load())
	}
}

func TestServerJobDispatchToUnknownServerIsNoop(t *testing.T) {
	client := &fakeClient{}
	repo := executor.NewRepository(executor.PoolOptions{Workers: 1, QueueSize: 4}, nil)
	job := executor.NewServerJob(repo, client, nil)

	server := models.Server{Host: "never-ensured", Port: 161, Queries: []models.Query{{Pattern: "x"}}}
	job.Dispatch(server) // repo.Ensure was never called; must not panic

	time.Sleep(20 * time.Millisecond)
	if client.calls.Load() != 0 {
		t.Fatalf("client.Query called %d times, want 0", client.calls.Load())
	}
}

func TestServerJobSwallowsQueryError(t *testing.T) {
	client := &fakeClient{err: errors.New("boom")}
	server := models.Server{Host: "h", Port: 162, Queries: []models.Query{{Pattern: "x"}}}

	repo := executor.NewRepository(executor.PoolOptions{Workers: 1, QueueSize: 4}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	repo.Ensure(ctx, server.Key())

	job := executor.NewServerJob(repo, client, nil)
	job.Dispatch(server) // must not panic despite the query error

	deadline := time.Now().Add(500 * time.Millisecond)
	for client.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if client.calls.Load() != 1 {
		t.Fatalf("client.Query called %d times, want 1", client.calls.Load())
	}
}
