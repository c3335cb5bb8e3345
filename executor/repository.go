package executor

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// serverPools is the pair of bounded pools maintained for one server: a
// query pool (runs remote attribute fetches) and a result pool (runs writer
// dispatch), kept separate so writer slowness never starves query execution.
type serverPools struct {
	query  *BoundedPool
	result *BoundedPool
}

// Repository indexes one query pool and one result pool per managed server,
// rebuilt wholesale on every reload. It is the concrete form of the
// "Executor Repository" component: a map from server identity to its
// bounded pools, plus an observability facade over each.
type Repository struct {
	opts   PoolOptions
	logger *slog.Logger

	mu      sync.RWMutex
	servers map[string]*serverPools
}

// NewRepository creates an empty Repository. Populate it with Ensure before
// dispatching any work.
func NewRepository(opts PoolOptions, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Repository{
		opts:    opts,
		logger:  logger,
		servers: make(map[string]*serverPools),
	}
}

// Ensure creates and starts the query/result pool pair for serverKey if one
// does not already exist; an existing pair is left as it is. Called once per server during
// startup/reload, before any job is scheduled for that server.
func (r *Repository) Ensure(ctx context.Context, serverKey string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.servers[serverKey]; ok {
		return
	}

	sp := &serverPools{
		query:  NewBoundedPool(r.opts, r.logger),
		result: NewBoundedPool(r.opts, r.logger),
	}
	sp.query.Start(ctx)
	sp.result.Start(ctx)
	r.servers[serverKey] = sp
}

// QueryPool returns the query pool for serverKey, or nil if Ensure was never
// called for it.
func (r *Repository) QueryPool(serverKey string) *BoundedPool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if sp, ok := r.servers[serverKey]; ok {
		return sp.query
	}
	return nil
}

// ResultPool returns the result pool for serverKey, or nil if Ensure was
// never called for it.
func (r *Repository) ResultPool(serverKey string) *BoundedPool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if sp, ok := r.servers[serverKey]; ok {
		return sp.result
	}
	return nil
}

// Clear shuts down every pool this repository holds, awaiting termination
// of each, and discards them. Used on reload (before rebuilding) and on
// final shutdown.
func (r *Repository) Clear() {
	r.mu.Lock()
	servers := r.servers
	r.servers = make(map[string]*serverPools)
	r.mu.Unlock()

	var wg sync.WaitGroup
	for _, sp := range servers {
		sp := sp
		wg.Add(1)
		go func() {
			defer wg.Done()
			// The query pool must drain fully before the result pool closes:
			// a running query worker's TrySubmit into the result pool is
			// guarded against a closed pool, but stopping in this order
			// means that guard is never even exercised in the common case.
			sp.query.Stop()
			sp.result.Stop()
		}()
	}
	wg.Wait()
}

// Stats returns a snapshot of every pool's observability facade, keyed by
// server identity.
func (r *Repository) Stats() map[string]struct{ Query, Result Stats } {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]struct{ Query, Result Stats }, len(r.servers))
	for key, sp := range r.servers {
		out[key] = struct{ Query, Result Stats }{
			Query:  sp.query.Stats(),
			Result: sp.result.Stats(),
		}
	}
	return out
}

// Repository is also the self-observability hook named in the management
// bean for each managed pool: it implements prometheus.Collector directly,
// reading a fresh Stats() snapshot on every scrape, so there is nothing to
// re-register across a reload (the repository identity, and therefore its
// registration, outlives any one generation of server pools).
var (
	poolActiveDesc = prometheus.NewDesc(
		"beanpoller_executor_pool_active_workers",
		"Workers currently executing a task in this pool.",
		[]string{"server", "pool"}, nil,
	)
	poolSubmittedDesc = prometheus.NewDesc(
		"beanpoller_executor_pool_submitted_total",
		"Tasks accepted by this pool since it started.",
		[]string{"server", "pool"}, nil,
	)
	poolRejectedDesc = prometheus.NewDesc(
		"beanpoller_executor_pool_rejected_total",
		"Tasks rejected by this pool because its queue was full or it had already stopped.",
		[]string{"server", "pool"}, nil,
	)
)

// Describe implements prometheus.Collector.
func (r *Repository) Describe(ch chan<- *prometheus.Desc) {
	ch <- poolActiveDesc
	ch <- poolSubmittedDesc
	ch <- poolRejectedDesc
}

// Collect implements prometheus.Collector, reporting one (active, submitted,
// rejected) triple per pool, labeled by server identity and "query"/"result".
func (r *Repository) Collect(ch chan<- prometheus.Metric) {
	for server, st := range r.Stats() {
		collectPool(ch, server, "query", st.Query)
		collectPool(ch, server, "result", st.Result)
	}
}

func collectPool(ch chan<- prometheus.Metric, server, pool string, s Stats) {
	ch <- prometheus.MustNewConstMetric(poolActiveDesc, prometheus.GaugeValue, float64(s.Active), server, pool)
	ch <- prometheus.MustNewConstMetric(poolSubmittedDesc, prometheus.CounterValue, float64(s.Submitted), server, pool)
	ch <- prometheus.MustNewConstMetric(poolRejectedDesc, prometheus.CounterValue, float64(s.Rejected), server, pool)
}

var _ prometheus.Collector = (*Repository)(nil)
