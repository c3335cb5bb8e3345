package mbean

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/gosnmp/gosnmp"
	"github.com/vpbank/beanpoller/models"
)

// PoolOptions configures the connection pool behaviour.
type PoolOptions struct {
	// MaxIdlePerServer is the maximum number of idle sessions kept per
	// server (default 2). Excess sessions returned via Put are closed
	// immediately.
	MaxIdlePerServer int

	// IdleTimeout is how long an idle session remains in the pool before
	// being discarded. Zero means no expiry.
	IdleTimeout time.Duration

	// MaxConcurrentPerServer bounds in-flight sessions per server (default
	// 4). This is independent of the executor's query-pool bound — it
	// protects the remote process from request storms even when the local
	// query pool is large.
	MaxConcurrentPerServer int

	// Dial creates new sessions. Defaults to NewSession when nil.
	Dial DialFunc
}

func (o *PoolOptions) defaults() {
	if o.MaxIdlePerServer <= 0 {
		o.MaxIdlePerServer = 2
	}
	if o.MaxConcurrentPerServer <= 0 {
		o.MaxConcurrentPerServer = 4
	}
	if o.Dial == nil {
		o.Dial = NewSession
	}
}

type poolEntry struct {
	conn       *gosnmp.GoSNMP
	returnedAt time.Time
}

type serverPool struct {
	mu   sync.Mutex
	idle []poolEntry // LIFO stack

	sem chan struct{}
}

// ConnectionPool manages gosnmp sessions keyed by server identity. It
// enforces a per-server concurrency limit and recycles idle sessions.
type ConnectionPool struct {
	opts   PoolOptions
	logger *slog.Logger

	mu    sync.RWMutex
	pools map[string]*serverPool

	closed chan struct{}
}

// NewConnectionPool creates a ready-to-use pool.
func NewConnectionPool(opts PoolOptions, logger *slog.Logger) *ConnectionPool {
	opts.defaults()
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &ConnectionPool{
		opts:   opts,
		logger: logger,
		pools:  make(map[string]*serverPool),
		closed: make(chan struct{}),
	}
}

// Get acquires a session for the given server, blocking if the per-server
// concurrency limit has been reached, and respecting context cancellation.
func (p *ConnectionPool) Get(ctx context.Context, server models.Server) (*gosnmp.GoSNMP, error) {
	key := server.Key()
	sp := p.getOrCreatePool(key)

	select {
	case <-p.closed:
		return nil, fmt.Errorf("mbean: pool closed")
	default:
	}

	select {
	case sp.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.closed:
		return nil, fmt.Errorf("mbean: pool closed")
	}

	if conn := p.popIdle(sp); conn != nil {
		return conn, nil
	}

	conn, err := p.opts.Dial(server)
	if err != nil {
		<-sp.sem
		return nil, err
	}
	return conn, nil
}

// Put returns a connection to the idle pool for reuse, closing it instead if
// the idle pool is already full. It releases the per-server concurrency slot.
func (p *ConnectionPool) Put(key string, conn *gosnmp.GoSNMP) {
	sp := p.getPool(key)
	if sp == nil {
		closeConn(conn)
		return
	}
	defer func() { <-sp.sem }()

	sp.mu.Lock()
	defer sp.mu.Unlock()

	if len(sp.idle) >= p.opts.MaxIdlePerServer {
		closeConn(conn)
		return
	}
	sp.idle = append(sp.idle, poolEntry{conn: conn, returnedAt: time.Now()})
}

// Discard closes a connection known to be broken and releases its
// concurrency slot without returning it to the idle pool.
func (p *ConnectionPool) Discard(key string, conn *gosnmp.GoSNMP) {
	closeConn(conn)
	if sp := p.getPool(key); sp != nil {
		<-sp.sem
	}
}

// Close drains all idle connections and prevents new Get calls.
func (p *ConnectionPool) Close() error {
	select {
	case <-p.closed:
		return nil
	default:
	}
	close(p.closed)

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, sp := range p.pools {
		sp.mu.Lock()
		for _, e := range sp.idle {
			closeConn(e.conn)
		}
		sp.idle = nil
		sp.mu.Unlock()
	}
	return nil
}

func (p *ConnectionPool) getOrCreatePool(key string) *serverPool {
	p.mu.RLock()
	sp, ok := p.pools[key]
	p.mu.RUnlock()
	if ok {
		return sp
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if sp, ok = p.pools[key]; ok {
		return sp
	}
	sp = &serverPool{
		idle: make([]poolEntry, 0, p.opts.MaxIdlePerServer),
		sem:  make(chan struct{}, p.opts.MaxConcurrentPerServer),
	}
	p.pools[key] = sp
	return sp
}

func (p *ConnectionPool) getPool(key string) *serverPool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.pools[key]
}

func (p *ConnectionPool) popIdle(sp *serverPool) *gosnmp.GoSNMP {
	sp.mu.Lock()
	defer sp.mu.Unlock()

	for len(sp.idle) > 0 {
		n := len(sp.idle) - 1
		e := sp.idle[n]
		sp.idle = sp.idle[:n]

		if p.opts.IdleTimeout > 0 && time.Since(e.returnedAt) > p.opts.IdleTimeout {
			closeConn(e.conn)
			continue
		}
		return e.conn
	}
	return nil
}

func closeConn(conn *gosnmp.GoSNMP) {
	if conn != nil && conn.Conn != nil {
		_ = conn.Conn.Close()
	}
}
