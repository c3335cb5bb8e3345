package mbean_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gosnmp/gosnmp"
	"github.com/vpbank/beanpoller/mbean"
	"github.com/vpbank/beanpoller/models"
)

func fakeDial(dials *atomic.Int32) mbean.DialFunc {
	return func(server models.Server) (*gosnmp.GoSNMP, error) {
		dials.Add(1)
		return &gosnmp.GoSNMP{Target: server.Host}, nil
	}
}

func TestConnectionPoolReusesReturnedSession(t *testing.T) {
	var dials atomic.Int32
	pool := mbean.NewConnectionPool(mbean.PoolOptions{
		MaxIdlePerServer:       2,
		MaxConcurrentPerServer: 2,
		Dial:                   fakeDial(&dials),
	}, nil)
	defer pool.Close()

	server := models.Server{Host: "h", Port: 161}
	ctx := context.Background()

	conn, err := pool.Get(ctx, server)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	pool.Put(server.Key(), conn)

	if _, err := pool.Get(ctx, server); err != nil {
		t.Fatalf("second Get: %v", err)
	}

	if dials.Load() != 1 {
		t.Fatalf("Dial called %d times, want 1 (second Get should reuse the returned session)", dials.Load())
	}
}

func TestConnectionPoolEnforcesConcurrencyLimit(t *testing.T) {
	var dials atomic.Int32
	pool := mbean.NewConnectionPool(mbean.PoolOptions{
		MaxConcurrentPerServer: 1,
		Dial:                   fakeDial(&dials),
	}, nil)
	defer pool.Close()

	server := models.Server{Host: "h", Port: 161}
	ctx := context.Background()

	conn, err := pool.Get(ctx, server)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	blockedCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if _, err := pool.Get(blockedCtx, server); err == nil {
		t.Fatal("expected Get to block and time out while the sole slot is held")
	}

	pool.Put(server.Key(), conn)
	if _, err := pool.Get(ctx, server); err != nil {
		t.Fatalf("Get after Put: %v", err)
	}
}

func TestConnectionPoolCloseRejectsFurtherGets(t *testing.T) {
	var dials atomic.Int32
	pool := mbean.NewConnectionPool(mbean.PoolOptions{Dial: fakeDial(&dials)}, nil)
	if err := pool.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if _, err := pool.Get(context.Background(), models.Server{Host: "h", Port: 161}); err == nil {
		t.Fatal("expected Get on a closed pool to fail")
	}
}
