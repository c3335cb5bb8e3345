package executor_test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/vpbank/beanpoller/executor"
)

func TestRepositoryEnsureIsIdempotent(t *testing.T) {
	repo := executor.NewRepository(executor.PoolOptions{Workers: 1, QueueSize: 2}, nil)
	ctx := context.Background()

	repo.Ensure(ctx, "a:161")
	qp1 := repo.QueryPool("a:161")
	repo.Ensure(ctx, "a:161")
	qp2 := repo.QueryPool("a:161")

	if qp1 != qp2 {
		t.Fatal("Ensure replaced an existing pool pair instead of leaving it alone")
	}
}

func TestRepositoryUnknownServerReturnsNil(t *testing.T) {
	repo := executor.NewRepository(executor.PoolOptions{}, nil)
	if repo.QueryPool("missing") != nil {
		t.Fatal("QueryPool for unregistered server should be nil")
	}
	if repo.ResultPool("missing") != nil {
		t.Fatal("ResultPool for unregistered server should be nil")
	}
}

func TestRepositoryClearRemovesAllPools(t *testing.T) {
	repo := executor.NewRepository(executor.PoolOptions{Workers: 1, QueueSize: 2}, nil)
	ctx := context.Background()
	repo.Ensure(ctx, "a:1")
	repo.Ensure(ctx, "b:2")

	repo.Clear()

	if repo.QueryPool("a:1") != nil || repo.QueryPool("b:2") != nil {
		t.Fatal("Clear did not remove registered server pools")
	}
	if len(repo.Stats()) != 0 {
		t.Fatalf("Stats() after Clear = %d entries, want 0", len(repo.Stats()))
	}
}

func TestRepositoryCollectReportsPerServerPoolMetrics(t *testing.T) {
	repo := executor.NewRepository(executor.PoolOptions{Workers: 1, QueueSize: 2}, nil)
	ctx := context.Background()
	repo.Ensure(ctx, "a:161")

	reg := prometheus.NewPedanticRegistry()
	if err := reg.Register(repo); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	var sawActive bool
	for _, mf := range families {
		if mf.GetName() != "beanpoller_executor_pool_active_workers" {
			continue
		}
		for _, m := range mf.Metric {
			if labelValue(m, "server") == "a:161" && labelValue(m, "pool") == "query" {
				sawActive = true
			}
		}
	}
	if !sawActive {
		t.Fatal("Gather() did not report an active-workers sample for server a:161 pool query")
	}
}

func TestRepositoryCollectSurvivesClearAndReEnsure(t *testing.T) {
	repo := executor.NewRepository(executor.PoolOptions{Workers: 1, QueueSize: 2}, nil)
	ctx := context.Background()
	repo.Ensure(ctx, "a:161")

	reg := prometheus.NewPedanticRegistry()
	if err := reg.Register(repo); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	repo.Clear()
	repo.Ensure(ctx, "b:162")

	// A reload clears and repopulates the same Repository instance; its
	// registration must keep reporting without re-registering.
	if _, err := reg.Gather(); err != nil {
		t.Fatalf("Gather() after Clear/Ensure error = %v", err)
	}
}

func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.Label {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}
