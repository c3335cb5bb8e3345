package executor

import (
	"context"
	"io"
	"log/slog"

	"github.com/vpbank/beanpoller/mbean"
	"github.com/vpbank/beanpoller/models"
)

// ServerJob dispatches one tick for one Server: for each Query, it submits a
// query task to that server's query pool; the query task performs the
// remote fetch and submits a result task to the server's result pool, which
// in turn calls every writer in the union of server- and query-level
// writers. Implements scheduler.Dispatcher.
type ServerJob struct {
	repo   *Repository
	client mbean.Client
	logger *slog.Logger
}

// NewServerJob builds a ServerJob against repo (for pool lookup) and client
// (for the actual remote fetch).
func NewServerJob(repo *Repository, client mbean.Client, logger *slog.Logger) *ServerJob {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &ServerJob{repo: repo, client: client, logger: logger}
}

// Dispatch implements scheduler.Dispatcher. It never blocks on query or
// write I/O: every query/result task is submitted through TrySubmit, so a
// saturated pool rejects and drops that tick for that query rather than
// stalling the scheduler.
func (j *ServerJob) Dispatch(server models.Server) {
	key := server.Key()
	qp := j.repo.QueryPool(key)
	rp := j.repo.ResultPool(key)
	if qp == nil || rp == nil {
		j.logger.Warn("executor: dispatch to unknown server", "server", server.DisplayName())
		return
	}

	for _, query := range server.Queries {
		query := query
		if !qp.TrySubmit(func(ctx context.Context) {
			j.runQuery(ctx, rp, server, query)
		}) {
			j.logger.Warn("executor: query pool saturated, tick dropped",
				"server", server.DisplayName(), "pattern", query.Pattern)
		}
	}
}

func (j *ServerJob) runQuery(ctx context.Context, rp *BoundedPool, server models.Server, query models.Query) {
	results, err := j.client.Query(ctx, server, query)
	if err != nil {
		j.logger.Error("executor: query failed",
			"server", server.DisplayName(), "pattern", query.Pattern, "error", err.Error())
		if len(results) == 0 {
			return
		}
	}

	writers := models.AllWriters(server, query)
	if len(writers) == 0 {
		j.logger.Debug("executor: no writers for query, result dropped",
			"server", server.DisplayName(), "pattern", query.Pattern)
		return
	}

	if !rp.TrySubmit(func(ctx context.Context) {
		j.dispatchResults(ctx, server, query, writers, results)
	}) {
		j.logger.Warn("executor: result pool saturated, results dropped",
			"server", server.DisplayName(), "pattern", query.Pattern)
	}
}

func (j *ServerJob) dispatchResults(ctx context.Context, server models.Server, query models.Query, writers []models.OutputWriter, results []models.Result) {
	for _, w := range writers {
		if err := w.Write(ctx, server, query, results); err != nil {
			j.logger.Error("executor: writer failed",
				"server", server.DisplayName(), "pattern", query.Pattern, "error", err.Error())
		}
	}
}
