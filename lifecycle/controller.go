// Package lifecycle owns the agent's top-level state machine and the
// startup/shutdown/reload orchestration that wires config, scheduler,
// executor repository, and watcher together.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/vpbank/beanpoller/config"
	"github.com/vpbank/beanpoller/executor"
	"github.com/vpbank/beanpoller/mbean"
	"github.com/vpbank/beanpoller/models"
	"github.com/vpbank/beanpoller/scheduler"
	"github.com/vpbank/beanpoller/watcher"
)

// Config holds the settings a Controller needs to load and run a
// configuration.
type Config struct {
	// ConfigPath is a single file or a directory of config files.
	ConfigPath string

	// ContinueOnError controls whether a malformed config file aborts the
	// whole load (false) or is skipped with a logged warning (true).
	ContinueOnError bool

	// GlobalPeriod is the default polling period used when a server
	// specifies neither a cron expression nor its own RunPeriodSeconds.
	GlobalPeriod time.Duration

	// ShutdownGrace bounds how long Stop waits for in-flight pool work to
	// drain, in addition to the scheduler's own fixed settle delay.
	ShutdownGrace time.Duration

	// PoolOptions configures every server's query/result pool pair.
	PoolOptions executor.PoolOptions

	// MetricsRegisterer receives the management bean for the agent process
	// (the executor repository's per-pool observability facade). Defaults
	// to prometheus.DefaultRegisterer.
	MetricsRegisterer prometheus.Registerer
}

func (c *Config) defaults() {
	if c.GlobalPeriod <= 0 {
		c.GlobalPeriod = 60 * time.Second
	}
	if c.ShutdownGrace <= 0 {
		c.ShutdownGrace = 10 * time.Second
	}
	if c.MetricsRegisterer == nil {
		c.MetricsRegisterer = prometheus.DefaultRegisterer
	}
}

// Controller owns MasterServerList, the Scheduler, and the Executor
// Repository, and drives them through Start/Stop/Reload.
type Controller struct {
	cfg    Config
	client mbean.Client
	logger *slog.Logger

	// opMu serializes Start/Stop/Reload/RunStandalone end-to-end: no two of
	// these may interleave, matching the single lifecycle mutex the
	// original design synchronizes on.
	opMu sync.Mutex

	mu    sync.Mutex
	state State

	servers []models.Server // MasterServerList
	sched   *scheduler.Scheduler
	repo    *executor.Repository
	watch   *watcher.Watcher

	schedCtx    context.Context
	schedCancel context.CancelFunc

	exitHook     func(os.Signal)
	exitHookStop context.CancelFunc
}

// New creates a Controller in the Stopped state.
func New(cfg Config, client mbean.Client, logger *slog.Logger) *Controller {
	cfg.defaults()
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Controller{cfg: cfg, client: client, logger: logger, state: Stopped}
}

// State returns the controller's current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start transitions Stopped → Starting → Running, bringing up the
// scheduler, watcher, config, executor repository, writers, and jobs in the
// order: scheduler, watcher, config load, executor repository, writer
// start/validate, job scheduling, then the process-exit hook.
func (c *Controller) Start(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	if c.state != Stopped {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.state = Starting
	c.mu.Unlock()

	if err := c.startLocked(ctx); err != nil {
		c.mu.Lock()
		c.state = Stopped
		c.mu.Unlock()
		return err
	}

	c.mu.Lock()
	c.state = Running
	c.mu.Unlock()
	return nil
}

func (c *Controller) startLocked(ctx context.Context) (err error) {
	// 1. Start Scheduler.
	c.repo = executor.NewRepository(c.cfg.PoolOptions, c.logger)
	job := executor.NewServerJob(c.repo, c.client, c.logger)
	c.sched = scheduler.New(job, c.cfg.GlobalPeriod, c.logger)

	c.schedCtx, c.schedCancel = context.WithCancel(context.Background())
	go c.sched.Start(c.schedCtx)

	// 1b. Register the management bean for the agent's managed pools: the
	// repository implements prometheus.Collector and reports one triple of
	// metrics per server pool, named uniquely by server key.
	if regErr := c.cfg.MetricsRegisterer.Register(c.repo); regErr != nil {
		return fmt.Errorf("lifecycle: register pool metrics: %w", regErr)
	}
	defer func() {
		if err != nil {
			c.cfg.MetricsRegisterer.Unregister(c.repo)
		}
	}()

	// 2. Start Config Watcher rooted at the configuration directory (or its
	// parent, in file-mode).
	info, err := os.Stat(c.cfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("lifecycle: stat config path: %w", err)
	}
	wcfg := watcher.Config{}
	if info.IsDir() {
		wcfg.Root = c.cfg.ConfigPath
	} else {
		wcfg.Root = filepath.Dir(c.cfg.ConfigPath)
		wcfg.FileMode = filepath.Base(c.cfg.ConfigPath)
	}
	w, err := watcher.New(wcfg, &reloadRequester{controller: c, logger: c.logger}, c.logger)
	if err != nil {
		return fmt.Errorf("lifecycle: start watcher: %w", err)
	}
	c.watch = w
	c.watch.Start()

	// 3-6: load config, build pools, start writers, schedule jobs.
	if err := c.loadAndScheduleLocked(ctx); err != nil {
		return err
	}

	// 7. Install process-exit hook.
	c.installExitHook()
	return nil
}

// loadAndScheduleLocked performs startup substeps 3-6: parse config, rebuild
// MasterServerList, (re)build the executor repository, start/validate every
// writer, then schedule a job per server. Shared between Start and Reload.
func (c *Controller) loadAndScheduleLocked(ctx context.Context) error {
	files, err := config.Discover(c.cfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("lifecycle: discover config: %w", err)
	}

	servers, err := config.ParseServers(files, c.cfg.ContinueOnError, c.logger)
	if err != nil && !c.cfg.ContinueOnError {
		return fmt.Errorf("lifecycle: parse config: %w", err)
	}

	started := make(map[models.OutputWriter]struct{})
	for i := range servers {
		srv := servers[i]
		c.repo.Ensure(c.schedCtx, srv.Key())

		for _, q := range srv.Queries {
			for _, w := range models.AllWriters(srv, q) {
				// A server-level writer is returned by AllWriters for every
				// one of that server's queries; Start exactly once per
				// unique instance regardless, per the "started before first
				// use, never again" contract. ValidateSetup still runs once
				// per (server, query, writer) triple.
				if _, ok := started[w]; !ok {
					if err := w.Start(ctx); err != nil {
						return fmt.Errorf("lifecycle: start writer for %s: %w", srv.DisplayName(), err)
					}
					started[w] = struct{}{}
				}
				if err := w.ValidateSetup(srv, q); err != nil {
					return fmt.Errorf("lifecycle: validate writer for %s/%s: %w", srv.DisplayName(), q.Pattern, err)
				}
			}
		}

		c.sched.Schedule(srv, time.Now())
	}

	c.servers = servers
	c.logger.Info("lifecycle: configuration loaded", "servers", len(servers))
	return nil
}

// Stop transitions Running → Stopping → Stopped, tearing components down in
// reverse startup order. Errors from individual steps are collected and
// returned together as a LifecycleError; every step is attempted regardless
// of earlier failures.
func (c *Controller) Stop() error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	if c.state != Running {
		c.mu.Unlock()
		return ErrAlreadyStopped
	}
	c.state = Stopping
	c.mu.Unlock()

	var errs []error

	// 1. Remove process-exit hook if still armed.
	c.removeExitHook()

	// 2. Scheduler: graceful stop, wait for in-flight triggers, plus settle.
	if c.schedCancel != nil {
		c.schedCancel()
	}
	if c.sched != nil {
		c.sched.Stop()
	}

	// 3. Shut down pools with a bounded await.
	done := make(chan struct{})
	go func() {
		if c.repo != nil {
			c.repo.Clear()
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(c.cfg.ShutdownGrace):
		errs = append(errs, fmt.Errorf("lifecycle: executor repository did not drain within %s", c.cfg.ShutdownGrace))
	}

	// 4. Stop Config Watcher.
	if c.watch != nil {
		c.watch.Stop()
	}

	// 5. Close every writer reachable from MasterServerList, then clear it.
	if err := c.closeAllWriters(); err != nil {
		errs = append(errs, err)
	}
	c.servers = nil

	// 6. Unregister the management bean registered in startLocked.
	if c.repo != nil {
		c.cfg.MetricsRegisterer.Unregister(c.repo)
	}

	c.mu.Lock()
	c.state = Stopped
	c.mu.Unlock()

	if len(errs) > 0 {
		return &LifecycleError{Errs: errs}
	}
	return nil
}

func (c *Controller) closeAllWriters() error {
	seen := make(map[models.OutputWriter]struct{})
	var errs []error
	for _, srv := range c.servers {
		for _, q := range srv.Queries {
			for _, w := range models.AllWriters(srv, q) {
				if _, ok := seen[w]; ok {
					continue
				}
				seen[w] = struct{}{}
				if err := w.Close(); err != nil {
					errs = append(errs, fmt.Errorf("lifecycle: close writer: %w", err))
				}
			}
		}
	}
	if len(errs) > 0 {
		return &LifecycleError{Errs: errs}
	}
	return nil
}

// Reload atomically replaces the running configuration. It is valid only
// from Running, and any failure is treated as fatal: both callers (the
// watcher's reloadRequester below and adminlistener.Listener) terminate the
// process rather than continue on a half-reloaded agent.
func (c *Controller) Reload(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	if c.state != Running {
		c.mu.Unlock()
		return ErrReloadNotRunning
	}
	c.mu.Unlock()

	// 1. Delete every job currently held by the Scheduler. It keeps running.
	c.sched.DeleteAll()

	// 2-3. Clear the Executor Repository (shuts each pool down, awaits,
	// discards). The repository's identity — and therefore its management
	// bean registration from startup — survives a reload; Clear only empties
	// its internal server map, so no re-registration is needed here.
	if c.repo != nil {
		c.repo.Clear()
	}

	// Close writers from the outgoing MasterServerList before reparsing.
	if err := c.closeAllWriters(); err != nil {
		return fmt.Errorf("lifecycle: reload: %w", err)
	}
	c.servers = nil

	// 4. Re-run startup substeps 3-6.
	if err := c.loadAndScheduleLocked(ctx); err != nil {
		return fmt.Errorf("lifecycle: reload: %w", err)
	}
	c.logger.Info("lifecycle: reload complete", "servers", len(c.servers))
	return nil
}

// RunStandalone is a convenience path for one-shot invocations: it builds a
// MasterServerList of exactly one server, schedules it, waits grace for
// in-flight jobs to drain, then stops.
func (c *Controller) RunStandalone(ctx context.Context, server models.Server, grace time.Duration) error {
	if grace <= 0 {
		grace = 10 * time.Second
	}

	c.opMu.Lock()

	c.mu.Lock()
	if c.state != Stopped {
		c.mu.Unlock()
		c.opMu.Unlock()
		return ErrAlreadyStarted
	}
	c.state = Starting
	c.mu.Unlock()

	c.repo = executor.NewRepository(c.cfg.PoolOptions, c.logger)
	job := executor.NewServerJob(c.repo, c.client, c.logger)
	c.sched = scheduler.New(job, c.cfg.GlobalPeriod, c.logger)
	c.schedCtx, c.schedCancel = context.WithCancel(context.Background())
	go c.sched.Start(c.schedCtx)

	if err := c.cfg.MetricsRegisterer.Register(c.repo); err != nil {
		c.schedCancel()
		c.mu.Lock()
		c.state = Stopped
		c.mu.Unlock()
		c.opMu.Unlock()
		return fmt.Errorf("lifecycle: run standalone: register pool metrics: %w", err)
	}

	started := make(map[models.OutputWriter]struct{})
	for _, q := range server.Queries {
		for _, w := range models.AllWriters(server, q) {
			if _, ok := started[w]; !ok {
				if err := w.Start(ctx); err != nil {
					c.cfg.MetricsRegisterer.Unregister(c.repo)
					c.schedCancel()
					c.mu.Lock()
					c.state = Stopped
					c.mu.Unlock()
					c.opMu.Unlock()
					return fmt.Errorf("lifecycle: run standalone: start writer: %w", err)
				}
				started[w] = struct{}{}
			}
			if err := w.ValidateSetup(server, q); err != nil {
				c.cfg.MetricsRegisterer.Unregister(c.repo)
				c.schedCancel()
				c.mu.Lock()
				c.state = Stopped
				c.mu.Unlock()
				c.opMu.Unlock()
				return fmt.Errorf("lifecycle: run standalone: validate writer: %w", err)
			}
		}
	}
	c.repo.Ensure(c.schedCtx, server.Key())
	c.sched.Schedule(server, time.Now())
	c.servers = []models.Server{server}

	c.mu.Lock()
	c.state = Running
	c.mu.Unlock()

	// Release opMu before waiting so a concurrent Stop (e.g. a signal
	// handler) can still run; re-acquired inside Stop for the teardown.
	c.opMu.Unlock()

	select {
	case <-time.After(grace):
	case <-ctx.Done():
	}

	return c.Stop()
}

// installExitHook arms a signal handler that, on the first SIGINT, invokes
// the hook set by SetExitHook (if any) once. SIGTERM is not handled here.
func (c *Controller) installExitHook() {
	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	c.exitHookStop = stop
	go func() {
		<-sigCtx.Done()
		if c.exitHook != nil {
			c.exitHook(os.Interrupt)
		}
	}()
}

func (c *Controller) removeExitHook() {
	if c.exitHookStop != nil {
		c.exitHookStop()
		c.exitHookStop = nil
	}
}

// SetExitHook overrides what the installed process-exit handler invokes
// (defaults to nothing beyond the signal context cancellation). cmd/beanpoller
// wires this to its own shutdown sequencing.
func (c *Controller) SetExitHook(fn func(os.Signal)) {
	c.exitHook = fn
}

// LifecycleError aggregates the errors collected from a best-effort,
// multi-step operation: Stop, and the writer-closing step that Stop and
// Reload share (Reload returns it wrapped).
type LifecycleError struct {
	Errs []error
}

func (e *LifecycleError) Error() string {
	return errors.Join(e.Errs...).Error()
}

func (e *LifecycleError) Unwrap() []error {
	return e.Errs
}

// reloadRequester adapts Controller.Reload to watcher.ReloadRequester. Any
// reload failure is fatal per the reload protocol: it is logged at ERROR
// and the process exits, rather than continuing on a half-reloaded agent.
type reloadRequester struct {
	controller *Controller
	logger     *slog.Logger
}

func (r *reloadRequester) RequestReload() {
	if err := r.controller.Reload(context.Background()); err != nil {
		r.logger.Error("lifecycle: reload failed, terminating", "error", err.Error())
		os.Exit(1)
	}
}
