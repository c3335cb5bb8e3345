// Command beanpoller is the management-bean polling agent binary.
//
// It loads declarative server/query/writer configuration from a directory or
// file, hot-reloads on change, and polls every configured server on its
// cron or interval trigger until interrupted (SIGINT/SIGTERM).
//
// Usage:
//
//	beanpoller [flags]
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"flag"

	"github.com/vpbank/beanpoller/adminlistener"
	"github.com/vpbank/beanpoller/config"
	"github.com/vpbank/beanpoller/executor"
	"github.com/vpbank/beanpoller/lifecycle"
	"github.com/vpbank/beanpoller/mbean"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "beanpoller: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		logLevel        string
		logFmt          string
		configPath      string
		continueOnError bool
		runPeriod       int
		once            bool
		onceGrace       int
		shutdownGrace   int

		poolMaxIdle     int
		poolIdleSec     int
		poolMaxInflight int

		poolWorkers   int
		poolQueueSize int

		adminEnabled bool
		adminAddr    string
	)

	flag.StringVar(&logLevel, "log.level", "info", "Log level: debug, info, warn, error")
	flag.StringVar(&logFmt, "log.fmt", "json", "Log format: json, text")
	flag.StringVar(&configPath, "config.path", "./conf.d", "Configuration directory or single file")
	flag.BoolVar(&continueOnError, "config.continueOnError", true, "Skip malformed config files instead of aborting")
	flag.IntVar(&runPeriod, "runPeriod", 60, "Default polling period in seconds")
	flag.BoolVar(&once, "once", false, "Run exactly one configured server to completion, then exit")
	flag.IntVar(&onceGrace, "once.grace", 10, "Seconds to wait for in-flight jobs to drain in -once mode")
	flag.IntVar(&shutdownGrace, "shutdown.grace", 10, "Seconds to wait for pools to drain on shutdown")

	flag.IntVar(&poolMaxIdle, "mbean.pool.max.idle", 2, "Max idle management-protocol sessions per server")
	flag.IntVar(&poolIdleSec, "mbean.pool.idle.timeout", 30, "Idle session timeout in seconds")
	flag.IntVar(&poolMaxInflight, "mbean.pool.max.inflight", 4, "Max concurrent sessions per server")

	flag.IntVar(&poolWorkers, "executor.pool.workers", 4, "Workers per server query/result pool")
	flag.IntVar(&poolQueueSize, "executor.pool.queue", 32, "Queue size per server query/result pool")

	flag.BoolVar(&adminEnabled, "admin.enabled", false, "Enable the loopback reload-trigger listener")
	flag.StringVar(&adminAddr, "admin.listen", "127.0.0.1:7161", "Admin listener UDP address")

	flag.Parse()

	logger, err := buildLogger(logLevel, logFmt)
	if err != nil {
		return err
	}

	pool := mbean.NewConnectionPool(mbean.PoolOptions{
		MaxIdlePerServer:       poolMaxIdle,
		IdleTimeout:            time.Duration(poolIdleSec) * time.Second,
		MaxConcurrentPerServer: poolMaxInflight,
	}, logger)
	defer pool.Close()

	client := mbean.NewSNMPClient(pool, logger)

	ctrl := lifecycle.New(lifecycle.Config{
		ConfigPath:      configPath,
		ContinueOnError: continueOnError,
		GlobalPeriod:    time.Duration(runPeriod) * time.Second,
		ShutdownGrace:   time.Duration(shutdownGrace) * time.Second,
		PoolOptions: executor.PoolOptions{
			Workers:   poolWorkers,
			QueueSize: poolQueueSize,
		},
	}, client, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if once {
		files, err := config.Discover(configPath)
		if err != nil {
			return fmt.Errorf("discover config: %w", err)
		}
		servers, err := config.ParseServers(files, continueOnError, logger)
		if err != nil {
			return fmt.Errorf("parse config: %w", err)
		}
		if len(servers) != 1 {
			return fmt.Errorf("-once requires exactly one configured server, found %d", len(servers))
		}
		return ctrl.RunStandalone(ctx, servers[0], time.Duration(onceGrace)*time.Second)
	}

	ctrl.SetExitHook(func(os.Signal) {
		if err := ctrl.Stop(); err != nil {
			logger.Error("beanpoller: shutdown error", "error", err.Error())
		}
	})

	if err := ctrl.Start(ctx); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	var admin *adminlistener.Listener
	if adminEnabled {
		admin = adminlistener.New(adminlistener.Config{ListenAddr: adminAddr}, ctrl, logger)
		if err := admin.Start(); err != nil {
			logger.Error("beanpoller: admin listener failed to start — continuing without it", "error", err.Error())
			admin = nil
		}
	}

	logger.Info("beanpoller: running — press Ctrl-C to stop")
	<-ctx.Done()
	logger.Info("beanpoller: received shutdown signal")

	if admin != nil {
		admin.Stop()
	}
	if ctrl.State() != 0 { // not already Stopped via the signal-driven exit hook
		_ = ctrl.Stop()
	}
	return nil
}

func buildLogger(level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level %q (expected debug|info|warn|error)", level)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler

	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	case "text":
		handler = slog.NewTextHandler(os.Stderr, opts)
	default:
		return nil, fmt.Errorf("unknown log format %q (expected json|text)", format)
	}

	return slog.New(handler), nil
}
