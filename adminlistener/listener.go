// Package adminlistener provides the external-management-operation path to
// trigger a reload: a minimal UDP control listener accepting a single
// command datagram, adapted from the same start/stop/background-goroutine
// shape as a trap listener but carrying no protocol-specific payload.
package adminlistener

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
)

// reloadCommand is the only datagram payload this listener recognizes.
const reloadCommand = "RELOAD"

// Reloader is the single callback this listener drives on a recognized
// command datagram.
type Reloader interface {
	Reload(ctx context.Context) error
}

// Config controls Listener behaviour.
type Config struct {
	// ListenAddr is the UDP address to bind (default "127.0.0.1:7161").
	ListenAddr string
}

func (c *Config) defaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = "127.0.0.1:7161"
	}
}

// Listener is a loopback control-plane socket: any process that can reach
// ListenAddr may send the reloadCommand datagram to request a reload,
// standing in for the external management operation named in the reload
// protocol.
type Listener struct {
	cfg      Config
	reloader Reloader
	logger   *slog.Logger

	conn *net.UDPConn

	mu      sync.Mutex
	running bool
	doneCh  chan struct{}
}

// New creates a Listener bound to cfg.ListenAddr once Start is called.
func New(cfg Config, reloader Reloader, logger *slog.Logger) *Listener {
	cfg.defaults()
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Listener{cfg: cfg, reloader: reloader, logger: logger}
}

// Start binds the UDP socket and launches the receive loop. Returns an
// error if the address cannot be bound.
func (l *Listener) Start() error {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return fmt.Errorf("adminlistener: already running")
	}

	addr, err := net.ResolveUDPAddr("udp", l.cfg.ListenAddr)
	if err != nil {
		l.mu.Unlock()
		return fmt.Errorf("adminlistener: resolve %s: %w", l.cfg.ListenAddr, err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		l.mu.Unlock()
		return fmt.Errorf("adminlistener: listen %s: %w", l.cfg.ListenAddr, err)
	}

	l.conn = conn
	l.running = true
	l.doneCh = make(chan struct{})
	l.mu.Unlock()

	go l.loop()
	l.logger.Info("adminlistener: listening", "addr", l.cfg.ListenAddr)
	return nil
}

// Stop closes the UDP socket and waits for the receive loop to exit. Safe
// to call multiple times.
func (l *Listener) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	l.running = false
	conn := l.conn
	done := l.doneCh
	l.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	<-done
}

func (l *Listener) loop() {
	defer close(l.doneCh)

	buf := make([]byte, 64)
	for {
		n, _, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			// Closed socket (Stop) is the expected exit path.
			return
		}
		if string(buf[:n]) != reloadCommand {
			l.logger.Warn("adminlistener: unrecognized command, ignored")
			continue
		}
		l.logger.Info("adminlistener: reload requested")
		if err := l.reloader.Reload(context.Background()); err != nil {
			// A failed reload leaves the agent in an indeterminate state;
			// terminate rather than keep serving on half-reloaded config,
			// matching the watcher-triggered reload path's fatal policy.
			l.logger.Error("adminlistener: reload failed, terminating", "error", err.Error())
			os.Exit(1)
		}
	}
}
