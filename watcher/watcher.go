// Package watcher implements the configuration directory watcher: it
// observes filesystem events under a root path, filters them down to
// config-file events, and asks a ReloadRequester to reload after a debounce
// window of quiet following the last relevant event.
package watcher

import (
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vpbank/beanpoller/config"
)

// ReloadRequester is the single callback the watcher drives. It is called
// from the debounce timer's goroutine (time.AfterFunc), not from the watch
// loop; the watcher does not serialize these calls, so a new call can begin
// while an earlier one is still running.
type ReloadRequester interface {
	RequestReload()
}

// Config controls Watcher behaviour.
type Config struct {
	// Root is the directory to watch (dir-mode) or the parent of a single
	// watched file (file-mode).
	Root string

	// FileMode, when set, restricts relevant events to exactly this one
	// file (the basename under Root); otherwise every entry under Root that
	// passes config.IsProcessConfigFile is relevant.
	FileMode string

	// SettleDelay is the coarse anti-partial-write sleep before any event
	// is acted upon (default 1s).
	SettleDelay time.Duration

	// DebounceWindow is how long the watcher waits after the last relevant
	// event before requesting a reload (default 1s).
	DebounceWindow time.Duration
}

func (c *Config) defaults() {
	if c.SettleDelay <= 0 {
		c.SettleDelay = time.Second
	}
	if c.DebounceWindow <= 0 {
		c.DebounceWindow = time.Second
	}
}

// Watcher watches Config.Root for add/modify/delete events on config files
// and debounces bursts of events into a single reload request.
type Watcher struct {
	cfg      Config
	fsw      *fsnotify.Watcher
	requestr ReloadRequester
	logger   *slog.Logger

	mu    sync.Mutex
	timer *time.Timer

	done chan struct{}
}

// New creates a Watcher. Start must be called to begin watching.
func New(cfg Config, requester ReloadRequester, logger *slog.Logger) (*Watcher, error) {
	cfg.defaults()
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(cfg.Root); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	return &Watcher{
		cfg:      cfg,
		fsw:      fsw,
		requestr: requester,
		logger:   logger,
		done:     make(chan struct{}),
	}, nil
}

// Start runs the watch loop in its own goroutine until Stop is called.
func (w *Watcher) Start() {
	go w.loop()
}

// Stop closes the underlying fsnotify watcher and waits for the loop to
// exit, cancelling any pending debounce timer.
func (w *Watcher) Stop() {
	_ = w.fsw.Close()
	<-w.done

	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
}

func (w *Watcher) loop() {
	defer close(w.done)
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if w.relevant(ev.Name) {
				w.logger.Debug("watcher: relevant event", "path", ev.Name, "op", ev.Op.String())
				time.Sleep(w.cfg.SettleDelay)
				w.scheduleReload()
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher: fsnotify error", "error", err.Error())
		}
	}
}

// relevant implements the filter step of the reload protocol: in file-mode,
// only the exact configured file matters; in dir-mode, any entry passing
// config.IsProcessConfigFile is relevant. Nonexistent paths (deletions) are
// allowed through by IsProcessConfigFile itself.
func (w *Watcher) relevant(path string) bool {
	if w.cfg.FileMode != "" {
		return filepath.Base(path) == w.cfg.FileMode
	}
	return config.IsProcessConfigFile(path)
}

// scheduleReload debounces repeated calls: a pending timer is reset rather
// than allowed to fire, so a burst of events within DebounceWindow collapses
// into exactly one reload, fired DebounceWindow after the last event.
func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.cfg.DebounceWindow, w.requestr.RequestReload)
}
