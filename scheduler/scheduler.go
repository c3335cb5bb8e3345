package scheduler

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/vpbank/beanpoller/models"
)

// Dispatcher is the subset of the executor the scheduler needs: one call per
// due tick, carrying the whole Server (so the job can iterate its Queries).
// The scheduler is the only producer of these calls; it never invokes
// writers directly.
type Dispatcher interface {
	Dispatch(server models.Server)
}

// entry is one scheduled job: a server, its trigger, and the next instant it
// is due. group records the server's identity (Server.Key()); DeleteAll
// clears every entry at once regardless of group.
type entry struct {
	key     JobKey
	group   string // Server.Key()
	server  models.Server
	trigger Trigger
	nextRun time.Time
}

// Scheduler dispatches one tick per scheduled Server at the times implied by
// its Trigger. The scheduler never executes queries itself; it only calls
// Dispatcher.Dispatch.
type Scheduler struct {
	dispatcher   Dispatcher
	globalPeriod time.Duration
	logger       *slog.Logger

	mu      sync.Mutex
	entries []entry

	done chan struct{}
}

// New creates a Scheduler. It does not start ticking until Start is called.
func New(dispatcher Dispatcher, globalPeriod time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if globalPeriod <= 0 {
		globalPeriod = 60 * time.Second
	}
	return &Scheduler{
		dispatcher:   dispatcher,
		globalPeriod: globalPeriod,
		logger:       logger,
	}
}

// Schedule creates a Trigger for server and adds it to the running
// schedule, returning the assigned JobKey. Safe to call while Start's loop
// is running.
func (s *Scheduler) Schedule(server models.Server, now time.Time) JobKey {
	key := NewJobKey(server.Key())
	trig := CreateTrigger(string(key), server, s.globalPeriod, now)

	s.mu.Lock()
	s.entries = append(s.entries, entry{
		key:     key,
		group:   server.Key(),
		server:  server,
		trigger: trig,
		nextRun: trig.StartTime,
	})
	s.mu.Unlock()

	return key
}

// DeleteAll removes every scheduled job. The scheduler keeps running; only
// its entries are cleared.
func (s *Scheduler) DeleteAll() {
	s.mu.Lock()
	n := len(s.entries)
	s.entries = nil
	s.mu.Unlock()
	s.logger.Debug("scheduler: deleted all jobs", "count", n)
}

// Entries returns the number of currently scheduled jobs.
func (s *Scheduler) Entries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Start runs the scheduling loop until ctx is cancelled. It must run in its
// own goroutine; the caller waits for it to return via Stop.
func (s *Scheduler) Start(ctx context.Context) {
	defer close(s.doneOrInit())

	for {
		s.mu.Lock()
		if len(s.entries) == 0 {
			s.mu.Unlock()
			select {
			case <-ctx.Done():
				return
			case <-time.After(250 * time.Millisecond):
				continue
			}
		}

		sort.Slice(s.entries, func(i, j int) bool {
			return s.entries[i].nextRun.Before(s.entries[j].nextRun)
		})
		next := s.entries[0].nextRun
		s.mu.Unlock()

		delay := time.Until(next)
		if delay < 0 {
			delay = 0
		}
		timer := time.NewTimer(delay)

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		now := time.Now()
		s.mu.Lock()
		// Snapshot every due server before releasing the lock. s.entries can
		// be reset out from under us (Reload -> DeleteAll) the moment we
		// unlock to dispatch, so nothing past this point may index it again.
		var due []models.Server
		for i := range s.entries {
			if s.entries[i].nextRun.After(now) {
				break
			}
			due = append(due, s.entries[i].server)
			s.entries[i].nextRun = s.entries[i].trigger.NextAfter(now)
		}
		s.mu.Unlock()

		// Dispatch outside the lock: a slow/blocked Dispatcher must not stall
		// the scheduler's own bookkeeping.
		for _, srv := range due {
			s.dispatcher.Dispatch(srv)
		}
	}
}

// Stop waits for the scheduling loop to exit, then holds for a short settle
// delay so in-flight dispatches from the final tick have a chance to start
// their work before the caller tears down the executor. This is a
// carried-over workaround, not a design goal; a scheduler built around a
// timing wheel instead of a poll loop could drop it. The caller must cancel
// the context passed to Start before calling Stop.
func (s *Scheduler) Stop() {
	<-s.doneOrInit()
	time.Sleep(1500 * time.Millisecond)
}

func (s *Scheduler) doneOrInit() chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done == nil {
		s.done = make(chan struct{})
	}
	return s.done
}
