// Package scheduler runs source cycles on independent intervals. The loop
// wakes on a fixed tick, runs every due job synchronously, and advances each
// job's due time only after its cycle completes — a failed cycle waits a
// full interval instead of retrying on the next tick.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Job is one independently scheduled source cycle. Interval is a function so
// runtime interval updates take effect on the next completed cycle.
type Job struct {
	Name     string
	Interval func() time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler drives the jobs from a single background goroutine. Due times
// are owned exclusively by that goroutine; Start, Stop, and Running only
// touch the running flag and the stop channel.
type Scheduler struct {
	jobs  []Job
	tick  time.Duration
	clock clockwork.Clock

	// Notify, when set, receives scheduler lifecycle status strings.
	Notify func(string)

	mu      sync.Mutex
	running bool
	stop    chan struct{}
}

func New(jobs []Job, tick time.Duration, clock clockwork.Clock) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Scheduler{jobs: jobs, tick: tick, clock: clock}
}

// Start launches the background loop. Starting a running scheduler is a
// no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stop = make(chan struct{})
	stop := s.stop
	s.mu.Unlock()

	slog.Info("scheduler started", "tick", s.tick)
	s.notify("Scheduler started")
	go s.loop(ctx, stop)
}

// Stop signals the loop to exit. Cancellation is cooperative: an in-flight
// cycle finishes before the loop observes the signal.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stop)
	s.mu.Unlock()

	slog.Info("scheduler stopped")
	s.notify("Scheduler stopped")
}

// Running reports whether the background loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) loop(ctx context.Context, stop chan struct{}) {
	// Each job first becomes due one interval after start; the entrypoint
	// runs an immediate fetch-all before starting the scheduler, so nothing
	// is fetched twice at startup.
	due := make([]time.Time, len(s.jobs))
	start := s.clock.Now()
	for i, j := range s.jobs {
		due[i] = start.Add(j.Interval())
	}

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			slog.Info("scheduler context cancelled")
			return
		case <-s.clock.After(s.tick):
		}

		now := s.clock.Now()
		for i, j := range s.jobs {
			if now.Before(due[i]) {
				continue
			}
			slog.Info("scheduler: triggering cycle", "source", j.Name)
			if err := j.Run(ctx); err != nil {
				// The cycle has already recorded its own failure; the
				// schedule just moves on so other sources stay unaffected.
				slog.Error("scheduler: cycle failed", "source", j.Name, "error", err)
			}
			due[i] = s.clock.Now().Add(j.Interval())
		}
	}
}

func (s *Scheduler) notify(message string) {
	if s.Notify != nil {
		s.Notify(message)
	}
}
