package app

import (
	"context"
	"time"

	"github.com/ecopulse/ecopulse/internal/scheduler"
)

// Jobs returns the three source cycles in scheduler form. Interval closures
// read the live intervals so SetIntervals takes effect without a restart.
func (s *Service) Jobs() []scheduler.Job {
	return []scheduler.Job{
		{
			Name:     SourceEnvironment,
			Interval: func() time.Duration { return s.Intervals().Environment },
			Run: func(ctx context.Context) error {
				s.notify("Scheduler: triggering environment fetch")
				return s.FetchEnvironment(ctx)
			},
		},
		{
			Name:     SourceMacro,
			Interval: func() time.Duration { return s.Intervals().Macro },
			Run: func(ctx context.Context) error {
				s.notify("Scheduler: triggering macro fetch")
				return s.FetchMacro(ctx)
			},
		},
		{
			Name:     SourceWikipedia,
			Interval: func() time.Duration { return s.Intervals().Wikipedia },
			Run: func(ctx context.Context) error {
				s.notify("Scheduler: triggering Wikipedia refresh")
				return s.FetchWikipedia(ctx)
			},
		},
	}
}

// Notify forwards a status string to the registered observer. Exported so
// the scheduler's lifecycle messages share the same channel.
func (s *Service) Notify(message string) {
	s.notify(message)
}
