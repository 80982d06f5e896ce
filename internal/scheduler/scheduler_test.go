package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tick = 5 * time.Second

func countingJob(name string, interval time.Duration, runs *atomic.Int32) Job {
	return Job{
		Name:     name,
		Interval: func() time.Duration { return interval },
		Run: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		},
	}
}

// advance moves the fake clock one tick and waits for the loop to finish the
// cycle and block on the next tick.
func advance(fake *clockwork.FakeClock) {
	fake.Advance(tick)
	fake.BlockUntil(1)
}

func TestSchedulerRunsJobsOnTheirIntervals(t *testing.T) {
	var envRuns, macroRuns atomic.Int32
	fake := clockwork.NewFakeClock()

	s := New([]Job{
		countingJob("environment", tick, &envRuns),
		countingJob("macro", 1000*tick, &macroRuns),
	}, tick, fake)

	s.Start(context.Background())
	defer s.Stop()
	fake.BlockUntil(1)

	for i := 0; i < 3; i++ {
		advance(fake)
	}

	assert.Equal(t, int32(3), envRuns.Load())
	assert.Equal(t, int32(0), macroRuns.Load())
}

func TestSchedulerFirstDueIsOneIntervalAfterStart(t *testing.T) {
	var runs atomic.Int32
	fake := clockwork.NewFakeClock()

	s := New([]Job{countingJob("environment", 3*tick, &runs)}, tick, fake)
	s.Start(context.Background())
	defer s.Stop()
	fake.BlockUntil(1)

	advance(fake)
	advance(fake)
	assert.Equal(t, int32(0), runs.Load())

	advance(fake)
	assert.Equal(t, int32(1), runs.Load())
}

func TestSchedulerFailedJobDoesNotBlockOthers(t *testing.T) {
	var okRuns atomic.Int32
	fake := clockwork.NewFakeClock()

	s := New([]Job{
		{
			Name:     "environment",
			Interval: func() time.Duration { return tick },
			Run:      func(ctx context.Context) error { return errors.New("boom") },
		},
		countingJob("macro", tick, &okRuns),
	}, tick, fake)

	s.Start(context.Background())
	defer s.Stop()
	fake.BlockUntil(1)

	advance(fake)
	assert.Equal(t, int32(1), okRuns.Load())
}

func TestSchedulerStartIsIdempotent(t *testing.T) {
	var runs atomic.Int32
	fake := clockwork.NewFakeClock()

	s := New([]Job{countingJob("environment", tick, &runs)}, tick, fake)
	s.Start(context.Background())
	s.Start(context.Background())
	defer s.Stop()
	require.True(t, s.Running())
	fake.BlockUntil(1)

	advance(fake)
	assert.Equal(t, int32(1), runs.Load())
}

func TestSchedulerStop(t *testing.T) {
	var runs atomic.Int32
	fake := clockwork.NewFakeClock()

	s := New([]Job{countingJob("environment", tick, &runs)}, tick, fake)
	s.Start(context.Background())
	fake.BlockUntil(1)

	advance(fake)
	require.Equal(t, int32(1), runs.Load())

	s.Stop()
	assert.False(t, s.Running())
	s.Stop() // second stop is a no-op

	// Let the loop observe the closed stop channel before moving time.
	time.Sleep(20 * time.Millisecond)
	fake.Advance(10 * tick)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), runs.Load())
}

func TestSchedulerNotifiesLifecycle(t *testing.T) {
	var messages []string
	s := New(nil, tick, clockwork.NewFakeClock())
	s.Notify = func(m string) { messages = append(messages, m) }

	s.Start(context.Background())
	s.Stop()

	assert.Equal(t, []string{"Scheduler started", "Scheduler stopped"}, messages)
}
