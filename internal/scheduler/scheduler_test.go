package scheduler

import (
	"context"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	// Wednesday 10:00 — inside default business hours.
	businessTime = time.Date(2025, 6, 11, 10, 0, 0, 0, time.UTC)
	// Sunday 03:00 — outside.
	offHoursTime = time.Date(2025, 6, 15, 3, 0, 0, 0, time.UTC)
)

func businessHours() ActiveHours {
	return ActiveHours{
		StartHour: 8,
		EndHour:   18,
		Weekdays:  map[int]bool{1: true, 2: true, 3: true, 4: true, 5: true},
	}
}

func newTestScheduler(t *testing.T, at time.Time) *Scheduler {
	t.Helper()
	s := New(businessHours(), zerolog.New(os.Stderr))
	s.now = func() time.Time { return at }
	return s
}

func TestActiveHours_Contains(t *testing.T) {
	hours := businessHours()

	cases := []struct {
		at   time.Time
		want bool
	}{
		{time.Date(2025, 6, 11, 10, 0, 0, 0, time.UTC), true},  // Wed 10:00
		{time.Date(2025, 6, 11, 7, 59, 0, 0, time.UTC), false}, // Wed before start
		{time.Date(2025, 6, 11, 8, 0, 0, 0, time.UTC), true},   // Wed at start
		{time.Date(2025, 6, 11, 18, 0, 0, 0, time.UTC), false}, // Wed at end (exclusive)
		{time.Date(2025, 6, 14, 10, 0, 0, 0, time.UTC), false}, // Saturday
		{time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC), false}, // Sunday
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, hours.Contains(tc.at), tc.at.Format(time.RFC1123))
	}
}

func TestActiveHours_NoWeekdayRestriction(t *testing.T) {
	hours := ActiveHours{StartHour: 0, EndHour: 24}
	assert.True(t, hours.Contains(offHoursTime))
}

func TestSchedule_Validation(t *testing.T) {
	s := newTestScheduler(t, businessTime)

	require.NoError(t, s.Schedule("job", "Job", time.Minute, func(context.Context) {}))
	assert.Error(t, s.Schedule("job", "Job again", time.Minute, func(context.Context) {}), "duplicate id rejected")
	assert.Error(t, s.Schedule("bad", "Bad", 0, func(context.Context) {}), "non-positive interval rejected")
}

func TestTick_SkippedOutsideActiveHours(t *testing.T) {
	s := newTestScheduler(t, offHoursTime)

	var calls atomic.Int32
	require.NoError(t, s.Schedule("job", "Job", time.Minute, func(context.Context) {
		calls.Add(1)
	}))

	s.tick(s.tasks["job"])
	assert.Equal(t, int32(0), calls.Load(), "off-hours tick is lost, not queued")
}

func TestTick_RunsInsideActiveHours(t *testing.T) {
	s := newTestScheduler(t, businessTime)

	var calls atomic.Int32
	require.NoError(t, s.Schedule("job", "Job", time.Minute, func(context.Context) {
		calls.Add(1)
	}))

	s.tick(s.tasks["job"])
	assert.Equal(t, int32(1), calls.Load())
}

func TestRun_NoOverlap(t *testing.T) {
	s := newTestScheduler(t, businessTime)

	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32

	require.NoError(t, s.Schedule("slow", "Slow job", time.Minute, func(context.Context) {
		calls.Add(1)
		close(started)
		<-release
	}))

	job := s.tasks["slow"]
	go s.run(job)
	<-started

	// A tick while the previous invocation is still running is skipped.
	s.tick(job)
	assert.Equal(t, int32(1), calls.Load())

	// So is a manual trigger.
	assert.Error(t, s.TriggerNow("slow"))

	close(release)
}

func TestTriggerNow_BypassesActiveHours(t *testing.T) {
	s := newTestScheduler(t, offHoursTime)

	done := make(chan struct{})
	require.NoError(t, s.Schedule("job", "Job", time.Minute, func(context.Context) {
		close(done)
	}))

	require.NoError(t, s.TriggerNow("job"))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("manual trigger did not run")
	}
}

func TestTriggerNow_ConcurrentWithStart(t *testing.T) {
	s := newTestScheduler(t, businessTime)

	done := make(chan struct{})
	require.NoError(t, s.Schedule("job", "Job", time.Hour, func(ctx context.Context) {
		require.NotNil(t, ctx)
		close(done)
	}))

	// Start writes the run context while the manual trigger reads it;
	// the race detector keeps this honest.
	go s.Start(context.Background())
	require.NoError(t, s.TriggerNow("job"))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("manual trigger did not run")
	}
	s.Stop()
}

func TestTriggerNow_UnknownTask(t *testing.T) {
	s := newTestScheduler(t, businessTime)
	assert.Error(t, s.TriggerNow("ghost"))
}

func TestRun_RecoversFromPanic(t *testing.T) {
	s := newTestScheduler(t, businessTime)

	require.NoError(t, s.Schedule("panicky", "Panicky", time.Minute, func(context.Context) {
		panic("boom")
	}))

	job := s.tasks["panicky"]
	assert.NotPanics(t, func() { s.run(job) })

	_, running := job.snapshot()
	assert.False(t, running, "running flag released after panic")
}

func TestStatus(t *testing.T) {
	s := newTestScheduler(t, businessTime)

	require.NoError(t, s.Schedule("b-job", "B", time.Minute, func(context.Context) {}))
	require.NoError(t, s.Schedule("a-job", "A", 5*time.Minute, func(context.Context) {}))

	s.Start(context.Background())
	defer s.Stop()

	status := s.Status()
	require.Len(t, status, 2)
	assert.Equal(t, "a-job", status[0].ID, "sorted by id")
	assert.Equal(t, 5*time.Minute, status[0].Interval)
	assert.False(t, status[0].NextRun.IsZero(), "next run populated once started")
	assert.True(t, status[0].LastRun.IsZero(), "never ran yet")

	// Run one and confirm last-run is tracked.
	s.run(s.tasks["a-job"])
	status = s.Status()
	assert.False(t, status[0].LastRun.IsZero())
}
