// Package scheduler runs a fixed set of named recurring jobs on independent
// intervals, confined to configured active hours, with ad-hoc manual
// triggering that never disturbs the automatic schedule.
//
// The scheduler holds no durable state: on restart all bookkeeping resets,
// and business-level idempotency (surfaced meetings, lead records) is what
// prevents duplicated work.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// ActiveHours confines automatic runs to a weekday/hour window.
type ActiveHours struct {
	StartHour int // inclusive
	EndHour   int // exclusive
	Weekdays  map[int]bool // ISO weekday numbers, 1=Mon..7=Sun
}

// Contains reports whether t falls inside the active window.
func (a ActiveHours) Contains(t time.Time) bool {
	iso := int(t.Weekday())
	if iso == 0 {
		iso = 7
	}
	if len(a.Weekdays) > 0 && !a.Weekdays[iso] {
		return false
	}
	h := t.Hour()
	return h >= a.StartHour && h < a.EndHour
}

// Task is one registered recurring job.
type task struct {
	id       string
	name     string
	interval time.Duration
	fn       func(ctx context.Context)
	entryID  cron.EntryID

	mu      sync.Mutex
	running bool
	lastRun time.Time
}

// tryStart flips the running flag, reporting whether the caller won.
func (t *task) tryStart() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return false
	}
	t.running = true
	return true
}

func (t *task) finish(at time.Time) {
	t.mu.Lock()
	t.running = false
	t.lastRun = at
	t.mu.Unlock()
}

func (t *task) snapshot() (lastRun time.Time, running bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastRun, t.running
}

// TaskStatus is the observability view of one task.
type TaskStatus struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Interval time.Duration `json:"interval"`
	LastRun  time.Time     `json:"last_run"`
	NextRun  time.Time     `json:"next_run"`
	Running  bool          `json:"running"`
}

// Scheduler owns the cron runner and the task registry.
type Scheduler struct {
	cron   *cron.Cron
	hours  ActiveHours
	logger zerolog.Logger

	mu    sync.RWMutex
	tasks map[string]*task

	ctx    context.Context
	cancel context.CancelFunc

	now func() time.Time
}

// New creates a Scheduler with the given active-hours gate.
func New(hours ActiveHours, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		hours:  hours,
		logger: logger.With().Str("component", "scheduler").Logger(),
		tasks:  make(map[string]*task),
		now:    time.Now,
	}
}

// Schedule registers a recurring job. Returns an error if the id is taken.
func (s *Scheduler) Schedule(id, name string, interval time.Duration, fn func(ctx context.Context)) error {
	if interval <= 0 {
		return fmt.Errorf("scheduler: interval must be positive for %q", id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tasks[id]; exists {
		return fmt.Errorf("scheduler: task %q already registered", id)
	}

	t := &task{id: id, name: name, interval: interval, fn: fn}
	entryID, err := s.cron.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		s.tick(t)
	})
	if err != nil {
		return fmt.Errorf("scheduler: registering %q: %w", id, err)
	}
	t.entryID = entryID
	s.tasks[id] = t

	s.logger.Info().Str("task", id).Dur("interval", interval).Msg("task scheduled")
	return nil
}

// tick is one automatic invocation: gated by active hours and the
// no-overlap rule. Missed ticks are lost, never queued.
func (s *Scheduler) tick(t *task) {
	if !s.hours.Contains(s.now()) {
		s.logger.Debug().Str("task", t.id).Msg("outside active hours, tick skipped")
		return
	}
	s.run(t)
}

func (s *Scheduler) run(t *task) {
	if !t.tryStart() {
		s.logger.Warn().Str("task", t.id).Msg("previous run still in progress, tick skipped")
		return
	}

	start := s.now()
	s.logger.Debug().Str("task", t.id).Msg("task starting")

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Str("task", t.id).Interface("panic", r).Msg("task panicked")
		}
		t.finish(start)
		s.logger.Debug().Str("task", t.id).Dur("took", s.now().Sub(start)).Msg("task finished")
	}()

	s.mu.RLock()
	ctx := s.ctx
	s.mu.RUnlock()
	if ctx == nil {
		ctx = context.Background()
	}
	t.fn(ctx)
}

// TriggerNow runs a task immediately, bypassing the schedule and active
// hours. The no-overlap rule still holds: a task cannot race itself.
func (s *Scheduler) TriggerNow(id string) error {
	s.mu.RLock()
	t, ok := s.tasks[id]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("scheduler: unknown task %q", id)
	}

	if _, running := t.snapshot(); running {
		return fmt.Errorf("scheduler: task %q is already running", id)
	}

	s.logger.Info().Str("task", id).Msg("manual trigger")
	go s.run(t)
	return nil
}

// Start begins automatic scheduling. Cancel the context (or call Stop) to halt.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Info().Int("tasks", len(s.tasks)).Msg("scheduler started")
}

// Stop halts automatic scheduling and cancels in-flight task contexts.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
	s.logger.Info().Msg("scheduler stopped")
}

// Status exposes per-task last-run and next-scheduled times, sorted by id.
func (s *Scheduler) Status() []TaskStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]TaskStatus, 0, len(s.tasks))
	for _, t := range s.tasks {
		lastRun, running := t.snapshot()
		out = append(out, TaskStatus{
			ID:       t.id,
			Name:     t.name,
			Interval: t.interval,
			LastRun:  lastRun,
			NextRun:  s.cron.Entry(t.entryID).Next,
			Running:  running,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
