package governor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oakline-labs/outreach-agent/internal/store"
)

// fakeLedger is an in-memory Ledger for unit tests.
type fakeLedger struct {
	counts map[string]int // "day|type"
	err    error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{counts: make(map[string]int)}
}

func (f *fakeLedger) key(day, typ string) string { return day + "|" + typ }

func (f *fakeLedger) IncrementActivity(_ context.Context, day, typ string) error {
	if f.err != nil {
		return f.err
	}
	f.counts[f.key(day, typ)]++
	return nil
}

func (f *fakeLedger) ActivityCount(_ context.Context, day, typ string) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.counts[f.key(day, typ)], nil
}

func (f *fakeLedger) ActivityCountSince(_ context.Context, fromDay, typ string) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	total := 0
	for k, v := range f.counts {
		// key layout: "2006-01-02|type"
		if len(k) > 11 && k[:10] >= fromDay && k[11:] == typ {
			total += v
		}
	}
	return total, nil
}

func (f *fakeLedger) PruneActivityBefore(_ context.Context, cutoffDay string) error {
	if f.err != nil {
		return f.err
	}
	for k := range f.counts {
		if len(k) > 10 && k[:10] < cutoffDay {
			delete(f.counts, k)
		}
	}
	return nil
}

// wednesday is a fixed mid-week reference: 3 working days remain (Wed, Thu, Fri).
var wednesday = time.Date(2025, 6, 11, 10, 0, 0, 0, time.UTC)

func newTestGovernor(t *testing.T, ledger Ledger, useRecommended bool) *Governor {
	t.Helper()
	g := New(DefaultPolicies(), ledger, useRecommended, zerolog.New(os.Stderr))
	g.now = func() time.Time { return wednesday }
	return g
}

func setCount(ledger *fakeLedger, day time.Time, typ ActivityType, n int) {
	ledger.counts[ledger.key(store.Day(day), string(typ))] = n
}

func TestCanPerform_DailyBoundary(t *testing.T) {
	ledger := newFakeLedger()
	g := newTestGovernor(t, ledger, true)

	// comment: recommended 15, no weekly limit
	setCount(ledger, wednesday, ActivityComment, 14)
	v := g.CanPerform(context.Background(), ActivityComment)
	assert.True(t, v.Allowed, "count = limit-1 must be allowed")
	assert.Equal(t, 14, v.DailyCount)
	assert.Equal(t, 15, v.DailyLimit)

	setCount(ledger, wednesday, ActivityComment, 15)
	v = g.CanPerform(context.Background(), ActivityComment)
	assert.False(t, v.Allowed, "count = limit must be denied")
	assert.Contains(t, v.Reason, "daily limit")
}

func TestCanPerform_HardDailyWhenRecommendedDisabled(t *testing.T) {
	ledger := newFakeLedger()
	g := newTestGovernor(t, ledger, false)

	// comment: hard daily 20
	setCount(ledger, wednesday, ActivityComment, 16)
	v := g.CanPerform(context.Background(), ActivityComment)
	assert.True(t, v.Allowed)
	assert.Equal(t, 20, v.DailyLimit)
}

func TestCanPerform_WeeklyLimitIndependent(t *testing.T) {
	ledger := newFakeLedger()
	g := newTestGovernor(t, ledger, true)

	// Spread 100 invitations across the trailing week, none today.
	for i := 1; i <= 5; i++ {
		setCount(ledger, wednesday.AddDate(0, 0, -i), ActivityInvitation, 20)
	}

	v := g.CanPerform(context.Background(), ActivityInvitation)
	assert.False(t, v.Allowed, "weekly limit denies even with zero sent today")
	assert.Contains(t, v.Reason, "weekly limit")
	assert.Equal(t, 100, v.WeeklyCount)
	assert.Equal(t, 100, v.WeeklyLimit)
}

func TestCanPerform_SmartPacing(t *testing.T) {
	ledger := newFakeLedger()
	g := newTestGovernor(t, ledger, true)

	// 70 of 100 weekly invitations used, 3 working days remain: budget 10.
	setCount(ledger, wednesday.AddDate(0, 0, -2), ActivityInvitation, 70)

	v := g.CanPerform(context.Background(), ActivityInvitation)
	assert.True(t, v.Allowed)
	assert.Equal(t, 10, v.SmartBudget)
	assert.Equal(t, 10, v.DailyLimit)

	setCount(ledger, wednesday, ActivityInvitation, 10)
	v = g.CanPerform(context.Background(), ActivityInvitation)
	assert.False(t, v.Allowed, "smart budget acts as the effective daily limit")
}

func TestSmartDailyBudget_Clamps(t *testing.T) {
	policy := Policy{Weekly: 100, Recommended: 20}

	// Fresh week: 100/3 = 33, clamped to recommended.
	assert.Equal(t, 20, smartDailyBudget(policy, 0, 3))

	// Nearly spent: floor keeps a trickle.
	assert.Equal(t, 5, smartDailyBudget(policy, 95, 3))

	// Overspent never goes below the floor.
	assert.Equal(t, 5, smartDailyBudget(policy, 120, 3))
}

func TestSmartDailyBudget_MonotonicInWeeklyCount(t *testing.T) {
	policy := Policy{Weekly: 100, Recommended: 20}
	prev := smartDailyBudget(policy, 0, 4)
	for used := 1; used <= 100; used++ {
		b := smartDailyBudget(policy, used, 4)
		assert.LessOrEqual(t, b, prev, "budget must not increase as weekly count grows (used=%d)", used)
		prev = b
	}
}

func TestWorkingDaysRemaining(t *testing.T) {
	cases := []struct {
		day  time.Time
		want int
	}{
		{time.Date(2025, 6, 9, 12, 0, 0, 0, time.UTC), 5},  // Monday
		{time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC), 4}, // Tuesday
		{time.Date(2025, 6, 11, 12, 0, 0, 0, time.UTC), 3}, // Wednesday
		{time.Date(2025, 6, 12, 12, 0, 0, 0, time.UTC), 2}, // Thursday
		{time.Date(2025, 6, 13, 12, 0, 0, 0, time.UTC), 1}, // Friday
		{time.Date(2025, 6, 14, 12, 0, 0, 0, time.UTC), 5}, // Saturday resets
		{time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC), 5}, // Sunday resets
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, workingDaysRemaining(tc.day), tc.day.Weekday().String())
	}
}

func TestCanPerform_FailClosed(t *testing.T) {
	ledger := newFakeLedger()
	ledger.err = errors.New("disk gone")
	g := newTestGovernor(t, ledger, true)

	v := g.CanPerform(context.Background(), ActivityInvitation)
	assert.False(t, v.Allowed)
	assert.Equal(t, "ledger unavailable", v.Reason)
}

func TestRecordActivity_ReflectsImmediately(t *testing.T) {
	// Real SQLite store: RecordActivity followed by CanPerform must see the
	// incremented count with no caching staleness.
	dbPath := filepath.Join(t.TempDir(), "governor.db")
	s, err := store.New(dbPath, zerolog.New(os.Stderr))
	require.NoError(t, err)
	defer s.Close()

	g := New(DefaultPolicies(), s, true, zerolog.New(os.Stderr))
	ctx := context.Background()

	before := g.CanPerform(ctx, ActivityComment)
	require.True(t, before.Allowed)

	require.NoError(t, g.RecordActivity(ctx, ActivityComment))

	after := g.CanPerform(ctx, ActivityComment)
	assert.Equal(t, before.DailyCount+1, after.DailyCount)
}

func TestRecordActivity_UnknownType(t *testing.T) {
	g := newTestGovernor(t, newFakeLedger(), true)
	err := g.RecordActivity(context.Background(), ActivityType("carrier_pigeon"))
	require.Error(t, err)
}

func TestShouldThrottle(t *testing.T) {
	ctx := context.Background()

	t.Run("clean slate", func(t *testing.T) {
		g := newTestGovernor(t, newFakeLedger(), true)
		v := g.ShouldThrottle(ctx)
		assert.False(t, v.Throttle)
	})

	t.Run("one type at limit", func(t *testing.T) {
		ledger := newFakeLedger()
		g := newTestGovernor(t, ledger, true)
		setCount(ledger, wednesday, ActivityComment, 15) // recommended 15
		v := g.ShouldThrottle(ctx)
		assert.True(t, v.Throttle)
		assert.Contains(t, v.Reason, "comment")
	})

	t.Run("single warning does not throttle", func(t *testing.T) {
		ledger := newFakeLedger()
		g := newTestGovernor(t, ledger, true)
		setCount(ledger, wednesday, ActivityLike, 32) // 80% of 40
		v := g.ShouldThrottle(ctx)
		assert.False(t, v.Throttle)
	})

	t.Run("two warnings throttle", func(t *testing.T) {
		ledger := newFakeLedger()
		g := newTestGovernor(t, ledger, true)
		setCount(ledger, wednesday, ActivityLike, 32)    // 80% of 40
		setCount(ledger, wednesday, ActivityMessage, 24) // 80% of 30
		v := g.ShouldThrottle(ctx)
		assert.True(t, v.Throttle)
		assert.Contains(t, v.Reason, "warning")
	})

	t.Run("ledger failure throttles", func(t *testing.T) {
		ledger := newFakeLedger()
		ledger.err = errors.New("disk gone")
		g := newTestGovernor(t, ledger, true)
		v := g.ShouldThrottle(ctx)
		assert.True(t, v.Throttle)
	})
}

func TestRecommendedDelay_WithinWindow(t *testing.T) {
	g := newTestGovernor(t, newFakeLedger(), true)
	policy := DefaultPolicies()[ActivityInvitation]

	for i := 0; i < 100; i++ {
		d := g.RecommendedDelay(ActivityInvitation)
		assert.GreaterOrEqual(t, d, policy.DelayMin)
		assert.Less(t, d, policy.DelayMax)
	}
}

func TestLoadPolicies_Overrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "limits.yaml")
	content := "invitation:\n  daily: 30\n  recommended: 25\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	policies, err := LoadPolicies(path)
	require.NoError(t, err)

	inv := policies[ActivityInvitation]
	assert.Equal(t, 30, inv.Daily)
	assert.Equal(t, 25, inv.Recommended)
	assert.Equal(t, 100, inv.Weekly, "unset fields keep defaults")

	// Untouched types keep defaults
	assert.Equal(t, DefaultPolicies()[ActivityComment], policies[ActivityComment])
}

func TestLoadPolicies_UnknownType(t *testing.T) {
	path := filepath.Join(t.TempDir(), "limits.yaml")
	require.NoError(t, os.WriteFile(path, []byte("telepathy:\n  daily: 5\n"), 0o644))

	_, err := LoadPolicies(path)
	require.Error(t, err)
}
