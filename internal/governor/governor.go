// Package governor gates every outbound action behind platform-safety limits.
// Weekly-limited activity types get "smart pacing": the remaining weekly
// budget is spread across the remaining working days so it is not exhausted
// early in the week.
package governor

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/oakline-labs/outreach-agent/internal/store"
)

// smartBudgetFloor is the minimum smart daily budget. Even a nearly-spent
// weekly allowance leaves a trickle; the hard weekly check still denies
// once the budget is truly gone.
const smartBudgetFloor = 5

// warningFraction is the share of a daily limit at which a type counts as
// "warning" for the throttle circuit breaker.
const warningFraction = 0.8

// Ledger is the durable per-day activity counter storage.
type Ledger interface {
	IncrementActivity(ctx context.Context, day, activityType string) error
	ActivityCount(ctx context.Context, day, activityType string) (int, error)
	ActivityCountSince(ctx context.Context, fromDay, activityType string) (int, error)
	PruneActivityBefore(ctx context.Context, cutoffDay string) error
}

// Verdict is the result of a CanPerform check.
type Verdict struct {
	Allowed     bool   `json:"allowed"`
	Reason      string `json:"reason,omitempty"`
	DailyCount  int    `json:"daily_count"`
	DailyLimit  int    `json:"daily_limit"`
	WeeklyCount int    `json:"weekly_count,omitempty"`
	WeeklyLimit int    `json:"weekly_limit,omitempty"`
	SmartBudget int    `json:"smart_budget,omitempty"`
}

// ThrottleVerdict is the result of a ShouldThrottle check.
type ThrottleVerdict struct {
	Throttle bool   `json:"throttle"`
	Reason   string `json:"reason,omitempty"`
}

// Governor decides whether outbound actions are currently allowed.
type Governor struct {
	policies       map[ActivityType]Policy
	ledger         Ledger
	useRecommended bool
	logger         zerolog.Logger

	now  func() time.Time
	rand *rand.Rand
}

// New creates a Governor over the given ledger.
func New(policies map[ActivityType]Policy, ledger Ledger, useRecommended bool, logger zerolog.Logger) *Governor {
	if policies == nil {
		policies = DefaultPolicies()
	}
	return &Governor{
		policies:       policies,
		ledger:         ledger,
		useRecommended: useRecommended,
		logger:         logger.With().Str("component", "governor").Logger(),
		now:            time.Now,
		rand:           rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Policy returns the limit policy for a type.
func (g *Governor) Policy(typ ActivityType) (Policy, bool) {
	p, ok := g.policies[typ]
	return p, ok
}

// CanPerform reports whether one action of the given type is currently
// allowed. Ledger failures deny (fail closed): under-sending is cheap,
// violating platform limits is not.
func (g *Governor) CanPerform(ctx context.Context, typ ActivityType) Verdict {
	policy, ok := g.policies[typ]
	if !ok {
		return Verdict{Allowed: false, Reason: fmt.Sprintf("unknown activity type %q", typ)}
	}

	now := g.now()
	today := store.Day(now)

	dailyCount, err := g.ledger.ActivityCount(ctx, today, string(typ))
	if err != nil {
		g.logger.Error().Err(err).Str("type", string(typ)).Msg("ledger read failed, denying")
		return Verdict{Allowed: false, Reason: "ledger unavailable"}
	}

	v := Verdict{DailyCount: dailyCount}

	effectiveLimit := policy.Daily
	if g.useRecommended {
		effectiveLimit = policy.Recommended
	}

	if policy.Weekly > 0 {
		weekAgo := store.Day(now.AddDate(0, 0, -6))
		weeklyCount, err := g.ledger.ActivityCountSince(ctx, weekAgo, string(typ))
		if err != nil {
			g.logger.Error().Err(err).Str("type", string(typ)).Msg("ledger read failed, denying")
			return Verdict{Allowed: false, Reason: "ledger unavailable", DailyCount: dailyCount}
		}

		v.WeeklyCount = weeklyCount
		v.WeeklyLimit = policy.Weekly
		v.SmartBudget = smartDailyBudget(policy, weeklyCount, workingDaysRemaining(now))
		effectiveLimit = v.SmartBudget

		if weeklyCount >= policy.Weekly {
			v.DailyLimit = effectiveLimit
			v.Reason = fmt.Sprintf("weekly limit reached (%d/%d)", weeklyCount, policy.Weekly)
			return v
		}
	}

	v.DailyLimit = effectiveLimit
	if dailyCount >= effectiveLimit {
		v.Reason = fmt.Sprintf("daily limit reached (%d/%d)", dailyCount, effectiveLimit)
		return v
	}

	v.Allowed = true
	return v
}

// Usage returns a point-in-time verdict for every configured activity type.
// Nothing is consumed; this backs status reporting.
func (g *Governor) Usage(ctx context.Context) map[ActivityType]Verdict {
	out := make(map[ActivityType]Verdict, len(g.policies))
	for typ := range g.policies {
		out[typ] = g.CanPerform(ctx, typ)
	}
	return out
}

// RecordActivity prunes expired ledger rows and increments today's counter.
// Not idempotent — call exactly once per real action taken.
func (g *Governor) RecordActivity(ctx context.Context, typ ActivityType) error {
	if _, ok := g.policies[typ]; !ok {
		return fmt.Errorf("unknown activity type %q", typ)
	}

	now := g.now()
	cutoff := store.Day(now.AddDate(0, 0, -store.ActivityRetentionDays))
	if err := g.ledger.PruneActivityBefore(ctx, cutoff); err != nil {
		g.logger.Warn().Err(err).Msg("activity prune failed")
	}

	if err := g.ledger.IncrementActivity(ctx, store.Day(now), string(typ)); err != nil {
		return fmt.Errorf("recording %s activity: %w", typ, err)
	}
	return nil
}

// ShouldThrottle is a coarse circuit breaker consulted before starting a
// batch of work. It considers only the rate-sensitive engagement types:
// throttle if any is at its limit, or two or more are at warning level.
func (g *Governor) ShouldThrottle(ctx context.Context) ThrottleVerdict {
	today := store.Day(g.now())
	warnings := 0

	for _, typ := range EngagementTypes {
		policy := g.policies[typ]

		limit := policy.Daily
		if g.useRecommended {
			limit = policy.Recommended
		}

		count, err := g.ledger.ActivityCount(ctx, today, string(typ))
		if err != nil {
			g.logger.Error().Err(err).Str("type", string(typ)).Msg("ledger read failed, throttling")
			return ThrottleVerdict{Throttle: true, Reason: "ledger unavailable"}
		}

		if count >= limit {
			return ThrottleVerdict{
				Throttle: true,
				Reason:   fmt.Sprintf("%s at daily limit (%d/%d)", typ, count, limit),
			}
		}
		if float64(count) >= warningFraction*float64(limit) {
			warnings++
		}
	}

	// A single type at warning level is fine; two or more is compounding risk.
	if warnings >= 2 {
		return ThrottleVerdict{
			Throttle: true,
			Reason:   fmt.Sprintf("%d activity types at warning level", warnings),
		}
	}
	return ThrottleVerdict{}
}

// RecommendedDelay returns a uniformly-random pause within the type's delay
// window, used to humanize pacing between successive actions.
func (g *Governor) RecommendedDelay(typ ActivityType) time.Duration {
	policy, ok := g.policies[typ]
	if !ok || policy.DelayMax <= policy.DelayMin {
		return policy.DelayMin
	}
	window := policy.DelayMax - policy.DelayMin
	return policy.DelayMin + time.Duration(g.rand.Int63n(int64(window)))
}

// smartDailyBudget spreads the remaining weekly budget across the remaining
// working days, clamped to [smartBudgetFloor, recommended].
func smartDailyBudget(policy Policy, weeklyCount, daysRemaining int) int {
	budget := (policy.Weekly - weeklyCount) / daysRemaining
	if budget < smartBudgetFloor {
		budget = smartBudgetFloor
	}
	if budget > policy.Recommended {
		budget = policy.Recommended
	}
	return budget
}

// workingDaysRemaining treats Saturday/Sunday as a reset to a full 5-day
// window and Monday-Friday as 6 minus the ISO weekday. Deliberately favors
// availability over precision.
func workingDaysRemaining(t time.Time) int {
	iso := int(t.Weekday())
	if iso == 0 {
		iso = 7 // Sunday
	}
	if iso >= 6 {
		return 5
	}
	return 6 - iso
}
