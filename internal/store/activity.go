package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// DayFormat is the calendar-day key used by the activity ledger.
const DayFormat = "2006-01-02"

// Day returns t formatted as an activity-ledger day key.
func Day(t time.Time) string {
	return t.Format(DayFormat)
}

// IncrementActivity bumps the counter for (day, type) by one.
// The increment is a single atomic upsert so concurrent callers never lose updates.
func (s *Store) IncrementActivity(ctx context.Context, day, activityType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
	INSERT INTO activity_counts (day, type, count) VALUES (?, ?, 1)
	ON CONFLICT(day, type) DO UPDATE SET count = count + 1
	`

	if _, err := s.db.ExecContext(ctx, query, day, activityType); err != nil {
		return fmt.Errorf("failed to increment activity %s/%s: %w", day, activityType, err)
	}
	return nil
}

// ActivityCount returns the counter for (day, type). Missing rows read as zero.
func (s *Store) ActivityCount(ctx context.Context, day, activityType string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT count FROM activity_counts WHERE day = ? AND type = ?`,
		day, activityType,
	).Scan(&count)

	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read activity count: %w", err)
	}
	return count, nil
}

// ActivityCountSince sums counters for a type over days >= fromDay (inclusive).
func (s *Store) ActivityCountSince(ctx context.Context, fromDay, activityType string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT SUM(count) FROM activity_counts WHERE day >= ? AND type = ?`,
		fromDay, activityType,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum activity counts: %w", err)
	}
	if !total.Valid {
		return 0, nil
	}
	return int(total.Int64), nil
}

// PruneActivityBefore deletes ledger rows with a day older than cutoffDay (exclusive).
func (s *Store) PruneActivityBefore(ctx context.Context, cutoffDay string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM activity_counts WHERE day < ?`, cutoffDay,
	); err != nil {
		return fmt.Errorf("failed to prune activity counts: %w", err)
	}
	return nil
}
