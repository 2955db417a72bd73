package store

import (
	"context"
	"fmt"
	"time"
)

// ActivityRetentionDays is how long per-day activity counters are kept.
const ActivityRetentionDays = 14

// RunRetention cleans up old data according to retention policies.
// Lead and surfaced-meeting rows are never deleted — they carry the
// idempotency and soft-status state that survives restarts.
func (s *Store) RunRetention(ctx context.Context) error {
	cutoff := Day(time.Now().AddDate(0, 0, -ActivityRetentionDays))
	if err := s.PruneActivityBefore(ctx, cutoff); err != nil {
		return fmt.Errorf("activity retention failed: %w", err)
	}
	return nil
}
