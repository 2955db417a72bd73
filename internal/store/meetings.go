package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Surfaced-meeting statuses.
const (
	MeetingStatusSurfaced = "surfaced"
	MeetingStatusSkipped  = "skipped"
	MeetingStatusSent     = "sent"
)

// SurfacedMeeting is the idempotency record that keeps a calendar event
// from being processed twice across restarts.
type SurfacedMeeting struct {
	MeetingID      string
	RecipientEmail string
	RecipientName  string
	MeetingTitle   string
	Status         string
	DraftSubject   string
	DraftBody      string
	CreatedAt      int64 // unix ms
	UpdatedAt      int64 // unix ms
}

// SurfaceMeeting inserts the idempotency row for a meeting. Returns true if
// the row was created, false if the meeting was already surfaced.
func (s *Store) SurfaceMeeting(ctx context.Context, m *SurfacedMeeting) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()
	if m.CreatedAt == 0 {
		m.CreatedAt = now
	}
	m.UpdatedAt = now
	if m.Status == "" {
		m.Status = MeetingStatusSurfaced
	}

	query := `
	INSERT OR IGNORE INTO surfaced_meetings (
		meeting_id, recipient_email, recipient_name, meeting_title,
		status, draft_subject, draft_body, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.ExecContext(ctx, query,
		m.MeetingID, m.RecipientEmail, nullStr(m.RecipientName), nullStr(m.MeetingTitle),
		m.Status, nullStr(m.DraftSubject), nullStr(m.DraftBody), m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to surface meeting: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

// IsMeetingSurfaced reports whether an idempotency row exists for meetingID.
func (s *Store) IsMeetingSurfaced(ctx context.Context, meetingID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM surfaced_meetings WHERE meeting_id = ?`, meetingID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check surfaced meeting: %w", err)
	}
	return count > 0, nil
}

// GetSurfacedMeeting retrieves the record for meetingID. Returns nil if not found.
func (s *Store) GetSurfacedMeeting(ctx context.Context, meetingID string) (*SurfacedMeeting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m := &SurfacedMeeting{}
	var name, title, subject, body sql.NullString

	err := s.db.QueryRowContext(ctx, `
	SELECT meeting_id, recipient_email, recipient_name, meeting_title,
	       status, draft_subject, draft_body, created_at, updated_at
	FROM surfaced_meetings WHERE meeting_id = ?`, meetingID,
	).Scan(&m.MeetingID, &m.RecipientEmail, &name, &title, &m.Status, &subject, &body, &m.CreatedAt, &m.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get surfaced meeting: %w", err)
	}

	m.RecipientName = name.String
	m.MeetingTitle = title.String
	m.DraftSubject = subject.String
	m.DraftBody = body.String
	return m, nil
}

// UpdateMeetingStatus records the operator decision (skipped/sent) for a meeting.
func (s *Store) UpdateMeetingStatus(ctx context.Context, meetingID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx,
		`UPDATE surfaced_meetings SET status = ?, updated_at = ? WHERE meeting_id = ?`,
		status, time.Now().UnixMilli(), meetingID,
	)
	if err != nil {
		return fmt.Errorf("failed to update meeting status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("surfaced meeting not found: %s", meetingID)
	}
	return nil
}

// ListSurfacedMeetings retrieves surfaced meetings, newest first.
func (s *Store) ListSurfacedMeetings(ctx context.Context, status string, limit int) ([]*SurfacedMeeting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
	SELECT meeting_id, recipient_email, recipient_name, meeting_title,
	       status, draft_subject, draft_body, created_at, updated_at
	FROM surfaced_meetings`

	args := []interface{}{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list surfaced meetings: %w", err)
	}
	defer rows.Close()

	var meetings []*SurfacedMeeting
	for rows.Next() {
		m := &SurfacedMeeting{}
		var name, title, subject, body sql.NullString
		if err := rows.Scan(&m.MeetingID, &m.RecipientEmail, &name, &title, &m.Status, &subject, &body, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan surfaced meeting: %w", err)
		}
		m.RecipientName = name.String
		m.MeetingTitle = title.String
		m.DraftSubject = subject.String
		m.DraftBody = body.String
		meetings = append(meetings, m)
	}
	return meetings, rows.Err()
}
