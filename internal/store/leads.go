package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Lead statuses.
const (
	LeadStatusActive    = "active"
	LeadStatusResponded = "responded"
	LeadStatusCold      = "cold"
)

// Response channels.
const (
	ChannelEmail    = "email"
	ChannelLinkedIn = "linkedin"
)

// Lead represents one prospect being pursued through email outreach.
type Lead struct {
	ID                 string
	Email              string
	Name               string
	Company            string
	LinkedInID         string
	LinkedInConnected  bool
	MeetingID          string
	MeetingDate        int64 // unix ms, 0 = unknown
	MeetingTitle       string
	NotesID            string
	NotesSummary       string
	EmailThreadID      string
	LastEmailDate      int64 // unix ms, 0 = never emailed
	EmailFollowupCount int
	FirstOpenedAt      int64
	LastOpenedAt       int64
	OpenCount          int
	LinkedInRequestSent  bool
	LinkedInMessageCount int
	LastLinkedInDate     int64
	Status             string
	RespondedVia       string
	CreatedAt          int64
	UpdatedAt          int64
}

// LeadFilter for listing leads.
type LeadFilter struct {
	Status string
	Limit  int
}

const leadColumns = `
	id, email, name, company, linkedin_id, linkedin_connected,
	meeting_id, meeting_date, meeting_title, notes_id, notes_summary,
	email_thread_id, last_email_date, email_followup_count,
	first_opened_at, last_opened_at, open_count,
	linkedin_request_sent, linkedin_message_count, last_linkedin_date,
	status, responded_via, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanLead(row rowScanner) (*Lead, error) {
	l := &Lead{}
	var name, company, linkedinID, meetingID, meetingTitle, notesID, notesSummary, threadID, respondedVia sql.NullString
	var meetingDate, lastEmail, firstOpened, lastOpened, lastLinkedIn sql.NullInt64
	var linkedinConnected, requestSent int

	err := row.Scan(
		&l.ID, &l.Email, &name, &company, &linkedinID, &linkedinConnected,
		&meetingID, &meetingDate, &meetingTitle, &notesID, &notesSummary,
		&threadID, &lastEmail, &l.EmailFollowupCount,
		&firstOpened, &lastOpened, &l.OpenCount,
		&requestSent, &l.LinkedInMessageCount, &lastLinkedIn,
		&l.Status, &respondedVia, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	l.Name = name.String
	l.Company = company.String
	l.LinkedInID = linkedinID.String
	l.LinkedInConnected = linkedinConnected != 0
	l.MeetingID = meetingID.String
	l.MeetingDate = meetingDate.Int64
	l.MeetingTitle = meetingTitle.String
	l.NotesID = notesID.String
	l.NotesSummary = notesSummary.String
	l.EmailThreadID = threadID.String
	l.LastEmailDate = lastEmail.Int64
	l.FirstOpenedAt = firstOpened.Int64
	l.LastOpenedAt = lastOpened.Int64
	l.LinkedInRequestSent = requestSent != 0
	l.LastLinkedInDate = lastLinkedIn.Int64
	l.RespondedVia = respondedVia.String
	return l, nil
}

func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: v != 0}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// SaveLead inserts or updates a lead row.
func (s *Store) SaveLead(ctx context.Context, l *Lead) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()
	if l.CreatedAt == 0 {
		l.CreatedAt = now
	}
	l.UpdatedAt = now
	if l.Status == "" {
		l.Status = LeadStatusActive
	}

	query := `
	INSERT OR REPLACE INTO sales_leads (` + leadColumns + `
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		l.ID, l.Email, nullStr(l.Name), nullStr(l.Company), nullStr(l.LinkedInID), boolInt(l.LinkedInConnected),
		nullStr(l.MeetingID), nullInt(l.MeetingDate), nullStr(l.MeetingTitle), nullStr(l.NotesID), nullStr(l.NotesSummary),
		nullStr(l.EmailThreadID), nullInt(l.LastEmailDate), l.EmailFollowupCount,
		nullInt(l.FirstOpenedAt), nullInt(l.LastOpenedAt), l.OpenCount,
		boolInt(l.LinkedInRequestSent), l.LinkedInMessageCount, nullInt(l.LastLinkedInDate),
		l.Status, nullStr(l.RespondedVia), l.CreatedAt, l.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save lead: %w", err)
	}
	return nil
}

// GetLead retrieves a lead by ID. Returns nil if not found.
func (s *Store) GetLead(ctx context.Context, id string) (*Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+leadColumns+` FROM sales_leads WHERE id = ?`, id)
	l, err := scanLead(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lead: %w", err)
	}
	return l, nil
}

// GetLeadByEmail retrieves the most recently created lead for an email address.
func (s *Store) GetLeadByEmail(ctx context.Context, email string) (*Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+leadColumns+` FROM sales_leads WHERE email = ? ORDER BY created_at DESC LIMIT 1`, email)
	l, err := scanLead(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lead by email: %w", err)
	}
	return l, nil
}

// ListLeads retrieves leads matching the filter, newest first.
func (s *Store) ListLeads(ctx context.Context, f LeadFilter) ([]*Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + leadColumns + ` FROM sales_leads`
	args := []interface{}{}
	if f.Status != "" {
		query += ` WHERE status = ?`
		args = append(args, f.Status)
	}
	query += ` ORDER BY created_at DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list leads: %w", err)
	}
	defer rows.Close()

	var leads []*Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lead: %w", err)
		}
		leads = append(leads, l)
	}
	return leads, rows.Err()
}

// SetLeadStatus updates status and responded_via in one statement.
// Returns an error if the lead does not exist — callers treat that as a bug.
func (s *Store) SetLeadStatus(ctx context.Context, id, status, respondedVia string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx,
		`UPDATE sales_leads SET status = ?, responded_via = ?, updated_at = ? WHERE id = ?`,
		status, nullStr(respondedVia), time.Now().UnixMilli(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to set lead status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("lead not found: %s", id)
	}
	return nil
}

// RecordLeadInitialEmail sets the thread, stamps last_email_date, and resets
// the follow-up counter. Used when a fresh thread re-engages the lead.
func (s *Store) RecordLeadInitialEmail(ctx context.Context, id, threadID string, sentAt int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx, `
	UPDATE sales_leads
	SET email_thread_id = ?, last_email_date = ?, email_followup_count = 0, updated_at = ?
	WHERE id = ?`,
		threadID, sentAt, time.Now().UnixMilli(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to record initial email: %w", err)
	}
	return requireRow(result, id)
}

// RecordLeadFollowUp bumps email_followup_count by one and stamps last_email_date.
// The increment happens in SQL so racing triggers cannot lose an update.
func (s *Store) RecordLeadFollowUp(ctx context.Context, id string, sentAt int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx, `
	UPDATE sales_leads
	SET email_followup_count = email_followup_count + 1, last_email_date = ?, updated_at = ?
	WHERE id = ?`,
		sentAt, time.Now().UnixMilli(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to record follow-up: %w", err)
	}
	return requireRow(result, id)
}

// RecordLeadOpen bumps open tracking counters for a tracked-pixel hit.
func (s *Store) RecordLeadOpen(ctx context.Context, id string, openedAt int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx, `
	UPDATE sales_leads
	SET open_count = open_count + 1,
	    first_opened_at = COALESCE(first_opened_at, ?),
	    last_opened_at = ?,
	    updated_at = ?
	WHERE id = ?`,
		openedAt, openedAt, time.Now().UnixMilli(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to record email open: %w", err)
	}
	return requireRow(result, id)
}

// RecordLeadInvitation marks that a connection request went out.
func (s *Store) RecordLeadInvitation(ctx context.Context, id string, sentAt int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx, `
	UPDATE sales_leads
	SET linkedin_request_sent = 1, last_linkedin_date = ?, updated_at = ?
	WHERE id = ?`,
		sentAt, time.Now().UnixMilli(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to record invitation: %w", err)
	}
	return requireRow(result, id)
}

// SetLeadLinkedInProfile records the resolved profile id without touching
// any other column.
func (s *Store) SetLeadLinkedInProfile(ctx context.Context, id, profileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx, `
	UPDATE sales_leads
	SET linkedin_id = ?, updated_at = ?
	WHERE id = ?`,
		profileID, time.Now().UnixMilli(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to set linkedin profile: %w", err)
	}
	return requireRow(result, id)
}

// AttachLeadNotes attaches a matched meeting-notes document to the lead.
func (s *Store) AttachLeadNotes(ctx context.Context, id, notesID, summary string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx, `
	UPDATE sales_leads
	SET notes_id = ?, notes_summary = ?, updated_at = ?
	WHERE id = ?`,
		notesID, nullStr(summary), time.Now().UnixMilli(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to attach notes: %w", err)
	}
	return requireRow(result, id)
}

// RecordLeadLinkedInMessage bumps the DM counter and stamps last_linkedin_date.
func (s *Store) RecordLeadLinkedInMessage(ctx context.Context, id string, sentAt int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx, `
	UPDATE sales_leads
	SET linkedin_message_count = linkedin_message_count + 1, last_linkedin_date = ?, updated_at = ?
	WHERE id = ?`,
		sentAt, time.Now().UnixMilli(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to record linkedin message: %w", err)
	}
	return requireRow(result, id)
}

func requireRow(result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("lead not found: %s", id)
	}
	return nil
}
