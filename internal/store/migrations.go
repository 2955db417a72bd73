package store

import (
	"fmt"
)

func (s *Store) migrate() error {
	if err := s.migrateV1(); err != nil {
		return err
	}
	return s.migrateV2()
}

func (s *Store) migrateV1() error {
	schema := `
	CREATE TABLE IF NOT EXISTS activity_counts (
		day   TEXT NOT NULL,
		type  TEXT NOT NULL,
		count INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (day, type)
	);

	CREATE INDEX IF NOT EXISTS idx_activity_day ON activity_counts(day);

	CREATE TABLE IF NOT EXISTS sales_leads (
		id                   TEXT PRIMARY KEY,
		email                TEXT NOT NULL,
		name                 TEXT,
		company              TEXT,
		linkedin_id          TEXT,
		linkedin_connected   INTEGER NOT NULL DEFAULT 0,
		meeting_id           TEXT,
		meeting_date         INTEGER,
		meeting_title        TEXT,
		notes_id             TEXT,
		notes_summary        TEXT,
		email_thread_id      TEXT,
		last_email_date      INTEGER,
		email_followup_count INTEGER NOT NULL DEFAULT 0,
		first_opened_at      INTEGER,
		last_opened_at       INTEGER,
		open_count           INTEGER NOT NULL DEFAULT 0,
		status               TEXT NOT NULL DEFAULT 'active',
		responded_via        TEXT,
		created_at           INTEGER NOT NULL,
		updated_at           INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_leads_status ON sales_leads(status);
	CREATE INDEX IF NOT EXISTS idx_leads_email ON sales_leads(email);
	CREATE INDEX IF NOT EXISTS idx_leads_meeting ON sales_leads(meeting_id);

	CREATE TABLE IF NOT EXISTS surfaced_meetings (
		meeting_id      TEXT PRIMARY KEY,
		recipient_email TEXT NOT NULL,
		recipient_name  TEXT,
		meeting_title   TEXT,
		status          TEXT NOT NULL DEFAULT 'surfaced',
		draft_subject   TEXT,
		draft_body      TEXT,
		created_at      INTEGER NOT NULL,
		updated_at      INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_surfaced_status ON surfaced_meetings(status);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	INSERT OR REPLACE INTO meta(key, value) VALUES ('schema_version', '1');
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to execute migration v1: %w", err)
	}

	return nil
}

func (s *Store) migrateV2() error {
	// Check current version
	var version string
	err := s.db.QueryRow(`SELECT value FROM meta WHERE key = 'schema_version'`).Scan(&version)
	if err != nil || version >= "2" {
		return nil // already at v2+
	}

	// LinkedIn outreach tracking (ignore errors if columns already exist)
	_, _ = s.db.Exec(`ALTER TABLE sales_leads ADD COLUMN linkedin_request_sent INTEGER NOT NULL DEFAULT 0`)
	_, _ = s.db.Exec(`ALTER TABLE sales_leads ADD COLUMN linkedin_message_count INTEGER NOT NULL DEFAULT 0`)
	_, _ = s.db.Exec(`ALTER TABLE sales_leads ADD COLUMN last_linkedin_date INTEGER`)

	if _, err := s.db.Exec(`INSERT OR REPLACE INTO meta(key, value) VALUES ('schema_version', '2')`); err != nil {
		return fmt.Errorf("failed to update schema version: %w", err)
	}

	return nil
}
