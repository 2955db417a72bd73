// Package cadence decides which leads are due for a follow-up, in what
// order, and advances lead state as replies or staleness are detected.
package cadence

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/oakline-labs/outreach-agent/internal/governor"
	"github.com/oakline-labs/outreach-agent/internal/store"
)

// Stage names the sequential follow-up a lead is eligible for.
type Stage string

const (
	StageFirst  Stage = "first"
	StageSecond Stage = "second"
	StageThird  Stage = "third"
	StageFinal  Stage = "final"
)

// MaxAutomaticFollowUps caps the sequence. A lead at this count gets no
// further automatic follow-up; only response detection or an operator moves
// it on.
const MaxAutomaticFollowUps = 4

// StageFor maps a follow-up count and days-since-last-email to the eligible
// stage, if any. Thresholds are days since the immediately preceding email,
// not days since the original meeting.
func StageFor(followupCount, daysSince int) (Stage, bool) {
	switch followupCount {
	case 0:
		if daysSince >= 2 {
			return StageFirst, true
		}
	case 1:
		if daysSince >= 4 {
			return StageSecond, true
		}
	case 2:
		if daysSince >= 7 {
			return StageThird, true
		}
	case 3:
		if daysSince >= 7 {
			return StageFinal, true
		}
	}
	return "", false
}

// DueFollowUp is one lead eligible for a follow-up right now.
type DueFollowUp struct {
	Lead      *store.Lead
	Stage     Stage
	DaysSince int
	IsWarm    bool
}

// LeadStore is the persisted lead ledger the engine drives.
type LeadStore interface {
	SaveLead(ctx context.Context, l *store.Lead) error
	GetLead(ctx context.Context, id string) (*store.Lead, error)
	ListLeads(ctx context.Context, f store.LeadFilter) ([]*store.Lead, error)
	SetLeadStatus(ctx context.Context, id, status, respondedVia string) error
	RecordLeadInitialEmail(ctx context.Context, id, threadID string, sentAt int64) error
	RecordLeadFollowUp(ctx context.Context, id string, sentAt int64) error
	RecordLeadOpen(ctx context.Context, id string, openedAt int64) error
	RecordLeadLinkedInMessage(ctx context.Context, id string, sentAt int64) error
}

// ThreadMessage is the slice of an email thread response detection cares about.
type ThreadMessage struct {
	From       string
	ReceivedAt time.Time
}

// ThreadReader fetches a thread from the email collaborator.
type ThreadReader interface {
	Thread(ctx context.Context, threadID string) ([]ThreadMessage, error)
}

// Engine advances leads through the follow-up cadence.
type Engine struct {
	leads   LeadStore
	threads ThreadReader
	gov     *governor.Governor
	logger  zerolog.Logger

	now func() time.Time
}

// New creates a cadence Engine.
func New(leads LeadStore, threads ThreadReader, gov *governor.Governor, logger zerolog.Logger) *Engine {
	return &Engine{
		leads:   leads,
		threads: threads,
		gov:     gov,
		logger:  logger.With().Str("component", "cadence").Logger(),
		now:     time.Now,
	}
}

// LeadID derives a deterministic lead identifier from the email address and
// the originating meeting, so reprocessing the same meeting never forks a
// second lead.
func LeadID(email, meetingID string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(email)) + "|" + meetingID))
	return hex.EncodeToString(sum[:])[:16]
}

// CreateLead registers a prospect if not already tracked. Returns the
// existing lead unchanged when the (email, meeting) pair was seen before.
func (e *Engine) CreateLead(ctx context.Context, l *store.Lead) (*store.Lead, error) {
	if l.Email == "" {
		return nil, fmt.Errorf("cadence: lead email is required")
	}
	if l.ID == "" {
		l.ID = LeadID(l.Email, l.MeetingID)
	}

	existing, err := e.leads.GetLead(ctx, l.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	l.Status = store.LeadStatusActive
	if err := e.leads.SaveLead(ctx, l); err != nil {
		return nil, err
	}
	e.logger.Info().Str("lead", l.ID).Str("email", l.Email).Msg("lead created")
	return l, nil
}

// FollowUpsDue returns every active lead eligible for a follow-up stage,
// warm leads first, then longest-neglected first. The ordering is a
// snapshot; callers re-check each lead's status immediately before acting.
func (e *Engine) FollowUpsDue(ctx context.Context) ([]DueFollowUp, error) {
	leads, err := e.leads.ListLeads(ctx, store.LeadFilter{Status: store.LeadStatusActive})
	if err != nil {
		return nil, fmt.Errorf("listing active leads: %w", err)
	}

	now := e.now()
	var due []DueFollowUp
	for _, l := range leads {
		if l.LastEmailDate == 0 || l.EmailFollowupCount >= MaxAutomaticFollowUps {
			continue
		}

		daysSince := int(now.Sub(time.UnixMilli(l.LastEmailDate)).Hours() / 24)
		stage, ok := StageFor(l.EmailFollowupCount, daysSince)
		if !ok {
			continue
		}

		due = append(due, DueFollowUp{
			Lead:      l,
			Stage:     stage,
			DaysSince: daysSince,
			IsWarm:    isWarm(l),
		})
	}

	// Engaged-but-silent prospects outrank cold-but-old ones.
	sort.SliceStable(due, func(i, j int) bool {
		if due[i].IsWarm != due[j].IsWarm {
			return due[i].IsWarm
		}
		return due[i].DaysSince > due[j].DaysSince
	})

	return due, nil
}

// isWarm: provably read the last email, never replied on any channel.
func isWarm(l *store.Lead) bool {
	return l.OpenCount > 0 && l.RespondedVia == ""
}

// DetectResponses polls each active lead's email thread and marks leads
// responded when a message from the lead arrived strictly after the last
// email we sent. Returns how many responses were detected. Per-lead
// failures are logged and skipped; the lead stays eligible next cycle.
func (e *Engine) DetectResponses(ctx context.Context) (int, error) {
	leads, err := e.leads.ListLeads(ctx, store.LeadFilter{Status: store.LeadStatusActive})
	if err != nil {
		return 0, fmt.Errorf("listing active leads: %w", err)
	}

	detected := 0
	for _, l := range leads {
		if l.EmailThreadID == "" || l.LastEmailDate == 0 {
			continue
		}

		msgs, err := e.threads.Thread(ctx, l.EmailThreadID)
		if err != nil {
			e.logger.Warn().Err(err).Str("lead", l.ID).Msg("thread fetch failed, skipping")
			continue
		}

		if hasResponseAfter(msgs, l.Email, l.LastEmailDate) {
			if err := e.MarkResponded(ctx, l.ID, store.ChannelEmail); err != nil {
				e.logger.Error().Err(err).Str("lead", l.ID).Msg("failed to mark responded")
				continue
			}
			detected++
		}
	}
	return detected, nil
}

// hasResponseAfter finds a thread message from the lead's address timestamped
// strictly after lastEmailMs. Older messages in the thread never count.
func hasResponseAfter(msgs []ThreadMessage, leadEmail string, lastEmailMs int64) bool {
	addr := strings.ToLower(strings.TrimSpace(leadEmail))
	for _, m := range msgs {
		if strings.ToLower(strings.TrimSpace(m.From)) != addr {
			continue
		}
		if m.ReceivedAt.UnixMilli() > lastEmailMs {
			return true
		}
	}
	return false
}

// MarkResponded moves a lead to responded via the given channel. Terminal:
// leads already responded or cold are left untouched.
func (e *Engine) MarkResponded(ctx context.Context, id, channel string) error {
	return e.transition(ctx, id, store.LeadStatusResponded, channel)
}

// MarkCold moves a lead to cold and clears responded_via. Terminal.
func (e *Engine) MarkCold(ctx context.Context, id string) error {
	return e.transition(ctx, id, store.LeadStatusCold, "")
}

func (e *Engine) transition(ctx context.Context, id, status, respondedVia string) error {
	l, err := e.leads.GetLead(ctx, id)
	if err != nil {
		return err
	}
	if l == nil {
		return fmt.Errorf("cadence: unknown lead %s", id)
	}
	if l.Status != store.LeadStatusActive {
		e.logger.Debug().Str("lead", id).Str("status", l.Status).Msg("already terminal, skipping transition")
		return nil
	}
	if err := e.leads.SetLeadStatus(ctx, id, status, respondedVia); err != nil {
		return err
	}
	e.logger.Info().Str("lead", id).Str("status", status).Str("via", respondedVia).Msg("lead transitioned")
	return nil
}

// RecordEmailSent advances cadence state after an email actually went out.
// Initial sends bind the thread and reset the follow-up counter (a fresh
// subject re-engages a stalled thread); follow-ups increment it by one.
// Call exactly once per sent email.
func (e *Engine) RecordEmailSent(ctx context.Context, id, threadID string, isInitial bool) error {
	sentAt := e.now().UnixMilli()
	if isInitial {
		if err := e.leads.RecordLeadInitialEmail(ctx, id, threadID, sentAt); err != nil {
			return fmt.Errorf("cadence: record initial email: %w", err)
		}
		return nil
	}
	if err := e.leads.RecordLeadFollowUp(ctx, id, sentAt); err != nil {
		return fmt.Errorf("cadence: record follow-up: %w", err)
	}
	return nil
}

// RecordEmailOpened feeds open tracking into warm-lead detection.
func (e *Engine) RecordEmailOpened(ctx context.Context, id string) error {
	return e.leads.RecordLeadOpen(ctx, id, e.now().UnixMilli())
}

// RecordLinkedInMessage records a LinkedIn DM against both the activity
// ledger and the lead, keeping the governor's counters honest.
func (e *Engine) RecordLinkedInMessage(ctx context.Context, id string) error {
	if err := e.gov.RecordActivity(ctx, governor.ActivityMessage); err != nil {
		return err
	}
	return e.leads.RecordLeadLinkedInMessage(ctx, id, e.now().UnixMilli())
}

// LinkedInTouchAllowed consults the governor before any LinkedIn outreach
// to a due lead.
func (e *Engine) LinkedInTouchAllowed(ctx context.Context) governor.Verdict {
	return e.gov.CanPerform(ctx, governor.ActivityMessage)
}
