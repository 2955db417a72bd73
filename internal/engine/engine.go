// Package engine wires the scheduled cycles together: meeting surfacing,
// follow-up proposals, response detection, and retention. It owns no business
// rules of its own; each cycle dispatches into the core packages and isolates
// per-entity failures so one bad lead or meeting never sinks a whole run.
package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/oakline-labs/outreach-agent/internal/cadence"
	"github.com/oakline-labs/outreach-agent/internal/drafts"
	"github.com/oakline-labs/outreach-agent/internal/governor"
	"github.com/oakline-labs/outreach-agent/internal/metrics"
	"github.com/oakline-labs/outreach-agent/internal/notes"
	"github.com/oakline-labs/outreach-agent/internal/outlook"
	"github.com/oakline-labs/outreach-agent/internal/slack"
	"github.com/oakline-labs/outreach-agent/internal/store"
)

// MailClient is the slice of the mail/calendar collaborator the engine uses.
type MailClient interface {
	Connected() bool
	EndedMeetings(ctx context.Context, since, until time.Time) ([]notes.Meeting, error)
	Emails(ctx context.Context, f outlook.Filter) ([]outlook.Email, error)
	// SendEmail returns the conversation id the provider assigned to the
	// outgoing message, so the caller can bind it to the lead's thread.
	SendEmail(ctx context.Context, to, subject, body, threadID string) (string, error)
}

// Drafter generates email and note proposals.
type Drafter interface {
	IntroEmail(ctx context.Context, lead drafts.LeadInfo) (*drafts.Draft, error)
	FollowUpEmail(ctx context.Context, lead drafts.LeadInfo) (*drafts.Draft, error)
	LinkedInNote(ctx context.Context, lead drafts.LeadInfo) (string, error)
}

// Notifier surfaces proposals to the operator channel.
type Notifier interface {
	NotifyMeeting(ctx context.Context, n slack.MeetingNotice) error
	NotifyFollowUp(ctx context.Context, p slack.FollowUpProposal) error
	NotifyThrottle(ctx context.Context, reason string) error
}

// Config tunes the engine's cycles.
type Config struct {
	NotesSender     string
	MeetingLookback time.Duration
	// ProposalCooldown suppresses re-proposing the same lead while an earlier
	// proposal is still sitting unanswered in the channel.
	ProposalCooldown time.Duration
}

// Engine runs the scheduled outreach cycles and handles operator decisions.
type Engine struct {
	cfg     Config
	db      *store.Store
	gov     *governor.Governor
	cad     *cadence.Engine
	mail    MailClient
	social  SocialClient
	drafter Drafter
	notify  Notifier
	met     *metrics.Metrics
	logger  zerolog.Logger

	now   func() time.Time
	pause func(ctx context.Context, d time.Duration)

	mu         sync.Mutex
	proposed   map[string]time.Time // lead id -> last proposal time
	pending    map[string]drafts.Draft
	backfilled bool // first meeting cycle after start runs in backfill mode
}

// New creates the orchestrating engine.
func New(cfg Config, db *store.Store, gov *governor.Governor, cad *cadence.Engine, mail MailClient, drafter Drafter, notify Notifier, met *metrics.Metrics, logger zerolog.Logger) *Engine {
	if cfg.MeetingLookback <= 0 {
		cfg.MeetingLookback = 2 * time.Hour
	}
	if cfg.ProposalCooldown <= 0 {
		cfg.ProposalCooldown = 24 * time.Hour
	}
	return &Engine{
		cfg:      cfg,
		db:       db,
		gov:      gov,
		cad:      cad,
		mail:     mail,
		drafter:  drafter,
		notify:   notify,
		met:      met,
		logger:   logger.With().Str("component", "engine").Logger(),
		now:      time.Now,
		pause:    sleepCtx,
		proposed: make(map[string]time.Time),
		pending:  make(map[string]drafts.Draft),
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// backfillLookback is how far back the first meeting cycle after a restart
// reaches, so meetings missed while the process was down still surface.
const backfillLookback = 24 * time.Hour

// SurfaceMeetings is the meeting-surfacing cycle: find meetings that ended in
// the lookback window, match their notes, create leads, draft intro emails,
// and surface each once to the operator channel. The first cycle after start
// runs in backfill mode: a wider calendar window and a wider notes search.
func (e *Engine) SurfaceMeetings(ctx context.Context) {
	started := e.now()
	defer func() { e.met.ObserveCycle("meetings", time.Since(started).Seconds()) }()

	if e.mail == nil || !e.mail.Connected() {
		e.logger.Debug().Msg("mail not connected, skipping meeting cycle")
		return
	}

	e.mu.Lock()
	historical := !e.backfilled
	e.backfilled = true
	e.mu.Unlock()

	lookback := e.cfg.MeetingLookback
	if historical {
		lookback = backfillLookback
	}

	until := e.now()
	meetings, err := e.mail.EndedMeetings(ctx, until.Add(-lookback), until)
	if err != nil {
		e.logger.Error().Err(err).Msg("fetching ended meetings failed")
		e.met.RecordError("engine", "calendar_fetch")
		return
	}

	for _, m := range meetings {
		if err := e.surfaceOne(ctx, m, historical); err != nil {
			e.logger.Error().Err(err).Str("meeting", m.ID).Msg("surfacing meeting failed")
			e.met.RecordError("engine", "surface_meeting")
		}
	}
}

func (e *Engine) surfaceOne(ctx context.Context, m notes.Meeting, historical bool) error {
	external := m.ExternalAttendees()
	if len(external) == 0 {
		return nil // internal meeting, nothing to pursue
	}

	surfaced, err := e.db.IsMeetingSurfaced(ctx, m.ID)
	if err != nil {
		return err
	}
	if surfaced {
		return nil
	}

	match := e.matchNotes(ctx, m, historical)
	if match != nil {
		e.met.MeetingsMatched.Inc()
	}

	// One pursuit per person: a new meeting with someone already in an
	// active cadence continues that lead instead of opening a second one.
	recipient := external[0]
	lead, err := e.db.GetLeadByEmail(ctx, recipient.Email)
	if err != nil {
		return fmt.Errorf("looking up lead by email: %w", err)
	}
	if lead == nil || lead.Status != store.LeadStatusActive {
		lead, err = e.cad.CreateLead(ctx, &store.Lead{
			Email:        recipient.Email,
			Name:         recipient.Name,
			Company:      companyFromEmail(recipient.Email),
			MeetingID:    m.ID,
			MeetingDate:  m.End.UnixMilli(),
			MeetingTitle: m.Title,
		})
		if err != nil {
			return fmt.Errorf("creating lead: %w", err)
		}
	}
	if match != nil {
		e.attachNotes(ctx, lead, match)
	}

	var subject, body string
	if e.drafter != nil {
		draft, err := e.drafter.IntroEmail(ctx, e.leadInfo(lead, match))
		if err != nil {
			// Surface without a draft rather than dropping the meeting.
			e.logger.Warn().Err(err).Str("meeting", m.ID).Msg("intro draft failed")
			e.met.RecordError("engine", "draft")
		} else {
			subject, body = draft.Subject, draft.Body
		}
	}

	created, err := e.db.SurfaceMeeting(ctx, &store.SurfacedMeeting{
		MeetingID:      m.ID,
		RecipientEmail: recipient.Email,
		RecipientName:  recipient.Name,
		MeetingTitle:   m.Title,
		Status:         store.MeetingStatusSurfaced,
		DraftSubject:   subject,
		DraftBody:      body,
	})
	if err != nil {
		return fmt.Errorf("recording surfaced meeting: %w", err)
	}
	if !created {
		return nil // raced with another cycle
	}
	e.met.MeetingsSurfaced.Inc()

	if e.notify == nil {
		return nil
	}
	notice := slack.MeetingNotice{
		MeetingID: m.ID,
		Title:     m.Title,
		EndedAt:   m.End,
		LeadName:  recipient.Name,
		LeadEmail: recipient.Email,
		Company:   lead.Company,
		Subject:   subject,
		Body:      body,
	}
	if match != nil {
		notice.KeyPoints = match.Content.KeyPoints
		notice.NextSteps = match.Content.NextSteps
	}
	return e.notify.NotifyMeeting(ctx, notice)
}

// matchNotes fetches candidate notes emails for the meeting and picks the
// best match. A miss is a legitimate outcome, never an error.
func (e *Engine) matchNotes(ctx context.Context, m notes.Meeting, historical bool) *notes.Match {
	if e.cfg.NotesSender == "" {
		return nil
	}

	after, limit := notes.SearchWindow(m.End, historical)
	emails, err := e.mail.Emails(ctx, outlook.Filter{
		From:  e.cfg.NotesSender,
		After: after,
		Limit: limit,
	})
	if err != nil {
		e.logger.Warn().Err(err).Str("meeting", m.ID).Msg("notes fetch failed")
		return nil
	}

	candidates := make([]notes.Candidate, 0, len(emails))
	for _, em := range emails {
		candidates = append(candidates, notes.Candidate{
			ID:         em.ID,
			Subject:    em.Subject,
			Body:       em.Body,
			ReceivedAt: em.ReceivedAt,
		})
	}
	return notes.BestMatch(m, candidates)
}

func (e *Engine) attachNotes(ctx context.Context, lead *store.Lead, match *notes.Match) {
	lead.NotesID = match.Candidate.ID
	lead.NotesSummary = strings.Join(match.Content.KeyPoints, "; ")
	if err := e.db.AttachLeadNotes(ctx, lead.ID, lead.NotesID, lead.NotesSummary); err != nil {
		e.logger.Warn().Err(err).Str("lead", lead.ID).Msg("attaching notes to lead failed")
	}
}

// ProposeFollowUps is the follow-up cycle: consult the governor's circuit
// breaker, then surface one proposal per due lead.
func (e *Engine) ProposeFollowUps(ctx context.Context) {
	started := e.now()
	defer func() { e.met.ObserveCycle("followups", time.Since(started).Seconds()) }()

	if verdict := e.gov.ShouldThrottle(ctx); verdict.Throttle {
		e.logger.Info().Str("reason", verdict.Reason).Msg("throttled, skipping follow-up cycle")
		if e.notify != nil {
			if err := e.notify.NotifyThrottle(ctx, verdict.Reason); err != nil {
				e.logger.Warn().Err(err).Msg("throttle notice failed")
			}
		}
		return
	}

	due, err := e.cad.FollowUpsDue(ctx)
	if err != nil {
		e.logger.Error().Err(err).Msg("listing due follow-ups failed")
		e.met.RecordError("engine", "followups_due")
		return
	}
	e.met.FollowUpsDue.Set(float64(len(due)))

	for _, d := range due {
		if err := e.proposeOne(ctx, d); err != nil {
			e.logger.Error().Err(err).Str("lead", d.Lead.ID).Msg("proposing follow-up failed")
			e.met.RecordError("engine", "propose_followup")
		}
	}
}

func (e *Engine) proposeOne(ctx context.Context, d cadence.DueFollowUp) error {
	e.mu.Lock()
	last, seen := e.proposed[d.Lead.ID]
	e.mu.Unlock()
	if seen && e.now().Sub(last) < e.cfg.ProposalCooldown {
		return nil // proposal is still sitting in the channel
	}

	// The due list is a snapshot; the lead may have responded since.
	lead, err := e.db.GetLead(ctx, d.Lead.ID)
	if err != nil {
		return err
	}
	if lead == nil || lead.Status != store.LeadStatusActive {
		return nil
	}

	var subject, body string
	if e.drafter != nil {
		draft, err := e.drafter.FollowUpEmail(ctx, e.leadInfo(lead, nil))
		if err != nil {
			return fmt.Errorf("drafting follow-up: %w", err)
		}
		subject, body = draft.Subject, draft.Body
	}

	e.mu.Lock()
	e.proposed[lead.ID] = e.now()
	e.pending[lead.ID] = drafts.Draft{Subject: subject, Body: body}
	e.mu.Unlock()

	if e.notify == nil {
		return nil
	}
	return e.notify.NotifyFollowUp(ctx, slack.FollowUpProposal{
		LeadID:         lead.ID,
		LeadName:       lead.Name,
		LeadEmail:      lead.Email,
		Company:        lead.Company,
		Stage:          string(d.Stage),
		FollowUpCount:  lead.EmailFollowupCount,
		DaysSinceEmail: d.DaysSince,
		Warm:           d.IsWarm,
		Subject:        subject,
		Body:           body,
	})
}

// DetectResponses is the response-detection cycle.
func (e *Engine) DetectResponses(ctx context.Context) {
	started := e.now()
	defer func() { e.met.ObserveCycle("responses", time.Since(started).Seconds()) }()

	if e.mail == nil || !e.mail.Connected() {
		e.logger.Debug().Msg("mail not connected, skipping response cycle")
		return
	}

	n, err := e.cad.DetectResponses(ctx)
	if err != nil {
		e.logger.Error().Err(err).Msg("response detection failed")
		e.met.RecordError("engine", "detect_responses")
		return
	}
	if n > 0 {
		e.met.ResponsesDetected.Add(float64(n))
		e.clearResolved(ctx)
	}
}

// clearResolved drops pending proposals for leads no longer active.
func (e *Engine) clearResolved(ctx context.Context) {
	e.mu.Lock()
	ids := make([]string, 0, len(e.pending))
	for id := range e.pending {
		ids = append(ids, id)
	}
	e.mu.Unlock()

	for _, id := range ids {
		lead, err := e.db.GetLead(ctx, id)
		if err != nil || lead == nil {
			continue
		}
		if lead.Status != store.LeadStatusActive {
			e.mu.Lock()
			delete(e.pending, id)
			delete(e.proposed, id)
			e.mu.Unlock()
		}
	}
}

// RunRetention is the ledger-retention cycle.
func (e *Engine) RunRetention(ctx context.Context) {
	started := e.now()
	defer func() { e.met.ObserveCycle("retention", time.Since(started).Seconds()) }()

	if err := e.db.RunRetention(ctx); err != nil {
		e.logger.Error().Err(err).Msg("retention failed")
		e.met.RecordError("engine", "retention")
	}
}

func (e *Engine) leadInfo(l *store.Lead, match *notes.Match) drafts.LeadInfo {
	info := drafts.LeadInfo{
		Name:          l.Name,
		Email:         l.Email,
		Company:       l.Company,
		MeetingTitle:  l.MeetingTitle,
		FollowUpCount: l.EmailFollowupCount,
	}
	if l.LastEmailDate > 0 {
		info.DaysSinceEmail = int(e.now().Sub(time.UnixMilli(l.LastEmailDate)).Hours() / 24)
	}
	if match != nil {
		info.KeyPoints = match.Content.KeyPoints
		info.ActionItems = match.Content.ActionItems
		info.NextSteps = match.Content.NextSteps
	}
	return info
}

// companyFromEmail guesses a display company from the mail domain.
func companyFromEmail(email string) string {
	i := strings.LastIndex(email, "@")
	if i < 0 {
		return ""
	}
	domain := email[i+1:]
	if j := strings.Index(domain, "."); j > 0 {
		domain = domain[:j]
	}
	if domain == "" {
		return ""
	}
	return strings.ToUpper(domain[:1]) + domain[1:]
}
