package engine

import (
	"context"
	"fmt"

	"github.com/oakline-labs/outreach-agent/internal/cadence"
	"github.com/oakline-labs/outreach-agent/internal/store"
)

// Operator decisions arriving from the approval channel. The engine
// implements the slack handler interfaces directly.

// OnFollowUpSend sends the pending follow-up draft for a lead.
func (e *Engine) OnFollowUpSend(ctx context.Context, leadID, userID string) error {
	e.mu.Lock()
	draft, ok := e.pending[leadID]
	e.mu.Unlock()
	if !ok {
		return fmt.Errorf("no pending proposal for lead %s", leadID)
	}

	lead, err := e.db.GetLead(ctx, leadID)
	if err != nil {
		return err
	}
	if lead == nil {
		return fmt.Errorf("unknown lead %s", leadID)
	}
	if lead.Status != store.LeadStatusActive {
		return fmt.Errorf("lead %s is %s, not sending", leadID, lead.Status)
	}

	threadID, err := e.mail.SendEmail(ctx, lead.Email, draft.Subject, draft.Body, lead.EmailThreadID)
	if err != nil {
		return fmt.Errorf("sending follow-up: %w", err)
	}
	if threadID == "" {
		threadID = lead.EmailThreadID
	}

	isInitial := lead.LastEmailDate == 0
	if err := e.cad.RecordEmailSent(ctx, leadID, threadID, isInitial); err != nil {
		return err
	}

	if stage, ok := cadence.StageFor(lead.EmailFollowupCount, 9999); ok {
		e.met.RecordFollowUpSent(string(stage))
	}

	e.mu.Lock()
	delete(e.pending, leadID)
	delete(e.proposed, leadID)
	e.mu.Unlock()

	e.logger.Info().
		Str("lead", leadID).
		Str("operator", userID).
		Msg("follow-up sent")
	return nil
}

// OnFollowUpSkip drops the pending draft; the lead stays eligible and will
// be re-proposed after the cooldown.
func (e *Engine) OnFollowUpSkip(ctx context.Context, leadID, userID string) error {
	e.mu.Lock()
	delete(e.pending, leadID)
	e.mu.Unlock()

	e.logger.Info().
		Str("lead", leadID).
		Str("operator", userID).
		Msg("follow-up skipped")
	return nil
}

// OnLeadCold marks the lead cold and drops any pending proposal.
func (e *Engine) OnLeadCold(ctx context.Context, leadID, userID string) error {
	if err := e.cad.MarkCold(ctx, leadID); err != nil {
		return err
	}

	e.mu.Lock()
	delete(e.pending, leadID)
	delete(e.proposed, leadID)
	e.mu.Unlock()

	e.logger.Info().
		Str("lead", leadID).
		Str("operator", userID).
		Msg("lead marked cold")
	return nil
}

// OnMeetingSend sends the stored intro draft for a surfaced meeting.
func (e *Engine) OnMeetingSend(ctx context.Context, meetingID, userID string) error {
	m, err := e.db.GetSurfacedMeeting(ctx, meetingID)
	if err != nil {
		return err
	}
	if m == nil {
		return fmt.Errorf("unknown meeting %s", meetingID)
	}
	if m.Status != store.MeetingStatusSurfaced {
		return nil // already acted on
	}
	if m.DraftBody == "" {
		return fmt.Errorf("meeting %s has no draft to send", meetingID)
	}

	// The pursuit may predate this meeting, so resolve the lead by email
	// rather than recomputing an id from the meeting.
	lead, err := e.db.GetLeadByEmail(ctx, m.RecipientEmail)
	if err != nil {
		return err
	}
	if lead == nil {
		return fmt.Errorf("no lead for %s", m.RecipientEmail)
	}

	threadID, err := e.mail.SendEmail(ctx, m.RecipientEmail, m.DraftSubject, m.DraftBody, "")
	if err != nil {
		return fmt.Errorf("sending intro email: %w", err)
	}

	// Binding the conversation id here is what lets the response
	// sweep see replies to this thread later.
	if err := e.cad.RecordEmailSent(ctx, lead.ID, threadID, true); err != nil {
		return err
	}
	if err := e.db.UpdateMeetingStatus(ctx, meetingID, store.MeetingStatusSent); err != nil {
		return err
	}

	e.logger.Info().
		Str("meeting", meetingID).
		Str("operator", userID).
		Msg("intro email sent")
	return nil
}

// OnMeetingSkip marks a surfaced meeting skipped.
func (e *Engine) OnMeetingSkip(ctx context.Context, meetingID, userID string) error {
	m, err := e.db.GetSurfacedMeeting(ctx, meetingID)
	if err != nil {
		return err
	}
	if m == nil {
		return fmt.Errorf("unknown meeting %s", meetingID)
	}
	if m.Status != store.MeetingStatusSurfaced {
		return nil
	}

	if err := e.db.UpdateMeetingStatus(ctx, meetingID, store.MeetingStatusSkipped); err != nil {
		return err
	}

	e.logger.Info().
		Str("meeting", meetingID).
		Str("operator", userID).
		Msg("meeting skipped")
	return nil
}
