package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/oakline-labs/outreach-agent/internal/cadence"
	"github.com/oakline-labs/outreach-agent/internal/governor"
	"github.com/oakline-labs/outreach-agent/internal/linkedin"
	"github.com/oakline-labs/outreach-agent/internal/store"
)

// SocialClient is the slice of the LinkedIn provider the engine uses.
type SocialClient interface {
	Connected() bool
	Search(ctx context.Context, query string, limit int) ([]linkedin.Profile, error)
	SendInvitation(ctx context.Context, profileID, note string) error
	SendMessage(ctx context.Context, profileID, text string) error
}

// SetSocial wires the LinkedIn provider. Optional; without it the nudge
// cycle is a no-op.
func (e *Engine) SetSocial(s SocialClient) {
	e.social = s
}

// NudgeLinkedIn is the LinkedIn cycle: leads whose email cadence is exhausted
// and who never replied get one governed touch on the other channel. A lead
// progresses one step per cycle: resolve the profile, then a connection
// request, then a single direct message. After that only a reply or the
// operator moves it.
func (e *Engine) NudgeLinkedIn(ctx context.Context) {
	started := e.now()
	defer func() { e.met.ObserveCycle("linkedin", time.Since(started).Seconds()) }()

	if e.social == nil || !e.social.Connected() {
		e.logger.Debug().Msg("linkedin not connected, skipping nudge cycle")
		return
	}

	leads, err := e.db.ListLeads(ctx, store.LeadFilter{Status: store.LeadStatusActive})
	if err != nil {
		e.logger.Error().Err(err).Msg("listing leads for linkedin cycle failed")
		e.met.RecordError("engine", "linkedin_list")
		return
	}

	for _, l := range leads {
		if l.EmailFollowupCount < cadence.MaxAutomaticFollowUps {
			continue
		}

		verdict := e.cad.LinkedInTouchAllowed(ctx)
		if !verdict.Allowed {
			e.logger.Info().Str("reason", verdict.Reason).Msg("linkedin touches denied, stopping cycle")
			e.met.RecordDenied(string(governor.ActivityMessage), verdict.Reason)
			return
		}

		acted, err := e.nudgeOne(ctx, l)
		if err != nil {
			e.logger.Error().Err(err).Str("lead", l.ID).Msg("linkedin nudge failed")
			e.met.RecordError("engine", "linkedin_nudge")
			continue
		}
		if acted != "" {
			// Humanized pacing between successive touches.
			e.pause(ctx, e.gov.RecommendedDelay(acted))
		}
		if ctx.Err() != nil {
			return
		}
	}
}

// nudgeOne advances the lead one step and reports which governed activity
// went out, if any.
func (e *Engine) nudgeOne(ctx context.Context, l *store.Lead) (governor.ActivityType, error) {
	switch {
	case l.LinkedInID == "":
		return e.resolveProfile(ctx, l)
	case !l.LinkedInRequestSent:
		return e.sendInvitation(ctx, l)
	case l.LinkedInMessageCount == 0:
		return e.sendNudge(ctx, l)
	}
	return "", nil
}

// resolveProfile looks the lead up by name and company and pins the first
// hit. Searches are governed too; a miss is final for this cycle but the
// lead stays eligible next time.
func (e *Engine) resolveProfile(ctx context.Context, l *store.Lead) (governor.ActivityType, error) {
	if v := e.gov.CanPerform(ctx, governor.ActivitySearch); !v.Allowed {
		e.met.RecordDenied(string(governor.ActivitySearch), v.Reason)
		return "", nil
	}

	query := strings.TrimSpace(l.Name + " " + l.Company)
	if query == "" {
		return "", nil
	}
	profiles, err := e.social.Search(ctx, query, 3)
	if err != nil {
		return "", fmt.Errorf("profile search: %w", err)
	}
	if err := e.gov.RecordActivity(ctx, governor.ActivitySearch); err != nil {
		e.logger.Warn().Err(err).Msg("recording search activity failed")
	}
	e.met.RecordActivity(string(governor.ActivitySearch))

	if len(profiles) == 0 {
		e.logger.Debug().Str("lead", l.ID).Str("query", query).Msg("no linkedin profile found")
		return governor.ActivitySearch, nil
	}

	l.LinkedInID = profiles[0].ID
	if err := e.db.SetLeadLinkedInProfile(ctx, l.ID, l.LinkedInID); err != nil {
		return governor.ActivitySearch, fmt.Errorf("saving resolved profile: %w", err)
	}
	e.logger.Info().Str("lead", l.ID).Str("profile", l.LinkedInID).Msg("linkedin profile resolved")
	return governor.ActivitySearch, nil
}

func (e *Engine) sendInvitation(ctx context.Context, l *store.Lead) (governor.ActivityType, error) {
	if v := e.gov.CanPerform(ctx, governor.ActivityInvitation); !v.Allowed {
		e.met.RecordDenied(string(governor.ActivityInvitation), v.Reason)
		return "", nil
	}

	note := e.linkedInNote(ctx, l)
	if err := e.social.SendInvitation(ctx, l.LinkedInID, note); err != nil {
		return "", fmt.Errorf("sending invitation: %w", err)
	}
	if err := e.gov.RecordActivity(ctx, governor.ActivityInvitation); err != nil {
		e.logger.Warn().Err(err).Msg("recording invitation activity failed")
	}
	e.met.RecordActivity(string(governor.ActivityInvitation))

	if err := e.db.RecordLeadInvitation(ctx, l.ID, time.Now().UnixMilli()); err != nil {
		return governor.ActivityInvitation, fmt.Errorf("saving invitation state: %w", err)
	}
	e.logger.Info().Str("lead", l.ID).Msg("linkedin invitation sent")
	return governor.ActivityInvitation, nil
}

func (e *Engine) sendNudge(ctx context.Context, l *store.Lead) (governor.ActivityType, error) {
	text := e.linkedInNote(ctx, l)
	if err := e.social.SendMessage(ctx, l.LinkedInID, text); err != nil {
		return "", fmt.Errorf("sending message: %w", err)
	}
	if err := e.cad.RecordLinkedInMessage(ctx, l.ID); err != nil {
		return governor.ActivityMessage, fmt.Errorf("recording linkedin message: %w", err)
	}
	e.met.RecordActivity(string(governor.ActivityMessage))
	e.logger.Info().Str("lead", l.ID).Msg("linkedin nudge sent")
	return governor.ActivityMessage, nil
}

// linkedInNote drafts the short note, falling back to a canned line when no
// drafter is configured or the draft fails.
func (e *Engine) linkedInNote(ctx context.Context, l *store.Lead) string {
	if e.drafter != nil {
		note, err := e.drafter.LinkedInNote(ctx, e.leadInfo(l, nil))
		if err == nil && note != "" {
			return note
		}
		if err != nil {
			e.logger.Warn().Err(err).Str("lead", l.ID).Msg("linkedin note draft failed")
		}
	}

	first := l.Name
	if i := strings.IndexByte(first, ' '); i > 0 {
		first = first[:i]
	}
	if first == "" {
		return "Great connecting, following up on our conversation."
	}
	return fmt.Sprintf("Hi %s, great connecting, following up on our conversation.", first)
}
