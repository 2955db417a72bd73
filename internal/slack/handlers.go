package slack

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/socketmode"
)

// FollowUpHandler processes follow-up button callbacks.
type FollowUpHandler interface {
	OnFollowUpSend(ctx context.Context, leadID, userID string) error
	OnFollowUpSkip(ctx context.Context, leadID, userID string) error
	OnLeadCold(ctx context.Context, leadID, userID string) error
}

// MeetingHandler processes surfaced-meeting button callbacks.
type MeetingHandler interface {
	OnMeetingSend(ctx context.Context, meetingID, userID string) error
	OnMeetingSkip(ctx context.Context, meetingID, userID string) error
}

// Handler processes Slack events. Interactive callbacks (send/skip/cold
// buttons) are routed to the engine; everything else is ignored.
type Handler struct {
	api             BotAPI
	socket          *socketmode.Client
	logger          zerolog.Logger
	channelID       string
	followUpHandler FollowUpHandler
	meetingHandler  MeetingHandler
}

// NewHandler creates a new event handler posting to channelID.
func NewHandler(channelID string, logger zerolog.Logger) *Handler {
	return &Handler{
		channelID: channelID,
		logger:    logger.With().Str("component", "slack.handler").Logger(),
	}
}

// SetFollowUpHandler sets the handler for follow-up button callbacks.
func (h *Handler) SetFollowUpHandler(fh FollowUpHandler) {
	h.followUpHandler = fh
}

// SetMeetingHandler sets the handler for surfaced-meeting button callbacks.
func (h *Handler) SetMeetingHandler(mh MeetingHandler) {
	h.meetingHandler = mh
}

// SetAPI sets the Slack API client (for testing).
func (h *Handler) SetAPI(api BotAPI) {
	h.api = api
}

// HandleEvent routes Socket Mode events to the appropriate handler.
func (h *Handler) HandleEvent(ctx context.Context, evt socketmode.Event) {
	switch evt.Type {
	case socketmode.EventTypeInteractive:
		h.handleInteraction(ctx, evt)
	case socketmode.EventTypeEventsAPI:
		// Nothing listens for inbound messages; ack and move on.
		if h.socket != nil && evt.Request != nil {
			h.socket.Ack(*evt.Request)
		}
	default:
		h.logger.Debug().Str("type", string(evt.Type)).Msg("unhandled event type")
	}
}

func (h *Handler) handleInteraction(ctx context.Context, evt socketmode.Event) {
	// Slack requires an ack within 3 seconds
	if h.socket != nil && evt.Request != nil {
		h.socket.Ack(*evt.Request)
	}

	callback, ok := evt.Data.(slack.InteractionCallback)
	if !ok {
		return
	}

	for _, action := range callback.ActionCallback.BlockActions {
		h.logger.Info().
			Str("action", action.ActionID).
			Str("user", callback.User.ID).
			Msg("interaction received")
		h.routeAction(ctx, callback, action)
	}
}

func (h *Handler) routeAction(ctx context.Context, callback slack.InteractionCallback, action *slack.BlockAction) {
	var err error
	var status string

	switch {
	case strings.HasPrefix(action.ActionID, "followup_send_"):
		leadID := strings.TrimPrefix(action.ActionID, "followup_send_")
		status = "✅ Sent"
		if h.followUpHandler != nil {
			err = h.followUpHandler.OnFollowUpSend(ctx, leadID, callback.User.ID)
		}
	case strings.HasPrefix(action.ActionID, "followup_skip_"):
		leadID := strings.TrimPrefix(action.ActionID, "followup_skip_")
		status = "⏭️ Skipped"
		if h.followUpHandler != nil {
			err = h.followUpHandler.OnFollowUpSkip(ctx, leadID, callback.User.ID)
		}
	case strings.HasPrefix(action.ActionID, "lead_cold_"):
		leadID := strings.TrimPrefix(action.ActionID, "lead_cold_")
		status = "🧊 Marked cold"
		if h.followUpHandler != nil {
			err = h.followUpHandler.OnLeadCold(ctx, leadID, callback.User.ID)
		}
	case strings.HasPrefix(action.ActionID, "meeting_send_"):
		meetingID := strings.TrimPrefix(action.ActionID, "meeting_send_")
		status = "✅ Sent"
		if h.meetingHandler != nil {
			err = h.meetingHandler.OnMeetingSend(ctx, meetingID, callback.User.ID)
		}
	case strings.HasPrefix(action.ActionID, "meeting_skip_"):
		meetingID := strings.TrimPrefix(action.ActionID, "meeting_skip_")
		status = "⏭️ Skipped"
		if h.meetingHandler != nil {
			err = h.meetingHandler.OnMeetingSkip(ctx, meetingID, callback.User.ID)
		}
	default:
		return
	}

	if err != nil {
		h.logger.Warn().Err(err).Str("action", action.ActionID).Msg("action handler failed")
		status = fmt.Sprintf("⚠️ Failed: %s", truncate(err.Error(), 120))
	}
	h.resolveMessage(callback, status)
}

// resolveMessage replaces the original interactive message, removing the
// buttons and appending the outcome.
func (h *Handler) resolveMessage(callback slack.InteractionCallback, status string) {
	if h.api == nil {
		return
	}

	originalText := ""
	if callback.Message.Msg.Blocks.BlockSet != nil {
		for _, block := range callback.Message.Msg.Blocks.BlockSet {
			if section, ok := block.(*slack.SectionBlock); ok && section.Text != nil {
				originalText = section.Text.Text
				break
			}
		}
	}

	updatedText := fmt.Sprintf("%s\n\n%s by <@%s>", originalText, status, callback.User.ID)
	_, _, _, err := h.api.UpdateMessage(
		callback.Channel.ID,
		callback.Message.Timestamp,
		slack.MsgOptionText(updatedText, false),
	)
	if err != nil {
		h.logger.Warn().Err(err).Msg("failed to update message")
	}
}

// NotifyMeeting posts a surfaced-meeting message with its proposed intro email.
func (h *Handler) NotifyMeeting(_ context.Context, n MeetingNotice) error {
	if h.api == nil {
		return fmt.Errorf("slack: client not initialized")
	}
	_, _, err := h.api.PostMessage(h.channelID, slack.MsgOptionBlocks(BuildMeetingBlocks(n)...))
	if err != nil {
		return fmt.Errorf("posting meeting notice: %w", err)
	}
	return nil
}

// NotifyFollowUp posts a follow-up proposal with send/skip/cold buttons.
func (h *Handler) NotifyFollowUp(_ context.Context, p FollowUpProposal) error {
	if h.api == nil {
		return fmt.Errorf("slack: client not initialized")
	}
	_, _, err := h.api.PostMessage(h.channelID, slack.MsgOptionBlocks(BuildFollowUpBlocks(p)...))
	if err != nil {
		return fmt.Errorf("posting follow-up proposal: %w", err)
	}
	return nil
}

// NotifyThrottle posts a plain-text pause notice from the governor.
func (h *Handler) NotifyThrottle(_ context.Context, reason string) error {
	if h.api == nil {
		return fmt.Errorf("slack: client not initialized")
	}
	text := fmt.Sprintf("🐢 *Outreach paused*\n%s", reason)
	_, _, err := h.api.PostMessage(h.channelID, slack.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("posting throttle notice: %w", err)
	}
	return nil
}
