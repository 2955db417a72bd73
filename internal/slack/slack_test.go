package slack

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/socketmode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	posted      []string
	postBlocks  [][]slack.Block
	updated     []string
	authErr     error
}

func (f *fakeAPI) PostMessage(channelID string, options ...slack.MsgOption) (string, string, error) {
	f.posted = append(f.posted, channelID)
	return channelID, "1234.5678", nil
}

func (f *fakeAPI) UpdateMessage(channelID, timestamp string, options ...slack.MsgOption) (string, string, string, error) {
	f.updated = append(f.updated, channelID+"/"+timestamp)
	return channelID, timestamp, "", nil
}

func (f *fakeAPI) AuthTest() (*slack.AuthTestResponse, error) {
	return &slack.AuthTestResponse{UserID: "UBOT"}, f.authErr
}

type recordingEngine struct {
	sends, skips, colds      []string
	meetingSends, meetingSkips []string
}

func (r *recordingEngine) OnFollowUpSend(_ context.Context, leadID, _ string) error {
	r.sends = append(r.sends, leadID)
	return nil
}

func (r *recordingEngine) OnFollowUpSkip(_ context.Context, leadID, _ string) error {
	r.skips = append(r.skips, leadID)
	return nil
}

func (r *recordingEngine) OnLeadCold(_ context.Context, leadID, _ string) error {
	r.colds = append(r.colds, leadID)
	return nil
}

func (r *recordingEngine) OnMeetingSend(_ context.Context, meetingID, _ string) error {
	r.meetingSends = append(r.meetingSends, meetingID)
	return nil
}

func (r *recordingEngine) OnMeetingSkip(_ context.Context, meetingID, _ string) error {
	r.meetingSkips = append(r.meetingSkips, meetingID)
	return nil
}

func interactionEvent(actionID string) socketmode.Event {
	callback := slack.InteractionCallback{
		User: slack.User{ID: "U123"},
		Channel: slack.Channel{
			GroupConversation: slack.GroupConversation{
				Conversation: slack.Conversation{ID: "C999"},
			},
		},
		Message: slack.Message{Msg: slack.Msg{Timestamp: "1111.2222"}},
		ActionCallback: slack.ActionCallbacks{
			BlockActions: []*slack.BlockAction{{ActionID: actionID}},
		},
	}
	return socketmode.Event{
		Type: socketmode.EventTypeInteractive,
		Data: callback,
	}
}

func newTestHandler() (*Handler, *fakeAPI, *recordingEngine) {
	api := &fakeAPI{}
	eng := &recordingEngine{}
	h := NewHandler("C999", zerolog.Nop())
	h.SetAPI(api)
	h.SetFollowUpHandler(eng)
	h.SetMeetingHandler(eng)
	return h, api, eng
}

func TestNotify_UninitializedClient(t *testing.T) {
	h := NewHandler("C123", zerolog.Nop())

	assert.ErrorContains(t, h.NotifyThrottle(context.Background(), "x"), "not initialized")
	assert.ErrorContains(t, h.NotifyMeeting(context.Background(), MeetingNotice{}), "not initialized")
	assert.ErrorContains(t, h.NotifyFollowUp(context.Background(), FollowUpProposal{}), "not initialized")
}

func TestNewApp_RejectsBadTokens(t *testing.T) {
	h := NewHandler("C123", zerolog.Nop())

	_, err := NewApp("", "xapp-1-token", zerolog.Nop(), h)
	assert.ErrorContains(t, err, "bot token")

	_, err = NewApp("xoxb-token", "", zerolog.Nop(), h)
	assert.ErrorContains(t, err, "app-level token")

	_, err = NewApp("xoxb-token", "not-an-app-token", zerolog.Nop(), h)
	assert.ErrorContains(t, err, "app-level token")

	app, err := NewApp("xoxb-token", "xapp-1-token", zerolog.Nop(), h)
	require.NoError(t, err)
	assert.NotNil(t, app)
}

func TestHandleEvent_FollowUpActions(t *testing.T) {
	h, api, eng := newTestHandler()

	h.HandleEvent(context.Background(), interactionEvent("followup_send_lead-1"))
	h.HandleEvent(context.Background(), interactionEvent("followup_skip_lead-2"))
	h.HandleEvent(context.Background(), interactionEvent("lead_cold_lead-3"))

	assert.Equal(t, []string{"lead-1"}, eng.sends)
	assert.Equal(t, []string{"lead-2"}, eng.skips)
	assert.Equal(t, []string{"lead-3"}, eng.colds)

	// Each resolved action rewrites the original message.
	assert.Len(t, api.updated, 3)
	assert.Equal(t, "C999/1111.2222", api.updated[0])
}

func TestHandleEvent_MeetingActions(t *testing.T) {
	h, _, eng := newTestHandler()

	h.HandleEvent(context.Background(), interactionEvent("meeting_send_evt-1"))
	h.HandleEvent(context.Background(), interactionEvent("meeting_skip_evt-2"))

	assert.Equal(t, []string{"evt-1"}, eng.meetingSends)
	assert.Equal(t, []string{"evt-2"}, eng.meetingSkips)
}

func TestHandleEvent_UnknownActionIgnored(t *testing.T) {
	h, api, eng := newTestHandler()

	h.HandleEvent(context.Background(), interactionEvent("something_else_entirely"))

	assert.Empty(t, eng.sends)
	assert.Empty(t, api.updated, "unknown actions leave the message alone")
}

func TestNotifyFollowUp(t *testing.T) {
	h, api, _ := newTestHandler()

	err := h.NotifyFollowUp(context.Background(), FollowUpProposal{
		LeadID:    "lead-1",
		LeadName:  "Joe Smith",
		LeadEmail: "joe@jencap.com",
		Stage:     "second",
		Subject:   "Checking in",
		Body:      "Hi Joe",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"C999"}, api.posted)
}

func TestNotifyThrottle(t *testing.T) {
	h, api, _ := newTestHandler()

	require.NoError(t, h.NotifyThrottle(context.Background(), "invitation at daily limit"))
	assert.Len(t, api.posted, 1)
}
