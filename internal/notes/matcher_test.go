package notes

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var meetingEnd = time.Date(2025, 6, 11, 15, 0, 0, 0, time.UTC)

func jencapMeeting() Meeting {
	return Meeting{
		ID:    "mtg-1",
		Title: "Ola <> Joe (Jencap)",
		Start: meetingEnd.Add(-30 * time.Minute),
		End:   meetingEnd,
		Attendees: []Attendee{
			{Name: "Ola", Email: "ola@oakline.io", IsExternal: false},
			{Name: "Joe", Email: "joe@jencap.com", IsExternal: true},
		},
	}
}

func TestBestMatch_TextBeatsProximity(t *testing.T) {
	meeting := jencapMeeting()

	related := Candidate{
		ID:         "n-1",
		Subject:    "Jencap discussion notes",
		Body:       "Summary of the call.",
		ReceivedAt: meetingEnd.Add(5 * time.Minute),
	}
	unrelated := Candidate{
		ID:         "n-2",
		Subject:    "Lunch order",
		Body:       "Sandwiches downstairs.",
		ReceivedAt: meetingEnd.Add(2 * time.Minute),
	}

	m := BestMatch(meeting, []Candidate{unrelated, related})
	require.NotNil(t, m)
	assert.Equal(t, "n-1", m.Candidate.ID)
	assert.Greater(t, Score(meeting, related), Score(meeting, unrelated),
		"textual overlap must beat closer arrival time")
}

func TestBestMatch_RejectsBelowFloor(t *testing.T) {
	meeting := jencapMeeting()

	// Only signal is a weak time bonus: 20 minutes late scores 5-20/6 = 2.
	weak := Candidate{
		ID:         "n-1",
		Subject:    "Quarterly offsite logistics",
		Body:       "Unrelated content.",
		ReceivedAt: meetingEnd.Add(20 * time.Minute),
	}

	assert.Equal(t, 2, Score(meeting, weak))
	assert.Nil(t, BestMatch(meeting, []Candidate{weak}))
}

func TestBestMatch_NoCandidates(t *testing.T) {
	assert.Nil(t, BestMatch(jencapMeeting(), nil))
}

func TestScore_Components(t *testing.T) {
	meeting := jencapMeeting()

	t.Run("full title in subject", func(t *testing.T) {
		c := Candidate{Subject: "Notes: Ola <> Joe (Jencap)", ReceivedAt: meetingEnd.Add(time.Hour)}
		// +10 title, +5 attendee name "joe" (appears inside the subject)
		assert.Equal(t, 15, Score(meeting, c))
	})

	t.Run("attendee name in body", func(t *testing.T) {
		c := Candidate{Subject: "Recap", Body: "Great chatting with Joe today.", ReceivedAt: meetingEnd.Add(time.Hour)}
		assert.Equal(t, 5, Score(meeting, c))
	})

	t.Run("attendee email in body", func(t *testing.T) {
		// Title with no significant tokens, so only attendee signals fire.
		plain := Meeting{
			Title:     "Intro call",
			End:       meetingEnd,
			Attendees: []Attendee{{Name: "Joe", Email: "joe@jencap.com", IsExternal: true}},
		}
		c := Candidate{Subject: "Recap", Body: "CC: joe@jencap.com", ReceivedAt: meetingEnd.Add(time.Hour)}
		// "joe" is a substring of the email address, so the name also hits
		assert.Equal(t, 8, Score(plain, c))
	})

	t.Run("internal attendees ignored", func(t *testing.T) {
		c := Candidate{Subject: "Recap", Body: "From Ola's desk.", ReceivedAt: meetingEnd.Add(time.Hour)}
		assert.Equal(t, 0, Score(meeting, c))
	})
}

func TestTimeBonus_Decay(t *testing.T) {
	cases := []struct {
		late time.Duration
		want int
	}{
		{0, 5},
		{5 * time.Minute, 5},
		{6 * time.Minute, 4},
		{12 * time.Minute, 3},
		{24 * time.Minute, 1},
		{29 * time.Minute, 1},
		{30 * time.Minute, 0},
		{2 * time.Hour, 0},
		{-1 * time.Minute, 0}, // arrived before the meeting ended
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, timeBonus(meetingEnd, meetingEnd.Add(tc.late)), "late=%s", tc.late)
	}
}

func TestTitleTokens(t *testing.T) {
	tokens := titleTokens("ola <> joe (jencap) weekly sync")
	assert.Contains(t, tokens, "jencap")
	assert.NotContains(t, tokens, "joe", "short tokens dropped")
	assert.NotContains(t, tokens, "weekly", "boilerplate dropped")
	assert.NotContains(t, tokens, "sync")
}

func TestSearchWindow(t *testing.T) {
	start, limit := SearchWindow(meetingEnd, false)
	assert.Equal(t, meetingEnd, start)
	assert.Equal(t, 10, limit)

	start, limit = SearchWindow(meetingEnd, true)
	assert.Equal(t, meetingEnd.Add(-24*time.Hour), start)
	assert.Equal(t, 50, limit)
}
