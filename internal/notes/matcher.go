// Package notes pairs an ended meeting with the notes email that covers it.
// The matcher is a pure scoring pass over candidates the mail collaborator
// already narrowed by sender and date window.
package notes

import (
	"regexp"
	"strings"
	"time"
)

// MinMatchScore is the acceptance floor. Below it a candidate is treated as
// unrelated even if it is the best on offer.
const MinMatchScore = 3

// timeBonusWindow is how long after a meeting's end a candidate can still
// earn a proximity bonus.
const timeBonusWindow = 30 * time.Minute

// Attendee is one participant of an ended meeting.
type Attendee struct {
	Name       string
	Email      string
	IsExternal bool
}

// Meeting is an ended calendar event, as fetched from the calendar collaborator.
type Meeting struct {
	ID        string
	Title     string
	Start     time.Time
	End       time.Time
	Attendees []Attendee
}

// ExternalAttendees returns only the attendees outside the organization.
func (m Meeting) ExternalAttendees() []Attendee {
	var out []Attendee
	for _, a := range m.Attendees {
		if a.IsExternal {
			out = append(out, a)
		}
	}
	return out
}

// Candidate is one notes email under consideration.
type Candidate struct {
	ID         string
	Subject    string
	Body       string
	ReceivedAt time.Time
}

// Match is the selected candidate with its score and parsed content.
type Match struct {
	Candidate Candidate
	Score     int
	Content   Content
}

// BestMatch scores every candidate against the meeting and returns the
// highest scorer, or nil if none clears the acceptance floor.
func BestMatch(meeting Meeting, candidates []Candidate) *Match {
	best := -1
	var bestCandidate Candidate

	for _, c := range candidates {
		score := Score(meeting, c)
		if score > best {
			best = score
			bestCandidate = c
		}
	}

	if best < MinMatchScore {
		return nil
	}
	return &Match{
		Candidate: bestCandidate,
		Score:     best,
		Content:   ParseContent(bestCandidate.Body),
	}
}

// Score computes the additive match score for one candidate.
func Score(meeting Meeting, c Candidate) int {
	subject := strings.ToLower(c.Subject)
	body := strings.ToLower(c.Body)
	text := subject + "\n" + body

	score := 0

	if titleMatches(meeting.Title, text) {
		score += 10
	}

	for _, a := range meeting.ExternalAttendees() {
		if name := strings.ToLower(strings.TrimSpace(a.Name)); name != "" && strings.Contains(text, name) {
			score += 5
		}
		if email := strings.ToLower(strings.TrimSpace(a.Email)); email != "" && strings.Contains(body, email) {
			score += 3
		}
	}

	score += timeBonus(meeting.End, c.ReceivedAt)
	return score
}

// titleMatches reports whether the meeting title ties the candidate to the
// meeting: either the full title appears verbatim, or one of its significant
// tokens does. Meeting titles like "Ola <> Joe (Jencap)" rarely survive into
// a notes subject intact, but the company token usually does.
func titleMatches(title, text string) bool {
	lower := strings.ToLower(strings.TrimSpace(title))
	if lower == "" {
		return false
	}
	if strings.Contains(text, lower) {
		return true
	}
	for _, token := range titleTokens(lower) {
		if strings.Contains(text, token) {
			return true
		}
	}
	return false
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// titleTokens extracts the significant words of a title: alphanumeric runs
// of four or more characters, minus scheduling boilerplate.
func titleTokens(lowerTitle string) []string {
	var tokens []string
	for _, tok := range nonAlnum.Split(lowerTitle, -1) {
		if len(tok) < 4 {
			continue
		}
		switch tok {
		case "meeting", "call", "sync", "chat", "intro", "with", "weekly", "monthly":
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

// timeBonus rewards candidates arriving shortly after the meeting ended:
// +5 at minute zero, decaying one point every six minutes, nothing after 30.
func timeBonus(meetingEnd, receivedAt time.Time) int {
	late := receivedAt.Sub(meetingEnd)
	if late < 0 || late >= timeBonusWindow {
		return 0
	}
	return 5 - int(late.Minutes())/6
}

// SearchWindow returns the candidate-fetch window start and limit.
// Real-time mode starts exactly at the meeting's end. Historical-backfill
// mode starts a day earlier and fetches more, tolerating notes filed before
// an event's nominal end (recurring series often end "early").
func SearchWindow(meetingEnd time.Time, historical bool) (start time.Time, limit int) {
	if historical {
		return meetingEnd.Add(-24 * time.Hour), 50
	}
	return meetingEnd, 10
}
