package slack

import (
	"fmt"
	"strings"
	"time"

	"github.com/slack-go/slack"
)

// MeetingNotice carries the details for a surfaced-meeting message.
type MeetingNotice struct {
	MeetingID string
	Title     string
	EndedAt   time.Time
	LeadName  string
	LeadEmail string
	Company   string
	Subject   string
	Body      string
	KeyPoints []string
	NextSteps []string
}

// FollowUpProposal carries the details for a follow-up approval message.
type FollowUpProposal struct {
	LeadID         string
	LeadName       string
	LeadEmail      string
	Company        string
	Stage          string
	FollowUpCount  int
	DaysSinceEmail int
	Warm           bool
	Subject        string
	Body           string
}

// truncate shortens s to max chars, appending "…" if truncated.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}

// BuildMeetingBlocks creates the Block Kit message for a freshly surfaced
// meeting with its proposed intro email.
func BuildMeetingBlocks(n MeetingNotice) []slack.Block {
	var sb strings.Builder
	sb.WriteString("📅 *Meeting Ended*\n\n")
	sb.WriteString(fmt.Sprintf("*Meeting:* %s\n", n.Title))
	if !n.EndedAt.IsZero() {
		sb.WriteString(fmt.Sprintf("*Ended:* %s\n", n.EndedAt.Format("Mon Jan 2 15:04 MST")))
	}
	sb.WriteString(fmt.Sprintf("*Lead:* %s <%s>\n", n.LeadName, n.LeadEmail))
	if n.Company != "" {
		sb.WriteString(fmt.Sprintf("*Company:* %s\n", n.Company))
	}
	if len(n.KeyPoints) > 0 {
		sb.WriteString("*Key points:*\n")
		for _, p := range n.KeyPoints {
			sb.WriteString(fmt.Sprintf("  • %s\n", truncate(p, 120)))
		}
	}
	if len(n.NextSteps) > 0 {
		sb.WriteString("*Next steps:*\n")
		for _, p := range n.NextSteps {
			sb.WriteString(fmt.Sprintf("  • %s\n", truncate(p, 120)))
		}
	}

	blocks := []slack.Block{
		slack.NewSectionBlock(
			slack.NewTextBlockObject("mrkdwn", sb.String(), false, false),
			nil, nil,
		),
		slack.NewDividerBlock(),
		slack.NewSectionBlock(
			slack.NewTextBlockObject("mrkdwn",
				fmt.Sprintf("✉️ *Proposed email*\n*Subject:* %s\n\n%s",
					n.Subject, truncate(n.Body, 1500)),
				false, false),
			nil, nil,
		),
		slack.NewActionBlock(
			"meeting_actions",
			slack.NewButtonBlockElement(
				fmt.Sprintf("meeting_send_%s", n.MeetingID), "send",
				slack.NewTextBlockObject("plain_text", "✅ Send", false, false),
			),
			slack.NewButtonBlockElement(
				fmt.Sprintf("meeting_skip_%s", n.MeetingID), "skip",
				slack.NewTextBlockObject("plain_text", "⏭️ Skip", false, false),
			),
		),
	}
	return blocks
}

// BuildFollowUpBlocks creates the Block Kit message proposing the next
// follow-up email for a lead.
func BuildFollowUpBlocks(p FollowUpProposal) []slack.Block {
	var sb strings.Builder
	sb.WriteString("🔁 *Follow-up Due*\n\n")
	sb.WriteString(fmt.Sprintf("*Lead:* %s <%s>\n", p.LeadName, p.LeadEmail))
	if p.Company != "" {
		sb.WriteString(fmt.Sprintf("*Company:* %s\n", p.Company))
	}
	sb.WriteString(fmt.Sprintf("*Stage:* %s (%d sent, %d days since last email)\n",
		p.Stage, p.FollowUpCount, p.DaysSinceEmail))
	if p.Warm {
		sb.WriteString("🔥 *Warm lead* — opened an email but has not replied\n")
	}

	blocks := []slack.Block{
		slack.NewSectionBlock(
			slack.NewTextBlockObject("mrkdwn", sb.String(), false, false),
			nil, nil,
		),
		slack.NewDividerBlock(),
		slack.NewSectionBlock(
			slack.NewTextBlockObject("mrkdwn",
				fmt.Sprintf("✉️ *Proposed email*\n*Subject:* %s\n\n%s",
					p.Subject, truncate(p.Body, 1500)),
				false, false),
			nil, nil,
		),
		slack.NewActionBlock(
			"followup_actions",
			slack.NewButtonBlockElement(
				fmt.Sprintf("followup_send_%s", p.LeadID), "send",
				slack.NewTextBlockObject("plain_text", "✅ Send", false, false),
			),
			slack.NewButtonBlockElement(
				fmt.Sprintf("followup_skip_%s", p.LeadID), "skip",
				slack.NewTextBlockObject("plain_text", "⏭️ Skip", false, false),
			),
			slack.NewButtonBlockElement(
				fmt.Sprintf("lead_cold_%s", p.LeadID), "cold",
				slack.NewTextBlockObject("plain_text", "🧊 Mark Cold", false, false),
			),
		),
	}
	return blocks
}

// FollowUpSummary returns a one-line summary for logs and notifications.
func FollowUpSummary(p FollowUpProposal) string {
	return fmt.Sprintf("%s follow-up to %s %q",
		p.Stage, p.LeadEmail, truncate(p.Subject, 60))
}
