// Package drafts generates outreach email and message drafts with an LLM.
// Every draft is a proposal only; nothing here sends anything.
package drafts

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// LeadInfo is the context handed to the model for one lead.
type LeadInfo struct {
	Name           string
	Email          string
	Company        string
	MeetingTitle   string
	KeyPoints      []string
	ActionItems    []string
	NextSteps      []string
	FollowUpCount  int
	LastSubject    string
	DaysSinceEmail int
}

// Draft is a generated email proposal.
type Draft struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

const systemPrompt = `You are drafting sales outreach emails for an insurance wholesaler.
Write short, specific, human-sounding emails. Reference the actual conversation
context you are given. Never invent commitments or pricing.
Respond with a single JSON object: {"subject": "...", "body": "..."}.`

// Generator turns lead context into email drafts.
type Generator struct {
	completer Completer
	logger    zerolog.Logger
}

// NewGenerator creates a draft generator.
func NewGenerator(c Completer, logger zerolog.Logger) *Generator {
	return &Generator{
		completer: c,
		logger:    logger.With().Str("component", "drafts").Logger(),
	}
}

// IntroEmail drafts the first outreach email after a meeting.
func (g *Generator) IntroEmail(ctx context.Context, lead LeadInfo) (*Draft, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Draft the first follow-up email after a meeting.\n")
	writeLeadContext(&b, lead)
	if len(lead.KeyPoints) > 0 {
		fmt.Fprintf(&b, "Key points discussed:\n%s\n", bulletList(lead.KeyPoints))
	}
	if len(lead.ActionItems) > 0 {
		fmt.Fprintf(&b, "Action items:\n%s\n", bulletList(lead.ActionItems))
	}
	if len(lead.NextSteps) > 0 {
		fmt.Fprintf(&b, "Agreed next steps:\n%s\n", bulletList(lead.NextSteps))
	}
	return g.generate(ctx, b.String())
}

// Follow-up stage guidance, indexed by how many automatic follow-ups have
// already gone out.
var stageGuidance = []string{
	"This is the first gentle follow-up. Reference the original email briefly.",
	"This is the second follow-up. Add one new piece of value or context.",
	"This is the third follow-up. Be brief and direct, offer a clear next step.",
	"This is the final follow-up. Politely close the loop and leave the door open.",
}

// FollowUpEmail drafts the next follow-up in an existing thread.
func (g *Generator) FollowUpEmail(ctx context.Context, lead LeadInfo) (*Draft, error) {
	guidance := stageGuidance[len(stageGuidance)-1]
	if lead.FollowUpCount < len(stageGuidance) {
		guidance = stageGuidance[lead.FollowUpCount]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Draft a follow-up email in an existing thread.\n")
	writeLeadContext(&b, lead)
	fmt.Fprintf(&b, "Previous subject: %s\n", lead.LastSubject)
	fmt.Fprintf(&b, "Days since last email: %d\n", lead.DaysSinceEmail)
	fmt.Fprintf(&b, "Follow-ups already sent: %d\n", lead.FollowUpCount)
	fmt.Fprintf(&b, "Guidance: %s\n", guidance)
	return g.generate(ctx, b.String())
}

// LinkedInNote drafts a short connection-request note. The provider caps
// notes at 300 characters, so the result is truncated if the model runs long.
func (g *Generator) LinkedInNote(ctx context.Context, lead LeadInfo) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Draft a LinkedIn connection request note (max 280 characters).\n")
	writeLeadContext(&b, lead)
	fmt.Fprintf(&b, "Respond with JSON where \"body\" holds the note and \"subject\" is empty.\n")

	d, err := g.generate(ctx, b.String())
	if err != nil {
		return "", err
	}
	note := strings.TrimSpace(d.Body)
	if len(note) > 300 {
		note = note[:300]
	}
	return note, nil
}

func (g *Generator) generate(ctx context.Context, prompt string) (*Draft, error) {
	out, err := g.completer.Complete(ctx, systemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("completing draft: %w", err)
	}
	d, err := parseDraft(out)
	if err != nil {
		return nil, err
	}
	g.logger.Debug().Str("subject", d.Subject).Msg("draft generated")
	return d, nil
}

func writeLeadContext(b *strings.Builder, lead LeadInfo) {
	fmt.Fprintf(b, "Recipient: %s <%s>\n", lead.Name, lead.Email)
	if lead.Company != "" {
		fmt.Fprintf(b, "Company: %s\n", lead.Company)
	}
	if lead.MeetingTitle != "" {
		fmt.Fprintf(b, "Meeting: %s\n", lead.MeetingTitle)
	}
}

func bulletList(items []string) string {
	var b strings.Builder
	for _, it := range items {
		fmt.Fprintf(&b, "- %s\n", it)
	}
	return b.String()
}

// parseDraft extracts the JSON object from model output. Models occasionally
// wrap JSON in prose or code fences, so we scan for the outermost braces.
func parseDraft(out string) (*Draft, error) {
	start := strings.Index(out, "{")
	end := strings.LastIndex(out, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in model output")
	}

	var d Draft
	if err := json.Unmarshal([]byte(out[start:end+1]), &d); err != nil {
		return nil, fmt.Errorf("parsing draft JSON: %w", err)
	}
	if strings.TrimSpace(d.Body) == "" {
		return nil, fmt.Errorf("draft has empty body")
	}
	return &d, nil
}
