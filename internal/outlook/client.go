// Package outlook wraps the Microsoft Graph mail and calendar endpoints the
// agent consumes. A client without a connected account returns empty results
// rather than errors — "no data" is a legitimate state, not a failure.
package outlook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	oerrors "github.com/oakline-labs/outreach-agent/internal/errors"
	"github.com/oakline-labs/outreach-agent/internal/notes"
	"github.com/oakline-labs/outreach-agent/internal/retry"
)

// HTTPClient abstracts HTTP calls for testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Email is one message as the agent sees it.
type Email struct {
	ID         string
	ThreadID   string
	From       string
	Subject    string
	Body       string
	ReceivedAt time.Time
}

// Filter narrows an Emails query.
type Filter struct {
	From   string
	To     string
	Folder string
	After  time.Time
	Limit  int
}

// Client wraps the Graph REST API.
type Client struct {
	baseURL    string
	token      string
	mailbox    string
	httpClient HTTPClient
	logger     zerolog.Logger
	retryCfg   retry.Config
}

// NewClient creates a Graph API client for one mailbox.
func NewClient(baseURL, token, mailbox string, timeout time.Duration, logger zerolog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      token,
		mailbox:    mailbox,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With().Str("component", "outlook").Logger(),
		retryCfg:   retry.DefaultConfig(),
	}
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(hc HTTPClient) {
	c.httpClient = hc
}

// Connected reports whether an account is configured.
func (c *Client) Connected() bool {
	return c.token != "" && c.mailbox != ""
}

// Mailbox returns the connected address.
func (c *Client) Mailbox() string { return c.mailbox }

// do executes an authenticated API request with retry on transient failures.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	var resp *http.Response

	var payload []byte
	if body != nil {
		var err error
		payload, err = io.ReadAll(body)
		if err != nil {
			return nil, fmt.Errorf("reading request body: %w", err)
		}
	}

	err := retry.Do(ctx, c.retryCfg, func(ctx context.Context) error {
		var rd io.Reader
		if payload != nil {
			rd = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")

		resp, err = c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("executing request: %w", err)
		}
		if resp.StatusCode >= 400 {
			respBody, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return oerrors.NewAPIError("graph", resp.StatusCode, string(respBody))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func decodeResponse(resp *http.Response, v interface{}) error {
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// Graph wire types, kept to the fields the agent reads.

type graphEvent struct {
	ID        string `json:"id"`
	Subject   string `json:"subject"`
	Start     graphDateTime `json:"start"`
	End       graphDateTime `json:"end"`
	Attendees []struct {
		EmailAddress graphAddress `json:"emailAddress"`
	} `json:"attendees"`
}

type graphDateTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

func (g graphDateTime) parse() time.Time {
	t, err := time.Parse("2006-01-02T15:04:05.9999999", g.DateTime)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

type graphAddress struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

type graphMessage struct {
	ID             string       `json:"id"`
	ConversationID string       `json:"conversationId"`
	Subject        string       `json:"subject"`
	From           struct {
		EmailAddress graphAddress `json:"emailAddress"`
	} `json:"from"`
	Body struct {
		Content string `json:"content"`
	} `json:"body"`
	ReceivedDateTime time.Time `json:"receivedDateTime"`
}

func (m graphMessage) toEmail() Email {
	return Email{
		ID:         m.ID,
		ThreadID:   m.ConversationID,
		From:       m.From.EmailAddress.Address,
		Subject:    m.Subject,
		Body:       m.Body.Content,
		ReceivedAt: m.ReceivedDateTime,
	}
}

// EndedMeetings fetches calendar events that ended inside [since, until].
func (c *Client) EndedMeetings(ctx context.Context, since, until time.Time) ([]notes.Meeting, error) {
	if !c.Connected() {
		c.logger.Debug().Msg("no mail account connected, returning no meetings")
		return nil, nil
	}

	path := fmt.Sprintf("/me/calendarView?startDateTime=%s&endDateTime=%s&$orderby=end/dateTime",
		url.QueryEscape(since.UTC().Format(time.RFC3339)),
		url.QueryEscape(until.UTC().Format(time.RFC3339)),
	)

	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching calendar view: %w", err)
	}

	var payload struct {
		Value []graphEvent `json:"value"`
	}
	if err := decodeResponse(resp, &payload); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var meetings []notes.Meeting
	for _, ev := range payload.Value {
		end := ev.End.parse()
		if end.IsZero() || end.After(now) {
			continue // still running or unparseable
		}
		m := notes.Meeting{
			ID:    ev.ID,
			Title: ev.Subject,
			Start: ev.Start.parse(),
			End:   end,
		}
		for _, a := range ev.Attendees {
			addr := a.EmailAddress.Address
			if addr == "" {
				continue
			}
			m.Attendees = append(m.Attendees, notes.Attendee{
				Name:       a.EmailAddress.Name,
				Email:      addr,
				IsExternal: c.isExternal(addr),
			})
		}
		meetings = append(meetings, m)
	}
	return meetings, nil
}

// isExternal compares mail domains against the connected mailbox.
func (c *Client) isExternal(address string) bool {
	return !strings.EqualFold(mailDomain(address), mailDomain(c.mailbox))
}

func mailDomain(address string) string {
	if i := strings.LastIndex(address, "@"); i >= 0 {
		return strings.ToLower(address[i+1:])
	}
	return ""
}

// Emails fetches messages matching the filter, newest first.
func (c *Client) Emails(ctx context.Context, f Filter) ([]Email, error) {
	if !c.Connected() {
		c.logger.Debug().Msg("no mail account connected, returning no emails")
		return nil, nil
	}

	var clauses []string
	if f.From != "" {
		clauses = append(clauses, fmt.Sprintf("from/emailAddress/address eq '%s'", f.From))
	}
	if !f.After.IsZero() {
		clauses = append(clauses, fmt.Sprintf("receivedDateTime ge %s", f.After.UTC().Format(time.RFC3339)))
	}

	folder := "/me/messages"
	if f.Folder != "" {
		folder = fmt.Sprintf("/me/mailFolders/%s/messages", url.PathEscape(f.Folder))
	}

	q := url.Values{}
	if len(clauses) > 0 {
		q.Set("$filter", strings.Join(clauses, " and "))
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 25
	}
	q.Set("$top", fmt.Sprintf("%d", limit))
	q.Set("$orderby", "receivedDateTime desc")

	resp, err := c.do(ctx, http.MethodGet, folder+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("fetching emails: %w", err)
	}

	var payload struct {
		Value []graphMessage `json:"value"`
	}
	if err := decodeResponse(resp, &payload); err != nil {
		return nil, err
	}

	emails := make([]Email, 0, len(payload.Value))
	for _, m := range payload.Value {
		emails = append(emails, m.toEmail())
	}
	return emails, nil
}

// EmailThread fetches every message in a conversation, oldest first.
func (c *Client) EmailThread(ctx context.Context, threadID string) ([]Email, error) {
	if !c.Connected() {
		return nil, nil
	}

	q := url.Values{}
	q.Set("$filter", fmt.Sprintf("conversationId eq '%s'", threadID))
	q.Set("$orderby", "receivedDateTime asc")

	resp, err := c.do(ctx, http.MethodGet, "/me/messages?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("fetching thread %s: %w", threadID, err)
	}

	var payload struct {
		Value []graphMessage `json:"value"`
	}
	if err := decodeResponse(resp, &payload); err != nil {
		return nil, err
	}

	emails := make([]Email, 0, len(payload.Value))
	for _, m := range payload.Value {
		emails = append(emails, m.toEmail())
	}
	return emails, nil
}

// SendEmail sends a message and returns the conversation id Graph assigned
// to it. The message is created first so the id can be read back, then sent;
// when threadID is set the message carries the conversation reference so
// providers thread it correctly and the same id is returned.
func (c *Client) SendEmail(ctx context.Context, to, subject, body, threadID string) (string, error) {
	if !c.Connected() {
		return "", oerrors.ErrNotConnected
	}

	msg := map[string]interface{}{
		"subject": subject,
		"body": map[string]string{
			"contentType": "Text",
			"content":     body,
		},
		"toRecipients": []map[string]interface{}{
			{"emailAddress": map[string]string{"address": to}},
		},
	}
	if threadID != "" {
		msg["conversationId"] = threadID
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("encoding message: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/me/messages", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("creating message: %w", err)
	}

	var created struct {
		ID             string `json:"id"`
		ConversationID string `json:"conversationId"`
	}
	if err := decodeResponse(resp, &created); err != nil {
		return "", err
	}

	resp, err = c.do(ctx, http.MethodPost, "/me/messages/"+created.ID+"/send", nil)
	if err != nil {
		return "", fmt.Errorf("sending message %s: %w", created.ID, err)
	}
	resp.Body.Close()
	return created.ConversationID, nil
}

// CreateDraft creates (but does not send) a draft message and returns its id.
func (c *Client) CreateDraft(ctx context.Context, to, subject, body string) (string, error) {
	if !c.Connected() {
		return "", oerrors.ErrNotConnected
	}

	msg := map[string]interface{}{
		"subject": subject,
		"body": map[string]string{
			"contentType": "Text",
			"content":     body,
		},
		"toRecipients": []map[string]interface{}{
			{"emailAddress": map[string]string{"address": to}},
		},
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("encoding draft: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/me/messages", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("creating draft: %w", err)
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := decodeResponse(resp, &created); err != nil {
		return "", err
	}
	return created.ID, nil
}
