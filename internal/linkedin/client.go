// Package linkedin wraps a hosted LinkedIn messaging provider API. The client
// is raw transport only; rate governance happens in the callers.
package linkedin

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
	"github.com/oakline-labs/outreach-agent/internal/retry"
)

// HTTPClient abstracts HTTP calls for testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Profile is a LinkedIn member as returned by search and lookup.
type Profile struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Headline string `json:"headline"`
	URL      string `json:"profile_url"`
}

// Reaction kinds accepted by the provider.
const (
	ReactionLike      = "like"
	ReactionCelebrate = "celebrate"
	ReactionInsight   = "insightful"
)

// Client wraps the provider REST API for one connected LinkedIn account.
type Client struct {
	baseURL    string
	apiKey     string
	accountID  string
	httpClient HTTPClient
	logger     zerolog.Logger
	retryCfg   retry.Config
}

// NewClient creates a provider client bound to one account.
func NewClient(baseURL, apiKey, accountID string, timeout time.Duration, logger zerolog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		accountID:  accountID,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With().Str("component", "linkedin").Logger(),
		retryCfg:   retry.DefaultConfig(),
	}
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(hc HTTPClient) {
	c.httpClient = hc
}

// Connected reports whether a LinkedIn account is configured.
func (c *Client) Connected() bool {
	return c.apiKey != "" && c.accountID != ""
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
	}

	var resp *http.Response
	err := retry.Do(ctx, c.retryCfg, func(ctx context.Context) error {
		var rd io.Reader
		if payload != nil {
			rd = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("X-API-KEY", c.apiKey)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")

		resp, err = c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("executing request: %w", err)
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			return fmt.Errorf("provider throttled: %w", oerrors.ErrRateLimit)
		}
		if resp.StatusCode >= 400 {
			respBody, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return oerrors.NewAPIError("linkedin", resp.StatusCode, string(respBody))
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

// SendInvitation sends a connection request with an optional note.
func (c *Client) SendInvitation(ctx context.Context, profileID, note string) error {
	if !c.Connected() {
		return oerrors.ErrNotConnected
	}
	body := map[string]string{
		"account_id":  c.accountID,
		"provider_id": profileID,
	}
	if note != "" {
		body["message"] = note
	}
	resp, err := c.do(ctx, http.MethodPost, "/api/v1/users/invite", body)
	if err != nil {
		return fmt.Errorf("sending invitation: %w", err)
	}
	resp.Body.Close()
	return nil
}

// SendMessage sends a direct message to a connected profile.
func (c *Client) SendMessage(ctx context.Context, profileID, text string) error {
	if !c.Connected() {
		return oerrors.ErrNotConnected
	}
	body := map[string]interface{}{
		"account_id":   c.accountID,
		"attendees_ids": []string{profileID},
		"text":         text,
	}
	resp, err := c.do(ctx, http.MethodPost, "/api/v1/chats", body)
	if err != nil {
		return fmt.Errorf("sending message: %w", err)
	}
	resp.Body.Close()
	return nil
}

// Comment posts a comment on a feed post.
func (c *Client) Comment(ctx context.Context, postID, text string) error {
	if !c.Connected() {
		return oerrors.ErrNotConnected
	}
	path := fmt.Sprintf("/api/v1/posts/%s/comments", url.PathEscape(postID))
	resp, err := c.do(ctx, http.MethodPost, path, map[string]string{
		"account_id": c.accountID,
		"text":       text,
	})
	if err != nil {
		return fmt.Errorf("posting comment: %w", err)
	}
	resp.Body.Close()
	return nil
}

// React adds a reaction to a feed post.
func (c *Client) React(ctx context.Context, postID, reaction string) error {
	if !c.Connected() {
		return oerrors.ErrNotConnected
	}
	if reaction == "" {
		reaction = ReactionLike
	}
	path := fmt.Sprintf("/api/v1/posts/%s/reactions", url.PathEscape(postID))
	resp, err := c.do(ctx, http.MethodPost, path, map[string]string{
		"account_id": c.accountID,
		"reaction":   reaction,
	})
	if err != nil {
		return fmt.Errorf("reacting to post: %w", err)
	}
	resp.Body.Close()
	return nil
}

// ViewProfile records a profile view and returns the profile.
func (c *Client) ViewProfile(ctx context.Context, profileID string) (*Profile, error) {
	if !c.Connected() {
		return nil, oerrors.ErrNotConnected
	}
	path := fmt.Sprintf("/api/v1/users/%s?account_id=%s",
		url.PathEscape(profileID), url.QueryEscape(c.accountID))
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("viewing profile: %w", err)
	}
	var p Profile
	if err := decodeResponse(resp, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Search runs a people search and returns up to limit profiles.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]Profile, error) {
	if !c.Connected() {
		return nil, oerrors.ErrNotConnected
	}
	if limit <= 0 {
		limit = 10
	}
	q := url.Values{}
	q.Set("account_id", c.accountID)
	q.Set("keywords", query)
	q.Set("limit", fmt.Sprintf("%d", limit))

	resp, err := c.do(ctx, http.MethodGet, "/api/v1/linkedin/search?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("searching profiles: %w", err)
	}

	var payload struct {
		Items []Profile `json:"items"`
	}
	if err := decodeResponse(resp, &payload); err != nil {
		return nil, err
	}
	return payload.Items, nil
}
