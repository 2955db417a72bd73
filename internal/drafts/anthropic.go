package drafts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const (
	anthropicAPIBase    = "https://api.anthropic.com/v1"
	anthropicAPIVersion = "2023-06-01"
	defaultMaxTokens    = 1024
	defaultModel        = "claude-sonnet-4-5"
)

// Completer produces a model completion for a prompt pair.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// AnthropicProvider implements Completer using the Anthropic Messages API.
type AnthropicProvider struct {
	apiKey    string
	baseURL   string
	model     string
	maxTokens int
	client    *http.Client
	logger    zerolog.Logger
}

// AnthropicOption configures the provider.
type AnthropicOption func(*AnthropicProvider)

func WithModel(model string) AnthropicOption {
	return func(p *AnthropicProvider) { p.model = model }
}

func WithMaxTokens(n int) AnthropicOption {
	return func(p *AnthropicProvider) { p.maxTokens = n }
}

func WithHTTPClient(c *http.Client) AnthropicOption {
	return func(p *AnthropicProvider) { p.client = c }
}

func WithBaseURL(u string) AnthropicOption {
	return func(p *AnthropicProvider) { p.baseURL = u }
}

func WithLogger(l zerolog.Logger) AnthropicOption {
	return func(p *AnthropicProvider) { p.logger = l }
}

// NewAnthropicProvider constructs a new Anthropic provider.
func NewAnthropicProvider(apiKey string, opts ...AnthropicOption) *AnthropicProvider {
	p := &AnthropicProvider{
		apiKey:    apiKey,
		baseURL:   anthropicAPIBase,
		model:     defaultModel,
		maxTokens: defaultMaxTokens,
		client:    &http.Client{Timeout: 120 * time.Second},
		logger:    zerolog.Nop(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *AnthropicProvider) ModelID() string { return p.model }

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete sends a blocking completion request and returns the text output.
func (p *AnthropicProvider) Complete(ctx context.Context, system, user string) (string, error) {
	ar := anthropicRequest{
		Model:     p.model,
		MaxTokens: p.maxTokens,
		System:    system,
		Messages:  []anthropicMessage{{Role: "user", Content: user}},
	}
	body, err := json.Marshal(ar)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicAPIVersion)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("anthropic http: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	var ar2 anthropicResponse
	if err := json.Unmarshal(raw, &ar2); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if ar2.Error != nil {
		return "", fmt.Errorf("anthropic api error %s: %s", ar2.Error.Type, ar2.Error.Message)
	}

	var text string
	for _, block := range ar2.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	p.logger.Debug().
		Str("model", ar.Model).
		Str("stop_reason", ar2.StopReason).
		Int("in_tokens", ar2.Usage.InputTokens).
		Int("out_tokens", ar2.Usage.OutputTokens).
		Msg("anthropic complete")
	return text, nil
}
