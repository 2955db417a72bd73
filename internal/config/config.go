package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// General
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	DBPath      string `envconfig:"DB_PATH" default:"outreach.db"`

	// Slack (optional — agent starts without Slack in mgmt-only mode)
	SlackBotToken string `envconfig:"SLACK_BOT_TOKEN"`
	SlackAppToken string `envconfig:"SLACK_APP_TOKEN"` // xapp- token for Socket Mode
	SlackChannel  string `envconfig:"SLACK_CHANNEL" default:"#sales-outreach"`

	// Microsoft Graph mail/calendar (optional — no account means cycles skip)
	GraphBaseURL     string `envconfig:"GRAPH_BASE_URL" default:"https://graph.microsoft.com/v1.0"`
	GraphAccessToken string `envconfig:"GRAPH_ACCESS_TOKEN"`
	MailboxAddress   string `envconfig:"MAILBOX_ADDRESS"`

	// LinkedIn messaging provider (Unipile-style API)
	LinkedInBaseURL   string `envconfig:"LINKEDIN_BASE_URL"`
	LinkedInAPIKey    string `envconfig:"LINKEDIN_API_KEY"`
	LinkedInAccountID string `envconfig:"LINKEDIN_ACCOUNT_ID"`

	// Draft generation (Anthropic Messages API)
	AnthropicAPIKey string `envconfig:"ANTHROPIC_API_KEY"`
	AnthropicModel  string `envconfig:"ANTHROPIC_MODEL" default:"claude-sonnet-4-20250514"`

	// Meeting surfacing
	NotesSenderAddress string        `envconfig:"NOTES_SENDER_ADDRESS"` // notes-provider sender, e.g. Fellow
	MeetingLookback    time.Duration `envconfig:"MEETING_LOOKBACK" default:"2h"`

	// Activity governor
	LimitsPath     string `envconfig:"LIMITS_PATH"` // optional YAML overrides for activity limits
	UseRecommended bool   `envconfig:"USE_RECOMMENDED_LIMITS" default:"true"`

	// Scheduler active hours (local time)
	ActiveHourStart int    `envconfig:"ACTIVE_HOUR_START" default:"8"`
	ActiveHourEnd   int    `envconfig:"ACTIVE_HOUR_END" default:"18"`
	ActiveWeekdays  string `envconfig:"ACTIVE_WEEKDAYS" default:"1,2,3,4,5"` // ISO weekday numbers

	// Scheduler intervals
	MeetingCycleInterval  time.Duration `envconfig:"MEETING_CYCLE_INTERVAL" default:"15m"`
	FollowUpCycleInterval time.Duration `envconfig:"FOLLOWUP_CYCLE_INTERVAL" default:"1h"`
	ResponseCycleInterval time.Duration `envconfig:"RESPONSE_CYCLE_INTERVAL" default:"30m"`
	LinkedInCycleInterval time.Duration `envconfig:"LINKEDIN_CYCLE_INTERVAL" default:"4h"`
	RetentionInterval     time.Duration `envconfig:"RETENTION_INTERVAL" default:"6h"`

	// Management API
	MgmtListenAddr  string `envconfig:"MGMT_LISTEN_ADDR" default:":8090"`
	MgmtAPIKey      string `envconfig:"MGMT_API_KEY"`
	MgmtCORSOrigins string `envconfig:"MGMT_CORS_ORIGINS"`
	MgmtRateLimit   int    `envconfig:"MGMT_RATE_LIMIT" default:"120"` // requests per minute, 0 disables

	// External-call budget
	CollaboratorTimeout time.Duration `envconfig:"COLLABORATOR_TIMEOUT" default:"30s"`
}

// SlackEnabled returns true if Slack tokens are configured.
func (c *Config) SlackEnabled() bool {
	return c.SlackBotToken != "" && c.SlackAppToken != ""
}

// MailEnabled returns true if a mail/calendar account is connected.
func (c *Config) MailEnabled() bool {
	return c.GraphAccessToken != "" && c.MailboxAddress != ""
}

// LinkedInEnabled returns true if the messaging provider is configured.
func (c *Config) LinkedInEnabled() bool {
	return c.LinkedInAPIKey != "" && c.LinkedInAccountID != ""
}

// DraftsEnabled returns true if the LLM draft generator is configured.
func (c *Config) DraftsEnabled() bool {
	return c.AnthropicAPIKey != ""
}

// MgmtAuthMode returns the management API auth mode derived from config.
func (c *Config) MgmtAuthMode() string {
	if c.MgmtAPIKey != "" {
		return "api-key"
	}
	return "none"
}

// ParseActiveWeekdays parses ACTIVE_WEEKDAYS into ISO weekday numbers (1=Mon..7=Sun).
func (c *Config) ParseActiveWeekdays() ([]int, error) {
	parts := strings.Split(c.ActiveWeekdays, ",")
	days := make([]int, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, err := strconv.Atoi(part)
		if err != nil || d < 1 || d > 7 {
			return nil, fmt.Errorf("invalid weekday %q, expected 1-7", part)
		}
		days = append(days, d)
	}
	if len(days) == 0 {
		return nil, fmt.Errorf("ACTIVE_WEEKDAYS is set but contains no valid entries")
	}
	return days, nil
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if cfg.ActiveHourStart < 0 || cfg.ActiveHourStart > 23 || cfg.ActiveHourEnd < 1 || cfg.ActiveHourEnd > 24 {
		return nil, fmt.Errorf("active hours out of range: %d-%d", cfg.ActiveHourStart, cfg.ActiveHourEnd)
	}
	if cfg.ActiveHourStart >= cfg.ActiveHourEnd {
		return nil, fmt.Errorf("ACTIVE_HOUR_START must be before ACTIVE_HOUR_END")
	}
	return &cfg, nil
}

// LoadWithPrefix reads configuration with a prefix.
func LoadWithPrefix(prefix string) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(prefix, &cfg); err != nil {
		return nil, fmt.Errorf("loading config with prefix %s: %w", prefix, err)
	}
	return &cfg, nil
}
