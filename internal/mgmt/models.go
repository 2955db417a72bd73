package mgmt

import (
	"time"

	"github.com/oakline-labs/outreach-agent/internal/governor"
	"github.com/oakline-labs/outreach-agent/internal/scheduler"
)

// ProblemDetail is an RFC 7807 error payload.
type ProblemDetail struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

// GovernorResponse is the payload for GET /api/v1/governor.
type GovernorResponse struct {
	Throttle governor.ThrottleVerdict            `json:"throttle"`
	Usage    map[string]governor.Verdict         `json:"usage"`
}

// LeadSummary is one lead in API responses.
type LeadSummary struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	Company        string `json:"company,omitempty"`
	Status         string `json:"status"`
	FollowUpCount  int    `json:"follow_up_count"`
	OpenCount      int    `json:"open_count"`
	LastEmailDate  int64  `json:"last_email_date,omitempty"`
	RespondedVia   string `json:"responded_via,omitempty"`
	MeetingID      string `json:"meeting_id,omitempty"`
}

// LeadListResponse is the payload for GET /api/v1/leads.
type LeadListResponse struct {
	Leads []LeadSummary `json:"leads"`
	Total int           `json:"total"`
}

// MeetingSummary is one surfaced meeting in API responses.
type MeetingSummary struct {
	MeetingID  string `json:"meeting_id"`
	Title      string `json:"title"`
	LeadEmail  string `json:"lead_email"`
	Status     string `json:"status"`
	SurfacedAt int64  `json:"surfaced_at"`
}

// MeetingListResponse is the payload for GET /api/v1/meetings.
type MeetingListResponse struct {
	Meetings []MeetingSummary `json:"meetings"`
	Total    int              `json:"total"`
}

// SchedulerResponse is the payload for GET /api/v1/scheduler.
type SchedulerResponse struct {
	Tasks []scheduler.TaskStatus `json:"tasks"`
}

// HealthDetailResponse is the payload for GET /api/v1/health.
type HealthDetailResponse struct {
	Status       string            `json:"status"`
	Integrations map[string]string `json:"integrations"`
	Uptime       string            `json:"uptime"`
	DBSizeBytes  int64             `json:"db_size_bytes"`
	Version      string            `json:"version"`
}

// ConfigResponse is the payload for GET /api/v1/config.
type ConfigResponse struct {
	Environment    string `json:"environment"`
	LogLevel       string `json:"log_level"`
	MgmtListenAddr string `json:"mgmt_listen_addr"`
	UseRecommended bool   `json:"use_recommended_limits"`
	ActiveHours    string `json:"active_hours"`
	AuthMode       string `json:"auth_mode"`
}

// RuntimeConfig holds the read-only runtime configuration exposed by the API.
type RuntimeConfig struct {
	Environment    string
	LogLevel       string
	MgmtListenAddr string
	UseRecommended bool
	ActiveHours    string
	AuthMode       string
	StartTime      time.Time
}
