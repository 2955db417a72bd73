package mgmt

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/oakline-labs/outreach-agent/internal/governor"
	"github.com/oakline-labs/outreach-agent/internal/health"
	"github.com/oakline-labs/outreach-agent/internal/scheduler"
	"github.com/oakline-labs/outreach-agent/internal/store"
)

// OpenTracker records tracking-pixel hits against a lead.
type OpenTracker interface {
	RecordEmailOpened(ctx context.Context, id string) error
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	gov       *governor.Governor
	sched     *scheduler.Scheduler
	leads     *store.Store
	checker   *health.Checker
	opens     OpenTracker
	logger    zerolog.Logger
	runtime   *RuntimeConfig
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(gov *governor.Governor, sched *scheduler.Scheduler, leads *store.Store, checker *health.Checker, rtCfg *RuntimeConfig, logger zerolog.Logger) *Handlers {
	if rtCfg.StartTime.IsZero() {
		rtCfg.StartTime = time.Now()
	}
	return &Handlers{
		gov:     gov,
		sched:   sched,
		leads:   leads,
		checker: checker,
		logger:  logger.With().Str("component", "handlers").Logger(),
		runtime: rtCfg,
	}
}

// GovernorStatus handles GET /api/v1/governor.
func (h *Handlers) GovernorStatus(c *fiber.Ctx) error {
	usage := h.gov.Usage(c.Context())

	out := make(map[string]governor.Verdict, len(usage))
	for typ, v := range usage {
		out[string(typ)] = v
	}
	return c.JSON(GovernorResponse{
		Throttle: h.gov.ShouldThrottle(c.Context()),
		Usage:    out,
	})
}

// ListLeads handles GET /api/v1/leads.
func (h *Handlers) ListLeads(c *fiber.Ctx) error {
	leads, err := h.leads.ListLeads(c.Context(), store.LeadFilter{
		Status: c.Query("status"),
		Limit:  c.QueryInt("limit", 50),
	})
	if err != nil {
		return problemResponse(c, fiber.StatusInternalServerError,
			"store_error", "Internal Server Error", err.Error())
	}

	summaries := make([]LeadSummary, 0, len(leads))
	for _, l := range leads {
		summaries = append(summaries, leadSummary(l))
	}
	return c.JSON(LeadListResponse{Leads: summaries, Total: len(summaries)})
}

// GetLead handles GET /api/v1/leads/:id.
func (h *Handlers) GetLead(c *fiber.Ctx) error {
	l, err := h.leads.GetLead(c.Context(), c.Params("id"))
	if err != nil {
		return problemResponse(c, fiber.StatusInternalServerError,
			"store_error", "Internal Server Error", err.Error())
	}
	if l == nil {
		return problemResponse(c, fiber.StatusNotFound,
			"lead_not_found", "Not Found",
			"Lead not found: "+c.Params("id"))
	}
	return c.JSON(leadSummary(l))
}

// ListMeetings handles GET /api/v1/meetings.
func (h *Handlers) ListMeetings(c *fiber.Ctx) error {
	meetings, err := h.leads.ListSurfacedMeetings(c.Context(), c.Query("status"), c.QueryInt("limit", 50))
	if err != nil {
		return problemResponse(c, fiber.StatusInternalServerError,
			"store_error", "Internal Server Error", err.Error())
	}

	summaries := make([]MeetingSummary, 0, len(meetings))
	for _, m := range meetings {
		summaries = append(summaries, MeetingSummary{
			MeetingID:  m.MeetingID,
			Title:      m.MeetingTitle,
			LeadEmail:  m.RecipientEmail,
			Status:     m.Status,
			SurfacedAt: m.CreatedAt,
		})
	}
	return c.JSON(MeetingListResponse{Meetings: summaries, Total: len(summaries)})
}

// SchedulerStatus handles GET /api/v1/scheduler.
func (h *Handlers) SchedulerStatus(c *fiber.Ctx) error {
	return c.JSON(SchedulerResponse{Tasks: h.sched.Status()})
}

// TriggerTask handles POST /api/v1/scheduler/:id/trigger.
func (h *Handlers) TriggerTask(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := h.sched.TriggerNow(id); err != nil {
		return problemResponse(c, fiber.StatusConflict,
			"trigger_failed", "Conflict", err.Error())
	}

	h.logger.Info().Str("task", id).Msg("task triggered via API")
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"triggered": id})
}

// pixelGIF is a 1x1 transparent GIF served to mail clients fetching the
// tracking pixel.
var pixelGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00,
	0x00, 0x00, 0x00, 0x00, 0xff, 0xff, 0xff, 0x21, 0xf9, 0x04, 0x01, 0x00,
	0x00, 0x00, 0x00, 0x2c, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00,
	0x00, 0x02, 0x02, 0x44, 0x01, 0x00, 0x3b,
}

// TrackOpen handles GET /t/o/:id. Unknown ids still get the pixel; the
// response never reveals whether the lead exists.
func (h *Handlers) TrackOpen(c *fiber.Ctx) error {
	id := c.Params("id")
	if h.opens != nil && id != "" {
		if err := h.opens.RecordEmailOpened(c.Context(), id); err != nil {
			h.logger.Debug().Err(err).Str("lead", id).Msg("open tracking record failed")
		}
	}
	c.Set("Content-Type", "image/gif")
	c.Set("Cache-Control", "no-store, no-cache")
	return c.Send(pixelGIF)
}

// HealthDetail handles GET /api/v1/health.
func (h *Handlers) HealthDetail(c *fiber.Ctx) error {
	results := h.checker.RunAll(c.Context())

	integrations := make(map[string]string, len(results))
	overall := "ok"
	for name, status := range results {
		integrations[name] = string(status)
		if status == health.StatusDown {
			overall = "degraded"
		}
	}

	var dbSize int64
	if h.leads != nil {
		size, err := h.leads.DBSizeBytes()
		if err != nil {
			h.logger.Warn().Err(err).Msg("reading db size failed")
		} else {
			dbSize = size
		}
	}

	return c.JSON(HealthDetailResponse{
		Status:       overall,
		Integrations: integrations,
		Uptime:       time.Since(h.runtime.StartTime).Round(time.Second).String(),
		DBSizeBytes:  dbSize,
		Version:      "1.0.0",
	})
}

// GetConfig handles GET /api/v1/config.
func (h *Handlers) GetConfig(c *fiber.Ctx) error {
	cfg := h.runtime
	return c.JSON(ConfigResponse{
		Environment:    cfg.Environment,
		LogLevel:       cfg.LogLevel,
		MgmtListenAddr: cfg.MgmtListenAddr,
		UseRecommended: cfg.UseRecommended,
		ActiveHours:    cfg.ActiveHours,
		AuthMode:       cfg.AuthMode,
	})
}

// Liveness handles GET /healthz.
func (h *Handlers) Liveness(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// Readiness handles GET /readyz.
func (h *Handlers) Readiness(c *fiber.Ctx) error {
	if !h.checker.IsReady(c.Context()) {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "not_ready",
		})
	}
	return c.JSON(fiber.Map{"status": "ready"})
}

func leadSummary(l *store.Lead) LeadSummary {
	return LeadSummary{
		ID:            l.ID,
		Name:          l.Name,
		Email:         l.Email,
		Company:       l.Company,
		Status:        l.Status,
		FollowUpCount: l.EmailFollowupCount,
		OpenCount:     l.OpenCount,
		LastEmailDate: l.LastEmailDate,
		RespondedVia:  l.RespondedVia,
		MeetingID:     l.MeetingID,
	}
}
