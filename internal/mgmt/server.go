// Package mgmt exposes the management API: governor status, lead and meeting
// inspection, scheduler control, health and config.
package mgmt

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"

	"github.com/oakline-labs/outreach-agent/internal/governor"
	"github.com/oakline-labs/outreach-agent/internal/health"
	"github.com/oakline-labs/outreach-agent/internal/metrics"
	"github.com/oakline-labs/outreach-agent/internal/requestid"
	"github.com/oakline-labs/outreach-agent/internal/scheduler"
	"github.com/oakline-labs/outreach-agent/internal/store"
)

// ServerConfig holds configuration for the management API server.
type ServerConfig struct {
	ListenAddr  string
	AuthConfig  AuthConfig
	CORSOrigins string
	RateLimit   int // requests per minute, 0 disables
}

// Server is the management API Fiber application.
type Server struct {
	app      *fiber.App
	handlers *Handlers
	logger   zerolog.Logger
	config   ServerConfig
}

// NewServer creates and configures a new management API server.
func NewServer(
	cfg ServerConfig,
	gov *governor.Governor,
	sched *scheduler.Scheduler,
	leads *store.Store,
	checker *health.Checker,
	metricsCollector *metrics.Metrics,
	rtCfg *RuntimeConfig,
	logger zerolog.Logger,
) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          customErrorHandler(logger),
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		ReadBufferSize:        8192,
		WriteBufferSize:       8192,
	})

	handlers := NewHandlers(gov, sched, leads, checker, rtCfg, logger)

	s := &Server{
		app:      app,
		handlers: handlers,
		logger:   logger.With().Str("component", "mgmt_server").Logger(),
		config:   cfg,
	}

	s.setupMiddleware(cfg, logger)
	s.setupRoutes(handlers, metricsCollector)

	return s
}

// SetOpenTracker wires the open-tracking feed behind the pixel endpoint.
func (s *Server) SetOpenTracker(tr OpenTracker) {
	s.handlers.opens = tr
}

func (s *Server) setupMiddleware(cfg ServerConfig, logger zerolog.Logger) {
	s.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	// Request ID middleware
	s.app.Use(func(c *fiber.Ctx) error {
		_, reqID := requestid.New(c.Context())
		c.Set("X-Request-ID", reqID)
		c.Locals("request_id", reqID)
		return c.Next()
	})

	if cfg.CORSOrigins != "" {
		s.app.Use(cors.New(cors.Config{
			AllowOrigins: cfg.CORSOrigins,
			AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
			AllowMethods: "GET, POST, OPTIONS",
		}))
	}

	if cfg.RateLimit > 0 {
		s.app.Use(limiter.New(limiter.Config{
			Max:        cfg.RateLimit,
			Expiration: time.Minute,
		}))
	}

	s.app.Use(NewAuthMiddleware(cfg.AuthConfig, logger))

	// Audit middleware (log every request)
	s.app.Use(func(c *fiber.Ctx) error {
		path := c.Path()
		// Skip noisy probe logging
		if path == "/healthz" || path == "/readyz" || path == "/metrics" {
			return c.Next()
		}

		logger.Info().
			Str("method", c.Method()).
			Str("path", path).
			Str("ip", c.IP()).
			Str("request_id", fmt.Sprintf("%v", c.Locals("request_id"))).
			Msg("mgmt api request")

		return c.Next()
	})
}

func (s *Server) setupRoutes(h *Handlers, metricsCollector *metrics.Metrics) {
	// Probe endpoints (no auth required — handled in auth middleware)
	s.app.Get("/healthz", h.Liveness)
	s.app.Get("/readyz", h.Readiness)

	if metricsCollector != nil {
		s.app.Get("/metrics", adaptor.HTTPHandler(metricsCollector.Handler()))
	}

	// Email tracking pixel; unauthenticated, hit by recipient mail clients.
	s.app.Get("/t/o/:id", h.TrackOpen)

	v1 := s.app.Group("/api/v1")

	v1.Get("/governor", h.GovernorStatus)

	v1.Get("/leads", h.ListLeads)
	v1.Get("/leads/:id", h.GetLead)
	v1.Get("/meetings", h.ListMeetings)

	v1.Get("/scheduler", h.SchedulerStatus)
	v1.Post("/scheduler/:id/trigger", requireRole(RoleOperator), h.TriggerTask)

	v1.Get("/health", h.HealthDetail)
	v1.Get("/config", h.GetConfig)
}

// Start starts the server. Blocks until stopped.
func (s *Server) Start() error {
	addr := s.config.ListenAddr
	if addr == "" {
		addr = ":8090"
	}

	s.logger.Info().Str("addr", addr).Msg("management API server starting")
	return s.app.Listen(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	s.logger.Info().Msg("management API server shutting down")
	return s.app.Shutdown()
}

// App returns the underlying Fiber app (useful for testing).
func (s *Server) App() *fiber.App {
	return s.app
}

func customErrorHandler(logger zerolog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		if e, ok := err.(*fiber.Error); ok {
			code = e.Code
		}

		logger.Error().
			Err(err).
			Int("status", code).
			Str("path", c.Path()).
			Str("method", c.Method()).
			Msg("unhandled error")

		detail := err.Error()
		// Don't leak internal details in production
		if code == fiber.StatusInternalServerError {
			if !strings.Contains(detail, "test") {
				detail = "An internal error occurred"
			}
		}

		return c.Status(code).JSON(ProblemDetail{
			Type:     "internal_error",
			Title:    "Internal Server Error",
			Status:   code,
			Detail:   detail,
			Instance: c.Path(),
		})
	}
}
