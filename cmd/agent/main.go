package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/oakline-labs/outreach-agent/internal/cadence"
	"github.com/oakline-labs/outreach-agent/internal/config"
	"github.com/oakline-labs/outreach-agent/internal/drafts"
	"github.com/oakline-labs/outreach-agent/internal/engine"
	"github.com/oakline-labs/outreach-agent/internal/governor"
	"github.com/oakline-labs/outreach-agent/internal/health"
	"github.com/oakline-labs/outreach-agent/internal/linkedin"
	"github.com/oakline-labs/outreach-agent/internal/metrics"
	"github.com/oakline-labs/outreach-agent/internal/mgmt"
	"github.com/oakline-labs/outreach-agent/internal/outlook"
	"github.com/oakline-labs/outreach-agent/internal/scheduler"
	slackpkg "github.com/oakline-labs/outreach-agent/internal/slack"
	"github.com/oakline-labs/outreach-agent/internal/store"
)

// threadReader adapts the mail client to the cadence engine's thread view.
type threadReader struct {
	mail *outlook.Client
}

func (r threadReader) Thread(ctx context.Context, threadID string) ([]cadence.ThreadMessage, error) {
	emails, err := r.mail.EmailThread(ctx, threadID)
	if err != nil {
		return nil, err
	}
	msgs := make([]cadence.ThreadMessage, 0, len(emails))
	for _, e := range emails {
		msgs = append(msgs, cadence.ThreadMessage{From: e.From, ReceivedAt: e.ReceivedAt})
	}
	return msgs, nil
}

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	// Setup structured logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(os.Stdout).With().Timestamp().Caller().Logger()

	if os.Getenv("ENVIRONMENT") == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	log.Logger = logger

	// Load config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	// Set log level
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err == nil {
		zerolog.SetGlobalLevel(level)
	}

	logger.Info().
		Str("environment", cfg.Environment).
		Str("mgmt_addr", cfg.MgmtListenAddr).
		Bool("slack_enabled", cfg.SlackEnabled()).
		Bool("mail_enabled", cfg.MailEnabled()).
		Bool("linkedin_enabled", cfg.LinkedInEnabled()).
		Bool("drafts_enabled", cfg.DraftsEnabled()).
		Msg("starting outreach agent")

	// Context with graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Durable state
	db, err := store.New(cfg.DBPath, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.DBPath).Msg("failed to open store")
	}
	defer db.Close()

	// Activity governor
	policies, err := governor.LoadPolicies(cfg.LimitsPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.LimitsPath).Msg("failed to load activity limits")
	}
	gov := governor.New(policies, db, cfg.UseRecommended, logger)

	// Collaborator clients. Unconfigured clients report not connected and
	// the affected cycles skip.
	mail := outlook.NewClient(cfg.GraphBaseURL, cfg.GraphAccessToken, cfg.MailboxAddress, cfg.CollaboratorTimeout, logger)
	social := linkedin.NewClient(cfg.LinkedInBaseURL, cfg.LinkedInAPIKey, cfg.LinkedInAccountID, cfg.CollaboratorTimeout, logger)

	cad := cadence.New(db, threadReader{mail}, gov, logger)

	var drafter engine.Drafter
	if cfg.DraftsEnabled() {
		provider := drafts.NewAnthropicProvider(cfg.AnthropicAPIKey,
			drafts.WithModel(cfg.AnthropicModel),
			drafts.WithLogger(logger),
		)
		drafter = drafts.NewGenerator(provider, logger)
	} else {
		logger.Info().Msg("draft generation not configured, proposals go out without drafts")
	}

	met := metrics.New()

	// Slack surfacing (optional; without it the engine runs headless and the
	// mgmt API is the only window in)
	var slackHandler *slackpkg.Handler
	var notifier engine.Notifier
	if cfg.SlackEnabled() {
		slackHandler = slackpkg.NewHandler(cfg.SlackChannel, logger)
		notifier = slackHandler
	} else {
		logger.Info().Msg("Slack not configured, running in mgmt-only mode")
	}

	// Orchestrating engine
	eng := engine.New(engine.Config{
		NotesSender:     cfg.NotesSenderAddress,
		MeetingLookback: cfg.MeetingLookback,
	}, db, gov, cad, mail, drafter, notifier, met, logger)
	eng.SetSocial(social)

	// Scheduler with active-hours gating
	weekdays, err := cfg.ParseActiveWeekdays()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid ACTIVE_WEEKDAYS")
	}
	days := make(map[int]bool, len(weekdays))
	for _, d := range weekdays {
		days[d] = true
	}
	sched := scheduler.New(scheduler.ActiveHours{
		StartHour: cfg.ActiveHourStart,
		EndHour:   cfg.ActiveHourEnd,
		Weekdays:  days,
	}, logger)

	schedule := func(id, name string, interval time.Duration, fn func(ctx context.Context)) {
		if err := sched.Schedule(id, name, interval, fn); err != nil {
			logger.Fatal().Err(err).Str("task", id).Msg("failed to schedule task")
		}
	}
	schedule("meetings", "Meeting surfacing", cfg.MeetingCycleInterval, eng.SurfaceMeetings)
	schedule("followups", "Follow-up proposals", cfg.FollowUpCycleInterval, eng.ProposeFollowUps)
	schedule("responses", "Response detection", cfg.ResponseCycleInterval, eng.DetectResponses)
	schedule("linkedin", "LinkedIn nudges", cfg.LinkedInCycleInterval, eng.NudgeLinkedIn)
	schedule("retention", "Ledger retention", cfg.RetentionInterval, eng.RunRetention)

	// Health checker
	checker := health.NewChecker(logger)
	checker.Register("store", health.StoreCheck(db))
	checker.Register("mail", health.CollaboratorCheck(mail.Connected))
	checker.Register("linkedin", health.CollaboratorCheck(social.Connected))

	// Management API
	rtCfg := &mgmt.RuntimeConfig{
		Environment:    cfg.Environment,
		LogLevel:       cfg.LogLevel,
		MgmtListenAddr: cfg.MgmtListenAddr,
		UseRecommended: cfg.UseRecommended,
		ActiveHours:    fmt.Sprintf("%d-%d %s", cfg.ActiveHourStart, cfg.ActiveHourEnd, cfg.ActiveWeekdays),
		AuthMode:       cfg.MgmtAuthMode(),
		StartTime:      time.Now(),
	}

	mgmtServer := mgmt.NewServer(mgmt.ServerConfig{
		ListenAddr: cfg.MgmtListenAddr,
		AuthConfig: mgmt.AuthConfig{
			Mode:   cfg.MgmtAuthMode(),
			APIKey: cfg.MgmtAPIKey,
		},
		CORSOrigins: cfg.MgmtCORSOrigins,
		RateLimit:   cfg.MgmtRateLimit,
	}, gov, sched, db, checker, met, rtCfg, logger)
	mgmtServer.SetOpenTracker(cad)

	// WaitGroup for in-flight work
	var wg sync.WaitGroup

	// Slack wiring happens before anything starts serving, so no request
	// can reach a half-wired handler.
	var slackApp *slackpkg.App
	if slackHandler != nil {
		app, slackErr := slackpkg.NewApp(cfg.SlackBotToken, cfg.SlackAppToken, logger, slackHandler)
		if slackErr != nil {
			logger.Error().Err(slackErr).Msg("failed to init Slack app (non-fatal)")
		} else {
			// Operator buttons drive the engine callbacks
			slackHandler.SetFollowUpHandler(eng)
			slackHandler.SetMeetingHandler(eng)
			slackApp = app
			logger.Info().Str("channel", cfg.SlackChannel).Msg("Slack Socket Mode enabled")
		}
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := mgmtServer.Start(); err != nil {
			logger.Error().Err(err).Msg("management API server error")
		}
	}()

	if slackApp != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := slackApp.Run(ctx); err != nil {
				logger.Error().Err(err).Msg("Slack Socket Mode error")
			}
		}()
	}

	sched.Start(ctx)

	// Wait for shutdown signal
	sig := <-sigCh
	logger.Info().Str("signal", sig.String()).Msg("shutting down gracefully")

	// Cancel context to signal all goroutines
	cancel()

	sched.Stop()

	if err := mgmtServer.Shutdown(); err != nil {
		logger.Error().Err(err).Msg("management API server shutdown error")
	}

	// Wait for in-flight work to complete
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info().Msg("all goroutines stopped")
	case <-time.After(15 * time.Second):
		logger.Warn().Msg("forced shutdown after timeout")
	}

	logger.Info().Msg("outreach agent stopped")
}
