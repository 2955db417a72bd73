// Package metrics provides Prometheus metrics for the outreach agent.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the agent.
type Metrics struct {
	ActivitiesTotal   *prometheus.CounterVec
	ActivitiesDenied  *prometheus.CounterVec
	FollowUpsDue      prometheus.Gauge
	FollowUpsSent     *prometheus.CounterVec
	MeetingsSurfaced  prometheus.Counter
	MeetingsMatched   prometheus.Counter
	ResponsesDetected prometheus.Counter
	CycleDuration     *prometheus.HistogramVec
	ErrorsTotal       *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates and registers all metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		ActivitiesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "outreach_activities_total",
				Help: "Activities recorded against the ledger by type.",
			},
			[]string{"type"},
		),
		ActivitiesDenied: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "outreach_activities_denied_total",
				Help: "Activities denied by the governor, by type and reason.",
			},
			[]string{"type", "reason"},
		),
		FollowUpsDue: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "outreach_followups_due",
				Help: "Follow-ups due at the last cadence cycle.",
			},
		),
		FollowUpsSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "outreach_followups_sent_total",
				Help: "Follow-up emails sent by cadence stage.",
			},
			[]string{"stage"},
		),
		MeetingsSurfaced: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "outreach_meetings_surfaced_total",
				Help: "Ended meetings surfaced to the approval channel.",
			},
		),
		MeetingsMatched: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "outreach_meetings_matched_total",
				Help: "Meeting notes matched to a calendar meeting.",
			},
		),
		ResponsesDetected: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "outreach_responses_detected_total",
				Help: "Lead replies detected in email threads.",
			},
		),
		CycleDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "outreach_cycle_duration_seconds",
				Help:    "Background cycle duration by task.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"task"},
		),
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "outreach_errors_total",
				Help: "Total errors by module and type.",
			},
			[]string{"module", "type"},
		),
		registry: reg,
	}

	reg.MustRegister(m.ActivitiesTotal)
	reg.MustRegister(m.ActivitiesDenied)
	reg.MustRegister(m.FollowUpsDue)
	reg.MustRegister(m.FollowUpsSent)
	reg.MustRegister(m.MeetingsSurfaced)
	reg.MustRegister(m.MeetingsMatched)
	reg.MustRegister(m.ResponsesDetected)
	reg.MustRegister(m.CycleDuration)
	reg.MustRegister(m.ErrorsTotal)

	return m
}

// Handler returns an http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordActivity increments the recorded-activity counter.
func (m *Metrics) RecordActivity(activityType string) {
	m.ActivitiesTotal.WithLabelValues(activityType).Inc()
}

// RecordDenied increments the denied-activity counter.
func (m *Metrics) RecordDenied(activityType, reason string) {
	m.ActivitiesDenied.WithLabelValues(activityType, reason).Inc()
}

// RecordFollowUpSent increments the sent counter for a stage.
func (m *Metrics) RecordFollowUpSent(stage string) {
	m.FollowUpsSent.WithLabelValues(stage).Inc()
}

// RecordError increments the error counter.
func (m *Metrics) RecordError(module, errType string) {
	m.ErrorsTotal.WithLabelValues(module, errType).Inc()
}

// ObserveCycle records one background cycle duration.
func (m *Metrics) ObserveCycle(task string, seconds float64) {
	m.CycleDuration.WithLabelValues(task).Observe(seconds)
}
