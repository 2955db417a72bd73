package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getMetricsBody(t *testing.T, m *Metrics) string {
	t.Helper()
	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestMetrics_New(t *testing.T) {
	m := New()
	assert.NotNil(t, m.ActivitiesTotal)
	assert.NotNil(t, m.ActivitiesDenied)
	assert.NotNil(t, m.FollowUpsDue)
	assert.NotNil(t, m.FollowUpsSent)
	assert.NotNil(t, m.MeetingsSurfaced)
	assert.NotNil(t, m.ErrorsTotal)
}

func TestMetrics_RecordActivity(t *testing.T) {
	m := New()
	m.RecordActivity("message")
	m.RecordActivity("message")
	m.RecordActivity("invitation")

	body := getMetricsBody(t, m)
	assert.Contains(t, body, `outreach_activities_total{type="message"} 2`)
	assert.Contains(t, body, `outreach_activities_total{type="invitation"} 1`)
}

func TestMetrics_RecordDenied(t *testing.T) {
	m := New()
	m.RecordDenied("message", "daily limit reached (40/40)")

	body := getMetricsBody(t, m)
	assert.Contains(t, body, `outreach_activities_denied_total`)
	assert.Contains(t, body, `type="message"`)
}

func TestMetrics_RecordFollowUpSent(t *testing.T) {
	m := New()
	m.RecordFollowUpSent("second")

	body := getMetricsBody(t, m)
	assert.Contains(t, body, `outreach_followups_sent_total{stage="second"} 1`)
}

func TestMetrics_ObserveCycle(t *testing.T) {
	m := New()
	m.ObserveCycle("meetings", 0.25)

	body := getMetricsBody(t, m)
	assert.Contains(t, body, "outreach_cycle_duration_seconds")
}

func TestMetrics_RecordError(t *testing.T) {
	m := New()
	m.RecordError("engine", "calendar_fetch")

	body := getMetricsBody(t, m)
	assert.Contains(t, body, `outreach_errors_total{module="engine",type="calendar_fetch"} 1`)
}
