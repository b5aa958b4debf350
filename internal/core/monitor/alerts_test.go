package monitor

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/frostdev-ops/adpilot-backend-go/internal/core/analytics/anomaly"
	"github.com/frostdev-ops/adpilot-backend-go/internal/core/automation"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestAlertManager_NotifyFromRule(t *testing.T) {
	am := NewAlertManager(nil, testLogger())

	err := am.Notify(context.Background(), automation.Alert{
		RuleID:     "r1",
		RuleName:   "Low CTR",
		CampaignID: "c1",
		Severity:   "critical",
		Message:    "CTR below floor",
		Parameters: map[string]interface{}{"channel": "ops"},
	})
	require.NoError(t, err)

	alerts := am.GetActiveAlerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertSeverityCritical, alerts[0].Severity)
	assert.Equal(t, SourceAutomation, alerts[0].Source)
	assert.Equal(t, "c1", alerts[0].CampaignID)
	assert.Equal(t, "r1", alerts[0].Details["rule_id"])
	assert.Equal(t, "ops", alerts[0].Details["channel"])
	assert.NotEmpty(t, alerts[0].ID)
}

func TestAlertManager_NotifyAnomaly(t *testing.T) {
	am := NewAlertManager(nil, testLogger())

	err := am.NotifyAnomaly(context.Background(), anomaly.Anomaly{
		ID:          "a1",
		Type:        anomaly.TypeCTRDrop,
		Severity:    anomaly.SeverityCritical,
		CampaignID:  "c2",
		Description: "CTR dropped",
	})
	require.NoError(t, err)

	alerts := am.ListAlerts(AlertFilter{Source: SourceAnomaly})
	require.Len(t, alerts, 1)
	assert.Equal(t, "CTR dropped", alerts[0].Message)
	assert.Equal(t, "a1", alerts[0].Details["anomaly_id"])
}

func TestAlertManager_CanceledContext(t *testing.T) {
	am := NewAlertManager(nil, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, am.Notify(ctx, automation.Alert{Message: "x"}))
	assert.Empty(t, am.GetActiveAlerts())
}

func TestAlertManager_ResolveAndStats(t *testing.T) {
	am := NewAlertManager(nil, testLogger())

	a, err := am.CreateAlert(Alert{Severity: AlertSeverityWarning, Source: "test", Message: "one"})
	require.NoError(t, err)
	_, err = am.CreateAlert(Alert{Severity: AlertSeverityCritical, Source: "test", Message: "two"})
	require.NoError(t, err)

	resolved, err := am.ResolveAlertBy(a.ID, "operator")
	require.NoError(t, err)
	assert.True(t, resolved.Resolved)
	assert.Equal(t, "operator", resolved.ResolvedBy)
	require.NotNil(t, resolved.ResolvedAt)

	stats := am.GetAlertStats()
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Active)
	assert.Equal(t, 1, stats.Critical)
	assert.Equal(t, 1, stats.Warning)

	_, err = am.ResolveAlert("missing")
	assert.ErrorIs(t, err, ErrAlertNotFound)
}

func TestAlertManager_EvictsOldestResolvedFirst(t *testing.T) {
	am := NewAlertManager(&AlertManagerConfig{Enabled: true, MaxAlerts: 2, RetentionPeriod: time.Hour}, testLogger())
	base := time.Now().Add(-time.Hour)

	first, err := am.CreateAlert(Alert{Message: "first", Timestamp: base})
	require.NoError(t, err)
	second, err := am.CreateAlert(Alert{Message: "second", Timestamp: base.Add(time.Minute)})
	require.NoError(t, err)
	_, err = am.ResolveAlert(second.ID)
	require.NoError(t, err)

	_, err = am.CreateAlert(Alert{Message: "third", Timestamp: base.Add(2 * time.Minute)})
	require.NoError(t, err)

	_, err = am.GetAlert(second.ID)
	assert.ErrorIs(t, err, ErrAlertNotFound)
	_, err = am.GetAlert(first.ID)
	assert.NoError(t, err)

	all := am.ListAlerts(AlertFilter{})
	require.Len(t, all, 2)
	assert.Equal(t, "third", all[0].Message)
}

func TestAlertManager_CleanupOldAlerts(t *testing.T) {
	am := NewAlertManager(&AlertManagerConfig{Enabled: true, MaxAlerts: 10, RetentionPeriod: time.Hour}, testLogger())

	old, err := am.CreateAlert(Alert{Message: "old", Timestamp: time.Now().Add(-2 * time.Hour)})
	require.NoError(t, err)
	_, err = am.CreateAlert(Alert{Message: "old but active", Timestamp: time.Now().Add(-2 * time.Hour)})
	require.NoError(t, err)
	_, err = am.ResolveAlert(old.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, am.CleanupOldAlerts())
	assert.Len(t, am.ListAlerts(AlertFilter{}), 1)
}

func TestAlertManager_DisabledDropsAlerts(t *testing.T) {
	am := NewAlertManager(&AlertManagerConfig{Enabled: false}, testLogger())
	_, err := am.CreateAlert(Alert{Message: "ignored"})
	require.NoError(t, err)
	assert.Empty(t, am.ListAlerts(AlertFilter{}))
}

func TestWebhookForwarder_ForwardsCreatedAlerts(t *testing.T) {
	received := make(chan Alert, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var alert Alert
		if err := json.NewDecoder(r.Body).Decode(&alert); err == nil {
			received <- alert
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	am := NewAlertManager(nil, testLogger())
	NewWebhookForwarder(server.URL, time.Second, testLogger()).Attach(am)

	_, err := am.CreateAlert(Alert{Severity: AlertSeverityCritical, Message: "forward me"})
	require.NoError(t, err)

	select {
	case alert := <-received:
		assert.Equal(t, "forward me", alert.Message)
	case <-time.After(2 * time.Second):
		t.Fatal("webhook was not called")
	}
}

func TestWebhookForwarder_Non2xxIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	err := NewWebhookForwarder(server.URL, time.Second, testLogger()).Send(context.Background(), Alert{Message: "x"})
	assert.Error(t, err)
}

func TestResourceMonitor_CheckRaisesAlerts(t *testing.T) {
	am := NewAlertManager(nil, testLogger())
	rm := NewResourceMonitor(testLogger())

	stats := rm.Check(context.Background(), ResourceThresholds{MemoryPercent: 0.0001}, am)
	require.NotNil(t, stats)
	assert.Positive(t, stats.Runtime.Goroutines)

	if stats.MemoryPercent > 0.0001 {
		alerts := am.ListAlerts(AlertFilter{Source: SourceResources})
		require.Len(t, alerts, 1)
		assert.Equal(t, "memory", alerts[0].Details["metric"])
	}
}
