package monitor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/frostdev-ops/adpilot-backend-go/internal/core/analytics/anomaly"
	"github.com/frostdev-ops/adpilot-backend-go/internal/core/automation"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrAlertNotFound is returned when an alert id is unknown
var ErrAlertNotFound = errors.New("alert not found")

// AlertSeverity represents the severity level of an alert
type AlertSeverity string

const (
	AlertSeverityInfo     AlertSeverity = "info"
	AlertSeverityWarning  AlertSeverity = "warning"
	AlertSeverityCritical AlertSeverity = "critical"
)

// ParseSeverity maps free-form severities to a known level, defaulting to warning
func ParseSeverity(s string) AlertSeverity {
	switch AlertSeverity(s) {
	case AlertSeverityInfo, AlertSeverityWarning, AlertSeverityCritical:
		return AlertSeverity(s)
	default:
		return AlertSeverityWarning
	}
}

// Alert sources
const (
	SourceAutomation = "automation"
	SourceAnomaly    = "anomaly_detector"
)

// Alert represents an operator-facing alert
type Alert struct {
	ID         string                 `json:"id"`
	Severity   AlertSeverity          `json:"severity"`
	Source     string                 `json:"source"`
	CampaignID string                 `json:"campaign_id,omitempty"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details"`
	Timestamp  time.Time              `json:"timestamp"`
	Resolved   bool                   `json:"resolved"`
	ResolvedAt *time.Time             `json:"resolved_at,omitempty"`
	ResolvedBy string                 `json:"resolved_by,omitempty"`
	Duration   time.Duration          `json:"duration,omitempty"`
}

// AlertFilter narrows an alert listing
type AlertFilter struct {
	Source     string
	Severity   AlertSeverity
	CampaignID string
	ActiveOnly bool
}

func (f AlertFilter) matches(a *Alert) bool {
	if f.Source != "" && a.Source != f.Source {
		return false
	}
	if f.Severity != "" && a.Severity != f.Severity {
		return false
	}
	if f.CampaignID != "" && a.CampaignID != f.CampaignID {
		return false
	}
	if f.ActiveOnly && a.Resolved {
		return false
	}
	return true
}

// AlertManagerConfig contains configuration for the alert manager
type AlertManagerConfig struct {
	Enabled         bool          `json:"enabled"`
	MaxAlerts       int           `json:"max_alerts"`
	RetentionPeriod time.Duration `json:"retention_period"`
}

// AlertStats summarizes stored alerts
type AlertStats struct {
	Total    int `json:"total_alerts"`
	Active   int `json:"active_alerts"`
	Critical int `json:"critical_alerts"`
	Warning  int `json:"warning_alerts"`
	Info     int `json:"info_alerts"`
}

// AlertManager is the notification sink for rule alerts and critical anomalies. It
// keeps a bounded set of alerts and fans new ones out to registered callbacks.
type AlertManager struct {
	config *AlertManagerConfig
	logger *logrus.Logger
	alerts map[string]*Alert
	mu     sync.RWMutex

	onAlertCreated  []func(Alert)
	onAlertResolved []func(Alert)
}

// NewAlertManager creates a new alert manager
func NewAlertManager(config *AlertManagerConfig, logger *logrus.Logger) *AlertManager {
	if config == nil {
		config = &AlertManagerConfig{
			Enabled:         true,
			MaxAlerts:       1000,
			RetentionPeriod: 24 * time.Hour,
		}
	}
	if config.MaxAlerts <= 0 {
		config.MaxAlerts = 1000
	}
	if logger == nil {
		logger = logrus.New()
	}

	return &AlertManager{
		config: config,
		logger: logger,
		alerts: make(map[string]*Alert),
	}
}

// CreateAlert stores a new alert and notifies callbacks
func (am *AlertManager) CreateAlert(alert Alert) (Alert, error) {
	if !am.config.Enabled {
		return alert, nil
	}

	am.mu.Lock()

	if alert.ID == "" {
		alert.ID = uuid.New().String()
	}
	if alert.Timestamp.IsZero() {
		alert.Timestamp = time.Now()
	}
	if alert.Details == nil {
		alert.Details = make(map[string]interface{})
	}
	if _, exists := am.alerts[alert.ID]; exists {
		am.mu.Unlock()
		return Alert{}, fmt.Errorf("alert with ID %s already exists", alert.ID)
	}

	if len(am.alerts) >= am.config.MaxAlerts {
		am.removeOldestAlert()
	}

	stored := alert
	am.alerts[alert.ID] = &stored
	callbacks := append([]func(Alert){}, am.onAlertCreated...)
	am.mu.Unlock()

	am.logger.WithFields(logrus.Fields{
		"alert_id":    alert.ID,
		"severity":    alert.Severity,
		"source":      alert.Source,
		"campaign_id": alert.CampaignID,
		"message":     alert.Message,
	}).Info("Alert created")

	for _, callback := range callbacks {
		go callback(alert)
	}

	return alert, nil
}

// Notify implements automation.Notifier for send_alert actions
func (am *AlertManager) Notify(ctx context.Context, alert automation.Alert) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	details := make(map[string]interface{}, len(alert.Parameters)+2)
	for k, v := range alert.Parameters {
		details[k] = v
	}
	details["rule_id"] = alert.RuleID
	details["rule_name"] = alert.RuleName

	_, err := am.CreateAlert(Alert{
		Severity:   ParseSeverity(alert.Severity),
		Source:     SourceAutomation,
		CampaignID: alert.CampaignID,
		Message:    alert.Message,
		Details:    details,
	})
	return err
}

// NotifyAnomaly raises an alert for a detected anomaly
func (am *AlertManager) NotifyAnomaly(ctx context.Context, a anomaly.Anomaly) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := am.CreateAlert(Alert{
		Severity:   ParseSeverity(string(a.Severity)),
		Source:     SourceAnomaly,
		CampaignID: a.CampaignID,
		Message:    a.Description,
		Details: map[string]interface{}{
			"anomaly_id":     a.ID,
			"type":           a.Type,
			"metric":         a.Metric,
			"value":          a.Value,
			"expected":       a.Expected,
			"deviation_pct":  a.DeviationPct,
			"recommendation": a.Recommendation,
		},
	})
	return err
}

// ResolveAlert resolves an existing alert
func (am *AlertManager) ResolveAlert(id string) (Alert, error) {
	return am.ResolveAlertBy(id, "system")
}

// ResolveAlertBy resolves an alert with a specific resolver
func (am *AlertManager) ResolveAlertBy(id, resolvedBy string) (Alert, error) {
	am.mu.Lock()

	alert, exists := am.alerts[id]
	if !exists {
		am.mu.Unlock()
		return Alert{}, fmt.Errorf("%w: %s", ErrAlertNotFound, id)
	}
	if alert.Resolved {
		resolved := *alert
		am.mu.Unlock()
		return resolved, nil
	}

	now := time.Now()
	alert.Resolved = true
	alert.ResolvedAt = &now
	alert.ResolvedBy = resolvedBy
	alert.Duration = now.Sub(alert.Timestamp)
	resolved := *alert
	callbacks := append([]func(Alert){}, am.onAlertResolved...)
	am.mu.Unlock()

	am.logger.WithFields(logrus.Fields{
		"alert_id":    id,
		"resolved_by": resolvedBy,
		"duration":    resolved.Duration,
	}).Info("Alert resolved")

	for _, callback := range callbacks {
		go callback(resolved)
	}

	return resolved, nil
}

// GetAlert returns one alert
func (am *AlertManager) GetAlert(id string) (Alert, error) {
	am.mu.RLock()
	defer am.mu.RUnlock()

	alert, exists := am.alerts[id]
	if !exists {
		return Alert{}, fmt.Errorf("%w: %s", ErrAlertNotFound, id)
	}
	return *alert, nil
}

// ListAlerts returns matching alerts, newest first
func (am *AlertManager) ListAlerts(filter AlertFilter) []Alert {
	am.mu.RLock()
	alerts := make([]Alert, 0, len(am.alerts))
	for _, alert := range am.alerts {
		if filter.matches(alert) {
			alerts = append(alerts, *alert)
		}
	}
	am.mu.RUnlock()

	sort.Slice(alerts, func(i, j int) bool {
		return alerts[i].Timestamp.After(alerts[j].Timestamp)
	})
	return alerts
}

// GetActiveAlerts returns all unresolved alerts, newest first
func (am *AlertManager) GetActiveAlerts() []Alert {
	return am.ListAlerts(AlertFilter{ActiveOnly: true})
}

// OnAlertCreated registers a callback for when alerts are created
func (am *AlertManager) OnAlertCreated(callback func(Alert)) {
	am.mu.Lock()
	defer am.mu.Unlock()
	am.onAlertCreated = append(am.onAlertCreated, callback)
}

// OnAlertResolved registers a callback for when alerts are resolved
func (am *AlertManager) OnAlertResolved(callback func(Alert)) {
	am.mu.Lock()
	defer am.mu.Unlock()
	am.onAlertResolved = append(am.onAlertResolved, callback)
}

// GetAlertStats returns statistics about alerts
func (am *AlertManager) GetAlertStats() AlertStats {
	am.mu.RLock()
	defer am.mu.RUnlock()

	stats := AlertStats{Total: len(am.alerts)}
	for _, alert := range am.alerts {
		if !alert.Resolved {
			stats.Active++
		}
		switch alert.Severity {
		case AlertSeverityCritical:
			stats.Critical++
		case AlertSeverityWarning:
			stats.Warning++
		case AlertSeverityInfo:
			stats.Info++
		}
	}
	return stats
}

// removeOldestAlert evicts the oldest resolved alert, or the oldest alert when none
// are resolved. Callers hold the write lock.
func (am *AlertManager) removeOldestAlert() {
	var oldestResolved, oldest *Alert

	for _, alert := range am.alerts {
		if alert.Resolved && (oldestResolved == nil || alert.Timestamp.Before(oldestResolved.Timestamp)) {
			oldestResolved = alert
		}
		if oldest == nil || alert.Timestamp.Before(oldest.Timestamp) {
			oldest = alert
		}
	}

	victim := oldestResolved
	if victim == nil {
		victim = oldest
	}
	if victim != nil {
		delete(am.alerts, victim.ID)
		am.logger.WithField("alert_id", victim.ID).Debug("Removed oldest alert")
	}
}

// CleanupOldAlerts removes resolved alerts older than the retention period
func (am *AlertManager) CleanupOldAlerts() int {
	am.mu.Lock()
	defer am.mu.Unlock()

	cutoff := time.Now().Add(-am.config.RetentionPeriod)
	removed := 0
	for id, alert := range am.alerts {
		if alert.Resolved && alert.Timestamp.Before(cutoff) {
			delete(am.alerts, id)
			removed++
		}
	}
	if removed > 0 {
		am.logger.WithField("removed", removed).Debug("Cleaned up old alerts")
	}
	return removed
}

// RunCleanup periodically removes old resolved alerts until ctx is done
func (am *AlertManager) RunCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			am.CleanupOldAlerts()
		}
	}
}
