package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}\n"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Address())
	assert.Equal(t, 15*time.Minute, cfg.Automation.Interval)
	assert.Equal(t, 30*time.Second, cfg.Automation.ActionTimeout)
	assert.Equal(t, 10000, cfg.Automation.HistoryRetention)
	assert.Equal(t, 50, cfg.Automation.HistoryLimit)
	assert.True(t, cfg.AdPlatform.Mock)
	assert.Equal(t, 1.5, cfg.Anomaly.Thresholds.CTRFloor)
	assert.Equal(t, []string{"critical"}, cfg.Anomaly.AlertSeverities)
	assert.Equal(t, 1000, cfg.Notifications.MaxAlerts)
	assert.Equal(t, "adpilot", cfg.Monitoring.MetricsPrefix)
	assert.Equal(t, 2*time.Hour, cfg.Cache.MaxAge)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  mode: production
automation:
  interval: 5m
  rules_file: ./rules.yaml
  derived_metrics:
    cpa: "spend / conversions"
anomaly:
  thresholds:
    ctr_floor: 0.8
insights:
  fatigue_score: 55
ad_platform:
  mock: false
  base_url: https://ads.example.com
  retry:
    max_attempts: 5
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "production", cfg.Server.Mode)
	assert.Equal(t, 5*time.Minute, cfg.Automation.Interval)
	assert.Equal(t, "./rules.yaml", cfg.Automation.RulesFile)
	assert.Equal(t, "spend / conversions", cfg.Automation.DerivedMetrics["cpa"])
	assert.Equal(t, 0.8, cfg.Anomaly.Thresholds.CTRFloor)
	assert.Equal(t, 2.7, cfg.Anomaly.Thresholds.CTRBenchmark)
	assert.Equal(t, 55.0, cfg.Insights.FatigueScore)
	assert.False(t, cfg.AdPlatform.Mock)
	assert.Equal(t, 5, cfg.AdPlatform.Retry.MaxAttempts)
	assert.Equal(t, 2.0, cfg.AdPlatform.Retry.BackoffFactor)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("ADPILOT_SERVER_PORT", "7070")
	t.Setenv("ADPILOT_AUTOMATION_MAX_CONCURRENCY", "3")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(writeConfig(t, "server:\n  port: 9090\n"))
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, 3, cfg.Automation.MaxConcurrency)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"bad port", "server:\n  port: 70000\n", "server.port"},
		{"bad mode", "server:\n  mode: staging\n", "server.mode"},
		{"auth without secret", "auth:\n  enabled: true\n", "auth.jwt_secret"},
		{"short interval", "automation:\n  interval: 100ms\n", "automation.interval"},
		{"retention below limit", "automation:\n  history_retention: 10\n", "automation.history_retention"},
		{"unknown severity", "anomaly:\n  alert_severities: [urgent]\n", "alert_severities"},
		{"real platform without url", "ad_platform:\n  mock: false\n", "ad_platform.base_url"},
		{"oauth without token url", "ad_platform:\n  mock: false\n  base_url: http://x\n  client_id: id\n", "ad_platform.token_url"},
		{"bad sample ratio", "monitoring:\n  tracing:\n    sample_ratio: 2\n", "sample_ratio"},
		{"file logging without path", "logging:\n  output: file\n  file:\n    path: \"\"\n", "logging.file.path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
