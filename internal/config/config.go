package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/frostdev-ops/adpilot-backend-go/internal/core/analytics/anomaly"
	"github.com/frostdev-ops/adpilot-backend-go/internal/core/analytics/insights"
	"github.com/frostdev-ops/adpilot-backend-go/internal/core/analytics/prediction"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. ADPILOT_SERVER_PORT
const EnvPrefix = "ADPILOT"

type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Auth          AuthConfig          `mapstructure:"auth"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Automation    AutomationConfig    `mapstructure:"automation"`
	Anomaly       AnomalyConfig       `mapstructure:"anomaly"`
	Insights      insights.Config     `mapstructure:"insights"`
	Prediction    prediction.Config   `mapstructure:"prediction"`
	AdPlatform    AdPlatformConfig    `mapstructure:"ad_platform"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Cache         CacheConfig         `mapstructure:"cache"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Monitoring    MonitoringConfig    `mapstructure:"monitoring"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Host            string        `mapstructure:"host"`
	Mode            string        `mapstructure:"mode"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	RateLimit       float64       `mapstructure:"rate_limit"`
	RateBurst       int           `mapstructure:"rate_burst"`
}

// Address returns host:port for the HTTP listener
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type AuthConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
}

// LoggingConfig controls the process logger
type LoggingConfig struct {
	Level  string        `mapstructure:"level"`
	Format string        `mapstructure:"format"`
	Output string        `mapstructure:"output"`
	File   LogFileConfig `mapstructure:"file"`
}

// LogFileConfig configures rotated file output
type LogFileConfig struct {
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// AutomationConfig contains rule engine settings
type AutomationConfig struct {
	Interval         time.Duration     `mapstructure:"interval"`
	ActionTimeout    time.Duration     `mapstructure:"action_timeout"`
	MaxConcurrency   int               `mapstructure:"max_concurrency"`
	HistoryRetention int               `mapstructure:"history_retention"`
	HistoryLimit     int               `mapstructure:"history_limit"`
	RulesFile        string            `mapstructure:"rules_file"`
	AutoStart        bool              `mapstructure:"auto_start"`
	DerivedMetrics   map[string]string `mapstructure:"derived_metrics"`
}

// AnomalyConfig contains detector thresholds and the background scan
type AnomalyConfig struct {
	Thresholds      anomaly.Thresholds `mapstructure:"thresholds"`
	ScanInterval    time.Duration      `mapstructure:"scan_interval"`
	HistorySize     int                `mapstructure:"history_size"`
	AlertSeverities []string           `mapstructure:"alert_severities"`
}

// AdPlatformConfig selects and configures the advertising platform
type AdPlatformConfig struct {
	Mock         bool          `mapstructure:"mock"`
	BaseURL      string        `mapstructure:"base_url"`
	AccountID    string        `mapstructure:"account_id"`
	ClientID     string        `mapstructure:"client_id"`
	ClientSecret string        `mapstructure:"client_secret"`
	TokenURL     string        `mapstructure:"token_url"`
	Scopes       []string      `mapstructure:"scopes"`
	Timeout      time.Duration `mapstructure:"timeout"`
	RateLimit    float64       `mapstructure:"rate_limit"`
	RateBurst    int           `mapstructure:"rate_burst"`
	PageSize     int           `mapstructure:"page_size"`

	Retry          RetryConfig          `mapstructure:"retry"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

type RetryConfig struct {
	MaxAttempts   int           `mapstructure:"max_attempts"`
	InitialDelay  time.Duration `mapstructure:"initial_delay"`
	MaxDelay      time.Duration `mapstructure:"max_delay"`
	BackoffFactor float64       `mapstructure:"backoff_factor"`
}

type CircuitBreakerConfig struct {
	MaxFailures      int           `mapstructure:"max_failures"`
	ResetTimeout     time.Duration `mapstructure:"reset_timeout"`
	HalfOpenMaxCalls int           `mapstructure:"half_open_max_calls"`
}

type DatabaseConfig struct {
	Path              string `mapstructure:"path"`
	MaxConnections    int    `mapstructure:"max_connections"`
	SnapshotRetention int    `mapstructure:"snapshot_retention"`
}

// CacheConfig enables the SQLite-backed campaign snapshot fallback
type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	MaxAge  time.Duration `mapstructure:"max_age"`
}

type NotificationsConfig struct {
	WebhookURL     string        `mapstructure:"webhook_url"`
	WebhookTimeout time.Duration `mapstructure:"webhook_timeout"`
	MaxAlerts      int           `mapstructure:"max_alerts"`
	Retention      time.Duration `mapstructure:"retention"`
}

type MonitoringConfig struct {
	MetricsEnabled     bool               `mapstructure:"metrics_enabled"`
	MetricsPrefix      string             `mapstructure:"metrics_prefix"`
	ResourceThresholds ResourceThresholds `mapstructure:"resource_thresholds"`
	Tracing            TracingConfig      `mapstructure:"tracing"`
}

type ResourceThresholds struct {
	CPUPercent    float64 `mapstructure:"cpu_percent"`
	MemoryPercent float64 `mapstructure:"memory_percent"`
}

// TracingConfig configures the OTLP trace exporter
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Endpoint    string  `mapstructure:"endpoint"`
	Insecure    bool    `mapstructure:"insecure"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// Load reads configuration from path, or from config.yaml in ./configs or the working
// directory when path is empty. Environment variables override file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unprefixed names commonly set by deployment tooling
	_ = v.BindEnv("server.port", EnvPrefix+"_SERVER_PORT", "PORT")
	_ = v.BindEnv("auth.jwt_secret", EnvPrefix+"_AUTH_JWT_SECRET", "JWT_SECRET")
	_ = v.BindEnv("logging.level", EnvPrefix+"_LOGGING_LEVEL", "LOG_LEVEL")
	_ = v.BindEnv("database.path", EnvPrefix+"_DATABASE_PATH", "DATABASE_PATH")
	_ = v.BindEnv("ad_platform.client_id", EnvPrefix+"_AD_PLATFORM_CLIENT_ID", "AD_PLATFORM_CLIENT_ID")
	_ = v.BindEnv("ad_platform.client_secret", EnvPrefix+"_AD_PLATFORM_CLIENT_SECRET", "AD_PLATFORM_CLIENT_SECRET")
	_ = v.BindEnv("notifications.webhook_url", EnvPrefix+"_NOTIFICATIONS_WEBHOOK_URL", "ALERT_WEBHOOK_URL")
	_ = v.BindEnv("monitoring.tracing.endpoint", EnvPrefix+"_MONITORING_TRACING_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate validates the configuration for completeness and correctness
func (c *Config) Validate() error {
	var errors []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errors = append(errors, "server.port must be between 1 and 65535")
	}
	switch c.Server.Mode {
	case "development", "production", "test":
	default:
		errors = append(errors, "server.mode must be development, production or test")
	}

	if c.Server.RateLimit < 0 || (c.Server.RateLimit > 0 && c.Server.RateBurst <= 0) {
		errors = append(errors, "server.rate_burst must be positive when server.rate_limit is set")
	}

	if c.Auth.Enabled && (c.Auth.JWTSecret == "" || c.Auth.JWTSecret == "change-me") {
		errors = append(errors, "auth.jwt_secret must be set to a secure value when enabled")
	}

	switch c.Logging.Format {
	case "json", "text":
	default:
		errors = append(errors, "logging.format must be json or text")
	}
	switch c.Logging.Output {
	case "stdout", "file", "both":
		if c.Logging.Output != "stdout" && c.Logging.File.Path == "" {
			errors = append(errors, "logging.file.path is required for file output")
		}
	default:
		errors = append(errors, "logging.output must be stdout, file or both")
	}

	if c.Automation.Interval < time.Second {
		errors = append(errors, "automation.interval must be at least 1s")
	}
	if c.Automation.ActionTimeout <= 0 {
		errors = append(errors, "automation.action_timeout must be greater than 0")
	}
	if c.Automation.MaxConcurrency < 0 {
		errors = append(errors, "automation.max_concurrency must be non-negative")
	}
	if c.Automation.HistoryLimit <= 0 {
		errors = append(errors, "automation.history_limit must be greater than 0")
	}
	if c.Automation.HistoryRetention < c.Automation.HistoryLimit {
		errors = append(errors, "automation.history_retention must be at least automation.history_limit")
	}

	if c.Anomaly.ScanInterval != 0 && c.Anomaly.ScanInterval < time.Second {
		errors = append(errors, "anomaly.scan_interval must be 0 or at least 1s")
	}
	for _, sev := range c.Anomaly.AlertSeverities {
		switch anomaly.Severity(sev) {
		case anomaly.SeverityInfo, anomaly.SeverityWarning, anomaly.SeverityCritical:
		default:
			errors = append(errors, fmt.Sprintf("anomaly.alert_severities contains unknown severity %q", sev))
		}
	}

	if !c.AdPlatform.Mock {
		if c.AdPlatform.BaseURL == "" {
			errors = append(errors, "ad_platform.base_url is required unless ad_platform.mock is set")
		}
		if c.AdPlatform.ClientID != "" && c.AdPlatform.TokenURL == "" {
			errors = append(errors, "ad_platform.token_url is required when client_id is set")
		}
	}

	if c.Cache.Enabled && c.Database.Path == "" {
		errors = append(errors, "database.path is required when the cache is enabled")
	}
	if c.Cache.Enabled && c.Cache.MaxAge <= 0 {
		errors = append(errors, "cache.max_age must be greater than 0 when the cache is enabled")
	}

	if c.Monitoring.Tracing.Enabled && c.Monitoring.Tracing.Endpoint == "" {
		errors = append(errors, "monitoring.tracing.endpoint is required when tracing is enabled")
	}
	if r := c.Monitoring.Tracing.SampleRatio; r < 0 || r > 1 {
		errors = append(errors, "monitoring.tracing.sample_ratio must be between 0 and 1")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.mode", "development")
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.rate_limit", 50.0)
	v.SetDefault("server.rate_burst", 100)

	// Auth defaults
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.issuer", "adpilot")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.file.path", "./logs/adpilot.log")
	v.SetDefault("logging.file.max_size_mb", 100)
	v.SetDefault("logging.file.max_backups", 5)
	v.SetDefault("logging.file.max_age_days", 30)
	v.SetDefault("logging.file.compress", true)

	// Automation defaults
	v.SetDefault("automation.interval", "15m")
	v.SetDefault("automation.action_timeout", "30s")
	v.SetDefault("automation.max_concurrency", 8)
	v.SetDefault("automation.history_retention", 10000)
	v.SetDefault("automation.history_limit", 50)
	v.SetDefault("automation.rules_file", "")
	v.SetDefault("automation.auto_start", true)

	// Anomaly defaults
	th := anomaly.DefaultThresholds()
	v.SetDefault("anomaly.thresholds.spend_deviation_pct", th.SpendDeviationPct)
	v.SetDefault("anomaly.thresholds.ctr_floor", th.CTRFloor)
	v.SetDefault("anomaly.thresholds.ctr_benchmark", th.CTRBenchmark)
	v.SetDefault("anomaly.thresholds.conversion_benchmark", th.ConversionBenchmark)
	v.SetDefault("anomaly.thresholds.conversion_deviation_pct", th.ConversionDeviationPct)
	v.SetDefault("anomaly.thresholds.conversion_critical_pct", th.ConversionCriticalPct)
	v.SetDefault("anomaly.thresholds.engagement_baseline", th.EngagementBaseline)
	v.SetDefault("anomaly.thresholds.engagement_shift_points", th.EngagementShiftPoints)
	v.SetDefault("anomaly.scan_interval", "15m")
	v.SetDefault("anomaly.history_size", anomaly.DefaultHistorySize)
	v.SetDefault("anomaly.alert_severities", []string{string(anomaly.SeverityCritical)})

	// Insight defaults
	ic := insights.DefaultConfig()
	v.SetDefault("insights.trend_change_pct", ic.TrendChangePct)
	v.SetDefault("insights.budget_used_pct", ic.BudgetUsedPct)
	v.SetDefault("insights.underpacing_pct", ic.UnderpacingPct)
	v.SetDefault("insights.fatigue_score", ic.FatigueScore)
	v.SetDefault("insights.expansion_ctr", ic.ExpansionCTR)
	v.SetDefault("insights.expansion_conversion", ic.ExpansionConversion)
	v.SetDefault("insights.underperformer_ctr", ic.UnderperformerCTR)

	// Prediction defaults
	pc := prediction.DefaultConfig()
	v.SetDefault("prediction.high_ctr", pc.HighCTR)
	v.SetDefault("prediction.low_ctr", pc.LowCTR)
	v.SetDefault("prediction.raise_factor", pc.RaiseFactor)
	v.SetDefault("prediction.lower_factor", pc.LowerFactor)
	v.SetDefault("prediction.base_confidence", pc.BaseConfidence)

	// Ad platform defaults
	v.SetDefault("ad_platform.mock", true)
	v.SetDefault("ad_platform.timeout", "30s")
	v.SetDefault("ad_platform.rate_limit", 10.0)
	v.SetDefault("ad_platform.rate_burst", 20)
	v.SetDefault("ad_platform.page_size", 100)
	v.SetDefault("ad_platform.retry.max_attempts", 3)
	v.SetDefault("ad_platform.retry.initial_delay", "500ms")
	v.SetDefault("ad_platform.retry.max_delay", "10s")
	v.SetDefault("ad_platform.retry.backoff_factor", 2.0)
	v.SetDefault("ad_platform.circuit_breaker.max_failures", 5)
	v.SetDefault("ad_platform.circuit_breaker.reset_timeout", "1m")
	v.SetDefault("ad_platform.circuit_breaker.half_open_max_calls", 1)

	// Database and cache defaults
	v.SetDefault("database.path", "./data/adpilot.db")
	v.SetDefault("database.max_connections", 1)
	v.SetDefault("database.snapshot_retention", 48)
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.max_age", "2h")

	// Notification defaults
	v.SetDefault("notifications.webhook_url", "")
	v.SetDefault("notifications.webhook_timeout", "10s")
	v.SetDefault("notifications.max_alerts", 1000)
	v.SetDefault("notifications.retention", "24h")

	// Monitoring defaults
	v.SetDefault("monitoring.metrics_enabled", true)
	v.SetDefault("monitoring.metrics_prefix", "adpilot")
	v.SetDefault("monitoring.resource_thresholds.cpu_percent", 90.0)
	v.SetDefault("monitoring.resource_thresholds.memory_percent", 90.0)
	v.SetDefault("monitoring.tracing.enabled", false)
	v.SetDefault("monitoring.tracing.endpoint", "localhost:4317")
	v.SetDefault("monitoring.tracing.insecure", true)
	v.SetDefault("monitoring.tracing.service_name", "adpilot")
	v.SetDefault("monitoring.tracing.sample_ratio", 1.0)
}
