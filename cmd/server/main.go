package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/frostdev-ops/adpilot-backend-go/internal/adapters/adplatform"
	"github.com/frostdev-ops/adpilot-backend-go/internal/api"
	"github.com/frostdev-ops/adpilot-backend-go/internal/api/handlers"
	"github.com/frostdev-ops/adpilot-backend-go/internal/api/middleware"
	"github.com/frostdev-ops/adpilot-backend-go/internal/config"
	"github.com/frostdev-ops/adpilot-backend-go/internal/core/analytics"
	"github.com/frostdev-ops/adpilot-backend-go/internal/core/analytics/anomaly"
	"github.com/frostdev-ops/adpilot-backend-go/internal/core/automation"
	"github.com/frostdev-ops/adpilot-backend-go/internal/core/campaigns"
	"github.com/frostdev-ops/adpilot-backend-go/internal/core/metrics"
	"github.com/frostdev-ops/adpilot-backend-go/internal/core/monitor"
	"github.com/frostdev-ops/adpilot-backend-go/internal/database"
	"github.com/frostdev-ops/adpilot-backend-go/internal/observability"
	"github.com/frostdev-ops/adpilot-backend-go/internal/websocket"
	"github.com/frostdev-ops/adpilot-backend-go/pkg/errors"
	"github.com/frostdev-ops/adpilot-backend-go/pkg/logger"
	"github.com/frostdev-ops/adpilot-backend-go/pkg/version"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

// eventFanout forwards engine and analytics events to websocket subscribers and counts
// detected anomalies
type eventFanout struct {
	hub       *websocket.Hub
	collector *metrics.Collector
}

func (f eventFanout) PublishEvent(eventType string, data interface{}) {
	f.hub.PublishEvent(eventType, data)
	if eventType == analytics.EventAnomalyDetected {
		if a, ok := data.(anomaly.Anomaly); ok {
			f.collector.RecordAnomaly(string(a.Type), string(a.Severity))
		}
	}
}

func main() {
	configPath := flag.String("config", "", "path to the configuration file")
	showVersion := flag.Bool("version", false, "print version information and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	batchLog, err := logger.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	log := batchLog.Logger
	defer batchLog.Close()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.Monitoring.Tracing)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize tracing")
	}

	collector := metrics.NewCollector(metrics.Config{
		Enabled: cfg.Monitoring.MetricsEnabled,
		Prefix:  cfg.Monitoring.MetricsPrefix,
	})

	// Ad platform
	platform, platformHealth, err := newPlatform(cfg.AdPlatform, collector, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize ad platform client")
	}

	// Snapshot cache
	var (
		source campaigns.MetricsSource = platform
		db     *sqlx.DB
	)
	if cfg.Cache.Enabled {
		db, err = database.Open(cfg.Database)
		if err != nil {
			log.WithError(err).Fatal("Failed to open database")
		}
		defer db.Close()

		if err := database.Migrate(db); err != nil {
			log.WithError(err).Fatal("Failed to run migrations")
		}
		snapshots := database.NewSnapshotRepository(db, cfg.Database.SnapshotRetention)
		source = campaigns.NewCachedSource(platform, snapshots, cfg.Cache.MaxAge, log)
		log.WithField("path", cfg.Database.Path).Info("Campaign snapshot cache enabled")
	}

	// Alerts
	alerts := monitor.NewAlertManager(&monitor.AlertManagerConfig{
		Enabled:         true,
		MaxAlerts:       cfg.Notifications.MaxAlerts,
		RetentionPeriod: cfg.Notifications.Retention,
	}, log)
	alerts.OnAlertCreated(func(alert monitor.Alert) {
		collector.RecordAlert(string(alert.Severity), alert.Source)
	})
	if cfg.Notifications.WebhookURL != "" {
		monitor.NewWebhookForwarder(cfg.Notifications.WebhookURL, cfg.Notifications.WebhookTimeout, log).Attach(alerts)
		log.Info("Alert webhook forwarding enabled")
	}
	go alerts.RunCleanup(ctx, time.Hour)

	// Create WebSocket hub
	wsHub := websocket.NewHub(log)
	wsHub.OnConnectionChange(collector.RecordWebSocketConnection)
	go wsHub.Run(ctx)
	publisher := eventFanout{hub: wsHub, collector: collector}

	// Automation engine
	derived, err := automation.NewDerivedMetrics(cfg.Automation.DerivedMetrics)
	if err != nil {
		log.WithError(err).Fatal("Invalid derived metric definitions")
	}
	engine, err := automation.NewEngine(automation.EngineConfig{
		Interval:         cfg.Automation.Interval,
		ActionTimeout:    cfg.Automation.ActionTimeout,
		MaxConcurrency:   cfg.Automation.MaxConcurrency,
		HistoryRetention: cfg.Automation.HistoryRetention,
		HistoryLimit:     cfg.Automation.HistoryLimit,
	}, automation.Dependencies{
		Source:    source,
		Platform:  platform,
		Notifier:  alerts,
		Derived:   derived,
		Publisher: publisher,
		Recorder:  collector,
		Logger:    log,
	})
	if err != nil {
		log.WithError(err).Fatal("Failed to create automation engine")
	}
	if cfg.Automation.RulesFile != "" {
		loadRulesFile(engine, cfg.Automation.RulesFile, log)
	}
	stats := engine.Statistics()
	collector.SetRuleCounts(stats.TotalRules, stats.EnabledRules)

	// Analytics
	analyticsCfg := analytics.Config{
		Thresholds:  cfg.Anomaly.Thresholds,
		HistorySize: cfg.Anomaly.HistorySize,
		Insights:    cfg.Insights,
		Prediction:  cfg.Prediction,
	}
	for _, s := range cfg.Anomaly.AlertSeverities {
		analyticsCfg.AlertSeverities = append(analyticsCfg.AlertSeverities, anomaly.Severity(s))
	}
	analyticsSvc := analytics.NewService(analyticsCfg, source, alerts, publisher, log)

	var scanner *automation.Scheduler
	if cfg.Anomaly.ScanInterval > 0 {
		scanner, err = automation.NewScheduler("anomaly-scan", cfg.Anomaly.ScanInterval, analyticsSvc.ScanJob, log)
		if err != nil {
			log.WithError(err).Fatal("Failed to create anomaly scanner")
		}
		scanner.Start()
	}

	// Health
	resources := monitor.NewResourceMonitor(log)
	health := metrics.NewHealthChecker(5 * time.Second)
	health.Register("ad_platform", platformHealth)
	health.Register("automation", func(context.Context) metrics.HealthStatus {
		s := engine.Statistics()
		status := metrics.StatusHealthy
		msg := "running"
		if !s.Running {
			status, msg = metrics.StatusDegraded, "automation stopped"
		}
		return metrics.NewHealthStatus(status, msg).
			WithDetail("rules", s.TotalRules).
			WithDetail("failed_cycles", s.FailedCycles)
	})
	health.Register("resources", func(ctx context.Context) metrics.HealthStatus {
		thresholds := monitor.ResourceThresholds{
			CPUPercent:    cfg.Monitoring.ResourceThresholds.CPUPercent,
			MemoryPercent: cfg.Monitoring.ResourceThresholds.MemoryPercent,
		}
		r := resources.Check(ctx, thresholds, alerts)
		if (thresholds.CPUPercent > 0 && r.CPUPercent > thresholds.CPUPercent) ||
			(thresholds.MemoryPercent > 0 && r.MemoryPercent > thresholds.MemoryPercent) {
			return metrics.NewHealthStatus(metrics.StatusDegraded, "resource usage above threshold")
		}
		return metrics.NewHealthStatus(metrics.StatusHealthy, "ok")
	})
	if db != nil {
		health.Register("database", func(ctx context.Context) metrics.HealthStatus {
			if err := db.PingContext(ctx); err != nil {
				return metrics.NewHealthStatus(metrics.StatusUnhealthy, err.Error())
			}
			return metrics.NewHealthStatus(metrics.StatusHealthy, "ok")
		})
	}

	var limiter *middleware.RateLimiter
	if cfg.Server.RateLimit > 0 {
		limiter = middleware.NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst)
		go limiter.RunCleanup(ctx)
	}

	// Initialize router
	router := api.NewRouter(api.Options{
		Config: cfg,
		Handlers: handlers.NewHandlers(handlers.Dependencies{
			Engine:    engine,
			Analytics: analyticsSvc,
			Alerts:    alerts,
			Health:    health,
			Resources: resources,
			Collector: collector,
			Hub:       wsHub,
			Logger:    log,
		}),
		Logger:        log,
		RequestLogger: batchLog,
		Collector:     collector,
		Hub:           wsHub,
		RateLimiter:   limiter,
	})

	if cfg.Automation.AutoStart {
		engine.Start()
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server
	go func() {
		log.WithFields(logrus.Fields{
			"address": srv.Addr,
			"version": version.GetVersion(),
			"mock":    cfg.AdPlatform.Mock,
		}).Info("Starting AdPilot backend")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("Server forced to shutdown")
	}

	engine.Stop()
	if scanner != nil {
		scanner.Stop()
	}
	stop()

	if err := shutdownTracing(shutdownCtx); err != nil {
		log.WithError(err).Warn("Failed to flush traces")
	}

	log.Info("Server exited")
}

// newPlatform builds the configured ad platform and a health check for it
func newPlatform(cfg config.AdPlatformConfig, collector *metrics.Collector, log *logrus.Logger) (campaigns.AdPlatform, metrics.CheckFunc, error) {
	if cfg.Mock {
		log.Warn("Using the in-memory mock ad platform with demo campaigns")
		mock := adplatform.NewMockPlatform(adplatform.DemoCampaigns(time.Now())...)
		return mock, func(context.Context) metrics.HealthStatus {
			return metrics.NewHealthStatus(metrics.StatusHealthy, "mock platform")
		}, nil
	}

	client, err := adplatform.NewClient(adplatform.Config{
		BaseURL:      cfg.BaseURL,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		Scopes:       cfg.Scopes,
		AccountID:    cfg.AccountID,
		Timeout:      cfg.Timeout,
		RateLimit:    cfg.RateLimit,
		RateBurst:    cfg.RateBurst,
		PageSize:     cfg.PageSize,
		Retry: errors.RetryPolicy{
			MaxAttempts:   cfg.Retry.MaxAttempts,
			InitialDelay:  cfg.Retry.InitialDelay,
			MaxDelay:      cfg.Retry.MaxDelay,
			BackoffFactor: cfg.Retry.BackoffFactor,
			Jitter:        true,
		},
		CircuitBreaker: errors.CircuitBreakerConfig{
			Name:             "ad_platform",
			MaxFailures:      cfg.CircuitBreaker.MaxFailures,
			ResetTimeout:     cfg.CircuitBreaker.ResetTimeout,
			HalfOpenMaxCalls: cfg.CircuitBreaker.HalfOpenMaxCalls,
		},
	}, collector, log)
	if err != nil {
		return nil, nil, err
	}

	return client, func(context.Context) metrics.HealthStatus {
		breaker := client.BreakerMetrics()
		switch breaker["state"] {
		case errors.StateOpen.String():
			return metrics.NewHealthStatus(metrics.StatusUnhealthy, "circuit breaker open").WithDetail("breaker", breaker)
		case errors.StateHalfOpen.String():
			return metrics.NewHealthStatus(metrics.StatusDegraded, "circuit breaker probing").WithDetail("breaker", breaker)
		}
		return metrics.NewHealthStatus(metrics.StatusHealthy, "ok").WithDetail("breaker", breaker)
	}, nil
}

func loadRulesFile(engine *automation.Engine, path string, log *logrus.Logger) {
	data, err := os.ReadFile(path)
	if err != nil {
		log.WithError(err).WithField("path", path).Warn("Failed to read rules file")
		return
	}

	rules, err := automation.NewRuleParser().ParseRuleSet(data, automation.FormatFromPath(path))
	if err != nil {
		log.WithError(err).WithField("path", path).Error("Failed to parse rules file")
		return
	}

	loaded, err := engine.LoadRules(rules)
	fields := logrus.Fields{"path": path, "loaded": loaded, "total": len(rules)}
	if err != nil {
		log.WithFields(fields).WithError(err).Warn("Some rules could not be loaded")
		return
	}
	log.WithFields(fields).Info("Automation rules loaded")
}
