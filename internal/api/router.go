package api

import (
	"net/http"

	"github.com/frostdev-ops/adpilot-backend-go/internal/api/handlers"
	"github.com/frostdev-ops/adpilot-backend-go/internal/api/middleware"
	"github.com/frostdev-ops/adpilot-backend-go/internal/config"
	"github.com/frostdev-ops/adpilot-backend-go/internal/core/metrics"
	"github.com/frostdev-ops/adpilot-backend-go/internal/websocket"
	"github.com/frostdev-ops/adpilot-backend-go/pkg/utils"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Options wires the router. RequestLogger, Collector, Hub and RateLimiter may be nil.
type Options struct {
	Config        *config.Config
	Handlers      *handlers.Handlers
	Logger        *logrus.Logger
	RequestLogger middleware.RequestLogger
	Collector     *metrics.Collector
	Hub           *websocket.Hub
	RateLimiter   *middleware.RateLimiter
}

// NewRouter creates and configures the main HTTP router
func NewRouter(opts Options) *gin.Engine {
	cfg := opts.Config
	switch cfg.Server.Mode {
	case "production":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(middleware.ErrorHandlingMiddleware(opts.Logger))
	if cfg.Monitoring.Tracing.Enabled {
		router.Use(otelgin.Middleware(cfg.Monitoring.Tracing.ServiceName))
	}
	if opts.RequestLogger != nil {
		router.Use(middleware.LoggingMiddleware(opts.RequestLogger))
	}
	if opts.Collector != nil {
		router.Use(middleware.MetricsMiddleware(opts.Collector))
	}
	router.Use(middleware.CORSMiddleware(cfg.Server.AllowedOrigins))
	if opts.RateLimiter != nil {
		router.Use(opts.RateLimiter.RateLimitMiddleware())
	}

	h := opts.Handlers

	// Public routes
	router.GET("/health", h.Health)
	if opts.Collector != nil {
		router.GET("/metrics", gin.WrapH(opts.Collector.Handler()))
	}
	if opts.Hub != nil {
		router.GET("/ws", websocket.HandleWebSocketGin(opts.Hub, cfg.Server.AllowedOrigins))
	}

	api := router.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(cfg.Auth))
	{
		rules := api.Group("/rules")
		{
			rules.GET("", h.GetRules)
			rules.POST("", h.CreateRule)
			rules.POST("/import", h.ImportRules)
			rules.GET("/:id", h.GetRule)
			rules.GET("/:id/export", h.ExportRule)
			rules.PATCH("/:id", h.UpdateRule)
			rules.DELETE("/:id", h.DeleteRule)
			rules.POST("/:id/enable", h.EnableRule)
			rules.POST("/:id/disable", h.DisableRule)
		}

		automation := api.Group("/automation")
		{
			automation.GET("/history", h.GetHistory)
			automation.GET("/status", h.GetAutomationStatus)
			automation.POST("/start", h.StartAutomation)
			automation.POST("/stop", h.StopAutomation)
			automation.POST("/run", h.RunAutomation)
		}

		api.GET("/campaigns", h.GetCampaigns)
		api.POST("/insights", h.GenerateInsights)

		anomalies := api.Group("/anomalies")
		{
			anomalies.POST("", h.DetectAnomalies)
			anomalies.GET("/history", h.GetAnomalyHistory)
		}

		predictions := api.Group("/predictions")
		{
			predictions.POST("/bid", h.PredictBid)
			predictions.POST("/performance", h.PredictPerformance)
		}

		alerts := api.Group("/alerts")
		{
			alerts.GET("", h.GetAlerts)
			alerts.GET("/:id", h.GetAlert)
			alerts.POST("/:id/resolve", h.ResolveAlert)
		}

		api.GET("/websocket/stats", h.GetWebSocketStats)
	}

	router.NoRoute(func(c *gin.Context) {
		utils.SendError(c, http.StatusNotFound, "Endpoint not found")
	})

	return router
}
