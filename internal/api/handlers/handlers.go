package handlers

import (
	"github.com/frostdev-ops/adpilot-backend-go/internal/core/analytics"
	"github.com/frostdev-ops/adpilot-backend-go/internal/core/automation"
	"github.com/frostdev-ops/adpilot-backend-go/internal/core/metrics"
	"github.com/frostdev-ops/adpilot-backend-go/internal/core/monitor"
	"github.com/frostdev-ops/adpilot-backend-go/internal/websocket"
	"github.com/sirupsen/logrus"
)

// Dependencies are the services exposed over HTTP. Collector, Resources, Health and Hub
// may be nil.
type Dependencies struct {
	Engine    *automation.Engine
	Analytics *analytics.Service
	Alerts    *monitor.AlertManager
	Health    *metrics.HealthChecker
	Resources *monitor.ResourceMonitor
	Collector *metrics.Collector
	Hub       *websocket.Hub
	Logger    *logrus.Logger
}

// Handlers holds all HTTP handlers and their dependencies
type Handlers struct {
	engine    *automation.Engine
	analytics *analytics.Service
	alerts    *monitor.AlertManager
	health    *metrics.HealthChecker
	resources *monitor.ResourceMonitor
	collector *metrics.Collector
	hub       *websocket.Hub
	parser    *automation.RuleParser
	log       *logrus.Logger
}

// NewHandlers creates a new handlers instance
func NewHandlers(deps Dependencies) *Handlers {
	logger := deps.Logger
	if logger == nil {
		logger = logrus.New()
	}
	return &Handlers{
		engine:    deps.Engine,
		analytics: deps.Analytics,
		alerts:    deps.Alerts,
		health:    deps.Health,
		resources: deps.Resources,
		collector: deps.Collector,
		hub:       deps.Hub,
		parser:    automation.NewRuleParser(),
		log:       logger,
	}
}
