package handlers

import (
	"net/http"
	"time"

	"github.com/frostdev-ops/adpilot-backend-go/internal/core/metrics"
	"github.com/frostdev-ops/adpilot-backend-go/pkg/utils"
	"github.com/frostdev-ops/adpilot-backend-go/pkg/version"
	"github.com/gin-gonic/gin"
)

// Health returns component health, engine state, host resources and build information.
// An unhealthy component turns the response into a 503.
func (h *Handlers) Health(c *gin.Context) {
	ctx := c.Request.Context()

	health := gin.H{
		"service":   version.Name,
		"version":   version.GetBuildInfo(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	status := metrics.StatusHealthy
	if h.health != nil {
		report := h.health.Check(ctx)
		status = report.Status
		health["uptime"] = report.Uptime
		health["components"] = report.Components
		health["message"] = report.Message
	}
	health["status"] = status

	if h.engine != nil {
		stats := h.engine.Statistics()
		health["automation"] = gin.H{
			"running":       stats.Running,
			"rules":         stats.TotalRules,
			"enabled_rules": stats.EnabledRules,
			"last_cycle_at": stats.LastCycleAt,
		}
	}
	if h.resources != nil {
		health["resources"] = h.resources.GetResourceStats(ctx)
	}
	if h.hub != nil {
		health["websocket_clients"] = h.hub.GetClientCount()
	}
	if h.alerts != nil {
		health["alerts"] = h.alerts.GetAlertStats()
	}

	if status == metrics.StatusUnhealthy {
		c.JSON(http.StatusServiceUnavailable, utils.Response{
			Success:   false,
			Data:      health,
			Error:     "service unhealthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
		return
	}
	utils.SendSuccess(c, health)
}

// GetWebSocketStats returns hub counters
func (h *Handlers) GetWebSocketStats(c *gin.Context) {
	if h.hub == nil {
		utils.SendError(c, http.StatusServiceUnavailable, "WebSocket hub not available")
		return
	}
	utils.SendSuccess(c, h.hub.GetStats())
}
