package handlers

import (
	"github.com/frostdev-ops/adpilot-backend-go/internal/core/monitor"
	"github.com/frostdev-ops/adpilot-backend-go/pkg/utils"
	"github.com/gin-gonic/gin"
)

type resolveRequest struct {
	ResolvedBy string `json:"resolved_by"`
}

// GetAlerts lists alerts newest first. Filters: source, severity, campaign_id, active=true.
func (h *Handlers) GetAlerts(c *gin.Context) {
	filter := monitor.AlertFilter{
		Source:     c.Query("source"),
		CampaignID: c.Query("campaign_id"),
		ActiveOnly: c.Query("active") == "true",
	}
	if sev := c.Query("severity"); sev != "" {
		filter.Severity = monitor.ParseSeverity(sev)
	}

	alerts := h.alerts.ListAlerts(filter)
	utils.SendSuccessWithMeta(c, alerts, gin.H{
		"count": len(alerts),
		"stats": h.alerts.GetAlertStats(),
	})
}

// GetAlert returns one alert
func (h *Handlers) GetAlert(c *gin.Context) {
	alert, err := h.alerts.GetAlert(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.SendSuccess(c, alert)
}

// ResolveAlert marks an alert resolved
func (h *Handlers) ResolveAlert(c *gin.Context) {
	var req resolveRequest
	_ = c.ShouldBindJSON(&req)
	if req.ResolvedBy == "" {
		req.ResolvedBy = "api"
		if user, ok := c.Get("subject"); ok {
			if s, ok := user.(string); ok && s != "" {
				req.ResolvedBy = s
			}
		}
	}

	alert, err := h.alerts.ResolveAlertBy(c.Param("id"), req.ResolvedBy)
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.SendSuccess(c, alert)
}
