package handlers

import (
	"net/http"
	"strings"

	"github.com/frostdev-ops/adpilot-backend-go/internal/core/automation"
	"github.com/frostdev-ops/adpilot-backend-go/pkg/utils"
	"github.com/gin-gonic/gin"
)

// GetRules returns all automation rules
func (h *Handlers) GetRules(c *gin.Context) {
	rules := h.engine.GetRules()
	utils.SendSuccessWithMeta(c, rules, gin.H{"count": len(rules)})
}

// GetRule returns one rule
func (h *Handlers) GetRule(c *gin.Context) {
	rule, err := h.engine.GetRule(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.SendSuccess(c, rule)
}

// ExportRule returns one rule as a YAML document
func (h *Handlers) ExportRule(c *gin.Context) {
	rule, err := h.engine.GetRule(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	data, err := h.parser.SerializeToYAML(rule)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Data(http.StatusOK, "application/yaml", data)
}

// CreateRule adds a rule from a JSON body. Missing ids are generated; rules default
// to enabled.
func (h *Handlers) CreateRule(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		badRequest(c, "Failed to read request body", err)
		return
	}
	rule, err := h.parser.ParseRule(body, automation.FormatJSON)
	if err != nil {
		badRequest(c, "Invalid rule document", err)
		return
	}

	id, err := h.engine.AddRule(rule)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.syncRuleMetrics()

	created, err := h.engine.GetRule(id)
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.SendCreated(c, created)
}

// ImportRules loads a YAML or JSON rule set, continuing past invalid rules
func (h *Handlers) ImportRules(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		badRequest(c, "Failed to read request body", err)
		return
	}
	format := automation.FormatYAML
	if strings.Contains(c.ContentType(), "json") {
		format = automation.FormatJSON
	}

	rules, err := h.parser.ParseRuleSet(body, format)
	if err != nil {
		badRequest(c, "Invalid rule set", err)
		return
	}

	loaded, err := h.engine.LoadRules(rules)
	h.syncRuleMetrics()

	result := gin.H{"loaded": loaded, "total": len(rules)}
	if err != nil {
		result["errors"] = strings.Split(err.Error(), "\n")
	}
	utils.SendSuccess(c, result)
}

// UpdateRule applies a partial update
func (h *Handlers) UpdateRule(c *gin.Context) {
	var patch automation.RulePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, "Invalid rule update", err)
		return
	}

	rule, err := h.engine.UpdateRule(c.Param("id"), patch)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.syncRuleMetrics()
	utils.SendSuccess(c, rule)
}

// DeleteRule removes a rule
func (h *Handlers) DeleteRule(c *gin.Context) {
	id := c.Param("id")
	if err := h.engine.DeleteRule(id); err != nil {
		h.fail(c, err)
		return
	}
	h.syncRuleMetrics()
	utils.SendSuccess(c, gin.H{"id": id, "deleted": true})
}

// EnableRule enables a rule
func (h *Handlers) EnableRule(c *gin.Context) {
	h.setRuleEnabled(c, true)
}

// DisableRule disables a rule
func (h *Handlers) DisableRule(c *gin.Context) {
	h.setRuleEnabled(c, false)
}

func (h *Handlers) setRuleEnabled(c *gin.Context, enabled bool) {
	id := c.Param("id")
	if err := h.engine.SetRuleEnabled(id, enabled); err != nil {
		h.fail(c, err)
		return
	}
	h.syncRuleMetrics()

	rule, err := h.engine.GetRule(id)
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.SendSuccess(c, rule)
}

// GetHistory returns the most recent action attempts, newest first
func (h *Handlers) GetHistory(c *gin.Context) {
	entries := h.engine.QueryHistory(automation.HistoryFilter{
		RuleID:     c.Query("rule_id"),
		CampaignID: c.Query("campaign_id"),
	})
	utils.SendSuccessWithMeta(c, entries, gin.H{"count": len(entries)})
}

// GetAutomationStatus returns engine statistics
func (h *Handlers) GetAutomationStatus(c *gin.Context) {
	utils.SendSuccess(c, h.engine.Statistics())
}

// StartAutomation starts the periodic cycle
func (h *Handlers) StartAutomation(c *gin.Context) {
	h.engine.Start()
	h.log.Info("Automation engine started via API")
	utils.SendSuccess(c, h.engine.Statistics())
}

// StopAutomation stops the periodic cycle
func (h *Handlers) StopAutomation(c *gin.Context) {
	h.engine.Stop()
	h.log.Info("Automation engine stopped via API")
	utils.SendSuccess(c, h.engine.Statistics())
}

// RunAutomation executes one cycle immediately
func (h *Handlers) RunAutomation(c *gin.Context) {
	report, err := h.engine.RunCycle(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.SendSuccess(c, report)
}

func (h *Handlers) syncRuleMetrics() {
	if h.collector == nil {
		return
	}
	stats := h.engine.Statistics()
	h.collector.SetRuleCounts(stats.TotalRules, stats.EnabledRules)
}
