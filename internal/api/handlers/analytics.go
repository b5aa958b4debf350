package handlers

import (
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/frostdev-ops/adpilot-backend-go/internal/core/analytics/prediction"
	"github.com/frostdev-ops/adpilot-backend-go/internal/core/campaigns"
	"github.com/frostdev-ops/adpilot-backend-go/pkg/errors"
	"github.com/frostdev-ops/adpilot-backend-go/pkg/utils"
	"github.com/gin-gonic/gin"
)

const defaultAnomalyHistoryLimit = 50

// campaignsRequest carries an optional campaign set; an empty body uses the current snapshot
type campaignsRequest struct {
	Campaigns []campaigns.Campaign `json:"campaigns"`
}

// predictionRequest identifies the campaign to predict for, either inline or by id
type predictionRequest struct {
	CampaignID string              `json:"campaign_id"`
	Campaign   *campaigns.Campaign `json:"campaign"`
}

func (h *Handlers) snapshot(c *gin.Context) ([]campaigns.Campaign, error) {
	list, err := h.analytics.Campaigns(c.Request.Context())
	if err != nil {
		if stderrors.Is(err, errors.ErrCircuitOpen) {
			return nil, err
		}
		return nil, errors.Wrap(http.StatusBadGateway, "Failed to fetch campaigns", err)
	}
	return list, nil
}

// bindCampaigns reads the optional campaign set, falling back to the current snapshot
func (h *Handlers) bindCampaigns(c *gin.Context) ([]campaigns.Campaign, bool) {
	var req campaignsRequest
	if err := c.ShouldBindJSON(&req); err != nil && !stderrors.Is(err, io.EOF) {
		badRequest(c, "Invalid campaigns payload", err)
		return nil, false
	}
	if len(req.Campaigns) > 0 {
		return req.Campaigns, true
	}

	list, err := h.snapshot(c)
	if err != nil {
		h.fail(c, err)
		return nil, false
	}
	return list, true
}

// bindCampaign resolves the prediction target
func (h *Handlers) bindCampaign(c *gin.Context) (campaigns.Campaign, bool) {
	var req predictionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid prediction request", err)
		return campaigns.Campaign{}, false
	}
	if req.Campaign != nil {
		return *req.Campaign, true
	}
	if req.CampaignID == "" {
		badRequest(c, "campaign or campaign_id is required", nil)
		return campaigns.Campaign{}, false
	}

	list, err := h.snapshot(c)
	if err != nil {
		h.fail(c, err)
		return campaigns.Campaign{}, false
	}
	found, ok := campaigns.Index(list)[req.CampaignID]
	if !ok {
		h.fail(c, errors.New(http.StatusNotFound, fmt.Sprintf("Campaign %s not found", req.CampaignID)))
		return campaigns.Campaign{}, false
	}
	return found, true
}

// GetCampaigns returns the current campaign snapshot
func (h *Handlers) GetCampaigns(c *gin.Context) {
	list, err := h.snapshot(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.SendSuccessWithMeta(c, list, gin.H{"count": len(list)})
}

// GenerateInsights returns prioritized insights
func (h *Handlers) GenerateInsights(c *gin.Context) {
	list, ok := h.bindCampaigns(c)
	if !ok {
		return
	}
	result := h.analytics.GenerateInsights(list)
	utils.SendSuccessWithMeta(c, result, gin.H{"count": len(result), "campaigns": len(list)})
}

// DetectAnomalies runs a detection pass and records the results
func (h *Handlers) DetectAnomalies(c *gin.Context) {
	list, ok := h.bindCampaigns(c)
	if !ok {
		return
	}
	found := h.analytics.DetectAnomalies(list)
	utils.SendSuccessWithMeta(c, found, gin.H{"count": len(found), "campaigns": len(list)})
}

// GetAnomalyHistory returns recorded anomalies, newest first, with a summary
func (h *Handlers) GetAnomalyHistory(c *gin.Context) {
	limit := defaultAnomalyHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			badRequest(c, "limit must be a positive integer", nil)
			return
		}
		limit = n
	}

	history := h.analytics.AnomalyHistory(c.Query("campaign_id"), limit)
	utils.SendSuccessWithMeta(c, history, gin.H{
		"count":   len(history),
		"summary": h.analytics.AnomalySummary(),
	})
}

// PredictBid recommends a bid for one campaign
func (h *Handlers) PredictBid(c *gin.Context) {
	campaign, ok := h.bindCampaign(c)
	if !ok {
		return
	}
	utils.SendSuccess(c, h.analytics.PredictBid(campaign))
}

// PredictPerformance forecasts one campaign over ?days=N (default 7)
func (h *Handlers) PredictPerformance(c *gin.Context) {
	days, err := strconv.Atoi(c.DefaultQuery("days", "7"))
	if err != nil || days < 1 || days > prediction.MaxForecastDays {
		badRequest(c, fmt.Sprintf("days must be an integer between 1 and %d", prediction.MaxForecastDays), nil)
		return
	}

	campaign, ok := h.bindCampaign(c)
	if !ok {
		return
	}
	forecast, err := h.analytics.PredictPerformance(campaign, days)
	if err != nil {
		badRequest(c, "Invalid forecast request", err)
		return
	}
	utils.SendSuccess(c, forecast)
}
