package campaigns

import (
	"context"
	"math"
	"time"
)

// Status represents the delivery status of a campaign on the ad platform
type Status string

const (
	StatusActive Status = "active"
	StatusPaused Status = "paused"
	StatusEnded  Status = "ended"
)

// WindowMetrics contains metrics aggregated over a trailing window of days
type WindowMetrics struct {
	Days        int     `json:"days"`
	Spend       float64 `json:"spend"`
	Impressions int64   `json:"impressions"`
	Clicks      int64   `json:"clicks"`
	Conversions int64   `json:"conversions"`
	CTR         float64 `json:"ctr"`
}

// AverageDailySpend returns spend divided by the window length
func (w *WindowMetrics) AverageDailySpend() float64 {
	if w == nil || w.Days <= 0 {
		return 0
	}
	return w.Spend / float64(w.Days)
}

// Trend holds week-over-week percentage changes reported by the metrics source
type Trend struct {
	CTRChangePct        float64 `json:"ctr_change_pct"`
	SpendChangePct      float64 `json:"spend_change_pct"`
	ConversionChangePct float64 `json:"conversion_change_pct"`
}

// Campaign is a point-in-time snapshot of a campaign and its metrics.
// Percentages (CTR) are expressed in percent, e.g. 2.5 means 2.5%.
type Campaign struct {
	ID                 string         `json:"id"`
	Name               string         `json:"name"`
	Status             Status         `json:"status"`
	Objective          string         `json:"objective,omitempty"`
	DailyBudget        float64        `json:"daily_budget"`
	TotalBudget        float64        `json:"total_budget"`
	Spend              float64        `json:"spend"`
	DailySpend         float64        `json:"daily_spend"`
	Impressions        int64          `json:"impressions"`
	Clicks             int64          `json:"clicks"`
	Conversions        int64          `json:"conversions"`
	CTR                float64        `json:"ctr"`
	Bid                float64        `json:"bid"`
	Frequency          float64        `json:"frequency"`
	AudienceEngagement float64        `json:"audience_engagement"`
	AudienceSize       int64          `json:"audience_size,omitempty"`
	StartDate          time.Time      `json:"start_date"`
	EndDate            *time.Time     `json:"end_date,omitempty"`
	Last7Days          *WindowMetrics `json:"last_7_days,omitempty"`
	Last30Days         *WindowMetrics `json:"last_30_days,omitempty"`
	Trend              Trend          `json:"trend"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// IsActive reports whether the campaign is currently delivering
func (c *Campaign) IsActive() bool {
	return c.Status == StatusActive
}

// CurrentCTR returns the 7-day CTR when available and the lifetime CTR otherwise
func (c *Campaign) CurrentCTR() float64 {
	if c.Last7Days != nil && (c.Last7Days.CTR > 0 || c.Last7Days.Impressions > 0) {
		return c.Last7Days.CTR
	}
	return c.CTR
}

// RemainingBudget returns the unspent part of the total budget, falling back to the
// unspent part of today's budget for campaigns without a lifetime budget
func (c *Campaign) RemainingBudget() float64 {
	if c.TotalBudget > 0 {
		return math.Max(c.TotalBudget-c.Spend, 0)
	}
	return math.Max(c.DailyBudget-c.DailySpend, 0)
}

// ConversionRate returns conversions per click in percent. ok is false without clicks.
func (c *Campaign) ConversionRate() (rate float64, ok bool) {
	if c.Clicks <= 0 {
		return 0, false
	}
	return float64(c.Conversions) / float64(c.Clicks) * 100, true
}

// CostPerConversion returns spend per conversion. A campaign that spent money without
// converting yields +Inf; a campaign with neither spend nor conversions yields ok=false.
func (c *Campaign) CostPerConversion() (cpa float64, ok bool) {
	if c.Conversions > 0 {
		return c.Spend / float64(c.Conversions), true
	}
	if c.Spend > 0 {
		return math.Inf(1), true
	}
	return 0, false
}

// DaysRunning returns whole days since the campaign started, relative to now
func (c *Campaign) DaysRunning(now time.Time) int {
	if c.StartDate.IsZero() || now.Before(c.StartDate) {
		return 0
	}
	return int(now.Sub(c.StartDate).Hours() / 24)
}

// MetricsSource supplies campaign snapshots
type MetricsSource interface {
	ListCampaigns(ctx context.Context) ([]Campaign, error)
}

// AdPlatform is the ad-platform client used to mutate campaigns
type AdPlatform interface {
	MetricsSource
	PauseCampaign(ctx context.Context, campaignID string) error
	ResumeCampaign(ctx context.Context, campaignID string) error
	UpdateCampaignBudget(ctx context.Context, campaignID string, dailyBudget float64) error
}

// CreativeSwitcher is implemented by platforms that manage creatives
type CreativeSwitcher interface {
	EnableBackupCreative(ctx context.Context, campaignID string) error
}

// Index returns campaigns keyed by ID
func Index(list []Campaign) map[string]Campaign {
	out := make(map[string]Campaign, len(list))
	for _, c := range list {
		out[c.ID] = c
	}
	return out
}
