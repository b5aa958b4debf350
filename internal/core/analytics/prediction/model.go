package prediction

import (
	"fmt"
	"math"

	"github.com/frostdev-ops/adpilot-backend-go/internal/core/campaigns"
	"github.com/shopspring/decimal"
)

// MaxForecastDays bounds the performance forecast horizon
const MaxForecastDays = 365

// Config holds the bid and forecast heuristics
type Config struct {
	HighCTR        float64 `json:"high_ctr" mapstructure:"high_ctr"`
	LowCTR         float64 `json:"low_ctr" mapstructure:"low_ctr"`
	RaiseFactor    float64 `json:"raise_factor" mapstructure:"raise_factor"`
	LowerFactor    float64 `json:"lower_factor" mapstructure:"lower_factor"`
	BaseConfidence float64 `json:"base_confidence" mapstructure:"base_confidence"`
}

// DefaultConfig returns the standard heuristics
func DefaultConfig() Config {
	return Config{
		HighCTR:        3.5,
		LowCTR:         2.0,
		RaiseFactor:    1.2,
		LowerFactor:    0.8,
		BaseConfidence: 0.75,
	}
}

// BidRecommendation is a suggested bid for a campaign
type BidRecommendation struct {
	CampaignID       string  `json:"campaign_id"`
	CurrentBid       float64 `json:"current_bid"`
	RecommendedBid   float64 `json:"recommended_bid"`
	CompetitiveIndex float64 `json:"competitive_index"`
	Confidence       float64 `json:"confidence"`
	Reasoning        string  `json:"reasoning"`
	ExpectedImpact   string  `json:"expected_impact"`
}

// PerformanceForecast projects campaign metrics over a horizon
type PerformanceForecast struct {
	CampaignID           string   `json:"campaign_id"`
	Days                 int      `json:"days"`
	PredictedCTR         float64  `json:"predicted_ctr"`
	PredictedSpend       float64  `json:"predicted_spend"`
	PredictedConversions float64  `json:"predicted_conversions"`
	Confidence           float64  `json:"confidence"`
	Factors              []string `json:"factors"`
}

// Model produces deterministic bid recommendations and forecasts. Identical inputs
// always produce identical outputs.
type Model struct {
	config Config
}

// NewModel creates a model
func NewModel(config Config) *Model {
	return &Model{config: config}
}

// PredictBid recommends a bid from the campaign's current CTR
func (m *Model) PredictBid(c campaigns.Campaign) BidRecommendation {
	ctr := c.CurrentCTR()
	rec := BidRecommendation{
		CampaignID: c.ID,
		CurrentBid: c.Bid,
	}

	switch {
	case ctr > m.config.HighCTR:
		rec.CompetitiveIndex = m.config.RaiseFactor
		rec.Confidence = 0.85
		rec.Reasoning = fmt.Sprintf("CTR of %.2f%% is above %.2f%%; raise the bid to capture more volume", ctr, m.config.HighCTR)
		rec.ExpectedImpact = "More impressions and conversions at a similar cost per click"
	case ctr < m.config.LowCTR:
		rec.CompetitiveIndex = m.config.LowerFactor
		rec.Confidence = 0.8
		rec.Reasoning = fmt.Sprintf("CTR of %.2f%% is below %.2f%%; reduce the bid and optimize the creative", ctr, m.config.LowCTR)
		rec.ExpectedImpact = "Lower spend on low-quality traffic while creatives are improved"
	default:
		rec.CompetitiveIndex = m.competitiveIndex(ctr)
		rec.Confidence = 0.7
		rec.Reasoning = fmt.Sprintf("CTR of %.2f%% is within the normal range; adjust the bid by competitive index %.2f", ctr, rec.CompetitiveIndex)
		rec.ExpectedImpact = "Maintain delivery at a competitive price"
	}

	rec.RecommendedBid = round(c.Bid*rec.CompetitiveIndex, 2)
	return rec
}

// competitiveIndex interpolates linearly from 0.9 at the low CTR bound to 1.1 at the
// high bound
func (m *Model) competitiveIndex(ctr float64) float64 {
	span := m.config.HighCTR - m.config.LowCTR
	if span <= 0 {
		return 1
	}
	pos := (ctr - m.config.LowCTR) / span
	pos = math.Max(0, math.Min(1, pos))
	return round(0.9+0.2*pos, 4)
}

// PredictPerformance extrapolates the recent week-over-week trend linearly over the
// given number of days
func (m *Model) PredictPerformance(c campaigns.Campaign, days int) (PerformanceForecast, error) {
	if days < 1 || days > MaxForecastDays {
		return PerformanceForecast{}, fmt.Errorf("days must be between 1 and %d, got %d", MaxForecastDays, days)
	}

	weeks := float64(days) / 7
	ctr := c.CurrentCTR()
	predictedCTR := math.Max(0, ctr*(1+c.Trend.CTRChangePct/100*weeks))

	dailySpend, spendSource := baselineDailySpend(c)
	dailyConversions := baselineDailyConversions(c)

	forecast := PerformanceForecast{
		CampaignID:           c.ID,
		Days:                 days,
		PredictedCTR:         round(predictedCTR, 4),
		PredictedSpend:       round(accumulate(dailySpend, c.Trend.SpendChangePct, days), 2),
		PredictedConversions: round(accumulate(dailyConversions, c.Trend.ConversionChangePct, days), 2),
		Confidence:           m.confidence(c, days),
		Factors: []string{
			fmt.Sprintf("CTR trend %+.1f%% per week", c.Trend.CTRChangePct),
			fmt.Sprintf("Spend trend %+.1f%% per week from %s", c.Trend.SpendChangePct, spendSource),
			fmt.Sprintf("Conversion trend %+.1f%% per week", c.Trend.ConversionChangePct),
		},
	}
	if !hasRecentData(c) {
		forecast.Factors = append(forecast.Factors, "No 7-day data; lifetime metrics used")
	}
	if days > 30 {
		forecast.Factors = append(forecast.Factors, "Long horizon reduces confidence")
	}
	return forecast, nil
}

// confidence starts at the base value, is reduced without recent data and decays by
// one point per day beyond a week, never dropping below 0.3
func (m *Model) confidence(c campaigns.Campaign, days int) float64 {
	conf := m.config.BaseConfidence
	if !hasRecentData(c) {
		conf *= 0.8
	}
	if days > 7 {
		conf -= 0.01 * float64(days-7)
	}
	return round(math.Max(0.3, math.Min(1, conf)), 2)
}

// accumulate sums a daily base over the horizon with a linear weekly growth rate
func accumulate(daily, weeklyChangePct float64, days int) float64 {
	n := float64(days)
	growth := weeklyChangePct / 100 / 7
	total := daily * (n + growth*n*(n+1)/2)
	return math.Max(0, total)
}

func baselineDailySpend(c campaigns.Campaign) (float64, string) {
	if hasRecentData(c) && c.Last7Days.Days > 0 {
		return c.Last7Days.AverageDailySpend(), "7-day average spend"
	}
	if c.DailySpend > 0 {
		return c.DailySpend, "today's spend"
	}
	return c.DailyBudget, "daily budget"
}

// baselineDailyConversions falls back to lifetime conversions spread over the days
// the campaign had run when the snapshot was taken
func baselineDailyConversions(c campaigns.Campaign) float64 {
	if hasRecentData(c) && c.Last7Days.Days > 0 {
		return float64(c.Last7Days.Conversions) / float64(c.Last7Days.Days)
	}
	days := c.DaysRunning(c.UpdatedAt)
	if days < 1 {
		return 0
	}
	return float64(c.Conversions) / float64(days)
}

func hasRecentData(c campaigns.Campaign) bool {
	return c.Last7Days != nil && c.Last7Days.Impressions > 0
}

func round(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}
