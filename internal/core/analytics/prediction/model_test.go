package prediction

import (
	"testing"
	"time"

	"github.com/frostdev-ops/adpilot-backend-go/internal/core/campaigns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModel_PredictBid(t *testing.T) {
	model := NewModel(DefaultConfig())

	tests := []struct {
		name        string
		ctr         float64
		bid         float64
		expectedBid float64
		index       float64
	}{
		{name: "high ctr raises bid", ctr: 4.0, bid: 2.00, expectedBid: 2.40, index: 1.2},
		{name: "low ctr lowers bid", ctr: 1.5, bid: 2.00, expectedBid: 1.60, index: 0.8},
		{name: "low bound of normal range", ctr: 2.0, bid: 2.00, expectedBid: 1.80, index: 0.9},
		{name: "midpoint of normal range", ctr: 2.75, bid: 2.00, expectedBid: 2.00, index: 1.0},
		{name: "high bound of normal range", ctr: 3.5, bid: 2.00, expectedBid: 2.20, index: 1.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := model.PredictBid(campaigns.Campaign{ID: "c1", CTR: tt.ctr, Bid: tt.bid})
			assert.Equal(t, tt.expectedBid, rec.RecommendedBid)
			assert.InDelta(t, tt.index, rec.CompetitiveIndex, 1e-9)
			assert.NotEmpty(t, rec.Reasoning)
			assert.NotEmpty(t, rec.ExpectedImpact)
			assert.Equal(t, "c1", rec.CampaignID)
		})
	}
}

func TestModel_PredictBidIsDeterministic(t *testing.T) {
	model := NewModel(DefaultConfig())
	c := campaigns.Campaign{ID: "c1", CTR: 2.4, Bid: 1.37}
	assert.Equal(t, model.PredictBid(c), model.PredictBid(c))
}

func TestModel_PredictPerformance(t *testing.T) {
	model := NewModel(DefaultConfig())

	c := campaigns.Campaign{
		ID:        "c1",
		CTR:       2.0,
		Last7Days: &campaigns.WindowMetrics{Days: 7, Spend: 700, Impressions: 10000, Conversions: 14, CTR: 2.0},
		Trend:     campaigns.Trend{CTRChangePct: 10},
	}

	forecast, err := model.PredictPerformance(c, 7)
	require.NoError(t, err)
	assert.Equal(t, 2.2, forecast.PredictedCTR)
	assert.Equal(t, 700.0, forecast.PredictedSpend)
	assert.Equal(t, 14.0, forecast.PredictedConversions)
	assert.Equal(t, 0.75, forecast.Confidence)
	assert.Len(t, forecast.Factors, 3)

	again, err := model.PredictPerformance(c, 7)
	require.NoError(t, err)
	assert.Equal(t, forecast, again)
}

func TestModel_PredictPerformanceConfidence(t *testing.T) {
	model := NewModel(DefaultConfig())
	recent := campaigns.Campaign{ID: "c1", CTR: 2, Last7Days: &campaigns.WindowMetrics{Days: 7, Impressions: 100}}
	stale := campaigns.Campaign{ID: "c2", CTR: 2, DailyBudget: 50}

	f, err := model.PredictPerformance(recent, 30)
	require.NoError(t, err)
	assert.Equal(t, 0.52, f.Confidence)

	f, err = model.PredictPerformance(stale, 7)
	require.NoError(t, err)
	assert.Equal(t, 0.6, f.Confidence)
	assert.Equal(t, 350.0, f.PredictedSpend)
	assert.Contains(t, f.Factors, "No 7-day data; lifetime metrics used")

	f, err = model.PredictPerformance(recent, 365)
	require.NoError(t, err)
	assert.Equal(t, 0.3, f.Confidence)
}

func TestModel_PredictPerformanceFallsBackToLifetime(t *testing.T) {
	model := NewModel(DefaultConfig())
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := campaigns.Campaign{
		ID:          "c1",
		CTR:         2,
		Conversions: 100,
		StartDate:   start,
		UpdatedAt:   start.Add(10 * 24 * time.Hour),
	}

	f, err := model.PredictPerformance(c, 7)
	require.NoError(t, err)
	assert.Equal(t, 70.0, f.PredictedConversions)
}

func TestModel_PredictPerformanceRejectsBadHorizon(t *testing.T) {
	model := NewModel(DefaultConfig())
	_, err := model.PredictPerformance(campaigns.Campaign{}, 0)
	assert.Error(t, err)
	_, err = model.PredictPerformance(campaigns.Campaign{}, MaxForecastDays+1)
	assert.Error(t, err)
}
