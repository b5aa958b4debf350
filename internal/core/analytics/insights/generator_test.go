package insights

import (
	"io"
	"testing"

	"github.com/frostdev-ops/adpilot-backend-go/internal/core/campaigns"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGenerator() *Generator {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewGenerator(DefaultConfig(), logger)
}

func active(id string, ctr float64) campaigns.Campaign {
	return campaigns.Campaign{ID: id, Name: "Campaign " + id, Status: campaigns.StatusActive, CTR: ctr}
}

func ofType(list []Insight, typ Type) []Insight {
	var out []Insight
	for _, in := range list {
		if in.Type == typ {
			out = append(out, in)
		}
	}
	return out
}

func TestGenerator_SingleOptimizationInsight(t *testing.T) {
	top := active("top", 4.0)
	low := active("low", 1.8)
	low.DailySpend = 120

	result := newTestGenerator().Generate([]campaigns.Campaign{top, low})

	opts := ofType(result, TypeOptimization)
	require.Len(t, opts, 1)
	assert.ElementsMatch(t, []string{"top", "low"}, opts[0].CampaignIDs)
	assert.Equal(t, "top", opts[0].Data["top_performer"])
	assert.Equal(t, []string{"low"}, opts[0].Data["underperformers"])
	assert.Equal(t, 120.0, opts[0].Data["reallocatable_spend"])
	assert.Equal(t, LevelHigh, opts[0].Priority)
}

func TestGenerator_NoOptimizationWithoutUnderperformers(t *testing.T) {
	result := newTestGenerator().Generate([]campaigns.Campaign{active("a", 4.0), active("b", 3.0)})
	assert.Empty(t, ofType(result, TypeOptimization))

	// a lone weak campaign is its own top performer
	result = newTestGenerator().Generate([]campaigns.Campaign{active("a", 1.0)})
	assert.Empty(t, ofType(result, TypeOptimization))
}

func TestGenerator_PausedCampaignsExcludedFromCrossCampaign(t *testing.T) {
	paused := active("paused", 9.0)
	paused.Status = campaigns.StatusPaused
	weakPaused := active("weak-paused", 0.5)
	weakPaused.Status = campaigns.StatusPaused

	result := newTestGenerator().Generate([]campaigns.Campaign{paused, weakPaused, active("a", 3.0), active("b", 2.0)})
	opts := ofType(result, TypeOptimization)
	require.Len(t, opts, 1)
	assert.Equal(t, []string{"a", "b"}, opts[0].CampaignIDs)
}

func TestGenerator_PerCampaignInsights(t *testing.T) {
	declining := active("declining", 2.6)
	declining.Trend.CTRChangePct = -30

	surging := active("surging", 2.6)
	surging.Trend.CTRChangePct = 25

	budget := active("budget", 2.6)
	budget.TotalBudget = 1000
	budget.Spend = 900

	pacing := active("pacing", 2.6)
	pacing.DailyBudget = 100
	pacing.Last7Days = &campaigns.WindowMetrics{Days: 7, Spend: 210, Impressions: 1000, CTR: 2.6}

	fatigued := active("fatigued", 2.6)
	fatigued.Frequency = 6

	expanding := active("expanding", 3.5)
	expanding.Clicks = 1000
	expanding.Conversions = 40

	result := newTestGenerator().Generate([]campaigns.Campaign{declining, surging, budget, pacing, fatigued, expanding})

	perf := ofType(result, TypePerformance)
	require.Len(t, perf, 2)
	assert.Equal(t, LevelHigh, perf[0].Priority)
	assert.Equal(t, []string{"declining"}, perf[0].CampaignIDs)
	assert.Equal(t, LevelMedium, perf[1].Priority)

	budgets := ofType(result, TypeBudget)
	require.Len(t, budgets, 2)
	assert.Equal(t, []string{"budget"}, budgets[0].CampaignIDs)
	assert.Equal(t, []string{"pacing"}, budgets[1].CampaignIDs)

	creative := ofType(result, TypeCreative)
	require.Len(t, creative, 1)
	assert.Equal(t, LevelHigh, creative[0].Priority)
	assert.Equal(t, 90.0, creative[0].Data["fatigue_score"])

	audience := ofType(result, TypeAudience)
	require.Len(t, audience, 1)
	assert.Equal(t, []string{"expanding"}, audience[0].CampaignIDs)

	for _, in := range result {
		assert.GreaterOrEqual(t, in.Confidence, 0.0)
		assert.LessOrEqual(t, in.Confidence, 1.0)
	}
}

func TestGenerator_SortedByPriorityStable(t *testing.T) {
	a := active("a", 2.6)
	a.Trend.CTRChangePct = 30 // medium
	b := active("b", 2.6)
	b.Trend.CTRChangePct = -30 // high
	c := active("c", 2.6)
	c.Trend.CTRChangePct = 40 // medium
	d := active("d", 2.6)
	d.Trend.CTRChangePct = -50 // high

	result := newTestGenerator().Generate([]campaigns.Campaign{a, b, c, d})
	require.Len(t, result, 4)

	ids := make([]string, 0, len(result))
	for _, in := range result {
		ids = append(ids, in.CampaignIDs[0])
	}
	assert.Equal(t, []string{"b", "d", "a", "c"}, ids)
}

func TestGenerator_EmptyInput(t *testing.T) {
	assert.Empty(t, newTestGenerator().Generate(nil))
}
