package anomaly

import (
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/frostdev-ops/adpilot-backend-go/internal/core/campaigns"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDetector() *Detector {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewDetector(DefaultThresholds(), logger)
}

// healthy returns a campaign that raises no anomalies
func healthy(id string) campaigns.Campaign {
	return campaigns.Campaign{
		ID:                 id,
		Status:             campaigns.StatusActive,
		CTR:                2.8,
		Clicks:             1000,
		Conversions:        25,
		AudienceEngagement: 55,
		Last7Days:          &campaigns.WindowMetrics{Days: 7, Spend: 700, Impressions: 10000, CTR: 2.8},
		Last30Days:         &campaigns.WindowMetrics{Days: 30, Spend: 3000},
	}
}

func byType(anomalies []Anomaly) map[Type]Anomaly {
	out := make(map[Type]Anomaly, len(anomalies))
	for _, a := range anomalies {
		out[a.Type] = a
	}
	return out
}

func TestDetector_HealthyCampaign(t *testing.T) {
	assert.Empty(t, newTestDetector().Detect([]campaigns.Campaign{healthy("c1")}))
}

func TestDetector_SpendSpike(t *testing.T) {
	tests := []struct {
		name       string
		spend7d    float64
		expectSev  Severity
		expectFlag bool
	}{
		{name: "doubled spend is critical", spend7d: 1400, expectSev: SeverityCritical, expectFlag: true},
		{name: "halved spend beyond threshold is warning", spend7d: 300, expectSev: SeverityWarning, expectFlag: true},
		{name: "forty percent increase is ignored", spend7d: 980},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := healthy("c1")
			c.Last7Days.Spend = tt.spend7d

			found, ok := byType(newTestDetector().Detect([]campaigns.Campaign{c}))[TypeSpendSpike]
			require.Equal(t, tt.expectFlag, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.expectSev, found.Severity)
			assert.Equal(t, 100.0, found.Expected)
			assert.Equal(t, "c1", found.CampaignID)
		})
	}

	t.Run("doubled spend deviation", func(t *testing.T) {
		c := healthy("c1")
		c.Last7Days.Spend = 1400
		found := byType(newTestDetector().Detect([]campaigns.Campaign{c}))[TypeSpendSpike]
		assert.InDelta(t, 100.0, found.DeviationPct, 1e-9)
		assert.Equal(t, 200.0, found.Value)
	})
}

func TestDetector_CTRDropAlwaysCritical(t *testing.T) {
	c := healthy("c1")
	c.CTR = 1.2
	c.Last7Days.CTR = 1.2

	found, ok := byType(newTestDetector().Detect([]campaigns.Campaign{c}))[TypeCTRDrop]
	require.True(t, ok)
	assert.Equal(t, SeverityCritical, found.Severity)
	assert.Equal(t, 1.2, found.Value)
	assert.Equal(t, 2.7, found.Expected)

	// regardless of other metrics
	bare := campaigns.Campaign{ID: "bare", CTR: 1.2}
	found, ok = byType(newTestDetector().Detect([]campaigns.Campaign{bare}))[TypeCTRDrop]
	require.True(t, ok)
	assert.Equal(t, SeverityCritical, found.Severity)
}

func TestDetector_ConversionAnomaly(t *testing.T) {
	tests := []struct {
		conversions int64
		severity    Severity
		flagged     bool
	}{
		{conversions: 25},
		{conversions: 14, severity: SeverityWarning, flagged: true},
		{conversions: 5, severity: SeverityCritical, flagged: true},
		{conversions: 45, severity: SeverityCritical, flagged: true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d conversions", tt.conversions), func(t *testing.T) {
			c := healthy("c1")
			c.Conversions = tt.conversions

			found, ok := byType(newTestDetector().Detect([]campaigns.Campaign{c}))[TypeConversionAnomaly]
			require.Equal(t, tt.flagged, ok)
			if ok {
				assert.Equal(t, tt.severity, found.Severity)
			}
		})
	}
}

func TestDetector_AudienceShiftIsInfo(t *testing.T) {
	c := healthy("c1")
	c.AudienceEngagement = 85

	found, ok := byType(newTestDetector().Detect([]campaigns.Campaign{c}))[TypeAudienceShift]
	require.True(t, ok)
	assert.Equal(t, SeverityInfo, found.Severity)

	c.AudienceEngagement = 0
	_, ok = byType(newTestDetector().Detect([]campaigns.Campaign{c}))[TypeAudienceShift]
	assert.False(t, ok)
}

func TestDetector_AllFourAnomalies(t *testing.T) {
	c := healthy("c1")
	c.CTR = 1.0
	c.Last7Days.CTR = 1.0
	c.Last7Days.Spend = 2100
	c.Conversions = 1
	c.AudienceEngagement = 10

	anomalies := newTestDetector().Detect([]campaigns.Campaign{c})
	assert.Len(t, anomalies, 4)
	assert.Len(t, byType(anomalies), 4)
}

func TestHistory_RingBuffer(t *testing.T) {
	h := NewHistory(3)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		h.Add(Anomaly{ID: fmt.Sprint(i), CampaignID: fmt.Sprintf("c%d", i%2), Type: TypeCTRDrop, Severity: SeverityCritical, Timestamp: base.Add(time.Duration(i) * time.Minute)})
	}

	assert.Equal(t, 3, h.Len())
	assert.Equal(t, uint64(2), h.Dropped())

	recent := h.Recent(0)
	require.Len(t, recent, 3)
	assert.Equal(t, []string{"4", "3", "2"}, []string{recent[0].ID, recent[1].ID, recent[2].ID})

	assert.Len(t, h.Recent(2), 2)
	assert.Len(t, h.ForCampaign("c0", 0), 2)

	summary := h.Summary()
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 3, summary.ByType[TypeCTRDrop])
	assert.Equal(t, 2, summary.Campaigns)
	require.NotNil(t, summary.Oldest)
	assert.Equal(t, base.Add(2*time.Minute), *summary.Oldest)
	assert.Equal(t, base.Add(4*time.Minute), *summary.Newest)
}
