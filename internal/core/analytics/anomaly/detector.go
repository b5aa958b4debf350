package anomaly

import (
	"fmt"
	"math"
	"time"

	"github.com/frostdev-ops/adpilot-backend-go/internal/core/campaigns"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Detector flags campaigns whose metrics deviate from their baselines. Each check is
// independent, so a campaign raises zero to four anomalies per pass.
type Detector struct {
	thresholds Thresholds
	logger     *logrus.Logger
	now        func() time.Time
}

// NewDetector creates a detector
func NewDetector(thresholds Thresholds, logger *logrus.Logger) *Detector {
	if logger == nil {
		logger = logrus.New()
	}
	return &Detector{
		thresholds: thresholds,
		logger:     logger,
		now:        time.Now,
	}
}

type check func(c *campaigns.Campaign, at time.Time) *Anomaly

// Detect runs every check over every campaign. It never fails: a check that panics
// on malformed input is logged and skipped.
func (d *Detector) Detect(list []campaigns.Campaign) []Anomaly {
	at := d.now()
	checks := []check{d.spendSpike, d.ctrDrop, d.conversionAnomaly, d.audienceShift}

	var out []Anomaly
	for i := range list {
		for _, fn := range checks {
			if a := d.safe(fn, &list[i], at); a != nil {
				out = append(out, *a)
			}
		}
	}
	return out
}

func (d *Detector) safe(fn check, c *campaigns.Campaign, at time.Time) (a *Anomaly) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.WithFields(logrus.Fields{
				"campaign_id": c.ID,
				"panic":       r,
			}).Error("Anomaly check failed")
			a = nil
		}
	}()
	a = fn(c, at)
	if a != nil && (!finite(a.Value) || !finite(a.DeviationPct)) {
		return nil
	}
	return a
}

func (d *Detector) newAnomaly(c *campaigns.Campaign, at time.Time, typ Type, sev Severity, metric string, value, expected float64) *Anomaly {
	return &Anomaly{
		ID:           uuid.New().String(),
		Type:         typ,
		Severity:     sev,
		Metric:       metric,
		Value:        value,
		Expected:     expected,
		DeviationPct: deviationPct(value, expected),
		Timestamp:    at,
		CampaignID:   c.ID,
		CampaignName: c.Name,
	}
}

// spendSpike compares the trailing 7-day average daily spend with the 30-day average
func (d *Detector) spendSpike(c *campaigns.Campaign, at time.Time) *Anomaly {
	if c.Last7Days == nil || c.Last30Days == nil {
		return nil
	}
	observed := c.Last7Days.AverageDailySpend()
	expected := c.Last30Days.AverageDailySpend()
	if expected <= 0 {
		return nil
	}

	dev := deviationPct(observed, expected)
	if math.Abs(dev) <= d.thresholds.SpendDeviationPct {
		return nil
	}

	sev := SeverityWarning
	direction := "dropped"
	recommendation := "Check delivery issues, bid competitiveness and audience exhaustion."
	if dev > 0 {
		sev = SeverityCritical
		direction = "increased"
		recommendation = "Review recent budget and bid changes; consider a spend cap until performance is verified."
	}

	a := d.newAnomaly(c, at, TypeSpendSpike, sev, "daily_spend", observed, expected)
	a.Description = fmt.Sprintf("Average daily spend %s %.1f%% versus the 30-day baseline (%.2f vs %.2f)", direction, math.Abs(dev), observed, expected)
	a.Recommendation = recommendation
	return a
}

// ctrDrop flags a CTR below the absolute floor against the industry benchmark
func (d *Detector) ctrDrop(c *campaigns.Campaign, at time.Time) *Anomaly {
	ctr := c.CurrentCTR()
	if ctr >= d.thresholds.CTRFloor {
		return nil
	}

	a := d.newAnomaly(c, at, TypeCTRDrop, SeverityCritical, "ctr", ctr, d.thresholds.CTRBenchmark)
	a.Description = fmt.Sprintf("CTR of %.2f%% is below the %.2f%% floor (benchmark %.2f%%)", ctr, d.thresholds.CTRFloor, d.thresholds.CTRBenchmark)
	a.Recommendation = "Refresh creatives and tighten targeting; pause if CTR does not recover."
	return a
}

// conversionAnomaly compares conversions per click with the benchmark rate
func (d *Detector) conversionAnomaly(c *campaigns.Campaign, at time.Time) *Anomaly {
	rate, ok := c.ConversionRate()
	if !ok || d.thresholds.ConversionBenchmark <= 0 {
		return nil
	}

	dev := deviationPct(rate, d.thresholds.ConversionBenchmark)
	if math.Abs(dev) <= d.thresholds.ConversionDeviationPct {
		return nil
	}

	sev := SeverityWarning
	if math.Abs(dev) > d.thresholds.ConversionCriticalPct {
		sev = SeverityCritical
	}

	a := d.newAnomaly(c, at, TypeConversionAnomaly, sev, "conversion_rate", rate, d.thresholds.ConversionBenchmark)
	if dev < 0 {
		a.Description = fmt.Sprintf("Conversion rate of %.2f%% is %.1f%% below the %.2f%% benchmark", rate, math.Abs(dev), d.thresholds.ConversionBenchmark)
		a.Recommendation = "Audit the landing page and conversion tracking."
	} else {
		a.Description = fmt.Sprintf("Conversion rate of %.2f%% is %.1f%% above the %.2f%% benchmark", rate, dev, d.thresholds.ConversionBenchmark)
		a.Recommendation = "Verify conversion tracking, then consider scaling budget."
	}
	return a
}

// audienceShift flags engagement far from the baseline. Campaigns that report no
// engagement score are skipped.
func (d *Detector) audienceShift(c *campaigns.Campaign, at time.Time) *Anomaly {
	if c.AudienceEngagement <= 0 {
		return nil
	}
	delta := c.AudienceEngagement - d.thresholds.EngagementBaseline
	if math.Abs(delta) <= d.thresholds.EngagementShiftPoints {
		return nil
	}

	a := d.newAnomaly(c, at, TypeAudienceShift, SeverityInfo, "audience_engagement", c.AudienceEngagement, d.thresholds.EngagementBaseline)
	a.Description = fmt.Sprintf("Audience engagement moved %.1f points from the baseline of %.0f", delta, d.thresholds.EngagementBaseline)
	a.Recommendation = "Review audience composition and refresh lookalike or interest segments."
	return a
}

func deviationPct(observed, expected float64) float64 {
	if expected == 0 {
		return 0
	}
	return (observed - expected) / expected * 100
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
