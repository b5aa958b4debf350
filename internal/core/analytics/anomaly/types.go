package anomaly

import "time"

// Type identifies what kind of deviation was detected
type Type string

const (
	TypeSpendSpike        Type = "spend_spike"
	TypeCTRDrop           Type = "ctr_drop"
	TypeConversionAnomaly Type = "conversion_anomaly"
	TypeAudienceShift     Type = "audience_shift"
)

// Severity represents the severity level of an anomaly
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Anomaly is a deviation of an observed metric from its expected baseline
type Anomaly struct {
	ID             string    `json:"id"`
	Type           Type      `json:"type"`
	Severity       Severity  `json:"severity"`
	Metric         string    `json:"metric"`
	Value          float64   `json:"value"`
	Expected       float64   `json:"expected"`
	DeviationPct   float64   `json:"deviation_pct"`
	Timestamp      time.Time `json:"timestamp"`
	CampaignID     string    `json:"campaign_id"`
	CampaignName   string    `json:"campaign_name,omitempty"`
	Description    string    `json:"description"`
	Recommendation string    `json:"recommendation"`
}

// Thresholds configures the detector baselines and trigger levels
type Thresholds struct {
	SpendDeviationPct      float64 `json:"spend_deviation_pct" mapstructure:"spend_deviation_pct"`
	CTRFloor               float64 `json:"ctr_floor" mapstructure:"ctr_floor"`
	CTRBenchmark           float64 `json:"ctr_benchmark" mapstructure:"ctr_benchmark"`
	ConversionBenchmark    float64 `json:"conversion_benchmark" mapstructure:"conversion_benchmark"`
	ConversionDeviationPct float64 `json:"conversion_deviation_pct" mapstructure:"conversion_deviation_pct"`
	ConversionCriticalPct  float64 `json:"conversion_critical_pct" mapstructure:"conversion_critical_pct"`
	EngagementBaseline     float64 `json:"engagement_baseline" mapstructure:"engagement_baseline"`
	EngagementShiftPoints  float64 `json:"engagement_shift_points" mapstructure:"engagement_shift_points"`
}

// DefaultThresholds returns the standard detection thresholds
func DefaultThresholds() Thresholds {
	return Thresholds{
		SpendDeviationPct:      50,
		CTRFloor:               1.5,
		CTRBenchmark:           2.7,
		ConversionBenchmark:    2.5,
		ConversionDeviationPct: 40,
		ConversionCriticalPct:  60,
		EngagementBaseline:     50,
		EngagementShiftPoints:  30,
	}
}

// Summary aggregates anomalies by type and severity
type Summary struct {
	Total      int              `json:"total"`
	ByType     map[Type]int     `json:"by_type"`
	BySeverity map[Severity]int `json:"by_severity"`
	Campaigns  int              `json:"campaigns"`
	Oldest     *time.Time       `json:"oldest,omitempty"`
	Newest     *time.Time       `json:"newest,omitempty"`
}
