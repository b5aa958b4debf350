package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/frostdev-ops/adpilot-backend-go/internal/core/analytics/anomaly"
	"github.com/frostdev-ops/adpilot-backend-go/internal/core/analytics/insights"
	"github.com/frostdev-ops/adpilot-backend-go/internal/core/analytics/prediction"
	"github.com/frostdev-ops/adpilot-backend-go/internal/core/campaigns"
	"github.com/sirupsen/logrus"
)

// EventAnomalyDetected is published for every anomaly found by a detection pass
const EventAnomalyDetected = "analytics.anomaly_detected"

// Notifier receives anomalies worth alerting on
type Notifier interface {
	NotifyAnomaly(ctx context.Context, a anomaly.Anomaly) error
}

// Publisher receives analytics events for live subscribers
type Publisher interface {
	PublishEvent(eventType string, data interface{})
}

// Config contains analytics configuration
type Config struct {
	Thresholds  anomaly.Thresholds
	HistorySize int
	Insights    insights.Config
	Prediction  prediction.Config
	// AlertSeverities lists the anomaly severities forwarded to the notifier by Scan
	AlertSeverities []anomaly.Severity
}

// DefaultConfig returns the default analytics configuration
func DefaultConfig() Config {
	return Config{
		Thresholds:      anomaly.DefaultThresholds(),
		HistorySize:     anomaly.DefaultHistorySize,
		Insights:        insights.DefaultConfig(),
		Prediction:      prediction.DefaultConfig(),
		AlertSeverities: []anomaly.Severity{anomaly.SeverityCritical},
	}
}

// ScanReport summarizes one scheduled detection pass
type ScanReport struct {
	StartedAt time.Time `json:"started_at"`
	Campaigns int       `json:"campaigns"`
	Anomalies int       `json:"anomalies"`
	Alerted   int       `json:"alerted"`
}

// Service is the advisory path: anomalies, insights and predictions over campaign
// snapshots. It shares no mutable state with the automation engine.
type Service struct {
	detector  *anomaly.Detector
	history   *anomaly.History
	generator *insights.Generator
	model     *prediction.Model

	source    campaigns.MetricsSource
	notifier  Notifier
	publisher Publisher
	alertOn   map[anomaly.Severity]bool
	logger    *logrus.Logger
}

// NewService creates the analytics service. source, notifier and publisher may be nil;
// Scan requires a source.
func NewService(config Config, source campaigns.MetricsSource, notifier Notifier, publisher Publisher, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logrus.New()
	}
	alertOn := make(map[anomaly.Severity]bool, len(config.AlertSeverities))
	for _, sev := range config.AlertSeverities {
		alertOn[sev] = true
	}
	return &Service{
		detector:  anomaly.NewDetector(config.Thresholds, logger),
		history:   anomaly.NewHistory(config.HistorySize),
		generator: insights.NewGenerator(config.Insights, logger),
		model:     prediction.NewModel(config.Prediction),
		source:    source,
		notifier:  notifier,
		publisher: publisher,
		alertOn:   alertOn,
		logger:    logger,
	}
}

// Campaigns returns the current snapshot from the metrics source
func (s *Service) Campaigns(ctx context.Context) ([]campaigns.Campaign, error) {
	if s.source == nil {
		return nil, fmt.Errorf("no metrics source configured")
	}
	return s.source.ListCampaigns(ctx)
}

// GenerateInsights returns prioritized insights for the campaigns
func (s *Service) GenerateInsights(list []campaigns.Campaign) []insights.Insight {
	return s.generator.Generate(list)
}

// DetectAnomalies runs a detection pass and records the results in the history
func (s *Service) DetectAnomalies(list []campaigns.Campaign) []anomaly.Anomaly {
	found := s.detector.Detect(list)
	if len(found) == 0 {
		return []anomaly.Anomaly{}
	}
	s.history.Add(found...)
	for _, a := range found {
		if s.publisher != nil {
			s.publisher.PublishEvent(EventAnomalyDetected, a)
		}
	}
	return found
}

// AnomalyHistory returns recorded anomalies newest first, optionally for one campaign
func (s *Service) AnomalyHistory(campaignID string, limit int) []anomaly.Anomaly {
	if campaignID != "" {
		return s.history.ForCampaign(campaignID, limit)
	}
	return s.history.Recent(limit)
}

// AnomalySummary counts recorded anomalies by type and severity
func (s *Service) AnomalySummary() anomaly.Summary {
	return s.history.Summary()
}

// PredictBid recommends a bid for the campaign
func (s *Service) PredictBid(c campaigns.Campaign) prediction.BidRecommendation {
	return s.model.PredictBid(c)
}

// PredictPerformance forecasts the campaign over the given number of days
func (s *Service) PredictPerformance(c campaigns.Campaign, days int) (prediction.PerformanceForecast, error) {
	return s.model.PredictPerformance(c, days)
}

// Scan pulls the current snapshot, detects anomalies and forwards alert-worthy ones to
// the notifier. Notification failures are logged, not returned.
func (s *Service) Scan(ctx context.Context) (*ScanReport, error) {
	report := &ScanReport{StartedAt: time.Now()}

	list, err := s.Campaigns(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch campaigns: %w", err)
	}
	report.Campaigns = len(list)

	found := s.DetectAnomalies(list)
	report.Anomalies = len(found)

	for _, a := range found {
		if s.notifier == nil || !s.alertOn[a.Severity] {
			continue
		}
		if err := s.notifier.NotifyAnomaly(ctx, a); err != nil {
			s.logger.WithFields(logrus.Fields{
				"campaign_id": a.CampaignID,
				"anomaly":     a.Type,
			}).WithError(err).Warn("Failed to send anomaly alert")
			continue
		}
		report.Alerted++
	}

	s.logger.WithFields(logrus.Fields{
		"campaigns": report.Campaigns,
		"anomalies": report.Anomalies,
		"alerted":   report.Alerted,
	}).Info("Anomaly scan completed")
	return report, nil
}

// ScanJob adapts Scan to a scheduler job
func (s *Service) ScanJob(ctx context.Context) {
	if _, err := s.Scan(ctx); err != nil {
		s.logger.WithError(err).Error("Anomaly scan failed")
	}
}
