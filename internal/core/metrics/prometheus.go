package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config contains configuration for metrics collection
type Config struct {
	Enabled bool
	Prefix  string
}

// Collector exposes engine, platform and HTTP metrics on its own registry. It
// implements automation.Recorder.
type Collector struct {
	config   Config
	registry *prometheus.Registry

	// HTTP
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Automation
	cyclesTotal      *prometheus.CounterVec
	cycleDuration    prometheus.Histogram
	cycleCampaigns   prometheus.Gauge
	rulesFired       prometheus.Counter
	actionsTotal     *prometheus.CounterVec
	actionDuration   *prometheus.HistogramVec
	rulesConfigured  *prometheus.GaugeVec
	lastCycleSuccess prometheus.Gauge

	// Analytics
	anomaliesTotal *prometheus.CounterVec

	// Platform
	platformRequests *prometheus.CounterVec

	// Alerts and live connections
	alertsTotal          *prometheus.CounterVec
	websocketConnections prometheus.Gauge
}

// NewCollector creates a collector with process and Go runtime collectors registered
func NewCollector(config Config) *Collector {
	if config.Prefix == "" {
		config.Prefix = "adpilot"
	}
	prefix := config.Prefix

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	c := &Collector{
		config:   config,
		registry: registry,
	}

	c.httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    prefix + "_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	c.cyclesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_automation_cycles_total",
			Help: "Total number of automation cycles",
		},
		[]string{"success"},
	)

	c.cycleDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    prefix + "_automation_cycle_duration_seconds",
			Help:    "Automation cycle duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		},
	)

	c.cycleCampaigns = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: prefix + "_automation_cycle_campaigns",
			Help: "Campaigns evaluated by the last automation cycle",
		},
	)

	c.rulesFired = factory.NewCounter(
		prometheus.CounterOpts{
			Name: prefix + "_automation_rules_fired_total",
			Help: "Total number of rule and campaign pairs that fired",
		},
	)

	c.actionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_automation_actions_total",
			Help: "Total number of executed automation actions",
		},
		[]string{"action", "success"},
	)

	c.actionDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    prefix + "_automation_action_duration_seconds",
			Help:    "Automation action duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		},
		[]string{"action"},
	)

	c.rulesConfigured = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: prefix + "_automation_rules",
			Help: "Number of configured automation rules",
		},
		[]string{"state"},
	)

	c.lastCycleSuccess = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: prefix + "_automation_last_cycle_timestamp_seconds",
			Help: "Unix time of the last successful automation cycle",
		},
	)

	c.anomaliesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_anomalies_detected_total",
			Help: "Total number of detected anomalies",
		},
		[]string{"type", "severity"},
	)

	c.platformRequests = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_platform_requests_total",
			Help: "Total number of ad platform API requests",
		},
		[]string{"operation", "success"},
	)

	c.alertsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_alerts_total",
			Help: "Total number of alerts generated",
		},
		[]string{"severity", "source"},
	)

	c.websocketConnections = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: prefix + "_websocket_connections",
			Help: "Number of active WebSocket connections",
		},
	)

	return c
}

// Registry returns the registry backing this collector
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler returns the /metrics HTTP handler
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RecordHTTPRequest records HTTP request metrics
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordAction implements automation.Recorder
func (c *Collector) RecordAction(action string, success bool, duration time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.actionsTotal.WithLabelValues(action, strconv.FormatBool(success)).Inc()
	c.actionDuration.WithLabelValues(action).Observe(duration.Seconds())
}

// RecordCycle implements automation.Recorder
func (c *Collector) RecordCycle(duration time.Duration, campaigns, fired int, err error) {
	if !c.config.Enabled {
		return
	}
	c.cyclesTotal.WithLabelValues(strconv.FormatBool(err == nil)).Inc()
	c.cycleDuration.Observe(duration.Seconds())
	if err != nil {
		return
	}
	c.cycleCampaigns.Set(float64(campaigns))
	c.rulesFired.Add(float64(fired))
	c.lastCycleSuccess.SetToCurrentTime()
}

// SetRuleCounts records the configured and enabled rule counts
func (c *Collector) SetRuleCounts(total, enabled int) {
	if !c.config.Enabled {
		return
	}
	c.rulesConfigured.WithLabelValues("total").Set(float64(total))
	c.rulesConfigured.WithLabelValues("enabled").Set(float64(enabled))
}

// RecordAnomaly counts a detected anomaly
func (c *Collector) RecordAnomaly(anomalyType, severity string) {
	if !c.config.Enabled {
		return
	}
	c.anomaliesTotal.WithLabelValues(anomalyType, severity).Inc()
}

// RecordPlatformRequest counts an ad platform API call
func (c *Collector) RecordPlatformRequest(operation string, success bool) {
	if !c.config.Enabled {
		return
	}
	c.platformRequests.WithLabelValues(operation, strconv.FormatBool(success)).Inc()
}

// RecordAlert counts a created alert
func (c *Collector) RecordAlert(severity, source string) {
	if !c.config.Enabled {
		return
	}
	c.alertsTotal.WithLabelValues(severity, source).Inc()
}

// RecordWebSocketConnection tracks connects and disconnects
func (c *Collector) RecordWebSocketConnection(connected bool) {
	if !c.config.Enabled {
		return
	}
	if connected {
		c.websocketConnections.Inc()
	} else {
		c.websocketConnections.Dec()
	}
}
