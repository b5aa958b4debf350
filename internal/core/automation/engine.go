package automation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/frostdev-ops/adpilot-backend-go/internal/core/campaigns"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrCycleInProgress is returned by RunCycle when a cycle is already executing
var ErrCycleInProgress = errors.New("automation cycle already in progress")

// Event types published by the engine
const (
	EventActionExecuted = "automation.action_executed"
	EventCycleCompleted = "automation.cycle_completed"
	EventRuleChanged    = "automation.rule_changed"
)

// EventPublisher receives engine events for live subscribers
type EventPublisher interface {
	PublishEvent(eventType string, data interface{})
}

// EngineConfig contains automation engine configuration
type EngineConfig struct {
	Interval         time.Duration `json:"interval"`
	ActionTimeout    time.Duration `json:"action_timeout"`
	MaxConcurrency   int           `json:"max_concurrency"`
	HistoryRetention int           `json:"history_retention"`
	HistoryLimit     int           `json:"history_limit"`
}

// DefaultEngineConfig returns the default engine configuration
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Interval:         DefaultCycleInterval,
		ActionTimeout:    DefaultActionTimeout,
		HistoryRetention: 10000,
		HistoryLimit:     DefaultHistoryLimit,
	}
}

// Dependencies are the collaborators of the engine. Source defaults to Platform.
type Dependencies struct {
	Source    campaigns.MetricsSource
	Platform  campaigns.AdPlatform
	Notifier  Notifier
	Derived   *DerivedMetrics
	Publisher EventPublisher
	Recorder  Recorder
	Logger    *logrus.Logger
}

// CycleReport summarizes one automation cycle
type CycleReport struct {
	StartedAt      time.Time     `json:"started_at"`
	Duration       time.Duration `json:"duration"`
	Campaigns      int           `json:"campaigns"`
	RulesEvaluated int           `json:"rules_evaluated"`
	Fired          int           `json:"fired"`
	Succeeded      int           `json:"succeeded"`
	Failed         int           `json:"failed"`
}

// EngineStatistics contains engine counters
type EngineStatistics struct {
	TotalRules        int           `json:"total_rules"`
	EnabledRules      int           `json:"enabled_rules"`
	Running           bool          `json:"running"`
	Interval          string        `json:"interval"`
	NextRun           *time.Time    `json:"next_run,omitempty"`
	Cycles            int64         `json:"cycles"`
	FailedCycles      int64         `json:"failed_cycles"`
	FiredPairs        int64         `json:"fired_pairs"`
	SuccessfulActions int64         `json:"successful_actions"`
	FailedActions     int64         `json:"failed_actions"`
	HistorySize       int           `json:"history_size"`
	LastCycleAt       *time.Time    `json:"last_cycle_at,omitempty"`
	LastCycleDuration time.Duration `json:"last_cycle_duration"`
}

type engineStats struct {
	cycles            int64
	failedCycles      int64
	firedPairs        int64
	successfulActions int64
	failedActions     int64
	lastCycleAt       *time.Time
	lastCycleDuration time.Duration
	mu                sync.RWMutex
}

// Engine owns the rule store and history log and drives the automation cycle
type Engine struct {
	store     *RuleStore
	history   *HistoryLog
	evaluator *RuleEvaluator
	executor  *ActionExecutor
	scheduler *Scheduler

	source    campaigns.MetricsSource
	publisher EventPublisher
	recorder  Recorder
	tracer    trace.Tracer
	logger    *logrus.Logger

	config  EngineConfig
	inCycle atomic.Bool
	stats   *engineStats
}

// NewEngine creates a stopped engine
func NewEngine(config EngineConfig, deps Dependencies) (*Engine, error) {
	defaults := DefaultEngineConfig()
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if config.ActionTimeout <= 0 {
		config.ActionTimeout = defaults.ActionTimeout
	}
	if config.HistoryLimit <= 0 {
		config.HistoryLimit = defaults.HistoryLimit
	}

	source := deps.Source
	if source == nil && deps.Platform != nil {
		source = deps.Platform
	}
	if source == nil {
		return nil, fmt.Errorf("a metrics source is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = logrus.New()
	}
	recorder := deps.Recorder
	if recorder == nil {
		recorder = nopRecorder{}
	}

	store := NewRuleStore()
	history := NewHistoryLog(config.HistoryRetention, config.HistoryLimit)

	engine := &Engine{
		store:     store,
		history:   history,
		evaluator: NewRuleEvaluator(NewConditionEvaluator(deps.Derived)),
		executor:  NewActionExecutor(deps.Platform, deps.Notifier, history, store, config.ActionTimeout, recorder, logger),
		source:    source,
		publisher: deps.Publisher,
		recorder:  recorder,
		tracer:    otel.Tracer("github.com/frostdev-ops/adpilot-backend-go/automation"),
		logger:    logger,
		config:    config,
		stats:     &engineStats{},
	}

	scheduler, err := NewScheduler("automation", config.Interval, engine.scheduledCycle, logger)
	if err != nil {
		return nil, err
	}
	engine.scheduler = scheduler

	return engine, nil
}

// Start begins the periodic cycle. Calling Start on a running engine is a no-op.
func (e *Engine) Start() {
	e.scheduler.Start()
}

// Stop halts the periodic cycle without cancelling a cycle already executing
func (e *Engine) Stop() {
	e.scheduler.Stop()
}

// IsRunning returns whether the periodic cycle is active
func (e *Engine) IsRunning() bool {
	return e.scheduler.IsRunning()
}

func (e *Engine) scheduledCycle(ctx context.Context) {
	if _, err := e.RunCycle(ctx); err != nil {
		if errors.Is(err, ErrCycleInProgress) {
			e.logger.Warn("Skipping automation cycle, previous cycle still running")
			return
		}
		e.logger.WithError(err).Error("Automation cycle failed")
	}
}

// RunCycle performs one evaluation and execution pass over the current campaign snapshot
func (e *Engine) RunCycle(ctx context.Context) (*CycleReport, error) {
	if !e.inCycle.CompareAndSwap(false, true) {
		return nil, ErrCycleInProgress
	}
	defer e.inCycle.Store(false)

	ctx, span := e.tracer.Start(ctx, "automation.cycle")
	defer span.End()

	report := &CycleReport{StartedAt: time.Now()}

	// cycles act on live data only
	list, err := e.source.ListCampaigns(campaigns.RequireFresh(ctx))
	if err != nil {
		err = fmt.Errorf("failed to fetch campaigns: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.finishCycle(report, err)
		return nil, err
	}

	rules := e.store.Enabled()
	matches := e.evaluator.Evaluate(rules, list)

	report.Campaigns = len(list)
	report.RulesEvaluated = len(rules)
	report.Fired = len(matches)
	span.SetAttributes(
		attribute.Int("campaigns", len(list)),
		attribute.Int("rules", len(rules)),
		attribute.Int("fired", len(matches)),
	)

	succeeded, failed := e.executeMatches(ctx, matches, len(list))
	report.Succeeded = succeeded
	report.Failed = failed

	e.finishCycle(report, nil)

	e.logger.WithFields(logrus.Fields{
		"campaigns": report.Campaigns,
		"rules":     report.RulesEvaluated,
		"fired":     report.Fired,
		"succeeded": report.Succeeded,
		"failed":    report.Failed,
		"duration":  report.Duration.String(),
	}).Info("Automation cycle completed")
	e.publish(EventCycleCompleted, report)

	return report, nil
}

// executeMatches runs fired pairs with bounded parallelism
func (e *Engine) executeMatches(ctx context.Context, matches []Match, campaignCount int) (succeeded, failed int) {
	if len(matches) == 0 {
		return 0, 0
	}

	workers := e.config.MaxConcurrency
	if workers <= 0 {
		workers = campaignCount
	}
	if workers < 1 {
		workers = 1
	}

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		sem = make(chan struct{}, workers)
	)

	for _, match := range matches {
		wg.Add(1)
		sem <- struct{}{}
		go func(m Match) {
			defer wg.Done()
			defer func() { <-sem }()
			defer func() {
				if r := recover(); r != nil {
					e.logger.WithFields(logrus.Fields{
						"rule_id":     m.Rule.ID,
						"campaign_id": m.Campaign.ID,
						"panic":       r,
					}).Error("Recovered from panic executing rule actions")
				}
			}()

			entries := e.executor.Run(ctx, m.Rule, m.Campaign)

			mu.Lock()
			for _, entry := range entries {
				if entry.Success {
					succeeded++
				} else {
					failed++
				}
			}
			mu.Unlock()

			for _, entry := range entries {
				e.publish(EventActionExecuted, entry)
			}
		}(match)
	}

	wg.Wait()
	return succeeded, failed
}

func (e *Engine) finishCycle(report *CycleReport, err error) {
	report.Duration = time.Since(report.StartedAt)
	e.recorder.RecordCycle(report.Duration, report.Campaigns, report.Fired, err)

	e.stats.mu.Lock()
	defer e.stats.mu.Unlock()
	e.stats.cycles++
	if err != nil {
		e.stats.failedCycles++
	}
	e.stats.firedPairs += int64(report.Fired)
	e.stats.successfulActions += int64(report.Succeeded)
	e.stats.failedActions += int64(report.Failed)
	startedAt := report.StartedAt
	e.stats.lastCycleAt = &startedAt
	e.stats.lastCycleDuration = report.Duration
}

func (e *Engine) publish(eventType string, data interface{}) {
	if e.publisher != nil {
		e.publisher.PublishEvent(eventType, data)
	}
}

// GetRules returns copies of all rules
func (e *Engine) GetRules() []*Rule {
	return e.store.List()
}

// GetRule returns a copy of one rule
func (e *Engine) GetRule(id string) (*Rule, error) {
	return e.store.Get(id)
}

// AddRule validates and stores a rule, returning its id
func (e *Engine) AddRule(rule *Rule) (string, error) {
	id, err := e.store.Add(rule)
	if err != nil {
		return "", err
	}
	e.warnUnknownMetrics(id, rule.Conditions)
	e.logger.WithField("rule_id", id).Info("Automation rule added")
	e.publish(EventRuleChanged, map[string]string{"rule_id": id, "change": "added"})
	return id, nil
}

// UpdateRule merges a partial update into an existing rule
func (e *Engine) UpdateRule(id string, patch RulePatch) (*Rule, error) {
	rule, err := e.store.Update(id, patch)
	if err != nil {
		return nil, err
	}
	e.warnUnknownMetrics(id, rule.Conditions)
	e.logger.WithField("rule_id", id).Info("Automation rule updated")
	e.publish(EventRuleChanged, map[string]string{"rule_id": id, "change": "updated"})
	return rule, nil
}

// DeleteRule removes a rule
func (e *Engine) DeleteRule(id string) error {
	if err := e.store.Remove(id); err != nil {
		return err
	}
	e.logger.WithField("rule_id", id).Info("Automation rule deleted")
	e.publish(EventRuleChanged, map[string]string{"rule_id": id, "change": "deleted"})
	return nil
}

// SetRuleEnabled enables or disables a rule
func (e *Engine) SetRuleEnabled(id string, enabled bool) error {
	if err := e.store.SetEnabled(id, enabled); err != nil {
		return err
	}
	change := "disabled"
	if enabled {
		change = "enabled"
	}
	e.publish(EventRuleChanged, map[string]string{"rule_id": id, "change": change})
	return nil
}

// LoadRules adds a batch of rules, continuing past individual failures
func (e *Engine) LoadRules(rules []*Rule) (int, error) {
	var (
		loaded int
		errs   []error
	)
	for i, rule := range rules {
		if _, err := e.AddRule(rule); err != nil {
			name := ""
			if rule != nil {
				name = rule.Name
			}
			errs = append(errs, fmt.Errorf("rule %d (%s): %w", i, name, err))
			continue
		}
		loaded++
	}
	return loaded, errors.Join(errs...)
}

// GetHistory returns the most recent history entries, newest first
func (e *Engine) GetHistory() []HistoryEntry {
	return e.history.Recent()
}

// QueryHistory returns the most recent entries matching the filter, newest first
func (e *Engine) QueryHistory(filter HistoryFilter) []HistoryEntry {
	return e.history.Query(filter)
}

// Evaluator exposes the rule evaluator for dry runs
func (e *Engine) Evaluator() *RuleEvaluator {
	return e.evaluator
}

// Statistics returns a snapshot of engine counters
func (e *Engine) Statistics() EngineStatistics {
	total, enabled := e.store.Counts()

	e.stats.mu.RLock()
	defer e.stats.mu.RUnlock()

	return EngineStatistics{
		TotalRules:        total,
		EnabledRules:      enabled,
		Running:           e.scheduler.IsRunning(),
		Interval:          e.scheduler.Interval().String(),
		NextRun:           e.scheduler.NextRun(),
		Cycles:            e.stats.cycles,
		FailedCycles:      e.stats.failedCycles,
		FiredPairs:        e.stats.firedPairs,
		SuccessfulActions: e.stats.successfulActions,
		FailedActions:     e.stats.failedActions,
		HistorySize:       e.history.Len(),
		LastCycleAt:       e.stats.lastCycleAt,
		LastCycleDuration: e.stats.lastCycleDuration,
	}
}

func (e *Engine) warnUnknownMetrics(id string, conditions []Condition) {
	for _, cond := range conditions {
		if !e.evaluator.conditions.KnownMetric(cond.Metric) {
			e.logger.WithFields(logrus.Fields{
				"rule_id": id,
				"metric":  cond.Metric,
			}).Warn("Rule references an unknown metric; the condition will never match")
		}
	}
}
