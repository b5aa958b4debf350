package automation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/frostdev-ops/adpilot-backend-go/internal/core/campaigns"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultActionTimeout bounds a single call to the ad platform or notifier
const DefaultActionTimeout = 30 * time.Second

var errNoNotifier = errors.New("no notification sink configured")

// Alert is the structured payload of a send_alert action
type Alert struct {
	RuleID       string                 `json:"rule_id"`
	RuleName     string                 `json:"rule_name"`
	CampaignID   string                 `json:"campaign_id"`
	CampaignName string                 `json:"campaign_name"`
	Severity     string                 `json:"severity"`
	Message      string                 `json:"message"`
	Parameters   map[string]interface{} `json:"parameters,omitempty"`
}

// Notifier is the external notification sink used by send_alert
type Notifier interface {
	Notify(ctx context.Context, alert Alert) error
}

// Recorder receives execution measurements
type Recorder interface {
	RecordAction(action string, success bool, duration time.Duration)
	RecordCycle(duration time.Duration, campaigns, fired int, err error)
}

type nopRecorder struct{}

func (nopRecorder) RecordAction(string, bool, time.Duration)     {}
func (nopRecorder) RecordCycle(time.Duration, int, int, error) {}

// ActionExecutor performs rule actions against the ad platform and records every attempt
type ActionExecutor struct {
	platform campaigns.AdPlatform
	notifier Notifier
	history  *HistoryLog
	store    *RuleStore
	timeout  time.Duration
	recorder Recorder
	tracer   trace.Tracer
	logger   *logrus.Logger
}

// NewActionExecutor creates an executor. notifier and recorder may be nil.
func NewActionExecutor(platform campaigns.AdPlatform, notifier Notifier, history *HistoryLog, store *RuleStore, timeout time.Duration, recorder Recorder, logger *logrus.Logger) *ActionExecutor {
	if timeout <= 0 {
		timeout = DefaultActionTimeout
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &ActionExecutor{
		platform: platform,
		notifier: notifier,
		history:  history,
		store:    store,
		timeout:  timeout,
		recorder: recorder,
		tracer:   otel.Tracer("github.com/frostdev-ops/adpilot-backend-go/automation"),
		logger:   logger,
	}
}

// Run executes every action of the rule against the campaign in order. Each action is
// independent: a failure is recorded and the remaining actions still run.
func (e *ActionExecutor) Run(ctx context.Context, rule *Rule, campaign campaigns.Campaign) []HistoryEntry {
	entries := make([]HistoryEntry, 0, len(rule.Actions))
	for _, action := range rule.Actions {
		entries = append(entries, e.runOne(ctx, rule, campaign, action))
	}
	return entries
}

func (e *ActionExecutor) runOne(ctx context.Context, rule *Rule, campaign campaigns.Campaign, action Action) HistoryEntry {
	kind := ActionKind("unknown")
	if action != nil {
		kind = action.Kind()
	}

	start := time.Now()
	details, err := e.execute(ctx, action, &campaign, rule)
	e.recorder.RecordAction(string(kind), err == nil, time.Since(start))

	entry := HistoryEntry{
		RuleID:     rule.ID,
		RuleName:   rule.Name,
		CampaignID: campaign.ID,
		Action:     kind,
		Success:    err == nil,
		Details:    details,
	}
	if err != nil {
		entry.Details = err.Error()
	}
	entry = e.history.Append(entry)

	fields := logrus.Fields{
		"rule_id":     rule.ID,
		"campaign_id": campaign.ID,
		"action":      kind,
	}
	if err != nil {
		e.logger.WithFields(fields).WithError(err).Warn("Automation action failed")
		return entry
	}

	if e.store != nil {
		e.store.RecordTrigger(rule.ID, entry.Timestamp)
	}
	e.logger.WithFields(fields).Info(details)
	return entry
}

// Execute performs a single action. Any failure is returned as *ExecutionError.
func (e *ActionExecutor) Execute(ctx context.Context, action Action, campaign *campaigns.Campaign, rule *Rule) error {
	_, err := e.execute(ctx, action, campaign, rule)
	return err
}

func (e *ActionExecutor) execute(ctx context.Context, action Action, campaign *campaigns.Campaign, rule *Rule) (string, error) {
	if action == nil {
		return "", &ExecutionError{Action: "unknown", CampaignID: campaign.ID, Err: errors.New("nil action")}
	}

	ctx, span := e.tracer.Start(ctx, "automation.action", trace.WithAttributes(
		attribute.String("action", string(action.Kind())),
		attribute.String("campaign.id", campaign.ID),
		attribute.String("rule.id", rule.ID),
	))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	details, err := e.dispatch(ctx, action, campaign, rule)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", &ExecutionError{Action: action.Kind(), CampaignID: campaign.ID, Err: err}
	}
	return details, nil
}

func (e *ActionExecutor) dispatch(ctx context.Context, action Action, campaign *campaigns.Campaign, rule *Rule) (string, error) {
	if err := action.Validate(); err != nil {
		return "", fmt.Errorf("invalid parameters: %w", err)
	}

	switch a := action.(type) {
	case PauseCampaign:
		if err := e.requirePlatform(); err != nil {
			return "", err
		}
		if err := e.platform.PauseCampaign(ctx, campaign.ID); err != nil {
			return "", err
		}
		return fmt.Sprintf("Campaign %s paused", campaign.ID), nil

	case IncreaseBudget:
		return e.changeBudget(ctx, campaign, a.Percentage)

	case DecreaseBudget:
		return e.changeBudget(ctx, campaign, -a.Percentage)

	case EnableBackupCreative:
		switcher, ok := e.platform.(campaigns.CreativeSwitcher)
		if !ok || switcher == nil {
			return fmt.Sprintf("Backup creative requested for campaign %s (no creative switcher configured)", campaign.ID), nil
		}
		if err := switcher.EnableBackupCreative(ctx, campaign.ID); err != nil {
			return "", err
		}
		return fmt.Sprintf("Backup creative enabled for campaign %s", campaign.ID), nil

	case SendAlert:
		if e.notifier == nil {
			return "", errNoNotifier
		}
		alert := Alert{
			RuleID:       rule.ID,
			RuleName:     rule.Name,
			CampaignID:   campaign.ID,
			CampaignName: campaign.Name,
			Severity:     a.Severity(),
			Message:      a.Message(),
			Parameters:   a.Parameters,
		}
		if alert.Message == "" {
			alert.Message = fmt.Sprintf("Rule %q fired for campaign %s", rule.Name, campaign.Name)
		}
		if err := e.notifier.Notify(ctx, alert); err != nil {
			return "", err
		}
		return fmt.Sprintf("Alert sent for campaign %s: %s", campaign.ID, alert.Message), nil

	default:
		return "", fmt.Errorf("unsupported action type: %s", action.Kind())
	}
}

func (e *ActionExecutor) changeBudget(ctx context.Context, campaign *campaigns.Campaign, pct float64) (string, error) {
	if err := e.requirePlatform(); err != nil {
		return "", err
	}

	newBudget := AdjustBudget(campaign.DailyBudget, pct)
	if err := e.platform.UpdateCampaignBudget(ctx, campaign.ID, newBudget); err != nil {
		return "", err
	}
	return fmt.Sprintf("Daily budget for campaign %s changed from %.2f to %.2f", campaign.ID, campaign.DailyBudget, newBudget), nil
}

func (e *ActionExecutor) requirePlatform() error {
	if e.platform == nil {
		return errors.New("no ad platform configured")
	}
	return nil
}

// AdjustBudget applies a signed percentage change to a budget and rounds to cents
func AdjustBudget(current, pct float64) float64 {
	factor := decimal.NewFromInt(1).Add(decimal.NewFromFloat(pct).Div(decimal.NewFromInt(100)))
	result, _ := decimal.NewFromFloat(current).Mul(factor).Round(2).Float64()
	return result
}
