package automation

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"testing"
	"time"

	"github.com/frostdev-ops/adpilot-backend-go/internal/core/campaigns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pauseRule(name string, conditions ...Condition) *Rule {
	return &Rule{
		Name:       name,
		Type:       RuleTypePause,
		Enabled:    true,
		Conditions: conditions,
		Actions:    ActionList{PauseCampaign{}},
	}
}

func TestRule_Validate(t *testing.T) {
	valid := func() *Rule {
		return pauseRule("Low CTR", Condition{Metric: MetricCTR, Operator: OperatorLessThan, Value: 1})
	}

	tests := []struct {
		name    string
		mutate  func(r *Rule)
		field   string
		wantErr bool
	}{
		{name: "valid rule", mutate: func(r *Rule) {}},
		{name: "missing name", mutate: func(r *Rule) { r.Name = "" }, field: "name", wantErr: true},
		{name: "invalid type", mutate: func(r *Rule) { r.Type = "schedule" }, field: "type", wantErr: true},
		{name: "no conditions", mutate: func(r *Rule) { r.Conditions = nil }, field: "conditions", wantErr: true},
		{name: "bad operator", mutate: func(r *Rule) { r.Conditions[0].Operator = "gte" }, field: "conditions[0]", wantErr: true},
		{name: "empty metric", mutate: func(r *Rule) { r.Conditions[0].Metric = "" }, field: "conditions[0]", wantErr: true},
		{name: "no actions", mutate: func(r *Rule) { r.Actions = nil }, field: "actions", wantErr: true},
		{name: "nil action", mutate: func(r *Rule) { r.Actions = ActionList{nil} }, field: "actions[0]", wantErr: true},
		{name: "increase out of range", mutate: func(r *Rule) { r.Actions = ActionList{IncreaseBudget{Percentage: 1500}} }, field: "actions[0]", wantErr: true},
		{name: "decrease of 100 percent", mutate: func(r *Rule) { r.Actions = ActionList{DecreaseBudget{Percentage: 100}} }, field: "actions[0]", wantErr: true},
		{name: "unknown metric is structurally valid", mutate: func(r *Rule) { r.Conditions[0].Metric = "roas" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := valid()
			tt.mutate(rule)

			err := rule.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			fields := make([]string, 0, len(verr.Errors))
			for _, fe := range verr.Errors {
				fields = append(fields, fe.Field)
			}
			assert.Contains(t, fields, tt.field)
		})
	}
}

func TestRule_ValidateKeepsVerbsInMessages(t *testing.T) {
	rule := pauseRule("Verbs", Condition{Metric: MetricCTR, Operator: "%d", Value: 1})

	var verr *ValidationError
	require.ErrorAs(t, rule.Validate(), &verr)
	require.Len(t, verr.Errors, 1)
	assert.Equal(t, "conditions[0]", verr.Errors[0].Field)
	assert.Equal(t, `invalid operator "%d"`, verr.Errors[0].Message)
}

func TestRule_JSONRoundTrip(t *testing.T) {
	triggered := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	rule := &Rule{
		ID:      "rule-1",
		Name:    "Scale winners",
		Type:    RuleTypeBudget,
		Enabled: true,
		Conditions: []Condition{
			{Metric: MetricCTR, Operator: OperatorGreaterThan, Value: 3.5, TimeframeHours: 24},
			{Metric: MetricCostPerConversion, Operator: OperatorLessThan, Value: 20},
		},
		Actions: ActionList{
			IncreaseBudget{Percentage: 20},
			SendAlert{Parameters: map[string]interface{}{"message": "scaled", "severity": "info"}},
			EnableBackupCreative{},
		},
		LastTriggered: &triggered,
		TriggerCount:  4,
		CreatedAt:     triggered.Add(-time.Hour),
		UpdatedAt:     triggered,
	}

	data, err := json.Marshal(rule)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"increase_budget"`)
	assert.Contains(t, string(data), `"parameters":{"percentage":20}`)

	var decoded Rule
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, rule, &decoded)
}

func TestActionList_UnmarshalRejectsUnknownType(t *testing.T) {
	var list ActionList
	err := json.Unmarshal([]byte(`[{"type":"delete_account"}]`), &list)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported action type")

	err = json.Unmarshal([]byte(`[{"type":"increase_budget","parameters":{}}]`), &list)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "percentage")
}

func TestRule_CloneIsDeep(t *testing.T) {
	rule := pauseRule("Alert", Condition{Metric: MetricCTR, Operator: OperatorLessThan, Value: 1})
	rule.Actions = ActionList{SendAlert{Parameters: map[string]interface{}{"message": "a"}}}

	clone := rule.Clone()
	clone.Conditions[0].Value = 5
	clone.Actions[0].(SendAlert).Parameters["message"] = "b"

	assert.Equal(t, 1.0, rule.Conditions[0].Value)
	assert.Equal(t, "a", rule.Actions[0].(SendAlert).Message())
}

func TestConditionEvaluator_Metrics(t *testing.T) {
	ce := NewConditionEvaluator(nil)

	campaign := &campaigns.Campaign{
		ID:          "c1",
		CTR:         2.0,
		Spend:       100,
		TotalBudget: 500,
		Conversions: 4,
		Last7Days:   &campaigns.WindowMetrics{Days: 7, Impressions: 1000, CTR: 1.5},
	}

	value, ok := ce.ResolveMetric(MetricCTR, campaign)
	require.True(t, ok)
	assert.Equal(t, 1.5, value)

	value, ok = ce.ResolveMetric(MetricCTRDecline, campaign)
	require.True(t, ok)
	assert.InDelta(t, 25.0, value, 1e-9)

	value, ok = ce.ResolveMetric(MetricBudgetRemaining, campaign)
	require.True(t, ok)
	assert.Equal(t, 400.0, value)

	value, ok = ce.ResolveMetric(MetricCostPerConversion, campaign)
	require.True(t, ok)
	assert.Equal(t, 25.0, value)

	_, ok = ce.ResolveMetric("roas", campaign)
	assert.False(t, ok)
}

func TestConditionEvaluator_Evaluate(t *testing.T) {
	ce := NewConditionEvaluator(nil)

	tests := []struct {
		name     string
		campaign campaigns.Campaign
		cond     Condition
		expected bool
	}{
		{
			name:     "lt on lifetime ctr",
			campaign: campaigns.Campaign{CTR: 0.8},
			cond:     Condition{Metric: MetricCTR, Operator: OperatorLessThan, Value: 1.0},
			expected: true,
		},
		{
			name:     "gt is strict",
			campaign: campaigns.Campaign{CTR: 1.0},
			cond:     Condition{Metric: MetricCTR, Operator: OperatorGreaterThan, Value: 1.0},
			expected: false,
		},
		{
			name:     "eq tolerates rounding",
			campaign: campaigns.Campaign{CTR: 0.3 * (1 + 1e-12)},
			cond:     Condition{Metric: MetricCTR, Operator: OperatorEqual, Value: 0.3},
			expected: true,
		},
		{
			name:     "eq rejects different values",
			campaign: campaigns.Campaign{CTR: 0.31},
			cond:     Condition{Metric: MetricCTR, Operator: OperatorEqual, Value: 0.3},
			expected: false,
		},
		{
			name:     "unknown metric fails closed",
			campaign: campaigns.Campaign{CTR: 0.8},
			cond:     Condition{Metric: "roas", Operator: OperatorLessThan, Value: 100},
			expected: false,
		},
		{
			name:     "spend without conversions is infinitely expensive",
			campaign: campaigns.Campaign{Spend: 50},
			cond:     Condition{Metric: MetricCostPerConversion, Operator: OperatorGreaterThan, Value: 1000},
			expected: true,
		},
		{
			name:     "no spend and no conversions is unavailable",
			campaign: campaigns.Campaign{},
			cond:     Condition{Metric: MetricCostPerConversion, Operator: OperatorLessThan, Value: 1000},
			expected: false,
		},
		{
			name:     "ctr decline unavailable without lifetime ctr",
			campaign: campaigns.Campaign{},
			cond:     Condition{Metric: MetricCTRDecline, Operator: OperatorLessThan, Value: 10},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ce.Evaluate(tt.cond, &tt.campaign))
		})
	}
}

func TestApproxEqual_Infinity(t *testing.T) {
	assert.True(t, approxEqual(math.Inf(1), math.Inf(1)))
	assert.False(t, approxEqual(math.Inf(1), 1e308))
}

func TestDerivedMetrics(t *testing.T) {
	derived, err := NewDerivedMetrics(map[string]string{
		"cpc": "campaign.spend / campaign.clicks",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"cpc"}, derived.Names())

	ce := NewConditionEvaluator(derived)
	assert.True(t, ce.KnownMetric("cpc"))

	campaign := &campaigns.Campaign{Spend: 100, Clicks: 50}
	value, ok := ce.ResolveMetric("cpc", campaign)
	require.True(t, ok)
	assert.InDelta(t, 2.0, value, 1e-9)
	assert.True(t, ce.Evaluate(Condition{Metric: "cpc", Operator: OperatorGreaterThan, Value: 1.5}, campaign))

	t.Run("shadowing a built-in is rejected", func(t *testing.T) {
		assert.Error(t, derived.Define(MetricCTR, "1.0"))
	})

	t.Run("invalid expression is rejected", func(t *testing.T) {
		assert.Error(t, derived.Define("broken", "campaign.spend +"))
	})

	t.Run("non numeric result is unavailable", func(t *testing.T) {
		require.NoError(t, derived.Define("label", "campaign.name"))
		_, ok := derived.Value("label", &campaigns.Campaign{Name: "x"})
		assert.False(t, ok)
	})
}

func TestRuleEvaluator_AllConditionsMustHold(t *testing.T) {
	re := NewRuleEvaluator(nil)

	rule := pauseRule("Both",
		Condition{Metric: MetricCTR, Operator: OperatorLessThan, Value: 1.0},
		Condition{Metric: MetricBudgetRemaining, Operator: OperatorGreaterThan, Value: 100},
	)

	list := []campaigns.Campaign{
		{ID: "both", CTR: 0.5, TotalBudget: 1000, Spend: 100},
		{ID: "ctr-only", CTR: 0.5, TotalBudget: 150, Spend: 100},
		{ID: "budget-only", CTR: 3.0, TotalBudget: 1000, Spend: 100},
	}

	matches := re.Evaluate([]*Rule{rule}, list)
	require.Len(t, matches, 1)
	assert.Equal(t, "both", matches[0].Campaign.ID)

	rule.Enabled = false
	assert.Empty(t, re.Evaluate([]*Rule{rule}, list))
	assert.False(t, re.Matches(rule, &list[0]))
}

func TestRuleStore_CRUD(t *testing.T) {
	store := NewRuleStore()

	id, err := store.Add(pauseRule("Low CTR", Condition{Metric: MetricCTR, Operator: OperatorLessThan, Value: 1}))
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	rule, err := store.Get(id)
	require.NoError(t, err)
	assert.False(t, rule.CreatedAt.IsZero())

	t.Run("duplicate id conflicts", func(t *testing.T) {
		dup := pauseRule("Dup", Condition{Metric: MetricCTR, Operator: OperatorLessThan, Value: 1})
		dup.ID = id
		_, err := store.Add(dup)
		assert.True(t, errors.Is(err, ErrRuleExists))
	})

	t.Run("invalid rule is rejected", func(t *testing.T) {
		_, err := store.Add(&Rule{Name: "bad"})
		var verr *ValidationError
		assert.ErrorAs(t, err, &verr)
	})

	t.Run("update merges and keeps counters", func(t *testing.T) {
		store.RecordTrigger(id, time.Now())
		name := "Renamed"
		updated, err := store.Update(id, RulePatch{Name: &name})
		require.NoError(t, err)
		assert.Equal(t, "Renamed", updated.Name)
		assert.Equal(t, uint64(1), updated.TriggerCount)
		assert.Len(t, updated.Conditions, 1)
	})

	t.Run("update rejecting merged rule leaves it unchanged", func(t *testing.T) {
		empty := []Condition{}
		_, err := store.Update(id, RulePatch{Conditions: &empty})
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)

		rule, err := store.Get(id)
		require.NoError(t, err)
		assert.Len(t, rule.Conditions, 1)
	})

	t.Run("unknown id is not found", func(t *testing.T) {
		name := "x"
		_, err := store.Update("missing", RulePatch{Name: &name})
		assert.ErrorIs(t, err, ErrRuleNotFound)
		assert.ErrorIs(t, store.Remove("missing"), ErrRuleNotFound)
		assert.ErrorIs(t, store.SetEnabled("missing", true), ErrRuleNotFound)
	})

	t.Run("returned rules are copies", func(t *testing.T) {
		rule, err := store.Get(id)
		require.NoError(t, err)
		rule.Name = "mutated"

		again, err := store.Get(id)
		require.NoError(t, err)
		assert.Equal(t, "Renamed", again.Name)
	})

	require.NoError(t, store.SetEnabled(id, false))
	assert.Empty(t, store.Enabled())
	total, enabled := store.Counts()
	assert.Equal(t, 1, total)
	assert.Equal(t, 0, enabled)

	require.NoError(t, store.Remove(id))
	assert.Empty(t, store.List())
	store.RecordTrigger(id, time.Now())
}

func TestHistoryLog_NewestFirstAndBounded(t *testing.T) {
	log := NewHistoryLog(0, 0)

	for i := 0; i < 60; i++ {
		log.Append(HistoryEntry{RuleID: "r", CampaignID: string(rune('a' + i%3)), Action: ActionPauseCampaign, Success: true, Details: strconv.Itoa(i)})
	}

	recent := log.Recent()
	require.Len(t, recent, DefaultHistoryLimit)
	assert.Equal(t, "59", recent[0].Details)
	assert.Equal(t, "10", recent[49].Details)
	for i := 1; i < len(recent); i++ {
		assert.False(t, recent[i].Timestamp.After(recent[i-1].Timestamp))
	}
	assert.Equal(t, 60, log.Len())

	filtered := log.Query(HistoryFilter{CampaignID: "a"})
	for _, e := range filtered {
		assert.Equal(t, "a", e.CampaignID)
	}
	assert.Len(t, filtered, 20)
}

func TestHistoryLog_RetentionAndMonotonicTimestamps(t *testing.T) {
	log := NewHistoryLog(5, 0)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := []time.Time{base, base.Add(time.Second), base}
	i := 0
	log.now = func() time.Time {
		ts := clock[i%len(clock)]
		i++
		return ts
	}

	for n := 0; n < 8; n++ {
		log.Append(HistoryEntry{RuleID: "r"})
	}

	assert.Equal(t, 5, log.Len())
	recent := log.Recent()
	for n := 1; n < len(recent); n++ {
		assert.False(t, recent[n].Timestamp.After(recent[n-1].Timestamp))
	}
}

func TestHistoryLog_RingOverwritesOldest(t *testing.T) {
	log := NewHistoryLog(3, 2)

	for i := 0; i < 7; i++ {
		log.Append(HistoryEntry{RuleID: "r", CampaignID: string(rune('a' + i%2)), Details: strconv.Itoa(i)})
	}

	assert.Equal(t, 3, log.Len())
	require.Len(t, log.buf, 3, "storage stays at the retention size")

	recent := log.Recent()
	require.Len(t, recent, 2)
	assert.Equal(t, "6", recent[0].Details)
	assert.Equal(t, "5", recent[1].Details)

	// entries 4 and 6 are on campaign a; 2 was overwritten
	filtered := log.Query(HistoryFilter{CampaignID: "a"})
	require.Len(t, filtered, 2)
	assert.Equal(t, "6", filtered[0].Details)
	assert.Equal(t, "4", filtered[1].Details)
}

func TestAdjustBudget(t *testing.T) {
	assert.Equal(t, 120.0, AdjustBudget(100, 20))
	assert.Equal(t, 33.34, AdjustBudget(33.333, 0.01))
	assert.Equal(t, 75.0, AdjustBudget(100, -25))
	assert.Equal(t, 10.37, AdjustBudget(9.99, 3.8))
}

func TestRuleParser_ParseRuleSet(t *testing.T) {
	doc := []byte(`
rules:
  - id: low-ctr
    name: Pause low CTR
    type: pause
    conditions:
      - metric: ctr
        operator: lt
        value: 1.0
        timeframe_hours: 24
    actions:
      - type: pause_campaign
      - type: send_alert
        parameters:
          message: paused for low CTR
          severity: critical
  - name: Scale
    type: budget
    enabled: false
    conditions:
      - metric: ctr
        operator: gt
        value: 3.5
    actions:
      - type: increase_budget
        parameters:
          percentage: 15
`)

	parser := NewRuleParser()
	rules, err := parser.ParseRuleSet(doc, FormatYAML)
	require.NoError(t, err)
	require.Len(t, rules, 2)

	assert.Equal(t, "low-ctr", rules[0].ID)
	assert.True(t, rules[0].Enabled)
	assert.Equal(t, uint(24), rules[0].Conditions[0].TimeframeHours)
	require.Len(t, rules[0].Actions, 2)
	assert.Equal(t, PauseCampaign{}, rules[0].Actions[0])
	assert.Equal(t, "critical", rules[0].Actions[1].(SendAlert).Severity())

	assert.False(t, rules[1].Enabled)
	assert.Equal(t, IncreaseBudget{Percentage: 15}, rules[1].Actions[0])

	_, problems, err := parser.ValidateRuleSet(doc, FormatYAML)
	require.NoError(t, err)
	assert.Empty(t, problems)
}

func TestRuleParser_JSONSingleRule(t *testing.T) {
	parser := NewRuleParser()
	rule, err := parser.ParseRule([]byte(`{"name":"x","type":"bid","conditions":[{"metric":"ctr","operator":"eq","value":2}],"actions":[{"type":"decrease_budget","parameters":{"percentage":"10"}}]}`), FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, DecreaseBudget{Percentage: 10}, rule.Actions[0])
	assert.NoError(t, rule.Validate())

	_, err = parser.ParseRule([]byte(`{"name":"x","actions":[{"type":"explode"}]}`), FormatJSON)
	assert.Error(t, err)

	assert.Equal(t, FormatJSON, FormatFromPath("rules.JSON"))
	assert.Equal(t, FormatYAML, FormatFromPath("rules.yml"))
}
