package automation

import (
	"fmt"
	"time"
)

// RuleType categorizes a rule for the UI
type RuleType string

const (
	RuleTypeBudget   RuleType = "budget"
	RuleTypePause    RuleType = "pause"
	RuleTypeBid      RuleType = "bid"
	RuleTypeCreative RuleType = "creative"
)

// Operator is a numeric comparison
type Operator string

const (
	OperatorGreaterThan Operator = "gt"
	OperatorLessThan    Operator = "lt"
	OperatorEqual       Operator = "eq"
)

// Condition compares a campaign metric with a value.
// TimeframeHours is descriptive metadata shown by the UI; metric lookup always uses the
// current snapshot.
type Condition struct {
	Metric         string   `json:"metric" yaml:"metric"`
	Operator       Operator `json:"operator" yaml:"operator"`
	Value          float64  `json:"value" yaml:"value"`
	TimeframeHours uint     `json:"timeframe_hours,omitempty" yaml:"timeframe_hours,omitempty"`
}

// Validate checks the condition is structurally valid
func (c Condition) Validate() error {
	if c.Metric == "" {
		return fmt.Errorf("metric is required")
	}
	switch c.Operator {
	case OperatorGreaterThan, OperatorLessThan, OperatorEqual:
	default:
		return fmt.Errorf("invalid operator %q", c.Operator)
	}
	if !isFinite(c.Value) {
		return fmt.Errorf("value must be a finite number")
	}
	return nil
}

// Rule is a named, toggleable condition/action pair evaluated once per cycle per campaign
type Rule struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	Description   string      `json:"description,omitempty"`
	Type          RuleType    `json:"type"`
	Enabled       bool        `json:"enabled"`
	Conditions    []Condition `json:"conditions"`
	Actions       ActionList  `json:"actions"`
	LastTriggered *time.Time  `json:"last_triggered,omitempty"`
	TriggerCount  uint64      `json:"trigger_count"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// Validate performs structural validation of the rule. The id is not checked here
// because the store assigns one when it is empty.
func (r *Rule) Validate() error {
	verr := &ValidationError{}

	if r.Name == "" {
		verr.add("name", "Rule name is required")
	}

	switch r.Type {
	case RuleTypeBudget, RuleTypePause, RuleTypeBid, RuleTypeCreative:
	default:
		verr.add("type", "Invalid rule type %q", r.Type)
	}

	if len(r.Conditions) == 0 {
		verr.add("conditions", "At least one condition is required")
	}
	for i, cond := range r.Conditions {
		if err := cond.Validate(); err != nil {
			verr.add(fmt.Sprintf("conditions[%d]", i), "%s", err.Error())
		}
	}

	if len(r.Actions) == 0 {
		verr.add("actions", "At least one action is required")
	}
	for i, action := range r.Actions {
		if action == nil {
			verr.add(fmt.Sprintf("actions[%d]", i), "action is required")
			continue
		}
		if err := action.Validate(); err != nil {
			verr.add(fmt.Sprintf("actions[%d]", i), "%s", err.Error())
		}
	}

	return verr.orNil()
}

// Clone creates a deep copy of the rule
func (r *Rule) Clone() *Rule {
	clone := *r
	clone.Conditions = append([]Condition(nil), r.Conditions...)
	clone.Actions = make(ActionList, 0, len(r.Actions))
	for _, a := range r.Actions {
		if alert, ok := a.(SendAlert); ok {
			params := make(map[string]interface{}, len(alert.Parameters))
			for k, v := range alert.Parameters {
				params[k] = v
			}
			a = SendAlert{Parameters: params}
		}
		clone.Actions = append(clone.Actions, a)
	}
	if r.LastTriggered != nil {
		t := *r.LastTriggered
		clone.LastTriggered = &t
	}
	return &clone
}

// RulePatch is a shallow partial update. Nil fields are left unchanged.
type RulePatch struct {
	Name        *string      `json:"name,omitempty"`
	Description *string      `json:"description,omitempty"`
	Type        *RuleType    `json:"type,omitempty"`
	Enabled     *bool        `json:"enabled,omitempty"`
	Conditions  *[]Condition `json:"conditions,omitempty"`
	Actions     *ActionList  `json:"actions,omitempty"`
}

// Apply merges the patch into the rule
func (p RulePatch) Apply(r *Rule) {
	if p.Name != nil {
		r.Name = *p.Name
	}
	if p.Description != nil {
		r.Description = *p.Description
	}
	if p.Type != nil {
		r.Type = *p.Type
	}
	if p.Enabled != nil {
		r.Enabled = *p.Enabled
	}
	if p.Conditions != nil {
		r.Conditions = append([]Condition(nil), (*p.Conditions)...)
	}
	if p.Actions != nil {
		r.Actions = append(ActionList(nil), (*p.Actions)...)
	}
}
