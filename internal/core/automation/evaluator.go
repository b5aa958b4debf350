package automation

import (
	"github.com/frostdev-ops/adpilot-backend-go/internal/core/campaigns"
)

// Match is a rule that fired for a campaign
type Match struct {
	Rule     *Rule
	Campaign campaigns.Campaign
}

// RuleEvaluator decides which rules fire for which campaigns. It only reads.
type RuleEvaluator struct {
	conditions *ConditionEvaluator
}

// NewRuleEvaluator creates a rule evaluator
func NewRuleEvaluator(conditions *ConditionEvaluator) *RuleEvaluator {
	if conditions == nil {
		conditions = NewConditionEvaluator(nil)
	}
	return &RuleEvaluator{conditions: conditions}
}

// Matches reports whether every condition of the rule holds for the campaign.
// Disabled rules and rules without conditions never match.
func (re *RuleEvaluator) Matches(rule *Rule, c *campaigns.Campaign) bool {
	if rule == nil || !rule.Enabled || len(rule.Conditions) == 0 {
		return false
	}
	for _, cond := range rule.Conditions {
		if !re.conditions.Evaluate(cond, c) {
			return false
		}
	}
	return true
}

// Evaluate returns the fired (rule, campaign) pairs, rule-major in input order
func (re *RuleEvaluator) Evaluate(rules []*Rule, list []campaigns.Campaign) []Match {
	var matches []Match
	for _, rule := range rules {
		if rule == nil || !rule.Enabled {
			continue
		}
		for i := range list {
			if re.Matches(rule, &list[i]) {
				matches = append(matches, Match{Rule: rule, Campaign: list[i]})
			}
		}
	}
	return matches
}
