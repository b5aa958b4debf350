package automation

import (
	"math"

	"github.com/frostdev-ops/adpilot-backend-go/internal/core/campaigns"
)

// Built-in metric names
const (
	MetricCTR               = "ctr"
	MetricCTRDecline        = "ctr_decline"
	MetricBudgetRemaining   = "budget_remaining"
	MetricCostPerConversion = "cost_per_conversion"
)

type metricFunc func(c *campaigns.Campaign) (float64, bool)

var builtinMetrics = map[string]metricFunc{
	MetricCTR: func(c *campaigns.Campaign) (float64, bool) {
		return c.CurrentCTR(), true
	},
	MetricCTRDecline: func(c *campaigns.Campaign) (float64, bool) {
		if c.CTR == 0 {
			return 0, false
		}
		return math.Abs((c.CurrentCTR() - c.CTR) / c.CTR * 100), true
	},
	MetricBudgetRemaining: func(c *campaigns.Campaign) (float64, bool) {
		return c.RemainingBudget(), true
	},
	MetricCostPerConversion: func(c *campaigns.Campaign) (float64, bool) {
		return c.CostPerConversion()
	},
}

// equalityEpsilon is the relative tolerance used by the eq operator
const equalityEpsilon = 1e-9

// ConditionEvaluator resolves metrics from a campaign snapshot and applies operators.
// It never returns an error: unknown or unavailable metrics make the condition false.
type ConditionEvaluator struct {
	derived *DerivedMetrics
}

// NewConditionEvaluator creates an evaluator; derived may be nil
func NewConditionEvaluator(derived *DerivedMetrics) *ConditionEvaluator {
	return &ConditionEvaluator{derived: derived}
}

// KnownMetric reports whether name resolves to a built-in or derived metric
func (ce *ConditionEvaluator) KnownMetric(name string) bool {
	if _, ok := builtinMetrics[name]; ok {
		return true
	}
	if ce.derived == nil {
		return false
	}
	for _, n := range ce.derived.Names() {
		if n == name {
			return true
		}
	}
	return false
}

// ResolveMetric returns the value of a named metric for the campaign
func (ce *ConditionEvaluator) ResolveMetric(name string, c *campaigns.Campaign) (float64, bool) {
	if fn, ok := builtinMetrics[name]; ok {
		return fn(c)
	}
	return ce.derived.Value(name, c)
}

// Evaluate applies the condition to the campaign
func (ce *ConditionEvaluator) Evaluate(cond Condition, c *campaigns.Campaign) bool {
	actual, ok := ce.ResolveMetric(cond.Metric, c)
	if !ok || math.IsNaN(actual) {
		return false
	}
	return compare(actual, cond.Operator, cond.Value)
}

func compare(actual float64, op Operator, expected float64) bool {
	switch op {
	case OperatorGreaterThan:
		return actual > expected
	case OperatorLessThan:
		return actual < expected
	case OperatorEqual:
		return approxEqual(actual, expected)
	default:
		return false
	}
}

func approxEqual(a, b float64) bool {
	if a == b {
		return true
	}
	if math.IsInf(a, 0) || math.IsInf(b, 0) {
		return false
	}
	scale := math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
	return math.Abs(a-b) <= equalityEpsilon*scale
}
