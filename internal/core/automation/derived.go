package automation

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/frostdev-ops/adpilot-backend-go/internal/core/campaigns"
	"github.com/google/cel-go/cel"
)

// derivedCostLimit bounds the work a single derived metric expression may do
const derivedCostLimit = 100000

// DerivedMetrics holds operator-defined metrics written as CEL expressions over the
// campaign snapshot, e.g. "campaign.spend / campaign.clicks". Each expression sees the
// snapshot's JSON fields under the "campaign" variable and must produce a number.
type DerivedMetrics struct {
	env      *cel.Env
	programs map[string]cel.Program
	mu       sync.RWMutex
}

// NewDerivedMetrics compiles the given name -> expression definitions
func NewDerivedMetrics(definitions map[string]string) (*DerivedMetrics, error) {
	env, err := cel.NewEnv(cel.Variable("campaign", cel.DynType))
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	dm := &DerivedMetrics{
		env:      env,
		programs: make(map[string]cel.Program, len(definitions)),
	}
	for name, expr := range definitions {
		if err := dm.Define(name, expr); err != nil {
			return nil, err
		}
	}
	return dm, nil
}

// Define compiles and registers a derived metric, replacing any previous definition
func (dm *DerivedMetrics) Define(name, expression string) error {
	if _, builtin := builtinMetrics[name]; builtin {
		return fmt.Errorf("derived metric %q shadows a built-in metric", name)
	}

	ast, issues := dm.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("derived metric %q: compile error: %w", name, issues.Err())
	}
	prog, err := dm.env.Program(ast, cel.CostLimit(derivedCostLimit))
	if err != nil {
		return fmt.Errorf("derived metric %q: program creation error: %w", name, err)
	}

	dm.mu.Lock()
	dm.programs[name] = prog
	dm.mu.Unlock()
	return nil
}

// Names returns the defined metric names in sorted order
func (dm *DerivedMetrics) Names() []string {
	dm.mu.RLock()
	defer dm.mu.RUnlock()

	names := make([]string, 0, len(dm.programs))
	for name := range dm.programs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Value evaluates a derived metric for the campaign. ok is false when the metric is
// unknown, evaluation fails, or the result is not numeric.
func (dm *DerivedMetrics) Value(name string, c *campaigns.Campaign) (float64, bool) {
	if dm == nil {
		return 0, false
	}
	dm.mu.RLock()
	prog, exists := dm.programs[name]
	dm.mu.RUnlock()
	if !exists {
		return 0, false
	}

	facts, err := campaignFacts(c)
	if err != nil {
		return 0, false
	}
	out, _, err := prog.Eval(map[string]interface{}{"campaign": facts})
	if err != nil {
		return 0, false
	}

	switch v := out.Value().(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case uint64:
		return float64(v), true
	default:
		return 0, false
	}
}

func campaignFacts(c *campaigns.Campaign) (map[string]interface{}, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	var facts map[string]interface{}
	if err := json.Unmarshal(data, &facts); err != nil {
		return nil, err
	}
	return facts, nil
}
