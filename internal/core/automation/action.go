package automation

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// ActionKind is the wire name of an action
type ActionKind string

const (
	ActionPauseCampaign        ActionKind = "pause_campaign"
	ActionIncreaseBudget       ActionKind = "increase_budget"
	ActionDecreaseBudget       ActionKind = "decrease_budget"
	ActionEnableBackupCreative ActionKind = "enable_backup_creative"
	ActionSendAlert            ActionKind = "send_alert"
)

// Action is a remediation executed when a rule fires. The set of implementations is
// closed; executors switch over the concrete types.
type Action interface {
	Kind() ActionKind
	Validate() error
	parameters() map[string]interface{}
}

// PauseCampaign pauses the campaign on the ad platform
type PauseCampaign struct{}

// IncreaseBudget raises the daily budget by Percentage percent
type IncreaseBudget struct {
	Percentage float64
}

// DecreaseBudget lowers the daily budget by Percentage percent
type DecreaseBudget struct {
	Percentage float64
}

// EnableBackupCreative switches the campaign to its backup creative
type EnableBackupCreative struct{}

// SendAlert forwards a structured alert to the notification sink.
// Parameters are free-form; "message" and "severity" are used when present.
type SendAlert struct {
	Parameters map[string]interface{}
}

func (PauseCampaign) Kind() ActionKind        { return ActionPauseCampaign }
func (IncreaseBudget) Kind() ActionKind       { return ActionIncreaseBudget }
func (DecreaseBudget) Kind() ActionKind       { return ActionDecreaseBudget }
func (EnableBackupCreative) Kind() ActionKind { return ActionEnableBackupCreative }
func (SendAlert) Kind() ActionKind            { return ActionSendAlert }

func (PauseCampaign) Validate() error        { return nil }
func (EnableBackupCreative) Validate() error { return nil }
func (SendAlert) Validate() error            { return nil }

func (a IncreaseBudget) Validate() error {
	if !isFinite(a.Percentage) || a.Percentage <= 0 || a.Percentage > 1000 {
		return fmt.Errorf("percentage must be in (0, 1000], got %v", a.Percentage)
	}
	return nil
}

func (a DecreaseBudget) Validate() error {
	if !isFinite(a.Percentage) || a.Percentage <= 0 || a.Percentage >= 100 {
		return fmt.Errorf("percentage must be in (0, 100), got %v", a.Percentage)
	}
	return nil
}

func (PauseCampaign) parameters() map[string]interface{}        { return nil }
func (EnableBackupCreative) parameters() map[string]interface{} { return nil }

func (a IncreaseBudget) parameters() map[string]interface{} {
	return map[string]interface{}{"percentage": a.Percentage}
}

func (a DecreaseBudget) parameters() map[string]interface{} {
	return map[string]interface{}{"percentage": a.Percentage}
}

func (a SendAlert) parameters() map[string]interface{} {
	return a.Parameters
}

// Message returns the alert message parameter
func (a SendAlert) Message() string {
	if msg, ok := a.Parameters["message"].(string); ok {
		return msg
	}
	return ""
}

// Severity returns the alert severity parameter, defaulting to warning
func (a SendAlert) Severity() string {
	if sev, ok := a.Parameters["severity"].(string); ok && sev != "" {
		return sev
	}
	return "warning"
}

// actionEnvelope is the wire form of an action
type actionEnvelope struct {
	Type       ActionKind             `json:"type"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}

// ActionList is an ordered list of actions with a {type, parameters} JSON encoding
type ActionList []Action

// MarshalJSON implements json.Marshaler
func (l ActionList) MarshalJSON() ([]byte, error) {
	out := make([]actionEnvelope, 0, len(l))
	for _, a := range l {
		if a == nil {
			return nil, fmt.Errorf("nil action")
		}
		out = append(out, actionEnvelope{Type: a.Kind(), Parameters: a.parameters()})
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler
func (l *ActionList) UnmarshalJSON(data []byte) error {
	var raw []actionEnvelope
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	list := make(ActionList, 0, len(raw))
	for i, env := range raw {
		action, err := DecodeAction(env.Type, env.Parameters)
		if err != nil {
			return fmt.Errorf("actions[%d]: %w", i, err)
		}
		list = append(list, action)
	}
	*l = list
	return nil
}

// DecodeAction builds a typed action from its wire type and parameters
func DecodeAction(kind ActionKind, params map[string]interface{}) (Action, error) {
	switch kind {
	case ActionPauseCampaign:
		return PauseCampaign{}, nil
	case ActionEnableBackupCreative:
		return EnableBackupCreative{}, nil
	case ActionIncreaseBudget:
		pct, err := percentageParam(params)
		if err != nil {
			return nil, err
		}
		return IncreaseBudget{Percentage: pct}, nil
	case ActionDecreaseBudget:
		pct, err := percentageParam(params)
		if err != nil {
			return nil, err
		}
		return DecreaseBudget{Percentage: pct}, nil
	case ActionSendAlert:
		copied := make(map[string]interface{}, len(params))
		for k, v := range params {
			copied[k] = v
		}
		return SendAlert{Parameters: copied}, nil
	case "":
		return nil, fmt.Errorf("action type is required")
	default:
		return nil, fmt.Errorf("unsupported action type: %s", kind)
	}
}

func percentageParam(params map[string]interface{}) (float64, error) {
	raw, ok := params["percentage"]
	if !ok {
		return 0, fmt.Errorf("percentage param required")
	}
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		return v.Float64()
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("percentage must be numeric: %q", v)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("percentage must be numeric, got %T", raw)
	}
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
