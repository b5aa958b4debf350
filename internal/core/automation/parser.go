package automation

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format is a rule document encoding
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatFromPath picks a format from a file extension, defaulting to YAML
func FormatFromPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// RuleParser handles parsing rules from YAML and JSON documents. A document holds a
// single rule, a list of rules, or a {rules: [...]} set. Rules default to enabled.
type RuleParser struct{}

// NewRuleParser creates a new rule parser
func NewRuleParser() *RuleParser {
	return &RuleParser{}
}

// ParseRule parses a single rule
func (rp *RuleParser) ParseRule(data []byte, format Format) (*Rule, error) {
	raw, err := rp.decode(data, format)
	if err != nil {
		return nil, err
	}
	obj, ok := raw.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("rule document must be an object")
	}
	return rp.parseFromMap(obj)
}

// ParseRuleSet parses every rule in the document
func (rp *RuleParser) ParseRuleSet(data []byte, format Format) ([]*Rule, error) {
	raw, err := rp.decode(data, format)
	if err != nil {
		return nil, err
	}

	var items []interface{}
	switch v := raw.(type) {
	case []interface{}:
		items = v
	case map[string]interface{}:
		if list, ok := v["rules"]; ok {
			items, ok = list.([]interface{})
			if !ok {
				return nil, fmt.Errorf("rules must be a list")
			}
		} else {
			items = []interface{}{v}
		}
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported rule document")
	}

	rules := make([]*Rule, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("rules[%d]: rule must be an object", i)
		}
		rule, err := rp.parseFromMap(obj)
		if err != nil {
			return nil, fmt.Errorf("rules[%d]: %w", i, err)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// ValidateRuleSet parses a document and validates every rule in it. The returned map is
// keyed by rule index; a parse failure is returned as the error.
func (rp *RuleParser) ValidateRuleSet(data []byte, format Format) ([]*Rule, map[int]error, error) {
	rules, err := rp.ParseRuleSet(data, format)
	if err != nil {
		return nil, nil, err
	}
	problems := make(map[int]error)
	for i, rule := range rules {
		if verr := rule.Validate(); verr != nil {
			problems[i] = verr
		}
	}
	return rules, problems, nil
}

// SerializeToYAML encodes a rule using the same field names as its JSON form
func (rp *RuleParser) SerializeToYAML(rule *Rule) ([]byte, error) {
	data, err := json.Marshal(rule)
	if err != nil {
		return nil, err
	}
	var generic map[string]interface{}
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil, err
	}
	return yaml.Marshal(generic)
}

func (rp *RuleParser) decode(data []byte, format Format) (interface{}, error) {
	var raw interface{}
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
	case FormatYAML, "":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
	return raw, nil
}

// parseFromMap re-encodes a generic document as JSON so the typed action decoding
// applies to both formats
func (rp *RuleParser) parseFromMap(obj map[string]interface{}) (*Rule, error) {
	if _, ok := obj["enabled"]; !ok {
		obj["enabled"] = true
	}

	data, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to encode rule: %w", err)
	}

	var rule Rule
	if err := json.Unmarshal(data, &rule); err != nil {
		return nil, fmt.Errorf("failed to decode rule: %w", err)
	}
	return &rule, nil
}
