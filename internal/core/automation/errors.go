package automation

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrRuleNotFound is returned when a rule id is unknown to the store
	ErrRuleNotFound = errors.New("rule not found")
	// ErrRuleExists is returned when adding a rule whose id is already taken
	ErrRuleExists = errors.New("rule already exists")
)

// RuleValidationError describes a single invalid field
type RuleValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is returned when a rule, condition or action is malformed
type ValidationError struct {
	Errors []RuleValidationError `json:"errors"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		parts = append(parts, fmt.Sprintf("%s: %s", fe.Field, fe.Message))
	}
	return "rule validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, format string, args ...interface{}) {
	e.Errors = append(e.Errors, RuleValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (e *ValidationError) orNil() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e
}

// ExecutionError is returned when an action fails against the ad platform
type ExecutionError struct {
	Action     ActionKind
	CampaignID string
	Err        error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("action %s on campaign %s failed: %v", e.Action, e.CampaignID, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}
