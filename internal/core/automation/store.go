package automation

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RuleStore is the in-memory, concurrency-safe collection of rules.
// Rules leave the store only as clones.
type RuleStore struct {
	rules map[string]*Rule
	order []string
	mu    sync.RWMutex
	now   func() time.Time
}

// NewRuleStore creates an empty store
func NewRuleStore() *RuleStore {
	return &RuleStore{
		rules: make(map[string]*Rule),
		now:   time.Now,
	}
}

// Add validates and stores a copy of the rule, generating an id when empty
func (s *RuleStore) Add(rule *Rule) (string, error) {
	if rule == nil {
		return "", &ValidationError{Errors: []RuleValidationError{{Field: "rule", Message: "rule cannot be nil"}}}
	}
	if err := rule.Validate(); err != nil {
		return "", err
	}

	stored := rule.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()

	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}
	if _, exists := s.rules[stored.ID]; exists {
		return "", fmt.Errorf("%w: %s", ErrRuleExists, stored.ID)
	}

	now := s.now()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now

	s.rules[stored.ID] = stored
	s.order = append(s.order, stored.ID)
	return stored.ID, nil
}

// Update merges the patch into an existing rule. The merged rule must validate.
func (s *RuleStore) Update(id string, patch RulePatch) (*Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.rules[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}

	merged := existing.Clone()
	patch.Apply(merged)
	if err := merged.Validate(); err != nil {
		return nil, err
	}
	merged.UpdatedAt = s.now()

	s.rules[id] = merged
	return merged.Clone(), nil
}

// Remove deletes a rule
func (s *RuleStore) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rules[id]; !ok {
		return fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	delete(s.rules, id)
	for i, ruleID := range s.order {
		if ruleID == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// Get returns a copy of a rule
func (s *RuleStore) Get(id string) (*Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rule, ok := s.rules[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	return rule.Clone(), nil
}

// List returns copies of all rules in insertion order
func (s *RuleStore) List() []*Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Rule, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.rules[id].Clone())
	}
	return out
}

// Enabled returns copies of the enabled rules in insertion order
func (s *RuleStore) Enabled() []*Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Rule, 0, len(s.order))
	for _, id := range s.order {
		if rule := s.rules[id]; rule.Enabled {
			out = append(out, rule.Clone())
		}
	}
	return out
}

// SetEnabled toggles a rule
func (s *RuleStore) SetEnabled(id string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rule, ok := s.rules[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	if rule.Enabled == enabled {
		return nil
	}
	updated := rule.Clone()
	updated.Enabled = enabled
	updated.UpdatedAt = s.now()
	s.rules[id] = updated
	return nil
}

// RecordTrigger increments the trigger count of a rule and stamps its last trigger
// time. Rules removed since the cycle started are ignored.
func (s *RuleStore) RecordTrigger(id string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rule, ok := s.rules[id]
	if !ok {
		return
	}
	updated := rule.Clone()
	updated.TriggerCount++
	updated.LastTriggered = &at
	s.rules[id] = updated
}

// Counts returns the number of rules and enabled rules
func (s *RuleStore) Counts() (total, enabled int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rule := range s.rules {
		if rule.Enabled {
			enabled++
		}
	}
	return len(s.rules), enabled
}
