package rules

import (
	"context"
	"sync"

	"github.com/neomind-iot/neomind/pkg/models"
)

// MemoryStore is an in-process Store for rule definitions and state.
type MemoryStore struct {
	mu     sync.RWMutex
	rules  map[string]models.Rule
	states map[string]models.RuleState
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rules:  make(map[string]models.Rule),
		states: make(map[string]models.RuleState),
	}
}

func (s *MemoryStore) ListRules(ctx context.Context) ([]models.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Rule, 0, len(s.rules))
	for _, r := range s.rules {
		out = append(out, cloneRule(r))
	}
	return out, nil
}

func (s *MemoryStore) SaveRule(ctx context.Context, r models.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules[r.ID] = cloneRule(r)
	return nil
}

func (s *MemoryStore) DeleteRule(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rules, id)
	delete(s.states, id)
	return nil
}

func (s *MemoryStore) State(ctx context.Context, ruleID string) (models.RuleState, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[ruleID]
	return st, ok, nil
}

func (s *MemoryStore) SaveState(ctx context.Context, st models.RuleState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[st.RuleID] = st
	return nil
}

func cloneRule(r models.Rule) models.Rule {
	out := r
	out.When = cloneCondition(r.When)
	if r.Do != nil {
		out.Do = append([]models.Action(nil), r.Do...)
	}
	return out
}

func cloneCondition(c models.Condition) models.Condition {
	out := c
	if c.Children != nil {
		out.Children = make([]models.Condition, len(c.Children))
		for i, child := range c.Children {
			out.Children[i] = cloneCondition(child)
		}
	}
	return out
}

var _ Store = (*MemoryStore)(nil)
