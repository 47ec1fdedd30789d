// Package rules evaluates compiled automation rules against live device
// telemetry and runs their actions.
package rules

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/neomind-iot/neomind/pkg/models"
)

// ValueProvider resolves the current value of a device metric for
// condition evaluation.
type ValueProvider interface {
	Value(ctx context.Context, device, metric string) (models.MetricValue, bool)
}

// Dispatcher sends a device command; implemented by *devices.Service.
type Dispatcher interface {
	DispatchCommand(ctx context.Context, deviceID, command string, params map[string]any, source string) (models.CommandRecord, error)
}

// Store persists rule definitions and their runtime state.
type Store interface {
	ListRules(ctx context.Context) ([]models.Rule, error)
	SaveRule(ctx context.Context, r models.Rule) error
	DeleteRule(ctx context.Context, id string) error
	State(ctx context.Context, ruleID string) (models.RuleState, bool, error)
	SaveState(ctx context.Context, s models.RuleState) error
}

// Engine evaluates every enabled rule on each Tick, tracking FOR-duration
// sustain and debounce per rule, and dispatches fired actions.
type Engine struct {
	store    Store
	provider ValueProvider
	logger   *slog.Logger

	mu     sync.RWMutex
	states map[string]models.RuleState

	actions *ActionRunner
}

// NewEngine wires an Engine over the given rule store, telemetry value
// provider, and action runner.
func NewEngine(store Store, provider ValueProvider, actions *ActionRunner, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:    store,
		provider: provider,
		actions:  actions,
		logger:   logger,
		states:   make(map[string]models.RuleState),
	}
}

// Tick evaluates every enabled rule once, firing actions for any rule
// whose condition has held for its FOR duration and is past its debounce
// window.
func (e *Engine) Tick(ctx context.Context) error {
	rules, err := e.store.ListRules(ctx)
	if err != nil {
		return err
	}

	now := time.Now()
	for _, r := range rules {
		if !r.Enabled {
			continue
		}
		e.evaluateRule(ctx, r, now)
	}
	return nil
}

func (e *Engine) evaluateRule(ctx context.Context, r models.Rule, now time.Time) {
	state := e.loadState(ctx, r.ID)

	active, err := Evaluate(ctx, r.When, e.provider)
	if err != nil {
		e.logger.Warn("rules: condition evaluation failed", "rule_id", r.ID, "error", err)
		return
	}

	if !active {
		state.CurrentlyActive = false
		state.LastTrueSince = time.Time{}
		e.saveState(ctx, state)
		return
	}

	if !state.CurrentlyActive {
		state.CurrentlyActive = true
		state.LastTrueSince = now
	}

	sustained := r.For <= 0 || now.Sub(state.LastTrueSince) >= r.For
	if !sustained {
		e.saveState(ctx, state)
		return
	}

	if r.Debounce > 0 && !state.LastFiredAt.IsZero() && now.Sub(state.LastFiredAt) < r.Debounce {
		e.saveState(ctx, state)
		return
	}

	state.LastFiredAt = now
	e.saveState(ctx, state)

	if e.actions != nil {
		e.actions.Run(ctx, r)
	}
}

func (e *Engine) loadState(ctx context.Context, ruleID string) models.RuleState {
	e.mu.RLock()
	if s, ok := e.states[ruleID]; ok {
		e.mu.RUnlock()
		return s
	}
	e.mu.RUnlock()

	if e.store != nil {
		if s, ok, err := e.store.State(ctx, ruleID); err == nil && ok {
			e.mu.Lock()
			e.states[ruleID] = s
			e.mu.Unlock()
			return s
		}
	}
	return models.RuleState{RuleID: ruleID}
}

func (e *Engine) saveState(ctx context.Context, s models.RuleState) {
	e.mu.Lock()
	e.states[s.RuleID] = s
	e.mu.Unlock()

	if e.store != nil {
		if err := e.store.SaveState(ctx, s); err != nil {
			e.logger.Warn("rules: failed to persist rule state", "rule_id", s.RuleID, "error", err)
		}
	}
}
