package rules

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/neomind-iot/neomind/internal/eventbus"
	"github.com/neomind-iot/neomind/pkg/models"
)

// Notifier delivers a rule's NOTIFY/ALERT message; implementations may
// fan out to chat channels, push notifications, etc.
type Notifier interface {
	Notify(ctx context.Context, level, message string) error
}

// HTTPRequester issues a rule's HTTP action.
type HTTPRequester interface {
	Do(ctx context.Context, method, url string, headers map[string]string, body string) error
}

// deviceLock mirrors Runtime.lockSession's refcounted per-key mutex, here
// keyed by device ID so two rules never race an EXECUTE against the same
// device.
type deviceLock struct {
	mu   sync.Mutex
	refs int
}

// ActionRunner executes a fired rule's DO clause in order, serializing
// EXECUTE actions per device.
type ActionRunner struct {
	dispatcher Dispatcher
	notifier   Notifier
	http       HTTPRequester
	bus        *eventbus.Bus
	logger     *slog.Logger

	locksMu sync.Mutex
	locks   map[string]*deviceLock
}

// NewActionRunner wires an ActionRunner. notifier and http may be nil —
// NOTIFY/ALERT/HTTP actions fall back to logging in that case.
func NewActionRunner(dispatcher Dispatcher, notifier Notifier, http HTTPRequester, bus *eventbus.Bus, logger *slog.Logger) *ActionRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &ActionRunner{
		dispatcher: dispatcher,
		notifier:   notifier,
		http:       http,
		bus:        bus,
		logger:     logger,
		locks:      make(map[string]*deviceLock),
	}
}

// Run executes every action of a fired rule in order. A failing action is
// logged and does not stop the remaining actions from running.
func (a *ActionRunner) Run(ctx context.Context, r models.Rule) {
	if a.bus != nil {
		a.bus.Publish(ctx, models.BusEvent{Type: models.BusEventRuleFired, RuleID: r.ID, RuleName: r.Name})
	}
	for _, act := range r.Do {
		if err := a.runOne(ctx, r, act); err != nil {
			a.logger.Warn("rules: action failed", "rule_id", r.ID, "rule_name", r.Name, "action", act.Kind, "error", err)
		}
	}
}

func (a *ActionRunner) runOne(ctx context.Context, r models.Rule, act models.Action) error {
	switch act.Kind {
	case models.ActionNotify:
		return a.notify(ctx, "info", act.Message)
	case models.ActionAlert:
		return a.notify(ctx, act.Level, act.Message)
	case models.ActionLog:
		a.logger.Info("rules: "+act.Message, "rule_id", r.ID, "level", act.Level)
		return nil
	case models.ActionExecute:
		return a.execute(ctx, r, act)
	case models.ActionSet:
		return a.execute(ctx, r, models.Action{
			Kind:       models.ActionExecute,
			Device:     act.Device,
			Command:    act.Property,
			Parameters: map[string]any{act.Property: metricValueToAny(act.Value)},
		})
	case models.ActionDelay:
		timer := time.NewTimer(act.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		}
	case models.ActionHTTP:
		if a.http == nil {
			a.logger.Info("rules: HTTP action skipped, no requester configured", "rule_id", r.ID, "url", act.URL)
			return nil
		}
		return a.http.Do(ctx, act.Method, act.URL, act.Headers, act.Body)
	default:
		return nil
	}
}

func (a *ActionRunner) notify(ctx context.Context, level, message string) error {
	if a.notifier == nil {
		a.logger.Info("rules: notify", "level", level, "message", message)
		return nil
	}
	return a.notifier.Notify(ctx, level, message)
}

// execute serializes dispatch per device so two concurrently firing rules
// can't race a command to the same device; structurally identical to
// Runtime.lockSession's refcounted per-key mutex.
func (a *ActionRunner) execute(ctx context.Context, r models.Rule, act models.Action) error {
	unlock := a.lockDevice(act.Device)
	defer unlock()

	if a.dispatcher == nil {
		return nil
	}
	_, err := a.dispatcher.DispatchCommand(ctx, act.Device, act.Command, act.Parameters, "rule:"+r.ID)
	return err
}

func (a *ActionRunner) lockDevice(deviceID string) func() {
	if deviceID == "" {
		return func() {}
	}

	a.locksMu.Lock()
	lock := a.locks[deviceID]
	if lock == nil {
		lock = &deviceLock{}
		a.locks[deviceID] = lock
	}
	lock.refs++
	a.locksMu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		a.locksMu.Lock()
		lock.refs--
		if lock.refs <= 0 {
			delete(a.locks, deviceID)
		}
		a.locksMu.Unlock()
	}
}

func metricValueToAny(v models.MetricValue) any {
	switch v.Kind {
	case models.DataTypeInt:
		return v.Int
	case models.DataTypeFloat:
		return v.Float
	case models.DataTypeBool:
		return v.Bool
	case models.DataTypeString:
		return v.String
	case models.DataTypeArray:
		return v.Array
	default:
		return nil
	}
}
