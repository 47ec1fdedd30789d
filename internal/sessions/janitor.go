package sessions

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// JanitorConfig controls background session cleanup thresholds and
// scheduling.
type JanitorConfig struct {
	// MaxAge removes any session whose last activity is older than this,
	// regardless of history size.
	MaxAge time.Duration
	// MaxEmptyAge removes sessions with no message history older than this,
	// even when MaxAge hasn't elapsed yet.
	MaxEmptyAge time.Duration
	// Schedule is a robfig/cron expression (including descriptors like
	// "@hourly"); defaults to hourly sweeps.
	Schedule string
}

// DefaultJanitorConfig matches spec.md §4.10's defaults: sessions older than
// 7 days, empty sessions older than 1 day, swept hourly.
func DefaultJanitorConfig() JanitorConfig {
	return JanitorConfig{
		MaxAge:      7 * 24 * time.Hour,
		MaxEmptyAge: 24 * time.Hour,
		Schedule:    "@hourly",
	}
}

// Janitor periodically removes stale sessions from a Store: sessions whose
// last activity exceeds MaxAge, and empty sessions (no message history)
// whose last activity exceeds MaxEmptyAge. Structurally this mirrors
// devices.OfflineSupervisor's sweep loop, but driven by a robfig/cron
// schedule instead of a plain ticker, per the cron-style session janitor
// scheduling decision.
type Janitor struct {
	cfg     JanitorConfig
	store   Store
	logger  *slog.Logger
	nowFunc func() time.Time

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

// NewJanitor creates a Janitor. Call Start to begin the schedule.
func NewJanitor(cfg JanitorConfig, store Store, logger *slog.Logger) *Janitor {
	def := DefaultJanitorConfig()
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = def.MaxAge
	}
	if cfg.MaxEmptyAge <= 0 {
		cfg.MaxEmptyAge = def.MaxEmptyAge
	}
	if cfg.Schedule == "" {
		cfg.Schedule = def.Schedule
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Janitor{cfg: cfg, store: store, logger: logger, nowFunc: time.Now}
}

// Start schedules the sweep per cfg.Schedule and returns once the schedule
// is registered; the sweep itself runs asynchronously on each tick. Calling
// Start twice without an intervening Stop is a no-op.
func (j *Janitor) Start(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.running {
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(j.cfg.Schedule, func() {
		j.Sweep(ctx)
	}); err != nil {
		return fmt.Errorf("sessions: invalid janitor schedule %q: %w", j.cfg.Schedule, err)
	}
	c.Start()
	j.cron = c
	j.running = true
	return nil
}

// Stop halts the schedule and waits for any in-flight sweep to finish.
func (j *Janitor) Stop() {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return
	}
	c := j.cron
	j.running = false
	j.cron = nil
	j.mu.Unlock()

	<-c.Stop().Done()
}

// IsRunning reports whether the schedule is active.
func (j *Janitor) IsRunning() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.running
}

// Sweep runs one cleanup pass immediately, independent of the schedule.
// Safe to call concurrently with a running schedule or directly in tests.
func (j *Janitor) Sweep(ctx context.Context) {
	all, err := j.store.List(ctx, "", ListOptions{})
	if err != nil {
		j.logger.Warn("sessions: janitor failed to list sessions", "error", err)
		return
	}

	now := j.nowFunc()
	for _, session := range all {
		lastActivity := session.UpdatedAt
		if lastActivity.IsZero() {
			lastActivity = session.CreatedAt
		}
		if lastActivity.IsZero() {
			continue
		}
		age := now.Sub(lastActivity)

		if age >= j.cfg.MaxAge {
			j.delete(ctx, session.ID, "max_age")
			continue
		}

		if age >= j.cfg.MaxEmptyAge {
			history, err := j.store.GetHistory(ctx, session.ID, 1)
			if err != nil {
				j.logger.Warn("sessions: janitor failed to load history", "session_id", session.ID, "error", err)
				continue
			}
			if len(history) == 0 {
				j.delete(ctx, session.ID, "empty")
			}
		}
	}
}

func (j *Janitor) delete(ctx context.Context, id, reason string) {
	if err := j.store.Delete(ctx, id); err != nil {
		j.logger.Warn("sessions: janitor failed to delete session", "session_id", id, "reason", reason, "error", err)
		return
	}
	j.logger.Info("sessions: janitor removed stale session", "session_id", id, "reason", reason)
}
