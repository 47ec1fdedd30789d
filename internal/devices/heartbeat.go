package devices

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/neomind-iot/neomind/internal/eventbus"
	"github.com/neomind-iot/neomind/internal/registry"
	"github.com/neomind-iot/neomind/pkg/models"
)

// OfflineConfig configures the offline-detection sweep.
type OfflineConfig struct {
	// CheckInterval is how often the supervisor scans for stale devices.
	CheckInterval time.Duration
	// MissedIntervals is how many CheckIntervals of silence mark a device
	// offline.
	MissedIntervals int
}

// DefaultOfflineConfig checks every 30s and marks a device offline after
// three missed intervals (90s of silence).
func DefaultOfflineConfig() OfflineConfig {
	return OfflineConfig{
		CheckInterval:   30 * time.Second,
		MissedIntervals: 3,
	}
}

// OfflineSupervisor periodically scans the registry for devices that have
// gone quiet and flips their status to offline, publishing a
// BusEventDeviceOffline for each. Structurally this mirrors
// internal/heartbeat.Runner's ticker-driven liveness loop, adapted from
// "deliver a chat heartbeat ack" to "detect a silent device".
type OfflineSupervisor struct {
	cfg      OfflineConfig
	registry registry.Registry
	bus      *eventbus.Bus
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewOfflineSupervisor creates a supervisor. Call Start to begin the sweep loop.
func NewOfflineSupervisor(cfg OfflineConfig, reg registry.Registry, bus *eventbus.Bus, logger *slog.Logger) *OfflineSupervisor {
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = DefaultOfflineConfig().CheckInterval
	}
	if cfg.MissedIntervals <= 0 {
		cfg.MissedIntervals = DefaultOfflineConfig().MissedIntervals
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OfflineSupervisor{cfg: cfg, registry: reg, bus: bus, logger: logger}
}

// Start begins the sweep loop in a goroutine. Calling Start twice without an
// intervening Stop is a no-op.
func (s *OfflineSupervisor) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	go s.run(ctx)
}

// Stop signals the loop to exit and waits for it to finish.
func (s *OfflineSupervisor) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	close(s.stopCh)
	done := s.doneCh
	s.running = false
	s.mu.Unlock()

	<-done
}

// IsRunning reports whether the sweep loop is active.
func (s *OfflineSupervisor) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *OfflineSupervisor) run(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *OfflineSupervisor) sweep(ctx context.Context) {
	devices, err := s.registry.ListDevices(ctx)
	if err != nil {
		s.logger.Warn("devices: offline sweep failed to list devices", "error", err)
		return
	}

	threshold := time.Duration(s.cfg.MissedIntervals) * s.cfg.CheckInterval
	cutoff := time.Now().Add(-threshold)

	for _, d := range devices {
		if d.Status != models.DeviceStatusOnline {
			continue
		}
		if d.LastSeenAt.IsZero() || d.LastSeenAt.After(cutoff) {
			continue
		}
		if err := s.registry.UpdateStatus(ctx, d.ID, models.DeviceStatusOffline, d.LastSeenAt); err != nil {
			s.logger.Warn("devices: failed to mark device offline", "device_id", d.ID, "error", err)
			continue
		}
		if s.bus != nil {
			s.bus.Publish(ctx, models.BusEvent{
				Type:     models.BusEventDeviceOffline,
				DeviceID: d.ID,
				Time:     time.Now(),
			})
		}
	}
}
