package onboard

import (
	"context"
	"log/slog"
	"time"

	"github.com/neomind-iot/neomind/internal/cache"
	"github.com/neomind-iot/neomind/internal/eventbus"
	"github.com/neomind-iot/neomind/internal/registry"
	"github.com/neomind-iot/neomind/pkg/models"
)

// DiscoverySinkConfig configures the auto-onboard sink.
type DiscoverySinkConfig struct {
	// DedupeWindow is how long an unknown device's topic is suppressed
	// from re-triggering classification after a failed or pending attempt.
	DedupeWindow time.Duration
}

// DefaultDiscoverySinkConfig dedupes unknown-device readings for 5 minutes.
func DefaultDiscoverySinkConfig() DiscoverySinkConfig {
	return DiscoverySinkConfig{DedupeWindow: 5 * time.Minute}
}

// DiscoverySink subscribes to BusEventDeviceUnknown, classifies the
// reading against the known template catalog, and auto-registers the
// device when a classifier is confident enough. Readings for a topic that
// was already attempted recently are deduped via internal/cache's
// TTL+LRU DedupeCache so a noisy unrecognized device doesn't trigger a
// classification (and, for the LLM classifier, a provider call) on every
// single message.
type DiscoverySink struct {
	registry   registry.Registry
	classifier Classifier
	dedupe     *cache.DedupeCache
	logger     *slog.Logger
}

// NewDiscoverySink wires a DiscoverySink over a device registry and a
// classifier. The registry is used both to list candidate templates and to
// register the device once classified.
func NewDiscoverySink(reg registry.Registry, classifier Classifier, cfg DiscoverySinkConfig, logger *slog.Logger) *DiscoverySink {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DedupeWindow <= 0 {
		cfg.DedupeWindow = DefaultDiscoverySinkConfig().DedupeWindow
	}
	return &DiscoverySink{
		registry:   reg,
		classifier: classifier,
		dedupe:     cache.NewDedupeCache(cache.DedupeCacheOptions{TTL: cfg.DedupeWindow, MaxSize: 1024}),
		logger:     logger,
	}
}

// Run subscribes to the bus and processes BusEventDeviceUnknown events
// until ctx is canceled.
func (s *DiscoverySink) Run(ctx context.Context, bus *eventbus.Bus) {
	sub := bus.Subscribe(models.BusEventDeviceUnknown)
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.C():
			if !ok {
				return
			}
			s.handle(ctx, ev)
		}
	}
}

func (s *DiscoverySink) handle(ctx context.Context, ev models.BusEvent) {
	if s.dedupe.Check(ev.Topic + ":" + ev.DeviceID) {
		return
	}

	templates, err := s.registry.ListTemplates(ctx)
	if err != nil {
		s.logger.Warn("onboard: failed to list templates for classification", "error", err)
		return
	}
	if len(templates) == 0 {
		return
	}

	kind, confidence, err := s.classifier.Classify(ctx, ev.Topic, ev.RawPayload, templates)
	if err != nil {
		s.logger.Warn("onboard: classification failed", "device_id", ev.DeviceID, "topic", ev.Topic, "error", err)
		return
	}
	if kind == "" {
		s.logger.Info("onboard: could not classify unrecognized device", "device_id", ev.DeviceID, "topic", ev.Topic)
		return
	}

	err = s.registry.RegisterDevice(ctx, models.Device{
		ID:           ev.DeviceID,
		Kind:         kind,
		Status:       models.DeviceStatusOnline,
		LastSeenAt:   ev.Time,
		RegisteredAt: ev.Time,
	})
	if err != nil {
		s.logger.Warn("onboard: auto-registration failed", "device_id", ev.DeviceID, "kind", kind, "error", err)
		return
	}
	s.logger.Info("onboard: auto-registered device", "device_id", ev.DeviceID, "kind", kind, "confidence", confidence)
}
