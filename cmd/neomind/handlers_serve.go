package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/neomind-iot/neomind/internal/broker"
	"github.com/neomind-iot/neomind/internal/config"
	"github.com/neomind-iot/neomind/internal/devices"
	"github.com/neomind-iot/neomind/internal/eventbus"
	"github.com/neomind-iot/neomind/internal/onboard"
	"github.com/neomind-iot/neomind/internal/registry"
	"github.com/neomind-iot/neomind/internal/rules"
	"github.com/neomind-iot/neomind/internal/telemetry"
	"github.com/neomind-iot/neomind/pkg/models"
)

// runServe boots every long-running component of the NeoMind server and
// blocks until the process receives an interrupt or terminate signal.
func runServe(cmd *cobra.Command, configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	logger := newLogger()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg, err := openRegistry(cfg)
	if err != nil {
		return err
	}
	store, err := openTelemetryStore(cfg)
	if err != nil {
		return err
	}
	ruleStore, err := openRuleStore(ctx, cfg)
	if err != nil {
		return err
	}

	bus := eventbus.New()

	adapter := broker.New(brokerConfigFromCfg(cfg.Broker), logger)
	commandStore := devices.NewMemoryCommandStore()
	deviceService := devices.NewService(reg, adapter, commandStore, bus, logger)

	var discoverySink *onboard.DiscoverySink
	if cfg.Devices.AutoOnboard {
		classifier := onboard.NewChainClassifier(0.6, onboard.HeuristicClassifier{})
		discoverySink = onboard.NewDiscoverySink(reg, classifier, onboard.DiscoverySinkConfig{
			DedupeWindow: cfg.Devices.OnboardDedupeWindow,
		}, logger)
	}

	wireBrokerCallbacks(ctx, adapter, reg, store, deviceService, bus, logger)

	offline := devices.NewOfflineSupervisor(offlineConfigFromCfg(cfg.Devices.OfflineAfter), reg, bus, logger)
	offline.Start(ctx)
	defer offline.Stop()

	valueProvider := rules.NewTelemetryValueProvider(store, reg)
	actionRunner := rules.NewActionRunner(deviceService, nil, nil, bus, logger)
	engine := rules.NewEngine(ruleStore, valueProvider, actionRunner, logger)

	if discoverySink != nil {
		go discoverySink.Run(ctx, bus)
	}

	go runRuleTicker(ctx, engine, cfg.Automation.TickInterval, logger)

	logger.Info("neomind: starting broker connection", "url", cfg.Broker.URL)
	if err := adapter.Start(ctx); err != nil {
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return adapter.Stop(shutdownCtx)
}

// wireBrokerCallbacks registers the broker's telemetry/announce/ack
// callbacks. A metric from an unregistered device publishes
// BusEventDeviceUnknown instead of being recorded, triggering the
// auto-onboard sink (when enabled) rather than silently dropping the
// reading.
func wireBrokerCallbacks(
	ctx context.Context,
	adapter *broker.Adapter,
	reg registry.Registry,
	store telemetry.Store,
	deviceService *devices.Service,
	bus *eventbus.Bus,
	logger *slog.Logger,
) {
	adapter.OnMetric(func(ctx context.Context, deviceID, metric string, raw json.RawMessage, t time.Time) {
		if _, err := reg.Device(ctx, deviceID); err != nil {
			bus.Publish(ctx, models.BusEvent{
				Type:       models.BusEventDeviceUnknown,
				Time:       t,
				DeviceID:   deviceID,
				RawPayload: []byte(raw),
				Topic:      metric,
			})
			return
		}

		point := models.Point{
			DeviceID:  deviceID,
			Metric:    metric,
			Value:     models.MetricValueFromJSON(raw),
			Timestamp: t,
		}
		if err := store.Append(ctx, point); err != nil {
			logger.Warn("neomind: failed to store telemetry point", "device_id", deviceID, "metric", metric, "error", err)
		}
		if err := deviceService.RecordTelemetry(ctx, deviceID, t); err != nil {
			logger.Warn("neomind: failed to record telemetry liveness", "device_id", deviceID, "error", err)
		}
		bus.Publish(ctx, broker.BusEventFromMetric(deviceID, metric, raw, t))
	})

	adapter.OnAnnounce(func(ctx context.Context, deviceID string, raw json.RawMessage) {
		if _, err := reg.Device(ctx, deviceID); err == nil {
			return
		}
		bus.Publish(ctx, models.BusEvent{
			Type:       models.BusEventDeviceUnknown,
			Time:       time.Now(),
			DeviceID:   deviceID,
			RawPayload: []byte(raw),
			Topic:      "announce",
		})
	})

	adapter.OnAck(func(ctx context.Context, deviceID, command string, raw json.RawMessage) {
		ok, errMsg := parseAckPayload(raw)
		if err := deviceService.HandleAck(ctx, deviceID, command, ok, errMsg); err != nil {
			logger.Warn("neomind: failed to handle command ack", "device_id", deviceID, "command", command, "error", err)
		}
	})
}

type ackPayload struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

func parseAckPayload(raw json.RawMessage) (bool, string) {
	var p ackPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return false, "malformed ack payload"
	}
	return p.OK, p.Error
}

// runRuleTicker drives the rule engine's evaluation loop until ctx is
// cancelled.
func runRuleTicker(ctx context.Context, engine *rules.Engine, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := engine.Tick(ctx); err != nil {
				logger.Warn("neomind: rule tick failed", "error", err)
			}
		}
	}
}

// offlineConfigFromCfg derives the sweep's check interval from the
// configured offline threshold: three missed intervals of offlineAfter/3
// mark a device offline, matching devices.DefaultOfflineConfig's
// three-strikes shape for whatever threshold the operator configures.
func offlineConfigFromCfg(offlineAfter time.Duration) devices.OfflineConfig {
	if offlineAfter <= 0 {
		return devices.DefaultOfflineConfig()
	}
	return devices.OfflineConfig{
		CheckInterval:   offlineAfter / 3,
		MissedIntervals: 3,
	}
}

func brokerConfigFromCfg(c config.BrokerConfig) broker.Config {
	cfg := broker.DefaultConfig()
	if c.URL != "" {
		cfg.BrokerURL = c.URL
	}
	if c.ClientID != "" {
		cfg.ClientID = c.ClientID
	}
	cfg.Username = c.Username
	cfg.Password = c.Password
	if c.TopicPrefix != "" {
		cfg.TopicPrefix = c.TopicPrefix
	}
	if c.KeepAlive > 0 {
		cfg.KeepAlive = uint16(c.KeepAlive)
	}
	if c.ConnectTimeout > 0 {
		cfg.ConnectTimeout = c.ConnectTimeout
	}
	cfg.InboundRateLimit = c.InboundRateLimit
	cfg.InboundRateBurst = c.InboundRateBurst
	return cfg
}
