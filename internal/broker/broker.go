// Package broker connects to an MQTT-compatible message broker and bridges
// device telemetry/command traffic onto the internal event bus.
package broker

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
	"golang.org/x/time/rate"

	"github.com/neomind-iot/neomind/pkg/models"
)

// Config holds broker connection parameters.
type Config struct {
	BrokerURL      string        // e.g. "mqtt://localhost:1883" or "mqtts://..."
	ClientID       string
	Username       string
	Password       string
	KeepAlive      uint16
	TopicPrefix    string        // e.g. "neomind" — all telemetry/command topics live under this
	ConnectTimeout time.Duration

	// InboundRateLimit bounds how many inbound messages per second the
	// adapter will process, across all subscribed topics. Zero disables
	// limiting. Burst defaults to the limit itself when unset.
	InboundRateLimit float64
	InboundRateBurst int
}

// DefaultConfig returns sane defaults for a local-network broker.
func DefaultConfig() Config {
	return Config{
		BrokerURL:        "mqtt://localhost:1883",
		ClientID:         "neomind",
		KeepAlive:        30,
		TopicPrefix:      "neomind",
		ConnectTimeout:   10 * time.Second,
		InboundRateLimit: 100,
		InboundRateBurst: 200,
	}
}

// Adapter manages the broker connection: it publishes commands to devices
// and republishes inbound telemetry/announce messages as BusEvents.
//
// Topic scheme (under Config.TopicPrefix):
//
//	<prefix>/<device_id>/telemetry/<metric>  - device → broker readings
//	<prefix>/<device_id>/announce            - unsolicited device self-description
//	<prefix>/<device_id>/command/<name>      - broker → device command dispatch
//	<prefix>/<device_id>/command/<name>/ack   - device → broker command result
//	<prefix>/status                          - adapter's own LWT availability topic
type Adapter struct {
	cfg    Config
	logger *slog.Logger

	mu sync.Mutex
	cm *autopaho.ConnectionManager

	limiter *rate.Limiter

	onMetric   func(ctx context.Context, deviceID, metric string, raw json.RawMessage, t time.Time)
	onAnnounce func(ctx context.Context, deviceID string, raw json.RawMessage)
	onAck      func(ctx context.Context, deviceID, command string, raw json.RawMessage)
}

// New creates an Adapter. Call Start to connect.
func New(cfg Config, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "neomind"
	}
	if cfg.KeepAlive == 0 {
		cfg.KeepAlive = 30
	}

	var limiter *rate.Limiter
	if cfg.InboundRateLimit > 0 {
		burst := cfg.InboundRateBurst
		if burst <= 0 {
			burst = int(cfg.InboundRateLimit)
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.InboundRateLimit), burst)
	}

	return &Adapter{cfg: cfg, logger: logger, limiter: limiter}
}

// OnMetric registers the callback invoked for every telemetry reading.
func (a *Adapter) OnMetric(fn func(ctx context.Context, deviceID, metric string, raw json.RawMessage, t time.Time)) {
	a.onMetric = fn
}

// OnAnnounce registers the callback invoked when a device publishes an
// unsolicited self-description (used for auto-onboarding).
func (a *Adapter) OnAnnounce(fn func(ctx context.Context, deviceID string, raw json.RawMessage)) {
	a.onAnnounce = fn
}

// OnAck registers the callback invoked when a device acknowledges a command.
func (a *Adapter) OnAck(fn func(ctx context.Context, deviceID, command string, raw json.RawMessage)) {
	a.onAck = fn
}

// Start connects to the broker and blocks processing inbound messages until
// ctx is cancelled. Reconnection and resubscription are handled by autopaho.
func (a *Adapter) Start(ctx context.Context) error {
	brokerURL, err := url.Parse(a.cfg.BrokerURL)
	if err != nil {
		return fmt.Errorf("broker: parse broker url: %w", err)
	}

	statusTopic := a.cfg.TopicPrefix + "/status"

	pahoCfg := autopaho.ClientConfig{
		ServerUrls:      []*url.URL{brokerURL},
		KeepAlive:       a.cfg.KeepAlive,
		ConnectUsername: a.cfg.Username,
		ConnectPassword: []byte(a.cfg.Password),
		WillMessage: &paho.WillMessage{
			Topic:   statusTopic,
			Payload: []byte("offline"),
			QoS:     1,
			Retain:  true,
		},
		OnConnectionUp: func(cm *autopaho.ConnectionManager, _ *paho.Connack) {
			a.logger.Info("broker connected", "url", a.cfg.BrokerURL)
			publishCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			a.announcePresence(publishCtx, cm)
			a.subscribe(publishCtx, cm)
		},
		OnConnectError: func(err error) {
			a.logger.Warn("broker connection error", "error", err)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: a.cfg.ClientID,
		},
	}

	if brokerURL.Scheme == "mqtts" || brokerURL.Scheme == "ssl" {
		pahoCfg.TlsCfg = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	pahoCfg.ClientConfig.Router = paho.NewStandardRouter()

	cm, err := autopaho.NewConnection(ctx, pahoCfg)
	if err != nil {
		return fmt.Errorf("broker: connect: %w", err)
	}
	a.mu.Lock()
	a.cm = cm
	a.mu.Unlock()

	cm.AddOnPublishReceived(func(pr autopaho.PublishReceived) (bool, error) {
		a.handleMessage(ctx, pr.Packet.Topic, pr.Packet.Payload)
		return true, nil
	})

	connCtx, connCancel := context.WithTimeout(ctx, a.cfg.ConnectTimeout)
	defer connCancel()
	if err := cm.AwaitConnection(connCtx); err != nil {
		a.logger.Warn("broker initial connection timed out, retrying in background", "error", err)
	}

	<-ctx.Done()
	return nil
}

// Stop publishes an offline status and disconnects.
func (a *Adapter) Stop(ctx context.Context) error {
	a.mu.Lock()
	cm := a.cm
	a.mu.Unlock()
	if cm == nil {
		return nil
	}
	cm.Publish(ctx, &paho.Publish{
		Topic:   a.cfg.TopicPrefix + "/status",
		Payload: []byte("offline"),
		QoS:     1,
		Retain:  true,
	})
	return cm.Disconnect(ctx)
}

func (a *Adapter) announcePresence(ctx context.Context, cm *autopaho.ConnectionManager) {
	cm.Publish(ctx, &paho.Publish{
		Topic:   a.cfg.TopicPrefix + "/status",
		Payload: []byte("online"),
		QoS:     1,
		Retain:  true,
	})
}

func (a *Adapter) subscribe(ctx context.Context, cm *autopaho.ConnectionManager) {
	filters := []string{
		a.cfg.TopicPrefix + "/+/telemetry/+",
		a.cfg.TopicPrefix + "/+/announce",
		a.cfg.TopicPrefix + "/+/command/+/ack",
	}
	opts := make([]paho.SubscribeOptions, 0, len(filters))
	for _, f := range filters {
		opts = append(opts, paho.SubscribeOptions{Topic: f, QoS: 1})
	}
	if _, err := cm.Subscribe(ctx, &paho.Subscribe{Subscriptions: opts}); err != nil {
		a.logger.Error("broker subscribe failed", "error", err, "filters", filters)
	}
}

// handleMessage parses the topic scheme and dispatches to the registered
// callbacks. Malformed topics are logged and dropped. Inbound messages
// beyond the configured rate limit are dropped before parsing, protecting
// the registry/telemetry store from a misbehaving or compromised device
// flooding its topic.
func (a *Adapter) handleMessage(ctx context.Context, topic string, payload []byte) {
	if a.limiter != nil && !a.limiter.Allow() {
		a.logger.Warn("broker: inbound message rate limit exceeded, dropping", "topic", topic)
		return
	}

	parts := strings.Split(strings.TrimPrefix(topic, a.cfg.TopicPrefix+"/"), "/")
	if len(parts) < 2 {
		return
	}
	deviceID := parts[0]

	switch {
	case parts[1] == "telemetry" && len(parts) == 3:
		if a.onMetric != nil {
			a.onMetric(ctx, deviceID, parts[2], json.RawMessage(payload), time.Now())
		}
	case parts[1] == "announce" && len(parts) == 2:
		if a.onAnnounce != nil {
			a.onAnnounce(ctx, deviceID, json.RawMessage(payload))
		}
	case parts[1] == "command" && len(parts) == 4 && parts[3] == "ack":
		if a.onAck != nil {
			a.onAck(ctx, deviceID, parts[2], json.RawMessage(payload))
		}
	default:
		a.logger.Debug("broker: unrecognized topic", "topic", topic)
	}
}

// PublishCommand sends a command payload to a device on its command topic.
func (a *Adapter) PublishCommand(ctx context.Context, deviceID, command string, payload []byte, qos byte) error {
	a.mu.Lock()
	cm := a.cm
	a.mu.Unlock()
	if cm == nil {
		return fmt.Errorf("broker: not connected")
	}
	topic := fmt.Sprintf("%s/%s/command/%s", a.cfg.TopicPrefix, deviceID, command)
	_, err := cm.Publish(ctx, &paho.Publish{
		Topic:   topic,
		Payload: payload,
		QoS:     paho.QoS(qos),
	})
	if err != nil {
		return fmt.Errorf("broker: publish command: %w", err)
	}
	return nil
}

// BusEventFromMetric builds a models.BusEvent for a parsed telemetry reading.
func BusEventFromMetric(deviceID, metric string, raw json.RawMessage, t time.Time) models.BusEvent {
	value := models.MetricValueFromJSON(raw)
	return models.BusEvent{
		Type: models.BusEventDeviceMetric,
		Time: t,
		DeviceID: deviceID,
		Point: &models.Point{
			DeviceID:  deviceID,
			Metric:    metric,
			Value:     value,
			Timestamp: t,
		},
	}
}
