// Package devices implements device registration, command dispatch, and
// heartbeat-based liveness tracking on top of the registry and broker.
package devices

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/neomind-iot/neomind/internal/eventbus"
	"github.com/neomind-iot/neomind/internal/registry"
	"github.com/neomind-iot/neomind/pkg/models"
)

// CommandDispatcher sends a command payload to a device; implemented by
// *broker.Adapter in production and a fake in tests.
type CommandDispatcher interface {
	PublishCommand(ctx context.Context, deviceID, command string, payload []byte, qos byte) error
}

// CommandStore records the lifecycle of dispatched commands for audit/status
// queries. A minimal in-memory implementation is provided in memstore.go.
type CommandStore interface {
	SaveCommand(ctx context.Context, cmd models.CommandRecord) error
	UpdateCommandStatus(ctx context.Context, id string, status models.CommandStatus, errMsg string) error
	PendingCommand(ctx context.Context, deviceID, command string) (models.CommandRecord, bool, error)
}

// Service implements the Device Service: registration, command dispatch with
// parameter validation, and liveness tracking fed by broker telemetry.
type Service struct {
	registry   registry.Registry
	dispatcher CommandDispatcher
	commands   CommandStore
	bus        *eventbus.Bus
	logger     *slog.Logger
}

// NewService wires a Service over the given registry, command dispatcher,
// command audit store, and event bus.
func NewService(reg registry.Registry, dispatcher CommandDispatcher, commands CommandStore, bus *eventbus.Bus, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{registry: reg, dispatcher: dispatcher, commands: commands, bus: bus, logger: logger}
}

// RegisterDevice adds a new device to the registry, defaulting its ID if
// unset and validating that its Kind has a known template.
func (s *Service) RegisterDevice(ctx context.Context, d models.Device) (models.Device, error) {
	if _, err := s.registry.Template(ctx, d.Kind); err != nil {
		return models.Device{}, fmt.Errorf("devices: unknown device kind %q: %w", d.Kind, err)
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.Status == "" {
		d.Status = models.DeviceStatusUnknown
	}
	if err := s.registry.RegisterDevice(ctx, d); err != nil {
		return models.Device{}, err
	}
	return s.registry.Device(ctx, d.ID)
}

// RecordTelemetry updates device liveness when a reading arrives. It does
// not persist the reading itself — that is the Telemetry Store's job; the
// Service only cares that the device is alive.
func (s *Service) RecordTelemetry(ctx context.Context, deviceID string, t time.Time) error {
	if err := s.registry.UpdateStatus(ctx, deviceID, models.DeviceStatusOnline, t); err != nil {
		return err
	}
	if s.bus != nil {
		s.bus.Publish(ctx, models.BusEvent{Type: models.BusEventDeviceOnline, DeviceID: deviceID, Time: t})
	}
	return nil
}

// DispatchCommand validates params against the device's template, records a
// pending CommandRecord, and publishes the command through the dispatcher.
func (s *Service) DispatchCommand(ctx context.Context, deviceID, command string, params map[string]any, source string) (models.CommandRecord, error) {
	dev, err := s.registry.Device(ctx, deviceID)
	if err != nil {
		return models.CommandRecord{}, fmt.Errorf("devices: lookup device: %w", err)
	}
	tmpl, err := s.registry.Template(ctx, dev.Kind)
	if err != nil {
		return models.CommandRecord{}, fmt.Errorf("devices: lookup template: %w", err)
	}
	def, ok := tmpl.CommandByName(command)
	if !ok {
		return models.CommandRecord{}, fmt.Errorf("devices: device %q has no command %q", deviceID, command)
	}

	payload, err := buildCommandPayload(def, dev.ID, params)
	if err != nil {
		return models.CommandRecord{}, err
	}

	rec := models.CommandRecord{
		ID:         uuid.NewString(),
		DeviceID:   deviceID,
		Command:    command,
		Parameters: params,
		Status:     models.CommandStatusPending,
		IssuedAt:   time.Now(),
		Source:     source,
	}
	if s.commands != nil {
		if err := s.commands.SaveCommand(ctx, rec); err != nil {
			return models.CommandRecord{}, fmt.Errorf("devices: save command: %w", err)
		}
	}

	if err := s.dispatcher.PublishCommand(ctx, deviceID, command, payload, def.QoS); err != nil {
		if s.commands != nil {
			s.commands.UpdateCommandStatus(ctx, rec.ID, models.CommandStatusFailed, err.Error())
		}
		rec.Status = models.CommandStatusFailed
		rec.Error = err.Error()
		return rec, fmt.Errorf("devices: dispatch command: %w", err)
	}

	rec.Status = models.CommandStatusSent
	if s.commands != nil {
		s.commands.UpdateCommandStatus(ctx, rec.ID, models.CommandStatusSent, "")
	}
	return rec, nil
}

// HandleAck marks a device's most recent pending command against the given
// name as acked or failed, based on the device's reply payload.
func (s *Service) HandleAck(ctx context.Context, deviceID, command string, ok bool, errMsg string) error {
	if s.commands == nil {
		return nil
	}
	rec, found, err := s.commands.PendingCommand(ctx, deviceID, command)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	status := models.CommandStatusAcked
	if !ok {
		status = models.CommandStatusFailed
	}
	if s.bus != nil {
		s.bus.Publish(ctx, models.BusEvent{
			Type:     models.BusEventDeviceCommand,
			DeviceID: deviceID,
			Time:     time.Now(),
			Command:  &rec,
		})
	}
	return s.commands.UpdateCommandStatus(ctx, rec.ID, status, errMsg)
}
