package rules

import (
	"context"
	"strings"

	"github.com/neomind-iot/neomind/internal/registry"
	"github.com/neomind-iot/neomind/internal/telemetry"
	"github.com/neomind-iot/neomind/pkg/models"
)

// TelemetryValueProvider resolves condition values from the Telemetry
// Store, tolerating a device reference that differs from the registered
// ID only in case (rules are often hand-authored or LLM-generated and
// don't always match a device's exact casing).
type TelemetryValueProvider struct {
	store    telemetry.Store
	registry registry.Registry
}

// NewTelemetryValueProvider wires a ValueProvider over a telemetry store
// and, optionally, a registry used for case-insensitive device ID lookup.
func NewTelemetryValueProvider(store telemetry.Store, reg registry.Registry) *TelemetryValueProvider {
	return &TelemetryValueProvider{store: store, registry: reg}
}

func (p *TelemetryValueProvider) Value(ctx context.Context, device, metric string) (models.MetricValue, bool) {
	if pt, ok, err := p.store.Latest(ctx, device, metric); err == nil && ok {
		return pt.Value, true
	}

	if p.registry == nil {
		return models.MetricValue{}, false
	}
	devices, err := p.registry.ListDevices(ctx)
	if err != nil {
		return models.MetricValue{}, false
	}
	for _, d := range devices {
		if !strings.EqualFold(d.ID, device) {
			continue
		}
		if pt, ok, err := p.store.Latest(ctx, d.ID, metric); err == nil && ok {
			return pt.Value, true
		}
	}
	return models.MetricValue{}, false
}

var _ ValueProvider = (*TelemetryValueProvider)(nil)
