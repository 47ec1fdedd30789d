package registry

import (
	"context"
	"testing"
	"time"

	"github.com/neomind-iot/neomind/pkg/models"
)

func TestMemoryRegistryTemplateLifecycle(t *testing.T) {
	r := NewMemoryRegistry()
	ctx := context.Background()

	tmpl := models.DeviceTypeTemplate{
		Kind:        "thermostat",
		DisplayName: "Thermostat",
		Metrics:     []models.MetricDef{{Name: "temperature", Type: models.DataTypeFloat, Unit: "C"}},
		Commands:    []models.CommandDef{{Name: "set_target", Parameters: []models.ParameterDef{{Name: "value", Type: models.DataTypeFloat, Required: true}}}},
	}
	if err := r.RegisterTemplate(ctx, tmpl); err != nil {
		t.Fatalf("register template: %v", err)
	}
	if err := r.RegisterTemplate(ctx, tmpl); err != ErrAlreadyExists {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	got, err := r.Template(ctx, "thermostat")
	if err != nil {
		t.Fatalf("lookup template: %v", err)
	}
	if got.DisplayName != "Thermostat" {
		t.Fatalf("unexpected display name %q", got.DisplayName)
	}

	got.Metrics[0].Name = "mutated"
	again, _ := r.Template(ctx, "thermostat")
	if again.Metrics[0].Name != "temperature" {
		t.Fatal("mutating returned template leaked into registry storage")
	}
}

func TestMemoryRegistryDeviceLifecycle(t *testing.T) {
	r := NewMemoryRegistry()
	ctx := context.Background()

	d := models.Device{ID: "dev-1", Kind: "thermostat", DisplayName: "Living Room"}
	if err := r.RegisterDevice(ctx, d); err != nil {
		t.Fatalf("register device: %v", err)
	}

	if err := r.UpdateStatus(ctx, "dev-1", models.DeviceStatusOnline, time.Now()); err != nil {
		t.Fatalf("update status: %v", err)
	}

	got, err := r.Device(ctx, "dev-1")
	if err != nil {
		t.Fatalf("lookup device: %v", err)
	}
	if got.Status != models.DeviceStatusOnline {
		t.Fatalf("expected online status, got %s", got.Status)
	}

	if err := r.DeleteDevice(ctx, "dev-1"); err != nil {
		t.Fatalf("delete device: %v", err)
	}
	if _, err := r.Device(ctx, "dev-1"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestMemoryRegistryUpdateStatusUnknownDevice(t *testing.T) {
	r := NewMemoryRegistry()
	if err := r.UpdateStatus(context.Background(), "missing", models.DeviceStatusOffline, time.Now()); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
