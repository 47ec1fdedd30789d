package registry

import (
	"context"
	"sync"
	"time"

	"github.com/neomind-iot/neomind/pkg/models"
)

// MemoryRegistry is an in-process Registry. Reads/writes return deep copies
// so callers can't mutate shared state through the returned value, mirroring
// the discipline `internal/sessions.MemoryStore` uses for sessions.
type MemoryRegistry struct {
	mu        sync.RWMutex
	templates map[string]models.DeviceTypeTemplate
	devices   map[string]models.Device
}

// NewMemoryRegistry creates an empty MemoryRegistry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		templates: make(map[string]models.DeviceTypeTemplate),
		devices:   make(map[string]models.Device),
	}
}

func cloneTemplate(t models.DeviceTypeTemplate) models.DeviceTypeTemplate {
	clone := t
	clone.Metrics = append([]models.MetricDef(nil), t.Metrics...)
	clone.Commands = append([]models.CommandDef(nil), t.Commands...)
	return clone
}

func cloneDevice(d models.Device) models.Device {
	clone := d
	if d.Tags != nil {
		clone.Tags = make(map[string]string, len(d.Tags))
		for k, v := range d.Tags {
			clone.Tags[k] = v
		}
	}
	if d.Metadata != nil {
		clone.Metadata = make(map[string]any, len(d.Metadata))
		for k, v := range d.Metadata {
			clone.Metadata[k] = v
		}
	}
	return clone
}

func (r *MemoryRegistry) RegisterTemplate(ctx context.Context, t models.DeviceTypeTemplate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.templates[t.Kind]; exists {
		return ErrAlreadyExists
	}
	r.templates[t.Kind] = cloneTemplate(t)
	return nil
}

func (r *MemoryRegistry) Template(ctx context.Context, kind string) (models.DeviceTypeTemplate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.templates[kind]
	if !ok {
		return models.DeviceTypeTemplate{}, ErrNotFound
	}
	return cloneTemplate(t), nil
}

func (r *MemoryRegistry) ListTemplates(ctx context.Context) ([]models.DeviceTypeTemplate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.DeviceTypeTemplate, 0, len(r.templates))
	for _, t := range r.templates {
		out = append(out, cloneTemplate(t))
	}
	return out, nil
}

func (r *MemoryRegistry) RegisterDevice(ctx context.Context, d models.Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.devices[d.ID]; exists {
		return ErrAlreadyExists
	}
	if d.RegisteredAt.IsZero() {
		d.RegisteredAt = time.Now()
	}
	if d.Status == "" {
		d.Status = models.DeviceStatusUnknown
	}
	r.devices[d.ID] = cloneDevice(d)
	return nil
}

func (r *MemoryRegistry) Device(ctx context.Context, id string) (models.Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.devices[id]
	if !ok {
		return models.Device{}, ErrNotFound
	}
	return cloneDevice(d), nil
}

func (r *MemoryRegistry) ListDevices(ctx context.Context) ([]models.Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Device, 0, len(r.devices))
	for _, d := range r.devices {
		out = append(out, cloneDevice(d))
	}
	return out, nil
}

func (r *MemoryRegistry) UpdateStatus(ctx context.Context, id string, status models.DeviceStatus, seenAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[id]
	if !ok {
		return ErrNotFound
	}
	d.Status = status
	if !seenAt.IsZero() {
		d.LastSeenAt = seenAt
	}
	r.devices[id] = d
	return nil
}

func (r *MemoryRegistry) DeleteDevice(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.devices[id]; !ok {
		return ErrNotFound
	}
	delete(r.devices, id)
	return nil
}

var _ Registry = (*MemoryRegistry)(nil)
