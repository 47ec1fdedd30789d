// Package registry manages the device catalog: registered devices and the
// device-type templates describing what metrics/commands a kind of device
// exposes.
package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/neomind-iot/neomind/pkg/models"
)

// ErrNotFound is returned when a lookup by ID finds nothing.
var ErrNotFound = fmt.Errorf("registry: not found")

// ErrAlreadyExists is returned by RegisterTemplate/RegisterDevice when the
// given ID is already taken.
var ErrAlreadyExists = fmt.Errorf("registry: already exists")

// Registry manages devices and device-type templates.
type Registry interface {
	// Templates
	RegisterTemplate(ctx context.Context, t models.DeviceTypeTemplate) error
	Template(ctx context.Context, kind string) (models.DeviceTypeTemplate, error)
	ListTemplates(ctx context.Context) ([]models.DeviceTypeTemplate, error)

	// Devices
	RegisterDevice(ctx context.Context, d models.Device) error
	Device(ctx context.Context, id string) (models.Device, error)
	ListDevices(ctx context.Context) ([]models.Device, error)
	UpdateStatus(ctx context.Context, id string, status models.DeviceStatus, seenAt time.Time) error
	DeleteDevice(ctx context.Context, id string) error
}
