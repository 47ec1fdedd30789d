// Package telemetry stores and retrieves device metric readings.
package telemetry

import (
	"context"
	"time"

	"github.com/neomind-iot/neomind/pkg/models"
)

// Store persists telemetry points and answers latest-value and history
// queries. Implementations must be safe for concurrent use.
type Store interface {
	// Append records a single reading. Out-of-order timestamps are accepted;
	// the store does not reject or reorder them.
	Append(ctx context.Context, p models.Point) error

	// Latest returns the most recent reading for (deviceID, metric). ok is
	// false if no reading has ever been recorded.
	Latest(ctx context.Context, deviceID, metric string) (models.Point, bool, error)

	// Snapshot returns the latest reading for every metric the device has
	// reported.
	Snapshot(ctx context.Context, deviceID string) (models.Snapshot, error)

	// History returns readings for (deviceID, metric) within [from, to],
	// oldest first, capped at limit (0 means no cap).
	History(ctx context.Context, deviceID, metric string, from, to time.Time, limit int) ([]models.Point, error)
}

// RetentionPolicy bounds how much history a store keeps for a given metric
// series. Stores are free to apply it lazily (e.g. on Append) rather than
// running a background sweep.
type RetentionPolicy struct {
	MaxAge    time.Duration
	MaxPoints int
}

// DefaultRetentionPolicy keeps 7 days or 100k points per series, whichever is
// reached first.
func DefaultRetentionPolicy() RetentionPolicy {
	return RetentionPolicy{
		MaxAge:    7 * 24 * time.Hour,
		MaxPoints: 100_000,
	}
}
