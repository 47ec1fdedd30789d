package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/neomind-iot/neomind/internal/registry"
	"github.com/neomind-iot/neomind/internal/telemetry"
	"github.com/neomind-iot/neomind/pkg/models"
)

// FastPathThreshold is the minimum intent confidence required before the
// fast path is even attempted; below it, the turn always falls through to
// the full agentic loop.
const FastPathThreshold = 0.4

// FastPathRouter answers simple device-status and telemetry-lookup turns
// directly from the Device Registry and Telemetry Store, the same way a
// normal turn would via a read-only tool call, but without a round trip
// through the LLM provider.
type FastPathRouter struct {
	registry  registry.Registry
	telemetry telemetry.Store
}

// NewFastPathRouter wires a FastPathRouter over a device registry and
// telemetry store.
func NewFastPathRouter(reg registry.Registry, store telemetry.Store) *FastPathRouter {
	return &FastPathRouter{registry: reg, telemetry: store}
}

// Try answers the turn directly if its intent is a device-status or
// telemetry-lookup question naming exactly one known device; handled is
// false whenever the fast path doesn't apply and the caller should fall
// through to the full loop.
func (f *FastPathRouter) Try(ctx context.Context, intent IntentResult, content string) (answer string, handled bool, err error) {
	if f == nil || f.registry == nil {
		return "", false, nil
	}
	if intent.Confidence < FastPathThreshold {
		return "", false, nil
	}
	if intent.Category != IntentDevice && intent.Category != IntentData {
		return "", false, nil
	}

	dev, ok, err := f.matchDevice(ctx, content)
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, nil
	}

	switch intent.Category {
	case IntentDevice:
		return f.statusAnswer(dev), true, nil
	case IntentData:
		return f.dataAnswer(ctx, dev)
	}
	return "", false, nil
}

// matchDevice finds the single registered device whose ID or display name
// is named in content. Ambiguous (more than one match) or no-match content
// is not handled by the fast path.
func (f *FastPathRouter) matchDevice(ctx context.Context, content string) (models.Device, bool, error) {
	devices, err := f.registry.ListDevices(ctx)
	if err != nil {
		return models.Device{}, false, err
	}
	lower := strings.ToLower(content)

	var matches []models.Device
	for _, d := range devices {
		if d.ID != "" && strings.Contains(lower, strings.ToLower(d.ID)) {
			matches = append(matches, d)
			continue
		}
		if d.DisplayName != "" && strings.Contains(lower, strings.ToLower(d.DisplayName)) {
			matches = append(matches, d)
		}
	}
	if len(matches) != 1 {
		return models.Device{}, false, nil
	}
	return matches[0], true, nil
}

func (f *FastPathRouter) statusAnswer(dev models.Device) string {
	name := dev.DisplayName
	if name == "" {
		name = dev.ID
	}
	switch dev.Status {
	case models.DeviceStatusOnline:
		return fmt.Sprintf("%s is online (last seen %s).", name, dev.LastSeenAt.Format("2006-01-02 15:04:05"))
	case models.DeviceStatusOffline:
		return fmt.Sprintf("%s is offline (last seen %s).", name, dev.LastSeenAt.Format("2006-01-02 15:04:05"))
	default:
		return fmt.Sprintf("%s status is unknown.", name)
	}
}

func (f *FastPathRouter) dataAnswer(ctx context.Context, dev models.Device) (string, bool, error) {
	if f.telemetry == nil {
		return "", false, nil
	}
	snap, err := f.telemetry.Snapshot(ctx, dev.ID)
	if err != nil {
		return "", false, err
	}
	if len(snap.Values) == 0 {
		return "", false, nil
	}

	name := dev.DisplayName
	if name == "" {
		name = dev.ID
	}

	metrics := make([]string, 0, len(snap.Values))
	for m := range snap.Values {
		metrics = append(metrics, m)
	}
	sort.Strings(metrics)

	var b strings.Builder
	fmt.Fprintf(&b, "%s: ", name)
	for i, m := range metrics {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s=%s", m, renderMetricValue(snap.Values[m].Value))
	}
	return b.String(), true, nil
}

func renderMetricValue(v models.MetricValue) string {
	switch v.Kind {
	case models.DataTypeString:
		return v.String
	case models.DataTypeBool:
		if v.Bool {
			return "true"
		}
		return "false"
	case models.DataTypeNull:
		return "null"
	default:
		if f, ok := v.AsFloat64(); ok {
			return strings.TrimSuffix(strings.TrimSuffix(fmt.Sprintf("%.4f", f), "0"), ".")
		}
		return ""
	}
}
