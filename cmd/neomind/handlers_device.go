package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/neomind-iot/neomind/internal/devices"
	"github.com/neomind-iot/neomind/pkg/models"
)

func runDeviceList(cmd *cobra.Command, configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	reg, err := openRegistry(cfg)
	if err != nil {
		return err
	}

	devicesList, err := reg.ListDevices(cmd.Context())
	if err != nil {
		return fmt.Errorf("list devices: %w", err)
	}
	if len(devicesList) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no devices registered")
		return nil
	}
	for _, d := range devicesList {
		fmt.Fprintf(cmd.OutOrStdout(), "%-24s %-16s %-10s %s\n", d.ID, d.Kind, d.Status, d.DisplayName)
	}
	return nil
}

func runDeviceShow(cmd *cobra.Command, configPath, deviceID string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	reg, err := openRegistry(cfg)
	if err != nil {
		return err
	}
	store, err := openTelemetryStore(cfg)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	dev, err := reg.Device(ctx, deviceID)
	if err != nil {
		return fmt.Errorf("lookup device %q: %w", deviceID, err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "id:           %s\n", dev.ID)
	fmt.Fprintf(out, "kind:         %s\n", dev.Kind)
	fmt.Fprintf(out, "display_name: %s\n", dev.DisplayName)
	fmt.Fprintf(out, "location:     %s\n", dev.Location)
	fmt.Fprintf(out, "status:       %s\n", dev.Status)
	fmt.Fprintf(out, "last_seen_at: %s\n", dev.LastSeenAt)

	snapshot, err := store.Snapshot(ctx, deviceID)
	if err != nil {
		return fmt.Errorf("snapshot telemetry: %w", err)
	}
	if len(snapshot.Values) == 0 {
		fmt.Fprintln(out, "telemetry:    (none recorded)")
		return nil
	}
	fmt.Fprintln(out, "telemetry:")
	for metric, p := range snapshot.Values {
		fmt.Fprintf(out, "  %-16s %s\n", metric, formatMetricValue(p.Value))
	}
	return nil
}

func runDeviceRegister(cmd *cobra.Command, configPath, kind, displayName, location string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	reg, err := openRegistry(cfg)
	if err != nil {
		return err
	}

	dev := models.Device{
		Kind:        kind,
		DisplayName: displayName,
		Location:    location,
	}
	svc := devices.NewService(reg, nil, nil, nil, nil)
	registered, err := svc.RegisterDevice(cmd.Context(), dev)
	if err != nil {
		return fmt.Errorf("register device: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "registered device %s (kind %s)\n", registered.ID, registered.Kind)
	return nil
}

func formatMetricValue(v models.MetricValue) string {
	switch v.Kind {
	case models.DataTypeInt:
		return fmt.Sprintf("%d", v.Int)
	case models.DataTypeFloat:
		return fmt.Sprintf("%g", v.Float)
	case models.DataTypeBool:
		return fmt.Sprintf("%t", v.Bool)
	case models.DataTypeString:
		return v.String
	case models.DataTypeNull:
		return "null"
	default:
		return fmt.Sprintf("%v", v)
	}
}
