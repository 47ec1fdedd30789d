// config.go contains configuration loading and profile resolution shared by
// every subcommand.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/neomind-iot/neomind/internal/config"
	"github.com/neomind-iot/neomind/internal/profile"
	"github.com/neomind-iot/neomind/internal/registry"
	"github.com/neomind-iot/neomind/internal/rules"
	"github.com/neomind-iot/neomind/internal/telemetry"
)

// resolveConfigPath determines the configuration file path based on:
// 1. Active profile (from flag or NEOMIND_PROFILE env var)
// 2. Explicit path provided by user
// 3. Default config path
func resolveConfigPath(path string) string {
	activeProfile := strings.TrimSpace(profileName)
	if activeProfile == "" {
		activeProfile = strings.TrimSpace(os.Getenv("NEOMIND_PROFILE"))
	}
	if activeProfile != "" {
		return profile.ProfileConfigPath(activeProfile)
	}
	if strings.TrimSpace(path) == "" || path == profile.DefaultConfigName {
		return profile.DefaultConfigPath()
	}
	return path
}

// loadConfig resolves the config path and loads it.
func loadConfig(path string) (*config.Config, error) {
	resolved := resolveConfigPath(path)
	cfg, err := config.Load(resolved)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", resolved, err)
	}
	return cfg, nil
}

// openRegistry returns a Postgres-backed registry when Devices.RegistryDSN is
// set, otherwise an in-memory registry suitable for development.
func openRegistry(cfg *config.Config) (registry.Registry, error) {
	dsn := strings.TrimSpace(cfg.Devices.RegistryDSN)
	if dsn == "" {
		return registry.NewMemoryRegistry(), nil
	}
	return registry.NewPostgresRegistry(dsn)
}

// openTelemetryStore returns a Postgres-backed telemetry store when
// Devices.TelemetryDSN is set, otherwise an in-memory store with the default
// retention policy.
func openTelemetryStore(cfg *config.Config) (telemetry.Store, error) {
	dsn := strings.TrimSpace(cfg.Devices.TelemetryDSN)
	if dsn == "" {
		return telemetry.NewMemoryStore(telemetry.DefaultRetentionPolicy()), nil
	}
	return telemetry.NewPostgresStoreFromDSN(dsn, nil)
}

// openRuleStore returns a Postgres-backed rule store when
// Automation.StoreDSN is set, otherwise an in-memory store.
func openRuleStore(ctx context.Context, cfg *config.Config) (rules.Store, error) {
	dsn := strings.TrimSpace(cfg.Automation.StoreDSN)
	if dsn == "" {
		return rules.NewMemoryStore(), nil
	}
	return rules.NewPostgresStore(ctx, dsn)
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
}
