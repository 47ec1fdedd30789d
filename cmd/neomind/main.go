// Package main provides the CLI entry point for NeoMind, an on-premise IoT
// assistant that combines an LLM-driven conversational agent with MQTT
// device telemetry ingestion and a rule-based automation engine.
//
// # Basic Usage
//
// Start the broker bridge, device service, and rule engine:
//
//	neomind serve --config neomind.yaml
//
// Manage devices and automation rules:
//
//	neomind device list
//	neomind device register --id kitchen-thermostat --kind thermostat
//	neomind rule create "when kitchen.temperature > 28 for 5m do notify('too hot')"
//	neomind rule list
//
// # Environment Variables
//
//   - NEOMIND_CONFIG: Path to configuration file (default: neomind.yaml)
//   - ANTHROPIC_API_KEY / OPENAI_API_KEY: LLM provider credentials
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Build information - populated by ldflags during build.
var (
	version     = "dev"
	commit      = "none"
	date        = "unknown"
	profileName string
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
// Separated from main() to facilitate testing.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "neomind",
		Short: "NeoMind - on-premise IoT assistant",
		Long: `NeoMind bridges MQTT device telemetry, a rule-based automation engine,
and an LLM conversational agent behind a single on-premise binary.

Documentation: https://github.com/neomind-iot/neomind`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&profileName, "profile", "", "Profile name (uses ~/.neomind/profiles/<name>.yaml; or set NEOMIND_PROFILE)")

	rootCmd.AddCommand(
		buildServeCmd(),
		buildDeviceCmd(),
		buildRuleCmd(),
		buildDoctorCmd(),
	)

	return rootCmd
}
