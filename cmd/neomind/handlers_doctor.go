package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func runDoctor(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	resolved := resolveConfigPath(configPath)
	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(out, "[FAIL] config %s: %v\n", resolved, err)
		return err
	}
	fmt.Fprintf(out, "[ OK ] config %s loaded\n", resolved)

	if _, err := openRegistry(cfg); err != nil {
		fmt.Fprintf(out, "[FAIL] registry backend: %v\n", err)
		return err
	}
	fmt.Fprintln(out, "[ OK ] registry backend constructed")

	if _, err := openTelemetryStore(cfg); err != nil {
		fmt.Fprintf(out, "[FAIL] telemetry backend: %v\n", err)
		return err
	}
	fmt.Fprintln(out, "[ OK ] telemetry backend constructed")

	if _, err := openRuleStore(cmd.Context(), cfg); err != nil {
		fmt.Fprintf(out, "[FAIL] rule store backend: %v\n", err)
		return err
	}
	fmt.Fprintln(out, "[ OK ] rule store backend constructed")

	fmt.Fprintf(out, "[ OK ] broker configured for %s (topic prefix %q)\n", cfg.Broker.URL, cfg.Broker.TopicPrefix)
	fmt.Fprintf(out, "[ OK ] automation tick interval %s\n", cfg.Automation.TickInterval)

	return nil
}
