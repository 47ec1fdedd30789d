package main

import (
	"github.com/spf13/cobra"
)

// buildDoctorCmd creates the "doctor" command, which validates that the
// resolved configuration loads and that every configured backend (registry,
// telemetry store, rule store) can be constructed. It does not attempt to
// connect to the broker or exercise Postgres DSNs beyond opening the pool,
// since an unreachable broker on a cold network is an expected operating
// condition, not a misconfiguration.
func buildDoctorCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Validate configuration and backend wiring",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(cmd, configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file (default: resolved profile or neomind.yaml)")

	return cmd
}
