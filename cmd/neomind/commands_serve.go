package main

import (
	"github.com/spf13/cobra"
)

// buildServeCmd wires the `serve` command, which starts the broker bridge,
// device service, offline supervisor, rule engine, and (optionally) the
// auto-onboard sink until interrupted.
func buildServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the broker bridge, device service, and rule engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file (default: resolved profile or neomind.yaml)")

	return cmd
}
