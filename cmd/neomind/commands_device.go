package main

import (
	"github.com/spf13/cobra"
)

// buildDeviceCmd wires `device list|show|register`, which operate directly
// against the config-resolved registry — there is no HTTP API layer in this
// on-premise binary.
func buildDeviceCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "device",
		Short: "Manage registered devices",
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file (default: resolved profile or neomind.yaml)")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List registered devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeviceList(cmd, configPath)
		},
	}

	showCmd := &cobra.Command{
		Use:   "show <device-id>",
		Short: "Show a device's details and latest telemetry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeviceShow(cmd, configPath, args[0])
		},
	}

	var kind, displayName, location string
	registerCmd := &cobra.Command{
		Use:   "register",
		Short: "Register a new device against a known device-type template",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeviceRegister(cmd, configPath, kind, displayName, location)
		},
	}
	registerCmd.Flags().StringVar(&kind, "kind", "", "Device-type template kind (required)")
	registerCmd.Flags().StringVar(&displayName, "name", "", "Human-readable device name")
	registerCmd.Flags().StringVar(&location, "location", "", "Physical location label")
	registerCmd.MarkFlagRequired("kind")

	cmd.AddCommand(listCmd, showCmd, registerCmd)
	return cmd
}
