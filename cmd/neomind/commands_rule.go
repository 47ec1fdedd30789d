package main

import (
	"github.com/spf13/cobra"
)

// buildRuleCmd wires `rule list|create|rm`, which operate directly against
// the config-resolved rule store.
func buildRuleCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "rule",
		Short: "Manage automation rules",
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file (default: resolved profile or neomind.yaml)")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List automation rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuleList(cmd, configPath)
		},
	}

	createCmd := &cobra.Command{
		Use:   "create <dsl text>",
		Short: "Parse and save an automation rule from its DSL source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuleCreate(cmd, configPath, args[0])
		},
	}

	rmCmd := &cobra.Command{
		Use:   "rm <rule-id>",
		Short: "Delete an automation rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuleDelete(cmd, configPath, args[0])
		},
	}

	lintCmd := &cobra.Command{
		Use:   "lint <dsl text>",
		Short: "Parse a rule without saving it, reporting the compiled condition/actions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuleLint(cmd, args[0])
		},
	}

	cmd.AddCommand(listCmd, createCmd, rmCmd, lintCmd)
	return cmd
}
