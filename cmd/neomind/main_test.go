package main

import "testing"

func TestBuildRootCmdIncludesSubcommands(t *testing.T) {
	cmd := buildRootCmd()
	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}

	required := []string{"serve", "device", "rule", "doctor"}
	for _, name := range required {
		if !names[name] {
			t.Fatalf("expected subcommand %q to be registered", name)
		}
	}
}

func TestDeviceCmdHasSubcommands(t *testing.T) {
	cmd := buildDeviceCmd()
	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	for _, name := range []string{"list", "show", "register"} {
		if !names[name] {
			t.Fatalf("expected device subcommand %q to be registered", name)
		}
	}
}

func TestRuleCmdHasSubcommands(t *testing.T) {
	cmd := buildRuleCmd()
	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	for _, name := range []string{"list", "create", "rm"} {
		if !names[name] {
			t.Fatalf("expected rule subcommand %q to be registered", name)
		}
	}
}
