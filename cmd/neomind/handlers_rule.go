package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/neomind-iot/neomind/internal/ruledsl"
	"github.com/neomind-iot/neomind/pkg/models"
)

func runRuleList(cmd *cobra.Command, configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	store, err := openRuleStore(ctx, cfg)
	if err != nil {
		return err
	}

	rules, err := store.ListRules(ctx)
	if err != nil {
		return fmt.Errorf("list rules: %w", err)
	}
	if len(rules) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no rules defined")
		return nil
	}
	for _, r := range rules {
		status := "enabled"
		if !r.Enabled {
			status = "disabled"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%-36s %-10s %s\n", r.ID, status, r.Name)
	}
	return nil
}

func runRuleCreate(cmd *cobra.Command, configPath, dslText string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	store, err := openRuleStore(ctx, cfg)
	if err != nil {
		return err
	}

	rule, err := ruledsl.Parse(dslText)
	if err != nil {
		return fmt.Errorf("parse rule: %w", err)
	}

	now := time.Now()
	rule.ID = uuid.NewString()
	rule.Enabled = true
	rule.Source = dslText
	rule.CreatedAt = now
	rule.UpdatedAt = now

	if err := store.SaveRule(ctx, rule); err != nil {
		return fmt.Errorf("save rule: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "created rule %s (%s)\n", rule.ID, rule.Name)
	return nil
}

func runRuleLint(cmd *cobra.Command, dslText string) error {
	rule, err := ruledsl.Parse(dslText)
	if err != nil {
		return fmt.Errorf("parse rule: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "name:  %s\n", rule.Name)
	fmt.Fprintf(out, "when:  %s\n", describeCondition(rule.When))
	if rule.For > 0 {
		fmt.Fprintf(out, "for:   %s\n", rule.For)
	}
	if rule.Debounce > 0 {
		fmt.Fprintf(out, "debounce: %s\n", rule.Debounce)
	}
	fmt.Fprintln(out, "do:")
	for _, action := range rule.Do {
		fmt.Fprintf(out, "  - %s\n", describeAction(action))
	}
	return nil
}

func describeCondition(c models.Condition) string {
	switch c.Kind {
	case models.ConditionCompare:
		return fmt.Sprintf("%s.%s %s %s", c.Device, c.Metric, c.Op, formatMetricValue(c.Value))
	case models.ConditionNot:
		if len(c.Children) == 1 {
			return "not (" + describeCondition(c.Children[0]) + ")"
		}
		return "not (?)"
	case models.ConditionAnd, models.ConditionOr:
		joiner := " and "
		if c.Kind == models.ConditionOr {
			joiner = " or "
		}
		parts := make([]string, 0, len(c.Children))
		for _, child := range c.Children {
			parts = append(parts, describeCondition(child))
		}
		return "(" + strings.Join(parts, joiner) + ")"
	default:
		return "?"
	}
}

func describeAction(a models.Action) string {
	switch a.Kind {
	case models.ActionNotify:
		return fmt.Sprintf("notify(%q)", a.Message)
	case models.ActionAlert:
		return fmt.Sprintf("alert(%s, %q)", a.Level, a.Message)
	case models.ActionLog:
		return fmt.Sprintf("log(%q)", a.Message)
	case models.ActionExecute:
		return fmt.Sprintf("execute(%s.%s, %v)", a.Device, a.Command, a.Parameters)
	case models.ActionSet:
		return fmt.Sprintf("set(%s.%s = %s)", a.Device, a.Property, formatMetricValue(a.Value))
	case models.ActionDelay:
		return fmt.Sprintf("delay(%s)", a.Delay)
	case models.ActionHTTP:
		return fmt.Sprintf("http(%s %s)", a.Method, a.URL)
	default:
		return string(a.Kind)
	}
}

func runRuleDelete(cmd *cobra.Command, configPath, ruleID string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	store, err := openRuleStore(ctx, cfg)
	if err != nil {
		return err
	}
	if err := store.DeleteRule(ctx, ruleID); err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "deleted rule %s\n", ruleID)
	return nil
}
