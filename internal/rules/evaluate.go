package rules

import (
	"context"
	"fmt"

	"github.com/neomind-iot/neomind/pkg/models"
)

// Evaluate walks a condition tree, resolving leaf comparisons against the
// given provider.
func Evaluate(ctx context.Context, cond models.Condition, provider ValueProvider) (bool, error) {
	switch cond.Kind {
	case models.ConditionCompare:
		return evaluateCompare(ctx, cond, provider)
	case models.ConditionAnd:
		for _, child := range cond.Children {
			ok, err := Evaluate(ctx, child, provider)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	case models.ConditionOr:
		for _, child := range cond.Children {
			ok, err := Evaluate(ctx, child, provider)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case models.ConditionNot:
		if len(cond.Children) != 1 {
			return false, fmt.Errorf("rules: NOT condition must have exactly one child")
		}
		ok, err := Evaluate(ctx, cond.Children[0], provider)
		if err != nil {
			return false, err
		}
		return !ok, nil
	default:
		return false, fmt.Errorf("rules: unknown condition kind %q", cond.Kind)
	}
}

func evaluateCompare(ctx context.Context, cond models.Condition, provider ValueProvider) (bool, error) {
	actual, ok := provider.Value(ctx, cond.Device, cond.Metric)
	if !ok {
		return false, nil
	}
	left, ok := actual.AsFloat64()
	if !ok {
		return false, nil
	}
	right, ok := cond.Value.AsFloat64()
	if !ok {
		return false, fmt.Errorf("rules: condition threshold is not numeric")
	}

	switch cond.Op {
	case models.OpGt:
		return left > right, nil
	case models.OpGte:
		return left >= right, nil
	case models.OpLt:
		return left < right, nil
	case models.OpLte:
		return left <= right, nil
	case models.OpEq:
		return diffWithinEpsilon(left, right), nil
	case models.OpNeq:
		return !diffWithinEpsilon(left, right), nil
	default:
		return false, fmt.Errorf("rules: unknown comparison operator %q", cond.Op)
	}
}

// diffWithinEpsilon mirrors the original DSL's floating point equality
// tolerance rather than comparing IEEE-754 values exactly.
func diffWithinEpsilon(a, b float64) bool {
	const epsilon = 0.0001
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff < epsilon
}
