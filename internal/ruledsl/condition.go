package ruledsl

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/neomind-iot/neomind/pkg/models"
)

// parseCondition parses a WHEN clause body. Precedence, loosest to
// tightest: OR, AND, NOT, comparison/BETWEEN. Parenthesized groups bind
// tightest of all.
func parseCondition(input string) (models.Condition, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return models.Condition{}, fmt.Errorf("%w: empty condition", ErrParse)
	}

	upper := strings.ToUpper(input)
	if upper == "NOT" || strings.HasPrefix(upper, "NOT ") {
		inner := strings.TrimSpace(input[3:])
		if inner != "" {
			child, err := parseCondition(inner)
			if err != nil {
				return models.Condition{}, err
			}
			return models.Condition{Kind: models.ConditionNot, Children: []models.Condition{child}}, nil
		}
	}

	if pos := findBetween(input); pos >= 0 {
		return parseBetween(input, pos)
	}

	if strings.HasPrefix(input, "(") {
		if close := findMatchingParen(input); close >= 0 {
			inner := input[1:close]
			rest := strings.TrimSpace(input[close+1:])
			restUpper := strings.ToUpper(rest)
			switch {
			case strings.HasPrefix(restUpper, "AND "):
				left, err := parseCondition(inner)
				if err != nil {
					return models.Condition{}, err
				}
				right, err := parseCondition(rest[4:])
				if err != nil {
					return models.Condition{}, err
				}
				return models.Condition{Kind: models.ConditionAnd, Children: []models.Condition{left, right}}, nil
			case strings.HasPrefix(restUpper, "OR "):
				left, err := parseCondition(inner)
				if err != nil {
					return models.Condition{}, err
				}
				right, err := parseCondition(rest[3:])
				if err != nil {
					return models.Condition{}, err
				}
				return models.Condition{Kind: models.ConditionOr, Children: []models.Condition{left, right}}, nil
			case rest == "":
				return parseCondition(inner)
			}
		}
	}

	if pos := findOperatorIgnoringParens(input, "AND"); pos >= 0 {
		left, err := parseCondition(input[:pos])
		if err != nil {
			return models.Condition{}, err
		}
		right, err := parseCondition(input[pos+5:])
		if err != nil {
			return models.Condition{}, err
		}
		return models.Condition{Kind: models.ConditionAnd, Children: []models.Condition{left, right}}, nil
	}

	if pos := findOperatorIgnoringParens(input, "OR"); pos >= 0 {
		left, err := parseCondition(input[:pos])
		if err != nil {
			return models.Condition{}, err
		}
		right, err := parseCondition(input[pos+4:])
		if err != nil {
			return models.Condition{}, err
		}
		return models.Condition{Kind: models.ConditionOr, Children: []models.Condition{left, right}}, nil
	}

	return parseComparison(input)
}

func findMatchingParen(input string) int {
	depth := 0
	for i, c := range input {
		switch c {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// findOperatorIgnoringParens finds " AND " / " OR " outside of any
// parenthesized group.
func findOperatorIgnoringParens(input, op string) int {
	target := " " + op + " "
	upperInput := strings.ToUpper(input)
	upperTarget := strings.ToUpper(target)

	depth := 0
	for i := 0; i < len(input); i++ {
		switch input[i] {
		case '(':
			depth++
		case ')':
			depth--
		default:
			if depth == 0 && i+len(upperTarget) <= len(upperInput) && upperInput[i:i+len(upperTarget)] == upperTarget {
				return i
			}
		}
	}
	return -1
}

func findBetween(input string) int {
	upper := strings.ToUpper(input)
	return strings.Index(upper, " BETWEEN ")
}

func parseBetween(input string, betweenPos int) (models.Condition, error) {
	left := input[:betweenPos]
	after := strings.TrimSpace(input[betweenPos+9:])

	andPos := strings.Index(strings.ToUpper(after), " AND ")
	if andPos < 0 {
		return models.Condition{}, fmt.Errorf("%w: BETWEEN without AND: %q", ErrParse, input)
	}

	device, metric, err := parseSourceMetric(left)
	if err != nil {
		return models.Condition{}, err
	}

	minStr := strings.TrimSpace(after[:andPos])
	maxStr := strings.TrimSpace(after[andPos+5:])
	min, err := strconv.ParseFloat(minStr, 64)
	if err != nil {
		return models.Condition{}, fmt.Errorf("%w: invalid BETWEEN min %q", ErrParse, minStr)
	}
	max, err := strconv.ParseFloat(maxStr, 64)
	if err != nil {
		return models.Condition{}, fmt.Errorf("%w: invalid BETWEEN max %q", ErrParse, maxStr)
	}

	ge := models.Condition{Kind: models.ConditionCompare, Device: device, Metric: metric, Op: models.OpGte, Value: models.FloatValue(min)}
	le := models.Condition{Kind: models.ConditionCompare, Device: device, Metric: metric, Op: models.OpLte, Value: models.FloatValue(max)}
	return models.Condition{Kind: models.ConditionAnd, Children: []models.Condition{ge, le}}, nil
}

// parseSourceMetric splits "device.metric" (and nested paths like
// "device.metadata.height") on the first dot.
func parseSourceMetric(input string) (string, string, error) {
	input = strings.TrimSpace(input)
	if dot := strings.Index(input, "."); dot >= 0 {
		return input[:dot], input[dot+1:], nil
	}
	return "", input, nil
}

var compareOps = []struct {
	token string
	op    models.CompareOp
}{
	{">=", models.OpGte},
	{"<=", models.OpLte},
	{"==", models.OpEq},
	{"!=", models.OpNeq},
	{">", models.OpGt},
	{"<", models.OpLt},
}

func parseComparison(input string) (models.Condition, error) {
	for _, c := range compareOps {
		if idx := strings.Index(input, c.token); idx >= 0 {
			left := input[:idx]
			right := strings.TrimSpace(input[idx+len(c.token):])
			device, metric, err := parseSourceMetric(left)
			if err != nil {
				return models.Condition{}, err
			}
			threshold, err := strconv.ParseFloat(right, 64)
			if err != nil {
				return models.Condition{}, fmt.Errorf("%w: invalid threshold %q", ErrParse, right)
			}
			return models.Condition{
				Kind:   models.ConditionCompare,
				Device: device,
				Metric: metric,
				Op:     c.op,
				Value:  models.FloatValue(threshold),
			}, nil
		}
	}
	return models.Condition{}, fmt.Errorf("%w: invalid condition %q", ErrParse, input)
}
