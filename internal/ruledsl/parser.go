package ruledsl

import (
	"fmt"
	"strings"
	"time"

	"github.com/neomind-iot/neomind/pkg/models"
)

// Parse compiles DSL rule text into a models.Rule. The ID, Enabled,
// CreatedAt, and UpdatedAt fields are left zero for the caller to fill in.
func Parse(input string) (models.Rule, error) {
	text := preprocess(input)
	lines := strings.Split(text, "\n")

	name, err := extractHeader(&lines)
	if err != nil {
		return models.Rule{}, err
	}

	when, err := extractWhen(&lines)
	if err != nil {
		return models.Rule{}, err
	}

	forDuration := extractFor(&lines)

	actions, err := extractDo(lines)
	if err != nil {
		return models.Rule{}, err
	}
	if len(actions) == 0 {
		return models.Rule{}, fmt.Errorf("%w: rule has no actions", ErrParse)
	}

	return models.Rule{
		Name:   name,
		When:   when,
		For:    forDuration,
		Do:     actions,
		Source: input,
	}, nil
}

func extractHeader(lines *[]string) (string, error) {
	for i, line := range *lines {
		if strings.HasPrefix(line, "RULE") {
			rest := strings.TrimSpace(strings.TrimPrefix(line, "RULE"))
			name, _, ok := extractQuotedString(rest)
			if !ok {
				return "", fmt.Errorf("%w: RULE requires a quoted name", ErrParse)
			}
			*lines = append((*lines)[:i], (*lines)[i+1:]...)
			return name, nil
		}
	}
	return "", fmt.Errorf("%w: rule name not found", ErrParse)
}

func extractWhen(lines *[]string) (models.Condition, error) {
	for i, line := range *lines {
		if strings.HasPrefix(line, "WHEN") {
			condStr := strings.TrimSpace(strings.TrimPrefix(line, "WHEN"))
			*lines = append((*lines)[:i], (*lines)[i+1:]...)
			return parseCondition(condStr)
		}
	}
	return models.Condition{}, fmt.Errorf("%w: WHEN clause not found", ErrParse)
}

func extractFor(lines *[]string) time.Duration {
	for i, line := range *lines {
		if strings.HasPrefix(line, "FOR") {
			durStr := strings.TrimSpace(strings.TrimPrefix(line, "FOR"))
			*lines = append((*lines)[:i], (*lines)[i+1:]...)
			if d, ok := parseDuration(durStr); ok {
				return d
			}
			return 0
		}
	}
	return 0
}

func extractDo(lines []string) ([]models.Action, error) {
	var actions []models.Action
	inDo := false
	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "DO"):
			inDo = true
			continue
		case line == "END":
			return actions, nil
		case inDo && line != "":
			action, ok, err := parseAction(line)
			if err != nil {
				return nil, err
			}
			if ok {
				actions = append(actions, action)
			}
		}
	}
	return actions, nil
}
