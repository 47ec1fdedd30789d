package agent

import (
	"regexp"
	"strings"
)

// IntentCategory classifies what kind of thing an inbound turn is asking
// the assistant to do.
type IntentCategory string

const (
	IntentDevice   IntentCategory = "device"
	IntentRule     IntentCategory = "rule"
	IntentWorkflow IntentCategory = "workflow"
	IntentData     IntentCategory = "data"
	IntentAlert    IntentCategory = "alert"
	IntentSystem   IntentCategory = "system"
	IntentHelp     IntentCategory = "help"
	IntentGeneral  IntentCategory = "general"
)

// IntentResult is the outcome of classifying an inbound turn.
type IntentResult struct {
	Category   IntentCategory
	Confidence float64
	Keywords   []string
}

type intentPattern struct {
	category IntentCategory
	regex    *regexp.Regexp
	weight   float64
}

// intentPatterns are tried in order; a turn accumulates weight across every
// pattern that matches its category, and the highest-weighted category wins.
var intentPatterns = []intentPattern{
	{IntentDevice, regexp.MustCompile(`(?i)\b(turn (on|off)|switch (on|off)|dim|set (the )?(brightness|temperature|thermostat)|status of|is .* (online|offline)|device)\b`), 1.0},
	{IntentRule, regexp.MustCompile(`(?i)\b(rule|automation|whenever|if .* then|trigger|debounce)\b`), 1.0},
	{IntentWorkflow, regexp.MustCompile(`(?i)\b(workflow|scene|sequence|run (the )?routine|schedule)\b`), 1.0},
	{IntentData, regexp.MustCompile(`(?i)\b(history|trend|average|how much|graph|chart|reading|last \d+ (minutes|hours|days))\b`), 1.0},
	{IntentAlert, regexp.MustCompile(`(?i)\b(alert|notify|warn|emergency|urgent)\b`), 1.0},
	{IntentSystem, regexp.MustCompile(`(?i)\b(restart|reboot|shutdown|update firmware|reset|reconnect|broker status)\b`), 1.0},
	{IntentHelp, regexp.MustCompile(`(?i)\b(help|how do i|what can you do|explain|documentation)\b`), 0.8},
}

// ClassifyIntent scores the content of a turn against a fixed set of
// keyword patterns and returns the best-matching category with a
// confidence in [0,1]. An empty or unmatched turn returns IntentGeneral
// with zero confidence.
func ClassifyIntent(content string) IntentResult {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return IntentResult{Category: IntentGeneral}
	}

	scores := make(map[IntentCategory]float64)
	keywordsByCategory := make(map[IntentCategory][]string)

	for _, p := range intentPatterns {
		matches := p.regex.FindAllString(trimmed, -1)
		if len(matches) == 0 {
			continue
		}
		scores[p.category] += p.weight * float64(len(matches))
		keywordsByCategory[p.category] = append(keywordsByCategory[p.category], dedupeLower(matches)...)
	}

	if len(scores) == 0 {
		return IntentResult{Category: IntentGeneral}
	}

	var best IntentCategory
	var bestScore float64
	for cat, score := range scores {
		if score > bestScore {
			bestScore = score
			best = cat
		}
	}

	// Normalize: a single strong match yields high confidence, but
	// confidence never exceeds 1.
	confidence := bestScore / (bestScore + 1)
	if confidence > 1 {
		confidence = 1
	}

	return IntentResult{
		Category:   best,
		Confidence: confidence,
		Keywords:   keywordsByCategory[best],
	}
}

func dedupeLower(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		lower := strings.ToLower(it)
		if _, ok := seen[lower]; ok {
			continue
		}
		seen[lower] = struct{}{}
		out = append(out, lower)
	}
	return out
}
