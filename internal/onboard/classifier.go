package onboard

import (
	"context"
	"fmt"
	"strings"

	"github.com/neomind-iot/neomind/internal/agent"
	"github.com/neomind-iot/neomind/pkg/models"
)

// Classifier picks the device type template that best matches a reading
// from an unrecognized device.
type Classifier interface {
	Classify(ctx context.Context, topic string, payload []byte, candidates []models.DeviceTypeTemplate) (kind string, confidence float64, err error)
}

// HeuristicClassifier matches by inspecting the MQTT topic path and the
// payload's top-level JSON keys against each candidate template's metric
// names, without calling out to an LLM. It is tried first because it's
// free and deterministic; callers fall back to an LLMClassifier when it
// returns zero confidence.
type HeuristicClassifier struct{}

func (HeuristicClassifier) Classify(ctx context.Context, topic string, payload []byte, candidates []models.DeviceTypeTemplate) (string, float64, error) {
	segments := strings.Split(topic, "/")
	payloadStr := strings.ToLower(string(payload))

	var best string
	var bestScore float64

	for _, tmpl := range candidates {
		var score float64
		kindLower := strings.ToLower(tmpl.Kind)
		for _, seg := range segments {
			if strings.EqualFold(seg, tmpl.Kind) {
				score += 0.5
			}
		}
		if strings.Contains(payloadStr, kindLower) {
			score += 0.1
		}
		for _, m := range tmpl.Metrics {
			if strings.Contains(payloadStr, `"`+strings.ToLower(m.Name)+`"`) {
				score += 0.2
			}
		}
		if score > bestScore {
			bestScore = score
			best = tmpl.Kind
		}
	}

	if bestScore == 0 {
		return "", 0, nil
	}
	if bestScore > 1 {
		bestScore = 1
	}
	return best, bestScore, nil
}

var _ Classifier = HeuristicClassifier{}

// LLMClassifier asks an LLM provider to pick the best-matching template
// kind when the heuristic classifier can't confidently decide.
type LLMClassifier struct {
	Provider agent.LLMProvider
	Model    string
}

func (c LLMClassifier) Classify(ctx context.Context, topic string, payload []byte, candidates []models.DeviceTypeTemplate) (string, float64, error) {
	if c.Provider == nil {
		return "", 0, fmt.Errorf("onboard: no LLM provider configured")
	}
	if len(candidates) == 0 {
		return "", 0, nil
	}

	var kinds strings.Builder
	for i, tmpl := range candidates {
		if i > 0 {
			kinds.WriteString(", ")
		}
		kinds.WriteString(tmpl.Kind)
	}

	prompt := fmt.Sprintf(
		"An IoT device published on MQTT topic %q with payload %s.\n"+
			"Candidate device type kinds: %s.\n"+
			"Reply with ONLY the single best-matching kind, or NONE if none fit.",
		topic, string(payload), kinds.String(),
	)

	req := &agent.CompletionRequest{
		Model:     c.Model,
		System:    "You classify IoT telemetry readings into a known device type catalog. Respond with a single word.",
		Messages:  []agent.CompletionMessage{{Role: "user", Content: prompt}},
		MaxTokens: 16,
	}

	chunks, err := c.Provider.Complete(ctx, req)
	if err != nil {
		return "", 0, fmt.Errorf("onboard: classify via LLM: %w", err)
	}

	var answer strings.Builder
	for chunk := range chunks {
		if chunk.Error != nil {
			return "", 0, fmt.Errorf("onboard: LLM classification failed: %w", chunk.Error)
		}
		answer.WriteString(chunk.Text)
	}

	kind := strings.TrimSpace(answer.String())
	kind = strings.Trim(kind, `."'`)
	if strings.EqualFold(kind, "NONE") || kind == "" {
		return "", 0, nil
	}
	for _, tmpl := range candidates {
		if strings.EqualFold(tmpl.Kind, kind) {
			return tmpl.Kind, 0.6, nil
		}
	}
	return "", 0, nil
}

var _ Classifier = LLMClassifier{}

// chainClassifier tries each classifier in order, returning the first
// confident (non-zero) result.
type chainClassifier struct {
	classifiers []Classifier
	threshold   float64
}

func (c chainClassifier) Classify(ctx context.Context, topic string, payload []byte, candidates []models.DeviceTypeTemplate) (string, float64, error) {
	for _, cl := range c.classifiers {
		kind, confidence, err := cl.Classify(ctx, topic, payload, candidates)
		if err != nil {
			continue
		}
		if confidence >= c.threshold && kind != "" {
			return kind, confidence, nil
		}
	}
	return "", 0, nil
}

// NewChainClassifier tries the given classifiers in order, accepting the
// first result whose confidence meets threshold.
func NewChainClassifier(threshold float64, classifiers ...Classifier) Classifier {
	return chainClassifier{classifiers: classifiers, threshold: threshold}
}
