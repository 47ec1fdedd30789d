package agent

import "strings"

// repetitivePhrases bounds how many times a given filler phrase may appear
// in a single chunk of streamed text before it's treated as a model stuck
// in a loop, rather than legitimate repeated terminology.
var repetitivePhrases = []struct {
	phrase string
	limit  int
}{
	{"maybe", 10},
	{"perhaps", 8},
	{"possibly", 8},
	{"temperature", 8},
	{"sensor", 8},
}

// RepetitionDetector flags streaming chunks that indicate the model is
// stuck producing the same content on repeat, so the orchestrator can
// abort the stream instead of burning the full wall-time budget.
type RepetitionDetector struct {
	threshold    int
	recentChunks []string
}

// NewRepetitionDetector creates a detector comparing the most recent
// `threshold` chunks for similarity.
func NewRepetitionDetector(threshold int) *RepetitionDetector {
	if threshold <= 0 {
		threshold = DefaultStreamSafeguards().MaxRepetitionCount
	}
	return &RepetitionDetector{threshold: threshold}
}

// Observe records a new chunk and reports whether the accumulated stream
// looks like a repetition loop.
func (d *RepetitionDetector) Observe(chunk string) bool {
	defer func() {
		d.recentChunks = append(d.recentChunks, chunk)
		if len(d.recentChunks) > d.threshold*4 {
			d.recentChunks = d.recentChunks[len(d.recentChunks)-d.threshold*4:]
		}
	}()

	if singleChunkRepetitive(chunk) {
		return true
	}
	if len(d.recentChunks) < d.threshold || len(chunk) < 10 {
		return false
	}

	recent := d.recentChunks[len(d.recentChunks)-d.threshold:]
	similar := 0
	for _, prev := range recent {
		if chunkSimilarity(prev, chunk) >= 0.8 {
			similar++
		}
	}
	if similar >= d.threshold-1 {
		return true
	}

	combined := strings.Join(append(append([]string{}, recent...), chunk), "")
	for _, p := range repetitivePhrases {
		if strings.Count(combined, p.phrase) > p.limit*2 {
			return true
		}
	}
	return false
}

func singleChunkRepetitive(chunk string) bool {
	for _, p := range repetitivePhrases {
		if strings.Count(chunk, p.phrase) > p.limit {
			return true
		}
	}
	return false
}

// chunkSimilarity returns the fraction of character positions that agree
// between a and b, over the longer of the two lengths.
func chunkSimilarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	n := len(ra)
	if len(rb) < n {
		n = len(rb)
	}
	if n == 0 {
		return 0
	}
	overlap := 0
	for i := 0; i < n; i++ {
		if ra[i] == rb[i] {
			overlap++
		}
	}
	maxLen := len(ra)
	if len(rb) > maxLen {
		maxLen = len(rb)
	}
	if maxLen == 0 {
		return 0
	}
	return float64(overlap) / float64(maxLen)
}

// collapsePatterns are literal adjacent-doubling artifacts seen in local
// thinking-model output; each left-hand pattern collapses to its
// right-hand replacement until no further change occurs.
var collapsePatterns = [][2]string{
	{"  ", " "},
	{"..", "."},
	{",,", ","},
	{"??", "?"},
}

// CleanThinkingContent collapses doubled punctuation/whitespace artifacts
// and truncates runaway thinking content, the same tidy-up the orchestrator
// applies before surfacing a "thinking" event to a client.
func CleanThinkingContent(thinking string) string {
	if len(thinking) < 200 {
		return thinking
	}

	result := thinking
	for {
		changed := false
		for _, p := range collapsePatterns {
			next := strings.ReplaceAll(result, p[0], p[1])
			if next != result {
				result = next
				changed = true
			}
		}
		if !changed {
			break
		}
	}

	const maxLen = 500
	runes := []rune(result)
	if len(runes) > maxLen {
		result = string(runes[:maxLen]) + "..."
	}
	return result
}
