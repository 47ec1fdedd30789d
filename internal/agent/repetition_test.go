package agent

import (
	"strings"
	"testing"
)

func TestRepetitionDetectorSingleChunk(t *testing.T) {
	d := NewRepetitionDetector(3)
	chunk := strings.Repeat("maybe ", 12)
	if !d.Observe(chunk) {
		t.Fatal("expected single-chunk repetition to be detected")
	}
}

func TestRepetitionDetectorMultiChunkSimilarity(t *testing.T) {
	d := NewRepetitionDetector(3)
	chunk := "the sensor reading is currently stable and unchanged"
	for i := 0; i < 3; i++ {
		d.Observe(chunk)
	}
	if !d.Observe(chunk) {
		t.Fatal("expected repeated identical chunks to be detected")
	}
}

func TestRepetitionDetectorAllowsVariedContent(t *testing.T) {
	d := NewRepetitionDetector(3)
	chunks := []string{
		"the kitchen temperature is 21 degrees",
		"the living room humidity is 45 percent",
		"the garage door is currently closed",
		"all devices are reporting normally",
	}
	for _, c := range chunks {
		if d.Observe(c) {
			t.Fatalf("unexpected repetition flagged for varied content: %q", c)
		}
	}
}

func TestCleanThinkingContentCollapsesDoubling(t *testing.T) {
	long := strings.Repeat("a", 250) + "..  ..final"
	cleaned := CleanThinkingContent(long)
	if strings.Contains(cleaned, "  ") {
		t.Fatal("expected doubled whitespace to be collapsed")
	}
}

func TestCleanThinkingContentLeavesShortContentAlone(t *testing.T) {
	short := "brief thought"
	if CleanThinkingContent(short) != short {
		t.Fatal("expected short content to pass through unchanged")
	}
}

func TestCleanThinkingContentTruncatesLong(t *testing.T) {
	long := strings.Repeat("x", 1000)
	cleaned := CleanThinkingContent(long)
	if len(cleaned) > 510 {
		t.Fatalf("expected truncation, got length %d", len(cleaned))
	}
	if !strings.HasSuffix(cleaned, "...") {
		t.Fatal("expected ellipsis suffix after truncation")
	}
}
