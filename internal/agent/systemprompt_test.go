package agent

import (
	"strings"
	"testing"
)

func TestBuildSystemPromptReturnsBaseWhenNoTools(t *testing.T) {
	got := BuildSystemPrompt("You are NeoMind.", nil, "turn the kitchen light on")
	if got != "You are NeoMind." {
		t.Fatalf("BuildSystemPrompt() = %q, want the base prompt unchanged", got)
	}
}

func TestBuildSystemPromptListsTools(t *testing.T) {
	tools := []Tool{
		&mockTool{name: "list_devices", description: "List registered devices"},
		&mockTool{name: "get_device_status", description: "Get a device's current status"},
	}

	got := BuildSystemPrompt("You are NeoMind.", tools, "")

	if !strings.Contains(got, "You are NeoMind.") {
		t.Fatalf("missing base prompt in %q", got)
	}
	if !strings.Contains(got, "list_devices: List registered devices") {
		t.Fatalf("missing tool entry in %q", got)
	}
	if !strings.Contains(got, "get_device_status: Get a device's current status") {
		t.Fatalf("missing tool entry in %q", got)
	}
}

func TestBuildSystemPromptAddsIntentGuidanceForConfidentIntent(t *testing.T) {
	tools := []Tool{&mockTool{name: "list_devices", description: "List registered devices"}}

	got := BuildSystemPrompt("You are NeoMind.", tools, "turn on the kitchen light")

	if !strings.Contains(got, "## Current task") {
		t.Fatalf("expected intent guidance section in %q", got)
	}
	if !strings.Contains(got, intentGuidance[IntentDevice]) {
		t.Fatalf("expected device guidance in %q", got)
	}
}

func TestBuildSystemPromptSkipsGuidanceForGeneralIntent(t *testing.T) {
	tools := []Tool{&mockTool{name: "list_devices", description: "List registered devices"}}

	got := BuildSystemPrompt("You are NeoMind.", tools, "hello there")

	if strings.Contains(got, "## Current task") {
		t.Fatalf("expected no guidance section for an unclassified turn, got %q", got)
	}
}

func TestSystemPromptCacheReusesBuildWhenToolsUnchanged(t *testing.T) {
	tools := []Tool{&mockTool{name: "list_devices", description: "List registered devices"}}
	cache := NewSystemPromptCache("You are NeoMind.")

	first := cache.Build(tools, "")
	cache.mu.Lock()
	builtAfterFirst := cache.built
	cache.mu.Unlock()

	second := cache.Build(tools, "")
	cache.mu.Lock()
	builtAfterSecond := cache.built
	cache.mu.Unlock()

	if !strings.Contains(first, "list_devices") || !strings.Contains(second, "list_devices") {
		t.Fatalf("expected both builds to list tools, got %q and %q", first, second)
	}
	if builtAfterFirst != builtAfterSecond {
		t.Fatalf("expected cached tool listing to stay identical across calls with the same tools")
	}
}

func TestSystemPromptCacheRebuildsWhenToolsChange(t *testing.T) {
	cache := NewSystemPromptCache("You are NeoMind.")

	first := cache.Build([]Tool{&mockTool{name: "list_devices", description: "List registered devices"}}, "")
	second := cache.Build([]Tool{&mockTool{name: "list_devices", description: "List registered devices"},
		&mockTool{name: "control_device", description: "Turn a device on or off"}}, "")

	if strings.Contains(first, "control_device") {
		t.Fatalf("expected first build to not know about control_device yet, got %q", first)
	}
	if !strings.Contains(second, "control_device") {
		t.Fatalf("expected second build to include control_device after the tool set changed, got %q", second)
	}
}

func TestSystemPromptCacheAppendsAddonWithoutRehashing(t *testing.T) {
	tools := []Tool{&mockTool{name: "list_devices", description: "List registered devices"}}
	cache := NewSystemPromptCache("You are NeoMind.")

	withoutAddon := cache.Build(tools, "")
	hashAfterFirst := cache.hash

	withAddon := cache.Build(tools, "turn on the kitchen light")
	hashAfterSecond := cache.hash

	if strings.Contains(withoutAddon, "## Current task") {
		t.Fatalf("expected no addon without a user message, got %q", withoutAddon)
	}
	if !strings.Contains(withAddon, "## Current task") {
		t.Fatalf("expected an addon for a confidently classified user message, got %q", withAddon)
	}
	if hashAfterFirst != hashAfterSecond {
		t.Fatalf("expected the tool-set hash to stay the same across calls with identical tools")
	}
}

func TestSystemPromptCacheInvalidateForcesRebuild(t *testing.T) {
	tools := []Tool{&mockTool{name: "list_devices", description: "List registered devices"}}
	cache := NewSystemPromptCache("You are NeoMind.")

	cache.Build(tools, "")
	cache.Invalidate()

	cache.mu.Lock()
	built := cache.built
	hash := cache.hash
	cache.mu.Unlock()

	if built != "" || hash != "" {
		t.Fatalf("expected Invalidate to clear the cached listing and hash")
	}
}
