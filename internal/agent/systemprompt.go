package agent

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
)

// intentGuidance gives a short, user-facing description of what the
// assistant should focus on for a given intent category. Mirrors
// original_source's get_intent_prompt_addon mapping
// (`original_source/crates/neomind-agent/src/llm.rs`), generalized from
// NeoTalk's fixed device/data assistant to NeoMind's full intent set.
var intentGuidance = map[IntentCategory]string{
	IntentDevice:   "The user is asking about a specific device's state or control. Prefer device tools over general conversation.",
	IntentRule:     "The user is describing or asking about an automation rule. Prefer rule-management tools.",
	IntentWorkflow: "The user is describing or asking about a multi-step workflow or scene. Prefer workflow tools.",
	IntentData:     "The user wants telemetry history or trends. Prefer data/telemetry-query tools.",
	IntentAlert:    "The user is reporting or asking about an alert. Treat urgency accordingly.",
	IntentSystem:   "The user wants to inspect or control the assistant's own runtime. Prefer system tools.",
	IntentHelp:     "The user wants an explanation of available capabilities.",
}

// buildToolListing renders the part of the system prompt that only changes
// when the tool-definition set changes: the base prompt followed by the
// "## Available tools" section. This is the portion SystemPromptCache
// memoizes, mirroring original_source's build_base_system_prompt, which
// bakes the tool catalogue into a cached base string
// (`original_source/crates/neomind-agent/src/llm.rs`).
func buildToolListing(base string, tools []Tool) string {
	if len(tools) == 0 {
		return base
	}

	var b strings.Builder
	b.WriteString(base)
	if !strings.HasSuffix(base, "\n") {
		b.WriteString("\n")
	}
	b.WriteString("\n## Available tools\n")
	for _, tool := range tools {
		b.WriteString("- ")
		b.WriteString(tool.Name())
		b.WriteString(": ")
		b.WriteString(tool.Description())
		b.WriteString("\n")
	}

	return b.String()
}

// intentAddon returns the per-request guidance line for userMessage, or ""
// if the turn's intent can't be classified confidently. This is the part
// original_source appends to the cached base prompt without re-hashing the
// tool set (`build_system_prompt_with_tools`).
func intentAddon(userMessage string) string {
	if userMessage == "" {
		return ""
	}
	intent := ClassifyIntent(userMessage)
	guidance, ok := intentGuidance[intent.Category]
	if !ok || intent.Confidence <= 0 {
		return ""
	}
	return "\n## Current task\n" + guidance + "\n"
}

// BuildSystemPrompt assembles the system prompt sent with a completion
// request: the base prompt, the tool listing, and an optional per-turn
// intent addon. Grounded on original_source's build_system_prompt_with_tools,
// generalized past its fixed IoT-assistant wording into a base-prompt
// parameter so callers (and tests) control the assistant's identity line.
//
// Callers that send many requests against the same tool set should prefer
// SystemPromptCache, which memoizes the tool-listing portion built here
// instead of recomputing it on every call.
//
// This does not reproduce the upstream ToolFilter's tool-subsetting (that
// filter's implementation wasn't available to port), so every tool passed
// in is always listed.
func BuildSystemPrompt(base string, tools []Tool, userMessage string) string {
	if len(tools) == 0 {
		return base
	}
	return buildToolListing(base, tools) + intentAddon(userMessage)
}

// hashToolDefinitions returns a stable hash of a tool set's names and
// descriptions, used by SystemPromptCache to detect when the cached tool
// listing must be rebuilt. Ported from original_source's cached_tools_hash
// field (`original_source/crates/neomind-agent/src/llm.rs`), which pairs a
// hash with the cached prompt string for the same purpose.
func hashToolDefinitions(tools []Tool) string {
	h := sha256.New()
	for _, tool := range tools {
		h.Write([]byte(tool.Name()))
		h.Write([]byte{0})
		h.Write([]byte(tool.Description()))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// SystemPromptCache memoizes the built system prompt so it isn't
// reassembled on every completion request. It holds a single cached string
// plus a hash of the tool-definition set that produced it; the cache is
// rebuilt only when that hash changes. A per-request addon (the intent
// guidance line) is appended on top of the cached string without
// recomputing the hash. Grounded on original_source's system_prompt_cache /
// cached_tools_hash pair and invalidate_prompt_cache
// (`original_source/crates/neomind-agent/src/llm.rs`).
type SystemPromptCache struct {
	mu    sync.Mutex
	base  string
	hash  string
	built string
}

// NewSystemPromptCache creates a cache that renders tool listings on top of
// base.
func NewSystemPromptCache(base string) *SystemPromptCache {
	return &SystemPromptCache{base: base}
}

// SetBase replaces the base prompt and invalidates the cache, mirroring
// original_source's invalidate_prompt_cache being called whenever the
// underlying configuration changes.
func (c *SystemPromptCache) SetBase(base string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.base = base
	c.hash = ""
	c.built = ""
}

// Invalidate forces the next Build call to recompute the tool listing
// regardless of whether the tool set's hash has changed. Mirrors
// original_source's invalidate_prompt_cache.
func (c *SystemPromptCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hash = ""
	c.built = ""
}

// Build returns the system prompt for tools and userMessage, rebuilding the
// cached tool listing only if tools' hash differs from what's cached. The
// per-request intent addon is always computed fresh and is never part of
// the cached string or its hash.
func (c *SystemPromptCache) Build(tools []Tool, userMessage string) string {
	if len(tools) == 0 {
		c.mu.Lock()
		base := c.base
		c.mu.Unlock()
		return base
	}

	hash := hashToolDefinitions(tools)

	c.mu.Lock()
	if c.hash != hash || c.built == "" {
		c.built = buildToolListing(c.base, tools)
		c.hash = hash
	}
	built := c.built
	c.mu.Unlock()

	return built + intentAddon(userMessage)
}
