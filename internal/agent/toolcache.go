package agent

import (
	"encoding/json"
	"sort"
	"sync"
	"time"
)

// nonCacheableTools are tools whose results must never be served from
// cache because they mutate device or rule state rather than just reading
// it; a cached "success" would silently skip a real side effect.
var nonCacheableTools = map[string]struct{}{
	"execute_command":  {},
	"dispatch_command": {},
	"set_device_state": {},
	"toggle_device":    {},
	"delete_device":    {},
	"register_device":  {},
	"create_rule":      {},
	"delete_rule":      {},
}

// IsToolCacheable reports whether a tool's result may be safely cached and
// reused across calls with identical arguments.
func IsToolCacheable(name string) bool {
	_, nonCacheable := nonCacheableTools[name]
	return !nonCacheable
}

type toolCacheEntry struct {
	result   *ToolResult
	expireAt time.Time
}

// ToolResultCache is a bounded, TTL-expiring cache of tool results keyed by
// tool name plus its (order-normalized) arguments, so that two identical
// read-only tool calls within the TTL window don't both hit the LLM's
// requested side effect twice.
type ToolResultCache struct {
	mu         sync.Mutex
	entries    map[string]toolCacheEntry
	order      []string // insertion order, oldest first, for LRU eviction
	ttl        time.Duration
	maxEntries int
}

// NewToolResultCache creates a cache with the given TTL and a default
// maximum size of 1000 entries, bounding memory growth the same way the
// Auto-Onboard Sink's dedupe cache does.
func NewToolResultCache(ttl time.Duration) *ToolResultCache {
	return &ToolResultCache{
		entries:    make(map[string]toolCacheEntry),
		ttl:        ttl,
		maxEntries: 1000,
	}
}

// ToolCacheKey builds a cache key from a tool name and its JSON-object
// arguments, sorting object keys so argument order never produces a
// spurious miss.
func ToolCacheKey(name string, arguments json.RawMessage) string {
	var m map[string]any
	if err := json.Unmarshal(arguments, &m); err != nil {
		return name + ":" + string(arguments)
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	sorted := make(map[string]any, len(m))
	for _, k := range keys {
		sorted[k] = m[k]
	}
	encoded, err := json.Marshal(sorted)
	if err != nil {
		return name + ":" + string(arguments)
	}
	return name + ":" + string(encoded)
}

// Get returns the cached result for key if present and unexpired.
func (c *ToolResultCache) Get(key string) (*ToolResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expireAt) {
		return nil, false
	}
	return entry.result, true
}

// Set stores result under key, evicting the oldest entry if the cache is
// at capacity.
func (c *ToolResultCache) Set(key string, result *ToolResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists {
		if len(c.entries) >= c.maxEntries && len(c.order) > 0 {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
		}
		c.order = append(c.order, key)
	}
	c.entries[key] = toolCacheEntry{result: result, expireAt: time.Now().Add(c.ttl)}
}

// CleanupExpired removes every entry past its TTL. Callers run this
// periodically rather than on every Get, to keep the hot path cheap.
func (c *ToolResultCache) CleanupExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	fresh := c.order[:0]
	for _, key := range c.order {
		entry, ok := c.entries[key]
		if !ok {
			continue
		}
		if now.After(entry.expireAt) {
			delete(c.entries, key)
			continue
		}
		fresh = append(fresh, key)
	}
	c.order = fresh
}

// Len returns the current number of cached entries.
func (c *ToolResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
