// Package workertype defines the enumerated worker types: build-time
// tags with an emoji, label, description, timeout, and tool
// allow-list. Defined once at build time, not mutable at runtime.
package workertype

import (
	"sort"
	"time"

	"github.com/bytedance/gg/gmap"
)

// Type is a single worker type definition.
type Type struct {
	ID            string
	Emoji         string
	Label         string
	Description   string
	Timeout       time.Duration
	ToolAllowList []string
}

type registry struct {
	types map[string]Type
}

var defaultRegistry = newRegistry()

func newRegistry() *registry {
	return &registry{types: builtins()}
}

// builtins is the fixed worker-type catalog: coding, browser, system,
// devops, research, social.
func builtins() map[string]Type {
	return map[string]Type{
		"coding": {
			ID: "coding", Emoji: "💻", Label: "Coding",
			Description:   "Writes, edits, and runs code in the agent workspace.",
			Timeout:       10 * time.Minute,
			ToolAllowList: []string{"read", "write", "edit", "list", "delete", "exec", "process", "codex", "claude-code"},
		},
		"browser": {
			ID: "browser", Emoji: "🌐", Label: "Browser",
			Description:   "Fetches and searches the web.",
			Timeout:       5 * time.Minute,
			ToolAllowList: []string{"web_fetch", "web_search"},
		},
		"system": {
			ID: "system", Emoji: "🖥️", Label: "System",
			Description:   "Runs shell commands and inspects process state.",
			Timeout:       3 * time.Minute,
			ToolAllowList: []string{"exec", "process", "read", "list"},
		},
		"devops": {
			ID: "devops", Emoji: "🛠️", Label: "DevOps",
			Description:   "Delegates to CLI coding agents and git/http tooling for operational tasks.",
			Timeout:       15 * time.Minute,
			ToolAllowList: []string{"agent", "codex", "claude-code", "exec", "http_request", "read", "write"},
		},
		"research": {
			ID: "research", Emoji: "🔎", Label: "Research",
			Description:   "Searches the web and knowledge base, synthesizes findings.",
			Timeout:       8 * time.Minute,
			ToolAllowList: []string{"web_search", "web_fetch", "knowledge_search", "knowledge_get"},
		},
		"social": {
			ID: "social", Emoji: "💬", Label: "Social",
			Description:   "Drafts and sends messages, manages the share queue.",
			Timeout:       2 * time.Minute,
			ToolAllowList: []string{"message"},
		},
	}
}

// Get returns a worker type definition by id.
func Get(id string) (Type, bool) {
	t, ok := defaultRegistry.types[id]
	return t, ok
}

// List returns every worker type, sorted by id.
func List() []Type {
	out := gmap.ToSlice(defaultRegistry.types, func(_ string, v Type) Type { return v })
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AllowListContains reports whether tool is permitted for worker type id.
func AllowListContains(id, tool string) bool {
	t, ok := Get(id)
	if !ok {
		return false
	}
	for _, name := range t.ToolAllowList {
		if name == tool {
			return true
		}
	}
	return false
}
