package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/nextlevelbuilder/goforge/internal/memory"
)

// MemorySearchTool queries the long-term memory store filled by
// compaction flushes.
type MemorySearchTool struct {
	store *memory.Store
}

func NewMemorySearchTool(store *memory.Store) *MemorySearchTool {
	return &MemorySearchTool{store: store}
}

func (t *MemorySearchTool) Name() string { return "memory_search" }
func (t *MemorySearchTool) Description() string {
	return "Search long-term memory for past work summarized away by compaction"
}
func (t *MemorySearchTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query": map[string]interface{}{"type": "string", "description": "Keywords to search for"},
			"limit": map[string]interface{}{"type": "integer", "description": "Max results (default 5)"},
		},
		"required": []string{"query"},
	}
}

func (t *MemorySearchTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	query, _ := args["query"].(string)
	if query == "" {
		return ErrorResult("query is required")
	}
	limit := intArg(args, "limit", 5)

	entries, err := t.store.Search(query, limit)
	if err != nil {
		return ErrorResult(fmt.Sprintf("memory search: %v", err))
	}
	if len(entries) == 0 {
		return SilentResult("No memories match " + query)
	}
	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "[%d] (%s, session %s) %s", e.ID, e.CreatedAt, e.Session, truncate(e.Text, 300))
	}
	return SilentResult(b.String())
}

// MemoryGetTool fetches one memory entry in full.
type MemoryGetTool struct {
	store *memory.Store
}

func NewMemoryGetTool(store *memory.Store) *MemoryGetTool {
	return &MemoryGetTool{store: store}
}

func (t *MemoryGetTool) Name() string { return "memory_get" }
func (t *MemoryGetTool) Description() string {
	return "Fetch the full text of one memory entry by id"
}
func (t *MemoryGetTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"id": map[string]interface{}{"type": "integer", "description": "Memory id from memory_search"},
		},
		"required": []string{"id"},
	}
}

func (t *MemoryGetTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	id := intArg(args, "id", 0)
	if id <= 0 {
		return ErrorResult("id is required")
	}
	entry, err := t.store.Get(int64(id))
	if err != nil {
		return ErrorResult(fmt.Sprintf("memory get: %v", err))
	}
	return SilentResult(entry.Text)
}
