package tools

import (
	"context"
	"sync/atomic"
)

// CompactRequest is the flag the compact tool sets and the main loop
// consumes after the turn completes. Compaction never runs mid-turn.
type CompactRequest struct {
	requested atomic.Bool
}

func NewCompactRequest() *CompactRequest {
	return &CompactRequest{}
}

// Consume returns whether compaction was requested and clears the flag.
func (c *CompactRequest) Consume() bool {
	return c.requested.Swap(false)
}

// CompactTool lets the LLM ask for a history compaction at the end of
// the current turn.
type CompactTool struct {
	req *CompactRequest
}

func NewCompactTool(req *CompactRequest) *CompactTool {
	return &CompactTool{req: req}
}

func (t *CompactTool) Name() string { return "compact" }
func (t *CompactTool) Description() string {
	return "Compact the conversation history into a summary at the end of this turn. Use when the context is getting long"
}
func (t *CompactTool) Parameters() map[string]interface{} {
	return map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
}

func (t *CompactTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	t.req.requested.Store(true)
	return SilentResult("Compaction scheduled for the end of this turn.")
}
