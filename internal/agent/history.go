package agent

import "github.com/nextlevelbuilder/goforge/internal/providers"

// SanitizeHistory enforces the pairing invariant on a loaded history:
// every tool call in an assistant message has a matching tool result and
// vice versa. Resumed sessions can carry truncated tails (crash mid-turn);
// the orphans are dropped rather than sent to the provider, which rejects
// unpaired tool traffic.
func SanitizeHistory(history []providers.Message) []providers.Message {
	callIDs := make(map[string]bool)
	resultIDs := make(map[string]bool)
	for _, msg := range history {
		for _, tc := range msg.ToolCalls {
			callIDs[tc.ID] = true
		}
		if msg.Role == "tool" && msg.ToolCallID != "" {
			resultIDs[msg.ToolCallID] = true
		}
	}

	out := make([]providers.Message, 0, len(history))
	for _, msg := range history {
		switch {
		case msg.Role == "tool":
			if callIDs[msg.ToolCallID] {
				out = append(out, msg)
			}
		case len(msg.ToolCalls) > 0:
			kept := msg.ToolCalls[:0:0]
			for _, tc := range msg.ToolCalls {
				if resultIDs[tc.ID] {
					kept = append(kept, tc)
				}
			}
			msg.ToolCalls = kept
			if len(kept) > 0 || msg.Content != "" {
				out = append(out, msg)
			}
		default:
			out = append(out, msg)
		}
	}
	return out
}
