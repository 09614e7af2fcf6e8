package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nextlevelbuilder/goforge/internal/config"
	"github.com/nextlevelbuilder/goforge/internal/memory"
	"github.com/nextlevelbuilder/goforge/internal/providers"
	"github.com/nextlevelbuilder/goforge/internal/session"
)

// microPlaceholderLimit is the tool-result length above which an old
// result is collapsed to a placeholder.
const microPlaceholderLimit = 100

// MicroCompact collapses old, large tool results to one-line placeholders
// while leaving the last keepRecent results untouched. Every message and
// every call_id pairing survives; only content shrinks.
func MicroCompact(history []providers.Message, keepRecent int) []providers.Message {
	if keepRecent <= 0 {
		keepRecent = 3
	}

	var resultIdx []int
	for i, msg := range history {
		if msg.Role == "tool" {
			resultIdx = append(resultIdx, i)
		}
	}
	if len(resultIdx) <= keepRecent {
		return history
	}

	// call_id → tool name, recovered from the assistant turns.
	names := make(map[string]string)
	for _, msg := range history {
		for _, tc := range msg.ToolCalls {
			names[tc.ID] = tc.Name
		}
	}

	out := make([]providers.Message, len(history))
	copy(out, history)
	for _, i := range resultIdx[:len(resultIdx)-keepRecent] {
		if len(out[i].Content) <= microPlaceholderLimit {
			continue
		}
		name := names[out[i].ToolCallID]
		if name == "" {
			name = "a tool"
		}
		out[i].Content = fmt.Sprintf("[Previous: used %s]", name)
	}
	return out
}

// EstimateTokens approximates the token count of a history at 4 chars
// per token, plus a small per-message overhead.
func EstimateTokens(history []providers.Message) int {
	total := 0
	for _, msg := range history {
		total += len(msg.Content)
		for _, tc := range msg.ToolCalls {
			total += len(tc.Name)
			if args, err := json.Marshal(tc.Arguments); err == nil {
				total += len(args)
			}
		}
		total += 16 // role + framing
	}
	return total / 4
}

// AutoCompact snapshots the full history into transcript.jsonl, asks the
// model for a summary, flushes the summary into long-term memory, and
// returns exactly two synthetic messages carrying the summary. mem may
// be nil.
func AutoCompact(
	ctx context.Context,
	provider providers.Provider,
	model string,
	sess *session.Session,
	mem *memory.Store,
	history []providers.Message,
	cfg config.CompactionConfig,
) ([]providers.Message, error) {
	if err := sess.AppendTranscript(history); err != nil {
		return nil, fmt.Errorf("auto-compact: %w", err)
	}

	summary, err := summarize(ctx, provider, model, history, cfg.TranscriptMaxChars)
	if err != nil {
		return nil, fmt.Errorf("auto-compact: %w", err)
	}

	if mem != nil {
		if _, err := mem.Insert(sess.Key, summary); err != nil {
			slog.Warn("memory flush failed", "error", err)
		}
	}

	return []providers.Message{
		{
			Role: "user",
			Content: fmt.Sprintf(
				"Earlier conversation was compacted. Full transcript: %s\n\nSummary of the conversation so far:\n%s",
				sess.TranscriptPath(), summary),
		},
		{
			Role:    "assistant",
			Content: "Understood. I have the summary and will continue from there.",
		},
	}, nil
}

// summarize asks the model for the three-part compaction summary over a
// size-capped serialization of the history.
func summarize(ctx context.Context, provider providers.Provider, model string, history []providers.Message, maxChars int) (string, error) {
	if maxChars <= 0 {
		maxChars = 80000
	}

	serialized, err := json.Marshal(history)
	if err != nil {
		return "", fmt.Errorf("serialize history: %w", err)
	}
	text := string(serialized)
	if len(text) > maxChars {
		// Keep the tail: recent turns matter most for continuation.
		text = text[len(text)-maxChars:]
	}

	resp, err := provider.Chat(ctx, providers.ChatRequest{
		Model: model,
		Messages: []providers.Message{
			{
				Role: "system",
				Content: "You summarize agent conversations for context compaction. " +
					"Cover: (1) completed work, (2) current state, (3) key decisions. Be concise but complete.",
			},
			{Role: "user", Content: "Summarize this conversation history:\n\n" + text},
		},
		Options: map[string]interface{}{"max_tokens": 2048},
	})
	if err != nil {
		return "", fmt.Errorf("summary call: %w", err)
	}
	if resp.Content == "" {
		return "", fmt.Errorf("summary call returned empty content")
	}
	return resp.Content, nil
}
