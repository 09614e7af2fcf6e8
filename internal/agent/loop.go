// Package agent drives the main user-prompt-to-final-answer cycle: the
// compaction tiers, inbox and background injection, the ReAct stream with
// parallel tool dispatch, and history persistence.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/nextlevelbuilder/goforge/internal/background"
	"github.com/nextlevelbuilder/goforge/internal/config"
	"github.com/nextlevelbuilder/goforge/internal/memory"
	"github.com/nextlevelbuilder/goforge/internal/providers"
	"github.com/nextlevelbuilder/goforge/internal/session"
	"github.com/nextlevelbuilder/goforge/internal/skills"
	"github.com/nextlevelbuilder/goforge/internal/tools"
	"github.com/nextlevelbuilder/goforge/internal/trace"
)

// nagThreshold is how many rounds may pass without a TodoWrite before
// the reminder is injected.
const nagThreshold = 3

// Event is emitted during a run so the REPL can render progress.
type Event struct {
	Type    string // "tool.call", "tool.result", "chunk"
	Tool    string
	CallID  string
	Content string
	IsError bool
}

// LoopConfig wires one main Loop.
type LoopConfig struct {
	Provider providers.Provider
	Model    string
	Tools    *tools.Registry
	Session  *session.Session
	Tracer   *trace.Tracer

	Team       *tools.TeamManager // nil when teamless
	Background *background.Executor
	Todos      *tools.TodoState
	Compact    *tools.CompactRequest
	Skills     *skills.Loader
	Memory     *memory.Store // nil when disabled

	AgentCfg      config.AgentConfig
	CompactionCfg config.CompactionConfig

	OnEvent func(Event)
}

// Loop is the main agent. One Loop serves one session; Run is invoked
// once per user prompt and carries the history across invocations.
type Loop struct {
	provider providers.Provider
	model    string
	tools    *tools.Registry
	sess     *session.Session
	tracer   *trace.Tracer

	team    *tools.TeamManager
	bg      *background.Executor
	todos   *tools.TodoState
	compact *tools.CompactRequest
	skills  *skills.Loader
	mem     *memory.Store

	workspace     string
	maxIterations int
	maxTokens     int
	temperature   float64
	compactionCfg config.CompactionConfig

	onEvent func(Event)

	history   []providers.Message
	firstTurn bool

	mu                 sync.Mutex
	writesSinceReflect int
}

func NewLoop(cfg LoopConfig) *Loop {
	if cfg.AgentCfg.MaxToolIterations <= 0 {
		cfg.AgentCfg.MaxToolIterations = 100
	}
	if cfg.AgentCfg.MaxTokens <= 0 {
		cfg.AgentCfg.MaxTokens = 8192
	}
	if cfg.CompactionCfg.AutoThresholdTokens <= 0 {
		cfg.CompactionCfg.AutoThresholdTokens = 50000
	}
	if cfg.CompactionCfg.KeepRecentResults <= 0 {
		cfg.CompactionCfg.KeepRecentResults = 3
	}
	return &Loop{
		provider:      cfg.Provider,
		model:         cfg.Model,
		tools:         cfg.Tools,
		sess:          cfg.Session,
		tracer:        cfg.Tracer,
		team:          cfg.Team,
		bg:            cfg.Background,
		todos:         cfg.Todos,
		compact:       cfg.Compact,
		skills:        cfg.Skills,
		mem:           cfg.Memory,
		workspace:     cfg.AgentCfg.Workspace,
		maxIterations: cfg.AgentCfg.MaxToolIterations,
		maxTokens:     cfg.AgentCfg.MaxTokens,
		temperature:   cfg.AgentCfg.Temperature,
		compactionCfg: cfg.CompactionCfg,
		onEvent:       cfg.OnEvent,
		firstTurn:     true,
	}
}

// LoadHistory restores main.jsonl into the loop, sanitized. Used by
// --resume.
func (l *Loop) LoadHistory() error {
	history, err := l.sess.LoadHistory("main")
	if err != nil {
		return err
	}
	l.history = SanitizeHistory(history)
	l.firstTurn = len(l.history) == 0
	return nil
}

// History returns the current history. Tests and the REPL use it.
func (l *Loop) History() []providers.Message {
	return l.history
}

// NoteWrite records a file mutation for the reflection gate. Wired as
// the OnWrite callback of write_file/edit_file.
func (l *Loop) NoteWrite() {
	l.mu.Lock()
	l.writesSinceReflect++
	l.mu.Unlock()
}

func (l *Loop) takeWrites() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := l.writesSinceReflect
	l.writesSinceReflect = 0
	return n
}

func (l *Loop) emit(ev Event) {
	if l.onEvent != nil {
		l.onEvent(ev)
	}
}

// Run processes one user prompt to a final answer.
func (l *Loop) Run(ctx context.Context, userMessage string) (string, error) {
	runID := trace.NewRunID()
	l.tracer.Emit(trace.EventRunStart, runID, trace.Fields{"prompt_len": len(userMessage)})
	start := time.Now()
	toolCount := 0

	content, err := l.runTurn(ctx, runID, userMessage, &toolCount)

	fields := trace.Fields{
		"duration_ms": time.Since(start).Milliseconds(),
		"tool_calls":  toolCount,
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	l.tracer.Emit(trace.EventRunEnd, runID, fields)
	return content, err
}

func (l *Loop) runTurn(ctx context.Context, runID, userMessage string, toolCount *int) (string, error) {
	// 1. Micro-compact in place.
	l.history = MicroCompact(l.history, l.compactionCfg.KeepRecentResults)

	// 2. Auto-compact gate.
	if EstimateTokens(l.history) > l.compactionCfg.AutoThresholdTokens {
		if err := l.compactNow(ctx, runID, "auto"); err != nil {
			slog.Warn("auto-compaction failed, continuing uncompacted", "error", err)
		}
	}

	// 3. Inbox injection. Only touch the inbox when the team subsystem
	// is live, so a teamless run never creates team directories.
	if l.team != nil && l.team.Live() {
		l.injectInbox()
	}

	// 4. Background drain.
	l.injectBackground()

	// 5. Nag injection: todo reminder plus the reflection gate.
	l.injectNags()

	// 6-7. ReAct stream with empty-content fallback.
	messages := make([]providers.Message, 0, len(l.history)+2)
	messages = append(messages, providers.Message{Role: "system", Content: l.buildSystemPrompt()})
	messages = append(messages, l.history...)
	userMsg := providers.Message{Role: "user", Content: userMessage}
	messages = append(messages, userMsg)

	pending := []providers.Message{userMsg}
	finalContent, pendingOut, err := l.react(ctx, runID, messages, toolCount)
	if err != nil {
		return "", err
	}
	pending = append(pending, pendingOut...)
	pending = append(pending, providers.Message{Role: "assistant", Content: finalContent})

	// 8. Persist.
	l.history = append(l.history, pending...)
	l.firstTurn = false
	if err := l.sess.SaveHistory("main", l.history); err != nil {
		slog.Warn("history save failed", "error", err)
	}

	// 9. Manual compact, requested via the compact tool during this run.
	if l.compact != nil && l.compact.Consume() {
		if err := l.compactNow(ctx, runID, "manual"); err != nil {
			slog.Warn("manual compaction failed", "error", err)
		} else if err := l.sess.SaveHistory("main", l.history); err != nil {
			slog.Warn("history save failed", "error", err)
		}
	}

	return finalContent, nil
}

// react drives the LLM until it answers without tool calls, then applies
// the empty-content fallback. Returns the final text and the assistant/
// tool messages produced on the way.
func (l *Loop) react(ctx context.Context, runID string, messages []providers.Message, toolCount *int) (string, []providers.Message, error) {
	var pending []providers.Message
	usedTools := false

	for iteration := 1; iteration <= l.maxIterations; iteration++ {
		resp, err := l.provider.Chat(ctx, providers.ChatRequest{
			Model:    l.model,
			Messages: messages,
			Tools:    l.tools.ProviderDefs(),
			Options: map[string]interface{}{
				"max_tokens":  l.maxTokens,
				"temperature": l.temperature,
			},
		})
		if err != nil {
			return "", nil, fmt.Errorf("LLM call failed (iteration %d): %w", iteration, err)
		}
		l.tracer.Emit(trace.EventLLMTurn, runID, trace.Fields{
			"iteration": iteration, "tool_calls": len(resp.ToolCalls),
		})

		if len(resp.ToolCalls) == 0 {
			if resp.Content == "" && usedTools {
				content, err := l.fallback(ctx, messages)
				return content, pending, err
			}
			return resp.Content, pending, nil
		}
		usedTools = true

		assistantMsg := providers.Message{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		}
		messages = append(messages, assistantMsg)
		pending = append(pending, assistantMsg)

		results := l.dispatch(ctx, runID, resp.ToolCalls)
		*toolCount += len(results)
		messages = append(messages, results...)
		pending = append(pending, results...)
	}

	slog.Warn("tool iteration budget exhausted", "max", l.maxIterations)
	content, err := l.fallback(ctx, messages)
	return content, pending, err
}

// dispatch executes one turn's tool calls, in parallel when there are
// several, and returns the tool-result messages in call order.
func (l *Loop) dispatch(ctx context.Context, runID string, calls []providers.ToolCall) []providers.Message {
	for _, tc := range calls {
		l.emit(Event{Type: "tool.call", Tool: tc.Name, CallID: tc.ID, Content: jsonPreview(tc.Arguments)})
		l.tracer.Emit(trace.EventToolCall, runID, trace.Fields{"tool": tc.Name, "call_id": tc.ID})
	}

	type indexedResult struct {
		idx    int
		tc     providers.ToolCall
		result *tools.Result
	}

	collected := make([]indexedResult, 0, len(calls))
	if len(calls) == 1 {
		tc := calls[0]
		collected = append(collected, indexedResult{0, tc, l.tools.Execute(ctx, tc.Name, tc.Arguments)})
	} else {
		resultCh := make(chan indexedResult, len(calls))
		var wg sync.WaitGroup
		for i, tc := range calls {
			wg.Add(1)
			go func(idx int, tc providers.ToolCall) {
				defer wg.Done()
				resultCh <- indexedResult{idx, tc, l.tools.Execute(ctx, tc.Name, tc.Arguments)}
			}(i, tc)
		}
		go func() { wg.Wait(); close(resultCh) }()
		for r := range resultCh {
			collected = append(collected, r)
		}
		sort.Slice(collected, func(i, j int) bool { return collected[i].idx < collected[j].idx })
	}

	out := make([]providers.Message, 0, len(collected))
	for _, r := range collected {
		l.tracer.Emit(trace.EventToolResult, runID, trace.Fields{
			"tool": r.tc.Name, "call_id": r.tc.ID, "is_error": r.result.IsError,
		})
		l.emit(Event{
			Type: "tool.result", Tool: r.tc.Name, CallID: r.tc.ID,
			Content: r.result.ForLLM, IsError: r.result.IsError,
		})
		if r.result.IsError {
			slog.Warn("tool error", "tool", r.tc.Name, "error", previewStr(r.result.ForLLM, 200))
		}
		out = append(out, providers.Message{
			Role:       "tool",
			Content:    r.result.ForLLM,
			ToolCallID: r.tc.ID,
		})
	}
	return out
}

// fallback is the one-shot recovery call for streams that end with tool
// use but no assistant text.
func (l *Loop) fallback(ctx context.Context, messages []providers.Message) (string, error) {
	messages = append(messages, providers.Message{
		Role:    "user",
		Content: "Summarize the results above and answer in natural language. Do not call any tools.",
	})
	resp, err := l.provider.Chat(ctx, providers.ChatRequest{
		Model:    l.model,
		Messages: messages,
		Options:  map[string]interface{}{"max_tokens": l.maxTokens},
	})
	if err != nil {
		return "", fmt.Errorf("fallback call failed: %w", err)
	}
	if resp.Content == "" {
		return "(no response)", nil
	}
	return resp.Content, nil
}

// compactNow replaces the history with the two-message synthetic prefix.
func (l *Loop) compactNow(ctx context.Context, runID, kind string) error {
	before := len(l.history)
	compacted, err := AutoCompact(ctx, l.provider, l.model, l.sess, l.mem, l.history, l.compactionCfg)
	if err != nil {
		return err
	}
	l.history = compacted
	l.tracer.Emit(trace.EventCompaction, runID, trace.Fields{
		"kind": kind, "messages_before": before, "messages_after": len(compacted),
	})
	return nil
}

// CompactNow runs the full compaction immediately. The /compact slash
// command calls it between turns.
func (l *Loop) CompactNow(ctx context.Context) error {
	if err := l.compactNow(ctx, trace.NewRunID(), "manual"); err != nil {
		return err
	}
	return l.sess.SaveHistory("main", l.history)
}

// injectInbox appends the lead's drained inbox as a user/assistant pair.
func (l *Loop) injectInbox() {
	msgs, err := l.team.Bus().ReadInbox(tools.LeadName)
	if err != nil {
		slog.Warn("lead inbox read failed", "error", err)
		return
	}
	if len(msgs) == 0 {
		return
	}
	payload, err := json.Marshal(msgs)
	if err != nil {
		return
	}
	l.history = append(l.history,
		providers.Message{
			Role:    "user",
			Content: fmt.Sprintf("<inbox-messages>%s</inbox-messages>", payload),
		},
		providers.Message{
			Role:    "assistant",
			Content: "Noted the teammate messages. I'll factor them into my next steps.",
		},
	)
}

// injectBackground appends finished background-job notifications as a
// user/assistant pair. Each notification appears exactly once.
func (l *Loop) injectBackground() {
	if l.bg == nil {
		return
	}
	lines := l.bg.DrainNotifications()
	if len(lines) == 0 {
		return
	}
	var body string
	for _, line := range lines {
		body += line + "\n"
	}
	l.history = append(l.history,
		providers.Message{
			Role:    "user",
			Content: fmt.Sprintf("<background-results>%s</background-results>", body),
		},
		providers.Message{
			Role:    "assistant",
			Content: "Noted the background results.",
		},
	)
}

// injectNags appends the todo reminder and, when file writes have piled
// up without review, the reflection-gate reminder.
func (l *Loop) injectNags() {
	if l.todos != nil {
		rounds := l.todos.TickRound()
		if l.firstTurn {
			l.history = append(l.history, providers.Message{
				Role: "user",
				Content: "<reminder>Plan multi-step work with the TodoWrite tool and keep it " +
					"updated as you progress.</reminder>",
			})
		} else if rounds >= nagThreshold {
			l.history = append(l.history, providers.Message{
				Role: "user",
				Content: fmt.Sprintf(
					"<reminder>The todo list has not been updated for %d rounds. Current state:\n%s\nUpdate it with TodoWrite.</reminder>",
					rounds, l.todos.Render()),
			})
		}
	}

	if writes := l.takeWrites(); writes >= nagThreshold {
		l.history = append(l.history, providers.Message{
			Role: "user",
			Content: fmt.Sprintf(
				"<reminder>%d files were written without a review pass. Consider delegating a "+
					"Reflect sub-agent to verify the changes against the requirements.</reminder>", writes),
		})
	}
}

func jsonPreview(args map[string]interface{}) string {
	data, err := json.Marshal(args)
	if err != nil {
		return ""
	}
	return previewStr(string(data), 120)
}

func previewStr(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
