package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nextlevelbuilder/goforge/internal/background"
	"github.com/nextlevelbuilder/goforge/internal/config"
	"github.com/nextlevelbuilder/goforge/internal/providers"
	"github.com/nextlevelbuilder/goforge/internal/trace"
)

// SubagentManager runs one-shot isolated agents: a fresh history, a
// filtered tool set, and a bounded ReAct, OODA or direct loop. The Task
// tool never reaches a child, so sub-agents cannot recurse.
type SubagentManager struct {
	mu       sync.Mutex
	active   int
	provider providers.Provider
	model    string
	cfg      config.SubagentsConfig
	tracer   *trace.Tracer
	runID    string

	// baseTools returns the current registry snapshot for children.
	baseTools func() *Registry
	bg        *background.Executor
}

func NewSubagentManager(
	provider providers.Provider,
	model string,
	cfg config.SubagentsConfig,
	tracer *trace.Tracer,
	baseTools func() *Registry,
	bg *background.Executor,
) *SubagentManager {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 8
	}
	if cfg.MaxToolCalls <= 0 {
		cfg.MaxToolCalls = 20
	}
	if cfg.MaxOODACycles <= 0 {
		cfg.MaxOODACycles = 6
	}
	if cfg.Model != "" {
		model = cfg.Model
	}
	return &SubagentManager{
		provider:  provider,
		model:     model,
		cfg:       cfg,
		tracer:    tracer,
		baseTools: baseTools,
		bg:        bg,
	}
}

// SetRunID seeds the run id stamped on this manager's trace events.
func (sm *SubagentManager) SetRunID(id string) {
	sm.mu.Lock()
	sm.runID = id
	sm.mu.Unlock()
}

func (sm *SubagentManager) currentRunID() string {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.runID
}

// Run executes one sub-agent synchronously and returns its final text.
func (sm *SubagentManager) Run(ctx context.Context, description, prompt, agentType string) (string, error) {
	at, ok := LookupAgentType(agentType)
	if !ok {
		return "", fmt.Errorf("unknown agent type %q (known: %v)", agentType, AgentTypeNames())
	}

	sm.mu.Lock()
	if sm.active >= sm.cfg.MaxConcurrent {
		n := sm.active
		sm.mu.Unlock()
		return "", fmt.Errorf("max concurrent sub-agents reached (%d/%d)", n, sm.cfg.MaxConcurrent)
	}
	sm.active++
	sm.mu.Unlock()
	defer func() {
		sm.mu.Lock()
		sm.active--
		sm.mu.Unlock()
	}()

	spanID := trace.NewRunID()
	runID := sm.currentRunID()
	start := time.Now()
	sm.tracer.Emit(trace.EventSubagentStart, runID, trace.Fields{
		"span_id": spanID, "agent_type": agentType, "description": description,
	})

	var (
		result string
		err    error
	)
	switch at.Loop {
	case LoopDirect:
		result, err = sm.runDirect(ctx, at, prompt)
	case LoopOODA:
		result, err = sm.runOODA(ctx, at, prompt, spanID)
	default:
		result, err = sm.runReact(ctx, at, prompt, spanID)
	}

	fields := trace.Fields{
		"span_id":     spanID,
		"agent_type":  agentType,
		"duration_ms": time.Since(start).Milliseconds(),
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	sm.tracer.Emit(trace.EventSubagentEnd, runID, fields)
	return result, err
}

// RunDetached queues the sub-agent onto the background executor and
// returns the job id immediately.
func (sm *SubagentManager) RunDetached(description, prompt, agentType string) (string, error) {
	if _, ok := LookupAgentType(agentType); !ok {
		return "", fmt.Errorf("unknown agent type %q (known: %v)", agentType, AgentTypeNames())
	}
	label := description
	if label == "" {
		label = truncate(prompt, 50)
	}
	id := sm.bg.RunFunc("agent: "+label, func(ctx context.Context) (string, error) {
		return sm.Run(ctx, description, prompt, agentType)
	})
	return id, nil
}

// childTools builds the filtered registry for one child. The Task tool
// is always removed, recursion cap or not.
func (sm *SubagentManager) childTools(at AgentType) *Registry {
	base := sm.baseTools()
	if len(at.Tools) == 0 {
		return NewRegistry()
	}
	return base.Filtered(at.Tools, "Task")
}

// runDirect issues a single LLM call with no tools.
func (sm *SubagentManager) runDirect(ctx context.Context, at AgentType, prompt string) (string, error) {
	resp, err := sm.provider.Chat(ctx, providers.ChatRequest{
		Model: sm.model,
		Messages: []providers.Message{
			{Role: "system", Content: at.SystemPrompt},
			{Role: "user", Content: prompt},
		},
		Options: map[string]interface{}{"max_tokens": 4096},
	})
	if err != nil {
		return "", fmt.Errorf("sub-agent LLM call: %w", err)
	}
	return resp.Content, nil
}

// runReact drives the child through a bounded reason-act-observe loop.
func (sm *SubagentManager) runReact(ctx context.Context, at AgentType, prompt, spanID string) (string, error) {
	reg := sm.childTools(at)
	runID := sm.currentRunID()

	messages := []providers.Message{
		{Role: "system", Content: at.SystemPrompt},
		{Role: "user", Content: prompt},
	}

	usedTools := false
	for iteration := 1; iteration <= sm.cfg.MaxToolCalls; iteration++ {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		resp, err := sm.provider.Chat(ctx, providers.ChatRequest{
			Model:    sm.model,
			Messages: messages,
			Tools:    reg.ProviderDefs(),
			Options:  map[string]interface{}{"max_tokens": 4096},
		})
		if err != nil {
			return "", fmt.Errorf("sub-agent LLM call (iteration %d): %w", iteration, err)
		}
		sm.tracer.Emit(trace.EventSubagentLLMTurn, runID, trace.Fields{
			"span_id": spanID, "iteration": iteration, "tool_calls": len(resp.ToolCalls),
		})

		if len(resp.ToolCalls) == 0 {
			if resp.Content == "" && usedTools {
				return sm.fallbackSummary(ctx, at, messages)
			}
			return resp.Content, nil
		}
		usedTools = true

		messages = append(messages, providers.Message{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		for _, tc := range resp.ToolCalls {
			sm.tracer.Emit(trace.EventSubagentToolCall, runID, trace.Fields{
				"span_id": spanID, "tool": tc.Name, "call_id": tc.ID,
			})
			result := reg.Execute(ctx, tc.Name, tc.Arguments)
			sm.tracer.Emit(trace.EventSubagentToolResult, runID, trace.Fields{
				"span_id": spanID, "tool": tc.Name, "call_id": tc.ID, "is_error": result.IsError,
			})
			messages = append(messages, providers.Message{
				Role:       "tool",
				Content:    result.ForLLM,
				ToolCallID: tc.ID,
			})
		}
	}

	slog.Debug("sub-agent tool budget exhausted", "agent_type", at.Name)
	return sm.fallbackSummary(ctx, at, messages)
}

// fallbackSummary is the one-shot recovery call used when the child
// finished tool use with empty content or exhausted its budget.
func (sm *SubagentManager) fallbackSummary(ctx context.Context, at AgentType, messages []providers.Message) (string, error) {
	messages = append(messages, providers.Message{
		Role:    "user",
		Content: "Summarize all findings. Answer in natural language without calling any tools.",
	})
	resp, err := sm.provider.Chat(ctx, providers.ChatRequest{
		Model:    sm.model,
		Messages: messages,
		Options:  map[string]interface{}{"max_tokens": 4096},
	})
	if err != nil {
		return "", fmt.Errorf("sub-agent fallback call: %w", err)
	}
	if resp.Content == "" {
		return "Sub-agent budget exhausted before a summary could be produced.", nil
	}
	return resp.Content, nil
}

// TaskTool spawns a sub-agent. Built last so its manager's registry
// snapshot contains every other tool; the child inherits that snapshot
// minus Task itself.
type TaskTool struct {
	mgr *SubagentManager
}

func NewTaskTool(mgr *SubagentManager) *TaskTool {
	return &TaskTool{mgr: mgr}
}

func (t *TaskTool) Name() string { return "Task" }
func (t *TaskTool) Description() string {
	return fmt.Sprintf(
		"Delegate a focused task to a one-shot sub-agent with an isolated history. Agent types: %v",
		AgentTypeNames(),
	)
}
func (t *TaskTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"description":   map[string]interface{}{"type": "string", "description": "Short (3-5 word) task description"},
			"prompt":        map[string]interface{}{"type": "string", "description": "Full task prompt for the sub-agent"},
			"subagent_type": map[string]interface{}{"type": "string", "description": "Agent type tag (default general-purpose)"},
		},
		"required": []string{"description", "prompt"},
	}
}

func (t *TaskTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	description, _ := args["description"].(string)
	prompt, _ := args["prompt"].(string)
	if prompt == "" {
		return ErrorResult("prompt is required")
	}
	agentType, _ := args["subagent_type"].(string)
	if agentType == "" {
		agentType = "general-purpose"
	}

	result, err := t.mgr.Run(ctx, description, prompt, agentType)
	if err != nil {
		return ErrorResult(err.Error())
	}
	if result == "" {
		result = "(sub-agent returned no content)"
	}
	return SilentResult(result)
}

// jsonPreview renders args compactly for logs.
func jsonPreview(args map[string]interface{}, max int) string {
	data, err := json.Marshal(args)
	if err != nil {
		return ""
	}
	return truncate(string(data), max)
}
