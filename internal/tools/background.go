package tools

import (
	"context"
	"fmt"

	"github.com/nextlevelbuilder/goforge/internal/background"
)

// BackgroundRunTool starts a shell command without blocking the turn.
type BackgroundRunTool struct {
	exec *background.Executor
}

func NewBackgroundRunTool(exec *background.Executor) *BackgroundRunTool {
	return &BackgroundRunTool{exec: exec}
}

func (t *BackgroundRunTool) Name() string { return "background_run" }
func (t *BackgroundRunTool) Description() string {
	return "Run a shell command in the background; its result is delivered on a later turn"
}
func (t *BackgroundRunTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"command": map[string]interface{}{"type": "string", "description": "The shell command to run"},
		},
		"required": []string{"command"},
	}
}

func (t *BackgroundRunTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	command, _ := args["command"].(string)
	if command == "" {
		return ErrorResult("command is required")
	}
	id := t.exec.RunShell(command)
	return AsyncResult(fmt.Sprintf("Started background task %s. Results will arrive in a later turn; check_background shows status.", id))
}

// SubagentRunner detaches a sub-agent run; implemented by the subagent
// manager and injected here to avoid a dependency cycle.
type SubagentRunner interface {
	RunDetached(description, prompt, agentType string) (string, error)
}

// BackgroundAgentTool runs a sub-agent without blocking the turn.
type BackgroundAgentTool struct {
	runner SubagentRunner
}

func NewBackgroundAgentTool(runner SubagentRunner) *BackgroundAgentTool {
	return &BackgroundAgentTool{runner: runner}
}

func (t *BackgroundAgentTool) Name() string { return "background_agent" }
func (t *BackgroundAgentTool) Description() string {
	return "Run a sub-agent task in the background; its result is delivered on a later turn"
}
func (t *BackgroundAgentTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"description":   map[string]interface{}{"type": "string", "description": "Short (3-5 word) task description"},
			"prompt":        map[string]interface{}{"type": "string", "description": "Full task prompt for the sub-agent"},
			"subagent_type": map[string]interface{}{"type": "string", "description": "Agent type (Explore, general-purpose, ...)"},
		},
		"required": []string{"description", "prompt"},
	}
}

func (t *BackgroundAgentTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	description, _ := args["description"].(string)
	prompt, _ := args["prompt"].(string)
	agentType, _ := args["subagent_type"].(string)
	if prompt == "" {
		return ErrorResult("prompt is required")
	}
	if agentType == "" {
		agentType = "general-purpose"
	}
	id, err := t.runner.RunDetached(description, prompt, agentType)
	if err != nil {
		return ErrorResult(err.Error())
	}
	return AsyncResult(fmt.Sprintf("Started background sub-agent %s (%s).", id, description))
}

// CheckBackgroundTool reports background job status.
type CheckBackgroundTool struct {
	exec *background.Executor
}

func NewCheckBackgroundTool(exec *background.Executor) *CheckBackgroundTool {
	return &CheckBackgroundTool{exec: exec}
}

func (t *CheckBackgroundTool) Name() string { return "check_background" }
func (t *CheckBackgroundTool) Description() string {
	return "Check the status of background tasks (one by id, or all)"
}
func (t *CheckBackgroundTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"task_id": map[string]interface{}{"type": "string", "description": "Background task id; omit for all"},
		},
	}
}

func (t *CheckBackgroundTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	id, _ := args["task_id"].(string)
	return SilentResult(t.exec.Check(id))
}
