package tools

import (
	"context"
	"fmt"

	"github.com/nextlevelbuilder/goforge/internal/worktree"
)

// WorktreeCreateTool creates a task-bound execution lane.
type WorktreeCreateTool struct {
	mgr *worktree.Manager
}

func NewWorktreeCreateTool(mgr *worktree.Manager) *WorktreeCreateTool {
	return &WorktreeCreateTool{mgr: mgr}
}

func (t *WorktreeCreateTool) Name() string { return "worktree_create" }
func (t *WorktreeCreateTool) Description() string {
	return "Create a git worktree lane (branch wt/<name>), optionally bound to a task"
}
func (t *WorktreeCreateTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"name":     map[string]interface{}{"type": "string", "description": "Lane name: 1-40 chars from [A-Za-z0-9._-]"},
			"task_id":  map[string]interface{}{"type": "integer", "description": "Task to bind (optional)"},
			"base_ref": map[string]interface{}{"type": "string", "description": "Base ref to branch from (default HEAD)"},
		},
		"required": []string{"name"},
	}
}

func (t *WorktreeCreateTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	name, _ := args["name"].(string)
	entry, err := t.mgr.Create(name, intArg(args, "task_id", 0), strOf(args, "base_ref"))
	if err != nil {
		return ErrorResult(err.Error())
	}
	msg := fmt.Sprintf("Created worktree %s (branch %s) at %s", entry.Name, entry.Branch, entry.Path)
	if entry.TaskID > 0 {
		msg += fmt.Sprintf(", bound to task %d", entry.TaskID)
	}
	return UserResult(msg)
}

// WorktreeStatusTool shows git status inside a lane.
type WorktreeStatusTool struct {
	mgr *worktree.Manager
}

func NewWorktreeStatusTool(mgr *worktree.Manager) *WorktreeStatusTool {
	return &WorktreeStatusTool{mgr: mgr}
}

func (t *WorktreeStatusTool) Name() string { return "worktree_status" }
func (t *WorktreeStatusTool) Description() string {
	return "Show git status --short --branch inside a worktree lane"
}
func (t *WorktreeStatusTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"name": map[string]interface{}{"type": "string", "description": "Lane name"},
		},
		"required": []string{"name"},
	}
}

func (t *WorktreeStatusTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	out, err := t.mgr.Status(strOf(args, "name"))
	if err != nil {
		return ErrorResult(err.Error())
	}
	return SilentResult(out)
}

// WorktreeRunTool executes a command inside a lane.
type WorktreeRunTool struct {
	mgr *worktree.Manager
}

func NewWorktreeRunTool(mgr *worktree.Manager) *WorktreeRunTool {
	return &WorktreeRunTool{mgr: mgr}
}

func (t *WorktreeRunTool) Name() string { return "worktree_run" }
func (t *WorktreeRunTool) Description() string {
	return "Run a shell command inside a worktree lane"
}
func (t *WorktreeRunTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"name":    map[string]interface{}{"type": "string", "description": "Lane name"},
			"command": map[string]interface{}{"type": "string", "description": "Shell command to run"},
		},
		"required": []string{"name", "command"},
	}
}

func (t *WorktreeRunTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	out, err := t.mgr.Run(strOf(args, "name"), strOf(args, "command"))
	if err != nil {
		if out != "" {
			return ErrorResult(fmt.Sprintf("%v\n%s", err, out))
		}
		return ErrorResult(err.Error())
	}
	if out == "" {
		out = "(command completed with no output)"
	}
	return SilentResult(out)
}

// WorktreeRemoveTool retires a lane, optionally completing its task.
type WorktreeRemoveTool struct {
	mgr *worktree.Manager
}

func NewWorktreeRemoveTool(mgr *worktree.Manager) *WorktreeRemoveTool {
	return &WorktreeRemoveTool{mgr: mgr}
}

func (t *WorktreeRemoveTool) Name() string { return "worktree_remove" }
func (t *WorktreeRemoveTool) Description() string {
	return "Remove a worktree lane; complete_task also marks its bound task completed"
}
func (t *WorktreeRemoveTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"name":          map[string]interface{}{"type": "string", "description": "Lane name"},
			"force":         map[string]interface{}{"type": "boolean", "description": "Pass --force to git worktree remove"},
			"complete_task": map[string]interface{}{"type": "boolean", "description": "Mark the bound task completed"},
		},
		"required": []string{"name"},
	}
}

func (t *WorktreeRemoveTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	entry, err := t.mgr.Remove(strOf(args, "name"), boolArg(args, "force"), boolArg(args, "complete_task"))
	if err != nil {
		return ErrorResult(err.Error())
	}
	return UserResult(fmt.Sprintf("Removed worktree %s", entry.Name))
}

// WorktreeKeepTool retains a lane without touching files.
type WorktreeKeepTool struct {
	mgr *worktree.Manager
}

func NewWorktreeKeepTool(mgr *worktree.Manager) *WorktreeKeepTool {
	return &WorktreeKeepTool{mgr: mgr}
}

func (t *WorktreeKeepTool) Name() string { return "worktree_keep" }
func (t *WorktreeKeepTool) Description() string {
	return "Mark a worktree lane as kept (retained on disk, no longer a removal candidate)"
}
func (t *WorktreeKeepTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"name": map[string]interface{}{"type": "string", "description": "Lane name"},
		},
		"required": []string{"name"},
	}
}

func (t *WorktreeKeepTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	entry, err := t.mgr.Keep(strOf(args, "name"))
	if err != nil {
		return ErrorResult(err.Error())
	}
	return UserResult(fmt.Sprintf("Kept worktree %s", entry.Name))
}

// WorktreeListTool lists the lane index.
type WorktreeListTool struct {
	mgr *worktree.Manager
}

func NewWorktreeListTool(mgr *worktree.Manager) *WorktreeListTool {
	return &WorktreeListTool{mgr: mgr}
}

func (t *WorktreeListTool) Name() string        { return "worktree_list" }
func (t *WorktreeListTool) Description() string { return "List all worktree lanes and their status" }
func (t *WorktreeListTool) Parameters() map[string]interface{} {
	return map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
}

func (t *WorktreeListTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	entries, err := t.mgr.ListAll()
	if err != nil {
		return ErrorResult(err.Error())
	}
	return SilentResult(worktree.RenderList(entries))
}

func strOf(args map[string]interface{}, key string) string {
	s, _ := args[key].(string)
	return s
}
