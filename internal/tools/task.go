package tools

import (
	"context"
	"fmt"

	"github.com/nextlevelbuilder/goforge/internal/tasks"
)

// TaskCreateTool adds a task to the store.
type TaskCreateTool struct {
	store *tasks.Store
}

func NewTaskCreateTool(store *tasks.Store) *TaskCreateTool {
	return &TaskCreateTool{store: store}
}

func (t *TaskCreateTool) Name() string        { return "task_create" }
func (t *TaskCreateTool) Description() string { return "Create a new task in the task store" }
func (t *TaskCreateTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"subject":     map[string]interface{}{"type": "string", "description": "Short task subject"},
			"description": map[string]interface{}{"type": "string", "description": "Full task description"},
		},
		"required": []string{"subject"},
	}
}

func (t *TaskCreateTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	subject, _ := args["subject"].(string)
	if subject == "" {
		return ErrorResult("subject is required")
	}
	task, err := t.store.Create(subject, strOf(args, "description"))
	if err != nil {
		return ErrorResult(err.Error())
	}
	return UserResult(fmt.Sprintf("Created task #%d: %s", task.ID, task.Subject))
}

// TaskUpdateTool mutates status and dependency edges.
type TaskUpdateTool struct {
	store *tasks.Store
}

func NewTaskUpdateTool(store *tasks.Store) *TaskUpdateTool {
	return &TaskUpdateTool{store: store}
}

func (t *TaskUpdateTool) Name() string { return "task_update" }
func (t *TaskUpdateTool) Description() string {
	return "Update a task: set status (pending/in_progress/completed) and/or add dependency edges"
}
func (t *TaskUpdateTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"id":             map[string]interface{}{"type": "integer", "description": "Task id"},
			"status":         map[string]interface{}{"type": "string", "enum": []string{"pending", "in_progress", "completed"}},
			"add_blocked_by": map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "integer"}, "description": "Task ids that must finish before this one"},
			"add_blocks":     map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "integer"}, "description": "Task ids this one blocks"},
		},
		"required": []string{"id"},
	}
}

func (t *TaskUpdateTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	id := intArg(args, "id", 0)
	if id <= 0 {
		return ErrorResult("id is required")
	}
	opts := tasks.UpdateOpts{
		Status:       strOf(args, "status"),
		AddBlockedBy: intListArg(args, "add_blocked_by"),
		AddBlocks:    intListArg(args, "add_blocks"),
	}
	task, err := t.store.Update(id, opts)
	if err != nil {
		return ErrorResult(err.Error())
	}
	return UserResult(fmt.Sprintf("Updated task #%d: %s", task.ID, task.Render()))
}

// TaskListTool renders the store.
type TaskListTool struct {
	store *tasks.Store
}

func NewTaskListTool(store *tasks.Store) *TaskListTool {
	return &TaskListTool{store: store}
}

func (t *TaskListTool) Name() string        { return "task_list" }
func (t *TaskListTool) Description() string { return "List all tasks grouped by status" }
func (t *TaskListTool) Parameters() map[string]interface{} {
	return map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
}

func (t *TaskListTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	list, err := t.store.ListAll()
	if err != nil {
		return ErrorResult(err.Error())
	}
	return SilentResult(tasks.RenderList(list))
}

func intListArg(args map[string]interface{}, key string) []int {
	raw, ok := args[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]int, 0, len(raw))
	for _, v := range raw {
		if f, ok := v.(float64); ok {
			out = append(out, int(f))
		}
	}
	return out
}
