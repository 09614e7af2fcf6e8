package tools

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

const maxTodoItems = 20

// TodoItem is one entry of the in-session todo list.
type TodoItem struct {
	Content    string `json:"content"`
	ActiveForm string `json:"activeForm"`
	Status     string `json:"status"` // pending, in_progress, completed
}

// TodoState holds the current list plus the round counter the main loop
// uses for nag injection. Writing the list resets the counter.
type TodoState struct {
	mu              sync.Mutex
	items           []TodoItem
	roundsSinceSeen int
}

func NewTodoState() *TodoState {
	return &TodoState{}
}

// TickRound bumps the rounds-without-TodoWrite counter and returns the
// new value.
func (s *TodoState) TickRound() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roundsSinceSeen++
	return s.roundsSinceSeen
}

// Items returns a copy of the current list.
func (s *TodoState) Items() []TodoItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TodoItem, len(s.items))
	copy(out, s.items)
	return out
}

func (s *TodoState) set(items []TodoItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = items
	s.roundsSinceSeen = 0
}

// Render formats the list with [ ]/[>]/[x] markers and a completion
// count.
func (s *TodoState) Render() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.items) == 0 {
		return "Todo list is empty."
	}
	var b strings.Builder
	done := 0
	for _, item := range s.items {
		marker := "[ ]"
		switch item.Status {
		case "in_progress":
			marker = "[>]"
		case "completed":
			marker = "[x]"
			done++
		}
		fmt.Fprintf(&b, "%s %s\n", marker, item.Content)
	}
	fmt.Fprintf(&b, "(%d/%d completed)", done, len(s.items))
	return b.String()
}

// TodoWriteTool replaces the todo list wholesale, with validation.
type TodoWriteTool struct {
	state *TodoState
}

func NewTodoWriteTool(state *TodoState) *TodoWriteTool {
	return &TodoWriteTool{state: state}
}

func (t *TodoWriteTool) Name() string { return "TodoWrite" }
func (t *TodoWriteTool) Description() string {
	return "Replace the session todo list. Each item needs content, activeForm and a status (pending, in_progress, completed); at most one item may be in_progress"
}
func (t *TodoWriteTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"todos": map[string]interface{}{
				"type":        "array",
				"description": "The full todo list",
				"items": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"content":    map[string]interface{}{"type": "string"},
						"activeForm": map[string]interface{}{"type": "string"},
						"status":     map[string]interface{}{"type": "string", "enum": []string{"pending", "in_progress", "completed"}},
					},
					"required": []string{"content", "activeForm", "status"},
				},
			},
		},
		"required": []string{"todos"},
	}
}

func (t *TodoWriteTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	raw, ok := args["todos"].([]interface{})
	if !ok {
		return ErrorResult("todos must be an array")
	}
	if len(raw) > maxTodoItems {
		return ErrorResult(fmt.Sprintf("todo list too long: %d items (max %d)", len(raw), maxTodoItems))
	}

	items := make([]TodoItem, 0, len(raw))
	inProgress := 0
	for i, entry := range raw {
		obj, ok := entry.(map[string]interface{})
		if !ok {
			return ErrorResult(fmt.Sprintf("todo %d is not an object", i+1))
		}
		item := TodoItem{
			Content:    strArgOf(obj, "content"),
			ActiveForm: strArgOf(obj, "activeForm"),
			Status:     strArgOf(obj, "status"),
		}
		if item.Content == "" || item.ActiveForm == "" {
			return ErrorResult(fmt.Sprintf("todo %d: content and activeForm are required", i+1))
		}
		switch item.Status {
		case "pending", "in_progress", "completed":
		default:
			return ErrorResult(fmt.Sprintf("todo %d: invalid status %q", i+1, item.Status))
		}
		if item.Status == "in_progress" {
			inProgress++
		}
		items = append(items, item)
	}
	if inProgress > 1 {
		return ErrorResult(fmt.Sprintf("%d items in_progress; at most one allowed", inProgress))
	}

	t.state.set(items)
	return UserResult(t.state.Render())
}

func strArgOf(obj map[string]interface{}, key string) string {
	s, _ := obj[key].(string)
	return s
}
