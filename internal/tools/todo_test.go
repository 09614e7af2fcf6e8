package tools

import (
	"context"
	"strings"
	"testing"
)

func todoArg(items ...map[string]interface{}) map[string]interface{} {
	raw := make([]interface{}, len(items))
	for i, item := range items {
		raw[i] = item
	}
	return map[string]interface{}{"todos": raw}
}

func TestTodoWriteValidation(t *testing.T) {
	tests := []struct {
		name  string
		args  map[string]interface{}
		valid bool
	}{
		{
			name:  "not an array",
			args:  map[string]interface{}{"todos": "do stuff"},
			valid: false,
		},
		{
			name: "valid single item",
			args: todoArg(
				map[string]interface{}{"content": "write tests", "activeForm": "Writing tests", "status": "in_progress"},
			),
			valid: true,
		},
		{
			name: "missing content",
			args: todoArg(
				map[string]interface{}{"content": "", "activeForm": "Doing", "status": "pending"},
			),
			valid: false,
		},
		{
			name: "missing activeForm",
			args: todoArg(
				map[string]interface{}{"content": "do", "activeForm": "", "status": "pending"},
			),
			valid: false,
		},
		{
			name: "invalid status",
			args: todoArg(
				map[string]interface{}{"content": "do", "activeForm": "Doing", "status": "paused"},
			),
			valid: false,
		},
		{
			name: "two in_progress",
			args: todoArg(
				map[string]interface{}{"content": "a", "activeForm": "A", "status": "in_progress"},
				map[string]interface{}{"content": "b", "activeForm": "B", "status": "in_progress"},
			),
			valid: false,
		},
		{
			name:  "empty list clears",
			args:  todoArg(),
			valid: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := NewTodoState()
			tool := NewTodoWriteTool(state)
			result := tool.Execute(context.Background(), tt.args)
			if result.IsError == tt.valid {
				t.Errorf("IsError = %v, want valid = %v (%s)", result.IsError, tt.valid, result.ForLLM)
			}
		})
	}
}

func TestTodoWriteTooManyItems(t *testing.T) {
	items := make([]map[string]interface{}, maxTodoItems+1)
	for i := range items {
		items[i] = map[string]interface{}{"content": "x", "activeForm": "X", "status": "pending"}
	}
	tool := NewTodoWriteTool(NewTodoState())
	result := tool.Execute(context.Background(), todoArg(items...))
	if !result.IsError || !strings.Contains(result.ForLLM, "too long") {
		t.Errorf("result = %+v, want too-long error", result)
	}
}

func TestTodoWriteResetsRoundCounter(t *testing.T) {
	state := NewTodoState()
	tool := NewTodoWriteTool(state)

	if got := state.TickRound(); got != 1 {
		t.Fatalf("first tick = %d, want 1", got)
	}
	state.TickRound()
	state.TickRound()

	result := tool.Execute(context.Background(), todoArg(
		map[string]interface{}{"content": "write tests", "activeForm": "Writing tests", "status": "pending"},
	))
	if result.IsError {
		t.Fatalf("Execute: %s", result.ForLLM)
	}

	if got := state.TickRound(); got != 1 {
		t.Errorf("tick after write = %d, want counter reset to 1", got)
	}
}

func TestTodoRender(t *testing.T) {
	state := NewTodoState()
	if got := state.Render(); got != "Todo list is empty." {
		t.Errorf("empty Render = %q", got)
	}

	state.set([]TodoItem{
		{Content: "done thing", ActiveForm: "Doing", Status: "completed"},
		{Content: "current thing", ActiveForm: "Doing", Status: "in_progress"},
		{Content: "next thing", ActiveForm: "Doing", Status: "pending"},
	})

	got := state.Render()
	for _, want := range []string{"[x] done thing", "[>] current thing", "[ ] next thing", "(1/3 completed)"} {
		if !strings.Contains(got, want) {
			t.Errorf("Render missing %q:\n%s", want, got)
		}
	}
}
