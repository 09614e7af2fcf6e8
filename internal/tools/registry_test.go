package tools

import (
	"context"
	"strings"
	"testing"
)

// stubTool is a minimal Tool for registry tests.
type stubTool struct {
	name    string
	execute func(ctx context.Context, args map[string]interface{}) *Result
}

func (t *stubTool) Name() string                        { return t.name }
func (t *stubTool) Description() string                 { return "stub " + t.name }
func (t *stubTool) Parameters() map[string]interface{}  { return map[string]interface{}{"type": "object"} }
func (t *stubTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	if t.execute != nil {
		return t.execute(ctx, args)
	}
	return NewResult("ok from " + t.name)
}

func TestRegistryOrderAndLookup(t *testing.T) {
	reg := NewRegistry()
	for _, name := range []string{"c", "a", "b"} {
		reg.Register(&stubTool{name: name})
	}

	got := reg.Names()
	if len(got) != 3 || got[0] != "c" || got[1] != "a" || got[2] != "b" {
		t.Errorf("Names = %v, want registration order [c a b]", got)
	}

	if _, ok := reg.Get("a"); !ok {
		t.Error("Get(a) missing")
	}
	if _, ok := reg.Get("z"); ok {
		t.Error("Get(z) found a tool that was never registered")
	}

	// Re-registering replaces without duplicating the order entry.
	reg.Register(&stubTool{name: "a"})
	if got := reg.Names(); len(got) != 3 {
		t.Errorf("Names after re-register = %v", got)
	}

	reg.Unregister("a")
	if _, ok := reg.Get("a"); ok {
		t.Error("Get(a) found an unregistered tool")
	}
	if got := reg.Names(); len(got) != 2 {
		t.Errorf("Names after unregister = %v", got)
	}
}

func TestRegistryFiltered(t *testing.T) {
	reg := NewRegistry()
	for _, name := range []string{"read_file", "write_file", "bash", "Task"} {
		reg.Register(&stubTool{name: name})
	}

	tests := []struct {
		name     string
		allowed  []string
		excluded []string
		want     []string
	}{
		{"allow list", []string{"read_file", "bash"}, nil, []string{"read_file", "bash"}},
		{"star means all", []string{"*"}, nil, []string{"read_file", "write_file", "bash", "Task"}},
		{"star with exclusion", []string{"*"}, []string{"Task"}, []string{"read_file", "write_file", "bash"}},
		{"exclusion beats allow", []string{"bash", "Task"}, []string{"Task"}, []string{"bash"}},
		{"unknown names ignored", []string{"bash", "nope"}, nil, []string{"bash"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := reg.Filtered(tt.allowed, tt.excluded...).Names()
			if len(got) != len(tt.want) {
				t.Fatalf("Names = %v, want %v", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Fatalf("Names = %v, want %v", got, tt.want)
				}
			}
		})
	}

	// The filtered view shares handlers, not a copy of the table.
	filtered := reg.Filtered([]string{"bash"})
	orig, _ := reg.Get("bash")
	shared, _ := filtered.Get("bash")
	if orig != shared {
		t.Error("Filtered copied the tool instead of sharing it")
	}
}

func TestRegistryExecuteGuards(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&stubTool{name: "panicky", execute: func(ctx context.Context, args map[string]interface{}) *Result {
		panic("boom")
	}})
	reg.Register(&stubTool{name: "nilly", execute: func(ctx context.Context, args map[string]interface{}) *Result {
		return nil
	}})

	tests := []struct {
		name string
		tool string
		want string
	}{
		{"unknown tool", "missing", "unknown tool"},
		{"panicking tool", "panicky", "panicked"},
		{"nil result", "nilly", "returned no result"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := reg.Execute(context.Background(), tt.tool, nil)
			if result == nil || !result.IsError {
				t.Fatalf("result = %+v, want error result", result)
			}
			if !strings.Contains(result.ForLLM, tt.want) {
				t.Errorf("ForLLM = %q, want substring %q", result.ForLLM, tt.want)
			}
			if !strings.HasPrefix(result.ForLLM, "Error:") {
				t.Errorf("ForLLM = %q, want Error: prefix", result.ForLLM)
			}
		})
	}
}

func TestProviderDefsSorted(t *testing.T) {
	reg := NewRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		reg.Register(&stubTool{name: name})
	}

	defs := reg.ProviderDefs()
	if len(defs) != 3 {
		t.Fatalf("defs = %d, want 3", len(defs))
	}
	want := []string{"alpha", "mid", "zeta"}
	for i, def := range defs {
		if def.Type != "function" {
			t.Errorf("def %d type = %q", i, def.Type)
		}
		if def.Function.Name != want[i] {
			t.Errorf("def %d = %q, want %q", i, def.Function.Name, want[i])
		}
	}
}

func TestErrorResultPrefix(t *testing.T) {
	if got := ErrorResult("bad input").ForLLM; got != "Error: bad input" {
		t.Errorf("ForLLM = %q", got)
	}
	// Already-prefixed messages are not doubled.
	if got := ErrorResult("Error: bad input").ForLLM; got != "Error: bad input" {
		t.Errorf("ForLLM = %q", got)
	}
}
