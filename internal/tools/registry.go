// Package tools holds the tool registry and every tool the runtime
// exposes to the LLM: filesystem and shell leaves, session workspace
// helpers, task/board/worktree primitives, the sub-agent Task tool, and
// the teammate protocol tools.
package tools

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/nextlevelbuilder/goforge/internal/providers"
)

// Tool is one callable capability exposed to the LLM.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]interface{}
	Execute(ctx context.Context, args map[string]interface{}) *Result
}

// Registry maps tool names to handlers. Registration happens once at
// startup; Execute may be called from any goroutine.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string // registration order, for stable listings
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool under its name. Re-registering a name replaces
// the previous handler.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := t.Name()
	if _, exists := r.tools[name]; !exists {
		r.order = append(r.order, name)
	}
	r.tools[name] = t
}

// Unregister removes a tool by name.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tools[name]; !ok {
		return
	}
	delete(r.tools, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Get returns the named tool.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Filtered returns a new registry holding only the allowed tools.
// A single "*" entry means every tool; excluded names are removed after
// the allow-list is applied.
func (r *Registry) Filtered(allowed []string, excluded ...string) *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := len(allowed) == 1 && allowed[0] == "*"
	allowSet := make(map[string]bool, len(allowed))
	for _, name := range allowed {
		allowSet[name] = true
	}
	excludeSet := make(map[string]bool, len(excluded))
	for _, name := range excluded {
		excludeSet[name] = true
	}

	out := NewRegistry()
	for _, name := range r.order {
		if excludeSet[name] {
			continue
		}
		if !all && !allowSet[name] {
			continue
		}
		out.Register(r.tools[name])
	}
	return out
}

// Execute dispatches one tool call. A missing tool or a panicking
// handler surfaces as an Error: result, never as a crash.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]interface{}) (result *Result) {
	r.mu.RLock()
	t, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return ErrorResult(fmt.Sprintf("unknown tool %q", name))
	}

	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("tool panicked", "tool", name, "panic", rec)
			result = ErrorResult(fmt.Sprintf("tool %s panicked: %v", name, rec))
		}
	}()

	result = t.Execute(ctx, args)
	if result == nil {
		result = ErrorResult(fmt.Sprintf("tool %s returned no result", name))
	}
	return result
}

// ProviderDefs renders every tool as a provider tool definition, sorted
// by name so request bodies are deterministic.
func (r *Registry) ProviderDefs() []providers.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	defs := make([]providers.ToolDefinition, 0, len(names))
	for _, name := range names {
		t := r.tools[name]
		defs = append(defs, providers.ToolDefinition{
			Type: "function",
			Function: providers.FunctionDef{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}
	return defs
}
