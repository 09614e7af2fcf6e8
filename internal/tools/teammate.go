package tools

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nextlevelbuilder/goforge/internal/bus"
	"github.com/nextlevelbuilder/goforge/internal/providers"
	"github.com/nextlevelbuilder/goforge/internal/trace"
)

// Teammate is one long-lived worker goroutine with its own history and
// tool set. It alternates between working batches and idle polling until
// a shutdown request or the idle budget ends it.
type Teammate struct {
	mgr  *TeamManager
	name string
	role string

	tools   *Registry
	history []providers.Message

	mu            sync.Mutex
	status        string
	idleRequested bool
}

func newTeammate(tm *TeamManager, name, role string) *Teammate {
	mate := &Teammate{
		mgr:    tm,
		name:   name,
		role:   role,
		status: MateWorking,
	}
	mate.tools = tm.mateTools()
	registerTeammateTools(mate.tools, mate)
	return mate
}

// Status returns the mate's lifecycle state.
func (m *Teammate) Status() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *Teammate) setStatus(status string) {
	m.mu.Lock()
	changed := m.status != status
	m.status = status
	m.mu.Unlock()
	if changed {
		m.mgr.noteStatus(m.name, status)
	}
}

// requestIdle is called by the idle tool to end the current working batch.
func (m *Teammate) requestIdle() {
	m.mu.Lock()
	m.idleRequested = true
	m.mu.Unlock()
}

func (m *Teammate) takeIdleRequest() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	requested := m.idleRequested
	m.idleRequested = false
	return requested
}

// run drives the working/idle/shutdown state machine. The history is
// persisted after every batch so /resume and post-mortems see it.
func (m *Teammate) run() {
	ctx := context.Background()
	m.history = []providers.Message{
		{Role: "system", Content: m.systemPrompt()},
	}

	for {
		switch m.Status() {
		case MateWorking:
			m.workPhase(ctx)
		case MateIdle:
			m.idlePhase(ctx)
		case MateShutdown:
			m.persistHistory()
			return
		}
	}
}

func (m *Teammate) systemPrompt() string {
	return fmt.Sprintf(
		"You are %s, a teammate on a coding team. Your role: %s.\n"+
			"You receive work via inbox messages and the shared task board. "+
			"Work autonomously with your tools. Report results to the lead with "+
			"send_message. When you have nothing left to do, call the idle tool.",
		m.name, m.role)
}

// workPhase drains the inbox into the history and runs one bounded
// ReAct batch. A shutdown_request in the drain ends the mate immediately.
func (m *Teammate) workPhase(ctx context.Context) {
	msgs, err := m.mgr.bus.ReadInbox(m.name)
	if err != nil {
		slog.Warn("teammate inbox read failed", "name", m.name, "error", err)
	}
	if m.handleControl(msgs) {
		return
	}
	if block := renderInbox(msgs); block != "" {
		m.history = append(m.history, providers.Message{Role: "user", Content: block})
	}

	for turn := 1; turn <= m.mgr.cfg.MaxTurns; turn++ {
		resp, err := m.mgr.provider.Chat(ctx, providers.ChatRequest{
			Model:    m.mgr.model,
			Messages: m.history,
			Tools:    m.tools.ProviderDefs(),
			Options:  map[string]interface{}{"max_tokens": 8192},
		})
		if err != nil {
			slog.Warn("teammate LLM call failed", "name", m.name, "error", err)
			m.persistHistory()
			m.setStatus(MateIdle)
			return
		}

		if len(resp.ToolCalls) == 0 {
			if resp.Content != "" {
				m.history = append(m.history, providers.Message{Role: "assistant", Content: resp.Content})
			}
			m.persistHistory()
			m.setStatus(MateIdle)
			return
		}

		m.history = append(m.history, providers.Message{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		for _, tc := range resp.ToolCalls {
			m.mgr.tracer.Emit(trace.EventTeammateToolCall, m.mgr.runID, trace.Fields{
				"name": m.name, "tool": tc.Name, "call_id": tc.ID,
			})
			result := m.tools.Execute(ctx, tc.Name, tc.Arguments)
			m.mgr.tracer.Emit(trace.EventTeammateToolResult, m.mgr.runID, trace.Fields{
				"name": m.name, "tool": tc.Name, "call_id": tc.ID, "is_error": result.IsError,
			})
			m.history = append(m.history, providers.Message{
				Role:       "tool",
				Content:    result.ForLLM,
				ToolCallID: tc.ID,
			})
		}

		if m.Status() == MateShutdown {
			// shutdown_response tool approved a request mid-batch.
			m.persistHistory()
			return
		}
		if m.takeIdleRequest() {
			m.persistHistory()
			m.setStatus(MateIdle)
			return
		}
	}

	m.persistHistory()
	m.setStatus(MateIdle)
}

// idlePhase polls the inbox and the board until something arrives or the
// idle budget runs out.
func (m *Teammate) idlePhase(ctx context.Context) {
	poll := time.Duration(m.mgr.cfg.PollIntervalSec) * time.Second
	ticks := m.mgr.cfg.IdleTimeoutSec / m.mgr.cfg.PollIntervalSec
	if ticks < 1 {
		ticks = 1
	}

	for tick := 0; tick < ticks; tick++ {
		msgs, err := m.mgr.bus.ReadInbox(m.name)
		if err != nil {
			slog.Warn("teammate inbox read failed", "name", m.name, "error", err)
		}
		if m.handleControl(msgs) {
			return
		}
		if block := renderInbox(msgs); block != "" {
			m.history = append(m.history, providers.Message{Role: "user", Content: block})
			m.setStatus(MateWorking)
			return
		}

		if m.tryAutoClaim() {
			m.setStatus(MateWorking)
			return
		}

		time.Sleep(poll)
	}

	slog.Info("teammate idle timeout", "name", m.name)
	m.setStatus(MateShutdown)
}

// handleControl approves any shutdown_request in the batch and flips the
// mate to shutdown. Returns true when the mate should stop.
func (m *Teammate) handleControl(msgs []bus.Message) bool {
	for _, msg := range msgs {
		if msg.Type != bus.TypeShutdownRequest {
			continue
		}
		if id := msg.RequestID(); id != "" {
			m.mgr.trackers.ResolveShutdown(id, true)
			m.mgr.bus.Send(m.name, msg.From, "shutting down", bus.TypeShutdownResponse,
				map[string]interface{}{"request_id": id, "approve": true})
		}
		m.setStatus(MateShutdown)
		return true
	}
	return false
}

// tryAutoClaim claims the first open board task. Early in the mate's life
// the claim message carries an identity preamble so the model knows who
// it is before any conversation exists.
func (m *Teammate) tryAutoClaim() bool {
	open, err := m.mgr.board.ScanUnclaimed()
	if err != nil || len(open) == 0 {
		return false
	}

	for _, candidate := range open {
		t, err := m.mgr.board.Claim(candidate.ID, m.name)
		if err != nil {
			continue // lost the race, try the next one
		}
		m.mgr.tracer.Emit(trace.EventTaskClaim, m.mgr.runID, trace.Fields{
			"task_id": t.ID, "owner": m.name, "auto": true,
		})

		var b strings.Builder
		if len(m.history) <= 3 {
			fmt.Fprintf(&b, "You are %s (%s) on a coding team.\n\n", m.name, m.role)
		}
		fmt.Fprintf(&b, "<auto-claimed>Task #%d: %s", t.ID, t.Subject)
		if t.Description != "" {
			fmt.Fprintf(&b, "\n%s", t.Description)
		}
		b.WriteString("\nComplete it with your tools, then mark it done with complete_task " +
			"and report to the lead with send_message.</auto-claimed>")

		m.history = append(m.history, providers.Message{Role: "user", Content: b.String()})
		return true
	}
	return false
}

func (m *Teammate) persistHistory() {
	if err := m.mgr.sess.SaveHistory(m.name, m.history); err != nil {
		slog.Warn("teammate history save failed", "name", m.name, "error", err)
	}
}

// renderInbox formats drained messages as one user-role block.
func renderInbox(msgs []bus.Message) string {
	var lines []string
	for _, msg := range msgs {
		if msg.Type == bus.TypeShutdownRequest {
			continue
		}
		lines = append(lines, fmt.Sprintf("[%s from %s] %s", msg.Type, msg.From, msg.Content))
	}
	if len(lines) == 0 {
		return ""
	}
	return "<inbox>\n" + strings.Join(lines, "\n") + "\n</inbox>"
}
