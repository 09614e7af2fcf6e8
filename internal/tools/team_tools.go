package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/nextlevelbuilder/goforge/internal/bus"
	"github.com/nextlevelbuilder/goforge/internal/tasks"
	"github.com/nextlevelbuilder/goforge/internal/trace"
)

// RegisterLeadTools adds the team-management tools the main agent uses.
// store is the task store backing post_task.
func RegisterLeadTools(reg *Registry, tm *TeamManager, store *tasks.Store) {
	reg.Register(&SpawnTeammateTool{tm: tm})
	reg.Register(&SendMessageTool{tm: tm, from: LeadName})
	reg.Register(&BroadcastTool{tm: tm})
	reg.Register(&CheckInboxTool{tm: tm, owner: LeadName})
	reg.Register(&ShutdownTeammateTool{tm: tm})
	reg.Register(&CheckShutdownStatusTool{tm: tm})
	reg.Register(&ApprovePlanTool{tm: tm})
	reg.Register(&PostTaskTool{tm: tm, store: store})
	reg.Register(&TeamStatusTool{tm: tm})
}

// SpawnTeammateTool starts a named teammate goroutine.
type SpawnTeammateTool struct {
	tm *TeamManager
}

func (t *SpawnTeammateTool) Name() string { return "spawn_teammate" }
func (t *SpawnTeammateTool) Description() string {
	return "Spawn a named teammate that works in parallel, receives messages, and claims board tasks"
}
func (t *SpawnTeammateTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"name": map[string]interface{}{"type": "string", "description": "Unique teammate name, e.g. alice"},
			"role": map[string]interface{}{"type": "string", "description": "What this teammate is responsible for"},
		},
		"required": []string{"name", "role"},
	}
}

func (t *SpawnTeammateTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	name := strOf(args, "name")
	role := strOf(args, "role")
	if name == "" || role == "" {
		return ErrorResult("name and role are required")
	}
	if err := t.tm.Spawn(name, role); err != nil {
		return ErrorResult(err.Error())
	}
	return UserResult(fmt.Sprintf("Spawned teammate %s (%s)", name, role))
}

// SendMessageTool delivers one direct message on the bus. The same type
// serves the lead and every teammate; from fixes the sender identity.
type SendMessageTool struct {
	tm   *TeamManager
	from string
}

func (t *SendMessageTool) Name() string { return "send_message" }
func (t *SendMessageTool) Description() string {
	return "Send a direct message to a teammate (or to the lead) by name"
}
func (t *SendMessageTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"to":      map[string]interface{}{"type": "string", "description": "Recipient name (\"lead\" for the main agent)"},
			"content": map[string]interface{}{"type": "string", "description": "Message body"},
		},
		"required": []string{"to", "content"},
	}
}

func (t *SendMessageTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	to := strOf(args, "to")
	content := strOf(args, "content")
	if to == "" || content == "" {
		return ErrorResult("to and content are required")
	}
	if err := t.tm.bus.Send(t.from, to, content, bus.TypeMessage, nil); err != nil {
		return ErrorResult(err.Error())
	}
	return SilentResult(fmt.Sprintf("Message sent to %s", to))
}

// BroadcastTool fans a message out to every teammate except the sender.
type BroadcastTool struct {
	tm *TeamManager
}

func (t *BroadcastTool) Name() string { return "broadcast" }
func (t *BroadcastTool) Description() string {
	return "Broadcast a message to every teammate"
}
func (t *BroadcastTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"content": map[string]interface{}{"type": "string", "description": "Message body"},
		},
		"required": []string{"content"},
	}
}

func (t *BroadcastTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	content := strOf(args, "content")
	if content == "" {
		return ErrorResult("content is required")
	}
	members := t.tm.Members()
	if err := t.tm.bus.Broadcast(LeadName, content, members); err != nil {
		return ErrorResult(err.Error())
	}
	return SilentResult(fmt.Sprintf("Broadcast to %d teammate(s)", len(members)))
}

// CheckInboxTool drains the owner's inbox on demand.
type CheckInboxTool struct {
	tm    *TeamManager
	owner string
}

func (t *CheckInboxTool) Name() string { return "check_inbox" }
func (t *CheckInboxTool) Description() string {
	return "Read and clear your pending inbox messages"
}
func (t *CheckInboxTool) Parameters() map[string]interface{} {
	return map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
}

func (t *CheckInboxTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	msgs, err := t.tm.bus.ReadInbox(t.owner)
	if err != nil {
		return ErrorResult(err.Error())
	}
	if len(msgs) == 0 {
		return SilentResult("Inbox is empty.")
	}
	var lines []string
	for _, msg := range msgs {
		line := fmt.Sprintf("[%s from %s] %s", msg.Type, msg.From, msg.Content)
		if id := msg.RequestID(); id != "" {
			line += fmt.Sprintf(" (request_id: %s)", id)
		}
		lines = append(lines, line)
	}
	return SilentResult(strings.Join(lines, "\n"))
}

// ShutdownTeammateTool starts the graceful shutdown handshake.
type ShutdownTeammateTool struct {
	tm *TeamManager
}

func (t *ShutdownTeammateTool) Name() string { return "shutdown_teammate" }
func (t *ShutdownTeammateTool) Description() string {
	return "Request a teammate to shut down gracefully; returns a request id to poll with check_shutdown_status"
}
func (t *ShutdownTeammateTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"name": map[string]interface{}{"type": "string", "description": "Teammate to shut down"},
		},
		"required": []string{"name"},
	}
}

func (t *ShutdownTeammateTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	name := strOf(args, "name")
	if name == "" {
		return ErrorResult("name is required")
	}
	id := t.tm.trackers.NewShutdown(name)
	err := t.tm.bus.Send(LeadName, name, "please finish up and shut down", bus.TypeShutdownRequest,
		map[string]interface{}{"request_id": id})
	if err != nil {
		return ErrorResult(err.Error())
	}
	return SilentResult(fmt.Sprintf("Shutdown requested for %s (request_id: %s)", name, id))
}

// CheckShutdownStatusTool polls a shutdown handshake.
type CheckShutdownStatusTool struct {
	tm *TeamManager
}

func (t *CheckShutdownStatusTool) Name() string { return "check_shutdown_status" }
func (t *CheckShutdownStatusTool) Description() string {
	return "Check whether a shutdown request has been approved or rejected"
}
func (t *CheckShutdownStatusTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"request_id": map[string]interface{}{"type": "string"},
		},
		"required": []string{"request_id"},
	}
}

func (t *CheckShutdownStatusTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	id := strOf(args, "request_id")
	req, ok := t.tm.trackers.ShutdownStatus(id)
	if !ok {
		return ErrorResult(fmt.Sprintf("unknown shutdown request %q", id))
	}
	return SilentResult(fmt.Sprintf("Shutdown of %s: %s", req.Target, req.Status))
}

// ApprovePlanTool resolves a teammate's plan-approval request.
type ApprovePlanTool struct {
	tm *TeamManager
}

func (t *ApprovePlanTool) Name() string { return "approve_plan" }
func (t *ApprovePlanTool) Description() string {
	return "Approve or reject a teammate's plan-approval request"
}
func (t *ApprovePlanTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"request_id": map[string]interface{}{"type": "string"},
			"approve":    map[string]interface{}{"type": "boolean"},
			"feedback":   map[string]interface{}{"type": "string", "description": "Optional feedback for the teammate"},
		},
		"required": []string{"request_id", "approve"},
	}
}

func (t *ApprovePlanTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	id := strOf(args, "request_id")
	approve := boolArg(args, "approve")

	req, ok := t.tm.trackers.PlanStatus(id)
	if !ok {
		return ErrorResult(fmt.Sprintf("unknown plan request %q", id))
	}
	if err := t.tm.trackers.ResolvePlan(id, approve); err != nil {
		return ErrorResult(err.Error())
	}

	verdict := "approved"
	if !approve {
		verdict = "rejected"
	}
	content := "plan " + verdict
	if feedback := strOf(args, "feedback"); feedback != "" {
		content += ": " + feedback
	}
	t.tm.bus.Send(LeadName, req.From, content, bus.TypePlanApprovalResponse,
		map[string]interface{}{"request_id": id, "approve": approve})
	return SilentResult(fmt.Sprintf("Plan %s %s", id, verdict))
}

// PostTaskTool mirrors a task-store entry onto the shared board, where
// idle teammates can claim it.
type PostTaskTool struct {
	tm    *TeamManager
	store *tasks.Store
}

func (t *PostTaskTool) Name() string { return "post_task" }
func (t *PostTaskTool) Description() string {
	return "Post an existing task onto the shared board for teammates to claim"
}
func (t *PostTaskTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"id": map[string]interface{}{"type": "integer", "description": "Task id from the task store"},
		},
		"required": []string{"id"},
	}
}

func (t *PostTaskTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	id := intArg(args, "id", 0)
	if id <= 0 {
		return ErrorResult("id is required")
	}
	task, err := t.store.Get(id)
	if err != nil {
		return ErrorResult(err.Error())
	}
	if err := t.tm.board.Post(*task); err != nil {
		return ErrorResult(err.Error())
	}
	t.tm.tracer.Emit(trace.EventTaskCreate, t.tm.runID, trace.Fields{"task_id": id, "board": true})
	return UserResult(fmt.Sprintf("Posted task #%d to the board", id))
}

// TeamStatusTool renders the roster.
type TeamStatusTool struct {
	tm *TeamManager
}

func (t *TeamStatusTool) Name() string        { return "team_status" }
func (t *TeamStatusTool) Description() string { return "Show every teammate's name, role, and status" }
func (t *TeamStatusTool) Parameters() map[string]interface{} {
	return map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
}

func (t *TeamStatusTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	return SilentResult(t.tm.Roster())
}
