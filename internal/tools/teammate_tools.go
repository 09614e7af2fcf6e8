package tools

import (
	"context"
	"fmt"

	"github.com/nextlevelbuilder/goforge/internal/bus"
	"github.com/nextlevelbuilder/goforge/internal/trace"
)

// registerTeammateTools layers the mate-scoped protocol tools onto a
// teammate's registry. Teammates never get spawn/shutdown powers.
func registerTeammateTools(reg *Registry, mate *Teammate) {
	reg.Register(&SendMessageTool{tm: mate.mgr, from: mate.name})
	reg.Register(&CheckInboxTool{tm: mate.mgr, owner: mate.name})
	reg.Register(&IdleTool{mate: mate})
	reg.Register(&ClaimTaskTool{mate: mate})
	reg.Register(&CompleteTaskTool{mate: mate})
	reg.Register(&RequestPlanApprovalTool{mate: mate})
	reg.Register(&ShutdownResponseTool{mate: mate})
}

// IdleTool ends the current working batch and puts the teammate into
// idle polling.
type IdleTool struct {
	mate *Teammate
}

func (t *IdleTool) Name() string { return "idle" }
func (t *IdleTool) Description() string {
	return "Signal that you have nothing left to do and want to wait for new work"
}
func (t *IdleTool) Parameters() map[string]interface{} {
	return map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
}

func (t *IdleTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	t.mate.requestIdle()
	return SilentResult("Going idle.")
}

// ClaimTaskTool claims a board task for this teammate. The board's claim
// mutex guarantees at most one winner per task.
type ClaimTaskTool struct {
	mate *Teammate
}

func (t *ClaimTaskTool) Name() string { return "claim_task" }
func (t *ClaimTaskTool) Description() string {
	return "Claim an unclaimed task from the shared board by id"
}
func (t *ClaimTaskTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"id": map[string]interface{}{"type": "integer", "description": "Board task id"},
		},
		"required": []string{"id"},
	}
}

func (t *ClaimTaskTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	id := intArg(args, "id", 0)
	if id <= 0 {
		return ErrorResult("id is required")
	}
	task, err := t.mate.mgr.board.Claim(id, t.mate.name)
	if err != nil {
		return ErrorResult(err.Error())
	}
	t.mate.mgr.tracer.Emit(trace.EventTaskClaim, t.mate.mgr.runID, trace.Fields{
		"task_id": id, "owner": t.mate.name,
	})
	return SilentResult(fmt.Sprintf("Claimed task #%d: %s", task.ID, task.Subject))
}

// CompleteTaskTool marks a claimed board task completed, unblocking its
// dependents.
type CompleteTaskTool struct {
	mate *Teammate
}

func (t *CompleteTaskTool) Name() string { return "complete_task" }
func (t *CompleteTaskTool) Description() string {
	return "Mark a board task you claimed as completed"
}
func (t *CompleteTaskTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"id": map[string]interface{}{"type": "integer", "description": "Board task id"},
		},
		"required": []string{"id"},
	}
}

func (t *CompleteTaskTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	id := intArg(args, "id", 0)
	if id <= 0 {
		return ErrorResult("id is required")
	}
	task, err := t.mate.mgr.board.Complete(id)
	if err != nil {
		return ErrorResult(err.Error())
	}
	t.mate.mgr.tracer.Emit(trace.EventTaskUpdate, t.mate.mgr.runID, trace.Fields{
		"task_id": id, "status": task.Status,
	})
	return SilentResult(fmt.Sprintf("Completed task #%d", id))
}

// RequestPlanApprovalTool asks the lead to sign off on a plan before the
// teammate starts implementing it.
type RequestPlanApprovalTool struct {
	mate *Teammate
}

func (t *RequestPlanApprovalTool) Name() string { return "request_plan_approval" }
func (t *RequestPlanApprovalTool) Description() string {
	return "Send your plan to the lead for approval before implementing it; returns a request id"
}
func (t *RequestPlanApprovalTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"plan": map[string]interface{}{"type": "string", "description": "The plan to be approved"},
		},
		"required": []string{"plan"},
	}
}

func (t *RequestPlanApprovalTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	plan := strOf(args, "plan")
	if plan == "" {
		return ErrorResult("plan is required")
	}
	mgr := t.mate.mgr
	id := mgr.trackers.NewPlan(t.mate.name, plan)
	err := mgr.bus.Send(t.mate.name, LeadName, "plan approval requested:\n"+plan, bus.TypeMessage,
		map[string]interface{}{"request_id": id})
	if err != nil {
		return ErrorResult(err.Error())
	}
	return SilentResult(fmt.Sprintf("Plan submitted for approval (request_id: %s). "+
		"Wait for the plan_approval_response before implementing.", id))
}

// ShutdownResponseTool answers a shutdown_request found in the inbox.
// Approving ends the teammate after the current batch.
type ShutdownResponseTool struct {
	mate *Teammate
}

func (t *ShutdownResponseTool) Name() string { return "shutdown_response" }
func (t *ShutdownResponseTool) Description() string {
	return "Respond to a shutdown request from the lead"
}
func (t *ShutdownResponseTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"request_id": map[string]interface{}{"type": "string"},
			"approve":    map[string]interface{}{"type": "boolean"},
			"reason":     map[string]interface{}{"type": "string", "description": "Why, when rejecting"},
		},
		"required": []string{"request_id", "approve"},
	}
}

func (t *ShutdownResponseTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	id := strOf(args, "request_id")
	approve := boolArg(args, "approve")
	mgr := t.mate.mgr

	if err := mgr.trackers.ResolveShutdown(id, approve); err != nil {
		return ErrorResult(err.Error())
	}
	content := "shutting down"
	if !approve {
		content = "declining shutdown"
		if reason := strOf(args, "reason"); reason != "" {
			content += ": " + reason
		}
	}
	mgr.bus.Send(t.mate.name, LeadName, content, bus.TypeShutdownResponse,
		map[string]interface{}{"request_id": id, "approve": approve})

	if approve {
		t.mate.setStatus(MateShutdown)
		return SilentResult("Shutdown approved. Finishing up.")
	}
	return SilentResult("Shutdown declined.")
}
