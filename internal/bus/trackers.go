package bus

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Request statuses.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// ShutdownRequest tracks one lead-initiated shutdown handshake.
type ShutdownRequest struct {
	Target string
	Status string
}

// PlanRequest tracks one teammate plan awaiting lead approval.
type PlanRequest struct {
	From   string
	Plan   string
	Status string
}

// Trackers holds the in-memory request tables. Ids are 8 hex chars;
// entries are never expired — stale requests simply linger.
type Trackers struct {
	mu       sync.Mutex
	shutdown map[string]*ShutdownRequest
	plans    map[string]*PlanRequest
}

// NewTrackers returns empty tables.
func NewTrackers() *Trackers {
	return &Trackers{
		shutdown: make(map[string]*ShutdownRequest),
		plans:    make(map[string]*PlanRequest),
	}
}

func newRequestID() string {
	return uuid.NewString()[:8]
}

// NewShutdown registers a pending shutdown request for target.
func (t *Trackers) NewShutdown(target string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := newRequestID()
	t.shutdown[id] = &ShutdownRequest{Target: target, Status: StatusPending}
	return id
}

// ResolveShutdown flips a pending shutdown request to approved/rejected.
func (t *Trackers) ResolveShutdown(id string, approve bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	req, ok := t.shutdown[id]
	if !ok {
		return fmt.Errorf("unknown shutdown request %q", id)
	}
	if approve {
		req.Status = StatusApproved
	} else {
		req.Status = StatusRejected
	}
	return nil
}

// ShutdownStatus returns a copy of the tracked request.
func (t *Trackers) ShutdownStatus(id string) (ShutdownRequest, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	req, ok := t.shutdown[id]
	if !ok {
		return ShutdownRequest{}, false
	}
	return *req, true
}

// NewPlan registers a pending plan-approval request from a teammate.
func (t *Trackers) NewPlan(from, plan string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := newRequestID()
	t.plans[id] = &PlanRequest{From: from, Plan: plan, Status: StatusPending}
	return id
}

// ResolvePlan flips a pending plan request to approved/rejected.
func (t *Trackers) ResolvePlan(id string, approve bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	req, ok := t.plans[id]
	if !ok {
		return fmt.Errorf("unknown plan request %q", id)
	}
	if approve {
		req.Status = StatusApproved
	} else {
		req.Status = StatusRejected
	}
	return nil
}

// PlanStatus returns a copy of the tracked request.
func (t *Trackers) PlanStatus(id string) (PlanRequest, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	req, ok := t.plans[id]
	if !ok {
		return PlanRequest{}, false
	}
	return *req, true
}
