package bus

import "testing"

func TestShutdownTrackerRoundTrip(t *testing.T) {
	trk := NewTrackers()

	id := trk.NewShutdown("alice")
	if len(id) != 8 {
		t.Errorf("request id = %q, want 8 hex chars", id)
	}

	req, ok := trk.ShutdownStatus(id)
	if !ok || req.Status != StatusPending || req.Target != "alice" {
		t.Fatalf("pending request = %+v, ok = %v", req, ok)
	}

	if err := trk.ResolveShutdown(id, true); err != nil {
		t.Fatalf("ResolveShutdown: %v", err)
	}
	req, _ = trk.ShutdownStatus(id)
	if req.Status != StatusApproved {
		t.Errorf("status = %q, want %q", req.Status, StatusApproved)
	}

	if err := trk.ResolveShutdown("deadbeef", true); err == nil {
		t.Error("ResolveShutdown on unknown id succeeded, want error")
	}
	if _, ok := trk.ShutdownStatus("deadbeef"); ok {
		t.Error("ShutdownStatus on unknown id reported ok")
	}
}

func TestPlanTrackerRoundTrip(t *testing.T) {
	trk := NewTrackers()

	id := trk.NewPlan("bob", "refactor the parser")
	req, ok := trk.PlanStatus(id)
	if !ok || req.Status != StatusPending || req.From != "bob" {
		t.Fatalf("pending plan = %+v, ok = %v", req, ok)
	}

	if err := trk.ResolvePlan(id, false); err != nil {
		t.Fatalf("ResolvePlan: %v", err)
	}
	req, _ = trk.PlanStatus(id)
	if req.Status != StatusRejected {
		t.Errorf("status = %q, want %q", req.Status, StatusRejected)
	}

	if err := trk.ResolvePlan("deadbeef", true); err == nil {
		t.Error("ResolvePlan on unknown id succeeded, want error")
	}
}

func TestTrackerIDsAreDistinct(t *testing.T) {
	trk := NewTrackers()
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		id := trk.NewShutdown("alice")
		if seen[id] {
			t.Fatalf("duplicate request id %q", id)
		}
		seen[id] = true
	}
}
