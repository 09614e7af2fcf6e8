package tasks

import (
	"fmt"
	"sync"
	"testing"

	"github.com/nextlevelbuilder/goforge/internal/session"
)

func newTestBoard(t *testing.T) *Board {
	t.Helper()
	sess, err := session.New(t.TempDir())
	if err != nil {
		t.Fatalf("session.New: %v", err)
	}
	return NewBoard(sess)
}

func postTask(t *testing.T, b *Board, id int) {
	t.Helper()
	if err := b.Post(Task{ID: id, Subject: fmt.Sprintf("task %d", id), Status: StatusPending}); err != nil {
		t.Fatalf("Post: %v", err)
	}
}

func TestBoardClaimIsExclusive(t *testing.T) {
	board := newTestBoard(t)
	postTask(t, board, 1)

	const claimers = 16
	var wg sync.WaitGroup
	winners := make(chan string, claimers)
	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			owner := fmt.Sprintf("mate%d", n)
			if _, err := board.Claim(1, owner); err == nil {
				winners <- owner
			}
		}(i)
	}
	wg.Wait()
	close(winners)

	var won []string
	for owner := range winners {
		won = append(won, owner)
	}
	if len(won) != 1 {
		t.Fatalf("claim winners = %v, want exactly one", won)
	}

	got, err := board.Get(1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Owner != won[0] {
		t.Errorf("owner on disk = %q, want %q", got.Owner, won[0])
	}
	if got.Status != StatusInProgress {
		t.Errorf("status after claim = %q, want %q", got.Status, StatusInProgress)
	}
}

func TestBoardClaimRejections(t *testing.T) {
	board := newTestBoard(t)
	postTask(t, board, 1)
	if _, err := board.Claim(1, "alice"); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if _, err := board.Complete(1); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	postTask(t, board, 2)
	board.Claim(2, "bob")

	tests := []struct {
		name string
		id   int
	}{
		{"completed task", 1},
		{"claimed task", 2},
		{"missing task", 9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := board.Claim(tt.id, "carol"); err == nil {
				t.Errorf("Claim(%d) succeeded, want error", tt.id)
			}
		})
	}
}

func TestBoardPostProtectsClaims(t *testing.T) {
	board := newTestBoard(t)
	postTask(t, board, 1)

	// Unclaimed records may be overwritten.
	if err := board.Post(Task{ID: 1, Subject: "revised", Status: StatusPending}); err != nil {
		t.Fatalf("Post overwrite: %v", err)
	}

	if _, err := board.Claim(1, "alice"); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if err := board.Post(Task{ID: 1, Subject: "stomp", Status: StatusPending}); err == nil {
		t.Error("Post over a claimed record succeeded, want error")
	}
}

func TestBoardScanUnclaimed(t *testing.T) {
	board := newTestBoard(t)
	postTask(t, board, 1)
	board.Post(Task{ID: 2, Subject: "blocked", Status: StatusPending, BlockedBy: []int{1}})
	postTask(t, board, 3)
	board.Claim(3, "alice")
	board.Post(Task{ID: 4, Subject: "done", Status: StatusCompleted})

	open, err := board.ScanUnclaimed()
	if err != nil {
		t.Fatalf("ScanUnclaimed: %v", err)
	}
	if len(open) != 1 || open[0].ID != 1 {
		t.Fatalf("ScanUnclaimed = %v, want only task 1", open)
	}
}

func TestBoardCompleteUnblocksDependents(t *testing.T) {
	board := newTestBoard(t)
	postTask(t, board, 1)
	board.Post(Task{ID: 2, Subject: "downstream", Status: StatusPending, BlockedBy: []int{1}})

	board.Claim(1, "alice")
	if _, err := board.Complete(1); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	open, err := board.ScanUnclaimed()
	if err != nil {
		t.Fatalf("ScanUnclaimed: %v", err)
	}
	if len(open) != 1 || open[0].ID != 2 {
		t.Fatalf("ScanUnclaimed after completion = %v, want task 2", open)
	}
}
