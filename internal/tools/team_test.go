package tools

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/nextlevelbuilder/goforge/internal/bus"
	"github.com/nextlevelbuilder/goforge/internal/config"
	"github.com/nextlevelbuilder/goforge/internal/providers"
	"github.com/nextlevelbuilder/goforge/internal/session"
	"github.com/nextlevelbuilder/goforge/internal/tasks"
	"github.com/nextlevelbuilder/goforge/internal/trace"
)

// scriptedProvider answers every chat with the same canned response.
type scriptedProvider struct {
	response providers.ChatResponse
}

func (p *scriptedProvider) Name() string         { return "scripted" }
func (p *scriptedProvider) DefaultModel() string { return "scripted-model" }

func (p *scriptedProvider) Chat(ctx context.Context, req providers.ChatRequest) (*providers.ChatResponse, error) {
	resp := p.response
	return &resp, nil
}

func (p *scriptedProvider) ChatStream(ctx context.Context, req providers.ChatRequest, onChunk func(providers.StreamChunk)) (*providers.ChatResponse, error) {
	return p.Chat(ctx, req)
}

type teamFixture struct {
	sess     *session.Session
	bus      *bus.Bus
	trackers *bus.Trackers
	tm       *TeamManager
}

func newTeamFixture(t *testing.T, provider providers.Provider) *teamFixture {
	t.Helper()
	sess, err := session.New(t.TempDir())
	if err != nil {
		t.Fatalf("session.New: %v", err)
	}
	msgBus := bus.New(sess)
	trackers := bus.NewTrackers()
	board := tasks.NewBoard(sess)
	tracer := trace.NewTracer(sess.TracePath())

	cfg := config.TeamConfig{MaxTurns: 1, PollIntervalSec: 1, IdleTimeoutSec: 1}
	tm := NewTeamManager(sess, msgBus, trackers, board, provider, "scripted-model", cfg, tracer,
		func() *Registry { return NewRegistry() })
	return &teamFixture{sess: sess, bus: msgBus, trackers: trackers, tm: tm}
}

func TestSpawnValidation(t *testing.T) {
	provider := &scriptedProvider{response: providers.ChatResponse{Content: "nothing to do"}}
	fx := newTeamFixture(t, provider)

	if fx.tm.Live() {
		t.Error("Live before any spawn")
	}

	tests := []struct {
		name  string
		mate  string
		valid bool
	}{
		{"empty name", "", false},
		{"lead is reserved", LeadName, false},
		{"normal name", "alice", true},
		{"duplicate", "alice", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := fx.tm.Spawn(tt.mate, "tester")
			if (err == nil) != tt.valid {
				t.Errorf("Spawn(%q) error = %v, valid = %v", tt.mate, err, tt.valid)
			}
		})
	}

	if !fx.tm.Live() {
		t.Error("Live still false after a spawn")
	}
	members := fx.tm.Members()
	if len(members) != 1 || members[0] != "alice" {
		t.Errorf("Members = %v, want [alice]", members)
	}

	fx.tm.Wait()
}

func TestTeammateIdleTimeoutShutdown(t *testing.T) {
	// The model never calls tools, so the mate finishes one working batch,
	// idles through its one tick, and shuts down.
	provider := &scriptedProvider{response: providers.ChatResponse{Content: "nothing to do"}}
	fx := newTeamFixture(t, provider)

	if err := fx.tm.Spawn("alice", "tester"); err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	fx.tm.Wait()

	if got := fx.tm.mates["alice"].Status(); got != MateShutdown {
		t.Errorf("status = %q, want %q", got, MateShutdown)
	}

	// No resurrection within the session.
	if err := fx.tm.Spawn("alice", "tester"); err == nil {
		t.Error("Spawn after shutdown succeeded, want error")
	}

	// History was persisted for post-mortems.
	history, err := fx.sess.LoadHistory("alice")
	if err != nil {
		t.Fatalf("LoadHistory: %v", err)
	}
	if len(history) == 0 || history[0].Role != "system" {
		t.Errorf("persisted history = %+v, want system prompt first", history)
	}

	// The roster reflects the final state.
	data, err := os.ReadFile(fx.sess.TeamConfigPath())
	if err != nil {
		t.Fatalf("read roster: %v", err)
	}
	if !strings.Contains(string(data), "alice") || !strings.Contains(string(data), MateShutdown) {
		t.Errorf("roster = %s", data)
	}
}

func TestTeammateApprovesShutdownRequest(t *testing.T) {
	provider := &scriptedProvider{response: providers.ChatResponse{Content: "nothing to do"}}
	fx := newTeamFixture(t, provider)

	// Queue the request before the mate's first inbox drain.
	id := fx.trackers.NewShutdown("alice")
	if err := fx.bus.Send(LeadName, "alice", "please stop", bus.TypeShutdownRequest,
		map[string]interface{}{"request_id": id}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if err := fx.tm.Spawn("alice", "tester"); err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	fx.tm.Wait()

	if got := fx.tm.mates["alice"].Status(); got != MateShutdown {
		t.Errorf("status = %q, want %q", got, MateShutdown)
	}

	req, ok := fx.trackers.ShutdownStatus(id)
	if !ok || req.Status != bus.StatusApproved {
		t.Errorf("tracker = %+v, ok = %v, want approved", req, ok)
	}

	msgs, err := fx.bus.ReadInbox(LeadName)
	if err != nil {
		t.Fatalf("ReadInbox: %v", err)
	}
	var found bool
	for _, msg := range msgs {
		if msg.Type == bus.TypeShutdownResponse && msg.RequestID() == id {
			found = true
		}
	}
	if !found {
		t.Errorf("lead inbox = %+v, want shutdown_response for %s", msgs, id)
	}
}

func TestTeammateAutoClaimsBoardTask(t *testing.T) {
	provider := &scriptedProvider{response: providers.ChatResponse{Content: "nothing to do"}}
	fx := newTeamFixture(t, provider)

	board := tasks.NewBoard(fx.sess)
	if err := board.Post(tasks.Task{ID: 7, Subject: "port the tests", Status: tasks.StatusPending}); err != nil {
		t.Fatalf("Post: %v", err)
	}

	if err := fx.tm.Spawn("alice", "tester"); err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	fx.tm.Wait()

	got, err := board.Get(7)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Owner != "alice" {
		t.Errorf("owner = %q, want alice", got.Owner)
	}
	if got.Status != tasks.StatusInProgress {
		t.Errorf("status = %q, want %q", got.Status, tasks.StatusInProgress)
	}

	// The claim shows up in the mate's history as an auto-claimed block.
	history, err := fx.sess.LoadHistory("alice")
	if err != nil {
		t.Fatalf("LoadHistory: %v", err)
	}
	var claimed bool
	for _, msg := range history {
		if strings.Contains(msg.Content, "<auto-claimed>") && strings.Contains(msg.Content, "port the tests") {
			claimed = true
		}
	}
	if !claimed {
		t.Errorf("no auto-claimed block in history: %+v", history)
	}
}
