package bus

import (
	"os"
	"testing"

	"github.com/nextlevelbuilder/goforge/internal/session"
)

func newTestBus(t *testing.T) (*Bus, *session.Session) {
	t.Helper()
	sess, err := session.New(t.TempDir())
	if err != nil {
		t.Fatalf("session.New: %v", err)
	}
	return New(sess), sess
}

func TestInboxDirIsLazy(t *testing.T) {
	b, sess := newTestBus(t)

	// No team state exists until the first send.
	if _, err := os.Stat(sess.InboxDir()); !os.IsNotExist(err) {
		t.Error("inbox dir exists before any send")
	}
	if msgs, err := b.ReadInbox("alice"); err != nil || msgs != nil {
		t.Errorf("ReadInbox before any send = %v, %v", msgs, err)
	}

	if err := b.Send("lead", "alice", "hi", TypeMessage, nil); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if info, err := os.Stat(sess.InboxDir()); err != nil || !info.IsDir() {
		t.Errorf("inbox dir missing after first send: %v", err)
	}
}

func TestSendRejectsInvalidType(t *testing.T) {
	b, _ := newTestBus(t)

	tests := []struct {
		name    string
		msgType string
		valid   bool
	}{
		{"message", TypeMessage, true},
		{"broadcast", TypeBroadcast, true},
		{"shutdown request", TypeShutdownRequest, true},
		{"shutdown response", TypeShutdownResponse, true},
		{"plan approval", TypePlanApprovalResponse, true},
		{"unknown", "gossip", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := b.Send("lead", "alice", "hi", tt.msgType, nil)
			if (err == nil) != tt.valid {
				t.Errorf("Send type %q error = %v, valid = %v", tt.msgType, err, tt.valid)
			}
		})
	}
}

func TestReadInboxDrains(t *testing.T) {
	b, _ := newTestBus(t)

	b.Send("lead", "alice", "first", TypeMessage, nil)
	b.Send("lead", "alice", "second", TypeMessage, nil)

	msgs, err := b.ReadInbox("alice")
	if err != nil {
		t.Fatalf("ReadInbox: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("first drain = %d messages, want 2", len(msgs))
	}
	if msgs[0].Content != "first" || msgs[1].Content != "second" {
		t.Errorf("drain order = %q, %q", msgs[0].Content, msgs[1].Content)
	}

	// A second read must not re-deliver.
	msgs, err = b.ReadInbox("alice")
	if err != nil {
		t.Fatalf("ReadInbox (second): %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("second drain = %d messages, want 0", len(msgs))
	}

	// Only messages sent after the drain show up next.
	b.Send("bob", "alice", "third", TypeMessage, nil)
	msgs, _ = b.ReadInbox("alice")
	if len(msgs) != 1 || msgs[0].Content != "third" {
		t.Errorf("third drain = %v, want just the new message", msgs)
	}
}

func TestReadInboxMissingFile(t *testing.T) {
	b, _ := newTestBus(t)
	msgs, err := b.ReadInbox("nobody")
	if err != nil {
		t.Fatalf("ReadInbox on missing inbox: %v", err)
	}
	if msgs != nil {
		t.Errorf("messages = %v, want nil", msgs)
	}
}

func TestBroadcastExcludesSender(t *testing.T) {
	b, _ := newTestBus(t)
	members := []string{"lead", "alice", "bob"}

	if err := b.Broadcast("alice", "standup time", members); err != nil {
		t.Fatalf("Broadcast: %v", err)
	}

	for _, member := range members {
		msgs, _ := b.ReadInbox(member)
		wantCount := 1
		if member == "alice" {
			wantCount = 0
		}
		if len(msgs) != wantCount {
			t.Errorf("%s inbox = %d messages, want %d", member, len(msgs), wantCount)
			continue
		}
		if wantCount == 1 && msgs[0].Type != TypeBroadcast {
			t.Errorf("%s message type = %q, want %q", member, msgs[0].Type, TypeBroadcast)
		}
	}
}

func TestMessageExtraRoundTrip(t *testing.T) {
	b, _ := newTestBus(t)
	b.Send("lead", "alice", "please stop", TypeShutdownRequest,
		map[string]interface{}{"request_id": "ab12cd34"})

	msgs, err := b.ReadInbox("alice")
	if err != nil {
		t.Fatalf("ReadInbox: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	msg := msgs[0]
	if msg.Type != TypeShutdownRequest || msg.From != "lead" {
		t.Errorf("envelope = %+v", msg)
	}
	if got := msg.RequestID(); got != "ab12cd34" {
		t.Errorf("RequestID = %q, want ab12cd34", got)
	}
	if msg.Timestamp == "" {
		t.Error("timestamp missing after round trip")
	}
}
