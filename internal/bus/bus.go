// Package bus is the file-backed message bus for one session's team.
//
// Each recipient owns one append-only JSONL inbox file under
// team/inbox/<name>.jsonl. Reading an inbox drains it: the file is read
// and truncated in one critical section, so a message is delivered at
// most once. The recipient is by convention the sole reader of its inbox.
package bus

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/nextlevelbuilder/goforge/internal/session"
)

// Message types form a closed set; Send rejects anything else.
const (
	TypeMessage              = "message"
	TypeBroadcast            = "broadcast"
	TypeShutdownRequest      = "shutdown_request"
	TypeShutdownResponse     = "shutdown_response"
	TypePlanApprovalResponse = "plan_approval_response"
)

var validTypes = map[string]bool{
	TypeMessage:              true,
	TypeBroadcast:            true,
	TypeShutdownRequest:      true,
	TypeShutdownResponse:     true,
	TypePlanApprovalResponse: true,
}

// Message is one inbox entry. Extra keys (request_id for protocol
// traffic) are flattened into the top level of the JSON object.
type Message struct {
	Type      string
	From      string
	Content   string
	Timestamp string
	Extra     map[string]interface{}
}

// MarshalJSON flattens Extra into the envelope.
func (m Message) MarshalJSON() ([]byte, error) {
	obj := make(map[string]interface{}, len(m.Extra)+4)
	for k, v := range m.Extra {
		obj[k] = v
	}
	obj["type"] = m.Type
	obj["from"] = m.From
	obj["content"] = m.Content
	obj["timestamp"] = m.Timestamp
	return json.Marshal(obj)
}

// UnmarshalJSON splits the envelope fields back out of the flat object.
func (m *Message) UnmarshalJSON(data []byte) error {
	var obj map[string]interface{}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	str := func(key string) string {
		v, _ := obj[key].(string)
		delete(obj, key)
		return v
	}
	m.Type = str("type")
	m.From = str("from")
	m.Content = str("content")
	m.Timestamp = str("timestamp")
	if len(obj) > 0 {
		m.Extra = obj
	}
	return nil
}

// RequestID returns the request_id extra, if present.
func (m Message) RequestID() string {
	if m.Extra == nil {
		return ""
	}
	id, _ := m.Extra["request_id"].(string)
	return id
}

// Bus delivers messages between named agents of one session.
type Bus struct {
	mu   sync.Mutex
	sess *session.Session
}

// New creates a bus over the session's inbox directory.
func New(sess *session.Session) *Bus {
	return &Bus{sess: sess}
}

// Send appends one message to the recipient's inbox.
func (b *Bus) Send(from, to, content, msgType string, extra map[string]interface{}) error {
	if !validTypes[msgType] {
		return fmt.Errorf("invalid message type %q", msgType)
	}

	msg := Message{
		Type:      msgType,
		From:      from,
		Content:   content,
		Timestamp: time.Now().Format(time.RFC3339),
		Extra:     extra,
	}
	line, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("send: marshal: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	// The inbox directory appears on first send, not at session creation.
	if err := os.MkdirAll(b.sess.InboxDir(), 0o755); err != nil {
		return fmt.Errorf("send: create inbox dir: %w", err)
	}
	f, err := os.OpenFile(b.sess.InboxPath(to), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("send: open inbox: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("send: write inbox: %w", err)
	}
	return nil
}

// ReadInbox drains the named inbox: all pending messages are returned and
// the file is truncated. A second read returns only messages sent after
// the first.
func (b *Bus) ReadInbox(name string) ([]Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	path := b.sess.InboxPath(name)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read inbox: %w", err)
	}

	var msgs []Message
	start := 0
	for i := 0; i <= len(data); i++ {
		if i == len(data) || data[i] == '\n' {
			if i > start {
				var msg Message
				if err := json.Unmarshal(data[start:i], &msg); err == nil {
					msgs = append(msgs, msg)
				}
			}
			start = i + 1
		}
	}

	if len(data) > 0 {
		if err := os.Truncate(path, 0); err != nil {
			return msgs, fmt.Errorf("read inbox: truncate: %w", err)
		}
	}
	return msgs, nil
}

// Broadcast sends content to every member except the sender.
func (b *Bus) Broadcast(from, content string, members []string) error {
	for _, member := range members {
		if member == from {
			continue
		}
		if err := b.Send(from, member, content, TypeBroadcast, nil); err != nil {
			return err
		}
	}
	return nil
}
