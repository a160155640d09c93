package proto

import (
	"time"

	"github.com/google/uuid"
)

// Message roles. Specialist roles reuse the actor tokens; the manager and
// the end user get their own tags so the log reads as a conversation.
const (
	RoleUser    = "user"
	RoleManager = "manager"
	RoleBA      = "ba"
	RoleDev     = "dev"
	RoleTester  = "tester"
)

// Message is one role-tagged entry in the workflow audit trail.
type Message struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage creates a message with a fresh ID and UTC timestamp.
func NewMessage(role, content string) Message {
	return Message{
		ID:        uuid.New().String(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
}

// MessageLog is the append-only, order-preserving conversation history of a
// workflow. Entries are never removed or reordered; the log order is the
// single source of truth for "what happened when" within one instance.
type MessageLog struct {
	entries []Message
}

// Append adds a message to the end of the log and returns it.
func (l *MessageLog) Append(role, content string) Message {
	msg := NewMessage(role, content)
	l.entries = append(l.entries, msg)
	return msg
}

// AppendMessage adds an existing message to the end of the log.
func (l *MessageLog) AppendMessage(msg Message) {
	l.entries = append(l.entries, msg)
}

// Messages returns a copy of all entries in append order.
func (l *MessageLog) Messages() []Message {
	return append([]Message{}, l.entries...)
}

// Len returns the number of entries.
func (l *MessageLog) Len() int {
	return len(l.entries)
}

// Tail returns a copy of the last n entries (all entries if n exceeds the
// log length).
func (l *MessageLog) Tail(n int) []Message {
	if n >= len(l.entries) {
		return l.Messages()
	}
	return append([]Message{}, l.entries[len(l.entries)-n:]...)
}

// Restore replaces the log contents from a persisted snapshot. Only the
// persistence layer should use this, when rehydrating a workflow.
func (l *MessageLog) Restore(msgs []Message) {
	l.entries = append([]Message{}, msgs...)
}
