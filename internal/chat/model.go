package chat

import "time"

// Kind is the closed set of message kinds. Anything else arriving on the
// wire is coerced to text before it reaches the store.
type Kind string

const (
	KindText   Kind = "text"
	KindImage  Kind = "image"
	KindEmoji  Kind = "emoji"
	KindSystem Kind = "system"
)

func (k Kind) Valid() bool {
	switch k {
	case KindText, KindImage, KindEmoji, KindSystem:
		return true
	}
	return false
}

// ParseKind maps a wire value onto the closed enum, defaulting to text.
func ParseKind(s string) Kind {
	if k := Kind(s); k.Valid() {
		return k
	}
	return KindText
}

// SystemSenderID is the sentinel sender id for system notices.
const SystemSenderID = 0

// SystemLabel is the reserved display name for system notices.
const SystemLabel = "System"

// Identity is the resolved user bound to a connection for its lifetime.
type Identity struct {
	ID   int
	Name string
}

// Message is one chat message. ID and CreatedAt are authoritative only
// after the store has accepted it. ReceiverID and GroupID are reserved
// for direct/group routing; current behavior broadcasts room-wide
// regardless of their value. SenderName is denormalized for display.
type Message struct {
	ID         int       `json:"id"`
	SenderID   int       `json:"sender_id"`
	SenderName string    `json:"username"`
	ReceiverID *int      `json:"receiver_id,omitempty"`
	GroupID    *int      `json:"group_id,omitempty"`
	Content    string    `json:"content"`
	Kind       Kind      `json:"kind"`
	CreatedAt  time.Time `json:"created_at"`
}

// SystemNotice builds a transient system message. Notices are broadcast
// but never persisted.
func SystemNotice(content string) *Message {
	return &Message{
		SenderID:   SystemSenderID,
		SenderName: SystemLabel,
		Content:    content,
		Kind:       KindSystem,
		CreatedAt:  time.Now().UTC(),
	}
}

// Frame is the outbound broadcast payload. Field names match what the
// web client renders.
type Frame struct {
	Time     string `json:"time"`
	Username string `json:"username"`
	Message  string `json:"message"`
	SenderID int    `json:"sender_id"`
}

// Envelope is the inbound payload the client sends over the socket.
type Envelope struct {
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
}
