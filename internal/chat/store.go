package chat

import "context"

// Store is the durable append-only message log. Append returns the
// message with id and created_at populated by the store; RecentAscending
// returns the most recent limit messages reordered oldest-first.
type Store interface {
	Append(ctx context.Context, msg *Message) (*Message, error)
	RecentAscending(ctx context.Context, limit int) ([]*Message, error)
}
