package chat

import (
	"context"
	"database/sql"
	"time"
)

// Repository is the Postgres-backed Store.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Append(ctx context.Context, msg *Message) (*Message, error) {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO messages (sender_id, receiver_id, group_id, content, kind, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		msg.SenderID, nullableInt(msg.ReceiverID), nullableInt(msg.GroupID),
		msg.Content, string(msg.Kind), msg.CreatedAt,
	).Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		return nil, err
	}
	msg.CreatedAt = msg.CreatedAt.UTC()
	return msg, nil
}

// RecentAscending grabs the newest limit rows and flips them back into
// ascending order, so history renders oldest-first.
func (r *Repository) RecentAscending(ctx context.Context, limit int) ([]*Message, error) {
	query := `
		SELECT id, sender_id, username, receiver_id, group_id, content, kind, created_at
		FROM (
			SELECT m.id, m.sender_id, u.username, m.receiver_id, m.group_id,
			       m.content, m.kind, m.created_at
			FROM messages m
			JOIN users u ON m.sender_id = u.id
			ORDER BY m.id DESC
			LIMIT $1
		) recent
		ORDER BY id ASC
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		msg := &Message{}
		var receiverID, groupID sql.NullInt64
		var kind string
		if err := rows.Scan(&msg.ID, &msg.SenderID, &msg.SenderName,
			&receiverID, &groupID, &msg.Content, &kind, &msg.CreatedAt); err != nil {
			return nil, err
		}
		msg.Kind = ParseKind(kind)
		msg.ReceiverID = intPtr(receiverID)
		msg.GroupID = intPtr(groupID)
		msg.CreatedAt = msg.CreatedAt.UTC()
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func nullableInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
