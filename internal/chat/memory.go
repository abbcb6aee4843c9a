package chat

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store. It backs tests and offline runs;
// FailNext lets tests simulate a store outage for the next append.
type MemoryStore struct {
	mu      sync.Mutex
	msgs    []*Message
	nextID  int
	failErr error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1}
}

// FailNext makes the next Append return err instead of persisting.
func (s *MemoryStore) FailNext(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failErr = err
}

func (s *MemoryStore) Append(ctx context.Context, msg *Message) (*Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failErr != nil {
		err := s.failErr
		s.failErr = nil
		return nil, err
	}

	stored := *msg
	stored.ID = s.nextID
	s.nextID++
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	s.msgs = append(s.msgs, &stored)

	out := stored
	return &out, nil
}

func (s *MemoryStore) RecentAscending(ctx context.Context, limit int) ([]*Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := 0
	if len(s.msgs) > limit {
		start = len(s.msgs) - limit
	}

	out := make([]*Message, 0, len(s.msgs)-start)
	for _, m := range s.msgs[start:] {
		cp := *m
		out = append(out, &cp)
	}
	return out, nil
}

// Len reports how many messages have been persisted.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.msgs)
}
