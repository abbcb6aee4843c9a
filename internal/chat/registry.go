package chat

import (
	"sort"
	"sync"
)

// Member is one live (identity, handle) pair from a registry snapshot.
type Member struct {
	Identity Identity
	Conn     Transport
}

// Registry is the live map from user id to its single active transport
// handle. At most one open connection exists per identity at any instant;
// Register enforces that by displacing the previous handle, and
// Deregister only removes a mapping when the caller still owns it.
type Registry struct {
	mu    sync.Mutex
	conns map[int]Member
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[int]Member)}
}

// Register installs conn as the identity's open connection and returns
// the displaced prior handle, if any. The caller is responsible for
// closing the prior handle's transport.
func (r *Registry) Register(identity Identity, conn Transport) Transport {
	r.mu.Lock()
	defer r.mu.Unlock()

	var prior Transport
	if existing, ok := r.conns[identity.ID]; ok {
		prior = existing.Conn
	}
	r.conns[identity.ID] = Member{Identity: identity, Conn: conn}
	return prior
}

// Deregister removes the mapping only if conn is still the registered
// handle for the user. A stale deregister from a connection that was
// already replaced is a no-op, so a fast reconnect cannot be evicted by
// the old connection's teardown. The return value reports whether a
// removal actually happened.
func (r *Registry) Deregister(userID int, conn Transport) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.conns[userID]
	if !ok || existing.Conn.ID() != conn.ID() {
		return false
	}
	delete(r.conns, userID)
	return true
}

// Snapshot returns a point-in-time copy of the live set, ordered by user
// id. Fan-out iterates the copy, never the map, so a broadcast cannot
// observe a registry mutated mid-iteration.
func (r *Registry) Snapshot() []Member {
	r.mu.Lock()
	members := make([]Member, 0, len(r.conns))
	for _, m := range r.conns {
		members = append(members, m)
	}
	r.mu.Unlock()

	sort.Slice(members, func(i, j int) bool {
		return members[i].Identity.ID < members[j].Identity.ID
	})
	return members
}

func (r *Registry) IsLive(userID int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.conns[userID]
	return ok
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}
