package chat

import (
	"context"
	"io"
	"sync"

	"github.com/GiaHung305/appchat-2/internal/user"
)

// fakeConn is an in-memory Duplex used across the package tests.
type fakeConn struct {
	id string

	mu      sync.Mutex
	frames  [][]byte
	sendErr error
	closed  bool

	inbox   chan []byte
	done    chan struct{}
	once    sync.Once
	recvErr error
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{
		id:      id,
		inbox:   make(chan []byte, 16),
		done:    make(chan struct{}),
		recvErr: io.EOF,
	}
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	cp := append([]byte(nil), payload...)
	c.frames = append(c.frames, cp)
	return nil
}

func (c *fakeConn) Receive() ([]byte, error) {
	select {
	case payload := <-c.inbox:
		return payload, nil
	case <-c.done:
		return nil, c.recvErr
	}
}

func (c *fakeConn) Close() error {
	c.once.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.done)
	})
	return nil
}

// closeWith terminates the connection with a specific receive error,
// simulating an abrupt transport reset.
func (c *fakeConn) closeWith(err error) {
	c.recvErr = err
	_ = c.Close()
}

// push queues an inbound payload for the session's receive loop.
func (c *fakeConn) push(payload []byte) {
	c.inbox <- payload
}

func (c *fakeConn) received() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.frames))
	copy(out, c.frames)
	return out
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) setSendErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendErr = err
}

// fakeDirectory is an in-memory UserDirectory.
type fakeDirectory struct {
	mu    sync.Mutex
	users map[int]*user.User
}

func newFakeDirectory(users ...*user.User) *fakeDirectory {
	d := &fakeDirectory{users: make(map[int]*user.User)}
	for _, u := range users {
		d.users[u.ID] = u
	}
	return d
}

func (d *fakeDirectory) GetByID(ctx context.Context, id int) (*user.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	return u, nil
}

func (d *fakeDirectory) remove(id int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.users, id)
}
