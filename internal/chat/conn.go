package chat

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// ErrConnClosed is returned by Send once the handle has been closed.
var ErrConnClosed = errors.New("connection closed")

// ErrSendBufferFull is returned when the outbound buffer is saturated.
// The broadcaster treats it like any other failed send.
var ErrSendBufferFull = errors.New("send buffer full")

// Transport is one live duplex connection handle as seen by the registry
// and the broadcast path.
type Transport interface {
	// ID identifies the handle itself (not the user), so that a stale
	// deregister can be told apart from the current registration.
	ID() string
	Send(payload []byte) error
	Close() error
}

// Duplex extends Transport with the blocking receive side consumed by
// the session loop.
type Duplex interface {
	Transport
	Receive() ([]byte, error)
}

// wsConn adapts a gorilla websocket connection to the Duplex contract.
// Writes go through a buffered channel drained by a single write pump;
// the websocket itself is only ever written from that goroutine.
type wsConn struct {
	id     string
	sock   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once
	logger *zap.Logger
}

func newWSConn(sock *websocket.Conn, logger *zap.Logger) *wsConn {
	return &wsConn{
		id:     uuid.NewString(),
		sock:   sock,
		send:   make(chan []byte, 256),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// Start configures read limits and launches the write pump.
func (c *wsConn) Start() {
	c.sock.SetReadLimit(maxMessageSize)
	_ = c.sock.SetReadDeadline(time.Now().Add(pongWait))
	c.sock.SetPongHandler(func(string) error {
		return c.sock.SetReadDeadline(time.Now().Add(pongWait))
	})
	go c.writePump()
}

func (c *wsConn) ID() string { return c.id }

func (c *wsConn) Send(payload []byte) error {
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}

	select {
	case c.send <- payload:
		return nil
	case <-c.done:
		return ErrConnClosed
	default:
		return ErrSendBufferFull
	}
}

// Receive blocks awaiting the next inbound text frame. Closing the
// handle unblocks it with an error.
func (c *wsConn) Receive() ([]byte, error) {
	_, payload, err := c.sock.ReadMessage()
	return payload, err
}

// Close shuts the underlying socket, which also unblocks a pending
// Receive. Safe to call more than once.
func (c *wsConn) Close() error {
	c.once.Do(func() {
		close(c.done)
		_ = c.sock.Close()
	})
	return nil
}

func (c *wsConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.sock.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.sock.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case payload := <-c.send:
			_ = c.sock.SetWriteDeadline(time.Now().Add(writeWait))
			w, err := c.sock.NextWriter(websocket.TextMessage)
			if err != nil {
				c.logger.Debug("write pump stopping", zap.Error(err))
				return
			}
			if _, err := w.Write(payload); err != nil {
				return
			}

			// Drain anything already queued into the same write.
			n := len(c.send)
			for i := 0; i < n; i++ {
				if _, err := w.Write([]byte{'\n'}); err != nil {
					return
				}
				if _, err := w.Write(<-c.send); err != nil {
					return
				}
			}
			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.sock.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
