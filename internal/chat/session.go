package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GiaHung305/appchat-2/internal/user"
)

// State tracks where a session is in its lifecycle.
type State int32

const (
	StateConnecting State = iota
	StateActive
	StateClosing
	StateClosed
)

// UserDirectory is what the session needs from the user feature: the
// per-message sender lookup for attribution before persisting.
type UserDirectory interface {
	GetByID(ctx context.Context, id int) (*user.User, error)
}

// Session owns one connection from registration through teardown. It is
// the only writer of its own lifecycle state; all cross-connection state
// lives in the registry.
type Session struct {
	identity Identity
	conn     Duplex
	registry *Registry
	engine   *Engine
	store    Store
	users    UserDirectory
	cache    *HistoryCache
	metrics  *Metrics
	logger   *zap.Logger
	state    atomic.Int32

	// lost is set when the receive loop ended on an abnormal close, so
	// the teardown notice reads "lost connection" instead of "left".
	lost bool
}

func NewSession(identity Identity, conn Duplex, registry *Registry, engine *Engine,
	store Store, users UserDirectory, cache *HistoryCache, metrics *Metrics, logger *zap.Logger) *Session {
	return &Session{
		identity: identity,
		conn:     conn,
		registry: registry,
		engine:   engine,
		store:    store,
		users:    users,
		cache:    cache,
		metrics:  metrics,
		logger:   logger.With(zap.Int("user_id", identity.ID), zap.String("username", identity.Name)),
	}
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Run drives the session: register (displacing any prior connection for
// the same identity), announce the join to everyone else, then loop
// reading, persisting, and broadcasting until the transport closes. It
// blocks until teardown is complete.
func (s *Session) Run(ctx context.Context) {
	s.activate()
	defer s.teardown()

	for {
		payload, err := s.conn.Receive()
		if err != nil {
			// Anything but a clean close handshake counts as a lost
			// connection: abnormal close frames, raw TCP resets, EOF.
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.lost = true
				s.logger.Debug("receive ended abnormally", zap.Error(err))
			}
			return
		}
		s.handlePayload(ctx, payload)
	}
}

func (s *Session) activate() {
	prior := s.registry.Register(s.identity, s.conn)
	s.state.Store(int32(StateActive))
	s.metrics.incSession()

	if prior != nil {
		// Reconnect: close out the displaced handle and skip the join
		// notice so third parties see no duplicate announcement.
		_ = prior.Close()
		s.logger.Info("replaced prior connection", zap.String("prior_conn", prior.ID()))
		return
	}

	s.logger.Info("joined")
	notice := SystemNotice(fmt.Sprintf("%s joined the chat", s.identity.Name))
	s.engine.Broadcast(notice, s.conn)
}

func (s *Session) handlePayload(ctx context.Context, payload []byte) {
	content, kind := decodePayload(payload)
	if content == "" {
		return
	}

	// Re-resolve the sender row per message; if the user vanished
	// mid-session the message is dropped rather than persisted with an
	// invalid sender.
	sender, err := s.users.GetByID(ctx, s.identity.ID)
	if err != nil {
		s.metrics.incSenderDropped()
		s.logger.Warn("sender lookup failed, dropping message", zap.Error(err))
		return
	}

	msg := &Message{
		SenderID:   sender.ID,
		SenderName: sender.Username,
		Content:    content,
		Kind:       kind,
		CreatedAt:  time.Now().UTC(),
	}

	persisted, err := s.store.Append(ctx, msg)
	if err != nil {
		// Dropped, not retried, not broadcast. The sender gets no error
		// frame; the failure is observable through the metric and log.
		s.metrics.incPersistFailure()
		s.logger.Warn("append failed, dropping message", zap.Error(err))
		return
	}
	s.metrics.incPersisted()

	report := s.engine.Broadcast(persisted, nil)
	s.cache.Push(ctx, report.Payload)
}

func (s *Session) teardown() {
	s.state.Store(int32(StateClosing))
	removed := s.registry.Deregister(s.identity.ID, s.conn)
	_ = s.conn.Close()
	s.metrics.decSession()

	if removed {
		text := fmt.Sprintf("%s left the chat", s.identity.Name)
		if s.lost {
			text = fmt.Sprintf("%s lost connection", s.identity.Name)
		}
		s.logger.Info("left", zap.Bool("lost", s.lost))
		s.engine.Broadcast(SystemNotice(text), nil)
	}
	s.state.Store(int32(StateClosed))
}

// decodePayload accepts either the JSON envelope or a bare text frame.
func decodePayload(payload []byte) (string, Kind) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err == nil && env.Message != "" {
		return env.Message, ParseKind(env.Kind)
	}
	return string(payload), KindText
}
