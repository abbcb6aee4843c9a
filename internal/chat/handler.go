package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GiaHung305/appchat-2/internal/middleware"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // allow all for now (dev mode)
	},
}

// Handler is the HTTP edge of the chat feature: the WebSocket upgrade
// endpoint and the history endpoint consumed on page load.
type Handler struct {
	registry     *Registry
	engine       *Engine
	store        Store
	users        UserDirectory
	cache        *HistoryCache
	metrics      *Metrics
	logger       *zap.Logger
	historyLimit int
}

func NewHandler(registry *Registry, engine *Engine, store Store, users UserDirectory,
	cache *HistoryCache, metrics *Metrics, logger *zap.Logger, historyLimit int) *Handler {
	if historyLimit <= 0 {
		historyLimit = 50
	}
	return &Handler{
		registry:     registry,
		engine:       engine,
		store:        store,
		users:        users,
		cache:        cache,
		metrics:      metrics,
		logger:       logger,
		historyLimit: historyLimit,
	}
}

// ServeWs upgrades the connection and hands it to a session. The
// identity must already be resolved by the auth middleware; without one
// the upgrade is rejected before anything is registered.
func (h *Handler) ServeWs(w http.ResponseWriter, r *http.Request) {
	ident, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	sock, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	conn := newWSConn(sock, h.logger)
	conn.Start()

	// Replay the cached backlog before live traffic starts flowing.
	for _, frame := range h.cache.Recent(r.Context()) {
		if err := conn.Send(frame); err != nil {
			break
		}
	}

	session := NewSession(
		Identity{ID: ident.ID, Name: ident.Username},
		conn, h.registry, h.engine, h.store, h.users, h.cache, h.metrics, h.logger,
	)
	go session.Run(context.Background())
}

// GetChatHistory returns up to the configured number of most recent
// messages, ascending by creation time.
func (h *Handler) GetChatHistory(w http.ResponseWriter, r *http.Request) {
	limit := h.historyLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n < limit {
			limit = n
		}
	}

	msgs, err := h.store.RecentAscending(r.Context(), limit)
	if err != nil {
		h.logger.Error("history read failed", zap.Error(err))
		http.Error(w, "could not load history", http.StatusInternalServerError)
		return
	}

	frames := make([]Frame, 0, len(msgs))
	for _, msg := range msgs {
		frames = append(frames, h.engine.Frame(msg))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(frames)
}
