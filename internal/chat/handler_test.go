package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/GiaHung305/appchat-2/internal/middleware"
)

func newTestHandler(t *testing.T) (*Handler, *testEnv) {
	t.Helper()
	env := newTestEnv(t)
	h := NewHandler(env.registry, env.engine, env.store, env.dir, nil, nil, zaptest.NewLogger(t), 50)
	return h, env
}

// identityFromQuery stands in for the auth middleware: it resolves the
// identity from query parameters so tests can dial as arbitrary users.
func identityFromQuery(h *Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.Atoi(r.URL.Query().Get("id"))
		if err != nil {
			h.ServeWs(w, r)
			return
		}
		ident := middleware.Identity{ID: id, Username: r.URL.Query().Get("name")}
		h.ServeWs(w, r.WithContext(middleware.WithIdentity(r.Context(), ident)))
	}
}

// readFrames reads one websocket message and splits the batched
// newline-separated frames the write pump may have coalesced.
func readFrames(t *testing.T, conn *websocket.Conn) []Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var frames []Frame
	for _, part := range bytes.Split(raw, []byte{'\n'}) {
		if len(part) == 0 {
			continue
		}
		var f Frame
		require.NoError(t, json.Unmarshal(part, &f))
		frames = append(frames, f)
	}
	return frames
}

func waitForFrame(t *testing.T, conn *websocket.Conn, substr string) Frame {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		for _, f := range readFrames(t, conn) {
			if strings.Contains(f.Message, substr) {
				return f
			}
		}
	}
	t.Fatalf("never received a frame containing %q", substr)
	return Frame{}
}

func TestServeWs_RejectsMissingIdentity(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	h.ServeWs(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestServeWs_EndToEnd(t *testing.T) {
	h, env := newTestHandler(t)
	srv := httptest.NewServer(identityFromQuery(h))
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	bob, _, err := websocket.DefaultDialer.Dial(wsURL+"?id=2&name=bob", nil)
	require.NoError(t, err)
	defer bob.Close()

	require.Eventually(t, func() bool { return env.registry.IsLive(2) }, 2*time.Second, 5*time.Millisecond)

	alice, _, err := websocket.DefaultDialer.Dial(wsURL+"?id=1&name=alice", nil)
	require.NoError(t, err)
	defer alice.Close()

	join := waitForFrame(t, bob, "alice joined the chat")
	assert.Equal(t, SystemLabel, join.Username)
	assert.Equal(t, SystemSenderID, join.SenderID)

	require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte(`{"message":"hi"}`)))

	got := waitForFrame(t, bob, "hi")
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, 1, got.SenderID)
	assert.NotEmpty(t, got.Time)

	assert.Equal(t, 1, env.store.Len())
}

func TestGetChatHistory(t *testing.T) {
	h, env := newTestHandler(t)

	for _, content := range []string{"one", "two", "three"} {
		_, err := env.store.Append(context.Background(), &Message{
			SenderID: 1, SenderName: "alice", Content: content, Kind: KindText,
		})
		require.NoError(t, err)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/messages", nil)
	h.GetChatHistory(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var frames []Frame
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &frames))
	require.Len(t, frames, 3)
	assert.Equal(t, "one", frames[0].Message)
	assert.Equal(t, "three", frames[2].Message)
	assert.Equal(t, "alice", frames[0].Username)
}

func TestGetChatHistory_LimitCapped(t *testing.T) {
	h, env := newTestHandler(t)

	for i := 0; i < 5; i++ {
		_, err := env.store.Append(context.Background(), &Message{
			SenderID: 1, SenderName: "alice", Content: "m", Kind: KindText,
		})
		require.NoError(t, err)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/messages?limit=2", nil)
	h.GetChatHistory(rec, req)

	var frames []Frame
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &frames))
	assert.Len(t, frames, 2)
}
