package chat

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wireFrame struct {
	Type     ResponseType `json:"type"`
	Success  bool         `json:"success"`
	Messages []Message    `json:"messages"`
	Error    string       `json:"error"`
}

func startChatServer(t *testing.T, f *relayFixture) (*SessionManager, string) {
	t.Helper()
	sm := NewSessionManager()
	h := NewWebSocketHandler(f.relay, sm, WebSocketConfig{OriginPatterns: []string{"*"}}, nil)
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return sm, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dialChat(t *testing.T, ctx context.Context, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.CloseNow() })
	return conn
}

func roundTrip(t *testing.T, ctx context.Context, conn *websocket.Conn, req map[string]any) wireFrame {
	t.Helper()
	require.NoError(t, wsjson.Write(ctx, conn, req))
	var resp wireFrame
	require.NoError(t, wsjson.Read(ctx, conn, &resp))
	return resp
}

func TestWebSocketLoginAndMessage(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	f := newRelayFixture(t, RelayConfig{})
	_, url := startChatServer(t, f)
	conn := dialChat(t, ctx, url)

	resp := roundTrip(t, ctx, conn, map[string]any{"type": 1, "message": "too early"})
	assert.Equal(t, ResponseError, resp.Type)
	assert.Contains(t, resp.Error, "not yet logged in")

	resp = roundTrip(t, ctx, conn, map[string]any{"type": 0, "token": "good-token", "noteId": "n1"})
	assert.Equal(t, ResponseLogin, resp.Type)
	assert.True(t, resp.Success)
	assert.Empty(t, resp.Messages)

	resp = roundTrip(t, ctx, conn, map[string]any{"type": 1, "message": "What is the summary?"})
	require.Equal(t, ResponseMessageUpdate, resp.Type)
	require.Len(t, resp.Messages, 2)
	assert.Equal(t, "user", resp.Messages[0].Role)
	assert.Equal(t, "assistant", resp.Messages[1].Role)

	resp = roundTrip(t, ctx, conn, map[string]any{"type": 9})
	assert.Equal(t, ResponseError, resp.Type)
}

func TestWebSocketAnswersPipelinedRequestsInOrder(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	f := newRelayFixture(t, RelayConfig{})
	_, url := startChatServer(t, f)
	conn := dialChat(t, ctx, url)

	reqs := []map[string]any{
		{"type": 0, "token": "good-token", "noteId": "n1"},
		{"type": 1, "message": "first"},
		{"type": 1, "message": "second"},
	}
	for _, req := range reqs {
		require.NoError(t, wsjson.Write(ctx, conn, req))
	}

	var login, first, second wireFrame
	require.NoError(t, wsjson.Read(ctx, conn, &login))
	require.NoError(t, wsjson.Read(ctx, conn, &first))
	require.NoError(t, wsjson.Read(ctx, conn, &second))

	assert.Equal(t, ResponseLogin, login.Type)
	assert.Len(t, first.Messages, 2)
	assert.Len(t, second.Messages, 4)
}

func TestWebSocketCloseCancelsInFlightRun(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	f := newRelayFixture(t, RelayConfig{})
	f.backend.RunBlock = make(chan struct{})
	sm, url := startChatServer(t, f)
	conn := dialChat(t, ctx, url)

	resp := roundTrip(t, ctx, conn, map[string]any{"type": 0, "token": "good-token", "noteId": "n1"})
	require.True(t, resp.Success)
	require.Equal(t, 1, sm.Count())

	require.NoError(t, wsjson.Write(ctx, conn, map[string]any{"type": 1, "message": "long question"}))
	require.Eventually(t, func() bool { return f.backend.CallCount("RunAndWait") == 1 }, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, "bye"))

	// The run never unblocks on its own; the session can only end through cancellation.
	require.Eventually(t, func() bool { return sm.Count() == 0 }, 5*time.Second, 10*time.Millisecond)
	assert.Zero(t, f.backend.CallCount("ListMessages"))
}

func TestWebSocketRejectsOversizedFrames(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	f := newRelayFixture(t, RelayConfig{})
	sm := NewSessionManager()
	h := NewWebSocketHandler(f.relay, sm, WebSocketConfig{OriginPatterns: []string{"*"}, MaxFrameBytes: 64}, nil)
	srv := httptest.NewServer(h)
	defer srv.Close()

	conn := dialChat(t, ctx, "ws"+strings.TrimPrefix(srv.URL, "http"))
	require.NoError(t, wsjson.Write(ctx, conn, map[string]any{"type": 1, "message": strings.Repeat("x", 256)}))

	var resp wireFrame
	err := wsjson.Read(ctx, conn, &resp)
	require.Error(t, err)
	assert.Equal(t, websocket.StatusMessageTooBig, websocket.CloseStatus(err))
	assert.Empty(t, f.backend.Calls())
}
