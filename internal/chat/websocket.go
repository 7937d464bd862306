package chat

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

const (
	// DefaultMaxFrameBytes is the default read limit for client frames.
	DefaultMaxFrameBytes = 1 << 20

	writeTimeout = 10 * time.Second
	frameBacklog = 16
)

// WebSocketConfig configures the websocket transport.
type WebSocketConfig struct {
	// OriginPatterns are passed to websocket.Accept; empty allows same-host only.
	OriginPatterns []string
	MaxFrameBytes  int64
}

// WebSocketHandler serves chat sessions over websocket connections.
type WebSocketHandler struct {
	relay  *Relay
	sm     *SessionManager
	cfg    WebSocketConfig
	logger *slog.Logger
}

// NewWebSocketHandler creates a new websocket handler.
func NewWebSocketHandler(relay *Relay, sm *SessionManager, cfg WebSocketConfig, logger *slog.Logger) *WebSocketHandler {
	if cfg.MaxFrameBytes <= 0 {
		cfg.MaxFrameBytes = DefaultMaxFrameBytes
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocketHandler{relay: relay, sm: sm, cfg: cfg, logger: logger}
}

// ServeHTTP implements http.Handler for the websocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.cfg.OriginPatterns,
	})
	if err != nil {
		h.logger.Warn("Failed to accept WebSocket", "error", err, "remote_addr", r.RemoteAddr)
		return
	}
	ws.SetReadLimit(h.cfg.MaxFrameBytes)

	sess := NewSession(r.RemoteAddr)
	logger := h.logger.With("session_id", sess.ID)

	h.sm.Register(sess, ws)
	defer h.sm.Unregister(sess.ID)
	defer h.relay.Release(sess)
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			logger.Debug("Failed to close websocket", "error", closeErr)
		}
	}()

	// Cancelled when the client goes away, which aborts any in-flight request.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	frames := make(chan []byte, frameBacklog)
	go func() {
		defer cancel()
		defer close(frames)
		h.readLoop(ctx, ws, frames, logger)
	}()

	// Requests are handled one at a time in arrival order.
	for data := range frames {
		resp := h.relay.Handle(ctx, sess, data)
		if ctx.Err() != nil {
			break
		}
		if err := h.writeResponse(ctx, ws, resp); err != nil {
			logger.Debug("Failed to write response", "error", err)
			break
		}
	}

	logger.Info("Chat session ended", "user_id", sess.Info().UserID)
}

func (h *WebSocketHandler) readLoop(ctx context.Context, ws *websocket.Conn, frames chan<- []byte, logger *slog.Logger) {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			switch {
			case websocket.CloseStatus(err) != -1:
				logger.Debug("WebSocket closed by client", "status", websocket.CloseStatus(err))
			case errors.Is(err, context.Canceled):
			default:
				logger.Warn("WebSocket read error", "error", err)
			}
			return
		}
		select {
		case frames <- data:
		case <-ctx.Done():
			return
		}
	}
}

func (h *WebSocketHandler) writeResponse(ctx context.Context, ws *websocket.Conn, resp Response) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, ws, resp)
}
