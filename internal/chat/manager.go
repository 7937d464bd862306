package chat

import (
	"log/slog"
	"sync"

	"github.com/coder/websocket"
)

// Closer is the part of a websocket connection the registry needs.
type Closer interface {
	Close(code websocket.StatusCode, reason string) error
}

type registered struct {
	session *Session
	conn    Closer
}

// SessionManager tracks live chat sessions keyed by session id.
type SessionManager struct {
	mu     sync.RWMutex
	active map[string]registered
}

// NewSessionManager creates a new session manager.
func NewSessionManager() *SessionManager {
	return &SessionManager{
		active: make(map[string]registered),
	}
}

// Register adds a session and its connection.
func (m *SessionManager) Register(sess *Session, conn Closer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active[sess.ID] = registered{session: sess, conn: conn}
	slog.Info("Chat session registered", "session_id", sess.ID, "remote_addr", sess.RemoteAddr)
}

// Unregister removes a session. Unknown ids are ignored.
func (m *SessionManager) Unregister(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.active[sessionID]; ok {
		delete(m.active, sessionID)
		slog.Info("Chat session unregistered", "session_id", sessionID)
	}
}

// Get returns the session with the given id, or nil.
func (m *SessionManager) Get(sessionID string) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active[sessionID].session
}

// Count returns the number of live sessions.
func (m *SessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.active)
}

// CloseAll closes every registered connection with StatusGoingAway.
// Sessions unregister themselves once their handlers return.
func (m *SessionManager) CloseAll(reason string) {
	m.mu.RLock()
	conns := make([]registered, 0, len(m.active))
	for _, r := range m.active {
		conns = append(conns, r)
	}
	m.mu.RUnlock()

	for _, r := range conns {
		if r.conn == nil {
			continue
		}
		if err := r.conn.Close(websocket.StatusGoingAway, reason); err != nil {
			slog.Debug("Failed to close chat session", "session_id", r.session.ID, "error", err)
		}
	}
}
