// Package chat implements the per-connection note chat protocol: the session
// state machine, request dispatch and the websocket transport.
package chat

import (
	"sync"
	"time"

	"github.com/ashureev/notechat/internal/agent"
	"github.com/ashureev/notechat/internal/domain"
	"github.com/google/uuid"
)

// State is the login state of a session.
type State int

// Session states. MESSAGE requests are only valid in StateReady.
const (
	StateUnauthenticated State = iota
	StateReady
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// Session is the state of one client connection. Request handling holds mu for
// the whole request, so requests on a session never interleave.
type Session struct {
	ID         string
	RemoteAddr string
	CreatedAt  time.Time

	mu        sync.Mutex
	state     State
	user      *domain.Identity
	noteID    string
	assistant *agent.AssistantHandle
	thread    *agent.ThreadHandle

	// pending is an assistant created for pendingNoteID whose reference could
	// not be stored on the note yet.
	pending       *agent.AssistantHandle
	pendingNoteID string
}

// SessionInfo is a point-in-time view of a session.
type SessionInfo struct {
	ID          string
	State       State
	UserID      string
	NoteID      string
	AssistantID string
	ThreadID    string
	PendingID   string
}

// NewSession creates an unauthenticated session with a fresh id.
func NewSession(remoteAddr string) *Session {
	return &Session{
		ID:         uuid.NewString(),
		RemoteAddr: remoteAddr,
		CreatedAt:  time.Now(),
		state:      StateUnauthenticated,
	}
}

// Info returns a snapshot of the session. It blocks while a request is in flight.
func (s *Session) Info() SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	info := SessionInfo{ID: s.ID, State: s.state, NoteID: s.noteID}
	if s.user != nil {
		info.UserID = s.user.ID
	}
	if s.assistant != nil {
		info.AssistantID = s.assistant.ID
	}
	if s.thread != nil {
		info.ThreadID = s.thread.ID
	}
	if s.pending != nil {
		info.PendingID = s.pending.ID
	}
	return info
}

// The helpers below expect mu to be held.

func (s *Session) becomeReady(user *domain.Identity, noteID string, assistant *agent.AssistantHandle, thread *agent.ThreadHandle) {
	s.state = StateReady
	s.user = user
	s.noteID = noteID
	s.assistant = assistant
	s.thread = thread
}

func (s *Session) keepPending(noteID string, assistant *agent.AssistantHandle) {
	s.pending = assistant
	s.pendingNoteID = noteID
}

// takePending hands out the pending assistant if it was created for noteID.
func (s *Session) takePending(noteID string) *agent.AssistantHandle {
	if s.pending == nil || s.pendingNoteID != noteID {
		return nil
	}
	a := s.pending
	s.pending, s.pendingNoteID = nil, ""
	return a
}

func (s *Session) dropPending() *agent.AssistantHandle {
	a := s.pending
	s.pending, s.pendingNoteID = nil, ""
	return a
}
