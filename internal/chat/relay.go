package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/ashureev/notechat/internal/agent"
	"github.com/ashureev/notechat/internal/domain"
	"github.com/ashureev/notechat/internal/identity"
	"github.com/ashureev/notechat/internal/store"
)

const releaseBudget = 10 * time.Second

var errInternal = errors.New("internal error")

// RelayConfig holds optional relay behavior.
type RelayConfig struct {
	// EnforceNoteOwner rejects LOGIN for notes owned by another user.
	EnforceNoteOwner bool
	// Limiter throttles MESSAGE requests per user; nil disables throttling.
	Limiter *RateLimiter
	// ConversationLog receives login, message and reply events; nil disables it.
	ConversationLog agent.ConversationLogger
}

// Relay dispatches client requests for a session to the auth, note and assistant collaborators.
type Relay struct {
	verifier identity.Verifier
	notes    store.NoteRepository
	agents   *agent.Service
	cfg      RelayConfig
	logger   *slog.Logger
}

// NewRelay creates a new relay.
func NewRelay(verifier identity.Verifier, notes store.NoteRepository, agents *agent.Service, cfg RelayConfig, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ConversationLog == nil {
		cfg.ConversationLog = agent.NoopConversationLogger{}
	}
	return &Relay{
		verifier: verifier,
		notes:    notes,
		agents:   agents,
		cfg:      cfg,
		logger:   logger,
	}
}

// Handle processes one raw client frame and returns exactly one response.
// Failures, including panics, become ERROR responses; the session stays usable.
func (r *Relay) Handle(ctx context.Context, sess *Session, data []byte) (resp Response) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("Panic while handling chat request",
				"session_id", sess.ID,
				"panic", p,
				"stack", string(debug.Stack()))
			resp = NewErrorResponse(errInternal)
		}
	}()

	req, err := DecodeRequest(data)
	if err != nil {
		return r.fail(sess, err)
	}

	switch req := req.(type) {
	case *LoginRequest:
		resp, err = r.login(ctx, sess, req)
	case *MessageRequest:
		resp, err = r.message(ctx, sess, req)
	default:
		err = fmt.Errorf("%w: %T", ErrUnrecognizedRequest, req)
	}
	if err != nil {
		return r.fail(sess, err)
	}
	return resp
}

// Release discards an assistant the session created but never managed to store.
// Call it once the connection is gone.
func (r *Relay) Release(sess *Session) {
	sess.mu.Lock()
	pending := sess.dropPending()
	sess.mu.Unlock()

	if pending == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), releaseBudget)
	defer cancel()
	r.agents.DiscardAssistant(ctx, pending.ID)
	r.logger.Info("Discarded unsaved assistant", "session_id", sess.ID, "assistant_id", pending.ID)
}

func (r *Relay) fail(sess *Session, err error) Response {
	attrs := []any{"session_id", sess.ID, "state", sess.state.String(), "error", err}
	if sess.user != nil {
		attrs = append(attrs, "user_id", sess.user.ID)
	}
	switch {
	case errors.Is(err, ErrProtocolState),
		errors.Is(err, ErrMalformedRequest),
		errors.Is(err, ErrUnrecognizedRequest),
		errors.Is(err, ErrRateLimited),
		errors.Is(err, ErrAuthentication),
		errors.Is(err, ErrNoteNotFound):
		r.logger.Info("Chat request rejected", attrs...)
	default:
		r.logger.Warn("Chat request failed", attrs...)
	}
	return NewErrorResponse(err)
}

func (r *Relay) login(ctx context.Context, sess *Session, req *LoginRequest) (Response, error) {
	if sess.state == StateReady {
		return nil, fmt.Errorf("%w: already logged in", ErrProtocolState)
	}

	user, err := r.verifier.Verify(ctx, req.Token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAuthentication, err)
	}
	if user.IsZero() {
		return nil, fmt.Errorf("%w: token resolved to no user", ErrAuthentication)
	}
	ctx = identity.WithIdentity(ctx, user)

	note, err := r.notes.GetNote(ctx, req.NoteID)
	if err != nil {
		return nil, fmt.Errorf("load note %s: %w", req.NoteID, err)
	}
	if note == nil || (r.cfg.EnforceNoteOwner && !note.OwnedBy(user.ID)) {
		return nil, fmt.Errorf("%w: %s", ErrNoteNotFound, req.NoteID)
	}

	assistant, err := r.resolveAssistant(ctx, sess, note)
	if err != nil {
		return nil, err
	}

	thread, err := r.agents.StartThread(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrThreadCreation, err)
	}

	sess.becomeReady(user, note.ID, assistant, thread)
	r.logger.Info("Chat session ready",
		"session_id", sess.ID,
		"user_id", user.ID,
		"note_id", note.ID,
		"assistant_id", assistant.ID,
		"thread_id", thread.ID)
	r.cfg.ConversationLog.Log(agent.ConversationLogEvent{
		UserID:       user.ID,
		NoteID:       note.ID,
		ConnectionID: sess.ID,
		Direction:    "inbound",
		EventType:    "login",
		Meta:         map[string]any{"assistant_id": assistant.ID, "thread_id": thread.ID},
	})

	// Each login starts a fresh thread, so there is no history to replay.
	return NewLoginResponse(nil), nil
}

// resolveAssistant returns the note's assistant, provisioning and storing one if
// the note has none yet.
func (r *Relay) resolveAssistant(ctx context.Context, sess *Session, note *domain.Note) (*agent.AssistantHandle, error) {
	if note.HasAssistant() {
		if stale := sess.takePending(note.ID); stale != nil {
			r.agents.DiscardAssistant(ctx, stale.ID)
		}
		a, err := r.agents.GetAssistant(ctx, note.AssistantID)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrAssistantResolution, err)
		}
		return a, nil
	}

	a := sess.takePending(note.ID)
	if a == nil {
		var err error
		a, err = r.agents.CreateNoteAssistant(ctx, note.Transcript)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrAssistantResolution, err)
		}
	}

	err := r.notes.SetAssistantID(ctx, note.ID, a.ID, "")
	switch {
	case err == nil:
		r.logger.Info("Assistant provisioned for note", "note_id", note.ID, "assistant_id", a.ID)
		return a, nil
	case errors.Is(err, store.ErrConflict):
		return r.adoptWinner(ctx, sess, note.ID, a)
	case errors.Is(err, store.ErrNotFound):
		r.agents.DiscardAssistant(ctx, a.ID)
		return nil, fmt.Errorf("%w: %s", ErrNoteNotFound, note.ID)
	default:
		r.keepPending(ctx, sess, note.ID, a)
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
}

// adoptWinner handles a lost compare-and-set: another session stored its assistant
// first, so ours is deleted and the stored one is used instead. If the note turns
// out to have no assistant after all, ours stays pending like any failed write.
func (r *Relay) adoptWinner(ctx context.Context, sess *Session, noteID string, ours *agent.AssistantHandle) (*agent.AssistantHandle, error) {
	note, err := r.notes.GetNote(ctx, noteID)
	if err != nil {
		r.keepPending(ctx, sess, noteID, ours)
		return nil, fmt.Errorf("%w: reload note %s: %w", ErrPersistence, noteID, err)
	}
	if note == nil {
		r.agents.DiscardAssistant(ctx, ours.ID)
		return nil, fmt.Errorf("%w: %s", ErrNoteNotFound, noteID)
	}
	if !note.HasAssistant() {
		r.keepPending(ctx, sess, noteID, ours)
		return nil, fmt.Errorf("%w: assistant reference of note %s was not stored", ErrPersistence, noteID)
	}
	r.agents.DiscardAssistant(ctx, ours.ID)

	winner, err := r.agents.GetAssistant(ctx, note.AssistantID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAssistantResolution, err)
	}
	r.logger.Info("Adopted concurrently provisioned assistant",
		"note_id", noteID,
		"assistant_id", winner.ID,
		"discarded_id", ours.ID)
	return winner, nil
}

// keepPending parks an unsaved assistant on the session, discarding one left
// over from a login for another note.
func (r *Relay) keepPending(ctx context.Context, sess *Session, noteID string, a *agent.AssistantHandle) {
	if old := sess.dropPending(); old != nil && old.ID != a.ID {
		r.agents.DiscardAssistant(ctx, old.ID)
	}
	sess.keepPending(noteID, a)
}

func (r *Relay) message(ctx context.Context, sess *Session, req *MessageRequest) (Response, error) {
	switch {
	case sess.state != StateReady || sess.user == nil:
		return nil, fmt.Errorf("%w: not yet logged in", ErrProtocolState)
	case sess.assistant == nil:
		return nil, fmt.Errorf("%w: assistant not set up", ErrProtocolState)
	case sess.thread == nil:
		return nil, fmt.Errorf("%w: thread not set up", ErrProtocolState)
	}
	if req.Message == "" {
		return nil, fmt.Errorf("%w: message must not be empty", ErrMalformedRequest)
	}
	if !r.cfg.Limiter.Allow(sess.user.ID) {
		return nil, ErrRateLimited
	}

	ctx = identity.WithIdentity(ctx, sess.user)
	threadID := sess.thread.ID

	r.cfg.ConversationLog.Log(agent.ConversationLogEvent{
		UserID:       sess.user.ID,
		NoteID:       sess.noteID,
		ConnectionID: sess.ID,
		Direction:    "inbound",
		EventType:    "user_message",
		ContentRaw:   req.Message,
	})

	// No rollback: a failed run leaves the user message on the thread.
	if err := r.agents.PostUserMessage(ctx, threadID, req.Message); err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}
	started := time.Now()
	if err := r.agents.Run(ctx, threadID, sess.assistant.ID); err != nil {
		return nil, fmt.Errorf("run assistant: %w", err)
	}
	transcript, err := r.agents.Transcript(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	r.logger.Debug("Assistant replied",
		"session_id", sess.ID,
		"user_id", sess.user.ID,
		"thread_id", threadID,
		"messages", len(transcript),
		"elapsed", time.Since(started))
	if n := len(transcript); n > 0 && transcript[n-1].Role == domain.RoleAssistant {
		r.cfg.ConversationLog.Log(agent.ConversationLogEvent{
			UserID:       sess.user.ID,
			NoteID:       sess.noteID,
			ConnectionID: sess.ID,
			Direction:    "outbound",
			EventType:    "assistant_reply",
			ContentRaw:   transcript[n-1].Text,
			Meta:         map[string]any{"elapsed_ms": time.Since(started).Milliseconds()},
		})
	}

	return NewMessageUpdateResponse(transcript), nil
}
