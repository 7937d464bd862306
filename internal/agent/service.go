package agent

import (
	"context"
	"errors"
	"log/slog"

	"github.com/ashureev/notechat/internal/domain"
)

// Service provisions note assistants and drives conversations through a Backend.
type Service struct {
	backend Backend
	cfg     Config
}

// NewService creates a new agent service. Zero config fields fall back to defaults.
func NewService(backend Backend, cfg Config) (*Service, error) {
	if backend == nil {
		return nil, errors.New("agent backend is required")
	}
	def := DefaultConfig()
	if cfg.AssistantName == "" {
		cfg.AssistantName = def.AssistantName
	}
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.MaxGroundingChars <= 0 {
		cfg.MaxGroundingChars = def.MaxGroundingChars
	}
	return &Service{backend: backend, cfg: cfg}, nil
}

// Config returns the effective provisioning configuration.
func (s *Service) Config() Config {
	return s.cfg
}

// CreateNoteAssistant creates an assistant grounded on the note transcript,
// truncated to the configured character cap.
func (s *Service) CreateNoteAssistant(ctx context.Context, transcript string) (*AssistantHandle, error) {
	grounding := TruncateGrounding(transcript, s.cfg.MaxGroundingChars)
	return s.backend.CreateAssistant(ctx, s.cfg.AssistantName, grounding, s.cfg.Model)
}

// GetAssistant retrieves an already provisioned assistant.
func (s *Service) GetAssistant(ctx context.Context, assistantID string) (*AssistantHandle, error) {
	return s.backend.GetAssistant(ctx, assistantID)
}

// DiscardAssistant deletes an assistant nobody references. Failures are only logged.
func (s *Service) DiscardAssistant(ctx context.Context, assistantID string) {
	if err := s.backend.DeleteAssistant(ctx, assistantID); err != nil {
		slog.Warn("failed to delete redundant assistant", "assistant_id", assistantID, "error", err)
	}
}

// StartThread creates a fresh conversation thread.
func (s *Service) StartThread(ctx context.Context) (*ThreadHandle, error) {
	return s.backend.CreateThread(ctx)
}

// PostUserMessage appends a user message to the thread.
func (s *Service) PostUserMessage(ctx context.Context, threadID, text string) error {
	return s.backend.AppendMessage(ctx, threadID, domain.RoleUser, text)
}

// Run processes the thread with the assistant and waits for completion.
func (s *Service) Run(ctx context.Context, threadID, assistantID string) error {
	return s.backend.RunAndWait(ctx, threadID, assistantID)
}

// Transcript returns the full thread as chat messages, in listing order.
func (s *Service) Transcript(ctx context.Context, threadID string) ([]domain.ChatMessage, error) {
	msgs, err := s.backend.ListMessages(ctx, threadID)
	if err != nil {
		return nil, err
	}
	return ToChatMessages(msgs), nil
}
