package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/ashureev/notechat/internal/identity"
	openai "github.com/sashabaranov/go-openai"
)

var (
	errMissingAPIKey = errors.New("openai api key is required")

	// ErrRunFailed is returned by RunAndWait when a run ends in any state but completed.
	ErrRunFailed = errors.New("assistant run did not complete")
)

const (
	// DefaultPollInterval is how often a pending run is re-checked.
	DefaultPollInterval = 100 * time.Millisecond

	listPageSize    = 100
	cancelRunBudget = 5 * time.Second
)

// OpenAIConfig holds configuration for the OpenAI Assistants client.
type OpenAIConfig struct {
	APIKey       string
	BaseURL      string
	PollInterval time.Duration
}

// OpenAIClient implements Backend with the OpenAI Assistants API.
type OpenAIClient struct {
	client       *openai.Client
	pollInterval time.Duration
	logger       *slog.Logger
}

// NewOpenAIClient creates a new Assistants API client.
func NewOpenAIClient(cfg OpenAIConfig, logger *slog.Logger) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, errMissingAPIKey
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAIClient{
		client:       openai.NewClientWithConfig(clientCfg),
		pollInterval: cfg.PollInterval,
		logger:       logger,
	}, nil
}

// CreateAssistant creates an assistant whose instructions embed groundingText.
func (c *OpenAIClient) CreateAssistant(ctx context.Context, name, groundingText, model string) (*AssistantHandle, error) {
	instructions := groundingInstructions(groundingText)
	a, err := c.client.CreateAssistant(ctx, openai.AssistantRequest{
		Model:        model,
		Name:         &name,
		Instructions: &instructions,
	})
	if err != nil {
		return nil, fmt.Errorf("create assistant: %w", err)
	}

	c.logger.Info("Assistant created",
		"assistant_id", a.ID,
		"model", a.Model,
		"grounding_chars", utf8.RuneCountInString(groundingText),
		"user_id", identity.UserIDFromContext(ctx),
	)
	return toAssistantHandle(a), nil
}

// GetAssistant retrieves an assistant by id.
func (c *OpenAIClient) GetAssistant(ctx context.Context, assistantID string) (*AssistantHandle, error) {
	a, err := c.client.RetrieveAssistant(ctx, assistantID)
	if err != nil {
		return nil, fmt.Errorf("retrieve assistant %s: %w", assistantID, err)
	}
	return toAssistantHandle(a), nil
}

// DeleteAssistant deletes an assistant by id.
func (c *OpenAIClient) DeleteAssistant(ctx context.Context, assistantID string) error {
	if _, err := c.client.DeleteAssistant(ctx, assistantID); err != nil {
		return fmt.Errorf("delete assistant %s: %w", assistantID, err)
	}
	return nil
}

// CreateThread creates an empty thread.
func (c *OpenAIClient) CreateThread(ctx context.Context) (*ThreadHandle, error) {
	t, err := c.client.CreateThread(ctx, openai.ThreadRequest{})
	if err != nil {
		return nil, fmt.Errorf("create thread: %w", err)
	}
	return &ThreadHandle{ID: t.ID}, nil
}

// AppendMessage adds a message to a thread.
func (c *OpenAIClient) AppendMessage(ctx context.Context, threadID, role, text string) error {
	_, err := c.client.CreateMessage(ctx, threadID, openai.MessageRequest{
		Role:    role,
		Content: text,
	})
	if err != nil {
		return fmt.Errorf("append message to thread %s: %w", threadID, err)
	}
	return nil
}

// RunAndWait starts a run and polls it until it reaches a terminal state.
// Cancelling ctx stops polling and asks the backend to cancel the run.
func (c *OpenAIClient) RunAndWait(ctx context.Context, threadID, assistantID string) error {
	run, err := c.client.CreateRun(ctx, threadID, openai.RunRequest{AssistantID: assistantID})
	if err != nil {
		return fmt.Errorf("create run on thread %s: %w", threadID, err)
	}

	started := time.Now()
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		switch run.Status {
		case openai.RunStatusCompleted:
			c.logger.Debug("Run completed", "thread_id", threadID, "run_id", run.ID, "elapsed", time.Since(started))
			return nil
		case openai.RunStatusQueued, openai.RunStatusInProgress, openai.RunStatusCancelling:
		default:
			return fmt.Errorf("%w: run %s ended with status %q", ErrRunFailed, run.ID, run.Status)
		}

		select {
		case <-ctx.Done():
			c.cancelRun(threadID, run.ID)
			return ctx.Err()
		case <-ticker.C:
		}

		next, err := c.client.RetrieveRun(ctx, threadID, run.ID)
		if err != nil {
			if ctx.Err() != nil {
				c.cancelRun(threadID, run.ID)
				return ctx.Err()
			}
			return fmt.Errorf("retrieve run %s on thread %s: %w", run.ID, threadID, err)
		}
		run = next
	}
}

// cancelRun is best effort; the caller's context is already done.
func (c *OpenAIClient) cancelRun(threadID, runID string) {
	if runID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), cancelRunBudget)
	defer cancel()
	if _, err := c.client.CancelRun(ctx, threadID, runID); err != nil {
		c.logger.Debug("Failed to cancel abandoned run", "thread_id", threadID, "run_id", runID, "error", err)
	}
}

// ListMessages pages through the thread in ascending order.
func (c *OpenAIClient) ListMessages(ctx context.Context, threadID string) ([]ThreadMessage, error) {
	limit := listPageSize
	order := "asc"
	var after *string

	var out []ThreadMessage
	for {
		page, err := c.client.ListMessage(ctx, threadID, &limit, &order, after, nil, nil)
		if err != nil {
			return nil, fmt.Errorf("list messages of thread %s: %w", threadID, err)
		}
		for _, m := range page.Messages {
			out = append(out, toThreadMessage(m))
		}
		if !page.HasMore || page.LastID == nil || len(page.Messages) == 0 {
			return out, nil
		}
		after = page.LastID
	}
}

func toAssistantHandle(a openai.Assistant) *AssistantHandle {
	h := &AssistantHandle{ID: a.ID, Model: a.Model}
	if a.Name != nil {
		h.Name = *a.Name
	}
	return h
}

func toThreadMessage(m openai.Message) ThreadMessage {
	blocks := make([]ContentBlock, 0, len(m.Content))
	for _, c := range m.Content {
		block := ContentBlock{Type: c.Type}
		if c.Text != nil {
			block.Text = c.Text.Value
		}
		blocks = append(blocks, block)
	}
	return ThreadMessage{
		ID:        m.ID,
		Role:      m.Role,
		Content:   blocks,
		CreatedAt: time.Unix(int64(m.CreatedAt), 0),
	}
}
