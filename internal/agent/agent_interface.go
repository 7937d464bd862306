package agent

import "context"

// Backend defines the LLM assistant API the relay provisions and chats through.
// This interface is implemented by the OpenAI Assistants client.
type Backend interface {
	// CreateAssistant creates an assistant answering only from groundingText.
	CreateAssistant(ctx context.Context, name, groundingText, model string) (*AssistantHandle, error)

	// GetAssistant retrieves a previously created assistant by reference.
	GetAssistant(ctx context.Context, assistantID string) (*AssistantHandle, error)

	// DeleteAssistant removes an assistant that is no longer referenced.
	DeleteAssistant(ctx context.Context, assistantID string) error

	// CreateThread creates a new empty conversation thread.
	CreateThread(ctx context.Context) (*ThreadHandle, error)

	// AppendMessage adds a message with the given role to a thread.
	AppendMessage(ctx context.Context, threadID, role, text string) error

	// RunAndWait runs the assistant on the thread and blocks until the run completes.
	RunAndWait(ctx context.Context, threadID, assistantID string) error

	// ListMessages returns every message of the thread, oldest first.
	ListMessages(ctx context.Context, threadID string) ([]ThreadMessage, error)
}

// Ensure OpenAIClient implements Backend.
var _ Backend = (*OpenAIClient)(nil)
