// Package agenttest provides an in-memory agent.Backend for tests.
package agenttest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ashureev/notechat/internal/agent"
	"github.com/ashureev/notechat/internal/domain"
)

// ErrUnknown is returned for references the fake does not know.
var ErrUnknown = errors.New("agenttest: unknown reference")

// Call records one Backend invocation.
type Call struct {
	Method string
	Args   []string
}

// Backend is a thread-safe in-memory agent.Backend. Error fields inject failures;
// RunBlock, when set, makes RunAndWait wait for it (or ctx) before replying.
type Backend struct {
	CreateAssistantErr error
	GetAssistantErr    error
	DeleteAssistantErr error
	CreateThreadErr    error
	AppendMessageErr   error
	RunErr             error
	ListMessagesErr    error

	RunBlock chan struct{}
	Reply    func(question string) string

	mu         sync.Mutex
	calls      []Call
	seq        int
	assistants map[string]agent.AssistantHandle
	threads    map[string][]agent.ThreadMessage
	grounding  map[string]string
}

// New returns an empty fake backend.
func New() *Backend {
	return &Backend{
		assistants: make(map[string]agent.AssistantHandle),
		threads:    make(map[string][]agent.ThreadMessage),
		grounding:  make(map[string]string),
	}
}

// AddAssistant seeds an existing assistant.
func (b *Backend) AddAssistant(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.assistants[id] = agent.AssistantHandle{ID: id, Name: agent.DefaultAssistantName, Model: agent.DefaultModel}
}

// Calls returns a copy of the recorded calls.
func (b *Backend) Calls() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Call(nil), b.calls...)
}

// CallCount returns how often method was invoked.
func (b *Backend) CallCount(method string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, c := range b.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Grounding returns the grounding text an assistant was created with.
func (b *Backend) Grounding(assistantID string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.grounding[assistantID]
}

// HasAssistant reports whether the assistant exists (was not deleted).
func (b *Backend) HasAssistant(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.assistants[id]
	return ok
}

// Thread returns a copy of a thread's messages.
func (b *Backend) Thread(id string) []agent.ThreadMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]agent.ThreadMessage(nil), b.threads[id]...)
}

func (b *Backend) record(method string, args ...string) {
	b.calls = append(b.calls, Call{Method: method, Args: args})
}

func (b *Backend) nextID(prefix string) string {
	b.seq++
	return fmt.Sprintf("%s_%d", prefix, b.seq)
}

// CreateAssistant implements agent.Backend.
func (b *Backend) CreateAssistant(_ context.Context, name, groundingText, model string) (*agent.AssistantHandle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("CreateAssistant", name, groundingText, model)
	if b.CreateAssistantErr != nil {
		return nil, b.CreateAssistantErr
	}
	h := agent.AssistantHandle{ID: b.nextID("asst"), Name: name, Model: model}
	b.assistants[h.ID] = h
	b.grounding[h.ID] = groundingText
	return &h, nil
}

// GetAssistant implements agent.Backend.
func (b *Backend) GetAssistant(_ context.Context, assistantID string) (*agent.AssistantHandle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("GetAssistant", assistantID)
	if b.GetAssistantErr != nil {
		return nil, b.GetAssistantErr
	}
	h, ok := b.assistants[assistantID]
	if !ok {
		return nil, fmt.Errorf("assistant %s: %w", assistantID, ErrUnknown)
	}
	return &h, nil
}

// DeleteAssistant implements agent.Backend.
func (b *Backend) DeleteAssistant(_ context.Context, assistantID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("DeleteAssistant", assistantID)
	if b.DeleteAssistantErr != nil {
		return b.DeleteAssistantErr
	}
	delete(b.assistants, assistantID)
	return nil
}

// CreateThread implements agent.Backend.
func (b *Backend) CreateThread(context.Context) (*agent.ThreadHandle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("CreateThread")
	if b.CreateThreadErr != nil {
		return nil, b.CreateThreadErr
	}
	id := b.nextID("thread")
	b.threads[id] = nil
	return &agent.ThreadHandle{ID: id}, nil
}

// AppendMessage implements agent.Backend.
func (b *Backend) AppendMessage(_ context.Context, threadID, role, text string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("AppendMessage", threadID, role, text)
	if b.AppendMessageErr != nil {
		return b.AppendMessageErr
	}
	if _, ok := b.threads[threadID]; !ok {
		return fmt.Errorf("thread %s: %w", threadID, ErrUnknown)
	}
	b.appendLocked(threadID, role, text)
	return nil
}

// RunAndWait implements agent.Backend. The reply answers the latest user message.
func (b *Backend) RunAndWait(ctx context.Context, threadID, assistantID string) error {
	b.mu.Lock()
	b.record("RunAndWait", threadID, assistantID)
	block := b.RunBlock
	b.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.RunErr != nil {
		return b.RunErr
	}
	if _, ok := b.assistants[assistantID]; !ok {
		return fmt.Errorf("assistant %s: %w", assistantID, ErrUnknown)
	}
	var question string
	for _, m := range b.threads[threadID] {
		if m.Role == domain.RoleUser && len(m.Content) > 0 {
			question = m.Content[0].Text
		}
	}
	reply := "You asked: " + question
	if b.Reply != nil {
		reply = b.Reply(question)
	}
	b.appendLocked(threadID, domain.RoleAssistant, reply)
	return nil
}

// ListMessages implements agent.Backend.
func (b *Backend) ListMessages(_ context.Context, threadID string) ([]agent.ThreadMessage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("ListMessages", threadID)
	if b.ListMessagesErr != nil {
		return nil, b.ListMessagesErr
	}
	msgs, ok := b.threads[threadID]
	if !ok {
		return nil, fmt.Errorf("thread %s: %w", threadID, ErrUnknown)
	}
	return append([]agent.ThreadMessage(nil), msgs...), nil
}

func (b *Backend) appendLocked(threadID, role, text string) {
	b.threads[threadID] = append(b.threads[threadID], agent.ThreadMessage{
		ID:        b.nextID("msg"),
		Role:      role,
		Content:   []agent.ContentBlock{{Type: agent.ContentTypeText, Text: text}},
		CreatedAt: time.Unix(int64(1700000000+b.seq), 0),
	})
}

var _ agent.Backend = (*Backend)(nil)
