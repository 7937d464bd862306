// Package agent implements the document-grounded assistant the chat relay talks to.
package agent

import (
	"time"
)

// AssistantHandle references an assistant managed by the LLM backend.
type AssistantHandle struct {
	ID    string
	Name  string
	Model string
}

// ThreadHandle references a conversation thread managed by the LLM backend.
type ThreadHandle struct {
	ID string
}

// Content block kinds.
const (
	ContentTypeText      = "text"
	ContentTypeImageFile = "image_file"
	ContentTypeImageURL  = "image_url"
)

// ContentBlock is one block of a thread message. Text is only set for text blocks.
type ContentBlock struct {
	Type string
	Text string
}

// ThreadMessage is a message as listed from a thread.
type ThreadMessage struct {
	ID        string
	Role      string
	Content   []ContentBlock
	CreatedAt time.Time
}

// Config holds assistant provisioning configuration.
type Config struct {
	AssistantName     string
	Model             string
	MaxGroundingChars int
}

// Defaults for assistant provisioning.
const (
	DefaultAssistantName     = "Note Assistant"
	DefaultModel             = "gpt-4o-mini"
	DefaultMaxGroundingChars = 250000
)

// DefaultConfig returns default provisioning configuration.
func DefaultConfig() Config {
	return Config{
		AssistantName:     DefaultAssistantName,
		Model:             DefaultModel,
		MaxGroundingChars: DefaultMaxGroundingChars,
	}
}
