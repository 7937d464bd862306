package domain

import "time"

// Chat roles used in thread transcripts.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is a single transcript entry relayed to the client.
type ChatMessage struct {
	Role      string
	Text      string
	CreatedAt time.Time
}
