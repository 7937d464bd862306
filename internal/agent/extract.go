package agent

import (
	"github.com/ashureev/notechat/internal/domain"
)

// ExtractText returns the text of the first content block when it is a text
// block, and "" otherwise. Further blocks are ignored.
func ExtractText(msg ThreadMessage) string {
	if len(msg.Content) == 0 {
		return ""
	}
	first := msg.Content[0]
	if first.Type != ContentTypeText {
		return ""
	}
	return first.Text
}

// ToChatMessages translates thread messages into transcript entries, keeping their order.
func ToChatMessages(msgs []ThreadMessage) []domain.ChatMessage {
	out := make([]domain.ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, domain.ChatMessage{
			Role:      m.Role,
			Text:      ExtractText(m),
			CreatedAt: m.CreatedAt,
		})
	}
	return out
}
