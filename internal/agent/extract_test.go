package agent

import (
	"testing"
	"time"

	"github.com/ashureev/notechat/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestExtractText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		msg  ThreadMessage
		want string
	}{
		{
			name: "first block text",
			msg:  ThreadMessage{Content: []ContentBlock{{Type: ContentTypeText, Text: "V"}}},
			want: "V",
		},
		{
			name: "first block image file",
			msg: ThreadMessage{Content: []ContentBlock{
				{Type: ContentTypeImageFile},
				{Type: ContentTypeText, Text: "ignored"},
			}},
			want: "",
		},
		{
			name: "first block image url",
			msg:  ThreadMessage{Content: []ContentBlock{{Type: ContentTypeImageURL}}},
			want: "",
		},
		{
			name: "only first of several text blocks",
			msg: ThreadMessage{Content: []ContentBlock{
				{Type: ContentTypeText, Text: "first"},
				{Type: ContentTypeText, Text: "second"},
			}},
			want: "first",
		},
		{
			name: "no content",
			msg:  ThreadMessage{},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractText(tt.msg))
		})
	}
}

func TestToChatMessagesKeepsOrder(t *testing.T) {
	t.Parallel()

	created := time.Unix(1700000000, 0)
	msgs := []ThreadMessage{
		{ID: "m1", Role: domain.RoleUser, Content: []ContentBlock{{Type: ContentTypeText, Text: "question"}}, CreatedAt: created},
		{ID: "m2", Role: domain.RoleAssistant, Content: []ContentBlock{{Type: ContentTypeImageFile}}},
		{ID: "m3", Role: domain.RoleAssistant, Content: []ContentBlock{{Type: ContentTypeText, Text: "answer"}}},
	}

	got := ToChatMessages(msgs)
	assert.Equal(t, []domain.ChatMessage{
		{Role: domain.RoleUser, Text: "question", CreatedAt: created},
		{Role: domain.RoleAssistant, Text: ""},
		{Role: domain.RoleAssistant, Text: "answer"},
	}, got)
}

func TestToChatMessagesEmpty(t *testing.T) {
	t.Parallel()

	got := ToChatMessages(nil)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}
