package chat

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/ashureev/notechat/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRequest(t *testing.T) {
	tests := []struct {
		name    string
		frame   string
		want    any
		wantErr error
	}{
		{name: "login", frame: `{"type":0,"token":"t","noteId":"n1"}`, want: &LoginRequest{Token: "t", NoteID: "n1"}},
		{name: "login with extra fields", frame: `{"type":0,"token":"t","noteId":"n1","x":true}`, want: &LoginRequest{Token: "t", NoteID: "n1"}},
		{name: "empty token reaches verifier", frame: `{"type":0,"token":"","noteId":"n1"}`, want: &LoginRequest{NoteID: "n1"}},
		{name: "message", frame: `{"type":1,"message":"hi"}`, want: &MessageRequest{Message: "hi"}},
		{name: "empty message decodes", frame: `{"type":1,"message":""}`, want: &MessageRequest{}},
		{name: "invalid json", frame: `{"type":`, wantErr: ErrMalformedRequest},
		{name: "missing type", frame: `{"message":"hi"}`, wantErr: ErrMalformedRequest},
		{name: "null type", frame: `{"type":null}`, wantErr: ErrMalformedRequest},
		{name: "login missing noteId", frame: `{"type":0,"token":"t"}`, wantErr: ErrMalformedRequest},
		{name: "login empty noteId", frame: `{"type":0,"token":"t","noteId":""}`, wantErr: ErrMalformedRequest},
		{name: "login token wrong kind", frame: `{"type":0,"token":5,"noteId":"n1"}`, wantErr: ErrMalformedRequest},
		{name: "message missing text", frame: `{"type":1}`, wantErr: ErrMalformedRequest},
		{name: "unknown numeric type", frame: `{"type":2}`, wantErr: ErrUnrecognizedRequest},
		{name: "string type", frame: `{"type":"MESSAGE"}`, wantErr: ErrUnrecognizedRequest},
		{name: "fractional type", frame: `{"type":0.5}`, wantErr: ErrUnrecognizedRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeRequest([]byte(tt.frame))
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResponseWireFormat(t *testing.T) {
	created := time.UnixMilli(1700000000123)

	tests := []struct {
		name string
		resp Response
		want string
	}{
		{
			name: "login without history",
			resp: NewLoginResponse(nil),
			want: `{"type":0,"success":true}`,
		},
		{
			name: "login with history",
			resp: NewLoginResponse([]domain.ChatMessage{{Role: "user", Text: "hi", CreatedAt: created}}),
			want: `{"type":0,"success":true,"messages":[{"role":"user","text":"hi","date":1700000000123}]}`,
		},
		{
			name: "message update",
			resp: NewMessageUpdateResponse([]domain.ChatMessage{
				{Role: "user", Text: "q", CreatedAt: created},
				{Role: "assistant", Text: ""},
			}),
			want: `{"type":1,"messages":[{"role":"user","text":"q","date":1700000000123},{"role":"assistant","text":""}]}`,
		},
		{
			name: "empty message update keeps array",
			resp: NewMessageUpdateResponse(nil),
			want: `{"type":1,"messages":[]}`,
		},
		{
			name: "error",
			resp: NewErrorResponse(ErrNoteNotFound),
			want: `{"type":2,"error":"note not found"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.resp)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(data))
		})
	}
}

func TestResponseTypes(t *testing.T) {
	assert.Equal(t, ResponseLogin, NewLoginResponse(nil).ResponseType())
	assert.Equal(t, ResponseMessageUpdate, NewMessageUpdateResponse(nil).ResponseType())
	assert.Equal(t, ResponseError, NewErrorResponse(errors.New("x")).ResponseType())
}
