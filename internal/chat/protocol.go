package chat

import (
	"encoding/json"
	"fmt"

	"github.com/ashureev/notechat/internal/domain"
)

// RequestType discriminates client frames.
type RequestType int

// Request frame types.
const (
	RequestLogin   RequestType = 0
	RequestMessage RequestType = 1
)

// ResponseType discriminates server frames.
type ResponseType int

// Response frame types.
const (
	ResponseLogin         ResponseType = 0
	ResponseMessageUpdate ResponseType = 1
	ResponseError         ResponseType = 2
)

// LoginRequest authenticates the session and binds it to a note.
type LoginRequest struct {
	Token  string
	NoteID string
}

// MessageRequest carries one user message for the note assistant.
type MessageRequest struct {
	Message string
}

type rawRequest struct {
	Type    json.RawMessage `json:"type"`
	Token   *string         `json:"token"`
	NoteID  *string         `json:"noteId"`
	Message *string         `json:"message"`
}

// DecodeRequest validates a client frame and returns *LoginRequest or *MessageRequest.
// Invalid JSON and missing fields fail with ErrMalformedRequest, unknown types with
// ErrUnrecognizedRequest.
func DecodeRequest(data []byte) (any, error) {
	var raw rawRequest
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRequest, err)
	}
	if len(raw.Type) == 0 || string(raw.Type) == "null" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformedRequest)
	}

	var typ int
	if err := json.Unmarshal(raw.Type, &typ); err != nil {
		return nil, fmt.Errorf("%w: type %s", ErrUnrecognizedRequest, raw.Type)
	}

	switch RequestType(typ) {
	case RequestLogin:
		if raw.Token == nil {
			return nil, fmt.Errorf("%w: login requires token", ErrMalformedRequest)
		}
		if raw.NoteID == nil || *raw.NoteID == "" {
			return nil, fmt.Errorf("%w: login requires noteId", ErrMalformedRequest)
		}
		return &LoginRequest{Token: *raw.Token, NoteID: *raw.NoteID}, nil
	case RequestMessage:
		if raw.Message == nil {
			return nil, fmt.Errorf("%w: message request requires message", ErrMalformedRequest)
		}
		return &MessageRequest{Message: *raw.Message}, nil
	default:
		return nil, fmt.Errorf("%w: type %d", ErrUnrecognizedRequest, typ)
	}
}

// Response is a server frame.
type Response interface {
	ResponseType() ResponseType
}

// Message is a transcript entry on the wire. Date is Unix milliseconds.
type Message struct {
	Role string `json:"role"`
	Text string `json:"text"`
	Date int64  `json:"date,omitempty"`
}

// LoginResponse acknowledges a successful LOGIN.
type LoginResponse struct {
	Type     ResponseType `json:"type"`
	Success  bool         `json:"success"`
	Messages []Message    `json:"messages,omitempty"`
}

// ResponseType implements Response.
func (LoginResponse) ResponseType() ResponseType { return ResponseLogin }

// MessageUpdateResponse carries the full current transcript.
type MessageUpdateResponse struct {
	Type     ResponseType `json:"type"`
	Messages []Message    `json:"messages"`
}

// ResponseType implements Response.
func (MessageUpdateResponse) ResponseType() ResponseType { return ResponseMessageUpdate }

// ErrorResponse reports a failed request.
type ErrorResponse struct {
	Type  ResponseType `json:"type"`
	Error string       `json:"error"`
}

// ResponseType implements Response.
func (ErrorResponse) ResponseType() ResponseType { return ResponseError }

// NewLoginResponse builds a successful login acknowledgment.
func NewLoginResponse(history []domain.ChatMessage) *LoginResponse {
	resp := &LoginResponse{Type: ResponseLogin, Success: true}
	if len(history) > 0 {
		resp.Messages = toWireMessages(history)
	}
	return resp
}

// NewMessageUpdateResponse builds a transcript update; messages is never null on the wire.
func NewMessageUpdateResponse(transcript []domain.ChatMessage) *MessageUpdateResponse {
	return &MessageUpdateResponse{Type: ResponseMessageUpdate, Messages: toWireMessages(transcript)}
}

// NewErrorResponse stringifies err into an ERROR frame.
func NewErrorResponse(err error) *ErrorResponse {
	return &ErrorResponse{Type: ResponseError, Error: err.Error()}
}

func toWireMessages(msgs []domain.ChatMessage) []Message {
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		wm := Message{Role: m.Role, Text: m.Text}
		if !m.CreatedAt.IsZero() {
			wm.Date = m.CreatedAt.UnixMilli()
		}
		out = append(out, wm)
	}
	return out
}
