package domain

// Note is the document record a chat session is grounded on.
// The record is owned by the backend; the relay only reads it and writes AssistantID.
type Note struct {
	ID          string `json:"noteId"`
	UserID      string `json:"userId"`
	Title       string `json:"title"`
	Transcript  string `json:"transcript"`
	AssistantID string `json:"assistantId,omitempty"`
}

// HasAssistant returns true if an assistant was already provisioned for the note.
func (n *Note) HasAssistant() bool {
	return n.AssistantID != ""
}

// OwnedBy returns true if the note belongs to the given user id.
func (n *Note) OwnedBy(userID string) bool {
	return n.UserID != "" && n.UserID == userID
}
