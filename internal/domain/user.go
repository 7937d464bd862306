// Package domain contains core domain types for the notechat relay.
package domain

// Identity is the authenticated user as reported by the auth backend.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

// IsZero reports whether the identity carries no user id.
func (i *Identity) IsZero() bool {
	return i == nil || i.ID == ""
}
