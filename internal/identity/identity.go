// Package identity resolves opaque client tokens into user identities.
package identity

import (
	"context"
	"errors"

	"github.com/ashureev/notechat/internal/domain"
)

// Token errors.
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrMissingClaim = errors.New("missing required claim")
	ErrNoIdentity   = errors.New("token resolved to no user")
)

// Verifier resolves a bearer token into the identity it was issued for.
type Verifier interface {
	Verify(ctx context.Context, token string) (*domain.Identity, error)
}

type contextKey int

const identityKey contextKey = iota

// WithIdentity returns a copy of ctx carrying the authenticated identity.
func WithIdentity(ctx context.Context, id *domain.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// FromContext extracts the authenticated identity, or nil.
func FromContext(ctx context.Context) *domain.Identity {
	if v, ok := ctx.Value(identityKey).(*domain.Identity); ok {
		return v
	}
	return nil
}

// UserIDFromContext extracts the authenticated user id, or "".
func UserIDFromContext(ctx context.Context) string {
	if id := FromContext(ctx); id != nil {
		return id.ID
	}
	return ""
}
