package identity

import (
	"context"
	"fmt"
	"strings"

	"github.com/ashureev/notechat/internal/domain"
	"github.com/google/uuid"
	gotrue "github.com/supabase-community/gotrue-go"
)

// SupabaseVerifier resolves tokens by asking the Supabase auth service who they belong to.
type SupabaseVerifier struct {
	client gotrue.Client
}

// NewSupabaseVerifier creates a verifier against the auth endpoint of a Supabase project.
func NewSupabaseVerifier(supabaseURL, apiKey string) *SupabaseVerifier {
	authURL := strings.TrimRight(supabaseURL, "/") + "/auth/v1"
	return newSupabaseVerifierWithURL(authURL, apiKey)
}

func newSupabaseVerifierWithURL(authURL, apiKey string) *SupabaseVerifier {
	client := gotrue.New("", apiKey).WithCustomGoTrueURL(authURL)
	return &SupabaseVerifier{client: client}
}

// Verify passes the token through to the auth service.
// The gotrue client carries no context; ctx is only checked before the call.
func (v *SupabaseVerifier) Verify(ctx context.Context, token string) (*domain.Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if token == "" {
		return nil, ErrInvalidToken
	}

	resp, err := v.client.WithToken(token).GetUser()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if resp == nil || resp.ID == uuid.Nil {
		return nil, ErrNoIdentity
	}

	return &domain.Identity{
		ID:    resp.ID.String(),
		Email: resp.Email,
		Role:  resp.Role,
	}, nil
}

var _ Verifier = (*SupabaseVerifier)(nil)
