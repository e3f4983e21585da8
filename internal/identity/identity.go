// Package identity wraps the identity provider: credential issuance and
// token-to-user resolution.
package identity

import (
	"context"
	"fmt"
	"strings"

	"github.com/supabase-community/gotrue-go"
	"github.com/supabase-community/gotrue-go/types"

	"github.com/aaelfe/me-machine/internal/domain"
)

// Session is an issued credential pair bound to a user.
type Session struct {
	UserID       string `json:"user_id"`
	Email        string `json:"email,omitempty"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Exchanger resolves a bearer token to a user id. This is the only
// identity capability the streaming session needs.
type Exchanger interface {
	Exchange(ctx context.Context, token string) (string, error)
}

// Identity is the full identity collaborator: issuance plus resolution.
type Identity interface {
	Exchanger
	SignUp(ctx context.Context, email, password string) (*Session, error)
	SignIn(ctx context.Context, email, password string) (*Session, error)
	Refresh(ctx context.Context, refreshToken string) (*Session, error)
	SignOut(ctx context.Context, token string) error
}

// Supabase implements Identity against the gotrue auth API.
type Supabase struct {
	auth gotrue.Client
}

// NewSupabase creates a gotrue-backed identity service.
func NewSupabase(url, apiKey string) (*Supabase, error) {
	if url == "" || apiKey == "" {
		return nil, fmt.Errorf("identity: supabase URL and API key are required")
	}
	client := gotrue.New("memachine", apiKey).
		WithCustomGoTrueURL(strings.TrimSuffix(url, "/") + "/auth/v1")
	return &Supabase{auth: client}, nil
}

func (s *Supabase) SignUp(ctx context.Context, email, password string) (*Session, error) {
	if _, err := s.auth.Signup(types.SignupRequest{Email: email, Password: password}); err != nil {
		return nil, fmt.Errorf("signup failed: %w", err)
	}
	// Issue tokens through the password grant so signup and login return
	// the same session shape.
	return s.SignIn(ctx, email, password)
}

func (s *Supabase) SignIn(ctx context.Context, email, password string) (*Session, error) {
	resp, err := s.auth.Token(types.TokenRequest{
		GrantType: "password",
		Email:     email,
		Password:  password,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	return sessionFromToken(resp), nil
}

func (s *Supabase) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	resp, err := s.auth.RefreshToken(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	return sessionFromToken(resp), nil
}

func (s *Supabase) SignOut(ctx context.Context, token string) error {
	if err := s.auth.WithToken(token).Logout(); err != nil {
		return fmt.Errorf("logout failed: %w", err)
	}
	return nil
}

// Exchange resolves a bearer token to the provider's user id.
func (s *Supabase) Exchange(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", domain.ErrUnauthorized
	}
	user, err := s.auth.WithToken(token).GetUser()
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	return user.ID.String(), nil
}

func sessionFromToken(resp *types.TokenResponse) *Session {
	return &Session{
		UserID:       resp.User.ID.String(),
		Email:        resp.User.Email,
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
	}
}

var _ Identity = (*Supabase)(nil)
