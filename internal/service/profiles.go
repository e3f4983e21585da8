package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/aaelfe/me-machine/internal/domain"
)

// Profile fetches the user's profile row.
func (s *Service) Profile(ctx context.Context, userID string) (*domain.Profile, error) {
	return s.store.GetProfile(ctx, userID)
}

// CreateProfile creates an empty profile row keyed by the identity
// provider's user id.
func (s *Service) CreateProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	profile := &domain.Profile{
		ID:        userID,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateProfile(ctx, profile); err != nil {
		return nil, err
	}
	s.log.Info("profile created", zap.String("user_id", userID))
	return profile, nil
}
