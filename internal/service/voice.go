package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/aaelfe/me-machine/internal/domain"
)

// CreateVoiceClone registers a named voice clone for the user. The clone
// starts without a provider voice id; that is filled in once training with
// the synthesis provider completes.
func (s *Service) CreateVoiceClone(ctx context.Context, userID, name string) (*domain.VoiceClone, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.ErrInvalidInput
	}
	clone, err := s.store.CreateVoiceClone(ctx, userID, name)
	if err != nil {
		return nil, err
	}
	s.log.Info("voice clone created", zap.Int64("clone_id", clone.ID), zap.String("user_id", userID))
	return clone, nil
}

// ListVoiceClones returns the user's active voice clones.
func (s *Service) ListVoiceClones(ctx context.Context, userID string) ([]domain.VoiceClone, error) {
	return s.store.ListVoiceClones(ctx, userID)
}

// DeleteVoiceClone deactivates a clone the user owns.
func (s *Service) DeleteVoiceClone(ctx context.Context, id int64, userID string) error {
	return s.store.DeactivateVoiceClone(ctx, id, userID)
}
