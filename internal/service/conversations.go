package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/aaelfe/me-machine/internal/domain"
)

// CreateConversation opens a new empty conversation for the user.
func (s *Service) CreateConversation(ctx context.Context, userID string) (*domain.Conversation, error) {
	conv, err := s.store.CreateConversation(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.log.Info("conversation created", zap.Int64("conversation_id", conv.ID), zap.String("user_id", userID))
	return conv, nil
}

// ListConversations returns the user's conversations, newest first, each
// annotated with its message count.
func (s *Service) ListConversations(ctx context.Context, userID string, limit int) ([]domain.Conversation, error) {
	convs, err := s.store.ListConversations(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	for i := range convs {
		n, err := s.store.CountMessages(ctx, convs[i].ID)
		if err != nil {
			return nil, err
		}
		convs[i].MessageCount = n
	}
	return convs, nil
}

// GetConversation fetches one conversation owned by the user.
func (s *Service) GetConversation(ctx context.Context, id int64, userID string) (*domain.Conversation, error) {
	conv, err := s.store.GetConversation(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	n, err := s.store.CountMessages(ctx, conv.ID)
	if err != nil {
		return nil, err
	}
	conv.MessageCount = n
	return conv, nil
}

// ConversationMessages returns the full transcript of a conversation the
// user owns, oldest first.
func (s *Service) ConversationMessages(ctx context.Context, id int64, userID string) ([]domain.Message, error) {
	// Ownership check before reading the transcript.
	if _, err := s.store.GetConversation(ctx, id, userID); err != nil {
		return nil, err
	}
	return s.store.ListMessages(ctx, id)
}

// DeleteConversation removes a conversation and its messages.
func (s *Service) DeleteConversation(ctx context.Context, id int64, userID string) error {
	if err := s.store.DeleteConversation(ctx, id, userID); err != nil {
		return err
	}
	s.log.Info("conversation deleted", zap.Int64("conversation_id", id), zap.String("user_id", userID))
	return nil
}
