// Package service implements the CRUD operations behind the REST API.
// Everything here is thin delegation to the record store with ownership
// checks; the streaming chat path lives in internal/chat.
package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/aaelfe/me-machine/internal/store"
)

// Service mediates between HTTP handlers and the record store.
type Service struct {
	store store.Store
	log   *zap.Logger
}

// New creates a service.
func New(st store.Store, log *zap.Logger) *Service {
	return &Service{store: st, log: log}
}

// StoreHealthy reports whether the record store is reachable.
func (s *Service) StoreHealthy(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("record store unreachable: %w", err)
	}
	return nil
}
