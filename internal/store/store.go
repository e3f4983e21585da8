// Package store provides record-store access for conversations, messages,
// profiles, voice clones, and check-ins.
package store

import (
	"context"
	"fmt"

	"github.com/aaelfe/me-machine/internal/domain"
)

// Store is the record-store collaborator. It is injected everywhere it is
// consumed so tests can substitute a fake.
type Store interface {
	// Profiles
	CreateProfile(ctx context.Context, profile *domain.Profile) error
	GetProfile(ctx context.Context, userID string) (*domain.Profile, error)

	// Conversations. Ownership is part of every lookup: a conversation id
	// paired with the wrong user behaves as if the row did not exist.
	CreateConversation(ctx context.Context, userID string) (*domain.Conversation, error)
	GetConversation(ctx context.Context, id int64, userID string) (*domain.Conversation, error)
	ListConversations(ctx context.Context, userID string, limit int) ([]domain.Conversation, error)
	DeleteConversation(ctx context.Context, id int64, userID string) error

	// Messages, ordered oldest-first.
	ListMessages(ctx context.Context, conversationID int64) ([]domain.Message, error)
	CountMessages(ctx context.Context, conversationID int64) (int, error)
	AppendMessages(ctx context.Context, conversationID int64, messages []domain.NewMessage) error

	// Check-ins, most recent first.
	CreateCheckIn(ctx context.Context, checkIn *domain.CheckIn) error
	ListCheckIns(ctx context.Context, userID string, limit int) ([]domain.CheckIn, error)

	// Voice clones. Deletion is a soft delete (is_active=false).
	CreateVoiceClone(ctx context.Context, userID, name string) (*domain.VoiceClone, error)
	ListVoiceClones(ctx context.Context, userID string) ([]domain.VoiceClone, error)
	DeactivateVoiceClone(ctx context.Context, id int64, userID string) error

	// Ping verifies the backing store is reachable.
	Ping(ctx context.Context) error

	Close() error
}

// Driver names accepted by New.
const (
	DriverSQLite   = "sqlite"
	DriverSupabase = "supabase"
)

// Options carries driver-specific settings for New.
type Options struct {
	SQLitePath  string
	SupabaseURL string
	SupabaseKey string
}

// New creates a Store for the named driver.
func New(driver string, opts Options) (Store, error) {
	switch driver {
	case DriverSQLite:
		return NewSQLite(opts.SQLitePath)
	case DriverSupabase:
		return NewSupabase(opts.SupabaseURL, opts.SupabaseKey)
	default:
		return nil, fmt.Errorf("store: unknown driver %q", driver)
	}
}
