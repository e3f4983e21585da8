package store

import (
	"context"
	"fmt"
	"strconv"

	"github.com/supabase-community/postgrest-go"
	"github.com/supabase-community/supabase-go"

	"github.com/aaelfe/me-machine/internal/domain"
)

// Supabase implements Store against the hosted Postgres through
// postgrest. Table names and filters mirror the production schema:
// profiles, conversations, messages, voice_clones, daily_check_ins.
type Supabase struct {
	client *supabase.Client
}

// NewSupabase creates a Supabase-backed store.
func NewSupabase(url, apiKey string) (*Supabase, error) {
	if url == "" || apiKey == "" {
		return nil, fmt.Errorf("store: supabase URL and API key are required")
	}
	client, err := supabase.NewClient(url, apiKey, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}
	return &Supabase{client: client}, nil
}

func (s *Supabase) Close() error { return nil }

func (s *Supabase) Ping(ctx context.Context) error {
	var rows []domain.Profile
	_, err := s.client.From("profiles").
		Select("id", "exact", false).
		Limit(1, "").
		ExecuteTo(&rows)
	if err != nil {
		return fmt.Errorf("supabase ping failed: %w", err)
	}
	return nil
}

func (s *Supabase) CreateProfile(ctx context.Context, profile *domain.Profile) error {
	row := map[string]any{"id": profile.ID, "email": profile.Email}
	if profile.Preferences != nil {
		row["preferences"] = profile.Preferences
	}
	var rows []domain.Profile
	_, err := s.client.From("profiles").
		Insert(row, false, "", "representation", "").
		ExecuteTo(&rows)
	if err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}
	if len(rows) > 0 {
		*profile = rows[0]
	}
	return nil
}

func (s *Supabase) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	var rows []domain.Profile
	_, err := s.client.From("profiles").
		Select("*", "", false).
		Eq("id", userID).
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	if len(rows) == 0 {
		return nil, domain.ErrNotFound
	}
	return &rows[0], nil
}

func (s *Supabase) CreateConversation(ctx context.Context, userID string) (*domain.Conversation, error) {
	var rows []domain.Conversation
	_, err := s.client.From("conversations").
		Insert(map[string]any{"user_id": userID}, false, "", "representation", "").
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("failed to create conversation: no row returned")
	}
	return &rows[0], nil
}

func (s *Supabase) GetConversation(ctx context.Context, id int64, userID string) (*domain.Conversation, error) {
	var rows []domain.Conversation
	_, err := s.client.From("conversations").
		Select("*", "", false).
		Eq("id", strconv.FormatInt(id, 10)).
		Eq("user_id", userID).
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	if len(rows) == 0 {
		return nil, domain.ErrNotFound
	}
	return &rows[0], nil
}

func (s *Supabase) ListConversations(ctx context.Context, userID string, limit int) ([]domain.Conversation, error) {
	var rows []domain.Conversation
	_, err := s.client.From("conversations").
		Select("*", "", false).
		Eq("user_id", userID).
		Order("created_at", &postgrest.OrderOpts{Ascending: false}).
		Limit(limit, "").
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	return rows, nil
}

func (s *Supabase) DeleteConversation(ctx context.Context, id int64, userID string) error {
	// Messages go with the conversation via the FK cascade.
	var rows []domain.Conversation
	_, err := s.client.From("conversations").
		Delete("representation", "").
		Eq("id", strconv.FormatInt(id, 10)).
		Eq("user_id", userID).
		ExecuteTo(&rows)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	if len(rows) == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Supabase) ListMessages(ctx context.Context, conversationID int64) ([]domain.Message, error) {
	var rows []domain.Message
	_, err := s.client.From("messages").
		Select("*", "", false).
		Eq("conversation_id", strconv.FormatInt(conversationID, 10)).
		Order("created_at", &postgrest.OrderOpts{Ascending: true}).
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return rows, nil
}

func (s *Supabase) CountMessages(ctx context.Context, conversationID int64) (int, error) {
	var rows []struct {
		ID int64 `json:"id"`
	}
	count, err := s.client.From("messages").
		Select("id", "exact", false).
		Eq("conversation_id", strconv.FormatInt(conversationID, 10)).
		ExecuteTo(&rows)
	if err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return int(count), nil
}

func (s *Supabase) AppendMessages(ctx context.Context, conversationID int64, messages []domain.NewMessage) error {
	if len(messages) == 0 {
		return nil
	}
	batch := make([]map[string]any, 0, len(messages))
	for _, m := range messages {
		batch = append(batch, map[string]any{
			"conversation_id": conversationID,
			"role":            m.Role,
			"content":         m.Content,
		})
	}
	var rows []domain.Message
	_, err := s.client.From("messages").
		Insert(batch, false, "", "representation", "").
		ExecuteTo(&rows)
	if err != nil {
		return fmt.Errorf("failed to append messages: %w", err)
	}
	return nil
}

func (s *Supabase) CreateCheckIn(ctx context.Context, checkIn *domain.CheckIn) error {
	row := map[string]any{
		"user_id":    checkIn.UserID,
		"date":       checkIn.Date,
		"mood_score": checkIn.MoodScore,
		"notes":      checkIn.Notes,
	}
	var rows []domain.CheckIn
	_, err := s.client.From("daily_check_ins").
		Insert(row, false, "", "representation", "").
		ExecuteTo(&rows)
	if err != nil {
		return fmt.Errorf("failed to create check-in: %w", err)
	}
	if len(rows) > 0 {
		*checkIn = rows[0]
	}
	return nil
}

func (s *Supabase) ListCheckIns(ctx context.Context, userID string, limit int) ([]domain.CheckIn, error) {
	var rows []domain.CheckIn
	_, err := s.client.From("daily_check_ins").
		Select("*", "", false).
		Eq("user_id", userID).
		Order("date", &postgrest.OrderOpts{Ascending: false}).
		Limit(limit, "").
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("failed to list check-ins: %w", err)
	}
	return rows, nil
}

func (s *Supabase) CreateVoiceClone(ctx context.Context, userID, name string) (*domain.VoiceClone, error) {
	row := map[string]any{"user_id": userID, "name": name, "is_active": true}
	var rows []domain.VoiceClone
	_, err := s.client.From("voice_clones").
		Insert(row, false, "", "representation", "").
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("failed to create voice clone: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("failed to create voice clone: no row returned")
	}
	return &rows[0], nil
}

func (s *Supabase) ListVoiceClones(ctx context.Context, userID string) ([]domain.VoiceClone, error) {
	var rows []domain.VoiceClone
	_, err := s.client.From("voice_clones").
		Select("*", "", false).
		Eq("user_id", userID).
		Eq("is_active", "true").
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("failed to list voice clones: %w", err)
	}
	return rows, nil
}

func (s *Supabase) DeactivateVoiceClone(ctx context.Context, id int64, userID string) error {
	var rows []domain.VoiceClone
	_, err := s.client.From("voice_clones").
		Update(map[string]any{"is_active": false}, "representation", "").
		Eq("id", strconv.FormatInt(id, 10)).
		Eq("user_id", userID).
		ExecuteTo(&rows)
	if err != nil {
		return fmt.Errorf("failed to deactivate voice clone: %w", err)
	}
	if len(rows) == 0 {
		return domain.ErrNotFound
	}
	return nil
}

var _ Store = (*Supabase)(nil)
