// Package domain defines the core data types shared across the service.
package domain

import "time"

// ContextType selects the system instruction and follow-up suggestions
// used for a chat turn.
type ContextType string

const (
	ContextCheckIn    ContextType = "check_in"
	ContextGeneral    ContextType = "general"
	ContextReflection ContextType = "reflection"
)

// Valid reports whether t is one of the known context types.
func (t ContextType) Valid() bool {
	switch t {
	case ContextCheckIn, ContextGeneral, ContextReflection:
		return true
	}
	return false
}

// Message roles as stored in the messages table.
const (
	RoleUser = "user"
	RoleAI   = "ai"
)

// Profile is a user profile row keyed by the identity provider's user id.
type Profile struct {
	ID          string         `json:"id"`
	Email       string         `json:"email,omitempty"`
	Preferences map[string]any `json:"preferences,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Conversation is an exchange of messages owned by one user.
type Conversation struct {
	ID           int64     `json:"id"`
	UserID       string    `json:"user_id"`
	CreatedAt    time.Time `json:"created_at"`
	MessageCount int       `json:"message_count"`
}

// Message is one utterance inside a conversation. CreatedAt establishes
// the chronological ordering the model input is rebuilt from.
type Message struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewMessage is the insert shape for a message row.
type NewMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// VoiceClone is a voice clone record. ProviderVoiceID stays nil until
// the cloning provider has processed the samples.
type VoiceClone struct {
	ID              int64     `json:"id"`
	UserID          string    `json:"user_id"`
	Name            string    `json:"name"`
	ProviderVoiceID *string   `json:"elevenlabs_voice_id"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
}

// CheckIn is one daily check-in entry. A bounded window of recent
// check-ins personalizes the system instruction for a turn.
type CheckIn struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	Date      time.Time `json:"date"`
	MoodScore string    `json:"mood_score,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
