package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/aaelfe/me-machine/internal/domain"
)

// SQLite implements Store using SQLite. Used for local development and
// tests; production deployments point at the hosted store instead.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens the database and runs migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *SQLite) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS profiles (
			id TEXT PRIMARY KEY,
			email TEXT,
			preferences TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS conversations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_user ON conversations(user_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			conversation_id INTEGER NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS voice_clones (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			name TEXT NOT NULL,
			provider_voice_id TEXT,
			is_active INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_voice_clones_user ON voice_clones(user_id)`,
		`CREATE TABLE IF NOT EXISTS daily_check_ins (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			date DATETIME NOT NULL,
			mood_score TEXT,
			notes TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_check_ins_user ON daily_check_ins(user_id, date)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLite) CreateProfile(ctx context.Context, profile *domain.Profile) error {
	prefs, err := json.Marshal(profile.Preferences)
	if err != nil {
		return fmt.Errorf("failed to marshal preferences: %w", err)
	}
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = time.Now().UTC()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO profiles (id, email, preferences, created_at) VALUES (?, ?, ?, ?)`,
		profile.ID, profile.Email, string(prefs), profile.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}
	return nil
}

func (s *SQLite) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	var p domain.Profile
	var prefs sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, preferences, created_at FROM profiles WHERE id = ?`, userID).
		Scan(&p.ID, &p.Email, &prefs, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	if prefs.Valid && prefs.String != "" {
		if err := json.Unmarshal([]byte(prefs.String), &p.Preferences); err != nil {
			return nil, fmt.Errorf("failed to unmarshal preferences: %w", err)
		}
	}
	return &p, nil
}

func (s *SQLite) CreateConversation(ctx context.Context, userID string) (*domain.Conversation, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (user_id, created_at) VALUES (?, ?)`, userID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read conversation id: %w", err)
	}
	return &domain.Conversation{ID: id, UserID: userID, CreatedAt: now}, nil
}

func (s *SQLite) GetConversation(ctx context.Context, id int64, userID string) (*domain.Conversation, error) {
	var c domain.Conversation
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, created_at FROM conversations WHERE id = ? AND user_id = ?`, id, userID).
		Scan(&c.ID, &c.UserID, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return &c, nil
}

func (s *SQLite) ListConversations(ctx context.Context, userID string, limit int) ([]domain.Conversation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, created_at FROM conversations WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	var conversations []domain.Conversation
	for rows.Next() {
		var c domain.Conversation
		if err := rows.Scan(&c.ID, &c.UserID, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		conversations = append(conversations, c)
	}
	return conversations, rows.Err()
}

func (s *SQLite) DeleteConversation(ctx context.Context, id int64, userID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM conversations WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *SQLite) ListMessages(ctx context.Context, conversationID int64) ([]domain.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, role, content, created_at FROM messages
		 WHERE conversation_id = ? ORDER BY created_at ASC, id ASC`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func (s *SQLite) CountMessages(ctx context.Context, conversationID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE conversation_id = ?`, conversationID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return n, nil
}

func (s *SQLite) AppendMessages(ctx context.Context, conversationID int64, messages []domain.NewMessage) error {
	if len(messages) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for i, m := range messages {
		// Nanosecond offsets keep same-batch rows in insertion order.
		_, err := tx.ExecContext(ctx,
			`INSERT INTO messages (conversation_id, role, content, created_at) VALUES (?, ?, ?, ?)`,
			conversationID, m.Role, m.Content, now.Add(time.Duration(i)*time.Nanosecond))
		if err != nil {
			return fmt.Errorf("failed to append message: %w", err)
		}
	}
	return tx.Commit()
}

func (s *SQLite) CreateCheckIn(ctx context.Context, checkIn *domain.CheckIn) error {
	if checkIn.Date.IsZero() {
		checkIn.Date = time.Now().UTC()
	}
	if checkIn.CreatedAt.IsZero() {
		checkIn.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO daily_check_ins (user_id, date, mood_score, notes, created_at) VALUES (?, ?, ?, ?, ?)`,
		checkIn.UserID, checkIn.Date, checkIn.MoodScore, checkIn.Notes, checkIn.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create check-in: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read check-in id: %w", err)
	}
	checkIn.ID = id
	return nil
}

func (s *SQLite) ListCheckIns(ctx context.Context, userID string, limit int) ([]domain.CheckIn, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, date, mood_score, notes, created_at FROM daily_check_ins
		 WHERE user_id = ? ORDER BY date DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list check-ins: %w", err)
	}
	defer rows.Close()

	var checkIns []domain.CheckIn
	for rows.Next() {
		var ci domain.CheckIn
		var mood, notes sql.NullString
		if err := rows.Scan(&ci.ID, &ci.UserID, &ci.Date, &mood, &notes, &ci.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan check-in: %w", err)
		}
		ci.MoodScore = mood.String
		ci.Notes = notes.String
		checkIns = append(checkIns, ci)
	}
	return checkIns, rows.Err()
}

func (s *SQLite) CreateVoiceClone(ctx context.Context, userID, name string) (*domain.VoiceClone, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO voice_clones (user_id, name, is_active, created_at) VALUES (?, ?, 1, ?)`,
		userID, name, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create voice clone: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read voice clone id: %w", err)
	}
	return &domain.VoiceClone{ID: id, UserID: userID, Name: name, IsActive: true, CreatedAt: now}, nil
}

func (s *SQLite) ListVoiceClones(ctx context.Context, userID string) ([]domain.VoiceClone, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, name, provider_voice_id, is_active, created_at FROM voice_clones
		 WHERE user_id = ? AND is_active = 1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list voice clones: %w", err)
	}
	defer rows.Close()

	var clones []domain.VoiceClone
	for rows.Next() {
		var vc domain.VoiceClone
		var provider sql.NullString
		if err := rows.Scan(&vc.ID, &vc.UserID, &vc.Name, &provider, &vc.IsActive, &vc.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan voice clone: %w", err)
		}
		if provider.Valid {
			vc.ProviderVoiceID = &provider.String
		}
		clones = append(clones, vc)
	}
	return clones, rows.Err()
}

func (s *SQLite) DeactivateVoiceClone(ctx context.Context, id int64, userID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE voice_clones SET is_active = 0 WHERE id = ? AND user_id = ? AND is_active = 1`,
		id, userID)
	if err != nil {
		return fmt.Errorf("failed to deactivate voice clone: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

var _ Store = (*SQLite)(nil)
