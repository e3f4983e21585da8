package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/aaelfe/me-machine/internal/chat"
	"github.com/aaelfe/me-machine/internal/domain"
	"github.com/aaelfe/me-machine/internal/identity"
	"github.com/aaelfe/me-machine/internal/llm"
	"github.com/aaelfe/me-machine/internal/service"
	"github.com/aaelfe/me-machine/internal/store"
	"github.com/aaelfe/me-machine/internal/ws"
)

// fakeIdentity issues canned sessions and resolves one known token.
type fakeIdentity struct {
	signOutCalls int
}

func (f *fakeIdentity) session() *identity.Session {
	return &identity.Session{UserID: "u1", Email: "u1@example.com", AccessToken: "good-token", RefreshToken: "refresh"}
}

func (f *fakeIdentity) SignUp(ctx context.Context, email, password string) (*identity.Session, error) {
	return f.session(), nil
}

func (f *fakeIdentity) SignIn(ctx context.Context, email, password string) (*identity.Session, error) {
	if password != "correct" {
		return nil, domain.ErrUnauthorized
	}
	return f.session(), nil
}

func (f *fakeIdentity) Refresh(ctx context.Context, refreshToken string) (*identity.Session, error) {
	if refreshToken != "refresh" {
		return nil, domain.ErrUnauthorized
	}
	return f.session(), nil
}

func (f *fakeIdentity) SignOut(ctx context.Context, token string) error {
	f.signOutCalls++
	return nil
}

func (f *fakeIdentity) Exchange(ctx context.Context, token string) (string, error) {
	if token == "good-token" {
		return "u1", nil
	}
	return "", domain.ErrUnauthorized
}

func newTestHandler(t *testing.T) (*Handler, store.Store) {
	t.Helper()

	db, err := store.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	log := zap.NewNop()
	id := &fakeIdentity{}
	orch := chat.New(db, &llm.Mock{Fragments: []string{"mock reply"}}, log, time.Minute, 7)
	h := NewHandler(service.New(db, log), orch, id, id, ws.NewRegistry(), log)
	return h, db
}

func newJSONContext(e *echo.Echo, method, target string, body interface{}) (echo.Context, *httptest.ResponseRecorder) {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func asUser(c echo.Context, userID string) {
	c.Set(ctxUserID, userID)
	c.Set(ctxToken, "good-token")
}

func TestRequireUser(t *testing.T) {
	e := echo.New()
	h, _ := newTestHandler(t)

	next := func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"user": userID(c)})
	}

	t.Run("missing token", func(t *testing.T) {
		c, rec := newJSONContext(e, http.MethodGet, "/api/v1/conversations", nil)
		err := h.RequireUser(next)(c)
		assert.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("invalid token", func(t *testing.T) {
		c, rec := newJSONContext(e, http.MethodGet, "/api/v1/conversations", nil)
		c.Request().Header.Set("Authorization", "Bearer nope")
		err := h.RequireUser(next)(c)
		assert.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid token", func(t *testing.T) {
		c, rec := newJSONContext(e, http.MethodGet, "/api/v1/conversations", nil)
		c.Request().Header.Set("Authorization", "Bearer good-token")
		err := h.RequireUser(next)(c)
		assert.NoError(t, err)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "u1")
	})
}

func TestLogin(t *testing.T) {
	e := echo.New()
	h, _ := newTestHandler(t)

	t.Run("success", func(t *testing.T) {
		c, rec := newJSONContext(e, http.MethodPost, "/api/v1/auth/login",
			CredentialsRequest{Email: "u1@example.com", Password: "correct"})
		assert.NoError(t, h.Login(c))
		assert.Equal(t, http.StatusOK, rec.Code)

		var session identity.Session
		assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))
		assert.Equal(t, "u1", session.UserID)
		assert.NotEmpty(t, session.AccessToken)
	})

	t.Run("wrong password", func(t *testing.T) {
		c, rec := newJSONContext(e, http.MethodPost, "/api/v1/auth/login",
			CredentialsRequest{Email: "u1@example.com", Password: "wrong"})
		assert.NoError(t, h.Login(c))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("missing fields", func(t *testing.T) {
		c, rec := newJSONContext(e, http.MethodPost, "/api/v1/auth/login", CredentialsRequest{})
		assert.NoError(t, h.Login(c))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestRefresh(t *testing.T) {
	e := echo.New()
	h, _ := newTestHandler(t)

	c, rec := newJSONContext(e, http.MethodPost, "/api/v1/auth/refresh", RefreshRequest{RefreshToken: "refresh"})
	assert.NoError(t, h.Refresh(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	c, rec = newJSONContext(e, http.MethodPost, "/api/v1/auth/refresh", RefreshRequest{RefreshToken: "stale"})
	assert.NoError(t, h.Refresh(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMeCreatesProfileOnFirstAccess(t *testing.T) {
	e := echo.New()
	h, db := newTestHandler(t)

	c, rec := newJSONContext(e, http.MethodGet, "/api/v1/auth/me", nil)
	asUser(c, "u1")
	assert.NoError(t, h.Me(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	profile, err := db.GetProfile(context.Background(), "u1")
	assert.NoError(t, err)
	assert.Equal(t, "u1", profile.ID)

	// Second call reads the existing row.
	c, rec = newJSONContext(e, http.MethodGet, "/api/v1/auth/me", nil)
	asUser(c, "u1")
	assert.NoError(t, h.Me(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSendMessage(t *testing.T) {
	e := echo.New()
	h, db := newTestHandler(t)

	c, rec := newJSONContext(e, http.MethodPost, "/api/v1/chat/message",
		SendMessageRequest{Message: "hello", ContextType: "general"})
	asUser(c, "u1")
	assert.NoError(t, h.SendMessage(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Message        string   `json:"message"`
		ConversationID int64    `json:"conversation_id"`
		Suggestions    []string `json:"suggestions"`
		AudioURL       *string  `json:"audio_url"`
	}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "mock reply", resp.Message)
	assert.NotZero(t, resp.ConversationID)
	assert.NotEmpty(t, resp.Suggestions)
	assert.Nil(t, resp.AudioURL)

	// Both sides of the exchange were persisted.
	messages, err := db.ListMessages(context.Background(), resp.ConversationID)
	assert.NoError(t, err)
	assert.Len(t, messages, 2)
}

func TestSendMessageValidation(t *testing.T) {
	e := echo.New()
	h, _ := newTestHandler(t)

	c, rec := newJSONContext(e, http.MethodPost, "/api/v1/chat/message", SendMessageRequest{})
	asUser(c, "u1")
	assert.NoError(t, h.SendMessage(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	c, rec = newJSONContext(e, http.MethodPost, "/api/v1/chat/message",
		SendMessageRequest{Message: "hi", ContextType: "bogus"})
	asUser(c, "u1")
	assert.NoError(t, h.SendMessage(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConversationCRUD(t *testing.T) {
	e := echo.New()
	h, db := newTestHandler(t)
	ctx := context.Background()

	// Create
	c, rec := newJSONContext(e, http.MethodPost, "/api/v1/conversations", nil)
	asUser(c, "u1")
	assert.NoError(t, h.CreateConversation(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var conv domain.Conversation
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &conv))
	assert.NotZero(t, conv.ID)

	// Seed some messages and list with counts
	assert.NoError(t, db.AppendMessages(ctx, conv.ID, []domain.NewMessage{
		{Role: domain.RoleUser, Content: "hi"},
		{Role: domain.RoleAI, Content: "hello"},
	}))

	c, rec = newJSONContext(e, http.MethodGet, "/api/v1/conversations", nil)
	asUser(c, "u1")
	assert.NoError(t, h.ListConversations(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var listResp struct {
		Conversations []domain.Conversation `json:"conversations"`
	}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listResp))
	assert.Len(t, listResp.Conversations, 1)
	assert.Equal(t, 2, listResp.Conversations[0].MessageCount)

	// Get by id
	c, rec = newJSONContext(e, http.MethodGet, "/api/v1/conversations/:id", nil)
	asUser(c, "u1")
	c.SetParamNames("id")
	c.SetParamValues("1")
	assert.NoError(t, h.GetConversation(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	// Messages
	c, rec = newJSONContext(e, http.MethodGet, "/api/v1/conversations/:id/messages", nil)
	asUser(c, "u1")
	c.SetParamNames("id")
	c.SetParamValues("1")
	assert.NoError(t, h.ListConversationMessages(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "hello")

	// Delete
	c, rec = newJSONContext(e, http.MethodDelete, "/api/v1/conversations/:id", nil)
	asUser(c, "u1")
	c.SetParamNames("id")
	c.SetParamValues("1")
	assert.NoError(t, h.DeleteConversation(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	_, err := db.GetConversation(ctx, conv.ID, "u1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestConversationOwnershipEnforced(t *testing.T) {
	e := echo.New()
	h, db := newTestHandler(t)

	conv, err := db.CreateConversation(context.Background(), "someone-else")
	assert.NoError(t, err)

	c, rec := newJSONContext(e, http.MethodGet, "/api/v1/conversations/:id", nil)
	asUser(c, "u1")
	c.SetParamNames("id")
	c.SetParamValues("1")
	assert.NoError(t, h.GetConversation(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// The row itself is untouched.
	_, err = db.GetConversation(context.Background(), conv.ID, "someone-else")
	assert.NoError(t, err)
}

func TestVoiceCloneEndpoints(t *testing.T) {
	e := echo.New()
	h, _ := newTestHandler(t)

	c, rec := newJSONContext(e, http.MethodPost, "/api/v1/voice/clone", CreateVoiceCloneRequest{Name: "me"})
	asUser(c, "u1")
	assert.NoError(t, h.CreateVoiceClone(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var clone domain.VoiceClone
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &clone))
	assert.True(t, clone.IsActive)
	assert.Nil(t, clone.ProviderVoiceID)

	c, rec = newJSONContext(e, http.MethodGet, "/api/v1/voice/clones", nil)
	asUser(c, "u1")
	assert.NoError(t, h.ListVoiceClones(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "me")

	c, rec = newJSONContext(e, http.MethodDelete, "/api/v1/voice/clones/:id", nil)
	asUser(c, "u1")
	c.SetParamNames("id")
	c.SetParamValues("1")
	assert.NoError(t, h.DeleteVoiceClone(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	// Placeholders
	c, rec = newJSONContext(e, http.MethodPost, "/api/v1/voice/message", nil)
	asUser(c, "u1")
	assert.NoError(t, h.VoiceMessage(c))
	assert.Equal(t, http.StatusNotImplemented, rec.Code)

	c, rec = newJSONContext(e, http.MethodPost, "/api/v1/voice/synthesize", nil)
	asUser(c, "u1")
	assert.NoError(t, h.Synthesize(c))
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestHealthAndStatus(t *testing.T) {
	e := echo.New()
	h, _ := newTestHandler(t)

	c, rec := newJSONContext(e, http.MethodGet, "/health", nil)
	assert.NoError(t, h.Health(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")

	c, rec = newJSONContext(e, http.MethodGet, "/status", nil)
	assert.NoError(t, h.Status(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var status struct {
		Status         string `json:"status"`
		Store          string `json:"store"`
		ActiveSessions int    `json:"active_sessions"`
	}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, "ok", status.Store)
	assert.Zero(t, status.ActiveSessions)
}
