package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/aaelfe/me-machine/internal/chat"
	"github.com/aaelfe/me-machine/internal/domain"
)

// SendMessageRequest is one synchronous chat turn. conversation_id is
// optional; omitting it starts a new conversation.
type SendMessageRequest struct {
	Message        string `json:"message"`
	ConversationID *int64 `json:"conversation_id,omitempty"`
	ContextType    string `json:"context_type,omitempty"`
	ReturnAudio    bool   `json:"return_audio,omitempty"`
}

// SendMessage runs one chat turn and returns the full reply at once.
// POST /api/v1/chat/message
func (h *Handler) SendMessage(c echo.Context) error {
	ctx := c.Request().Context()

	var req SendMessageRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.Message == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "message is required"})
	}
	contextType := domain.ContextType(req.ContextType)
	if req.ContextType != "" && !contextType.Valid() {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "unknown context_type"})
	}

	turn := chat.Turn{
		UserID:         userID(c),
		Message:        req.Message,
		ConversationID: req.ConversationID,
		ContextType:    contextType,
	}

	result, err := h.orch.Run(ctx, turn, chat.CompletionSync, nil)
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":         result.Reply,
		"conversation_id": result.ConversationID,
		"suggestions":     result.Suggestions,
		"audio_url":       nil,
	})
}

// GetChatConversation returns a conversation with its ordered transcript.
// GET /api/v1/chat/conversation/:id
func (h *Handler) GetChatConversation(c echo.Context) error {
	ctx := c.Request().Context()
	uid := userID(c)

	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid conversation id"})
	}

	conv, err := h.service.GetConversation(ctx, id, uid)
	if err != nil {
		return fail(c, err)
	}
	messages, err := h.service.ConversationMessages(ctx, id, uid)
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"conversation": conv,
		"messages":     messages,
	})
}
