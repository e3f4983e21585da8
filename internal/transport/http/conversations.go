package http

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

const defaultConversationLimit = 50

// pathID parses the :id route parameter.
func pathID(c echo.Context) (int64, error) {
	return strconv.ParseInt(c.Param("id"), 10, 64)
}

// CreateConversation opens a new empty conversation.
// POST /api/v1/conversations
func (h *Handler) CreateConversation(c echo.Context) error {
	ctx := c.Request().Context()

	conv, err := h.service.CreateConversation(ctx, userID(c))
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(http.StatusOK, conv)
}

// ListConversations lists the user's conversations, newest first.
// GET /api/v1/conversations?limit=
func (h *Handler) ListConversations(c echo.Context) error {
	ctx := c.Request().Context()

	limit := defaultConversationLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid limit"})
		}
		limit = n
	}

	convs, err := h.service.ListConversations(ctx, userID(c), limit)
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"conversations": convs,
	})
}

// GetConversation returns one conversation with its message count.
// GET /api/v1/conversations/:id
func (h *Handler) GetConversation(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid conversation id"})
	}

	conv, err := h.service.GetConversation(ctx, id, userID(c))
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(http.StatusOK, conv)
}

// DeleteConversation removes a conversation and its messages.
// DELETE /api/v1/conversations/:id
func (h *Handler) DeleteConversation(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid conversation id"})
	}

	if err := h.service.DeleteConversation(ctx, id, userID(c)); err != nil {
		return fail(c, err)
	}

	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}

// ListConversationMessages returns the ordered transcript.
// GET /api/v1/conversations/:id/messages
func (h *Handler) ListConversationMessages(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid conversation id"})
	}

	messages, err := h.service.ConversationMessages(ctx, id, userID(c))
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"messages": messages,
	})
}
