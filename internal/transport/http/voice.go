package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// CreateVoiceCloneRequest names a new voice clone.
type CreateVoiceCloneRequest struct {
	Name string `json:"name"`
}

// CreateVoiceClone registers a voice clone record. The provider voice id
// stays null until training with the synthesis provider completes.
// POST /api/v1/voice/clone
func (h *Handler) CreateVoiceClone(c echo.Context) error {
	ctx := c.Request().Context()

	var req CreateVoiceCloneRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "name is required"})
	}

	clone, err := h.service.CreateVoiceClone(ctx, userID(c), req.Name)
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(http.StatusOK, clone)
}

// ListVoiceClones lists the user's active voice clones.
// GET /api/v1/voice/clones
func (h *Handler) ListVoiceClones(c echo.Context) error {
	ctx := c.Request().Context()

	clones, err := h.service.ListVoiceClones(ctx, userID(c))
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"voice_clones": clones,
	})
}

// DeleteVoiceClone deactivates a voice clone.
// DELETE /api/v1/voice/clones/:id
func (h *Handler) DeleteVoiceClone(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid clone id"})
	}

	if err := h.service.DeleteVoiceClone(ctx, id, userID(c)); err != nil {
		return fail(c, err)
	}

	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}

// VoiceMessage is a placeholder until speech-to-text is wired up.
// POST /api/v1/voice/message
func (h *Handler) VoiceMessage(c echo.Context) error {
	return c.JSON(http.StatusNotImplemented, map[string]string{
		"error": "voice messages are not implemented yet",
	})
}

// Synthesize is a placeholder until text-to-speech is wired up.
// POST /api/v1/voice/synthesize
func (h *Handler) Synthesize(c echo.Context) error {
	return c.JSON(http.StatusNotImplemented, map[string]string{
		"error": "voice synthesis is not implemented yet",
	})
}

// GetAudio is a placeholder until synthesized audio is stored.
// GET /api/v1/voice/audio/:id
func (h *Handler) GetAudio(c echo.Context) error {
	return c.JSON(http.StatusNotFound, map[string]string{
		"error": "audio not found",
	})
}
