package http

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Context keys set by RequireUser.
const (
	ctxUserID = "user_id"
	ctxToken  = "token"
)

// RequireUser resolves the Authorization bearer token to a user id and
// stores both on the echo context. Requests without a valid credential
// are rejected before the handler runs.
func (h *Handler) RequireUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := bearerToken(c.Request().Header.Get("Authorization"))
		if token == "" {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing bearer token"})
		}

		userID, err := h.exchanger.Exchange(c.Request().Context(), token)
		if err != nil {
			h.log.Debug("token rejected", zap.Error(err))
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid or expired token"})
		}

		c.Set(ctxUserID, userID)
		c.Set(ctxToken, token)
		return next(c)
	}
}

// userID returns the authenticated user id set by RequireUser.
func userID(c echo.Context) string {
	id, _ := c.Get(ctxUserID).(string)
	return id
}

// bearerToken extracts the credential from an Authorization header value.
func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
