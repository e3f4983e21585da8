package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/aaelfe/me-machine/internal/domain"
)

// CredentialsRequest is the request body for signup and login.
type CredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshRequest carries the refresh token for token rotation.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// SignUp registers a new account and returns an issued session.
// POST /api/v1/auth/signup
func (h *Handler) SignUp(c echo.Context) error {
	ctx := c.Request().Context()

	var req CredentialsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "email and password are required"})
	}

	session, err := h.identity.SignUp(ctx, req.Email, req.Password)
	if err != nil {
		h.log.Warn("signup failed", zap.String("email", req.Email), zap.Error(err))
		return fail(c, err)
	}

	return c.JSON(http.StatusOK, session)
}

// Login issues a session for existing credentials.
// POST /api/v1/auth/login
func (h *Handler) Login(c echo.Context) error {
	ctx := c.Request().Context()

	var req CredentialsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "email and password are required"})
	}

	session, err := h.identity.SignIn(ctx, req.Email, req.Password)
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(http.StatusOK, session)
}

// Refresh rotates a session from its refresh token.
// POST /api/v1/auth/refresh
func (h *Handler) Refresh(c echo.Context) error {
	ctx := c.Request().Context()

	var req RefreshRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.RefreshToken == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "refresh_token is required"})
	}

	session, err := h.identity.Refresh(ctx, req.RefreshToken)
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(http.StatusOK, session)
}

// Logout revokes the caller's session at the identity provider.
// POST /api/v1/auth/logout
func (h *Handler) Logout(c echo.Context) error {
	ctx := c.Request().Context()

	token, _ := c.Get(ctxToken).(string)
	if err := h.identity.SignOut(ctx, token); err != nil {
		return fail(c, err)
	}

	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}

// Me returns the authenticated user's profile, creating the row on first
// access so the client never has to race profile creation after signup.
// GET /api/v1/auth/me
func (h *Handler) Me(c echo.Context) error {
	ctx := c.Request().Context()
	uid := userID(c)

	profile, err := h.service.Profile(ctx, uid)
	if err != nil && errors.Is(err, domain.ErrNotFound) {
		profile, err = h.service.CreateProfile(ctx, uid)
	}
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(http.StatusOK, profile)
}
