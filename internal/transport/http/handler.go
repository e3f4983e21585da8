// Package http provides the REST handlers for the check-in assistant.
package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/aaelfe/me-machine/internal/chat"
	"github.com/aaelfe/me-machine/internal/domain"
	"github.com/aaelfe/me-machine/internal/identity"
	"github.com/aaelfe/me-machine/internal/service"
	"github.com/aaelfe/me-machine/internal/ws"
)

// Version reported by GET /version.
const Version = "0.1.0"

// Handler handles HTTP requests.
type Handler struct {
	service   *service.Service
	orch      *chat.Orchestrator
	identity  identity.Identity
	exchanger identity.Exchanger
	registry  *ws.Registry
	log       *zap.Logger
}

// NewHandler creates a new handler. exchanger is the token resolver used
// by the auth middleware (usually the cached decorator around identity).
func NewHandler(svc *service.Service, orch *chat.Orchestrator, id identity.Identity, exchanger identity.Exchanger, registry *ws.Registry, log *zap.Logger) *Handler {
	return &Handler{
		service:   svc,
		orch:      orch,
		identity:  id,
		exchanger: exchanger,
		registry:  registry,
		log:       log,
	}
}

// RegisterRoutes registers all REST routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)
	e.GET("/status", h.Status)
	e.GET("/version", h.GetVersion)

	api := e.Group("/api/v1")

	auth := api.Group("/auth")
	auth.POST("/signup", h.SignUp)
	auth.POST("/login", h.Login)
	auth.POST("/refresh", h.Refresh)
	auth.POST("/logout", h.Logout, h.RequireUser)
	auth.GET("/me", h.Me, h.RequireUser)

	chatGroup := api.Group("/chat", h.RequireUser)
	chatGroup.POST("/message", h.SendMessage)
	chatGroup.GET("/conversation/:id", h.GetChatConversation)

	convs := api.Group("/conversations", h.RequireUser)
	convs.POST("", h.CreateConversation)
	convs.GET("", h.ListConversations)
	convs.GET("/:id", h.GetConversation)
	convs.DELETE("/:id", h.DeleteConversation)
	convs.GET("/:id/messages", h.ListConversationMessages)

	voice := api.Group("/voice", h.RequireUser)
	voice.POST("/clone", h.CreateVoiceClone)
	voice.GET("/clones", h.ListVoiceClones)
	voice.DELETE("/clones/:id", h.DeleteVoiceClone)
	voice.POST("/message", h.VoiceMessage)
	voice.POST("/synthesize", h.Synthesize)
	voice.GET("/audio/:id", h.GetAudio)
}

// fail maps domain sentinels to HTTP status codes. Everything unmapped is
// a 500 with the raw error text, matching the rest of the API surface.
func fail(c echo.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, domain.ErrUnauthorized):
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	case errors.Is(err, domain.ErrInvalidInput):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid input"})
	default:
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}
