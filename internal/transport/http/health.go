package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Health returns liveness.
// GET /health
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// Status reports dependency health and the active websocket session
// count. The endpoint stays 200 even when degraded so dashboards can
// read the detail.
// GET /status
func (h *Handler) Status(c echo.Context) error {
	ctx := c.Request().Context()

	status := "healthy"
	storeStatus := "ok"
	if err := h.service.StoreHealthy(ctx); err != nil {
		status = "degraded"
		storeStatus = err.Error()
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":          status,
		"store":           storeStatus,
		"active_sessions": h.registry.Count(),
		"version":         Version,
	})
}

// GetVersion returns the build version.
// GET /version
func (h *Handler) GetVersion(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"version": Version,
	})
}
