package router

import (
	"github.com/coachpanel/backend/internal/handler"
	"github.com/coachpanel/backend/static"
	"github.com/labstack/echo/v4"
)

// registerSystemRoutes adds the endpoints that sit outside the API:
// health, the docs UI and its assets.
func registerSystemRoutes(r *echo.Echo, h *handler.Handlers) {
	r.GET("/status", h.Health.CheckHealth)
	r.StaticFS("/static", static.FS)
	r.GET("/docs", h.OpenAPI.ServeOpenAPIUI)
}
