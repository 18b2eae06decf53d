package router // router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/museum-tour-access/internal/handler"    // admin handlers
	"github.com/iliyamo/museum-tour-access/internal/middleware" // JWT + role middlewares
	"github.com/iliyamo/museum-tour-access/internal/model"
)

// RegisterAdmin registers catalog maintenance endpoints under /v1/admin.
// All routes require a valid JWT and the ADMIN role.
func RegisterAdmin(e *echo.Echo, a *handler.AdminHandler, jwtSecret string) {
	// Attach middlewares at group construction time for clarity.
	g := e.Group(
		"/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
	)

	// ---- Museums ----
	g.POST("/museums", a.CreateMuseum)

	// ---- Bundles ----
	g.POST("/bundles", a.CreateBundle)
	// Existing bundle purchases pick up new members immediately.
	g.POST("/bundles/:id/museums", a.AddBundleMuseum)
}
