package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/iliyamo/museum-tour-access/internal/handler"    // import the handlers that implement business logic
	"github.com/iliyamo/museum-tour-access/internal/middleware" // import middleware for JWT authentication and role enforcement
	"github.com/iliyamo/museum-tour-access/internal/model"
)

// RegisterRoutes registers routes that do not require authentication and
// are not part of the API proper.  Currently it exposes only a health
// check, which pings the database when one is given.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	// Load balancers and monitoring poll this endpoint.
	e.GET("/healthz", handler.Health(db))
}

// RegisterAuth registers all authentication‑related routes and applies the
// necessary middleware.  Unauthenticated operations live under /v1/auth,
// while the profile endpoint lives under /v1.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	// Operations that do not require an existing session.
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	// Rotates the refresh token.
	g.POST("/refresh", a.Refresh)
	// Issues a new access token without rotating the refresh token.
	g.POST("/refresh-access", a.RefreshAccess)
	// Logout takes a refresh token in the body or, failing that, a valid
	// bearer token; it does not sit behind JWTAuth.
	g.POST("/logout", a.Logout)

	e.GET("/v1/me", a.Me,
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleCustomer, model.RoleAdmin),
	)
}

// RegisterPublic registers unauthenticated catalog endpoints.  The response
// cache middleware is applied per route; it skips any request that
// carries credentials.
func RegisterPublic(e *echo.Echo, h *handler.CatalogHandler, p *handler.PaymentHandler, cache echo.MiddlewareFunc) {
	e.GET("/v1/museums", h.ListMuseums, cache)
	e.GET("/v1/museums/:id", h.GetMuseum, cache)
	e.GET("/v1/bundles", h.ListBundles, cache)
	e.GET("/v1/bundles/:id", h.GetBundle, cache)
	// Purchase counts per museum; cached briefly like the rest of the catalog.
	e.GET("/v1/analytics/museums", h.MuseumStats, cache)

	// Gateway callbacks carry no user token.  The handler re-reads the
	// event from the gateway before acting on it.
	e.POST("/v1/payment/webhook", p.Webhook)
}
