package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/museum-tour-access/internal/handler"
	"github.com/iliyamo/museum-tour-access/internal/middleware"
	"github.com/iliyamo/museum-tour-access/internal/model"
)

// CustomerHandlers groups the handlers mounted on the signed-in API.
type CustomerHandlers struct {
	Access    *handler.AccessHandler
	Payment   *handler.PaymentHandler
	Analytics *handler.AnalyticsHandler
}

// RegisterCustomer registers endpoints for signed-in users under /v1.  All
// routes require a valid JWT and the CUSTOMER or ADMIN role.  The payment
// routes additionally pass through the rate limiter, which must run after
// JWTAuth so it can key on the user id.
func RegisterCustomer(e *echo.Echo, h CustomerHandlers, jwtSecret string, limiter echo.MiddlewareFunc) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleCustomer, model.RoleAdmin),
	)

	// ---- Access ----
	g.GET("/me/museums", h.Access.MyMuseums)
	g.GET("/museums/:id/access", h.Access.CheckAccess)
	g.GET("/museums/:id/tour", h.Access.Tour)

	// ---- Payments ----
	g.POST("/payment/charges", h.Payment.CreateCharge, limiter)
	g.POST("/payment/confirm", h.Payment.Confirm, limiter)

	// ---- Analytics ----
	g.GET("/analytics/overview", h.Analytics.Overview)
	g.GET("/analytics/purchases", h.Analytics.Purchases)
}
