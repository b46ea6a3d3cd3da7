// Package router maps the HTTP surface onto handlers and middleware.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/hasthilk/ticketing/internal/handler"
	"github.com/hasthilk/ticketing/internal/middleware"
	"github.com/hasthilk/ticketing/internal/model"
)

// RegisterRoutes registers routes that need no authentication at all.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the session endpoints. Unauthenticated
// operations live under /v1/auth; /v1/me requires a valid access token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	// Logout works without the JWT middleware so a client holding only a
	// refresh token (expired access) can still end its session.
	g.POST("/logout", a.Logout)

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.GET("/me", a.Me)
}

// RegisterAPI wires the booking domain. Public browse and resolve routes
// carry no middleware; everything else sits behind JWTAuth, with role
// checks on staff operations and the rate limiter on the two
// booking-creation endpoints.
func RegisterAPI(e *echo.Echo, ev *handler.EventHandler, bk *handler.BookingHandler, en *handler.EntryHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
	// Public browse and side-effect-free ticket resolution.
	e.GET("/api/events", ev.List)
	e.GET("/api/events/:id", ev.Get)
	e.GET("/api/entry/days/:day", en.GetDay)
	e.POST("/api/bookings/resolve", bk.Resolve)
	e.POST("/api/entry/bookings/resolve", en.Resolve)

	api := e.Group("/api", middleware.JWTAuth(jwtSecret))

	// Offering and inventory management.
	staff := middleware.RequireRole(model.RoleAdmin, model.RoleEventManager)
	api.POST("/events", ev.Create, staff)
	api.PATCH("/events/:id/cancel", ev.Cancel, staff)
	api.PUT("/entry/days/:day", en.UpsertDay,
		middleware.RequireRole(model.RoleAdmin, model.RoleManager))

	// Event bookings.
	reader := middleware.RequireRole(model.RoleAdmin, model.RoleManager)
	api.POST("/bookings", bk.Create, limiter)
	api.GET("/bookings/me", bk.ListMine)
	api.GET("/bookings/event/:id", bk.ListByEvent, reader)
	api.GET("/bookings/:id", bk.Get)
	api.PATCH("/bookings/:id/pay", bk.Pay)
	api.PATCH("/bookings/:id/cancel", bk.Cancel)
	api.GET("/bookings/:id/ticket-token", bk.TicketToken)
	api.POST("/bookings/verify", bk.Verify,
		middleware.RequireRole(model.GateRoles()...))

	// Entry bookings.
	api.POST("/entry/bookings", en.Create, limiter)
	api.GET("/entry/bookings/me", en.ListMine)
	api.GET("/entry/bookings/day/:day", en.ListByDay, reader)
	api.PATCH("/entry/bookings/:id/pay", en.Pay)
	api.PATCH("/entry/bookings/:id/cancel", en.Cancel)
	api.GET("/entry/bookings/:id/ticket-token", en.TicketToken)
	api.POST("/entry/bookings/verify", en.Verify,
		middleware.RequireRole(model.GateRoles()...))
}
