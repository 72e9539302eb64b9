package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"  // import the Echo web framework to handle routing
	"github.com/redis/go-redis/v9" // redis backs the command rate limiter

	"github.com/fieldz-pro/slot-scheduler/internal/config"
	"github.com/fieldz-pro/slot-scheduler/internal/handler"
	"github.com/fieldz-pro/slot-scheduler/internal/middleware"
	"github.com/fieldz-pro/slot-scheduler/internal/model"
)

// Deps carries everything the routes need.  Redis may be nil, in which case
// command routes are not rate limited.
type Deps struct {
	Slots        *handler.SlotHandler
	Reservations *handler.ReservationHandler
	Health       echo.HandlerFunc
	JWTSecret    string
	RateLimit    config.RateLimitConfig
	Redis        *redis.Client
}

// Register wires every route of the scheduling API onto e.
func Register(e *echo.Echo, d Deps) {
	// Unauthenticated reads.  Guests can browse availability before
	// signing in.
	e.GET("/healthz", d.Health)
	e.GET("/v1/facilities/:id/slots", d.Slots.ListSlots)
	e.GET("/v1/slots/:id", d.Slots.GetSlot)

	// Everything below requires a valid access token for a known role and
	// shares the "commands" token bucket.
	auth := e.Group(
		"/v1",
		middleware.JWTAuth(d.JWTSecret),
		middleware.RequireRole(model.RoleOperator, model.RoleBooker),
	)
	limit := middleware.NewTokenBucket(d.RateLimit, d.Redis, "commands")
	operator := middleware.RequireRole(model.RoleOperator)
	booker := middleware.RequireRole(model.RoleBooker)

	// ---- Slots ----
	auth.POST("/facilities/:id/slots", d.Slots.CreateSlot, operator, limit)
	auth.POST("/facilities/:id/slots/recurring", d.Slots.CreateRecurring, operator, limit)
	auth.POST("/facilities/:id/slots/recurring/preview", d.Slots.PreviewRecurring, operator)
	auth.POST("/slots/:id/cancel", d.Slots.CancelSlot, operator, limit)

	// ---- Booking ----
	// Both roles may book: bookers for themselves, operators for walk-ins.
	auth.POST("/slots/:id/book", d.Reservations.BookSlot, limit)

	// ---- Reservations ----
	auth.POST("/reservations/:id/confirm", d.Reservations.Confirm, operator, limit)
	auth.POST("/reservations/:id/no-show", d.Reservations.MarkNoShow, operator, limit)
	auth.POST("/reservations/:id/facility-cancel", d.Reservations.CancelByFacility, operator, limit)
	auth.POST("/reservations/:id/cancel", d.Reservations.CancelByBooker, booker, limit)
	auth.GET("/reservations/:id", d.Reservations.Get)
	auth.GET("/reservations/:id/actions", d.Reservations.Actions)
	auth.GET("/me/reservations", d.Reservations.ListMine, booker)
}
