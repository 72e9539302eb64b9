package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fieldz-pro/slot-scheduler/internal/model"
	"github.com/fieldz-pro/slot-scheduler/internal/service"
)

// ReservationHandler exposes booking and the reservation transitions.
// All methods assume JWTAuth ran; the role checks that matter for a
// transition are repeated by the service.
type ReservationHandler struct {
	Reservations *service.Reservations // Reservations drives the state machine
}

// NewReservationHandler constructs a ReservationHandler and panics if the
// service is nil.
func NewReservationHandler(r *service.Reservations) *ReservationHandler {
	if r == nil {
		panic("nil reservation service passed to NewReservationHandler")
	}
	return &ReservationHandler{Reservations: r}
}

type bookRequest struct {
	BookerID         *uint64 `json:"booker_id"`
	ManualBookerName string  `json:"manual_booker_name" validate:"max=120"`
}

// BookSlot handles POST /v1/slots/:id/book.  A BOOKER books for their own
// account and sends no body.  An OPERATOR sends either manual_booker_name
// for a walk-in or booker_id to book on behalf of an account.  Returns
// 201 with the PENDING reservation and the now BOOKED slot, 409 when the
// slot is not free.
func (h *ReservationHandler) BookSlot(c echo.Context) error {
	actor, ok := actorOr401(c)
	if !ok {
		return nil
	}
	var body bookRequest
	if c.Request().ContentLength != 0 && !bindValid(c, &body) {
		return nil
	}
	booker := model.Booker{AccountID: body.BookerID, ManualName: body.ManualBookerName}
	if !actor.Operator() && booker.AccountID == nil && booker.ManualName == "" {
		id := actor.UserID
		booker.AccountID = &id
	}
	b, err := h.Reservations.BookSlot(c.Request().Context(), actor, c.Param("id"), booker)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, b)
}

// Confirm handles POST /v1/reservations/:id/confirm (OPERATOR).  422 with
// available_from before the slot starts.
func (h *ReservationHandler) Confirm(c echo.Context) error {
	actor, ok := actorOr401(c)
	if !ok {
		return nil
	}
	b, err := h.Reservations.Confirm(c.Request().Context(), actor, c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

type noShowRequest struct {
	Note string `json:"note" validate:"max=500"`
}

// MarkNoShow handles POST /v1/reservations/:id/no-show (OPERATOR).  422
// with available_from until the grace period after the start has passed.
func (h *ReservationHandler) MarkNoShow(c echo.Context) error {
	actor, ok := actorOr401(c)
	if !ok {
		return nil
	}
	var body noShowRequest
	if c.Request().ContentLength != 0 && !bindValid(c, &body) {
		return nil
	}
	b, err := h.Reservations.MarkNoShow(c.Request().Context(), actor, c.Param("id"), body.Note)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

type optionalReasonRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// CancelByBooker handles POST /v1/reservations/:id/cancel (BOOKER, own
// reservation).  The reason is optional.  422 with available_until once
// the cutoff has passed.
func (h *ReservationHandler) CancelByBooker(c echo.Context) error {
	actor, ok := actorOr401(c)
	if !ok {
		return nil
	}
	var body optionalReasonRequest
	if c.Request().ContentLength != 0 && !bindValid(c, &body) {
		return nil
	}
	b, err := h.Reservations.CancelByBooker(c.Request().Context(), actor, c.Param("id"), body.Reason)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

// CancelByFacility handles POST /v1/reservations/:id/facility-cancel
// (OPERATOR).  Allowed at any time; reason is mandatory.
func (h *ReservationHandler) CancelByFacility(c echo.Context) error {
	actor, ok := actorOr401(c)
	if !ok {
		return nil
	}
	var body reasonRequest
	if !bindValid(c, &body) {
		return nil
	}
	b, err := h.Reservations.CancelByFacility(c.Request().Context(), actor, c.Param("id"), body.Reason)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

// Get handles GET /v1/reservations/:id.
func (h *ReservationHandler) Get(c echo.Context) error {
	actor, ok := actorOr401(c)
	if !ok {
		return nil
	}
	b, err := h.Reservations.Get(c.Request().Context(), actor, c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

// Actions handles GET /v1/reservations/:id/actions: which transitions are
// legal right now and the instants at which that changes.
func (h *ReservationHandler) Actions(c echo.Context) error {
	actor, ok := actorOr401(c)
	if !ok {
		return nil
	}
	a, err := h.Reservations.Actions(c.Request().Context(), actor, c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, a)
}

// ListMine handles GET /v1/me/reservations (BOOKER).
func (h *ReservationHandler) ListMine(c echo.Context) error {
	actor, ok := actorOr401(c)
	if !ok {
		return nil
	}
	list, err := h.Reservations.ListMine(c.Request().Context(), actor)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"reservations": list})
}
