package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/fieldz-pro/slot-scheduler/internal/model"
	"github.com/fieldz-pro/slot-scheduler/internal/service"
)

// SlotHandler exposes slot creation, listing and cancellation.  Write
// endpoints assume JWTAuth and RequireRole(OPERATOR) ran before them.
type SlotHandler struct {
	Slots *service.SlotManager // Slots owns slot creation and lookup
}

// NewSlotHandler constructs a SlotHandler and panics if the manager is nil.
func NewSlotHandler(slots *service.SlotManager) *SlotHandler {
	if slots == nil {
		panic("nil slot manager passed to NewSlotHandler")
	}
	return &SlotHandler{Slots: slots}
}

type createSlotRequest struct {
	Start string          `json:"start" validate:"required"`
	End   string          `json:"end" validate:"required"`
	Price decimal.Decimal `json:"price"`
}

// CreateSlot handles POST /v1/facilities/:id/slots.  start and end are
// facility-local wall clock ("2025-06-02T18:00") or RFC 3339.  Returns 201
// with the FREE slot, 409 when it overlaps an active slot.
func (h *SlotHandler) CreateSlot(c echo.Context) error {
	facilityID, ok := parseFacilityID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid facility id"})
	}
	var body createSlotRequest
	if !bindValid(c, &body) {
		return nil
	}
	ctx := c.Request().Context()
	loc, err := h.Slots.Location(ctx, facilityID)
	if err != nil {
		return respondError(c, err)
	}
	start, okStart := parseLocal(body.Start, loc)
	end, okEnd := parseLocal(body.End, loc)
	if !okStart || !okEnd {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "start and end must be local date-times"})
	}
	slot, err := h.Slots.CreateSlot(ctx, facilityID, start, end, body.Price)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, slot)
}

type recurringRequest struct {
	Weekday          string          `json:"weekday" validate:"required"`
	StartTime        string          `json:"start_time" validate:"required"`
	DurationMinutes  int             `json:"duration_minutes" validate:"required,gt=0,lte=1440"`
	From             string          `json:"from" validate:"required"`
	To               string          `json:"to" validate:"required"`
	Price            decimal.Decimal `json:"price"`
	ManualBookerName string          `json:"manual_booker_name"`
	AutoBook         bool            `json:"auto_book"`
}

// recurrence binds and converts a recurring request, writing 400 on
// malformed input.
func (h *SlotHandler) recurrence(c echo.Context) (model.RecurrenceRequest, bool) {
	facilityID, ok := parseFacilityID(c)
	if !ok {
		_ = c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid facility id"})
		return model.RecurrenceRequest{}, false
	}
	var body recurringRequest
	if !bindValid(c, &body) {
		return model.RecurrenceRequest{}, false
	}
	weekday, ok := weekdays[strings.ToLower(strings.TrimSpace(body.Weekday))]
	if !ok {
		_ = c.JSON(http.StatusBadRequest, echo.Map{"error": "weekday must be a day name", "field": "weekday"})
		return model.RecurrenceRequest{}, false
	}
	from, okFrom := parseDate(body.From)
	to, okTo := parseDate(body.To)
	if !okFrom || !okTo {
		_ = c.JSON(http.StatusBadRequest, echo.Map{"error": "from and to must be YYYY-MM-DD"})
		return model.RecurrenceRequest{}, false
	}
	return model.RecurrenceRequest{
		FacilityID:       facilityID,
		Weekday:          weekday,
		StartTime:        body.StartTime,
		DurationMinutes:  body.DurationMinutes,
		From:             from,
		To:               to,
		Price:            body.Price,
		ManualBookerName: body.ManualBookerName,
		AutoBook:         body.AutoBook,
	}, true
}

// CreateRecurring handles POST /v1/facilities/:id/slots/recurring.  The
// batch is best effort: 201 lists created slots and skipped occurrences.
func (h *SlotHandler) CreateRecurring(c echo.Context) error {
	req, ok := h.recurrence(c)
	if !ok {
		return nil
	}
	res, err := h.Slots.CreateRecurringSlots(c.Request().Context(), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, res)
}

// PreviewRecurring handles POST /v1/facilities/:id/slots/recurring/preview.
func (h *SlotHandler) PreviewRecurring(c echo.Context) error {
	req, ok := h.recurrence(c)
	if !ok {
		return nil
	}
	res, err := h.Slots.PreviewRecurringSlots(c.Request().Context(), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

type reasonRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// CancelSlot handles POST /v1/slots/:id/cancel.
func (h *SlotHandler) CancelSlot(c echo.Context) error {
	var body reasonRequest
	if !bindValid(c, &body) {
		return nil
	}
	agg, err := h.Slots.CancelSlot(c.Request().Context(), c.Param("id"), body.Reason)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"slot": agg.Slot, "reservation": agg.Reservation})
}

// GetSlot handles GET /v1/slots/:id.
func (h *SlotHandler) GetSlot(c echo.Context) error {
	slot, err := h.Slots.GetSlot(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, slot)
}

// ListSlots handles GET /v1/facilities/:id/slots?from=&to=.  Bounds are
// optional and read in the facility frame.
func (h *SlotHandler) ListSlots(c echo.Context) error {
	facilityID, ok := parseFacilityID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid facility id"})
	}
	ctx := c.Request().Context()
	loc, err := h.Slots.Location(ctx, facilityID)
	if err != nil {
		return respondError(c, err)
	}
	var from, to time.Time
	if s := c.QueryParam("from"); s != "" {
		if from, ok = parseLocal(s, loc); !ok {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid from"})
		}
	}
	if s := c.QueryParam("to"); s != "" {
		if to, ok = parseLocal(s, loc); !ok {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid to"})
		}
	}
	slots, err := h.Slots.ListSlots(ctx, facilityID, from, to)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"slots": slots})
}
