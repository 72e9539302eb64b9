package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/fieldz-pro/slot-scheduler/internal/middleware"
	"github.com/fieldz-pro/slot-scheduler/internal/model"
	"github.com/fieldz-pro/slot-scheduler/internal/service"
)

// respondError maps service errors to the JSON error responses of the API.
func respondError(c echo.Context, err error) error {
	var (
		ve *service.ValidationError
		ce *service.ConflictError
		pv *service.PolicyViolation
		nf *service.NotFoundError
		iv *service.InvariantViolation
	)
	switch {
	case errors.As(err, &ve):
		body := echo.Map{"error": ve.Reason}
		if ve.Field != "" {
			body["field"] = ve.Field
		}
		return c.JSON(http.StatusBadRequest, body)
	case errors.As(err, &ce):
		body := echo.Map{"error": ce.Reason}
		if ce.ConflictingSlotID != "" {
			body["conflicting_slot_id"] = ce.ConflictingSlotID
		}
		return c.JSON(http.StatusConflict, body)
	case errors.As(err, &pv):
		body := echo.Map{"error": pv.Error(), "action": pv.Action}
		if pv.AvailableFrom != nil {
			body["available_from"] = pv.AvailableFrom.Format(time.RFC3339)
		}
		if pv.AvailableUntil != nil {
			body["available_until"] = pv.AvailableUntil.Format(time.RFC3339)
		}
		return c.JSON(http.StatusUnprocessableEntity, body)
	case errors.As(err, &nf):
		return c.JSON(http.StatusNotFound, echo.Map{"error": nf.Resource + " not found"})
	case errors.Is(err, service.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.As(err, &iv):
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	c.Logger().Errorf("request failed: %v", err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

// bindValid binds the request body into v and runs the validator.  On
// failure it writes 400 and returns false.
func bindValid(c echo.Context, v interface{}) bool {
	if err := c.Bind(v); err != nil {
		_ = c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
		return false
	}
	if err := c.Validate(v); err != nil {
		_ = c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		return false
	}
	return true
}

// actorOr401 returns the caller or writes 401.
func actorOr401(c echo.Context) (model.Actor, bool) {
	a, ok := middleware.Actor(c)
	if !ok {
		_ = c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	return a, ok
}

// parseFacilityID reads the :id path parameter as a facility ID.
func parseFacilityID(c echo.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

var wallClockLayouts = []string{"2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02 15:04:05", "2006-01-02 15:04"}

// parseLocal reads a timestamp in the facility frame.  Values without an
// offset are wall clock in loc; RFC 3339 values are converted to loc.
func parseLocal(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.In(loc), true
	}
	for _, layout := range wallClockLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseDate reads a calendar date "YYYY-MM-DD".
func parseDate(s string) (time.Time, bool) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	return t, err == nil
}

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday, "wednesday": time.Wednesday,
	"thursday": time.Thursday, "friday": time.Friday, "saturday": time.Saturday,
}
