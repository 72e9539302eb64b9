package middleware

// identity.go turns the claims stored by JWTAuth into the actor the
// scheduling services work with.

import (
	"fmt"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/fieldz-pro/slot-scheduler/internal/model"
)

// userID converts the "user_id" context value to a uint64.  Depending on
// how the token was minted the subject arrives as a string or a JSON
// number.
func userID(c echo.Context) (uint64, bool) {
	switch t := c.Get("user_id").(type) {
	case uint64:
		return t, true
	case int:
		return uint64(t), t >= 0
	case int64:
		return uint64(t), t >= 0
	case float64:
		return uint64(t), t >= 0
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}

// Actor returns the authenticated caller.  ok is false when the request
// carries no usable subject or role.
func Actor(c echo.Context) (model.Actor, bool) {
	id, ok := userID(c)
	if !ok {
		return model.Actor{}, false
	}
	role, _ := c.Get("role").(string)
	if role != model.RoleOperator && role != model.RoleBooker {
		return model.Actor{}, false
	}
	return model.Actor{UserID: id, Role: role}, true
}

// currentUserID is the rate limiter's view of the caller.
func currentUserID(c echo.Context) string {
	if id, ok := userID(c); ok {
		return fmt.Sprint(id)
	}
	return "anon"
}
