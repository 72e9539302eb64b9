package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/labstack/gommon/log"

	"github.com/fieldz-pro/slot-scheduler/internal/repository"
)

// ValidationError reports malformed input.  Nothing was mutated.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// ConflictError reports that the request collides with current state: an
// overlapping slot, a slot that is not free, or a reservation that already
// left PENDING.
type ConflictError struct {
	Reason            string
	ConflictingSlotID string
}

func (e *ConflictError) Error() string {
	if e.ConflictingSlotID != "" {
		return fmt.Sprintf("%s (slot %s)", e.Reason, e.ConflictingSlotID)
	}
	return e.Reason
}

var errNotPending = &ConflictError{Reason: "reservation is not pending"}

// PolicyViolation reports an action attempted outside its time window.
// Exactly one of AvailableFrom (earliest legal instant) and AvailableUntil
// (latest legal instant) is set.
type PolicyViolation struct {
	Action         string
	AvailableFrom  *time.Time
	AvailableUntil *time.Time
}

func (e *PolicyViolation) Error() string {
	if e.AvailableUntil != nil {
		return fmt.Sprintf("%s is only allowed until %s", e.Action, e.AvailableUntil.Format(time.RFC3339))
	}
	if e.AvailableFrom != nil {
		return fmt.Sprintf("%s is only allowed from %s", e.Action, e.AvailableFrom.Format(time.RFC3339))
	}
	return e.Action + " is not allowed now"
}

func notBefore(action string, t time.Time) error {
	return &PolicyViolation{Action: action, AvailableFrom: &t}
}

func notAfter(action string, t time.Time) error {
	return &PolicyViolation{Action: action, AvailableUntil: &t}
}

// NotFoundError reports an unknown facility, slot or reservation.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// ErrForbidden is returned when the actor may not act on the target, e.g.
// a booker cancelling someone else's reservation.
var ErrForbidden = errors.New("forbidden")

// InvariantViolation reports stored state that breaks a scheduling
// invariant.  It is never caused by the caller.
type InvariantViolation struct {
	Op  string
	Err error
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("invariant violation in %s: %v", e.Op, e.Err)
}

func (e *InvariantViolation) Unwrap() error { return e.Err }

// translate maps storage errors to service errors.  Errors that are already
// service errors (returned from update callbacks) pass through unchanged.
func translate(op, resource, id string, err error) error {
	if err == nil {
		return nil
	}
	var oe *repository.OverlapError
	switch {
	case errors.As(err, &oe):
		return &ConflictError{Reason: "slot overlaps an existing slot", ConflictingSlotID: oe.Existing.ID}
	case errors.Is(err, repository.ErrNotFound):
		return &NotFoundError{Resource: resource, ID: id}
	case errors.Is(err, repository.ErrSlotNotFree):
		return &ConflictError{Reason: "slot not free", ConflictingSlotID: id}
	case errors.Is(err, repository.ErrStaleWrite):
		return &ConflictError{Reason: "concurrent update, please retry"}
	case errors.Is(err, repository.ErrInvariant):
		log.Errorf("service: %s: %v", op, err)
		return &InvariantViolation{Op: op, Err: err}
	}
	return err
}
