package repository

import (
	"context"
	"time"

	"github.com/fieldz-pro/slot-scheduler/internal/model"
)

// Aggregate is a slot together with the reservation currently bound to it
// (nil when the slot has never been booked or its last reservation was
// cancelled).  Slot and reservation are always mutated as one unit.
type Aggregate struct {
	Slot        *model.Slot
	Reservation *model.Reservation
}

// SlotStore owns slots and reservations.  Every method that mutates runs
// its read-check-write sequence atomically with respect to concurrent
// callers, so the overlap check and the booking check never race.
type SlotStore interface {
	// CreateSlot inserts slot, and rsv bound to it when rsv is non-nil,
	// provided no active slot of the same facility overlaps
	// [slot.Start, slot.End).  On conflict it returns an *OverlapError and
	// stores nothing.
	CreateSlot(ctx context.Context, slot *model.Slot, rsv *model.Reservation) error

	// GetSlot returns the slot with the given ID or ErrNotFound.
	GetSlot(ctx context.Context, id string) (*model.Slot, error)

	// ListSlots returns the slots of a facility that intersect [from, to),
	// ordered by start.  A zero bound is open.
	ListSlots(ctx context.Context, facilityID uint64, from, to time.Time) ([]model.Slot, error)

	// FindOverlapping returns the active slots of a facility that overlap
	// [start, end).
	FindOverlapping(ctx context.Context, facilityID uint64, start, end time.Time) ([]model.Slot, error)

	// GetReservation returns the reservation with the given ID or ErrNotFound.
	GetReservation(ctx context.Context, id string) (*model.Reservation, error)

	// ListReservationsByBooker returns the reservations of an account,
	// newest first.
	ListReservationsByBooker(ctx context.Context, bookerID uint64) ([]model.Reservation, error)

	// UpdateSlot locks the slot and its bound reservation, passes them to
	// fn and persists whatever fn changed.  fn may set agg.Reservation to
	// a new reservation to insert it.  When fn returns an error nothing is
	// written and that error is returned unchanged.
	UpdateSlot(ctx context.Context, slotID string, fn func(agg *Aggregate) error) (*Aggregate, error)

	// UpdateReservation is UpdateSlot keyed by reservation ID: it locks the
	// reservation and its slot.  fn must not replace agg.Reservation.
	UpdateReservation(ctx context.Context, reservationID string, fn func(agg *Aggregate) error) (*Aggregate, error)
}

// FacilityDirectory exposes the facility metadata owned by the external
// club/terrain service.
type FacilityDirectory interface {
	GetFacility(ctx context.Context, id uint64) (*model.Facility, error)
}
