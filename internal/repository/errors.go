// Package repository defines the storage contracts of the scheduling core
// and their implementations.  The sentinel values below let the service
// layer distinguish failure scenarios without knowing which backend is in
// use.  For example, ErrOverlap signals that a slot insert lost the
// per-facility conflict check, while ErrSlotNotFree signals that a
// booking lost the race for a slot.
package repository

import (
	"errors"
	"fmt"

	"github.com/fieldz-pro/slot-scheduler/internal/model"
)

// ErrNotFound is returned when a facility, slot or reservation does not
// exist.  Handlers translate it into HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrOverlap is returned when a slot insert would overlap an active slot
// of the same facility.  It is usually wrapped in an *OverlapError.
var ErrOverlap = errors.New("slot overlaps an existing slot")

// ErrSlotNotFree is returned when a booking targets a slot that is not
// FREE, either because it is already booked or because the facility
// cancelled it.
var ErrSlotNotFree = errors.New("slot not free")

// ErrStaleWrite is returned when a row changed between the locked read
// and the conditional write of an aggregate update.
var ErrStaleWrite = errors.New("stale write")

// ErrInvariant is returned when stored data breaks the rule of at most one
// bound reservation per slot.  It should be unreachable.
var ErrInvariant = errors.New("storage invariant violated")

// OverlapError carries the slot that blocked an insert.
type OverlapError struct {
	Existing model.Slot
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("%v: %s", ErrOverlap, e.Existing.ID)
}

func (e *OverlapError) Unwrap() error { return ErrOverlap }
