package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// SlotStatus is the availability state of a slot.
type SlotStatus string

const (
	SlotFree                SlotStatus = "FREE"
	SlotBooked              SlotStatus = "BOOKED"
	SlotCancelledByFacility SlotStatus = "CANCELLED_BY_FACILITY"
)

// Slot is a fixed time window on a facility that can hold at most one
// active reservation.  Start and End are wall-clock values in the
// facility's location; they are never converted to UTC.
//
// Fields:
//  ID                 – UUID of the slot.
//  FacilityID         – terrain the slot belongs to.
//  Start, End         – half-open window [Start, End), End after Start.
//  Price              – flat, non-negative price of the slot.
//  Status             – FREE, BOOKED or CANCELLED_BY_FACILITY (terminal).
//  CancellationReason – reason given when the facility cancelled the slot.
//  CreatedAt          – creation timestamp.
//  UpdatedAt          – last status change.
type Slot struct {
	ID                 string          `json:"id"`
	FacilityID         uint64          `json:"facility_id"`
	Start              time.Time       `json:"start"`
	End                time.Time       `json:"end"`
	Price              decimal.Decimal `json:"price"`
	Status             SlotStatus      `json:"status"`
	CancellationReason *string         `json:"cancellation_reason,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// Active reports whether the slot still occupies its time range.  Only
// slots cancelled by the facility release the range for new slots.
func (s Slot) Active() bool {
	return s.Status != SlotCancelledByFacility
}
