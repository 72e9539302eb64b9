package model

import "time"

// ReservationStatus is the lifecycle state of a reservation.  PENDING is
// the only non-terminal state.
type ReservationStatus string

const (
	ReservationPending             ReservationStatus = "PENDING"
	ReservationConfirmed           ReservationStatus = "CONFIRMED"
	ReservationNoShow              ReservationStatus = "NO_SHOW"
	ReservationCancelledByBooker   ReservationStatus = "CANCELLED_BY_BOOKER"
	ReservationCancelledByFacility ReservationStatus = "CANCELLED_BY_FACILITY"
)

// Terminal reports whether no further transition is allowed.
func (s ReservationStatus) Terminal() bool {
	return s != ReservationPending
}

// Cancelled reports whether the status is one of the two cancellations.
func (s ReservationStatus) Cancelled() bool {
	return s == ReservationCancelledByBooker || s == ReservationCancelledByFacility
}

// Reservation records a booker's claim on a single slot.  The booker is
// either a registered account (BookerID) or a walk-in name typed by the
// facility operator (ManualBookerName); exactly one of the two is set.
//
// Fields:
//  ID                 – UUID of the reservation.
//  SlotID             – slot the reservation is bound to.
//  BookerID           – account reference of the booker (nil for walk-ins).
//  ManualBookerName   – free-text walk-in name (empty for accounts).
//  Status             – lifecycle state.
//  CancelledAt        – set only on cancellation.
//  CancellationReason – required when the facility cancels.
//  NoShowReason       – optional note recorded with a no-show.
//  CreatedAt          – creation timestamp.
//  UpdatedAt          – last transition.
type Reservation struct {
	ID                 string            `json:"id"`
	SlotID             string            `json:"slot_id"`
	BookerID           *uint64           `json:"booker_id,omitempty"`
	ManualBookerName   string            `json:"manual_booker_name,omitempty"`
	Status             ReservationStatus `json:"status"`
	CancelledAt        *time.Time        `json:"cancelled_at,omitempty"`
	CancellationReason *string           `json:"cancellation_reason,omitempty"`
	NoShowReason       *string           `json:"no_show_reason,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// Booker identifies who a reservation is made for.
type Booker struct {
	AccountID  *uint64
	ManualName string
}

// Walkin reports whether the booker is a free-text walk-in name.
func (b Booker) Walkin() bool { return b.AccountID == nil }
