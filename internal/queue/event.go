// Package queue carries scheduling events from the core to the broker and
// from the broker to the notification log.  Events are published on a
// topic exchange; the routing key names the event.
package queue

import (
	"encoding/json"
	"fmt"
	"time"
)

// Routing keys of the scheduling events.
const (
	RKSlotCreated          = "slot.created"
	RKSlotCancelled        = "slot.cancelled"
	RKReservationCreated   = "reservation.created"
	RKReservationConfirmed = "reservation.confirmed"
	RKReservationCancelled = "reservation.cancelled"
	RKReservationNoShow    = "reservation.no_show"
)

// Bindings are the patterns the notification worker subscribes to.
var Bindings = []string{"slot.*", "reservation.*"}

// Who cancelled a reservation.
const (
	CancelledByBooker   = "booker"
	CancelledByFacility = "facility"
)

// SlotEvent is published when a slot is created or cancelled by the
// facility.  Times are facility-local wall clock in RFC 3339 form.
type SlotEvent struct {
	SlotID     string `json:"slot_id"`
	FacilityID uint64 `json:"facility_id"`
	Start      string `json:"start"`
	End        string `json:"end"`
	Price      string `json:"price"`
	Reason     string `json:"reason,omitempty"`
	OccurredAt string `json:"occurred_at"`
}

// ReservationEvent is published on every reservation transition.  It holds
// enough of the slot for a notification to be rendered without a lookup.
type ReservationEvent struct {
	ReservationID    string  `json:"reservation_id"`
	SlotID           string  `json:"slot_id"`
	FacilityID       uint64  `json:"facility_id"`
	BookerID         *uint64 `json:"booker_id,omitempty"`
	ManualBookerName string  `json:"manual_booker_name,omitempty"`
	Status           string  `json:"status"`
	CancelledBy      string  `json:"cancelled_by,omitempty"`
	Reason           string  `json:"reason,omitempty"`
	Start            string  `json:"start"`
	End              string  `json:"end"`
	OccurredAt       string  `json:"occurred_at"`
}

// FormatTime renders an event timestamp.
func FormatTime(t time.Time) string {
	return t.Format(time.RFC3339)
}

// Decode unmarshals an event payload.
func Decode[T any](b []byte) (T, error) {
	var t T
	if err := json.Unmarshal(b, &t); err != nil {
		var zero T
		return zero, fmt.Errorf("decode payload: %w", err)
	}
	return t, nil
}
