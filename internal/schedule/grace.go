package schedule

import "time"

// Grace is the buffer around a slot start.  Presence can be confirmed from
// the start, absence can be recorded Grace after it, and the booker may
// cancel until Grace before it.
const Grace = 15 * time.Minute

// Window is the set of reservation actions legal at a given instant, plus
// the boundaries so callers never redo the grace arithmetic.
type Window struct {
	CanConfirm        bool      `json:"can_confirm"`
	CanMarkNoShow     bool      `json:"can_mark_no_show"`
	CanBookerCancel   bool      `json:"can_booker_cancel"`
	ConfirmFrom       time.Time `json:"confirm_from"`
	NoShowFrom        time.Time `json:"no_show_from"`
	BookerCancelUntil time.Time `json:"booker_cancel_until"`
	Ended             bool      `json:"ended"`
}

// Evaluate computes the window for a slot [slotStart, slotEnd) at now.
// All comparisons are inclusive at the boundary.
func Evaluate(now, slotStart, slotEnd time.Time) Window {
	noShowFrom := slotStart.Add(Grace)
	cancelUntil := slotStart.Add(-Grace)
	return Window{
		CanConfirm:        !now.Before(slotStart),
		CanMarkNoShow:     !now.Before(noShowFrom),
		CanBookerCancel:   !now.After(cancelUntil),
		ConfirmFrom:       slotStart,
		NoShowFrom:        noShowFrom,
		BookerCancelUntil: cancelUntil,
		Ended:             !now.Before(slotEnd),
	}
}
