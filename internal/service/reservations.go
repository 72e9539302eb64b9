package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fieldz-pro/slot-scheduler/internal/model"
	"github.com/fieldz-pro/slot-scheduler/internal/queue"
	"github.com/fieldz-pro/slot-scheduler/internal/repository"
	"github.com/fieldz-pro/slot-scheduler/internal/schedule"
)

// Booking is a reservation together with the slot it holds.
type Booking struct {
	Reservation model.Reservation `json:"reservation"`
	Slot        model.Slot        `json:"slot"`
}

func bookingOf(agg *repository.Aggregate) *Booking {
	return &Booking{Reservation: *agg.Reservation, Slot: *agg.Slot}
}

// Actions is the set of transitions legal on a reservation right now.
type Actions struct {
	ReservationID string                  `json:"reservation_id"`
	Status        model.ReservationStatus `json:"status"`
	schedule.Window
}

// Reservations books slots and drives the reservation lifecycle:
//
//	PENDING -> CONFIRMED              operator, from slot start
//	PENDING -> NO_SHOW                operator, from slot start + Grace
//	PENDING -> CANCELLED_BY_BOOKER    booker, until slot start - Grace
//	PENDING -> CANCELLED_BY_FACILITY  operator, any time, with a reason
//
// Every target state is terminal.  Cancellations free the slot.
type Reservations struct {
	store  repository.SlotStore
	clock  schedule.Clock
	events Notifier
}

// NewReservations wires the state machine.  A nil clock means the system
// clock and a nil notifier discards events.
func NewReservations(store repository.SlotStore, clock schedule.Clock, events Notifier) *Reservations {
	if clock == nil {
		clock = schedule.SystemClock{}
	}
	if events == nil {
		events = NopNotifier{}
	}
	return &Reservations{store: store, clock: clock, events: events}
}

// BookSlot creates a PENDING reservation on a FREE slot and marks the slot
// BOOKED, atomically.  Bookers book for their own account; operators book
// walk-ins by name or on behalf of an account.
func (s *Reservations) BookSlot(ctx context.Context, actor model.Actor, slotID string, booker model.Booker) (_ *Booking, err error) {
	ctx, span := startSpan(ctx, "Reservations.BookSlot", attribute.String("slot.id", slotID))
	defer func() { endSpan(span, err) }()

	name := trimmed(booker.ManualName)
	switch {
	case booker.AccountID == nil && name == "":
		return nil, invalid("booker", "an account or a walk-in name is required")
	case booker.AccountID != nil && name != "":
		return nil, invalid("booker", "account and walk-in name are exclusive")
	case booker.Walkin() && !actor.Operator():
		return nil, ErrForbidden
	case !booker.Walkin() && !actor.Operator() && *booker.AccountID != actor.UserID:
		return nil, ErrForbidden
	}

	now := s.clock.Now()
	agg, err := s.store.UpdateSlot(ctx, slotID, func(agg *repository.Aggregate) error {
		if agg.Slot.Status != model.SlotFree {
			return repository.ErrSlotNotFree
		}
		if !now.Before(agg.Slot.End) {
			return invalid("slot", "has already ended")
		}
		var account *uint64
		if booker.AccountID != nil {
			id := *booker.AccountID
			account = &id
		}
		agg.Reservation = &model.Reservation{
			ID:               uuid.NewString(),
			SlotID:           agg.Slot.ID,
			BookerID:         account,
			ManualBookerName: name,
			Status:           model.ReservationPending,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		agg.Slot.Status = model.SlotBooked
		agg.Slot.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, translate("BookSlot", "slot", slotID, err)
	}
	s.events.Publish(queue.RKReservationCreated, reservationEvent(*agg.Reservation, *agg.Slot, queue.FormatTime(now)))
	return bookingOf(agg), nil
}

// transition applies fn to a PENDING reservation and publishes key on
// success.  fn receives the grace window evaluated at now.
func (s *Reservations) transition(ctx context.Context, op, reservationID, key string, fn func(agg *repository.Aggregate, w schedule.Window, now time.Time) error) (_ *Booking, err error) {
	ctx, span := startSpan(ctx, "Reservations."+op, attribute.String("reservation.id", reservationID))
	defer func() { endSpan(span, err) }()

	now := s.clock.Now()
	agg, err := s.store.UpdateReservation(ctx, reservationID, func(agg *repository.Aggregate) error {
		if agg.Reservation.Status != model.ReservationPending {
			return errNotPending
		}
		if err := fn(agg, schedule.Evaluate(now, agg.Slot.Start, agg.Slot.End), now); err != nil {
			return err
		}
		agg.Reservation.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, translate(op, "reservation", reservationID, err)
	}
	s.events.Publish(key, reservationEvent(*agg.Reservation, *agg.Slot, queue.FormatTime(now)))
	return bookingOf(agg), nil
}

// Confirm records that the booker showed up.  Allowed from slot start.
func (s *Reservations) Confirm(ctx context.Context, actor model.Actor, reservationID string) (*Booking, error) {
	if !actor.Operator() {
		return nil, ErrForbidden
	}
	return s.transition(ctx, "Confirm", reservationID, queue.RKReservationConfirmed,
		func(agg *repository.Aggregate, w schedule.Window, _ time.Time) error {
			if !w.CanConfirm {
				return notBefore("confirm", w.ConfirmFrom)
			}
			agg.Reservation.Status = model.ReservationConfirmed
			return nil
		})
}

// MarkNoShow records that the booker did not show up.  Allowed from slot
// start + Grace.  note is optional.
func (s *Reservations) MarkNoShow(ctx context.Context, actor model.Actor, reservationID, note string) (*Booking, error) {
	if !actor.Operator() {
		return nil, ErrForbidden
	}
	note = trimmed(note)
	return s.transition(ctx, "MarkNoShow", reservationID, queue.RKReservationNoShow,
		func(agg *repository.Aggregate, w schedule.Window, _ time.Time) error {
			if !w.CanMarkNoShow {
				return notBefore("no-show", w.NoShowFrom)
			}
			agg.Reservation.Status = model.ReservationNoShow
			if note != "" {
				agg.Reservation.NoShowReason = strptr(note)
			}
			return nil
		})
}

// CancelByBooker cancels the caller's own reservation.  Allowed until slot
// start - Grace.  reason is optional.  The slot becomes FREE again.
func (s *Reservations) CancelByBooker(ctx context.Context, actor model.Actor, reservationID, reason string) (*Booking, error) {
	reason = trimmed(reason)
	return s.transition(ctx, "CancelByBooker", reservationID, queue.RKReservationCancelled,
		func(agg *repository.Aggregate, w schedule.Window, now time.Time) error {
			r := agg.Reservation
			if r.BookerID == nil || *r.BookerID != actor.UserID {
				return ErrForbidden
			}
			if !w.CanBookerCancel {
				return notAfter("cancel", w.BookerCancelUntil)
			}
			r.Status = model.ReservationCancelledByBooker
			r.CancelledAt = &now
			if reason != "" {
				r.CancellationReason = strptr(reason)
			}
			release(agg.Slot, now)
			return nil
		})
}

// CancelByFacility cancels a reservation on the facility's initiative, at
// any time, with a mandatory reason.  The slot becomes FREE again.
func (s *Reservations) CancelByFacility(ctx context.Context, actor model.Actor, reservationID, reason string) (*Booking, error) {
	if !actor.Operator() {
		return nil, ErrForbidden
	}
	reason = trimmed(reason)
	if reason == "" {
		return nil, invalid("reason", "required")
	}
	return s.transition(ctx, "CancelByFacility", reservationID, queue.RKReservationCancelled,
		func(agg *repository.Aggregate, _ schedule.Window, now time.Time) error {
			r := agg.Reservation
			r.Status = model.ReservationCancelledByFacility
			r.CancelledAt = &now
			r.CancellationReason = strptr(reason)
			release(agg.Slot, now)
			return nil
		})
}

// release frees a booked slot.  A slot cancelled by the facility stays
// cancelled.
func release(slot *model.Slot, now time.Time) {
	if slot.Status == model.SlotBooked {
		slot.Status = model.SlotFree
		slot.UpdatedAt = now
	}
}

// Get returns a reservation with its slot.  Bookers may only read their
// own reservations.
func (s *Reservations) Get(ctx context.Context, actor model.Actor, reservationID string) (*Booking, error) {
	r, err := s.store.GetReservation(ctx, reservationID)
	if err != nil {
		return nil, translate("GetReservation", "reservation", reservationID, err)
	}
	if !actor.Operator() && (r.BookerID == nil || *r.BookerID != actor.UserID) {
		return nil, ErrForbidden
	}
	slot, err := s.store.GetSlot(ctx, r.SlotID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			err = repository.ErrInvariant
		}
		return nil, translate("GetReservation", "slot", r.SlotID, err)
	}
	return &Booking{Reservation: *r, Slot: *slot}, nil
}

// Actions evaluates which transitions are legal on a reservation now.  A
// reservation that left PENDING has no legal transition.
func (s *Reservations) Actions(ctx context.Context, actor model.Actor, reservationID string) (*Actions, error) {
	b, err := s.Get(ctx, actor, reservationID)
	if err != nil {
		return nil, err
	}
	w := schedule.Evaluate(s.clock.Now(), b.Slot.Start, b.Slot.End)
	if b.Reservation.Status != model.ReservationPending {
		w.CanConfirm, w.CanMarkNoShow, w.CanBookerCancel = false, false, false
	}
	return &Actions{ReservationID: b.Reservation.ID, Status: b.Reservation.Status, Window: w}, nil
}

// ListMine returns the actor's own reservations, newest first.
func (s *Reservations) ListMine(ctx context.Context, actor model.Actor) ([]model.Reservation, error) {
	out, err := s.store.ListReservationsByBooker(ctx, actor.UserID)
	if err != nil {
		return nil, translate("ListMine", "booker", formatID(actor.UserID), err)
	}
	if out == nil {
		out = []model.Reservation{}
	}
	return out, nil
}
