package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fieldz-pro/slot-scheduler/internal/model"
	"github.com/fieldz-pro/slot-scheduler/internal/queue"
	"github.com/fieldz-pro/slot-scheduler/internal/repository"
	"github.com/fieldz-pro/slot-scheduler/internal/schedule"
)

// SlotManager creates, lists and cancels slots.
type SlotManager struct {
	store      repository.SlotStore
	facilities repository.FacilityDirectory
	overlap    *OverlapDetector
	clock      schedule.Clock
	events     Notifier
}

// NewSlotManager wires a SlotManager.  A nil clock means the system clock
// and a nil notifier discards events.
func NewSlotManager(store repository.SlotStore, facilities repository.FacilityDirectory, clock schedule.Clock, events Notifier) *SlotManager {
	if clock == nil {
		clock = schedule.SystemClock{}
	}
	if events == nil {
		events = NopNotifier{}
	}
	return &SlotManager{
		store:      store,
		facilities: facilities,
		overlap:    NewOverlapDetector(store),
		clock:      clock,
		events:     events,
	}
}

// SkippedOccurrence is an occurrence of a recurring request that was not
// created because it overlaps an active slot.
type SkippedOccurrence struct {
	Start             time.Time `json:"start"`
	End               time.Time `json:"end"`
	ConflictingSlotID string    `json:"conflicting_slot_id"`
	Reason            string    `json:"reason"`
}

// RecurrenceResult is the outcome of a recurring creation or preview.
// Created and Skipped are both in chronological order.  In a preview,
// Created holds the slots that would be created; they are not stored.
type RecurrenceResult struct {
	Created      []model.Slot        `json:"created"`
	Reservations []model.Reservation `json:"reservations,omitempty"`
	Skipped      []SkippedOccurrence `json:"skipped"`
}

// Location returns the time zone of a facility, used by callers to read
// wall-clock input in the facility frame.
func (m *SlotManager) Location(ctx context.Context, facilityID uint64) (*time.Location, error) {
	f, err := m.facility(ctx, facilityID)
	if err != nil {
		return nil, err
	}
	return f.Location(), nil
}

func (m *SlotManager) facility(ctx context.Context, id uint64) (*model.Facility, error) {
	f, err := m.facilities.GetFacility(ctx, id)
	if err != nil {
		return nil, translate("GetFacility", "facility", formatID(id), err)
	}
	return f, nil
}

// CreateSlot creates a FREE slot [start, end) on a facility.  It fails with
// ValidationError on a bad range or negative price, NotFoundError on an
// unknown facility and ConflictError when an active slot overlaps.
func (m *SlotManager) CreateSlot(ctx context.Context, facilityID uint64, start, end time.Time, price decimal.Decimal) (_ *model.Slot, err error) {
	ctx, span := startSpan(ctx, "SlotManager.CreateSlot", attribute.Int64("facility.id", int64(facilityID)))
	defer func() { endSpan(span, err) }()

	if !end.After(start) {
		return nil, invalid("end", "must be after start")
	}
	if err := checkPrice(price); err != nil {
		return nil, err
	}
	f, err := m.facility(ctx, facilityID)
	if err != nil {
		return nil, err
	}
	loc := f.Location()
	start, end = start.In(loc), end.In(loc)
	if !schedule.ValidRange(start, end) {
		return nil, invalid("end", "must be after start on the facility clock")
	}
	now := m.clock.Now()
	slot := &model.Slot{
		ID:         uuid.NewString(),
		FacilityID: f.ID,
		Start:      start,
		End:        end,
		Price:      price,
		Status:     model.SlotFree,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := m.store.CreateSlot(ctx, slot, nil); err != nil {
		return nil, translate("CreateSlot", "facility", formatID(facilityID), err)
	}
	m.events.Publish(queue.RKSlotCreated, slotEvent(*slot, queue.FormatTime(now)))
	return slot, nil
}

// expand validates a recurring request and returns its occurrences in the
// facility frame.
func (m *SlotManager) expand(ctx context.Context, req model.RecurrenceRequest) (*model.Facility, []schedule.Occurrence, error) {
	if req.Weekday < time.Sunday || req.Weekday > time.Saturday {
		return nil, nil, invalid("weekday", "must be a day of week")
	}
	if err := checkPrice(req.Price); err != nil {
		return nil, nil, err
	}
	if req.AutoBook && trimmed(req.ManualBookerName) == "" {
		return nil, nil, invalid("manual_booker_name", "required when auto_book is set")
	}
	at, err := schedule.ParseTimeOfDay(req.StartTime)
	if err != nil {
		return nil, nil, invalid("start_time", err.Error())
	}
	f, err := m.facility(ctx, req.FacilityID)
	if err != nil {
		return nil, nil, err
	}
	occ, err := schedule.Expand(req.Weekday, at, req.DurationMinutes, req.From, req.To, f.Location())
	switch {
	case errors.Is(err, schedule.ErrInvalidDuration):
		return nil, nil, invalid("duration_minutes", err.Error())
	case errors.Is(err, schedule.ErrInvalidDateRange), errors.Is(err, schedule.ErrRangeTooLong):
		return nil, nil, invalid("to", err.Error())
	case err != nil:
		return nil, nil, invalid("", err.Error())
	}
	for _, o := range occ {
		if !schedule.ValidRange(o.Start, o.End) {
			return nil, nil, invalid("duration_minutes", "occurrence would end before it starts")
		}
	}
	return f, occ, nil
}

// checkPrice rejects prices the DECIMAL(12,2) column would alter.
func checkPrice(price decimal.Decimal) error {
	switch {
	case price.IsNegative():
		return invalid("price", "must not be negative")
	case !price.Equal(price.Round(2)):
		return invalid("price", "must have at most 2 decimal places")
	case price.GreaterThanOrEqual(maxPrice):
		return invalid("price", "must be below 10000000000")
	}
	return nil
}

var maxPrice = decimal.New(1, 10)

// CreateRecurringSlots creates one slot per occurrence of req, in
// chronological order.  Occurrences that overlap an active slot are
// skipped and reported; the rest of the batch proceeds.  Each occurrence
// is atomic on its own.  With AutoBook set, every created slot is BOOKED
// with a PENDING walk-in reservation for req.ManualBookerName.
//
// On an infrastructure error the batch stops and the partial result is
// returned together with the error.
func (m *SlotManager) CreateRecurringSlots(ctx context.Context, req model.RecurrenceRequest) (_ *RecurrenceResult, err error) {
	ctx, span := startSpan(ctx, "SlotManager.CreateRecurringSlots",
		attribute.Int64("facility.id", int64(req.FacilityID)),
		attribute.Bool("auto_book", req.AutoBook),
	)
	defer func() { endSpan(span, err) }()

	f, occurrences, err := m.expand(ctx, req)
	if err != nil {
		return nil, err
	}
	res := &RecurrenceResult{Created: []model.Slot{}, Skipped: []SkippedOccurrence{}}
	name := trimmed(req.ManualBookerName)
	for _, occ := range occurrences {
		now := m.clock.Now()
		slot := &model.Slot{
			ID:         uuid.NewString(),
			FacilityID: f.ID,
			Start:      occ.Start,
			End:        occ.End,
			Price:      req.Price,
			Status:     model.SlotFree,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		var rsv *model.Reservation
		if req.AutoBook {
			slot.Status = model.SlotBooked
			rsv = &model.Reservation{
				ID:               uuid.NewString(),
				SlotID:           slot.ID,
				ManualBookerName: name,
				Status:           model.ReservationPending,
				CreatedAt:        now,
				UpdatedAt:        now,
			}
		}

		err := m.store.CreateSlot(ctx, slot, rsv)
		var oe *repository.OverlapError
		if errors.As(err, &oe) {
			res.Skipped = append(res.Skipped, SkippedOccurrence{
				Start:             occ.Start,
				End:               occ.End,
				ConflictingSlotID: oe.Existing.ID,
				Reason:            "overlaps an existing slot",
			})
			continue
		}
		if err != nil {
			return res, translate("CreateRecurringSlots", "facility", formatID(f.ID), err)
		}

		res.Created = append(res.Created, *slot)
		stamp := queue.FormatTime(now)
		m.events.Publish(queue.RKSlotCreated, slotEvent(*slot, stamp))
		if rsv != nil {
			res.Reservations = append(res.Reservations, *rsv)
			m.events.Publish(queue.RKReservationCreated, reservationEvent(*rsv, *slot, stamp))
		}
	}
	span.SetAttributes(
		attribute.Int("slots.created", len(res.Created)),
		attribute.Int("slots.skipped", len(res.Skipped)),
	)
	return res, nil
}

// PreviewRecurringSlots reports what CreateRecurringSlots would do right
// now without storing anything.  Occurrences last at most a day and recur
// weekly, so they never overlap each other.
func (m *SlotManager) PreviewRecurringSlots(ctx context.Context, req model.RecurrenceRequest) (_ *RecurrenceResult, err error) {
	ctx, span := startSpan(ctx, "SlotManager.PreviewRecurringSlots", attribute.Int64("facility.id", int64(req.FacilityID)))
	defer func() { endSpan(span, err) }()

	f, occurrences, err := m.expand(ctx, req)
	if err != nil {
		return nil, err
	}
	res := &RecurrenceResult{Created: []model.Slot{}, Skipped: []SkippedOccurrence{}}
	for _, occ := range occurrences {
		existing, err := m.overlap.Conflicts(ctx, f.ID, occ.Start, occ.End)
		if err != nil {
			return nil, translate("PreviewRecurringSlots", "facility", formatID(f.ID), err)
		}
		if len(existing) > 0 {
			res.Skipped = append(res.Skipped, SkippedOccurrence{
				Start:             occ.Start,
				End:               occ.End,
				ConflictingSlotID: existing[0].ID,
				Reason:            "overlaps an existing slot",
			})
			continue
		}
		status := model.SlotFree
		if req.AutoBook {
			status = model.SlotBooked
		}
		res.Created = append(res.Created, model.Slot{
			FacilityID: f.ID,
			Start:      occ.Start,
			End:        occ.End,
			Price:      req.Price,
			Status:     status,
		})
	}
	return res, nil
}

// CancelSlot withdraws a slot from the facility's schedule.  The slot
// becomes CANCELLED_BY_FACILITY, which is terminal and releases its time
// range.  A PENDING reservation on it is cancelled by the facility with
// the same reason.  A slot whose reservation is already CONFIRMED or
// NO_SHOW cannot be cancelled.
func (m *SlotManager) CancelSlot(ctx context.Context, slotID, reason string) (_ *repository.Aggregate, err error) {
	ctx, span := startSpan(ctx, "SlotManager.CancelSlot", attribute.String("slot.id", slotID))
	defer func() { endSpan(span, err) }()

	reason = trimmed(reason)
	if reason == "" {
		return nil, invalid("reason", "required")
	}
	now := m.clock.Now()
	var cancelledRsv bool
	agg, err := m.store.UpdateSlot(ctx, slotID, func(agg *repository.Aggregate) error {
		if agg.Slot.Status == model.SlotCancelledByFacility {
			return &ConflictError{Reason: "slot already cancelled"}
		}
		if r := agg.Reservation; r != nil {
			if r.Status != model.ReservationPending {
				return &ConflictError{Reason: "slot has a settled reservation"}
			}
			r.Status = model.ReservationCancelledByFacility
			r.CancelledAt = &now
			r.CancellationReason = strptr(reason)
			r.UpdatedAt = now
			cancelledRsv = true
		}
		agg.Slot.Status = model.SlotCancelledByFacility
		agg.Slot.CancellationReason = strptr(reason)
		agg.Slot.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, translate("CancelSlot", "slot", slotID, err)
	}
	stamp := queue.FormatTime(now)
	m.events.Publish(queue.RKSlotCancelled, slotEvent(*agg.Slot, stamp))
	if cancelledRsv {
		m.events.Publish(queue.RKReservationCancelled, reservationEvent(*agg.Reservation, *agg.Slot, stamp))
	}
	return agg, nil
}

// GetSlot returns a slot by ID.
func (m *SlotManager) GetSlot(ctx context.Context, slotID string) (*model.Slot, error) {
	s, err := m.store.GetSlot(ctx, slotID)
	if err != nil {
		return nil, translate("GetSlot", "slot", slotID, err)
	}
	return s, nil
}

// ListSlots returns the slots of a facility intersecting [from, to),
// ordered by start.  Zero bounds are open.  Cancelled slots are included
// so callers can show them as unavailable.
func (m *SlotManager) ListSlots(ctx context.Context, facilityID uint64, from, to time.Time) ([]model.Slot, error) {
	if !from.IsZero() && !to.IsZero() && !to.After(from) {
		return nil, invalid("to", "must be after from")
	}
	f, err := m.facility(ctx, facilityID)
	if err != nil {
		return nil, err
	}
	loc := f.Location()
	if !from.IsZero() {
		from = from.In(loc)
	}
	if !to.IsZero() {
		to = to.In(loc)
	}
	slots, err := m.store.ListSlots(ctx, facilityID, from, to)
	if err != nil {
		return nil, translate("ListSlots", "facility", formatID(facilityID), err)
	}
	return slots, nil
}
