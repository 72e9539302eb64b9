// Package service implements the scheduling commands: slot creation (single
// and recurring), slot cancellation, booking and the reservation state
// machine.  Services hold no state of their own; every check-then-act runs
// inside one atomic SlotStore call.
package service

import (
	"context"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fieldz-pro/slot-scheduler/internal/model"
	"github.com/fieldz-pro/slot-scheduler/internal/queue"
)

var tracer = otel.Tracer("github.com/fieldz-pro/slot-scheduler/internal/service")

// Notifier receives scheduling events after a command committed.  Publish
// must not block; delivery is best effort.
type Notifier interface {
	Publish(key string, payload any)
}

// NopNotifier discards every event.
type NopNotifier struct{}

func (NopNotifier) Publish(string, any) {}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// endSpan records err on span and ends it.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func slotEvent(s model.Slot, occurredAt string) queue.SlotEvent {
	ev := queue.SlotEvent{
		SlotID:     s.ID,
		FacilityID: s.FacilityID,
		Start:      queue.FormatTime(s.Start),
		End:        queue.FormatTime(s.End),
		Price:      s.Price.String(),
		OccurredAt: occurredAt,
	}
	if s.CancellationReason != nil {
		ev.Reason = *s.CancellationReason
	}
	return ev
}

func reservationEvent(r model.Reservation, s model.Slot, occurredAt string) queue.ReservationEvent {
	ev := queue.ReservationEvent{
		ReservationID:    r.ID,
		SlotID:           s.ID,
		FacilityID:       s.FacilityID,
		BookerID:         r.BookerID,
		ManualBookerName: r.ManualBookerName,
		Status:           string(r.Status),
		Start:            queue.FormatTime(s.Start),
		End:              queue.FormatTime(s.End),
		OccurredAt:       occurredAt,
	}
	switch r.Status {
	case model.ReservationCancelledByBooker:
		ev.CancelledBy = queue.CancelledByBooker
	case model.ReservationCancelledByFacility:
		ev.CancelledBy = queue.CancelledByFacility
	}
	if r.CancellationReason != nil {
		ev.Reason = *r.CancellationReason
	} else if r.NoShowReason != nil {
		ev.Reason = *r.NoShowReason
	}
	return ev
}

func strptr(s string) *string { return &s }

func trimmed(s string) string { return strings.TrimSpace(s) }

func formatID(id uint64) string { return strconv.FormatUint(id, 10) }
