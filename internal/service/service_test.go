package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fieldz-pro/slot-scheduler/internal/model"
	"github.com/fieldz-pro/slot-scheduler/internal/repository"
	"github.com/fieldz-pro/slot-scheduler/internal/schedule"
)

var (
	court = model.Facility{ID: 1, ClubID: 10, Name: "Court A", Sport: "padel", Timezone: "Africa/Algiers"}
	pitch = model.Facility{ID: 2, ClubID: 10, Name: "Pitch 5", Sport: "football5", Timezone: "UTC"}

	operator = model.Actor{UserID: 900, Role: model.RoleOperator}
	alice    = model.Actor{UserID: 1, Role: model.RoleBooker}
	bob      = model.Actor{UserID: 2, Role: model.RoleBooker}
)

// local builds a wall-clock time on the court.
func local(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, court.Location())
}

type published struct {
	key     string
	payload any
}

type recorder struct {
	mu     sync.Mutex
	events []published
}

func (r *recorder) Publish(key string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, published{key, payload})
}

func (r *recorder) keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.key)
	}
	return out
}

type env struct {
	store  *repository.MemoryStore
	clock  *schedule.FixedClock
	events *recorder
	slots  *SlotManager
	rsv    *Reservations
}

func newEnv(t *testing.T, now time.Time) *env {
	t.Helper()
	store := repository.NewMemoryStore()
	clock := schedule.NewFixedClock(now)
	events := &recorder{}
	dir := repository.NewMemoryFacilities(court, pitch)
	return &env{
		store:  store,
		clock:  clock,
		events: events,
		slots:  NewSlotManager(store, dir, clock, events),
		rsv:    NewReservations(store, clock, events),
	}
}

func price(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func ptr[T any](v T) *T { return &v }

func mustSlot(t *testing.T, e *env, start, end time.Time) *model.Slot {
	t.Helper()
	s, err := e.slots.CreateSlot(t.Context(), court.ID, start, end, price(2500))
	if err != nil {
		t.Fatalf("CreateSlot: %v", err)
	}
	return s
}

func mustBook(t *testing.T, e *env, slotID string, actor model.Actor) *Booking {
	t.Helper()
	b, err := e.rsv.BookSlot(t.Context(), actor, slotID, model.Booker{AccountID: ptr(actor.UserID)})
	if err != nil {
		t.Fatalf("BookSlot: %v", err)
	}
	return b
}

func wantErr[T error](t *testing.T, err error) T {
	t.Helper()
	var target T
	if !errors.As(err, &target) {
		t.Fatalf("want %T, got %v", target, err)
	}
	return target
}

func ctxBG() context.Context { return context.Background() }
