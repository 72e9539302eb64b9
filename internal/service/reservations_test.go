package service

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fieldz-pro/slot-scheduler/internal/model"
	"github.com/fieldz-pro/slot-scheduler/internal/queue"
)

func TestEndToEndScenario(t *testing.T) {
	e := newEnv(t, local(2025, 6, 1, 12, 0))
	s, err := e.slots.CreateSlot(t.Context(), court.ID, local(2025, 6, 2, 18, 0), local(2025, 6, 2, 19, 0), price(2500))
	if err != nil {
		t.Fatal(err)
	}
	if s.Status != model.SlotFree {
		t.Fatalf("new slot status %s", s.Status)
	}

	b := mustBook(t, e, s.ID, alice)
	if b.Reservation.Status != model.ReservationPending || b.Slot.Status != model.SlotBooked {
		t.Fatalf("after booking: %s / %s", b.Reservation.Status, b.Slot.Status)
	}

	e.clock.Set(local(2025, 6, 2, 18, 0))
	c, err := e.rsv.Confirm(t.Context(), operator, b.Reservation.ID)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if c.Reservation.Status != model.ReservationConfirmed || c.Slot.Status != model.SlotBooked {
		t.Fatalf("after confirm: %s / %s", c.Reservation.Status, c.Slot.Status)
	}

	_, err = e.rsv.BookSlot(t.Context(), bob, s.ID, model.Booker{AccountID: ptr(bob.UserID)})
	ce := wantErr[*ConflictError](t, err)
	if ce.Reason != "slot not free" {
		t.Fatalf("unexpected reason %q", ce.Reason)
	}

	want := []string{queue.RKSlotCreated, queue.RKReservationCreated, queue.RKReservationConfirmed}
	got := e.events.keys()
	if len(got) != len(want) {
		t.Fatalf("events %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events %v, want %v", got, want)
		}
	}
}

func TestGraceBoundaries(t *testing.T) {
	start := local(2025, 6, 2, 18, 0)
	cases := []struct {
		name   string
		now    time.Time
		act    func(e *env, id string) error
		policy bool
	}{
		{"confirm one second early", start.Add(-time.Second), confirm, true},
		{"confirm at start", start, confirm, false},
		{"no-show before grace", start.Add(14*time.Minute + 59*time.Second), noShow, true},
		{"no-show at grace", start.Add(15 * time.Minute), noShow, false},
		{"booker cancel at cutoff", start.Add(-15 * time.Minute), bookerCancel, false},
		{"booker cancel after cutoff", start.Add(-14*time.Minute - 59*time.Second), bookerCancel, true},
		{"facility cancel before start", start.Add(-48 * time.Hour), facilityCancel, false},
		{"facility cancel after end", start.Add(3 * time.Hour), facilityCancel, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newEnv(t, local(2025, 6, 1, 9, 0))
			s := mustSlot(t, e, start, start.Add(time.Hour))
			b := mustBook(t, e, s.ID, alice)
			e.clock.Set(tc.now)

			err := tc.act(e, b.Reservation.ID)
			if !tc.policy {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			pv := wantErr[*PolicyViolation](t, err)
			if pv.AvailableFrom == nil && pv.AvailableUntil == nil {
				t.Fatal("policy violation carries no boundary")
			}
			r, _ := e.store.GetReservation(t.Context(), b.Reservation.ID)
			if r.Status != model.ReservationPending {
				t.Fatalf("rejected transition mutated status to %s", r.Status)
			}
		})
	}
}

func confirm(e *env, id string) error {
	_, err := e.rsv.Confirm(ctxBG(), operator, id)
	return err
}

func noShow(e *env, id string) error {
	_, err := e.rsv.MarkNoShow(ctxBG(), operator, id, "")
	return err
}

func bookerCancel(e *env, id string) error {
	_, err := e.rsv.CancelByBooker(ctxBG(), alice, id, "")
	return err
}

func facilityCancel(e *env, id string) error {
	_, err := e.rsv.CancelByFacility(ctxBG(), operator, id, "maintenance")
	return err
}

func TestPolicyViolationBoundaries(t *testing.T) {
	start := local(2025, 6, 2, 18, 0)
	e := newEnv(t, start.Add(-time.Hour))
	s := mustSlot(t, e, start, start.Add(time.Hour))
	b := mustBook(t, e, s.ID, alice)

	_, err := e.rsv.Confirm(t.Context(), operator, b.Reservation.ID)
	pv := wantErr[*PolicyViolation](t, err)
	if pv.AvailableFrom == nil || !pv.AvailableFrom.Equal(start) {
		t.Fatalf("confirm boundary %v", pv.AvailableFrom)
	}

	_, err = e.rsv.MarkNoShow(t.Context(), operator, b.Reservation.ID, "")
	pv = wantErr[*PolicyViolation](t, err)
	if pv.AvailableFrom == nil || !pv.AvailableFrom.Equal(start.Add(15*time.Minute)) {
		t.Fatalf("no-show boundary %v", pv.AvailableFrom)
	}

	e.clock.Set(start.Add(-10 * time.Minute))
	_, err = e.rsv.CancelByBooker(t.Context(), alice, b.Reservation.ID, "")
	pv = wantErr[*PolicyViolation](t, err)
	if pv.AvailableUntil == nil || !pv.AvailableUntil.Equal(start.Add(-15*time.Minute)) {
		t.Fatalf("cancel boundary %v", pv.AvailableUntil)
	}
}

func TestTerminalStatesRejectTransitions(t *testing.T) {
	start := local(2025, 6, 2, 18, 0)
	e := newEnv(t, start.Add(20*time.Minute))
	s := mustSlot(t, e, start, start.Add(time.Hour))
	b := mustBook(t, e, s.ID, alice)

	n, err := e.rsv.MarkNoShow(t.Context(), operator, b.Reservation.ID, " did not answer ")
	if err != nil {
		t.Fatal(err)
	}
	if n.Reservation.NoShowReason == nil || *n.Reservation.NoShowReason != "did not answer" {
		t.Fatalf("no-show note %v", n.Reservation.NoShowReason)
	}
	if n.Slot.Status != model.SlotBooked {
		t.Fatalf("no-show must keep the slot booked, got %s", n.Slot.Status)
	}

	for name, act := range map[string]func(*env, string) error{
		"confirm": confirm, "no-show": noShow, "facility cancel": facilityCancel,
	} {
		if err := act(e, b.Reservation.ID); err == nil || !errors.As(err, new(*ConflictError)) {
			t.Fatalf("%s on NO_SHOW: want ConflictError, got %v", name, err)
		}
	}
}

func TestCancellationFreesSlot(t *testing.T) {
	start := local(2025, 6, 2, 18, 0)
	e := newEnv(t, start.Add(-2*time.Hour))
	s := mustSlot(t, e, start, start.Add(time.Hour))

	b := mustBook(t, e, s.ID, alice)
	c, err := e.rsv.CancelByBooker(t.Context(), alice, b.Reservation.ID, "changed plans")
	if err != nil {
		t.Fatal(err)
	}
	if c.Reservation.Status != model.ReservationCancelledByBooker || c.Reservation.CancelledAt == nil || c.Slot.Status != model.SlotFree {
		t.Fatalf("after booker cancel: %+v / %s", c.Reservation, c.Slot.Status)
	}
	if c.Reservation.CancellationReason == nil || *c.Reservation.CancellationReason != "changed plans" {
		t.Fatalf("booker reason not kept: %v", c.Reservation.CancellationReason)
	}

	b2 := mustBook(t, e, s.ID, bob)
	f, err := e.rsv.CancelByFacility(t.Context(), operator, b2.Reservation.ID, "court repainting")
	if err != nil {
		t.Fatal(err)
	}
	if f.Slot.Status != model.SlotFree || *f.Reservation.CancellationReason != "court repainting" {
		t.Fatalf("after facility cancel: %+v / %s", f.Reservation, f.Slot.Status)
	}

	mustBook(t, e, s.ID, alice)
}

func TestAuthorization(t *testing.T) {
	start := local(2025, 6, 2, 18, 0)
	e := newEnv(t, start.Add(-2*time.Hour))
	s := mustSlot(t, e, start, start.Add(time.Hour))
	b := mustBook(t, e, s.ID, alice)

	if _, err := e.rsv.CancelByBooker(t.Context(), bob, b.Reservation.ID, ""); !errors.Is(err, ErrForbidden) {
		t.Fatalf("bob cancelling alice: %v", err)
	}
	if _, err := e.rsv.Confirm(t.Context(), alice, b.Reservation.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("booker confirming: %v", err)
	}
	if _, err := e.rsv.Get(t.Context(), bob, b.Reservation.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("bob reading alice: %v", err)
	}
	if _, err := e.rsv.Get(t.Context(), operator, b.Reservation.ID); err != nil {
		t.Fatalf("operator reading: %v", err)
	}

	other := mustSlot(t, e, start.Add(time.Hour), start.Add(2*time.Hour))
	if _, err := e.rsv.BookSlot(t.Context(), alice, other.ID, model.Booker{ManualName: "Walk In"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("booker booking a walk-in: %v", err)
	}
	if _, err := e.rsv.BookSlot(t.Context(), alice, other.ID, model.Booker{AccountID: ptr(bob.UserID)}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("booker booking for someone else: %v", err)
	}
	w, err := e.rsv.BookSlot(t.Context(), operator, other.ID, model.Booker{ManualName: " Walk In "})
	if err != nil {
		t.Fatalf("operator walk-in: %v", err)
	}
	if w.Reservation.ManualBookerName != "Walk In" || w.Reservation.BookerID != nil {
		t.Fatalf("walk-in reservation %+v", w.Reservation)
	}
}

func TestBookSlotValidation(t *testing.T) {
	start := local(2025, 6, 2, 18, 0)
	e := newEnv(t, start.Add(-time.Hour))
	s := mustSlot(t, e, start, start.Add(time.Hour))

	_, err := e.rsv.BookSlot(t.Context(), operator, s.ID, model.Booker{})
	wantErr[*ValidationError](t, err)
	_, err = e.rsv.BookSlot(t.Context(), operator, s.ID, model.Booker{AccountID: ptr(uint64(5)), ManualName: "x"})
	wantErr[*ValidationError](t, err)
	_, err = e.rsv.BookSlot(t.Context(), alice, "missing", model.Booker{AccountID: ptr(alice.UserID)})
	wantErr[*NotFoundError](t, err)

	e.clock.Set(start.Add(time.Hour))
	_, err = e.rsv.BookSlot(t.Context(), alice, s.ID, model.Booker{AccountID: ptr(alice.UserID)})
	wantErr[*ValidationError](t, err)
}

func TestConcurrentBookingSingleWinner(t *testing.T) {
	start := local(2025, 6, 2, 18, 0)
	e := newEnv(t, start.Add(-time.Hour))
	s := mustSlot(t, e, start, start.Add(time.Hour))

	const n = 24
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		wins      int
		conflicts int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(user uint64) {
			defer wg.Done()
			actor := model.Actor{UserID: user, Role: model.RoleBooker}
			_, err := e.rsv.BookSlot(ctxBG(), actor, s.ID, model.Booker{AccountID: ptr(user)})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.As(err, new(*ConflictError)):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(uint64(100 + i))
	}
	wg.Wait()
	if wins != 1 || conflicts != n-1 {
		t.Fatalf("wins=%d conflicts=%d", wins, conflicts)
	}
}

func TestActions(t *testing.T) {
	start := local(2025, 6, 2, 18, 0)
	e := newEnv(t, start.Add(-time.Hour))
	s := mustSlot(t, e, start, start.Add(time.Hour))
	b := mustBook(t, e, s.ID, alice)

	a, err := e.rsv.Actions(t.Context(), alice, b.Reservation.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !a.CanBookerCancel || a.CanConfirm || a.CanMarkNoShow {
		t.Fatalf("an hour before: %+v", a)
	}

	e.clock.Set(start.Add(20 * time.Minute))
	a, _ = e.rsv.Actions(t.Context(), operator, b.Reservation.ID)
	if a.CanBookerCancel || !a.CanConfirm || !a.CanMarkNoShow {
		t.Fatalf("twenty minutes in: %+v", a)
	}

	if _, err := e.rsv.Confirm(t.Context(), operator, b.Reservation.ID); err != nil {
		t.Fatal(err)
	}
	a, _ = e.rsv.Actions(t.Context(), operator, b.Reservation.ID)
	if a.CanBookerCancel || a.CanConfirm || a.CanMarkNoShow || a.Status != model.ReservationConfirmed {
		t.Fatalf("after confirm: %+v", a)
	}
}

func TestListMine(t *testing.T) {
	start := local(2025, 6, 2, 18, 0)
	e := newEnv(t, start.Add(-3*time.Hour))
	s1 := mustSlot(t, e, start, start.Add(time.Hour))
	s2 := mustSlot(t, e, start.Add(time.Hour), start.Add(2*time.Hour))
	mustBook(t, e, s1.ID, alice)
	e.clock.Advance(time.Minute)
	second := mustBook(t, e, s2.ID, alice)

	mine, err := e.rsv.ListMine(t.Context(), alice)
	if err != nil {
		t.Fatal(err)
	}
	if len(mine) != 2 || mine[0].ID != second.Reservation.ID {
		t.Fatalf("unexpected list %+v", mine)
	}
	none, _ := e.rsv.ListMine(t.Context(), bob)
	if none == nil || len(none) != 0 {
		t.Fatalf("bob should have an empty list, got %v", none)
	}
}
