package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fieldz-pro/slot-scheduler/internal/model"
)

var base = time.Date(2025, 6, 2, 18, 0, 0, 0, time.UTC)

func newSlot(facility uint64, start time.Time, d time.Duration) *model.Slot {
	return &model.Slot{
		ID:         uuid.NewString(),
		FacilityID: facility,
		Start:      start,
		End:        start.Add(d),
		Price:      decimal.NewFromInt(40),
		Status:     model.SlotFree,
		CreatedAt:  base,
		UpdatedAt:  base,
	}
}

func TestMemoryStoreCreateRejectsOverlap(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	first := newSlot(1, base, time.Hour)
	if err := st.CreateSlot(ctx, first, nil); err != nil {
		t.Fatalf("create: %v", err)
	}

	err := st.CreateSlot(ctx, newSlot(1, base.Add(30*time.Minute), time.Hour), nil)
	var oe *OverlapError
	if !errors.As(err, &oe) {
		t.Fatalf("want *OverlapError, got %v", err)
	}
	if oe.Existing.ID != first.ID || !errors.Is(err, ErrOverlap) {
		t.Fatalf("unexpected overlap error %+v", oe)
	}

	// adjacent slot and other facility are fine
	if err := st.CreateSlot(ctx, newSlot(1, base.Add(time.Hour), time.Hour), nil); err != nil {
		t.Fatalf("adjacent: %v", err)
	}
	if err := st.CreateSlot(ctx, newSlot(2, base, time.Hour), nil); err != nil {
		t.Fatalf("other facility: %v", err)
	}
}

func TestMemoryStoreWallClockFrameAcrossFallBack(t *testing.T) {
	paris, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	ctx := context.Background()
	st := NewMemoryStore()
	// On 2025-10-26 Paris shows 02:00-03:00 twice.  Slot A is 02:10-02:40
	// CET and B is 02:20-02:50 CEST: disjoint instants, shared wall minutes.
	a := newSlot(1, time.Date(2025, 10, 26, 1, 10, 0, 0, time.UTC).In(paris), 30*time.Minute)
	b := newSlot(1, time.Date(2025, 10, 26, 0, 20, 0, 0, time.UTC).In(paris), 30*time.Minute)
	if err := st.CreateSlot(ctx, a, nil); err != nil {
		t.Fatalf("create a: %v", err)
	}
	var oe *OverlapError
	if err := st.CreateSlot(ctx, b, nil); !errors.As(err, &oe) || oe.Existing.ID != a.ID {
		t.Fatalf("want overlap with %s, got %v", a.ID, err)
	}
	got, err := st.FindOverlapping(ctx, 1, b.Start, b.End)
	if err != nil || len(got) != 1 || got[0].ID != a.ID {
		t.Fatalf("find overlapping: %v, %v", got, err)
	}

	// 01:30 CEST is before 02:10 CET on the wall and in time; 02:45 CEST
	// is earlier in time than A but later on the wall.
	early := newSlot(1, time.Date(2025, 10, 25, 23, 30, 0, 0, time.UTC).In(paris), 30*time.Minute)
	late := newSlot(1, time.Date(2025, 10, 26, 0, 45, 0, 0, time.UTC).In(paris), 10*time.Minute)
	for _, s := range []*model.Slot{early, late} {
		if err := st.CreateSlot(ctx, s, nil); err != nil {
			t.Fatalf("create %s: %v", s.Start, err)
		}
	}
	list, err := st.ListSlots(ctx, 1, time.Date(2025, 10, 26, 2, 0, 0, 0, paris), time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].ID != a.ID || list[1].ID != late.ID {
		t.Fatalf("want wall order [a late], got %v", list)
	}
}

func TestMemoryStoreCancelledSlotReleasesRange(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	s := newSlot(1, base, time.Hour)
	if err := st.CreateSlot(ctx, s, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := st.UpdateSlot(ctx, s.ID, func(agg *Aggregate) error {
		agg.Slot.Status = model.SlotCancelledByFacility
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	if err := st.CreateSlot(ctx, newSlot(1, base, time.Hour), nil); err != nil {
		t.Fatalf("range should be free again: %v", err)
	}
	found, _ := st.FindOverlapping(ctx, 1, base, base.Add(time.Hour))
	if len(found) != 1 {
		t.Fatalf("want 1 active overlapping slot, got %d", len(found))
	}
}

func TestMemoryStoreListSlotsOrderedAndBounded(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	for _, h := range []int{3, 1, 2} {
		if err := st.CreateSlot(ctx, newSlot(1, base.Add(time.Duration(h)*time.Hour), time.Hour), nil); err != nil {
			t.Fatal(err)
		}
	}
	all, _ := st.ListSlots(ctx, 1, time.Time{}, time.Time{})
	if len(all) != 3 {
		t.Fatalf("want 3, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if !all[i-1].Start.Before(all[i].Start) {
			t.Fatalf("not ordered: %v", all)
		}
	}
	window, _ := st.ListSlots(ctx, 1, base.Add(2*time.Hour), base.Add(3*time.Hour))
	if len(window) != 1 || !window[0].Start.Equal(base.Add(2*time.Hour)) {
		t.Fatalf("unexpected window %v", window)
	}
}

func TestMemoryStoreUpdateErrorWritesNothing(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	s := newSlot(1, base, time.Hour)
	_ = st.CreateSlot(ctx, s, nil)

	boom := errors.New("boom")
	_, err := st.UpdateSlot(ctx, s.ID, func(agg *Aggregate) error {
		agg.Slot.Status = model.SlotBooked
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("want boom, got %v", err)
	}
	got, _ := st.GetSlot(ctx, s.ID)
	if got.Status != model.SlotFree {
		t.Fatalf("slot mutated on failed update: %s", got.Status)
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	s := newSlot(1, base, time.Hour)
	_ = st.CreateSlot(ctx, s, nil)
	s.Status = model.SlotBooked

	got, _ := st.GetSlot(ctx, s.ID)
	got.Status = model.SlotCancelledByFacility
	again, _ := st.GetSlot(ctx, s.ID)
	if again.Status != model.SlotFree {
		t.Fatalf("stored slot leaked: %s", again.Status)
	}
}

func TestMemoryStoreNotFound(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	if _, err := st.GetSlot(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetSlot: %v", err)
	}
	if _, err := st.GetReservation(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetReservation: %v", err)
	}
	if _, err := st.UpdateReservation(ctx, "nope", func(*Aggregate) error { return nil }); !errors.Is(err, ErrNotFound) {
		t.Fatalf("UpdateReservation: %v", err)
	}
}

func book(booker uint64) func(agg *Aggregate) error {
	return func(agg *Aggregate) error {
		if agg.Slot.Status != model.SlotFree {
			return ErrSlotNotFree
		}
		id := booker
		agg.Slot.Status = model.SlotBooked
		agg.Reservation = &model.Reservation{
			ID:        uuid.NewString(),
			SlotID:    agg.Slot.ID,
			BookerID:  &id,
			Status:    model.ReservationPending,
			CreatedAt: base.Add(time.Duration(booker) * time.Second),
		}
		return nil
	}
}

func TestMemoryStoreConcurrentBookingSingleWinner(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	s := newSlot(1, base, time.Hour)
	_ = st.CreateSlot(ctx, s, nil)

	const n = 32
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(booker uint64) {
			defer wg.Done()
			_, err := st.UpdateSlot(ctx, s.ID, book(booker))
			switch {
			case err == nil:
				mu.Lock()
				wins++
				mu.Unlock()
			case !errors.Is(err, ErrSlotNotFree):
				t.Errorf("unexpected error: %v", err)
			}
		}(uint64(i + 1))
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("want exactly one winner, got %d", wins)
	}
}

func TestMemoryStoreConcurrentOverlappingCreateSingleWinner(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	const n = 16
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- st.CreateSlot(ctx, newSlot(7, base.Add(time.Duration(i)*time.Minute), time.Hour), nil)
		}(i)
	}
	wg.Wait()
	close(errs)
	ok := 0
	for err := range errs {
		if err == nil {
			ok++
		} else if !errors.Is(err, ErrOverlap) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 {
		t.Fatalf("want one created slot, got %d", ok)
	}
}

func TestMemoryStoreCancellationFreesForRebooking(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	s := newSlot(1, base, time.Hour)
	_ = st.CreateSlot(ctx, s, nil)

	agg, err := st.UpdateSlot(ctx, s.ID, book(1))
	if err != nil {
		t.Fatal(err)
	}
	first := agg.Reservation.ID
	if _, err := st.UpdateReservation(ctx, first, func(agg *Aggregate) error {
		now := base
		agg.Reservation.Status = model.ReservationCancelledByBooker
		agg.Reservation.CancelledAt = &now
		agg.Slot.Status = model.SlotFree
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	agg, err = st.UpdateSlot(ctx, s.ID, book(2))
	if err != nil {
		t.Fatalf("rebook: %v", err)
	}
	if agg.Reservation.ID == first {
		t.Fatal("expected a new reservation")
	}

	mine, _ := st.ListReservationsByBooker(ctx, 1)
	if len(mine) != 1 || mine[0].Status != model.ReservationCancelledByBooker {
		t.Fatalf("booker 1 history: %+v", mine)
	}
}

func TestMemoryStoreUpdateReservationMustKeepTarget(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	s := newSlot(1, base, time.Hour)
	_ = st.CreateSlot(ctx, s, nil)
	agg, _ := st.UpdateSlot(ctx, s.ID, book(1))

	_, err := st.UpdateReservation(ctx, agg.Reservation.ID, func(agg *Aggregate) error {
		agg.Reservation = nil
		return nil
	})
	if !errors.Is(err, ErrInvariant) {
		t.Fatalf("want ErrInvariant, got %v", err)
	}
}
