package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fieldz-pro/slot-scheduler/internal/model"
	"github.com/fieldz-pro/slot-scheduler/internal/schedule"
)

// MemoryStore is a SlotStore kept in process memory.  A single RWMutex
// guards all maps; every check-then-act sequence runs under the write
// lock, which makes overlap checks and bookings atomic.  Values handed to
// callers are copies, so callers can never mutate stored state.
type MemoryStore struct {
	mu           sync.RWMutex
	slots        map[string]*model.Slot
	byFacility   map[uint64][]string // facility -> slot IDs
	reservations map[string]*model.Reservation
	bySlot       map[string][]string // slot -> reservation IDs, oldest first
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		slots:        make(map[string]*model.Slot),
		byFacility:   make(map[uint64][]string),
		reservations: make(map[string]*model.Reservation),
		bySlot:       make(map[string][]string),
	}
}

func (m *MemoryStore) facilitySlotsLocked(facilityID uint64) []model.Slot {
	ids := m.byFacility[facilityID]
	out := make([]model.Slot, 0, len(ids))
	for _, id := range ids {
		out = append(out, *m.slots[id])
	}
	return out
}

// CreateSlot implements SlotStore.
func (m *MemoryStore) CreateSlot(ctx context.Context, slot *model.Slot, rsv *model.Reservation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := schedule.FirstConflict(m.facilitySlotsLocked(slot.FacilityID), slot.Start, slot.End); ok {
		return &OverlapError{Existing: existing}
	}
	s := *slot
	m.slots[s.ID] = &s
	m.byFacility[s.FacilityID] = append(m.byFacility[s.FacilityID], s.ID)
	if rsv != nil {
		r := *rsv
		m.reservations[r.ID] = &r
		m.bySlot[s.ID] = append(m.bySlot[s.ID], r.ID)
	}
	return nil
}

// GetSlot implements SlotStore.
func (m *MemoryStore) GetSlot(ctx context.Context, id string) (*model.Slot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.slots[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *s
	return &out, nil
}

// ListSlots implements SlotStore.  Bounds and ordering use the facility
// wall clock, like the MySQL DATETIME columns.
func (m *MemoryStore) ListSlots(ctx context.Context, facilityID uint64, from, to time.Time) ([]model.Slot, error) {
	m.mu.RLock()
	all := m.facilitySlotsLocked(facilityID)
	m.mu.RUnlock()

	out := make([]model.Slot, 0, len(all))
	for _, s := range all {
		if !from.IsZero() && !schedule.Wall(s.End).After(schedule.Wall(from)) {
			continue
		}
		if !to.IsZero() && !schedule.Wall(s.Start).Before(schedule.Wall(to)) {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return schedule.Wall(out[i].Start).Before(schedule.Wall(out[j].Start)) })
	return out, nil
}

// FindOverlapping implements SlotStore.
func (m *MemoryStore) FindOverlapping(ctx context.Context, facilityID uint64, start, end time.Time) ([]model.Slot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Slot
	for _, s := range m.facilitySlotsLocked(facilityID) {
		if s.Active() && schedule.Overlaps(start, end, s.Start, s.End) {
			out = append(out, s)
		}
	}
	return out, nil
}

// GetReservation implements SlotStore.
func (m *MemoryStore) GetReservation(ctx context.Context, id string) (*model.Reservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.reservations[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *r
	return &out, nil
}

// ListReservationsByBooker implements SlotStore.
func (m *MemoryStore) ListReservationsByBooker(ctx context.Context, bookerID uint64) ([]model.Reservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Reservation
	for _, r := range m.reservations {
		if r.BookerID != nil && *r.BookerID == bookerID {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// boundLocked returns a copy of the reservation currently bound to the
// slot, or nil.  More than one bound reservation is an invariant breach.
func (m *MemoryStore) boundLocked(slotID string) (*model.Reservation, error) {
	var bound *model.Reservation
	for _, id := range m.bySlot[slotID] {
		r := m.reservations[id]
		if r.Status.Cancelled() {
			continue
		}
		if bound != nil {
			return nil, ErrInvariant
		}
		cp := *r
		bound = &cp
	}
	return bound, nil
}

// UpdateSlot implements SlotStore.
func (m *MemoryStore) UpdateSlot(ctx context.Context, slotID string, fn func(agg *Aggregate) error) (*Aggregate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.slots[slotID]
	if !ok {
		return nil, ErrNotFound
	}
	bound, err := m.boundLocked(slotID)
	if err != nil {
		return nil, err
	}
	slot := *s
	agg := &Aggregate{Slot: &slot, Reservation: bound}
	if err := fn(agg); err != nil {
		return nil, err
	}
	return m.writeLocked(agg)
}

// UpdateReservation implements SlotStore.
func (m *MemoryStore) UpdateReservation(ctx context.Context, reservationID string, fn func(agg *Aggregate) error) (*Aggregate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.reservations[reservationID]
	if !ok {
		return nil, ErrNotFound
	}
	s, ok := m.slots[r.SlotID]
	if !ok {
		return nil, ErrInvariant
	}
	if _, err := m.boundLocked(s.ID); err != nil {
		return nil, err
	}
	slot, rsv := *s, *r
	agg := &Aggregate{Slot: &slot, Reservation: &rsv}
	if err := fn(agg); err != nil {
		return nil, err
	}
	if agg.Reservation == nil || agg.Reservation.ID != reservationID {
		return nil, ErrInvariant
	}
	return m.writeLocked(agg)
}

// writeLocked stores the aggregate and returns fresh copies of it.
func (m *MemoryStore) writeLocked(agg *Aggregate) (*Aggregate, error) {
	slot := *agg.Slot
	out := &Aggregate{Slot: &slot}
	if agg.Reservation != nil {
		r := *agg.Reservation
		if r.SlotID != slot.ID {
			return nil, ErrInvariant
		}
		if _, exists := m.reservations[r.ID]; !exists {
			m.bySlot[slot.ID] = append(m.bySlot[slot.ID], r.ID)
		}
		stored := r
		m.reservations[r.ID] = &stored
		out.Reservation = &r
	}
	stored := slot
	m.slots[slot.ID] = &stored
	return out, nil
}
