package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/jmoiron/sqlx"

	"github.com/fieldz-pro/slot-scheduler/internal/model"
)

// FacilityRepo reads facilities from the `facilities` table maintained by
// the club/terrain service.  The scheduling core never writes to it.
type FacilityRepo struct {
	db *sqlx.DB // db is the underlying database connection
}

// NewFacilityRepo constructs a FacilityRepo with the given DB handle.
func NewFacilityRepo(db *sqlx.DB) *FacilityRepo {
	return &FacilityRepo{db: db}
}

// GetFacility retrieves a facility by its ID.  It returns ErrNotFound when
// no row matches.
func (r *FacilityRepo) GetFacility(ctx context.Context, id uint64) (*model.Facility, error) {
	const q = `SELECT id, club_id, name, sport, timezone FROM facilities WHERE id = ?`
	var f model.Facility
	if err := r.db.GetContext(ctx, &f, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &f, nil
}

// MemoryFacilities is a FacilityDirectory backed by a map.  It stands in
// for the club/terrain service when the core runs without MySQL.
type MemoryFacilities struct {
	mu    sync.RWMutex
	items map[uint64]model.Facility
}

// NewMemoryFacilities returns a directory seeded with fs.
func NewMemoryFacilities(fs ...model.Facility) *MemoryFacilities {
	m := &MemoryFacilities{items: make(map[uint64]model.Facility, len(fs))}
	for _, f := range fs {
		m.items[f.ID] = f
	}
	return m
}

// Put adds or replaces a facility.
func (m *MemoryFacilities) Put(f model.Facility) {
	m.mu.Lock()
	m.items[f.ID] = f
	m.mu.Unlock()
}

// GetFacility implements FacilityDirectory.
func (m *MemoryFacilities) GetFacility(ctx context.Context, id uint64) (*model.Facility, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &f, nil
}

// ParseFacilities decodes a seed list of the form
// "id|club_id|name|sport|timezone;id|...".  Empty entries are skipped.
func ParseFacilities(s string) ([]model.Facility, error) {
	var out []model.Facility
	for _, entry := range strings.Split(s, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, "|")
		if len(parts) != 5 {
			return nil, fmt.Errorf("facility seed %q: want 5 fields, got %d", entry, len(parts))
		}
		id, err := strconv.ParseUint(strings.TrimSpace(parts[0]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("facility seed %q: invalid id: %w", entry, err)
		}
		club, err := strconv.ParseUint(strings.TrimSpace(parts[1]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("facility seed %q: invalid club id: %w", entry, err)
		}
		out = append(out, model.Facility{
			ID:       id,
			ClubID:   club,
			Name:     strings.TrimSpace(parts[2]),
			Sport:    strings.TrimSpace(parts[3]),
			Timezone: strings.TrimSpace(parts[4]),
		})
	}
	return out, nil
}
