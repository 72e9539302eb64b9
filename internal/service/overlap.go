package service

import (
	"context"
	"time"

	"github.com/fieldz-pro/slot-scheduler/internal/model"
	"github.com/fieldz-pro/slot-scheduler/internal/repository"
)

// OverlapDetector answers whether a candidate range collides with active
// slots of a facility.  It is read-only: inserts repeat the check inside
// the store's atomic section, so a clear answer here is advisory.
type OverlapDetector struct {
	store repository.SlotStore
}

// NewOverlapDetector returns a detector reading from store.
func NewOverlapDetector(store repository.SlotStore) *OverlapDetector {
	return &OverlapDetector{store: store}
}

// Conflicts returns the active slots overlapping [start, end).
func (d *OverlapDetector) Conflicts(ctx context.Context, facilityID uint64, start, end time.Time) ([]model.Slot, error) {
	return d.store.FindOverlapping(ctx, facilityID, start, end)
}
