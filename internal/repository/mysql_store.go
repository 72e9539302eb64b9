package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/fieldz-pro/slot-scheduler/internal/model"
)

// wallClockLayout is how slot start/end are written to DATETIME columns.
// The values are facility-local wall clock; no UTC conversion happens.
const wallClockLayout = "2006-01-02 15:04:05"

// MySQLStore is the SlotStore backed by the `slots` and `reservations`
// tables.  Slot creation locks the facility row so that every insert on a
// facility (single or recurring) serializes through the same overlap
// query.  Aggregate updates lock the slot row first and the reservation
// rows second, in that order everywhere, so concurrent updates cannot
// deadlock each other.
type MySQLStore struct {
	db *sqlx.DB
}

// NewMySQLStore returns a MySQLStore bound to the given database.
func NewMySQLStore(db *sqlx.DB) *MySQLStore { return &MySQLStore{db: db} }

// slotRow mirrors the slots table joined with the facility time zone.
type slotRow struct {
	ID                 string          `db:"id"`
	FacilityID         uint64          `db:"facility_id"`
	StartAt            time.Time       `db:"start_at"`
	EndAt              time.Time       `db:"end_at"`
	Price              decimal.Decimal `db:"price"`
	Status             string          `db:"status"`
	CancellationReason sql.NullString  `db:"cancellation_reason"`
	CreatedAt          time.Time       `db:"created_at"`
	UpdatedAt          time.Time       `db:"updated_at"`
	Timezone           string          `db:"timezone"`
}

const slotSelect = `SELECT s.id, s.facility_id, s.start_at, s.end_at, s.price, s.status, s.cancellation_reason,
                           s.created_at, s.updated_at, f.timezone
                    FROM slots s
                    JOIN facilities f ON f.id = s.facility_id `

// inLocation re-anchors a DATETIME read back by the driver (which tags it
// UTC) to the facility location without changing the wall clock.
func inLocation(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc)
}

func (row slotRow) toModel() model.Slot {
	loc := model.Facility{Timezone: row.Timezone}.Location()
	s := model.Slot{
		ID:         row.ID,
		FacilityID: row.FacilityID,
		Start:      inLocation(row.StartAt, loc),
		End:        inLocation(row.EndAt, loc),
		Price:      row.Price,
		Status:     model.SlotStatus(row.Status),
		CreatedAt:  row.CreatedAt,
		UpdatedAt:  row.UpdatedAt,
	}
	if row.CancellationReason.Valid {
		reason := row.CancellationReason.String
		s.CancellationReason = &reason
	}
	return s
}

// reservationRow mirrors the reservations table.
type reservationRow struct {
	ID                 string         `db:"id"`
	SlotID             string         `db:"slot_id"`
	BookerID           sql.NullInt64  `db:"booker_id"`
	ManualBookerName   string         `db:"manual_booker_name"`
	Status             string         `db:"status"`
	CancelledAt        sql.NullTime   `db:"cancelled_at"`
	CancellationReason sql.NullString `db:"cancellation_reason"`
	NoShowReason       sql.NullString `db:"no_show_reason"`
	CreatedAt          time.Time      `db:"created_at"`
	UpdatedAt          time.Time      `db:"updated_at"`
}

const reservationSelect = `SELECT id, slot_id, booker_id, manual_booker_name, status, cancelled_at,
                                  cancellation_reason, no_show_reason, created_at, updated_at
                           FROM reservations `

func (row reservationRow) toModel() model.Reservation {
	r := model.Reservation{
		ID:               row.ID,
		SlotID:           row.SlotID,
		ManualBookerName: row.ManualBookerName,
		Status:           model.ReservationStatus(row.Status),
		CreatedAt:        row.CreatedAt,
		UpdatedAt:        row.UpdatedAt,
	}
	if row.BookerID.Valid {
		id := uint64(row.BookerID.Int64)
		r.BookerID = &id
	}
	if row.CancelledAt.Valid {
		at := row.CancelledAt.Time
		r.CancelledAt = &at
	}
	if row.CancellationReason.Valid {
		s := row.CancellationReason.String
		r.CancellationReason = &s
	}
	if row.NoShowReason.Valid {
		s := row.NoShowReason.String
		r.NoShowReason = &s
	}
	return r
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func nullTime(p *time.Time) sql.NullTime {
	if p == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: p.UTC(), Valid: true}
}

func nullUint(p *uint64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

// inTx runs fn inside a transaction and commits when fn succeeds.
func (r *MySQLStore) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// CreateSlot implements SlotStore.
func (r *MySQLStore) CreateSlot(ctx context.Context, slot *model.Slot, rsv *model.Reservation) error {
	return r.inTx(ctx, func(tx *sqlx.Tx) error {
		// Serialize all inserts of this facility on the facility row.
		var one int
		if err := tx.GetContext(ctx, &one, `SELECT 1 FROM facilities WHERE id = ? FOR UPDATE`, slot.FacilityID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		var existing []slotRow
		if err := tx.SelectContext(ctx, &existing, slotSelect+
			`WHERE s.facility_id = ? AND s.status <> ? AND s.start_at < ? AND s.end_at > ? ORDER BY s.start_at LIMIT 1`,
			slot.FacilityID, model.SlotCancelledByFacility,
			slot.End.Format(wallClockLayout), slot.Start.Format(wallClockLayout),
		); err != nil {
			return err
		}
		if len(existing) > 0 {
			return &OverlapError{Existing: existing[0].toModel()}
		}
		if err := insertSlot(ctx, tx, slot); err != nil {
			return err
		}
		if rsv != nil {
			return insertReservation(ctx, tx, rsv)
		}
		return nil
	})
}

func insertSlot(ctx context.Context, tx *sqlx.Tx, s *model.Slot) error {
	const q = `INSERT INTO slots (id, facility_id, start_at, end_at, price, status, cancellation_reason, created_at, updated_at)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := tx.ExecContext(ctx, q,
		s.ID, s.FacilityID, s.Start.Format(wallClockLayout), s.End.Format(wallClockLayout),
		s.Price, s.Status, nullString(s.CancellationReason), s.CreatedAt.UTC(), s.UpdatedAt.UTC(),
	)
	return err
}

func insertReservation(ctx context.Context, tx *sqlx.Tx, res *model.Reservation) error {
	const q = `INSERT INTO reservations (id, slot_id, booker_id, manual_booker_name, status, cancelled_at,
                                         cancellation_reason, no_show_reason, created_at, updated_at)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := tx.ExecContext(ctx, q,
		res.ID, res.SlotID, nullUint(res.BookerID), res.ManualBookerName, res.Status, nullTime(res.CancelledAt),
		nullString(res.CancellationReason), nullString(res.NoShowReason), res.CreatedAt.UTC(), res.UpdatedAt.UTC(),
	)
	return err
}

// GetSlot implements SlotStore.
func (r *MySQLStore) GetSlot(ctx context.Context, id string) (*model.Slot, error) {
	var row slotRow
	if err := r.db.GetContext(ctx, &row, slotSelect+`WHERE s.id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	s := row.toModel()
	return &s, nil
}

// ListSlots implements SlotStore.  The bounds are compared as wall clock
// in the facility frame, like the stored values.
func (r *MySQLStore) ListSlots(ctx context.Context, facilityID uint64, from, to time.Time) ([]model.Slot, error) {
	q := slotSelect + `WHERE s.facility_id = ?`
	args := []interface{}{facilityID}
	if !from.IsZero() {
		q += ` AND s.end_at > ?`
		args = append(args, from.Format(wallClockLayout))
	}
	if !to.IsZero() {
		q += ` AND s.start_at < ?`
		args = append(args, to.Format(wallClockLayout))
	}
	q += ` ORDER BY s.start_at ASC`
	var rows []slotRow
	if err := r.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	out := make([]model.Slot, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toModel())
	}
	return out, nil
}

// FindOverlapping implements SlotStore.
func (r *MySQLStore) FindOverlapping(ctx context.Context, facilityID uint64, start, end time.Time) ([]model.Slot, error) {
	var rows []slotRow
	if err := r.db.SelectContext(ctx, &rows, slotSelect+
		`WHERE s.facility_id = ? AND s.status <> ? AND s.start_at < ? AND s.end_at > ? ORDER BY s.start_at`,
		facilityID, model.SlotCancelledByFacility, end.Format(wallClockLayout), start.Format(wallClockLayout),
	); err != nil {
		return nil, err
	}
	out := make([]model.Slot, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toModel())
	}
	return out, nil
}

// GetReservation implements SlotStore.
func (r *MySQLStore) GetReservation(ctx context.Context, id string) (*model.Reservation, error) {
	var row reservationRow
	if err := r.db.GetContext(ctx, &row, reservationSelect+`WHERE id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	res := row.toModel()
	return &res, nil
}

// ListReservationsByBooker implements SlotStore.
func (r *MySQLStore) ListReservationsByBooker(ctx context.Context, bookerID uint64) ([]model.Reservation, error) {
	var rows []reservationRow
	if err := r.db.SelectContext(ctx, &rows, reservationSelect+`WHERE booker_id = ? ORDER BY created_at DESC`, bookerID); err != nil {
		return nil, err
	}
	out := make([]model.Reservation, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toModel())
	}
	return out, nil
}

// lockAggregate locks the slot row and its bound reservation rows.
func lockAggregate(ctx context.Context, tx *sqlx.Tx, slotID string) (*Aggregate, error) {
	var srow slotRow
	if err := tx.GetContext(ctx, &srow, slotSelect+`WHERE s.id = ? FOR UPDATE`, slotID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var rrows []reservationRow
	if err := tx.SelectContext(ctx, &rrows, reservationSelect+`WHERE slot_id = ? AND status NOT IN (?, ?) FOR UPDATE`,
		slotID, model.ReservationCancelledByBooker, model.ReservationCancelledByFacility,
	); err != nil {
		return nil, err
	}
	if len(rrows) > 1 {
		return nil, ErrInvariant
	}
	slot := srow.toModel()
	agg := &Aggregate{Slot: &slot}
	if len(rrows) == 1 {
		res := rrows[0].toModel()
		agg.Reservation = &res
	}
	return agg, nil
}

// writeAggregate persists the changes fn made to a locked aggregate.  The
// WHERE clauses compare against the locked status, so a write that does
// not match the read fails with ErrStaleWrite instead of silently
// overwriting.  The DSN sets clientFoundRows so unchanged rows still count.
func writeAggregate(ctx context.Context, tx *sqlx.Tx, before model.SlotStatus, prev *model.Reservation, agg *Aggregate) error {
	s := agg.Slot
	res, err := tx.ExecContext(ctx,
		`UPDATE slots SET status = ?, cancellation_reason = ?, updated_at = ? WHERE id = ? AND status = ?`,
		s.Status, nullString(s.CancellationReason), s.UpdatedAt.UTC(), s.ID, before,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrStaleWrite
	}
	if agg.Reservation == nil {
		return nil
	}
	rsv := agg.Reservation
	if rsv.SlotID != s.ID {
		return ErrInvariant
	}
	if prev == nil || prev.ID != rsv.ID {
		return insertReservation(ctx, tx, rsv)
	}
	res, err = tx.ExecContext(ctx,
		`UPDATE reservations
         SET status = ?, cancelled_at = ?, cancellation_reason = ?, no_show_reason = ?, updated_at = ?
         WHERE id = ? AND status = ?`,
		rsv.Status, nullTime(rsv.CancelledAt), nullString(rsv.CancellationReason), nullString(rsv.NoShowReason),
		rsv.UpdatedAt.UTC(), rsv.ID, prev.Status,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrStaleWrite
	}
	return nil
}

// UpdateSlot implements SlotStore.
func (r *MySQLStore) UpdateSlot(ctx context.Context, slotID string, fn func(agg *Aggregate) error) (*Aggregate, error) {
	var out *Aggregate
	err := r.inTx(ctx, func(tx *sqlx.Tx) error {
		agg, err := lockAggregate(ctx, tx, slotID)
		if err != nil {
			return err
		}
		before, prev := agg.Slot.Status, copyReservation(agg.Reservation)
		if err := fn(agg); err != nil {
			return err
		}
		if err := writeAggregate(ctx, tx, before, prev, agg); err != nil {
			return err
		}
		out = agg
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateReservation implements SlotStore.
func (r *MySQLStore) UpdateReservation(ctx context.Context, reservationID string, fn func(agg *Aggregate) error) (*Aggregate, error) {
	var out *Aggregate
	err := r.inTx(ctx, func(tx *sqlx.Tx) error {
		// slot_id never changes, so reading it unlocked keeps the
		// slot-then-reservation lock order.
		var slotID string
		if err := tx.GetContext(ctx, &slotID, `SELECT slot_id FROM reservations WHERE id = ?`, reservationID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		agg, err := lockAggregate(ctx, tx, slotID)
		if err != nil {
			return err
		}
		var row reservationRow
		if err := tx.GetContext(ctx, &row, reservationSelect+`WHERE id = ? FOR UPDATE`, reservationID); err != nil {
			return err
		}
		target := row.toModel()
		agg.Reservation = &target
		before, prev := agg.Slot.Status, copyReservation(&target)
		if err := fn(agg); err != nil {
			return err
		}
		if agg.Reservation == nil || agg.Reservation.ID != reservationID {
			return ErrInvariant
		}
		if err := writeAggregate(ctx, tx, before, prev, agg); err != nil {
			return err
		}
		out = agg
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func copyReservation(r *model.Reservation) *model.Reservation {
	if r == nil {
		return nil
	}
	cp := *r
	return &cp
}
