package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/hasthilk/ticketing/internal/model"
)

// EventRepo provides persistence for ticketed offerings. remaining_seats
// is the contended inventory column; this file owns the only two
// statements that may mutate it (reserveSeatsTx and releaseSeatsTx), both
// of which run inside a booking transaction. Legacy rows imported before
// the remaining_seats column existed carry NULL there and are repaired to
// full capacity on first touch.
type EventRepo struct {
	db *sql.DB
}

// NewEventRepo returns an EventRepo bound to the given database.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

// DB exposes the underlying handle so callers can open transactions that
// span events and bookings.
func (r *EventRepo) DB() *sql.DB { return r.db }

// Create inserts a new offering with remaining_seats initialised to full
// capacity and populates the generated ID and timestamps.
func (r *EventRepo) Create(ctx context.Context, e *model.Event) error {
	const q = `INSERT INTO events (title, venue, starts_at, ends_at, capacity, remaining_seats, unit_price_cents, status)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q,
		e.Title, e.Venue, e.StartsAt.UTC(), e.EndsAt.UTC(),
		e.Capacity, e.Capacity, e.UnitPriceCents, model.EventActive)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = uint64(id)
	got, err := r.GetByID(ctx, e.ID)
	if err != nil {
		return err
	}
	*e = got
	return nil
}

// GetByID returns a single offering. Legacy rows with NULL remaining_seats
// are repaired to full capacity; the repair is conditional on the column
// still being NULL so concurrent repairs cannot clobber a live count, and
// a failed repair is not fatal.
func (r *EventRepo) GetByID(ctx context.Context, id uint64) (model.Event, error) {
	const q = `SELECT id, title, venue, starts_at, ends_at, capacity, remaining_seats, unit_price_cents, status, created_at, updated_at
	           FROM events WHERE id = ?`
	var e model.Event
	var remaining sql.NullInt64
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&e.ID, &e.Title, &e.Venue, &e.StartsAt, &e.EndsAt,
		&e.Capacity, &remaining, &e.UnitPriceCents, &e.Status,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Event{}, ErrNotFound
		}
		return model.Event{}, err
	}
	if remaining.Valid {
		e.RemainingSeats = uint32(remaining.Int64)
	} else {
		const repair = `UPDATE events SET remaining_seats = capacity WHERE id = ? AND remaining_seats IS NULL`
		_, _ = r.db.ExecContext(ctx, repair, id)
		e.RemainingSeats = e.Capacity
	}
	return e, nil
}

// ListUpcoming returns active offerings that have not yet ended, soonest
// first. Rows with NULL remaining_seats report full capacity; they are
// repaired lazily when touched by GetByID or a reservation.
func (r *EventRepo) ListUpcoming(ctx context.Context, now time.Time) ([]model.Event, error) {
	const q = `SELECT id, title, venue, starts_at, ends_at, capacity, remaining_seats, unit_price_cents, status, created_at, updated_at
	           FROM events
	           WHERE status = ? AND ends_at > ?
	           ORDER BY starts_at ASC`
	rows, err := r.db.QueryContext(ctx, q, model.EventActive, now.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	events := make([]model.Event, 0)
	for rows.Next() {
		var e model.Event
		var remaining sql.NullInt64
		if err := rows.Scan(
			&e.ID, &e.Title, &e.Venue, &e.StartsAt, &e.EndsAt,
			&e.Capacity, &remaining, &e.UnitPriceCents, &e.Status,
			&e.CreatedAt, &e.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if remaining.Valid {
			e.RemainingSeats = uint32(remaining.Int64)
		} else {
			e.RemainingSeats = e.Capacity
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// Cancel marks an offering CANCELLED, which stops further reservations
// because the conditional decrement only matches ACTIVE rows. Cancelling
// an already-cancelled offering is a no-op.
func (r *EventRepo) Cancel(ctx context.Context, id uint64) error {
	const q = `UPDATE events SET status = ? WHERE id = ? AND status = ?`
	res, err := r.db.ExecContext(ctx, q, model.EventCancelled, id, model.EventActive)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		var status string
		switch err := r.db.QueryRowContext(ctx, `SELECT status FROM events WHERE id = ?`, id).Scan(&status); {
		case errors.Is(err, sql.ErrNoRows):
			return ErrNotFound
		case err != nil:
			return err
		}
	}
	return nil
}

// ensureRemainingTx repairs a legacy NULL remaining_seats column to full
// capacity inside a transaction, ahead of the conditional decrement. The
// WHERE clause makes concurrent repairs harmless.
func ensureRemainingTx(ctx context.Context, tx *sql.Tx, eventID uint64) error {
	const q = `UPDATE events SET remaining_seats = capacity WHERE id = ? AND remaining_seats IS NULL`
	_, err := tx.ExecContext(ctx, q, eventID)
	return err
}

// reserveSeatsTx atomically decrements remaining_seats by tickets, but
// only while the offering is active and enough seats remain. This single
// conditional UPDATE is what serialises concurrent bookings for the same
// offering; it is never split into a read-then-write pair. Zero affected
// rows is classified into ErrNotFound, ErrInvalidState (offering
// cancelled) or ErrInsufficientCapacity.
func reserveSeatsTx(ctx context.Context, tx *sql.Tx, eventID uint64, tickets uint32) error {
	const q = `UPDATE events SET remaining_seats = remaining_seats - ?
	           WHERE id = ? AND status = ? AND remaining_seats >= ?`
	res, err := tx.ExecContext(ctx, q, tickets, eventID, model.EventActive, tickets)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	var status string
	err = tx.QueryRowContext(ctx, `SELECT status FROM events WHERE id = ?`, eventID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if status != model.EventActive {
		return ErrInvalidState
	}
	return ErrInsufficientCapacity
}

// releaseSeatsTx returns tickets to remaining_seats. LEAST keeps the
// remaining_seats <= capacity invariant even if a repair raced a release.
func releaseSeatsTx(ctx context.Context, tx *sql.Tx, eventID uint64, tickets uint32) error {
	const q = `UPDATE events SET remaining_seats = LEAST(capacity, remaining_seats + ?) WHERE id = ?`
	_, err := tx.ExecContext(ctx, q, tickets, eventID)
	return err
}
