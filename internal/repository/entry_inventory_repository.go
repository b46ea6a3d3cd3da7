package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/hasthilk/ticketing/internal/model"
)

// EntryInventoryRepo provides persistence for per-day entry capacity.
// A day without a row is deliberately uncapped: reserveDayTx treats the
// absent row as unlimited capacity and mutates nothing. As with events,
// the `remaining` column is only mutated by reserveDayTx and
// releaseDayTx, both of which run inside an entry-booking transaction.
type EntryInventoryRepo struct {
	db *sql.DB
}

// NewEntryInventoryRepo returns an EntryInventoryRepo bound to the given
// database.
func NewEntryInventoryRepo(db *sql.DB) *EntryInventoryRepo {
	return &EntryInventoryRepo{db: db}
}

// GetDay returns the inventory row for a day, or ErrNotFound when the day
// is uncapped.
func (r *EntryInventoryRepo) GetDay(ctx context.Context, day time.Time) (model.EntryInventory, error) {
	const q = `SELECT day, capacity, remaining, local_price_cents, foreign_price_cents, created_at, updated_at
	           FROM entry_inventory WHERE day = ?`
	var inv model.EntryInventory
	err := r.db.QueryRowContext(ctx, q, day.Format(model.DayFormat)).Scan(
		&inv.Day, &inv.Capacity, &inv.Remaining,
		&inv.LocalPriceCents, &inv.ForeignPriceCents,
		&inv.CreatedAt, &inv.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return model.EntryInventory{}, ErrNotFound
	}
	if err != nil {
		return model.EntryInventory{}, err
	}
	return inv, nil
}

// Upsert creates or updates a day's cap and pricing. On update, remaining
// is shifted by the capacity delta and clamped to [0, new capacity], so
// raising the cap frees admissions and lowering it never strands sold
// ones. The remaining assignment must stay first: MySQL evaluates the
// UPDATE list left to right and it reads the old capacity.
func (r *EntryInventoryRepo) Upsert(ctx context.Context, inv *model.EntryInventory) error {
	const q = `INSERT INTO entry_inventory (day, capacity, remaining, local_price_cents, foreign_price_cents)
	           VALUES (?, ?, ?, ?, ?)
	           ON DUPLICATE KEY UPDATE
	             remaining = LEAST(VALUES(capacity), GREATEST(0, remaining + VALUES(capacity) - capacity)),
	             capacity = VALUES(capacity),
	             local_price_cents = VALUES(local_price_cents),
	             foreign_price_cents = VALUES(foreign_price_cents)`
	_, err := r.db.ExecContext(ctx, q,
		inv.Day.Format(model.DayFormat),
		inv.Capacity, inv.Capacity,
		inv.LocalPriceCents, inv.ForeignPriceCents)
	if err != nil {
		return err
	}
	got, err := r.GetDay(ctx, inv.Day)
	if err != nil {
		return err
	}
	*inv = got
	return nil
}

// reserveDayTx atomically decrements the day's remaining admissions by
// tickets, but only while enough remain. A day with no inventory row is
// uncapped by policy: the reservation proceeds without any decrement.
func reserveDayTx(ctx context.Context, tx *sql.Tx, day time.Time, tickets uint32) error {
	const q = `UPDATE entry_inventory SET remaining = remaining - ? WHERE day = ? AND remaining >= ?`
	res, err := tx.ExecContext(ctx, q, tickets, day.Format(model.DayFormat), tickets)
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
	var one int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM entry_inventory WHERE day = ?`, day.Format(model.DayFormat)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return nil // uncapped day
	}
	if err != nil {
		return err
	}
	return ErrInsufficientCapacity
}

// releaseDayTx returns tickets to the day's remaining admissions. A
// missing row (uncapped day, or a cap removed after booking) is a no-op.
func releaseDayTx(ctx context.Context, tx *sql.Tx, day time.Time, tickets uint32) error {
	const q = `UPDATE entry_inventory SET remaining = LEAST(capacity, remaining + ?) WHERE day = ?`
	_, err := tx.ExecContext(ctx, q, tickets, day.Format(model.DayFormat))
	return err
}
