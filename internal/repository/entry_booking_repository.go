package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/hasthilk/ticketing/internal/model"
)

// EntryBookingRepo provides persistence for general-entry bookings and
// their line items. As with event bookings, the day-capacity decrement
// and the booking insert share one transaction.
type EntryBookingRepo struct {
	db *sql.DB
}

// NewEntryBookingRepo returns an EntryBookingRepo bound to the given
// database.
func NewEntryBookingRepo(db *sql.DB) *EntryBookingRepo {
	return &EntryBookingRepo{db: db}
}

const entryCols = `id, ref, user_id, day, visitor_type, time_slot, tickets, total_cents, currency,
	status, payment_status, ticket_token, ticket_issued_at, scanned_at, created_at, updated_at`

// CreateReserved secures b.Tickets admissions against the day's cap (a
// no-op for uncapped days) and inserts the booking with its line items,
// atomically. On success b carries its generated ID and timestamps.
func (r *EntryBookingRepo) CreateReserved(ctx context.Context, b *model.EntryBooking) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := reserveDayTx(ctx, tx, b.Day, b.Tickets); err != nil {
		return err
	}

	const ins = `INSERT INTO entry_bookings (ref, user_id, day, visitor_type, time_slot, tickets, total_cents, currency, status, payment_status)
	             VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, ins,
		b.Ref, b.UserID, b.Day.Format(model.DayFormat),
		b.VisitorType, b.TimeSlot, b.Tickets, b.TotalCents, model.CurrencyLKR,
		model.StatusBooked, model.PaymentPending)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	b.Currency = model.CurrencyLKR
	b.Status = model.StatusBooked
	b.PaymentStatus = model.PaymentPending

	if len(b.Items) > 0 {
		query := `INSERT INTO entry_booking_items (booking_id, item_type, quantity, unit_price_cents) VALUES `
		args := make([]interface{}, 0, len(b.Items)*4)
		for i, it := range b.Items {
			if i > 0 {
				query += ","
			}
			query += "(?, ?, ?, ?)"
			args = append(args, b.ID, it.Type, it.Quantity, it.UnitPriceCents)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}
	}

	const sel = `SELECT created_at, updated_at FROM entry_bookings WHERE id = ?`
	if err := tx.QueryRowContext(ctx, sel, b.ID).Scan(&b.CreatedAt, &b.UpdatedAt); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// GetByID returns a single entry booking with its line items.
func (r *EntryBookingRepo) GetByID(ctx context.Context, id uint64) (model.EntryBooking, error) {
	var b model.EntryBooking
	err := r.db.QueryRowContext(ctx, `SELECT `+entryCols+` FROM entry_bookings WHERE id = ?`, id).Scan(
		&b.ID, &b.Ref, &b.UserID, &b.Day, &b.VisitorType, &b.TimeSlot,
		&b.Tickets, &b.TotalCents, &b.Currency,
		&b.Status, &b.PaymentStatus, &b.TicketToken, &b.TicketIssuedAt, &b.ScannedAt,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return model.EntryBooking{}, ErrNotFound
	}
	if err != nil {
		return model.EntryBooking{}, err
	}
	items, err := r.itemsFor(ctx, []uint64{b.ID})
	if err != nil {
		return model.EntryBooking{}, err
	}
	b.Items = items[b.ID]
	return b, nil
}

// ListByUser returns the user's entry bookings with items, newest first.
func (r *EntryBookingRepo) ListByUser(ctx context.Context, userID uint64) ([]model.EntryBooking, error) {
	const q = `SELECT ` + entryCols + ` FROM entry_bookings WHERE user_id = ? ORDER BY created_at DESC`
	return r.list(ctx, q, userID)
}

// ListByDay returns every entry booking for a day, newest first. Staff
// listing; ownership is not filtered here.
func (r *EntryBookingRepo) ListByDay(ctx context.Context, day time.Time) ([]model.EntryBooking, error) {
	const q = `SELECT ` + entryCols + ` FROM entry_bookings WHERE day = ? ORDER BY created_at DESC`
	return r.list(ctx, q, day.Format(model.DayFormat))
}

func (r *EntryBookingRepo) list(ctx context.Context, q string, arg interface{}) ([]model.EntryBooking, error) {
	rows, err := r.db.QueryContext(ctx, q, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.EntryBooking, 0)
	index := make(map[uint64]int)
	for rows.Next() {
		var b model.EntryBooking
		if err := rows.Scan(
			&b.ID, &b.Ref, &b.UserID, &b.Day, &b.VisitorType, &b.TimeSlot,
			&b.Tickets, &b.TotalCents, &b.Currency,
			&b.Status, &b.PaymentStatus, &b.TicketToken, &b.TicketIssuedAt, &b.ScannedAt,
			&b.CreatedAt, &b.UpdatedAt,
		); err != nil {
			return nil, err
		}
		b.Items = []model.EntryItem{}
		index[b.ID] = len(out)
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}
	ids := make([]uint64, 0, len(out))
	for _, b := range out {
		ids = append(ids, b.ID)
	}
	items, err := r.itemsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for id, its := range items {
		out[index[id]].Items = its
	}
	return out, nil
}

// itemsFor loads line items for a set of bookings in a single query.
func (r *EntryBookingRepo) itemsFor(ctx context.Context, ids []uint64) (map[uint64][]model.EntryItem, error) {
	if len(ids) == 0 {
		return map[uint64][]model.EntryItem{}, nil
	}
	placeholders := make([]string, 0, len(ids))
	args := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		placeholders = append(placeholders, "?")
		args = append(args, id)
	}
	q := `SELECT booking_id, item_type, quantity, unit_price_cents
	      FROM entry_booking_items
	      WHERE booking_id IN (` + strings.Join(placeholders, ",") + `)
	      ORDER BY booking_id, item_type`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[uint64][]model.EntryItem)
	for rows.Next() {
		var bid uint64
		var it model.EntryItem
		if err := rows.Scan(&bid, &it.Type, &it.Quantity, &it.UnitPriceCents); err != nil {
			return nil, err
		}
		out[bid] = append(out[bid], it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// MarkPaid flips payment_status from PENDING to PAID. Zero affected rows
// means a concurrent transition got there first; the caller re-reads and
// decides.
func (r *EntryBookingRepo) MarkPaid(ctx context.Context, id uint64) error {
	const q = `UPDATE entry_bookings SET payment_status = ? WHERE id = ? AND status = ? AND payment_status = ?`
	res, err := r.db.ExecContext(ctx, q, model.PaymentPaid, id, model.StatusBooked, model.PaymentPending)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrInvalidState
	}
	return nil
}

// CancelRelease cancels an unpaid entry booking and returns its
// admissions to the day's cap, in one transaction. Uncapped days restore
// nothing.
func (r *EntryBookingRepo) CancelRelease(ctx context.Context, id uint64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var day time.Time
	var tickets uint32
	const sel = `SELECT day, tickets FROM entry_bookings WHERE id = ? FOR UPDATE`
	if err := tx.QueryRowContext(ctx, sel, id).Scan(&day, &tickets); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}

	const upd = `UPDATE entry_bookings SET status = ? WHERE id = ? AND status = ? AND payment_status = ?`
	res, err := tx.ExecContext(ctx, upd, model.StatusCancelled, id, model.StatusBooked, model.PaymentPending)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrInvalidState
	}
	if err := releaseDayTx(ctx, tx, day, tickets); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// SetTicketToken caches the signed gate token on the booking, first
// writer wins.
func (r *EntryBookingRepo) SetTicketToken(ctx context.Context, id uint64, token string, issuedAt time.Time) error {
	const q = `UPDATE entry_bookings SET ticket_token = ?, ticket_issued_at = ? WHERE id = ? AND ticket_token IS NULL`
	_, err := r.db.ExecContext(ctx, q, token, issuedAt.UTC(), id)
	return err
}

// MarkScanned stamps scanned_at once. It reports false when the booking
// was already scanned, so the gate can surface re-entry attempts.
func (r *EntryBookingRepo) MarkScanned(ctx context.Context, id uint64, at time.Time) (bool, error) {
	const q = `UPDATE entry_bookings SET scanned_at = ? WHERE id = ? AND scanned_at IS NULL`
	res, err := r.db.ExecContext(ctx, q, at.UTC(), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
