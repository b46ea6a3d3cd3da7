package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/hasthilk/ticketing/internal/model"
)

// BookingRepo provides persistence for event bookings. Seat reservation
// and booking insertion run in one transaction, so a failed insert rolls
// the decrement back without a compensating update. The bookings table
// carries an `active` column (1 while BOOKED, NULL once CANCELLED) under
// UNIQUE KEY (user_id, event_id, active); NULLs never collide, so the
// constraint admits any number of cancelled rows per pair but at most one
// active booking.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingCols = `id, ref, user_id, event_id, tickets, attendee_name, phone, note,
	status, payment_status, ticket_token, ticket_issued_at, created_at, updated_at`

// CreateReserved secures b.Tickets seats against the event's remaining
// capacity and inserts the booking row, atomically. On success b is
// populated with its generated ID and timestamps. Returns ErrNotFound,
// ErrInvalidState or ErrInsufficientCapacity from the decrement, and
// ErrDuplicateBooking when the unique-constraint backstop fires.
func (r *BookingRepo) CreateReserved(ctx context.Context, b *model.Booking) error {
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

	if err := ensureRemainingTx(ctx, tx, b.EventID); err != nil {
		return err
	}
	if err := reserveSeatsTx(ctx, tx, b.EventID, b.Tickets); err != nil {
		return err
	}

	const ins = `INSERT INTO bookings (ref, user_id, event_id, tickets, attendee_name, phone, note, status, payment_status, active)
	             VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`
	res, err := tx.ExecContext(ctx, ins,
		b.Ref, b.UserID, b.EventID, b.Tickets,
		b.AttendeeName, b.Phone, b.Note,
		model.StatusBooked, model.PaymentPending)
	if err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == 1062 {
			return ErrDuplicateBooking
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	b.Status = model.StatusBooked
	b.PaymentStatus = model.PaymentPending

	const sel = `SELECT created_at, updated_at FROM bookings WHERE id = ?`
	if err := tx.QueryRowContext(ctx, sel, b.ID).Scan(&b.CreatedAt, &b.UpdatedAt); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// GetByID returns a single booking by primary key.
func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (model.Booking, error) {
	var b model.Booking
	err := r.db.QueryRowContext(ctx, `SELECT `+bookingCols+` FROM bookings WHERE id = ?`, id).Scan(
		&b.ID, &b.Ref, &b.UserID, &b.EventID, &b.Tickets,
		&b.AttendeeName, &b.Phone, &b.Note,
		&b.Status, &b.PaymentStatus, &b.TicketToken, &b.TicketIssuedAt,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Booking{}, ErrNotFound
	}
	if err != nil {
		return model.Booking{}, err
	}
	return b, nil
}

// HasActive reports whether the user already holds a BOOKED-status booking
// for the offering. This is the pre-check; the unique constraint is the
// backstop against races.
func (r *BookingRepo) HasActive(ctx context.Context, userID, eventID uint64) (bool, error) {
	const q = `SELECT 1 FROM bookings WHERE user_id = ? AND event_id = ? AND status = ? LIMIT 1`
	var one int
	err := r.db.QueryRowContext(ctx, q, userID, eventID, model.StatusBooked).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ListByUser returns the user's bookings, newest first.
func (r *BookingRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Booking, error) {
	const q = `SELECT ` + bookingCols + ` FROM bookings WHERE user_id = ? ORDER BY created_at DESC`
	return r.list(ctx, q, userID)
}

// ListByEvent returns every booking for an offering, newest first. Staff
// listing; ownership is not filtered here.
func (r *BookingRepo) ListByEvent(ctx context.Context, eventID uint64) ([]model.Booking, error) {
	const q = `SELECT ` + bookingCols + ` FROM bookings WHERE event_id = ? ORDER BY created_at DESC`
	return r.list(ctx, q, eventID)
}

func (r *BookingRepo) list(ctx context.Context, q string, arg uint64) ([]model.Booking, error) {
	rows, err := r.db.QueryContext(ctx, q, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Booking, 0)
	for rows.Next() {
		var b model.Booking
		if err := rows.Scan(
			&b.ID, &b.Ref, &b.UserID, &b.EventID, &b.Tickets,
			&b.AttendeeName, &b.Phone, &b.Note,
			&b.Status, &b.PaymentStatus, &b.TicketToken, &b.TicketIssuedAt,
			&b.CreatedAt, &b.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// MarkPaid flips payment_status from PENDING to PAID. Zero affected rows
// means a concurrent transition got there first; the caller re-reads and
// decides.
func (r *BookingRepo) MarkPaid(ctx context.Context, id uint64) error {
	const q = `UPDATE bookings SET payment_status = ? WHERE id = ? AND status = ? AND payment_status = ?`
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

// CancelRelease cancels an unpaid booking and returns its seats to the
// offering, in one transaction. The row is locked first so the ticket
// count read for the release cannot go stale. Returns ErrInvalidState when
// the booking is not in the BOOKED+PENDING state.
func (r *BookingRepo) CancelRelease(ctx context.Context, id uint64) error {
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

	var eventID uint64
	var tickets uint32
	const sel = `SELECT event_id, tickets FROM bookings WHERE id = ? FOR UPDATE`
	if err := tx.QueryRowContext(ctx, sel, id).Scan(&eventID, &tickets); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}

	const upd = `UPDATE bookings SET status = ?, active = NULL WHERE id = ? AND status = ? AND payment_status = ?`
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
	if err := releaseSeatsTx(ctx, tx, eventID, tickets); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// SetTicketToken caches the signed gate token on the booking. The token is
// written once; later issuance calls return the cached value so QR codes
// already displayed stay valid.
func (r *BookingRepo) SetTicketToken(ctx context.Context, id uint64, token string, issuedAt time.Time) error {
	const q = `UPDATE bookings SET ticket_token = ?, ticket_issued_at = ? WHERE id = ? AND ticket_token IS NULL`
	_, err := r.db.ExecContext(ctx, q, token, issuedAt.UTC(), id)
	return err
}
