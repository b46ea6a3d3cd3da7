package model

import "time"

// Booking status values, shared by event and entry bookings.
const (
	StatusBooked    = "BOOKED"
	StatusCancelled = "CANCELLED"
)

// Payment status values.  REFUNDED exists for staff-initiated corrections
// on entry bookings; no code path in this core sets it.
const (
	PaymentPending  = "PENDING"
	PaymentPaid     = "PAID"
	PaymentRefunded = "REFUNDED"
)

// Booking records a user's seat reservation for an event.  A booking is
// created only after its seats have been secured against the event's
// remaining capacity, in the same storage transaction.  At most one
// BOOKED-status row may exist per (user, event) pair.
//
// Fields:
//  ID             – primary key identifier.
//  Ref            – human-shareable reference code (HS- prefix).
//  UserID         – owning user; the only actor allowed to cancel.
//  EventID        – offering being reserved.
//  Tickets        – number of seats reserved; at least 1.
//  AttendeeName   – name presented at the gate.
//  Phone          – contact number for the gate office.
//  Note           – optional free-text note from the visitor.
//  Status         – BOOKED or CANCELLED.
//  PaymentStatus  – PENDING or PAID; PAID bookings are immutable.
//  TicketToken    – cached signed gate token, set on first issuance.
//  TicketIssuedAt – when the cached token was issued.
//  CreatedAt      – creation timestamp.
//  UpdatedAt      – last update timestamp.
type Booking struct {
	ID             uint64     `json:"id"`
	Ref            string     `json:"ref"`
	UserID         uint64     `json:"user_id"`
	EventID        uint64     `json:"event_id"`
	Tickets        uint32     `json:"tickets"`
	AttendeeName   string     `json:"attendee_name"`
	Phone          string     `json:"phone"`
	Note           string     `json:"note,omitempty"`
	Status         string     `json:"status"`
	PaymentStatus  string     `json:"payment_status"`
	TicketToken    *string    `json:"ticket_token,omitempty"`
	TicketIssuedAt *time.Time `json:"ticket_issued_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Active reports whether the booking still holds seats.
func (b *Booking) Active() bool { return b.Status == StatusBooked }

// Paid reports whether the booking has been paid for.
func (b *Booking) Paid() bool { return b.PaymentStatus == PaymentPaid }
