// Package queue defines message payloads exchanged over the message broker.
package queue

// TicketPaidQueue is the durable queue fed by the pay transition and
// drained by the gate-office log consumer.
const TicketPaidQueue = "ticket.paid"

// TicketPaidEvent is published when a booking's payment is confirmed. It
// carries enough for downstream consumers to log and reconcile without
// querying the primary database. EventID/EventTitle are set for event
// bookings, Day for entry bookings.
type TicketPaidEvent struct {
	Kind       string `json:"kind"` // "event" or "entry"
	BookingID  uint64 `json:"booking_id"`
	Ref        string `json:"ref"`
	UserID     uint64 `json:"user_id"`
	EventID    uint64 `json:"event_id,omitempty"`
	EventTitle string `json:"event_title,omitempty"`
	Day        string `json:"day,omitempty"`
	Tickets    uint32 `json:"tickets"`
	TotalCents uint64 `json:"total_cents"`
	Currency   string `json:"currency"`
	PaidAt     string `json:"paid_at"`
}
