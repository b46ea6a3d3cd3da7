package model

import "time"

// Visitor types for general-entry tickets.  The type drives the unit price.
const (
	VisitorLocal   = "LOCAL"
	VisitorForeign = "FOREIGN"
)

// Entry ticket item types.
const (
	ItemAdult = "ADULT"
	ItemChild = "CHILD"
)

// Currency is fixed; the sanctuary sells in Sri Lankan rupees.
const CurrencyLKR = "LKR"

// DayFormat is the wire and storage format for entry days.
const DayFormat = "2006-01-02"

// EntryInventory caps general-entry admissions for a single day.  Days
// without a row are deliberately uncapped: the gate admits freely and no
// decrement is attempted.  Remaining is mutated only through the
// repository's conditional decrement and increment.
//
// Fields:
//  Day                – calendar day, unique key.
//  Capacity           – admissions cap for the day.
//  Remaining          – admissions still available; 0 <= Remaining <= Capacity.
//  LocalPriceCents    – adult unit price for local visitors.
//  ForeignPriceCents  – adult unit price for foreign visitors.
//  CreatedAt          – creation timestamp.
//  UpdatedAt          – last update timestamp.
type EntryInventory struct {
	Day               time.Time `json:"day"`
	Capacity          uint32    `json:"capacity"`
	Remaining         uint32    `json:"remaining"`
	LocalPriceCents   uint32    `json:"local_price_cents"`
	ForeignPriceCents uint32    `json:"foreign_price_cents"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// EntryItem is one line of an entry booking: a quantity of adult or child
// tickets at a uniform unit price.  Child tickets are half the adult unit
// price for the booking's visitor type, rounded down.
type EntryItem struct {
	Type           string `json:"type"`
	Quantity       uint32 `json:"quantity"`
	UnitPriceCents uint32 `json:"unit_price_cents"`
}

// EntryBooking records a general-entry reservation for a calendar day.
//
// Fields:
//  ID             – primary key identifier.
//  Ref            – human-shareable reference code (HS- prefix).
//  UserID         – owning user.
//  Day            – visit day.
//  VisitorType    – LOCAL or FOREIGN; selects the price table.
//  TimeSlot       – optional preferred arrival slot (e.g. "morning").
//  Items          – adult/child line items.
//  Tickets        – sum of item quantities.
//  TotalCents     – derived total across items.
//  Currency       – always LKR.
//  Status         – BOOKED or CANCELLED.
//  PaymentStatus  – PENDING, PAID or REFUNDED.
//  TicketToken    – cached signed gate token.
//  TicketIssuedAt – when the cached token was issued.
//  ScannedAt      – set once, when the ticket is first verified at the gate.
//  CreatedAt      – creation timestamp.
//  UpdatedAt      – last update timestamp.
type EntryBooking struct {
	ID             uint64      `json:"id"`
	Ref            string      `json:"ref"`
	UserID         uint64      `json:"user_id"`
	Day            time.Time   `json:"day"`
	VisitorType    string      `json:"visitor_type"`
	TimeSlot       *string     `json:"time_slot,omitempty"`
	Items          []EntryItem `json:"items"`
	Tickets        uint32      `json:"tickets"`
	TotalCents     uint32      `json:"total_cents"`
	Currency       string      `json:"currency"`
	Status         string      `json:"status"`
	PaymentStatus  string      `json:"payment_status"`
	TicketToken    *string     `json:"ticket_token,omitempty"`
	TicketIssuedAt *time.Time  `json:"ticket_issued_at,omitempty"`
	ScannedAt      *time.Time  `json:"scanned_at,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// Active reports whether the entry booking still holds admissions.
func (b *EntryBooking) Active() bool { return b.Status == StatusBooked }

// Paid reports whether the entry booking has been paid for.
func (b *EntryBooking) Paid() bool { return b.PaymentStatus == PaymentPaid }
