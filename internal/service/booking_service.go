package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hasthilk/ticketing/internal/model"
	"github.com/hasthilk/ticketing/internal/queue"
	"github.com/hasthilk/ticketing/internal/repository"
	"github.com/hasthilk/ticketing/internal/ticket"
)

// BookingService is the lifecycle controller for event bookings:
// pending+booked -> paid+booked (terminal), with the escape edge
// pending+booked -> cancelled while unpaid. Paid bookings are immutable.
type BookingService struct {
	events EventStore
	store  BookingStore
	issuer *ticket.Issuer
	pub    Publisher // nil disables event publishing
}

// NewBookingService constructs a BookingService. events, store and issuer
// must be non-nil; pub may be nil.
func NewBookingService(events EventStore, store BookingStore, issuer *ticket.Issuer, pub Publisher) *BookingService {
	if events == nil || store == nil || issuer == nil {
		panic("nil dependency passed to NewBookingService")
	}
	return &BookingService{events: events, store: store, issuer: issuer, pub: pub}
}

// maxTicketsPerBooking bounds a single booking's ticket count, on both
// booking kinds. Group visits beyond this go through the office, not the
// public API.
const maxTicketsPerBooking = 1000

// CreateBookingInput carries the visitor's request to reserve seats.
type CreateBookingInput struct {
	EventID      uint64 `json:"event_id"`
	Tickets      int    `json:"tickets"`
	AttendeeName string `json:"attendee_name"`
	Phone        string `json:"phone"`
	Note         string `json:"note"`
}

// newRef mints a short human-shareable reference code.
func newRef() string {
	return "HS-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
}

// Create validates the request, pre-checks for a duplicate active
// booking, and asks the store to reserve seats and insert the row in one
// transaction. The unique constraint backstops the duplicate pre-check
// under races; the conditional decrement backstops capacity.
func (s *BookingService) Create(ctx context.Context, actor Actor, in CreateBookingInput) (model.Booking, error) {
	if in.Tickets < 1 || in.Tickets > maxTicketsPerBooking {
		return model.Booking{}, fmt.Errorf("%w: tickets must be between 1 and %d", repository.ErrValidation, maxTicketsPerBooking)
	}
	in.AttendeeName = strings.TrimSpace(in.AttendeeName)
	in.Phone = strings.TrimSpace(in.Phone)
	if in.AttendeeName == "" || in.Phone == "" {
		return model.Booking{}, fmt.Errorf("%w: attendee_name and phone are required", repository.ErrValidation)
	}

	ev, err := s.events.GetByID(ctx, in.EventID)
	if err != nil {
		return model.Booking{}, err
	}
	if ev.Status != model.EventActive {
		return model.Booking{}, repository.ErrInvalidState
	}
	if !ev.EndsAt.After(time.Now().UTC()) {
		return model.Booking{}, repository.ErrInvalidState
	}

	if dup, err := s.store.HasActive(ctx, actor.UserID, in.EventID); err != nil {
		return model.Booking{}, err
	} else if dup {
		return model.Booking{}, repository.ErrDuplicateBooking
	}

	b := model.Booking{
		Ref:          newRef(),
		UserID:       actor.UserID,
		EventID:      in.EventID,
		Tickets:      uint32(in.Tickets),
		AttendeeName: in.AttendeeName,
		Phone:        in.Phone,
		Note:         strings.TrimSpace(in.Note),
	}
	if err := s.store.CreateReserved(ctx, &b); err != nil {
		return model.Booking{}, err
	}
	return b, nil
}

// Get returns a booking to its owner or to staff readers.
func (s *BookingService) Get(ctx context.Context, actor Actor, id uint64) (model.Booking, error) {
	b, err := s.store.GetByID(ctx, id)
	if err != nil {
		return model.Booking{}, err
	}
	if b.UserID != actor.UserID && !staffReader(actor.Role) {
		return model.Booking{}, repository.ErrForbidden
	}
	return b, nil
}

// ListMine returns the actor's own bookings.
func (s *BookingService) ListMine(ctx context.Context, actor Actor) ([]model.Booking, error) {
	return s.store.ListByUser(ctx, actor.UserID)
}

// ListByEvent returns all bookings for an offering; staff only (enforced
// by route middleware, re-checked here).
func (s *BookingService) ListByEvent(ctx context.Context, actor Actor, eventID uint64) ([]model.Booking, error) {
	if !staffReader(actor.Role) {
		return nil, repository.ErrForbidden
	}
	return s.store.ListByEvent(ctx, eventID)
}

// Pay confirms payment on a booking. Only the owner or an admin may call
// it; the booking must still be BOOKED. Calling Pay on an already-paid
// booking is idempotent, but still issues the ticket token if the earlier
// issuance was missed. The ticket.paid event is published only when this
// call actually flipped the payment state.
func (s *BookingService) Pay(ctx context.Context, actor Actor, id uint64) (model.Booking, error) {
	b, err := s.store.GetByID(ctx, id)
	if err != nil {
		return model.Booking{}, err
	}
	if b.UserID != actor.UserID && !model.IsAdmin(actor.Role) {
		return model.Booking{}, repository.ErrForbidden
	}
	if !b.Active() {
		return model.Booking{}, repository.ErrInvalidState
	}

	flipped := false
	if !b.Paid() {
		switch err := s.store.MarkPaid(ctx, id); err {
		case nil:
			flipped = true
			b.PaymentStatus = model.PaymentPaid
		case repository.ErrInvalidState:
			// Lost a race; re-read and accept only if someone else paid.
			b, err = s.store.GetByID(ctx, id)
			if err != nil {
				return model.Booking{}, err
			}
			if !b.Active() || !b.Paid() {
				return model.Booking{}, repository.ErrInvalidState
			}
		default:
			return model.Booking{}, err
		}
	}

	if b.TicketToken == nil {
		b, err = s.issueToken(ctx, b)
		if err != nil {
			return model.Booking{}, err
		}
	}

	if flipped && s.pub != nil {
		title := ""
		total := uint64(0)
		if ev, err := s.events.GetByID(ctx, b.EventID); err == nil {
			title = ev.Title
			total = uint64(b.Tickets) * uint64(ev.UnitPriceCents)
		}
		payload := queue.TicketPaidEvent{
			Kind:       ticket.KindEvent,
			BookingID:  b.ID,
			Ref:        b.Ref,
			UserID:     b.UserID,
			EventID:    b.EventID,
			EventTitle: title,
			Tickets:    b.Tickets,
			TotalCents: total,
			Currency:   model.CurrencyLKR,
			PaidAt:     time.Now().UTC().Format(time.RFC3339),
		}
		if err := s.pub.PublishTicketPaid(ctx, payload); err != nil {
			log.Printf("booking-service: publish ticket.paid failed: %v", err)
		}
	}
	return b, nil
}

// issueToken signs a gate token and caches it on the booking; first
// writer wins, and the re-read below returns whichever token stuck.
func (s *BookingService) issueToken(ctx context.Context, b model.Booking) (model.Booking, error) {
	ev, err := s.events.GetByID(ctx, b.EventID)
	if err != nil {
		return model.Booking{}, err
	}
	tok, _, err := s.issuer.IssueEvent(b.ID, b.UserID, b.EventID, ev.EndsAt)
	if err != nil {
		return model.Booking{}, err
	}
	if err := s.store.SetTicketToken(ctx, b.ID, tok, time.Now().UTC()); err != nil {
		return model.Booking{}, err
	}
	return s.store.GetByID(ctx, b.ID)
}

// Cancel releases an unpaid booking's seats and marks it cancelled. Only
// the owner may cancel, only while unpaid, and only before the offering
// starts. Cancelling an already-cancelled booking returns the current
// state without touching inventory.
func (s *BookingService) Cancel(ctx context.Context, actor Actor, id uint64) (model.Booking, error) {
	b, err := s.store.GetByID(ctx, id)
	if err != nil {
		return model.Booking{}, err
	}
	if b.UserID != actor.UserID {
		return model.Booking{}, repository.ErrForbidden
	}
	if b.Status == model.StatusCancelled {
		return b, nil // idempotent
	}
	if b.Paid() {
		return model.Booking{}, repository.ErrInvalidState
	}
	ev, err := s.events.GetByID(ctx, b.EventID)
	if err != nil {
		return model.Booking{}, err
	}
	if !ev.StartsAt.After(time.Now().UTC()) {
		return model.Booking{}, repository.ErrInvalidState
	}

	if err := s.store.CancelRelease(ctx, id); err != nil {
		if err == repository.ErrInvalidState {
			// Lost a race; idempotent only if the other writer cancelled.
			b, rerr := s.store.GetByID(ctx, id)
			if rerr == nil && b.Status == model.StatusCancelled {
				return b, nil
			}
		}
		return model.Booking{}, err
	}
	return s.store.GetByID(ctx, id)
}

// TicketToken returns the booking's cached gate token, issuing it first
// if payment was confirmed through a path that skipped issuance. Owner or
// admin only; the booking must be booked and paid.
func (s *BookingService) TicketToken(ctx context.Context, actor Actor, id uint64) (model.Booking, error) {
	b, err := s.store.GetByID(ctx, id)
	if err != nil {
		return model.Booking{}, err
	}
	if b.UserID != actor.UserID && !model.IsAdmin(actor.Role) {
		return model.Booking{}, repository.ErrForbidden
	}
	if !b.Active() || !b.Paid() {
		return model.Booking{}, repository.ErrInvalidState
	}
	if b.TicketToken == nil {
		return s.issueToken(ctx, b)
	}
	return b, nil
}

// VerifiedTicket is the result of a successful gate verification or a
// public resolve.
type VerifiedTicket struct {
	Kind         string     `json:"kind"`
	BookingID    uint64     `json:"booking_id"`
	Ref          string     `json:"ref"`
	Tickets      uint32     `json:"tickets"`
	AttendeeName string     `json:"attendee_name,omitempty"`
	EventID      uint64     `json:"event_id,omitempty"`
	EventTitle   string     `json:"event_title,omitempty"`
	StartsAt     *time.Time `json:"starts_at,omitempty"`
	EndsAt       *time.Time `json:"ends_at,omitempty"`
	Day          string     `json:"day,omitempty"`
	VisitorType  string     `json:"visitor_type,omitempty"`
	Scanned      bool       `json:"scanned,omitempty"`
	ScannedAt    *time.Time `json:"scanned_at,omitempty"`
}

// Verify validates a gate token cryptographically, then re-fetches the
// booking and confirms the embedded ids still match and the booking is
// still booked and paid. A structurally valid token for a since-cancelled
// booking fails. Verification of event tickets has no side effects.
func (s *BookingService) Verify(ctx context.Context, raw string) (VerifiedTicket, error) {
	b, err := s.verified(ctx, raw)
	if err != nil {
		return VerifiedTicket{}, err
	}
	return VerifiedTicket{
		Kind:         ticket.KindEvent,
		BookingID:    b.ID,
		Ref:          b.Ref,
		Tickets:      b.Tickets,
		AttendeeName: b.AttendeeName,
		EventID:      b.EventID,
	}, nil
}

// Resolve is the public variant used by scanning UIs: same checks as
// Verify, richer display payload, no authentication, no side effects.
func (s *BookingService) Resolve(ctx context.Context, raw string) (VerifiedTicket, error) {
	b, err := s.verified(ctx, raw)
	if err != nil {
		return VerifiedTicket{}, err
	}
	out := VerifiedTicket{
		Kind:         ticket.KindEvent,
		BookingID:    b.ID,
		Ref:          b.Ref,
		Tickets:      b.Tickets,
		AttendeeName: b.AttendeeName,
		EventID:      b.EventID,
	}
	if ev, err := s.events.GetByID(ctx, b.EventID); err == nil {
		out.EventTitle = ev.Title
		starts, ends := ev.StartsAt, ev.EndsAt
		out.StartsAt, out.EndsAt = &starts, &ends
	}
	return out, nil
}

func (s *BookingService) verified(ctx context.Context, raw string) (model.Booking, error) {
	claims, err := s.issuer.Verify(raw)
	if err != nil {
		return model.Booking{}, err
	}
	if claims.Kind != ticket.KindEvent {
		return model.Booking{}, repository.ErrTokenInvalid
	}
	b, err := s.store.GetByID(ctx, claims.BookingID)
	if err != nil {
		// A token referencing a missing booking is indistinguishable
		// from a forged one at the gate.
		return model.Booking{}, repository.ErrTokenInvalid
	}
	if b.UserID != claims.UserID || b.EventID != claims.EventID {
		return model.Booking{}, repository.ErrTokenInvalid
	}
	if !b.Active() || !b.Paid() {
		return model.Booking{}, repository.ErrTokenInvalid
	}
	return b, nil
}

// staffReader reports whether the role may read bookings across users.
func staffReader(role string) bool {
	return role == model.RoleAdmin || role == model.RoleManager
}
