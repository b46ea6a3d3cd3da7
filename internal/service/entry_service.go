package service

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/hasthilk/ticketing/internal/model"
	"github.com/hasthilk/ticketing/internal/queue"
	"github.com/hasthilk/ticketing/internal/repository"
	"github.com/hasthilk/ticketing/internal/ticket"
)

// EntryPricing holds the fallback adult prices used for days without an
// inventory row. Child tickets are half the adult price, rounded down.
type EntryPricing struct {
	LocalCents   uint32
	ForeignCents uint32
}

// EntryService is the lifecycle controller for general-entry bookings.
// The state machine matches BookingService; the differences are day-based
// inventory (absent row = uncapped), visitor-type pricing with line
// items, and gate verification stamping scanned_at.
type EntryService struct {
	inventory EntryInventoryStore
	store     EntryStore
	issuer    *ticket.Issuer
	pricing   EntryPricing
	pub       Publisher // nil disables event publishing
}

// NewEntryService constructs an EntryService. inventory, store and issuer
// must be non-nil; pub may be nil.
func NewEntryService(inventory EntryInventoryStore, store EntryStore, issuer *ticket.Issuer, pricing EntryPricing, pub Publisher) *EntryService {
	if inventory == nil || store == nil || issuer == nil {
		panic("nil dependency passed to NewEntryService")
	}
	return &EntryService{inventory: inventory, store: store, issuer: issuer, pricing: pricing, pub: pub}
}

// EntryItemInput is one requested line of adult or child tickets.
type EntryItemInput struct {
	Type     string `json:"type"`
	Quantity int    `json:"quantity"`
}

// CreateEntryInput carries the visitor's request for general entry.
type CreateEntryInput struct {
	Day         string           `json:"day"` // model.DayFormat
	VisitorType string           `json:"visitor_type"`
	TimeSlot    string           `json:"time_slot"`
	Items       []EntryItemInput `json:"items"`
}

// Create validates and prices the request, then asks the store to secure
// the day's admissions and insert the booking in one transaction. Days
// with no inventory row are uncapped by policy and skip the decrement
// entirely.
func (s *EntryService) Create(ctx context.Context, actor Actor, in CreateEntryInput) (model.EntryBooking, error) {
	day, err := time.Parse(model.DayFormat, in.Day)
	if err != nil {
		return model.EntryBooking{}, fmt.Errorf("%w: day must be YYYY-MM-DD", repository.ErrValidation)
	}
	today := time.Now().UTC().Truncate(24 * time.Hour)
	if day.Before(today) {
		return model.EntryBooking{}, fmt.Errorf("%w: day is in the past", repository.ErrValidation)
	}
	visitorType := strings.ToUpper(strings.TrimSpace(in.VisitorType))
	if visitorType != model.VisitorLocal && visitorType != model.VisitorForeign {
		return model.EntryBooking{}, fmt.Errorf("%w: visitor_type must be LOCAL or FOREIGN", repository.ErrValidation)
	}
	if len(in.Items) == 0 {
		return model.EntryBooking{}, fmt.Errorf("%w: at least one item is required", repository.ErrValidation)
	}

	// Adult unit price comes from the day's inventory row when present,
	// else from configured defaults; uniform across the booking.
	adult := s.pricing.LocalCents
	if visitorType == model.VisitorForeign {
		adult = s.pricing.ForeignCents
	}
	if inv, err := s.inventory.GetDay(ctx, day); err == nil {
		if visitorType == model.VisitorForeign {
			adult = inv.ForeignPriceCents
		} else {
			adult = inv.LocalPriceCents
		}
	} else if err != repository.ErrNotFound {
		return model.EntryBooking{}, err
	}
	child := adult / 2

	// Quantities and the running totals stay in uint64 until the bounds
	// checks pass, so oversized requests are rejected instead of wrapping.
	items := make([]model.EntryItem, 0, len(in.Items))
	tickets := uint64(0)
	total := uint64(0)
	for _, it := range in.Items {
		if it.Quantity < 1 || it.Quantity > maxTicketsPerBooking {
			return model.EntryBooking{}, fmt.Errorf("%w: item quantity must be between 1 and %d", repository.ErrValidation, maxTicketsPerBooking)
		}
		unit := adult
		switch strings.ToUpper(strings.TrimSpace(it.Type)) {
		case model.ItemAdult:
		case model.ItemChild:
			unit = child
		default:
			return model.EntryBooking{}, fmt.Errorf("%w: item type must be ADULT or CHILD", repository.ErrValidation)
		}
		q := uint64(it.Quantity)
		items = append(items, model.EntryItem{
			Type:           strings.ToUpper(strings.TrimSpace(it.Type)),
			Quantity:       uint32(q),
			UnitPriceCents: unit,
		})
		tickets += q
		if tickets > maxTicketsPerBooking {
			return model.EntryBooking{}, fmt.Errorf("%w: at most %d tickets per booking", repository.ErrValidation, maxTicketsPerBooking)
		}
		total += q * uint64(unit)
	}
	if total > math.MaxUint32 {
		return model.EntryBooking{}, fmt.Errorf("%w: booking total is out of range", repository.ErrValidation)
	}

	b := model.EntryBooking{
		Ref:         newRef(),
		UserID:      actor.UserID,
		Day:         day,
		VisitorType: visitorType,
		Items:       items,
		Tickets:     uint32(tickets),
		TotalCents:  uint32(total),
		Currency:    model.CurrencyLKR,
	}
	if slot := strings.TrimSpace(in.TimeSlot); slot != "" {
		b.TimeSlot = &slot
	}
	if err := s.store.CreateReserved(ctx, &b); err != nil {
		return model.EntryBooking{}, err
	}
	return b, nil
}

// ListMine returns the actor's own entry bookings.
func (s *EntryService) ListMine(ctx context.Context, actor Actor) ([]model.EntryBooking, error) {
	return s.store.ListByUser(ctx, actor.UserID)
}

// ListByDay returns all entry bookings for a day; staff only.
func (s *EntryService) ListByDay(ctx context.Context, actor Actor, day time.Time) ([]model.EntryBooking, error) {
	if !staffReader(actor.Role) {
		return nil, repository.ErrForbidden
	}
	return s.store.ListByDay(ctx, day)
}

// Pay confirms payment on an entry booking; semantics match
// BookingService.Pay, including idempotence and late token issuance.
func (s *EntryService) Pay(ctx context.Context, actor Actor, id uint64) (model.EntryBooking, error) {
	b, err := s.store.GetByID(ctx, id)
	if err != nil {
		return model.EntryBooking{}, err
	}
	if b.UserID != actor.UserID && !model.IsAdmin(actor.Role) {
		return model.EntryBooking{}, repository.ErrForbidden
	}
	if !b.Active() {
		return model.EntryBooking{}, repository.ErrInvalidState
	}

	flipped := false
	if !b.Paid() {
		switch err := s.store.MarkPaid(ctx, id); err {
		case nil:
			flipped = true
			b.PaymentStatus = model.PaymentPaid
		case repository.ErrInvalidState:
			b, err = s.store.GetByID(ctx, id)
			if err != nil {
				return model.EntryBooking{}, err
			}
			if !b.Active() || !b.Paid() {
				return model.EntryBooking{}, repository.ErrInvalidState
			}
		default:
			return model.EntryBooking{}, err
		}
	}

	if b.TicketToken == nil {
		b, err = s.issueToken(ctx, b)
		if err != nil {
			return model.EntryBooking{}, err
		}
	}

	if flipped && s.pub != nil {
		payload := queue.TicketPaidEvent{
			Kind:       ticket.KindEntry,
			BookingID:  b.ID,
			Ref:        b.Ref,
			UserID:     b.UserID,
			Day:        b.Day.Format(model.DayFormat),
			Tickets:    b.Tickets,
			TotalCents: uint64(b.TotalCents),
			Currency:   b.Currency,
			PaidAt:     time.Now().UTC().Format(time.RFC3339),
		}
		if err := s.pub.PublishTicketPaid(ctx, payload); err != nil {
			log.Printf("entry-service: publish ticket.paid failed: %v", err)
		}
	}
	return b, nil
}

func (s *EntryService) issueToken(ctx context.Context, b model.EntryBooking) (model.EntryBooking, error) {
	tok, _, err := s.issuer.IssueEntry(b.ID, b.UserID, b.Day)
	if err != nil {
		return model.EntryBooking{}, err
	}
	if err := s.store.SetTicketToken(ctx, b.ID, tok, time.Now().UTC()); err != nil {
		return model.EntryBooking{}, err
	}
	return s.store.GetByID(ctx, b.ID)
}

// Cancel releases an unpaid entry booking's admissions. Owner only, only
// while unpaid, and only while the visit day has not passed. Idempotent
// for already-cancelled bookings.
func (s *EntryService) Cancel(ctx context.Context, actor Actor, id uint64) (model.EntryBooking, error) {
	b, err := s.store.GetByID(ctx, id)
	if err != nil {
		return model.EntryBooking{}, err
	}
	if b.UserID != actor.UserID {
		return model.EntryBooking{}, repository.ErrForbidden
	}
	if b.Status == model.StatusCancelled {
		return b, nil // idempotent
	}
	if b.Paid() {
		return model.EntryBooking{}, repository.ErrInvalidState
	}
	today := time.Now().UTC().Truncate(24 * time.Hour)
	if b.Day.Before(today) {
		return model.EntryBooking{}, repository.ErrInvalidState
	}

	if err := s.store.CancelRelease(ctx, id); err != nil {
		if err == repository.ErrInvalidState {
			b, rerr := s.store.GetByID(ctx, id)
			if rerr == nil && b.Status == model.StatusCancelled {
				return b, nil
			}
		}
		return model.EntryBooking{}, err
	}
	return s.store.GetByID(ctx, id)
}

// TicketToken returns the cached gate token, issuing it if missing. Owner
// or admin only; the booking must be booked and paid.
func (s *EntryService) TicketToken(ctx context.Context, actor Actor, id uint64) (model.EntryBooking, error) {
	b, err := s.store.GetByID(ctx, id)
	if err != nil {
		return model.EntryBooking{}, err
	}
	if b.UserID != actor.UserID && !model.IsAdmin(actor.Role) {
		return model.EntryBooking{}, repository.ErrForbidden
	}
	if !b.Active() || !b.Paid() {
		return model.EntryBooking{}, repository.ErrInvalidState
	}
	if b.TicketToken == nil {
		return s.issueToken(ctx, b)
	}
	return b, nil
}

// Verify validates a gate token and the booking's live state, then stamps
// scanned_at on first scan. The result reports whether this scan was the
// first, so the gate can flag re-entry attempts.
func (s *EntryService) Verify(ctx context.Context, raw string) (VerifiedTicket, error) {
	b, err := s.verified(ctx, raw)
	if err != nil {
		return VerifiedTicket{}, err
	}
	first, err := s.store.MarkScanned(ctx, b.ID, time.Now().UTC())
	if err != nil {
		return VerifiedTicket{}, err
	}
	out := s.display(b)
	out.Scanned = !first
	if !first {
		out.ScannedAt = b.ScannedAt
	}
	return out, nil
}

// Resolve is the public, side-effect-free variant for scanning UIs.
func (s *EntryService) Resolve(ctx context.Context, raw string) (VerifiedTicket, error) {
	b, err := s.verified(ctx, raw)
	if err != nil {
		return VerifiedTicket{}, err
	}
	out := s.display(b)
	out.Scanned = b.ScannedAt != nil
	out.ScannedAt = b.ScannedAt
	return out, nil
}

func (s *EntryService) display(b model.EntryBooking) VerifiedTicket {
	return VerifiedTicket{
		Kind:        ticket.KindEntry,
		BookingID:   b.ID,
		Ref:         b.Ref,
		Tickets:     b.Tickets,
		Day:         b.Day.Format(model.DayFormat),
		VisitorType: b.VisitorType,
	}
}

func (s *EntryService) verified(ctx context.Context, raw string) (model.EntryBooking, error) {
	claims, err := s.issuer.Verify(raw)
	if err != nil {
		return model.EntryBooking{}, err
	}
	if claims.Kind != ticket.KindEntry {
		return model.EntryBooking{}, repository.ErrTokenInvalid
	}
	b, err := s.store.GetByID(ctx, claims.BookingID)
	if err != nil {
		return model.EntryBooking{}, repository.ErrTokenInvalid
	}
	if b.UserID != claims.UserID || b.Day.Format(model.DayFormat) != claims.Day {
		return model.EntryBooking{}, repository.ErrTokenInvalid
	}
	if !b.Active() || !b.Paid() {
		return model.EntryBooking{}, repository.ErrTokenInvalid
	}
	return b, nil
}
