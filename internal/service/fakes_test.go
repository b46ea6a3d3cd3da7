package service

// In-memory stores mirroring the transactional contracts of the MySQL
// repositories, so lifecycle and concurrency behaviour can be tested
// without a database. All mutations run under one mutex per store, which
// gives the same all-or-nothing visibility the real transactions do.

import (
	"context"
	"sync"
	"time"

	"github.com/hasthilk/ticketing/internal/model"
	"github.com/hasthilk/ticketing/internal/queue"
	"github.com/hasthilk/ticketing/internal/repository"
)

type memEventStore struct {
	mu     sync.Mutex
	events map[uint64]*model.Event
}

func newMemEventStore() *memEventStore {
	return &memEventStore{events: make(map[uint64]*model.Event)}
}

func (s *memEventStore) add(e model.Event) *model.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := e
	if cp.Status == "" {
		cp.Status = model.EventActive
	}
	s.events[cp.ID] = &cp
	return &cp
}

func (s *memEventStore) GetByID(_ context.Context, id uint64) (model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return model.Event{}, repository.ErrNotFound
	}
	return *e, nil
}

type memBookingStore struct {
	mu       sync.Mutex
	events   *memEventStore
	bookings map[uint64]*model.Booking
	nextID   uint64

	failCreate error // when set, CreateReserved fails after no mutation
}

func newMemBookingStore(events *memEventStore) *memBookingStore {
	return &memBookingStore{events: events, bookings: make(map[uint64]*model.Booking)}
}

func (s *memBookingStore) CreateReserved(_ context.Context, b *model.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreate != nil {
		return s.failCreate
	}

	s.events.mu.Lock()
	defer s.events.mu.Unlock()
	ev, ok := s.events.events[b.EventID]
	if !ok {
		return repository.ErrNotFound
	}
	if ev.Status != model.EventActive {
		return repository.ErrInvalidState
	}
	if ev.RemainingSeats < b.Tickets {
		return repository.ErrInsufficientCapacity
	}
	for _, other := range s.bookings {
		if other.UserID == b.UserID && other.EventID == b.EventID && other.Status == model.StatusBooked {
			return repository.ErrDuplicateBooking
		}
	}

	ev.RemainingSeats -= b.Tickets
	s.nextID++
	b.ID = s.nextID
	b.Status = model.StatusBooked
	b.PaymentStatus = model.PaymentPending
	now := time.Now().UTC()
	b.CreatedAt, b.UpdatedAt = now, now
	cp := *b
	s.bookings[b.ID] = &cp
	return nil
}

func (s *memBookingStore) GetByID(_ context.Context, id uint64) (model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return model.Booking{}, repository.ErrNotFound
	}
	return *b, nil
}

func (s *memBookingStore) HasActive(_ context.Context, userID, eventID uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.bookings {
		if b.UserID == userID && b.EventID == eventID && b.Status == model.StatusBooked {
			return true, nil
		}
	}
	return false, nil
}

func (s *memBookingStore) ListByUser(_ context.Context, userID uint64) ([]model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Booking, 0)
	for _, b := range s.bookings {
		if b.UserID == userID {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (s *memBookingStore) ListByEvent(_ context.Context, eventID uint64) ([]model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Booking, 0)
	for _, b := range s.bookings {
		if b.EventID == eventID {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (s *memBookingStore) MarkPaid(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return repository.ErrNotFound
	}
	if b.Status != model.StatusBooked || b.PaymentStatus != model.PaymentPending {
		return repository.ErrInvalidState
	}
	b.PaymentStatus = model.PaymentPaid
	b.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *memBookingStore) CancelRelease(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return repository.ErrNotFound
	}
	if b.Status != model.StatusBooked || b.PaymentStatus != model.PaymentPending {
		return repository.ErrInvalidState
	}
	b.Status = model.StatusCancelled
	b.UpdatedAt = time.Now().UTC()

	s.events.mu.Lock()
	defer s.events.mu.Unlock()
	if ev, ok := s.events.events[b.EventID]; ok {
		ev.RemainingSeats += b.Tickets
		if ev.RemainingSeats > ev.Capacity {
			ev.RemainingSeats = ev.Capacity
		}
	}
	return nil
}

func (s *memBookingStore) SetTicketToken(_ context.Context, id uint64, token string, issuedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return repository.ErrNotFound
	}
	if b.TicketToken == nil {
		b.TicketToken = &token
		b.TicketIssuedAt = &issuedAt
	}
	return nil
}

type memInventoryStore struct {
	mu   sync.Mutex
	days map[string]*model.EntryInventory
}

func newMemInventoryStore() *memInventoryStore {
	return &memInventoryStore{days: make(map[string]*model.EntryInventory)}
}

func (s *memInventoryStore) add(inv model.EntryInventory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := inv
	s.days[inv.Day.Format(model.DayFormat)] = &cp
}

func (s *memInventoryStore) remaining(day time.Time) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if inv, ok := s.days[day.Format(model.DayFormat)]; ok {
		return inv.Remaining
	}
	return 0
}

func (s *memInventoryStore) GetDay(_ context.Context, day time.Time) (model.EntryInventory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.days[day.Format(model.DayFormat)]
	if !ok {
		return model.EntryInventory{}, repository.ErrNotFound
	}
	return *inv, nil
}

type memEntryStore struct {
	mu      sync.Mutex
	days    *memInventoryStore
	entries map[uint64]*model.EntryBooking
	nextID  uint64
}

func newMemEntryStore(days *memInventoryStore) *memEntryStore {
	return &memEntryStore{days: days, entries: make(map[uint64]*model.EntryBooking)}
}

func (s *memEntryStore) CreateReserved(_ context.Context, b *model.EntryBooking) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.days.mu.Lock()
	defer s.days.mu.Unlock()
	// Absent day = uncapped: no decrement.
	if inv, ok := s.days.days[b.Day.Format(model.DayFormat)]; ok {
		if inv.Remaining < b.Tickets {
			return repository.ErrInsufficientCapacity
		}
		inv.Remaining -= b.Tickets
	}

	s.nextID++
	b.ID = s.nextID
	b.Status = model.StatusBooked
	b.PaymentStatus = model.PaymentPending
	now := time.Now().UTC()
	b.CreatedAt, b.UpdatedAt = now, now
	cp := *b
	s.entries[b.ID] = &cp
	return nil
}

func (s *memEntryStore) GetByID(_ context.Context, id uint64) (model.EntryBooking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.entries[id]
	if !ok {
		return model.EntryBooking{}, repository.ErrNotFound
	}
	return *b, nil
}

func (s *memEntryStore) ListByUser(_ context.Context, userID uint64) ([]model.EntryBooking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.EntryBooking, 0)
	for _, b := range s.entries {
		if b.UserID == userID {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (s *memEntryStore) ListByDay(_ context.Context, day time.Time) ([]model.EntryBooking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.EntryBooking, 0)
	for _, b := range s.entries {
		if b.Day.Format(model.DayFormat) == day.Format(model.DayFormat) {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (s *memEntryStore) MarkPaid(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.entries[id]
	if !ok {
		return repository.ErrNotFound
	}
	if b.Status != model.StatusBooked || b.PaymentStatus != model.PaymentPending {
		return repository.ErrInvalidState
	}
	b.PaymentStatus = model.PaymentPaid
	return nil
}

func (s *memEntryStore) CancelRelease(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.entries[id]
	if !ok {
		return repository.ErrNotFound
	}
	if b.Status != model.StatusBooked || b.PaymentStatus != model.PaymentPending {
		return repository.ErrInvalidState
	}
	b.Status = model.StatusCancelled

	s.days.mu.Lock()
	defer s.days.mu.Unlock()
	if inv, ok := s.days.days[b.Day.Format(model.DayFormat)]; ok {
		inv.Remaining += b.Tickets
		if inv.Remaining > inv.Capacity {
			inv.Remaining = inv.Capacity
		}
	}
	return nil
}

func (s *memEntryStore) SetTicketToken(_ context.Context, id uint64, token string, issuedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.entries[id]
	if !ok {
		return repository.ErrNotFound
	}
	if b.TicketToken == nil {
		b.TicketToken = &token
		b.TicketIssuedAt = &issuedAt
	}
	return nil
}

func (s *memEntryStore) MarkScanned(_ context.Context, id uint64, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.entries[id]
	if !ok {
		return false, repository.ErrNotFound
	}
	if b.ScannedAt != nil {
		return false, nil
	}
	b.ScannedAt = &at
	return true, nil
}

type memPublisher struct {
	mu     sync.Mutex
	events []queue.TicketPaidEvent
}

func (p *memPublisher) PublishTicketPaid(_ context.Context, ev queue.TicketPaidEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *memPublisher) published() []queue.TicketPaidEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]queue.TicketPaidEvent, len(p.events))
	copy(out, p.events)
	return out
}
