package handler

// Minimal in-memory implementations of the service store interfaces,
// enough to exercise the HTTP layer end to end without a database.

import (
	"context"
	"sync"
	"time"

	"github.com/hasthilk/ticketing/internal/model"
	"github.com/hasthilk/ticketing/internal/repository"
)

type memEvents struct {
	mu     sync.Mutex
	events map[uint64]*model.Event
}

func newMemEvents() *memEvents { return &memEvents{events: make(map[uint64]*model.Event)} }

func (s *memEvents) add(e model.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := e
	s.events[e.ID] = &cp
}

func (s *memEvents) GetByID(_ context.Context, id uint64) (model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return model.Event{}, repository.ErrNotFound
	}
	return *e, nil
}

type memBookings struct {
	mu       sync.Mutex
	events   *memEvents
	bookings map[uint64]*model.Booking
	nextID   uint64
}

func newMemBookings(events *memEvents) *memBookings {
	return &memBookings{events: events, bookings: make(map[uint64]*model.Booking)}
}

func (s *memBookings) CreateReserved(_ context.Context, b *model.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
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

func (s *memBookings) GetByID(_ context.Context, id uint64) (model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return model.Booking{}, repository.ErrNotFound
	}
	return *b, nil
}

func (s *memBookings) HasActive(_ context.Context, userID, eventID uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.bookings {
		if b.UserID == userID && b.EventID == eventID && b.Status == model.StatusBooked {
			return true, nil
		}
	}
	return false, nil
}

func (s *memBookings) ListByUser(_ context.Context, userID uint64) ([]model.Booking, error) {
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

func (s *memBookings) ListByEvent(_ context.Context, eventID uint64) ([]model.Booking, error) {
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

func (s *memBookings) MarkPaid(_ context.Context, id uint64) error {
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
	return nil
}

func (s *memBookings) CancelRelease(_ context.Context, id uint64) error {
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

func (s *memBookings) SetTicketToken(_ context.Context, id uint64, token string, issuedAt time.Time) error {
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
