// Package service implements the booking lifecycle: create (with seat
// reservation), pay (with ticket issuance), cancel (with seat
// restitution), and gate verification. Handlers stay thin; all transition
// legality lives here, while atomicity of the seat decrement lives in the
// storage layer behind these interfaces.
package service

import (
	"context"
	"time"

	"github.com/hasthilk/ticketing/internal/model"
	"github.com/hasthilk/ticketing/internal/queue"
)

// Actor identifies the authenticated caller of a service method.
type Actor struct {
	UserID uint64
	Role   string
}

// EventStore is the slice of the event repository the booking lifecycle
// needs: reads only. Seat mutation happens inside BookingStore's
// transactional methods.
type EventStore interface {
	GetByID(ctx context.Context, id uint64) (model.Event, error)
}

// BookingStore persists event bookings. CreateReserved and CancelRelease
// are transactional: the seat decrement (or restitution) and the booking
// write either both happen or neither does.
type BookingStore interface {
	CreateReserved(ctx context.Context, b *model.Booking) error
	GetByID(ctx context.Context, id uint64) (model.Booking, error)
	HasActive(ctx context.Context, userID, eventID uint64) (bool, error)
	ListByUser(ctx context.Context, userID uint64) ([]model.Booking, error)
	ListByEvent(ctx context.Context, eventID uint64) ([]model.Booking, error)
	MarkPaid(ctx context.Context, id uint64) error
	CancelRelease(ctx context.Context, id uint64) error
	SetTicketToken(ctx context.Context, id uint64, token string, issuedAt time.Time) error
}

// EntryInventoryStore is the read side of per-day entry capacity; absence
// of a day is reported as repository.ErrNotFound and means the day is
// uncapped.
type EntryInventoryStore interface {
	GetDay(ctx context.Context, day time.Time) (model.EntryInventory, error)
}

// EntryStore persists general-entry bookings; the transactional contract
// mirrors BookingStore.
type EntryStore interface {
	CreateReserved(ctx context.Context, b *model.EntryBooking) error
	GetByID(ctx context.Context, id uint64) (model.EntryBooking, error)
	ListByUser(ctx context.Context, userID uint64) ([]model.EntryBooking, error)
	ListByDay(ctx context.Context, day time.Time) ([]model.EntryBooking, error)
	MarkPaid(ctx context.Context, id uint64) error
	CancelRelease(ctx context.Context, id uint64) error
	SetTicketToken(ctx context.Context, id uint64, token string, issuedAt time.Time) error
	MarkScanned(ctx context.Context, id uint64, at time.Time) (bool, error)
}

// Publisher emits domain events after successful pay transitions.
// Publishing is best effort: failures are logged by the caller and never
// fail the request.
type Publisher interface {
	PublishTicketPaid(ctx context.Context, ev queue.TicketPaidEvent) error
}
