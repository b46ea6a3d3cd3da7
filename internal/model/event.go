package model

import "time"

// Event status values.
const (
	EventActive    = "ACTIVE"
	EventCancelled = "CANCELLED"
)

// Event is a ticketed offering at the sanctuary (a show, a feeding tour,
// a fundraiser evening).  Capacity is a fixed seat count; RemainingSeats
// is the contended inventory field and is only ever mutated through the
// repository's conditional decrement and increment.
//
// Fields:
//  ID             – primary key identifier.
//  Title          – public name of the offering.
//  Venue          – free-text location within the sanctuary.
//  StartsAt       – when the offering begins.
//  EndsAt         – when the offering ends (must be after StartsAt).
//  Capacity       – total seats; at least 1.
//  RemainingSeats – unsold seats; 0 <= RemainingSeats <= Capacity.
//  UnitPriceCents – price per ticket in cents (LKR).
//  Status         – ACTIVE or CANCELLED.
//  CreatedAt      – creation timestamp.
//  UpdatedAt      – last update timestamp.
type Event struct {
	ID             uint64    `json:"id"`
	Title          string    `json:"title"`
	Venue          string    `json:"venue"`
	StartsAt       time.Time `json:"starts_at"`
	EndsAt         time.Time `json:"ends_at"`
	Capacity       uint32    `json:"capacity"`
	RemainingSeats uint32    `json:"remaining_seats"`
	UnitPriceCents uint32    `json:"unit_price_cents"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
