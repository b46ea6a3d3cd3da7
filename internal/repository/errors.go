// Package repository defines error values that are reused across
// repositories and the service layer. These sentinel values allow higher
// layers such as handlers to distinguish between failure scenarios and map
// each one to a specific HTTP status, so that raw storage errors never
// reach the wire.
package repository

import "errors"

// ErrNotFound is returned when a booking, event or inventory row does not
// exist. Handlers translate this into HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the caller is neither the owner of a
// booking nor an admin acting on the owner's behalf. Handlers translate
// this into HTTP 403.
var ErrForbidden = errors.New("forbidden")

// ErrInvalidState is returned when a lifecycle transition is illegal for
// the booking's current state, such as paying a cancelled booking or
// cancelling a paid one. Handlers translate this into HTTP 409.
var ErrInvalidState = errors.New("invalid state")

// ErrInsufficientCapacity is returned when the conditional seat decrement
// affects zero rows because not enough capacity remains. Handlers
// translate this into HTTP 409.
var ErrInsufficientCapacity = errors.New("insufficient capacity")

// ErrDuplicateBooking is returned when the user already holds an active
// booking for the same offering, either from the service pre-check or from
// the unique-constraint backstop. Handlers translate this into HTTP 409.
var ErrDuplicateBooking = errors.New("active booking already exists")

// ErrValidation is returned for malformed input: non-positive ticket
// counts, missing attendee fields, unknown visitor types. Handlers
// translate this into HTTP 400.
var ErrValidation = errors.New("validation failed")

// ErrTokenInvalid is returned when a gate ticket token fails signature or
// expiry checks, or no longer matches the booking it references. Handlers
// translate this into HTTP 401.
var ErrTokenInvalid = errors.New("ticket token invalid")
