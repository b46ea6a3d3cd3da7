package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hasthilk/ticketing/internal/model"
	"github.com/hasthilk/ticketing/internal/service"
	"github.com/hasthilk/ticketing/internal/ticket"
)

// The handler tests drive BookingHandler through Echo contexts directly,
// with the identity claims pre-set the way the JWT middleware would set
// them. The service underneath runs on the in-memory stores from the
// service package, reached through its exported constructors.

func newTestBookingHandler(t *testing.T) (*BookingHandler, *serviceFixture) {
	t.Helper()
	f := newServiceFixture(t)
	return NewBookingHandler(f.svc), f
}

// serviceFixture wires a BookingService over minimal in-memory stores.
type serviceFixture struct {
	svc    *service.BookingService
	events *memEvents
	store  *memBookings
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	events := newMemEvents()
	store := newMemBookings(events)
	svc := service.NewBookingService(events, store, ticket.NewIssuer("handler-test"), nil)
	return &serviceFixture{svc: svc, events: events, store: store}
}

func doJSON(e *echo.Echo, method, target, body string, uid uint64, role string) (*httptest.ResponseRecorder, echo.Context) {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if uid != 0 {
		c.Set("user_id", float64(uid)) // JWT claims decode numbers as float64
		c.Set("role", role)
	}
	return rec, c
}

func TestBookingCreateReturns201(t *testing.T) {
	h, f := newTestBookingHandler(t)
	f.events.add(upcomingEvent(1, 10))
	e := echo.New()

	rec, c := doJSON(e, http.MethodPost, "/api/bookings",
		`{"event_id":1,"tickets":2,"attendee_name":"Nimal","phone":"0771234567"}`,
		5, model.RoleUser)
	require.NoError(t, h.Create(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var b model.Booking
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &b))
	assert.Equal(t, model.StatusBooked, b.Status)
	assert.Equal(t, uint32(2), b.Tickets)
	assert.True(t, strings.HasPrefix(b.Ref, "HS-"))
}

func TestBookingCreateValidationAndConflicts(t *testing.T) {
	h, f := newTestBookingHandler(t)
	f.events.add(upcomingEvent(1, 2))
	e := echo.New()

	// Zero tickets.
	rec, c := doJSON(e, http.MethodPost, "/api/bookings",
		`{"event_id":1,"tickets":0,"attendee_name":"A","phone":"1"}`, 5, model.RoleUser)
	require.NoError(t, h.Create(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// First booking fine.
	rec, c = doJSON(e, http.MethodPost, "/api/bookings",
		`{"event_id":1,"tickets":1,"attendee_name":"A","phone":"1"}`, 5, model.RoleUser)
	require.NoError(t, h.Create(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	// Duplicate active booking for the same user.
	rec, c = doJSON(e, http.MethodPost, "/api/bookings",
		`{"event_id":1,"tickets":1,"attendee_name":"A","phone":"1"}`, 5, model.RoleUser)
	require.NoError(t, h.Create(c))
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Capacity exhausted for another user.
	rec, c = doJSON(e, http.MethodPost, "/api/bookings",
		`{"event_id":1,"tickets":2,"attendee_name":"B","phone":"2"}`, 6, model.RoleUser)
	require.NoError(t, h.Create(c))
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Unknown offering.
	rec, c = doJSON(e, http.MethodPost, "/api/bookings",
		`{"event_id":99,"tickets":1,"attendee_name":"A","phone":"1"}`, 7, model.RoleUser)
	require.NoError(t, h.Create(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBookingPayAuthorizationOverHTTP(t *testing.T) {
	h, f := newTestBookingHandler(t)
	f.events.add(upcomingEvent(1, 10))
	e := echo.New()

	rec, c := doJSON(e, http.MethodPost, "/api/bookings",
		`{"event_id":1,"tickets":1,"attendee_name":"A","phone":"1"}`, 5, model.RoleUser)
	require.NoError(t, h.Create(c))
	require.Equal(t, http.StatusCreated, rec.Code)
	var b model.Booking
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &b))

	payPath := fmt.Sprintf("/api/bookings/%d/pay", b.ID)

	// A different visitor cannot pay.
	rec, c = doJSON(e, http.MethodPatch, payPath, "", 6, model.RoleUser)
	c.SetParamNames("id")
	c.SetParamValues(fmt.Sprint(b.ID))
	require.NoError(t, h.Pay(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// The owner can, and gets a ticket token back.
	rec, c = doJSON(e, http.MethodPatch, payPath, "", 5, model.RoleUser)
	c.SetParamNames("id")
	c.SetParamValues(fmt.Sprint(b.ID))
	require.NoError(t, h.Pay(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var paid model.Booking
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &paid))
	assert.Equal(t, model.PaymentPaid, paid.PaymentStatus)
	require.NotNil(t, paid.TicketToken)
}

func TestBookingResolveIsPublic(t *testing.T) {
	h, f := newTestBookingHandler(t)
	f.events.add(upcomingEvent(1, 10))
	e := echo.New()

	rec, c := doJSON(e, http.MethodPost, "/api/bookings",
		`{"event_id":1,"tickets":1,"attendee_name":"A","phone":"1"}`, 5, model.RoleUser)
	require.NoError(t, h.Create(c))
	var b model.Booking
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &b))

	rec, c = doJSON(e, http.MethodPatch, "/pay", "", 5, model.RoleUser)
	c.SetParamNames("id")
	c.SetParamValues(fmt.Sprint(b.ID))
	require.NoError(t, h.Pay(c))
	var paid model.Booking
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &paid))

	// No identity on the resolve request.
	body := fmt.Sprintf(`{"token":%q}`, *paid.TicketToken)
	rec, c = doJSON(e, http.MethodPost, "/api/bookings/resolve", body, 0, "")
	require.NoError(t, h.Resolve(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var v service.VerifiedTicket
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	assert.Equal(t, b.ID, v.BookingID)
	assert.Equal(t, ticket.KindEvent, v.Kind)

	// Garbage tokens come back 401.
	rec, c = doJSON(e, http.MethodPost, "/api/bookings/resolve", `{"token":"garbage"}`, 0, "")
	require.NoError(t, h.Resolve(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func upcomingEvent(id uint64, capacity uint32) model.Event {
	now := time.Now().UTC()
	return model.Event{
		ID:             id,
		Title:          "Evening Feeding",
		Venue:          "River Paddock",
		StartsAt:       now.Add(24 * time.Hour),
		EndsAt:         now.Add(26 * time.Hour),
		Capacity:       capacity,
		RemainingSeats: capacity,
		UnitPriceCents: 150000,
		Status:         model.EventActive,
	}
}
