package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hasthilk/ticketing/internal/model"
	"github.com/hasthilk/ticketing/internal/repository"
)

// EventHandler exposes offering management and the public catalogue.
type EventHandler struct {
	Events *repository.EventRepo
}

func NewEventHandler(events *repository.EventRepo) *EventHandler {
	if events == nil {
		panic("nil repository passed to NewEventHandler")
	}
	return &EventHandler{Events: events}
}

type createEventReq struct {
	Title          string    `json:"title"`
	Venue          string    `json:"venue"`
	StartsAt       time.Time `json:"starts_at"`
	EndsAt         time.Time `json:"ends_at"`
	Capacity       uint32    `json:"capacity"`
	UnitPriceCents uint32    `json:"unit_price_cents"`
}

// Create registers a new ticketed offering. Staff only (enforced by route
// middleware).
func (h *EventHandler) Create(c echo.Context) error {
	var req createEventReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Title == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "title required"})
	}
	if req.Capacity < 1 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "capacity must be positive"})
	}
	if !req.EndsAt.After(req.StartsAt) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "ends_at must be after starts_at"})
	}
	if req.EndsAt.Before(time.Now().UTC()) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "offering already ended"})
	}

	e := model.Event{
		Title:          req.Title,
		Venue:          req.Venue,
		StartsAt:       req.StartsAt.UTC(),
		EndsAt:         req.EndsAt.UTC(),
		Capacity:       req.Capacity,
		UnitPriceCents: req.UnitPriceCents,
	}
	if err := h.Events.Create(c.Request().Context(), &e); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, e)
}

// List returns upcoming active offerings; public.
func (h *EventHandler) List(c echo.Context) error {
	events, err := h.Events.ListUpcoming(c.Request().Context(), time.Now())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, events)
}

// Get returns a single offering; public.
func (h *EventHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	e, err := h.Events.GetByID(c.Request().Context(), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, e)
}

// Cancel marks an offering cancelled, stopping further reservations.
// Existing bookings are untouched. Staff only.
func (h *EventHandler) Cancel(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	if err := h.Events.Cancel(c.Request().Context(), id); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
