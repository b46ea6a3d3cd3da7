package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hasthilk/ticketing/internal/model"
	"github.com/hasthilk/ticketing/internal/repository"
	"github.com/hasthilk/ticketing/internal/service"
)

// EntryHandler exposes the general-entry flows: day info and admin caps,
// booking lifecycle and gate scanning.
type EntryHandler struct {
	Svc       *service.EntryService
	Inventory *repository.EntryInventoryRepo
	Pricing   service.EntryPricing
}

func NewEntryHandler(svc *service.EntryService, inv *repository.EntryInventoryRepo, pricing service.EntryPricing) *EntryHandler {
	if svc == nil || inv == nil {
		panic("nil dependency passed to NewEntryHandler")
	}
	return &EntryHandler{Svc: svc, Inventory: inv, Pricing: pricing}
}

func parseDay(c echo.Context) (time.Time, bool) {
	day, err := time.Parse(model.DayFormat, c.Param("day"))
	return day, err == nil
}

type dayInfoResp struct {
	Day               string  `json:"day"`
	Capped            bool    `json:"capped"`
	Capacity          *uint32 `json:"capacity,omitempty"`
	Remaining         *uint32 `json:"remaining,omitempty"`
	LocalPriceCents   uint32  `json:"local_price_cents"`
	ForeignPriceCents uint32  `json:"foreign_price_cents"`
}

// GetDay returns capacity and pricing for a visit day; public. Days
// without an inventory row are uncapped and priced at the defaults.
func (h *EntryHandler) GetDay(c echo.Context) error {
	day, ok := parseDay(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "day must be YYYY-MM-DD"})
	}
	inv, err := h.Inventory.GetDay(c.Request().Context(), day)
	if err == repository.ErrNotFound {
		return c.JSON(http.StatusOK, dayInfoResp{
			Day:               day.Format(model.DayFormat),
			Capped:            false,
			LocalPriceCents:   h.Pricing.LocalCents,
			ForeignPriceCents: h.Pricing.ForeignCents,
		})
	}
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, dayInfoResp{
		Day:               inv.Day.Format(model.DayFormat),
		Capped:            true,
		Capacity:          &inv.Capacity,
		Remaining:         &inv.Remaining,
		LocalPriceCents:   inv.LocalPriceCents,
		ForeignPriceCents: inv.ForeignPriceCents,
	})
}

type upsertDayReq struct {
	Capacity          uint32 `json:"capacity"`
	LocalPriceCents   uint32 `json:"local_price_cents"`
	ForeignPriceCents uint32 `json:"foreign_price_cents"`
}

// UpsertDay sets or adjusts a day's admission cap and prices. Staff only.
func (h *EntryHandler) UpsertDay(c echo.Context) error {
	day, ok := parseDay(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "day must be YYYY-MM-DD"})
	}
	var req upsertDayReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Capacity < 1 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "capacity must be positive"})
	}
	inv := model.EntryInventory{
		Day:               day,
		Capacity:          req.Capacity,
		LocalPriceCents:   req.LocalPriceCents,
		ForeignPriceCents: req.ForeignPriceCents,
	}
	if inv.LocalPriceCents == 0 {
		inv.LocalPriceCents = h.Pricing.LocalCents
	}
	if inv.ForeignPriceCents == 0 {
		inv.ForeignPriceCents = h.Pricing.ForeignCents
	}
	if err := h.Inventory.Upsert(c.Request().Context(), &inv); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, inv)
}

// Create books general entry for a visit day.
func (h *EntryHandler) Create(c echo.Context) error {
	act, err := actor(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var in service.CreateEntryInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	b, err := h.Svc.Create(c.Request().Context(), act, in)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, b)
}

// ListMine returns the caller's entry bookings.
func (h *EntryHandler) ListMine(c echo.Context) error {
	act, err := actor(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bs, err := h.Svc.ListMine(c.Request().Context(), act)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, bs)
}

// ListByDay returns all entry bookings for a day; staff only.
func (h *EntryHandler) ListByDay(c echo.Context) error {
	act, err := actor(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	day, ok := parseDay(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "day must be YYYY-MM-DD"})
	}
	bs, err := h.Svc.ListByDay(c.Request().Context(), act, day)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, bs)
}

// Pay confirms payment and returns the booking with its gate token.
func (h *EntryHandler) Pay(c echo.Context) error {
	act, err := actor(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	b, err := h.Svc.Pay(c.Request().Context(), act, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

// Cancel releases an unpaid entry booking.
func (h *EntryHandler) Cancel(c echo.Context) error {
	act, err := actor(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	b, err := h.Svc.Cancel(c.Request().Context(), act, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

// TicketToken returns the gate token for a paid entry booking.
func (h *EntryHandler) TicketToken(c echo.Context) error {
	act, err := actor(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	b, err := h.Svc.TicketToken(c.Request().Context(), act, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"booking_id":   b.ID,
		"ref":          b.Ref,
		"ticket_token": b.TicketToken,
		"issued_at":    b.TicketIssuedAt,
	})
}

type verifyReq struct {
	Token string `json:"token"`
}

// Verify validates a gate token and stamps the first scan. Gate staff
// only.
func (h *EntryHandler) Verify(c echo.Context) error {
	var req verifyReq
	if err := c.Bind(&req); err != nil || req.Token == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "token required"})
	}
	v, err := h.Svc.Verify(c.Request().Context(), req.Token)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, v)
}

// Resolve validates a gate token without side effects; public.
func (h *EntryHandler) Resolve(c echo.Context) error {
	var req verifyReq
	if err := c.Bind(&req); err != nil || req.Token == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "token required"})
	}
	v, err := h.Svc.Resolve(c.Request().Context(), req.Token)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, v)
}
