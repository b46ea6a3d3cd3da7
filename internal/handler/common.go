// Package handler contains the HTTP layer. Handlers bind and validate
// request bodies, delegate to services or repositories, and translate
// sentinel errors into status codes. No business rules live here.
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/hasthilk/ticketing/internal/repository"
	"github.com/hasthilk/ticketing/internal/service"
)

// getUserID extracts the user_id placed in context by the JWT middleware
// and converts it to uint64. Claims arrive as whatever type the JSON
// decoder produced.
func getUserID(c echo.Context) (uint64, error) {
	v := c.Get("user_id")
	switch t := v.(type) {
	case uint64:
		return t, nil
	case int:
		return uint64(t), nil
	case int64:
		return uint64(t), nil
	case float64:
		return uint64(t), nil
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, errors.New("invalid user_id in context")
}

// getRole returns the role claim, or "" when absent.
func getRole(c echo.Context) string {
	if s, ok := c.Get("role").(string); ok {
		return s
	}
	return ""
}

// actor builds the service-layer identity from the request context.
func actor(c echo.Context) (service.Actor, error) {
	uid, err := getUserID(c)
	if err != nil {
		return service.Actor{}, err
	}
	return service.Actor{UserID: uid, Role: getRole(c)}, nil
}

// pathID parses a numeric path parameter.
func pathID(c echo.Context, name string) (uint64, error) {
	return strconv.ParseUint(c.Param(name), 10, 64)
}

// fail maps sentinel errors from the repository and service layers onto
// HTTP responses. Unknown errors become opaque 500s.
func fail(c echo.Context, err error) error {
	switch {
	case errors.Is(err, repository.ErrValidation):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, repository.ErrDuplicateBooking):
		return c.JSON(http.StatusConflict, echo.Map{"error": "active booking already exists for this event"})
	case errors.Is(err, repository.ErrInsufficientCapacity):
		return c.JSON(http.StatusConflict, echo.Map{"error": "not enough capacity remaining"})
	case errors.Is(err, repository.ErrInvalidState):
		return c.JSON(http.StatusConflict, echo.Map{"error": "operation not allowed in current state"})
	case errors.Is(err, repository.ErrTokenInvalid):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid ticket"})
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
