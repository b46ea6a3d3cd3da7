// Package ticket issues and verifies the signed gate tokens embedded in
// booking QR codes. A token binds {booking, user, offering, kind} and an
// expiry; it proves nothing on its own — verification at the gate always
// re-fetches the booking and checks it is still booked and paid.
package ticket

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hasthilk/ticketing/internal/model"
	"github.com/hasthilk/ticketing/internal/repository"
)

// Token kinds. Event tokens reference an offering ID; entry tokens
// reference a visit day.
const (
	KindEvent = "event"
	KindEntry = "entry"
)

// Event tickets stay scannable for a grace window past the offering's end
// so late gate reconciliation still verifies them, with a floor for
// offerings that have already ended. Entry tickets get a fixed validity
// from issuance.
const (
	eventGraceWindow = 30 * 24 * time.Hour
	eventMinValidity = time.Hour
	entryValidity    = 7 * 24 * time.Hour
)

// Claims is the decoded content of a gate token.
type Claims struct {
	BookingID uint64
	UserID    uint64
	EventID   uint64 // set for event tokens
	Day       string // set for entry tokens, model.DayFormat
	Kind      string
	ExpiresAt time.Time
}

// Issuer signs and verifies gate tokens with an HS256 secret. The secret
// is independent of the session-token secret so gate scanners can hold it
// without being able to mint logins.
type Issuer struct {
	secret []byte
}

// NewIssuer returns an Issuer signing with the given secret.
func NewIssuer(secret string) *Issuer { return &Issuer{secret: []byte(secret)} }

// IssueEvent signs a token for an event booking, valid until the grace
// window past the offering's end, never less than the minimum validity
// from now.
func (i *Issuer) IssueEvent(bookingID, userID, eventID uint64, eventEnd time.Time) (string, time.Time, error) {
	exp := eventEnd.UTC().Add(eventGraceWindow)
	if floor := time.Now().UTC().Add(eventMinValidity); exp.Before(floor) {
		exp = floor
	}
	return i.sign(jwt.MapClaims{
		"bid":  bookingID,
		"sub":  userID,
		"oid":  eventID,
		"kind": KindEvent,
	}, exp)
}

// IssueEntry signs a token for an entry booking, valid for a fixed window
// from issuance.
func (i *Issuer) IssueEntry(bookingID, userID uint64, day time.Time) (string, time.Time, error) {
	exp := time.Now().UTC().Add(entryValidity)
	return i.sign(jwt.MapClaims{
		"bid":  bookingID,
		"sub":  userID,
		"day":  day.Format(model.DayFormat),
		"kind": KindEntry,
	}, exp)
}

func (i *Issuer) sign(claims jwt.MapClaims, exp time.Time) (string, time.Time, error) {
	claims["exp"] = exp.Unix()
	claims["iat"] = time.Now().UTC().Unix()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Verify checks signature and expiry and decodes the claims. Every
// failure maps to repository.ErrTokenInvalid; callers must still confirm
// the referenced booking's live state.
func (i *Issuer) Verify(raw string) (Claims, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil || !tok.Valid {
		return Claims{}, repository.ErrTokenInvalid
	}
	mc, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, repository.ErrTokenInvalid
	}
	var c Claims
	c.BookingID = asUint64(mc["bid"])
	c.UserID = asUint64(mc["sub"])
	c.EventID = asUint64(mc["oid"])
	if day, ok := mc["day"].(string); ok {
		c.Day = day
	}
	if kind, ok := mc["kind"].(string); ok {
		c.Kind = kind
	}
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		c.ExpiresAt = exp.Time
	}
	if c.BookingID == 0 || c.UserID == 0 || (c.Kind != KindEvent && c.Kind != KindEntry) {
		return Claims{}, repository.ErrTokenInvalid
	}
	return c, nil
}

// asUint64 tolerates the float64 numbers produced by JSON decoding.
func asUint64(v interface{}) uint64 {
	switch t := v.(type) {
	case float64:
		if t < 0 {
			return 0
		}
		return uint64(t)
	case uint64:
		return t
	case int64:
		if t < 0 {
			return 0
		}
		return uint64(t)
	}
	return 0
}
