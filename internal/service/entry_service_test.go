package service

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hasthilk/ticketing/internal/model"
	"github.com/hasthilk/ticketing/internal/repository"
	"github.com/hasthilk/ticketing/internal/ticket"
)

var testPricing = EntryPricing{LocalCents: 100000, ForeignCents: 300000}

func newEntryFixture(t *testing.T) (*EntryService, *memInventoryStore, *memEntryStore, *memPublisher) {
	t.Helper()
	inv := newMemInventoryStore()
	store := newMemEntryStore(inv)
	pub := &memPublisher{}
	svc := NewEntryService(inv, store, ticket.NewIssuer("test-secret"), testPricing, pub)
	return svc, inv, store, pub
}

func futureDay(t *testing.T) (time.Time, string) {
	t.Helper()
	day := time.Now().UTC().Truncate(24 * time.Hour).Add(72 * time.Hour)
	return day, day.Format(model.DayFormat)
}

func TestEntryCreateOnUncappedDay(t *testing.T) {
	svc, _, _, _ := newEntryFixture(t)
	ctx := context.Background()
	_, dayStr := futureDay(t)

	// No inventory row exists, so even a very large group books fine.
	b, err := svc.Create(ctx, Actor{UserID: 5, Role: model.RoleUser}, CreateEntryInput{
		Day:         dayStr,
		VisitorType: "local",
		Items:       []EntryItemInput{{Type: "ADULT", Quantity: 500}},
	})
	require.NoError(t, err)
	assert.Equal(t, uint32(500), b.Tickets)
	assert.Equal(t, model.VisitorLocal, b.VisitorType)
	assert.Equal(t, model.StatusBooked, b.Status)
	assert.Equal(t, 500*testPricing.LocalCents, b.TotalCents)
	assert.Equal(t, model.CurrencyLKR, b.Currency)
}

func TestEntryCreatePricing(t *testing.T) {
	svc, inv, _, _ := newEntryFixture(t)
	ctx := context.Background()
	day, dayStr := futureDay(t)

	// The day's inventory row overrides the default prices.
	inv.add(model.EntryInventory{
		Day: day, Capacity: 100, Remaining: 100,
		LocalPriceCents: 80000, ForeignPriceCents: 250000,
	})

	b, err := svc.Create(ctx, Actor{UserID: 5, Role: model.RoleUser}, CreateEntryInput{
		Day:         dayStr,
		VisitorType: "FOREIGN",
		Items: []EntryItemInput{
			{Type: "ADULT", Quantity: 2},
			{Type: "child", Quantity: 3},
		},
	})
	require.NoError(t, err)

	// Child price is half the adult price, rounded down.
	require.Len(t, b.Items, 2)
	assert.Equal(t, uint32(250000), b.Items[0].UnitPriceCents)
	assert.Equal(t, uint32(125000), b.Items[1].UnitPriceCents)
	assert.Equal(t, uint32(5), b.Tickets)
	assert.Equal(t, uint32(2*250000+3*125000), b.TotalCents)
	assert.Equal(t, uint32(95), inv.remaining(day))
}

func TestEntryCreateValidation(t *testing.T) {
	svc, _, _, _ := newEntryFixture(t)
	ctx := context.Background()
	actor := Actor{UserID: 5, Role: model.RoleUser}
	_, dayStr := futureDay(t)

	cases := []CreateEntryInput{
		{Day: "not-a-day", VisitorType: "LOCAL", Items: []EntryItemInput{{Type: "ADULT", Quantity: 1}}},
		{Day: "2020-01-01", VisitorType: "LOCAL", Items: []EntryItemInput{{Type: "ADULT", Quantity: 1}}},
		{Day: dayStr, VisitorType: "MARTIAN", Items: []EntryItemInput{{Type: "ADULT", Quantity: 1}}},
		{Day: dayStr, VisitorType: "LOCAL"},
		{Day: dayStr, VisitorType: "LOCAL", Items: []EntryItemInput{{Type: "ADULT", Quantity: 0}}},
		{Day: dayStr, VisitorType: "LOCAL", Items: []EntryItemInput{{Type: "SENIOR", Quantity: 1}}},
	}
	for _, in := range cases {
		_, err := svc.Create(ctx, actor, in)
		assert.ErrorIs(t, err, repository.ErrValidation, "input %+v", in)
	}
}

func TestEntryCreateRejectsOversizedQuantities(t *testing.T) {
	svc, inv, store, _ := newEntryFixture(t)
	ctx := context.Background()
	actor := Actor{UserID: 5, Role: model.RoleUser}
	day, dayStr := futureDay(t)

	// A positive quantity that would truncate to zero in the stored uint32.
	_, err := svc.Create(ctx, actor, CreateEntryInput{
		Day: dayStr, VisitorType: "LOCAL",
		Items: []EntryItemInput{{Type: "ADULT", Quantity: 1 << 32}},
	})
	assert.ErrorIs(t, err, repository.ErrValidation)

	// The cap applies to the booking's aggregate, not just per item.
	_, err = svc.Create(ctx, actor, CreateEntryInput{
		Day: dayStr, VisitorType: "LOCAL",
		Items: []EntryItemInput{
			{Type: "ADULT", Quantity: 600},
			{Type: "CHILD", Quantity: 600},
		},
	})
	assert.ErrorIs(t, err, repository.ErrValidation)

	// A total that no longer fits the stored cents column is rejected
	// rather than wrapped.
	inv.add(model.EntryInventory{
		Day: day, Capacity: 1000, Remaining: 1000,
		LocalPriceCents: math.MaxUint32, ForeignPriceCents: math.MaxUint32,
	})
	_, err = svc.Create(ctx, actor, CreateEntryInput{
		Day: dayStr, VisitorType: "LOCAL",
		Items: []EntryItemInput{{Type: "ADULT", Quantity: 2}},
	})
	assert.ErrorIs(t, err, repository.ErrValidation)

	bs, err := store.ListByUser(ctx, actor.UserID)
	require.NoError(t, err)
	assert.Empty(t, bs)
	assert.Equal(t, uint32(1000), inv.remaining(day))
}

func TestEntryCappedDayNeverOversells(t *testing.T) {
	svc, inv, _, _ := newEntryFixture(t)
	ctx := context.Background()
	day, dayStr := futureDay(t)
	inv.add(model.EntryInventory{
		Day: day, Capacity: 30, Remaining: 30,
		LocalPriceCents: 100000, ForeignPriceCents: 300000,
	})

	var wg sync.WaitGroup
	const attempts = 25
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Create(ctx, Actor{UserID: uint64(i + 1), Role: model.RoleUser}, CreateEntryInput{
				Day:         dayStr,
				VisitorType: "LOCAL",
				Items:       []EntryItemInput{{Type: "ADULT", Quantity: 2}},
			})
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
		} else {
			assert.ErrorIs(t, err, repository.ErrInsufficientCapacity)
		}
	}
	assert.Equal(t, 15, ok)
	assert.Equal(t, uint32(0), inv.remaining(day))
}

func TestEntryPayIssuesTokenAndPublishes(t *testing.T) {
	svc, _, _, pub := newEntryFixture(t)
	ctx := context.Background()
	actor := Actor{UserID: 5, Role: model.RoleUser}
	_, dayStr := futureDay(t)

	b, err := svc.Create(ctx, actor, CreateEntryInput{
		Day: dayStr, VisitorType: "LOCAL",
		Items: []EntryItemInput{{Type: "ADULT", Quantity: 2}},
	})
	require.NoError(t, err)

	paid, err := svc.Pay(ctx, actor, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentPaid, paid.PaymentStatus)
	require.NotNil(t, paid.TicketToken)

	again, err := svc.Pay(ctx, actor, b.ID)
	require.NoError(t, err)
	assert.Equal(t, *paid.TicketToken, *again.TicketToken)

	evs := pub.published()
	require.Len(t, evs, 1)
	assert.Equal(t, ticket.KindEntry, evs[0].Kind)
	assert.Equal(t, dayStr, evs[0].Day)
	assert.Equal(t, uint64(b.TotalCents), evs[0].TotalCents)
}

func TestEntryCancelRestoresAdmissions(t *testing.T) {
	svc, inv, _, _ := newEntryFixture(t)
	ctx := context.Background()
	actor := Actor{UserID: 5, Role: model.RoleUser}
	day, dayStr := futureDay(t)
	inv.add(model.EntryInventory{
		Day: day, Capacity: 10, Remaining: 10,
		LocalPriceCents: 100000, ForeignPriceCents: 300000,
	})

	b, err := svc.Create(ctx, actor, CreateEntryInput{
		Day: dayStr, VisitorType: "LOCAL",
		Items: []EntryItemInput{{Type: "ADULT", Quantity: 4}},
	})
	require.NoError(t, err)
	assert.Equal(t, uint32(6), inv.remaining(day))

	cancelled, err := svc.Cancel(ctx, actor, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, cancelled.Status)
	assert.Equal(t, uint32(10), inv.remaining(day))

	// Idempotent, and no double restitution.
	_, err = svc.Cancel(ctx, actor, b.ID)
	require.NoError(t, err)
	assert.Equal(t, uint32(10), inv.remaining(day))
}

func TestEntryCancelRejectsPaid(t *testing.T) {
	svc, _, _, _ := newEntryFixture(t)
	ctx := context.Background()
	actor := Actor{UserID: 5, Role: model.RoleUser}
	_, dayStr := futureDay(t)

	b, err := svc.Create(ctx, actor, CreateEntryInput{
		Day: dayStr, VisitorType: "LOCAL",
		Items: []EntryItemInput{{Type: "ADULT", Quantity: 1}},
	})
	require.NoError(t, err)
	_, err = svc.Pay(ctx, actor, b.ID)
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, actor, b.ID)
	assert.ErrorIs(t, err, repository.ErrInvalidState)
}

func TestEntryVerifyStampsFirstScanOnly(t *testing.T) {
	svc, _, _, _ := newEntryFixture(t)
	ctx := context.Background()
	actor := Actor{UserID: 5, Role: model.RoleUser}
	_, dayStr := futureDay(t)

	b, err := svc.Create(ctx, actor, CreateEntryInput{
		Day: dayStr, VisitorType: "FOREIGN",
		Items: []EntryItemInput{{Type: "ADULT", Quantity: 2}},
	})
	require.NoError(t, err)
	paid, err := svc.Pay(ctx, actor, b.ID)
	require.NoError(t, err)

	first, err := svc.Verify(ctx, *paid.TicketToken)
	require.NoError(t, err)
	assert.False(t, first.Scanned)
	assert.Equal(t, dayStr, first.Day)
	assert.Equal(t, model.VisitorForeign, first.VisitorType)

	// Second scan verifies but is flagged as a re-entry attempt.
	second, err := svc.Verify(ctx, *paid.TicketToken)
	require.NoError(t, err)
	assert.True(t, second.Scanned)
	require.NotNil(t, second.ScannedAt)
}

func TestEntryResolveHasNoSideEffects(t *testing.T) {
	svc, _, store, _ := newEntryFixture(t)
	ctx := context.Background()
	actor := Actor{UserID: 5, Role: model.RoleUser}
	_, dayStr := futureDay(t)

	b, err := svc.Create(ctx, actor, CreateEntryInput{
		Day: dayStr, VisitorType: "LOCAL",
		Items: []EntryItemInput{{Type: "ADULT", Quantity: 1}},
	})
	require.NoError(t, err)
	paid, err := svc.Pay(ctx, actor, b.ID)
	require.NoError(t, err)

	v, err := svc.Resolve(ctx, *paid.TicketToken)
	require.NoError(t, err)
	assert.False(t, v.Scanned)

	got, err := store.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ScannedAt)
}

func TestEntryVerifyRejectsEventTokens(t *testing.T) {
	svc, _, _, _ := newEntryFixture(t)
	ctx := context.Background()

	tok, _, err := ticket.NewIssuer("test-secret").IssueEvent(1, 5, 1, time.Now().UTC().Add(time.Hour))
	require.NoError(t, err)
	_, err = svc.Verify(ctx, tok)
	assert.ErrorIs(t, err, repository.ErrTokenInvalid)
}

func TestEntryListByDayStaffOnly(t *testing.T) {
	svc, _, _, _ := newEntryFixture(t)
	ctx := context.Background()
	day, dayStr := futureDay(t)

	_, err := svc.Create(ctx, Actor{UserID: 5, Role: model.RoleUser}, CreateEntryInput{
		Day: dayStr, VisitorType: "LOCAL",
		Items: []EntryItemInput{{Type: "ADULT", Quantity: 1}},
	})
	require.NoError(t, err)

	_, err = svc.ListByDay(ctx, Actor{UserID: 5, Role: model.RoleUser}, day)
	assert.ErrorIs(t, err, repository.ErrForbidden)

	bs, err := svc.ListByDay(ctx, Actor{UserID: 9, Role: model.RoleManager}, day)
	require.NoError(t, err)
	assert.Len(t, bs, 1)
}
