package order

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"bag-service/internal/models"
	"bag-service/internal/store"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var orderNumberPattern = regexp.MustCompile(`^AW-\d{4}-\d{4}$`)

var fixedNow = time.Date(2025, time.March, 3, 10, 30, 0, 0, time.UTC)

func immediately(time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- fixedNow
	return ch
}

func never(time.Duration) <-chan time.Time {
	return make(chan time.Time)
}

type failingStorage struct {
	*store.Memory
}

func (f *failingStorage) Set(context.Context, string, []byte) error {
	return errors.New("disk full")
}

func request() Request {
	art := models.ArtworkRecord{
		ID:                 3,
		Title:              "Shikara at Dawn",
		OriginalPrice:      decimal.NewFromInt(5499),
		DiscountPercentage: decimal.Zero,
	}
	return Request{
		Items:   []models.LineItem{{Artwork: art, UnitPrice: decimal.NewFromInt(5499)}},
		Promo:   models.PromoState{Code: "ART10", DiscountAmount: decimal.NewFromInt(550)},
		Summary: models.Summary{ItemCount: 1, FinalTotal: decimal.NewFromInt(5027)},
	}
}

func TestGenerateOrderNumber(t *testing.T) {
	assert.Equal(t, "AW-2025-0042", GenerateOrderNumber(fixedNow, func(int) int { return 42 }))
	assert.Equal(t, "AW-2025-0000", GenerateOrderNumber(fixedNow, func(int) int { return 0 }))
	assert.Equal(t, "AW-2025-9999", GenerateOrderNumber(fixedNow, func(n int) int { return n - 1 }))
	assert.Regexp(t, orderNumberPattern, GenerateOrderNumber(time.Now(), func(n int) int { return n / 3 }))
}

func TestDeliveryDate(t *testing.T) {
	assert.Equal(t, "Mon, 10 Mar 2025", DeliveryDate(fixedNow, DefaultDeliveryDays))
	// crosses a year boundary
	assert.Equal(t, "Thu, 01 Jan 2026", DeliveryDate(time.Date(2025, time.December, 25, 0, 0, 0, 0, time.UTC), 7))
}

func TestPlaceOrderConfirms(t *testing.T) {
	s := store.NewMemory()
	history := NewHistory(s)

	var confirmed []models.OrderRecord
	var updates []models.OrderStatus
	sim := NewSimulator(history,
		WithAfter(immediately),
		WithNow(func() time.Time { return fixedNow }),
		WithRand(func(int) int { return 7 }),
		WithOnConfirm(func(_ context.Context, rec models.OrderRecord) error {
			confirmed = append(confirmed, rec)
			return nil
		}),
		WithObserver(func(u models.OrderStatusUpdate) {
			updates = append(updates, u.Status)
		}),
	)
	defer sim.Close()

	req := request()
	pending, err := sim.PlaceOrder(context.Background(), req)
	require.NoError(t, err)

	// mutating the caller's slice after placement does not alter the snapshot
	req.Items[0].Artwork.Title = "changed"

	rec, err := pending.Wait(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "AW-2025-0007", rec.OrderNumber)
	assert.Regexp(t, orderNumberPattern, rec.OrderNumber)
	assert.Equal(t, "Mon, 10 Mar 2025", rec.DeliveryDate)
	assert.Equal(t, fixedNow, rec.OrderDate)
	assert.Equal(t, "ART10", rec.PromoCode)
	assert.Equal(t, "550", rec.PromoDiscount.String())
	require.Len(t, rec.Items, 1)
	assert.Equal(t, "Shikara at Dawn", rec.Items[0].Artwork.Title)

	records, err := history.List(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Empty(t, cmp.Diff(rec.OrderNumber, records[0].OrderNumber))
	assert.True(t, rec.Summary.FinalTotal.Equal(records[0].Summary.FinalTotal))

	require.Len(t, confirmed, 1)
	assert.Equal(t, rec.OrderNumber, confirmed[0].OrderNumber)
	assert.Equal(t, []models.OrderStatus{models.OrderStatusPlacing, models.OrderStatusConfirmed}, updates)

	status := sim.Status()
	assert.Equal(t, models.OrderStatusConfirmed, status.Status)
	require.NotNil(t, status.Order)
	assert.Equal(t, rec.OrderNumber, status.Order.OrderNumber)
}

func TestPlaceOrderEmptyCart(t *testing.T) {
	s := store.NewMemory()
	sim := NewSimulator(NewHistory(s), WithAfter(immediately))
	defer sim.Close()

	pending, err := sim.PlaceOrder(context.Background(), Request{})
	require.ErrorIs(t, err, models.ErrEmptyCart)
	assert.Nil(t, pending)

	_, err = s.Get(context.Background(), HistoryKey)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, models.OrderStatusIdle, sim.Status().Status)
}

func TestPlaceOrderInProgress(t *testing.T) {
	sim := NewSimulator(NewHistory(store.NewMemory()), WithAfter(never))
	defer sim.Close()

	_, err := sim.PlaceOrder(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPlacing, sim.Status().Status)

	_, err = sim.PlaceOrder(context.Background(), request())
	assert.ErrorIs(t, err, models.ErrOrderInProgress)
	assert.Equal(t, models.KindConflict, models.KindOf(err))
}

func TestPlaceOrderAgainAfterConfirm(t *testing.T) {
	s := store.NewMemory()
	history := NewHistory(s)
	sim := NewSimulator(history, WithAfter(immediately))
	defer sim.Close()

	for i := 0; i < 2; i++ {
		pending, err := sim.PlaceOrder(context.Background(), request())
		require.NoError(t, err)
		_, err = pending.Wait(context.Background())
		require.NoError(t, err)
	}

	records, err := history.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestCancelIsNoop(t *testing.T) {
	s := store.NewMemory()
	called := false
	sim := NewSimulator(NewHistory(s),
		WithAfter(never),
		WithOnConfirm(func(context.Context, models.OrderRecord) error {
			called = true
			return nil
		}),
	)
	defer sim.Close()

	pending, err := sim.PlaceOrder(context.Background(), request())
	require.NoError(t, err)

	pending.Cancel()
	pending.Cancel()

	<-pending.Done()
	_, err = pending.Wait(context.Background())
	assert.ErrorIs(t, err, ErrCancelled)
	assert.False(t, called)
	assert.Equal(t, models.OrderStatusIdle, sim.Status().Status)

	_, err = s.Get(context.Background(), HistoryKey)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCloseCancelsPending(t *testing.T) {
	s := store.NewMemory()
	sim := NewSimulator(NewHistory(s), WithAfter(never))

	pending, err := sim.PlaceOrder(context.Background(), request())
	require.NoError(t, err)

	sim.Close()

	_, err = pending.Wait(context.Background())
	assert.ErrorIs(t, err, ErrCancelled)

	_, err = sim.PlaceOrder(context.Background(), request())
	assert.ErrorIs(t, err, ErrClosed)

	_, err = s.Get(context.Background(), HistoryKey)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestPlaceOrderStorageFailure(t *testing.T) {
	called := false
	sim := NewSimulator(NewHistory(&failingStorage{Memory: store.NewMemory()}),
		WithAfter(immediately),
		WithOnConfirm(func(context.Context, models.OrderRecord) error {
			called = true
			return nil
		}),
	)
	defer sim.Close()

	pending, err := sim.PlaceOrder(context.Background(), request())
	require.NoError(t, err)

	_, err = pending.Wait(context.Background())
	require.Error(t, err)
	assert.Equal(t, models.KindStorage, models.KindOf(err))
	assert.False(t, called)

	status := sim.Status()
	assert.Equal(t, models.OrderStatusFailed, status.Status)
	assert.NotEmpty(t, status.Error)

	// a failed placement may be retried
	_, err = sim.PlaceOrder(context.Background(), request())
	require.NoError(t, err)
}

func TestWaitHonoursContext(t *testing.T) {
	sim := NewSimulator(NewHistory(store.NewMemory()), WithAfter(never))
	defer sim.Close()

	pending, err := sim.PlaceOrder(context.Background(), request())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err = pending.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRealDelay(t *testing.T) {
	sim := NewSimulator(NewHistory(store.NewMemory()), WithDelay(5*time.Millisecond))
	defer sim.Close()

	pending, err := sim.PlaceOrder(context.Background(), request())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	rec, err := pending.Wait(ctx)
	require.NoError(t, err)
	assert.Regexp(t, orderNumberPattern, rec.OrderNumber)
}

func TestConcurrentPlacementsAdmitOne(t *testing.T) {
	sim := NewSimulator(NewHistory(store.NewMemory()), WithAfter(never))
	defer sim.Close()

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := sim.PlaceOrder(context.Background(), request()); err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, accepted)
}

func TestConfirmErrorKeepsOrderConfirmed(t *testing.T) {
	history := NewHistory(store.NewMemory())

	var updates []models.OrderStatusUpdate
	clearErr := models.NewStorageError(errors.New("quota exceeded"))
	sim := NewSimulator(history,
		WithAfter(immediately),
		WithNow(func() time.Time { return fixedNow }),
		WithOnConfirm(func(context.Context, models.OrderRecord) error { return clearErr }),
		WithObserver(func(u models.OrderStatusUpdate) { updates = append(updates, u) }),
	)
	defer sim.Close()

	p, err := sim.PlaceOrder(context.Background(), request())
	require.NoError(t, err)

	rec, err := p.Wait(context.Background())
	require.NoError(t, err)
	assert.ErrorIs(t, p.ConfirmErr(), clearErr)
	assert.False(t, sim.Placing())

	status := sim.Status()
	assert.Equal(t, models.OrderStatusConfirmed, status.Status)
	require.NotNil(t, status.Order)
	assert.Equal(t, rec.OrderNumber, status.Order.OrderNumber)
	assert.Equal(t, clearErr.Error(), status.Error)
	assert.True(t, status.Retryable)

	require.Len(t, updates, 2)
	assert.Equal(t, clearErr.Error(), updates[1].Error)
	assert.True(t, updates[1].Retryable)

	orders, err := history.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestPlacing(t *testing.T) {
	sim := NewSimulator(NewHistory(store.NewMemory()), WithAfter(never))
	defer sim.Close()

	assert.False(t, sim.Placing())
	p, err := sim.PlaceOrder(context.Background(), request())
	require.NoError(t, err)
	assert.True(t, sim.Placing())

	p.Cancel()
	assert.False(t, sim.Placing())
}
