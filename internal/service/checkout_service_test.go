package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/express-reservations/internal/model"
)

func TestCheckoutService_PaysOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.reservations.Create(ctx, basic(15))
	require.NoError(t, err)

	out, err := f.checkout.Pay(ctx, CheckoutInput{ReservationID: res.ID, CardNumber: validCard, CardHolder: "Ana", Expiration: "12/27", CVV: "123"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusPaid, out.Status)
	assert.Equal(t, "1500.00", out.TotalPaid.String())
	assert.Equal(t, testNow, out.PaidAt)

	stored, err := f.reservations.Get(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPaid, stored.Status)
	require.NotNil(t, stored.PaidAt)

	_, err = f.checkout.Pay(ctx, CheckoutInput{ReservationID: res.ID, CardNumber: validCard})
	assert.ErrorIs(t, err, ErrAlreadyPaid)
	assert.Equal(t, KindConflict, KindOf(err))

	require.Equal(t, 1, f.dispatcher.count())
	task := f.dispatcher.tasks[0]
	assert.Equal(t, res.ID, task.ReservationID)
	assert.Equal(t, "guest@example.com", task.Email)
	assert.Equal(t, "BASIC", task.Category)
	assert.Equal(t, "2026-01-10", task.StartDate)
}

func TestCheckoutService_ErrorOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.checkout.Pay(ctx, CheckoutInput{ReservationID: "missing", CardNumber: "1234"})
	assert.ErrorIs(t, err, ErrReservationNotFound)
	assert.Equal(t, KindNotFound, KindOf(err))

	res, err := f.reservations.Create(ctx, basic(1))
	require.NoError(t, err)

	_, err = f.checkout.Pay(ctx, CheckoutInput{ReservationID: res.ID, CardNumber: "4242 4242 4242 4241"})
	assert.ErrorIs(t, err, ErrInvalidCard)
	assert.Equal(t, KindInvalidInput, KindOf(err))

	_, err = f.checkout.Pay(ctx, CheckoutInput{ReservationID: res.ID, CardNumber: ""})
	assert.ErrorIs(t, err, ErrInvalidCard)

	stored, err := f.reservations.Get(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, stored.Status)

	_, err = f.checkout.Pay(ctx, CheckoutInput{ReservationID: res.ID, CardNumber: validCard})
	require.NoError(t, err)

	// Already paid is reported before the card is looked at.
	_, err = f.checkout.Pay(ctx, CheckoutInput{ReservationID: res.ID, CardNumber: "1234"})
	assert.ErrorIs(t, err, ErrAlreadyPaid)
	assert.Equal(t, 1, f.dispatcher.count())
}

func TestCheckoutService_ConcurrentPayExactlyOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res, err := f.reservations.Create(ctx, basic(3))
	require.NoError(t, err)

	var paid, conflicts atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.checkout.Pay(ctx, CheckoutInput{ReservationID: res.ID, CardNumber: validCard})
			switch {
			case err == nil:
				paid.Add(1)
			case KindOf(err) == KindConflict:
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, paid.Load())
	assert.EqualValues(t, 15, conflicts.Load())
	assert.Equal(t, 1, f.dispatcher.count())
}

func TestCheckoutService_DispatchContextOutlivesRequest(t *testing.T) {
	f := newFixture(t)
	res, err := f.reservations.Create(context.Background(), basic(1))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	_, err = f.checkout.Pay(ctx, CheckoutInput{ReservationID: res.ID, CardNumber: validCard})
	require.NoError(t, err)
	cancel()

	require.Equal(t, 1, f.dispatcher.count())
	assert.NoError(t, f.dispatcher.ctxs[0].Err())
}

func TestCheckoutService_PaidStillHoldsCapacity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.reservations.Create(ctx, basic(20))
	require.NoError(t, err)
	_, err = f.checkout.Pay(ctx, CheckoutInput{ReservationID: res.ID, CardNumber: validCard})
	require.NoError(t, err)

	_, err = f.reservations.Create(ctx, basic(1))
	assert.ErrorIs(t, err, ErrInsufficientCapacity)
}
