package exchange

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"poa/internal/errs"
	"poa/internal/order"
	"poa/internal/pkg/circuit"
	"poa/internal/venue"
)

type mockAdapter struct {
	mock.Mock
}

func (m *mockAdapter) Name() venue.ID { return venue.Upbit }

func (m *mockAdapter) FetchBalance(ctx context.Context) (BalanceSnapshot, error) {
	args := m.Called(ctx)
	return args.Get(0).(BalanceSnapshot), args.Error(1)
}

func (m *mockAdapter) PlaceOrder(ctx context.Context, o order.CanonicalOrder) (OrderResult, error) {
	args := m.Called(ctx, o)
	return args.Get(0).(OrderResult), args.Error(1)
}

func (m *mockAdapter) CancelOrder(ctx context.Context, req CancelRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *mockAdapter) FetchPrice(ctx context.Context, inst order.Instrument) (PriceQuote, error) {
	args := m.Called(ctx, inst)
	return args.Get(0).(PriceQuote), args.Error(1)
}

func TestGuardClassifiesErrors(t *testing.T) {
	inner := &mockAdapter{}
	inner.On("FetchBalance", mock.Anything).Return(BalanceSnapshot{}, errors.New("connection reset")).Once()
	g := Guard(inner, BreakerConfig{Threshold: 3, Cooldown: time.Minute})

	_, err := g.FetchBalance(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrRemoteCall)
	var rc *errs.RemoteCallError
	require.ErrorAs(t, err, &rc)
	assert.Equal(t, venue.Upbit, rc.Venue)
	assert.Equal(t, "balance", rc.Op)
	inner.AssertExpectations(t)
}

func TestGuardOpensOnRemoteFailures(t *testing.T) {
	inner := &mockAdapter{}
	inst := order.Instrument{Venue: venue.Upbit, Base: "BTC", Quote: "KRW"}
	inner.On("FetchPrice", mock.Anything, inst).Return(PriceQuote{}, errors.New("502")).Twice()
	g := Guard(inner, BreakerConfig{Threshold: 2, Cooldown: time.Hour})

	for i := 0; i < 2; i++ {
		_, err := g.FetchPrice(context.Background(), inst)
		require.Error(t, err)
	}
	_, err := g.FetchPrice(context.Background(), inst)
	assert.ErrorIs(t, err, circuit.ErrOpen)
	assert.ErrorIs(t, err, errs.ErrRemoteCall)
	inner.AssertNumberOfCalls(t, "FetchPrice", 2)
}

func TestGuardAuthErrorsDoNotTrip(t *testing.T) {
	inner := &mockAdapter{}
	authErr := errs.Authentication(venue.Upbit, "invalid key", nil)
	inner.On("FetchBalance", mock.Anything).Return(BalanceSnapshot{}, authErr).Times(3)
	inner.On("FetchBalance", mock.Anything).Return(BalanceSnapshot{Total: decimal.NewFromInt(1)}, nil).Once()
	g := Guard(inner, BreakerConfig{Threshold: 1, Cooldown: time.Hour})

	for i := 0; i < 3; i++ {
		_, err := g.FetchBalance(context.Background())
		assert.Same(t, authErr, err)
	}
	snap, err := g.FetchBalance(context.Background())
	require.NoError(t, err)
	assert.True(t, snap.Total.Equal(decimal.NewFromInt(1)))
}

func TestGuardFreeBalanceUnsupported(t *testing.T) {
	g := Guard(&mockAdapter{}, BreakerConfig{})
	_, err := g.FetchFree(context.Background(), "KRW", false)
	assert.ErrorIs(t, err, errs.ErrRemoteCall)
}

type freeMock struct {
	mockAdapter
}

func (m *freeMock) FetchFree(ctx context.Context, asset string, futures bool) (Free, error) {
	args := m.Called(ctx, asset, futures)
	return args.Get(0).(Free), args.Error(1)
}

func TestGuardRejectedPercentDoesNotTrip(t *testing.T) {
	inner := &freeMock{}
	rejected := errs.Validation("percent", "no USD buying power")
	inner.On("FetchFree", mock.Anything, "USD", false).Return(Free{}, rejected).Times(5)
	inner.On("FetchBalance", mock.Anything).Return(BalanceSnapshot{Total: decimal.NewFromInt(7)}, nil).Once()
	g := Guard(inner, BreakerConfig{Threshold: 5, Cooldown: time.Hour})

	for i := 0; i < 5; i++ {
		_, err := g.FetchFree(context.Background(), "USD", false)
		assert.ErrorIs(t, err, errs.ErrValidation)
		assert.NotErrorIs(t, err, errs.ErrRemoteCall)
	}
	snap, err := g.FetchBalance(context.Background())
	require.NoError(t, err)
	assert.True(t, snap.Total.Equal(decimal.NewFromInt(7)))
	inner.AssertExpectations(t)
}
