package circuit

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func TestBreakerOpensAfterThreshold(t *testing.T) {
	now := time.Unix(1700000000, 0)
	cb := NewCircuitBreaker("UPBIT", 2, time.Minute)
	cb.now = func() time.Time { return now }
	fail := func() error { return errBoom }

	assert.ErrorIs(t, cb.Execute(fail, nil), errBoom)
	assert.Equal(t, StateClosed, cb.State())
	assert.ErrorIs(t, cb.Execute(fail, nil), errBoom)
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Execute(func() error { called = true; return nil }, nil)
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called)

	now = now.Add(2 * time.Minute)
	require.NoError(t, cb.Execute(func() error { return nil }, nil))
	assert.Equal(t, StateClosed, cb.State())
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	now := time.Unix(1700000000, 0)
	cb := NewCircuitBreaker("OKX", 1, time.Second)
	cb.now = func() time.Time { return now }

	_ = cb.Execute(func() error { return errBoom }, nil)
	now = now.Add(2 * time.Second)
	assert.True(t, cb.Allow())
	assert.Equal(t, StateHalfOpen, cb.State())
	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.State())
}

func TestBreakerIgnoresNonTrippingErrors(t *testing.T) {
	cb := NewCircuitBreaker("BYBIT", 1, time.Minute)
	bad := errors.New("bad request")
	notTrip := func(err error) bool { return !errors.Is(err, bad) }

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, cb.Execute(func() error { return bad }, notTrip), bad)
	}
	assert.Equal(t, StateClosed, cb.State())
}

func TestCall(t *testing.T) {
	cb := NewCircuitBreaker("BINANCE", 3, time.Minute)
	v, err := Call(cb, func() (int, error) { return 42, nil }, nil)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}
