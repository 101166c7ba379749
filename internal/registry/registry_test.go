package registry

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poa/internal/errs"
	"poa/internal/gateway/cryptorest"
	"poa/internal/gateway/exchange"
	"poa/internal/gateway/kis"
	"poa/internal/order"
	"poa/internal/venue"
)

type stubAdapter struct{ id venue.ID }

func (s *stubAdapter) Name() venue.ID { return s.id }
func (s *stubAdapter) FetchBalance(context.Context) (exchange.BalanceSnapshot, error) {
	return exchange.BalanceSnapshot{Venue: s.id}, nil
}
func (s *stubAdapter) PlaceOrder(context.Context, order.CanonicalOrder) (exchange.OrderResult, error) {
	return exchange.OrderResult{}, nil
}
func (s *stubAdapter) CancelOrder(context.Context, exchange.CancelRequest) error { return nil }
func (s *stubAdapter) FetchPrice(context.Context, order.Instrument) (exchange.PriceQuote, error) {
	return exchange.PriceQuote{}, nil
}

type countingFactory struct {
	builds atomic.Int32
	delay  time.Duration
	// slow limits delay to one venue when set.
	slow venue.ID
	fail func(id venue.ID, n int32) error
}

func (f *countingFactory) Build(ctx context.Context, id venue.ID) (exchange.Adapter, error) {
	n := f.builds.Add(1)
	if f.delay > 0 && (f.slow == "" || f.slow == id) {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.fail != nil {
		if err := f.fail(id, n); err != nil {
			return nil, err
		}
	}
	return &stubAdapter{id: id}, nil
}

func (f *countingFactory) Configured() []venue.ID { return []venue.ID{venue.Upbit} }

func TestResolveIsIdempotent(t *testing.T) {
	f := &countingFactory{}
	r := New(f)
	a1, err := r.Resolve(context.Background(), venue.Upbit)
	require.NoError(t, err)
	a2, err := r.Resolve(context.Background(), venue.Upbit)
	require.NoError(t, err)
	assert.Same(t, a1, a2)
	assert.Equal(t, int32(1), f.builds.Load())
	assert.Equal(t, venue.Upbit, a1.Name())
	assert.Equal(t, []venue.ID{venue.Upbit}, r.Loaded())
}

func TestResolveConcurrentSharesOneBuild(t *testing.T) {
	f := &countingFactory{delay: 50 * time.Millisecond}
	r := New(f)

	const n = 32
	var wg sync.WaitGroup
	got := make([]exchange.Adapter, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, err := r.Resolve(context.Background(), venue.Bybit)
			assert.NoError(t, err)
			got[i] = a
		}(i)
	}
	wg.Wait()
	assert.Equal(t, int32(1), f.builds.Load())
	for _, a := range got[1:] {
		assert.Same(t, got[0], a)
	}
}

func TestUnavailableIsMemoized(t *testing.T) {
	f := &countingFactory{fail: func(id venue.ID, _ int32) error {
		return errs.Unavailable(id, "missing secret")
	}}
	r := New(f)
	for i := 0; i < 3; i++ {
		_, err := r.Resolve(context.Background(), venue.OKX)
		assert.ErrorIs(t, err, errs.ErrVenueUnavailable)
	}
	assert.Equal(t, int32(1), f.builds.Load())
}

func TestInitFailureIsRetried(t *testing.T) {
	f := &countingFactory{fail: func(_ venue.ID, n int32) error {
		if n == 1 {
			return errors.New("connection refused")
		}
		return nil
	}}
	r := New(f)
	_, err := r.Resolve(context.Background(), venue.Bitget)
	assert.ErrorIs(t, err, errs.ErrVenueInit)

	a, err := r.Resolve(context.Background(), venue.Bitget)
	require.NoError(t, err)
	assert.NotNil(t, a)
	assert.Equal(t, int32(2), f.builds.Load())
}

func TestCallerCancelDoesNotAbortBuild(t *testing.T) {
	f := &countingFactory{delay: 80 * time.Millisecond}
	r := New(f)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := r.Resolve(ctx, venue.Upbit)
	assert.ErrorIs(t, err, errs.ErrVenueInit)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	var ie *errs.VenueInitError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, venue.Upbit, ie.Venue)

	a, err := r.Resolve(context.Background(), venue.Upbit)
	require.NoError(t, err)
	assert.NotNil(t, a)
	assert.Equal(t, int32(1), f.builds.Load())
}

func TestSlowBuildDoesNotBlockOtherVenues(t *testing.T) {
	f := &countingFactory{delay: 500 * time.Millisecond, slow: venue.Upbit}
	r := New(f)

	slowDone := make(chan error, 1)
	go func() {
		_, err := r.Resolve(context.Background(), venue.Upbit)
		slowDone <- err
	}()
	// let the UPBIT build start first
	time.Sleep(20 * time.Millisecond)

	start := time.Now()
	a, err := r.Resolve(context.Background(), venue.Bybit)
	require.NoError(t, err)
	assert.Equal(t, venue.Bybit, a.Name())
	assert.Less(t, time.Since(start), 200*time.Millisecond)

	select {
	case err := <-slowDone:
		t.Fatalf("UPBIT resolved before its build finished: %v", err)
	default:
	}
	require.NoError(t, <-slowDone)
}

func TestResolveMarket(t *testing.T) {
	r := New(&countingFactory{})
	a, err := r.ResolveMarket(context.Background(), "NASDAQ", 3)
	require.NoError(t, err)
	assert.Equal(t, venue.Broker(3), a.Name())

	_, err = r.ResolveMarket(context.Background(), "LSE", 1)
	assert.ErrorIs(t, err, errs.ErrValidation)
	_, err = r.ResolveMarket(context.Background(), "KRX", 0)
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestBrokerWithoutSecretIsUnavailable(t *testing.T) {
	f := NewFactory(Settings{
		Crypto: map[venue.ID]CryptoVenue{
			venue.OKX:   {Credentials: cryptorest.Credentials{Key: "k", Secret: "s"}},
			venue.Upbit: {Credentials: cryptorest.Credentials{Key: "k", Secret: "s"}},
		},
		Brokers: map[int]kis.Config{
			7: {AppKey: "key", AccountNumber: "12345678", AccountCode: "01"},
			2: {AppKey: "key", AppSecret: "secret", AccountNumber: "12345678", AccountCode: "01"},
		},
	})
	// OKX lacks a passphrase and BROKER7 lacks a secret
	assert.Equal(t, []venue.ID{venue.Upbit, venue.Broker(2)}, f.Configured())

	r := New(f)
	_, err := r.Resolve(context.Background(), venue.Broker(7))
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrVenueUnavailable)
	var ue *errs.VenueUnavailableError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, venue.Broker(7), ue.Venue)

	_, err = r.Resolve(context.Background(), venue.OKX)
	assert.ErrorIs(t, err, errs.ErrVenueUnavailable)
}
