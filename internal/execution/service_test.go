package execution

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"poa/internal/errs"
	"poa/internal/gateway/exchange"
	"poa/internal/gateway/notifier"
	"poa/internal/order"
	"poa/internal/store/gormstore"
	"poa/internal/venue"
)

const secret = "pw"

type fakeAdapter struct {
	id     venue.ID
	free   map[string]decimal.Decimal
	last   decimal.Decimal
	err    error
	mu     sync.Mutex
	placed []order.CanonicalOrder
	asked  []string
}

func (f *fakeAdapter) Name() venue.ID { return f.id }
func (f *fakeAdapter) FetchBalance(context.Context) (exchange.BalanceSnapshot, error) {
	return exchange.BalanceSnapshot{}, nil
}
func (f *fakeAdapter) CancelOrder(context.Context, exchange.CancelRequest) error { return nil }
func (f *fakeAdapter) FetchPrice(_ context.Context, inst order.Instrument) (exchange.PriceQuote, error) {
	return exchange.PriceQuote{Venue: f.id, Symbol: inst.Symbol(), Last: f.last}, nil
}
func (f *fakeAdapter) FetchFree(_ context.Context, asset string, futures bool) (exchange.Free, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := asset
	if futures {
		key += ":F"
	}
	f.asked = append(f.asked, key)
	return exchange.Free{Asset: asset, Amount: f.free[key]}, nil
}
func (f *fakeAdapter) PlaceOrder(_ context.Context, o order.CanonicalOrder) (exchange.OrderResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return exchange.OrderResult{}, f.err
	}
	f.placed = append(f.placed, o)
	return exchange.OrderResult{
		Venue: f.id, Symbol: o.Symbol(), OrderID: "oid-1", Side: o.Side(), Kind: o.Kind(),
		Amount: o.Amount().Decimal(), Cost: o.Cost().Decimal(),
	}, nil
}

// balanceOnly lacks FetchFree.
type balanceOnly struct{ exchange.Adapter }

type fakeVenues map[venue.ID]exchange.Adapter

func (v fakeVenues) Resolve(_ context.Context, id venue.ID) (exchange.Adapter, error) {
	if a, ok := v[id]; ok {
		return a, nil
	}
	return nil, errs.Unavailable(id, "credentials missing")
}

type mockJournal struct{ mock.Mock }

func (m *mockJournal) AppendOrderLog(ctx context.Context, rec gormstore.OrderLogRecord) error {
	return m.Called(ctx, rec).Error(0)
}

type captureNotifier struct {
	mu   sync.Mutex
	msgs []notifier.StructuredMessage
}

func (c *captureNotifier) Notify(_ context.Context, m notifier.StructuredMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, m)
	return nil
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newService(t *testing.T, venues fakeVenues) (*Service, *mockJournal, *captureNotifier) {
	t.Helper()
	j := &mockJournal{}
	n := &captureNotifier{}
	s := NewService(order.NewNormalizer(secret), venues, Options{Journal: j, Notifier: n})
	s.newID = func() string { return "req-1" }
	return s, j, n
}

func req(exchangeName, base, quote, side string) order.GenericOrderRequest {
	return order.GenericOrderRequest{Exchange: exchangeName, Base: base, Quote: quote, Side: side, Type: "market", Password: secret}
}

func TestExecutePlacesAndJournals(t *testing.T) {
	a := &fakeAdapter{id: venue.Bybit}
	s, j, n := newService(t, fakeVenues{venue.Bybit: a})
	j.On("AppendOrderLog", mock.Anything, mock.MatchedBy(func(r gormstore.OrderLogRecord) bool {
		return r.RequestID == "req-1" && r.Status == gormstore.OrderLogPlaced &&
			r.Symbol == "BTC/USDT:USDT" && r.Side == "entry/buy" && r.Cost == "100" && r.OrderID == "oid-1"
	})).Return(nil).Once()

	in := req("BYBIT", "BTC", "USDT.P", "entry/buy")
	in.Cost = order.NewNumber(100)
	out, err := s.Execute(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "req-1", out.RequestID)
	assert.Equal(t, "oid-1", out.Result.OrderID)
	require.Len(t, a.placed, 1)
	assert.True(t, a.placed[0].IsFutures())
	j.AssertExpectations(t)
	require.Len(t, n.msgs, 1)
	assert.Equal(t, "下单成功", n.msgs[0].Title)
}

func TestExecuteRejectsPasswordWithoutSideEffects(t *testing.T) {
	a := &fakeAdapter{id: venue.Upbit}
	s, j, n := newService(t, fakeVenues{venue.Upbit: a})
	in := req("UPBIT", "BTC", "KRW", "buy")
	in.Cost = order.NewNumber(5000)
	in.Password = "wrong"

	_, err := s.Execute(context.Background(), in)
	assert.ErrorIs(t, err, errs.ErrAuthentication)
	assert.Empty(t, a.placed)
	j.AssertNotCalled(t, "AppendOrderLog", mock.Anything, mock.Anything)
	assert.Empty(t, n.msgs)
}

func TestExecuteUnavailableVenueIsJournaledAsFailed(t *testing.T) {
	s, j, n := newService(t, fakeVenues{})
	j.On("AppendOrderLog", mock.Anything, mock.MatchedBy(func(r gormstore.OrderLogRecord) bool {
		return r.Status == gormstore.OrderLogFailed && r.Venue == "BROKER7" && r.Error != ""
	})).Return(errors.New("disk full")).Once()

	in := req("KRX", "005930", "KRW", "buy")
	in.Amount = order.NewNumber(1)
	in.BrokerAccountIndex = order.NewNumber(7)
	_, err := s.Execute(context.Background(), in)
	assert.ErrorIs(t, err, errs.ErrVenueUnavailable)
	j.AssertExpectations(t)
	require.Len(t, n.msgs, 1)
	assert.Equal(t, "下单失败", n.msgs[0].Title)
}

func TestExecuteRemoteFailure(t *testing.T) {
	a := &fakeAdapter{id: venue.OKX, err: errs.Remote(venue.OKX, "order", errors.New("boom"))}
	s, j, _ := newService(t, fakeVenues{venue.OKX: a})
	j.On("AppendOrderLog", mock.Anything, mock.Anything).Return(nil)

	in := req("OKX", "ETH", "USDT", "sell")
	in.Amount = order.NewNumber(1)
	_, err := s.Execute(context.Background(), in)
	assert.ErrorIs(t, err, errs.ErrRemoteCall)
}

func TestPercentSizing(t *testing.T) {
	cases := []struct {
		name      string
		in        order.GenericOrderRequest
		free      map[string]decimal.Decimal
		last      string
		wantAsked string
		wantCost  string
		wantAmt   string
		wantClose bool
	}{
		{
			name: "spot buy spends quote", in: req("UPBIT", "BTC", "KRW", "buy"),
			free: map[string]decimal.Decimal{"KRW": d("200000")}, wantAsked: "KRW", wantCost: "100000",
		},
		{
			name: "spot sell sells base", in: req("UPBIT", "BTC", "KRW", "sell"),
			free: map[string]decimal.Decimal{"BTC": d("0.5")}, wantAsked: "BTC", wantAmt: "0.25",
		},
		{
			name: "futures uses margin times leverage", in: func() order.GenericOrderRequest {
				r := req("BYBIT", "BTC", "USDT.P", "entry/sell")
				r.Leverage = order.NewNumber(5)
				return r
			}(),
			free: map[string]decimal.Decimal{"USDT:F": d("40")}, wantAsked: "USDT:F", wantCost: "100",
		},
		{
			name: "futures close sizes from margin, not position", in: func() order.GenericOrderRequest {
				r := req("BYBIT", "ETH", "USDT.P", "close/buy")
				r.Leverage = order.NewNumber(2)
				return r
			}(),
			free: map[string]decimal.Decimal{"USDT:F": d("300")}, wantAsked: "USDT:F", wantCost: "300", wantClose: true,
		},
		{
			name: "coin margined converts at last", in: req("BYBIT", "BTC", "USD.P", "close/buy"),
			free: map[string]decimal.Decimal{"BTC:F": d("0.02")}, last: "50000", wantAsked: "BTC:F", wantCost: "500", wantClose: true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			id, err := venue.Parse(tc.in.Exchange)
			require.NoError(t, err)
			a := &fakeAdapter{id: id, free: tc.free}
			if tc.last != "" {
				a.last = d(tc.last)
			}
			s, j, _ := newService(t, fakeVenues{id: a})
			j.On("AppendOrderLog", mock.Anything, mock.Anything).Return(nil)

			tc.in.Percent = order.NewNumber(50)
			_, err = s.Execute(context.Background(), tc.in)
			require.NoError(t, err)
			assert.Equal(t, []string{tc.wantAsked}, a.asked)
			require.Len(t, a.placed, 1)
			got := a.placed[0]
			assert.False(t, got.Percent().IsSet())
			assert.Equal(t, tc.wantClose, got.IsClose())
			if tc.wantCost != "" {
				assert.True(t, got.Cost().Decimal().Equal(d(tc.wantCost)), got.Cost().String())
				assert.False(t, got.Amount().IsSet())
			}
			if tc.wantAmt != "" {
				assert.True(t, got.Amount().Decimal().Equal(d(tc.wantAmt)), got.Amount().String())
				assert.False(t, got.Cost().IsSet())
			}
		})
	}
}

func TestPercentOfEmptyBalanceFails(t *testing.T) {
	a := &fakeAdapter{id: venue.Upbit}
	s, j, _ := newService(t, fakeVenues{venue.Upbit: a})
	j.On("AppendOrderLog", mock.Anything, mock.Anything).Return(nil)
	in := req("UPBIT", "BTC", "KRW", "buy")
	in.Percent = order.NewNumber(10)
	_, err := s.Execute(context.Background(), in)
	assert.ErrorIs(t, err, errs.ErrValidation)
	assert.Empty(t, a.placed)
}

func TestPercentNeedsFreeBalancer(t *testing.T) {
	inner := &fakeAdapter{id: venue.Upbit}
	s, j, _ := newService(t, fakeVenues{venue.Upbit: balanceOnly{inner}})
	j.On("AppendOrderLog", mock.Anything, mock.Anything).Return(nil)
	in := req("UPBIT", "BTC", "KRW", "buy")
	in.Percent = order.NewNumber(10)
	_, err := s.Execute(context.Background(), in)
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestPrice(t *testing.T) {
	a := &fakeAdapter{id: venue.Bitget, last: d("3000")}
	s, _, _ := newService(t, fakeVenues{venue.Bitget: a})
	q, err := s.Price(context.Background(), order.GenericOrderRequest{Exchange: "bitget", Base: "eth", Quote: "usdt"})
	require.NoError(t, err)
	assert.Equal(t, "ETH/USDT", q.Symbol)
	assert.True(t, q.Last.Equal(d("3000")))
}
