package webhookhttp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poa/internal/assets"
	"poa/internal/errs"
	"poa/internal/execution"
	"poa/internal/gateway/exchange"
	"poa/internal/order"
	"poa/internal/venue"
)

type fakeOrders struct {
	got   []order.GenericOrderRequest
	err   error
	price exchange.PriceQuote
}

func (f *fakeOrders) Execute(_ context.Context, req order.GenericOrderRequest) (execution.Outcome, error) {
	f.got = append(f.got, req)
	out := execution.Outcome{RequestID: "req-9"}
	if f.err != nil {
		return out, f.err
	}
	out.Result = exchange.OrderResult{Venue: venue.Upbit, Symbol: "BTC/KRW", OrderID: "abc"}
	return out, nil
}

func (f *fakeOrders) Price(_ context.Context, req order.GenericOrderRequest) (exchange.PriceQuote, error) {
	f.got = append(f.got, req)
	return f.price, f.err
}

type fakeAssets struct{ calls int }

func (f *fakeAssets) Report(context.Context) assets.Report {
	f.calls++
	return assets.Report{Entries: []assets.Entry{{Venue: venue.Upbit, Currency: "KRW", Total: decimal.NewFromInt(10)}}}
}

type password string

func (p password) Authorized(got string) bool { return string(p) == got }

func newTestServer(t *testing.T, orders *fakeOrders, whitelist ...string) (*Server, *fakeAssets) {
	t.Helper()
	fa := &fakeAssets{}
	srv, err := NewServer(ServerConfig{Orders: orders, Assets: fa, Auth: password("pw"), Whitelist: whitelist})
	require.NoError(t, err)
	return srv, fa
}

func do(srv *Server, method, path, body, remote string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if remote != "" {
		req.RemoteAddr = remote
	}
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

const validOrder = `{"exchange":"UPBIT","base":"BTC","quote":"KRW","side":"buy","type":"market","cost":"5000","amount":"NaN","password":"pw"}`

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, &fakeOrders{})
	assert.Equal(t, http.StatusOK, do(srv, http.MethodGet, "/hi", "", "").Code)
	w := do(srv, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestOrderAccepted(t *testing.T) {
	orders := &fakeOrders{}
	srv, _ := newTestServer(t, orders)
	w := do(srv, http.MethodPost, "/order", validOrder, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "req-9", body["request_id"])
	require.Len(t, orders.got, 1)
	assert.Equal(t, "5000", orders.got[0].Cost.String())
	assert.False(t, orders.got[0].Amount.IsSet())
}

func TestOrderSchemaRejects(t *testing.T) {
	orders := &fakeOrders{}
	srv, _ := newTestServer(t, orders)
	for name, body := range map[string]string{
		"missing side":  `{"exchange":"UPBIT","base":"BTC","quote":"KRW","password":"pw"}`,
		"bad side":      `{"exchange":"UPBIT","base":"BTC","quote":"KRW","side":"long","password":"pw"}`,
		"object amount": `{"exchange":"UPBIT","base":"BTC","quote":"KRW","side":"buy","amount":{},"password":"pw"}`,
		"not json":      `{`,
	} {
		t.Run(name, func(t *testing.T) {
			w := do(srv, http.MethodPost, "/order", body, "")
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
	assert.Empty(t, orders.got)
}

func TestOrderWhitelist(t *testing.T) {
	orders := &fakeOrders{}
	srv, _ := newTestServer(t, orders, "52.89.214.238")
	assert.Equal(t, http.StatusForbidden, do(srv, http.MethodPost, "/order", validOrder, "10.0.0.8:5555").Code)
	assert.Equal(t, http.StatusOK, do(srv, http.MethodPost, "/order", validOrder, "52.89.214.238:5555").Code)
	assert.Equal(t, http.StatusOK, do(srv, http.MethodPost, "/order", validOrder, "127.0.0.1:5555").Code)
	assert.Len(t, orders.got, 2)
}

func TestErrorStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{errs.Validation("price", "required"), http.StatusBadRequest},
		{errs.Authentication("", "password mismatch", nil), http.StatusUnauthorized},
		{errs.Unavailable(venue.Broker(7), "credentials missing"), http.StatusNotFound},
		{errs.Init(venue.OKX, errors.New("dial tcp")), http.StatusBadGateway},
		{errs.Remote(venue.OKX, "order", errors.New("boom")), http.StatusBadGateway},
		{errors.New("unexpected"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		srv, _ := newTestServer(t, &fakeOrders{err: tc.err})
		w := do(srv, http.MethodPost, "/order", validOrder, "")
		assert.Equal(t, tc.code, w.Code, tc.err.Error())
		assert.Contains(t, w.Body.String(), `"request_id":"req-9"`)
	}
}

func TestPrice(t *testing.T) {
	orders := &fakeOrders{price: exchange.PriceQuote{Venue: venue.Bybit, Symbol: "BTC/USDT", Last: decimal.NewFromInt(50000)}}
	srv, _ := newTestServer(t, orders)

	w := do(srv, http.MethodPost, "/price", `{"exchange":"BYBIT","base":"BTC","quote":"USDT","password":"pw"}`, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"last":"50000"`)

	w = do(srv, http.MethodPost, "/price", `{"exchange":"BYBIT","base":"BTC","quote":"USDT","password":"nope"}`, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Len(t, orders.got, 1)
}

func TestAssets(t *testing.T) {
	srv, fa := newTestServer(t, &fakeOrders{})
	w := do(srv, http.MethodPost, "/assets", `{"password":"pw"}`, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"venue":"UPBIT"`)

	assert.Equal(t, http.StatusUnauthorized, do(srv, http.MethodPost, "/assets", `{"password":"x"}`, "").Code)
	assert.Equal(t, 1, fa.calls)
}

func TestNewServerNeedsOrders(t *testing.T) {
	_, err := NewServer(ServerConfig{})
	assert.Error(t, err)
}
