package kis

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poa/internal/errs"
	"poa/internal/gateway/exchange"
	"poa/internal/order"
	"poa/internal/session"
	"poa/internal/venue"
)

// fakeKIS is a minimal stand-in for the KIS open API.
type fakeKIS struct {
	mu      sync.Mutex
	issued  int
	expired map[string]bool
	orders  []map[string]string
	trIDs   []string
	usLast  string
}

func newFakeKIS() *fakeKIS {
	return &fakeKIS{expired: map[string]bool{}, usLast: "187.40"}
}

func (f *fakeKIS) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if r.URL.Path == pathTokenP {
			var body map[string]string
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			if body["appsecret"] != "secret" {
				w.WriteHeader(http.StatusForbidden)
				_, _ = io.WriteString(w, `{"error_description":"유효하지 않은 AppSecret입니다.","error_code":"EGW00105"}`)
				return
			}
			f.issued++
			exp := time.Now().In(kst).Add(24 * time.Hour).Format(expiryLayout)
			fmt.Fprintf(w, `{"access_token":"tok-%d","token_type":"Bearer","expires_in":86400,"access_token_token_expired":%q}`, f.issued, exp)
			return
		}
		token := strings.TrimPrefix(r.Header.Get("authorization"), "Bearer ")
		f.trIDs = append(f.trIDs, r.Header.Get("tr_id"))
		if f.expired[token] {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = io.WriteString(w, `{"rt_cd":"1","msg_cd":"EGW00123","msg1":"기간이 만료된 token 입니다."}`)
			return
		}
		switch r.URL.Path {
		case pathInquireCcnl:
			_, _ = io.WriteString(w, `{"rt_cd":"0","msg_cd":"MCA00000","msg1":"정상처리 되었습니다.","output":[]}`)
		case pathDomesticBalance:
			assert.Equal(t, "12345678", r.URL.Query().Get("CANO"))
			_, _ = io.WriteString(w, `{"rt_cd":"0","msg_cd":"KIOK0510","msg1":"조회가 완료되었습니다",
				"output1":[
					{"pdno":"005930","prdt_name":"삼성전자","hldg_qty":"10","evlu_amt":"731000"},
					{"pdno":"000660","prdt_name":"SK하이닉스","hldg_qty":"0","evlu_amt":"0"}
				],
				"output2":[{"tot_evlu_amt":"1231000","dnca_tot_amt":"500000"}]}`)
		case pathOverseasBalance:
			switch r.URL.Query().Get("OVRS_EXCG_CD") {
			case "NAS":
				_, _ = io.WriteString(w, `{"rt_cd":"0","output1":[
					{"ovrs_pdno":"AAPL","ovrs_item_name":"APPLE INC","ovrs_cblc_qty":"3","frcr_evlu_amt":"562.20"}],
					"output2":{"tot_evlu_pfls_amt":"0"}}`)
			case "AMS":
				_, _ = io.WriteString(w, `{"rt_cd":"1","msg_cd":"APBK0013","msg1":"조회할 자료가 없습니다"}`)
			default:
				_, _ = io.WriteString(w, `{"rt_cd":"0","output1":[]}`)
			}
		case pathOverseasPrice:
			_, _ = fmt.Fprintf(w, `{"rt_cd":"0","output":{"last":%q}}`, f.usLast)
		case pathDomesticPrice:
			_, _ = io.WriteString(w, `{"rt_cd":"0","output":{"stck_prpr":"73100"}}`)
		case pathDomesticOrder, pathOverseasOrder:
			var body map[string]string
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			f.orders = append(f.orders, body)
			_, _ = io.WriteString(w, `{"rt_cd":"0","msg_cd":"APBK0013","msg1":"주문 전송 완료 되었습니다.","output":{"KRX_FWDG_ORD_ORGNO":"91252","ODNO":"0000117057"}}`)
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"rt_cd":"1","msg_cd":"EGW00000","msg1":"not found"}`)
		}
	})
}

func newTestAdapter(t *testing.T, f *fakeKIS, store session.TokenStore) *Adapter {
	t.Helper()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	a, err := New(Config{
		Index: 3, AppKey: "key", AppSecret: "secret",
		AccountNumber: "12345678", AccountCode: "01",
		BaseURL: srv.URL, RatePerSec: 1000,
	}, store)
	require.NoError(t, err)
	return a
}

func TestNewRequiresCompleteCredentials(t *testing.T) {
	_, err := New(Config{Index: 2, AppKey: "k", AppSecret: "s", AccountNumber: "1"}, nil)
	assert.Error(t, err)
	_, err = New(Config{Index: 51, AppKey: "k", AppSecret: "s", AccountNumber: "1", AccountCode: "01"}, nil)
	assert.Error(t, err)
}

func TestAuthenticateIssuesAndPersists(t *testing.T) {
	f := newFakeKIS()
	store := session.NewMemoryStore()
	a := newTestAdapter(t, f, store)

	require.NoError(t, a.Authenticate(context.Background()))
	tok, ok, err := store.Get(context.Background(), "KIS3")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "tok-1", tok.Value)
	assert.True(t, tok.ExpiresAt.After(time.Now().Add(23*time.Hour)))
	assert.Equal(t, venue.Broker(3), a.Name())
}

func TestAuthenticateRejected(t *testing.T) {
	f := newFakeKIS()
	srv := httptest.NewServer(f.handler(t))
	defer srv.Close()
	a, err := New(Config{
		Index: 1, AppKey: "key", AppSecret: "wrong", AccountNumber: "1", AccountCode: "01", BaseURL: srv.URL,
	}, session.NewMemoryStore())
	require.NoError(t, err)

	err = a.Authenticate(context.Background())
	assert.ErrorIs(t, err, errs.ErrAuthentication)
	assert.Contains(t, err.Error(), "AppSecret")
}

func TestFetchBalance(t *testing.T) {
	a := newTestAdapter(t, newFakeKIS(), session.NewMemoryStore())

	snap, err := a.FetchBalance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "KRW", snap.Currency)
	assert.True(t, snap.Total.Equal(decimal.NewFromInt(1231000)))
	require.Len(t, snap.Holdings, 1)
	assert.Equal(t, "005930", snap.Holdings[0].Symbol)
	assert.Equal(t, "삼성전자", snap.Holdings[0].Name)

	require.NotNil(t, snap.Overseas)
	require.Len(t, snap.Overseas.Holdings, 1)
	assert.Equal(t, "AAPL", snap.Overseas.Holdings[0].Symbol)
	assert.True(t, snap.Overseas.TotalUSD.Equal(decimal.RequireFromString("562.20")))
}

func TestStaleTokenRetriedOnce(t *testing.T) {
	f := newFakeKIS()
	store := session.NewMemoryStore()
	require.NoError(t, store.Put(context.Background(), "KIS3", session.AuthToken{
		Value: "old", ExpiresAt: time.Now().Add(10 * time.Hour),
	}))
	a := newTestAdapter(t, f, store)

	// Probe passes, then the server revokes the token before the balance call.
	require.NoError(t, a.Authenticate(context.Background()))
	f.mu.Lock()
	f.expired["old"] = true
	f.mu.Unlock()

	_, err := a.FetchBalance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, f.issued)
	tok, _, _ := store.Get(context.Background(), "KIS3")
	assert.Equal(t, "tok-1", tok.Value)
}

func TestPlaceDomesticMarketOrder(t *testing.T) {
	f := newFakeKIS()
	a := newTestAdapter(t, f, session.NewMemoryStore())
	o, err := order.Canonicalize(order.GenericOrderRequest{
		Exchange: "KRX", Base: "005930", Quote: "KRW", Side: "sell",
		Amount: order.NewNumber(2), BrokerAccountIndex: order.NewNumber(3),
	})
	require.NoError(t, err)

	res, err := a.PlaceOrder(context.Background(), o)
	require.NoError(t, err)
	assert.Equal(t, "0000117057", res.OrderID)
	require.Len(t, f.orders, 1)
	assert.Equal(t, "01", f.orders[0]["ORD_DVSN"])
	assert.Equal(t, "2", f.orders[0]["ORD_QTY"])
	assert.Equal(t, "0", f.orders[0]["ORD_UNPR"])
	assert.Contains(t, f.trIDs, trDomesticSell)
}

func TestPlaceUSOrderCrossesQuote(t *testing.T) {
	f := newFakeKIS()
	a := newTestAdapter(t, f, session.NewMemoryStore())
	o, err := order.Canonicalize(order.GenericOrderRequest{
		Exchange: "NASDAQ", Base: "AAPL", Quote: "USD", Side: "buy", Cost: order.NewNumber(1000),
	})
	require.NoError(t, err)

	res, err := a.PlaceOrder(context.Background(), o)
	require.NoError(t, err)
	require.Len(t, f.orders, 1)
	assert.Equal(t, "NASD", f.orders[0]["OVRS_EXCG_CD"])
	// 1000 / 187.40 floored
	assert.Equal(t, "5", f.orders[0]["ORD_QTY"])
	assert.Equal(t, "187.90", f.orders[0]["OVRS_ORD_UNPR"])
	assert.Equal(t, order.Limit, res.Kind)
	assert.Contains(t, f.trIDs, trOverseasBuy)
}

func TestCrossingPrice(t *testing.T) {
	tick := decimal.RequireFromString("0.01")
	cases := []struct {
		current string
		buy     bool
		want    string
	}{
		{"100", true, "100.5"},
		{"100", false, "99.5"},
		{"1.2", false, "1"},
		{"0.3", true, "1"},
		{"12.345", true, "12.85"},
	}
	for _, tc := range cases {
		got := crossingPrice(decimal.RequireFromString(tc.current), tick, 50, tc.buy)
		assert.True(t, got.Equal(decimal.RequireFromString(tc.want)), "%s buy=%v got %s", tc.current, tc.buy, got)
	}
}

func TestFetchFree(t *testing.T) {
	a := newTestAdapter(t, newFakeKIS(), session.NewMemoryStore())
	free, err := a.FetchFree(context.Background(), "KRW", false)
	require.NoError(t, err)
	assert.True(t, free.Amount.Equal(decimal.NewFromInt(500000)))

	free, err = a.FetchFree(context.Background(), "AAPL", false)
	require.NoError(t, err)
	assert.True(t, free.Amount.Equal(decimal.NewFromInt(3)))

	_, err = a.FetchFree(context.Background(), "USD", false)
	assert.ErrorIs(t, err, errs.ErrValidation)
	assert.NotErrorIs(t, err, errs.ErrRemoteCall)
}

func TestRejectedUSDPercentDoesNotOpenBreaker(t *testing.T) {
	a := newTestAdapter(t, newFakeKIS(), session.NewMemoryStore())
	g := exchange.Guard(a, exchange.BreakerConfig{Threshold: 5, Cooldown: time.Minute})

	for i := 0; i < 8; i++ {
		_, err := g.FetchFree(context.Background(), "USD", false)
		require.ErrorIs(t, err, errs.ErrValidation)
	}
	snap, err := g.FetchBalance(context.Background())
	require.NoError(t, err)
	assert.True(t, snap.Total.Equal(decimal.NewFromInt(1231000)))
}
