package cryptorest

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"poa/internal/errs"
	"poa/internal/gateway/exchange"
	"poa/internal/gateway/rest"
	"poa/internal/order"
)

// bybit speaks the v5 unified API.
type bybit struct{ *conn }

const (
	bybitRecvWindow = "5000"
	// leverage not modified
	bybitLeverageUnchanged = 110043
)

var bybitAuthErrors = map[int64]bool{10003: true, 10004: true, 10005: true, 10007: true, 33004: true}

func (b *bybit) baseURL() string       { return "https://api.bybit.com" }
func (b *bybit) supportsFutures() bool { return true }

// quoteSized: spot market buys use marketUnit=quoteCoin; inverse contracts
// are sized in USD.
func (b *bybit) quoteSized(p placement) bool {
	if p.inst.CoinMargined {
		return true
	}
	return !p.futures() && p.market() && p.buy()
}

func bybitCategory(inst order.Instrument) string {
	switch {
	case !inst.Futures:
		return "spot"
	case inst.CoinMargined:
		return "inverse"
	default:
		return "linear"
	}
}

func bybitSign(secret, ts, key, recv, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts + key + recv + payload))
	return hex.EncodeToString(mac.Sum(nil))
}

func (b *bybit) call(ctx context.Context, op, method, path string, query url.Values, body any, private bool) (gjson.Result, error) {
	req := rest.Request{Method: method, Path: path, Query: query, Header: http.Header{}}
	payload := query.Encode()
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return gjson.Result{}, err
		}
		req.RawBody = raw
		payload = string(raw)
	}
	if private {
		ts := strconv.FormatInt(b.now().UnixMilli(), 10)
		req.Header.Set("X-BAPI-API-KEY", b.creds.Key)
		req.Header.Set("X-BAPI-TIMESTAMP", ts)
		req.Header.Set("X-BAPI-RECV-WINDOW", bybitRecvWindow)
		req.Header.Set("X-BAPI-SIGN", bybitSign(b.creds.Secret, ts, b.creds.Key, bybitRecvWindow, payload))
	}
	resp, err := b.client.Do(ctx, req)
	if err != nil {
		return gjson.Result{}, errs.Remote(b.id, op, err)
	}
	doc := resp.JSON()
	code := doc.Get("retCode").Int()
	if !doc.Get("retCode").Exists() && resp.Status >= 300 {
		return gjson.Result{}, errs.RemoteCode(b.id, op, strconv.Itoa(resp.Status), string(resp.Body))
	}
	if code != 0 {
		msg := doc.Get("retMsg").String()
		if bybitAuthErrors[code] || resp.Status == http.StatusUnauthorized {
			return gjson.Result{}, errs.Authentication(b.id, msg, nil)
		}
		return gjson.Result{}, errs.RemoteCode(b.id, op, strconv.FormatInt(code, 10), msg)
	}
	return doc.Get("result"), nil
}

func (b *bybit) last(ctx context.Context, inst order.Instrument) (decimal.Decimal, error) {
	res, err := b.call(ctx, "price", http.MethodGet, "/v5/market/tickers", url.Values{
		"category": {bybitCategory(inst)},
		"symbol":   {inst.Base + inst.Quote},
	}, nil, false)
	if err != nil {
		return decimal.Zero, err
	}
	return dec(res.Get("list.0.lastPrice").String()), nil
}

func (b *bybit) wallet(ctx context.Context, coin string) (gjson.Result, error) {
	q := url.Values{"accountType": {"UNIFIED"}}
	if coin != "" {
		q.Set("coin", coin)
	}
	res, err := b.call(ctx, "balance", http.MethodGet, "/v5/account/wallet-balance", q, nil, true)
	if err != nil {
		return gjson.Result{}, err
	}
	return res.Get("list.0"), nil
}

// balance reports the unified account in USD as valued by Bybit.
func (b *bybit) balance(ctx context.Context) (exchange.BalanceSnapshot, error) {
	acct, err := b.wallet(ctx, "")
	if err != nil {
		return exchange.BalanceSnapshot{}, err
	}
	snap := exchange.BalanceSnapshot{Currency: "USD"}
	var sum decimal.Decimal
	for _, c := range acct.Get("coin").Array() {
		qty := dec(c.Get("walletBalance").String())
		if !qty.IsPositive() {
			continue
		}
		value := dec(c.Get("usdValue").String())
		snap.Holdings = append(snap.Holdings, exchange.Holding{
			Symbol:   c.Get("coin").String(),
			Quantity: qty,
			Value:    value,
		})
		sum = sum.Add(value)
	}
	snap.Total = dec(acct.Get("totalEquity").String())
	if snap.Total.IsZero() {
		snap.Total = sum
	}
	return snap, nil
}

func (b *bybit) free(ctx context.Context, asset string, futures bool) (decimal.Decimal, error) {
	acct, err := b.wallet(ctx, asset)
	if err != nil {
		return decimal.Zero, err
	}
	if futures && (asset == "USDT" || asset == "USDC") {
		if avail := dec(acct.Get("totalAvailableBalance").String()); avail.IsPositive() {
			return avail, nil
		}
	}
	for _, c := range acct.Get("coin").Array() {
		if c.Get("coin").String() != asset {
			continue
		}
		return dec(c.Get("walletBalance").String()).Sub(dec(c.Get("locked").String())), nil
	}
	return decimal.Zero, nil
}

func (b *bybit) setLeverage(ctx context.Context, p placement) error {
	lev := p.leverage.String()
	_, err := b.call(ctx, "leverage", http.MethodPost, "/v5/position/set-leverage", nil, map[string]string{
		"category":     bybitCategory(p.inst),
		"symbol":       p.inst.Base + p.inst.Quote,
		"buyLeverage":  lev,
		"sellLeverage": lev,
	}, true)
	var rc *errs.RemoteCallError
	if asRemote(err, &rc) && rc.Code == strconv.Itoa(bybitLeverageUnchanged) {
		return nil
	}
	return err
}

func (b *bybit) place(ctx context.Context, p placement) (exchange.OrderResult, error) {
	if p.futures() && !p.close && p.leverage.IsPositive() {
		if err := b.setLeverage(ctx, p); err != nil {
			return exchange.OrderResult{}, err
		}
	}
	body := map[string]string{
		"category":    bybitCategory(p.inst),
		"symbol":      p.inst.Base + p.inst.Quote,
		"side":        bybitSide(p.side),
		"orderLinkId": p.clientID,
	}
	if p.market() {
		body["orderType"] = "Market"
	} else {
		body["orderType"] = "Limit"
		body["price"] = p.price.String()
		body["timeInForce"] = "GTC"
	}
	switch {
	case p.inst.CoinMargined:
		body["qty"] = p.cost.Floor().String()
	case b.quoteSized(p):
		body["qty"] = p.cost.String()
		body["marketUnit"] = "quoteCoin"
	default:
		body["qty"] = p.amount.String()
	}
	if p.futures() && p.close {
		body["reduceOnly"] = "true"
	}
	res, err := b.call(ctx, "order", http.MethodPost, "/v5/order/create", nil, body, true)
	if err != nil {
		return exchange.OrderResult{}, err
	}
	return exchange.OrderResult{
		OrderID:       res.Get("orderId").String(),
		ClientOrderID: res.Get("orderLinkId").String(),
		Status:        "placed",
		Raw:           rawMap(res),
	}, nil
}

func bybitSide(s order.Side) string {
	if s == order.Buy {
		return "Buy"
	}
	return "Sell"
}

func (b *bybit) cancel(ctx context.Context, req exchange.CancelRequest) error {
	_, err := b.call(ctx, "cancel", http.MethodPost, "/v5/order/cancel", nil, map[string]string{
		"category": bybitCategory(req.Instrument),
		"symbol":   req.Instrument.Base + req.Instrument.Quote,
		"orderId":  req.OrderID,
	}, true)
	return err
}
