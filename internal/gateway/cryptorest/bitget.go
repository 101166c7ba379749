package cryptorest

import (
	"context"
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

// bitget speaks the v2 API; spot under /api/v2/spot and USDT/COIN futures
// under /api/v2/mix.
type bitget struct{ *conn }

const bitgetOK = "00000"

var bitgetAuthErrors = map[string]bool{
	"40006": true, // invalid ACCESS_KEY
	"40009": true, // sign error
	"40012": true, // apikey/passphrase incorrect
	"40037": true, // apikey does not exist
}

func (g *bitget) baseURL() string       { return "https://api.bitget.com" }
func (g *bitget) supportsFutures() bool { return true }

// quoteSized: spot market buys are sized in quote coin.
func (g *bitget) quoteSized(p placement) bool {
	return !p.futures() && p.market() && p.buy()
}

func bitgetProduct(inst order.Instrument) string {
	switch {
	case inst.CoinMargined:
		return "COIN-FUTURES"
	case inst.Quote == "USDC":
		return "USDC-FUTURES"
	default:
		return "USDT-FUTURES"
	}
}

func (g *bitget) call(ctx context.Context, op, method, path string, query url.Values, body any, private bool) (gjson.Result, error) {
	req := rest.Request{Method: method, Path: path, Query: query, Header: http.Header{}}
	var payload string
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return gjson.Result{}, err
		}
		req.RawBody = raw
		payload = string(raw)
	}
	if private {
		ts := strconv.FormatInt(g.now().UnixMilli(), 10)
		req.Header.Set("ACCESS-KEY", g.creds.Key)
		req.Header.Set("ACCESS-SIGN", prehashSign(g.creds.Secret, ts, method, path, query, payload))
		req.Header.Set("ACCESS-TIMESTAMP", ts)
		req.Header.Set("ACCESS-PASSPHRASE", g.creds.Passphrase)
		req.Header.Set("locale", "en-US")
	}
	resp, err := g.client.Do(ctx, req)
	if err != nil {
		return gjson.Result{}, errs.Remote(g.id, op, err)
	}
	doc := resp.JSON()
	code := doc.Get("code").String()
	if code == bitgetOK {
		return doc.Get("data"), nil
	}
	msg := doc.Get("msg").String()
	if bitgetAuthErrors[code] || resp.Status == http.StatusUnauthorized {
		return gjson.Result{}, errs.Authentication(g.id, msg, nil)
	}
	if code == "" {
		code = strconv.Itoa(resp.Status)
		msg = string(resp.Body)
	}
	return gjson.Result{}, errs.RemoteCode(g.id, op, code, msg)
}

func (g *bitget) last(ctx context.Context, inst order.Instrument) (decimal.Decimal, error) {
	sym := inst.Base + inst.Quote
	if !inst.Futures {
		data, err := g.call(ctx, "price", http.MethodGet, "/api/v2/spot/market/tickers", url.Values{"symbol": {sym}}, nil, false)
		if err != nil {
			return decimal.Zero, err
		}
		return dec(data.Get("0.lastPr").String()), nil
	}
	data, err := g.call(ctx, "price", http.MethodGet, "/api/v2/mix/market/ticker", url.Values{
		"symbol":      {sym},
		"productType": {bitgetProduct(inst)},
	}, nil, false)
	if err != nil {
		return decimal.Zero, err
	}
	return dec(data.Get("0.lastPr").String()), nil
}

// balance values spot coins at their USDT last price and adds the USDT-M
// futures equity as one holding.
func (g *bitget) balance(ctx context.Context) (exchange.BalanceSnapshot, error) {
	assets, err := g.call(ctx, "balance", http.MethodGet, "/api/v2/spot/account/assets", nil, nil, true)
	if err != nil {
		return exchange.BalanceSnapshot{}, err
	}
	tickers, err := g.call(ctx, "balance", http.MethodGet, "/api/v2/spot/market/tickers", nil, nil, false)
	if err != nil {
		return exchange.BalanceSnapshot{}, err
	}
	prices := make(map[string]decimal.Decimal)
	for _, t := range tickers.Array() {
		prices[t.Get("symbol").String()] = dec(t.Get("lastPr").String())
	}

	snap := exchange.BalanceSnapshot{Currency: "USDT"}
	for _, a := range assets.Array() {
		coin := a.Get("coin").String()
		qty := dec(a.Get("available").String()).
			Add(dec(a.Get("frozen").String())).
			Add(dec(a.Get("locked").String()))
		if !qty.IsPositive() {
			continue
		}
		var value decimal.Decimal
		switch {
		case isStable(coin):
			value = qty
		case prices[coin+"USDT"].IsPositive():
			value = qty.Mul(prices[coin+"USDT"])
		}
		snap.Holdings = append(snap.Holdings, exchange.Holding{Symbol: coin, Quantity: qty, Value: value})
		snap.Total = snap.Total.Add(value)
	}

	futures, err := g.call(ctx, "balance", http.MethodGet, "/api/v2/mix/account/accounts",
		url.Values{"productType": {"USDT-FUTURES"}}, nil, true)
	if err != nil {
		g.log.Warnf("futures balance unavailable: %v", err)
		return snap, nil
	}
	for _, f := range futures.Array() {
		eq := dec(f.Get("usdtEquity").String())
		if !eq.IsPositive() {
			continue
		}
		snap.Holdings = append(snap.Holdings, exchange.Holding{
			Symbol:   f.Get("marginCoin").String(),
			Name:     "USDT-FUTURES",
			Quantity: dec(f.Get("accountEquity").String()),
			Value:    eq,
		})
		snap.Total = snap.Total.Add(eq)
	}
	return snap, nil
}

func isStable(coin string) bool {
	switch coin {
	case "USDT", "USDC", "BUSD", "TUSD", "FDUSD":
		return true
	}
	return false
}

func (g *bitget) free(ctx context.Context, asset string, futures bool) (decimal.Decimal, error) {
	if futures {
		product := "USDT-FUTURES"
		if asset == "USDC" {
			product = "USDC-FUTURES"
		} else if asset != "USDT" {
			product = "COIN-FUTURES"
		}
		data, err := g.call(ctx, "free", http.MethodGet, "/api/v2/mix/account/accounts",
			url.Values{"productType": {product}}, nil, true)
		if err != nil {
			return decimal.Zero, err
		}
		for _, f := range data.Array() {
			if f.Get("marginCoin").String() == asset {
				return dec(f.Get("available").String()), nil
			}
		}
		return decimal.Zero, nil
	}
	data, err := g.call(ctx, "free", http.MethodGet, "/api/v2/spot/account/assets", url.Values{"coin": {asset}}, nil, true)
	if err != nil {
		return decimal.Zero, err
	}
	return dec(data.Get("0.available").String()), nil
}

func (g *bitget) setLeverage(ctx context.Context, p placement) error {
	_, err := g.call(ctx, "leverage", http.MethodPost, "/api/v2/mix/account/set-leverage", nil, map[string]string{
		"symbol":      p.inst.Base + p.inst.Quote,
		"productType": bitgetProduct(p.inst),
		"marginCoin":  p.inst.Settle,
		"leverage":    p.leverage.String(),
	}, true)
	return err
}

func (g *bitget) place(ctx context.Context, p placement) (exchange.OrderResult, error) {
	sym := p.inst.Base + p.inst.Quote
	body := map[string]string{
		"symbol":    sym,
		"side":      string(p.side),
		"clientOid": p.clientID,
		"force":     "gtc",
	}
	if p.market() {
		body["orderType"] = "market"
	} else {
		body["orderType"] = "limit"
		body["price"] = p.price.String()
	}
	path := "/api/v2/spot/trade/place-order"
	if p.futures() {
		if !p.close && p.leverage.IsPositive() {
			if err := g.setLeverage(ctx, p); err != nil {
				return exchange.OrderResult{}, err
			}
		}
		path = "/api/v2/mix/order/place-order"
		body["productType"] = bitgetProduct(p.inst)
		body["marginMode"] = "crossed"
		body["marginCoin"] = p.inst.Settle
		body["size"] = p.amount.String()
		body["reduceOnly"] = "NO"
		if p.close {
			body["reduceOnly"] = "YES"
		}
	} else if g.quoteSized(p) {
		body["size"] = p.cost.String()
	} else {
		body["size"] = p.amount.String()
	}
	data, err := g.call(ctx, "order", http.MethodPost, path, nil, body, true)
	if err != nil {
		return exchange.OrderResult{}, err
	}
	return exchange.OrderResult{
		OrderID:       data.Get("orderId").String(),
		ClientOrderID: data.Get("clientOid").String(),
		Status:        "placed",
		Raw:           rawMap(data),
	}, nil
}

func (g *bitget) cancel(ctx context.Context, req exchange.CancelRequest) error {
	inst := req.Instrument
	body := map[string]string{
		"symbol":  inst.Base + inst.Quote,
		"orderId": req.OrderID,
	}
	path := "/api/v2/spot/trade/cancel-order"
	if inst.Futures {
		path = "/api/v2/mix/order/cancel-order"
		body["productType"] = bitgetProduct(inst)
		body["marginCoin"] = inst.Settle
	}
	_, err := g.call(ctx, "cancel", http.MethodPost, path, nil, body, true)
	return err
}
