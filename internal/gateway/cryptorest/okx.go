package cryptorest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"poa/internal/errs"
	"poa/internal/gateway/exchange"
	"poa/internal/gateway/rest"
	"poa/internal/order"
	symbolpkg "poa/internal/pkg/symbol"
)

// okx speaks the v5 API. Swap orders are sized in contracts, so the
// instrument's contract value is fetched once per instId.
type okx struct {
	*conn

	mu    sync.Mutex
	specs map[string]okxContract
}

type okxContract struct {
	value    decimal.Decimal
	valueCcy string
	lot      decimal.Decimal
}

var okxAuthErrors = map[string]bool{
	"50105": true, // passphrase incorrect
	"50111": true, // invalid OK-ACCESS-KEY
	"50113": true, // invalid sign
	"50119": true, // api key does not exist
}

func newOKX(c *conn) *okx {
	return &okx{conn: c, specs: make(map[string]okxContract)}
}

func (o *okx) baseURL() string       { return "https://www.okx.com" }
func (o *okx) supportsFutures() bool { return true }

// quoteSized is false; spot market orders send tgtCcy=base_ccy.
func (o *okx) quoteSized(placement) bool { return false }

func okxInstID(inst order.Instrument) string {
	return symbolpkg.OKX.ToExchange(inst.Symbol())
}

func okxTimestamp(c *conn) string {
	return c.now().UTC().Format("2006-01-02T15:04:05.000Z")
}

func (o *okx) call(ctx context.Context, op, method, path string, query url.Values, body any, private bool) (gjson.Result, error) {
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
		ts := okxTimestamp(o.conn)
		req.Header.Set("OK-ACCESS-KEY", o.creds.Key)
		req.Header.Set("OK-ACCESS-SIGN", prehashSign(o.creds.Secret, ts, method, path, query, payload))
		req.Header.Set("OK-ACCESS-TIMESTAMP", ts)
		req.Header.Set("OK-ACCESS-PASSPHRASE", o.creds.Passphrase)
	}
	resp, err := o.client.Do(ctx, req)
	if err != nil {
		return gjson.Result{}, errs.Remote(o.id, op, err)
	}
	doc := resp.JSON()
	code := doc.Get("code").String()
	if code == "0" {
		return doc.Get("data"), nil
	}
	msg := doc.Get("msg").String()
	// batch-style endpoints report the real failure per item
	if item := doc.Get("data.0"); item.Get("sCode").Exists() && item.Get("sCode").String() != "0" {
		code, msg = item.Get("sCode").String(), item.Get("sMsg").String()
	}
	if okxAuthErrors[code] || resp.Status == http.StatusUnauthorized {
		return gjson.Result{}, errs.Authentication(o.id, msg, nil)
	}
	if code == "" {
		code = strconv.Itoa(resp.Status)
		msg = string(resp.Body)
	}
	return gjson.Result{}, errs.RemoteCode(o.id, op, code, msg)
}

func (o *okx) last(ctx context.Context, inst order.Instrument) (decimal.Decimal, error) {
	data, err := o.call(ctx, "price", http.MethodGet, "/api/v5/market/ticker", url.Values{"instId": {okxInstID(inst)}}, nil, false)
	if err != nil {
		return decimal.Zero, err
	}
	return dec(data.Get("0.last").String()), nil
}

func (o *okx) balance(ctx context.Context) (exchange.BalanceSnapshot, error) {
	data, err := o.call(ctx, "balance", http.MethodGet, "/api/v5/account/balance", nil, nil, true)
	if err != nil {
		return exchange.BalanceSnapshot{}, err
	}
	acct := data.Get("0")
	snap := exchange.BalanceSnapshot{Currency: "USD", Total: dec(acct.Get("totalEq").String())}
	var sum decimal.Decimal
	for _, d := range acct.Get("details").Array() {
		qty := dec(d.Get("eq").String())
		if !qty.IsPositive() {
			continue
		}
		value := dec(d.Get("eqUsd").String())
		snap.Holdings = append(snap.Holdings, exchange.Holding{
			Symbol:   d.Get("ccy").String(),
			Quantity: qty,
			Value:    value,
		})
		sum = sum.Add(value)
	}
	if snap.Total.IsZero() {
		snap.Total = sum
	}
	return snap, nil
}

// free is the same for spot and swap under the unified trading account.
func (o *okx) free(ctx context.Context, asset string, _ bool) (decimal.Decimal, error) {
	data, err := o.call(ctx, "free", http.MethodGet, "/api/v5/account/balance", url.Values{"ccy": {asset}}, nil, true)
	if err != nil {
		return decimal.Zero, err
	}
	for _, d := range data.Get("0.details").Array() {
		if d.Get("ccy").String() == asset {
			return dec(d.Get("availBal").String()), nil
		}
	}
	return decimal.Zero, nil
}

func (o *okx) contract(ctx context.Context, instID string) (okxContract, error) {
	o.mu.Lock()
	spec, ok := o.specs[instID]
	o.mu.Unlock()
	if ok {
		return spec, nil
	}
	data, err := o.call(ctx, "instrument", http.MethodGet, "/api/v5/public/instruments", url.Values{
		"instType": {"SWAP"},
		"instId":   {instID},
	}, nil, false)
	if err != nil {
		return okxContract{}, err
	}
	item := data.Get("0")
	spec = okxContract{
		value:    dec(item.Get("ctVal").String()),
		valueCcy: item.Get("ctValCcy").String(),
		lot:      dec(item.Get("lotSz").String()),
	}
	if !spec.value.IsPositive() {
		return okxContract{}, errs.RemoteCode(o.id, "instrument", "", "no contract value for "+instID)
	}
	o.mu.Lock()
	o.specs[instID] = spec
	o.mu.Unlock()
	return spec, nil
}

// contracts converts a base amount into a lot-aligned contract count. For
// inverse swaps the contract value is in the quote currency, so price is used.
func (c okxContract) contracts(amount, price decimal.Decimal, base string) decimal.Decimal {
	notional := amount
	if c.valueCcy != "" && c.valueCcy != base {
		notional = amount.Mul(price)
	}
	n := notional.DivRound(c.value, 16)
	lot := c.lot
	if !lot.IsPositive() {
		lot = decimal.NewFromInt(1)
	}
	return n.Div(lot).Floor().Mul(lot)
}

func (o *okx) setLeverage(ctx context.Context, instID string, lev decimal.Decimal) error {
	_, err := o.call(ctx, "leverage", http.MethodPost, "/api/v5/account/set-leverage", nil, map[string]string{
		"instId":  instID,
		"lever":   lev.String(),
		"mgnMode": "cross",
	}, true)
	return err
}

func (o *okx) place(ctx context.Context, p placement) (exchange.OrderResult, error) {
	instID := okxInstID(p.inst)
	body := map[string]string{
		"instId":  instID,
		"side":    string(p.side),
		"clOrdId": p.clientID,
	}
	if p.market() {
		body["ordType"] = "market"
	} else {
		body["ordType"] = "limit"
		body["px"] = p.price.String()
	}
	if p.futures() {
		spec, err := o.contract(ctx, instID)
		if err != nil {
			return exchange.OrderResult{}, err
		}
		price := p.price
		if spec.valueCcy != p.inst.Base && (p.market() || !price.IsPositive()) {
			if price, err = o.last(ctx, p.inst); err != nil {
				return exchange.OrderResult{}, err
			}
		}
		sz := spec.contracts(p.amount, price, p.inst.Base)
		if !sz.IsPositive() {
			return exchange.OrderResult{}, errs.Validation("amount", "below one contract of %s %s", spec.value, spec.valueCcy)
		}
		if !p.close && p.leverage.IsPositive() {
			if err := o.setLeverage(ctx, instID, p.leverage); err != nil {
				return exchange.OrderResult{}, err
			}
		}
		body["tdMode"] = "cross"
		body["sz"] = sz.String()
		if p.close {
			body["reduceOnly"] = "true"
		}
	} else {
		body["tdMode"] = "cash"
		body["sz"] = p.amount.String()
		if p.market() {
			body["tgtCcy"] = "base_ccy"
		}
	}
	data, err := o.call(ctx, "order", http.MethodPost, "/api/v5/trade/order", nil, body, true)
	if err != nil {
		return exchange.OrderResult{}, err
	}
	item := data.Get("0")
	return exchange.OrderResult{
		OrderID:       item.Get("ordId").String(),
		ClientOrderID: item.Get("clOrdId").String(),
		Status:        "placed",
		Raw:           rawMap(item),
	}, nil
}

func (o *okx) cancel(ctx context.Context, req exchange.CancelRequest) error {
	_, err := o.call(ctx, "cancel", http.MethodPost, "/api/v5/trade/cancel-order", nil, map[string]string{
		"instId": okxInstID(req.Instrument),
		"ordId":  req.OrderID,
	}, true)
	return err
}
