package cryptorest

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"poa/internal/errs"
	"poa/internal/gateway/exchange"
	"poa/internal/gateway/rest"
	"poa/internal/order"
)

// bithumb speaks the classic Bithumb API: form bodies signed with
// HMAC-SHA512 over endpoint, body and nonce.
type bithumb struct{ *conn }

const bithumbOK = "0000"

// 5100 bad request, 5200 not member, 5300 invalid apikey, 5302 method not allowed.
var bithumbAuthErrors = map[string]bool{"5300": true, "5302": true, "5200": true}

func (b *bithumb) baseURL() string       { return "https://api.bithumb.com" }
func (b *bithumb) supportsFutures() bool { return false }

// quoteSized is false: market_buy takes units, so cost orders are converted.
func (b *bithumb) quoteSized(placement) bool { return false }

func bithumbSign(secret, endpoint, encoded, nonce string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(endpoint + "\x00" + encoded + "\x00" + nonce))
	return base64.StdEncoding.EncodeToString([]byte(hex.EncodeToString(mac.Sum(nil))))
}

func (b *bithumb) private(ctx context.Context, op, endpoint string, params url.Values) (gjson.Result, error) {
	if params == nil {
		params = url.Values{}
	}
	params.Set("endpoint", endpoint)
	encoded := params.Encode()
	nonce := strconv.FormatInt(b.now().UnixMilli(), 10)
	header := http.Header{}
	header.Set("Api-Key", b.creds.Key)
	header.Set("Api-Sign", bithumbSign(b.creds.Secret, endpoint, encoded, nonce))
	header.Set("Api-Nonce", nonce)
	header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := b.client.Do(ctx, rest.Request{
		Method:  http.MethodPost,
		Path:    endpoint,
		Header:  header,
		RawBody: []byte(encoded),
	})
	if err != nil {
		return gjson.Result{}, errs.Remote(b.id, op, err)
	}
	return b.envelope(op, resp)
}

func (b *bithumb) envelope(op string, resp rest.Response) (gjson.Result, error) {
	doc := resp.JSON()
	status := doc.Get("status").String()
	if status == bithumbOK {
		return doc, nil
	}
	msg := doc.Get("message").String()
	if bithumbAuthErrors[status] {
		return gjson.Result{}, errs.Authentication(b.id, msg, nil)
	}
	if status == "" {
		status = strconv.Itoa(resp.Status)
	}
	return gjson.Result{}, errs.RemoteCode(b.id, op, status, msg)
}

func (b *bithumb) last(ctx context.Context, inst order.Instrument) (decimal.Decimal, error) {
	resp, err := b.client.Do(ctx, rest.Request{Path: "/public/ticker/" + inst.Base + "_" + inst.Quote})
	if err != nil {
		return decimal.Zero, errs.Remote(b.id, "price", err)
	}
	doc, err := b.envelope("price", resp)
	if err != nil {
		return decimal.Zero, err
	}
	return dec(doc.Get("data.closing_price").String()), nil
}

// balance reads total_<coin> and values it at xcoin_last_<coin>.
func (b *bithumb) balance(ctx context.Context) (exchange.BalanceSnapshot, error) {
	doc, err := b.private(ctx, "balance", "/info/balance", url.Values{"currency": {"ALL"}})
	if err != nil {
		return exchange.BalanceSnapshot{}, err
	}
	data := doc.Get("data")
	snap := exchange.BalanceSnapshot{Currency: "KRW"}
	krw := dec(data.Get("total_krw").String())
	if krw.IsPositive() {
		snap.Holdings = append(snap.Holdings, exchange.Holding{Symbol: "KRW", Quantity: krw, Value: krw})
		snap.Total = krw
	}
	data.ForEach(func(k, v gjson.Result) bool {
		key := k.String()
		if !strings.HasPrefix(key, "total_") || key == "total_krw" {
			return true
		}
		coin := strings.TrimPrefix(key, "total_")
		qty := dec(v.String())
		if !qty.IsPositive() {
			return true
		}
		value := qty.Mul(dec(data.Get("xcoin_last_" + coin).String()))
		snap.Holdings = append(snap.Holdings, exchange.Holding{
			Symbol:   strings.ToUpper(coin),
			Quantity: qty,
			Value:    value,
		})
		snap.Total = snap.Total.Add(value)
		return true
	})
	return snap, nil
}

func (b *bithumb) free(ctx context.Context, asset string, _ bool) (decimal.Decimal, error) {
	doc, err := b.private(ctx, "free", "/info/balance", url.Values{"currency": {asset}})
	if err != nil {
		return decimal.Zero, err
	}
	return dec(doc.Get("data.available_" + strings.ToLower(asset)).String()), nil
}

// units are truncated to Bithumb's four decimal places.
func bithumbUnits(d decimal.Decimal) string {
	return d.Truncate(4).String()
}

func (b *bithumb) place(ctx context.Context, p placement) (exchange.OrderResult, error) {
	units := p.amount.Truncate(4)
	if !units.IsPositive() {
		return exchange.OrderResult{}, errs.Validation("amount", "below the 0.0001 unit step")
	}
	params := url.Values{}
	params.Set("order_currency", p.inst.Base)
	params.Set("payment_currency", p.inst.Quote)
	params.Set("units", bithumbUnits(units))
	endpoint := "/trade/place"
	switch {
	case !p.market():
		params.Set("price", p.price.String())
		params.Set("type", bithumbType(p.side))
	case p.buy():
		endpoint = "/trade/market_buy"
	default:
		endpoint = "/trade/market_sell"
	}
	doc, err := b.private(ctx, "order", endpoint, params)
	if err != nil {
		return exchange.OrderResult{}, err
	}
	return exchange.OrderResult{
		OrderID: doc.Get("order_id").String(),
		Status:  "placed",
		Amount:  units,
		Raw:     rawMap(doc),
	}, nil
}

func bithumbType(s order.Side) string {
	if s == order.Buy {
		return "bid"
	}
	return "ask"
}

func (b *bithumb) cancel(ctx context.Context, req exchange.CancelRequest) error {
	if req.Side == "" {
		return errs.Validation("side", "required to cancel on BITHUMB")
	}
	_, err := b.private(ctx, "cancel", "/trade/cancel", url.Values{
		"order_id":         {req.OrderID},
		"type":             {bithumbType(req.Side)},
		"order_currency":   {req.Instrument.Base},
		"payment_currency": {req.Instrument.Quote},
	})
	return err
}
