package cryptorest

import (
	"context"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"poa/internal/errs"
	"poa/internal/gateway/exchange"
	"poa/internal/gateway/rest"
	"poa/internal/order"
	symbolpkg "poa/internal/pkg/symbol"
)

// upbit speaks the Upbit Open API. Requests carry an HS256 JWT whose
// query_hash covers the encoded parameters.
type upbit struct{ *conn }

var upbitAuthErrors = map[string]bool{
	"invalid_query_payload": true,
	"jwt_verification":      true,
	"expired_access_key":    true,
	"nonce_used":            true,
	"no_authorization_i_p":  true,
	"out_of_scope":          true,
}

func (u *upbit) baseURL() string       { return "https://api.upbit.com" }
func (u *upbit) supportsFutures() bool { return false }

// quoteSized: Upbit market buys are priced in KRW (ord_type=price).
func (u *upbit) quoteSized(p placement) bool { return p.market() && p.buy() }

// token signs params into a bearer token.
func (u *upbit) token(params url.Values) (string, error) {
	claims := jwt.MapClaims{
		"access_key": u.creds.Key,
		"nonce":      uuid.NewString(),
	}
	if len(params) > 0 {
		sum := sha512.Sum512([]byte(params.Encode()))
		claims["query_hash"] = hex.EncodeToString(sum[:])
		claims["query_hash_alg"] = "SHA512"
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(u.creds.Secret))
	if err != nil {
		return "", fmt.Errorf("sign upbit jwt: %w", err)
	}
	return "Bearer " + signed, nil
}

// call sends params as the query for GET/DELETE and as a JSON body otherwise.
func (u *upbit) call(ctx context.Context, op, method, path string, params url.Values, private bool) (gjson.Result, error) {
	req := rest.Request{Method: method, Path: path, Header: http.Header{}}
	if method == http.MethodGet || method == http.MethodDelete {
		req.Query = params
	} else if len(params) > 0 {
		body := make(map[string]string, len(params))
		for k := range params {
			body[k] = params.Get(k)
		}
		raw, err := json.Marshal(body)
		if err != nil {
			return gjson.Result{}, err
		}
		req.RawBody = raw
	}
	if private {
		tok, err := u.token(params)
		if err != nil {
			return gjson.Result{}, err
		}
		req.Header.Set("Authorization", tok)
	}
	resp, err := u.client.Do(ctx, req)
	if err != nil {
		return gjson.Result{}, errs.Remote(u.id, op, err)
	}
	doc := resp.JSON()
	if e := doc.Get("error"); e.Exists() {
		name := e.Get("name").String()
		msg := e.Get("message").String()
		if upbitAuthErrors[name] || resp.Status == http.StatusUnauthorized {
			return gjson.Result{}, errs.Authentication(u.id, msg, nil)
		}
		return gjson.Result{}, errs.RemoteCode(u.id, op, name, msg)
	}
	if resp.Status >= 300 {
		return gjson.Result{}, errs.RemoteCode(u.id, op, fmt.Sprint(resp.Status), string(resp.Body))
	}
	return doc, nil
}

func (u *upbit) market(inst order.Instrument) string {
	return symbolpkg.Upbit.ToExchange(inst.Base + "/" + inst.Quote)
}

func (u *upbit) tickers(ctx context.Context, markets []string) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(markets))
	if len(markets) == 0 {
		return out, nil
	}
	doc, err := u.call(ctx, "price", http.MethodGet, "/v1/ticker", url.Values{"markets": {strings.Join(markets, ",")}}, false)
	if err != nil {
		return nil, err
	}
	for _, t := range doc.Array() {
		out[t.Get("market").String()] = dec(t.Get("trade_price").String())
	}
	return out, nil
}

func (u *upbit) last(ctx context.Context, inst order.Instrument) (decimal.Decimal, error) {
	m := u.market(inst)
	prices, err := u.tickers(ctx, []string{m})
	if err != nil {
		return decimal.Zero, err
	}
	return prices[m], nil
}

type upbitAccount struct {
	Currency     string
	Balance      decimal.Decimal
	Locked       decimal.Decimal
	AvgBuyPrice  decimal.Decimal
	UnitCurrency string
}

func (u *upbit) accounts(ctx context.Context) ([]upbitAccount, error) {
	doc, err := u.call(ctx, "balance", http.MethodGet, "/v1/accounts", nil, true)
	if err != nil {
		return nil, err
	}
	var out []upbitAccount
	for _, a := range doc.Array() {
		out = append(out, upbitAccount{
			Currency:     a.Get("currency").String(),
			Balance:      dec(a.Get("balance").String()),
			Locked:       dec(a.Get("locked").String()),
			AvgBuyPrice:  dec(a.Get("avg_buy_price").String()),
			UnitCurrency: a.Get("unit_currency").String(),
		})
	}
	return out, nil
}

// balance values coins at the KRW last price and falls back to the average
// buy price for coins without a KRW market.
func (u *upbit) balance(ctx context.Context) (exchange.BalanceSnapshot, error) {
	accts, err := u.accounts(ctx)
	if err != nil {
		return exchange.BalanceSnapshot{}, err
	}
	var markets []string
	for _, a := range accts {
		if a.Currency != "KRW" {
			markets = append(markets, "KRW-"+a.Currency)
		}
	}
	prices, err := u.tickers(ctx, markets)
	if err != nil {
		u.log.Warnf("ticker lookup failed, using average buy price: %v", err)
		prices = map[string]decimal.Decimal{}
	}
	snap := exchange.BalanceSnapshot{Currency: "KRW"}
	for _, a := range accts {
		qty := a.Balance.Add(a.Locked)
		if !qty.IsPositive() {
			continue
		}
		h := exchange.Holding{Symbol: a.Currency, Quantity: qty}
		if a.Currency == "KRW" {
			h.Value = qty
		} else if px, ok := prices["KRW-"+a.Currency]; ok && px.IsPositive() {
			h.Value = qty.Mul(px)
		} else {
			h.Value = qty.Mul(a.AvgBuyPrice)
		}
		snap.Total = snap.Total.Add(h.Value)
		snap.Holdings = append(snap.Holdings, h)
	}
	return snap, nil
}

func (u *upbit) free(ctx context.Context, asset string, _ bool) (decimal.Decimal, error) {
	accts, err := u.accounts(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	for _, a := range accts {
		if a.Currency == asset {
			return a.Balance, nil
		}
	}
	return decimal.Zero, nil
}

func (u *upbit) place(ctx context.Context, p placement) (exchange.OrderResult, error) {
	params := url.Values{}
	params.Set("market", u.market(p.inst))
	params.Set("identifier", p.clientID)
	if p.buy() {
		params.Set("side", "bid")
	} else {
		params.Set("side", "ask")
	}
	switch {
	case !p.market():
		params.Set("ord_type", "limit")
		params.Set("volume", p.amount.String())
		params.Set("price", p.price.String())
	case p.buy():
		params.Set("ord_type", "price")
		params.Set("price", p.cost.Floor().String())
	default:
		params.Set("ord_type", "market")
		params.Set("volume", p.amount.String())
	}
	doc, err := u.call(ctx, "order", http.MethodPost, "/v1/orders", params, true)
	if err != nil {
		return exchange.OrderResult{}, err
	}
	return exchange.OrderResult{
		OrderID:       doc.Get("uuid").String(),
		ClientOrderID: doc.Get("identifier").String(),
		Status:        doc.Get("state").String(),
		Amount:        dec(doc.Get("volume").String()),
		Raw:           rawMap(doc),
	}, nil
}

func (u *upbit) cancel(ctx context.Context, req exchange.CancelRequest) error {
	_, err := u.call(ctx, "cancel", http.MethodDelete, "/v1/order", url.Values{"uuid": {req.OrderID}}, true)
	return err
}
