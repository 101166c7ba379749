package kis

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"poa/internal/errs"
	"poa/internal/gateway/exchange"
	"poa/internal/order"
	"poa/internal/venue"
)

// orderCodes are the overseas exchange codes used when placing orders.
var orderCodes = map[venue.Market]string{
	venue.NASDAQ: "NASD",
	venue.NYSE:   "NYSE",
	venue.AMEX:   "AMEX",
}

// queryCodes are the overseas exchange codes used for quotes.
var queryCodes = map[venue.Market]string{
	venue.NASDAQ: "NAS",
	venue.NYSE:   "NYS",
	venue.AMEX:   "AMS",
}

const (
	domesticLimit  = "00"
	domesticMarket = "01"
	overseasLimit  = "00"
)

func (a *Adapter) PlaceOrder(ctx context.Context, o order.CanonicalOrder) (exchange.OrderResult, error) {
	inst := o.Instrument()
	if !o.IsStock() || inst.Market == "" {
		return exchange.OrderResult{}, errs.Validation("exchange", "%s only routes stock orders", a.Name())
	}
	qty, err := a.quantity(ctx, o)
	if err != nil {
		return exchange.OrderResult{}, err
	}
	if inst.Market.Domestic() {
		return a.placeDomestic(ctx, o, qty)
	}
	return a.placeOverseas(ctx, o, qty)
}

// quantity resolves the share count. Cost sizing is converted through the
// current price; fractions are floored.
func (a *Adapter) quantity(ctx context.Context, o order.CanonicalOrder) (decimal.Decimal, error) {
	var qty decimal.Decimal
	switch {
	case o.Amount().IsSet():
		qty = o.Amount().Decimal()
	case o.Cost().IsSet():
		q, err := a.FetchPrice(ctx, o.Instrument())
		if err != nil {
			return decimal.Zero, err
		}
		if !q.Last.IsPositive() {
			return decimal.Zero, errs.RemoteCode(a.Name(), "price", "", "no usable price for cost sizing")
		}
		qty = o.Cost().Decimal().Div(q.Last)
	default:
		return decimal.Zero, errs.Validation("amount", "stock orders need amount or cost")
	}
	qty = qty.Floor()
	if qty.LessThan(decimal.NewFromInt(1)) {
		return decimal.Zero, errs.Validation("amount", "less than one share")
	}
	return qty, nil
}

func (a *Adapter) placeDomestic(ctx context.Context, o order.CanonicalOrder, qty decimal.Decimal) (exchange.OrderResult, error) {
	tr := trDomesticBuy
	if o.IsSell() {
		tr = trDomesticSell
	}
	dvsn, price := domesticMarket, "0"
	if o.Kind() == order.Limit {
		dvsn = domesticLimit
		price = o.Price().Decimal().Floor().String()
	}
	body := map[string]string{
		"CANO":         a.cfg.AccountNumber,
		"ACNT_PRDT_CD": a.cfg.AccountCode,
		"PDNO":         o.Base(),
		"ORD_DVSN":     dvsn,
		"ORD_QTY":      qty.String(),
		"ORD_UNPR":     price,
	}
	res, err := a.do(ctx, call{op: "order", method: http.MethodPost, path: pathDomesticOrder, trID: tr, body: body})
	if err != nil {
		return exchange.OrderResult{}, err
	}
	out := a.result(o, qty, decimalFromString(price))
	out.OrderID = res.Get("output.ODNO").String()
	out.Status = strings.TrimSpace(res.Get("msg1").String())
	return out, nil
}

// placeOverseas always sends a limit order. Market orders are priced
// TickOffset ticks through the current quote so they fill like market orders.
func (a *Adapter) placeOverseas(ctx context.Context, o order.CanonicalOrder, qty decimal.Decimal) (exchange.OrderResult, error) {
	code, ok := orderCodes[o.Instrument().Market]
	if !ok {
		return exchange.OrderResult{}, errs.Validation("exchange", "unsupported market %s", o.Instrument().Market)
	}
	var price decimal.Decimal
	if o.Kind() == order.Limit {
		price = o.Price().Decimal().Round(2)
	} else {
		q, err := a.FetchPrice(ctx, o.Instrument())
		if err != nil {
			return exchange.OrderResult{}, err
		}
		price = crossingPrice(q.Last, a.cfg.MinTick, a.cfg.TickOffset, o.IsBuy())
	}
	tr := trOverseasBuy
	if o.IsSell() {
		tr = trOverseasSell
	}
	body := map[string]string{
		"CANO":            a.cfg.AccountNumber,
		"ACNT_PRDT_CD":    a.cfg.AccountCode,
		"OVRS_EXCG_CD":    code,
		"PDNO":            o.Base(),
		"ORD_QTY":         qty.String(),
		"OVRS_ORD_UNPR":   price.StringFixed(2),
		"ORD_SVR_DVSN_CD": "0",
		"ORD_DVSN":        overseasLimit,
	}
	res, err := a.do(ctx, call{op: "order", method: http.MethodPost, path: pathOverseasOrder, trID: tr, body: body})
	if err != nil {
		return exchange.OrderResult{}, err
	}
	out := a.result(o, qty, price)
	out.Kind = order.Limit
	out.OrderID = res.Get("output.ODNO").String()
	out.Status = strings.TrimSpace(res.Get("msg1").String())
	return out, nil
}

// crossingPrice is current ± offset*tick, floored at 1.00 and rounded to cents.
func crossingPrice(current, tick decimal.Decimal, offset int64, buy bool) decimal.Decimal {
	delta := tick.Mul(decimal.NewFromInt(offset))
	p := current.Sub(delta)
	if buy {
		p = current.Add(delta)
	}
	if p.LessThan(decimal.NewFromInt(1)) {
		p = decimal.NewFromInt(1)
	}
	return p.Round(2)
}

func (a *Adapter) result(o order.CanonicalOrder, qty, price decimal.Decimal) exchange.OrderResult {
	return exchange.OrderResult{
		Venue:         a.Name(),
		Symbol:        o.Base(),
		ClientOrderID: uuid.NewString(),
		Side:          o.Side(),
		Kind:          o.Kind(),
		Amount:        qty,
		Price:         price,
	}
}

func (a *Adapter) CancelOrder(ctx context.Context, req exchange.CancelRequest) error {
	if strings.TrimSpace(req.OrderID) == "" {
		return errs.Validation("order_id", "required")
	}
	mk := req.Instrument.Market
	if mk == "" || mk.Domestic() {
		body := map[string]string{
			"CANO":               a.cfg.AccountNumber,
			"ACNT_PRDT_CD":       a.cfg.AccountCode,
			"KRX_FWDG_ORD_ORGNO": "",
			"ORGN_ODNO":          req.OrderID,
			"ORD_DVSN":           domesticLimit,
			"RVSE_CNCL_DVSN_CD":  "02",
			"ORD_QTY":            "0",
			"ORD_UNPR":           "0",
			"QTY_ALL_ORD_YN":     "Y",
		}
		_, err := a.do(ctx, call{op: "cancel", method: http.MethodPost, path: pathDomesticCancel, trID: trDomesticCancel, body: body})
		return err
	}
	code, ok := orderCodes[mk]
	if !ok {
		return errs.Validation("exchange", "unsupported market %s", mk)
	}
	body := map[string]string{
		"CANO":              a.cfg.AccountNumber,
		"ACNT_PRDT_CD":      a.cfg.AccountCode,
		"OVRS_EXCG_CD":      code,
		"PDNO":              req.Instrument.Base,
		"ORGN_ODNO":         req.OrderID,
		"RVSE_CNCL_DVSN_CD": "02",
		"ORD_QTY":           "0",
		"OVRS_ORD_UNPR":     "0",
		"ORD_SVR_DVSN_CD":   "0",
	}
	_, err := a.do(ctx, call{op: "cancel", method: http.MethodPost, path: pathOverseasCancel, trID: trOverseasCancel, body: body})
	return err
}

func (a *Adapter) FetchPrice(ctx context.Context, inst order.Instrument) (exchange.PriceQuote, error) {
	ticker := strings.TrimSpace(inst.Base)
	if ticker == "" {
		return exchange.PriceQuote{}, errs.Validation("base", "ticker required")
	}
	quote := exchange.PriceQuote{Venue: a.Name(), Symbol: ticker, UpdatedAt: time.Now()}
	if inst.Market == "" || inst.Market.Domestic() {
		q := url.Values{
			"FID_COND_MRKT_DIV_CODE": {"J"},
			"FID_INPUT_ISCD":         {ticker},
		}
		res, err := a.do(ctx, call{op: "price", method: http.MethodGet, path: pathDomesticPrice, trID: trDomesticPrice, query: q})
		if err != nil {
			return exchange.PriceQuote{}, err
		}
		quote.Last = decimalOf(res.Get("output.stck_prpr"))
		quote.Currency = "KRW"
	} else {
		code, ok := queryCodes[inst.Market]
		if !ok {
			return exchange.PriceQuote{}, errs.Validation("exchange", "unsupported market %s", inst.Market)
		}
		q := url.Values{
			"AUTH": {""},
			"EXCD": {code},
			"SYMB": {ticker},
		}
		res, err := a.do(ctx, call{op: "price", method: http.MethodGet, path: pathOverseasPrice, trID: trOverseasPrice, query: q})
		if err != nil {
			return exchange.PriceQuote{}, err
		}
		quote.Last = decimalOf(res.Get("output.last"))
		quote.Currency = "USD"
	}
	if !quote.Last.IsPositive() {
		return exchange.PriceQuote{}, errs.RemoteCode(a.Name(), "price", "", "empty quote for "+ticker)
	}
	return quote, nil
}

func decimalFromString(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
