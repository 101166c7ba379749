package order

import (
	"crypto/subtle"
	"strings"

	"github.com/shopspring/decimal"

	"poa/internal/errs"
	"poa/internal/venue"
)

// DefaultBrokerIndex is used for stock orders that do not name a sub-account.
const DefaultBrokerIndex = 1

var hundred = decimal.NewFromInt(100)

// Normalizer checks the operator secret and then canonicalizes the request.
type Normalizer struct {
	secret string
}

func NewNormalizer(secret string) *Normalizer {
	return &Normalizer{secret: secret}
}

// Normalize 校验口令后派生规范订单。口令不匹配时不会触碰任何交易所。
func (n *Normalizer) Normalize(req GenericOrderRequest) (CanonicalOrder, error) {
	req = req.cleaned()
	if !n.checkSecret(req.Password) {
		return CanonicalOrder{}, errs.Authentication("", "password mismatch", nil)
	}
	return canonicalize(req)
}

// Authorized reports whether got matches the operator secret. An empty
// configured secret rejects everything.
func (n *Normalizer) Authorized(got string) bool {
	return n.checkSecret(strings.TrimSpace(got))
}

func (n *Normalizer) checkSecret(got string) bool {
	if n == nil || n.secret == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(n.secret)) == 1
}

// Canonicalize derives the canonical order without any secret check.
// It is a pure function of req.
func Canonicalize(req GenericOrderRequest) (CanonicalOrder, error) {
	return canonicalize(req.cleaned())
}

func canonicalize(req GenericOrderRequest) (CanonicalOrder, error) {
	var out CanonicalOrder
	if req.Exchange == "" {
		return out, errs.Validation("exchange", "required")
	}
	if req.Base == "" {
		return out, errs.Validation("base", "required")
	}
	if req.Quote == "" {
		return out, errs.Validation("quote", "required")
	}

	side, entry, closing, err := parseSide(req.Side)
	if err != nil {
		return out, err
	}
	out.side, out.entry, out.close = side, entry, closing

	if err := resolveInstrument(&out, req); err != nil {
		return out, err
	}

	switch Kind(req.Type) {
	case "", Market:
		out.kind = Market
	case Limit:
		out.kind = Limit
		if !req.Price.IsSet() {
			return out, errs.Validation("price", "required for limit orders")
		}
	default:
		return out, errs.Validation("type", "unknown order type %q", req.Type)
	}

	sizing := []struct {
		field string
		n     Number
	}{{"amount", req.Amount}, {"cost", req.Cost}, {"percent", req.Percent}}
	set := 0
	for _, s := range sizing {
		if !s.n.IsSet() {
			continue
		}
		set++
		if !s.n.Decimal().IsPositive() {
			return out, errs.Validation(s.field, "must be positive")
		}
	}
	switch set {
	case 0:
		return out, errs.Validation("amount", "one of amount, cost, percent is required")
	case 1:
	default:
		return out, errs.Validation("amount", "only one of amount, cost, percent may be set")
	}
	if req.Percent.IsSet() && req.Percent.Decimal().GreaterThan(hundred) {
		return out, errs.Validation("percent", "must not exceed 100")
	}

	out.amount = req.Amount
	out.cost = req.Cost
	out.percent = req.Percent
	out.price = req.Price
	out.leverage = req.Leverage
	out.stopPrice = req.StopPrice
	out.profitPrice = req.ProfitPrice
	out.name = req.OrderName
	return out, nil
}

func parseSide(raw string) (side Side, entry, closing bool, err error) {
	s := raw
	switch {
	case strings.HasPrefix(s, "entry/"):
		entry = true
		s = strings.TrimPrefix(s, "entry/")
	case strings.HasPrefix(s, "close/"):
		closing = true
		s = strings.TrimPrefix(s, "close/")
	}
	switch Side(s) {
	case Buy, Sell:
		return Side(s), entry, closing, nil
	case "":
		return "", false, false, errs.Validation("side", "required")
	}
	return "", false, false, errs.Validation("side", "unknown side %q", raw)
}

func resolveInstrument(out *CanonicalOrder, req GenericOrderRequest) error {
	if mk, ok := venue.ParseMarket(req.Exchange); ok {
		idx := DefaultBrokerIndex
		if req.BrokerAccountIndex.IsSet() {
			d := req.BrokerAccountIndex.Decimal()
			if !d.IsInteger() {
				return errs.Validation("kis_number", "must be an integer")
			}
			idx = int(d.IntPart())
		}
		if idx < 1 || idx > venue.MaxBrokerIndex {
			return errs.Validation("kis_number", "must be within 1..%d", venue.MaxBrokerIndex)
		}
		out.stock = true
		out.brokerIndex = idx
		out.inst = Instrument{
			Venue:  venue.Broker(idx),
			Market: mk,
			Base:   req.Base,
			Quote:  req.Quote,
		}
		return nil
	}

	id, err := venue.Parse(req.Exchange)
	if err != nil || !id.IsCrypto() {
		return errs.Validation("exchange", "unknown venue %q", req.Exchange)
	}
	out.crypto = true

	quote, futures := splitFuturesQuote(req.Quote)
	if quote == "" {
		return errs.Validation("quote", "empty after removing futures suffix from %q", req.Quote)
	}
	inst := Instrument{Venue: id, Base: req.Base, Quote: quote, Futures: futures}
	if futures {
		out.futures = true
		inst.Settle = quote
		if quote == "USD" {
			inst.Settle = req.Base
			inst.CoinMargined = true
		}
	} else {
		out.spot = true
	}
	out.inst = inst
	return nil
}

// splitFuturesQuote strips a ".P" or "PERP" suffix from a crypto quote.
func splitFuturesQuote(q string) (string, bool) {
	for _, suffix := range venue.FuturesSuffixes {
		if strings.HasSuffix(q, suffix) {
			return strings.TrimSuffix(q, suffix), true
		}
	}
	return q, false
}

// ParseInstrument resolves only the venue and instrument of req. Price
// lookups use it; sizing and side are not required.
func ParseInstrument(req GenericOrderRequest) (Instrument, error) {
	req = req.cleaned()
	if req.Exchange == "" {
		return Instrument{}, errs.Validation("exchange", "required")
	}
	if req.Base == "" {
		return Instrument{}, errs.Validation("base", "required")
	}
	if req.Quote == "" {
		return Instrument{}, errs.Validation("quote", "required")
	}
	var out CanonicalOrder
	if err := resolveInstrument(&out, req); err != nil {
		return Instrument{}, err
	}
	return out.inst, nil
}
