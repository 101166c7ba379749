package order

import (
	"github.com/shopspring/decimal"

	"poa/internal/venue"
)

type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

type Kind string

const (
	Market Kind = "market"
	Limit  Kind = "limit"
)

// Instrument identifies what is traded and where.
type Instrument struct {
	Venue venue.ID
	// Market is set for stock instruments only.
	Market       venue.Market
	Base         string
	Quote        string
	Settle       string
	Futures      bool
	CoinMargined bool
}

// Symbol renders BASE/QUOTE, or BASE/QUOTE:SETTLE for futures.
func (i Instrument) Symbol() string {
	if i.Base == "" || i.Quote == "" {
		return ""
	}
	s := i.Base + "/" + i.Quote
	if i.Futures && i.Settle != "" {
		s += ":" + i.Settle
	}
	return s
}

// CanonicalOrder is the fully derived order. All fields are read-only; the
// only way to obtain one is Normalize, and the sizing helpers return copies.
type CanonicalOrder struct {
	inst        Instrument
	brokerIndex int
	side        Side
	kind        Kind
	amount      Number
	cost        Number
	percent     Number
	price       Number
	leverage    Number
	stopPrice   Number
	profitPrice Number
	name        string

	crypto, stock, futures, spot bool
	entry, close                 bool
}

func (o CanonicalOrder) Instrument() Instrument { return o.inst }
func (o CanonicalOrder) Venue() venue.ID        { return o.inst.Venue }
func (o CanonicalOrder) Symbol() string         { return o.inst.Symbol() }
func (o CanonicalOrder) Base() string           { return o.inst.Base }
func (o CanonicalOrder) Quote() string          { return o.inst.Quote }
func (o CanonicalOrder) Side() Side             { return o.side }
func (o CanonicalOrder) Kind() Kind             { return o.kind }
func (o CanonicalOrder) Name() string           { return o.name }

// BrokerIndex is the brokerage sub-account index; zero for crypto orders.
func (o CanonicalOrder) BrokerIndex() int { return o.brokerIndex }

func (o CanonicalOrder) Amount() Number      { return o.amount }
func (o CanonicalOrder) Cost() Number        { return o.cost }
func (o CanonicalOrder) Percent() Number     { return o.percent }
func (o CanonicalOrder) Price() Number       { return o.price }
func (o CanonicalOrder) Leverage() Number    { return o.leverage }
func (o CanonicalOrder) StopPrice() Number   { return o.stopPrice }
func (o CanonicalOrder) ProfitPrice() Number { return o.profitPrice }

func (o CanonicalOrder) IsCrypto() bool       { return o.crypto }
func (o CanonicalOrder) IsStock() bool        { return o.stock }
func (o CanonicalOrder) IsFutures() bool      { return o.futures }
func (o CanonicalOrder) IsSpot() bool         { return o.spot }
func (o CanonicalOrder) IsEntry() bool        { return o.entry }
func (o CanonicalOrder) IsClose() bool        { return o.close }
func (o CanonicalOrder) IsBuy() bool          { return o.side == Buy }
func (o CanonicalOrder) IsSell() bool         { return o.side == Sell }
func (o CanonicalOrder) IsCoinMargined() bool { return o.inst.CoinMargined }

// WithAmount returns a copy sized by base quantity; cost and percent are cleared.
func (o CanonicalOrder) WithAmount(d decimal.Decimal) CanonicalOrder {
	o.amount = NumberOf(d)
	o.cost = Number{}
	o.percent = Number{}
	return o
}

// WithCost returns a copy sized by quote cost; amount and percent are cleared.
func (o CanonicalOrder) WithCost(d decimal.Decimal) CanonicalOrder {
	o.cost = NumberOf(d)
	o.amount = Number{}
	o.percent = Number{}
	return o
}
