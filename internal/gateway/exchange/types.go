package exchange

import (
	"time"

	"github.com/shopspring/decimal"

	"poa/internal/order"
	"poa/internal/venue"
)

// Holding is one position inside a balance snapshot. Value is in the snapshot currency
// unless the holding sits in an overseas sub-total, where it is in USD.
type Holding struct {
	Symbol   string          `json:"symbol" yaml:"symbol"`
	Name     string          `json:"name,omitempty" yaml:"name,omitempty"`
	Quantity decimal.Decimal `json:"quantity" yaml:"quantity"`
	Value    decimal.Decimal `json:"value" yaml:"value"`
}

// Overseas is the USD-denominated part of a brokerage account.
type Overseas struct {
	TotalUSD decimal.Decimal `json:"total_usd" yaml:"total_usd"`
	Holdings []Holding       `json:"holdings" yaml:"holdings"`
}

// BalanceSnapshot 单个交易所/子账户的资产快照。
type BalanceSnapshot struct {
	Venue    venue.ID        `json:"venue" yaml:"venue"`
	Currency string          `json:"currency" yaml:"currency"`
	Total    decimal.Decimal `json:"total" yaml:"total"`
	Holdings []Holding       `json:"holdings" yaml:"holdings"`

	// Domestic and Overseas are only filled for brokerage accounts. Total is then
	// the domestic total; the aggregator adds the converted overseas part.
	Domestic *decimal.Decimal `json:"domestic,omitempty" yaml:"domestic,omitempty"`
	Overseas *Overseas        `json:"overseas,omitempty" yaml:"overseas,omitempty"`

	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// Free is the spendable balance of one asset.
type Free struct {
	Asset  string
	Amount decimal.Decimal
}

// PriceQuote represents current price information.
type PriceQuote struct {
	Venue     venue.ID        `json:"venue"`
	Symbol    string          `json:"symbol"`
	Last      decimal.Decimal `json:"last"`
	Bid       decimal.Decimal `json:"bid,omitempty"`
	Ask       decimal.Decimal `json:"ask,omitempty"`
	Currency  string          `json:"currency,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// OrderResult is what the venue acknowledged for a placed order.
type OrderResult struct {
	Venue         venue.ID        `json:"venue"`
	Symbol        string          `json:"symbol"`
	OrderID       string          `json:"order_id"`
	ClientOrderID string          `json:"client_order_id,omitempty"`
	Side          order.Side      `json:"side"`
	Kind          order.Kind      `json:"type"`
	Amount        decimal.Decimal `json:"amount,omitempty"`
	Cost          decimal.Decimal `json:"cost,omitempty"`
	Price         decimal.Decimal `json:"price,omitempty"`
	Status        string          `json:"status,omitempty"`
	Raw           map[string]any  `json:"-"`
}

// CancelRequest identifies an open order to cancel.
type CancelRequest struct {
	OrderID    string
	Instrument order.Instrument
	// Side is required by venues that key open orders by side (BITHUMB).
	Side order.Side
}
