// Package exchange defines the adapter contract every venue implements.
// The execution service and asset aggregator only talk to venues through it,
// so crypto exchanges and brokerage sub-accounts are interchangeable.
package exchange

import (
	"context"

	"poa/internal/order"
	"poa/internal/venue"
)

// Adapter is one authenticated session against a venue or brokerage sub-account.
type Adapter interface {
	Name() venue.ID

	FetchBalance(ctx context.Context) (BalanceSnapshot, error)

	PlaceOrder(ctx context.Context, o order.CanonicalOrder) (OrderResult, error)

	CancelOrder(ctx context.Context, req CancelRequest) error

	FetchPrice(ctx context.Context, inst order.Instrument) (PriceQuote, error)
}

// FreeBalancer is implemented by adapters that can report the spendable
// balance of a single asset. Percent sizing depends on it.
type FreeBalancer interface {
	FetchFree(ctx context.Context, asset string, futures bool) (Free, error)
}
