package execution

import (
	"context"

	"github.com/shopspring/decimal"

	"poa/internal/errs"
	"poa/internal/gateway/exchange"
	"poa/internal/order"
)

var hundred = decimal.NewFromInt(100)

// resolvePercent turns a percent-sized order into cost or amount sizing.
//
// Spot and stock buys spend percent of the free quote balance; sells sell
// percent of the free base holding. Futures orders, entry or close, commit
// percent of the free settle-asset margin times leverage. Coin-margined
// margin is in the base coin and is converted to quote at the last price.
func resolvePercent(ctx context.Context, a exchange.Adapter, o order.CanonicalOrder) (order.CanonicalOrder, error) {
	fb, ok := a.(exchange.FreeBalancer)
	if !ok {
		return o, errs.Validation("percent", "%s cannot size orders by percent", a.Name())
	}
	pct := o.Percent().Decimal().Div(hundred)
	inst := o.Instrument()

	switch {
	case o.IsFutures():
		free, err := fb.FetchFree(ctx, inst.Settle, true)
		if err != nil {
			return o, err
		}
		budget := free.Amount.Mul(pct)
		if lev := o.Leverage(); lev.IsSet() && lev.Decimal().GreaterThan(decimal.NewFromInt(1)) {
			budget = budget.Mul(lev.Decimal())
		}
		if o.IsCoinMargined() {
			q, err := a.FetchPrice(ctx, inst)
			if err != nil {
				return o, err
			}
			budget = budget.Mul(q.Last)
		}
		return sized(o, budget, true)

	case o.IsBuy():
		free, err := fb.FetchFree(ctx, inst.Quote, false)
		if err != nil {
			return o, err
		}
		return sized(o, free.Amount.Mul(pct), true)

	default:
		free, err := fb.FetchFree(ctx, inst.Base, false)
		if err != nil {
			return o, err
		}
		return sized(o, free.Amount.Mul(pct), false)
	}
}

func sized(o order.CanonicalOrder, v decimal.Decimal, cost bool) (order.CanonicalOrder, error) {
	if !v.IsPositive() {
		return o, errs.Validation("percent", "%s%% of the free balance is zero", o.Percent())
	}
	if cost {
		return o.WithCost(v), nil
	}
	return o.WithAmount(v), nil
}
