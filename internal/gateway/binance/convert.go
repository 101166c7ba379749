package binance

import (
	"strings"

	"github.com/shopspring/decimal"

	"poa/internal/gateway/exchange"
)

const (
	quoteAsset          = "USDT"
	futuresWalletSymbol = "USDT-FUTURES"
)

// stableAssets are valued 1:1 in USDT.
var stableAssets = map[string]bool{"USDT": true, "USDC": true, "FDUSD": true, "BUSD": true}

type assetBalance struct {
	Asset  string
	Free   string
	Locked string
}

// spotSnapshot values every non-zero balance in USDT. Assets without a USDT
// pair are listed with zero value.
func spotSnapshot(balances []assetBalance, prices map[string]decimal.Decimal) exchange.BalanceSnapshot {
	snap := exchange.BalanceSnapshot{Currency: quoteAsset, Total: decimal.Zero}
	for _, b := range balances {
		qty := parseDecimal(b.Free).Add(parseDecimal(b.Locked))
		if !qty.IsPositive() {
			continue
		}
		asset := strings.ToUpper(b.Asset)
		var value decimal.Decimal
		switch {
		case stableAssets[asset]:
			value = qty
		default:
			if p, ok := prices[asset+quoteAsset]; ok {
				value = qty.Mul(p)
			}
		}
		snap.Holdings = append(snap.Holdings, exchange.Holding{
			Symbol:   asset,
			Quantity: qty,
			Value:    value.Round(8),
		})
		snap.Total = snap.Total.Add(value)
	}
	snap.Total = snap.Total.Round(8)
	return snap
}

// costToAmount converts quote cost to base quantity, truncated to 8 places.
func costToAmount(cost, price decimal.Decimal) decimal.Decimal {
	if !price.IsPositive() {
		return decimal.Zero
	}
	return cost.Div(price).Truncate(8)
}

func parseDecimal(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
