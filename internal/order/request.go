package order

import "strings"

// Side literals accepted on inbound requests.
const (
	SideBuy       = "buy"
	SideSell      = "sell"
	SideEntryBuy  = "entry/buy"
	SideEntrySell = "entry/sell"
	SideCloseBuy  = "close/buy"
	SideCloseSell = "close/sell"
)

// GenericOrderRequest is the venue-agnostic order shape posted by webhook senders.
// Field names follow the alert templates already in use.
type GenericOrderRequest struct {
	Exchange           string `json:"exchange"`
	Base               string `json:"base"`
	Quote              string `json:"quote"`
	Side               string `json:"side"`
	Type               string `json:"type"`
	Amount             Number `json:"amount"`
	Cost               Number `json:"cost"`
	Percent            Number `json:"percent"`
	Price              Number `json:"price"`
	Leverage           Number `json:"leverage"`
	StopPrice          Number `json:"stop_price"`
	ProfitPrice        Number `json:"profit_price"`
	BrokerAccountIndex Number `json:"kis_number"`
	OrderName          string `json:"order_name"`
	Password           string `json:"password"`
}

// cleaned returns a copy with every "NaN"/"" string field cleared and
// identifiers trimmed and upper-cased.
func (r GenericOrderRequest) cleaned() GenericOrderRequest {
	clean := func(s string) string {
		s = strings.TrimSpace(s)
		if isAbsent(s) {
			return ""
		}
		return s
	}
	out := r
	out.Exchange = strings.ToUpper(clean(r.Exchange))
	out.Base = strings.ToUpper(clean(r.Base))
	out.Quote = strings.ToUpper(clean(r.Quote))
	out.Side = strings.ToLower(clean(r.Side))
	out.Type = strings.ToLower(clean(r.Type))
	out.OrderName = clean(r.OrderName)
	out.Password = clean(r.Password)
	return out
}
