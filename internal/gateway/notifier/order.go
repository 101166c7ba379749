package notifier

import (
	"fmt"
	"time"

	"poa/internal/gateway/exchange"
	"poa/internal/order"
)

// OrderPlaced renders a venue acknowledgement.
func OrderPlaced(o order.CanonicalOrder, res exchange.OrderResult, requestID string) StructuredMessage {
	lines := []string{
		fmt.Sprintf("%s %s %s", res.Venue, res.Symbol, sideLabel(o)),
		"类型: " + string(o.Kind()),
	}
	if !res.Amount.IsZero() {
		lines = append(lines, "数量: "+res.Amount.String())
	}
	if !res.Cost.IsZero() {
		lines = append(lines, "金额: "+res.Cost.String()+" "+o.Quote())
	}
	if !res.Price.IsZero() {
		lines = append(lines, "价格: "+res.Price.String())
	}
	if res.OrderID != "" {
		lines = append(lines, "订单号: "+res.OrderID)
	}
	return StructuredMessage{
		Icon:      "✅",
		Title:     "下单成功",
		Color:     colorSuccess,
		Sections:  []MessageSection{{Title: "订单", Lines: lines}},
		Footer:    "request " + requestID,
		Timestamp: time.Now(),
	}
}

// OrderFailed renders a rejected or failed order.
func OrderFailed(o order.CanonicalOrder, err error, requestID string) StructuredMessage {
	lines := []string{
		fmt.Sprintf("%s %s %s", o.Venue(), o.Symbol(), sideLabel(o)),
		"错误: " + err.Error(),
	}
	return StructuredMessage{
		Icon:      "❌",
		Title:     "下单失败",
		Color:     colorFailure,
		Sections:  []MessageSection{{Title: "订单", Lines: lines}},
		Footer:    "request " + requestID,
		Timestamp: time.Now(),
	}
}

func sideLabel(o order.CanonicalOrder) string {
	switch {
	case o.IsEntry():
		return "entry/" + string(o.Side())
	case o.IsClose():
		return "close/" + string(o.Side())
	}
	return string(o.Side())
}
