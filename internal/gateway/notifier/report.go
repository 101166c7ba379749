package notifier

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"poa/internal/assets"
	"poa/internal/gateway/exchange"
)

const (
	colorReport  = 0x4A90E2
	colorSuccess = 0x2ECC71
	colorFailure = 0xE74C3C
)

// AssetReport renders the aggregated report: crypto venues first, then
// brokerage accounts with their domestic and overseas parts.
func AssetReport(rep assets.Report) StructuredMessage {
	msg := StructuredMessage{
		Icon:      "💰",
		Title:     "POA 资产现况",
		Color:     colorReport,
		Timestamp: rep.GeneratedAt,
	}
	var crypto, broker []string
	for _, e := range rep.Entries {
		if e.Venue.IsBroker() {
			broker = append(broker, brokerLines(e)...)
			continue
		}
		crypto = append(crypto, cryptoLines(e)...)
	}
	if len(crypto) > 0 {
		msg.Sections = append(msg.Sections, MessageSection{Title: "🪙 加密货币交易所", Lines: crypto})
	}
	if len(broker) > 0 {
		msg.Sections = append(msg.Sections, MessageSection{Title: "📈 证券账户", Lines: broker})
	}
	if len(rep.Failures) > 0 {
		lines := make([]string, 0, len(rep.Failures))
		for _, f := range rep.Failures {
			lines = append(lines, fmt.Sprintf("%s: %s", f.Venue, f.Error))
		}
		msg.Sections = append(msg.Sections, MessageSection{Title: "⚠️ 查询失败", Lines: lines})
	}
	msg.Description = totalsLine(rep.Totals)
	if rep.Rate != nil {
		rate := "USD/KRW " + Money(rep.Rate.Value, "KRW2")
		if rep.Rate.IsFallback {
			rate += " (估算)"
		}
		msg.Footer = rate
	}
	if rep.Empty() && len(rep.Failures) == 0 {
		msg.Description = "没有查询到资产"
	}
	return msg
}

func cryptoLines(e assets.Entry) []string {
	lines := []string{fmt.Sprintf("%s | 总资产 %s %s", e.Venue, Money(e.Total, e.Currency), e.Currency)}
	for _, h := range e.Holdings {
		if isCash(h.Symbol) {
			continue
		}
		lines = append(lines, fmt.Sprintf("  • %s: %s (%s)", h.Symbol, h.Quantity.String(), Money(h.Value, e.Currency)))
	}
	return lines
}

func brokerLines(e assets.Entry) []string {
	lines := []string{fmt.Sprintf("%s | 总 %s KRW", e.Venue, Money(e.Total, "KRW"))}
	if e.Domestic != nil && len(e.Domestic.Holdings) > 0 {
		lines = append(lines, fmt.Sprintf("  🇰🇷 国内: %s KRW", Money(e.Domestic.Total, "KRW")))
		lines = append(lines, holdingLines(e.Domestic.Holdings, "KRW")...)
	}
	if e.Overseas != nil && len(e.Overseas.Holdings) > 0 {
		line := fmt.Sprintf("  🇺🇸 海外: $%s (约 %s KRW, 汇率 %s", Money(e.Overseas.Total, "USD"),
			Money(e.Overseas.TotalKRW, "KRW"), Money(e.Overseas.Rate, "KRW2"))
		if e.Overseas.RateIsEst {
			line += " 估算"
		}
		lines = append(lines, line+")")
		lines = append(lines, holdingLines(e.Overseas.Holdings, "USD")...)
	}
	return lines
}

func holdingLines(hs []exchange.Holding, ccy string) []string {
	out := make([]string, 0, len(hs))
	for _, h := range hs {
		name := h.Name
		if name == "" {
			name = h.Symbol
		}
		out = append(out, fmt.Sprintf("    • %s: %s (%s股)", name, Money(h.Value, ccy), h.Quantity.String()))
	}
	return out
}

func totalsLine(totals map[string]decimal.Decimal) string {
	if len(totals) == 0 {
		return ""
	}
	keys := make([]string, 0, len(totals))
	for k := range totals {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, Money(totals[k], k)+" "+k)
	}
	return "合计: " + strings.Join(parts, " / ")
}

func isCash(sym string) bool {
	switch sym {
	case "KRW", "USDT", "USD":
		return true
	}
	return false
}

// Money formats d with thousands separators: no decimals for KRW, two
// otherwise. "KRW2" forces two decimals for rates.
func Money(d decimal.Decimal, ccy string) string {
	places := int32(2)
	if ccy == "KRW" {
		places = 0
	}
	s := d.StringFixed(places)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := b.String() + frac
	if neg {
		out = "-" + out
	}
	return out
}
