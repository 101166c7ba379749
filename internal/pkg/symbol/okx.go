package symbol

import "strings"

const okxSwapSuffix = "-SWAP"

// OKXConverter renders BTC/USDT as BTC-USDT and BTC/USDT:USDT as BTC-USDT-SWAP.
type OKXConverter struct{}

func (OKXConverter) ToExchange(internal string) string {
	s := Parse(internal)
	if s.Base == "" || s.Quote == "" {
		return ""
	}
	id := s.Base + "-" + s.Quote
	if s.IsDerivative() {
		id += okxSwapSuffix
	}
	return id
}

func (OKXConverter) FromExchange(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	swap := strings.HasSuffix(s, okxSwapSuffix)
	s = strings.TrimSuffix(s, okxSwapSuffix)
	parts := strings.SplitN(s, "-", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return ""
	}
	sym := Symbol{Base: parts[0], Quote: parts[1]}
	if swap {
		sym.Settle = sym.Quote
		if sym.Quote == "USD" {
			sym.Settle = sym.Base
		}
	}
	return sym.Unified()
}

func (OKXConverter) Format() Format { return FormatOKX }

var OKX = OKXConverter{}
