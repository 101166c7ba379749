package symbol

import (
	"strings"
)

type Format string

const (
	FormatInternal Format = "internal"
	FormatBinance  Format = "binance"
	FormatUpbit    Format = "upbit"
	FormatBithumb  Format = "bithumb"
	FormatOKX      Format = "okx"
)

type Converter interface {
	ToExchange(internal string) string

	FromExchange(raw string) string

	Format() Format
}

// Symbol is a parsed BASE/QUOTE[:SETTLE] pair.
type Symbol struct {
	Base   string
	Quote  string
	Settle string
}

func (s Symbol) Internal() string {
	if s.Base == "" || s.Quote == "" {
		return ""
	}
	return s.Base + "/" + s.Quote
}

// Unified keeps the settle currency, e.g. BTC/USDT:USDT.
func (s Symbol) Unified() string {
	in := s.Internal()
	if in == "" || s.Settle == "" {
		return in
	}
	return in + ":" + s.Settle
}

func (s Symbol) IsDerivative() bool { return s.Settle != "" }

func (s Symbol) Binance() string {
	if s.Base == "" || s.Quote == "" {
		return ""
	}
	return s.Base + s.Quote
}

var quoteCurrencies = []string{"USDT", "BUSD", "USDC", "TUSD", "KRW", "BTC", "ETH", "BNB", "USD"}

func Parse(s string) Symbol {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return Symbol{}
	}

	var settle string
	if idx := strings.Index(s, ":"); idx >= 0 {
		settle = strings.TrimSpace(s[idx+1:])
		s = s[:idx]
	}

	if parts := strings.SplitN(s, "/", 2); len(parts) == 2 {
		return Symbol{
			Base:   strings.TrimSpace(parts[0]),
			Quote:  strings.TrimSpace(parts[1]),
			Settle: settle,
		}
	}

	for _, quote := range quoteCurrencies {
		if strings.HasSuffix(s, quote) && len(s) > len(quote) {
			return Symbol{
				Base:   s[:len(s)-len(quote)],
				Quote:  quote,
				Settle: settle,
			}
		}
	}

	return Symbol{}
}

func Normalize(s string) string {
	return Parse(s).Internal()
}

func IsValid(s string) bool {
	sym := Parse(s)
	return sym.Base != "" && sym.Quote != ""
}
