package symbol

import "strings"

// UpbitConverter renders BTC/KRW as KRW-BTC (quote first).
type UpbitConverter struct{}

func (UpbitConverter) ToExchange(internal string) string {
	s := Parse(internal)
	if s.Base == "" || s.Quote == "" {
		return ""
	}
	return s.Quote + "-" + s.Base
}

func (UpbitConverter) FromExchange(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	parts := strings.SplitN(s, "-", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return ""
	}
	return parts[1] + "/" + parts[0]
}

func (UpbitConverter) Format() Format { return FormatUpbit }

var Upbit = UpbitConverter{}

// BithumbConverter renders BTC/KRW as BTC_KRW.
type BithumbConverter struct{}

func (BithumbConverter) ToExchange(internal string) string {
	s := Parse(internal)
	if s.Base == "" || s.Quote == "" {
		return ""
	}
	return s.Base + "_" + s.Quote
}

func (BithumbConverter) FromExchange(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if strings.Contains(s, "_") {
		parts := strings.SplitN(s, "_", 2)
		if len(parts) == 2 {
			return parts[0] + "/" + parts[1]
		}
	}
	return Parse(s).Internal()
}

func (BithumbConverter) Format() Format { return FormatBithumb }

var Bithumb = BithumbConverter{}
