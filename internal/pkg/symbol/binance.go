package symbol

import "strings"

// BinanceConverter renders BTC/USDT as BTCUSDT. Bybit and Bitget use the same form.
type BinanceConverter struct{}

func (BinanceConverter) ToExchange(internal string) string {
	return Parse(internal).Binance()
}

func (BinanceConverter) FromExchange(raw string) string {
	return Parse(strings.ToUpper(strings.TrimSpace(raw))).Internal()
}

func (BinanceConverter) Format() Format {
	return FormatBinance
}

var Binance = BinanceConverter{}
