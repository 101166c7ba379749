package symbol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	assert.Equal(t, Symbol{Base: "BTC", Quote: "USDT", Settle: "USDT"}, Parse("btc/usdt:usdt"))
	assert.Equal(t, Symbol{Base: "ETH", Quote: "KRW"}, Parse("ETHKRW"))
	assert.Equal(t, Symbol{}, Parse("???"))
	assert.Equal(t, "BTC/USD:BTC", Parse("BTC/USD:BTC").Unified())
}

func TestConverters(t *testing.T) {
	cases := []struct {
		conv     Converter
		internal string
		venue    string
		back     string
	}{
		{Binance, "BTC/USDT", "BTCUSDT", "BTC/USDT"},
		{Binance, "BTC/USDT:USDT", "BTCUSDT", "BTC/USDT"},
		{Upbit, "BTC/KRW", "KRW-BTC", "BTC/KRW"},
		{Bithumb, "XRP/KRW", "XRP_KRW", "XRP/KRW"},
		{OKX, "ETH/USDT", "ETH-USDT", "ETH/USDT"},
		{OKX, "ETH/USDT:USDT", "ETH-USDT-SWAP", "ETH/USDT:USDT"},
		{OKX, "BTC/USD:BTC", "BTC-USD-SWAP", "BTC/USD:BTC"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.venue, tc.conv.ToExchange(tc.internal), tc.internal)
		assert.Equal(t, tc.back, tc.conv.FromExchange(tc.venue), tc.venue)
	}
	assert.Equal(t, "", Upbit.ToExchange("garbage"))
}
