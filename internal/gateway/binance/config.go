package binance

import (
	"strings"
	"time"
)

type Config struct {
	APIKey    string
	APISecret string

	SpotBaseURL    string
	FuturesBaseURL string
	HTTPTimeout    time.Duration

	ProxyEnabled bool
	RESTProxyURL string
}

func (c *Config) withDefaults() Config {
	out := *c
	out.SpotBaseURL = strings.TrimSpace(out.SpotBaseURL)
	if out.SpotBaseURL == "" {
		out.SpotBaseURL = "https://api.binance.com"
	}
	out.FuturesBaseURL = strings.TrimSpace(out.FuturesBaseURL)
	if out.FuturesBaseURL == "" {
		out.FuturesBaseURL = "https://fapi.binance.com"
	}
	if out.HTTPTimeout <= 0 {
		out.HTTPTimeout = 15 * time.Second
	}
	out.RESTProxyURL = strings.TrimSpace(out.RESTProxyURL)
	return out
}
