package kis

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"poa/internal/venue"
)

const DefaultBaseURL = "https://openapi.koreainvestment.com:9443"

// Config is one brokerage sub-account.
type Config struct {
	Index         int
	AppKey        string
	AppSecret     string
	AccountNumber string
	AccountCode   string

	BaseURL    string
	Timeout    time.Duration
	RatePerSec float64
	// MinTick and TickOffset price US orders at current ± TickOffset*MinTick.
	MinTick    decimal.Decimal
	TickOffset int64
}

func (c Config) ID() venue.ID { return venue.Broker(c.Index) }

// AccountID keys the sub-account's token in the token store.
func (c Config) AccountID() string { return fmt.Sprintf("KIS%d", c.Index) }

// Complete reports whether the full credential quadruple is present.
func (c Config) Complete() bool {
	return strings.TrimSpace(c.AppKey) != "" &&
		strings.TrimSpace(c.AppSecret) != "" &&
		strings.TrimSpace(c.AccountNumber) != "" &&
		strings.TrimSpace(c.AccountCode) != ""
}

func (c Config) withDefaults() Config {
	out := c
	out.BaseURL = strings.TrimSpace(out.BaseURL)
	if out.BaseURL == "" {
		out.BaseURL = DefaultBaseURL
	}
	if out.Timeout <= 0 {
		out.Timeout = 10 * time.Second
	}
	if out.RatePerSec <= 0 {
		out.RatePerSec = 15
	}
	if !out.MinTick.IsPositive() {
		out.MinTick = decimal.RequireFromString("0.01")
	}
	if out.TickOffset <= 0 {
		out.TickOffset = 50
	}
	return out
}
