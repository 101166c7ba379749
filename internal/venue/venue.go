// Package venue enumerates the trading venues the gateway can route to.
//
// Two families exist: six fixed crypto exchanges, and brokerage sub-accounts
// addressed as BROKER<N> (N = 1..MaxBrokerIndex). Stock orders name a market
// designator (KRX, NASDAQ, NYSE, AMEX) plus a sub-account index instead of a
// venue id directly.
package venue

import (
	"fmt"
	"strconv"
	"strings"
)

// ID identifies one venue: a crypto exchange or one brokerage sub-account.
type ID string

const (
	Binance ID = "BINANCE"
	Upbit   ID = "UPBIT"
	Bybit   ID = "BYBIT"
	Bitget  ID = "BITGET"
	OKX     ID = "OKX"
	Bithumb ID = "BITHUMB"
)

const (
	brokerPrefix = "BROKER"
	// MaxBrokerIndex is the highest sub-account index that can be configured.
	MaxBrokerIndex = 50
)

// Family groups venues by how they are authenticated and routed.
type Family int

const (
	FamilyUnknown Family = iota
	FamilyCrypto
	FamilyBroker
)

func (f Family) String() string {
	switch f {
	case FamilyCrypto:
		return "crypto"
	case FamilyBroker:
		return "broker"
	default:
		return "unknown"
	}
}

// Crypto lists the crypto exchanges in their canonical order.
var Crypto = []ID{Binance, Upbit, Bybit, Bitget, OKX, Bithumb}

var costBased = map[ID]bool{
	Upbit:   true,
	Bybit:   true,
	Bitget:  true,
	Bithumb: true,
}

var needsPassphrase = map[ID]bool{
	Bitget: true,
	OKX:    true,
}

// FuturesSuffixes are the quote markers that turn a crypto order into a futures order.
var FuturesSuffixes = []string{"PERP", ".P"}

// Broker returns the id of brokerage sub-account n. It does not validate n.
func Broker(n int) ID {
	return ID(brokerPrefix + strconv.Itoa(n))
}

// BrokerIndex extracts N from BROKER<N>.
func (id ID) BrokerIndex() (int, bool) {
	s := string(id)
	if !strings.HasPrefix(s, brokerPrefix) {
		return 0, false
	}
	n, err := strconv.Atoi(s[len(brokerPrefix):])
	if err != nil || n < 1 || n > MaxBrokerIndex {
		return 0, false
	}
	return n, true
}

func (id ID) Family() Family {
	for _, c := range Crypto {
		if c == id {
			return FamilyCrypto
		}
	}
	if _, ok := id.BrokerIndex(); ok {
		return FamilyBroker
	}
	return FamilyUnknown
}

func (id ID) Valid() bool { return id.Family() != FamilyUnknown }

func (id ID) IsCrypto() bool { return id.Family() == FamilyCrypto }

func (id ID) IsBroker() bool { return id.Family() == FamilyBroker }

// IsCostBased reports whether market orders on this venue are sized by quote cost.
func (id ID) IsCostBased() bool { return costBased[id] }

// NeedsPassphrase reports whether the venue's API key set includes a passphrase.
func (id ID) NeedsPassphrase() bool { return needsPassphrase[id] }

func (id ID) String() string { return string(id) }

// Parse accepts a crypto venue name or BROKER<N>. Legacy KIS<N> names map to BROKER<N>.
func Parse(raw string) (ID, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if strings.HasPrefix(s, "KIS") {
		s = brokerPrefix + strings.TrimPrefix(s, "KIS")
	}
	id := ID(s)
	if !id.Valid() {
		return "", fmt.Errorf("unknown venue %q", raw)
	}
	return id, nil
}

// Market is a stock market designator routed to a brokerage sub-account.
type Market string

const (
	KRX    Market = "KRX"
	NASDAQ Market = "NASDAQ"
	NYSE   Market = "NYSE"
	AMEX   Market = "AMEX"
)

// Markets lists every recognised stock market designator.
var Markets = []Market{KRX, NASDAQ, NYSE, AMEX}

// ParseMarket returns the designator for s, if s is one.
func ParseMarket(raw string) (Market, bool) {
	s := Market(strings.ToUpper(strings.TrimSpace(raw)))
	for _, m := range Markets {
		if m == s {
			return m, true
		}
	}
	return "", false
}

// Domestic reports whether the market settles in KRW.
func (m Market) Domestic() bool { return m == KRX }

func (m Market) String() string { return string(m) }
