package registry

import (
	"context"
	"fmt"
	"sort"
	"time"

	"poa/internal/errs"
	"poa/internal/gateway/binance"
	"poa/internal/gateway/cryptorest"
	"poa/internal/gateway/exchange"
	"poa/internal/gateway/kis"
	"poa/internal/session"
	"poa/internal/venue"
)

// CryptoVenue is one crypto venue's credentials and endpoint override.
type CryptoVenue struct {
	Credentials cryptorest.Credentials
	BaseURL     string
	RatePerSec  float64
}

// Settings is everything the default factory needs to build adapters.
type Settings struct {
	Crypto map[venue.ID]CryptoVenue
	// Brokers is keyed by sub-account index 1..50.
	Brokers     map[int]kis.Config
	Binance     binance.Config
	Tokens      session.TokenStore
	HTTPTimeout time.Duration
}

// VenueFactory builds the production adapters and runs each venue's
// first remote check before handing the adapter out.
type VenueFactory struct {
	s Settings
}

var _ Factory = (*VenueFactory)(nil)

func NewFactory(s Settings) *VenueFactory {
	if s.Tokens == nil {
		s.Tokens = session.NewMemoryStore()
	}
	return &VenueFactory{s: s}
}

func (f *VenueFactory) Configured() []venue.ID {
	var out []venue.ID
	for _, id := range venue.Crypto {
		if v, ok := f.s.Crypto[id]; ok && v.Credentials.Complete(id) {
			out = append(out, id)
		}
	}
	idx := make([]int, 0, len(f.s.Brokers))
	for i, cfg := range f.s.Brokers {
		if cfg.Complete() && i >= 1 && i <= venue.MaxBrokerIndex {
			idx = append(idx, i)
		}
	}
	sort.Ints(idx)
	for _, i := range idx {
		out = append(out, venue.Broker(i))
	}
	return out
}

func (f *VenueFactory) Build(ctx context.Context, id venue.ID) (exchange.Adapter, error) {
	switch {
	case id.IsBroker():
		return f.buildBroker(ctx, id)
	case id == venue.Binance:
		return f.buildBinance(ctx)
	case id.IsCrypto():
		return f.buildCrypto(ctx, id)
	}
	return nil, errs.Unavailable(id, "unknown venue")
}

func (f *VenueFactory) buildBroker(ctx context.Context, id venue.ID) (exchange.Adapter, error) {
	n, _ := id.BrokerIndex()
	cfg, ok := f.s.Brokers[n]
	if !ok || !cfg.Complete() {
		return nil, errs.Unavailable(id, "brokerage credentials incomplete")
	}
	cfg.Index = n
	if cfg.Timeout <= 0 {
		cfg.Timeout = f.s.HTTPTimeout
	}
	a, err := kis.New(cfg, f.s.Tokens)
	if err != nil {
		return nil, errs.Init(id, err)
	}
	if err := a.Authenticate(ctx); err != nil {
		return nil, errs.Init(id, err)
	}
	return a, nil
}

func (f *VenueFactory) buildBinance(ctx context.Context) (exchange.Adapter, error) {
	v, ok := f.s.Crypto[venue.Binance]
	if !ok || !v.Credentials.Complete(venue.Binance) {
		return nil, errs.Unavailable(venue.Binance, "api key/secret missing")
	}
	cfg := f.s.Binance
	cfg.APIKey = v.Credentials.Key
	cfg.APISecret = v.Credentials.Secret
	if v.BaseURL != "" {
		cfg.SpotBaseURL = v.BaseURL
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = f.s.HTTPTimeout
	}
	a, err := binance.New(cfg)
	if err != nil {
		return nil, errs.Init(venue.Binance, err)
	}
	if err := a.Ping(ctx); err != nil {
		return nil, errs.Init(venue.Binance, err)
	}
	return a, nil
}

func (f *VenueFactory) buildCrypto(ctx context.Context, id venue.ID) (exchange.Adapter, error) {
	v, ok := f.s.Crypto[id]
	if !ok || !v.Credentials.Complete(id) {
		reason := "api key/secret missing"
		if id.NeedsPassphrase() {
			reason = "api key/secret/passphrase missing"
		}
		return nil, errs.Unavailable(id, reason)
	}
	a, err := cryptorest.New(cryptorest.Config{
		Venue:       id,
		Credentials: v.Credentials,
		BaseURL:     v.BaseURL,
		Timeout:     f.s.HTTPTimeout,
		RatePerSec:  v.RatePerSec,
	})
	if err != nil {
		return nil, errs.Init(id, err)
	}
	// a signed balance read proves both reachability and the credentials
	if _, err := a.FetchBalance(ctx); err != nil {
		return nil, errs.Init(id, fmt.Errorf("credential check: %w", err))
	}
	return a, nil
}
