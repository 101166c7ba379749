// Package assets builds the cross-venue asset report.
package assets

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"poa/internal/errs"
	"poa/internal/fx"
	"poa/internal/gateway/exchange"
	"poa/internal/logger"
	"poa/internal/venue"
)

const (
	DefaultTopN         = 5
	DefaultVenueTimeout = 30 * time.Second
	DefaultConcurrency  = 16
)

// Resolver hands out adapters; *registry.Registry satisfies it.
type Resolver interface {
	Resolve(ctx context.Context, id venue.ID) (exchange.Adapter, error)
}

// RateSource yields the USD/KRW rate; *fx.Resolver satisfies it.
type RateSource interface {
	Resolve(ctx context.Context) fx.Rate
}

type Config struct {
	TopN         int
	VenueTimeout time.Duration
	Concurrency  int
}

func (c Config) withDefaults() Config {
	if c.TopN <= 0 {
		c.TopN = DefaultTopN
	}
	if c.VenueTimeout <= 0 {
		c.VenueTimeout = DefaultVenueTimeout
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	return c
}

// Result is one venue's outcome.
type Result struct {
	Venue    venue.ID
	Snapshot exchange.BalanceSnapshot
	Err      error
}

type Aggregator struct {
	venues Resolver
	rates  RateSource
	cfg    Config
	now    func() time.Time
}

func NewAggregator(venues Resolver, rates RateSource, cfg Config) *Aggregator {
	return &Aggregator{venues: venues, rates: rates, cfg: cfg.withDefaults(), now: time.Now}
}

// Aggregate queries ids in parallel. A venue that fails is logged, listed in
// Failures and left out of Entries; the report itself never fails.
func (a *Aggregator) Aggregate(ctx context.Context, ids []venue.ID) Report {
	ids = dedupe(ids)
	report := Report{GeneratedAt: a.now()}

	// resolved lazily, at most once, and only when a brokerage balance needs it
	rate := sync.OnceValue(func() fx.Rate { return a.rates.Resolve(ctx) })

	results := a.fetch(ctx, ids)
	usedRate := false
	for _, res := range results {
		if res.Err != nil {
			logger.Warnf("资产查询失败 venue=%s: %v", res.Venue, res.Err)
			report.Failures = append(report.Failures, newFailure(res.Venue, res.Err))
			continue
		}
		var entry Entry
		if res.Venue.IsBroker() {
			r := rate()
			usedRate = true
			entry = brokerEntry(res.Snapshot, r, a.cfg.TopN)
		} else {
			entry = cryptoEntry(res.Snapshot, a.cfg.TopN)
		}
		entry.Venue = res.Venue
		report.Entries = append(report.Entries, entry)
	}
	if usedRate {
		r := rate()
		report.Rate = &r
	}
	report.Totals = totals(report.Entries)
	return report
}

// Fetch returns one Result per id in query order.
func (a *Aggregator) Fetch(ctx context.Context, ids []venue.ID) []Result {
	return a.fetch(ctx, dedupe(ids))
}

func (a *Aggregator) fetch(ctx context.Context, ids []venue.ID) []Result {
	results := make([]Result, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Concurrency)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			results[i] = a.fetchOne(gctx, id)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (a *Aggregator) fetchOne(ctx context.Context, id venue.ID) Result {
	vctx, cancel := context.WithTimeout(ctx, a.cfg.VenueTimeout)
	defer cancel()
	res := Result{Venue: id}
	adapter, err := a.venues.Resolve(vctx, id)
	if err != nil {
		res.Err = err
		return res
	}
	snap, err := adapter.FetchBalance(vctx)
	if err != nil {
		res.Err = errs.AsRemote(id, "balance", err)
		return res
	}
	if snap.Venue == "" {
		snap.Venue = id
	}
	res.Snapshot = snap
	return res
}

func cryptoEntry(snap exchange.BalanceSnapshot, topN int) Entry {
	total := snap.Total
	if total.IsZero() {
		total = sumValues(snap.Holdings)
	}
	return Entry{
		Currency:     snap.Currency,
		Total:        total,
		Holdings:     topHoldings(snap.Holdings, topN),
		HoldingCount: len(snap.Holdings),
		UpdatedAt:    snap.UpdatedAt,
	}
}

// brokerEntry totals the KRW domestic part plus the USD overseas part at rate.
func brokerEntry(snap exchange.BalanceSnapshot, rate fx.Rate, topN int) Entry {
	domTotal := snap.Total
	if snap.Domestic != nil {
		domTotal = *snap.Domestic
	}
	if domTotal.IsZero() {
		domTotal = sumValues(snap.Holdings)
	}
	entry := Entry{
		Currency: "KRW",
		Domestic: &Part{
			Currency: "KRW",
			Total:    domTotal,
			Holdings: topHoldings(snap.Holdings, topN),
		},
		UpdatedAt: snap.UpdatedAt,
	}
	all := append([]exchange.Holding(nil), snap.Holdings...)
	total := domTotal
	if snap.Overseas != nil {
		usd := snap.Overseas.TotalUSD
		if usd.IsZero() {
			usd = sumValues(snap.Overseas.Holdings)
		}
		krw := usd.Mul(rate.Value).Round(0)
		entry.Overseas = &Part{
			Currency:  "USD",
			Total:     usd,
			TotalKRW:  krw,
			Holdings:  topHoldings(snap.Overseas.Holdings, topN),
			Rate:      rate.Value,
			RateIsEst: rate.IsFallback,
		}
		total = total.Add(krw)
		for _, h := range snap.Overseas.Holdings {
			h.Value = h.Value.Mul(rate.Value).Round(0)
			all = append(all, h)
		}
	}
	entry.Total = total
	entry.Holdings = topHoldings(all, topN)
	entry.HoldingCount = len(all)
	return entry
}

// topHoldings orders by value descending; equal values keep listing order.
func topHoldings(in []exchange.Holding, n int) []exchange.Holding {
	out := make([]exchange.Holding, 0, len(in))
	for _, h := range in {
		if h.Value.IsPositive() || h.Quantity.IsPositive() {
			out = append(out, h)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Value.GreaterThan(out[j].Value) })
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

func sumValues(hs []exchange.Holding) decimal.Decimal {
	sum := decimal.Zero
	for _, h := range hs {
		sum = sum.Add(h.Value)
	}
	return sum
}

func totals(entries []Entry) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal)
	for _, e := range entries {
		if e.Currency == "" {
			continue
		}
		out[e.Currency] = out[e.Currency].Add(e.Total)
	}
	return out
}

func dedupe(ids []venue.ID) []venue.ID {
	seen := make(map[venue.ID]bool, len(ids))
	out := make([]venue.ID, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
