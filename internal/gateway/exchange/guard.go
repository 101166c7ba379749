package exchange

import (
	"context"
	"errors"
	"time"

	"poa/internal/errs"
	"poa/internal/order"
	"poa/internal/pkg/circuit"
	"poa/internal/venue"
)

// BreakerConfig controls the per-venue circuit breaker.
type BreakerConfig struct {
	Threshold int
	Cooldown  time.Duration
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	if c.Threshold <= 0 {
		c.Threshold = 5
	}
	if c.Cooldown <= 0 {
		c.Cooldown = 30 * time.Second
	}
	return c
}

// Guarded wraps an adapter with a circuit breaker and classifies every error
// it returns. Unclassified failures become RemoteCallError.
type Guarded struct {
	inner   Adapter
	breaker *circuit.CircuitBreaker
}

func Guard(inner Adapter, cfg BreakerConfig) *Guarded {
	cfg = cfg.withDefaults()
	return &Guarded{
		inner:   inner,
		breaker: circuit.NewCircuitBreaker(string(inner.Name()), cfg.Threshold, cfg.Cooldown),
	}
}

// Unwrap returns the wrapped adapter.
func (g *Guarded) Unwrap() Adapter { return g.inner }

func (g *Guarded) Name() venue.ID { return g.inner.Name() }

func (g *Guarded) FetchBalance(ctx context.Context) (BalanceSnapshot, error) {
	out, err := circuit.Call(g.breaker, func() (BalanceSnapshot, error) {
		return g.inner.FetchBalance(ctx)
	}, trips)
	return out, g.classify("balance", err)
}

func (g *Guarded) PlaceOrder(ctx context.Context, o order.CanonicalOrder) (OrderResult, error) {
	out, err := circuit.Call(g.breaker, func() (OrderResult, error) {
		return g.inner.PlaceOrder(ctx, o)
	}, trips)
	return out, g.classify("order", err)
}

func (g *Guarded) CancelOrder(ctx context.Context, req CancelRequest) error {
	err := g.breaker.Execute(func() error {
		return g.inner.CancelOrder(ctx, req)
	}, trips)
	return g.classify("cancel", err)
}

func (g *Guarded) FetchPrice(ctx context.Context, inst order.Instrument) (PriceQuote, error) {
	out, err := circuit.Call(g.breaker, func() (PriceQuote, error) {
		return g.inner.FetchPrice(ctx, inst)
	}, trips)
	return out, g.classify("price", err)
}

func (g *Guarded) FetchFree(ctx context.Context, asset string, futures bool) (Free, error) {
	fb, ok := g.inner.(FreeBalancer)
	if !ok {
		return Free{}, errs.Remote(g.Name(), "free balance", errors.New("not supported"))
	}
	out, err := circuit.Call(g.breaker, func() (Free, error) {
		return fb.FetchFree(ctx, asset, futures)
	}, trips)
	return out, g.classify("free balance", err)
}

func (g *Guarded) classify(op string, err error) error {
	return errs.AsRemote(g.Name(), op, err)
}

// trips reports whether err says something about the venue's health.
// Rejected input, bad credentials and caller cancellation do not.
func trips(err error) bool {
	switch {
	case errors.Is(err, errs.ErrValidation),
		errors.Is(err, errs.ErrAuthentication),
		errors.Is(err, context.Canceled):
		return false
	}
	return true
}
