// Package registry owns one adapter per venue for the life of the process.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"poa/internal/errs"
	"poa/internal/gateway/exchange"
	"poa/internal/logger"
	"poa/internal/venue"
)

const defaultInitTimeout = 20 * time.Second

// Factory constructs and initializes adapters. Build returns a
// VenueUnavailableError when id has no usable credentials, without any
// remote call.
type Factory interface {
	Build(ctx context.Context, id venue.ID) (exchange.Adapter, error)
	Configured() []venue.ID
}

type Option func(*Registry)

// WithInitTimeout bounds one construction, including its first remote check.
func WithInitTimeout(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.initTimeout = d
		}
	}
}

// WithBreaker sets the circuit breaker wrapped around every adapter.
func WithBreaker(cfg exchange.BreakerConfig) Option {
	return func(r *Registry) { r.breaker = cfg }
}

// Registry memoizes adapters. Concurrent resolvers of one id share a single
// construction; a successful adapter is never rebuilt.
type Registry struct {
	factory     Factory
	initTimeout time.Duration
	breaker     exchange.BreakerConfig

	mu          sync.Mutex
	adapters    map[venue.ID]exchange.Adapter
	unavailable map[venue.ID]error

	group singleflight.Group
}

func New(f Factory, opts ...Option) *Registry {
	r := &Registry{
		factory:     f,
		initTimeout: defaultInitTimeout,
		adapters:    make(map[venue.ID]exchange.Adapter),
		unavailable: make(map[venue.ID]error),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) lookup(id venue.ID) (exchange.Adapter, error, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.adapters[id]; ok {
		return a, nil, true
	}
	if err, ok := r.unavailable[id]; ok {
		return nil, err, true
	}
	return nil, nil, false
}

// Resolve returns the adapter for id, constructing it on first use.
// Init failures are not remembered; the next call tries again.
func (r *Registry) Resolve(ctx context.Context, id venue.ID) (exchange.Adapter, error) {
	if !id.Valid() {
		return nil, errs.Unavailable(id, "unknown venue")
	}
	if a, err, ok := r.lookup(id); ok {
		return a, err
	}

	ch := r.group.DoChan(string(id), func() (any, error) {
		if a, err, ok := r.lookup(id); ok {
			return a, err
		}
		// detached from the first caller: every waiter shares this build
		bctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.initTimeout)
		defer cancel()

		start := time.Now()
		a, err := r.factory.Build(bctx, id)
		if err != nil {
			if errors.Is(err, errs.ErrVenueUnavailable) {
				r.mu.Lock()
				r.unavailable[id] = err
				r.mu.Unlock()
				return nil, err
			}
			if !errors.Is(err, errs.ErrVenueInit) {
				err = errs.Init(id, err)
			}
			logger.Warnf("venue %s init failed after %s: %v", id, time.Since(start).Round(time.Millisecond), err)
			return nil, err
		}
		guarded := exchange.Guard(a, r.breaker)
		r.mu.Lock()
		r.adapters[id] = guarded
		r.mu.Unlock()
		logger.Infof("venue %s ready (%s)", id, time.Since(start).Round(time.Millisecond))
		return guarded, nil
	})

	select {
	case <-ctx.Done():
		// build keeps running for later callers; this one gives up
		return nil, errs.Init(id, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(exchange.Adapter), nil
	}
}

// ResolveMarket maps a stock market designator plus sub-account index to its
// brokerage venue.
func (r *Registry) ResolveMarket(ctx context.Context, designator string, index int) (exchange.Adapter, error) {
	if _, ok := venue.ParseMarket(designator); !ok {
		return nil, errs.Validation("exchange", "unknown market %q", designator)
	}
	if index < 1 || index > venue.MaxBrokerIndex {
		return nil, errs.Validation("kis_number", "must be within 1..%d", venue.MaxBrokerIndex)
	}
	return r.Resolve(ctx, venue.Broker(index))
}

// Configured lists every venue with credentials: crypto first in the fixed
// crypto order, then brokers ascending.
func (r *Registry) Configured() []venue.ID {
	return r.factory.Configured()
}

// Loaded reports the venues that currently hold a built adapter.
func (r *Registry) Loaded() []venue.ID {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []venue.ID
	for _, id := range r.factory.Configured() {
		if _, ok := r.adapters[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

func (r *Registry) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fmt.Sprintf("registry{adapters=%d unavailable=%d}", len(r.adapters), len(r.unavailable))
}
