// Package kis implements the brokerage adapter on the Korea Investment &
// Securities open API. One Adapter serves one sub-account.
package kis

import (
	"context"
	"fmt"

	"github.com/tidwall/gjson"

	"poa/internal/errs"
	"poa/internal/gateway/exchange"
	"poa/internal/gateway/rest"
	"poa/internal/logger"
	"poa/internal/session"
	"poa/internal/venue"
)

type Adapter struct {
	cfg    Config
	client *rest.Client
	sess   *session.Manager
	log    *logger.VenueLogger
}

var (
	_ exchange.Adapter      = (*Adapter)(nil)
	_ exchange.FreeBalancer = (*Adapter)(nil)
)

// New builds the adapter without any remote call. Use Authenticate to obtain
// the first token.
func New(cfg Config, store session.TokenStore, opts ...session.Option) (*Adapter, error) {
	if cfg.Index < 1 || cfg.Index > venue.MaxBrokerIndex {
		return nil, fmt.Errorf("kis: account index %d out of range", cfg.Index)
	}
	if !cfg.Complete() {
		return nil, fmt.Errorf("kis: %s credentials incomplete", cfg.ID())
	}
	cfg = cfg.withDefaults()
	client, err := rest.NewClient(rest.Config{
		BaseURL:    cfg.BaseURL,
		Timeout:    cfg.Timeout,
		RatePerSec: cfg.RatePerSec,
		Burst:      1,
	})
	if err != nil {
		return nil, fmt.Errorf("kis: %w", err)
	}
	auth := &authenticator{cfg: cfg, client: client}
	return &Adapter{
		cfg:    cfg,
		client: client,
		sess:   session.NewManager(cfg.ID(), cfg.AccountID(), store, auth, opts...),
		log:    logger.Venue(string(cfg.ID())),
	}, nil
}

func (a *Adapter) Name() venue.ID { return a.cfg.ID() }

// Authenticate makes sure a usable token exists.
func (a *Adapter) Authenticate(ctx context.Context) error {
	_, err := a.sess.Token(ctx)
	return err
}

// Session exposes the token manager, mainly for diagnostics.
func (a *Adapter) Session() *session.Manager { return a.sess }

// do runs c with a managed token, retrying once on a stale token.
func (a *Adapter) do(ctx context.Context, c call) (gjson.Result, error) {
	var out gjson.Result
	err := a.sess.Do(ctx, func(ctx context.Context, token string) error {
		res, err := send(ctx, a.client, a.cfg, token, c)
		if err != nil {
			return err
		}
		out = res
		return nil
	})
	if err != nil {
		return gjson.Result{}, errs.AsRemote(a.Name(), c.op, err)
	}
	return out, nil
}
