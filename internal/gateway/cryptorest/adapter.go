// Package cryptorest implements the REST-signed crypto venues (UPBIT, BITHUMB,
// BYBIT, BITGET, OKX) behind one Adapter. Each venue contributes a dialect that
// knows its signing scheme, endpoints and envelope; sizing conversion between
// base amount and quote cost is shared.
package cryptorest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"poa/internal/errs"
	"poa/internal/gateway/exchange"
	"poa/internal/gateway/rest"
	"poa/internal/logger"
	"poa/internal/order"
	"poa/internal/venue"
)

// Credentials 交易所 API 凭证。Passphrase 仅 BITGET/OKX 需要。
type Credentials struct {
	Key        string
	Secret     string
	Passphrase string
}

// Complete reports whether the credentials can sign requests for id.
func (c Credentials) Complete(id venue.ID) bool {
	if strings.TrimSpace(c.Key) == "" || strings.TrimSpace(c.Secret) == "" {
		return false
	}
	if id.NeedsPassphrase() && strings.TrimSpace(c.Passphrase) == "" {
		return false
	}
	return true
}

type Config struct {
	Venue       venue.ID
	Credentials Credentials
	// BaseURL overrides the venue's production endpoint.
	BaseURL    string
	Timeout    time.Duration
	RatePerSec float64
}

// dialect is one venue's REST flavour.
type dialect interface {
	baseURL() string
	supportsFutures() bool
	balance(ctx context.Context) (exchange.BalanceSnapshot, error)
	free(ctx context.Context, asset string, futures bool) (decimal.Decimal, error)
	last(ctx context.Context, inst order.Instrument) (decimal.Decimal, error)
	// quoteSized reports whether the venue takes the order size in quote units.
	quoteSized(p placement) bool
	place(ctx context.Context, p placement) (exchange.OrderResult, error)
	cancel(ctx context.Context, req exchange.CancelRequest) error
}

// placement is a fully sized order ready for a dialect.
type placement struct {
	inst     order.Instrument
	side     order.Side
	kind     order.Kind
	amount   decimal.Decimal
	cost     decimal.Decimal
	price    decimal.Decimal
	leverage decimal.Decimal
	entry    bool
	close    bool
	clientID string
}

func (p placement) futures() bool { return p.inst.Futures }

func (p placement) market() bool { return p.kind != order.Limit }

func (p placement) buy() bool { return p.side == order.Buy }

// conn is the state every dialect shares.
type conn struct {
	id     venue.ID
	creds  Credentials
	client *rest.Client
	now    func() time.Time
	log    *logger.VenueLogger
}

type Adapter struct {
	id  venue.ID
	d   dialect
	c   *conn
	log *logger.VenueLogger
}

var (
	_ exchange.Adapter      = (*Adapter)(nil)
	_ exchange.FreeBalancer = (*Adapter)(nil)
)

var errSpotOnly = errors.New("venue supports spot orders only")

// New builds the adapter for cfg.Venue.
func New(cfg Config) (*Adapter, error) {
	if !cfg.Venue.IsCrypto() || cfg.Venue == venue.Binance {
		return nil, fmt.Errorf("cryptorest: unsupported venue %q", cfg.Venue)
	}
	if !cfg.Credentials.Complete(cfg.Venue) {
		return nil, fmt.Errorf("cryptorest: %s credentials incomplete", cfg.Venue)
	}
	c := &conn{
		id:    cfg.Venue,
		creds: cfg.Credentials,
		now:   time.Now,
		log:   logger.Venue(string(cfg.Venue)),
	}
	var d dialect
	switch cfg.Venue {
	case venue.Upbit:
		d = &upbit{c}
	case venue.Bithumb:
		d = &bithumb{c}
	case venue.Bybit:
		d = &bybit{c}
	case venue.Bitget:
		d = &bitget{c}
	case venue.OKX:
		d = newOKX(c)
	default:
		return nil, fmt.Errorf("cryptorest: unsupported venue %q", cfg.Venue)
	}
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		base = d.baseURL()
	}
	rate := cfg.RatePerSec
	if rate <= 0 {
		rate = 8
	}
	client, err := rest.NewClient(rest.Config{BaseURL: base, Timeout: cfg.Timeout, RatePerSec: rate, Burst: 2})
	if err != nil {
		return nil, err
	}
	c.client = client
	return &Adapter{id: cfg.Venue, d: d, c: c, log: c.log}, nil
}

func (a *Adapter) Name() venue.ID { return a.id }

// SetClock replaces the signing clock; tests only.
func (a *Adapter) SetClock(now func() time.Time) { a.c.now = now }

func (a *Adapter) FetchBalance(ctx context.Context) (exchange.BalanceSnapshot, error) {
	snap, err := a.d.balance(ctx)
	if err != nil {
		return exchange.BalanceSnapshot{}, errs.AsRemote(a.id, "balance", err)
	}
	snap.Venue = a.id
	if snap.UpdatedAt.IsZero() {
		snap.UpdatedAt = a.c.now()
	}
	return snap, nil
}

func (a *Adapter) FetchFree(ctx context.Context, asset string, futures bool) (exchange.Free, error) {
	asset = strings.ToUpper(strings.TrimSpace(asset))
	amt, err := a.d.free(ctx, asset, futures)
	if err != nil {
		return exchange.Free{}, errs.AsRemote(a.id, "free", err)
	}
	return exchange.Free{Asset: asset, Amount: amt}, nil
}

func (a *Adapter) FetchPrice(ctx context.Context, inst order.Instrument) (exchange.PriceQuote, error) {
	px, err := a.d.last(ctx, inst)
	if err != nil {
		return exchange.PriceQuote{}, errs.AsRemote(a.id, "price", err)
	}
	return exchange.PriceQuote{
		Venue:     a.id,
		Symbol:    inst.Symbol(),
		Last:      px,
		Currency:  inst.Quote,
		UpdatedAt: a.c.now(),
	}, nil
}

// PlaceOrder converts between amount and cost with the last trade price when
// the order's sizing does not match the unit the venue expects.
func (a *Adapter) PlaceOrder(ctx context.Context, o order.CanonicalOrder) (exchange.OrderResult, error) {
	if o.Percent().IsSet() {
		return exchange.OrderResult{}, errs.Validation("percent", "must be resolved before placement")
	}
	p := placement{
		inst:     o.Instrument(),
		side:     o.Side(),
		kind:     o.Kind(),
		amount:   o.Amount().Decimal(),
		cost:     o.Cost().Decimal(),
		price:    o.Price().Decimal(),
		leverage: o.Leverage().Decimal(),
		entry:    o.IsEntry(),
		close:    o.IsClose(),
		clientID: newClientID(),
	}
	if p.futures() && !a.d.supportsFutures() {
		return exchange.OrderResult{}, errs.Validation("quote", "%v", errSpotOnly)
	}
	wantQuote := a.d.quoteSized(p)
	switch {
	case wantQuote && !o.Cost().IsSet():
		ref, err := a.reference(ctx, p)
		if err != nil {
			return exchange.OrderResult{}, err
		}
		p.cost = p.amount.Mul(ref)
	case !wantQuote && !o.Amount().IsSet():
		ref, err := a.reference(ctx, p)
		if err != nil {
			return exchange.OrderResult{}, err
		}
		p.amount = costToAmount(p.cost, ref)
		if !p.amount.IsPositive() {
			return exchange.OrderResult{}, errs.Validation("cost", "too small for one unit at %s", ref)
		}
	}
	a.log.Infof("place %s %s %s amount=%s cost=%s", p.inst.Symbol(), p.side, p.kind, p.amount, p.cost)
	res, err := a.d.place(ctx, p)
	if err != nil {
		return exchange.OrderResult{}, errs.AsRemote(a.id, "order", err)
	}
	res.Venue = a.id
	res.Symbol = p.inst.Symbol()
	res.Side = p.side
	res.Kind = p.kind
	if res.ClientOrderID == "" {
		res.ClientOrderID = p.clientID
	}
	if res.Amount.IsZero() {
		res.Amount = p.amount
	}
	if res.Cost.IsZero() {
		res.Cost = p.cost
	}
	if res.Price.IsZero() && !p.market() {
		res.Price = p.price
	}
	return res, nil
}

// reference is the limit price when given, otherwise the last trade.
func (a *Adapter) reference(ctx context.Context, p placement) (decimal.Decimal, error) {
	if !p.market() && p.price.IsPositive() {
		return p.price, nil
	}
	px, err := a.d.last(ctx, p.inst)
	if err != nil {
		return decimal.Zero, errs.AsRemote(a.id, "price", err)
	}
	if !px.IsPositive() {
		return decimal.Zero, errs.Remote(a.id, "price", fmt.Errorf("no last price for %s", p.inst.Symbol()))
	}
	return px, nil
}

func (a *Adapter) CancelOrder(ctx context.Context, req exchange.CancelRequest) error {
	if strings.TrimSpace(req.OrderID) == "" {
		return errs.Validation("order_id", "required")
	}
	if err := a.d.cancel(ctx, req); err != nil {
		return errs.AsRemote(a.id, "cancel", err)
	}
	return nil
}

// costToAmount truncates to 8 decimals, the finest step any of these venues accepts.
func costToAmount(cost, price decimal.Decimal) decimal.Decimal {
	if !price.IsPositive() {
		return decimal.Zero
	}
	return cost.DivRound(price, 16).Truncate(8)
}

// newClientID is alphanumeric and 32 chars, which every dialect accepts.
func newClientID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func dec(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func rawMap(doc gjson.Result) map[string]any {
	m, _ := doc.Value().(map[string]any)
	return m
}

func asRemote(err error, target **errs.RemoteCallError) bool {
	return err != nil && errors.As(err, target)
}
