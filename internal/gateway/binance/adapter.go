// Package binance implements the BINANCE adapter on go-binance: spot through
// the /api endpoints and USDⓈ-M futures through /fapi.
package binance

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	gobinance "github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"poa/internal/errs"
	"poa/internal/gateway/exchange"
	"poa/internal/logger"
	"poa/internal/order"
	symbolpkg "poa/internal/pkg/symbol"
	"poa/internal/venue"
)

var errCoinMargined = errors.New("coin-margined futures are not supported")

type Adapter struct {
	cfg     Config
	spot    *gobinance.Client
	futures *futures.Client
	log     *logger.VenueLogger
}

var (
	_ exchange.Adapter      = (*Adapter)(nil)
	_ exchange.FreeBalancer = (*Adapter)(nil)
)

func New(cfg Config) (*Adapter, error) {
	final := cfg.withDefaults()
	if strings.TrimSpace(final.APIKey) == "" || strings.TrimSpace(final.APISecret) == "" {
		return nil, fmt.Errorf("binance: api key and secret are required")
	}
	httpClient := &http.Client{Timeout: final.HTTPTimeout}
	if final.ProxyEnabled && final.RESTProxyURL != "" {
		proxyURL, err := url.Parse(final.RESTProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid REST proxy url: %w", err)
		}
		baseTransport, ok := http.DefaultTransport.(*http.Transport)
		if !ok || baseTransport == nil {
			return nil, fmt.Errorf("http DefaultTransport is not *http.Transport")
		}
		transport := baseTransport.Clone()
		transport.Proxy = http.ProxyURL(proxyURL)
		httpClient.Transport = transport
	}

	spot := gobinance.NewClient(final.APIKey, final.APISecret)
	spot.BaseURL = final.SpotBaseURL
	spot.HTTPClient = httpClient

	fut := futures.NewClient(final.APIKey, final.APISecret)
	fut.BaseURL = final.FuturesBaseURL
	fut.HTTPClient = httpClient

	return &Adapter{
		cfg:     final,
		spot:    spot,
		futures: fut,
		log:     logger.Venue(string(venue.Binance)),
	}, nil
}

func (a *Adapter) Name() venue.ID { return venue.Binance }

// Ping checks connectivity and the server clock; used as the init check.
func (a *Adapter) Ping(ctx context.Context) error {
	if err := a.spot.NewPingService().Do(ctx); err != nil {
		return errs.Remote(venue.Binance, "ping", err)
	}
	return nil
}

func (a *Adapter) FetchBalance(ctx context.Context) (exchange.BalanceSnapshot, error) {
	acct, err := a.spot.NewGetAccountService().Do(ctx)
	if err != nil {
		return exchange.BalanceSnapshot{}, a.remote("balance", err)
	}
	prices, err := a.spot.NewListPricesService().Do(ctx)
	if err != nil {
		return exchange.BalanceSnapshot{}, a.remote("balance", err)
	}
	balances := make([]assetBalance, 0, len(acct.Balances))
	for _, b := range acct.Balances {
		balances = append(balances, assetBalance{Asset: b.Asset, Free: b.Free, Locked: b.Locked})
	}
	priceMap := make(map[string]decimal.Decimal, len(prices))
	for _, p := range prices {
		if p == nil {
			continue
		}
		priceMap[p.Symbol] = parseDecimal(p.Price)
	}
	snap := spotSnapshot(balances, priceMap)

	// Futures wallet is optional: keys without futures permission still report spot.
	fb, err := a.futures.NewGetBalanceService().Do(ctx)
	if err != nil {
		a.log.Warnf("futures balance unavailable: %v", err)
	} else {
		for _, b := range fb {
			if b == nil || b.Asset != quoteAsset {
				continue
			}
			wallet := parseDecimal(b.Balance).Add(parseDecimal(b.CrossUnPnl))
			if !wallet.IsPositive() {
				continue
			}
			snap.Holdings = append(snap.Holdings, exchange.Holding{
				Symbol:   futuresWalletSymbol,
				Name:     "USDⓈ-M futures wallet",
				Quantity: wallet,
				Value:    wallet,
			})
			snap.Total = snap.Total.Add(wallet)
		}
	}
	snap.Venue = venue.Binance
	snap.UpdatedAt = time.Now()
	return snap, nil
}

func (a *Adapter) FetchFree(ctx context.Context, asset string, isFutures bool) (exchange.Free, error) {
	asset = strings.ToUpper(strings.TrimSpace(asset))
	if isFutures {
		fb, err := a.futures.NewGetBalanceService().Do(ctx)
		if err != nil {
			return exchange.Free{}, a.remote("free balance", err)
		}
		for _, b := range fb {
			if b != nil && b.Asset == asset {
				return exchange.Free{Asset: asset, Amount: parseDecimal(b.AvailableBalance)}, nil
			}
		}
		return exchange.Free{Asset: asset, Amount: decimal.Zero}, nil
	}
	acct, err := a.spot.NewGetAccountService().Do(ctx)
	if err != nil {
		return exchange.Free{}, a.remote("free balance", err)
	}
	for _, b := range acct.Balances {
		if b.Asset == asset {
			return exchange.Free{Asset: asset, Amount: parseDecimal(b.Free)}, nil
		}
	}
	return exchange.Free{Asset: asset, Amount: decimal.Zero}, nil
}

func (a *Adapter) FetchPrice(ctx context.Context, inst order.Instrument) (exchange.PriceQuote, error) {
	sym := symbolpkg.Binance.ToExchange(inst.Symbol())
	if sym == "" {
		return exchange.PriceQuote{}, errs.Validation("symbol", "invalid instrument %q", inst.Symbol())
	}
	var raw string
	if inst.Futures {
		if inst.CoinMargined {
			return exchange.PriceQuote{}, errs.Remote(venue.Binance, "price", errCoinMargined)
		}
		res, err := a.futures.NewListPricesService().Symbol(sym).Do(ctx)
		if err != nil {
			return exchange.PriceQuote{}, a.remote("price", err)
		}
		for _, p := range res {
			if p != nil && p.Symbol == sym {
				raw = p.Price
			}
		}
	} else {
		res, err := a.spot.NewListPricesService().Symbol(sym).Do(ctx)
		if err != nil {
			return exchange.PriceQuote{}, a.remote("price", err)
		}
		for _, p := range res {
			if p != nil && p.Symbol == sym {
				raw = p.Price
			}
		}
	}
	last := parseDecimal(raw)
	if !last.IsPositive() {
		return exchange.PriceQuote{}, errs.RemoteCode(venue.Binance, "price", "", "no price for "+sym)
	}
	return exchange.PriceQuote{
		Venue:     venue.Binance,
		Symbol:    inst.Symbol(),
		Last:      last,
		Currency:  inst.Quote,
		UpdatedAt: time.Now(),
	}, nil
}

func (a *Adapter) PlaceOrder(ctx context.Context, o order.CanonicalOrder) (exchange.OrderResult, error) {
	if !o.IsCrypto() {
		return exchange.OrderResult{}, errs.Validation("exchange", "BINANCE only routes crypto orders")
	}
	if o.IsCoinMargined() {
		return exchange.OrderResult{}, errs.Remote(venue.Binance, "order", errCoinMargined)
	}
	if o.IsFutures() {
		return a.placeFutures(ctx, o)
	}
	return a.placeSpot(ctx, o)
}

func (a *Adapter) placeSpot(ctx context.Context, o order.CanonicalOrder) (exchange.OrderResult, error) {
	sym := symbolpkg.Binance.ToExchange(o.Symbol())
	clientID := newClientOrderID()
	svc := a.spot.NewCreateOrderService().
		Symbol(sym).
		Side(spotSide(o.Side())).
		NewClientOrderID(clientID)

	switch {
	case o.Kind() == order.Limit:
		qty, err := a.amountFor(ctx, o)
		if err != nil {
			return exchange.OrderResult{}, err
		}
		svc = svc.Type(gobinance.OrderTypeLimit).
			TimeInForce(gobinance.TimeInForceTypeGTC).
			Quantity(qty.String()).
			Price(o.Price().Decimal().String())
	case o.Cost().IsSet():
		// Market orders sized by cost go through quoteOrderQty on both sides.
		svc = svc.Type(gobinance.OrderTypeMarket).QuoteOrderQty(o.Cost().Decimal().String())
	default:
		svc = svc.Type(gobinance.OrderTypeMarket).Quantity(o.Amount().Decimal().String())
	}
	res, err := svc.Do(ctx)
	if err != nil {
		return exchange.OrderResult{}, a.remote("order", err)
	}
	return exchange.OrderResult{
		Venue:         venue.Binance,
		Symbol:        o.Symbol(),
		OrderID:       strconv.FormatInt(res.OrderID, 10),
		ClientOrderID: res.ClientOrderID,
		Side:          o.Side(),
		Kind:          o.Kind(),
		Amount:        parseDecimal(res.ExecutedQuantity),
		Cost:          parseDecimal(res.CummulativeQuoteQuantity),
		Price:         parseDecimal(res.Price),
		Status:        string(res.Status),
	}, nil
}

func (a *Adapter) placeFutures(ctx context.Context, o order.CanonicalOrder) (exchange.OrderResult, error) {
	sym := symbolpkg.Binance.ToExchange(o.Symbol())
	qty, err := a.amountFor(ctx, o)
	if err != nil {
		return exchange.OrderResult{}, err
	}
	if o.Leverage().IsSet() && !o.IsClose() {
		lev := int(o.Leverage().Decimal().IntPart())
		if lev > 0 {
			if _, err := a.futures.NewChangeLeverageService().Symbol(sym).Leverage(lev).Do(ctx); err != nil {
				return exchange.OrderResult{}, a.remote("leverage", err)
			}
		}
	}
	svc := a.futures.NewCreateOrderService().
		Symbol(sym).
		Side(futuresSide(o.Side())).
		Quantity(qty.String()).
		NewClientOrderID(newClientOrderID())
	if o.Kind() == order.Limit {
		svc = svc.Type(futures.OrderTypeLimit).
			TimeInForce(futures.TimeInForceTypeGTC).
			Price(o.Price().Decimal().String())
	} else {
		svc = svc.Type(futures.OrderTypeMarket)
	}
	if o.IsClose() {
		svc = svc.ReduceOnly(true)
	}
	res, err := svc.Do(ctx)
	if err != nil {
		return exchange.OrderResult{}, a.remote("order", err)
	}
	return exchange.OrderResult{
		Venue:         venue.Binance,
		Symbol:        o.Symbol(),
		OrderID:       strconv.FormatInt(res.OrderID, 10),
		ClientOrderID: res.ClientOrderID,
		Side:          o.Side(),
		Kind:          o.Kind(),
		Amount:        parseDecimal(res.OrigQuantity),
		Price:         parseDecimal(res.Price),
		Status:        string(res.Status),
	}, nil
}

// amountFor returns the base quantity; cost is converted at the current price.
func (a *Adapter) amountFor(ctx context.Context, o order.CanonicalOrder) (decimal.Decimal, error) {
	if o.Amount().IsSet() {
		return o.Amount().Decimal(), nil
	}
	if !o.Cost().IsSet() {
		return decimal.Zero, errs.Validation("amount", "amount or cost is required")
	}
	q, err := a.FetchPrice(ctx, o.Instrument())
	if err != nil {
		return decimal.Zero, err
	}
	return costToAmount(o.Cost().Decimal(), q.Last), nil
}

func (a *Adapter) CancelOrder(ctx context.Context, req exchange.CancelRequest) error {
	id, err := strconv.ParseInt(strings.TrimSpace(req.OrderID), 10, 64)
	if err != nil {
		return errs.Validation("order_id", "not a Binance order id: %q", req.OrderID)
	}
	sym := symbolpkg.Binance.ToExchange(req.Instrument.Symbol())
	if req.Instrument.Futures {
		_, err = a.futures.NewCancelOrderService().Symbol(sym).OrderID(id).Do(ctx)
	} else {
		_, err = a.spot.NewCancelOrderService().Symbol(sym).OrderID(id).Do(ctx)
	}
	if err != nil {
		return a.remote("cancel", err)
	}
	return nil
}

// remote converts a go-binance API error into a RemoteCallError with its code.
func (a *Adapter) remote(op string, err error) error {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		return errs.RemoteCode(venue.Binance, op, strconv.FormatInt(apiErr.Code, 10), apiErr.Message)
	}
	return errs.AsRemote(venue.Binance, op, err)
}

func newClientOrderID() string {
	return "poa-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:24]
}

func spotSide(s order.Side) gobinance.SideType {
	if s == order.Sell {
		return gobinance.SideTypeSell
	}
	return gobinance.SideTypeBuy
}

func futuresSide(s order.Side) futures.SideType {
	if s == order.Sell {
		return futures.SideTypeSell
	}
	return futures.SideTypeBuy
}
