// Package execution runs one webhook order end to end: normalize, resolve the
// venue, size percent orders, place, then journal and notify.
package execution

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"poa/internal/errs"
	"poa/internal/gateway/exchange"
	"poa/internal/gateway/notifier"
	"poa/internal/logger"
	"poa/internal/order"
	"poa/internal/store/gormstore"
	"poa/internal/venue"
)

// Resolver hands out the adapter for a venue.
type Resolver interface {
	Resolve(ctx context.Context, id venue.ID) (exchange.Adapter, error)
}

// Journal records every normalized order attempt.
type Journal interface {
	AppendOrderLog(ctx context.Context, rec gormstore.OrderLogRecord) error
}

type Options struct {
	Journal  Journal
	Notifier notifier.Notifier
	// SideEffectTimeout bounds journaling and notification after the venue answered.
	SideEffectTimeout time.Duration
}

type Service struct {
	normalizer *order.Normalizer
	venues     Resolver
	journal    Journal
	notify     notifier.Notifier
	sideTO     time.Duration
	newID      func() string
}

func NewService(n *order.Normalizer, venues Resolver, opts Options) *Service {
	s := &Service{
		normalizer: n,
		venues:     venues,
		journal:    opts.Journal,
		notify:     opts.Notifier,
		sideTO:     opts.SideEffectTimeout,
		newID:      uuid.NewString,
	}
	if s.notify == nil {
		s.notify = notifier.Nop{}
	}
	if s.sideTO <= 0 {
		s.sideTO = 10 * time.Second
	}
	return s
}

// Outcome is the result of one executed order.
type Outcome struct {
	RequestID string               `json:"request_id"`
	Order     order.CanonicalOrder `json:"-"`
	Result    exchange.OrderResult `json:"result"`
}

// Execute places req. A password mismatch is rejected before anything is
// resolved or recorded.
func (s *Service) Execute(ctx context.Context, req order.GenericOrderRequest) (Outcome, error) {
	out := Outcome{RequestID: s.newID()}
	o, err := s.normalizer.Normalize(req)
	if err != nil {
		if errors.Is(err, errs.ErrAuthentication) {
			logger.Warnf("order %s 口令错误, 已拒绝", out.RequestID)
		}
		return out, err
	}
	out.Order = o
	log := logger.Venue(string(o.Venue()))
	log.Infof("order %s 收到 %s %s %s", out.RequestID, o.Symbol(), sideOf(o), o.Kind())

	res, err := s.place(ctx, o)
	if err != nil {
		log.Warnf("order %s 失败: %v", out.RequestID, err)
		s.record(ctx, out.RequestID, req, o, exchange.OrderResult{}, err)
		return out, err
	}
	out.Result = res
	log.Infof("order %s 已提交 id=%s amount=%s cost=%s", out.RequestID, res.OrderID, res.Amount, res.Cost)
	s.record(ctx, out.RequestID, req, o, res, nil)
	return out, nil
}

func (s *Service) place(ctx context.Context, o order.CanonicalOrder) (exchange.OrderResult, error) {
	a, err := s.venues.Resolve(ctx, o.Venue())
	if err != nil {
		return exchange.OrderResult{}, err
	}
	if o.Percent().IsSet() {
		if o, err = resolvePercent(ctx, a, o); err != nil {
			return exchange.OrderResult{}, err
		}
	}
	return a.PlaceOrder(ctx, o)
}

// Price looks up the last price of the instrument named by req.
func (s *Service) Price(ctx context.Context, req order.GenericOrderRequest) (exchange.PriceQuote, error) {
	inst, err := order.ParseInstrument(req)
	if err != nil {
		return exchange.PriceQuote{}, err
	}
	a, err := s.venues.Resolve(ctx, inst.Venue)
	if err != nil {
		return exchange.PriceQuote{}, err
	}
	return a.FetchPrice(ctx, inst)
}

// record journals and notifies on a context detached from the caller so a
// client hanging up does not drop the audit trail.
func (s *Service) record(ctx context.Context, id string, req order.GenericOrderRequest, o order.CanonicalOrder, res exchange.OrderResult, placeErr error) {
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.sideTO)
	defer cancel()

	if s.journal != nil {
		rec := gormstore.OrderLogRecord{
			RequestID: id,
			Venue:     string(o.Venue()),
			Symbol:    o.Symbol(),
			Side:      sideOf(o),
			Kind:      string(o.Kind()),
			Amount:    o.Amount().String(),
			Cost:      o.Cost().String(),
			Price:     o.Price().String(),
			OrderID:   res.OrderID,
			Status:    gormstore.OrderLogPlaced,
			Payload:   redacted(req),
		}
		if placeErr != nil {
			rec.Status = gormstore.OrderLogFailed
			rec.Error = placeErr.Error()
		} else {
			if !res.Amount.IsZero() {
				rec.Amount = res.Amount.String()
			}
			if !res.Cost.IsZero() {
				rec.Cost = res.Cost.String()
			}
		}
		if err := s.journal.AppendOrderLog(sctx, rec); err != nil {
			logger.Warnf("order %s 写入日志失败: %v", id, err)
		}
	}

	msg := notifier.OrderPlaced(o, res, id)
	if placeErr != nil {
		msg = notifier.OrderFailed(o, placeErr, id)
	}
	if err := s.notify.Notify(sctx, msg); err != nil {
		logger.Warnf("order %s 通知发送失败: %v", id, err)
	}
}

func redacted(req order.GenericOrderRequest) []byte {
	req.Password = ""
	b, err := json.Marshal(req)
	if err != nil {
		return nil
	}
	return b
}

func sideOf(o order.CanonicalOrder) string {
	switch {
	case o.IsEntry():
		return "entry/" + string(o.Side())
	case o.IsClose():
		return "close/" + string(o.Side())
	}
	return string(o.Side())
}
