package kis

import (
	"context"
	"net/http"
	"net/url"

	"github.com/tidwall/gjson"

	"poa/internal/errs"
	"poa/internal/gateway/rest"
	"poa/internal/venue"
)

const (
	codeTokenExpired = "EGW00123"

	pathTokenP          = "/oauth2/tokenP"
	pathInquireCcnl     = "/uapi/domestic-stock/v1/quotations/inquire-ccnl"
	pathDomesticBalance = "/uapi/domestic-stock/v1/trading/inquire-balance"
	pathOverseasBalance = "/uapi/overseas-stock/v1/trading/inquire-balance"
	pathDomesticOrder   = "/uapi/domestic-stock/v1/trading/order-cash"
	pathDomesticCancel  = "/uapi/domestic-stock/v1/trading/order-rvsecncl"
	pathOverseasOrder   = "/uapi/overseas-stock/v1/trading/order"
	pathOverseasCancel  = "/uapi/overseas-stock/v1/trading/order-rvsecncl"
	pathDomesticPrice   = "/uapi/domestic-stock/v1/quotations/inquire-price"
	pathOverseasPrice   = "/uapi/overseas-price/v1/quotations/price"

	trProbe           = "FHKST01010300"
	trDomesticBalance = "TTTC8434R"
	trOverseasBalance = "TTTS3012R"
	trDomesticBuy     = "TTTC0802U"
	trDomesticSell    = "TTTC0801U"
	trDomesticCancel  = "TTTC0803U"
	trOverseasBuy     = "JTTT1002U"
	trOverseasSell    = "JTTT1006U"
	trOverseasCancel  = "JTTT1004U"
	trDomesticPrice   = "FHKST01010100"
	trOverseasPrice   = "HHDFS00000300"
)

// call is one authenticated request.
type call struct {
	op     string
	method string
	path   string
	trID   string
	query  url.Values
	body   any
}

// send performs c with token and checks the rt_cd envelope.
func send(ctx context.Context, rc *rest.Client, cfg Config, token string, c call) (gjson.Result, error) {
	id := cfg.ID()
	h := http.Header{}
	h.Set("authorization", "Bearer "+token)
	h.Set("appkey", cfg.AppKey)
	h.Set("appsecret", cfg.AppSecret)
	h.Set("tr_id", c.trID)
	h.Set("custtype", "P")
	resp, err := rc.Do(ctx, rest.Request{
		Method: c.method,
		Path:   c.path,
		Query:  c.query,
		Header: h,
		Body:   c.body,
	})
	if err != nil {
		return gjson.Result{}, errs.Remote(id, c.op, err)
	}
	res := resp.JSON()
	if err := envelopeError(id, c.op, resp.Status, res); err != nil {
		return res, err
	}
	return res, nil
}

// envelopeError maps a KIS reply to a RemoteCallError. rt_cd "0" is success.
func envelopeError(id venue.ID, op string, status int, res gjson.Result) error {
	rtCD := res.Get("rt_cd")
	msgCD := res.Get("msg_cd").String()
	if rtCD.Exists() && rtCD.String() == "0" && status < 300 {
		return nil
	}
	if !rtCD.Exists() && status < 300 {
		return nil
	}
	msg := res.Get("msg1").String()
	if msg == "" {
		msg = http.StatusText(status)
	}
	e := errs.RemoteCode(id, op, msgCD, msg)
	e.Stale = msgCD == codeTokenExpired
	return e
}

func accountQuery(cfg Config) url.Values {
	return url.Values{
		"CANO":         {cfg.AccountNumber},
		"ACNT_PRDT_CD": {cfg.AccountCode},
	}
}
