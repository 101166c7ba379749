package kis

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"poa/internal/errs"
	"poa/internal/gateway/exchange"
)

// overseasQueryMarkets are the exchange codes the overseas balance is read from.
var overseasQueryMarkets = []string{"NYS", "NAS", "AMS"}

type domesticBalance struct {
	total    decimal.Decimal
	deposit  decimal.Decimal
	holdings []exchange.Holding
}

// FetchBalance returns the domestic holdings with the KRW total, plus the
// overseas holdings as a USD sub-total. An overseas market that fails is
// logged and skipped.
func (a *Adapter) FetchBalance(ctx context.Context) (exchange.BalanceSnapshot, error) {
	dom, err := a.domesticBalance(ctx)
	if err != nil {
		return exchange.BalanceSnapshot{}, err
	}
	overseas := &exchange.Overseas{TotalUSD: decimal.Zero}
	for _, code := range overseasQueryMarkets {
		holdings, err := a.overseasBalance(ctx, code)
		if err != nil {
			a.log.Warnf("overseas balance %s failed: %v", code, err)
			continue
		}
		for _, h := range holdings {
			overseas.TotalUSD = overseas.TotalUSD.Add(h.Value)
		}
		overseas.Holdings = append(overseas.Holdings, holdings...)
	}
	domestic := dom.total
	return exchange.BalanceSnapshot{
		Venue:     a.Name(),
		Currency:  "KRW",
		Total:     dom.total,
		Holdings:  dom.holdings,
		Domestic:  &domestic,
		Overseas:  overseas,
		UpdatedAt: time.Now(),
	}, nil
}

func (a *Adapter) domesticBalance(ctx context.Context) (domesticBalance, error) {
	q := accountQuery(a.cfg)
	q.Set("AFHR_FLNG_YN", "N")
	q.Set("OFL_YN", "")
	q.Set("INQR_DVSN", "02")
	q.Set("UNPR_DVSN", "01")
	q.Set("FUND_STTL_ICLD_YN", "N")
	q.Set("FNCG_AMT_AUTO_RDPT_YN", "N")
	q.Set("PRCS_DVSN", "00")
	q.Set("CTX_AREA_FK100", "")
	q.Set("CTX_AREA_NK100", "")
	res, err := a.do(ctx, call{
		op:     "balance",
		method: http.MethodGet,
		path:   pathDomesticBalance,
		trID:   trDomesticBalance,
		query:  q,
	})
	if err != nil {
		return domesticBalance{}, err
	}
	return parseDomesticBalance(res), nil
}

func parseDomesticBalance(res gjson.Result) domesticBalance {
	var out domesticBalance
	sum := decimal.Zero
	for _, item := range res.Get("output1").Array() {
		qty := decimalOf(item.Get("hldg_qty"))
		if !qty.IsPositive() {
			continue
		}
		value := decimalOf(item.Get("evlu_amt"))
		sum = sum.Add(value)
		out.holdings = append(out.holdings, exchange.Holding{
			Symbol:   item.Get("pdno").String(),
			Name:     strings.TrimSpace(item.Get("prdt_name").String()),
			Quantity: qty,
			Value:    value,
		})
	}
	summary := res.Get("output2.0")
	if tot := summary.Get("tot_evlu_amt"); tot.Exists() && tot.String() != "" {
		out.total = decimalOf(tot)
	} else {
		out.total = sum
	}
	out.deposit = decimalOf(summary.Get("dnca_tot_amt"))
	return out
}

func (a *Adapter) overseasBalance(ctx context.Context, market string) ([]exchange.Holding, error) {
	q := accountQuery(a.cfg)
	q.Set("OVRS_EXCG_CD", market)
	q.Set("TR_CRCY_CD", "USD")
	q.Set("CTX_AREA_FK200", "")
	q.Set("CTX_AREA_NK200", "")
	res, err := a.do(ctx, call{
		op:     "overseas balance",
		method: http.MethodGet,
		path:   pathOverseasBalance,
		trID:   trOverseasBalance,
		query:  q,
	})
	if err != nil {
		return nil, err
	}
	return parseOverseasHoldings(res), nil
}

func parseOverseasHoldings(res gjson.Result) []exchange.Holding {
	var out []exchange.Holding
	for _, item := range res.Get("output1").Array() {
		qty := decimalOf(item.Get("ovrs_cblc_qty"))
		if !qty.IsPositive() {
			continue
		}
		out = append(out, exchange.Holding{
			Symbol:   item.Get("ovrs_pdno").String(),
			Name:     strings.TrimSpace(item.Get("ovrs_item_name").String()),
			Quantity: qty,
			Value:    decimalOf(item.Get("frcr_evlu_amt")),
		})
	}
	return out
}

// FetchFree reports the KRW deposit, or the held quantity of a ticker.
func (a *Adapter) FetchFree(ctx context.Context, asset string, _ bool) (exchange.Free, error) {
	asset = strings.ToUpper(strings.TrimSpace(asset))
	if asset == "USD" {
		// 海外买入力需要按标的单独查询，这里不支持；属于请求问题，不计入熔断
		return exchange.Free{}, errs.Validation("percent", "%s has no USD buying power query, size US buys by amount", a.Name())
	}
	dom, err := a.domesticBalance(ctx)
	if err != nil {
		return exchange.Free{}, err
	}
	if asset == "KRW" {
		return exchange.Free{Asset: asset, Amount: dom.deposit}, nil
	}
	for _, h := range dom.holdings {
		if h.Symbol == asset {
			return exchange.Free{Asset: asset, Amount: h.Quantity}, nil
		}
	}
	for _, code := range overseasQueryMarkets {
		holdings, err := a.overseasBalance(ctx, code)
		if err != nil {
			return exchange.Free{}, err
		}
		for _, h := range holdings {
			if h.Symbol == asset {
				return exchange.Free{Asset: asset, Amount: h.Quantity}, nil
			}
		}
	}
	return exchange.Free{Asset: asset, Amount: decimal.Zero}, nil
}

func decimalOf(r gjson.Result) decimal.Decimal {
	s := strings.ReplaceAll(strings.TrimSpace(r.String()), ",", "")
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
