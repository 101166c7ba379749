// Package fx resolves the USD/KRW rate used to value overseas brokerage holdings.
//
// Sources are tried in order: the Korea Eximbank open API, the Naver market
// index page, and finally a fixed constant. Resolve never fails.
package fx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"poa/internal/logger"
)

const (
	DefaultEximURL  = "https://www.koreaexim.go.kr/site/program/financial/exchangeJSON"
	DefaultNaverURL = "https://finance.naver.com/marketindex/"
	DefaultCacheTTL = 10 * time.Minute

	naverSelector = "#exchangeList > li.on > a.head.usd > div > span.value"
)

// FallbackRate is used when every live source fails.
var FallbackRate = decimal.NewFromInt(1350)

// Source names recorded on a Rate.
const (
	SourceExim     = "koreaexim"
	SourceNaver    = "naver"
	SourceFallback = "fallback"
)

// Rate is KRW per 1 USD.
type Rate struct {
	Value      decimal.Decimal `json:"value"`
	IsFallback bool            `json:"is_fallback"`
	Source     string          `json:"source"`
	FetchedAt  time.Time       `json:"fetched_at"`
}

type Config struct {
	EximAuthKey string
	EximURL     string
	NaverURL    string
	Fallback    decimal.Decimal
	CacheTTL    time.Duration
	Timeout     time.Duration
}

func (c Config) withDefaults() Config {
	out := c
	if strings.TrimSpace(out.EximURL) == "" {
		out.EximURL = DefaultEximURL
	}
	if strings.TrimSpace(out.NaverURL) == "" {
		out.NaverURL = DefaultNaverURL
	}
	if !out.Fallback.IsPositive() {
		out.Fallback = FallbackRate
	}
	if out.CacheTTL == 0 {
		out.CacheTTL = DefaultCacheTTL
	}
	if out.Timeout <= 0 {
		out.Timeout = 8 * time.Second
	}
	return out
}

// Resolver caches the last live rate for CacheTTL. Fallback rates are never cached.
type Resolver struct {
	cfg    Config
	client *http.Client
	now    func() time.Time

	mu     sync.Mutex
	cached Rate
}

func NewResolver(cfg Config) *Resolver {
	final := cfg.withDefaults()
	return &Resolver{
		cfg:    final,
		client: &http.Client{Timeout: final.Timeout},
		now:    time.Now,
	}
}

// SetHTTPClient sets the HTTP client for testing.
func (r *Resolver) SetHTTPClient(c *http.Client) { r.client = c }

func (r *Resolver) Resolve(ctx context.Context) Rate {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	if r.cfg.CacheTTL > 0 && !r.cached.FetchedAt.IsZero() && now.Sub(r.cached.FetchedAt) < r.cfg.CacheTTL {
		return r.cached
	}

	v, err := r.fromExim(ctx, now)
	if err == nil {
		return r.remember(Rate{Value: v, Source: SourceExim, FetchedAt: now})
	}
	logger.Warnf("进出口银行汇率获取失败: %v", err)

	v, err = r.fromNaver(ctx)
	if err == nil {
		return r.remember(Rate{Value: v, Source: SourceNaver, FetchedAt: now})
	}
	logger.Warnf("naver 汇率抓取失败: %v", err)

	logger.Warnf("all fx sources failed, using fixed rate %s", r.cfg.Fallback)
	return Rate{Value: r.cfg.Fallback, IsFallback: true, Source: SourceFallback, FetchedAt: now}
}

func (r *Resolver) remember(rate Rate) Rate {
	r.cached = rate
	return rate
}

var errNoAuthKey = errors.New("eximbank auth key not configured")

func (r *Resolver) fromExim(ctx context.Context, now time.Time) (decimal.Decimal, error) {
	key := strings.TrimSpace(r.cfg.EximAuthKey)
	if key == "" {
		return decimal.Zero, errNoAuthKey
	}
	u, err := url.Parse(r.cfg.EximURL)
	if err != nil {
		return decimal.Zero, err
	}
	q := u.Query()
	q.Set("authkey", key)
	q.Set("searchdate", now.Format("20060102"))
	q.Set("data", "AP01")
	u.RawQuery = q.Encode()

	body, err := r.get(ctx, u.String(), nil)
	if err != nil {
		return decimal.Zero, err
	}
	return parseExim(body)
}

// parseExim reads the USD row, preferring tts over deal_bas_r.
func parseExim(body []byte) (decimal.Decimal, error) {
	if !gjson.ValidBytes(body) {
		return decimal.Zero, fmt.Errorf("eximbank: response is not JSON")
	}
	usd := gjson.GetBytes(body, `#(cur_unit=="USD")`)
	if !usd.Exists() {
		return decimal.Zero, fmt.Errorf("eximbank: no USD row")
	}
	raw := usd.Get("tts").String()
	if strings.TrimSpace(raw) == "" {
		raw = usd.Get("deal_bas_r").String()
	}
	return positiveRate(raw)
}

func (r *Resolver) fromNaver(ctx context.Context) (decimal.Decimal, error) {
	h := http.Header{}
	h.Set("User-Agent", "Mozilla/5.0")
	body, err := r.get(ctx, r.cfg.NaverURL, h)
	if err != nil {
		return decimal.Zero, err
	}
	return parseNaver(body)
}

func parseNaver(body []byte) (decimal.Decimal, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return decimal.Zero, fmt.Errorf("naver: %w", err)
	}
	sel := doc.Find(naverSelector).First()
	if sel.Length() == 0 {
		return decimal.Zero, fmt.Errorf("naver: usd quote not found")
	}
	return positiveRate(sel.Text())
}

func positiveRate(raw string) (decimal.Decimal, error) {
	s := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("bad rate %q", raw)
	}
	if !v.IsPositive() {
		return decimal.Zero, fmt.Errorf("non-positive rate %q", raw)
	}
	return v, nil
}

func (r *Resolver) get(ctx context.Context, endpoint string, h http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	for k, vs := range h {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("http %d", resp.StatusCode)
	}
	return body, nil
}
