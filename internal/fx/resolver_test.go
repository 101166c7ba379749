package fx

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const naverPage = `<html><body>
<ul id="exchangeList">
  <li class="on"><a class="head usd" href="#"><h3>미국 USD</h3>
    <div class="head_info point_up"><span class="value">1,387.50</span><span class="txt_krw">원</span></div></a></li>
  <li><a class="head jpy" href="#"><div><span class="value">912.34</span></div></a></li>
</ul></body></html>`

type fxServer struct {
	eximHits  atomic.Int32
	naverHits atomic.Int32
	exim      string
	eximCode  int
	naver     string
	naverCode int
}

func (s *fxServer) start(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/exim", func(w http.ResponseWriter, r *http.Request) {
		s.eximHits.Add(1)
		assert.Equal(t, "AP01", r.URL.Query().Get("data"))
		assert.Equal(t, "k", r.URL.Query().Get("authkey"))
		if s.eximCode != 0 {
			w.WriteHeader(s.eximCode)
		}
		_, _ = io.WriteString(w, s.exim)
	})
	mux.HandleFunc("/naver", func(w http.ResponseWriter, r *http.Request) {
		s.naverHits.Add(1)
		if s.naverCode != 0 {
			w.WriteHeader(s.naverCode)
		}
		_, _ = io.WriteString(w, s.naver)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestResolver(srv *httptest.Server, key string) *Resolver {
	return NewResolver(Config{
		EximAuthKey: key,
		EximURL:     srv.URL + "/exim",
		NaverURL:    srv.URL + "/naver",
		CacheTTL:    -1,
	})
}

func TestResolvePrimary(t *testing.T) {
	s := &fxServer{exim: `[
		{"result":1,"cur_unit":"JPY(100)","tts":"921.11","deal_bas_r":"912.34"},
		{"result":1,"cur_unit":"USD","tts":"1,401.22","deal_bas_r":"1,387.50"}]`}
	srv := s.start(t)
	rate := newTestResolver(srv, "k").Resolve(context.Background())
	assert.Equal(t, SourceExim, rate.Source)
	assert.False(t, rate.IsFallback)
	assert.Equal(t, "1401.22", rate.Value.String())
	assert.Zero(t, s.naverHits.Load())
}

func TestResolveDealBaseWhenNoTTS(t *testing.T) {
	v, err := parseExim([]byte(`[{"cur_unit":"USD","tts":"","deal_bas_r":"1,380"}]`))
	require.NoError(t, err)
	assert.Equal(t, "1380", v.String())

	_, err = parseExim([]byte(`[{"cur_unit":"USD","tts":"0"}]`))
	assert.Error(t, err)
	_, err = parseExim([]byte(`[]`))
	assert.Error(t, err)
}

func TestResolveSecondaryIsNotFallback(t *testing.T) {
	s := &fxServer{exim: `[]`, naver: naverPage}
	srv := s.start(t)
	rate := newTestResolver(srv, "k").Resolve(context.Background())
	assert.Equal(t, SourceNaver, rate.Source)
	assert.False(t, rate.IsFallback)
	assert.Equal(t, "1387.5", rate.Value.String())
}

func TestMissingAuthKeySkipsPrimary(t *testing.T) {
	s := &fxServer{naver: naverPage}
	srv := s.start(t)
	rate := newTestResolver(srv, "").Resolve(context.Background())
	assert.Equal(t, SourceNaver, rate.Source)
	assert.Zero(t, s.eximHits.Load())
}

func TestResolveFallback(t *testing.T) {
	s := &fxServer{eximCode: http.StatusInternalServerError, exim: "oops", naverCode: http.StatusForbidden}
	srv := s.start(t)
	rate := newTestResolver(srv, "k").Resolve(context.Background())
	assert.True(t, rate.IsFallback)
	assert.Equal(t, SourceFallback, rate.Source)
	assert.True(t, rate.Value.Equal(decimal.NewFromInt(1350)))
}

func TestResolveCachesLiveRate(t *testing.T) {
	s := &fxServer{exim: `[{"cur_unit":"USD","tts":"1400"}]`}
	srv := s.start(t)
	r := NewResolver(Config{EximAuthKey: "k", EximURL: srv.URL + "/exim", NaverURL: srv.URL + "/naver"})
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	r.Resolve(context.Background())
	r.Resolve(context.Background())
	assert.Equal(t, int32(1), s.eximHits.Load())

	now = now.Add(DefaultCacheTTL + time.Second)
	r.Resolve(context.Background())
	assert.Equal(t, int32(2), s.eximHits.Load())
}
