// Package rest is the HTTP plumbing shared by the REST venue adapters:
// endpoint resolution, rate limiting, and tolerant JSON extraction.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

type Config struct {
	BaseURL string
	Timeout time.Duration
	// RatePerSec <= 0 disables limiting.
	RatePerSec float64
	Burst      int
}

// Client wraps one venue's REST base URL.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewClient(cfg Config) (*Client, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		return nil, fmt.Errorf("base url 不能为空")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("解析 base url 失败: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	c := &Client{
		baseURL:    parsed,
		httpClient: &http.Client{Timeout: timeout},
	}
	if cfg.RatePerSec > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), burst)
	}
	return c, nil
}

// SetHTTPClient sets the HTTP client for testing.
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

func (c *Client) BaseURL() string { return c.baseURL.String() }

// Request describes one call. Body is JSON-encoded unless RawBody is set.
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Header  http.Header
	Body    any
	RawBody []byte
}

// Response is a fully read reply.
type Response struct {
	Status int
	Body   []byte
}

func (r Response) JSON() gjson.Result { return gjson.ParseBytes(r.Body) }

// HTTPError is a non-2xx reply whose body was not understood by the caller.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("http %d", e.Status)
	}
	return fmt.Sprintf("http %d: %s", e.Status, e.Body)
}

// EncodeBody returns the bytes Do will send for req.
func EncodeBody(req Request) ([]byte, error) {
	if req.RawBody != nil {
		return req.RawBody, nil
	}
	if req.Body == nil {
		return nil, nil
	}
	buf, err := json.Marshal(req.Body)
	if err != nil {
		return nil, fmt.Errorf("序列化请求失败: %w", err)
	}
	return buf, nil
}

// Do performs req and returns the body regardless of status. Transport errors
// and non-JSON error pages are returned as errors; callers inspect the JSON
// of everything else.
func (c *Client) Do(ctx context.Context, req Request) (Response, error) {
	if c == nil {
		return Response{}, fmt.Errorf("rest client 未初始化")
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return Response{}, err
		}
	}
	endpoint := c.resolveEndpoint(req.Path, req.Query)

	payload, err := EncodeBody(req)
	if err != nil {
		return Response{}, err
	}
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint.String(), body)
	if err != nil {
		return Response{}, fmt.Errorf("构造请求失败: %w", err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if payload != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json; charset=utf-8")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Response{}, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return Response{}, fmt.Errorf("读取响应失败: %w", err)
	}
	if resp.StatusCode >= 300 && !gjson.ValidBytes(data) {
		return Response{}, &HTTPError{Status: resp.StatusCode, Body: truncate(strings.TrimSpace(string(data)), 512)}
	}
	return Response{Status: resp.StatusCode, Body: data}, nil
}

func (c *Client) resolveEndpoint(path string, query url.Values) *url.URL {
	trimmed := strings.TrimSpace(path)
	if !strings.HasPrefix(trimmed, "/") {
		trimmed = "/" + trimmed
	}
	base := *c.baseURL
	base.Path = strings.TrimSuffix(base.Path, "/") + trimmed
	base.RawPath = ""
	base.RawQuery = query.Encode()
	base.Fragment = ""
	return &base
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
