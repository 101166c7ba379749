package webhookhttp

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"poa/internal/assets"
	"poa/internal/execution"
	"poa/internal/gateway/exchange"
	"poa/internal/logger"
	"poa/internal/order"
)

// OrderService is implemented by execution.Service.
type OrderService interface {
	Execute(ctx context.Context, req order.GenericOrderRequest) (execution.Outcome, error)
	Price(ctx context.Context, req order.GenericOrderRequest) (exchange.PriceQuote, error)
}

// AssetService produces the aggregated report on demand.
type AssetService interface {
	Report(ctx context.Context) assets.Report
}

// Authorizer checks the operator password on non-order endpoints.
type Authorizer interface {
	Authorized(password string) bool
}

// ServerConfig 描述 webhook HTTP 服务依赖。
type ServerConfig struct {
	Addr   string
	Orders OrderService
	Assets AssetService
	Auth   Authorizer
	// Whitelist limits POST /order to these client IPs. Empty allows everyone.
	Whitelist      []string
	TrustedProxies []string
}

// Server 提供 webhook 下单、价格和资产查询接口。
type Server struct {
	addr   string
	router *gin.Engine
}

func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Orders == nil {
		return nil, errors.New("webhook server requires an order service")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8000"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	if err := router.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, err
	}
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/hi", func(c *gin.Context) { c.String(http.StatusOK, "hello") })
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	h, err := newHandler(cfg)
	if err != nil {
		return nil, err
	}
	h.register(router)
	return &Server{addr: cfg.Addr, router: router}, nil
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.addr
}

// Start 启动 HTTP 服务，直到 ctx 取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	srv := &http.Server{Addr: s.addr, Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		logger.Infof("webhook 监听 %s", s.addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debugf("HTTP %s %s status=%d ip=%s dur=%s", c.Request.Method, c.Request.URL.Path,
			c.Writer.Status(), c.ClientIP(), time.Since(start))
	}
}
