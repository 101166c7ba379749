package webhookhttp

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"poa/internal/errs"
	"poa/internal/logger"
	"poa/internal/order"
)

type handler struct {
	orders    OrderService
	assets    AssetService
	auth      Authorizer
	whitelist map[string]struct{}
	orderSch  *jsonschema.Schema
	priceSch  *jsonschema.Schema
}

func newHandler(cfg ServerConfig) (*handler, error) {
	orderSch, err := compileSchema("order.json", orderSchema)
	if err != nil {
		return nil, err
	}
	priceSch, err := compileSchema("price.json", priceSchema)
	if err != nil {
		return nil, err
	}
	h := &handler{
		orders:   cfg.Orders,
		assets:   cfg.Assets,
		auth:     cfg.Auth,
		orderSch: orderSch,
		priceSch: priceSch,
	}
	if len(cfg.Whitelist) > 0 {
		h.whitelist = make(map[string]struct{}, len(cfg.Whitelist))
		for _, ip := range cfg.Whitelist {
			if ip = strings.TrimSpace(ip); ip != "" {
				h.whitelist[ip] = struct{}{}
			}
		}
	}
	return h, nil
}

func (h *handler) register(r *gin.Engine) {
	r.POST("/order", h.allowIP, h.handleOrder)
	r.POST("/price", h.handlePrice)
	if h.assets != nil {
		r.POST("/assets", h.handleAssets)
	}
}

func (h *handler) allowIP(c *gin.Context) {
	if h.whitelist == nil {
		return
	}
	ip := c.ClientIP()
	if parsed := net.ParseIP(ip); parsed != nil && parsed.IsLoopback() {
		return
	}
	if _, ok := h.whitelist[ip]; ok {
		return
	}
	logger.Warnf("[webhook] 拒绝非白名单 ip=%s", ip)
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "ip not allowed"})
}

func (h *handler) handleOrder(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := validateJSON(h.orderSch, body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": errs.ErrValidation.Error()})
		return
	}
	var req order.GenericOrderRequest
	if err := json.Unmarshal(body, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": errs.ErrValidation.Error()})
		return
	}
	out, err := h.orders.Execute(c.Request.Context(), req)
	if err != nil {
		writeError(c, err, gin.H{"request_id": out.RequestID})
		return
	}
	c.JSON(http.StatusOK, out)
}

type priceRequest struct {
	Exchange string       `json:"exchange"`
	Base     string       `json:"base"`
	Quote    string       `json:"quote"`
	Index    order.Number `json:"kis_number"`
	Password string       `json:"password"`
}

func (h *handler) handlePrice(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := validateJSON(h.priceSch, body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": errs.ErrValidation.Error()})
		return
	}
	var req priceRequest
	if err := json.Unmarshal(body, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !h.authorized(c, req.Password) {
		return
	}
	q, err := h.orders.Price(c.Request.Context(), order.GenericOrderRequest{
		Exchange: req.Exchange, Base: req.Base, Quote: req.Quote, BrokerAccountIndex: req.Index,
	})
	if err != nil {
		writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, q)
}

func (h *handler) handleAssets(c *gin.Context) {
	var req struct {
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !h.authorized(c, req.Password) {
		return
	}
	c.JSON(http.StatusOK, h.assets.Report(c.Request.Context()))
}

func (h *handler) authorized(c *gin.Context, password string) bool {
	if h.auth == nil || h.auth.Authorized(password) {
		return true
	}
	c.JSON(http.StatusUnauthorized, gin.H{"error": "password mismatch", "kind": errs.ErrAuthentication.Error()})
	return false
}

// statusOf maps the error taxonomy onto HTTP codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, errs.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, errs.ErrAuthentication):
		return http.StatusUnauthorized
	case errors.Is(err, errs.ErrVenueUnavailable):
		return http.StatusNotFound
	case errors.Is(err, errs.ErrVenueInit), errors.Is(err, errs.ErrRemoteCall):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeError(c *gin.Context, err error, extra gin.H) {
	body := gin.H{"error": err.Error()}
	if k := errs.Kind(err); k != nil {
		body["kind"] = k.Error()
	}
	for k, v := range extra {
		body[k] = v
	}
	c.JSON(statusOf(err), body)
}
