package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	obstracing "github.com/revolutionai/storefront/internal/observability/tracing"
	orderdomain "github.com/revolutionai/storefront/internal/order/domain"
	"github.com/revolutionai/storefront/internal/providers/pdf"
	"github.com/revolutionai/storefront/pkg/db/pagination"
	"go.uber.org/zap"
)

const maxExpireBatch = 1000

type orderStatusResponse struct {
	OrderID       string             `json:"orderId"`
	Status        orderdomain.Status `json:"status"`
	PaymentMethod string             `json:"paymentMethod"`
	ProductName   string             `json:"productName"`
}

type orderDetailResponse struct {
	Order   orderdomain.Order         `json:"order"`
	History []orderdomain.StatusEntry `json:"history"`
}

type expireStaleRequest struct {
	OlderThan string `json:"older_than"`
	Limit     int    `json:"limit"`
}

// GetOrderStatus is polled by the payment result page. It exposes no customer details.
func (s *Server) GetOrderStatus(c *gin.Context) {
	id, ok := parseOrderID(c)
	if !ok {
		return
	}

	order, err := s.orders.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, orderStatusResponse{
		OrderID:       order.ID.String(),
		Status:        order.Status,
		PaymentMethod: order.PaymentMethod,
		ProductName:   order.ProductName,
	})
}

func (s *Server) ListOrders(c *gin.Context) {
	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	createdFrom, err := parseOptionalTime(c.Query("created_from"), false)
	if err != nil {
		AbortWithError(c, newValidationError("created_from", "invalid_time", "created_from must be RFC3339 or YYYY-MM-DD"))
		return
	}
	createdTo, err := parseOptionalTime(c.Query("created_to"), true)
	if err != nil {
		AbortWithError(c, newValidationError("created_to", "invalid_time", "created_to must be RFC3339 or YYYY-MM-DD"))
		return
	}

	resp, err := s.orders.List(c.Request.Context(), orderdomain.ListRequest{
		Status:        strings.TrimSpace(c.Query("status")),
		PaymentMethod: strings.TrimSpace(c.Query("payment_method")),
		Email:         strings.TrimSpace(c.Query("email")),
		CreatedFrom:   createdFrom,
		CreatedTo:     createdTo,
		Pagination:    page,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) GetOrder(c *gin.Context) {
	id, ok := parseOrderID(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	order, err := s.orders.Get(ctx, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	history, err := s.orders.History(ctx, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if history == nil {
		history = []orderdomain.StatusEntry{}
	}

	c.JSON(http.StatusOK, orderDetailResponse{Order: order, History: history})
}

func (s *Server) GetOrderReceipt(c *gin.Context) {
	id, ok := parseOrderID(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	order, err := s.orders.Get(ctx, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	data, err := pdf.ReceiptFromOrder(order, s.cfg.Email.FromName, s.cfg.Email.FromEmail)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	body, err := s.receipts.GenerateReceipt(ctx, data)
	if err != nil {
		s.log.Error("render receipt failed", zap.String("order_id", order.ID.String()), zap.Error(err))
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="receipt-%s.pdf"`, order.ID.String()))
	c.Data(http.StatusOK, "application/pdf", body)
}

// ExpireStaleOrders runs one sweep pass on demand. Defaults come from the sweeper configuration.
func (s *Server) ExpireStaleOrders(c *gin.Context) {
	var req expireStaleRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	olderThan := s.cfg.Sweeper.PendingTTL
	if raw := strings.TrimSpace(req.OlderThan); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			AbortWithError(c, newValidationError("older_than", "invalid_duration", "older_than must be a positive duration such as 26h"))
			return
		}
		olderThan = parsed
	}
	if olderThan <= 0 {
		olderThan = 26 * time.Hour
	}

	limit := req.Limit
	if limit <= 0 {
		limit = s.cfg.Sweeper.BatchSize
	}
	switch {
	case limit <= 0:
		limit = 100
	case limit > maxExpireBatch:
		limit = maxExpireBatch
	}

	result, err := s.orders.ExpireStale(c.Request.Context(), olderThan, limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.log.Info("stale orders expired on demand",
		zap.Duration("older_than", olderThan),
		zap.Int("scanned", result.Scanned),
		zap.Int("expired", result.Expired),
	)
	c.JSON(http.StatusOK, gin.H{
		"scanned":    result.Scanned,
		"expired":    result.Expired,
		"older_than": olderThan.String(),
		"limit":      limit,
	})
}

func parseOrderID(c *gin.Context) (snowflake.ID, bool) {
	id, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil || id <= 0 {
		AbortWithError(c, ErrNotFound)
		return 0, false
	}
	c.Set(obstracing.OrderIDKey, id.String())
	return id, true
}
