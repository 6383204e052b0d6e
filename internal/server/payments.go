package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/revolutionai/storefront/internal/checkout"
	obstracing "github.com/revolutionai/storefront/internal/observability/tracing"
)

type createPaymentRequest struct {
	// Product is the catalog entry the page rendered. Only its id is trusted.
	Product *struct {
		ID string `json:"id"`
	} `json:"product"`
	ProductID     string            `json:"productId"`
	Customer      checkout.Customer `json:"customer"`
	PaymentMethod string            `json:"paymentMethod"`
}

func (r createPaymentRequest) productID() string {
	if r.Product != nil && strings.TrimSpace(r.Product.ID) != "" {
		return r.Product.ID
	}
	return r.ProductID
}

type createPaymentResponse struct {
	Success       bool   `json:"success"`
	OrderID       string `json:"orderId"`
	RedirectURL   string `json:"redirectUrl"`
	PaymentMethod string `json:"paymentMethod"`
	QRCode        string `json:"qrCode,omitempty"`
}

func (s *Server) CreatePayment(c *gin.Context) {
	var req createPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.checkout.CreateOrder(c.Request.Context(), checkout.Request{
		ProductID:     req.productID(),
		Customer:      req.Customer,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Set(obstracing.OrderIDKey, result.OrderID.String())
	c.Set(obstracing.PaymentMethodKey, string(result.PaymentMethod))
	c.JSON(http.StatusCreated, createPaymentResponse{
		Success:       true,
		OrderID:       result.OrderID.String(),
		RedirectURL:   result.RedirectURL,
		PaymentMethod: string(result.PaymentMethod),
		QRCode:        result.QRCode,
	})
}
