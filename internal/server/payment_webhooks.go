package server

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	obstracing "github.com/revolutionai/storefront/internal/observability/tracing"
	paymentdomain "github.com/revolutionai/storefront/internal/payment/domain"
)

const maxWebhookBodyBytes = 1 << 20

type cryptoWebhookResponse struct {
	Result int `json:"result"`
}

func (s *Server) HandleCardWebhook(c *gin.Context) {
	c.Set(obstracing.PaymentMethodKey, string(paymentdomain.MethodCard))
	payload, err := readWebhookBody(c)
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := s.webhooks.Reconcile(c.Request.Context(), string(paymentdomain.MethodCard), payload, c.Request.Header); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

// HandleCryptoWebhook answers in the backend's own envelope: result 0 stops
// redelivery, result 1 with a non-2xx status asks for it.
func (s *Server) HandleCryptoWebhook(c *gin.Context) {
	c.Set(obstracing.PaymentMethodKey, string(paymentdomain.MethodCrypto))
	payload, err := readWebhookBody(c)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusBadRequest, cryptoWebhookResponse{Result: 1})
		return
	}

	if err := s.webhooks.Reconcile(c.Request.Context(), string(paymentdomain.MethodCrypto), payload, c.Request.Header); err != nil {
		status, _ := mapError(err)
		_ = c.Error(err)
		c.JSON(status, cryptoWebhookResponse{Result: 1})
		return
	}

	c.JSON(http.StatusOK, cryptoWebhookResponse{Result: 0})
}

func readWebhookBody(c *gin.Context) ([]byte, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBodyBytes)
	return io.ReadAll(c.Request.Body)
}
