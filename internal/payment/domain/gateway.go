package domain

import (
	"context"
	"net/http"
	"strings"

	orderdomain "github.com/revolutionai/storefront/internal/order/domain"
)

// Method is the customer-facing payment method.
type Method string

const (
	MethodCard   Method = "card"
	MethodCrypto Method = "crypto"
)

// ParseMethod accepts the method names and the backend aliases used by older clients.
func ParseMethod(raw string) (Method, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "card", "stripe":
		return MethodCard, true
	case "crypto", "cryptomus":
		return MethodCrypto, true
	default:
		return "", false
	}
}

type SessionRequest struct {
	Order              orderdomain.Order
	ProductDescription string
}

// Session is what the backend returns for a freshly created checkout.
type Session struct {
	ExternalReference string
	RedirectURL       string
	QRCode            string
}

// Gateway is one payment backend: it opens hosted checkouts and understands
// its own webhook deliveries.
type Gateway interface {
	Method() Method
	Provider() string
	// Configured reports whether the credentials needed for checkout are present.
	Configured() bool
	CreateSession(ctx context.Context, req SessionRequest) (Session, error)
	VerifyWebhook(ctx context.Context, payload []byte, headers http.Header) error
	ParseWebhook(ctx context.Context, payload []byte) (Event, error)
}
