package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/revolutionai/storefront/internal/config"
	orderdomain "github.com/revolutionai/storefront/internal/order/domain"
	paymentdomain "github.com/revolutionai/storefront/internal/payment/domain"
	stripelib "github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/checkout/session"
	"github.com/stripe/stripe-go/v80/invoice"
	"github.com/stripe/stripe-go/v80/webhook"
	"go.uber.org/zap"
)

const Provider = "stripe"

const (
	eventSessionCompleted = "checkout.session.completed"
	eventSessionExpired   = "checkout.session.expired"
	eventPaymentFailed    = "payment_intent.payment_failed"
)

// SignatureHeader carries the webhook signature.
const SignatureHeader = "Stripe-Signature"

type Config struct {
	SecretKey     string
	WebhookSecret string
	// APIURL overrides the API origin, mostly for tests.
	APIURL  string
	BaseURL string
	Timeout time.Duration
	// Tolerance is the accepted age of a signed webhook.
	Tolerance time.Duration
}

func ConfigFrom(cfg config.Config) Config {
	return Config{
		SecretKey:     cfg.Stripe.SecretKey,
		WebhookSecret: cfg.Stripe.WebhookSecret,
		APIURL:        cfg.Stripe.APIURL,
		BaseURL:       cfg.PublicBaseURL,
		Timeout:       cfg.Payment.Timeout,
	}
}

// Adapter opens hosted Stripe checkout sessions for monthly plans.
type Adapter struct {
	cfg      Config
	log      *zap.Logger
	sessions *session.Client
	invoices *invoice.Client
}

func New(cfg Config, log *zap.Logger) *Adapter {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = webhook.DefaultTolerance
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	log = log.Named("payment.stripe")

	backendCfg := &stripelib.BackendConfig{
		HTTPClient:        &http.Client{Timeout: cfg.Timeout},
		MaxNetworkRetries: stripelib.Int64(0),
		LeveledLogger:     log.Sugar(),
	}
	if apiURL := strings.TrimSpace(cfg.APIURL); apiURL != "" {
		backendCfg.URL = stripelib.String(strings.TrimRight(apiURL, "/"))
	}

	backend := stripelib.GetBackendWithConfig(stripelib.APIBackend, backendCfg)
	return &Adapter{
		cfg:      cfg,
		log:      log,
		sessions: &session.Client{B: backend, Key: cfg.SecretKey},
		invoices: &invoice.Client{B: backend, Key: cfg.SecretKey},
	}
}

func (a *Adapter) Method() paymentdomain.Method { return paymentdomain.MethodCard }

func (a *Adapter) Provider() string { return Provider }

func (a *Adapter) Configured() bool {
	return strings.TrimSpace(a.cfg.SecretKey) != ""
}

func (a *Adapter) CreateSession(ctx context.Context, req paymentdomain.SessionRequest) (paymentdomain.Session, error) {
	if !a.Configured() {
		return paymentdomain.Session{}, fmt.Errorf("%w: STRIPE_SECRET_KEY is not set", paymentdomain.ErrGatewayNotConfigured)
	}

	params := buildSessionParams(a.cfg.BaseURL, req)
	params.Context = ctx

	sess, err := a.sessions.New(params)
	if err != nil {
		return paymentdomain.Session{}, toGatewayError(err)
	}
	if sess == nil || strings.TrimSpace(sess.URL) == "" {
		return paymentdomain.Session{}, &paymentdomain.GatewayError{Provider: Provider, Message: "checkout session has no url"}
	}

	return paymentdomain.Session{
		ExternalReference: sess.ID,
		RedirectURL:       sess.URL,
	}, nil
}

func buildSessionParams(baseURL string, req paymentdomain.SessionRequest) *stripelib.CheckoutSessionParams {
	order := req.Order
	currency := strings.ToLower(strings.TrimSpace(order.Currency))
	if currency == "" {
		currency = "usd"
	}

	metadata := map[string]string{
		"orderId":       order.ID.String(),
		"productId":     order.ProductID,
		"customerName":  order.CustomerName(),
		"customerPhone": order.CustomerPhone,
	}

	productData := &stripelib.CheckoutSessionLineItemPriceDataProductDataParams{
		Name: stripelib.String(order.ProductName),
	}
	if desc := strings.TrimSpace(req.ProductDescription); desc != "" {
		productData.Description = stripelib.String(desc)
	}

	params := &stripelib.CheckoutSessionParams{
		Mode:               stripelib.String("subscription"),
		PaymentMethodTypes: stripelib.StringSlice([]string{"card"}),
		LineItems: []*stripelib.CheckoutSessionLineItemParams{{
			PriceData: &stripelib.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripelib.String(currency),
				ProductData: productData,
				UnitAmount:  stripelib.Int64(order.AmountCents),
				Recurring: &stripelib.CheckoutSessionLineItemPriceDataRecurringParams{
					Interval: stripelib.String("month"),
				},
			},
			Quantity: stripelib.Int64(1),
		}},
		CustomerEmail:            stripelib.String(order.CustomerEmail),
		SuccessURL:               stripelib.String(baseURL + "/payment/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:                stripelib.String(baseURL + "/payment/cancelled"),
		AllowPromotionCodes:      stripelib.Bool(true),
		BillingAddressCollection: stripelib.String("required"),
		SubscriptionData: &stripelib.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{},
		},
	}
	for key, value := range metadata {
		params.AddMetadata(key, value)
		params.SubscriptionData.Metadata[key] = value
	}
	return params
}

func toGatewayError(err error) error {
	var stripeErr *stripelib.Error
	if errors.As(err, &stripeErr) {
		return &paymentdomain.GatewayError{
			Provider:   Provider,
			StatusCode: stripeErr.HTTPStatusCode,
			Code:       string(stripeErr.Code),
			Message:    stripeErr.Msg,
			Err:        err,
		}
	}
	return &paymentdomain.GatewayError{Provider: Provider, Err: err}
}

func (a *Adapter) VerifyWebhook(ctx context.Context, payload []byte, headers http.Header) error {
	secret := strings.TrimSpace(a.cfg.WebhookSecret)
	if secret == "" {
		return fmt.Errorf("%w: STRIPE_WEBHOOK_SECRET is not set", paymentdomain.ErrInvalidSignature)
	}
	sigHeader := strings.TrimSpace(headers.Get(SignatureHeader))
	if sigHeader == "" {
		sigHeader = strings.TrimSpace(headers.Get("Signature"))
	}
	if sigHeader == "" {
		return paymentdomain.ErrInvalidSignature
	}
	if err := webhook.ValidatePayloadWithTolerance(payload, sigHeader, secret, a.cfg.Tolerance); err != nil {
		return fmt.Errorf("%w: %v", paymentdomain.ErrInvalidSignature, err)
	}
	return nil
}

type stripeEvent struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Created int64           `json:"created"`
	Data    stripeEventData `json:"data"`
}

type stripeEventData struct {
	Object json.RawMessage `json:"object"`
}

type stripeObject struct {
	ID               string            `json:"id"`
	Object           string            `json:"object"`
	Metadata         map[string]string `json:"metadata"`
	Invoice          json.RawMessage   `json:"invoice"`
	LastPaymentError *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"last_payment_error"`
}

func (a *Adapter) ParseWebhook(ctx context.Context, payload []byte) (paymentdomain.Event, error) {
	var event stripeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return paymentdomain.Event{}, paymentdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(event.ID) == "" || strings.TrimSpace(event.Type) == "" {
		return paymentdomain.Event{}, paymentdomain.ErrInvalidEvent
	}

	parsed := paymentdomain.Event{
		Provider:        Provider,
		ProviderEventID: event.ID,
		Type:            event.Type,
		OccurredAt:      occurredAt(event.Created),
		RawPayload:      payload,
	}

	switch event.Type {
	case eventSessionCompleted:
		parsed.Target = orderdomain.StatusCompleted
	case eventSessionExpired:
		parsed.Target = orderdomain.StatusExpired
		parsed.Reason = "session_expired"
	case eventPaymentFailed:
		parsed.Target = orderdomain.StatusFailed
		parsed.Reason = "payment_failed"
	default:
		return parsed, paymentdomain.ErrEventIgnored
	}

	var object stripeObject
	if len(event.Data.Object) == 0 {
		return paymentdomain.Event{}, paymentdomain.ErrInvalidPayload
	}
	if err := json.Unmarshal(event.Data.Object, &object); err != nil {
		return paymentdomain.Event{}, paymentdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(object.ID) == "" {
		return paymentdomain.Event{}, paymentdomain.ErrInvalidEvent
	}

	parsed.OrderID = strings.TrimSpace(object.Metadata["orderId"])
	if event.Type == eventPaymentFailed {
		// The intent id is not what the order was created with. Subscription
		// intents carry no metadata of their own, so the order id comes from the
		// invoice's subscription.
		if object.LastPaymentError != nil && object.LastPaymentError.Code != "" {
			parsed.Reason = object.LastPaymentError.Code
		}
		if parsed.OrderID == "" {
			if invoiceID := expandableID(object.Invoice); invoiceID != "" {
				orderID, err := a.invoiceOrderID(ctx, invoiceID)
				if err != nil {
					return paymentdomain.Event{}, err
				}
				parsed.OrderID = orderID
			}
		}
		return parsed, nil
	}
	parsed.ExternalReference = object.ID
	return parsed, nil
}

// invoiceOrderID reads the order id stamped on the subscription behind an invoice.
func (a *Adapter) invoiceOrderID(ctx context.Context, invoiceID string) (string, error) {
	if !a.Configured() {
		a.log.Warn("cannot resolve invoice without STRIPE_SECRET_KEY", zap.String("invoice_id", invoiceID))
		return "", nil
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	params := &stripelib.InvoiceParams{}
	params.Context = ctx
	params.AddExpand("subscription")
	inv, err := a.invoices.Get(invoiceID, params)
	if err != nil {
		return "", toGatewayError(err)
	}
	if inv.SubscriptionDetails != nil {
		if orderID := strings.TrimSpace(inv.SubscriptionDetails.Metadata["orderId"]); orderID != "" {
			return orderID, nil
		}
	}
	if inv.Subscription != nil {
		if orderID := strings.TrimSpace(inv.Subscription.Metadata["orderId"]); orderID != "" {
			return orderID, nil
		}
	}
	return strings.TrimSpace(inv.Metadata["orderId"]), nil
}

// expandableID reads a field that is either an id string or an expanded object.
func expandableID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		return strings.TrimSpace(id)
	}
	var object struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &object); err == nil {
		return strings.TrimSpace(object.ID)
	}
	return ""
}

func occurredAt(created int64) time.Time {
	if created <= 0 {
		return time.Now().UTC()
	}
	return time.Unix(created, 0).UTC()
}
