package cryptomus

import (
	"bytes"
	"context"
	"crypto/md5"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/revolutionai/storefront/internal/config"
	orderdomain "github.com/revolutionai/storefront/internal/order/domain"
	paymentdomain "github.com/revolutionai/storefront/internal/payment/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const Provider = "cryptomus"

// SignatureHeader carries the request signature in both directions.
const SignatureHeader = "sign"

const (
	invoiceLifetimeSeconds = 7200
	invoiceCurrency        = "USD"
	settlementCurrency     = "USDT"
	maxResponseBytes       = 1 << 20
)

type Config struct {
	MerchantID string
	APIKey     string
	APIURL     string
	BaseURL    string
	Timeout    time.Duration
}

func ConfigFrom(cfg config.Config) Config {
	return Config{
		MerchantID: cfg.Cryptomus.MerchantID,
		APIKey:     cfg.Cryptomus.APIKey,
		APIURL:     cfg.Cryptomus.APIURL,
		BaseURL:    cfg.PublicBaseURL,
		Timeout:    cfg.Payment.Timeout,
	}
}

// Adapter creates Cryptomus invoices settled in USDT.
type Adapter struct {
	cfg    Config
	log    *zap.Logger
	client *http.Client
}

func New(cfg Config, log *zap.Logger) *Adapter {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	cfg.APIURL = strings.TrimRight(strings.TrimSpace(cfg.APIURL), "/")
	if cfg.APIURL == "" {
		cfg.APIURL = "https://api.cryptomus.com"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Adapter{
		cfg:    cfg,
		log:    log.Named("payment.cryptomus"),
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (a *Adapter) Method() paymentdomain.Method { return paymentdomain.MethodCrypto }

func (a *Adapter) Provider() string { return Provider }

func (a *Adapter) Configured() bool {
	return strings.TrimSpace(a.cfg.MerchantID) != "" && strings.TrimSpace(a.cfg.APIKey) != ""
}

type invoiceRequest struct {
	Amount            string `json:"amount"`
	Currency          string `json:"currency"`
	OrderID           string `json:"order_id"`
	URLReturn         string `json:"url_return"`
	URLCallback       string `json:"url_callback"`
	IsPaymentMultiple bool   `json:"is_payment_multiple"`
	Lifetime          int    `json:"lifetime"`
	ToCurrency        string `json:"to_currency"`
	AdditionalData    string `json:"additional_data"`
}

type additionalData struct {
	ProductID     string `json:"productId"`
	CustomerName  string `json:"customerName"`
	CustomerEmail string `json:"customerEmail"`
	CustomerPhone string `json:"customerPhone"`
}

type invoiceResponse struct {
	State   int    `json:"state"`
	Message string `json:"message"`
	Result  *struct {
		UUID   string `json:"uuid"`
		URL    string `json:"url"`
		QRCode string `json:"qr_code"`
	} `json:"result"`
}

func (a *Adapter) CreateSession(ctx context.Context, req paymentdomain.SessionRequest) (paymentdomain.Session, error) {
	if !a.Configured() {
		return paymentdomain.Session{}, fmt.Errorf("%w: CRYPTOMUS_MERCHANT_ID and CRYPTOMUS_API_KEY are required", paymentdomain.ErrGatewayNotConfigured)
	}

	body, err := buildInvoice(a.cfg.BaseURL, req.Order)
	if err != nil {
		return paymentdomain.Session{}, &paymentdomain.GatewayError{Provider: Provider, Message: "encode invoice", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.APIURL+"/v1/payment", bytes.NewReader(body))
	if err != nil {
		return paymentdomain.Session{}, &paymentdomain.GatewayError{Provider: Provider, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("merchant", a.cfg.MerchantID)
	httpReq.Header.Set(SignatureHeader, Sign(body, a.cfg.APIKey))

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return paymentdomain.Session{}, &paymentdomain.GatewayError{Provider: Provider, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return paymentdomain.Session{}, &paymentdomain.GatewayError{Provider: Provider, StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return paymentdomain.Session{}, &paymentdomain.GatewayError{
			Provider:   Provider,
			StatusCode: resp.StatusCode,
			Message:    truncate(string(raw), 256),
		}
	}

	var decoded invoiceResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return paymentdomain.Session{}, &paymentdomain.GatewayError{Provider: Provider, StatusCode: resp.StatusCode, Message: "decode response", Err: err}
	}
	if decoded.State != 0 || decoded.Result == nil {
		message := decoded.Message
		if message == "" {
			message = "payment creation failed"
		}
		return paymentdomain.Session{}, &paymentdomain.GatewayError{
			Provider:   Provider,
			StatusCode: resp.StatusCode,
			Code:       fmt.Sprintf("state_%d", decoded.State),
			Message:    message,
		}
	}
	if strings.TrimSpace(decoded.Result.UUID) == "" || strings.TrimSpace(decoded.Result.URL) == "" {
		return paymentdomain.Session{}, &paymentdomain.GatewayError{Provider: Provider, StatusCode: resp.StatusCode, Message: "invoice without uuid or url"}
	}

	a.log.Debug("invoice created", zap.String("order_id", req.Order.ID.String()), zap.String("uuid", decoded.Result.UUID))
	return paymentdomain.Session{
		ExternalReference: decoded.Result.UUID,
		RedirectURL:       decoded.Result.URL,
		QRCode:            decoded.Result.QRCode,
	}, nil
}

func buildInvoice(baseURL string, order orderdomain.Order) ([]byte, error) {
	extra, err := json.Marshal(additionalData{
		ProductID:     order.ProductID,
		CustomerName:  order.CustomerName(),
		CustomerEmail: order.CustomerEmail,
		CustomerPhone: order.CustomerPhone,
	})
	if err != nil {
		return nil, err
	}

	return json.Marshal(invoiceRequest{
		Amount:            decimal.NewFromInt(order.AmountCents).Shift(-2).String(),
		Currency:          invoiceCurrency,
		OrderID:           order.ID.String(),
		URLReturn:         baseURL + "/payment/success",
		URLCallback:       baseURL + "/webhooks/crypto",
		IsPaymentMultiple: false,
		Lifetime:          invoiceLifetimeSeconds,
		ToCurrency:        settlementCurrency,
		AdditionalData:    string(extra),
	})
}

// Sign computes hex(md5(base64(body) + apiKey)).
func Sign(body []byte, apiKey string) string {
	sum := md5.Sum([]byte(base64.StdEncoding.EncodeToString(body) + apiKey))
	return hex.EncodeToString(sum[:])
}

func (a *Adapter) VerifyWebhook(ctx context.Context, payload []byte, headers http.Header) error {
	if strings.TrimSpace(a.cfg.APIKey) == "" {
		return fmt.Errorf("%w: CRYPTOMUS_API_KEY is not set", paymentdomain.ErrInvalidSignature)
	}
	provided := strings.ToLower(strings.TrimSpace(headers.Get(SignatureHeader)))
	if provided == "" {
		return paymentdomain.ErrInvalidSignature
	}
	expected := Sign(payload, a.cfg.APIKey)
	if subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) != 1 {
		return paymentdomain.ErrInvalidSignature
	}
	return nil
}

type callback struct {
	Type     string          `json:"type"`
	UUID     string          `json:"uuid"`
	OrderID  string          `json:"order_id"`
	Status   string          `json:"status"`
	Amount   json.RawMessage `json:"amount"`
	Currency string          `json:"currency"`
	TxID     string          `json:"txid"`
}

// statusTargets maps invoice statuses to order statuses. Anything else is acknowledged
// without touching the order.
var statusTargets = map[string]struct {
	target orderdomain.Status
	reason string
}{
	"paid":           {target: orderdomain.StatusCompleted},
	"process":        {target: orderdomain.StatusProcessing},
	"confirm_check":  {target: orderdomain.StatusConfirming},
	"fail":           {target: orderdomain.StatusFailed, reason: "fail"},
	"cancel":         {target: orderdomain.StatusFailed, reason: "cancel"},
	"wrong_amount":   {target: orderdomain.StatusFailed, reason: "wrong_amount"},
	"cancel_timeout": {target: orderdomain.StatusExpired, reason: "cancel_timeout"},
}

func (a *Adapter) ParseWebhook(ctx context.Context, payload []byte) (paymentdomain.Event, error) {
	var cb callback
	if err := json.Unmarshal(payload, &cb); err != nil {
		return paymentdomain.Event{}, paymentdomain.ErrInvalidPayload
	}
	uuid := strings.TrimSpace(cb.UUID)
	status := strings.ToLower(strings.TrimSpace(cb.Status))
	if uuid == "" || status == "" {
		return paymentdomain.Event{}, paymentdomain.ErrInvalidEvent
	}

	event := paymentdomain.Event{
		Provider:          Provider,
		ProviderEventID:   uuid + ":" + status,
		Type:              status,
		ExternalReference: uuid,
		OrderID:           strings.TrimSpace(cb.OrderID),
		OccurredAt:        time.Now().UTC(),
		RawPayload:        payload,
	}

	mapped, ok := statusTargets[status]
	if !ok {
		return event, paymentdomain.ErrEventIgnored
	}
	event.Target = mapped.target
	event.Reason = mapped.reason
	return event, nil
}

func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	return value[:limit]
}
