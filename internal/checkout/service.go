package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/revolutionai/storefront/internal/catalog"
	"github.com/revolutionai/storefront/internal/config"
	obscontext "github.com/revolutionai/storefront/internal/observability/context"
	"github.com/revolutionai/storefront/internal/observability/logger"
	obsmetrics "github.com/revolutionai/storefront/internal/observability/metrics"
	orderdomain "github.com/revolutionai/storefront/internal/order/domain"
	"github.com/revolutionai/storefront/internal/payment/adapters"
	paymentdomain "github.com/revolutionai/storefront/internal/payment/domain"
	"github.com/revolutionai/storefront/internal/validation"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Catalog resolves products by id.
type Catalog interface {
	Get(id string) (catalog.Product, bool)
}

type Customer struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

type Request struct {
	ProductID     string
	Customer      Customer
	PaymentMethod string
}

type Result struct {
	OrderID           snowflake.ID
	RedirectURL       string
	ExternalReference string
	PaymentMethod     paymentdomain.Method
	QRCode            string
}

type Params struct {
	fx.In

	Log      *zap.Logger
	Cfg      config.Config
	Catalog  *catalog.Catalog
	Orders   orderdomain.Service
	Gateways *adapters.Registry
	Metrics  *obsmetrics.Metrics `optional:"true"`
}

// Service turns a checkout request into a pending order with a hosted payment page.
type Service struct {
	log      *zap.Logger
	catalog  Catalog
	orders   orderdomain.Service
	gateways *adapters.Registry
	metrics  *obsmetrics.Metrics
	timeout  time.Duration
}

func New(p Params) *Service {
	return NewService(p.Log, p.Catalog, p.Orders, p.Gateways, p.Metrics, p.Cfg.Payment.Timeout)
}

func NewService(log *zap.Logger, products Catalog, orders orderdomain.Service, gateways *adapters.Registry, metrics *obsmetrics.Metrics, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Service{
		log:      log.Named("checkout"),
		catalog:  products,
		orders:   orders,
		gateways: gateways,
		metrics:  metrics,
		timeout:  timeout,
	}
}

// CreateOrder validates the request, persists a pending order and opens a
// checkout with the selected backend. Nothing is persisted when validation or
// configuration fails.
func (s *Service) CreateOrder(ctx context.Context, req Request) (Result, error) {
	product, method, err := s.validate(req)
	if err != nil {
		return Result{}, err
	}

	gateway, err := s.gateways.Lookup(string(method))
	if err != nil {
		return Result{}, err
	}
	ctx = obscontext.WithProvider(ctx, gateway.Provider())
	if !gateway.Configured() {
		logger.WithContext(ctx, s.log).Error("payment gateway not configured", zap.String("method", string(method)))
		return Result{}, fmt.Errorf("%w: %s", paymentdomain.ErrGatewayNotConfigured, gateway.Provider())
	}

	cents, err := product.AmountCents()
	if err != nil {
		return Result{}, fmt.Errorf("product %s: %w", product.ID, err)
	}

	order, err := s.orders.Create(ctx, orderdomain.NewOrder{
		ProductID:         product.ID,
		ProductName:       product.Name,
		ProductPrice:      product.Price,
		AmountCents:       cents,
		Currency:          "USD",
		CustomerFirstName: strings.TrimSpace(req.Customer.FirstName),
		CustomerLastName:  strings.TrimSpace(req.Customer.LastName),
		CustomerEmail:     strings.TrimSpace(req.Customer.Email),
		CustomerPhone:     strings.TrimSpace(req.Customer.Phone),
		PaymentMethod:     string(method),
	})
	if err != nil {
		return Result{}, err
	}

	ctx = obscontext.WithOrderID(ctx, order.ID.String())
	log := logger.WithContext(ctx, s.log)

	sessionCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	session, err := gateway.CreateSession(sessionCtx, paymentdomain.SessionRequest{
		Order:              order,
		ProductDescription: product.Description,
	})
	if err != nil {
		// the order stays pending without a reference; the sweeper expires it
		log.Error("payment session failed", zap.Error(err))
		s.metrics.RecordGatewayFailure(ctx, gateway.Provider())
		var gwErr *paymentdomain.GatewayError
		if errors.As(err, &gwErr) || errors.Is(err, paymentdomain.ErrGatewayNotConfigured) {
			return Result{}, err
		}
		return Result{}, &paymentdomain.GatewayError{Provider: gateway.Provider(), Err: err}
	}

	if err := s.orders.AttachReference(ctx, order.ID, session.ExternalReference, session.RedirectURL); err != nil {
		log.Error("attach payment reference failed",
			zap.String("external_reference", session.ExternalReference),
			zap.Error(err),
		)
		return Result{}, err
	}

	log.Info("checkout created",
		zap.String("product_id", product.ID),
		zap.String("method", string(method)),
		zap.String("external_reference", session.ExternalReference),
	)
	s.metrics.RecordOrderCreated(ctx, string(method))

	return Result{
		OrderID:           order.ID,
		RedirectURL:       session.RedirectURL,
		ExternalReference: session.ExternalReference,
		PaymentMethod:     method,
		QRCode:            session.QRCode,
	}, nil
}

func (s *Service) validate(req Request) (catalog.Product, paymentdomain.Method, error) {
	var errs validation.Errors

	var product catalog.Product
	if errs.Required("productId", req.ProductID) {
		found, ok := s.catalog.Get(req.ProductID)
		if !ok {
			errs.Add("productId", "unknown", "product does not exist")
		}
		product = found
	}

	errs.Required("firstName", req.Customer.FirstName)
	errs.Required("lastName", req.Customer.LastName)
	errs.Required("phone", req.Customer.Phone)
	if errs.Required("email", req.Customer.Email) && !validation.IsEmail(strings.TrimSpace(req.Customer.Email)) {
		errs.Add("email", "invalid", "Invalid email format")
	}

	var method paymentdomain.Method
	if errs.Required("paymentMethod", req.PaymentMethod) {
		parsed, ok := paymentdomain.ParseMethod(req.PaymentMethod)
		if !ok {
			errs.Add("paymentMethod", "invalid", "Invalid payment method")
		}
		method = parsed
	}

	if err := errs.Err(); err != nil {
		return catalog.Product{}, "", err
	}
	return product, method, nil
}
