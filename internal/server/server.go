package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/revolutionai/storefront/internal/adminkey"
	"github.com/revolutionai/storefront/internal/catalog"
	"github.com/revolutionai/storefront/internal/checkout"
	"github.com/revolutionai/storefront/internal/config"
	contactdomain "github.com/revolutionai/storefront/internal/contact/domain"
	"github.com/revolutionai/storefront/internal/observability"
	obsmiddleware "github.com/revolutionai/storefront/internal/observability/logger"
	obsmetrics "github.com/revolutionai/storefront/internal/observability/metrics"
	obstracing "github.com/revolutionai/storefront/internal/observability/tracing"
	orderdomain "github.com/revolutionai/storefront/internal/order/domain"
	"github.com/revolutionai/storefront/internal/payment/webhook"
	"github.com/revolutionai/storefront/internal/providers/pdf"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Provide(newAdminVerifier),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func newAdminVerifier(cfg config.Config, log *zap.Logger) (*adminkey.Verifier, error) {
	verifier, err := adminkey.NewVerifier(cfg.AdminKeyHash)
	if err != nil {
		return nil, err
	}
	if !verifier.Enabled() {
		log.Info("admin routes disabled: ADMIN_API_KEY_HASH not set")
	}
	return verifier, nil
}

func run(lc fx.Lifecycle, cfg config.Config, log *zap.Logger, r *gin.Engine) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

// CheckoutService opens a payment for a storefront order.
type CheckoutService interface {
	CreateOrder(ctx context.Context, req checkout.Request) (checkout.Result, error)
}

// WebhookReconciler applies one backend delivery to the order store.
type WebhookReconciler interface {
	Reconcile(ctx context.Context, method string, payload []byte, headers http.Header) error
}

type Server struct {
	engine   *gin.Engine
	cfg      config.Config
	log      *zap.Logger
	catalog  *catalog.Catalog
	checkout CheckoutService
	webhooks WebhookReconciler
	orders   orderdomain.Service
	contact  contactdomain.Service
	receipts pdf.Provider
	adminKey *adminkey.Verifier
}

type ServerParams struct {
	fx.In

	Gin      *gin.Engine
	Cfg      config.Config
	Log      *zap.Logger
	Catalog  *catalog.Catalog
	Checkout *checkout.Service
	Webhooks *webhook.Service
	Orders   orderdomain.Service
	Contact  contactdomain.Service
	Receipts pdf.Provider
	AdminKey *adminkey.Verifier `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:   p.Gin,
		cfg:      p.Cfg,
		log:      p.Log.Named("http"),
		catalog:  p.Catalog,
		checkout: p.Checkout,
		webhooks: p.Webhooks,
		orders:   p.Orders,
		contact:  p.Contact,
		receipts: p.Receipts,
		adminKey: p.AdminKey,
	}

	svc.registerStorefrontRoutes()
	svc.registerWebhookRoutes()
	svc.registerAdminRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerStorefrontRoutes() {
	s.engine.GET("/products", s.ListProducts)
	s.engine.GET("/products/:id", s.GetProduct)
	s.engine.GET("/orders/:id/status", s.GetOrderStatus)

	s.engine.POST("/payments/create", s.CreatePayment)
	s.engine.POST("/contact", s.SubmitContact)

	// paths used by the previous frontend
	api := s.engine.Group("/api")
	api.POST("/payments/create", s.CreatePayment)
	api.POST("/contact", s.SubmitContact)
}

func (s *Server) registerWebhookRoutes() {
	hooks := s.engine.Group("/webhooks")
	hooks.POST("/card", s.HandleCardWebhook)
	hooks.POST("/crypto", s.HandleCryptoWebhook)
	hooks.POST("/stripe", s.HandleCardWebhook)
	hooks.POST("/cryptomus", s.HandleCryptoWebhook)

	legacy := s.engine.Group("/api/webhooks")
	legacy.POST("/stripe", s.HandleCardWebhook)
	legacy.POST("/cryptomus", s.HandleCryptoWebhook)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin")
	admin.Use(s.AdminKeyRequired())

	admin.GET("/orders", s.ListOrders)
	admin.POST("/orders/expire-stale", s.ExpireStaleOrders)
	admin.GET("/orders/:id", s.GetOrder)
	admin.GET("/orders/:id/receipt", s.GetOrderReceipt)

	admin.GET("/bookings", s.ListBookings)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
