package webhook

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/revolutionai/storefront/internal/clock"
	"github.com/revolutionai/storefront/internal/config"
	obscontext "github.com/revolutionai/storefront/internal/observability/context"
	"github.com/revolutionai/storefront/internal/observability/logger"
	obsmetrics "github.com/revolutionai/storefront/internal/observability/metrics"
	orderdomain "github.com/revolutionai/storefront/internal/order/domain"
	"github.com/revolutionai/storefront/internal/payment/adapters"
	paymentdomain "github.com/revolutionai/storefront/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrInsecureInProduction is returned at startup when webhook verification is
// disabled in a production environment.
var ErrInsecureInProduction = errors.New("insecure webhooks are not allowed in production")

const (
	outcomeApplied          = "applied"
	outcomeDuplicate        = "duplicate"
	outcomeStale            = "stale"
	outcomeIgnored          = "ignored"
	outcomeUnknownOrder     = "unknown_order"
	outcomeMismatch         = "mismatch"
	outcomeInvalidSignature = "invalid_signature"
	outcomeInvalidPayload   = "invalid_payload"
	outcomeError            = "error"
)

// Notifier is told about orders that just reached completed.
type Notifier interface {
	NotifyOrderCompleted(ctx context.Context, order orderdomain.Order)
}

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Repo     paymentdomain.Repository
	Orders   orderdomain.Service
	Gateways *adapters.Registry
	Cfg      config.Config
	Clock    clock.Clock         `optional:"true"`
	Notifier Notifier            `optional:"true"`
	Metrics  *obsmetrics.Metrics `optional:"true"`
}

// Service reconciles webhook deliveries into order status changes.
type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	repo     paymentdomain.Repository
	orders   orderdomain.Service
	gateways *adapters.Registry
	clock    clock.Clock
	notifier Notifier
	metrics  *obsmetrics.Metrics
	insecure bool
}

func NewService(p Params) (*Service, error) {
	insecure := p.Cfg.Payment.InsecureWebhooks
	if insecure && p.Cfg.IsProduction() {
		return nil, ErrInsecureInProduction
	}
	clk := p.Clock
	if clk == nil {
		clk = clock.System()
	}

	log := p.Log.Named("payment.webhook")
	if insecure {
		log.Warn("webhook signature verification is disabled", zap.String("environment", p.Cfg.Environment))
	}

	return &Service{
		db:       p.DB,
		log:      log,
		genID:    p.GenID,
		repo:     p.Repo,
		orders:   p.Orders,
		gateways: p.Gateways,
		clock:    clk,
		notifier: p.Notifier,
		metrics:  p.Metrics,
		insecure: insecure,
	}, nil
}

// Reconcile verifies, records and applies one webhook delivery. Only storage
// failures are returned for deliveries that passed verification and parsing, so
// the backend retries exactly those.
func (s *Service) Reconcile(ctx context.Context, method string, payload []byte, headers http.Header) error {
	gateway, err := s.gateways.Lookup(method)
	if err != nil {
		return err
	}
	provider := gateway.Provider()
	ctx = obscontext.WithProvider(ctx, provider)
	log := logger.WithContext(ctx, s.log)

	if !s.insecure {
		if err := gateway.VerifyWebhook(ctx, payload, headers); err != nil {
			log.Warn("webhook rejected", zap.Error(err))
			s.metrics.RecordWebhookEvent(ctx, provider, "unknown", outcomeInvalidSignature)
			return err
		}
	}

	event, err := gateway.ParseWebhook(ctx, payload)
	if err != nil {
		if errors.Is(err, paymentdomain.ErrEventIgnored) {
			log.Info("webhook event ignored", zap.String("event_type", event.Type), zap.String("event_id", event.ProviderEventID))
			s.metrics.RecordWebhookEvent(ctx, provider, "other", outcomeIgnored)
			return nil
		}
		if errors.Is(err, paymentdomain.ErrGatewayFailure) {
			log.Error("webhook event lookup failed", zap.Error(err))
			s.metrics.RecordWebhookEvent(ctx, provider, "unknown", outcomeError)
			return err
		}
		log.Warn("webhook payload rejected", zap.Error(err))
		s.metrics.RecordWebhookEvent(ctx, provider, "unknown", outcomeInvalidPayload)
		return err
	}

	log = log.With(
		zap.String("event_id", event.ProviderEventID),
		zap.String("event_type", event.Type),
		zap.String("external_reference", event.ExternalReference),
	)

	outcome, err := s.apply(ctx, log, gateway, event)
	if err != nil {
		log.Error("webhook reconciliation failed", zap.Error(err))
		s.metrics.RecordWebhookEvent(ctx, provider, event.Type, outcomeError)
		return err
	}
	s.metrics.RecordWebhookEvent(ctx, provider, event.Type, outcome)
	return nil
}

func (s *Service) apply(ctx context.Context, log *zap.Logger, gateway paymentdomain.Gateway, event paymentdomain.Event) (string, error) {
	record := &paymentdomain.EventRecord{
		ID:                s.genID.Generate(),
		Provider:          event.Provider,
		ProviderEventID:   event.ProviderEventID,
		EventType:         event.Type,
		ExternalReference: event.ExternalReference,
		Payload:           datatypes.JSON(event.RawPayload),
		ReceivedAt:        s.clock.Now(),
	}
	inserted, err := s.repo.InsertEvent(ctx, s.db, record)
	if err != nil {
		return "", fmt.Errorf("record webhook event: %w", err)
	}
	if !inserted {
		existing, err := s.repo.FindEvent(ctx, s.db, event.Provider, event.ProviderEventID)
		if err != nil {
			return "", fmt.Errorf("load webhook event: %w", err)
		}
		if existing != nil && existing.ProcessedAt != nil {
			log.Info("webhook event already processed")
			return outcomeDuplicate, nil
		}
		if existing != nil {
			// an earlier attempt stopped before finishing
			record = existing
		}
	}

	order, found, err := s.resolveOrder(ctx, event)
	if err != nil {
		return "", err
	}

	outcome := outcomeUnknownOrder
	switch {
	case !found:
		log.Warn("webhook for unknown order", zap.String("order_hint", event.OrderID))
	case order.PaymentMethod != string(gateway.Method()):
		outcome = outcomeMismatch
		log.Warn("webhook payment method does not match order",
			zap.String("order_id", order.ID.String()),
			zap.String("order_method", order.PaymentMethod),
		)
	case order.Reference() != "" && event.ExternalReference != "" && order.Reference() != event.ExternalReference:
		outcome = outcomeMismatch
		log.Warn("webhook reference does not match order",
			zap.String("order_id", order.ID.String()),
			zap.String("order_reference", order.Reference()),
		)
	default:
		outcome, err = s.transition(ctx, logger.WithOrder(log, order.ID.String()), order, event)
		if err != nil {
			return "", err
		}
	}

	if err := s.repo.MarkProcessed(ctx, s.db, record.ID, s.clock.Now()); err != nil {
		return "", fmt.Errorf("mark webhook event processed: %w", err)
	}
	return outcome, nil
}

func (s *Service) transition(ctx context.Context, log *zap.Logger, order orderdomain.Order, event paymentdomain.Event) (string, error) {
	result, err := s.orders.Transition(ctx, orderdomain.TransitionRequest{
		OrderID: order.ID,
		To:      event.Target,
		Reason:  event.Reason,
		Source:  event.Provider + ":" + event.ProviderEventID,
	})
	if err != nil {
		if errors.Is(err, orderdomain.ErrNotFound) {
			log.Warn("order disappeared before transition")
			return outcomeUnknownOrder, nil
		}
		return "", err
	}

	switch result.Outcome {
	case orderdomain.OutcomeApplied:
		log.Info("order status updated from webhook",
			zap.String("from", string(result.Previous)),
			zap.String("to", string(event.Target)),
		)
		if event.Target == orderdomain.StatusCompleted && s.notifier != nil {
			s.notifier.NotifyOrderCompleted(ctx, result.Order)
		}
		return outcomeApplied, nil
	case orderdomain.OutcomeDuplicate:
		return outcomeDuplicate, nil
	default:
		log.Info("webhook transition not applied",
			zap.String("current", string(result.Previous)),
			zap.String("target", string(event.Target)),
		)
		return outcomeStale, nil
	}
}

// resolveOrder looks the order up by the backend reference first, then by the
// order id the backend echoed back.
func (s *Service) resolveOrder(ctx context.Context, event paymentdomain.Event) (orderdomain.Order, bool, error) {
	if ref := strings.TrimSpace(event.ExternalReference); ref != "" {
		order, err := s.orders.FindByReference(ctx, ref)
		if err == nil {
			return order, true, nil
		}
		if !errors.Is(err, orderdomain.ErrNotFound) {
			return orderdomain.Order{}, false, err
		}
	}

	hint := strings.TrimSpace(event.OrderID)
	if hint == "" {
		return orderdomain.Order{}, false, nil
	}
	id, err := snowflake.ParseString(hint)
	if err != nil || id == 0 {
		return orderdomain.Order{}, false, nil
	}
	order, err := s.orders.Get(ctx, id)
	if err != nil {
		if errors.Is(err, orderdomain.ErrNotFound) || errors.Is(err, orderdomain.ErrInvalidID) {
			return orderdomain.Order{}, false, nil
		}
		return orderdomain.Order{}, false, err
	}
	return order, true, nil
}
