package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/revolutionai/storefront/internal/clock"
	obsmetrics "github.com/revolutionai/storefront/internal/observability/metrics"
	"github.com/revolutionai/storefront/internal/order/domain"
	"github.com/revolutionai/storefront/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// A lost compare-and-swap means another writer moved the order forward. Status only
// moves forward, so a handful of retries always reaches a decision.
const maxTransitionAttempts = 5

const (
	sourceCheckout = "checkout"
	sourceSweeper  = "sweeper"
	reasonAbandon  = "abandoned"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Repo    domain.Repository
	Clock   clock.Clock
	Metrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	repo    domain.Repository
	clock   clock.Clock
	metrics *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.System()
	}
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("order.service"),
		genID:   p.GenID,
		repo:    p.Repo,
		clock:   clk,
		metrics: p.Metrics,
	}
}

func (s *Service) Create(ctx context.Context, req domain.NewOrder) (domain.Order, error) {
	if strings.TrimSpace(req.ProductID) == "" ||
		req.AmountCents <= 0 ||
		strings.TrimSpace(req.PaymentMethod) == "" ||
		strings.TrimSpace(req.CustomerEmail) == "" {
		return domain.Order{}, domain.ErrInvalidSnapshot
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "USD"
	}

	now := s.clock.Now()
	order := domain.Order{
		ID:                s.genID.Generate(),
		ProductID:         req.ProductID,
		ProductName:       req.ProductName,
		ProductPrice:      req.ProductPrice,
		AmountCents:       req.AmountCents,
		Currency:          currency,
		CustomerFirstName: req.CustomerFirstName,
		CustomerLastName:  req.CustomerLastName,
		CustomerEmail:     req.CustomerEmail,
		CustomerPhone:     req.CustomerPhone,
		PaymentMethod:     req.PaymentMethod,
		Status:            domain.StatusPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, &order); err != nil {
			return err
		}
		return s.repo.InsertHistory(ctx, tx, &domain.StatusEntry{
			ID:         s.genID.Generate(),
			OrderID:    order.ID,
			ToStatus:   domain.StatusPending,
			Source:     sourceCheckout,
			OccurredAt: now,
		})
	})
	if err != nil {
		return domain.Order{}, err
	}

	return order, nil
}

func (s *Service) AttachReference(ctx context.Context, id snowflake.ID, ref, redirectURL string) error {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return domain.ErrEmptyReference
	}

	ok, err := s.repo.SetExternalReference(ctx, s.db, id, ref, redirectURL, s.clock.Now())
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	existing, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return domain.ErrNotFound
	}
	if existing.Reference() == ref {
		return nil
	}
	return domain.ErrReferenceAlreadySet
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (domain.Order, error) {
	if id == 0 {
		return domain.Order{}, domain.ErrInvalidID
	}
	order, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Order{}, err
	}
	if order == nil {
		return domain.Order{}, domain.ErrNotFound
	}
	return *order, nil
}

func (s *Service) FindByReference(ctx context.Context, ref string) (domain.Order, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return domain.Order{}, domain.ErrNotFound
	}
	order, err := s.repo.FindByExternalReference(ctx, s.db, ref)
	if err != nil {
		return domain.Order{}, err
	}
	if order == nil {
		return domain.Order{}, domain.ErrNotFound
	}
	return *order, nil
}

// Transition applies a forward status move. Duplicate and backward moves are
// reported through the result outcome rather than as errors.
func (s *Service) Transition(ctx context.Context, req domain.TransitionRequest) (domain.TransitionResult, error) {
	if !req.To.Valid() {
		return domain.TransitionResult{}, domain.ErrInvalidStatus
	}

	log := s.log.With(
		zap.String("order_id", req.OrderID.String()),
		zap.String("to", string(req.To)),
		zap.String("source", req.Source),
	)

	for attempt := 0; attempt < maxTransitionAttempts; attempt++ {
		current, err := s.repo.FindByID(ctx, s.db, req.OrderID)
		if err != nil {
			return domain.TransitionResult{}, err
		}
		if current == nil {
			return domain.TransitionResult{}, domain.ErrNotFound
		}

		if current.Status == req.To {
			log.Info("order transition duplicate", zap.String("from", string(current.Status)))
			s.metrics.RecordTransition(ctx, string(req.To), string(domain.OutcomeDuplicate))
			return domain.TransitionResult{Outcome: domain.OutcomeDuplicate, Previous: current.Status, Order: *current}, nil
		}
		if !current.Status.CanTransition(req.To) {
			log.Info("order transition ignored", zap.String("from", string(current.Status)))
			s.metrics.RecordTransition(ctx, string(req.To), string(domain.OutcomeStale))
			return domain.TransitionResult{Outcome: domain.OutcomeStale, Previous: current.Status, Order: *current}, nil
		}

		now := s.clock.Now()
		swapped := false
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			ok, err := s.repo.CompareAndSwapStatus(ctx, tx, current.ID, current.Status, req.To, req.Reason, now)
			if err != nil || !ok {
				return err
			}
			swapped = true
			return s.repo.InsertHistory(ctx, tx, &domain.StatusEntry{
				ID:         s.genID.Generate(),
				OrderID:    current.ID,
				FromStatus: current.Status,
				ToStatus:   req.To,
				Reason:     req.Reason,
				Source:     req.Source,
				OccurredAt: now,
			})
		})
		if err != nil {
			return domain.TransitionResult{}, err
		}
		if !swapped {
			log.Debug("order transition lost race, retrying", zap.Int("attempt", attempt+1))
			continue
		}

		updated := *current
		updated.Status = req.To
		updated.StatusReason = req.Reason
		updated.UpdatedAt = now

		log.Info("order transition applied",
			zap.String("from", string(current.Status)),
			zap.String("reason", req.Reason),
		)
		s.metrics.RecordTransition(ctx, string(req.To), string(domain.OutcomeApplied))
		return domain.TransitionResult{Outcome: domain.OutcomeApplied, Previous: current.Status, Order: updated}, nil
	}

	return domain.TransitionResult{}, fmt.Errorf("%w: order %s", domain.ErrTransitionContention, req.OrderID)
}

func (s *Service) History(ctx context.Context, id snowflake.ID) ([]domain.StatusEntry, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.ListHistory(ctx, s.db, id)
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) (domain.ListResponse, error) {
	filter := domain.ListFilter{
		PaymentMethod: strings.ToLower(strings.TrimSpace(req.PaymentMethod)),
		Email:         strings.TrimSpace(req.Email),
		CreatedFrom:   req.CreatedFrom,
		CreatedTo:     req.CreatedTo,
	}
	if raw := strings.TrimSpace(req.Status); raw != "" {
		status, ok := domain.ParseStatus(raw)
		if !ok {
			return domain.ListResponse{}, domain.ErrInvalidStatus
		}
		filter.Status = status
	}

	items, err := s.repo.List(ctx, s.db, filter, req.Pagination)
	if err != nil {
		return domain.ListResponse{}, err
	}

	orders, pageInfo, err := pagination.Trim(items, req.Pagination.Limit(), func(o domain.Order) pagination.Cursor {
		return pagination.Cursor{
			ID:        o.ID.String(),
			CreatedAt: o.CreatedAt.Format(time.RFC3339),
		}
	})
	if err != nil {
		return domain.ListResponse{}, err
	}
	if orders == nil {
		orders = []domain.Order{}
	}

	return domain.ListResponse{PageInfo: pageInfo, Orders: orders}, nil
}

// ExpireStale moves orders that stayed pending longer than olderThan to expired.
func (s *Service) ExpireStale(ctx context.Context, olderThan time.Duration, limit int) (domain.ExpireResult, error) {
	if limit <= 0 {
		limit = 100
	}
	cutoff := s.clock.Now().Add(-olderThan)

	stale, err := s.repo.ListStalePending(ctx, s.db, cutoff, limit)
	if err != nil {
		return domain.ExpireResult{}, err
	}

	result := domain.ExpireResult{Scanned: len(stale)}
	for _, order := range stale {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		res, err := s.Transition(ctx, domain.TransitionRequest{
			OrderID: order.ID,
			To:      domain.StatusExpired,
			Reason:  reasonAbandon,
			Source:  sourceSweeper,
		})
		if err != nil {
			return result, err
		}
		if res.Applied() {
			result.Expired++
		}
	}

	if result.Expired > 0 {
		s.log.Info("expired abandoned orders",
			zap.Int("scanned", result.Scanned),
			zap.Int("expired", result.Expired),
			zap.Time("cutoff", cutoff),
		)
	}
	return result, nil
}
