package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/revolutionai/storefront/internal/lock"
	obsmetrics "github.com/revolutionai/storefront/internal/observability/metrics"
	orderdomain "github.com/revolutionai/storefront/internal/order/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	JobExpireOrders = "expire_orders"

	lockKeyPrefix = "storefront:scheduler:"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	Log    *zap.Logger
	Orders orderdomain.Service
	Locker lock.Locker
	GenID  *snowflake.Node
	Config Config `optional:"true"`
}

// Scheduler runs background maintenance jobs. Today that is expiring orders
// abandoned at the payment page.
type Scheduler struct {
	log    *zap.Logger
	cfg    Config
	orders orderdomain.Service
	locker lock.Locker
	genID  *snowflake.Node
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Orders == nil || p.Locker == nil || p.GenID == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:    p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:    p.Config.withDefaults(),
		orders: p.Orders,
		locker: p.Locker,
		genID:  p.GenID,
	}, nil
}

// runJob runs fn under the job lock and timeout. A deadline is a soft failure:
// it is logged and counted but not returned.
func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	batchSize int,
	timeout time.Duration,
	fn func(ctx context.Context, run *jobRun) error,
) error {
	schedMetrics := obsmetrics.Scheduler()
	log := s.logger(parent).With(zap.String("job", name))

	token, ok, err := s.locker.TryLock(parent, lockKeyPrefix+name, s.cfg.LockTTL)
	if err != nil {
		schedMetrics.IncJobError(name, err)
		return fmt.Errorf("%s: acquire lock: %w", name, err)
	}
	if !ok {
		log.Debug("job skipped, lock held elsewhere")
		schedMetrics.IncJobError(name, obsmetrics.ErrLockUnavailable)
		return nil
	}
	defer func() {
		if err := s.locker.Release(context.WithoutCancel(parent), lockKeyPrefix+name, token); err != nil {
			log.Warn("release job lock failed", zap.Error(err))
		}
	}()

	start := time.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	run := s.newJobRun(name, batchSize)
	s.logJobStart(ctx, run)
	schedMetrics.IncJobRun(name)

	err = fn(ctx, run)
	schedMetrics.ObserveJobDuration(name, time.Since(start))
	if err != nil {
		run.IncError()
	}
	s.logJobFinish(ctx, run)
	if err == nil {
		return nil
	}

	schedMetrics.IncJobError(name, err)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		schedMetrics.IncJobTimeout(name)
		log.Warn("job timed out",
			zap.String("run_id", run.runID),
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}
	return fmt.Errorf("%s: %w", name, err)
}

// RunOnce runs every job a single time.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	return s.runJob(ctx, JobExpireOrders, s.cfg.BatchSize, s.cfg.JobTimeout, s.ExpireOrdersJob)
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := time.Now().Add(s.cfg.RunInterval)
	schedMetrics := obsmetrics.Scheduler()

	for {
		if lag := time.Since(nextRun); lag > 0 {
			schedMetrics.ObserveRunLoopLag(lag)
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		nextRun = nextRun.Add(s.cfg.RunInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ExpireOrdersJob expires orders still pending after PendingTTL, batch by
// batch, until a short batch or MaxBatches.
func (s *Scheduler) ExpireOrdersJob(ctx context.Context, run *jobRun) error {
	schedMetrics := obsmetrics.Scheduler()
	for i := 0; i < s.cfg.MaxBatches; i++ {
		result, err := s.orders.ExpireStale(ctx, s.cfg.PendingTTL, s.cfg.BatchSize)
		run.AddProcessed(result.Expired)
		schedMetrics.AddBatchProcessed(JobExpireOrders, "orders", result.Expired)
		if err != nil {
			return err
		}
		if result.Scanned < s.cfg.BatchSize || result.Expired == 0 {
			return nil
		}
	}
	return nil
}
