package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/civic-issue-service/internal/observability"
	"github.com/spec-kit/civic-issue-service/internal/persistence"
	"github.com/spec-kit/civic-issue-service/internal/service"
	apperrors "github.com/spec-kit/civic-issue-service/pkg/util/errorutil"
)

// SweepLockKey is the Redis key guarding one sweep across replicas.
const SweepLockKey = "civic:sla-sweep:lock"

// Sweeper runs one pass over overdue issues.
type Sweeper interface {
	RunSweep(ctx context.Context) (service.SweepResult, error)
}

// Locker hands out a cross-replica lease.
type Locker interface {
	AcquireLease(ctx context.Context, key string, ttl time.Duration) (*persistence.Lease, error)
}

// SLAWorker triggers the SLA sweep on a fixed interval.
type SLAWorker struct {
	sweeper  Sweeper
	locker   Locker
	metrics  *observability.Metrics
	logger   *zap.Logger
	interval time.Duration
	lockTTL  time.Duration
	now      func() time.Time
}

// SLAWorkerConfig bundles worker collaborators.
type SLAWorkerConfig struct {
	Sweeper  Sweeper
	Locker   Locker // optional
	Metrics  *observability.Metrics
	Logger   *zap.Logger
	Interval time.Duration
	LockTTL  time.Duration
}

// NewSLAWorker builds the worker; the interval never drops below one minute.
func NewSLAWorker(cfg SLAWorkerConfig) *SLAWorker {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	interval := cfg.Interval
	if interval < time.Minute {
		interval = time.Minute
	}
	lockTTL := cfg.LockTTL
	if lockTTL <= 0 {
		lockTTL = interval
	}
	return &SLAWorker{
		sweeper:  cfg.Sweeper,
		locker:   cfg.Locker,
		metrics:  cfg.Metrics,
		logger:   logger,
		interval: interval,
		lockTTL:  lockTTL,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Start blocks, sweeping every interval until ctx is cancelled. A panic in one
// tick is logged and the next tick runs normally.
func (w *SLAWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("sla worker started", zap.Duration("interval", w.interval))
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("sla worker stopped")
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *SLAWorker) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("sla sweep panicked; retrying next tick", zap.Any("panic", r))
		}
	}()

	if _, err := w.RunOnce(ctx); err != nil {
		if apperrors.HasCode(err, apperrors.CodeConflict) {
			w.logger.Debug("sla sweep skipped; another instance holds the lock")
			return
		}
		w.logger.Error("sla sweep failed", zap.Error(err))
	}
}

// RunOnce performs a single sweep under the lease when one can be taken.
// If the lock backend is unreachable the sweep runs anyway: the conditional
// escalation update already prevents double escalation.
func (w *SLAWorker) RunOnce(ctx context.Context) (service.SweepResult, error) {
	if w.locker != nil {
		lease, err := w.locker.AcquireLease(ctx, SweepLockKey, w.lockTTL)
		switch {
		case errors.Is(err, persistence.ErrLockHeld):
			return service.SweepResult{}, apperrors.NewConflict("sla sweep already running", nil)
		case err != nil:
			w.logger.Warn("sla sweep lock unavailable; sweeping without it", zap.Error(err))
		default:
			defer func() {
				if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
					w.logger.Warn("sla sweep lock release failed", zap.Error(err))
				}
			}()
		}
	}

	result, err := w.sweeper.RunSweep(ctx)
	if err != nil {
		return result, err
	}
	w.metrics.RecordSweep(w.now(), result.Escalated, result.Failed)
	return result, nil
}
