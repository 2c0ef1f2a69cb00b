package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/WordpressDesigne/mpesaprompt/internal/clock"
	"github.com/WordpressDesigne/mpesaprompt/internal/observability/metrics"
	paymentdomain "github.com/WordpressDesigne/mpesaprompt/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const runTimeout = 30 * time.Second

type Params struct {
	fx.In

	Log        *zap.Logger
	Clock      clock.Clock
	PaymentSvc paymentdomain.Service
	Config     Config                  `optional:"true"`
	Metrics    *metrics.PaymentMetrics `optional:"true"`
}

// Scheduler fails initiations that never got a checkout id. Without one no
// callback can ever reconcile them.
type Scheduler struct {
	log        *zap.Logger
	clock      clock.Clock
	paymentSvc paymentdomain.Service
	metrics    *metrics.PaymentMetrics
	cfg        Config
}

func New(p Params) *Scheduler {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Scheduler{
		log:        p.Log.Named("scheduler"),
		clock:      clk,
		paymentSvc: p.PaymentSvc,
		metrics:    p.Metrics,
		cfg:        p.Config.withDefaults(),
	}
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := s.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.log.Warn("stale initiation sweep failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce expires one batch and reports how many transactions were failed.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	if s.paymentSvc == nil {
		return 0, errors.New("scheduler_unavailable")
	}
	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	cutoff := s.clock.Now().Add(-s.cfg.StaleAfter)
	expired, err := s.paymentSvc.ExpireStaleInitiations(ctx, cutoff, s.cfg.BatchSize)
	s.metrics.AddSweptInitiations(expired)
	if expired > 0 {
		s.log.Info("stale initiations expired", zap.Int("count", expired), zap.Time("cutoff", cutoff))
	}
	return expired, err
}
