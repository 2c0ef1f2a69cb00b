package service

import (
	"context"
	"errors"
	"strings"
	"time"

	businessdomain "github.com/WordpressDesigne/mpesaprompt/internal/business/domain"
	"github.com/WordpressDesigne/mpesaprompt/internal/clock"
	"github.com/WordpressDesigne/mpesaprompt/internal/config"
	customerdomain "github.com/WordpressDesigne/mpesaprompt/internal/customer/domain"
	"github.com/WordpressDesigne/mpesaprompt/internal/events"
	"github.com/WordpressDesigne/mpesaprompt/internal/mpesa"
	"github.com/WordpressDesigne/mpesaprompt/internal/observability/metrics"
	paymentdomain "github.com/WordpressDesigne/mpesaprompt/internal/payment/domain"
	walletdomain "github.com/WordpressDesigne/mpesaprompt/internal/wallet/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultDescription     = "Payment"
	maxIdempotencyKeyLen   = 255
	maxResultDescLen       = 255
	abandonedInitiationMsg = "initiation abandoned"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Cfg         config.Config
	Clock       clock.Clock
	Repo        paymentdomain.Repository
	Gateway     paymentdomain.Gateway
	BusinessSvc businessdomain.Service
	WalletSvc   walletdomain.Service
	CustomerSvc customerdomain.Service
	Outbox      *events.Outbox
	Metrics     *metrics.PaymentMetrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        paymentdomain.Repository
	gateway     paymentdomain.Gateway
	businessSvc businessdomain.Service
	walletSvc   walletdomain.Service
	customerSvc customerdomain.Service
	outbox      *events.Outbox
	metrics     *metrics.PaymentMetrics
	currency    string
}

func NewService(p Params) paymentdomain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("payment.service"),
		genID:       p.GenID,
		clock:       clk,
		repo:        p.Repo,
		gateway:     p.Gateway,
		businessSvc: p.BusinessSvc,
		walletSvc:   p.WalletSvc,
		customerSvc: p.CustomerSvc,
		outbox:      p.Outbox,
		metrics:     p.Metrics,
		currency:    strings.ToUpper(strings.TrimSpace(p.Cfg.Payment.Currency)),
	}
}

func (s *Service) Get(ctx context.Context, businessID, id snowflake.ID) (*paymentdomain.Transaction, error) {
	if businessID == 0 {
		return nil, paymentdomain.ErrInvalidBusiness
	}
	txn, err := s.repo.FindByID(ctx, s.db, businessID, id)
	if err != nil {
		return nil, err
	}
	if txn == nil {
		return nil, paymentdomain.ErrNotFound
	}
	return txn, nil
}

func (s *Service) GetByCheckoutRequestID(ctx context.Context, businessID snowflake.ID, checkoutRequestID string) (*paymentdomain.Transaction, error) {
	if businessID == 0 {
		return nil, paymentdomain.ErrInvalidBusiness
	}
	checkoutRequestID = strings.TrimSpace(checkoutRequestID)
	if checkoutRequestID == "" {
		return nil, paymentdomain.ErrInvalidCheckoutRequest
	}
	txn, err := s.repo.FindByCheckoutRequestID(ctx, s.db, businessID, checkoutRequestID)
	if err != nil {
		return nil, err
	}
	if txn == nil {
		return nil, paymentdomain.ErrNotFound
	}
	return txn, nil
}

func (s *Service) List(ctx context.Context, req paymentdomain.ListRequest) ([]paymentdomain.Transaction, error) {
	if req.BusinessID == 0 {
		return nil, paymentdomain.ErrInvalidBusiness
	}
	if req.Status != "" {
		if _, ok := paymentdomain.ParseStatus(string(req.Status)); !ok {
			return nil, paymentdomain.ErrInvalidStatus
		}
	}
	return s.repo.List(ctx, s.db, req)
}

// ExpireStaleInitiations fails initiated transactions that never reached the
// gateway's acceptance. Pending transactions are left alone.
func (s *Service) ExpireStaleInitiations(ctx context.Context, olderThan time.Time, limit int) (int, error) {
	rows, err := s.repo.ListStale(ctx, s.db, paymentdomain.StatusInitiated, olderThan, limit)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, row := range rows {
		now := s.clock.Now()
		ok, err := s.repo.Transition(ctx, s.db, row.ID, []paymentdomain.Status{paymentdomain.StatusInitiated}, map[string]any{
			"status":      paymentdomain.StatusFailed,
			"result_desc": abandonedInitiationMsg,
			"updated_at":  now,
		})
		if err != nil {
			return expired, err
		}
		if ok {
			expired++
			s.log.Info("stale initiation expired",
				zap.String("transaction_id", row.ID.String()),
				zap.String("business_id", row.BusinessID.String()),
			)
		}
	}
	return expired, nil
}

// withRetry runs fn again once when it reports a persistence conflict.
func withRetry(fn func() error) error {
	err := fn()
	if errors.Is(err, paymentdomain.ErrPersistenceConflict) {
		err = fn()
	}
	return err
}

func truncate(value string, max int) string {
	return mpesa.Truncate(strings.TrimSpace(value), max)
}

func stringPtr(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
