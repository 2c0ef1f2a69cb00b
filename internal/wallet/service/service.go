package service

import (
	"context"
	"strings"

	"github.com/WordpressDesigne/mpesaprompt/internal/clock"
	"github.com/WordpressDesigne/mpesaprompt/internal/config"
	ledgerdomain "github.com/WordpressDesigne/mpesaprompt/internal/ledger/domain"
	"github.com/WordpressDesigne/mpesaprompt/internal/wallet/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Cfg       config.Config
	Clock     clock.Clock
	LedgerSvc ledgerdomain.Service
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	ledgerSvc ledgerdomain.Service
	rate      decimal.Decimal
	currency  string
}

func New(p Params) domain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("wallet.service"),
		genID:     p.GenID,
		clock:     clk,
		ledgerSvc: p.LedgerSvc,
		rate:      p.Cfg.Payment.Rate(),
		currency:  strings.ToUpper(strings.TrimSpace(p.Cfg.Payment.Currency)),
	}
}

// Commission is gross x rate rounded half away from zero to cents.
func Commission(gross, rate decimal.Decimal) decimal.Decimal {
	return gross.Mul(rate).Round(2)
}

func (s *Service) Settle(ctx context.Context, tx *gorm.DB, req domain.SettleRequest) (*domain.Settlement, error) {
	if req.BusinessID == 0 {
		return nil, domain.ErrInvalidBusiness
	}
	if !req.Gross.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}

	wallet, err := s.lockWallet(ctx, tx, req.BusinessID)
	if err != nil {
		return nil, err
	}

	gross := req.Gross.Round(2)
	commission := Commission(gross, s.rate)
	net := gross.Sub(commission)
	now := s.clock.Now()

	wallet.TotalEarnings = wallet.TotalEarnings.Add(gross)
	wallet.TotalCommissions = wallet.TotalCommissions.Add(commission)
	wallet.Balance = wallet.Balance.Add(net)
	wallet.UpdatedAt = now

	if err := tx.WithContext(ctx).Exec(
		`UPDATE wallets
		 SET balance = ?, total_earnings = ?, total_commissions = ?, updated_at = ?
		 WHERE id = ?`,
		wallet.Balance,
		wallet.TotalEarnings,
		wallet.TotalCommissions,
		now,
		wallet.ID,
	).Error; err != nil {
		return nil, err
	}

	lines := []ledgerdomain.LedgerEntryLine{
		{AccountCode: ledgerdomain.AccountCodeCashClearing, Direction: ledgerdomain.LedgerEntryDirectionDebit, Amount: gross},
		{AccountCode: ledgerdomain.AccountCodeMerchantPayable, Direction: ledgerdomain.LedgerEntryDirectionCredit, Amount: net},
	}
	if commission.IsPositive() {
		lines = append(lines, ledgerdomain.LedgerEntryLine{
			AccountCode: ledgerdomain.AccountCodeCommissionRevenue,
			Direction:   ledgerdomain.LedgerEntryDirectionCredit,
			Amount:      commission,
		})
	}
	occurredAt := req.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = now
	}
	if _, err := s.ledgerSvc.CreateEntry(ctx, tx, ledgerdomain.CreateEntryRequest{
		BusinessID: req.BusinessID,
		SourceType: ledgerdomain.SourceTypePayment,
		SourceID:   req.SourceID,
		Currency:   wallet.Currency,
		OccurredAt: occurredAt,
		Lines:      lines,
	}); err != nil {
		return nil, err
	}

	return &domain.Settlement{
		Gross:      gross,
		Rate:       s.rate,
		Commission: commission,
		Net:        net,
		Wallet:     *wallet,
	}, nil
}

// lockWallet loads the wallet row for update, creating it when a business predates wallets.
func (s *Service) lockWallet(ctx context.Context, tx *gorm.DB, businessID snowflake.ID) (*domain.Wallet, error) {
	wallet, err := s.selectForUpdate(ctx, tx, businessID)
	if err != nil {
		return nil, err
	}
	if wallet != nil {
		return wallet, nil
	}

	now := s.clock.Now()
	fresh := domain.NewWallet(s.genID.Generate(), businessID, s.currency, now)
	if err := tx.WithContext(ctx).Exec(
		`INSERT INTO wallets (id, business_id, balance, total_earnings, total_commissions, currency, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (business_id) DO NOTHING`,
		fresh.ID,
		fresh.BusinessID,
		fresh.Balance,
		fresh.TotalEarnings,
		fresh.TotalCommissions,
		fresh.Currency,
		now,
		now,
	).Error; err != nil {
		return nil, err
	}

	wallet, err = s.selectForUpdate(ctx, tx, businessID)
	if err != nil {
		return nil, err
	}
	if wallet == nil {
		return nil, domain.ErrNotFound
	}
	return wallet, nil
}

func (s *Service) selectForUpdate(ctx context.Context, tx *gorm.DB, businessID snowflake.ID) (*domain.Wallet, error) {
	var rows []domain.Wallet
	if err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("business_id = ?", businessID).
		Limit(1).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (s *Service) Get(ctx context.Context, businessID snowflake.ID) (*domain.Wallet, error) {
	if businessID == 0 {
		return nil, domain.ErrInvalidBusiness
	}
	var rows []domain.Wallet
	if err := s.db.WithContext(ctx).
		Where("business_id = ?", businessID).
		Limit(1).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, domain.ErrNotFound
	}
	return &rows[0], nil
}

func (s *Service) ListCommissions(ctx context.Context, businessID snowflake.ID, limit int) ([]domain.CommissionLine, error) {
	postings, err := s.ledgerSvc.ListPostings(ctx, businessID, ledgerdomain.AccountCodeCommissionRevenue, limit)
	if err != nil {
		return nil, err
	}
	out := make([]domain.CommissionLine, 0, len(postings))
	for _, p := range postings {
		amount := p.Amount
		if p.Direction == ledgerdomain.LedgerEntryDirectionDebit {
			amount = amount.Neg()
		}
		out = append(out, domain.CommissionLine{
			SourceID:   p.SourceID,
			Amount:     amount,
			Currency:   p.Currency,
			OccurredAt: p.OccurredAt,
		})
	}
	return out, nil
}
