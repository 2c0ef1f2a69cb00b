package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/WordpressDesigne/mpesaprompt/internal/clock"
	"github.com/WordpressDesigne/mpesaprompt/internal/ledger/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
}

func NewService(p Params) domain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("ledger.service"),
		genID: p.GenID,
		clock: clk,
	}
}

func (s *Service) CreateEntry(ctx context.Context, tx *gorm.DB, req domain.CreateEntryRequest) (*domain.LedgerEntry, error) {
	if tx == nil {
		tx = s.db
	}
	if req.BusinessID == 0 {
		return nil, domain.ErrInvalidBusiness
	}
	sourceType := strings.TrimSpace(req.SourceType)
	if sourceType == "" {
		return nil, domain.ErrInvalidSourceType
	}
	if req.SourceID == 0 {
		return nil, domain.ErrInvalidSourceID
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		return nil, domain.ErrInvalidCurrency
	}
	if req.OccurredAt.IsZero() {
		return nil, domain.ErrInvalidOccurredAt
	}
	if err := domain.ValidateBalanced(req.Lines); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	entry := domain.LedgerEntry{
		ID:         s.genID.Generate(),
		BusinessID: req.BusinessID,
		SourceType: sourceType,
		SourceID:   req.SourceID,
		Currency:   currency,
		OccurredAt: req.OccurredAt.UTC(),
		CreatedAt:  now,
	}

	res := tx.WithContext(ctx).Exec(
		`INSERT INTO ledger_entries (id, business_id, source_type, source_id, currency, occurred_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (business_id, source_type, source_id) DO NOTHING`,
		entry.ID,
		entry.BusinessID,
		entry.SourceType,
		entry.SourceID,
		entry.Currency,
		entry.OccurredAt,
		entry.CreatedAt,
	)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, domain.ErrDuplicateEntry
	}

	lines := make([]domain.LedgerEntryLine, 0, len(req.Lines))
	for _, line := range req.Lines {
		accountID := line.AccountID
		if accountID == 0 {
			id, err := s.ensureAccount(ctx, tx, req.BusinessID, line.AccountCode, now)
			if err != nil {
				return nil, err
			}
			accountID = id
		}
		lines = append(lines, domain.LedgerEntryLine{
			ID:            s.genID.Generate(),
			LedgerEntryID: entry.ID,
			AccountID:     accountID,
			AccountCode:   line.AccountCode,
			Direction:     line.Direction,
			Amount:        line.Amount.Round(2),
			CreatedAt:     now,
		})
	}
	if err := tx.WithContext(ctx).Create(&lines).Error; err != nil {
		return nil, err
	}

	return &entry, nil
}

// ListPostings returns the most recent lines booked on one account.
func (s *Service) ListPostings(ctx context.Context, businessID snowflake.ID, accountCode string, limit int) ([]domain.Posting, error) {
	if businessID == 0 {
		return nil, domain.ErrInvalidBusiness
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var rows []domain.Posting
	err := s.db.WithContext(ctx).Raw(
		`SELECT le.id AS entry_id, le.source_type, le.source_id, le.currency, le.occurred_at,
		        l.direction, l.amount
		 FROM ledger_entries le
		 JOIN ledger_entry_lines l ON l.ledger_entry_id = le.id
		 JOIN ledger_accounts a ON a.id = l.account_id
		 WHERE le.business_id = ? AND a.code = ?
		 ORDER BY le.occurred_at DESC, le.id DESC
		 LIMIT ?`,
		businessID,
		accountCode,
		limit,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Service) ensureAccount(ctx context.Context, tx *gorm.DB, businessID snowflake.ID, code string, now time.Time) (snowflake.ID, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return 0, domain.ErrInvalidAccount
	}
	name := domain.AccountNames[code]
	if name == "" {
		return 0, domain.ErrInvalidAccount
	}

	var accountID snowflake.ID
	if err := tx.WithContext(ctx).Raw(
		`SELECT id
		 FROM ledger_accounts
		 WHERE business_id = ? AND code = ?`,
		businessID,
		code,
	).Scan(&accountID).Error; err != nil {
		return 0, err
	}
	if accountID != 0 {
		return accountID, nil
	}

	if err := tx.WithContext(ctx).Exec(
		`INSERT INTO ledger_accounts (id, business_id, code, name, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (business_id, code) DO NOTHING`,
		s.genID.Generate(),
		businessID,
		code,
		name,
		now,
	).Error; err != nil {
		return 0, err
	}

	if err := tx.WithContext(ctx).Raw(
		`SELECT id
		 FROM ledger_accounts
		 WHERE business_id = ? AND code = ?`,
		businessID,
		code,
	).Scan(&accountID).Error; err != nil {
		return 0, err
	}
	if accountID == 0 {
		return 0, errors.New("ledger_account_not_found")
	}
	return accountID, nil
}
