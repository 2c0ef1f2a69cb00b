package service

import (
	"context"
	"strings"
	"time"

	"github.com/WordpressDesigne/mpesaprompt/internal/clock"
	"github.com/WordpressDesigne/mpesaprompt/internal/customer/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
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

func New(p Params) domain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("customer.service"),
		genID: p.GenID,
		clock: clk,
	}
}

func (s *Service) Record(ctx context.Context, tx *gorm.DB, req domain.RecordRequest) (*domain.Customer, error) {
	if req.BusinessID == 0 {
		return nil, domain.ErrInvalidBusiness
	}
	phone := strings.TrimSpace(req.PhoneNumber)
	if phone == "" {
		return nil, domain.ErrInvalidPhoneNumber
	}
	if !req.Amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}

	now := s.clock.Now()
	occurredAt := req.OccurredAt.UTC()
	if req.OccurredAt.IsZero() {
		occurredAt = now
	}

	customer, err := s.lockOrCreate(ctx, tx, req.BusinessID, phone, now)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if name != "" && (customer.Name == "" || customer.Name == domain.DefaultName(phone)) {
		customer.Name = name
	}
	if customer.Name == "" {
		customer.Name = domain.DefaultName(phone)
	}
	customer.TransactionCount++
	customer.TotalAmount = customer.TotalAmount.Add(req.Amount.Round(2))
	if customer.FirstTransactionAt == nil || occurredAt.Before(*customer.FirstTransactionAt) {
		customer.FirstTransactionAt = &occurredAt
	}
	if customer.LastTransactionAt == nil || occurredAt.After(*customer.LastTransactionAt) {
		customer.LastTransactionAt = &occurredAt
	}
	customer.UpdatedAt = now

	if err := tx.WithContext(ctx).Exec(
		`UPDATE customers
		 SET name = ?, transaction_count = ?, total_amount = ?,
		     first_transaction_at = ?, last_transaction_at = ?, updated_at = ?
		 WHERE id = ?`,
		customer.Name,
		customer.TransactionCount,
		customer.TotalAmount,
		customer.FirstTransactionAt,
		customer.LastTransactionAt,
		now,
		customer.ID,
	).Error; err != nil {
		return nil, err
	}
	return customer, nil
}

func (s *Service) lockOrCreate(ctx context.Context, tx *gorm.DB, businessID snowflake.ID, phone string, now time.Time) (*domain.Customer, error) {
	customer, err := s.selectForUpdate(ctx, tx, businessID, phone)
	if err != nil {
		return nil, err
	}
	if customer != nil {
		return customer, nil
	}

	if err := tx.WithContext(ctx).Exec(
		`INSERT INTO customers (id, business_id, phone_number, name, transaction_count, total_amount, created_at, updated_at)
		 VALUES (?, ?, ?, ?, 0, 0, ?, ?)
		 ON CONFLICT (business_id, phone_number) DO NOTHING`,
		s.genID.Generate(),
		businessID,
		phone,
		domain.DefaultName(phone),
		now,
		now,
	).Error; err != nil {
		return nil, err
	}

	customer, err = s.selectForUpdate(ctx, tx, businessID, phone)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return nil, domain.ErrNotFound
	}
	return customer, nil
}

func (s *Service) selectForUpdate(ctx context.Context, tx *gorm.DB, businessID snowflake.ID, phone string) (*domain.Customer, error) {
	var rows []domain.Customer
	if err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("business_id = ? AND phone_number = ?", businessID, phone).
		Limit(1).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) ([]domain.Customer, error) {
	if req.BusinessID == 0 {
		return nil, domain.ErrInvalidBusiness
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset := req.Offset
	if offset < 0 {
		offset = 0
	}

	var rows []domain.Customer
	if err := s.db.WithContext(ctx).
		Where("business_id = ?", req.BusinessID).
		Order("last_transaction_at DESC").
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Service) Get(ctx context.Context, businessID, id snowflake.ID) (*domain.Customer, error) {
	if businessID == 0 {
		return nil, domain.ErrInvalidBusiness
	}
	var rows []domain.Customer
	if err := s.db.WithContext(ctx).
		Where("business_id = ? AND id = ?", businessID, id).
		Limit(1).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, domain.ErrNotFound
	}
	return &rows[0], nil
}
