package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Service interface {
	// Settle credits a completed payment. It must run on the reconciler's transaction.
	Settle(ctx context.Context, tx *gorm.DB, req SettleRequest) (*Settlement, error)
	Get(ctx context.Context, businessID snowflake.ID) (*Wallet, error)
	ListCommissions(ctx context.Context, businessID snowflake.ID, limit int) ([]CommissionLine, error)
}

var (
	ErrNotFound        = errors.New("wallet_not_found")
	ErrInvalidBusiness = errors.New("invalid_business")
	ErrInvalidAmount   = errors.New("invalid_amount")
)
