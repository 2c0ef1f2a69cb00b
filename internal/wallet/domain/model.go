package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Wallet holds a tenant's running totals. Balance always equals
// TotalEarnings minus TotalCommissions.
type Wallet struct {
	ID               snowflake.ID    `gorm:"primaryKey"`
	BusinessID       snowflake.ID    `gorm:"not null;uniqueIndex:ux_wallets_business"`
	Balance          decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	TotalEarnings    decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	TotalCommissions decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	Currency         string          `gorm:"type:text;not null"`
	CreatedAt        time.Time       `gorm:"not null"`
	UpdatedAt        time.Time       `gorm:"not null"`
}

// TableName sets the database table name.
func (Wallet) TableName() string { return "wallets" }

// NewWallet returns an empty wallet for a business.
func NewWallet(id, businessID snowflake.ID, currency string, now time.Time) *Wallet {
	return &Wallet{
		ID:               id,
		BusinessID:       businessID,
		Balance:          decimal.Zero,
		TotalEarnings:    decimal.Zero,
		TotalCommissions: decimal.Zero,
		Currency:         currency,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

type SettleRequest struct {
	BusinessID snowflake.ID
	Gross      decimal.Decimal
	SourceID   snowflake.ID
	OccurredAt time.Time
}

// Settlement is the outcome of crediting one completed payment.
type Settlement struct {
	Gross      decimal.Decimal
	Rate       decimal.Decimal
	Commission decimal.Decimal
	Net        decimal.Decimal
	Wallet     Wallet
}

// CommissionLine is one commission posting from the ledger.
type CommissionLine struct {
	SourceID   snowflake.ID    `json:"source_id"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	OccurredAt time.Time       `json:"occurred_at"`
}
