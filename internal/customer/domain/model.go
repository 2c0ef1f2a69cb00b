package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Customer aggregates completed payments per (business, phone number).
type Customer struct {
	ID                 snowflake.ID    `gorm:"primaryKey" json:"id"`
	BusinessID         snowflake.ID    `gorm:"not null;uniqueIndex:ux_customers_business_phone,priority:1" json:"business_id"`
	PhoneNumber        string          `gorm:"type:text;not null;uniqueIndex:ux_customers_business_phone,priority:2" json:"phone_number"`
	Name               string          `gorm:"type:text;not null" json:"name"`
	TransactionCount   int64           `gorm:"not null" json:"transaction_count"`
	TotalAmount        decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"total_amount"`
	FirstTransactionAt *time.Time      `json:"first_transaction_at,omitempty"`
	LastTransactionAt  *time.Time      `json:"last_transaction_at,omitempty"`
	CreatedAt          time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt          time.Time       `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (Customer) TableName() string { return "customers" }

// DefaultName is the placeholder used until the payer's name is known.
func DefaultName(phone string) string {
	return "Customer " + phone
}

type RecordRequest struct {
	BusinessID  snowflake.ID
	PhoneNumber string
	Name        string
	Amount      decimal.Decimal
	OccurredAt  time.Time
}

type ListRequest struct {
	BusinessID snowflake.ID
	Limit      int
	Offset     int
}
