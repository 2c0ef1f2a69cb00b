package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusInitiated Status = "initiated"
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

func ParseStatus(value string) (Status, bool) {
	switch Status(value) {
	case StatusInitiated, StatusPending, StatusCompleted, StatusFailed:
		return Status(value), true
	default:
		return "", false
	}
}

// Transaction is one push-payment attempt. It moves
// initiated -> pending -> completed|failed, or initiated -> failed.
type Transaction struct {
	ID                snowflake.ID    `gorm:"primaryKey" json:"id"`
	BusinessID        snowflake.ID    `gorm:"not null;index" json:"business_id"`
	CustomerID        *snowflake.ID   `json:"customer_id,omitempty"`
	PhoneNumber       string          `gorm:"type:text;not null" json:"phone_number"`
	Amount            decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"amount"`
	Currency          string          `gorm:"type:text;not null" json:"currency"`
	AccountReference  string          `gorm:"type:text;not null" json:"account_reference"`
	TransactionDesc   string          `gorm:"type:text;not null" json:"transaction_desc"`
	TransactionType   string          `gorm:"type:text;not null" json:"transaction_type"`
	Status            Status          `gorm:"type:text;not null" json:"status"`
	IdempotencyKey    *string         `json:"idempotency_key,omitempty"`
	MerchantRequestID *string         `json:"merchant_request_id,omitempty"`
	CheckoutRequestID *string         `gorm:"uniqueIndex" json:"checkout_request_id,omitempty"`
	ResultCode        *int            `json:"result_code,omitempty"`
	ResultDesc        string          `gorm:"type:text;not null" json:"result_desc"`
	ReceiptNumber     *string         `json:"receipt_number,omitempty"`
	CommissionRate    decimal.Decimal `gorm:"type:numeric(10,6);not null" json:"commission_rate"`
	CommissionAmount  decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"commission_amount"`
	TransactionDate   *time.Time      `json:"transaction_date,omitempty"`
	SettledAt         *time.Time      `json:"settled_at,omitempty"`
	CreatedAt         time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (Transaction) TableName() string { return "transactions" }

// CallbackEvent is the raw gateway callback, kept so a callback that beats
// the pending transition can be replayed.
type CallbackEvent struct {
	ID                snowflake.ID   `gorm:"primaryKey"`
	CheckoutRequestID string         `gorm:"type:text;not null;uniqueIndex"`
	MerchantRequestID string         `gorm:"type:text;not null"`
	ResultCode        int            `gorm:"not null"`
	Payload           datatypes.JSON `gorm:"type:jsonb;not null"`
	Outcome           string         `gorm:"type:text;not null"`
	ReceivedAt        time.Time      `gorm:"not null"`
	ProcessedAt       *time.Time
}

// TableName sets the database table name.
func (CallbackEvent) TableName() string { return "callback_events" }

// Callback outcomes recorded on processed events.
const (
	OutcomeCompleted       = "completed"
	OutcomeFailed          = "failed"
	OutcomeAlreadyTerminal = "already_terminal"
)

type InitiateRequest struct {
	BusinessID       snowflake.ID
	PhoneNumber      string
	Amount           decimal.Decimal
	AccountReference string
	Description      string
	IdempotencyKey   string
}

type InitiateResult struct {
	Transaction     Transaction
	CustomerMessage string
	// Replayed is set when an earlier request with the same idempotency key is returned.
	Replayed bool
}

type ListRequest struct {
	BusinessID snowflake.ID
	Status     Status
	Limit      int
	Offset     int
}
