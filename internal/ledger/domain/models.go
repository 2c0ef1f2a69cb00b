package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// LedgerEntryDirection represents debit or credit postings.
type LedgerEntryDirection string

const (
	LedgerEntryDirectionDebit  LedgerEntryDirection = "debit"
	LedgerEntryDirectionCredit LedgerEntryDirection = "credit"
)

const (
	SourceTypePayment    = "payment"
	SourceTypeAdjustment = "adjustment"
)

const (
	AccountCodeCashClearing      = "cash_clearing"
	AccountCodeMerchantPayable   = "merchant_payable"
	AccountCodeCommissionRevenue = "commission_revenue"
)

// AccountNames is the chart of accounts created lazily per business.
var AccountNames = map[string]string{
	AccountCodeCashClearing:      "Cash / Clearing",
	AccountCodeMerchantPayable:   "Merchant Payable",
	AccountCodeCommissionRevenue: "Commission Revenue",
}

// LedgerAccount defines a chart-of-accounts entry.
type LedgerAccount struct {
	ID         snowflake.ID `gorm:"primaryKey"`
	BusinessID snowflake.ID `gorm:"not null;uniqueIndex:ux_ledger_accounts_business_code,priority:1"`
	Code       string       `gorm:"type:text;not null;uniqueIndex:ux_ledger_accounts_business_code,priority:2"`
	Name       string       `gorm:"type:text;not null"`
	CreatedAt  time.Time    `gorm:"not null"`
}

// TableName sets the database table name.
func (LedgerAccount) TableName() string { return "ledger_accounts" }

// LedgerEntry captures the immutable header for a financial event.
type LedgerEntry struct {
	ID         snowflake.ID `gorm:"primaryKey"`
	BusinessID snowflake.ID `gorm:"not null;index"`
	SourceType string       `gorm:"type:text;not null"`
	SourceID   snowflake.ID `gorm:"not null"`
	Currency   string       `gorm:"type:text;not null"`
	OccurredAt time.Time    `gorm:"not null"`
	CreatedAt  time.Time    `gorm:"not null"`
}

// TableName sets the database table name.
func (LedgerEntry) TableName() string { return "ledger_entries" }

// LedgerEntryLine is a double-entry posting line. AccountCode is resolved to
// AccountID when the entry is written.
type LedgerEntryLine struct {
	ID            snowflake.ID         `gorm:"primaryKey"`
	LedgerEntryID snowflake.ID         `gorm:"not null;index"`
	AccountID     snowflake.ID         `gorm:"not null;index"`
	AccountCode   string               `gorm:"-"`
	Direction     LedgerEntryDirection `gorm:"type:text;not null"`
	Amount        decimal.Decimal      `gorm:"type:numeric(20,2);not null"`
	CreatedAt     time.Time            `gorm:"not null"`
}

// TableName sets the database table name.
func (LedgerEntryLine) TableName() string { return "ledger_entry_lines" }

type CreateEntryRequest struct {
	BusinessID snowflake.ID
	SourceType string
	SourceID   snowflake.ID
	Currency   string
	OccurredAt time.Time
	Lines      []LedgerEntryLine
}

// Posting is one line joined with its entry header, for reporting.
type Posting struct {
	EntryID    snowflake.ID         `gorm:"column:entry_id"`
	SourceType string               `gorm:"column:source_type"`
	SourceID   snowflake.ID         `gorm:"column:source_id"`
	Currency   string               `gorm:"column:currency"`
	OccurredAt time.Time            `gorm:"column:occurred_at"`
	Direction  LedgerEntryDirection `gorm:"column:direction"`
	Amount     decimal.Decimal      `gorm:"column:amount"`
}
