package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// LedgerService writes journal entries. CreateEntry runs on the caller's
// transaction so postings commit atomically with the balances they explain.
type LedgerService interface {
	CreateEntry(ctx context.Context, tx *gorm.DB, req CreateEntryRequest) (*LedgerEntry, error)
	ListPostings(ctx context.Context, businessID snowflake.ID, accountCode string, limit int) ([]Posting, error)
}

// Service is the package alias for LedgerService.
type Service = LedgerService

var (
	ErrInvalidBusiness      = errors.New("invalid_business")
	ErrInvalidSourceType    = errors.New("invalid_source_type")
	ErrInvalidSourceID      = errors.New("invalid_source_id")
	ErrInvalidCurrency      = errors.New("invalid_currency")
	ErrInvalidOccurredAt    = errors.New("invalid_occurred_at")
	ErrInvalidEntryLines    = errors.New("invalid_entry_lines")
	ErrInvalidLineAmount    = errors.New("invalid_line_amount")
	ErrInvalidLineDirection = errors.New("invalid_line_direction")
	ErrInvalidAccount       = errors.New("invalid_account")
	ErrUnbalancedEntry      = errors.New("unbalanced_entry")
	ErrDuplicateEntry       = errors.New("duplicate_entry")
)
