package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/WordpressDesigne/mpesaprompt/internal/clock"
	"github.com/WordpressDesigne/mpesaprompt/internal/ledger/domain"
	"github.com/WordpressDesigne/mpesaprompt/internal/testutil"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func TestCreateEntryWritesBalancedPostings(t *testing.T) {
	db := testutil.NewDB(t)
	node := testutil.NewNode(t)
	now := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	svc := NewService(Params{DB: db, Log: zap.NewNop(), GenID: node, Clock: clock.NewFixed(now)})
	ctx := context.Background()

	businessID := node.Generate()
	sourceID := node.Generate()
	req := domain.CreateEntryRequest{
		BusinessID: businessID,
		SourceType: domain.SourceTypePayment,
		SourceID:   sourceID,
		Currency:   "kes",
		OccurredAt: now,
		Lines: []domain.LedgerEntryLine{
			{AccountCode: domain.AccountCodeCashClearing, Direction: domain.LedgerEntryDirectionDebit, Amount: decimal.RequireFromString("10")},
			{AccountCode: domain.AccountCodeMerchantPayable, Direction: domain.LedgerEntryDirectionCredit, Amount: decimal.RequireFromString("9.9")},
			{AccountCode: domain.AccountCodeCommissionRevenue, Direction: domain.LedgerEntryDirectionCredit, Amount: decimal.RequireFromString("0.1")},
		},
	}

	entry, err := svc.CreateEntry(ctx, db, req)
	if err != nil {
		t.Fatalf("create entry: %v", err)
	}
	if entry.Currency != "KES" {
		t.Fatalf("expected upper-cased currency, got %q", entry.Currency)
	}

	var accounts int64
	if err := db.Raw(`SELECT COUNT(1) FROM ledger_accounts WHERE business_id = ?`, businessID).Scan(&accounts).Error; err != nil {
		t.Fatalf("count accounts: %v", err)
	}
	if accounts != 3 {
		t.Fatalf("expected 3 accounts, got %d", accounts)
	}

	postings, err := svc.ListPostings(ctx, businessID, domain.AccountCodeCommissionRevenue, 10)
	if err != nil {
		t.Fatalf("list postings: %v", err)
	}
	if len(postings) != 1 || !postings[0].Amount.Equal(decimal.RequireFromString("0.1")) {
		t.Fatalf("unexpected commission postings: %+v", postings)
	}
	if postings[0].SourceID != sourceID {
		t.Fatalf("expected source %s, got %s", sourceID, postings[0].SourceID)
	}

	if _, err := svc.CreateEntry(ctx, db, req); !errors.Is(err, domain.ErrDuplicateEntry) {
		t.Fatalf("expected ErrDuplicateEntry on replay, got %v", err)
	}
}

func TestCreateEntryRejectsUnknownAccount(t *testing.T) {
	db := testutil.NewDB(t)
	node := testutil.NewNode(t)
	svc := NewService(Params{DB: db, Log: zap.NewNop(), GenID: node, Clock: clock.SystemClock{}})

	_, err := svc.CreateEntry(context.Background(), db, domain.CreateEntryRequest{
		BusinessID: node.Generate(),
		SourceType: domain.SourceTypeAdjustment,
		SourceID:   node.Generate(),
		Currency:   "KES",
		OccurredAt: time.Now(),
		Lines: []domain.LedgerEntryLine{
			{AccountCode: "suspense", Direction: domain.LedgerEntryDirectionDebit, Amount: decimal.NewFromInt(1)},
			{AccountCode: domain.AccountCodeCashClearing, Direction: domain.LedgerEntryDirectionCredit, Amount: decimal.NewFromInt(1)},
		},
	})
	if !errors.Is(err, domain.ErrInvalidAccount) {
		t.Fatalf("expected ErrInvalidAccount, got %v", err)
	}
}
