package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	businessdomain "github.com/WordpressDesigne/mpesaprompt/internal/business/domain"
	businessrepo "github.com/WordpressDesigne/mpesaprompt/internal/business/repository"
	businessservice "github.com/WordpressDesigne/mpesaprompt/internal/business/service"
	"github.com/WordpressDesigne/mpesaprompt/internal/clock"
	"github.com/WordpressDesigne/mpesaprompt/internal/config"
	customerdomain "github.com/WordpressDesigne/mpesaprompt/internal/customer/domain"
	customerservice "github.com/WordpressDesigne/mpesaprompt/internal/customer/service"
	"github.com/WordpressDesigne/mpesaprompt/internal/events"
	ledgerservice "github.com/WordpressDesigne/mpesaprompt/internal/ledger/service"
	"github.com/WordpressDesigne/mpesaprompt/internal/mpesa"
	"github.com/WordpressDesigne/mpesaprompt/internal/payment/domain"
	"github.com/WordpressDesigne/mpesaprompt/internal/payment/repository"
	"github.com/WordpressDesigne/mpesaprompt/internal/testutil"
	walletdomain "github.com/WordpressDesigne/mpesaprompt/internal/wallet/domain"
	walletservice "github.com/WordpressDesigne/mpesaprompt/internal/wallet/service"
	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
)

type stubGateway struct {
	mu       sync.Mutex
	calls    []mpesa.STKPushRequest
	err      error
	checkout string
}

func (g *stubGateway) STKPush(_ context.Context, _ mpesa.Credentials, req mpesa.STKPushRequest) (*mpesa.STKPushResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, req)
	if g.err != nil {
		return nil, g.err
	}
	checkout := g.checkout
	if checkout == "" {
		checkout = fmt.Sprintf("ws_CO_%d", len(g.calls))
	}
	return &mpesa.STKPushResponse{
		MerchantRequestID:   fmt.Sprintf("mr-%d", len(g.calls)),
		CheckoutRequestID:   checkout,
		ResponseCode:        "0",
		ResponseDescription: "Success. Request accepted for processing",
		CustomerMessage:     "Success. Request accepted for processing",
	}, nil
}

func (g *stubGateway) CountryCode() string       { return mpesa.DefaultCountryCode }
func (g *stubGateway) Location() *time.Location { return time.UTC }

func (g *stubGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

type fixture struct {
	svc       *Service
	db        *gorm.DB
	gateway   *stubGateway
	clock     *clock.Fixed
	business  businessdomain.Service
	wallets   walletdomain.Service
	customers customerdomain.Service
	logs      *observer.ObservedLogs
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	node := testutil.NewNode(t)
	clk := clock.NewFixed(time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC))
	core, logs := observer.New(zapcore.InfoLevel)
	log := zap.New(core)

	var cfg config.Config
	cfg.Payment.CommissionRate = 0.01
	cfg.Payment.Currency = "KES"
	cfg.Credentials.Secret = "test-secret"
	cfg.Mpesa.CallbackURL = "https://pay.example.test/callback"

	businessSvc := businessservice.New(businessservice.Params{
		DB: db, Log: log, GenID: node, Repo: businessrepo.Provide(), Cfg: cfg, Clock: clk,
	})
	ledgerSvc := ledgerservice.NewService(ledgerservice.Params{DB: db, Log: log, GenID: node, Clock: clk})
	walletSvc := walletservice.New(walletservice.Params{DB: db, Log: log, GenID: node, Cfg: cfg, Clock: clk, LedgerSvc: ledgerSvc})
	customerSvc := customerservice.New(customerservice.Params{DB: db, Log: log, GenID: node, Clock: clk})
	gateway := &stubGateway{}

	svc := NewService(Params{
		DB:          db,
		Log:         log,
		GenID:       node,
		Cfg:         cfg,
		Clock:       clk,
		Repo:        repository.Provide(),
		Gateway:     gateway,
		BusinessSvc: businessSvc,
		WalletSvc:   walletSvc,
		CustomerSvc: customerSvc,
		Outbox:      events.NewOutbox(db, node, clk),
	}).(*Service)

	return &fixture{
		svc:       svc,
		db:        db,
		gateway:   gateway,
		clock:     clk,
		business:  businessSvc,
		wallets:   walletSvc,
		customers: customerSvc,
		logs:      logs,
	}
}

func (f *fixture) configuredBusiness(t *testing.T, name string) snowflake.ID {
	t.Helper()
	ctx := context.Background()
	business, err := f.business.Create(ctx, businessdomain.CreateRequest{Name: name, Environment: "sandbox"})
	if err != nil {
		t.Fatalf("create business: %v", err)
	}
	if _, err := f.business.UpdateCredentials(ctx, businessdomain.UpdateCredentialsRequest{
		ID:             business.ID,
		ConsumerKey:    "ck",
		ConsumerSecret: "cs",
		Passkey:        "passkey",
		PaybillNumber:  "174379",
	}); err != nil {
		t.Fatalf("update credentials: %v", err)
	}
	return business.ID
}

func (f *fixture) initiate(t *testing.T, businessID snowflake.ID, amount int64) *domain.InitiateResult {
	t.Helper()
	res, err := f.svc.Initiate(context.Background(), domain.InitiateRequest{
		BusinessID:  businessID,
		PhoneNumber: "0712345678",
		Amount:      decimal.NewFromInt(amount),
	})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	return res
}

func successCallback(checkoutID string, amount string) []byte {
	return []byte(fmt.Sprintf(`{"Body":{"stkCallback":{
		"MerchantRequestID":"mr-1",
		"CheckoutRequestID":%q,
		"ResultCode":0,
		"ResultDesc":"The service request is processed successfully.",
		"CallbackMetadata":{"Item":[
			{"Name":"Amount","Value":%s},
			{"Name":"MpesaReceiptNumber","Value":"NLJ7RT61SV"},
			{"Name":"TransactionDate","Value":20260105091502},
			{"Name":"PhoneNumber","Value":254712345678},
			{"Name":"FirstName","Value":"Jane"},
			{"Name":"LastName","Value":"Wanjiru"}
		]}}}}`, checkoutID, amount))
}

func failureCallback(checkoutID string, code int, desc string) []byte {
	return []byte(fmt.Sprintf(`{"Body":{"stkCallback":{
		"MerchantRequestID":"mr-1",
		"CheckoutRequestID":%q,
		"ResultCode":%d,
		"ResultDesc":%q}}}`, checkoutID, code, desc))
}

func countRows(t *testing.T, db *gorm.DB, table string) int64 {
	t.Helper()
	var n int64
	if err := db.Table(table).Count(&n).Error; err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

// assertSettledOnce checks the wallet and customer reflect exactly one payment of 10.
func (f *fixture) assertSettledOnce(t *testing.T, businessID snowflake.ID) {
	t.Helper()
	ctx := context.Background()
	wallet, err := f.wallets.Get(ctx, businessID)
	if err != nil {
		t.Fatalf("wallet: %v", err)
	}
	if !wallet.Balance.Equal(decimal.RequireFromString("9.9")) || !wallet.TotalEarnings.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("expected a single settlement, got balance %s earnings %s", wallet.Balance, wallet.TotalEarnings)
	}
	customers, err := f.customers.List(ctx, customerdomain.ListRequest{BusinessID: businessID})
	if err != nil {
		t.Fatalf("customers: %v", err)
	}
	if len(customers) != 1 || customers[0].TransactionCount != 1 || !customers[0].TotalAmount.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("expected one customer with one transaction, got %+v", customers)
	}
	if n := countRows(t, f.db, "outbox_events"); n != 1 {
		t.Fatalf("expected one outbox event, got %d", n)
	}
}

func storedOutcome(t *testing.T, db *gorm.DB, checkoutID string) string {
	t.Helper()
	var outcome string
	if err := db.Table("callback_events").Select("outcome").Where("checkout_request_id = ?", checkoutID).Scan(&outcome).Error; err != nil {
		t.Fatalf("load callback event: %v", err)
	}
	return outcome
}

func TestInitiateAcceptedMovesToPending(t *testing.T) {
	f := newFixture(t)
	businessID := f.configuredBusiness(t, "Duka")

	res := f.initiate(t, businessID, 10)
	txn := res.Transaction
	if txn.Status != domain.StatusPending {
		t.Fatalf("expected pending, got %s", txn.Status)
	}
	if txn.CheckoutRequestID == nil || *txn.CheckoutRequestID != "ws_CO_1" {
		t.Fatalf("expected checkout id stored, got %v", txn.CheckoutRequestID)
	}
	if txn.PhoneNumber != "254712345678" || txn.Currency != "KES" {
		t.Fatalf("unexpected transaction: %+v", txn)
	}
	if res.CustomerMessage == "" {
		t.Fatalf("expected customer message")
	}

	sent := f.gateway.calls[0]
	if sent.Amount != 10 || sent.Shortcode != "174379" || sent.TransactionType != mpesa.TransactionTypePayBill {
		t.Fatalf("unexpected gateway request: %+v", sent)
	}
	if sent.AccountReference != "174379" || sent.TransactionDesc != "Payment" {
		t.Fatalf("expected defaults, got %q / %q", sent.AccountReference, sent.TransactionDesc)
	}
	if sent.CallbackURL != "https://pay.example.test/callback" {
		t.Fatalf("unexpected callback url %q", sent.CallbackURL)
	}
}

func TestInitiateTruncatesReferenceAndDescription(t *testing.T) {
	f := newFixture(t)
	businessID := f.configuredBusiness(t, "Duka")

	if _, err := f.svc.Initiate(context.Background(), domain.InitiateRequest{
		BusinessID:       businessID,
		PhoneNumber:      "+254712345678",
		Amount:           decimal.NewFromInt(5),
		AccountReference: "INVOICE-2026-0001",
		Description:      "Payment for order 42",
	}); err != nil {
		t.Fatalf("initiate: %v", err)
	}
	sent := f.gateway.calls[0]
	if sent.AccountReference != "INVOICE-2026" || sent.TransactionDesc != "Payment for o" {
		t.Fatalf("expected truncated fields, got %q / %q", sent.AccountReference, sent.TransactionDesc)
	}
}

func TestInitiateRejectedRecordsFailure(t *testing.T) {
	f := newFixture(t)
	businessID := f.configuredBusiness(t, "Duka")
	f.gateway.err = &mpesa.GatewayError{Kind: mpesa.ErrGatewayRejected, StatusCode: 400, Message: "Invalid PhoneNumber"}

	_, err := f.svc.Initiate(context.Background(), domain.InitiateRequest{
		BusinessID:  businessID,
		PhoneNumber: "0712345678",
		Amount:      decimal.NewFromInt(10),
	})
	if !errors.Is(err, mpesa.ErrGatewayRejected) {
		t.Fatalf("expected gateway rejection, got %v", err)
	}

	rows, err := f.svc.List(context.Background(), domain.ListRequest{BusinessID: businessID})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 || rows[0].Status != domain.StatusFailed {
		t.Fatalf("expected a single failed transaction, got %+v", rows)
	}
	if rows[0].ResultDesc != "Invalid PhoneNumber" || rows[0].CheckoutRequestID != nil {
		t.Fatalf("unexpected failure record: %+v", rows[0])
	}
}

func TestInitiateWithoutCredentialsPersistsNothing(t *testing.T) {
	f := newFixture(t)
	business, err := f.business.Create(context.Background(), businessdomain.CreateRequest{Name: "Bare", Environment: "sandbox"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err = f.svc.Initiate(context.Background(), domain.InitiateRequest{
		BusinessID:  business.ID,
		PhoneNumber: "0712345678",
		Amount:      decimal.NewFromInt(10),
	})
	if !errors.Is(err, businessdomain.ErrNotConfigured) {
		t.Fatalf("expected not configured, got %v", err)
	}
	if f.gateway.callCount() != 0 {
		t.Fatalf("gateway must not be called")
	}
	if n := countRows(t, f.db, "transactions"); n != 0 {
		t.Fatalf("expected no transactions, got %d", n)
	}
}

func TestInitiateValidatesInput(t *testing.T) {
	f := newFixture(t)
	businessID := f.configuredBusiness(t, "Duka")

	cases := []struct {
		name  string
		req   domain.InitiateRequest
		error error
	}{
		{"zero amount", domain.InitiateRequest{BusinessID: businessID, PhoneNumber: "0712345678", Amount: decimal.Zero}, domain.ErrInvalidAmount},
		{"fractional amount", domain.InitiateRequest{BusinessID: businessID, PhoneNumber: "0712345678", Amount: decimal.RequireFromString("10.5")}, domain.ErrInvalidAmount},
		{"bad phone", domain.InitiateRequest{BusinessID: businessID, PhoneNumber: "12", Amount: decimal.NewFromInt(1)}, mpesa.ErrInvalidPhoneNumber},
		{"no business", domain.InitiateRequest{PhoneNumber: "0712345678", Amount: decimal.NewFromInt(1)}, domain.ErrInvalidBusiness},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.svc.Initiate(context.Background(), tc.req); !errors.Is(err, tc.error) {
				t.Fatalf("expected %v, got %v", tc.error, err)
			}
		})
	}
	if f.gateway.callCount() != 0 {
		t.Fatalf("gateway must not be called for invalid input")
	}
}

func TestInitiateReplaysIdempotencyKey(t *testing.T) {
	f := newFixture(t)
	businessID := f.configuredBusiness(t, "Duka")
	req := domain.InitiateRequest{
		BusinessID:     businessID,
		PhoneNumber:    "0712345678",
		Amount:         decimal.NewFromInt(10),
		IdempotencyKey: "order-42",
	}

	first, err := f.svc.Initiate(context.Background(), req)
	if err != nil {
		t.Fatalf("first initiate: %v", err)
	}
	second, err := f.svc.Initiate(context.Background(), req)
	if err != nil {
		t.Fatalf("second initiate: %v", err)
	}
	if !second.Replayed || second.Transaction.ID != first.Transaction.ID {
		t.Fatalf("expected replay of %s, got %+v", first.Transaction.ID, second)
	}
	if f.gateway.callCount() != 1 {
		t.Fatalf("expected one gateway call, got %d", f.gateway.callCount())
	}
}

func TestCallbackSuccessSettles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	businessID := f.configuredBusiness(t, "Duka")
	res := f.initiate(t, businessID, 10)
	f.clock.Advance(30 * time.Second)

	ack := f.svc.HandleCallback(ctx, successCallback("ws_CO_1", "10"))
	if ack.ResultCode != 0 || ack.ThirdPartyTransID != "NLJ7RT61SV" {
		t.Fatalf("unexpected ack: %+v", ack)
	}

	txn, err := f.svc.Get(ctx, businessID, res.Transaction.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if txn.Status != domain.StatusCompleted || txn.ReceiptNumber == nil || *txn.ReceiptNumber != "NLJ7RT61SV" {
		t.Fatalf("unexpected transaction: %+v", txn)
	}
	if !txn.CommissionAmount.Equal(decimal.RequireFromString("0.1")) || txn.SettledAt == nil || txn.CustomerID == nil {
		t.Fatalf("expected settlement recorded, got %+v", txn)
	}
	if txn.TransactionDate == nil || !txn.TransactionDate.Equal(time.Date(2026, 1, 5, 9, 15, 2, 0, time.UTC)) {
		t.Fatalf("unexpected transaction date %v", txn.TransactionDate)
	}

	wallet, err := f.wallets.Get(ctx, businessID)
	if err != nil {
		t.Fatalf("wallet: %v", err)
	}
	if !wallet.Balance.Equal(decimal.RequireFromString("9.9")) || !wallet.TotalCommissions.Equal(decimal.RequireFromString("0.1")) {
		t.Fatalf("unexpected wallet: %+v", wallet)
	}

	customers, err := f.customers.List(ctx, customerdomain.ListRequest{BusinessID: businessID})
	if err != nil {
		t.Fatalf("customers: %v", err)
	}
	if len(customers) != 1 || customers[0].Name != "Jane Wanjiru" || customers[0].TransactionCount != 1 {
		t.Fatalf("unexpected customers: %+v", customers)
	}

	var outbox []struct {
		EventType string
		DedupeKey string
	}
	if err := f.db.Table("outbox_events").Select("event_type, dedupe_key").Find(&outbox).Error; err != nil {
		t.Fatalf("outbox: %v", err)
	}
	if len(outbox) != 1 || outbox[0].EventType != events.EventPaymentCompleted {
		t.Fatalf("expected one completed event, got %+v", outbox)
	}
}

func TestDuplicateCallbackIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	businessID := f.configuredBusiness(t, "Duka")
	f.initiate(t, businessID, 10)

	f.svc.HandleCallback(ctx, successCallback("ws_CO_1", "10"))
	ack := f.svc.HandleCallback(ctx, successCallback("ws_CO_1", "10"))
	if ack.ResultCode != 0 {
		t.Fatalf("duplicate must still be acknowledged: %+v", ack)
	}

	f.assertSettledOnce(t, businessID)
}

func TestRedeliveryAfterSettlementIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	businessID := f.configuredBusiness(t, "Duka")
	res := f.initiate(t, businessID, 10)

	f.svc.HandleCallback(ctx, successCallback("ws_CO_1", "10"))
	// Leave the stored event unprocessed so the redelivery reaches the locked row.
	if err := f.db.Exec(`UPDATE callback_events SET processed_at = NULL`).Error; err != nil {
		t.Fatalf("reset processed_at: %v", err)
	}

	ack := f.svc.HandleCallback(ctx, successCallback("ws_CO_1", "10"))
	if ack.ResultCode != 0 || ack.ThirdPartyTransID != "" {
		t.Fatalf("unexpected ack for settled transaction: %+v", ack)
	}

	f.assertSettledOnce(t, businessID)
	txn, err := f.svc.Get(ctx, businessID, res.Transaction.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if txn.Status != domain.StatusCompleted {
		t.Fatalf("expected completed, got %s", txn.Status)
	}
	if got := storedOutcome(t, f.db, "ws_CO_1"); got != domain.OutcomeCompleted {
		t.Fatalf("stored outcome must stay %q, got %q", domain.OutcomeCompleted, got)
	}
	var unprocessed int64
	if err := f.db.Table("callback_events").Where("processed_at IS NULL").Count(&unprocessed).Error; err != nil {
		t.Fatalf("count unprocessed: %v", err)
	}
	if unprocessed != 0 {
		t.Fatalf("redelivered event must be marked processed")
	}
}

func TestCancelledCallbackFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	businessID := f.configuredBusiness(t, "Duka")
	res := f.initiate(t, businessID, 10)

	ack := f.svc.HandleCallback(ctx, failureCallback("ws_CO_1", 1032, "Request cancelled by user"))
	if ack.ResultCode != 0 || ack.ThirdPartyTransID != "" {
		t.Fatalf("unexpected ack: %+v", ack)
	}

	txn, err := f.svc.Get(ctx, businessID, res.Transaction.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if txn.Status != domain.StatusFailed || txn.ResultCode == nil || *txn.ResultCode != 1032 {
		t.Fatalf("unexpected transaction: %+v", txn)
	}
	wallet, err := f.wallets.Get(ctx, businessID)
	if err != nil {
		t.Fatalf("wallet: %v", err)
	}
	if !wallet.Balance.IsZero() {
		t.Fatalf("failed payment must not credit the wallet")
	}

	// A late success for a terminal transaction changes nothing.
	f.svc.HandleCallback(ctx, successCallback("ws_CO_1", "10"))
	txn, _ = f.svc.Get(ctx, businessID, res.Transaction.ID)
	if txn.Status != domain.StatusFailed {
		t.Fatalf("terminal status must not change, got %s", txn.Status)
	}
}

func TestEarlyCallbackReplayedAfterAcceptance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	businessID := f.configuredBusiness(t, "Duka")
	f.gateway.checkout = "ws_CO_early"

	ack := f.svc.HandleCallback(ctx, successCallback("ws_CO_early", "10"))
	if ack.ResultCode != 0 || ack.ThirdPartyTransID != "" || ack.ResultDesc != mpesa.UnmatchedDescription {
		t.Fatalf("unmatched callback must be acknowledged without receipt: %+v", ack)
	}

	res := f.initiate(t, businessID, 10)
	if res.Transaction.Status != domain.StatusCompleted {
		t.Fatalf("expected stored callback to complete the transaction, got %s", res.Transaction.Status)
	}
}

type pendingTransitionFails struct {
	domain.Repository
}

func (r pendingTransitionFails) Transition(ctx context.Context, db *gorm.DB, id snowflake.ID, from []domain.Status, updates map[string]any) (bool, error) {
	if updates["status"] == domain.StatusPending {
		return false, errors.New("connection reset")
	}
	return r.Repository.Transition(ctx, db, id, from, updates)
}

func TestAcceptedInitiationLogsCorrelationWhenNotRecorded(t *testing.T) {
	f := newFixture(t)
	businessID := f.configuredBusiness(t, "Duka")
	f.svc.repo = pendingTransitionFails{Repository: f.svc.repo}

	_, err := f.svc.Initiate(context.Background(), domain.InitiateRequest{
		BusinessID:  businessID,
		PhoneNumber: "0712345678",
		Amount:      decimal.NewFromInt(10),
	})
	if err == nil {
		t.Fatalf("expected the persistence error to surface")
	}

	entries := f.logs.FilterMessage("failed to record accepted initiation").All()
	if len(entries) != 1 {
		t.Fatalf("expected one error log, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["checkout_request_id"] != "ws_CO_1" || fields["business_id"] != businessID.String() {
		t.Fatalf("log must carry correlation and tenant ids, got %v", fields)
	}
	if fields["transaction_id"] == "" || fields["transaction_id"] == nil {
		t.Fatalf("log must carry the transaction id, got %v", fields)
	}
}

func TestTruncateKeepsValidUTF8(t *testing.T) {
	got := truncate("  Ombi limekataliwa na mteja ñññ  ", 30)
	if !utf8.ValidString(got) {
		t.Fatalf("truncated text is not valid UTF-8: %q", got)
	}
	if got != "Ombi limekataliwa na mteja ñññ" {
		t.Fatalf("unexpected truncation %q", got)
	}
	if got := truncate("ññññ", 2); got != "ññ" {
		t.Fatalf("expected rune-based cut, got %q", got)
	}
}

func TestInvalidCallbackAcknowledged(t *testing.T) {
	f := newFixture(t)
	ack := f.svc.HandleCallback(context.Background(), []byte(`{"Body":{}}`))
	if ack.ResultCode != 0 || ack.ResultDesc != mpesa.AcceptedDescription {
		t.Fatalf("unexpected ack: %+v", ack)
	}
	if n := countRows(t, f.db, "callback_events"); n != 0 {
		t.Fatalf("invalid callbacks are not stored, got %d", n)
	}
}

func TestReadsAreTenantScoped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.configuredBusiness(t, "Owner")
	other := f.configuredBusiness(t, "Other")
	res := f.initiate(t, owner, 10)

	if _, err := f.svc.Get(ctx, other, res.Transaction.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found across tenants, got %v", err)
	}
	if _, err := f.svc.GetByCheckoutRequestID(ctx, other, "ws_CO_1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found across tenants, got %v", err)
	}
	if _, err := f.svc.GetByCheckoutRequestID(ctx, owner, "ws_CO_1"); err != nil {
		t.Fatalf("owner lookup: %v", err)
	}
	rows, err := f.svc.List(ctx, domain.ListRequest{BusinessID: other})
	if err != nil || len(rows) != 0 {
		t.Fatalf("expected empty list for other tenant, got %d (%v)", len(rows), err)
	}
	if _, err := f.svc.List(ctx, domain.ListRequest{BusinessID: owner, Status: "bogus"}); !errors.Is(err, domain.ErrInvalidStatus) {
		t.Fatalf("expected invalid status, got %v", err)
	}
}

func TestExpireStaleInitiations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	businessID := f.configuredBusiness(t, "Duka")
	pending := f.initiate(t, businessID, 10)

	now := f.clock.Now()
	stale := domain.Transaction{
		ID:               f.svc.genID.Generate(),
		BusinessID:       businessID,
		PhoneNumber:      "254712345678",
		Amount:           decimal.NewFromInt(10),
		Currency:         "KES",
		AccountReference: "174379",
		TransactionDesc:  "Payment",
		TransactionType:  string(mpesa.TransactionTypePayBill),
		Status:           domain.StatusInitiated,
		CommissionRate:   decimal.Zero,
		CommissionAmount: decimal.Zero,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := f.db.Create(&stale).Error; err != nil {
		t.Fatalf("insert stale: %v", err)
	}

	f.clock.Advance(15 * time.Minute)
	n, err := f.svc.ExpireStaleInitiations(ctx, f.clock.Now().Add(-10*time.Minute), 10)
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected one expired initiation, got %d", n)
	}

	got, _ := f.svc.Get(ctx, businessID, stale.ID)
	if got.Status != domain.StatusFailed || got.ResultDesc != abandonedInitiationMsg {
		t.Fatalf("unexpected stale row: %+v", got)
	}
	got, _ = f.svc.Get(ctx, businessID, pending.Transaction.ID)
	if got.Status != domain.StatusPending {
		t.Fatalf("pending transactions must not be swept, got %s", got.Status)
	}
}
