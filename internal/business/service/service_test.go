package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	auditdomain "github.com/WordpressDesigne/mpesaprompt/internal/audit/domain"
	auditrepo "github.com/WordpressDesigne/mpesaprompt/internal/audit/repository"
	auditservice "github.com/WordpressDesigne/mpesaprompt/internal/audit/service"
	"github.com/WordpressDesigne/mpesaprompt/internal/auditcontext"
	"github.com/WordpressDesigne/mpesaprompt/internal/business/domain"
	"github.com/WordpressDesigne/mpesaprompt/internal/business/repository"
	"github.com/WordpressDesigne/mpesaprompt/internal/clock"
	"github.com/WordpressDesigne/mpesaprompt/internal/config"
	"github.com/WordpressDesigne/mpesaprompt/internal/mpesa"
	"github.com/WordpressDesigne/mpesaprompt/internal/testutil"
	walletdomain "github.com/WordpressDesigne/mpesaprompt/internal/wallet/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T, secret string) (*Service, *gorm.DB) {
	t.Helper()
	db := testutil.NewDB(t)
	var cfg config.Config
	cfg.Credentials.Secret = secret
	cfg.Payment.Currency = "kes"
	cfg.Mpesa.CallbackURL = "https://pay.example.test/callback"

	svc := New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: testutil.NewNode(t),
		Repo:  repository.Provide(),
		Cfg:   cfg,
		Clock: clock.NewFixed(time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)),
	}).(*Service)
	return svc, db
}

func TestCreateProvisionsWallet(t *testing.T) {
	svc, db := newTestService(t, "secret")
	ctx := context.Background()

	business, err := svc.Create(ctx, domain.CreateRequest{Name: "  Mama Mboga  ", Environment: "Sandbox"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if business.Name != "Mama Mboga" || business.Environment != "sandbox" || !business.IsActive {
		t.Fatalf("unexpected business: %+v", business)
	}

	var wallets []walletdomain.Wallet
	if err := db.Where("business_id = ?", business.ID).Find(&wallets).Error; err != nil {
		t.Fatalf("load wallet: %v", err)
	}
	if len(wallets) != 1 {
		t.Fatalf("expected one wallet, got %d", len(wallets))
	}
	if !wallets[0].Balance.IsZero() || wallets[0].Currency != "KES" {
		t.Fatalf("unexpected wallet: %+v", wallets[0])
	}
}

func TestCreateValidatesInput(t *testing.T) {
	svc, _ := newTestService(t, "secret")
	ctx := context.Background()

	if _, err := svc.Create(ctx, domain.CreateRequest{Name: " "}); !errors.Is(err, domain.ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
	if _, err := svc.Create(ctx, domain.CreateRequest{Name: "Shop", Environment: "staging"}); !errors.Is(err, domain.ErrInvalidEnvironment) {
		t.Fatalf("expected ErrInvalidEnvironment, got %v", err)
	}
	if _, err := svc.Create(ctx, domain.CreateRequest{Name: "Shop", WebhookURL: "ftp://x"}); !errors.Is(err, domain.ErrInvalidURL) {
		t.Fatalf("expected ErrInvalidURL, got %v", err)
	}
}

func TestResolveCredentialsRoundTripsSealedSecrets(t *testing.T) {
	svc, db := newTestService(t, "secret")
	ctx := context.Background()

	business, err := svc.Create(ctx, domain.CreateRequest{Name: "Shop"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	updated, err := svc.UpdateCredentials(ctx, domain.UpdateCredentialsRequest{
		ID:             business.ID,
		ConsumerKey:    "ck",
		ConsumerSecret: "cs",
		Passkey:        "pk",
		TillNumber:     "5123456",
	})
	if err != nil {
		t.Fatalf("update credentials: %v", err)
	}
	if updated.ConsumerSecret != domain.RedactedValue || updated.Passkey != domain.RedactedValue {
		t.Fatalf("expected redacted secrets, got %+v", updated)
	}

	var stored domain.Business
	if err := db.Where("id = ?", business.ID).First(&stored).Error; err != nil {
		t.Fatalf("load business: %v", err)
	}
	if stored.ConsumerSecret == "cs" || stored.Passkey == "pk" {
		t.Fatalf("expected sealed secrets at rest, got %q / %q", stored.ConsumerSecret, stored.Passkey)
	}

	creds, err := svc.ResolveCredentials(ctx, business.ID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if creds.Credentials.ConsumerSecret != "cs" || creds.Passkey != "pk" || creds.Credentials.ConsumerKey != "ck" {
		t.Fatalf("unexpected credentials: %+v", creds)
	}
	if creds.Shortcode != "5123456" || creds.TransactionType != mpesa.TransactionTypeBuyGoods {
		t.Fatalf("expected till shortcode, got %q %q", creds.Shortcode, creds.TransactionType)
	}
	if creds.CallbackURL != "https://pay.example.test/callback" {
		t.Fatalf("expected default callback url, got %q", creds.CallbackURL)
	}
}

func TestResolveCredentialsNotConfigured(t *testing.T) {
	svc, _ := newTestService(t, "secret")
	ctx := context.Background()

	business, err := svc.Create(ctx, domain.CreateRequest{Name: "Shop"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.ResolveCredentials(ctx, business.ID); !errors.Is(err, domain.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}

	if _, err := svc.UpdateCredentials(ctx, domain.UpdateCredentialsRequest{
		ID:             business.ID,
		ConsumerKey:    "ck",
		ConsumerSecret: "cs",
		Passkey:        "pk",
	}); err != nil {
		t.Fatalf("update credentials: %v", err)
	}
	_, err = svc.ResolveCredentials(ctx, business.ID)
	if !errors.Is(err, domain.ErrNotConfigured) || !strings.Contains(err.Error(), "shortcode") {
		t.Fatalf("expected missing shortcode, got %v", err)
	}
}

func TestUpdateCredentialsRejectsBothShortcodes(t *testing.T) {
	svc, _ := newTestService(t, "secret")
	ctx := context.Background()
	business, err := svc.Create(ctx, domain.CreateRequest{Name: "Shop"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err = svc.UpdateCredentials(ctx, domain.UpdateCredentialsRequest{
		ID:            business.ID,
		PaybillNumber: "174379",
		TillNumber:    "5123456",
	})
	if !errors.Is(err, domain.ErrAmbiguousShortcode) {
		t.Fatalf("expected ErrAmbiguousShortcode, got %v", err)
	}
	if _, err := svc.UpdateCredentials(ctx, domain.UpdateCredentialsRequest{ID: business.ID, PaybillNumber: "12ab"}); !errors.Is(err, domain.ErrInvalidShortcode) {
		t.Fatalf("expected ErrInvalidShortcode, got %v", err)
	}
}

func TestResolveCredentialsPrefersPaybillOnLegacyRows(t *testing.T) {
	svc, db := newTestService(t, "secret")
	ctx := context.Background()
	business, err := svc.Create(ctx, domain.CreateRequest{Name: "Shop"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.UpdateCredentials(ctx, domain.UpdateCredentialsRequest{
		ID: business.ID, ConsumerKey: "ck", ConsumerSecret: "cs", Passkey: "pk", PaybillNumber: "174379",
	}); err != nil {
		t.Fatalf("update credentials: %v", err)
	}
	if err := db.Exec(`UPDATE businesses SET till_number = ? WHERE id = ?`, "5123456", business.ID).Error; err != nil {
		t.Fatalf("seed legacy till: %v", err)
	}

	creds, err := svc.ResolveCredentials(ctx, business.ID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if creds.Shortcode != "174379" || creds.TransactionType != mpesa.TransactionTypePayBill {
		t.Fatalf("expected paybill to win, got %q %q", creds.Shortcode, creds.TransactionType)
	}
}

func TestSetActiveGatesResolution(t *testing.T) {
	svc, _ := newTestService(t, "secret")
	ctx := context.Background()
	business, err := svc.Create(ctx, domain.CreateRequest{Name: "Shop"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.UpdateCredentials(ctx, domain.UpdateCredentialsRequest{
		ID: business.ID, ConsumerKey: "ck", ConsumerSecret: "cs", Passkey: "pk", PaybillNumber: "174379",
	}); err != nil {
		t.Fatalf("update credentials: %v", err)
	}

	if _, err := svc.SetActive(ctx, business.ID, false); err != nil {
		t.Fatalf("suspend: %v", err)
	}
	if _, err := svc.ResolveCredentials(ctx, business.ID); !errors.Is(err, domain.ErrBusinessInactive) {
		t.Fatalf("expected ErrBusinessInactive, got %v", err)
	}
	if _, err := svc.SetActive(ctx, business.ID, true); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if _, err := svc.ResolveCredentials(ctx, business.ID); err != nil {
		t.Fatalf("resolve after activate: %v", err)
	}
	if _, err := svc.SetActive(ctx, 42, true); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateCredentialsRequiresEncryptionKey(t *testing.T) {
	svc, _ := newTestService(t, "")
	ctx := context.Background()
	business, err := svc.Create(ctx, domain.CreateRequest{Name: "Shop"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err = svc.UpdateCredentials(ctx, domain.UpdateCredentialsRequest{ID: business.ID, ConsumerSecret: "cs"})
	if !errors.Is(err, domain.ErrEncryptionKeyMissing) {
		t.Fatalf("expected ErrEncryptionKeyMissing, got %v", err)
	}
}

func TestAdministrationIsAudited(t *testing.T) {
	db := testutil.NewDB(t)
	node := testutil.NewNode(t)
	clk := clock.NewFixed(time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC))
	auditSvc := auditservice.NewService(auditservice.Params{
		DB: db, Log: zap.NewNop(), GenID: node, Repo: auditrepo.Provide(), Clock: clk,
	})
	var cfg config.Config
	cfg.Credentials.Secret = "secret"
	cfg.Payment.Currency = "KES"
	svc := New(Params{
		DB: db, Log: zap.NewNop(), GenID: node, Repo: repository.Provide(), Cfg: cfg, Clock: clk, AuditSvc: auditSvc,
	})

	ctx := auditcontext.WithActor(context.Background(), "cli", "ops")
	business, err := svc.Create(ctx, domain.CreateRequest{Name: "Duka", Environment: "sandbox"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.UpdateCredentials(ctx, domain.UpdateCredentialsRequest{
		ID: business.ID, ConsumerKey: "ck", ConsumerSecret: "very-secret", Passkey: "pk", PaybillNumber: "174379",
	}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := svc.SetActive(ctx, business.ID, false); err != nil {
		t.Fatalf("suspend: %v", err)
	}

	rows, err := auditSvc.List(ctx, auditdomain.ListFilter{BusinessID: business.ID})
	if err != nil {
		t.Fatalf("list audit: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 audit entries, got %d", len(rows))
	}
	actions := map[string]bool{}
	for _, row := range rows {
		actions[row.Action] = true
		if row.ActorType != "cli" {
			t.Fatalf("unexpected actor %q", row.ActorType)
		}
		if raw, _ := json.Marshal(row.Metadata); strings.Contains(string(raw), "very-secret") {
			t.Fatalf("audit metadata leaked a secret: %s", raw)
		}
	}
	for _, action := range []string{auditdomain.ActionBusinessCreate, auditdomain.ActionBusinessCredentials, auditdomain.ActionBusinessSuspend} {
		if !actions[action] {
			t.Fatalf("missing audit action %s", action)
		}
	}
}
