package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := cfg.Payment.Rate().String(); got != "0.01" {
		t.Fatalf("expected default commission rate 0.01, got %s", got)
	}
	if cfg.Payment.Currency != "KES" {
		t.Fatalf("expected KES, got %s", cfg.Payment.Currency)
	}
	if cfg.Mpesa.TokenTimeout != 10*time.Second {
		t.Fatalf("expected 10s token timeout, got %s", cfg.Mpesa.TokenTimeout)
	}
	if cfg.Mpesa.RequestTimeout != 30*time.Second {
		t.Fatalf("expected 30s request timeout, got %s", cfg.Mpesa.RequestTimeout)
	}
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte("environment: staging\npayment:\n  commission_rate: 0.025\nmpesa:\n  callback_url: https://pay.example.com/callback\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("MPESAPROMPT_PAYMENT_CURRENCY", "TZS")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Environment != "staging" {
		t.Fatalf("expected staging, got %s", cfg.Environment)
	}
	if got := cfg.Payment.Rate().String(); got != "0.025" {
		t.Fatalf("expected 0.025, got %s", got)
	}
	if cfg.Payment.Currency != "TZS" {
		t.Fatalf("expected env override TZS, got %s", cfg.Payment.Currency)
	}
	if cfg.Mpesa.CallbackURL != "https://pay.example.com/callback" {
		t.Fatalf("unexpected callback url %q", cfg.Mpesa.CallbackURL)
	}
}

func TestValidateRejectsCommissionRate(t *testing.T) {
	t.Setenv("MPESAPROMPT_PAYMENT_COMMISSION_RATE", "1.5")
	if _, err := Load(""); err == nil {
		t.Fatalf("expected commission rate validation error")
	}
}

func TestValidateRequiresSecretInProduction(t *testing.T) {
	t.Setenv("MPESAPROMPT_ENVIRONMENT", "production")
	t.Setenv("MPESAPROMPT_CREDENTIALS_SECRET", "")
	if _, err := Load(""); err == nil {
		t.Fatalf("expected missing secret error in production")
	}
}
