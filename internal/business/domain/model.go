package domain

import (
	"strings"
	"time"

	"github.com/WordpressDesigne/mpesaprompt/internal/mpesa"
	"github.com/bwmarrin/snowflake"
)

// Business is a tenant collecting payments through its own gateway app.
// ConsumerSecret and Passkey hold sealed values at rest.
type Business struct {
	ID             snowflake.ID `gorm:"primaryKey"`
	Name           string       `gorm:"type:text;not null"`
	Environment    string       `gorm:"type:text;not null"`
	ConsumerKey    string       `gorm:"type:text;not null"`
	ConsumerSecret string       `gorm:"type:text;not null"`
	Passkey        string       `gorm:"type:text;not null"`
	PaybillNumber  string       `gorm:"type:text;not null"`
	TillNumber     string       `gorm:"type:text;not null"`
	CallbackURL    string       `gorm:"type:text;not null"`
	WebhookURL     string       `gorm:"type:text;not null"`
	IsActive       bool         `gorm:"not null"`
	CreatedAt      time.Time    `gorm:"not null"`
	UpdatedAt      time.Time    `gorm:"not null"`
}

// TableName sets the database table name.
func (Business) TableName() string { return "businesses" }

// Shortcode picks the collecting shortcode. Paybill wins when a legacy row carries both.
func (b Business) Shortcode() (string, mpesa.TransactionType) {
	if code := strings.TrimSpace(b.PaybillNumber); code != "" {
		return code, mpesa.TransactionTypePayBill
	}
	if code := strings.TrimSpace(b.TillNumber); code != "" {
		return code, mpesa.TransactionTypeBuyGoods
	}
	return "", ""
}

// Redacted returns a copy safe to hand to callers outside the credential store.
func (b Business) Redacted() Business {
	if b.ConsumerSecret != "" {
		b.ConsumerSecret = RedactedValue
	}
	if b.Passkey != "" {
		b.Passkey = RedactedValue
	}
	return b
}

const RedactedValue = "[REDACTED]"

// GatewayCredentials is everything the initiator needs to talk to the gateway for one tenant.
type GatewayCredentials struct {
	BusinessID      snowflake.ID
	Credentials     mpesa.Credentials
	Shortcode       string
	Passkey         string
	TransactionType mpesa.TransactionType
	CallbackURL     string
	WebhookURL      string
}

type CreateRequest struct {
	Name        string
	Environment string
	WebhookURL  string
}

// UpdateCredentialsRequest replaces the fields that are non-empty. Setting a
// paybill clears the till number and vice versa.
type UpdateCredentialsRequest struct {
	ID             snowflake.ID
	Environment    string
	ConsumerKey    string
	ConsumerSecret string
	Passkey        string
	PaybillNumber  string
	TillNumber     string
	CallbackURL    string
	WebhookURL     string
}
