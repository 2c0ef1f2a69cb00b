package events

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment event types delivered to tenant webhooks.
const (
	EventPaymentCompleted = "payment.completed"
	EventPaymentFailed    = "payment.failed"
)

// Outbox delivery states.
const (
	StatusPending   = "pending"
	StatusDelivered = "delivered"
	StatusFailed    = "failed"
	StatusSkipped   = "skipped"
)

// PaymentPayload is the body of payment.* events.
type PaymentPayload struct {
	TransactionID     string
	CheckoutRequestID string
	Status            string
	Amount            decimal.Decimal
	Currency          string
	PhoneNumber       string
	AccountReference  string
	ReceiptNumber     string
	ResultCode        *int
	ResultDesc        string
	Commission        decimal.Decimal
	TransactionDate   *time.Time
}

// ToMap converts a payload into an outbox-friendly map.
func (p PaymentPayload) ToMap() map[string]any {
	payload := map[string]any{
		"transaction_id":      p.TransactionID,
		"checkout_request_id": p.CheckoutRequestID,
		"status":              p.Status,
		"amount":              p.Amount.StringFixed(2),
		"currency":            p.Currency,
		"phone_number":        p.PhoneNumber,
		"account_reference":   p.AccountReference,
		"result_desc":         p.ResultDesc,
	}
	if p.ReceiptNumber != "" {
		payload["receipt_number"] = p.ReceiptNumber
	}
	if p.ResultCode != nil {
		payload["result_code"] = *p.ResultCode
	}
	if !p.Commission.IsZero() {
		payload["commission"] = p.Commission.StringFixed(2)
	}
	if p.TransactionDate != nil {
		payload["transaction_date"] = p.TransactionDate.UTC().Format(time.RFC3339)
	}
	return payload
}
