package mpesa

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ResultCodeSuccess is the only result code that settles a payment.
const ResultCodeSuccess = 0

// AcceptedDescription is the acknowledgement text the gateway expects.
const AcceptedDescription = "The service was accepted successfully"

// UnmatchedDescription acknowledges a callback whose checkout request is not known yet.
const UnmatchedDescription = "Callback received: checkout request not found"

type callbackEnvelope struct {
	Body struct {
		STKCallback *stkCallback `json:"stkCallback"`
	} `json:"Body"`
}

type stkCallback struct {
	MerchantRequestID string            `json:"MerchantRequestID"`
	CheckoutRequestID string            `json:"CheckoutRequestID"`
	ResultCode        *numberOrString   `json:"ResultCode"`
	ResultDesc        string            `json:"ResultDesc"`
	CallbackMetadata  *callbackMetadata `json:"CallbackMetadata"`
}

type callbackMetadata struct {
	Item []metadataItem `json:"Item"`
}

type metadataItem struct {
	Name  string         `json:"Name"`
	Value numberOrString `json:"Value"`
}

// Callback is the validated content of an STK push result notification.
// Optional settlement facts are zero when the gateway did not send them.
type Callback struct {
	MerchantRequestID string
	CheckoutRequestID string
	ResultCode        int
	ResultDesc        string

	Amount          *decimal.Decimal
	ReceiptNumber   string
	PhoneNumber     string
	TransactionDate *time.Time
	FirstName       string
	MiddleName      string
	LastName        string
}

func (c *Callback) Succeeded() bool {
	return c != nil && c.ResultCode == ResultCodeSuccess
}

// PayerName joins the name parts the gateway reported, if any.
func (c *Callback) PayerName() string {
	if c == nil {
		return ""
	}
	parts := make([]string, 0, 3)
	for _, part := range []string{c.FirstName, c.MiddleName, c.LastName} {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, " ")
}

// ParseCallback decodes the Body.stkCallback envelope. A callback without a
// CheckoutRequestID or ResultCode cannot be correlated and is rejected.
// Malformed optional metadata items are dropped.
func ParseCallback(payload []byte, loc *time.Location) (*Callback, error) {
	if loc == nil {
		loc = time.UTC
	}
	var env callbackEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, ErrInvalidCallback
	}
	raw := env.Body.STKCallback
	if raw == nil {
		return nil, ErrInvalidCallback
	}

	checkoutID := strings.TrimSpace(raw.CheckoutRequestID)
	if checkoutID == "" || raw.ResultCode == nil {
		return nil, ErrInvalidCallback
	}
	resultCode, err := strconv.Atoi(raw.ResultCode.String())
	if err != nil {
		return nil, ErrInvalidCallback
	}

	cb := &Callback{
		MerchantRequestID: strings.TrimSpace(raw.MerchantRequestID),
		CheckoutRequestID: checkoutID,
		ResultCode:        resultCode,
		ResultDesc:        strings.TrimSpace(raw.ResultDesc),
	}
	if raw.CallbackMetadata == nil {
		return cb, nil
	}

	for _, item := range raw.CallbackMetadata.Item {
		value := item.Value.String()
		if value == "" {
			continue
		}
		switch item.Name {
		case "Amount":
			amount, err := decimal.NewFromString(value)
			if err == nil && amount.IsPositive() {
				cb.Amount = &amount
			}
		case "MpesaReceiptNumber":
			cb.ReceiptNumber = value
		case "TransactionDate":
			at, err := time.ParseInLocation(timestampLayout, value, loc)
			if err == nil {
				at = at.UTC()
				cb.TransactionDate = &at
			}
		case "PhoneNumber":
			cb.PhoneNumber = value
		case "FirstName":
			cb.FirstName = value
		case "MiddleName":
			cb.MiddleName = value
		case "LastName":
			cb.LastName = value
		}
	}
	return cb, nil
}

// CallbackResponse is the acknowledgement body returned to the gateway.
type CallbackResponse struct {
	ResultCode        int    `json:"ResultCode"`
	ResultDesc        string `json:"ResultDesc"`
	ThirdPartyTransID string `json:"ThirdPartyTransID,omitempty"`
}
