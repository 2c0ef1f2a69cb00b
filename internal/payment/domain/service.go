package domain

import (
	"context"
	"errors"
	"time"

	"github.com/WordpressDesigne/mpesaprompt/internal/mpesa"
	"github.com/bwmarrin/snowflake"
)

type Service interface {
	Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error)
	// HandleCallback never fails: the gateway always gets an acknowledgement.
	HandleCallback(ctx context.Context, payload []byte) mpesa.CallbackResponse
	Get(ctx context.Context, businessID, id snowflake.ID) (*Transaction, error)
	GetByCheckoutRequestID(ctx context.Context, businessID snowflake.ID, checkoutRequestID string) (*Transaction, error)
	List(ctx context.Context, req ListRequest) ([]Transaction, error)
	ExpireStaleInitiations(ctx context.Context, olderThan time.Time, limit int) (int, error)
}

// Gateway is the outbound half of the payment provider.
type Gateway interface {
	STKPush(ctx context.Context, creds mpesa.Credentials, req mpesa.STKPushRequest) (*mpesa.STKPushResponse, error)
	CountryCode() string
	Location() *time.Location
}

var (
	ErrNotFound               = errors.New("transaction_not_found")
	ErrAlreadyTerminal        = errors.New("transaction_already_terminal")
	ErrPersistenceConflict    = errors.New("persistence_conflict")
	ErrInvalidAmount          = errors.New("invalid_amount")
	ErrInvalidBusiness        = errors.New("invalid_business")
	ErrInvalidIdempotencyKey  = errors.New("invalid_idempotency_key")
	ErrInvalidStatus          = errors.New("invalid_status")
	ErrInvalidCheckoutRequest = errors.New("invalid_checkout_request_id")
)
