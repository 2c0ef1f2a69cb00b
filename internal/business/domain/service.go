package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Business, error)
	UpdateCredentials(ctx context.Context, req UpdateCredentialsRequest) (*Business, error)
	SetActive(ctx context.Context, id snowflake.ID, active bool) (*Business, error)
	Get(ctx context.Context, id snowflake.ID) (*Business, error)
	List(ctx context.Context) ([]Business, error)
	ResolveCredentials(ctx context.Context, id snowflake.ID) (*GatewayCredentials, error)
}

var (
	// ErrNotConfigured means the tenant lacks gateway credentials or a shortcode.
	ErrNotConfigured    = errors.New("business_not_configured")
	ErrBusinessInactive = errors.New("business_inactive")
	ErrNotFound         = errors.New("business_not_found")

	ErrInvalidID          = errors.New("invalid_business_id")
	ErrInvalidName        = errors.New("invalid_name")
	ErrInvalidEnvironment = errors.New("invalid_environment")
	ErrInvalidShortcode   = errors.New("invalid_shortcode")
	ErrAmbiguousShortcode = errors.New("paybill_and_till_both_set")
	ErrInvalidURL         = errors.New("invalid_url")

	ErrEncryptionKeyMissing = errors.New("encryption_key_missing")
	ErrSealedValueInvalid   = errors.New("sealed_value_invalid")
)
