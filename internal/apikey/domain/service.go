package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	Issue(ctx context.Context, req IssueRequest) (*IssuedKey, error)
	Revoke(ctx context.Context, businessID snowflake.ID, keyID string) error
	List(ctx context.Context, businessID snowflake.ID) ([]APIKey, error)
	Authenticate(ctx context.Context, raw string) (*APIKey, error)
}

var (
	ErrInvalidKey      = errors.New("invalid_api_key")
	ErrKeyNotFound     = errors.New("api_key_not_found")
	ErrInvalidBusiness = errors.New("invalid_business")
	ErrInvalidExpiry   = errors.New("invalid_expiry")
)
