package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Service interface {
	// Record folds one completed payment into the aggregate. It runs on the caller's transaction.
	Record(ctx context.Context, tx *gorm.DB, req RecordRequest) (*Customer, error)
	List(ctx context.Context, req ListRequest) ([]Customer, error)
	Get(ctx context.Context, businessID, id snowflake.ID) (*Customer, error)
}

var (
	ErrNotFound           = errors.New("customer_not_found")
	ErrInvalidBusiness    = errors.New("invalid_business")
	ErrInvalidPhoneNumber = errors.New("invalid_phone_number")
	ErrInvalidAmount      = errors.New("invalid_amount")
)
