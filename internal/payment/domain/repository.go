package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// Insert reports false when a unique key (idempotency key) already exists.
	Insert(ctx context.Context, db *gorm.DB, txn *Transaction) (bool, error)
	FindByID(ctx context.Context, db *gorm.DB, businessID, id snowflake.ID) (*Transaction, error)
	FindByIdempotencyKey(ctx context.Context, db *gorm.DB, businessID snowflake.ID, key string) (*Transaction, error)
	FindByCheckoutRequestID(ctx context.Context, db *gorm.DB, businessID snowflake.ID, checkoutRequestID string) (*Transaction, error)
	LockByCheckoutRequestID(ctx context.Context, tx *gorm.DB, checkoutRequestID string) (*Transaction, error)
	List(ctx context.Context, db *gorm.DB, req ListRequest) ([]Transaction, error)
	ListStale(ctx context.Context, db *gorm.DB, status Status, olderThan time.Time, limit int) ([]Transaction, error)
	// Transition applies updates only while the row is in one of from.
	Transition(ctx context.Context, db *gorm.DB, id snowflake.ID, from []Status, updates map[string]any) (bool, error)

	InsertCallbackEvent(ctx context.Context, db *gorm.DB, event *CallbackEvent) (bool, error)
	FindCallbackEvent(ctx context.Context, db *gorm.DB, checkoutRequestID string) (*CallbackEvent, error)
	MarkCallbackProcessed(ctx context.Context, db *gorm.DB, id snowflake.ID, outcome string, processedAt time.Time) error
}
