package repository

import (
	"context"
	"time"

	"github.com/WordpressDesigne/mpesaprompt/internal/payment/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, txn *domain.Transaction) (bool, error) {
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(txn)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, businessID, id snowflake.ID) (*domain.Transaction, error) {
	return first(db.WithContext(ctx).Where("business_id = ? AND id = ?", businessID, id))
}

func (r *repo) FindByIdempotencyKey(ctx context.Context, db *gorm.DB, businessID snowflake.ID, key string) (*domain.Transaction, error) {
	return first(db.WithContext(ctx).Where("business_id = ? AND idempotency_key = ?", businessID, key))
}

func (r *repo) FindByCheckoutRequestID(ctx context.Context, db *gorm.DB, businessID snowflake.ID, checkoutRequestID string) (*domain.Transaction, error) {
	return first(db.WithContext(ctx).Where("business_id = ? AND checkout_request_id = ?", businessID, checkoutRequestID))
}

func (r *repo) LockByCheckoutRequestID(ctx context.Context, tx *gorm.DB, checkoutRequestID string) (*domain.Transaction, error) {
	return first(tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("checkout_request_id = ?", checkoutRequestID))
}

func (r *repo) List(ctx context.Context, db *gorm.DB, req domain.ListRequest) ([]domain.Transaction, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset := req.Offset
	if offset < 0 {
		offset = 0
	}

	query := db.WithContext(ctx).Where("business_id = ?", req.BusinessID)
	if req.Status != "" {
		query = query.Where("status = ?", req.Status)
	}

	var rows []domain.Transaction
	if err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) ListStale(ctx context.Context, db *gorm.DB, status domain.Status, olderThan time.Time, limit int) ([]domain.Transaction, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	var rows []domain.Transaction
	if err := db.WithContext(ctx).
		Where("status = ? AND created_at < ?", status, olderThan).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) Transition(ctx context.Context, db *gorm.DB, id snowflake.ID, from []domain.Status, updates map[string]any) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.Transaction{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) InsertCallbackEvent(ctx context.Context, db *gorm.DB, event *domain.CallbackEvent) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO callback_events (id, checkout_request_id, merchant_request_id, result_code, payload, outcome, received_at)
		 VALUES (?, ?, ?, ?, ?, '', ?)
		 ON CONFLICT (checkout_request_id) DO NOTHING`,
		event.ID,
		event.CheckoutRequestID,
		event.MerchantRequestID,
		event.ResultCode,
		event.Payload,
		event.ReceivedAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) FindCallbackEvent(ctx context.Context, db *gorm.DB, checkoutRequestID string) (*domain.CallbackEvent, error) {
	var rows []domain.CallbackEvent
	if err := db.WithContext(ctx).
		Where("checkout_request_id = ?", checkoutRequestID).
		Limit(1).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// MarkCallbackProcessed keeps the first recorded outcome and processing time.
func (r *repo) MarkCallbackProcessed(ctx context.Context, db *gorm.DB, id snowflake.ID, outcome string, processedAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE callback_events
		SET outcome = COALESCE(NULLIF(outcome, ''), ?), processed_at = COALESCE(processed_at, ?)
		WHERE id = ?`,
		outcome,
		processedAt,
		id,
	).Error
}

func first(query *gorm.DB) (*domain.Transaction, error) {
	var rows []domain.Transaction
	if err := query.Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}
