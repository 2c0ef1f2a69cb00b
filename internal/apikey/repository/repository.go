package repository

import (
	"context"
	"time"

	"github.com/WordpressDesigne/mpesaprompt/internal/apikey/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, key *domain.APIKey) error {
	return db.WithContext(ctx).Create(key).Error
}

func (r *repo) Deactivate(ctx context.Context, db *gorm.DB, businessID snowflake.ID, keyID string, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE api_keys
		 SET is_active = ?, updated_at = ?
		 WHERE business_id = ? AND key_id = ? AND is_active = ?`,
		false,
		now,
		businessID,
		keyID,
		true,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) FindActiveByHash(ctx context.Context, db *gorm.DB, hash string, now time.Time) (*domain.APIKey, error) {
	var rows []domain.APIKey
	if err := db.WithContext(ctx).
		Where("key_hash = ? AND is_active = ?", hash, true).
		Where("expires_at IS NULL OR expires_at > ?", now).
		Limit(1).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (r *repo) TouchLastUsed(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE api_keys SET last_used_at = ? WHERE id = ?`,
		now,
		id,
	).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, businessID snowflake.ID) ([]domain.APIKey, error) {
	var rows []domain.APIKey
	if err := db.WithContext(ctx).
		Where("business_id = ?", businessID).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
