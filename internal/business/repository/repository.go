package repository

import (
	"context"

	"github.com/WordpressDesigne/mpesaprompt/internal/business/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, business *domain.Business) error {
	return db.WithContext(ctx).Create(business).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, business *domain.Business) error {
	return db.WithContext(ctx).Exec(
		`UPDATE businesses
		 SET name = ?, environment = ?, consumer_key = ?, consumer_secret = ?, passkey = ?,
		     paybill_number = ?, till_number = ?, callback_url = ?, webhook_url = ?,
		     is_active = ?, updated_at = ?
		 WHERE id = ?`,
		business.Name,
		business.Environment,
		business.ConsumerKey,
		business.ConsumerSecret,
		business.Passkey,
		business.PaybillNumber,
		business.TillNumber,
		business.CallbackURL,
		business.WebhookURL,
		business.IsActive,
		business.UpdatedAt,
		business.ID,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Business, error) {
	var rows []domain.Business
	if err := db.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]domain.Business, error) {
	var rows []domain.Business
	if err := db.WithContext(ctx).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
