package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, key *APIKey) error
	Deactivate(ctx context.Context, db *gorm.DB, businessID snowflake.ID, keyID string, now time.Time) (bool, error)
	FindActiveByHash(ctx context.Context, db *gorm.DB, hash string, now time.Time) (*APIKey, error)
	TouchLastUsed(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) error
	List(ctx context.Context, db *gorm.DB, businessID snowflake.ID) ([]APIKey, error)
}
