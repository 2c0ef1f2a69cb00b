package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/bwmarrin/snowflake"
)

// KeyPrefix marks plaintext keys so they are recognisable in logs and secret scanners.
const KeyPrefix = "mpk_"

type APIKey struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	BusinessID snowflake.ID `gorm:"not null;index" json:"business_id"`
	KeyID      string       `gorm:"type:text;not null;uniqueIndex" json:"key_id"`
	KeyHash    string       `gorm:"type:text;not null;uniqueIndex" json:"-"`
	Name       string       `gorm:"type:text;not null" json:"name"`
	IsActive   bool         `gorm:"not null" json:"is_active"`
	ExpiresAt  *time.Time   `json:"expires_at,omitempty"`
	LastUsedAt *time.Time   `json:"last_used_at,omitempty"`
	CreatedAt  time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time    `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (APIKey) TableName() string { return "api_keys" }

// HashAPIKey returns the stored form of a plaintext key.
func HashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

type IssueRequest struct {
	BusinessID snowflake.ID
	Name       string
	ExpiresAt  *time.Time
}

// IssuedKey carries the plaintext key. It is only ever returned once.
type IssuedKey struct {
	APIKey
	Key string `json:"key"`
}
