package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// ActorType represents who triggered an action.
type ActorType string

const (
	ActorTypeSystem ActorType = "system"
	ActorTypeCLI    ActorType = "cli"
	ActorTypeAPIKey ActorType = "api_key"
)

// Audited actions.
const (
	ActionBusinessCreate      = "business.create"
	ActionBusinessCredentials = "business.credentials.update"
	ActionBusinessSuspend     = "business.suspend"
	ActionBusinessActivate    = "business.activate"
	ActionAPIKeyIssue         = "api_key.issue"
	ActionAPIKeyRevoke        = "api_key.revoke"
)

// AuditLog captures an immutable record of a tenant administration action.
// Metadata never carries secret values.
type AuditLog struct {
	ID         snowflake.ID      `gorm:"primaryKey" json:"id"`
	BusinessID *snowflake.ID     `gorm:"index" json:"business_id,omitempty"`
	ActorType  string            `gorm:"type:text;not null" json:"actor_type"`
	ActorID    *string           `gorm:"type:text" json:"actor_id,omitempty"`
	Action     string            `gorm:"type:text;not null;index" json:"action"`
	TargetType string            `gorm:"type:text;not null" json:"target_type"`
	TargetID   *string           `gorm:"type:text" json:"target_id,omitempty"`
	Metadata   datatypes.JSONMap `gorm:"type:jsonb;not null" json:"metadata"`
	CreatedAt  time.Time         `gorm:"not null" json:"created_at"`
}

// TableName sets the database table name.
func (AuditLog) TableName() string { return "audit_logs" }

type Entry struct {
	BusinessID snowflake.ID
	Action     string
	TargetType string
	TargetID   string
	Metadata   map[string]any
}
