package domain

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

type Service interface {
	// Record stores an entry on db, which may be the caller's transaction.
	Record(ctx context.Context, db *gorm.DB, entry Entry) error
	List(ctx context.Context, filter ListFilter) ([]AuditLog, error)
}

var ErrInvalidEntry = errors.New("invalid_audit_entry")
