package events

import (
	"context"
	"errors"
	"strings"

	"github.com/WordpressDesigne/mpesaprompt/internal/clock"
	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Event describes a tenant event to store in the outbox.
type Event struct {
	BusinessID snowflake.ID
	Type       string
	Payload    map[string]any
	DedupeKey  string
}

// Outbox inserts events into the outbox_events table for the dispatcher.
type Outbox struct {
	db    *gorm.DB
	genID *snowflake.Node
	clock clock.Clock
}

func NewOutbox(db *gorm.DB, genID *snowflake.Node, clk clock.Clock) *Outbox {
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Outbox{db: db, genID: genID, clock: clk}
}

// Publish stores an event using the default database connection.
func (o *Outbox) Publish(ctx context.Context, event Event) error {
	if o == nil {
		return errors.New("outbox_unavailable")
	}
	return o.publish(ctx, o.db, event)
}

// PublishTx stores an event using an existing transaction.
func (o *Outbox) PublishTx(ctx context.Context, tx *gorm.DB, event Event) error {
	if tx == nil {
		return errors.New("missing_transaction")
	}
	return o.publish(ctx, tx, event)
}

func (o *Outbox) publish(ctx context.Context, db *gorm.DB, event Event) error {
	if o == nil || db == nil || o.genID == nil {
		return errors.New("outbox_unavailable")
	}
	if event.BusinessID == 0 {
		return errors.New("invalid_business_id")
	}
	name := strings.TrimSpace(event.Type)
	if name == "" {
		return errors.New("missing_event_type")
	}

	payload := datatypes.JSONMap{}
	for key, value := range event.Payload {
		if strings.TrimSpace(key) == "" {
			continue
		}
		payload[key] = value
	}

	dedupe := strings.TrimSpace(event.DedupeKey)
	var dedupeValue any
	if dedupe != "" {
		dedupeValue = dedupe
	}

	now := o.clock.Now()
	return db.WithContext(ctx).Exec(
		`INSERT INTO outbox_events (id, business_id, event_type, payload, dedupe_key, status, attempts, next_attempt_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?, ?)
		 ON CONFLICT (business_id, dedupe_key) DO NOTHING`,
		o.genID.Generate(),
		event.BusinessID,
		name,
		payload,
		dedupeValue,
		StatusPending,
		now,
		now,
		now,
	).Error
}
