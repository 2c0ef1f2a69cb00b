package events

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/WordpressDesigne/mpesaprompt/internal/clock"
	"github.com/WordpressDesigne/mpesaprompt/internal/config"
	"github.com/WordpressDesigne/mpesaprompt/internal/mpesa"
	"github.com/WordpressDesigne/mpesaprompt/internal/observability/metrics"
	"github.com/WordpressDesigne/mpesaprompt/internal/observability/tracing"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	HeaderSignature = "X-Mpesaprompt-Signature"
	HeaderEvent     = "X-Mpesaprompt-Event"
	HeaderDelivery  = "X-Mpesaprompt-Delivery"

	userAgent    = "mpesaprompt-webhook/1.0"
	maxErrorText = 500
)

// DispatcherConfig controls the webhook delivery loop.
type DispatcherConfig struct {
	SigningSecret string
	PollInterval  time.Duration
	BatchSize     int
	MaxAttempts   int
	Timeout       time.Duration
}

func DispatcherConfigFrom(cfg config.Config) DispatcherConfig {
	return DispatcherConfig{
		SigningSecret: cfg.Webhook.SigningSecret,
		PollInterval:  cfg.Webhook.PollInterval,
		BatchSize:     cfg.Webhook.BatchSize,
		MaxAttempts:   cfg.Webhook.MaxAttempts,
		Timeout:       cfg.Webhook.Timeout,
	}
}

func (c DispatcherConfig) withDefaults() DispatcherConfig {
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 20
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	return c
}

// lease keeps a claimed event away from other dispatchers while it is in flight.
func (c DispatcherConfig) lease() time.Duration {
	return 2*c.Timeout + 30*time.Second
}

// RetryDelay is the wait before the next attempt after attempts failures.
func RetryDelay(attempts int) time.Duration {
	return time.Duration(attempts*10+10) * time.Second
}

type DispatcherParams struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Clock      clock.Clock
	Config     DispatcherConfig
	HTTPClient *http.Client            `optional:"true"`
	Metrics    *metrics.PaymentMetrics `optional:"true"`
}

// Dispatcher delivers outbox events to tenant webhook URLs.
type Dispatcher struct {
	db      *gorm.DB
	log     *zap.Logger
	clock   clock.Clock
	cfg     DispatcherConfig
	http    *http.Client
	metrics *metrics.PaymentMetrics
}

type outboxRow struct {
	ID         snowflake.ID   `gorm:"column:id"`
	BusinessID snowflake.ID   `gorm:"column:business_id"`
	EventType  string         `gorm:"column:event_type"`
	Payload    datatypes.JSON `gorm:"column:payload"`
	Attempts   int            `gorm:"column:attempts"`
	CreatedAt  time.Time      `gorm:"column:created_at"`
}

func (outboxRow) TableName() string { return "outbox_events" }

func NewDispatcher(p DispatcherParams) *Dispatcher {
	cfg := p.Config.withDefaults()
	httpClient := p.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	log := p.Log.Named("events.dispatcher")
	if strings.TrimSpace(cfg.SigningSecret) == "" {
		log.Warn("webhook signing secret is empty; deliveries will be unsigned")
	}
	return &Dispatcher{
		db:      p.DB,
		log:     log,
		clock:   clk,
		cfg:     cfg,
		http:    tracing.WrapHTTPClient(httpClient),
		metrics: p.Metrics,
	}
}

func (d *Dispatcher) RunForever(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if _, err := d.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			d.log.Warn("webhook dispatch run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce claims one batch of due events and attempts each delivery.
func (d *Dispatcher) RunOnce(ctx context.Context) (int, error) {
	rows, err := d.claim(ctx)
	if err != nil {
		return 0, err
	}
	for _, row := range rows {
		if err := d.deliver(ctx, row); err != nil {
			return 0, err
		}
	}
	return len(rows), nil
}

func (d *Dispatcher) claim(ctx context.Context) ([]outboxRow, error) {
	var rows []outboxRow
	now := d.clock.Now()
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.WithContext(ctx).
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ? AND next_attempt_at <= ?", StatusPending, now).
			Order("next_attempt_at ASC").
			Order("id ASC").
			Limit(d.cfg.BatchSize).
			Find(&rows).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		ids := make([]snowflake.ID, 0, len(rows))
		for _, row := range rows {
			ids = append(ids, row.ID)
		}
		return tx.WithContext(ctx).Exec(
			`UPDATE outbox_events SET next_attempt_at = ?, updated_at = ? WHERE id IN ?`,
			now.Add(d.cfg.lease()),
			now,
			ids,
		).Error
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (d *Dispatcher) deliver(ctx context.Context, row outboxRow) error {
	var webhookURL string
	if err := d.db.WithContext(ctx).Raw(
		`SELECT webhook_url FROM businesses WHERE id = ?`,
		row.BusinessID,
	).Scan(&webhookURL).Error; err != nil {
		return err
	}
	webhookURL = strings.TrimSpace(webhookURL)
	if webhookURL == "" {
		d.metrics.IncWebhookDelivery("skipped")
		return d.finish(ctx, row.ID, StatusSkipped, row.Attempts, "no webhook url")
	}

	sendErr := d.send(ctx, webhookURL, row)
	attempts := row.Attempts + 1
	if sendErr == nil {
		d.metrics.IncWebhookDelivery("delivered")
		d.log.Info("webhook delivered",
			zap.String("event_id", row.ID.String()),
			zap.String("business_id", row.BusinessID.String()),
			zap.String("event_type", row.EventType),
		)
		return d.finish(ctx, row.ID, StatusDelivered, attempts, "")
	}

	if attempts >= d.cfg.MaxAttempts {
		d.metrics.IncWebhookDelivery("failed")
		d.log.Error("webhook delivery abandoned",
			zap.String("event_id", row.ID.String()),
			zap.String("business_id", row.BusinessID.String()),
			zap.Int("attempts", attempts),
			zap.Error(sendErr),
		)
		return d.finish(ctx, row.ID, StatusFailed, attempts, sendErr.Error())
	}

	d.metrics.IncWebhookDelivery("retry")
	next := d.clock.Now().Add(RetryDelay(row.Attempts))
	d.log.Warn("webhook delivery failed, retry scheduled",
		zap.String("event_id", row.ID.String()),
		zap.String("business_id", row.BusinessID.String()),
		zap.Int("attempts", attempts),
		zap.Time("next_attempt_at", next),
		zap.Error(sendErr),
	)
	return d.db.WithContext(ctx).Exec(
		`UPDATE outbox_events
		 SET attempts = ?, next_attempt_at = ?, last_error = ?, updated_at = ?
		 WHERE id = ?`,
		attempts,
		next,
		truncate(sendErr.Error(), maxErrorText),
		d.clock.Now(),
		row.ID,
	).Error
}

func (d *Dispatcher) finish(ctx context.Context, id snowflake.ID, status string, attempts int, lastError string) error {
	now := d.clock.Now()
	var deliveredAt *time.Time
	if status == StatusDelivered {
		deliveredAt = &now
	}
	return d.db.WithContext(ctx).Exec(
		`UPDATE outbox_events
		 SET status = ?, attempts = ?, last_error = ?, delivered_at = ?, updated_at = ?
		 WHERE id = ?`,
		status,
		attempts,
		truncate(lastError, maxErrorText),
		deliveredAt,
		now,
		id,
	).Error
}

type deliveryBody struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	BusinessID string          `json:"business_id"`
	CreatedAt  time.Time       `json:"created_at"`
	Data       json.RawMessage `json:"data"`
}

func (d *Dispatcher) send(ctx context.Context, url string, row outboxRow) error {
	data := json.RawMessage(row.Payload)
	if len(data) == 0 {
		data = json.RawMessage(`{}`)
	}
	body, err := json.Marshal(deliveryBody{
		ID:         row.ID.String(),
		Type:       row.EventType,
		BusinessID: row.BusinessID.String(),
		CreatedAt:  row.CreatedAt.UTC(),
		Data:       data,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set(HeaderEvent, row.EventType)
	req.Header.Set(HeaderDelivery, row.ID.String())
	if secret := strings.TrimSpace(d.cfg.SigningSecret); secret != "" {
		req.Header.Set(HeaderSignature, Sign(secret, body))
	}

	resp, err := d.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return fmt.Errorf("webhook endpoint returned %d", resp.StatusCode)
}

// Sign returns the signature header value for body: sha256=<hex hmac>.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a signature header produced by Sign.
func VerifySignature(secret string, body []byte, header string) bool {
	expected := Sign(secret, body)
	return hmac.Equal([]byte(expected), []byte(strings.TrimSpace(header)))
}

func truncate(value string, max int) string {
	return mpesa.Truncate(value, max)
}
