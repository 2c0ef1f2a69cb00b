package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"github.com/WordpressDesigne/mpesaprompt/internal/apikey/domain"
	auditdomain "github.com/WordpressDesigne/mpesaprompt/internal/audit/domain"
	"github.com/WordpressDesigne/mpesaprompt/internal/clock"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	keySecretBytes = 24
	keyIDBytes     = 6
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Repo     domain.Repository
	Clock    clock.Clock
	AuditSvc auditdomain.Service `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	repo     domain.Repository
	clock    clock.Clock
	auditSvc auditdomain.Service
}

func New(p Params) domain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("apikey.service"),
		genID:    p.GenID,
		repo:     p.Repo,
		clock:    clk,
		auditSvc: p.AuditSvc,
	}
}

func (s *Service) Issue(ctx context.Context, req domain.IssueRequest) (*domain.IssuedKey, error) {
	if req.BusinessID == 0 {
		return nil, domain.ErrInvalidBusiness
	}
	now := s.clock.Now()
	if req.ExpiresAt != nil && !req.ExpiresAt.After(now) {
		return nil, domain.ErrInvalidExpiry
	}

	var exists int64
	if err := s.db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM businesses WHERE id = ?`,
		req.BusinessID,
	).Scan(&exists).Error; err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, domain.ErrInvalidBusiness
	}

	secret, err := randomHex(keySecretBytes)
	if err != nil {
		return nil, err
	}
	keyID, err := randomHex(keyIDBytes)
	if err != nil {
		return nil, err
	}
	raw := domain.KeyPrefix + secret

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = "default"
	}
	key := domain.APIKey{
		ID:         s.genID.Generate(),
		BusinessID: req.BusinessID,
		KeyID:      "key_" + keyID,
		KeyHash:    domain.HashAPIKey(raw),
		Name:       name,
		IsActive:   true,
		ExpiresAt:  req.ExpiresAt,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, &key); err != nil {
			return err
		}
		return s.audit(ctx, tx, req.BusinessID, auditdomain.ActionAPIKeyIssue, key.KeyID, map[string]any{"name": key.Name})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("api key issued",
		zap.String("business_id", req.BusinessID.String()),
		zap.String("key_id", key.KeyID),
	)
	return &domain.IssuedKey{APIKey: key, Key: raw}, nil
}

func (s *Service) Revoke(ctx context.Context, businessID snowflake.ID, keyID string) error {
	keyID = strings.TrimSpace(keyID)
	if businessID == 0 || keyID == "" {
		return domain.ErrKeyNotFound
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := s.repo.Deactivate(ctx, tx, businessID, keyID, s.clock.Now())
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrKeyNotFound
		}
		return s.audit(ctx, tx, businessID, auditdomain.ActionAPIKeyRevoke, keyID, nil)
	})
	if err != nil {
		return err
	}
	s.log.Info("api key revoked",
		zap.String("business_id", businessID.String()),
		zap.String("key_id", keyID),
	)
	return nil
}

func (s *Service) List(ctx context.Context, businessID snowflake.ID) ([]domain.APIKey, error) {
	if businessID == 0 {
		return nil, domain.ErrInvalidBusiness
	}
	return s.repo.List(ctx, s.db, businessID)
}

// Authenticate resolves a plaintext key to its active record. The tenant is
// derived from the key alone.
func (s *Service) Authenticate(ctx context.Context, raw string) (*domain.APIKey, error) {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, domain.KeyPrefix) || len(raw) == len(domain.KeyPrefix) {
		return nil, domain.ErrInvalidKey
	}
	hash := domain.HashAPIKey(raw)
	now := s.clock.Now()

	key, err := s.repo.FindActiveByHash(ctx, s.db, hash, now)
	if err != nil {
		return nil, err
	}
	if key == nil || subtle.ConstantTimeCompare([]byte(key.KeyHash), []byte(hash)) != 1 {
		return nil, domain.ErrInvalidKey
	}

	if err := s.repo.TouchLastUsed(ctx, s.db, key.ID, now); err != nil {
		s.log.Warn("unable to record api key usage", zap.String("key_id", key.KeyID), zap.Error(err))
	}
	return key, nil
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func (s *Service) audit(ctx context.Context, tx *gorm.DB, businessID snowflake.ID, action, keyID string, metadata map[string]any) error {
	if s.auditSvc == nil {
		return nil
	}
	return s.auditSvc.Record(ctx, tx, auditdomain.Entry{
		BusinessID: businessID,
		Action:     action,
		TargetType: "api_key",
		TargetID:   keyID,
		Metadata:   metadata,
	})
}
