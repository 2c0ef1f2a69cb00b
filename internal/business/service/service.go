package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode"

	auditdomain "github.com/WordpressDesigne/mpesaprompt/internal/audit/domain"
	"github.com/WordpressDesigne/mpesaprompt/internal/business/domain"
	"github.com/WordpressDesigne/mpesaprompt/internal/clock"
	"github.com/WordpressDesigne/mpesaprompt/internal/config"
	"github.com/WordpressDesigne/mpesaprompt/internal/mpesa"
	walletdomain "github.com/WordpressDesigne/mpesaprompt/internal/wallet/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Repo     domain.Repository
	Cfg      config.Config
	Clock    clock.Clock
	AuditSvc auditdomain.Service `optional:"true"`
}

type Service struct {
	db              *gorm.DB
	log             *zap.Logger
	genID           *snowflake.Node
	repo            domain.Repository
	clock           clock.Clock
	auditSvc        auditdomain.Service
	sealer          *sealer
	currency        string
	defaultCallback string
}

func New(p Params) domain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Service{
		db:              p.DB,
		log:             p.Log.Named("business.service"),
		genID:           p.GenID,
		repo:            p.Repo,
		clock:           clk,
		auditSvc:        p.AuditSvc,
		sealer:          newSealer(p.Cfg.Credentials.Secret),
		currency:        strings.ToUpper(strings.TrimSpace(p.Cfg.Payment.Currency)),
		defaultCallback: strings.TrimSpace(p.Cfg.Mpesa.CallbackURL),
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Business, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	env, ok := mpesa.ParseEnvironment(req.Environment)
	if !ok {
		return nil, domain.ErrInvalidEnvironment
	}
	webhookURL, err := normalizeURL(req.WebhookURL)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	business := &domain.Business{
		ID:          s.genID.Generate(),
		Name:        name,
		Environment: string(env),
		WebhookURL:  webhookURL,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, business); err != nil {
			return err
		}
		wallet := walletdomain.NewWallet(s.genID.Generate(), business.ID, s.currency, now)
		if err := tx.WithContext(ctx).Create(wallet).Error; err != nil {
			return err
		}
		return s.audit(ctx, tx, auditdomain.Entry{
			BusinessID: business.ID,
			Action:     auditdomain.ActionBusinessCreate,
			Metadata: map[string]any{
				"name":        business.Name,
				"environment": business.Environment,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("business created",
		zap.String("business_id", business.ID.String()),
		zap.String("environment", business.Environment),
	)
	out := business.Redacted()
	return &out, nil
}

func (s *Service) UpdateCredentials(ctx context.Context, req domain.UpdateCredentialsRequest) (*domain.Business, error) {
	if req.ID == 0 {
		return nil, domain.ErrInvalidID
	}
	paybill := strings.TrimSpace(req.PaybillNumber)
	till := strings.TrimSpace(req.TillNumber)
	if paybill != "" && till != "" {
		return nil, domain.ErrAmbiguousShortcode
	}
	if !isShortcode(paybill) || !isShortcode(till) {
		return nil, domain.ErrInvalidShortcode
	}
	callbackURL, err := normalizeURL(req.CallbackURL)
	if err != nil {
		return nil, err
	}
	webhookURL, err := normalizeURL(req.WebhookURL)
	if err != nil {
		return nil, err
	}
	var env mpesa.Environment
	if strings.TrimSpace(req.Environment) != "" {
		parsed, ok := mpesa.ParseEnvironment(req.Environment)
		if !ok {
			return nil, domain.ErrInvalidEnvironment
		}
		env = parsed
	}

	sealedSecret, err := s.sealer.seal(strings.TrimSpace(req.ConsumerSecret))
	if err != nil {
		return nil, err
	}
	sealedPasskey, err := s.sealer.seal(strings.TrimSpace(req.Passkey))
	if err != nil {
		return nil, err
	}

	var updated *domain.Business
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		business, err := s.repo.FindByID(ctx, tx, req.ID)
		if err != nil {
			return err
		}
		if business == nil {
			return domain.ErrNotFound
		}

		if env != "" {
			business.Environment = string(env)
		}
		if key := strings.TrimSpace(req.ConsumerKey); key != "" {
			business.ConsumerKey = key
		}
		if sealedSecret != "" {
			business.ConsumerSecret = sealedSecret
		}
		if sealedPasskey != "" {
			business.Passkey = sealedPasskey
		}
		switch {
		case paybill != "":
			business.PaybillNumber = paybill
			business.TillNumber = ""
		case till != "":
			business.TillNumber = till
			business.PaybillNumber = ""
		}
		if callbackURL != "" {
			business.CallbackURL = callbackURL
		}
		if webhookURL != "" {
			business.WebhookURL = webhookURL
		}
		business.UpdatedAt = s.clock.Now()

		if err := s.repo.Update(ctx, tx, business); err != nil {
			return err
		}
		updated = business
		return s.audit(ctx, tx, auditdomain.Entry{
			BusinessID: business.ID,
			Action:     auditdomain.ActionBusinessCredentials,
			Metadata:   map[string]any{"fields": changedFields(req)},
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("business credentials updated", zap.String("business_id", updated.ID.String()))
	out := updated.Redacted()
	return &out, nil
}

func (s *Service) SetActive(ctx context.Context, id snowflake.ID, active bool) (*domain.Business, error) {
	if id == 0 {
		return nil, domain.ErrInvalidID
	}
	var updated *domain.Business
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		business, err := s.repo.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if business == nil {
			return domain.ErrNotFound
		}
		business.IsActive = active
		business.UpdatedAt = s.clock.Now()
		if err := s.repo.Update(ctx, tx, business); err != nil {
			return err
		}
		updated = business
		action := auditdomain.ActionBusinessSuspend
		if active {
			action = auditdomain.ActionBusinessActivate
		}
		return s.audit(ctx, tx, auditdomain.Entry{BusinessID: business.ID, Action: action})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("business activation changed",
		zap.String("business_id", id.String()),
		zap.Bool("active", active),
	)
	out := updated.Redacted()
	return &out, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*domain.Business, error) {
	business, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	out := business.Redacted()
	return &out, nil
}

func (s *Service) List(ctx context.Context) ([]domain.Business, error) {
	rows, err := s.repo.List(ctx, s.db)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i] = rows[i].Redacted()
	}
	return rows, nil
}

// ResolveCredentials opens the tenant's sealed secrets. It fails with
// ErrNotConfigured before any gateway traffic when something is missing.
func (s *Service) ResolveCredentials(ctx context.Context, id snowflake.ID) (*domain.GatewayCredentials, error) {
	business, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !business.IsActive {
		return nil, domain.ErrBusinessInactive
	}

	secret, err := s.sealer.open(business.ConsumerSecret)
	if err != nil {
		return nil, s.openError(business.ID, "consumer_secret", err)
	}
	passkey, err := s.sealer.open(business.Passkey)
	if err != nil {
		return nil, s.openError(business.ID, "passkey", err)
	}

	shortcode, txType := business.Shortcode()
	callbackURL := business.CallbackURL
	if callbackURL == "" {
		callbackURL = s.defaultCallback
	}

	var missing []string
	if strings.TrimSpace(business.ConsumerKey) == "" {
		missing = append(missing, "consumer_key")
	}
	if secret == "" {
		missing = append(missing, "consumer_secret")
	}
	if passkey == "" {
		missing = append(missing, "passkey")
	}
	if shortcode == "" {
		missing = append(missing, "shortcode")
	}
	if callbackURL == "" {
		missing = append(missing, "callback_url")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", domain.ErrNotConfigured, strings.Join(missing, ", "))
	}

	env, ok := mpesa.ParseEnvironment(business.Environment)
	if !ok {
		return nil, fmt.Errorf("%w: unknown environment %q", domain.ErrNotConfigured, business.Environment)
	}

	return &domain.GatewayCredentials{
		BusinessID: business.ID,
		Credentials: mpesa.Credentials{
			Environment:    env,
			ConsumerKey:    business.ConsumerKey,
			ConsumerSecret: secret,
		},
		Shortcode:       shortcode,
		Passkey:         passkey,
		TransactionType: txType,
		CallbackURL:     callbackURL,
		WebhookURL:      business.WebhookURL,
	}, nil
}

func (s *Service) load(ctx context.Context, id snowflake.ID) (*domain.Business, error) {
	if id == 0 {
		return nil, domain.ErrInvalidID
	}
	business, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if business == nil {
		return nil, domain.ErrNotFound
	}
	return business, nil
}

func (s *Service) openError(id snowflake.ID, field string, err error) error {
	s.log.Error("unable to open sealed credential",
		zap.String("business_id", id.String()),
		zap.String("field", field),
		zap.Error(err),
	)
	if errors.Is(err, domain.ErrEncryptionKeyMissing) {
		return err
	}
	return fmt.Errorf("%w: %s unreadable", domain.ErrNotConfigured, field)
}

func isShortcode(value string) bool {
	if value == "" {
		return true
	}
	if len(value) < 5 || len(value) > 10 {
		return false
	}
	for _, r := range value {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func normalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return "", domain.ErrInvalidURL
	}
	if parsed.Scheme != "https" && parsed.Scheme != "http" {
		return "", domain.ErrInvalidURL
	}
	return parsed.String(), nil
}

func (s *Service) audit(ctx context.Context, tx *gorm.DB, entry auditdomain.Entry) error {
	if s.auditSvc == nil {
		return nil
	}
	entry.TargetType = "business"
	entry.TargetID = entry.BusinessID.String()
	return s.auditSvc.Record(ctx, tx, entry)
}

// changedFields names the credential fields a request touches. Values are never recorded.
func changedFields(req domain.UpdateCredentialsRequest) []string {
	candidates := []struct {
		name  string
		value string
	}{
		{"environment", req.Environment},
		{"consumer_key", req.ConsumerKey},
		{"consumer_secret", req.ConsumerSecret},
		{"passkey", req.Passkey},
		{"paybill_number", req.PaybillNumber},
		{"till_number", req.TillNumber},
		{"callback_url", req.CallbackURL},
		{"webhook_url", req.WebhookURL},
	}
	fields := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if strings.TrimSpace(c.value) != "" {
			fields = append(fields, c.name)
		}
	}
	return fields
}
