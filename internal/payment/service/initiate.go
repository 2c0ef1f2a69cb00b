package service

import (
	"context"
	"errors"
	"strings"

	"github.com/WordpressDesigne/mpesaprompt/internal/mpesa"
	paymentdomain "github.com/WordpressDesigne/mpesaprompt/internal/payment/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func (s *Service) Initiate(ctx context.Context, req paymentdomain.InitiateRequest) (*paymentdomain.InitiateResult, error) {
	if req.BusinessID == 0 {
		return nil, paymentdomain.ErrInvalidBusiness
	}
	amount := req.Amount
	if !amount.IsPositive() || !amount.Equal(amount.Truncate(0)) {
		return nil, paymentdomain.ErrInvalidAmount
	}
	phone, err := mpesa.NormalizePhoneNumber(req.PhoneNumber, s.gateway.CountryCode())
	if err != nil {
		return nil, err
	}
	key := strings.TrimSpace(req.IdempotencyKey)
	if len(key) > maxIdempotencyKeyLen {
		return nil, paymentdomain.ErrInvalidIdempotencyKey
	}

	creds, err := s.businessSvc.ResolveCredentials(ctx, req.BusinessID)
	if err != nil {
		s.metrics.IncInitiation("not_configured")
		return nil, err
	}

	if key != "" {
		existing, err := s.repo.FindByIdempotencyKey(ctx, s.db, req.BusinessID, key)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			s.metrics.IncInitiation("replayed")
			return &paymentdomain.InitiateResult{Transaction: *existing, Replayed: true}, nil
		}
	}

	accountRef := strings.TrimSpace(req.AccountReference)
	if accountRef == "" {
		accountRef = creds.Shortcode
	}
	desc := strings.TrimSpace(req.Description)
	if desc == "" {
		desc = defaultDescription
	}

	var txn *paymentdomain.Transaction
	var winner *paymentdomain.Transaction
	err = withRetry(func() error {
		now := s.clock.Now()
		candidate := &paymentdomain.Transaction{
			ID:               s.genID.Generate(),
			BusinessID:       req.BusinessID,
			PhoneNumber:      phone,
			Amount:           amount,
			Currency:         s.currency,
			AccountReference: mpesa.Truncate(accountRef, mpesa.MaxAccountReferenceLength),
			TransactionDesc:  mpesa.Truncate(desc, mpesa.MaxTransactionDescLength),
			TransactionType:  string(creds.TransactionType),
			Status:           paymentdomain.StatusInitiated,
			IdempotencyKey:   stringPtr(key),
			CommissionRate:   decimal.Zero,
			CommissionAmount: decimal.Zero,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		inserted, err := s.repo.Insert(ctx, s.db, candidate)
		if err != nil {
			return err
		}
		if inserted {
			txn = candidate
			return nil
		}
		existing, err := s.repo.FindByIdempotencyKey(ctx, s.db, req.BusinessID, key)
		if err != nil {
			return err
		}
		if existing == nil {
			return paymentdomain.ErrPersistenceConflict
		}
		winner = existing
		return nil
	})
	if err != nil {
		return nil, err
	}
	if winner != nil {
		s.metrics.IncInitiation("replayed")
		return &paymentdomain.InitiateResult{Transaction: *winner, Replayed: true}, nil
	}

	resp, gwErr := s.gateway.STKPush(ctx, creds.Credentials, mpesa.STKPushRequest{
		Shortcode:        creds.Shortcode,
		Passkey:          creds.Passkey,
		TransactionType:  creds.TransactionType,
		Amount:           amount.IntPart(),
		PhoneNumber:      phone,
		CallbackURL:      creds.CallbackURL,
		AccountReference: txn.AccountReference,
		TransactionDesc:  txn.TransactionDesc,
	})

	// The gateway may have already acted, so the outcome is recorded even if
	// the caller has gone away.
	persistCtx := context.WithoutCancel(ctx)
	if gwErr != nil {
		s.metrics.IncInitiation(initiationFailureLabel(gwErr))
		if err := s.failInitiation(persistCtx, txn, gwErr); err != nil {
			s.log.Error("failed to record rejected initiation",
				zap.String("transaction_id", txn.ID.String()),
				zap.String("business_id", txn.BusinessID.String()),
				zap.Error(err),
			)
		}
		return nil, gwErr
	}

	now := s.clock.Now()
	ok, err := s.repo.Transition(persistCtx, s.db, txn.ID, []paymentdomain.Status{paymentdomain.StatusInitiated}, map[string]any{
		"status":              paymentdomain.StatusPending,
		"merchant_request_id": resp.MerchantRequestID,
		"checkout_request_id": resp.CheckoutRequestID,
		"result_desc":         truncate(resp.ResponseDescription, maxResultDescLen),
		"updated_at":          now,
	})
	if err != nil {
		s.log.Error("failed to record accepted initiation",
			zap.String("transaction_id", txn.ID.String()),
			zap.String("business_id", txn.BusinessID.String()),
			zap.String("checkout_request_id", resp.CheckoutRequestID),
			zap.String("merchant_request_id", resp.MerchantRequestID),
			zap.Error(err),
		)
		return nil, err
	}
	if !ok {
		s.log.Error("initiation left initiated state before acceptance was recorded",
			zap.String("transaction_id", txn.ID.String()),
			zap.String("business_id", txn.BusinessID.String()),
			zap.String("checkout_request_id", resp.CheckoutRequestID),
		)
		return nil, paymentdomain.ErrPersistenceConflict
	}
	s.metrics.IncInitiation("accepted")

	s.replayStoredCallback(persistCtx, resp.CheckoutRequestID)

	current, err := s.repo.FindByID(persistCtx, s.db, txn.BusinessID, txn.ID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, paymentdomain.ErrNotFound
	}
	return &paymentdomain.InitiateResult{
		Transaction:     *current,
		CustomerMessage: resp.CustomerMessage,
	}, nil
}

func (s *Service) failInitiation(ctx context.Context, txn *paymentdomain.Transaction, cause error) error {
	desc := cause.Error()
	var gwErr *mpesa.GatewayError
	if errors.As(cause, &gwErr) && strings.TrimSpace(gwErr.Message) != "" {
		desc = gwErr.Message
	}
	_, err := s.repo.Transition(ctx, s.db, txn.ID, []paymentdomain.Status{paymentdomain.StatusInitiated}, map[string]any{
		"status":      paymentdomain.StatusFailed,
		"result_desc": truncate(desc, maxResultDescLen),
		"updated_at":  s.clock.Now(),
	})
	return err
}

func initiationFailureLabel(err error) string {
	switch {
	case errors.Is(err, mpesa.ErrGatewayRejected):
		return "rejected"
	case errors.Is(err, mpesa.ErrCredentialsRejected), errors.Is(err, mpesa.ErrTokenUnavailable):
		return "auth_failed"
	case errors.Is(err, mpesa.ErrGatewayUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
