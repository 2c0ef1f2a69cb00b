package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	customerdomain "github.com/WordpressDesigne/mpesaprompt/internal/customer/domain"
	"github.com/WordpressDesigne/mpesaprompt/internal/events"
	"github.com/WordpressDesigne/mpesaprompt/internal/mpesa"
	paymentdomain "github.com/WordpressDesigne/mpesaprompt/internal/payment/domain"
	walletdomain "github.com/WordpressDesigne/mpesaprompt/internal/wallet/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func (s *Service) HandleCallback(ctx context.Context, payload []byte) mpesa.CallbackResponse {
	ack := mpesa.CallbackResponse{
		ResultCode: mpesa.ResultCodeSuccess,
		ResultDesc: mpesa.AcceptedDescription,
	}

	cb, err := mpesa.ParseCallback(payload, s.gateway.Location())
	if err != nil {
		s.metrics.IncCallback("invalid")
		s.log.Warn("invalid callback payload", zap.Error(err), zap.Int("payload_bytes", len(payload)))
		return ack
	}
	ctx = context.WithoutCancel(ctx)
	logger := s.log.With(zap.String("checkout_request_id", cb.CheckoutRequestID))

	event := &paymentdomain.CallbackEvent{
		ID:                s.genID.Generate(),
		CheckoutRequestID: cb.CheckoutRequestID,
		MerchantRequestID: cb.MerchantRequestID,
		ResultCode:        cb.ResultCode,
		Payload:           datatypes.JSON(payload),
		ReceivedAt:        s.clock.Now(),
	}
	inserted, err := s.repo.InsertCallbackEvent(ctx, s.db, event)
	if err != nil {
		s.metrics.IncCallback("error")
		logger.Error("failed to store callback", zap.Error(err))
		return ack
	}
	if !inserted {
		stored, err := s.repo.FindCallbackEvent(ctx, s.db, cb.CheckoutRequestID)
		if err != nil || stored == nil {
			s.metrics.IncCallback("error")
			logger.Error("failed to load stored callback", zap.Error(err))
			return ack
		}
		if stored.ProcessedAt != nil {
			s.metrics.IncCallback("duplicate")
			logger.Info("duplicate callback ignored", zap.String("outcome", stored.Outcome))
			return ack
		}
		event = stored
	}

	outcome, txn, err := s.reconcile(ctx, event.ID, cb)
	switch {
	case errors.Is(err, paymentdomain.ErrNotFound):
		s.metrics.IncCallback("unmatched")
		logger.Warn("callback for unknown checkout request kept for replay")
		ack.ResultDesc = mpesa.UnmatchedDescription
		return ack
	case err != nil:
		s.metrics.IncCallback("error")
		logger.Error("failed to reconcile callback", zap.Error(err))
		return ack
	}

	s.metrics.IncCallback(outcome)
	logger.Info("callback reconciled",
		zap.String("business_id", txn.BusinessID.String()),
		zap.String("transaction_id", txn.ID.String()),
		zap.String("outcome", outcome),
	)
	if outcome == paymentdomain.OutcomeCompleted {
		ack.ThirdPartyTransID = cb.ReceiptNumber
	}
	return ack
}

// replayStoredCallback reconciles a callback that arrived before its
// transaction reached pending.
func (s *Service) replayStoredCallback(ctx context.Context, checkoutRequestID string) {
	logger := s.log.With(zap.String("checkout_request_id", checkoutRequestID))
	stored, err := s.repo.FindCallbackEvent(ctx, s.db, checkoutRequestID)
	if err != nil {
		logger.Error("failed to look up early callback", zap.Error(err))
		return
	}
	if stored == nil || stored.ProcessedAt != nil {
		return
	}
	cb, err := mpesa.ParseCallback(stored.Payload, s.gateway.Location())
	if err != nil {
		logger.Error("stored callback no longer parses", zap.Error(err))
		return
	}
	outcome, _, err := s.reconcile(ctx, stored.ID, cb)
	if err != nil {
		logger.Error("failed to replay early callback", zap.Error(err))
		return
	}
	s.metrics.IncCallback(outcome)
	logger.Info("early callback replayed", zap.String("outcome", outcome))
}

func (s *Service) reconcile(ctx context.Context, eventID snowflake.ID, cb *mpesa.Callback) (string, *paymentdomain.Transaction, error) {
	var (
		outcome string
		result  *paymentdomain.Transaction
	)
	err := withRetry(func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			txn, err := s.repo.LockByCheckoutRequestID(ctx, tx, cb.CheckoutRequestID)
			if err != nil {
				return err
			}
			// A checkout id is only stored together with the pending transition.
			if txn == nil || txn.Status == paymentdomain.StatusInitiated {
				return paymentdomain.ErrNotFound
			}

			now := s.clock.Now()
			switch {
			case txn.Status.Terminal():
				outcome = paymentdomain.OutcomeAlreadyTerminal
			case cb.Succeeded():
				if err := s.complete(ctx, tx, txn, cb, now); err != nil {
					return err
				}
				outcome = paymentdomain.OutcomeCompleted
			default:
				if err := s.fail(ctx, tx, txn, cb, now); err != nil {
					return err
				}
				outcome = paymentdomain.OutcomeFailed
			}
			result = txn
			return s.repo.MarkCallbackProcessed(ctx, tx, eventID, outcome, now)
		})
	})
	if err != nil {
		return "", nil, err
	}
	return outcome, result, nil
}

func (s *Service) complete(ctx context.Context, tx *gorm.DB, txn *paymentdomain.Transaction, cb *mpesa.Callback, now time.Time) error {
	amount := txn.Amount
	if cb.Amount != nil && cb.Amount.IsPositive() {
		amount = cb.Amount.Round(2)
	}
	phone := txn.PhoneNumber
	if cb.PhoneNumber != "" {
		if normalized, err := mpesa.NormalizePhoneNumber(cb.PhoneNumber, s.gateway.CountryCode()); err == nil {
			phone = normalized
		} else {
			s.log.Warn("callback phone number ignored",
				zap.String("checkout_request_id", cb.CheckoutRequestID),
				zap.Error(err),
			)
		}
	}
	occurredAt := now
	if cb.TransactionDate != nil {
		occurredAt = cb.TransactionDate.UTC()
	}

	customer, err := s.customerSvc.Record(ctx, tx, customerdomain.RecordRequest{
		BusinessID:  txn.BusinessID,
		PhoneNumber: phone,
		Name:        cb.PayerName(),
		Amount:      amount,
		OccurredAt:  occurredAt,
	})
	if err != nil {
		return fmt.Errorf("record customer: %w", err)
	}

	settlement, err := s.walletSvc.Settle(ctx, tx, walletdomain.SettleRequest{
		BusinessID: txn.BusinessID,
		Gross:      amount,
		SourceID:   txn.ID,
		OccurredAt: occurredAt,
	})
	if err != nil {
		return fmt.Errorf("settle wallet: %w", err)
	}

	resultCode := cb.ResultCode
	updates := map[string]any{
		"status":            paymentdomain.StatusCompleted,
		"amount":            amount,
		"phone_number":      phone,
		"customer_id":       customer.ID,
		"result_code":       resultCode,
		"result_desc":       truncate(cb.ResultDesc, maxResultDescLen),
		"commission_rate":   settlement.Rate,
		"commission_amount": settlement.Commission,
		"settled_at":        now,
		"updated_at":        now,
	}
	if cb.ReceiptNumber != "" {
		updates["receipt_number"] = cb.ReceiptNumber
	}
	if cb.TransactionDate != nil {
		updates["transaction_date"] = cb.TransactionDate.UTC()
	}
	if err := s.transition(ctx, tx, txn, updates); err != nil {
		return err
	}

	txn.Status = paymentdomain.StatusCompleted
	txn.Amount = amount
	txn.PhoneNumber = phone
	txn.CustomerID = &customer.ID
	txn.ResultCode = &resultCode
	txn.ResultDesc = updates["result_desc"].(string)
	txn.ReceiptNumber = stringPtr(cb.ReceiptNumber)
	txn.TransactionDate = cb.TransactionDate
	txn.CommissionRate = settlement.Rate
	txn.CommissionAmount = settlement.Commission
	txn.SettledAt = &now
	txn.UpdatedAt = now

	s.metrics.ObserveSettlementLag(now.Sub(txn.CreatedAt))
	return s.publish(ctx, tx, txn, events.EventPaymentCompleted)
}

func (s *Service) fail(ctx context.Context, tx *gorm.DB, txn *paymentdomain.Transaction, cb *mpesa.Callback, now time.Time) error {
	resultCode := cb.ResultCode
	desc := truncate(cb.ResultDesc, maxResultDescLen)
	if err := s.transition(ctx, tx, txn, map[string]any{
		"status":      paymentdomain.StatusFailed,
		"result_code": resultCode,
		"result_desc": desc,
		"updated_at":  now,
	}); err != nil {
		return err
	}

	txn.Status = paymentdomain.StatusFailed
	txn.ResultCode = &resultCode
	txn.ResultDesc = desc
	txn.UpdatedAt = now
	return s.publish(ctx, tx, txn, events.EventPaymentFailed)
}

func (s *Service) transition(ctx context.Context, tx *gorm.DB, txn *paymentdomain.Transaction, updates map[string]any) error {
	ok, err := s.repo.Transition(ctx, tx, txn.ID, []paymentdomain.Status{paymentdomain.StatusPending}, updates)
	if err != nil {
		return err
	}
	if !ok {
		return paymentdomain.ErrPersistenceConflict
	}
	return nil
}

func (s *Service) publish(ctx context.Context, tx *gorm.DB, txn *paymentdomain.Transaction, eventType string) error {
	payload := events.PaymentPayload{
		TransactionID:    txn.ID.String(),
		Status:           string(txn.Status),
		Amount:           txn.Amount,
		Currency:         txn.Currency,
		PhoneNumber:      txn.PhoneNumber,
		AccountReference: txn.AccountReference,
		ResultCode:       txn.ResultCode,
		ResultDesc:       txn.ResultDesc,
		Commission:       txn.CommissionAmount,
		TransactionDate:  txn.TransactionDate,
	}
	if txn.CheckoutRequestID != nil {
		payload.CheckoutRequestID = *txn.CheckoutRequestID
	}
	if txn.ReceiptNumber != nil {
		payload.ReceiptNumber = *txn.ReceiptNumber
	}
	return s.outbox.PublishTx(ctx, tx, events.Event{
		BusinessID: txn.BusinessID,
		Type:       eventType,
		Payload:    payload.ToMap(),
		DedupeKey:  eventType + ":" + txn.ID.String(),
	})
}
