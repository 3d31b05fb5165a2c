package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"companion-service/metrics"
	"companion-service/models"
	"companion-service/providers"
	"companion-service/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DepositResponse carries what the client needs to complete payment with the
// provider. The client secret is never persisted.
type DepositResponse struct {
	Payment      *models.Payment `json:"payment"`
	ClientSecret string          `json:"client_secret,omitempty"`
}

// PaymentService is the reconciliation engine: it creates deposit intents,
// applies provider callbacks exactly once, and drives refunds. It never moves
// money itself.
type PaymentService interface {
	CreateDeposit(ctx context.Context, orderID uuid.UUID, amount int, actorID string) (*DepositResponse, *ServiceError)
	ApplyCallback(ctx context.Context, evt *providers.CallbackEvent) *ServiceError
	Refund(ctx context.Context, orderID uuid.UUID, amount int, reason, actorID string) (*models.Refund, *ServiceError)
}

type paymentServiceImpl struct {
	paymentRepo repository.PaymentRepository
	orderRepo   repository.OrderRepository
	provider    providers.PaymentProvider
	audit       AuditRecorder
	events      EventPublisher
	currency    string
	logger      *zap.Logger
}

func NewPaymentService(
	paymentRepo repository.PaymentRepository,
	orderRepo repository.OrderRepository,
	provider providers.PaymentProvider,
	audit AuditRecorder,
	events EventPublisher,
	currency string,
	logger *zap.Logger,
) PaymentService {
	return &paymentServiceImpl{
		paymentRepo: paymentRepo,
		orderRepo:   orderRepo,
		provider:    provider,
		audit:       audit,
		events:      events,
		currency:    currency,
		logger:      logger,
	}
}

// CreateDeposit creates (or retrieves) the deposit intent for an order. Safe
// to retry: while an attempt is awaiting its callback, the same reference is
// replayed against the provider, whose idempotency key returns the original
// intent instead of a new charge. A new attempt is only minted after a failed
// one, superseding it.
func (s *paymentServiceImpl) CreateDeposit(ctx context.Context, orderID uuid.UUID, amount int, actorID string) (*DepositResponse, *ServiceError) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errOrderNotFound()
		}
		s.logger.Error("Failed to fetch order", zap.String("order_id", orderID.String()), zap.Error(err))
		return nil, errInternal("Failed to fetch order")
	}
	if actorID != order.PatientID {
		return nil, errUnauthorized("Only the patient may pay the deposit")
	}
	if order.Status != models.StatusPendingPayment {
		return nil, errInvalidOrderState("Order is not awaiting payment")
	}
	if amount <= 0 {
		amount = order.DepositAmount
	}

	payment, err := s.paymentRepo.FindActiveByOrderID(ctx, orderID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("Failed to look up active payment", zap.String("order_id", orderID.String()), zap.Error(err))
		return nil, errInternal("Failed to look up payment")
	}

	newAttempt := payment == nil
	if newAttempt {
		attempts, cerr := s.paymentRepo.CountByOrderID(ctx, orderID)
		if cerr != nil {
			s.logger.Error("Failed to count payment attempts", zap.String("order_id", orderID.String()), zap.Error(cerr))
			return nil, errInternal("Failed to look up payment")
		}
		payment = &models.Payment{
			OrderID:   orderID,
			PatientID: order.PatientID,
			Amount:    amount,
			Currency:  s.currency,
			Reference: fmt.Sprintf("ORDER_%s_%d", orderID, attempts+1),
			State:     models.PaymentCreated,
		}
	}

	intent, err := s.provider.CreateIntent(ctx, int64(payment.Amount), payment.Currency, payment.Reference)
	if err != nil {
		s.logger.Error("Provider intent creation failed",
			zap.String("order_id", orderID.String()),
			zap.String("reference", payment.Reference),
			zap.Error(err),
		)
		return nil, errProviderFailure("Payment provider rejected the request")
	}

	if newAttempt {
		payment.ProviderPaymentID = &intent.ProviderPaymentID
		if err := s.paymentRepo.Create(ctx, payment); err != nil {
			s.logger.Error("Failed to persist payment", zap.String("order_id", orderID.String()), zap.Error(err))
			return nil, errInternal("Failed to save payment")
		}
		// The stored linkage is what the callback handler resolves later;
		// it must be durable before the intent reaches the client.
		if err := s.orderRepo.SetPaymentLink(ctx, orderID, payment.ID.String(), payment.Reference); err != nil {
			s.logger.Error("Failed to link payment to order", zap.String("order_id", orderID.String()), zap.Error(err))
			return nil, errInternal("Failed to save payment")
		}
	}

	s.logger.Info("Deposit intent ready",
		zap.String("order_id", orderID.String()),
		zap.String("reference", payment.Reference),
		zap.Bool("reused", !newAttempt),
	)
	return &DepositResponse{Payment: payment, ClientSecret: intent.ClientSecret}, nil
}

// ApplyCallback applies one provider notification. Delivery is at-least-once
// and unordered; the deposit status is the idempotency gate. Returning nil
// acknowledges the callback so the provider stops retrying.
func (s *paymentServiceImpl) ApplyCallback(ctx context.Context, evt *providers.CallbackEvent) *ServiceError {
	if evt == nil || evt.Type == "" {
		return nil // event kind we don't process
	}
	if evt.Reference == "" {
		metrics.PaymentCallbacksTotal.WithLabelValues("unknown").Inc()
		return errUnknownOrder()
	}

	payment, err := s.paymentRepo.FindByReference(ctx, evt.Reference)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			metrics.PaymentCallbacksTotal.WithLabelValues("unknown").Inc()
			return errUnknownOrder()
		}
		s.logger.Error("Failed to resolve callback reference", zap.String("reference", evt.Reference), zap.Error(err))
		return errInternal("Failed to resolve callback")
	}

	order, err := s.orderRepo.FindByID(ctx, payment.OrderID)
	if err != nil {
		s.logger.Error("Order missing for payment", zap.String("reference", evt.Reference), zap.Error(err))
		return errUnknownOrder()
	}

	// Duplicate delivery of a success we already applied: ack without
	// touching anything, in particular without a second audit entry.
	if order.DepositStatus == models.DepositPaid {
		metrics.PaymentCallbacksTotal.WithLabelValues("duplicate").Inc()
		s.logger.Info("Duplicate payment callback ignored", zap.String("reference", evt.Reference))
		return nil
	}

	// Replay against an order that already progressed or was cancelled:
	// log and discard rather than apply.
	if order.Status != models.StatusPendingPayment {
		metrics.PaymentCallbacksTotal.WithLabelValues("discarded").Inc()
		s.logger.Warn("Callback for order no longer awaiting payment, discarding",
			zap.String("reference", evt.Reference),
			zap.String("status", string(order.Status)),
		)
		return nil
	}

	switch evt.Type {
	case providers.CallbackFailed:
		return s.applyFailure(ctx, order, payment, evt)
	case providers.CallbackSucceeded:
		return s.applySuccess(ctx, order, payment, evt)
	default:
		return nil
	}
}

// applyFailure records the failed attempt. The order stays in
// pending_payment so the patient can retry.
func (s *paymentServiceImpl) applyFailure(ctx context.Context, order *models.Order, payment *models.Payment, evt *providers.CallbackEvent) *ServiceError {
	now := time.Now()
	payment.State = models.PaymentFailed
	payment.FailedAt = &now
	stampCallback(payment, evt)
	if err := s.paymentRepo.Update(ctx, payment); err != nil {
		s.logger.Error("Failed to record payment failure", zap.String("reference", payment.Reference), zap.Error(err))
		return errInternal("Failed to record payment result")
	}

	metrics.PaymentCallbacksTotal.WithLabelValues("failed").Inc()
	s.logger.Info("Payment attempt failed", zap.String("order_id", order.ID.String()), zap.String("reference", payment.Reference))
	s.publish(models.OrderEvent{
		Type:        models.EventPaymentFailed,
		OrderID:     order.ID.String(),
		PatientID:   order.PatientID,
		CompanionID: order.CompanionID,
		Amount:      payment.Amount,
		Timestamp:   now.UTC(),
	})
	return nil
}

// applySuccess confirms the order. The compare-and-swap on pending_payment
// makes the status flip and the deposit flip one atomic write; losing the
// race to a concurrent cancel means the callback is discarded, not applied.
func (s *paymentServiceImpl) applySuccess(ctx context.Context, order *models.Order, payment *models.Payment, evt *providers.CallbackEvent) *ServiceError {
	if serr := canTransition(order, models.StatusConfirmed, models.SystemActor); serr != nil {
		return serr
	}
	if !transitionAllowed(order.Status, models.StatusConfirmed) {
		return errInvalidTransition("Order cannot be confirmed from " + string(order.Status))
	}

	// The success may belong to a superseded attempt (a late callback for an
	// attempt the patient already retried past). The charge that actually went
	// through is the one refunds must resolve, so the stored linkage is
	// re-pointed at this payment in the same write that confirms the order.
	now := time.Now()
	err := s.orderRepo.UpdateStatus(ctx, order.ID, models.StatusPendingPayment, map[string]interface{}{
		"status":         models.StatusConfirmed,
		"deposit_status": models.DepositPaid,
		"payment_id":     payment.ID.String(),
		"payment_ref":    payment.Reference,
		"updated_at":     now,
	})
	if err != nil {
		if errors.Is(err, repository.ErrStaleStatus) {
			// Raced with a cancel or an identical callback; re-read decides.
			reread, rerr := s.orderRepo.FindByID(ctx, order.ID)
			if rerr == nil && reread.DepositStatus == models.DepositPaid {
				metrics.PaymentCallbacksTotal.WithLabelValues("duplicate").Inc()
				return nil
			}
			metrics.PaymentCallbacksTotal.WithLabelValues("discarded").Inc()
			s.logger.Warn("Order left pending_payment before callback applied", zap.String("order_id", order.ID.String()))
			return nil
		}
		s.logger.Error("Failed to confirm order", zap.String("order_id", order.ID.String()), zap.Error(err))
		return errInternal("Failed to apply payment")
	}

	payment.State = models.PaymentSucceeded
	payment.SucceededAt = &now
	stampCallback(payment, evt)
	if uerr := s.paymentRepo.Update(ctx, payment); uerr != nil {
		// Order state is authoritative and already committed.
		s.logger.Warn("Failed to update payment row after confirmation", zap.String("reference", payment.Reference), zap.Error(uerr))
	}

	if s.audit != nil {
		if aerr := s.audit.Append(ctx, order.ID, models.StepConfirmed, "Deposit paid, order confirmed", ""); aerr != nil {
			s.logger.Warn("Audit append failed after confirmation", zap.String("order_id", order.ID.String()), zap.Error(aerr))
		}
	}

	metrics.PaymentCallbacksTotal.WithLabelValues("applied").Inc()
	metrics.OrderTransitionsTotal.WithLabelValues(string(models.StatusConfirmed)).Inc()
	s.logger.Info("Deposit paid, order confirmed",
		zap.String("order_id", order.ID.String()),
		zap.String("reference", payment.Reference),
	)
	s.publish(models.OrderEvent{
		Type:        models.EventOrderConfirmed,
		OrderID:     order.ID.String(),
		PatientID:   order.PatientID,
		CompanionID: order.CompanionID,
		Status:      string(models.StatusConfirmed),
		Amount:      payment.Amount,
		Timestamp:   now.UTC(),
	})
	return nil
}

// Refund reverses the deposit. The charge is keyed by the order's stored
// payment reference, never by order id, so a superseded attempt can't be
// refunded by mistake.
func (s *paymentServiceImpl) Refund(ctx context.Context, orderID uuid.UUID, amount int, reason, actorID string) (*models.Refund, *ServiceError) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errOrderNotFound()
		}
		s.logger.Error("Failed to fetch order", zap.String("order_id", orderID.String()), zap.Error(err))
		return nil, errInternal("Failed to fetch order")
	}
	if actorID != order.PatientID {
		return nil, errUnauthorized("Only the patient may request a refund")
	}
	if order.DepositStatus != models.DepositPaid {
		return nil, errInvalidOrderState("Deposit is not paid, nothing to refund")
	}
	if order.PaymentRef == nil {
		return nil, errInvalidOrderState("Order has no payment reference")
	}

	payment, err := s.paymentRepo.FindByReference(ctx, *order.PaymentRef)
	if err != nil {
		s.logger.Error("Stored payment reference does not resolve",
			zap.String("order_id", orderID.String()),
			zap.String("reference", *order.PaymentRef),
			zap.Error(err),
		)
		return nil, errInternal("Failed to resolve payment")
	}
	if amount <= 0 || amount > payment.Amount {
		return nil, errMissingParameter("amount must be positive and no greater than the deposit")
	}
	if payment.ProviderPaymentID == nil {
		return nil, errInvalidOrderState("Payment has no provider id")
	}

	ref := &models.Refund{
		OrderID:   orderID,
		PaymentID: payment.ID,
		Amount:    amount,
		Reason:    reason,
		State:     models.RefundRequested,
	}
	if err := s.paymentRepo.CreateRefund(ctx, ref); err != nil {
		s.logger.Error("Failed to persist refund request", zap.String("order_id", orderID.String()), zap.Error(err))
		return nil, errInternal("Failed to save refund")
	}

	providerRefundID, err := s.provider.Refund(ctx, *payment.ProviderPaymentID, int64(amount), reason)
	if err != nil {
		ref.State = models.RefundFailed
		if uerr := s.paymentRepo.UpdateRefund(ctx, ref); uerr != nil {
			s.logger.Warn("Failed to mark refund failed", zap.Error(uerr))
		}
		metrics.RefundsTotal.WithLabelValues("failed").Inc()
		s.logger.Error("Provider refund failed", zap.String("order_id", orderID.String()), zap.Error(err))
		// Deposit state untouched; the caller may retry.
		return nil, errProviderFailure("Refund was rejected by the payment provider")
	}

	now := time.Now()
	if err := s.orderRepo.MarkRefunded(ctx, orderID, reason, now); err != nil {
		if errors.Is(err, repository.ErrStaleStatus) {
			// Lost the race; the re-read decides whether another refund
			// already flipped the deposit.
			reread, rerr := s.orderRepo.FindByID(ctx, orderID)
			if rerr == nil && reread.DepositStatus != models.DepositPaid {
				return nil, errInvalidOrderState("Deposit is no longer paid, nothing to refund")
			}
			return nil, errConflict()
		}
		s.logger.Error("Failed to mark deposit refunded", zap.String("order_id", orderID.String()), zap.Error(err))
		return nil, errInternal("Failed to record refund")
	}

	ref.State = models.RefundSucceeded
	ref.ProviderRefundID = &providerRefundID
	if uerr := s.paymentRepo.UpdateRefund(ctx, ref); uerr != nil {
		s.logger.Warn("Failed to update refund row", zap.Error(uerr))
	}

	metrics.RefundsTotal.WithLabelValues("succeeded").Inc()
	s.logger.Info("Deposit refunded",
		zap.String("order_id", orderID.String()),
		zap.Int("amount", amount),
	)
	s.publish(models.OrderEvent{
		Type:        models.EventDepositRefunded,
		OrderID:     order.ID.String(),
		PatientID:   order.PatientID,
		CompanionID: order.CompanionID,
		Amount:      amount,
		Timestamp:   now.UTC(),
	})
	return ref, nil
}

func (s *paymentServiceImpl) publish(event models.OrderEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.SendOrderEvent(event); err != nil {
		s.logger.Warn("Failed to publish payment event", zap.String("type", event.Type), zap.Error(err))
	}
}

func stampCallback(payment *models.Payment, evt *providers.CallbackEvent) {
	if len(evt.Raw) > 0 {
		raw := string(evt.Raw)
		payment.ProviderPayload = &raw
	}
	if evt.ProviderPaymentID != "" && payment.ProviderPaymentID == nil {
		id := evt.ProviderPaymentID
		payment.ProviderPaymentID = &id
	}
}
