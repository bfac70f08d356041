package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	apperrors "coaching-module/errors"
	"coaching-module/logger"
	"coaching-module/models"
	"coaching-module/razorpay"
)

// WebhookService reconciles gateway push events against the payment store.
// Every event is audited; a bad signature is the only rejection, everything
// after that is handled internally so the gateway never retries forever.
type WebhookService struct {
	payments PaymentStore
	gateway  Gateway
	audit    WebhookAudit
	notifier Notifier
}

func NewWebhookService(payments PaymentStore, gateway Gateway, audit WebhookAudit, notifier Notifier) *WebhookService {
	return &WebhookService{
		payments: payments,
		gateway:  gateway,
		audit:    audit,
		notifier: notifier,
	}
}

type webhookEnvelope struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity paymentEntity `json:"entity"`
		} `json:"payment"`
		Order struct {
			Entity orderEntity `json:"entity"`
		} `json:"order"`
		Refund struct {
			Entity refundEntity `json:"entity"`
		} `json:"refund"`
	} `json:"payload"`
}

type paymentEntity struct {
	ID               string `json:"id"`
	OrderID          string `json:"order_id"`
	Amount           int64  `json:"amount"`
	Status           string `json:"status"`
	ErrorDescription string `json:"error_description"`
}

type orderEntity struct {
	ID     string `json:"id"`
	Amount int64  `json:"amount"`
	Status string `json:"status"`
}

type refundEntity struct {
	ID        string                 `json:"id"`
	PaymentID string                 `json:"payment_id"`
	Amount    int64                  `json:"amount"`
	Status    string                 `json:"status"`
	CreatedAt int64                  `json:"created_at"`
	Notes     map[string]interface{} `json:"notes"`
}

// Process verifies the webhook signature over the raw body and applies the
// event. The returned error is nil for everything except a signature
// mismatch; everything after that, unreadable payloads included, is logged
// and audited instead, because once the signature checks out a retry from
// the gateway cannot deliver anything new.
func (s *WebhookService) Process(ctx context.Context, body []byte, signature, eventID string) error {
	valid := s.gateway.VerifyWebhookSignature(body, signature)

	var env webhookEnvelope
	parseErr := json.Unmarshal(body, &env)

	webhookID := eventID
	if webhookID == "" {
		sum := sha256.Sum256(body)
		webhookID = "whk_" + hex.EncodeToString(sum[:12])
	}

	if err := s.audit.LogReceived(ctx, webhookID, env.Event, string(body), valid); err != nil {
		logger.Warn("Could not audit webhook %s: %v", webhookID, err)
	}

	if !valid {
		logger.Warn("Webhook %s rejected: invalid signature", webhookID)
		return apperrors.NewSignatureMismatchError("webhook signature verification failed")
	}
	if parseErr != nil {
		logger.Warn("Webhook %s has an unreadable payload: %v", webhookID, parseErr)
		if auditErr := s.audit.MarkProcessed(ctx, webhookID, "unreadable payload: "+parseErr.Error()); auditErr != nil {
			logger.Warn("Could not mark webhook %s processed: %v", webhookID, auditErr)
		}
		return nil
	}

	var err error
	switch env.Event {
	case "payment.captured", "order.paid":
		err = s.handleCaptured(ctx, env)
	case "payment.failed":
		err = s.handleFailed(ctx, env)
	case "refund.created":
		err = s.handleRefundCreated(ctx, env)
	default:
		logger.Info("Webhook %s: ignoring event %s", webhookID, env.Event)
	}

	errMsg := ""
	if err != nil {
		errMsg = err.Error()
		logger.Error("Webhook %s (%s) reconciliation error: %v", webhookID, env.Event, err)
	}
	if auditErr := s.audit.MarkProcessed(ctx, webhookID, errMsg); auditErr != nil {
		logger.Warn("Could not mark webhook %s processed: %v", webhookID, auditErr)
	}

	// Signature was valid, so acknowledge regardless of the internal outcome.
	return nil
}

// handleCaptured settles a pending payment. A duplicate delivery, or one
// arriving after client-side verification, finds no pending row and is a
// no-op. A capture we cannot attribute to any record is dropped after
// logging; the audit row keeps the payload for manual review.
func (s *WebhookService) handleCaptured(ctx context.Context, env webhookEnvelope) error {
	p := env.Payload.Payment.Entity
	orderID := p.OrderID
	if orderID == "" {
		orderID = env.Payload.Order.Entity.ID
	}
	if orderID == "" && p.ID == "" {
		return fmt.Errorf("captured event carries no order or payment id")
	}

	updated, err := s.payments.MarkCompletedIfPending(ctx, orderID, p.ID)
	if err != nil {
		return err
	}
	if updated {
		payment, err := s.payments.GetByOrderID(ctx, orderID)
		if err != nil {
			return err
		}
		logger.Info("Webhook settled order %s as completed", orderID)
		s.notifier.PaymentConfirmed(payment)
		return nil
	}

	if _, err := s.payments.GetByOrderID(ctx, orderID); err == nil {
		logger.Info("Webhook capture for order %s ignored, record already settled", orderID)
		return nil
	}
	logger.Warn("Webhook capture for order %s matches no local record, dropping", orderID)
	return nil
}

func (s *WebhookService) handleFailed(ctx context.Context, env webhookEnvelope) error {
	p := env.Payload.Payment.Entity
	orderID := p.OrderID
	if orderID == "" {
		orderID = env.Payload.Order.Entity.ID
	}

	reason := p.ErrorDescription
	if reason == "" {
		reason = "Payment failed"
	}

	updated, err := s.payments.MarkFailed(ctx, orderID, p.ID, reason)
	if err != nil {
		return err
	}
	if !updated {
		logger.Info("Webhook failure for order %s ignored, no pending record", orderID)
		return nil
	}
	if payment, err := s.payments.GetByOrderID(ctx, orderID); err == nil {
		s.notifier.PaymentFailed(payment)
	}
	return nil
}

// handleRefundCreated records a gateway-initiated refund, deduplicating on
// the gateway refund id so redelivered events do not double-count.
func (s *WebhookService) handleRefundCreated(ctx context.Context, env webhookEnvelope) error {
	r := env.Payload.Refund.Entity
	if r.ID == "" || r.PaymentID == "" {
		return fmt.Errorf("refund event missing refund or payment id")
	}

	payment, err := s.payments.GetByGatewayPaymentID(ctx, r.PaymentID)
	if err != nil {
		if apperrors.IsKind(err, apperrors.NotFound) {
			logger.Warn("Webhook refund %s matches no local payment %s, dropping", r.ID, r.PaymentID)
			return nil
		}
		return err
	}

	for _, existing := range payment.Refunds {
		if existing.RazorpayRefundID == r.ID {
			logger.Info("Webhook refund %s already recorded for payment %d", r.ID, payment.ID)
			return nil
		}
	}

	amount := razorpay.FromPaise(r.Amount)
	reason := "Refund processed by gateway"
	if v, ok := r.Notes["reason"].(string); ok && v != "" {
		reason = v
	}

	refund := models.Refund{
		Amount:           amount,
		Reason:           reason,
		RazorpayRefundID: r.ID,
		GatewayStatus:    r.Status,
	}

	newStatus := models.StatusPartiallyRefunded
	if payment.RefundedTotal()+amount >= payment.Amount-1e-9 {
		newStatus = models.StatusRefunded
	}

	if err := s.payments.AppendRefund(ctx, payment.ID, refund, newStatus); err != nil {
		if apperrors.IsKind(err, apperrors.Conflict) {
			logger.Warn("Webhook refund %s refused for payment %d in status %s", r.ID, payment.ID, payment.Status)
			return nil
		}
		return err
	}

	if updated, err := s.payments.GetByID(ctx, payment.ID); err == nil {
		s.notifier.PaymentRefunded(updated, refund)
	}
	logger.Info("Webhook refund %s of %.2f recorded for payment %d", r.ID, amount, payment.ID)
	return nil
}
