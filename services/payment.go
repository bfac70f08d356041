package services

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	apperrors "coaching-module/errors"
	"coaching-module/logger"
	"coaching-module/models"
	"coaching-module/razorpay"
	"coaching-module/utils"
)

// PaymentService owns the fee-payment lifecycle: order creation, client
// verification, failure reports, reconciliation reads, refunds and the
// reporting queries built on top of them.
type PaymentService struct {
	payments PaymentStore
	students StudentStore
	gateway  Gateway
	notifier Notifier
}

func NewPaymentService(payments PaymentStore, students StudentStore, gateway Gateway, notifier Notifier) *PaymentService {
	return &PaymentService{
		payments: payments,
		students: students,
		gateway:  gateway,
		notifier: notifier,
	}
}

// CreateOrderRequest is the student-facing order creation payload.
type CreateOrderRequest struct {
	Amount      float64 `json:"amount"`
	Month       string  `json:"month"`
	Description string  `json:"description"`
}

// VerifyRequest is the checkout callback payload posted by the client after
// the gateway reports success.
type VerifyRequest struct {
	RazorpayOrderID   string  `json:"razorpay_order_id"`
	RazorpayPaymentID string  `json:"razorpay_payment_id"`
	RazorpaySignature string  `json:"razorpay_signature"`
	Amount            float64 `json:"amount"`
	Month             string  `json:"month"`
	Description       string  `json:"description"`
}

// FailureReport is the client-side report of an abandoned or declined
// checkout attempt.
type FailureReport struct {
	OrderID     string  `json:"order_id"`
	Amount      float64 `json:"amount"`
	Month       string  `json:"month"`
	Description string  `json:"description"`
	ErrorReason string  `json:"error_reason"`
}

// RefundRequest is the admin refund payload. A zero amount refunds the
// remaining balance.
type RefundRequest struct {
	Amount float64 `json:"amount"`
	Reason string  `json:"reason"`
}

// CreateOrder creates a gateway order for a fee payment. No local record is
// written here; the payment row materializes at verification or failure.
func (s *PaymentService) CreateOrder(ctx context.Context, studentID int, req CreateOrderRequest) (*models.RazorpayOrder, error) {
	if req.Month == "" {
		return nil, apperrors.NewInvalidParamsError("amount and month are required")
	}
	if !utils.IsValidMonth(req.Month) {
		return nil, apperrors.NewInvalidParamsError("invalid month: " + req.Month)
	}

	paise, err := razorpay.ToPaise(req.Amount)
	if err != nil {
		return nil, err
	}

	description := req.Description
	if description == "" {
		description = "Fees for " + req.Month
	}

	receipt := fmt.Sprintf("fee_%s_%d", strings.ToLower(req.Month), studentID)
	order, err := s.gateway.CreateOrder(paise, receipt, description)
	if err != nil {
		logger.Error("Error creating gateway order for student %d: %v", studentID, err)
		return nil, err
	}

	logger.Info("Created order %s for student %d: %s %.2f", order.ID, studentID, order.Currency, req.Amount)

	return &models.RazorpayOrder{
		OrderID:  order.ID,
		Amount:   razorpay.FromPaise(order.AmountPaise),
		Currency: order.Currency,
		Receipt:  order.Receipt,
		KeyID:    s.gateway.KeyID(),
		Month:    req.Month,
	}, nil
}

// VerifyPayment checks the checkout signature and records the payment as
// completed. The write is an idempotent upsert on (order, student), so a
// retried callback returns the already-saved record, and a record that was
// refunded in the meantime is never moved back to completed.
func (s *PaymentService) VerifyPayment(ctx context.Context, studentID int, req VerifyRequest) (*models.Payment, error) {
	if req.RazorpayOrderID == "" || req.RazorpayPaymentID == "" || req.RazorpaySignature == "" {
		return nil, apperrors.NewInvalidParamsError("order id, payment id and signature are required")
	}

	if !s.gateway.VerifyPaymentSignature(req.RazorpayOrderID, req.RazorpayPaymentID, req.RazorpaySignature) {
		logger.Warn("Signature mismatch on verify for order %s (student %d)", req.RazorpayOrderID, studentID)
		return nil, apperrors.NewSignatureMismatchError("payment signature verification failed")
	}

	if _, err := razorpay.ToPaise(req.Amount); err != nil {
		return nil, err
	}

	student, err := s.students.Get(ctx, studentID)
	if err != nil {
		return nil, err
	}

	description := req.Description
	if description == "" {
		description = "Monthly Fee"
	}

	record := &models.Payment{
		PaymentRef:        NewPaymentRef(),
		StudentID:         student.ID,
		StudentName:       student.Name,
		ClassName:         student.ClassName,
		Amount:            req.Amount,
		Description:       description,
		Month:             req.Month,
		OrderID:           req.RazorpayOrderID,
		RazorpayPaymentID: req.RazorpayPaymentID,
		RazorpaySignature: req.RazorpaySignature,
	}

	saved, err := s.payments.UpsertVerified(ctx, record)
	if err != nil {
		logger.Error("Error saving verified payment for order %s: %v", req.RazorpayOrderID, err)
		return nil, err
	}

	// A retried callback converges on the original row and keeps its ref, so
	// a matching ref means this call created the record and side effects
	// should fire exactly once.
	if saved.Status == models.StatusCompleted && saved.PaymentRef == record.PaymentRef {
		s.notifier.PaymentConfirmed(saved)
	}

	logger.Info("Payment verified for order %s: ref=%s status=%s", saved.OrderID, saved.PaymentRef, saved.Status)
	return saved, nil
}

// ReportFailure records a client-reported checkout failure. If a racing
// webhook already completed the payment the completed record is returned
// untouched.
func (s *PaymentService) ReportFailure(ctx context.Context, studentID int, req FailureReport) (*models.Payment, error) {
	if req.OrderID == "" {
		return nil, apperrors.NewInvalidParamsError("order id is required")
	}

	student, err := s.students.Get(ctx, studentID)
	if err != nil {
		return nil, err
	}

	reason := req.ErrorReason
	if reason == "" {
		reason = "Payment failed"
	}

	record := &models.Payment{
		PaymentRef:   NewPaymentRef(),
		StudentID:    student.ID,
		StudentName:  student.Name,
		ClassName:    student.ClassName,
		Amount:       req.Amount,
		Description:  req.Description,
		Month:        req.Month,
		OrderID:      req.OrderID,
		ErrorMessage: reason,
	}

	saved, err := s.payments.UpsertFailed(ctx, record)
	if err != nil {
		logger.Error("Error recording failed payment for order %s: %v", req.OrderID, err)
		return nil, err
	}

	if saved.Status == models.StatusFailed {
		s.notifier.PaymentFailed(saved)
	}

	logger.Info("Failure recorded for order %s (student %d): %s", req.OrderID, studentID, reason)
	return saved, nil
}

// CheckStatus returns the payment for an order, reconciling a still-pending
// record against the gateway first. If the gateway reports the order as paid
// the record self-heals to completed, covering lost webhook delivery. Gateway
// errors never fail the read.
func (s *PaymentService) CheckStatus(ctx context.Context, orderID string, studentID int, isAdmin bool) (*models.Payment, error) {
	payment, err := s.payments.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !isAdmin && payment.StudentID != studentID {
		return nil, apperrors.NewForbiddenError("not authorized to view this payment")
	}

	if payment.Status == models.StatusPending {
		status, err := s.gateway.FetchOrderStatus(orderID)
		if err != nil {
			logger.Warn("Could not reconcile order %s against gateway: %v", orderID, err)
			return payment, nil
		}
		if status == "paid" {
			updated, err := s.payments.MarkCompletedIfPending(ctx, orderID, payment.RazorpayPaymentID)
			if err != nil {
				return nil, err
			}
			if updated {
				logger.Info("Order %s reconciled to completed on status read", orderID)
				return s.payments.GetByOrderID(ctx, orderID)
			}
		}
	}

	return payment, nil
}

// GetPayment returns a single payment by internal id, enforcing ownership
// for student callers.
func (s *PaymentService) GetPayment(ctx context.Context, id int, studentID int, isAdmin bool) (*models.Payment, error) {
	payment, err := s.payments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !isAdmin && payment.StudentID != studentID {
		return nil, apperrors.NewForbiddenError("not authorized to view this payment")
	}
	return payment, nil
}

// Refund issues a refund against a completed payment. The gateway call goes
// first; the local record only mutates after the gateway confirms, so a
// rejected refund leaves the payment untouched.
func (s *PaymentService) Refund(ctx context.Context, paymentID int, adminID int, req RefundRequest) (*models.Payment, error) {
	payment, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	if payment.Status != models.StatusCompleted {
		return nil, apperrors.NewConflictError(
			fmt.Sprintf("only completed payments can be refunded, current status is %s", payment.Status))
	}
	if payment.RazorpayPaymentID == "" {
		return nil, apperrors.NewConflictError("payment has no gateway payment id to refund against")
	}

	amount := req.Amount
	if amount == 0 {
		amount = payment.RefundableBalance()
	}
	if amount <= 0 {
		return nil, apperrors.NewInvalidParamsError("refund amount must be greater than 0")
	}
	if amount > payment.RefundableBalance()+1e-9 {
		return nil, apperrors.NewConflictError(
			fmt.Sprintf("refund amount %.2f exceeds refundable balance %.2f", amount, payment.RefundableBalance()))
	}

	paise, err := razorpay.ToPaise(amount)
	if err != nil {
		return nil, err
	}

	reason := req.Reason
	if reason == "" {
		reason = "Requested by admin"
	}

	result, err := s.gateway.CreateRefund(payment.RazorpayPaymentID, paise, map[string]interface{}{
		"reason":     reason,
		"payment_id": payment.PaymentRef,
	})
	if err != nil {
		logger.Error("Gateway refund failed for payment %d: %v", paymentID, err)
		return nil, err
	}

	refund := models.Refund{
		Amount:           amount,
		Reason:           reason,
		RazorpayRefundID: result.ID,
		GatewayStatus:    result.Status,
		ProcessedBy:      adminID,
	}

	newStatus := models.StatusPartiallyRefunded
	if payment.RefundedTotal()+amount >= payment.Amount-1e-9 {
		newStatus = models.StatusRefunded
	}

	if err := s.payments.AppendRefund(ctx, paymentID, refund, newStatus); err != nil {
		// The gateway refund went through but the local write failed; the
		// refund.created webhook will reconcile the record.
		logger.Error("Error recording refund %s locally for payment %d: %v", result.ID, paymentID, err)
		return nil, err
	}

	updated, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	s.notifier.PaymentRefunded(updated, refund)
	logger.Info("Refund %s of %.2f issued for payment %d, new status %s", result.ID, amount, paymentID, updated.Status)
	return updated, nil
}

// ListPayments returns a filtered admin page with aggregate stats.
func (s *PaymentService) ListPayments(ctx context.Context, f models.PaymentFilter) ([]models.Payment, int, *models.PaymentStats, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = 10
	}
	if f.Limit > 10000 {
		f.Limit = 10000
	}
	return s.payments.List(ctx, f)
}

// StudentPayments returns the caller's own settled payments.
func (s *PaymentService) StudentPayments(ctx context.Context, studentID int) ([]models.Payment, error) {
	return s.payments.ListByStudent(ctx, studentID)
}

// Analytics aggregates payments over a named timeframe (daily, weekly,
// monthly or yearly).
func (s *PaymentService) Analytics(ctx context.Context, timeframe string) (*models.AnalyticsReport, error) {
	now := time.Now()
	var since time.Time
	switch timeframe {
	case "daily":
		since = now.AddDate(0, 0, -1)
	case "weekly":
		since = now.AddDate(0, 0, -7)
	case "", "monthly":
		timeframe = "monthly"
		since = now.AddDate(0, -1, 0)
	case "yearly":
		since = now.AddDate(-1, 0, 0)
	default:
		return nil, apperrors.NewInvalidParamsError("timeframe must be one of daily, weekly, monthly, yearly")
	}

	report, err := s.payments.Analytics(ctx, since)
	if err != nil {
		return nil, err
	}
	report.Timeframe = timeframe
	report.Since = since
	return report, nil
}

// Overview returns the admin dashboard summary.
func (s *PaymentService) Overview(ctx context.Context) (*models.StatsOverview, error) {
	return s.payments.Overview(ctx)
}

// NewPaymentRef generates a reference of the form PAY_<millis>_<random>,
// unique enough for display and receipts while the row id stays the key.
func NewPaymentRef() string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, 9)
	for i := range b {
		b[i] = letters[rand.Intn(len(letters))]
	}
	return fmt.Sprintf("PAY_%d_%s", time.Now().UnixMilli(), string(b))
}
