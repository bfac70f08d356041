package services

import (
	"context"
	"fmt"
	"time"

	"coaching-module/logger"
	"coaching-module/models"
	"coaching-module/services/kafka"
)

// NotificationService fans out the side effects of a settled payment: the
// in-app notification row, the denormalized history entry, the payment event
// on Kafka and the email queue. All of it runs in the background and nothing
// here can fail the payment operation that triggered it.
type NotificationService struct {
	students StudentStore
}

func NewNotificationService(students StudentStore) *NotificationService {
	return &NotificationService{students: students}
}

const sideEffectTimeout = 15 * time.Second

// PaymentConfirmed records history, notifies the student and queues the
// confirmation email for a completed payment.
func (n *NotificationService) PaymentConfirmed(p *models.Payment) {
	payment := *p
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
		defer cancel()

		paidOn := time.Now()
		if payment.PaidDate != nil {
			paidOn = *payment.PaidDate
		}

		if err := n.students.AppendPaymentHistory(ctx, models.PaymentHistoryEntry{
			StudentID:     payment.StudentID,
			Amount:        payment.Amount,
			Status:        payment.Status,
			TransactionID: payment.RazorpayPaymentID,
			Description:   payment.Description,
			Date:          paidOn,
		}); err != nil {
			logger.Warn("Could not append payment history for student %d: %v", payment.StudentID, err)
		}

		if err := n.students.InsertNotification(ctx, models.Notification{
			UserID:  payment.StudentID,
			Title:   "Payment Successful",
			Message: fmt.Sprintf("Your payment of ₹%.2f for %s has been received.", payment.Amount, payment.Month),
			Type:    "payment_success",
		}); err != nil {
			logger.Warn("Could not insert payment notification for student %d: %v", payment.StudentID, err)
		}

		n.publishPaymentEvent("payment.completed", &payment)

		student, err := n.students.Get(ctx, payment.StudentID)
		if err != nil || student.Email == "" {
			logger.Warn("Skipping confirmation email for student %d: no address", payment.StudentID)
			return
		}
		if err := SendPaymentConfirmationEmail(student.Email, &payment); err != nil {
			logger.Warn("Could not queue confirmation email for %s: %v", student.Email, err)
		}
	}()
}

// PaymentFailed notifies the student of a failed attempt.
func (n *NotificationService) PaymentFailed(p *models.Payment) {
	payment := *p
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
		defer cancel()

		if err := n.students.InsertNotification(ctx, models.Notification{
			UserID:  payment.StudentID,
			Title:   "Payment Failed",
			Message: fmt.Sprintf("Your payment for %s could not be completed. No amount was charged.", payment.Month),
			Type:    "payment_failed",
		}); err != nil {
			logger.Warn("Could not insert failure notification for student %d: %v", payment.StudentID, err)
		}

		n.publishPaymentEvent("payment.failed", &payment)

		student, err := n.students.Get(ctx, payment.StudentID)
		if err != nil || student.Email == "" {
			return
		}
		if err := SendPaymentFailedEmail(student.Email, &payment); err != nil {
			logger.Warn("Could not queue failure email for %s: %v", student.Email, err)
		}
	}()
}

// PaymentRefunded records history and notifies the student of a refund.
func (n *NotificationService) PaymentRefunded(p *models.Payment, r models.Refund) {
	payment := *p
	refund := r
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
		defer cancel()

		if err := n.students.AppendPaymentHistory(ctx, models.PaymentHistoryEntry{
			StudentID:     payment.StudentID,
			Amount:        -refund.Amount,
			Status:        payment.Status,
			TransactionID: refund.RazorpayRefundID,
			Description:   "Refund: " + refund.Reason,
			Date:          time.Now(),
		}); err != nil {
			logger.Warn("Could not append refund history for student %d: %v", payment.StudentID, err)
		}

		if err := n.students.InsertNotification(ctx, models.Notification{
			UserID:  payment.StudentID,
			Title:   "Refund Processed",
			Message: fmt.Sprintf("A refund of ₹%.2f has been processed for payment %s.", refund.Amount, payment.PaymentRef),
			Type:    "payment_refund",
		}); err != nil {
			logger.Warn("Could not insert refund notification for student %d: %v", payment.StudentID, err)
		}

		n.publishPaymentEvent("payment.refunded", &payment)

		student, err := n.students.Get(ctx, payment.StudentID)
		if err != nil || student.Email == "" {
			return
		}
		if err := SendRefundEmail(student.Email, &payment, refund); err != nil {
			logger.Warn("Could not queue refund email for %s: %v", student.Email, err)
		}
	}()
}

func (n *NotificationService) publishPaymentEvent(event string, p *models.Payment) {
	payload := map[string]interface{}{
		"event":       event,
		"payment_ref": p.PaymentRef,
		"order_id":    p.OrderID,
		"student_id":  p.StudentID,
		"amount":      p.Amount,
		"month":       p.Month,
		"status":      p.Status,
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	}
	if err := Publish(kafka.TopicPayments, "payment-"+p.OrderID, payload); err != nil {
		logger.Warn("Could not publish %s event for order %s: %v", event, p.OrderID, err)
	}
}
