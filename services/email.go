package services

import (
	"fmt"
	"time"

	"coaching-module/logger"
	"coaching-module/models"
	"coaching-module/services/kafka"
)

// SendEmail publishes an email event to Kafka for async processing.
// The email is NOT sent here; the Kafka consumer picks up email.send events
// and delivers them over SMTP.
func SendEmail(to, subject, body string, attachment ...string) error {
	emailPayload := map[string]interface{}{
		"event":     "email.send",
		"recipient": to,
		"subject":   subject,
		"body":      body,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if len(attachment) > 0 {
		emailPayload["attachment"] = attachment[0]
	}

	if err := Publish(kafka.TopicEmails, fmt.Sprintf("email-%s", to), emailPayload); err != nil {
		logger.Error("Failed to publish email event to Kafka: %v", err)
		return fmt.Errorf("failed to queue email: %w", err)
	}

	logger.Info("Email event queued: %s (%s)", to, subject)
	return nil
}

// SendPaymentConfirmationEmail queues the receipt email for a completed
// payment.
func SendPaymentConfirmationEmail(to string, p *models.Payment) error {
	if to == "" {
		return fmt.Errorf("recipient email is required")
	}

	paidOn := time.Now()
	if p.PaidDate != nil {
		paidOn = *p.PaidDate
	}

	emailBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background-color: #4CAF50; color: white; padding: 20px; text-align: center; border-radius: 5px; }
        .content { background-color: #f9f9f9; padding: 20px; margin-top: 20px; border-radius: 5px; }
        .payment-info { background-color: #e8f5e9; padding: 15px; margin: 15px 0; border-left: 4px solid #4CAF50; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header"><h2>Payment Received</h2></div>
        <div class="content">
            <p>Dear <strong>%s</strong>,</p>
            <p>We have received your fee payment. Thank you!</p>
            <div class="payment-info">
                <p><strong>Receipt No:</strong> %s</p>
                <p><strong>Amount:</strong> ₹%.2f</p>
                <p><strong>Month:</strong> %s</p>
                <p><strong>Date:</strong> %s</p>
            </div>
            <p>Best regards,<br/>Coaching Institute</p>
        </div>
    </div>
</body>
</html>
	`, p.StudentName, p.PaymentRef, p.Amount, p.Month, paidOn.Format("02 Jan 2006"))

	subject := fmt.Sprintf("Payment Confirmation - %s", p.Month)
	return SendEmail(to, subject, emailBody)
}

// SendRefundEmail queues the refund notice for a processed refund.
func SendRefundEmail(to string, p *models.Payment, r models.Refund) error {
	if to == "" {
		return fmt.Errorf("recipient email is required")
	}

	emailBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background-color: #2196F3; color: white; padding: 20px; text-align: center; border-radius: 5px; }
        .content { background-color: #f9f9f9; padding: 20px; margin-top: 20px; border-radius: 5px; }
        .refund-info { background-color: #e3f2fd; padding: 15px; margin: 15px 0; border-left: 4px solid #2196F3; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header"><h2>Refund Processed</h2></div>
        <div class="content">
            <p>Dear <strong>%s</strong>,</p>
            <p>A refund has been processed against your payment <strong>%s</strong>.</p>
            <div class="refund-info">
                <p><strong>Refund Amount:</strong> ₹%.2f</p>
                <p><strong>Reason:</strong> %s</p>
                <p><strong>Reference:</strong> %s</p>
            </div>
            <p>The amount will reflect in your account within 5-7 working days.</p>
            <p>Best regards,<br/>Coaching Institute</p>
        </div>
    </div>
</body>
</html>
	`, p.StudentName, p.PaymentRef, r.Amount, r.Reason, r.RazorpayRefundID)

	subject := "Refund Processed - " + p.PaymentRef
	return SendEmail(to, subject, emailBody)
}

// SendPaymentFailedEmail queues a short notice for a failed payment attempt.
func SendPaymentFailedEmail(to string, p *models.Payment) error {
	if to == "" {
		return fmt.Errorf("recipient email is required")
	}

	emailBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background-color: #f44336; color: white; padding: 20px; text-align: center; border-radius: 5px; }
        .content { background-color: #f9f9f9; padding: 20px; margin-top: 20px; border-radius: 5px; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header"><h2>Payment Failed</h2></div>
        <div class="content">
            <p>Dear <strong>%s</strong>,</p>
            <p>Your fee payment for <strong>%s</strong> could not be completed.</p>
            <p>Reason: %s</p>
            <p>No amount has been charged for a failed payment. Please try again from your dashboard.</p>
            <p>Best regards,<br/>Coaching Institute</p>
        </div>
    </div>
</body>
</html>
	`, p.StudentName, p.Month, p.ErrorMessage)

	subject := "Payment Failed - " + p.Month
	return SendEmail(to, subject, emailBody)
}
