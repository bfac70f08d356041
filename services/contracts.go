package services

import (
	"coaching-module/models"
	"coaching-module/razorpay"
	"context"
	"time"
)

// PaymentStore defines the payment record storage responsibility. All state
// transitions go through conditional writes so that concurrent verification,
// webhooks and refunds converge instead of overwriting each other.
type PaymentStore interface {
	GetByID(ctx context.Context, id int) (*models.Payment, error)
	GetByOrderID(ctx context.Context, orderID string) (*models.Payment, error)
	GetByOrderAndStudent(ctx context.Context, orderID string, studentID int) (*models.Payment, error)
	GetByGatewayPaymentID(ctx context.Context, gatewayPaymentID string) (*models.Payment, error)

	// UpsertVerified atomically creates-or-completes the (orderID, studentID)
	// row; it must never move a terminal row back to completed.
	UpsertVerified(ctx context.Context, p *models.Payment) (*models.Payment, error)
	// MarkCompletedIfPending transitions pending -> completed; false means
	// no pending row matched.
	MarkCompletedIfPending(ctx context.Context, orderID, gatewayPaymentID string) (bool, error)
	MarkFailed(ctx context.Context, orderID, gatewayPaymentID, errMsg string) (bool, error)
	// UpsertFailed records a client-reported failure, creating the row when
	// no verification ever landed.
	UpsertFailed(ctx context.Context, p *models.Payment) (*models.Payment, error)
	// AppendRefund records a gateway-confirmed refund and the resulting status.
	AppendRefund(ctx context.Context, paymentID int, r models.Refund, newStatus string) error

	List(ctx context.Context, f models.PaymentFilter) ([]models.Payment, int, *models.PaymentStats, error)
	ListByStudent(ctx context.Context, studentID int) ([]models.Payment, error)
	Analytics(ctx context.Context, since time.Time) (*models.AnalyticsReport, error)
	Overview(ctx context.Context) (*models.StatsOverview, error)
}

// StudentStore defines the identity reads and best-effort secondary writes
// the payment manager performs against the user store.
type StudentStore interface {
	Get(ctx context.Context, id int) (*models.Student, error)
	AppendPaymentHistory(ctx context.Context, entry models.PaymentHistoryEntry) error
	InsertNotification(ctx context.Context, n models.Notification) error
}

// Gateway defines the payment gateway responsibility: order create/fetch,
// refund create and signature checks. Implementations must bound every call
// with a timeout.
type Gateway interface {
	KeyID() string
	CreateOrder(amountPaise int64, receipt, description string) (*razorpay.Order, error)
	FetchOrderStatus(orderID string) (string, error)
	CreateRefund(gatewayPaymentID string, amountPaise int64, notes map[string]interface{}) (*razorpay.RefundResult, error)
	VerifyPaymentSignature(orderID, paymentID, signature string) bool
	VerifyWebhookSignature(body []byte, signature string) bool
}

// Notifier delivers confirmation/refund side effects. Implementations are
// fire-and-forget: they never block the caller and never propagate failure.
type Notifier interface {
	PaymentConfirmed(p *models.Payment)
	PaymentFailed(p *models.Payment)
	PaymentRefunded(p *models.Payment, r models.Refund)
}

// WebhookAudit logs every received webhook for security review and records
// the processing outcome.
type WebhookAudit interface {
	LogReceived(ctx context.Context, webhookID, eventType, payload string, signatureValid bool) error
	MarkProcessed(ctx context.Context, webhookID, errMsg string) error
}
