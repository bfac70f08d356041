package services

import (
	"context"
	"fmt"
	"testing"

	apperrors "coaching-module/errors"
	"coaching-module/models"

	"github.com/stretchr/testify/require"
)

func newTestWebhookService() (*WebhookService, *fakePaymentStore, *fakeGateway, *fakeAudit, *fakeNotifier) {
	store := newFakePaymentStore()
	gateway := newFakeGateway()
	audit := newFakeAudit()
	notifier := &fakeNotifier{}
	svc := NewWebhookService(store, gateway, audit, notifier)
	return svc, store, gateway, audit, notifier
}

func seedPayment(store *fakePaymentStore, status string) *models.Payment {
	store.nextID++
	p := &models.Payment{
		ID:        store.nextID,
		StudentID: 7,
		OrderID:   "order_X",
		Amount:    1000,
		Month:     "January",
		Status:    status,
	}
	if status != models.StatusPending {
		p.RazorpayPaymentID = "pay_1"
	}
	store.payments[p.ID] = p
	return p
}

func capturedBody(orderID, paymentID string) []byte {
	return []byte(fmt.Sprintf(
		`{"event":"payment.captured","payload":{"payment":{"entity":{"id":%q,"order_id":%q,"amount":100000,"status":"captured"}}}}`,
		paymentID, orderID))
}

func refundBody(refundID, paymentID string, amountPaise int64) []byte {
	return []byte(fmt.Sprintf(
		`{"event":"refund.created","payload":{"refund":{"entity":{"id":%q,"payment_id":%q,"amount":%d,"status":"processed"}}}}`,
		refundID, paymentID, amountPaise))
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	svc, store, gateway, audit, _ := newTestWebhookService()
	gateway.webhookOK = false
	seedPayment(store, models.StatusPending)

	err := svc.Process(context.Background(), capturedBody("order_X", "pay_1"), "forged", "evt_1")
	require.Error(t, err)
	require.True(t, apperrors.IsKind(err, apperrors.SignatureMismatch))

	p, _ := store.GetByOrderID(context.Background(), "order_X")
	require.Equal(t, models.StatusPending, p.Status, "rejected webhook must not mutate state")
	require.Len(t, audit.received, 1)
	require.False(t, audit.received[0].signatureValid)
}

func TestWebhookAcksUnreadablePayload(t *testing.T) {
	svc, store, _, audit, _ := newTestWebhookService()

	err := svc.Process(context.Background(), []byte("not json"), "sig", "evt_1")
	require.NoError(t, err, "a signed but unparseable payload is acknowledged, not retried")
	require.Empty(t, store.payments)
	require.Len(t, audit.received, 1)
	require.True(t, audit.received[0].signatureValid)
	require.Contains(t, audit.processed["evt_1"], "unreadable payload")
}

func TestWebhookCapturedSettlesPending(t *testing.T) {
	svc, store, _, audit, notifier := newTestWebhookService()
	seedPayment(store, models.StatusPending)

	err := svc.Process(context.Background(), capturedBody("order_X", "pay_1"), "sig", "evt_1")
	require.NoError(t, err)

	p, _ := store.GetByOrderID(context.Background(), "order_X")
	require.Equal(t, models.StatusCompleted, p.Status)
	require.Equal(t, "pay_1", p.RazorpayPaymentID)
	require.NotNil(t, p.PaidDate)
	require.Equal(t, 1, notifier.confirmedCount())
	require.Equal(t, "", audit.processed["evt_1"])
}

func TestWebhookCapturedIdempotent(t *testing.T) {
	svc, store, _, _, notifier := newTestWebhookService()
	seedPayment(store, models.StatusPending)

	body := capturedBody("order_X", "pay_1")
	require.NoError(t, svc.Process(context.Background(), body, "sig", "evt_1"))
	require.NoError(t, svc.Process(context.Background(), body, "sig", "evt_1"))

	p, _ := store.GetByOrderID(context.Background(), "order_X")
	require.Equal(t, models.StatusCompleted, p.Status)
	require.Equal(t, 1, notifier.confirmedCount(), "redelivery must not re-notify")
}

func TestWebhookCapturedUnknownOrderDropped(t *testing.T) {
	svc, store, _, _, notifier := newTestWebhookService()

	err := svc.Process(context.Background(), capturedBody("order_unknown", "pay_9"), "sig", "evt_1")
	require.NoError(t, err, "unattributable captures are acknowledged, not retried")
	require.Empty(t, store.payments)
	require.Equal(t, 0, notifier.confirmedCount())
}

func TestWebhookCapturedNeverResurrectsRefunded(t *testing.T) {
	svc, store, _, _, notifier := newTestWebhookService()
	p := seedPayment(store, models.StatusRefunded)

	err := svc.Process(context.Background(), capturedBody("order_X", "pay_1"), "sig", "evt_late")
	require.NoError(t, err)

	current, _ := store.GetByID(context.Background(), p.ID)
	require.Equal(t, models.StatusRefunded, current.Status)
	require.Equal(t, 0, notifier.confirmedCount())
}

func TestWebhookFailedMarksPending(t *testing.T) {
	svc, store, _, _, notifier := newTestWebhookService()
	seedPayment(store, models.StatusPending)

	body := []byte(`{"event":"payment.failed","payload":{"payment":{"entity":{"id":"pay_1","order_id":"order_X","error_description":"insufficient funds"}}}}`)
	require.NoError(t, svc.Process(context.Background(), body, "sig", "evt_1"))

	p, _ := store.GetByOrderID(context.Background(), "order_X")
	require.Equal(t, models.StatusFailed, p.Status)
	require.Equal(t, "insufficient funds", p.ErrorMessage)
	require.Len(t, notifier.failed, 1)
}

func TestWebhookFailedDoesNotOverrideCompleted(t *testing.T) {
	svc, store, _, _, _ := newTestWebhookService()
	seedPayment(store, models.StatusCompleted)

	body := []byte(`{"event":"payment.failed","payload":{"payment":{"entity":{"id":"pay_1","order_id":"order_X","error_description":"late failure"}}}}`)
	require.NoError(t, svc.Process(context.Background(), body, "sig", "evt_1"))

	p, _ := store.GetByOrderID(context.Background(), "order_X")
	require.Equal(t, models.StatusCompleted, p.Status)
}

func TestWebhookRefundCreated(t *testing.T) {
	svc, store, _, _, notifier := newTestWebhookService()
	p := seedPayment(store, models.StatusCompleted)

	require.NoError(t, svc.Process(context.Background(), refundBody("rfnd_1", "pay_1", 40000), "sig", "evt_1"))

	current, _ := store.GetByID(context.Background(), p.ID)
	require.Equal(t, models.StatusPartiallyRefunded, current.Status)
	require.Len(t, current.Refunds, 1)
	require.InDelta(t, 400, current.Refunds[0].Amount, 1e-9)
	require.Len(t, notifier.refunded, 1)

	// Remaining balance refunded moves the record to refunded.
	require.NoError(t, svc.Process(context.Background(), refundBody("rfnd_2", "pay_1", 60000), "sig", "evt_2"))
	current, _ = store.GetByID(context.Background(), p.ID)
	require.Equal(t, models.StatusRefunded, current.Status)
}

func TestWebhookRefundRedeliveryDeduplicated(t *testing.T) {
	svc, store, _, _, notifier := newTestWebhookService()
	p := seedPayment(store, models.StatusCompleted)

	body := refundBody("rfnd_1", "pay_1", 40000)
	require.NoError(t, svc.Process(context.Background(), body, "sig", "evt_1"))
	require.NoError(t, svc.Process(context.Background(), body, "sig", "evt_1"))

	current, _ := store.GetByID(context.Background(), p.ID)
	require.Len(t, current.Refunds, 1, "same refund id must record once")
	require.Len(t, notifier.refunded, 1)
}

func TestWebhookRefundUnknownPaymentDropped(t *testing.T) {
	svc, _, _, _, _ := newTestWebhookService()

	err := svc.Process(context.Background(), refundBody("rfnd_1", "pay_unknown", 40000), "sig", "evt_1")
	require.NoError(t, err)
}

func TestWebhookUnknownEventAcknowledged(t *testing.T) {
	svc, _, _, audit, _ := newTestWebhookService()

	body := []byte(`{"event":"subscription.activated","payload":{}}`)
	require.NoError(t, svc.Process(context.Background(), body, "sig", "evt_1"))
	require.Equal(t, "", audit.processed["evt_1"])
}

func TestWebhookIDFallsBackToBodyHash(t *testing.T) {
	svc, _, _, audit, _ := newTestWebhookService()

	body := []byte(`{"event":"subscription.activated","payload":{}}`)
	require.NoError(t, svc.Process(context.Background(), body, "sig", ""))
	require.Len(t, audit.received, 1)
	require.NotEmpty(t, audit.received[0].webhookID)
}
