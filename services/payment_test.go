package services

import (
	"context"
	"testing"

	apperrors "coaching-module/errors"
	"coaching-module/models"

	"github.com/stretchr/testify/require"
)

func newTestPaymentService() (*PaymentService, *fakePaymentStore, *fakeStudentStore, *fakeGateway, *fakeNotifier) {
	store := newFakePaymentStore()
	students := newFakeStudentStore(&models.Student{
		ID: 7, Name: "Asha Verma", Email: "asha@example.com", ClassName: "Class 10",
	})
	gateway := newFakeGateway()
	notifier := &fakeNotifier{}
	svc := NewPaymentService(store, students, gateway, notifier)
	return svc, store, students, gateway, notifier
}

func TestCreateOrder(t *testing.T) {
	svc, _, _, gateway, _ := newTestPaymentService()
	gateway.nextOrderID = "order_X"

	order, err := svc.CreateOrder(context.Background(), 7, CreateOrderRequest{
		Amount: 1000,
		Month:  "January",
	})
	require.NoError(t, err)
	require.Equal(t, "order_X", order.OrderID)
	require.Equal(t, 1000.0, order.Amount)
	require.Equal(t, "INR", order.Currency)
	require.Equal(t, "rzp_test_key", order.KeyID)
	require.Equal(t, "January", order.Month)
}

func TestCreateOrderRejectsInvalidInput(t *testing.T) {
	svc, _, _, _, _ := newTestPaymentService()

	_, err := svc.CreateOrder(context.Background(), 7, CreateOrderRequest{Amount: 1000, Month: "Januember"})
	require.Error(t, err)
	require.True(t, apperrors.IsKind(err, apperrors.Invalid))

	_, err = svc.CreateOrder(context.Background(), 7, CreateOrderRequest{Amount: -5, Month: "January"})
	require.Error(t, err)
	require.True(t, apperrors.IsKind(err, apperrors.Invalid))
}

func TestVerifyPaymentCreatesCompletedRecord(t *testing.T) {
	svc, _, _, _, notifier := newTestPaymentService()

	payment, err := svc.VerifyPayment(context.Background(), 7, VerifyRequest{
		RazorpayOrderID:   "order_X",
		RazorpayPaymentID: "pay_1",
		RazorpaySignature: "sig",
		Amount:            1000,
		Month:             "January",
	})
	require.NoError(t, err)
	require.Equal(t, models.StatusCompleted, payment.Status)
	require.Equal(t, "Asha Verma", payment.StudentName)
	require.NotNil(t, payment.PaidDate)
	require.NotEmpty(t, payment.PaymentRef)
	require.Equal(t, 1, notifier.confirmedCount())
}

func TestVerifyPaymentIdempotent(t *testing.T) {
	svc, store, _, _, notifier := newTestPaymentService()

	req := VerifyRequest{
		RazorpayOrderID:   "order_X",
		RazorpayPaymentID: "pay_1",
		RazorpaySignature: "sig",
		Amount:            1000,
		Month:             "January",
	}

	first, err := svc.VerifyPayment(context.Background(), 7, req)
	require.NoError(t, err)

	second, err := svc.VerifyPayment(context.Background(), 7, req)
	require.NoError(t, err)

	require.Equal(t, first.ID, second.ID)
	require.Equal(t, first.PaymentRef, second.PaymentRef)
	require.Equal(t, models.StatusCompleted, second.Status)
	require.Len(t, store.payments, 1)
	require.Equal(t, 1, notifier.confirmedCount(), "retried verification must not re-notify")
}

func TestVerifyPaymentBadSignature(t *testing.T) {
	svc, store, _, gateway, notifier := newTestPaymentService()
	gateway.verifyOK = false

	_, err := svc.VerifyPayment(context.Background(), 7, VerifyRequest{
		RazorpayOrderID:   "order_X",
		RazorpayPaymentID: "pay_1",
		RazorpaySignature: "forged",
		Amount:            1000,
		Month:             "January",
	})
	require.Error(t, err)
	require.True(t, apperrors.IsKind(err, apperrors.SignatureMismatch))
	require.Empty(t, store.payments, "no record may be written on a bad signature")
	require.Equal(t, 0, notifier.confirmedCount())
}

func TestVerifyPaymentDoesNotResurrectRefunded(t *testing.T) {
	svc, store, _, _, notifier := newTestPaymentService()

	req := VerifyRequest{
		RazorpayOrderID:   "order_X",
		RazorpayPaymentID: "pay_1",
		RazorpaySignature: "sig",
		Amount:            1000,
		Month:             "January",
	}
	first, err := svc.VerifyPayment(context.Background(), 7, req)
	require.NoError(t, err)

	err = store.AppendRefund(context.Background(), first.ID,
		models.Refund{Amount: 1000, RazorpayRefundID: "rfnd_1"}, models.StatusRefunded)
	require.NoError(t, err)

	replayed, err := svc.VerifyPayment(context.Background(), 7, req)
	require.NoError(t, err)
	require.Equal(t, models.StatusRefunded, replayed.Status)
	require.Equal(t, 1, notifier.confirmedCount())
}

func TestReportFailure(t *testing.T) {
	svc, _, _, _, notifier := newTestPaymentService()

	payment, err := svc.ReportFailure(context.Background(), 7, FailureReport{
		OrderID:     "order_X",
		Amount:      1000,
		Month:       "January",
		ErrorReason: "card declined",
	})
	require.NoError(t, err)
	require.Equal(t, models.StatusFailed, payment.Status)
	require.Equal(t, "card declined", payment.ErrorMessage)
	require.NotNil(t, payment.FailedAt)
	require.Len(t, notifier.failed, 1)
}

func TestReportFailureDoesNotOverrideCompleted(t *testing.T) {
	svc, _, _, _, _ := newTestPaymentService()

	completed, err := svc.VerifyPayment(context.Background(), 7, VerifyRequest{
		RazorpayOrderID:   "order_X",
		RazorpayPaymentID: "pay_1",
		RazorpaySignature: "sig",
		Amount:            1000,
		Month:             "January",
	})
	require.NoError(t, err)

	after, err := svc.ReportFailure(context.Background(), 7, FailureReport{OrderID: "order_X"})
	require.NoError(t, err)
	require.Equal(t, completed.ID, after.ID)
	require.Equal(t, models.StatusCompleted, after.Status)
}

func TestCheckStatusLazyReconcile(t *testing.T) {
	svc, store, _, gateway, _ := newTestPaymentService()

	store.nextID++
	store.payments[store.nextID] = &models.Payment{
		ID: store.nextID, StudentID: 7, OrderID: "order_X",
		Amount: 1000, Month: "January", Status: models.StatusPending,
	}
	gateway.orderStatus = "paid"

	payment, err := svc.CheckStatus(context.Background(), "order_X", 7, false)
	require.NoError(t, err)
	require.Equal(t, models.StatusCompleted, payment.Status)
	require.NotNil(t, payment.PaidDate)
}

func TestCheckStatusGatewayErrorReturnsLocalState(t *testing.T) {
	svc, store, _, gateway, _ := newTestPaymentService()

	store.nextID++
	store.payments[store.nextID] = &models.Payment{
		ID: store.nextID, StudentID: 7, OrderID: "order_X",
		Amount: 1000, Status: models.StatusPending,
	}
	gateway.orderErr = apperrors.NewGatewayError("gateway down", nil)

	payment, err := svc.CheckStatus(context.Background(), "order_X", 7, false)
	require.NoError(t, err)
	require.Equal(t, models.StatusPending, payment.Status)
}

func TestCheckStatusOwnership(t *testing.T) {
	svc, store, _, _, _ := newTestPaymentService()

	store.nextID++
	store.payments[store.nextID] = &models.Payment{
		ID: store.nextID, StudentID: 7, OrderID: "order_X",
		Amount: 1000, Status: models.StatusCompleted,
	}

	_, err := svc.CheckStatus(context.Background(), "order_X", 99, false)
	require.Error(t, err)
	require.True(t, apperrors.IsKind(err, apperrors.Forbidden))

	_, err = svc.CheckStatus(context.Background(), "order_X", 99, true)
	require.NoError(t, err, "admins may view any payment")
}

func refundFixture(t *testing.T, svc *PaymentService) *models.Payment {
	t.Helper()
	payment, err := svc.VerifyPayment(context.Background(), 7, VerifyRequest{
		RazorpayOrderID:   "order_X",
		RazorpayPaymentID: "pay_1",
		RazorpaySignature: "sig",
		Amount:            5000,
		Month:             "January",
	})
	require.NoError(t, err)
	return payment
}

func TestRefundExceedingBalanceRejected(t *testing.T) {
	svc, _, _, gateway, _ := newTestPaymentService()
	payment := refundFixture(t, svc)

	_, err := svc.Refund(context.Background(), payment.ID, 1, RefundRequest{Amount: 6000})
	require.Error(t, err)
	require.True(t, apperrors.IsKind(err, apperrors.Conflict))
	require.Empty(t, gateway.refunds, "gateway must not be called for an over-refund")
}

func TestPartialRefundThenBalance(t *testing.T) {
	svc, _, _, gateway, notifier := newTestPaymentService()
	payment := refundFixture(t, svc)

	after, err := svc.Refund(context.Background(), payment.ID, 1, RefundRequest{Amount: 2000, Reason: "overcharge"})
	require.NoError(t, err)
	require.Equal(t, models.StatusPartiallyRefunded, after.Status)
	require.InDelta(t, 3000, after.RefundableBalance(), 1e-9)
	require.Len(t, gateway.refunds, 1)
	require.Equal(t, int64(200000), gateway.refunds[0].amountPaise)
	require.Len(t, notifier.refunded, 1)

	// A second over-the-balance attempt is refused against the new balance.
	_, err = svc.Refund(context.Background(), payment.ID, 1, RefundRequest{Amount: 3500})
	require.Error(t, err)
	require.True(t, apperrors.IsKind(err, apperrors.Conflict))
}

func TestRefundDefaultsToRemainingBalance(t *testing.T) {
	svc, _, _, gateway, _ := newTestPaymentService()
	payment := refundFixture(t, svc)
	gateway.nextRefundID = "rfnd_full"

	after, err := svc.Refund(context.Background(), payment.ID, 1, RefundRequest{})
	require.NoError(t, err)
	require.Equal(t, models.StatusRefunded, after.Status)
	require.InDelta(t, 0, after.RefundableBalance(), 1e-9)
	require.Equal(t, "rfnd_full", after.Refunds[0].RazorpayRefundID)
}

func TestRefundRequiresCompletedStatus(t *testing.T) {
	svc, store, _, _, _ := newTestPaymentService()

	store.nextID++
	store.payments[store.nextID] = &models.Payment{
		ID: store.nextID, StudentID: 7, OrderID: "order_X",
		Amount: 1000, Status: models.StatusFailed, RazorpayPaymentID: "pay_1",
	}

	_, err := svc.Refund(context.Background(), store.nextID, 1, RefundRequest{Amount: 100})
	require.Error(t, err)
	require.True(t, apperrors.IsKind(err, apperrors.Conflict))
}

func TestRefundGatewayRejectionLeavesRecordUntouched(t *testing.T) {
	svc, store, _, gateway, _ := newTestPaymentService()
	payment := refundFixture(t, svc)
	gateway.refundErr = apperrors.NewGatewayError("refund rejected", nil)

	_, err := svc.Refund(context.Background(), payment.ID, 1, RefundRequest{Amount: 1000})
	require.Error(t, err)
	require.True(t, apperrors.IsKind(err, apperrors.Gateway))

	current, err := store.GetByID(context.Background(), payment.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusCompleted, current.Status)
	require.Empty(t, current.Refunds)
}

func TestAnalyticsTimeframeValidation(t *testing.T) {
	svc, _, _, _, _ := newTestPaymentService()

	for _, tf := range []string{"daily", "weekly", "monthly", "yearly", ""} {
		report, err := svc.Analytics(context.Background(), tf)
		require.NoError(t, err, "timeframe %q", tf)
		require.False(t, report.Since.IsZero())
	}

	_, err := svc.Analytics(context.Background(), "hourly")
	require.Error(t, err)
	require.True(t, apperrors.IsKind(err, apperrors.Invalid))
}

func TestOrderThenVerifyFlow(t *testing.T) {
	svc, _, _, gateway, notifier := newTestPaymentService()
	gateway.nextOrderID = "order_X"

	order, err := svc.CreateOrder(context.Background(), 7, CreateOrderRequest{Amount: 1000, Month: "January"})
	require.NoError(t, err)

	payment, err := svc.VerifyPayment(context.Background(), 7, VerifyRequest{
		RazorpayOrderID:   order.OrderID,
		RazorpayPaymentID: "pay_flow",
		RazorpaySignature: "sig",
		Amount:            order.Amount,
		Month:             order.Month,
	})
	require.NoError(t, err)
	require.Equal(t, models.StatusCompleted, payment.Status)
	require.Equal(t, "order_X", payment.OrderID)
	require.Equal(t, "January", payment.Month)
	require.Equal(t, 1, notifier.confirmedCount())

	history, err := svc.StudentPayments(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, history, 1)
}
