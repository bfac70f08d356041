package services

import (
	"context"
	"sync"
	"time"

	apperrors "coaching-module/errors"
	"coaching-module/models"
	"coaching-module/razorpay"
)

// fakePaymentStore mirrors the conditional-write guarantees of the Postgres
// store so the service tests exercise the same transition guards.
type fakePaymentStore struct {
	mu       sync.Mutex
	nextID   int
	payments map[int]*models.Payment
}

func newFakePaymentStore() *fakePaymentStore {
	return &fakePaymentStore{payments: map[int]*models.Payment{}}
}

func (f *fakePaymentStore) clone(p *models.Payment) *models.Payment {
	cp := *p
	cp.Refunds = append([]models.Refund(nil), p.Refunds...)
	return &cp
}

func (f *fakePaymentStore) findByOrderAndStudent(orderID string, studentID int) *models.Payment {
	for _, p := range f.payments {
		if p.OrderID == orderID && p.StudentID == studentID {
			return p
		}
	}
	return nil
}

func (f *fakePaymentStore) GetByID(_ context.Context, id int) (*models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.payments[id]; ok {
		return f.clone(p), nil
	}
	return nil, apperrors.NewNotFoundError("payment not found")
}

func (f *fakePaymentStore) GetByOrderID(_ context.Context, orderID string) (*models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.payments {
		if p.OrderID == orderID {
			return f.clone(p), nil
		}
	}
	return nil, apperrors.NewNotFoundError("payment not found")
}

func (f *fakePaymentStore) GetByOrderAndStudent(_ context.Context, orderID string, studentID int) (*models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p := f.findByOrderAndStudent(orderID, studentID); p != nil {
		return f.clone(p), nil
	}
	return nil, apperrors.NewNotFoundError("payment not found")
}

func (f *fakePaymentStore) GetByGatewayPaymentID(_ context.Context, gatewayPaymentID string) (*models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.payments {
		if p.RazorpayPaymentID == gatewayPaymentID && gatewayPaymentID != "" {
			return f.clone(p), nil
		}
	}
	return nil, apperrors.NewNotFoundError("payment not found")
}

func (f *fakePaymentStore) UpsertVerified(_ context.Context, p *models.Payment) (*models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	existing := f.findByOrderAndStudent(p.OrderID, p.StudentID)
	if existing == nil {
		f.nextID++
		now := time.Now()
		saved := f.clone(p)
		saved.ID = f.nextID
		saved.Status = models.StatusCompleted
		saved.PaidDate = &now
		saved.CreatedAt = now
		f.payments[saved.ID] = saved
		return f.clone(saved), nil
	}

	switch existing.Status {
	case models.StatusPending, models.StatusCompleted:
		existing.Status = models.StatusCompleted
		existing.RazorpayPaymentID = p.RazorpayPaymentID
		existing.RazorpaySignature = p.RazorpaySignature
		if existing.PaidDate == nil {
			now := time.Now()
			existing.PaidDate = &now
		}
	}
	return f.clone(existing), nil
}

func (f *fakePaymentStore) MarkCompletedIfPending(_ context.Context, orderID, gatewayPaymentID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.payments {
		matches := p.OrderID == orderID || (gatewayPaymentID != "" && p.RazorpayPaymentID == gatewayPaymentID)
		if matches && p.Status == models.StatusPending {
			p.Status = models.StatusCompleted
			if p.RazorpayPaymentID == "" {
				p.RazorpayPaymentID = gatewayPaymentID
			}
			now := time.Now()
			p.PaidDate = &now
			return true, nil
		}
	}
	return false, nil
}

func (f *fakePaymentStore) MarkFailed(_ context.Context, orderID, gatewayPaymentID, errMsg string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.payments {
		if p.OrderID == orderID && p.Status == models.StatusPending {
			p.Status = models.StatusFailed
			p.ErrorMessage = errMsg
			if p.RazorpayPaymentID == "" {
				p.RazorpayPaymentID = gatewayPaymentID
			}
			now := time.Now()
			p.FailedAt = &now
			return true, nil
		}
	}
	return false, nil
}

func (f *fakePaymentStore) UpsertFailed(_ context.Context, p *models.Payment) (*models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	existing := f.findByOrderAndStudent(p.OrderID, p.StudentID)
	if existing == nil {
		f.nextID++
		now := time.Now()
		saved := f.clone(p)
		saved.ID = f.nextID
		saved.Status = models.StatusFailed
		saved.FailedAt = &now
		saved.CreatedAt = now
		f.payments[saved.ID] = saved
		return f.clone(saved), nil
	}
	if existing.Status == models.StatusPending {
		existing.Status = models.StatusFailed
		existing.ErrorMessage = p.ErrorMessage
		now := time.Now()
		existing.FailedAt = &now
	}
	return f.clone(existing), nil
}

func (f *fakePaymentStore) AppendRefund(_ context.Context, paymentID int, r models.Refund, newStatus string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[paymentID]
	if !ok {
		return apperrors.NewNotFoundError("payment not found")
	}
	if p.Status != models.StatusCompleted && p.Status != models.StatusPartiallyRefunded {
		return apperrors.NewConflictError("payment is not in a refundable status")
	}
	r.CreatedAt = time.Now()
	p.Refunds = append(p.Refunds, r)
	p.Status = newStatus
	return nil
}

func (f *fakePaymentStore) List(_ context.Context, filter models.PaymentFilter) ([]models.Payment, int, *models.PaymentStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Payment
	stats := &models.PaymentStats{}
	for _, p := range f.payments {
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		out = append(out, *f.clone(p))
		switch p.Status {
		case models.StatusCompleted:
			stats.CompletedCount++
			stats.TotalRevenue += p.Amount
		case models.StatusPending:
			stats.PendingCount++
			stats.PendingAmount += p.Amount
		case models.StatusFailed:
			stats.FailedCount++
			stats.FailedAmount += p.Amount
		default:
			stats.RefundedCount++
		}
	}
	return out, len(out), stats, nil
}

func (f *fakePaymentStore) ListByStudent(_ context.Context, studentID int) ([]models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Payment
	for _, p := range f.payments {
		if p.StudentID == studentID && p.Status != models.StatusPending {
			out = append(out, *f.clone(p))
		}
	}
	return out, nil
}

func (f *fakePaymentStore) Analytics(_ context.Context, since time.Time) (*models.AnalyticsReport, error) {
	return &models.AnalyticsReport{Since: since}, nil
}

func (f *fakePaymentStore) Overview(_ context.Context) (*models.StatsOverview, error) {
	return &models.StatsOverview{}, nil
}

type fakeStudentStore struct {
	mu            sync.Mutex
	students      map[int]*models.Student
	history       []models.PaymentHistoryEntry
	notifications []models.Notification
}

func newFakeStudentStore(students ...*models.Student) *fakeStudentStore {
	s := &fakeStudentStore{students: map[int]*models.Student{}}
	for _, st := range students {
		s.students[st.ID] = st
	}
	return s
}

func (f *fakeStudentStore) Get(_ context.Context, id int) (*models.Student, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if st, ok := f.students[id]; ok {
		cp := *st
		return &cp, nil
	}
	return nil, apperrors.NewNotFoundError("student not found")
}

func (f *fakeStudentStore) AppendPaymentHistory(_ context.Context, entry models.PaymentHistoryEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.history = append(f.history, entry)
	return nil
}

func (f *fakeStudentStore) InsertNotification(_ context.Context, n models.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notifications = append(f.notifications, n)
	return nil
}

type refundCall struct {
	gatewayPaymentID string
	amountPaise      int64
}

type fakeGateway struct {
	mu           sync.Mutex
	verifyOK     bool
	webhookOK    bool
	orderStatus  string
	orderErr     error
	refundErr    error
	nextOrderID  string
	nextRefundID string
	orders       []string
	refunds      []refundCall
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		verifyOK:     true,
		webhookOK:    true,
		orderStatus:  "created",
		nextOrderID:  "order_test_1",
		nextRefundID: "rfnd_test_1",
	}
}

func (g *fakeGateway) KeyID() string { return "rzp_test_key" }

func (g *fakeGateway) CreateOrder(amountPaise int64, receipt, description string) (*razorpay.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.orderErr != nil {
		return nil, g.orderErr
	}
	g.orders = append(g.orders, g.nextOrderID)
	return &razorpay.Order{
		ID:          g.nextOrderID,
		AmountPaise: amountPaise,
		Currency:    razorpay.Currency,
		Receipt:     receipt,
		Status:      "created",
	}, nil
}

func (g *fakeGateway) FetchOrderStatus(orderID string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.orderErr != nil {
		return "", g.orderErr
	}
	return g.orderStatus, nil
}

func (g *fakeGateway) CreateRefund(gatewayPaymentID string, amountPaise int64, notes map[string]interface{}) (*razorpay.RefundResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.refundErr != nil {
		return nil, g.refundErr
	}
	g.refunds = append(g.refunds, refundCall{gatewayPaymentID: gatewayPaymentID, amountPaise: amountPaise})
	return &razorpay.RefundResult{ID: g.nextRefundID, Status: "processed", CreatedAt: time.Now()}, nil
}

func (g *fakeGateway) VerifyPaymentSignature(orderID, paymentID, signature string) bool {
	return g.verifyOK
}

func (g *fakeGateway) VerifyWebhookSignature(body []byte, signature string) bool {
	return g.webhookOK
}

type fakeNotifier struct {
	mu        sync.Mutex
	confirmed []models.Payment
	failed    []models.Payment
	refunded  []models.Payment
}

func (n *fakeNotifier) PaymentConfirmed(p *models.Payment) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.confirmed = append(n.confirmed, *p)
}

func (n *fakeNotifier) PaymentFailed(p *models.Payment) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failed = append(n.failed, *p)
}

func (n *fakeNotifier) PaymentRefunded(p *models.Payment, r models.Refund) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.refunded = append(n.refunded, *p)
}

func (n *fakeNotifier) confirmedCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.confirmed)
}

type auditEntry struct {
	webhookID      string
	eventType      string
	signatureValid bool
}

type fakeAudit struct {
	mu        sync.Mutex
	received  []auditEntry
	processed map[string]string
}

func newFakeAudit() *fakeAudit {
	return &fakeAudit{processed: map[string]string{}}
}

func (a *fakeAudit) LogReceived(_ context.Context, webhookID, eventType, payload string, signatureValid bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.received = append(a.received, auditEntry{webhookID: webhookID, eventType: eventType, signatureValid: signatureValid})
	return nil
}

func (a *fakeAudit) MarkProcessed(_ context.Context, webhookID, errMsg string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.processed[webhookID] = errMsg
	return nil
}
