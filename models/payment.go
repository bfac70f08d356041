package models

import "time"

// Payment status values. Transitions are monotonic:
// pending -> completed | failed, completed -> refunded | partially_refunded.
// failed, refunded and partially_refunded are terminal.
const (
	StatusPending           = "pending"
	StatusCompleted         = "completed"
	StatusFailed            = "failed"
	StatusRefunded          = "refunded"
	StatusPartiallyRefunded = "partially_refunded"
)

// Payment is the authoritative record of one fee-payment attempt.
type Payment struct {
	ID                int       `json:"id"`
	PaymentRef        string    `json:"payment_ref"`
	StudentID         int       `json:"student_id"`
	StudentName       string    `json:"student_name"`
	ClassName         string    `json:"class,omitempty"`
	Amount            float64   `json:"amount"`
	Description       string    `json:"description"`
	Month             string    `json:"month"`
	Status            string    `json:"status"`
	OrderID           string    `json:"order_id"`
	RazorpayPaymentID string    `json:"razorpay_payment_id,omitempty"`
	RazorpaySignature string    `json:"razorpay_signature,omitempty"`
	ErrorMessage      string    `json:"error_message,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	PaidDate          *time.Time `json:"paid_date,omitempty"`
	FailedAt          *time.Time `json:"failed_at,omitempty"`
	Refunds           []Refund  `json:"refunds,omitempty"`
}

// Refund is one refund entry against a completed payment.
type Refund struct {
	ID               int       `json:"id"`
	PaymentID        int       `json:"payment_id"`
	Amount           float64   `json:"amount"`
	Reason           string    `json:"reason"`
	RazorpayRefundID string    `json:"razorpay_refund_id"`
	GatewayStatus    string    `json:"gateway_status"`
	ProcessedBy      int       `json:"processed_by,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// RefundedTotal returns the cumulative refunded amount.
func (p *Payment) RefundedTotal() float64 {
	var total float64
	for _, r := range p.Refunds {
		total += r.Amount
	}
	return total
}

// RefundableBalance returns the amount still available for refund.
func (p *Payment) RefundableBalance() float64 {
	return p.Amount - p.RefundedTotal()
}

// RazorpayOrder is the order-creation response returned to the client.
// KeyID is the publishable key identifier, never the secret.
type RazorpayOrder struct {
	OrderID  string  `json:"order_id"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	Receipt  string  `json:"receipt"`
	KeyID    string  `json:"key_id"`
	Month    string  `json:"month"`
}

// PaymentFilter narrows admin payment listings.
type PaymentFilter struct {
	Status        string
	Month         string
	ClassName     string
	StudentID     int
	Search        string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	Page          int
	Limit         int
}

// PaymentStats summarizes a payment listing.
type PaymentStats struct {
	TotalRevenue   float64 `json:"total_revenue"`
	PendingAmount  float64 `json:"pending_amount"`
	FailedAmount   float64 `json:"failed_amount"`
	CompletedCount int     `json:"completed_count"`
	PendingCount   int     `json:"pending_count"`
	FailedCount    int     `json:"failed_count"`
	RefundedCount  int     `json:"refunded_count"`
}

// MonthlyRevenue is one month's completed revenue.
type MonthlyRevenue struct {
	Month int     `json:"month"`
	Total float64 `json:"total"`
	Count int     `json:"count"`
}

// AnalyticsReport aggregates payments over a timeframe.
type AnalyticsReport struct {
	Timeframe             string    `json:"timeframe"`
	Since                 time.Time `json:"since"`
	TotalRevenue          float64   `json:"total_revenue"`
	PendingAmount         float64   `json:"pending_amount"`
	TotalTransactions     int       `json:"total_transactions"`
	CompletedTransactions int       `json:"completed_transactions"`
	FailedTransactions    int       `json:"failed_transactions"`
	AveragePayment        float64   `json:"average_payment"`
	SuccessRate           float64   `json:"success_rate"`
	RecentPayments        []Payment `json:"recent_payments"`
}

// StatsOverview is the admin dashboard summary.
type StatsOverview struct {
	TotalRevenue   float64          `json:"total_revenue"`
	TodayRevenue   float64          `json:"today_revenue"`
	PendingCount   int              `json:"pending_count"`
	FailedCount    int              `json:"failed_count"`
	CompletedCount int              `json:"completed_count"`
	RefundedCount  int              `json:"refunded_count"`
	MonthlyRevenue []MonthlyRevenue `json:"monthly_revenue"`
}
