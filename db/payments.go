package db

import (
	apperrors "coaching-module/errors"
	"coaching-module/models"
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

const paymentColumns = `id, payment_ref, student_id, student_name, class_name, amount,
	description, month, status, order_id, razorpay_payment_id, razorpay_signature,
	error_message, created_at, paid_date, failed_at`

// PaymentStore is the Postgres-backed payment record store.
type PaymentStore struct {
	db *sql.DB
}

// NewPaymentStore wraps a live connection.
func NewPaymentStore(conn *sql.DB) *PaymentStore {
	return &PaymentStore{db: conn}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPayment(row rowScanner) (*models.Payment, error) {
	var p models.Payment
	var className, description, month, gatewayPaymentID, signature, errMsg sql.NullString
	var paidDate, failedAt sql.NullTime

	err := row.Scan(
		&p.ID, &p.PaymentRef, &p.StudentID, &p.StudentName, &className, &p.Amount,
		&description, &month, &p.Status, &p.OrderID, &gatewayPaymentID, &signature,
		&errMsg, &p.CreatedAt, &paidDate, &failedAt,
	)
	if err != nil {
		return nil, err
	}

	p.ClassName = className.String
	p.Description = description.String
	p.Month = month.String
	p.RazorpayPaymentID = gatewayPaymentID.String
	p.RazorpaySignature = signature.String
	p.ErrorMessage = errMsg.String
	if paidDate.Valid {
		p.PaidDate = &paidDate.Time
	}
	if failedAt.Valid {
		p.FailedAt = &failedAt.Time
	}
	return &p, nil
}

func (s *PaymentStore) loadRefunds(ctx context.Context, p *models.Payment) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, payment_id, amount, reason, razorpay_refund_id, gateway_status,
			COALESCE(processed_by, 0), created_at
		 FROM payment_refunds WHERE payment_id = $1 ORDER BY created_at, id`, p.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var r models.Refund
		var reason, refundID, gatewayStatus sql.NullString
		if err := rows.Scan(&r.ID, &r.PaymentID, &r.Amount, &reason, &refundID,
			&gatewayStatus, &r.ProcessedBy, &r.CreatedAt); err != nil {
			return err
		}
		r.Reason = reason.String
		r.RazorpayRefundID = refundID.String
		r.GatewayStatus = gatewayStatus.String
		p.Refunds = append(p.Refunds, r)
	}
	return rows.Err()
}

func (s *PaymentStore) getOne(ctx context.Context, where string, args ...interface{}) (*models.Payment, error) {
	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM payments WHERE %s", paymentColumns, where), args...)
	p, err := scanPayment(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError("payment not found")
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadRefunds(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// GetByID returns a payment with its refund entries.
func (s *PaymentStore) GetByID(ctx context.Context, id int) (*models.Payment, error) {
	return s.getOne(ctx, "id = $1", id)
}

// GetByOrderID returns the payment for a gateway order.
func (s *PaymentStore) GetByOrderID(ctx context.Context, orderID string) (*models.Payment, error) {
	return s.getOne(ctx, "order_id = $1", orderID)
}

// GetByOrderAndStudent returns the payment for an (order, student) pair.
func (s *PaymentStore) GetByOrderAndStudent(ctx context.Context, orderID string, studentID int) (*models.Payment, error) {
	return s.getOne(ctx, "order_id = $1 AND student_id = $2", orderID, studentID)
}

// GetByGatewayPaymentID returns the payment captured under a gateway payment id.
func (s *PaymentStore) GetByGatewayPaymentID(ctx context.Context, gatewayPaymentID string) (*models.Payment, error) {
	return s.getOne(ctx, "razorpay_payment_id = $1", gatewayPaymentID)
}

// UpsertVerified records a signature-verified payment as completed.
//
// The write is a single atomic statement keyed on (order_id, student_id):
// a retried verification converges onto the existing row, keeps the original
// paid_date, and never resurrects a refunded or failed record (the conflict
// update only fires for pending/completed rows). When the guard refuses the
// update the existing row is returned untouched.
func (s *PaymentStore) UpsertVerified(ctx context.Context, p *models.Payment) (*models.Payment, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO payments (payment_ref, student_id, student_name, class_name, amount,
			description, month, status, order_id, razorpay_payment_id, razorpay_signature, paid_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'completed', $8, $9, $10, CURRENT_TIMESTAMP)
		ON CONFLICT (order_id, student_id) DO UPDATE SET
			status = 'completed',
			razorpay_payment_id = EXCLUDED.razorpay_payment_id,
			razorpay_signature = EXCLUDED.razorpay_signature,
			paid_date = COALESCE(payments.paid_date, EXCLUDED.paid_date),
			updated_at = CURRENT_TIMESTAMP
		WHERE payments.status IN ('pending', 'completed')
		RETURNING `+paymentColumns,
		p.PaymentRef, p.StudentID, p.StudentName, p.ClassName, p.Amount,
		p.Description, p.Month, p.OrderID, p.RazorpayPaymentID, p.RazorpaySignature)

	saved, err := scanPayment(row)
	if err == sql.ErrNoRows {
		// Terminal row; return it as-is.
		return s.GetByOrderAndStudent(ctx, p.OrderID, p.StudentID)
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadRefunds(ctx, saved); err != nil {
		return nil, err
	}
	return saved, nil
}

// MarkCompletedIfPending transitions pending -> completed for a captured
// order, locating the row by order id with a fallback on the gateway payment
// id. Returns false when no pending row matched (already completed, terminal,
// or unknown) so duplicate webhook delivery stays a no-op.
func (s *PaymentStore) MarkCompletedIfPending(ctx context.Context, orderID, gatewayPaymentID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE payments SET
			status = 'completed',
			razorpay_payment_id = CASE
				WHEN razorpay_payment_id IS NULL OR razorpay_payment_id = '' THEN $2
				ELSE razorpay_payment_id
			END,
			paid_date = CURRENT_TIMESTAMP,
			updated_at = CURRENT_TIMESTAMP
		WHERE (order_id = $1 OR razorpay_payment_id = $2) AND status = 'pending'`,
		orderID, gatewayPaymentID)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// MarkFailed transitions pending -> failed with the gateway's error message.
func (s *PaymentStore) MarkFailed(ctx context.Context, orderID, gatewayPaymentID, errMsg string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE payments SET
			status = 'failed',
			razorpay_payment_id = CASE
				WHEN razorpay_payment_id IS NULL OR razorpay_payment_id = '' THEN $2
				ELSE razorpay_payment_id
			END,
			error_message = $3,
			failed_at = CURRENT_TIMESTAMP,
			updated_at = CURRENT_TIMESTAMP
		WHERE order_id = $1 AND status = 'pending'`,
		orderID, gatewayPaymentID, errMsg)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// UpsertFailed records a client-reported failure. It creates the failed row
// when verification never reached us, or transitions an existing pending row.
// A row already past pending (completed by a racing webhook, or terminal) is
// returned untouched.
func (s *PaymentStore) UpsertFailed(ctx context.Context, p *models.Payment) (*models.Payment, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO payments (payment_ref, student_id, student_name, class_name, amount,
			description, month, status, order_id, error_message, failed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'failed', $8, $9, CURRENT_TIMESTAMP)
		ON CONFLICT (order_id, student_id) DO UPDATE SET
			status = 'failed',
			error_message = EXCLUDED.error_message,
			failed_at = CURRENT_TIMESTAMP,
			updated_at = CURRENT_TIMESTAMP
		WHERE payments.status = 'pending'
		RETURNING `+paymentColumns,
		p.PaymentRef, p.StudentID, p.StudentName, p.ClassName, p.Amount,
		p.Description, p.Month, p.OrderID, p.ErrorMessage)

	saved, err := scanPayment(row)
	if err == sql.ErrNoRows {
		return s.GetByOrderAndStudent(ctx, p.OrderID, p.StudentID)
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadRefunds(ctx, saved); err != nil {
		return nil, err
	}
	return saved, nil
}

// AppendRefund records a gateway-confirmed refund entry and moves the payment
// to the given status. Status only moves forward from completed or
// partially_refunded; a late refund event against anything else is refused
// at the WHERE clause and reported as a conflict.
func (s *PaymentStore) AppendRefund(ctx context.Context, paymentID int, r models.Refund, newStatus string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback()

	var processedBy interface{}
	if r.ProcessedBy != 0 {
		processedBy = r.ProcessedBy
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO payment_refunds (payment_id, amount, reason, razorpay_refund_id, gateway_status, processed_by)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		paymentID, r.Amount, r.Reason, r.RazorpayRefundID, r.GatewayStatus, processedBy)
	if err != nil {
		return fmt.Errorf("error saving refund entry: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE payments SET status = $2, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND status IN ('completed', 'partially_refunded')`,
		paymentID, newStatus)
	if err != nil {
		return fmt.Errorf("error updating payment status: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return apperrors.NewConflictError("payment is not in a refundable status")
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing transaction: %w", err)
	}
	return nil
}

// List returns a filtered page of payments plus aggregate stats over the
// same filter.
func (s *PaymentStore) List(ctx context.Context, f models.PaymentFilter) ([]models.Payment, int, *models.PaymentStats, error) {
	var conds []string
	var args []interface{}

	addCond := func(cond string, val interface{}) {
		args = append(args, val)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.Status != "" && f.Status != "all" {
		addCond("status = $%d", f.Status)
	}
	if f.Month != "" && f.Month != "all" {
		addCond("month = $%d", f.Month)
	}
	if f.ClassName != "" && f.ClassName != "all" {
		addCond("class_name = $%d", f.ClassName)
	}
	if f.StudentID != 0 {
		addCond("student_id = $%d", f.StudentID)
	}
	if f.CreatedAfter != nil {
		addCond("created_at >= $%d", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		addCond("created_at <= $%d", *f.CreatedBefore)
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf(
			"(order_id ILIKE $%d OR razorpay_payment_id ILIKE $%d OR description ILIKE $%d OR student_name ILIKE $%d OR month ILIKE $%d)",
			n, n, n, n, n))
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM payments"+where, args...).Scan(&total); err != nil {
		return nil, 0, nil, err
	}

	stats := &models.PaymentStats{}
	statsQuery := `SELECT
		COALESCE(SUM(amount) FILTER (WHERE status = 'completed'), 0),
		COALESCE(SUM(amount) FILTER (WHERE status = 'pending'), 0),
		COALESCE(SUM(amount) FILTER (WHERE status = 'failed'), 0),
		COUNT(*) FILTER (WHERE status = 'completed'),
		COUNT(*) FILTER (WHERE status = 'pending'),
		COUNT(*) FILTER (WHERE status = 'failed'),
		COUNT(*) FILTER (WHERE status IN ('refunded', 'partially_refunded'))
	FROM payments` + where
	if err := s.db.QueryRowContext(ctx, statsQuery, args...).Scan(
		&stats.TotalRevenue, &stats.PendingAmount, &stats.FailedAmount,
		&stats.CompletedCount, &stats.PendingCount, &stats.FailedCount, &stats.RefundedCount); err != nil {
		return nil, 0, nil, err
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	page := f.Page
	if page <= 0 {
		page = 1
	}
	args = append(args, limit, (page-1)*limit)

	query := fmt.Sprintf("SELECT %s FROM payments%s ORDER BY created_at DESC, paid_date DESC NULLS LAST LIMIT $%d OFFSET $%d",
		paymentColumns, where, len(args)-1, len(args))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, nil, err
	}
	defer rows.Close()

	var payments []models.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, 0, nil, err
		}
		payments = append(payments, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, nil, err
	}
	return payments, total, stats, nil
}

// ListByStudent returns a student's settled attempts, newest first. Pending
// rows are excluded: they are not part of the profile-facing history.
func (s *PaymentStore) ListByStudent(ctx context.Context, studentID int) ([]models.Payment, error) {
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT %s FROM payments
			WHERE student_id = $1 AND status IN ('completed', 'failed', 'refunded', 'partially_refunded')
			ORDER BY created_at DESC`, paymentColumns), studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []models.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}

// Analytics aggregates payments created since the given time.
func (s *PaymentStore) Analytics(ctx context.Context, since time.Time) (*models.AnalyticsReport, error) {
	report := &models.AnalyticsReport{Since: since}

	err := s.db.QueryRowContext(ctx, `SELECT
			COALESCE(SUM(amount) FILTER (WHERE status = 'completed'), 0),
			COALESCE(SUM(amount) FILTER (WHERE status = 'pending'), 0),
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'completed'),
			COUNT(*) FILTER (WHERE status = 'failed')
		FROM payments WHERE created_at >= $1`, since).Scan(
		&report.TotalRevenue, &report.PendingAmount, &report.TotalTransactions,
		&report.CompletedTransactions, &report.FailedTransactions)
	if err != nil {
		return nil, err
	}

	if report.CompletedTransactions > 0 {
		report.AveragePayment = report.TotalRevenue / float64(report.CompletedTransactions)
	}
	if report.TotalTransactions > 0 {
		report.SuccessRate = float64(report.CompletedTransactions) / float64(report.TotalTransactions) * 100
	}

	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT %s FROM payments
			WHERE status = 'completed' AND paid_date >= $1
			ORDER BY paid_date DESC LIMIT 10`, paymentColumns), since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		report.RecentPayments = append(report.RecentPayments, *p)
	}
	return report, rows.Err()
}

// Overview returns the admin dashboard totals.
func (s *PaymentStore) Overview(ctx context.Context) (*models.StatsOverview, error) {
	overview := &models.StatsOverview{}

	err := s.db.QueryRowContext(ctx, `SELECT
			COALESCE(SUM(amount) FILTER (WHERE status = 'completed'), 0),
			COALESCE(SUM(amount) FILTER (WHERE status = 'completed' AND paid_date >= CURRENT_DATE), 0),
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'failed'),
			COUNT(*) FILTER (WHERE status = 'completed'),
			COUNT(*) FILTER (WHERE status IN ('refunded', 'partially_refunded'))
		FROM payments`).Scan(
		&overview.TotalRevenue, &overview.TodayRevenue,
		&overview.PendingCount, &overview.FailedCount,
		&overview.CompletedCount, &overview.RefundedCount)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT EXTRACT(MONTH FROM paid_date)::int, COALESCE(SUM(amount), 0), COUNT(*)
		FROM payments
		WHERE status = 'completed' AND paid_date >= date_trunc('year', CURRENT_DATE)
		GROUP BY 1 ORDER BY 1`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var m models.MonthlyRevenue
		if err := rows.Scan(&m.Month, &m.Total, &m.Count); err != nil {
			return nil, err
		}
		overview.MonthlyRevenue = append(overview.MonthlyRevenue, m)
	}
	return overview, rows.Err()
}
