package db

import (
	apperrors "coaching-module/errors"
	"coaching-module/models"
	"context"
	"database/sql"
)

// StudentStore reads student identity and maintains the denormalized
// per-student payment history plus in-app notifications.
type StudentStore struct {
	db *sql.DB
}

func NewStudentStore(conn *sql.DB) *StudentStore {
	return &StudentStore{db: conn}
}

// Get returns a student by id.
func (s *StudentStore) Get(ctx context.Context, id int) (*models.Student, error) {
	var st models.Student
	var email, phone, enrollmentID, className, role sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, email, phone, enrollment_id, class_name, role
		 FROM students WHERE id = $1`, id).Scan(
		&st.ID, &st.Name, &email, &phone, &enrollmentID, &className, &role)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError("student not found")
	}
	if err != nil {
		return nil, err
	}
	st.Email = email.String
	st.Phone = phone.String
	st.EnrollmentID = enrollmentID.String
	st.ClassName = className.String
	st.Role = role.String
	return &st, nil
}

// AppendPaymentHistory appends a display-only history entry. Callers treat
// failures as non-fatal; the payments table stays authoritative.
func (s *StudentStore) AppendPaymentHistory(ctx context.Context, entry models.PaymentHistoryEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO student_payment_history (student_id, amount, status, transaction_id, description, date)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.StudentID, entry.Amount, entry.Status, entry.TransactionID, entry.Description, entry.Date)
	return err
}

// InsertNotification writes an in-app notification row.
func (s *StudentStore) InsertNotification(ctx context.Context, n models.Notification) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notifications (user_id, title, message, type)
		 VALUES ($1, $2, $3, $4)`,
		n.UserID, n.Title, n.Message, n.Type)
	return err
}
