package models

import "time"

// Student is the identity record read by the payment manager. Profile
// management itself lives outside this service.
type Student struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Phone        string `json:"phone,omitempty"`
	EnrollmentID string `json:"enrollment_id,omitempty"`
	ClassName    string `json:"class,omitempty"`
	Role         string `json:"role"`
}

// PaymentHistoryEntry is the denormalized per-student payment summary.
// It is display-only and may drift from the payments table; the payments
// table is always the source of truth.
type PaymentHistoryEntry struct {
	StudentID     int       `json:"student_id"`
	Amount        float64   `json:"amount"`
	Status        string    `json:"status"`
	TransactionID string    `json:"transaction_id"`
	Description   string    `json:"description"`
	Date          time.Time `json:"date"`
}

// Notification is an in-app notification row written fire-and-forget.
type Notification struct {
	ID        int       `json:"id"`
	UserID    int       `json:"user_id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}
