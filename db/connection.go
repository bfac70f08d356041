package db

import (
	"coaching-module/config"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

var DB *sql.DB

func InitDB() error {
	var err error
	connStr := config.GetDBConnString()

	DB, err = sql.Open("postgres", connStr)
	if err != nil {
		return fmt.Errorf("error opening database: %w", err)
	}

	// Test the connection
	err = DB.Ping()
	if err != nil {
		return fmt.Errorf("error connecting to database: %w", err)
	}

	// Create tables
	if err := createTables(); err != nil {
		return fmt.Errorf("error creating tables: %w", err)
	}

	return nil
}

func createTables() error {
	studentTable := `
	CREATE TABLE IF NOT EXISTS students (
		id SERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		phone TEXT,
		enrollment_id TEXT,
		class_name TEXT,
		role TEXT DEFAULT 'student',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);`

	// UNIQUE (order_id, student_id) is what makes the verification upsert
	// race-free: two concurrent verify calls for the same order collapse
	// onto one row instead of both inserting.
	paymentTable := `
	CREATE TABLE IF NOT EXISTS payments (
		id SERIAL PRIMARY KEY,
		payment_ref TEXT UNIQUE NOT NULL,
		student_id INTEGER NOT NULL,
		student_name TEXT,
		class_name TEXT,
		amount NUMERIC(12,2) NOT NULL,
		description TEXT,
		month TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		order_id TEXT NOT NULL,
		razorpay_payment_id TEXT,
		razorpay_signature TEXT,
		error_message TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		paid_date TIMESTAMP,
		failed_at TIMESTAMP,

		CONSTRAINT payments_order_student_uniq UNIQUE (order_id, student_id),
		CONSTRAINT fk_payment_student
			FOREIGN KEY (student_id)
			REFERENCES students(id)
	);`

	paymentIndexes := `
	CREATE UNIQUE INDEX IF NOT EXISTS payments_rzp_payment_id_uniq
		ON payments (razorpay_payment_id)
		WHERE razorpay_payment_id IS NOT NULL AND razorpay_payment_id <> '';`

	refundTable := `
	CREATE TABLE IF NOT EXISTS payment_refunds (
		id SERIAL PRIMARY KEY,
		payment_id INTEGER NOT NULL,
		amount NUMERIC(12,2) NOT NULL,
		reason TEXT,
		razorpay_refund_id TEXT,
		gateway_status TEXT,
		processed_by INTEGER,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,

		CONSTRAINT fk_refund_payment
			FOREIGN KEY (payment_id)
			REFERENCES payments(id)
			ON DELETE CASCADE
	);`

	// Denormalized display copy of a student's payments. Never authoritative.
	historyTable := `
	CREATE TABLE IF NOT EXISTS student_payment_history (
		id SERIAL PRIMARY KEY,
		student_id INTEGER NOT NULL,
		amount NUMERIC(12,2) NOT NULL,
		status TEXT,
		transaction_id TEXT,
		description TEXT,
		date TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);`

	notificationTable := `
	CREATE TABLE IF NOT EXISTS notifications (
		id SERIAL PRIMARY KEY,
		user_id INTEGER NOT NULL,
		title TEXT,
		message TEXT,
		type TEXT,
		read BOOLEAN DEFAULT FALSE,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);`

	webhookTable := `
	CREATE TABLE IF NOT EXISTS razorpay_webhooks (
		webhook_id TEXT PRIMARY KEY,
		event_type TEXT,
		payload TEXT,
		status TEXT,
		retry_count INTEGER DEFAULT 0,
		signature_valid BOOLEAN DEFAULT FALSE,
		error_message TEXT,
		processed_at TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);`

	dlqTable := `
	CREATE TABLE IF NOT EXISTS dlq_messages (
		id SERIAL PRIMARY KEY,
		message_id TEXT UNIQUE NOT NULL,
		topic TEXT,
		key TEXT,
		value JSONB,
		error_message TEXT,
		retry_count INTEGER DEFAULT 0,
		max_retries INTEGER DEFAULT 5,
		resolved BOOLEAN DEFAULT FALSE,
		last_retry_at TIMESTAMP,
		resolved_at TIMESTAMP,
		notes TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);`

	statements := []string{
		studentTable,
		paymentTable,
		paymentIndexes,
		refundTable,
		historyTable,
		notificationTable,
		webhookTable,
		dlqTable,
	}

	for _, stmt := range statements {
		if _, err := DB.Exec(stmt); err != nil {
			return fmt.Errorf("error creating schema: %w", err)
		}
	}

	return nil
}
