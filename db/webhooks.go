package db

import (
	"context"
	"database/sql"
)

// WebhookStore keeps an audit row per received gateway webhook. The rows are
// a security and debugging trail, never an input to payment state.
type WebhookStore struct {
	db *sql.DB
}

func NewWebhookStore(conn *sql.DB) *WebhookStore {
	return &WebhookStore{db: conn}
}

// LogReceived records a webhook delivery. A redelivered event bumps the
// retry counter on the existing row instead of inserting a duplicate.
func (s *WebhookStore) LogReceived(ctx context.Context, webhookID, eventType, payload string, signatureValid bool) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO razorpay_webhooks (webhook_id, event_type, payload, status, signature_valid)
		VALUES ($1, $2, $3, 'received', $4)
		ON CONFLICT (webhook_id) DO UPDATE SET
			retry_count = razorpay_webhooks.retry_count + 1,
			signature_valid = EXCLUDED.signature_valid,
			updated_at = CURRENT_TIMESTAMP`,
		webhookID, eventType, payload, signatureValid)
	return err
}

// MarkProcessed records the processing outcome for a webhook.
func (s *WebhookStore) MarkProcessed(ctx context.Context, webhookID, errMsg string) error {
	status := "processed"
	if errMsg != "" {
		status = "failed"
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE razorpay_webhooks SET
			status = $2,
			error_message = $3,
			processed_at = CURRENT_TIMESTAMP,
			updated_at = CURRENT_TIMESTAMP
		WHERE webhook_id = $1`,
		webhookID, status, errMsg)
	return err
}
