package http

import (
	"net/http/httptest"
	"testing"

	"coaching-module/http/handlers"

	"github.com/stretchr/testify/require"
)

// Route registration panics on conflicting patterns, so building the mux is
// itself the assertion; the table below pins down which pattern each request
// resolves to.
func TestSetupRoutes(t *testing.T) {
	payment := handlers.NewPaymentHandler(nil)
	webhook := handlers.NewWebhookHandler(nil)

	mux := SetupRoutes(payment, webhook)
	require.NotNil(t, mux)

	tests := []struct {
		method string
		path   string
		want   string
	}{
		{"POST", "/payments/create-order", "POST /payments/create-order"},
		{"POST", "/payments/verify", "POST /payments/verify"},
		{"POST", "/payments/webhook", "POST /payments/webhook"},
		{"GET", "/payments/status/order_X", "GET /payments/status/{orderId}"},
		{"GET", "/payments/invoice/12", "GET /payments/invoice/{id}"},
		{"GET", "/payments/student", "GET /payments/student"},
		{"GET", "/payments/12", "GET /payments/{id}"},
		{"POST", "/payments/12/refund", "POST /payments/{id}/refund"},
		{"GET", "/payments", "GET /payments"},
		{"GET", "/payments/analytics", "GET /payments/analytics"},
		{"GET", "/payments/stats/overview", "GET /payments/stats/overview"},
		{"GET", "/payments/export", "GET /payments/export"},
		{"GET", "/api/dlq/stats", "GET /api/dlq/stats"},
		{"GET", "/health", "GET /health"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, tt.path, nil)
			_, pattern := mux.Handler(r)
			require.Equal(t, tt.want, pattern)
		})
	}
}
