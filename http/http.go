package http

import (
	"net/http"

	"coaching-module/http/handlers"
	"coaching-module/http/middleware"
)

// SetupRoutes wires all HTTP routes onto a fresh mux. Method and path
// parameters use the net/http pattern syntax; ordering within a path is
// student routes first, then admin.
func SetupRoutes(payment *handlers.PaymentHandler, webhook *handlers.WebhookHandler) *http.ServeMux {
	mux := http.NewServeMux()

	// Payment lifecycle
	mux.HandleFunc("POST /payments/create-order", middleware.EnableCORS(middleware.RequireAuth(payment.CreateOrder)))
	mux.HandleFunc("POST /payments/verify", middleware.EnableCORS(middleware.RequireAuth(payment.VerifyPayment)))
	mux.HandleFunc("POST /payments/failed", middleware.EnableCORS(middleware.RequireAuth(payment.ReportFailure)))
	mux.HandleFunc("GET /payments/status/{orderId}", middleware.EnableCORS(middleware.RequireAuth(payment.CheckStatus)))

	// Webhook endpoint is unauthenticated; the HMAC signature is the auth.
	mux.HandleFunc("POST /payments/webhook", middleware.EnableCORS(webhook.HandleRazorpay))

	// Student views. The invoice route leads with a literal segment so it
	// cannot overlap the status wildcard above.
	mux.HandleFunc("GET /payments/student", middleware.EnableCORS(middleware.RequireAuth(payment.StudentPayments)))
	mux.HandleFunc("GET /payments/{id}", middleware.EnableCORS(middleware.RequireAuth(payment.GetPayment)))
	mux.HandleFunc("GET /payments/invoice/{id}", middleware.EnableCORS(middleware.RequireAuth(payment.DownloadInvoice)))

	// Admin operations. Literal segments take precedence over the {id}
	// wildcard, so /payments/analytics never resolves as a payment id.
	mux.HandleFunc("POST /payments/{id}/refund", middleware.EnableCORS(middleware.RequireAdmin(payment.Refund)))
	mux.HandleFunc("GET /payments", middleware.EnableCORS(middleware.RequireAdmin(payment.AdminList)))
	mux.HandleFunc("GET /payments/analytics", middleware.EnableCORS(middleware.RequireAdmin(payment.AdminAnalytics)))
	mux.HandleFunc("GET /payments/stats/overview", middleware.EnableCORS(middleware.RequireAdmin(payment.AdminStats)))
	mux.HandleFunc("GET /payments/export", middleware.EnableCORS(middleware.RequireAdmin(payment.ExportPayments)))

	// DLQ management
	mux.HandleFunc("GET /api/dlq/messages", middleware.EnableCORS(middleware.RequireAdmin(handlers.GetDLQMessages)))
	mux.HandleFunc("POST /api/dlq/messages/{id}/retry", middleware.EnableCORS(middleware.RequireAdmin(handlers.RetryDLQMessage)))
	mux.HandleFunc("POST /api/dlq/messages/{id}/resolve", middleware.EnableCORS(middleware.RequireAdmin(handlers.ResolveDLQMessage)))
	mux.HandleFunc("GET /api/dlq/stats", middleware.EnableCORS(middleware.RequireAdmin(handlers.GetDLQStats)))

	mux.HandleFunc("GET /health", middleware.EnableCORS(handlers.Health))

	return mux
}
