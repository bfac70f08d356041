package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	apperrors "coaching-module/errors"
	"coaching-module/http/middleware"
	"coaching-module/http/response"
	"coaching-module/models"
	"coaching-module/services"
	"coaching-module/utils"
)

// PaymentHandler exposes the payment lifecycle over HTTP. All state and
// gateway access lives in the injected service.
type PaymentHandler struct {
	payments *services.PaymentService
}

func NewPaymentHandler(payments *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

// CreateOrder handles POST /payments/create-order.
func (h *PaymentHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	caller, _ := middleware.CallerIdentity(r)

	var req services.CreateOrderRequest
	if err := utils.DecodeJSONRequest(r, &req); err != nil {
		response.ErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.payments.CreateOrder(r.Context(), caller.UserID, req)
	if err != nil {
		response.WriteError(w, err)
		return
	}

	response.SuccessResponse(w, http.StatusOK, "Order created", order)
}

// VerifyPayment handles POST /payments/verify.
func (h *PaymentHandler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	caller, _ := middleware.CallerIdentity(r)

	var req services.VerifyRequest
	if err := utils.DecodeJSONRequest(r, &req); err != nil {
		response.ErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	payment, err := h.payments.VerifyPayment(r.Context(), caller.UserID, req)
	if err != nil {
		response.WriteError(w, err)
		return
	}

	response.SuccessResponse(w, http.StatusOK, "Payment verified and saved successfully", payment)
}

// ReportFailure handles POST /payments/failed.
func (h *PaymentHandler) ReportFailure(w http.ResponseWriter, r *http.Request) {
	caller, _ := middleware.CallerIdentity(r)

	var req services.FailureReport
	if err := utils.DecodeJSONRequest(r, &req); err != nil {
		response.ErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	payment, err := h.payments.ReportFailure(r.Context(), caller.UserID, req)
	if err != nil {
		response.WriteError(w, err)
		return
	}

	response.SuccessResponse(w, http.StatusOK, "Payment marked as failed", payment)
}

// CheckStatus handles GET /payments/status/{orderId}.
func (h *PaymentHandler) CheckStatus(w http.ResponseWriter, r *http.Request) {
	caller, _ := middleware.CallerIdentity(r)
	orderID := r.PathValue("orderId")
	if orderID == "" {
		response.ErrorResponse(w, http.StatusBadRequest, "order id is required")
		return
	}

	payment, err := h.payments.CheckStatus(r.Context(), orderID, caller.UserID, middleware.IsAdmin(r))
	if err != nil {
		response.WriteError(w, err)
		return
	}

	response.SuccessResponse(w, http.StatusOK, "", payment)
}

// GetPayment handles GET /payments/{id}.
func (h *PaymentHandler) GetPayment(w http.ResponseWriter, r *http.Request) {
	caller, _ := middleware.CallerIdentity(r)
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		response.ErrorResponse(w, http.StatusBadRequest, "invalid payment id")
		return
	}

	payment, err := h.payments.GetPayment(r.Context(), id, caller.UserID, middleware.IsAdmin(r))
	if err != nil {
		response.WriteError(w, err)
		return
	}

	response.SuccessResponse(w, http.StatusOK, "", payment)
}

// DownloadInvoice handles GET /payments/invoice/{id} and streams the PDF.
func (h *PaymentHandler) DownloadInvoice(w http.ResponseWriter, r *http.Request) {
	caller, _ := middleware.CallerIdentity(r)
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		response.ErrorResponse(w, http.StatusBadRequest, "invalid payment id")
		return
	}

	payment, err := h.payments.GetPayment(r.Context(), id, caller.UserID, middleware.IsAdmin(r))
	if err != nil {
		response.WriteError(w, err)
		return
	}

	pdfBytes, err := services.GenerateInvoice(payment)
	if err != nil {
		response.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=invoice_%s.pdf", payment.PaymentRef))
	w.WriteHeader(http.StatusOK)
	w.Write(pdfBytes)
}

// Refund handles POST /payments/{id}/refund. Admin only.
func (h *PaymentHandler) Refund(w http.ResponseWriter, r *http.Request) {
	caller, _ := middleware.CallerIdentity(r)
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		response.ErrorResponse(w, http.StatusBadRequest, "invalid payment id")
		return
	}

	var req services.RefundRequest
	if err := utils.DecodeJSONRequest(r, &req); err != nil {
		response.ErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	payment, err := h.payments.Refund(r.Context(), id, caller.UserID, req)
	if err != nil {
		response.WriteError(w, err)
		return
	}

	response.SuccessResponse(w, http.StatusOK, "Refund processed", payment)
}

// StudentPayments handles GET /payments/student, the caller's own history.
func (h *PaymentHandler) StudentPayments(w http.ResponseWriter, r *http.Request) {
	caller, _ := middleware.CallerIdentity(r)

	payments, err := h.payments.StudentPayments(r.Context(), caller.UserID)
	if err != nil {
		response.WriteError(w, err)
		return
	}

	response.SuccessResponse(w, http.StatusOK, "", map[string]interface{}{
		"count":    len(payments),
		"payments": payments,
	})
}

// AdminList handles GET /payments with filtering and pagination.
func (h *PaymentHandler) AdminList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := models.PaymentFilter{
		Status:    q.Get("status"),
		Month:     q.Get("month"),
		ClassName: q.Get("class"),
		Search:    q.Get("search"),
	}
	if filter.Status == "all" {
		filter.Status = ""
	}
	if filter.ClassName == "all" {
		filter.ClassName = ""
	}
	if v, err := strconv.Atoi(q.Get("student_id")); err == nil {
		filter.StudentID = v
	}
	if v, err := strconv.Atoi(q.Get("page")); err == nil {
		filter.Page = v
	}
	if v, err := strconv.Atoi(q.Get("limit")); err == nil {
		filter.Limit = v
	}

	window, err := utils.ParseTimeFilters(r)
	if err != nil {
		response.WriteError(w, err)
		return
	}
	filter.CreatedAfter = window.CreatedAfter
	filter.CreatedBefore = window.CreatedBefore

	payments, total, stats, err := h.payments.ListPayments(r.Context(), filter)
	if err != nil {
		response.WriteError(w, err)
		return
	}

	totalPages := 0
	if filter.Limit > 0 {
		totalPages = (total + filter.Limit - 1) / filter.Limit
	}

	response.SuccessResponse(w, http.StatusOK, "", map[string]interface{}{
		"count":        len(payments),
		"total":        total,
		"total_pages":  totalPages,
		"current_page": filter.Page,
		"payments":     payments,
		"stats":        stats,
	})
}

// AdminAnalytics handles GET /payments/analytics?timeframe=monthly.
func (h *PaymentHandler) AdminAnalytics(w http.ResponseWriter, r *http.Request) {
	report, err := h.payments.Analytics(r.Context(), r.URL.Query().Get("timeframe"))
	if err != nil {
		response.WriteError(w, err)
		return
	}
	response.SuccessResponse(w, http.StatusOK, "", report)
}

// AdminStats handles GET /payments/stats/overview.
func (h *PaymentHandler) AdminStats(w http.ResponseWriter, r *http.Request) {
	overview, err := h.payments.Overview(r.Context())
	if err != nil {
		response.WriteError(w, err)
		return
	}
	response.SuccessResponse(w, http.StatusOK, "", overview)
}

// ExportPayments handles GET /payments/export and streams an xlsx workbook
// of the filtered listing.
func (h *PaymentHandler) ExportPayments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.PaymentFilter{
		Status: q.Get("status"),
		Month:  q.Get("month"),
		Page:   1,
		Limit:  10000,
	}
	if filter.Status == "all" {
		filter.Status = ""
	}

	payments, _, _, err := h.payments.ListPayments(r.Context(), filter)
	if err != nil {
		response.WriteError(w, err)
		return
	}

	book, err := services.ExportPaymentsExcel(payments)
	if err != nil {
		response.WriteError(w, apperrors.NewInternalServerError(err.Error()))
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename=payments.xlsx")
	w.WriteHeader(http.StatusOK)
	w.Write(book)
}
