package handlers

import (
	"io"
	"net/http"

	apperrors "coaching-module/errors"
	"coaching-module/http/response"
	"coaching-module/services"
)

// WebhookHandler receives gateway webhooks. The body must be read raw before
// any decoding because the signature covers the exact bytes on the wire.
type WebhookHandler struct {
	webhooks *services.WebhookService
}

func NewWebhookHandler(webhooks *services.WebhookService) *WebhookHandler {
	return &WebhookHandler{webhooks: webhooks}
}

const maxWebhookBody = 1 << 20

// HandleRazorpay handles POST /payments/webhook. A bad signature gets 400;
// once the signature verifies the gateway always gets 200, even for a
// payload that cannot be parsed, because redelivery of the same event cannot
// fix a permanently broken body or an internal processing problem.
func (h *WebhookHandler) HandleRazorpay(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		response.ErrorResponse(w, http.StatusBadRequest, "could not read request body")
		return
	}

	signature := r.Header.Get("X-Razorpay-Signature")
	eventID := r.Header.Get("X-Razorpay-Event-Id")

	if err := h.webhooks.Process(r.Context(), body, signature, eventID); err != nil {
		if apperrors.IsKind(err, apperrors.SignatureMismatch) {
			response.WriteError(w, err)
			return
		}
		// Unexpected classification; still acknowledge to stop redelivery.
	}

	response.SuccessResponse(w, http.StatusOK, "Webhook processed", nil)
}
