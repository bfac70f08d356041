package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"coaching-module/http/response"
	"coaching-module/logger"
	"coaching-module/services"
)

// GetDLQMessages retrieves unresolved DLQ messages.
// GET /api/dlq/messages?limit=50
func GetDLQMessages(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 {
			limit = parsedLimit
		}
	}

	messages, err := services.GetDLQMessages(limit)
	if err != nil {
		logger.Error("Error fetching DLQ messages: %v", err)
		response.ErrorResponse(w, http.StatusInternalServerError, "Failed to fetch DLQ messages")
		return
	}

	response.SuccessResponse(w, http.StatusOK, "DLQ messages retrieved", map[string]interface{}{
		"count": len(messages),
		"data":  messages,
	})
}

// RetryDLQMessage retries processing of a specific DLQ message.
// POST /api/dlq/messages/{id}/retry
func RetryDLQMessage(w http.ResponseWriter, r *http.Request) {
	messageID := r.PathValue("id")
	if messageID == "" {
		response.ErrorResponse(w, http.StatusBadRequest, "Missing message ID parameter")
		return
	}

	if err := services.RetryDLQMessage(messageID); err != nil {
		logger.Error("Error retrying DLQ message %s: %v", messageID, err)
		response.ErrorResponse(w, http.StatusInternalServerError, "Failed to retry message")
		return
	}

	response.SuccessResponse(w, http.StatusOK, "Message retry initiated", map[string]interface{}{
		"messageId": messageID,
	})
}

// ResolveDLQMessage marks a DLQ message as resolved.
// POST /api/dlq/messages/{id}/resolve
func ResolveDLQMessage(w http.ResponseWriter, r *http.Request) {
	messageID := r.PathValue("id")
	if messageID == "" {
		response.ErrorResponse(w, http.StatusBadRequest, "Missing message ID parameter")
		return
	}

	var req struct {
		Notes string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Notes == "" {
		req.Notes = "Manually resolved"
	}

	if err := services.ResolveDLQMessage(messageID, req.Notes); err != nil {
		logger.Error("Error resolving DLQ message %s: %v", messageID, err)
		response.ErrorResponse(w, http.StatusInternalServerError, "Failed to resolve message")
		return
	}

	response.SuccessResponse(w, http.StatusOK, "Message marked as resolved", map[string]interface{}{
		"messageId": messageID,
	})
}

// GetDLQStats retrieves statistics about DLQ messages.
// GET /api/dlq/stats
func GetDLQStats(w http.ResponseWriter, r *http.Request) {
	stats, err := services.GetDLQStats()
	if err != nil {
		logger.Error("Error fetching DLQ statistics: %v", err)
		response.ErrorResponse(w, http.StatusInternalServerError, "Failed to fetch DLQ statistics")
		return
	}

	response.SuccessResponse(w, http.StatusOK, "DLQ statistics", stats)
}
