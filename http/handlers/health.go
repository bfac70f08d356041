package handlers

import (
	"net/http"

	"coaching-module/db"
	"coaching-module/http/response"
	"coaching-module/services"
)

// Health handles GET /health. Reports database reachability and Kafka
// producer state; a down Kafka degrades the report but not the status code,
// since messaging is best-effort.
func Health(w http.ResponseWriter, r *http.Request) {
	dbStatus := "up"
	if db.DB == nil || db.DB.Ping() != nil {
		dbStatus = "down"
	}

	kafkaStatus := "up"
	if !services.IsConnected() {
		kafkaStatus = "down"
	}

	status := http.StatusOK
	overall := "ok"
	if dbStatus == "down" {
		status = http.StatusServiceUnavailable
		overall = "degraded"
	}

	response.SendJSON(w, status, map[string]interface{}{
		"status":   overall,
		"database": dbStatus,
		"kafka":    kafkaStatus,
	})
}
