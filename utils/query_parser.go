package utils

import (
	"net/http"
	"time"

	apperrors "coaching-module/errors"
)

// TimeFilter is the optional created_at window carried by list queries.
type TimeFilter struct {
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

// ParseTimeFilters reads created_after and created_before from the request
// query. Both are optional RFC3339 timestamps; a missing bound stays nil.
func ParseTimeFilters(r *http.Request) (TimeFilter, error) {
	var f TimeFilter

	if raw := r.URL.Query().Get("created_after"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return f, apperrors.NewInvalidParamsError("created_after must be an RFC3339 timestamp, e.g. 2026-01-15T10:00:00Z")
		}
		f.CreatedAfter = &t
	}

	if raw := r.URL.Query().Get("created_before"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return f, apperrors.NewInvalidParamsError("created_before must be an RFC3339 timestamp, e.g. 2026-01-15T10:00:00Z")
		}
		f.CreatedBefore = &t
	}

	return f, nil
}
